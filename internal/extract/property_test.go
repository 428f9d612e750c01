package extract_test

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/vertti/fqslice/internal/bgzf"
	"github.com/vertti/fqslice/internal/bgzf/bgzftest"
	"github.com/vertti/fqslice/internal/extract"
	"github.com/vertti/fqslice/internal/fqindex"
)

// TestExtractionEquivalence checks, for arbitrary stream shapes, that slicing
// through the two-level index reproduces exactly what a direct scan of the
// uncompressed stream yields.
func TestExtractionEquivalence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("full-range extraction round-trips", prop.ForAll(
		func(records int, interval uint64, blockPayload int) bool {
			raw := fastq(records)
			container, entries := bgzftest.Compress(raw, blockPayload)
			table := &bgzf.OffsetTable{Entries: entries}
			ix, err := fqindex.Build(bytes.NewReader(raw), nil, interval)
			if err != nil {
				return false
			}

			rr, err := extract.NewRangeReader(bytes.NewReader(container), ix, table, 0, ix.Total-1)
			if err != nil {
				return false
			}
			var buf bytes.Buffer
			if _, err := rr.WriteTo(&buf); err != nil {
				return false
			}
			return bytes.Equal(raw, buf.Bytes())
		},
		gen.IntRange(1, 300),
		gen.UInt64Range(1, 64),
		gen.IntRange(64, 4096),
	))

	properties.Property("arbitrary sub-ranges match a direct scan", prop.ForAll(
		func(records int, interval uint64, blockPayload int, a, b uint64) bool {
			raw := fastq(records)
			container, entries := bgzftest.Compress(raw, blockPayload)
			table := &bgzf.OffsetTable{Entries: entries}
			ix, err := fqindex.Build(bytes.NewReader(raw), nil, interval)
			if err != nil {
				return false
			}

			start := a % ix.Total
			end := start + b%(ix.Total-start)

			rr, err := extract.NewRangeReader(bytes.NewReader(container), ix, table, start, end)
			if err != nil {
				return false
			}
			var buf bytes.Buffer
			if _, err := rr.WriteTo(&buf); err != nil {
				return false
			}

			want, err := directSlice(raw, start, end)
			if err != nil {
				return false
			}
			return bytes.Equal(want, buf.Bytes())
		},
		gen.IntRange(1, 300),
		gen.UInt64Range(1, 64),
		gen.IntRange(64, 4096),
		gen.UInt64(),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
