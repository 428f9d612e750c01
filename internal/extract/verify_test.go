package extract_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/vertti/fqslice/internal/extract"
	"github.com/vertti/fqslice/internal/fqindex"
)

func TestVerifyAcceptsConsistentIndex(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 300, 32, 1024)
	src := bytes.NewReader(f.container)
	err := extract.Verify(src, int64(len(f.container)), f.index, f.table, 4)
	assert.NoError(t, err)
}

func TestVerifySingleRecordStream(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1, 10, 512)
	src := bytes.NewReader(f.container)
	err := extract.Verify(src, int64(len(f.container)), f.index, f.table, 2)
	assert.NoError(t, err)
}

func TestVerifyRejectsWrongTotal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 100, 10, 1024)
	lying := &fqindex.Index{Interval: f.index.Interval, Total: f.index.Total + 5, Entries: f.index.Entries}

	src := bytes.NewReader(f.container)
	err := extract.Verify(src, int64(len(f.container)), lying, f.table, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data holds")
}

func TestVerifyRejectsShiftedOffset(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 100, 10, 1024)
	entries := append([]fqindex.Entry(nil), f.index.Entries...)
	entries[3].Offset++
	shifted := &fqindex.Index{Interval: f.index.Interval, Total: f.index.Total, Entries: entries}

	src := bytes.NewReader(f.container)
	err := extract.Verify(src, int64(len(f.container)), shifted, f.table, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 30")
}

// Concurrent extractions against one immutable index/table pair need no
// synchronization as long as each holds its own view of the file.
func TestConcurrentExtractions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 200, 20, 768)

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for target := uint64(w); target < 200; target += 8 {
				rr, err := extract.NewRangeReader(bytes.NewReader(f.container), f.index, f.table, target, target)
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				if _, err := rr.WriteTo(&buf); err != nil {
					return err
				}
				want, err := directSlice(f.raw, target, target)
				if err != nil {
					return err
				}
				if !bytes.Equal(want, buf.Bytes()) {
					t.Errorf("record %d: concurrent extraction diverged", target)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
