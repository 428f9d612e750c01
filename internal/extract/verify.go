package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/vertti/fqslice/internal/bgzf"
	"github.com/vertti/fqslice/internal/fqindex"
	"github.com/vertti/fqslice/internal/parser"
)

// sampleCheck is one record to re-extract and compare, captured during the
// sequential scan.
type sampleCheck struct {
	ordinal uint64
	raw     []byte
}

// Verify cross-checks an index/table pair against the compressed data they
// describe. A sequential scan of the full container recomputes every sampled
// offset and the record total; each sampled record (plus the final one) is
// then point-extracted through the index on a worker pool and compared
// byte-for-byte against the scan. src must tolerate concurrent readers, as
// every worker reads through its own io.SectionReader view.
func Verify(src io.ReaderAt, size int64, ix *fqindex.Index, table *bgzf.OffsetTable, workers int) error {
	checks, err := scanSamples(src, size, ix)
	if err != nil {
		return err
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, ctx := errgroup.WithContext(context.Background())
	jobs := make(chan sampleCheck, workers*2)

	for range workers {
		g.Go(func() error {
			for c := range jobs {
				if err := checkSample(src, size, ix, table, c); err != nil {
					return err
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for _, c := range checks {
			select {
			case jobs <- c:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return g.Wait()
}

// scanSamples decompresses the whole container front to back, checking the
// index's total and every sampled entry against the records actually
// present, and collects the records the extraction pass must reproduce.
func scanSamples(src io.ReaderAt, size int64, ix *fqindex.Index) ([]sampleCheck, error) {
	bg, err := bgzf.NewReaderAt(io.NewSectionReader(src, 0, size), 0)
	if err != nil {
		return nil, err
	}
	p := parser.New(bg)

	var checks []sampleCheck
	var total uint64
	var last *parser.Record
	for {
		rec, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if rec.Ordinal%ix.Interval == 0 {
			i := int(rec.Ordinal / ix.Interval)
			if i >= len(ix.Entries) {
				return nil, fmt.Errorf("record %d: data holds more samples than the index", rec.Ordinal)
			}
			if e := ix.Entries[i]; e.Offset != rec.Start {
				return nil, fmt.Errorf("record %d: index offset %d, data says %d", rec.Ordinal, e.Offset, rec.Start)
			}
			checks = append(checks, sampleCheck{ordinal: rec.Ordinal, raw: bytes.Clone(rec.Raw)})
		}
		total++
		last = rec
	}

	if total != ix.Total {
		return nil, fmt.Errorf("index records %d records, data holds %d", ix.Total, total)
	}
	if last != nil && last.Ordinal%ix.Interval != 0 {
		checks = append(checks, sampleCheck{ordinal: last.Ordinal, raw: bytes.Clone(last.Raw)})
	}
	return checks, nil
}

// checkSample point-extracts one record through the index and compares it
// against the bytes the sequential scan saw.
func checkSample(src io.ReaderAt, size int64, ix *fqindex.Index, table *bgzf.OffsetTable, c sampleCheck) error {
	rr, err := NewRangeReader(io.NewSectionReader(src, 0, size), ix, table, c.ordinal, c.ordinal)
	if err != nil {
		return fmt.Errorf("extracting record %d: %w", c.ordinal, err)
	}
	rec, err := rr.Next()
	if err != nil {
		return fmt.Errorf("extracting record %d: %w", c.ordinal, err)
	}
	if !bytes.Equal(rec.Raw, c.raw) {
		return fmt.Errorf("record %d: extracted bytes differ from sequential scan", c.ordinal)
	}
	return nil
}
