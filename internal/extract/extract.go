// Package extract slices record ranges out of BGZF-compressed FASTQ files.
//
// A lookup combines two read-only tables: the sampled record index maps a
// record ordinal to a nearby uncompressed byte offset, and the block-offset
// table maps that offset to the compressed block containing it. Extraction
// then decompresses only the blocks spanning the requested records.
package extract

import (
	"fmt"
	"io"

	"github.com/vertti/fqslice/internal/bgzf"
	"github.com/vertti/fqslice/internal/fqindex"
	"github.com/vertti/fqslice/internal/parser"
)

// RangeError reports a record ordinal or range outside the indexed stream.
// Out-of-bounds requests always fail; they are never clamped.
type RangeError struct {
	Reason string
}

func (e *RangeError) Error() string {
	return "record range out of bounds: " + e.Reason
}

// Location is a resolved seek target: the virtual offset of the sampled
// record nearest below the requested one, and how far past it the requested
// record lies.
type Location struct {
	Voff    bgzf.VirtualOffset
	Skip    uint64 // whole records between the seek point and the target
	Ordinal uint64 // ordinal of the record at the seek point
	Offset  uint64 // uncompressed byte offset of the seek point
}

// Resolve maps a record ordinal to a Location. Skip never exceeds the
// index's sampling interval minus one; an interval of 1 always resolves with
// zero skip. An ordinal not below the indexed record count is a *RangeError.
func Resolve(ix *fqindex.Index, table *bgzf.OffsetTable, ordinal uint64) (Location, error) {
	sample, ok := ix.Locate(ordinal)
	if !ok {
		return Location{}, &RangeError{
			Reason: fmt.Sprintf("record %d not below indexed count %d", ordinal, ix.Total),
		}
	}

	block := table.Locate(sample.Offset)
	voff, err := bgzf.MakeVirtualOffset(block.Compressed, sample.Offset-block.Uncompressed)
	if err != nil {
		return Location{}, fmt.Errorf("resolving record %d: index offset %d disagrees with block table: %w",
			ordinal, sample.Offset, err)
	}

	return Location{
		Voff:    voff,
		Skip:    ordinal - sample.Ordinal,
		Ordinal: sample.Ordinal,
		Offset:  sample.Offset,
	}, nil
}

// RangeReader emits a contiguous range of records from a compressed FASTQ
// file as a lazy, forward-only sequence. Decompression stops with the block
// containing the last requested record.
type RangeReader struct {
	p    *parser.Parser
	bg   *bgzf.Reader
	end  uint64 // last ordinal to emit, inclusive
	done bool
}

// NewRangeReader prepares extraction of records start..end inclusive from
// the compressed stream rs. Bounds are validated against the index before
// any I/O: start must not exceed end, and end must be below the indexed
// record count. The seek point's within-block prefix and the records between
// the seek point and start are skipped with full framing validation, so
// corruption there surfaces as a *parser.FormatError rather than misaligned
// output.
func NewRangeReader(rs io.ReadSeeker, ix *fqindex.Index, table *bgzf.OffsetTable, start, end uint64) (*RangeReader, error) {
	if start > end {
		return nil, &RangeError{Reason: fmt.Sprintf("start %d exceeds end %d", start, end)}
	}
	if end >= ix.Total {
		return nil, &RangeError{Reason: fmt.Sprintf("end %d not below indexed count %d", end, ix.Total)}
	}

	loc, err := Resolve(ix, table, start)
	if err != nil {
		return nil, err
	}

	bg, err := bgzf.NewReaderAt(rs, loc.Voff)
	if err != nil {
		return nil, err
	}

	p := parser.NewAt(bg, loc.Ordinal, loc.Offset)
	if err := p.Skip(loc.Skip); err != nil {
		if err == io.EOF {
			return nil, truncated(p.Ordinal(), start)
		}
		return nil, err
	}

	return &RangeReader{p: p, bg: bg, end: end}, nil
}

// Next returns the next record of the range, with its true ordinal and
// global byte offsets, then io.EOF once the whole range has been emitted.
// A stream that ends before the range does is a *parser.FormatError; any
// error ends the sequence.
func (rr *RangeReader) Next() (*parser.Record, error) {
	if rr.done {
		return nil, io.EOF
	}

	rec, err := rr.p.Next()
	if err == io.EOF {
		rr.done = true
		return nil, truncated(rr.p.Ordinal(), rr.end)
	}
	if err != nil {
		rr.done = true
		return nil, err
	}
	if rec.Ordinal == rr.end {
		rr.done = true
	}
	return rec, nil
}

// WriteTo drains the remaining records' verbatim bytes to w. The copy is
// byte-identical to slicing the original uncompressed stream at the range's
// offsets. Records written before a failure stay written.
func (rr *RangeReader) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for {
		rec, err := rr.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		m, err := w.Write(rec.Raw)
		n += int64(m)
		if err != nil {
			return n, fmt.Errorf("writing record %d: %w", rec.Ordinal, err)
		}
	}
}

// BlocksRead returns how many compressed blocks have been decompressed.
func (rr *RangeReader) BlocksRead() uint64 { return rr.bg.BlocksRead() }

// truncated reports a stream that ended at record boundary `at` while the
// index promised records up to `want`.
func truncated(at, want uint64) error {
	return &parser.FormatError{
		Record: at,
		Reason: fmt.Sprintf("stream ended before record %d promised by the index", want),
	}
}
