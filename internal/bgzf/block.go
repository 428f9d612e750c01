// Package bgzf reads BGZF containers: gzip-compatible files made of
// independently deflated blocks, addressable by virtual offsets for random
// access. Only as many blocks as a caller consumes are ever decompressed.
package bgzf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
)

const (
	gzipID1     = 0x1f
	gzipID2     = 0x8b
	gzipDeflate = 8
	gzipFEXTRA  = 1 << 2

	// Fixed BGZF header: 10 gzip bytes, XLEN, and the 6-byte BC subfield
	// carrying BSIZE.
	headerSize = 18
	footerSize = 8
)

// CorruptBlockError reports a malformed BGZF block, identified by the byte
// offset in the compressed file where the block starts.
type CorruptBlockError struct {
	Offset uint64
	Reason string
}

func (e *CorruptBlockError) Error() string {
	return fmt.Sprintf("corrupt bgzf block at offset %d: %s", e.Offset, e.Reason)
}

// BlockReader decompresses BGZF blocks one at a time from a compressed
// stream. Reads from the underlying reader are exact: no byte beyond the
// last requested block is consumed.
type BlockReader struct {
	r      io.Reader
	offset uint64 // compressed offset of the next unread block
	blocks uint64 // blocks decompressed so far

	hdr  [headerSize]byte
	body []byte // compressed body + footer, reused across blocks
	cr   bytes.Reader
	fr   io.ReadCloser // flate reader, reused via flate.Resetter
}

// NewBlockReader reads blocks from r. baseOffset is the compressed file
// offset r is positioned at; it seeds the offsets reported in errors.
func NewBlockReader(r io.Reader, baseOffset uint64) *BlockReader {
	return &BlockReader{r: r, offset: baseOffset}
}

// Offset returns the compressed offset of the next unread block.
func (br *BlockReader) Offset() uint64 { return br.offset }

// Blocks returns how many blocks have been decompressed.
func (br *BlockReader) Blocks() uint64 { return br.blocks }

// Next reads and decompresses one block, appending nothing: the returned
// payload reuses dst's capacity when possible. A stream ending cleanly
// before any header byte returns io.EOF; ending inside a block is a
// *CorruptBlockError. The payload is empty for the EOF marker block.
func (br *BlockReader) Next(dst []byte) ([]byte, error) {
	blockOffset := br.offset

	if _, err := io.ReadFull(br.r, br.hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, &CorruptBlockError{Offset: blockOffset, Reason: "truncated block header"}
		}
		return nil, fmt.Errorf("reading block header at offset %d: %w", blockOffset, err)
	}

	h := &br.hdr
	switch {
	case h[0] != gzipID1 || h[1] != gzipID2:
		return nil, &CorruptBlockError{Offset: blockOffset, Reason: "bad gzip magic"}
	case h[2] != gzipDeflate:
		return nil, &CorruptBlockError{Offset: blockOffset, Reason: fmt.Sprintf("compression method %d, want deflate", h[2])}
	case h[3]&gzipFEXTRA == 0:
		return nil, &CorruptBlockError{Offset: blockOffset, Reason: "FEXTRA flag not set"}
	case binary.LittleEndian.Uint16(h[10:12]) != 6 || h[12] != 'B' || h[13] != 'C' || binary.LittleEndian.Uint16(h[14:16]) != 2:
		return nil, &CorruptBlockError{Offset: blockOffset, Reason: "missing BC subfield"}
	}

	blockSize := int(binary.LittleEndian.Uint16(h[16:18])) + 1
	bodyLen := blockSize - headerSize - footerSize
	if bodyLen <= 0 {
		return nil, &CorruptBlockError{Offset: blockOffset, Reason: fmt.Sprintf("declared block size %d too small", blockSize)}
	}

	need := bodyLen + footerSize
	if cap(br.body) < need {
		br.body = make([]byte, need)
	}
	buf := br.body[:need]
	if _, err := io.ReadFull(br.r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, &CorruptBlockError{Offset: blockOffset, Reason: "truncated block body"}
		}
		return nil, fmt.Errorf("reading block body at offset %d: %w", blockOffset, err)
	}
	footer := buf[bodyLen:]
	isize := binary.LittleEndian.Uint32(footer[4:8])
	if isize > MaxBlockSize {
		return nil, &CorruptBlockError{Offset: blockOffset, Reason: fmt.Sprintf("declared payload size %d exceeds block limit", isize)}
	}

	br.cr.Reset(buf[:bodyLen])
	if br.fr == nil {
		br.fr = flate.NewReader(&br.cr)
	} else if err := br.fr.(flate.Resetter).Reset(&br.cr, nil); err != nil {
		return nil, fmt.Errorf("resetting inflater: %w", err)
	}

	if cap(dst) < int(isize) {
		dst = make([]byte, isize)
	} else {
		dst = dst[:isize]
	}
	if _, err := io.ReadFull(br.fr, dst); err != nil {
		return nil, &CorruptBlockError{Offset: blockOffset, Reason: fmt.Sprintf("inflate: %v", err)}
	}
	var probe [1]byte
	if n, err := br.fr.Read(probe[:]); n != 0 || err != io.EOF {
		return nil, &CorruptBlockError{Offset: blockOffset, Reason: "payload size disagrees with ISIZE"}
	}
	if got, want := crc32.ChecksumIEEE(dst), binary.LittleEndian.Uint32(footer[0:4]); got != want {
		return nil, &CorruptBlockError{Offset: blockOffset, Reason: fmt.Sprintf("checksum mismatch: got %08x, want %08x", got, want)}
	}

	br.offset += uint64(blockSize)
	br.blocks++
	return dst, nil
}
