package bgzf

import (
	"fmt"
	"io"
)

// Reader streams decompressed bytes starting at a virtual offset. Blocks are
// pulled lazily, at most one per Read call, so decompression cost tracks the
// bytes a caller actually consumes rather than the size of the file.
type Reader struct {
	br      *BlockReader
	buf     []byte // current block's payload
	pos     int    // read position within buf
	discard int    // within-block prefix of the first block still to drop
}

// NewReaderAt seeks rs to the block named by voff and returns a Reader over
// the decompressed stream from that virtual offset onward.
func NewReaderAt(rs io.ReadSeeker, voff VirtualOffset) (*Reader, error) {
	compressed := voff.Compressed()
	if _, err := rs.Seek(int64(compressed), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to block at offset %d: %w", compressed, err)
	}
	return &Reader{
		br:      NewBlockReader(rs, compressed),
		discard: int(voff.Within()),
	}, nil
}

// BlocksRead returns how many blocks have been decompressed so far.
func (r *Reader) BlocksRead() uint64 { return r.br.Blocks() }

func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for r.pos == len(r.buf) {
		blockOffset := r.br.Offset()
		buf, err := r.br.Next(r.buf)
		if err != nil {
			return 0, err
		}
		r.buf, r.pos = buf, 0
		if r.discard > 0 {
			if r.discard > len(buf) {
				return 0, &CorruptBlockError{
					Offset: blockOffset,
					Reason: fmt.Sprintf("within-block offset %d exceeds payload size %d", r.discard, len(buf)),
				}
			}
			r.pos = r.discard
			r.discard = 0
		}
	}
	n := copy(p, r.buf[r.pos:])
	r.pos += n
	return n, nil
}
