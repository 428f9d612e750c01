package bgzf

import "fmt"

// MaxBlockSize caps both a block's total compressed size and its
// decompressed payload: BSIZE is a 16-bit field, and within-block offsets
// must fit in the low 16 bits of a virtual offset.
const MaxBlockSize = 1 << 16

// VirtualOffset packs a position in a BGZF container into a uint64: the
// starting byte offset of a block in the compressed file in the upper 48
// bits, a byte offset within that block's decompressed payload in the lower
// 16.
type VirtualOffset uint64

// MakeVirtualOffset builds a VirtualOffset, rejecting components that do not
// fit their fields.
func MakeVirtualOffset(compressed, within uint64) (VirtualOffset, error) {
	if compressed >= 1<<48 {
		return 0, fmt.Errorf("compressed offset %d exceeds 48 bits", compressed)
	}
	if within >= MaxBlockSize {
		return 0, fmt.Errorf("within-block offset %d exceeds block size limit", within)
	}
	return VirtualOffset(compressed<<16 | within), nil
}

// Compressed returns the block's starting byte offset in the compressed file.
func (v VirtualOffset) Compressed() uint64 { return uint64(v >> 16) }

// Within returns the byte offset inside the block's decompressed payload.
func (v VirtualOffset) Within() uint16 { return uint16(v) }

func (v VirtualOffset) String() string {
	return fmt.Sprintf("%d:%d", v.Compressed(), v.Within())
}
