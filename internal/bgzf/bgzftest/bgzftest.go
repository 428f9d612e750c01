// Package bgzftest builds real BGZF containers and .gzi indexes for tests.
// Production code only reads the format; fixtures need to write it.
package bgzftest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/klauspost/compress/flate"

	"github.com/vertti/fqslice/internal/bgzf"
)

const (
	headerSize = 18
	footerSize = 8
)

// EOFBlock is the canonical empty block terminating every BGZF file.
var EOFBlock = [28]byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00,
	0x00, 0xff, 0x06, 0x00, 0x42, 0x43, 0x02, 0x00,
	0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// Compress packs data into a BGZF container holding at most blockPayloadSize
// decompressed bytes per block, terminated by the EOF marker block. The
// returned entries are the starting offsets of every data block, block zero
// included; the EOF marker gets no entry. Panics on a payload size outside
// the format's limits.
func Compress(data []byte, blockPayloadSize int) ([]byte, []bgzf.Offset) {
	if blockPayloadSize <= 0 || blockPayloadSize > bgzf.MaxBlockSize {
		panic("bgzftest: block payload size out of range")
	}

	entries := []bgzf.Offset{{Compressed: 0, Uncompressed: 0}}
	var out []byte
	var uncompressed uint64
	for chunk := data; len(chunk) > 0; {
		n := min(blockPayloadSize, len(chunk))
		out = appendBlock(out, chunk[:n])
		uncompressed += uint64(n)
		chunk = chunk[n:]
		if len(chunk) > 0 {
			entries = append(entries, bgzf.Offset{
				Compressed:   uint64(len(out)),
				Uncompressed: uncompressed,
			})
		}
	}
	out = append(out, EOFBlock[:]...)
	return out, entries
}

// MarshalGZI serializes entries in the external .gzi encoding, which omits
// block zero: a leading (0, 0) entry is skipped.
func MarshalGZI(entries []bgzf.Offset) []byte {
	if len(entries) > 0 && entries[0] == (bgzf.Offset{}) {
		entries = entries[1:]
	}
	out := make([]byte, 8, 8+16*len(entries))
	binary.LittleEndian.PutUint64(out, uint64(len(entries)))
	var ebuf [16]byte
	for _, e := range entries {
		binary.LittleEndian.PutUint64(ebuf[0:8], e.Compressed)
		binary.LittleEndian.PutUint64(ebuf[8:16], e.Uncompressed)
		out = append(out, ebuf[:]...)
	}
	return out
}

func appendBlock(dst []byte, payload []byte) []byte {
	var body bytes.Buffer
	fw, err := flate.NewWriter(&body, flate.DefaultCompression)
	if err != nil {
		panic("bgzftest: " + err.Error())
	}
	if _, err := fw.Write(payload); err != nil {
		panic("bgzftest: " + err.Error())
	}
	if err := fw.Close(); err != nil {
		panic("bgzftest: " + err.Error())
	}

	blockSize := headerSize + body.Len() + footerSize
	if blockSize > bgzf.MaxBlockSize {
		panic(fmt.Sprintf("bgzftest: %d payload bytes compress to a %d byte block, over the format limit", len(payload), blockSize))
	}

	var hdr [headerSize]byte
	hdr[0], hdr[1], hdr[2], hdr[3] = 0x1f, 0x8b, 8, 4
	hdr[9] = 0xff // OS unknown
	binary.LittleEndian.PutUint16(hdr[10:12], 6)
	hdr[12], hdr[13] = 'B', 'C'
	binary.LittleEndian.PutUint16(hdr[14:16], 2)
	binary.LittleEndian.PutUint16(hdr[16:18], uint16(blockSize-1))
	dst = append(dst, hdr[:]...)
	dst = append(dst, body.Bytes()...)

	var footer [footerSize]byte
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(payload)))
	return append(dst, footer[:]...)
}
