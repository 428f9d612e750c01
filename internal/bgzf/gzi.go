package bgzf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
)

// Offset pairs a block's starting positions in compressed and uncompressed
// space.
type Offset struct {
	Compressed   uint64
	Uncompressed uint64
}

// OffsetTable maps uncompressed offsets to the blocks containing them. An
// immutable snapshot: entries are strictly increasing in both fields and
// always start with block zero at (0, 0).
type OffsetTable struct {
	Entries []Offset
}

// FormatError reports a structurally invalid block-offset table.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "invalid block-offset table: " + e.Reason
}

// ReadOffsetTable parses a .gzi index as written by `bgzip -i`: an entry
// count followed by count (compressed, uncompressed) uint64 pairs, all
// little-endian. The external format omits block zero, so a (0, 0) entry is
// prepended. Structural violations, including truncation, return a
// *FormatError.
func ReadOffsetTable(r io.Reader) (*OffsetTable, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, tableReadFailure("entry count", err)
	}
	count := binary.LittleEndian.Uint64(buf)

	entries := []Offset{{0, 0}}
	prev := entries[0]
	ebuf := make([]byte, 16)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(r, ebuf); err != nil {
			return nil, tableReadFailure("entries", err)
		}
		e := Offset{
			Compressed:   binary.LittleEndian.Uint64(ebuf[0:8]),
			Uncompressed: binary.LittleEndian.Uint64(ebuf[8:16]),
		}
		if e.Compressed <= prev.Compressed || e.Uncompressed <= prev.Uncompressed {
			return nil, &FormatError{Reason: fmt.Sprintf("entry %d: offsets do not increase", i)}
		}
		if e.Compressed-prev.Compressed > MaxBlockSize {
			return nil, &FormatError{Reason: fmt.Sprintf("entry %d: compressed block size exceeds limit", i)}
		}
		if e.Uncompressed-prev.Uncompressed > MaxBlockSize {
			return nil, &FormatError{Reason: fmt.Sprintf("entry %d: decompressed block size exceeds limit", i)}
		}
		entries = append(entries, e)
		prev = e
	}

	var tail [1]byte
	if _, err := io.ReadFull(r, tail[:]); err != io.EOF {
		if err == nil {
			return nil, &FormatError{Reason: "trailing bytes after entries"}
		}
		return nil, fmt.Errorf("reading block-offset table: %w", err)
	}

	return &OffsetTable{Entries: entries}, nil
}

// LoadOffsetTable reads and validates the .gzi file at path.
func LoadOffsetTable(path string) (*OffsetTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadOffsetTable(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Locate returns the entry of the block containing uncompressed offset u:
// the greatest entry whose Uncompressed does not exceed u. Always defined,
// since every table starts with block zero.
func (t *OffsetTable) Locate(u uint64) Offset {
	i := sort.Search(len(t.Entries), func(i int) bool {
		return t.Entries[i].Uncompressed > u
	})
	return t.Entries[i-1]
}

// tableReadFailure maps unexpected end-of-data to a FormatError and wraps
// any other read error.
func tableReadFailure(section string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &FormatError{Reason: "truncated " + section}
	}
	return fmt.Errorf("reading block-offset table %s: %w", section, err)
}
