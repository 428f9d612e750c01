// Package fqindex defines the FQI sampled record index for FASTQ streams.
//
// An index samples every N-th record of a FASTQ stream, storing the exact
// byte offset of each sampled record in the uncompressed stream. Offsets are
// later translated to compressed positions through a BGZF block-offset table,
// so an index stays valid for any recompression of the same bytes.
package fqindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Magic bytes identifying the FQI format.
var Magic = [4]byte{'F', 'Q', 'I', 0x00}

// Supported file format versions.
const (
	Version1 uint8 = 1

	CurrentVersion = Version1
)

// Entry is one sampled record: its 0-based ordinal and the byte offset of
// its first byte in the uncompressed stream.
type Entry struct {
	Ordinal uint64
	Offset  uint64
}

// Index is an immutable snapshot of sampled record positions. Total is the
// record count of the indexed stream; Entries holds one sample per Interval
// records, in ordinal order, starting at ordinal 0.
type Index struct {
	Interval uint64
	Total    uint64
	Entries  []Entry
}

// FormatError reports a structurally invalid index.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "invalid index: " + e.Reason
}

// Locate returns the sampled entry with the greatest ordinal not exceeding
// target. ok is false when target is not below the indexed record count.
func (ix *Index) Locate(target uint64) (Entry, bool) {
	if target >= ix.Total || len(ix.Entries) == 0 {
		return Entry{}, false
	}
	i := sort.Search(len(ix.Entries), func(i int) bool {
		return ix.Entries[i].Ordinal > target
	})
	return ix.Entries[i-1], true
}

// entryCount is the number of entries a well-formed index carries.
func entryCount(total, interval uint64) uint64 {
	if total == 0 {
		return 0
	}
	return (total-1)/interval + 1
}

// Write serializes the index to w.
func (ix *Index) Write(w io.Writer) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	buf := make([]byte, 17)
	buf[0] = CurrentVersion
	binary.LittleEndian.PutUint64(buf[1:9], ix.Interval)
	binary.LittleEndian.PutUint64(buf[9:17], ix.Total)
	if _, err := w.Write(buf); err != nil {
		return err
	}

	ebuf := make([]byte, 16)
	for _, e := range ix.Entries {
		binary.LittleEndian.PutUint64(ebuf[0:8], e.Ordinal)
		binary.LittleEndian.PutUint64(ebuf[8:16], e.Offset)
		if _, err := w.Write(ebuf); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile commits the index to path atomically. Bytes go to a temporary
// sibling which is synced, closed, and renamed into place; no failure mode
// leaves a partial file visible under the final name.
func (ix *Index) WriteFile(path string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err = ix.Write(w); err != nil {
		tmp.Close()
		return fmt.Errorf("writing index: %w", err)
	}
	if err = w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing index: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing index: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing index: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("committing index: %w", err)
	}
	return nil
}

// Read parses and validates a serialized index. Structural violations,
// including truncation, return a *FormatError.
func Read(r io.Reader) (*Index, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, readFailure("header", err)
	}
	if magic != Magic {
		return nil, &FormatError{Reason: "bad magic bytes: not an FQI index"}
	}

	buf := make([]byte, 17)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, readFailure("header", err)
	}
	if v := buf[0]; v != Version1 {
		return nil, &FormatError{Reason: fmt.Sprintf("unsupported version %d", v)}
	}
	interval := binary.LittleEndian.Uint64(buf[1:9])
	if interval == 0 {
		return nil, &FormatError{Reason: "sampling interval must be positive"}
	}
	total := binary.LittleEndian.Uint64(buf[9:17])

	count := entryCount(total, interval)
	var entries []Entry
	var prevOffset uint64
	ebuf := make([]byte, 16)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(r, ebuf); err != nil {
			return nil, readFailure("entries", err)
		}
		e := Entry{
			Ordinal: binary.LittleEndian.Uint64(ebuf[0:8]),
			Offset:  binary.LittleEndian.Uint64(ebuf[8:16]),
		}
		if want := i * interval; e.Ordinal != want {
			return nil, &FormatError{Reason: fmt.Sprintf("entry %d: ordinal %d, want %d", i, e.Ordinal, want)}
		}
		if i > 0 && e.Offset <= prevOffset {
			return nil, &FormatError{Reason: fmt.Sprintf("entry %d: offset %d does not increase", i, e.Offset)}
		}
		prevOffset = e.Offset
		entries = append(entries, e)
	}

	var tail [1]byte
	if _, err := io.ReadFull(r, tail[:]); err != io.EOF {
		if err == nil {
			return nil, &FormatError{Reason: "trailing bytes after entries"}
		}
		return nil, fmt.Errorf("reading index: %w", err)
	}

	return &Index{Interval: interval, Total: total, Entries: entries}, nil
}

// ReadFile loads and validates the index at path.
func ReadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ix, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ix, nil
}

// readFailure maps unexpected end-of-data to a FormatError and wraps any
// other read error.
func readFailure(section string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &FormatError{Reason: "truncated " + section}
	}
	return fmt.Errorf("reading index %s: %w", section, err)
}
