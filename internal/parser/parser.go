// Package parser provides FASTQ parsing with exact byte-offset tracking.
package parser

import (
	"bufio"
	"fmt"
	"io"
)

// Record represents a single FASTQ record.
//
// Raw holds the verbatim bytes of the record as they appeared in the input,
// line terminators included; Start and End delimit those bytes in the
// uncompressed stream. Header, Sequence, PlusLine and Quality are content
// views into Raw with lead characters and terminators stripped. Records are
// immutable once returned.
type Record struct {
	Ordinal  uint64 // 0-based position in the stream
	Start    uint64 // byte offset of the leading '@'
	End      uint64 // byte offset one past the record's last byte
	Raw      []byte // verbatim bytes [Start, End)
	Header   []byte // header line without the leading '@'
	Sequence []byte // DNA sequence (A, C, G, T, N)
	PlusLine []byte // separator payload after the '+', usually empty
	Quality  []byte // quality scores (Phred+33 encoded)
}

// FormatError reports a malformed or truncated FASTQ record.
type FormatError struct {
	Record uint64 // ordinal of the offending record
	Reason string // the framing rule that was broken
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid FASTQ: record %d: %s", e.Record, e.Reason)
}

// Parser reads FASTQ records from an input stream. The record sequence is
// forward-only and ends with io.EOF exactly on a record boundary; a stream
// that ends mid-record fails with a FormatError instead.
type Parser struct {
	reader  *bufio.Reader
	tee     io.Writer // receives every consumed byte verbatim, may be nil
	ordinal uint64    // ordinal of the next record
	offset  uint64    // stream offset of the next unread byte
	scratch []byte    // reusable buffer for Skip
}

// New creates a new FASTQ parser.
func New(r io.Reader) *Parser {
	return &Parser{reader: bufio.NewReaderSize(r, 1<<20)} // 1MB buffer
}

// NewTee creates a parser that copies every byte it consumes to sink before
// the record containing it is validated. The copy is byte-exact: line
// terminators pass through unmodified, and the bytes of a record that later
// fails validation have already been forwarded.
func NewTee(r io.Reader, sink io.Writer) *Parser {
	p := New(r)
	p.tee = sink
	return p
}

// NewAt creates a parser whose ordinal and offset counters start at the
// given values instead of zero. Used to realign a decompressed substream
// that begins at a known record boundary, so records and errors carry true
// stream positions.
func NewAt(r io.Reader, ordinal, offset uint64) *Parser {
	p := New(r)
	p.ordinal = ordinal
	p.offset = offset
	return p
}

// Offset returns the stream offset of the next unread byte.
func (p *Parser) Offset() uint64 { return p.offset }

// Ordinal returns the ordinal of the next record.
func (p *Parser) Ordinal() uint64 { return p.ordinal }

// Next reads and returns the next FASTQ record.
// Returns io.EOF when the stream ends exactly on a record boundary.
func (p *Parser) Next() (*Record, error) {
	start := p.offset
	ordinal := p.ordinal

	raw, bounds, err := p.next(nil)
	if err != nil {
		return nil, err
	}

	header := raw[bounds[0][0]:bounds[0][1]]
	plus := raw[bounds[2][0]:bounds[2][1]]
	return &Record{
		Ordinal:  ordinal,
		Start:    start,
		End:      p.offset,
		Raw:      raw,
		Header:   header[1:], // strip leading @
		Sequence: raw[bounds[1][0]:bounds[1][1]],
		PlusLine: plus[1:], // strip leading +
		Quality:  raw[bounds[3][0]:bounds[3][1]],
	}, nil
}

// Skip advances past n records, validating framing but retaining nothing.
// Returns io.EOF if the stream ends on a record boundary before n records
// were skipped.
func (p *Parser) Skip(n uint64) error {
	for ; n > 0; n-- {
		buf, _, err := p.next(p.scratch[:0])
		if err != nil {
			return err
		}
		p.scratch = buf
	}
	return nil
}

// next reads one record's raw bytes, appending to buf, and validates its
// framing. bounds holds the [lineStart, contentEnd) of each of the 4 lines
// within the returned buffer.
func (p *Parser) next(buf []byte) ([]byte, [4][2]int, error) {
	ordinal := p.ordinal
	var bounds [4][2]int

	for i := range bounds {
		lineStart := len(buf)
		var contentEnd int
		var err error
		buf, contentEnd, err = p.appendLine(buf)
		if err == io.EOF {
			if i == 0 {
				return buf, bounds, io.EOF
			}
			return buf, bounds, &FormatError{
				Record: ordinal,
				Reason: fmt.Sprintf("truncated record: stream ended after %d of 4 lines", i),
			}
		}
		if err != nil {
			return buf, bounds, err
		}
		bounds[i] = [2]int{lineStart, contentEnd}
	}

	header := buf[bounds[0][0]:bounds[0][1]]
	if len(header) == 0 || header[0] != '@' {
		return buf, bounds, &FormatError{Record: ordinal, Reason: "header line must start with '@'"}
	}
	plus := buf[bounds[2][0]:bounds[2][1]]
	if len(plus) == 0 || plus[0] != '+' {
		return buf, bounds, &FormatError{Record: ordinal, Reason: "separator line must start with '+'"}
	}
	seqLen := bounds[1][1] - bounds[1][0]
	qualLen := bounds[3][1] - bounds[3][0]
	if seqLen != qualLen {
		return buf, bounds, &FormatError{Record: ordinal, Reason: "sequence and quality lengths must match"}
	}

	p.ordinal++
	return buf, bounds, nil
}

// appendLine reads one line including its terminator, appending the raw
// bytes to buf and forwarding them to the tee. contentEnd is the index just
// past the line content, excluding the trailing "\n" or "\r\n". io.EOF is
// returned only when no bytes remain at all; a final line without a
// terminator is returned as a complete line.
func (p *Parser) appendLine(buf []byte) (_ []byte, contentEnd int, err error) {
	lineStart := len(buf)

	for {
		chunk, err := p.reader.ReadSlice('\n')
		if len(chunk) > 0 {
			if p.tee != nil {
				if _, werr := p.tee.Write(chunk); werr != nil {
					return buf, 0, fmt.Errorf("writing pass-through output: %w", werr)
				}
			}
			p.offset += uint64(len(chunk))
			buf = append(buf, chunk...)
		}
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			if len(buf) == lineStart {
				return buf, lineStart, io.EOF
			}
			return buf, len(buf), nil
		}
		return buf, 0, err
	}

	contentEnd = len(buf) - 1 // strip '\n'
	if contentEnd > lineStart && buf[contentEnd-1] == '\r' {
		contentEnd-- // strip '\r' for Windows line endings
	}
	return buf, contentEnd, nil
}
