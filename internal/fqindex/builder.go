package fqindex

import (
	"errors"
	"io"

	"github.com/vertti/fqslice/internal/parser"
)

// DefaultInterval is the sampling interval used when none is given.
const DefaultInterval = 100000

// Builder accumulates sampled entries over one forward scan of a FASTQ
// stream. Entries live in memory until Finish; nothing is written until the
// whole stream has validated.
type Builder struct {
	interval uint64
	entries  []Entry
	total    uint64
}

// NewBuilder returns a Builder sampling every interval-th record.
func NewBuilder(interval uint64) (*Builder, error) {
	if interval == 0 {
		return nil, errors.New("sampling interval must be positive")
	}
	return &Builder{interval: interval}, nil
}

// Observe records one scanned record. Records must arrive in ordinal order
// starting from zero; each record whose ordinal is a multiple of the
// sampling interval contributes an entry.
func (b *Builder) Observe(rec *parser.Record) {
	if rec.Ordinal%b.interval == 0 {
		b.entries = append(b.entries, Entry{Ordinal: rec.Ordinal, Offset: rec.Start})
	}
	b.total++
}

// Finish freezes the observed stream into an immutable Index.
func (b *Builder) Finish() *Index {
	return &Index{Interval: b.interval, Total: b.total, Entries: b.entries}
}

// Build scans FASTQ from r to completion and returns its sampled index.
// When passthrough is non-nil, every consumed byte is copied to it verbatim
// ahead of validation, so the caller can recompress the stream in the same
// pass. A malformed stream aborts the build; bytes already forwarded to
// passthrough stay forwarded.
func Build(r io.Reader, passthrough io.Writer, interval uint64) (*Index, error) {
	b, err := NewBuilder(interval)
	if err != nil {
		return nil, err
	}

	var p *parser.Parser
	if passthrough != nil {
		p = parser.NewTee(r, passthrough)
	} else {
		p = parser.New(r)
	}

	for {
		rec, err := p.Next()
		if err == io.EOF {
			return b.Finish(), nil
		}
		if err != nil {
			return nil, err
		}
		b.Observe(rec)
	}
}
