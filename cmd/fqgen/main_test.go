package main

import (
	"bytes"
	"io"
	"math/rand/v2"
	"testing"

	"github.com/vertti/fqslice/internal/parser"
)

func TestGenerateIsDeterministic(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	if err := generate(&a, 100, 50, rand.New(rand.NewPCG(7, 7))); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := generate(&b, 100, 50, rand.New(rand.NewPCG(7, 7))); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("same seed must produce identical output")
	}
}

func TestGenerateProducesValidFASTQ(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := generate(&buf, 250, 80, rand.New(rand.NewPCG(1, 1))); err != nil {
		t.Fatalf("generate: %v", err)
	}

	p := parser.New(&buf)
	var n uint64
	for {
		rec, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("record %d: %v", n, err)
		}
		if len(rec.Sequence) != 80 {
			t.Fatalf("record %d: sequence length %d, want 80", rec.Ordinal, len(rec.Sequence))
		}
		n++
	}
	if n != 250 {
		t.Fatalf("parsed %d records, want 250", n)
	}
}
