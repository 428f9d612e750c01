// fqgen writes synthetic FASTQ files for benchmarking the index/extract
// pipeline. Output is fully determined by the seed, so fixtures are
// reproducible across runs and machines.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		count      = flag.Uint64("n", 100000, "number of records to generate")
		readLen    = flag.Int("len", 100, "sequence length per record")
		seed       = flag.Uint64("seed", 42, "random seed for reproducibility")
		outputFile = flag.String("o", "", "output FASTQ file (default: stdout)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `fqgen - Generate synthetic FASTQ data

Writes deterministic random records: uniform bases with an occasional N,
plausible quality scores, sequential read names.

Usage:
  fqgen -n 1000000 -len 150 -o reads.fastq
  fqgen -n 250 | fqslice index -n 100 -o reads.fqi | bgzip -i > reads.fastq.gz

Options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if *readLen <= 0 {
		return fmt.Errorf("sequence length must be positive, got %d", *readLen)
	}

	writer, cleanup, err := openOutput(*outputFile)
	if err != nil {
		return err
	}
	defer cleanup()

	//nolint:gosec // intentionally using math/rand for reproducibility, not security
	rng := rand.New(rand.NewPCG(*seed, *seed))

	return generate(writer, *count, *readLen, rng)
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		bw := bufio.NewWriterSize(os.Stdout, 1<<20)
		return bw, func() { _ = bw.Flush() }, nil
	}

	f, err := os.Create(path) //nolint:gosec // CLI tool needs to create user-specified files
	if err != nil {
		return nil, nil, fmt.Errorf("creating output: %w", err)
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	return bw, func() { _ = bw.Flush(); _ = f.Close() }, nil
}

func generate(w io.Writer, count uint64, readLen int, rng *rand.Rand) error {
	bw := bufio.NewWriter(w)

	seq := make([]byte, readLen)
	qual := make([]byte, readLen)
	for i := uint64(0); i < count; i++ {
		fillRead(seq, qual, rng)
		if _, err := fmt.Fprintf(bw, "@fqgen:%d:%d\n%s\n+\n%s\n", i/10000, i%10000, seq, qual); err != nil {
			return fmt.Errorf("writing record %d: %w", i, err)
		}
	}

	return bw.Flush()
}

// fillRead fills one sequence/quality pair in place. Roughly 1 in 200 bases
// is an N with a floor-quality score; everything else gets a high Phred+33
// score with mild jitter, which is what real short-read data compresses
// like.
func fillRead(seq, qual []byte, rng *rand.Rand) {
	const bases = "ACGT"
	for j := range seq {
		if rng.IntN(200) == 0 {
			seq[j] = 'N'
			qual[j] = '!'
			continue
		}
		seq[j] = bases[rng.IntN(4)]
		qual[j] = byte('I' - rng.IntN(9))
	}
}
