// fqslice builds sampled record indexes over FASTQ streams and extracts
// arbitrary record ranges from BGZF-compressed FASTQ files without
// decompressing them from the start.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/vertti/fqslice/internal/bgzf"
	"github.com/vertti/fqslice/internal/extract"
	"github.com/vertti/fqslice/internal/fqindex"
)

var version = "dev"

const (
	exitSuccess = 0
	exitError   = 1
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitError
	}

	switch args[0] {
	case "index":
		return runIndex(args[1:])
	case "extract":
		return runExtract(args[1:])
	case "verify":
		return runVerify(args[1:])
	case "version", "-version", "--version":
		fmt.Printf("fqslice version %s\n", version)
		return exitSuccess
	case "help", "-h", "-help", "--help":
		usage()
		return exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n\n", args[0])
		usage()
		return exitError
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `fqslice - random access into block-compressed FASTQ

Usage:
  fqslice index   [-n interval] [-no-stdout] -o reads.fqi [reads.fastq[.gz]]
  fqslice extract -s start [-e end] [options] reads.fastq.gz
  fqslice verify  [options] reads.fastq.gz

Commands:
  index    Scan FASTQ, write a sampled record index, and tee the
           uncompressed bytes to stdout for piping into 'bgzip -i'.
  extract  Emit records start..end (0-based, inclusive) from a
           BGZF-compressed FASTQ file.
  verify   Cross-check an index and block-offset table against the
           compressed data they describe.

Examples:
  fqslice index -n 1000 -o reads.fqi reads.fastq | bgzip -i > reads.fastq.gz
  fqslice extract -s 100 -e 102 reads.fastq.gz
  fqslice verify reads.fastq.gz

Run 'fqslice <command> -h' for command options.
`)
}

func logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return exitError
}

func runIndex(args []string) int {
	fs := flag.NewFlagSet("fqslice index", flag.ExitOnError)
	interval := fs.Uint64("n", fqindex.DefaultInterval, "sampling interval in records")
	out := fs.String("o", "", "index output path (required)")
	noStdout := fs.Bool("no-stdout", false, "do not tee the uncompressed stream to stdout")
	_ = fs.Parse(args)

	if *out == "" {
		fmt.Fprintln(os.Stderr, "error: -o index path is required")
		fs.Usage()
		return exitError
	}

	input, cleanup, err := openInput(fs.Arg(0))
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	var passthrough io.Writer
	var flush func() error
	if !*noStdout {
		bw := bufio.NewWriterSize(os.Stdout, 1<<20)
		passthrough, flush = bw, bw.Flush
	}

	ix, err := fqindex.Build(input, passthrough, *interval)
	if err != nil {
		return fail(err)
	}
	if flush != nil {
		if err := flush(); err != nil {
			return fail(fmt.Errorf("flushing pass-through output: %w", err))
		}
	}
	if err := ix.WriteFile(*out); err != nil {
		return fail(err)
	}

	logger().Info("index committed",
		"path", *out,
		"records", ix.Total,
		"samples", len(ix.Entries),
		"interval", ix.Interval)
	return exitSuccess
}

func runExtract(args []string) int {
	fs := flag.NewFlagSet("fqslice extract", flag.ExitOnError)
	start := fs.Int64("s", -1, "first record ordinal, 0-based (default: same as -e)")
	end := fs.Int64("e", -1, "last record ordinal, inclusive (default: same as -s)")
	idxPath := fs.String("i", "", "sampled index path (default: <input>.fqi)")
	gziPath := fs.String("g", "", "block-offset table path (default: <input>.gzi)")
	outPath := fs.String("o", "", "output file (default: stdout)")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "error: exactly one compressed input file is required")
		fs.Usage()
		return exitError
	}
	input := fs.Arg(0)

	if *start < 0 && *end < 0 {
		fmt.Fprintln(os.Stderr, "error: at least one of -s or -e is required")
		fs.Usage()
		return exitError
	}
	if *start < 0 {
		*start = *end
	}
	if *end < 0 {
		*end = *start
	}

	ix, table, err := loadTables(input, *idxPath, *gziPath)
	if err != nil {
		return fail(err)
	}

	f, err := os.Open(input) //nolint:gosec // CLI tool needs to open user-specified files
	if err != nil {
		return fail(fmt.Errorf("cannot open input: %w", err))
	}
	defer func() { _ = f.Close() }()

	output, cleanup, err := openOutput(*outPath)
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	rr, err := extract.NewRangeReader(f, ix, table, uint64(*start), uint64(*end))
	if err != nil {
		return fail(err)
	}
	if _, err := rr.WriteTo(output); err != nil {
		return fail(err)
	}
	return exitSuccess
}

func runVerify(args []string) int {
	fs := flag.NewFlagSet("fqslice verify", flag.ExitOnError)
	idxPath := fs.String("i", "", "sampled index path (default: <input>.fqi)")
	gziPath := fs.String("g", "", "block-offset table path (default: <input>.gzi)")
	workers := fs.Int("w", 0, "extraction workers (default: NumCPU)")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "error: exactly one compressed input file is required")
		fs.Usage()
		return exitError
	}
	input := fs.Arg(0)

	ix, table, err := loadTables(input, *idxPath, *gziPath)
	if err != nil {
		return fail(err)
	}

	f, err := os.Open(input) //nolint:gosec // CLI tool needs to open user-specified files
	if err != nil {
		return fail(fmt.Errorf("cannot open input: %w", err))
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fail(fmt.Errorf("cannot stat input: %w", err))
	}

	if err := extract.Verify(f, info.Size(), ix, table, *workers); err != nil {
		return fail(err)
	}

	logger().Info("verify passed",
		"path", input,
		"records", ix.Total,
		"samples", len(ix.Entries),
		"blocks", len(table.Entries))
	return exitSuccess
}

// loadTables opens the sampled index and the block-offset table, deriving
// their paths from the input file when not given explicitly, the way the
// original htslib tooling lays them out next to the data.
func loadTables(input, idxPath, gziPath string) (*fqindex.Index, *bgzf.OffsetTable, error) {
	if idxPath == "" {
		idxPath = input + ".fqi"
	}
	if gziPath == "" {
		gziPath = input + ".gzi"
	}

	ix, err := fqindex.ReadFile(idxPath)
	if err != nil {
		return nil, nil, err
	}
	table, err := bgzf.LoadOffsetTable(gziPath)
	if err != nil {
		return nil, nil, err
	}
	return ix, table, nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return wrapInputMaybeGzip(path, os.Stdin, func() {})
	}

	f, err := os.Open(path) //nolint:gosec // CLI tool needs to open user-specified files
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open input: %w", err)
	}
	return wrapInputMaybeGzip(path, f, func() { _ = f.Close() })
}

// wrapInputMaybeGzip transparently gunzips input named *.gz or starting with
// the gzip magic, so indexes can be rebuilt straight from an already
// compressed file.
func wrapInputMaybeGzip(path string, in io.Reader, closeInput func()) (io.Reader, func(), error) {
	br := bufio.NewReaderSize(in, 1<<20)
	hasGzipMagic, err := inputHasGzipMagic(br)
	if err != nil {
		closeInput()
		return nil, nil, fmt.Errorf("cannot inspect input: %w", err)
	}

	if strings.HasSuffix(strings.ToLower(path), ".gz") || hasGzipMagic {
		gz, err := gzip.NewReader(br)
		if err != nil {
			closeInput()
			return nil, nil, fmt.Errorf("cannot open gzip input: %w", err)
		}
		return gz, func() {
			_ = gz.Close()
			closeInput()
		}, nil
	}

	return br, closeInput, nil
}

func inputHasGzipMagic(br *bufio.Reader) (bool, error) {
	header, err := br.Peek(2)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return len(header) == 2 && header[0] == 0x1f && header[1] == 0x8b, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		bw := bufio.NewWriterSize(os.Stdout, 1<<20)
		return bw, func() { _ = bw.Flush() }, nil
	}

	f, err := os.Create(path) //nolint:gosec // CLI tool needs to create user-specified files
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create output: %w", err)
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	return bw, func() { _ = bw.Flush(); _ = f.Close() }, nil
}
