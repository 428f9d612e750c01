package bgzf_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertti/fqslice/internal/bgzf"
	"github.com/vertti/fqslice/internal/bgzf/bgzftest"
)

func TestReaderFromStart(t *testing.T) {
	t.Parallel()

	data := pattern(8 * 1024)
	container, _ := bgzftest.Compress(data, 1024)

	r, err := bgzf.NewReaderAt(bytes.NewReader(container), 0)
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReaderFromVirtualOffset(t *testing.T) {
	t.Parallel()

	data := pattern(8 * 1024)
	container, entries := bgzftest.Compress(data, 1024)
	table := &bgzf.OffsetTable{Entries: entries}

	// Targets inside blocks, on block boundaries, and at the last byte.
	for _, u := range []uint64{0, 1, 1023, 1024, 3000, 4095, 4096, 8191} {
		e := table.Locate(u)
		voff, err := bgzf.MakeVirtualOffset(e.Compressed, u-e.Uncompressed)
		require.NoError(t, err)

		r, err := bgzf.NewReaderAt(bytes.NewReader(container), voff)
		require.NoError(t, err)

		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, data[u:], got, "offset %d", u)
	}
}

func TestReaderPullsBlocksLazily(t *testing.T) {
	t.Parallel()

	data := pattern(100 * 1024)
	container, _ := bgzftest.Compress(data, 1024)

	r, err := bgzf.NewReaderAt(bytes.NewReader(container), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), r.BlocksRead())

	buf := make([]byte, 1024)
	_, err = io.ReadFull(r, buf[:1])
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.BlocksRead())

	_, err = io.ReadFull(r, buf[:1023])
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.BlocksRead())

	_, err = io.ReadFull(r, buf[:1])
	require.NoError(t, err)
	assert.Equal(t, uint64(2), r.BlocksRead())
}

func TestReaderDiscardWholeBlock(t *testing.T) {
	t.Parallel()

	// A within-block offset equal to the block's payload size addresses the
	// first byte of the next block.
	data := pattern(2048)
	container, _ := bgzftest.Compress(data, 1024)

	voff, err := bgzf.MakeVirtualOffset(0, 1024)
	require.NoError(t, err)

	r, err := bgzf.NewReaderAt(bytes.NewReader(container), voff)
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data[1024:], got)
}

func TestReaderWithinBeyondPayload(t *testing.T) {
	t.Parallel()

	data := pattern(100)
	container, _ := bgzftest.Compress(data, 1024)

	voff, err := bgzf.MakeVirtualOffset(0, 500)
	require.NoError(t, err)

	r, err := bgzf.NewReaderAt(bytes.NewReader(container), voff)
	require.NoError(t, err)

	_, err = io.ReadAll(r)
	var cerr *bgzf.CorruptBlockError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Reason, "exceeds payload size")
}

func TestReaderAtEOFMarker(t *testing.T) {
	t.Parallel()

	data := pattern(100)
	container, _ := bgzftest.Compress(data, 1024)
	eofStart := uint64(len(container) - len(bgzftest.EOFBlock))

	voff, err := bgzf.MakeVirtualOffset(eofStart, 0)
	require.NoError(t, err)

	r, err := bgzf.NewReaderAt(bytes.NewReader(container), voff)
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, got)
}
