package blockfinder

import (
	"bytes"
	"compress/gzip"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pargzip/internal/errs"
)

func makeGzip(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// makeLargeGzip compresses 400 KiB of seeded random bytes, which DEFLATE
// cannot shrink, so the stream spans about a dozen 32 KiB grid partitions.
func makeLargeGzip(t *testing.T) []byte {
	t.Helper()
	payload := make([]byte, 400*1024)
	rand.New(rand.NewSource(1)).Read(payload) //nolint:errcheck
	return makeGzip(t, payload)
}

func TestNewLocatesFirstBlockAfterHeader(t *testing.T) {
	data := makeGzip(t, []byte("hello world"))
	r := bytes.NewReader(data)

	f, err := New(r, Options{FileSize: int64(len(data)), Spacing: 64 * 1024, Parallelization: 4})
	require.NoError(t, err)

	assert.Equal(t, 1, f.Size())
	offset, ok := f.Get(0)
	assert.True(t, ok)
	assert.Greater(t, offset, int64(0))
	assert.Less(t, offset, int64(len(data))*8)
}

func TestSpacingBelowWindowRejected(t *testing.T) {
	data := makeGzip(t, []byte("x"))
	r := bytes.NewReader(data)

	_, err := New(r, Options{FileSize: int64(len(data)), Spacing: 1024, Parallelization: 4})
	assert.Error(t, err)
}

func TestGetSynthesizesVirtualOffsets(t *testing.T) {
	data := makeLargeGzip(t)
	r := bytes.NewReader(data)

	f, err := New(r, Options{FileSize: int64(len(data)), Spacing: 32 * 1024, Parallelization: 4})
	require.NoError(t, err)

	offset0, ok := f.Get(0)
	require.True(t, ok)

	offset1, ok := f.Get(1)
	require.True(t, ok)
	assert.Greater(t, offset1, offset0)

	offset2, ok := f.Get(2)
	require.True(t, ok)
	assert.Greater(t, offset2, offset1)
	assert.Equal(t, int64(0), offset2%f.SpacingBits())
}

func TestInsertKeepsOffsetsSorted(t *testing.T) {
	data := makeLargeGzip(t)
	r := bytes.NewReader(data)

	f, err := New(r, Options{FileSize: int64(len(data)), Spacing: 32 * 1024, Parallelization: 4})
	require.NoError(t, err)

	base, _ := f.Get(0)
	require.NoError(t, f.Insert(base+100000))
	require.NoError(t, f.Insert(base+50000))

	assert.Equal(t, 3, f.Size())
	first, _ := f.Get(0)
	second, _ := f.Get(1)
	third, _ := f.Get(2)
	assert.Less(t, first, second)
	assert.Less(t, second, third)
}

func TestInsertAfterFinalizeFails(t *testing.T) {
	data := makeGzip(t, []byte("hi"))
	r := bytes.NewReader(data)

	f, err := New(r, Options{FileSize: int64(len(data)), Spacing: 64 * 1024, Parallelization: 4})
	require.NoError(t, err)
	base, _ := f.Get(0)

	f.Finalize()
	assert.True(t, f.Finalized())

	// A new offset inside the file; offsets past the file end are ignored.
	err = f.Insert(base + 8)
	require.Error(t, err)
	var finderErr *errs.Error
	require.ErrorAs(t, err, &finderErr)
	assert.Equal(t, errs.InvalidArgument, finderErr.Kind)
}

func TestFindRoundTripsInsertedOffset(t *testing.T) {
	data := makeGzip(t, bytes.Repeat([]byte("a"), 1<<20))
	r := bytes.NewReader(data)

	f, err := New(r, Options{FileSize: int64(len(data)), Spacing: 32 * 1024, Parallelization: 4})
	require.NoError(t, err)

	base, _ := f.Get(0)
	idx, err := f.Find(base)
	require.NoError(t, err)
	assert.Equal(t, int64(0), idx)

	require.NoError(t, f.Insert(base+1000))
	idx, err = f.Find(base + 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), idx)
}

func TestSetBlockOffsetsFinalizes(t *testing.T) {
	data := makeGzip(t, []byte("hi"))
	r := bytes.NewReader(data)

	f, err := New(r, Options{FileSize: int64(len(data)), Spacing: 64 * 1024, Parallelization: 4})
	require.NoError(t, err)

	f.SetBlockOffsets([]int64{0, 100, 200})
	assert.True(t, f.Finalized())
	assert.Equal(t, 3, f.Size())
	offset, ok := f.Get(2)
	assert.True(t, ok)
	assert.Equal(t, int64(200), offset)
}

func TestPartitionOffsetContainingRoundsDown(t *testing.T) {
	data := makeGzip(t, []byte("hi"))
	r := bytes.NewReader(data)

	f, err := New(r, Options{FileSize: int64(len(data)), Spacing: 64 * 1024, Parallelization: 4})
	require.NoError(t, err)

	spacing := f.SpacingBits()
	assert.Equal(t, spacing, f.PartitionOffsetContaining(spacing+17))
}
