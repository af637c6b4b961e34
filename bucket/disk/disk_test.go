package disk

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5nafu/fred/bucket"
	"github.com/5nafu/fred/random"
	"github.com/5nafu/fred/tempfile"
)

func newFactory(t *testing.T, opts ...Option) (*Factory, *tempfile.Generator) {
	t.Helper()
	names, err := tempfile.New(random.Crypto(), tempfile.WithDir(t.TempDir()), tempfile.WithPrefix("bkt-"))
	require.NoError(t, err)
	f, err := New(names, opts...)
	require.NoError(t, err)
	return f, names
}

func write(t *testing.T, b bucket.Bucket, content []byte) {
	t.Helper()
	w, err := b.Writer()
	require.NoError(t, err)
	_, err = w.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func read(t *testing.T, b bucket.Bucket) []byte {
	t.Helper()
	r, err := b.Reader()
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func TestNewNilGenerator(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	require.Error(t, err)
}

func TestBucketRoundTrip(t *testing.T) {
	t.Parallel()

	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f, names := newFactory(t, WithCompression(compress))
			b, err := f.MakeBucket(-1)
			require.NoError(t, err)

			db := b.(*Bucket)
			assert.Equal(t, names.Dir(), filepath.Dir(db.Path()))
			assert.True(t, strings.HasPrefix(filepath.Base(db.Path()), "bkt-"))
			assert.Empty(t, read(t, b))

			content := bytes.Repeat([]byte("check block "), 512)
			write(t, b, content)

			assert.Equal(t, content, read(t, b))
			assert.Equal(t, int64(len(content)), b.Size())
			assert.Equal(t, digest.FromBytes(content), b.Digest())

			onDisk, err := os.ReadFile(db.Path())
			require.NoError(t, err)
			if compress {
				assert.Less(t, len(onDisk), len(content))
			} else {
				assert.Equal(t, content, onDisk)
			}
		})
	}
}

func TestBucketEmptyCompressedWrite(t *testing.T) {
	t.Parallel()

	f, _ := newFactory(t, WithCompression(true))
	b, err := f.MakeBucket(0)
	require.NoError(t, err)

	write(t, b, nil)
	assert.Empty(t, read(t, b))
	assert.Equal(t, digest.FromBytes(nil), b.Digest())
}

func TestBucketDiscardKeepsContents(t *testing.T) {
	t.Parallel()

	f, names := newFactory(t)
	b, err := f.MakeBucket(-1)
	require.NoError(t, err)
	write(t, b, []byte("committed"))

	w, err := b.Writer()
	require.NoError(t, err)
	_, err = w.Write([]byte("abandoned"))
	require.NoError(t, err)
	require.NoError(t, w.(*diskWriter).Discard())

	assert.Equal(t, []byte("committed"), read(t, b))

	entries, err := os.ReadDir(names.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBucketFree(t *testing.T) {
	t.Parallel()

	f, _ := newFactory(t)
	b, err := f.MakeBucket(-1)
	require.NoError(t, err)
	write(t, b, []byte("data"))

	path := b.(*Bucket).Path()
	require.NoError(t, b.Free())
	require.NoError(t, b.Free())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = b.Reader()
	require.ErrorIs(t, err, bucket.ErrFreed)
	_, err = b.Writer()
	require.ErrorIs(t, err, bucket.ErrFreed)
}

func TestSweepKeepsLiveBuckets(t *testing.T) {
	t.Parallel()

	f, names := newFactory(t, WithCompression(true))
	dir := names.Dir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated"), []byte("xxxxxxxx"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bkt-leftover"), []byte("stale"), 0o600))

	var live []bucket.Bucket
	for _, s := range []string{"aa", "bbbb"} {
		b, err := f.MakeBucket(-1)
		require.NoError(t, err)
		write(t, b, []byte(s))
		live = append(live, b)
	}
	freed, err := f.MakeBucket(-1)
	require.NoError(t, err)
	write(t, freed, []byte("gone"))
	require.NoError(t, freed.Free())

	stats, err := names.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Matched)
	assert.Equal(t, 2, stats.Live)
	assert.Equal(t, 1, stats.Deleted)
	assert.Equal(t, 0, stats.Failed)

	_, err = os.Stat(filepath.Join(dir, "bkt-leftover"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, []byte("aa"), read(t, live[0]))
	assert.Equal(t, []byte("bbbb"), read(t, live[1]))
	assert.Equal(t, []byte("aa"), read(t, live[0]))

	for _, b := range live {
		require.NoError(t, b.Free())
	}
	stats, err = names.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Matched)
}

func TestSizeBytes(t *testing.T) {
	t.Parallel()

	f, names := newFactory(t)
	require.NoError(t, os.WriteFile(filepath.Join(names.Dir(), "unrelated"), []byte("xxxxxxxx"), 0o600))

	var buckets []bucket.Bucket
	for _, s := range []string{"aa", "bbbb"} {
		b, err := f.MakeBucket(-1)
		require.NoError(t, err)
		write(t, b, []byte(s))
		buckets = append(buckets, b)
	}

	size, err := f.SizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)

	for _, b := range buckets {
		require.NoError(t, b.Free())
	}
	size, err = f.SizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestLimitedDiskBucket(t *testing.T) {
	t.Parallel()

	f, _ := newFactory(t)
	b, err := bucket.Limited(f, 4).MakeBucket(-1)
	require.NoError(t, err)
	write(t, b, []byte("four"))

	w, err := b.Writer()
	require.NoError(t, err)
	_, err = w.Write([]byte("fives"))
	require.ErrorIs(t, err, bucket.ErrTooLarge)
	require.ErrorIs(t, w.Close(), bucket.ErrTooLarge)

	assert.Equal(t, []byte("four"), read(t, b))
}
