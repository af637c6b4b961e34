package tempfile

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5nafu/fred/random"
)

// scriptedSource returns the scripted draws in order, then falls back to
// crypto/rand.
type scriptedSource struct {
	mu     sync.Mutex
	script [][]byte
	draws  int
}

func (s *scriptedSource) NextBytes(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draws++
	if len(s.script) == 0 {
		return random.Crypto().NextBytes(p)
	}
	copy(p, s.script[0])
	s.script = s.script[1:]
	return nil
}

type failingSource struct{}

func (failingSource) NextBytes([]byte) error { return errors.New("entropy exhausted") }

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))
}

func TestMakeRandomFilenameDistinct(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	g, err := New(random.Crypto(), WithDir(dir), WithPrefix("tmp_"))
	require.NoError(t, err)

	const n = 200
	seen := make(map[string]bool, n)
	for range n {
		path, err := g.MakeRandomFilename()
		require.NoError(t, err)

		assert.Equal(t, dir, filepath.Dir(path))
		name := filepath.Base(path)
		require.True(t, strings.HasPrefix(name, "tmp_"), name)

		suffix := strings.TrimPrefix(name, "tmp_")
		assert.Len(t, suffix, 16)
		decoded, err := hex.DecodeString(suffix)
		require.NoError(t, err)
		assert.Len(t, decoded, 8)
		assert.Equal(t, strings.ToLower(suffix), suffix)

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))

		assert.False(t, seen[path], "duplicate name %s", path)
		seen[path] = true
	}
}

func TestMakeRandomFilenameRetriesCollisions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	taken := [][]byte{
		{0, 0, 0, 0, 0, 0, 0, 1},
		{0, 0, 0, 0, 0, 0, 0, 2},
		{0, 0, 0, 0, 0, 0, 0, 3},
	}
	free := []byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 4}
	for _, b := range taken {
		touch(t, filepath.Join(dir, "tmp_"+hex.EncodeToString(b)))
	}

	src := &scriptedSource{script: append(append([][]byte{}, taken...), free)}
	g, err := New(src, WithDir(dir), WithPrefix("tmp_"))
	require.NoError(t, err)

	path, err := g.MakeRandomFilename()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tmp_deadbeef00000004"), path)
	assert.Equal(t, 4, src.draws)
}

func TestMakeRandomFilenameSourceError(t *testing.T) {
	t.Parallel()

	g, err := New(failingSource{}, WithDir(t.TempDir()))
	require.NoError(t, err)

	_, err = g.MakeRandomFilename()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entropy exhausted")
}

func TestCreateRetriesExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := []byte{1, 1, 1, 1, 1, 1, 1, 1}
	touch(t, filepath.Join(dir, "buf-"+hex.EncodeToString(first)))

	src := &scriptedSource{script: [][]byte{first}}
	g, err := New(src, WithDir(dir), WithPrefix("buf-"))
	require.NoError(t, err)

	f, err := g.Create()
	require.NoError(t, err)
	defer f.Close()

	assert.NotEqual(t, filepath.Join(dir, "buf-"+hex.EncodeToString(first)), f.Name())
	assert.True(t, strings.HasPrefix(filepath.Base(f.Name()), "buf-"))

	_, err = f.WriteString("payload")
	require.NoError(t, err)
	info, err := os.Stat(f.Name())
	require.NoError(t, err)
	assert.Equal(t, int64(len("payload")), info.Size())
}

func TestNewDefaultsToTempDir(t *testing.T) {
	t.Parallel()

	g, err := New(random.Crypto())
	require.NoError(t, err)

	want, err := filepath.Abs(os.TempDir())
	require.NoError(t, err)
	assert.Equal(t, want, g.Dir())
	assert.Equal(t, defaultPrefix, g.Prefix())
}

func TestNewCreatesMissingDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "a", "b")
	g, err := New(random.Crypto(), WithDir(dir))
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, dir, g.Dir())
}

func TestNewRejectsRegularFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "file")
	touch(t, path)

	_, err := New(random.Crypto(), WithDir(path))
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestNewRejectsUnwritableDir(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	dir := filepath.Join(t.TempDir(), "ro")
	require.NoError(t, os.Mkdir(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	_, err := New(random.Crypto(), WithDir(dir))
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestNewOptionErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name string
		src  random.Source
		opts []Option
	}{
		{name: "nil source", src: nil},
		{name: "separator in prefix", src: random.Crypto(), opts: []Option{WithPrefix("a/b")}},
		{name: "wipe with empty prefix", src: random.Crypto(), opts: []Option{WithPrefix(""), WithWipe(true)}},
		{name: "negative io limit", src: random.Crypto(), opts: []Option{WithMaxConcurrentIO(-1)}},
		{name: "zero sweep workers", src: random.Crypto(), opts: []Option{WithSweepWorkers(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := append([]Option{WithDir(dir)}, tt.opts...)
			g, err := New(tt.src, opts...)
			require.ErrorIs(t, err, ErrConfiguration)
			assert.Nil(t, g)
		})
	}
}

func TestConcurrentNames(t *testing.T) {
	t.Parallel()

	g, err := New(random.Crypto(), WithDir(t.TempDir()), WithMaxConcurrentIO(2))
	require.NoError(t, err)

	const workers = 8
	const perWorker = 25
	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				f, err := g.Create()
				if !assert.NoError(t, err) {
					return
				}
				f.Close()
				mu.Lock()
				seen[f.Name()] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestNameLogging(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	g, err := New(random.Crypto(), WithDir(t.TempDir()), WithLogger(logger))
	require.NoError(t, err)

	path, err := g.MakeRandomFilename()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "made random filename")
	assert.Contains(t, buf.String(), path)

	_, err = g.Sweep(context.Background())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "swept temp dir")
}
