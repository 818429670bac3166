package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMirror struct {
	keys   []string
	bodies []string
	err    error
}

func (r *recordingMirror) Put(_ context.Context, key string, body io.Reader, _ int64, sha string) error {
	data, _ := io.ReadAll(body)
	r.keys = append(r.keys, key)
	r.bodies = append(r.bodies, string(data))
	if sha == "" {
		return io.ErrUnexpectedEOF
	}
	return r.err
}

func TestIngestRenamesOnCollision(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	ing := NewIngester(nil, zerolog.Nop())
	ctx := context.Background()

	first, err := ing.Ingest(ctx, strings.NewReader("one"), "report.pdf", "", dir)
	require.NoError(t, err)
	second, err := ing.Ingest(ctx, strings.NewReader("two"), "report.pdf", "", dir)
	require.NoError(t, err)
	third, err := ing.Ingest(ctx, strings.NewReader("three"), "report.pdf", "", dir)
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", first.Filename)
	assert.Equal(t, "report_1.pdf", second.Filename)
	assert.Equal(t, "report_2.pdf", third.Filename)
	assert.Equal(t, filepath.Join(dir, "report_1.pdf"), second.FilePath)
	assert.Equal(t, int64(3), second.FileSize)
	assert.Equal(t, "application/pdf", second.FileType)

	data, err := os.ReadFile(first.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestIngestConcurrentSameName(t *testing.T) {
	dir := t.TempDir()
	ing := NewIngester(nil, zerolog.Nop())
	const uploads = 25

	var wg sync.WaitGroup
	results := make([]string, uploads)
	errs := make([]error, uploads)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := ing.Ingest(context.Background(), strings.NewReader(fmt.Sprintf("body-%d", i)), "scan.png", "", dir)
			results[i], errs[i] = out.FilePath, err
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, uploads)
	for i := 0; i < uploads; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[results[i]], "duplicate path %s", results[i])
		seen[results[i]] = true

		data, err := os.ReadFile(results[i])
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("body-%d", i), string(data))
	}
}

func TestIngestSkipsManyTakenNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "log.txt"), "x")
	for n := 1; n < 200; n++ {
		writeFile(t, filepath.Join(dir, fmt.Sprintf("log_%d.txt", n)), "x")
	}

	out, err := NewIngester(nil, zerolog.Nop()).Ingest(context.Background(), strings.NewReader("new"), "log.txt", "", dir)
	require.NoError(t, err)
	assert.Equal(t, "log_200.txt", out.Filename)
}

func TestIngestStripsClientPath(t *testing.T) {
	dir := t.TempDir()
	ing := NewIngester(nil, zerolog.Nop())

	out, err := ing.Ingest(context.Background(), strings.NewReader("x"), "../../etc/passwd", "text/plain", dir)
	require.NoError(t, err)
	assert.Equal(t, "passwd", out.Filename)
	assert.Equal(t, filepath.Join(dir, "passwd"), out.FilePath)
	assert.Equal(t, "text/plain", out.FileType)

	_, err = ing.Ingest(context.Background(), strings.NewReader("x"), "", "", dir)
	require.Error(t, err)
}

func TestIngestMirrorsAndIgnoresMirrorFailure(t *testing.T) {
	dir := t.TempDir()
	mirror := &recordingMirror{err: io.ErrClosedPipe}
	ing := NewIngester(mirror, zerolog.Nop())

	out, err := ing.Ingest(context.Background(), strings.NewReader("payload"), "a.txt", "", dir)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", out.Filename)
	assert.Equal(t, []string{"a.txt"}, mirror.keys)
	assert.Equal(t, []string{"payload"}, mirror.bodies)
}
