package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestIsPhoto(t *testing.T) {
	tests := map[string]bool{
		"leaf.jpg":      true,
		"LEAF.JPEG":     true,
		"dir/leaf.webp": true,
		"leaf.png":      true,
		"notes.txt":     false,
		"leaf":          false,
		"leaf.jpg.part": false,
	}
	for path, expected := range tests {
		assert.Equal(t, expected, IsPhoto(path), path)
	}
}

func TestWatcherDebouncesPhotos(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	var mu sync.Mutex
	seen := map[string]int{}

	w, err := NewWatcher(dir, 200*time.Millisecond, func(ctx context.Context, path string) {
		mu.Lock()
		seen[filepath.Base(path)]++
		mu.Unlock()
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	photo := filepath.Join(dir, "leaf.jpg")
	require.NoError(t, os.WriteFile(photo, []byte{0xff, 0xd8}, 0644))
	f, err := os.OpenFile(photo, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, _ = f.Write([]byte{0xff, 0xd9})
	require.NoError(t, f.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["leaf.jpg"] == 1
	}, 3*time.Second, 20*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, seen["leaf.jpg"])
	assert.Zero(t, seen["notes.txt"])
}

func TestWatcherStopsOnContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := NewWatcher(t.TempDir(), 10*time.Millisecond, func(context.Context, string) {})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on context cancellation")
	}
	w.Stop()
}

func TestWatcherMissingDir(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), time.Millisecond, func(context.Context, string) {})
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
	w.Stop()
}
