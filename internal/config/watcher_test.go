package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestWatcher(t *testing.T, dir string, reloads *atomic.Int32) *DefinitionsWatcher {
	t.Helper()
	w, err := NewDefinitionsWatcher(dir, func() error {
		reloads.Add(1)
		return nil
	}, zap.NewNop())
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestWatcherReloadsOnDefinitionWrite(t *testing.T) {
	dir := t.TempDir()
	var reloads atomic.Int32
	newTestWatcher(t, dir, &reloads)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "jupiter.yaml"), []byte("name: jupiter\n"), 0o600))

	assert.Eventually(t, func() bool { return reloads.Load() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	var reloads atomic.Int32
	newTestWatcher(t, dir, &reloads)

	// Several quick writes should settle into a single reload.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "pyth.yml"), []byte("name: pyth\n"), 0o600))
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return reloads.Load() >= 1 },
		2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), reloads.Load())
}

func TestWatcherIgnoresNonDefinitionFiles(t *testing.T) {
	dir := t.TempDir()
	var reloads atomic.Int32
	newTestWatcher(t, dir, &reloads)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), reloads.Load())
}

func TestWatcherRequiresDirectory(t *testing.T) {
	_, err := NewDefinitionsWatcher("", func() error { return nil }, zap.NewNop())
	assert.Error(t, err)
}

func TestWatcherStartIdempotent(t *testing.T) {
	dir := t.TempDir()
	var reloads atomic.Int32
	w := newTestWatcher(t, dir, &reloads)
	assert.NoError(t, w.Start())
}

func TestIsDefinitionFile(t *testing.T) {
	assert.True(t, isDefinitionFile("jupiter.yaml"))
	assert.True(t, isDefinitionFile("jupiter.YML"))
	assert.False(t, isDefinitionFile("jupiter.json"))
	assert.False(t, isDefinitionFile("jupiter"))
}
