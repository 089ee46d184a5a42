package vocabulary

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 200 * time.Millisecond

func startWatcher(t *testing.T) (*Registry, string, *atomic.Int32) {
	t.Helper()
	dir := t.TempDir()
	reg, err := NewRegistry(dir)
	require.NoError(t, err)

	w, err := NewWatcher(reg, testDebounce)
	require.NoError(t, err)
	var reloads atomic.Int32
	w.OnReload(func(*Vocabulary) { reloads.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return reg, dir, &reloads
}

func skillsWith(t *testing.T, extra string) []byte {
	t.Helper()
	base, err := embedded.ReadFile("data/" + skillsFile)
	require.NoError(t, err)
	return append(base, []byte(extra)...)
}

func TestWatcherReloadsOnceForBurst(t *testing.T) {
	reg, dir, reloads := startWatcher(t)
	before := reg.Current()
	_, ok := before.Skill("zig")
	require.False(t, ok)

	path := filepath.Join(dir, skillsFile)
	data := skillsWith(t, "  zig: {label: Zig, aliases: [ziglang]}\n")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}

	require.Eventually(t, func() bool {
		_, ok := reg.Current().Skill("ziglang")
		return ok
	}, 5*time.Second, 20*time.Millisecond)
	assert.NotSame(t, before, reg.Current())

	time.Sleep(3 * testDebounce)
	assert.Equal(t, int32(1), reloads.Load())
}

func TestWatcherKeepsSnapshotOnInvalidFile(t *testing.T) {
	reg, dir, reloads := startWatcher(t)
	before := reg.Current()

	require.NoError(t, os.WriteFile(filepath.Join(dir, skillsFile), []byte("skills: [not, a, map]"), 0o644))
	time.Sleep(5 * testDebounce)

	assert.Same(t, before, reg.Current())
	assert.Zero(t, reloads.Load())
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	reg, dir, reloads := startWatcher(t)
	before := reg.Current()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("draft"), 0o644))
	time.Sleep(3 * testDebounce)

	assert.Same(t, before, reg.Current())
	assert.Zero(t, reloads.Load())
}

func TestNewWatcherNeedsDirectory(t *testing.T) {
	v, err := Default()
	require.NoError(t, err)
	_, err = NewWatcher(NewStaticRegistry(v), time.Second)
	assert.Error(t, err)
}
