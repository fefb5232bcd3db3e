package repository

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
)

type countingRegistry struct {
	*FSModelRegistry
	loads atomic.Int32
	delay time.Duration
}

func (c *countingRegistry) Load(ctx context.Context, ref domrepo.ArtifactRef) (*domsvc.ArtifactPair, error) {
	c.loads.Add(1)
	time.Sleep(c.delay)
	return c.FSModelRegistry.Load(ctx, ref)
}

func newCounting(t *testing.T, dir string) *countingRegistry {
	t.Helper()
	fs, err := NewFSModelRegistry(dir)
	require.NoError(t, err)
	return &countingRegistry{FSModelRegistry: fs}
}

func TestCachedRegistry_ServesCachedPair(t *testing.T) {
	dir := t.TempDir()
	writePair(t, dir, "AAPL")
	inner := newCounting(t, dir)
	reg := NewCachedRegistry(inner, time.Hour, nil)

	ref, err := reg.Stat("AAPL")
	require.NoError(t, err)

	first, err := reg.Load(context.Background(), ref)
	require.NoError(t, err)
	second, err := reg.Load(context.Background(), ref)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), inner.loads.Load())
}

func TestCachedRegistry_DeduplicatesConcurrentLoads(t *testing.T) {
	dir := t.TempDir()
	writePair(t, dir, "AAPL")
	inner := newCounting(t, dir)
	inner.delay = 50 * time.Millisecond
	reg := NewCachedRegistry(inner, time.Hour, nil)

	ref, err := reg.Stat("AAPL")
	require.NoError(t, err)

	var wg sync.WaitGroup
	pairs := make([]*domsvc.ArtifactPair, 8)
	for i := range pairs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := reg.Load(context.Background(), ref)
			assert.NoError(t, err)
			pairs[i] = p
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), inner.loads.Load())
	for _, p := range pairs {
		assert.Same(t, pairs[0], p)
	}
}

func TestCachedRegistry_ReloadsOnModTimeChange(t *testing.T) {
	dir := t.TempDir()
	writePair(t, dir, "AAPL")
	inner := newCounting(t, dir)
	reg := NewCachedRegistry(inner, time.Hour, nil)

	ref, err := reg.Stat("AAPL")
	require.NoError(t, err)
	_, err = reg.Load(context.Background(), ref)
	require.NoError(t, err)

	later := ref.ModTime.Add(time.Minute)
	require.NoError(t, os.Chtimes(ref.ModelPath, later, later))

	ref2, err := reg.Stat("AAPL")
	require.NoError(t, err)
	require.True(t, ref2.ModTime.After(ref.ModTime))
	_, err = reg.Load(context.Background(), ref2)
	require.NoError(t, err)

	assert.Equal(t, int32(2), inner.loads.Load())
}

func TestCachedRegistry_DoesNotCacheFailures(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "AAPL_model.json", []byte("garbage"))
	writeArtifact(t, dir, "AAPL_scaler.json", scalerJSON(t, 1, 2))
	inner := newCounting(t, dir)
	reg := NewCachedRegistry(inner, time.Hour, nil)

	ref, err := reg.Stat("AAPL")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = reg.Load(context.Background(), ref)
		assert.ErrorIs(t, err, models.ErrArtifactLoad)
	}
	assert.Equal(t, int32(2), inner.loads.Load())
}

func TestCachedRegistry_HonorsCallerContext(t *testing.T) {
	dir := t.TempDir()
	writePair(t, dir, "AAPL")
	inner := newCounting(t, dir)
	inner.delay = 200 * time.Millisecond
	reg := NewCachedRegistry(inner, time.Hour, nil)

	ref, err := reg.Stat("AAPL")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = reg.Load(ctx, ref)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCachedRegistry_WatchInvalidates(t *testing.T) {
	dir := t.TempDir()
	writePair(t, dir, "AAPL")
	fs, err := NewFSModelRegistry(dir)
	require.NoError(t, err)
	inner := &countingRegistry{FSModelRegistry: fs}
	reg := NewCachedRegistry(inner, time.Hour, nil)
	require.NoError(t, reg.Watch(dir, fs.KeyOfFile))
	t.Cleanup(func() { _ = reg.Close() })

	ref, err := reg.Stat("AAPL")
	require.NoError(t, err)
	_, err = reg.Load(context.Background(), ref)
	require.NoError(t, err)
	_, ok := reg.pairs.Get("AAPL")
	require.True(t, ok)

	writeArtifact(t, dir, "AAPL_scaler.json", scalerJSON(t, 90, 190))

	assert.Eventually(t, func() bool {
		_, ok := reg.pairs.Get("AAPL")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCachedRegistry_CloseWithoutWatch(t *testing.T) {
	reg := NewCachedRegistry(newCounting(t, t.TempDir()), time.Hour, nil)
	assert.NoError(t, reg.Close())
	assert.NoError(t, reg.Health(context.Background()))
}

func TestCachedRegistry_WatchTwiceFails(t *testing.T) {
	dir := t.TempDir()
	reg := NewCachedRegistry(newCounting(t, dir), time.Hour, nil)
	keyOf := func(name string) (string, bool) { return filepath.Base(name), true }
	require.NoError(t, reg.Watch(dir, keyOf))
	t.Cleanup(func() { _ = reg.Close() })
	assert.Error(t, reg.Watch(dir, keyOf))
}
