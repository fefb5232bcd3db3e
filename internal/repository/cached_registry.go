package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	icache "FinCast/internal/service/cache"
	applogger "FinCast/pkg/logger"
)

type cachedPair struct {
	pair    *domsvc.ArtifactPair
	modTime time.Time
}

// CachedRegistry keeps loaded pairs in memory. A cached pair is served only
// while the ref's mod time matches the one it was loaded from.
type CachedRegistry struct {
	inner domrepo.ModelRegistry
	ttl   time.Duration
	pairs *icache.TTLCache[cachedPair]
	group singleflight.Group
	l     *applogger.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewCachedRegistry wraps inner. A non-positive ttl keeps pairs until invalidated.
func NewCachedRegistry(inner domrepo.ModelRegistry, ttl time.Duration, l *applogger.Logger) *CachedRegistry {
	if l == nil {
		l = applogger.NewNop()
	}
	return &CachedRegistry{
		inner: inner,
		ttl:   ttl,
		pairs: icache.NewTTLCache[cachedPair](),
		l:     l,
	}
}

func (c *CachedRegistry) Stat(instrument string) (domrepo.ArtifactRef, error) {
	return c.inner.Stat(instrument)
}

func (c *CachedRegistry) List() ([]models.InstrumentInfo, error) {
	return c.inner.List()
}

// Load returns the cached pair for ref or loads it once for all concurrent callers.
func (c *CachedRegistry) Load(ctx context.Context, ref domrepo.ArtifactRef) (*domsvc.ArtifactPair, error) {
	if cp, ok := c.pairs.Get(ref.Key); ok && cp.modTime.Equal(ref.ModTime) {
		return cp.pair, nil
	}

	flightKey := fmt.Sprintf("%s@%d", ref.Key, ref.ModTime.UnixNano())
	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		pair, err := c.inner.Load(context.WithoutCancel(ctx), ref)
		if err != nil {
			return nil, err
		}
		c.pairs.Set(ref.Key, cachedPair{pair: pair, modTime: ref.ModTime}, c.ttl)
		return pair, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domsvc.ArtifactPair), nil
	}
}

// Invalidate drops the cached pair for key.
func (c *CachedRegistry) Invalidate(key string) {
	c.pairs.Delete(key)
}

// Watch invalidates cached pairs whenever a file in dir changes.
// keyOf maps a file name to the key it belongs to.
func (c *CachedRegistry) Watch(dir string, keyOf func(name string) (string, bool)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher != nil {
		return errors.New("registry cache: already watching")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("registry cache: new watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("registry cache: watch %s: %w", dir, err)
	}
	c.watcher = w
	c.done = make(chan struct{})

	c.wg.Add(1)
	go c.watchLoop(w, c.done, keyOf)
	c.l.Info("watching model dir", applogger.String("dir", dir))
	return nil
}

func (c *CachedRegistry) watchLoop(w *fsnotify.Watcher, done <-chan struct{}, keyOf func(string) (string, bool)) {
	defer c.wg.Done()
	for {
		select {
		case <-done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			key, ok := keyOf(ev.Name)
			if !ok {
				continue
			}
			c.pairs.Delete(key)
			c.l.Debug("artifact changed, cache entry dropped",
				applogger.String("key", key),
				applogger.String("op", ev.Op.String()),
			)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			// Missed events mean any entry may be stale.
			c.pairs.Purge()
			c.l.Warn("model dir watcher error", applogger.Error(err))
		}
	}
}

// Health delegates to the wrapped registry when it supports health checks.
func (c *CachedRegistry) Health(ctx context.Context) error {
	if h, ok := c.inner.(interface{ Health(context.Context) error }); ok {
		return h.Health(ctx)
	}
	return nil
}

// Close stops the watcher, if any.
func (c *CachedRegistry) Close() error {
	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	if w != nil {
		close(c.done)
	}
	c.mu.Unlock()

	if w == nil {
		return nil
	}
	err := w.Close()
	c.wg.Wait()
	return err
}

var _ domrepo.ModelRegistry = (*CachedRegistry)(nil)
