// Package assets implements the engine's asset cache: decoded images, raw
// sound data, and compiled script programs, loaded lazily and evicted in bulk
// against a scene manifest. Eviction is manifest-driven: when a scene ends,
// everything outside the next scene's keep set goes, except pinned entries
// and sounds still audible.
package assets

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/sawakita/hibana/pkg/fileutil"
	"github.com/sawakita/hibana/pkg/logger"
	"github.com/sawakita/hibana/pkg/script"
)

// Asset domains used by pin and clear operations.
const (
	KindImage  = "image"
	KindSound  = "sound"
	KindScript = "script"
)

// LoadFunc reads an asset's raw bytes. The default resolves the path under
// the cache root with a case-insensitive fallback.
type LoadFunc func(path string) ([]byte, error)

// CompileFunc turns a script path into a compiled program. The default reads
// the compiled-program JSON document from disk.
type CompileFunc func(path string) (*script.Program, error)

// Cache is the process-wide asset store. All methods are safe for concurrent
// use; in practice the runtime drives it from one goroutine and background
// prefetchers from others.
type Cache struct {
	mu sync.Mutex

	root    string
	load    LoadFunc
	compile CompileFunc

	images  map[string]image.Image
	sounds  map[string][]byte
	scripts map[string]*script.Program
	pinned  map[string]map[string]struct{}
}

// Option configures a Cache.
type Option func(*Cache)

// WithLoader overrides raw byte loading, used by tests and embedded builds.
func WithLoader(fn LoadFunc) Option {
	return func(c *Cache) { c.load = fn }
}

// WithCompiler overrides script compilation.
func WithCompiler(fn CompileFunc) Option {
	return func(c *Cache) { c.compile = fn }
}

// NewCache builds a cache rooted at the project directory.
func NewCache(root string, opts ...Option) *Cache {
	c := &Cache{
		root:    root,
		images:  map[string]image.Image{},
		sounds:  map[string][]byte{},
		scripts: map[string]*script.Program{},
		pinned: map[string]map[string]struct{}{
			KindImage:  {},
			KindSound:  {},
			KindScript: {},
		},
	}
	c.load = func(path string) ([]byte, error) {
		resolved := fileutil.Resolve(root, path)
		data, err := os.ReadFile(resolved)
		if err == nil {
			return data, nil
		}
		// Projects authored on case-insensitive file systems reference
		// assets with mismatched case; retry against the directory listing.
		match, ferr := fileutil.FindFileCaseInsensitive(filepath.Dir(resolved), filepath.Base(resolved))
		if ferr != nil {
			return nil, err
		}
		return os.ReadFile(match)
	}
	c.compile = script.LoadFile
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Image returns the decoded image for path, loading it on first use. A
// missing or malformed image yields the placeholder and logs a warning; image
// lookups never fail the caller.
func (c *Cache) Image(path string) image.Image {
	c.mu.Lock()
	if img, ok := c.images[path]; ok {
		c.mu.Unlock()
		return img
	}
	c.mu.Unlock()

	img, err := c.decodeImage(path)
	if err != nil {
		logger.Get().Warn("image load failed, using placeholder", "path", path, "error", err)
		img = Placeholder(64, 64)
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()
	return img
}

func (c *Cache) decodeImage(path string) (image.Image, error) {
	data, err := c.load(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// Sound returns the raw sound bytes for path, loading on first use.
func (c *Cache) Sound(path string) ([]byte, error) {
	c.mu.Lock()
	if data, ok := c.sounds[path]; ok {
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	data, err := c.load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load sound %s: %w", path, err)
	}

	c.mu.Lock()
	c.sounds[path] = data
	c.mu.Unlock()
	return data, nil
}

// Script returns the compiled program for path, compiling on first use.
func (c *Cache) Script(path string) (*script.Program, error) {
	c.mu.Lock()
	if prog, ok := c.scripts[path]; ok {
		c.mu.Unlock()
		return prog, nil
	}
	c.mu.Unlock()

	prog, err := c.compile(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.scripts[path] = prog
	c.mu.Unlock()
	return prog, nil
}

// Preload primes one asset by domain. Errors are logged, never returned:
// prefetching is advisory.
func (c *Cache) Preload(kind, path string) {
	switch kind {
	case KindImage:
		c.Image(path)
	case KindSound:
		if _, err := c.Sound(path); err != nil {
			logger.Get().Warn("sound preload failed", "path", path, "error", err)
		}
	case KindScript:
		if _, err := c.Script(path); err != nil {
			logger.Get().Warn("script preload failed", "path", path, "error", err)
		}
	}
}

// Pin protects an asset from pruning until unpinned.
func (c *Cache) Pin(kind, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.pinned[kind]; ok {
		set[path] = struct{}{}
	}
}

// Unpin releases a pin. Unpinning something never pinned is a no-op.
func (c *Cache) Unpin(kind, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.pinned[kind]; ok {
		delete(set, path)
	}
}

// HasImage reports whether an image is currently cached. Test hook.
func (c *Cache) HasImage(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.images[path]
	return ok
}

// HasSound reports whether a sound is currently cached.
func (c *Cache) HasSound(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sounds[path]
	return ok
}

// HasScript reports whether a compiled script is currently cached.
func (c *Cache) HasScript(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.scripts[path]
	return ok
}

// PruneImages evicts every cached image outside the keep set, except pinned
// entries. Returns the number of evictions.
func (c *Cache) PruneImages(keep map[string]struct{}) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for path := range c.images {
		if _, ok := keep[path]; ok {
			continue
		}
		if _, ok := c.pinned[KindImage][path]; ok {
			continue
		}
		delete(c.images, path)
		evicted++
	}
	if evicted > 0 {
		logger.Get().Debug("pruned image cache", "evicted", evicted, "remaining", len(c.images))
	}
	return evicted
}

// PruneSounds evicts every cached sound outside the keep set, except pinned
// entries and sounds the busy callback reports as still playing.
func (c *Cache) PruneSounds(keep map[string]struct{}, busy func(path string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for path := range c.sounds {
		if _, ok := keep[path]; ok {
			continue
		}
		if _, ok := c.pinned[KindSound][path]; ok {
			continue
		}
		if busy != nil && busy(path) {
			continue
		}
		delete(c.sounds, path)
		evicted++
	}
	if evicted > 0 {
		logger.Get().Debug("pruned sound cache", "evicted", evicted, "remaining", len(c.sounds))
	}
	return evicted
}

// ClearImages drops all cached images, pinned or not.
func (c *Cache) ClearImages() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = map[string]image.Image{}
}

// ClearSounds drops all cached sounds, pinned or not.
func (c *Cache) ClearSounds() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sounds = map[string][]byte{}
}

// ClearScripts drops all compiled scripts.
func (c *Cache) ClearScripts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts = map[string]*script.Program{}
}

// ClearScript drops one compiled script so the next Call recompiles it.
func (c *Cache) ClearScript(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.scripts, path)
}

// ClearAll drops every cached asset and all pins.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = map[string]image.Image{}
	c.sounds = map[string][]byte{}
	c.scripts = map[string]*script.Program{}
	for kind := range c.pinned {
		c.pinned[kind] = map[string]struct{}{}
	}
}

// Stats reports entry counts per domain.
func (c *Cache) Stats() (images, sounds, scripts int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images), len(c.sounds), len(c.scripts)
}
