package ffprobe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"
)

// Prober memoizes Inspect results keyed by path, size and modification time.
type Prober struct {
	binary  string
	cache   *cache.Cache
	inspect func(ctx context.Context, binary, path string) (Result, error)
}

// NewProber returns a prober using binary. A ttl of zero or less disables
// memoization.
func NewProber(binary string, ttl time.Duration) *Prober {
	p := &Prober{binary: binary, inspect: Inspect}
	if ttl > 0 {
		p.cache = cache.New(ttl, 2*ttl)
	}
	return p
}

// Inspect probes path, reusing a cached result while the file is unchanged.
func (p *Prober) Inspect(ctx context.Context, path string) (Result, error) {
	if p.cache == nil {
		return p.inspect(ctx, p.binary, path)
	}
	key, err := cacheKey(path)
	if err != nil {
		return Result{}, err
	}
	if cached, ok := p.cache.Get(key); ok {
		return cached.(Result), nil
	}
	result, err := p.inspect(ctx, p.binary, path)
	if err != nil {
		return Result{}, err
	}
	p.cache.Set(key, result, cache.DefaultExpiration)
	return result, nil
}

// Cached returns the number of memoized results.
func (p *Prober) Cached() int {
	if p.cache == nil {
		return 0
	}
	return p.cache.ItemCount()
}

func cacheKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("ffprobe: resolve %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("ffprobe: stat %q: %w", abs, err)
	}
	return fmt.Sprintf("%s|%d|%d", abs, info.Size(), info.ModTime().UnixNano()), nil
}
