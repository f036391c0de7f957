package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/params"
	"strategy-validation-lab/internal/storage"
)

// ErrNoBars is returned when a symbol has no bars inside the requested range.
var ErrNoBars = errors.New("no bars in range")

// History bounds used to load a symbol's full bar history.
var (
	historyStart = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	historyEnd   = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

// Context holds the base strategy tree and a bar cache shared by every trial
// of a run. Cached data lives until Invalidate or InvalidateSymbol is called.
type Context struct {
	store storage.BarStore

	mu   sync.RWMutex
	base params.Tree
	bars map[string][]domain.Bar

	loads singleflight.Group
}

// NewContext creates a Context over store. base is cloned.
func NewContext(store storage.BarStore, base params.Tree) *Context {
	return &Context{
		store: store,
		base:  base.Clone(),
		bars:  make(map[string][]domain.Bar),
	}
}

// Base returns a copy of the base tree.
func (c *Context) Base() params.Tree {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base.Clone()
}

// SetBase replaces the base tree.
func (c *Context) SetBase(base params.Tree) {
	c.mu.Lock()
	c.base = base.Clone()
	c.mu.Unlock()
}

// Invalidate drops every cached bar history.
func (c *Context) Invalidate() {
	c.mu.Lock()
	c.bars = make(map[string][]domain.Bar)
	c.mu.Unlock()
}

// InvalidateSymbol drops the cached history of one symbol.
func (c *Context) InvalidateSymbol(symbol string) {
	c.mu.Lock()
	delete(c.bars, symbol)
	c.mu.Unlock()
}

// Bars returns the full cached history of symbol, loading it once.
// Callers must not modify the returned slice.
func (c *Context) Bars(ctx context.Context, symbol string) ([]domain.Bar, error) {
	c.mu.RLock()
	bars, ok := c.bars[symbol]
	c.mu.RUnlock()
	if ok {
		return bars, nil
	}

	v, err, _ := c.loads.Do(symbol, func() (any, error) {
		loaded, err := c.store.ReadRange(ctx, symbol, historyStart, historyEnd)
		if err != nil {
			return nil, fmt.Errorf("load bars %s: %w", symbol, err)
		}
		c.mu.Lock()
		c.bars[symbol] = loaded
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Bar), nil
}
