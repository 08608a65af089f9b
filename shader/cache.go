// Package shader compiles generated stage text into GPU shader modules.
//
// Modules are cached by (stage, source text), independent of the mask that
// produced the text: permutations whose bits do not touch a stage collapse
// onto one module.
package shader

import (
	"errors"
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/material/cache"
	"github.com/gogpu/material/fault"
	"github.com/gogpu/material/internal/logging"
	"github.com/gogpu/material/msh"
)

// ErrClosed is returned by Build after Close.
var ErrClosed = errors.New("shader: cache is closed")

// Compiler turns stage text into a device shader module.
type Compiler interface {
	Compile(stage msh.Stage, label, source string) (hal.ShaderModule, error)
	Release(module hal.ShaderModule)
}

// Module is a compiled stage.
type Module struct {
	Stage  msh.Stage
	Label  string
	Source string
	Handle hal.ShaderModule
}

type key struct {
	stage  msh.Stage
	source string
}

func keyHasher(k key) uint64 {
	return cache.StringHasher(k.source) + uint64(k.stage)
}

// Cache is a content-addressed shader module cache. It is safe for
// concurrent use.
type Cache struct {
	compiler Compiler
	modules  *cache.Store[key, *Module]

	mu     sync.RWMutex
	closed bool
}

// NewCache returns an empty cache compiling with compiler.
func NewCache(compiler Compiler) *Cache {
	return &Cache{
		compiler: compiler,
		modules:  cache.NewStore[key, *Module](keyHasher),
	}
}

// Build returns the module compiled from source for stage. The module is
// labeled with the stage prefix and name the first time it is built.
//
// An empty source yields a nil module and no error. Compilation failures
// are returned as *fault.CompileError and are not cached.
func (c *Cache) Build(stage msh.Stage, name, source string) (*Module, error) {
	if source == "" {
		return nil, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}

	return c.modules.GetOrCreate(key{stage: stage, source: source}, func() (*Module, error) {
		label := stage.Prefix() + name
		handle, err := c.compiler.Compile(stage, label, source)
		if err != nil {
			var ce *fault.CompileError
			if errors.As(err, &ce) {
				return nil, ce
			}
			return nil, &fault.CompileError{Stage: stage.String(), Name: name, Source: source, Err: err}
		}
		logging.Logger().Debug("shader: module compiled", "stage", stage, "label", label, "bytes", len(source))
		return &Module{Stage: stage, Label: label, Source: source, Handle: handle}, nil
	})
}

// Len returns the number of cached modules.
func (c *Cache) Len() int { return c.modules.Len() }

// Stats returns hit and miss counters.
func (c *Cache) Stats() cache.Stats { return c.modules.Stats() }

// Close releases every module. Modules handed out before must no longer be
// used.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.modules.Range(func(_ key, m *Module) bool {
		if m.Handle != nil {
			c.compiler.Release(m.Handle)
		}
		return true
	})
}
