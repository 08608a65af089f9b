package material

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/material/cache"
	"github.com/gogpu/material/internal/intern"
	"github.com/gogpu/material/internal/logging"
	"github.com/gogpu/material/msh"
	"github.com/gogpu/material/shader"
	"github.com/gogpu/material/vdecl"
)

// halProvider is implemented by device providers that expose the wgpu/hal
// objects behind the gpucontext type tokens.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// Builder creates render pipelines for material permutations.
//
// A Builder owns the fragment library, the shader module cache, the
// variable, sampler, target and global tables, and the pipeline layouts it
// created. Pipelines returned by Create are owned by the caller and must be
// released with Release before Close.
//
// Builder is safe for concurrent use. Load and Close wait for pipeline
// creations in progress.
type Builder struct {
	provider gpucontext.DeviceProvider
	device   hal.Device
	queue    hal.Queue
	opts     builderOptions

	layouts *vdecl.Storage
	library *msh.Library
	shaders *shader.Cache

	vars     *intern.Table[varKey, struct{}]
	samplers *intern.Table[gputypes.SamplerDescriptor, hal.Sampler]
	targets  *intern.Table[TargetsFormat, struct{}]
	globals  globalTable
	programs *cache.Store[programKey, *program]

	mu     sync.RWMutex
	closed bool
}

// NewBuilder creates a Builder on the device of provider. The provider must
// implement HalDevice() any and HalQueue() any returning hal.Device and
// hal.Queue. layouts may be shared with the code that registers vertex
// layouts; nil creates a private storage.
//
// The default sampler is interned as SamplerID 1.
func NewBuilder(provider gpucontext.DeviceProvider, layouts *vdecl.Storage, opts ...Option) (*Builder, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	compiler := o.compiler
	if compiler == nil {
		compiler = shader.NewNagaCompiler(device, o.includes, o.nagaOptions)
	}
	if layouts == nil {
		layouts = vdecl.NewStorage()
	}

	b := &Builder{
		provider: provider,
		device:   device,
		queue:    queue,
		opts:     o,
		layouts:  layouts,
		library:  msh.NewLibrary(),
		shaders:  shader.NewCache(compiler),
		vars:     intern.New[varKey, struct{}]("shader variables"),
		samplers: intern.New[gputypes.SamplerDescriptor, hal.Sampler]("samplers"),
		targets:  intern.New[TargetsFormat, struct{}]("target formats"),
		programs: cache.NewStore[programKey, *program](programHasher),
	}
	b.targets.Put(swapchainKey, struct{}{})
	if _, err := b.cacheSampler(o.defaultSampler); err != nil {
		return nil, fmt.Errorf("material: create default sampler: %w", err)
	}
	logging.Logger().Info("material: builder created", "surface", provider.SurfaceFormat())
	return b, nil
}

// Load loads the fragment library, replacing the previous content. See
// msh.Library.Load. Pipelines created afterwards are built from the new
// fragments; programs of the previous content stay alive until Close
// because pipelines created from them may still be in use.
func (b *Builder) Load(cfg msh.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return b.library.Load(cfg)
}

// GetShaderMask returns the mask bit of the fragment unit called name.
func (b *Builder) GetShaderMask(name string) (msh.Mask, error) {
	return b.library.GetMask(name)
}

// Library returns the fragment library.
func (b *Builder) Library() *msh.Library { return b.library }

// Layouts returns the vertex layout storage.
func (b *Builder) Layouts() *vdecl.Storage { return b.layouts }

// Shaders returns the shader module cache.
func (b *Builder) Shaders() *shader.Cache { return b.shaders }

// Close destroys every object the Builder created: programs, shader
// modules, samplers and global buffers. Pipelines still held by callers
// must be released first. Close is idempotent.
func (b *Builder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true

	b.programs.Range(func(_ programKey, p *program) bool {
		p.destroy(b.device)
		return true
	})
	b.shaders.Close()
	b.samplers.Range(func(_ uint32, _ gputypes.SamplerDescriptor, s hal.Sampler) bool {
		b.device.DestroySampler(s)
		return true
	})
	b.globals.destroy(b.device)
	logging.Logger().Debug("material: builder closed")
}

func (b *Builder) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}
