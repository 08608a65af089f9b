package material

import (
	"io/fs"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"

	"github.com/gogpu/material/shader"
)

// Option configures a Builder during creation.
// Use functional options to customize Builder behavior.
//
// Example:
//
//	// Default: naga compiler, BGRA8 headless color, Depth24Plus depth
//	b, err := material.NewBuilder(provider, layouts)
//
//	// Shared WGSL files for #include lines in fragments
//	b, err := material.NewBuilder(provider, layouts,
//	    material.WithIncludeFS(os.DirFS("shaders/include")))
type Option func(*builderOptions)

// builderOptions holds optional configuration for Builder creation.
type builderOptions struct {
	compiler       shader.Compiler
	includes       fs.FS
	nagaOptions    naga.CompileOptions
	depthFormat    gputypes.TextureFormat
	colorFormat    gputypes.TextureFormat
	defaultSampler gputypes.SamplerDescriptor
}

// defaultOptions returns the default builder options.
func defaultOptions() builderOptions {
	return builderOptions{
		compiler:       nil, // naga on the provider device if nil
		nagaOptions:    naga.DefaultOptions(),
		depthFormat:    gputypes.TextureFormatDepth24Plus,
		colorFormat:    gputypes.TextureFormatBGRA8Unorm,
		defaultSampler: gputypes.LinearSamplerDescriptor(),
	}
}

// WithCompiler replaces the naga compiler. Use this to compile on a
// different toolchain or to count compilations in tests.
func WithCompiler(c shader.Compiler) Option {
	return func(o *builderOptions) {
		o.compiler = c
	}
}

// WithIncludeFS sets the file system #include lines are resolved against.
// Ignored when WithCompiler is given.
func WithIncludeFS(fsys fs.FS) Option {
	return func(o *builderOptions) {
		o.includes = fsys
	}
}

// WithNagaOptions sets the naga compile options (SPIR-V version,
// validation, debug info). Ignored when WithCompiler is given.
func WithNagaOptions(opts naga.CompileOptions) Option {
	return func(o *builderOptions) {
		o.nagaOptions = opts
	}
}

// WithDepthFormat sets the depth format of SwapchainTargets.
// TextureFormatUndefined disables depth testing for them.
func WithDepthFormat(f gputypes.TextureFormat) Option {
	return func(o *builderOptions) {
		o.depthFormat = f
	}
}

// WithColorFormat sets the color format used for swapchain targets when the
// provider reports no surface format (headless mode).
func WithColorFormat(f gputypes.TextureFormat) Option {
	return func(o *builderOptions) {
		o.colorFormat = f
	}
}

// WithDefaultSampler sets the sampler interned as SamplerID 1 and attached
// by CacheTextureVar.
func WithDefaultSampler(desc gputypes.SamplerDescriptor) Option {
	return func(o *builderOptions) {
		o.defaultSampler = desc
	}
}
