package material

import (
	"testing"
	"testing/fstest"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/spirv"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.compiler != nil {
		t.Error("default compiler is set, want naga on the provider device")
	}
	if o.depthFormat != gputypes.TextureFormatDepth24Plus {
		t.Errorf("depthFormat = %v, want Depth24Plus", o.depthFormat)
	}
	if o.colorFormat != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("colorFormat = %v, want BGRA8Unorm", o.colorFormat)
	}
	if o.defaultSampler != gputypes.LinearSamplerDescriptor() {
		t.Errorf("defaultSampler = %+v, want linear", o.defaultSampler)
	}
	if !o.nagaOptions.Validate {
		t.Error("naga validation disabled by default")
	}
}

func TestOptions(t *testing.T) {
	compiler := &countingCompiler{}
	includes := fstest.MapFS{"common.wgsl": &fstest.MapFile{Data: []byte("// common")}}
	nagaOpts := naga.CompileOptions{SPIRVVersion: spirv.Version1_3, Debug: true}
	sampler := gputypes.DefaultSamplerDescriptor()

	o := defaultOptions()
	for _, opt := range []Option{
		WithCompiler(compiler),
		WithIncludeFS(includes),
		WithNagaOptions(nagaOpts),
		WithDepthFormat(gputypes.TextureFormatDepth32Float),
		WithColorFormat(gputypes.TextureFormatRGBA8Unorm),
		WithDefaultSampler(sampler),
	} {
		opt(&o)
	}

	if o.compiler != compiler {
		t.Error("WithCompiler not applied")
	}
	if o.includes == nil {
		t.Error("WithIncludeFS not applied")
	}
	if o.nagaOptions != nagaOpts {
		t.Errorf("nagaOptions = %+v, want %+v", o.nagaOptions, nagaOpts)
	}
	if o.depthFormat != gputypes.TextureFormatDepth32Float || o.colorFormat != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("formats = %v/%v", o.depthFormat, o.colorFormat)
	}
	if o.defaultSampler != sampler {
		t.Errorf("defaultSampler = %+v, want %+v", o.defaultSampler, sampler)
	}
}
