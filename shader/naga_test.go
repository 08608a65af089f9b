package shader

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/material/fault"
	"github.com/gogpu/material/msh"
)

const vertexWGSL = `
@vertex
fn main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}
`

const fragmentWGSL = `#include "common.wgsl"
@fragment
fn main(@location(0) color: vec4<f32>) -> @location(0) vec4<f32> {
    return color;
}
`

// createNoopDevice creates a noop device for testing.
// Returns the device and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	return openDev.Device, func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
}

func newTestNaga(t *testing.T) (*NagaCompiler, func()) {
	t.Helper()
	device, cleanup := createNoopDevice(t)
	includes := fstest.MapFS{"common.wgsl": {Data: []byte("// shared helpers")}}
	return NewNagaCompiler(device, includes, naga.CompileOptions{SPIRVVersion: spirv.Version1_3}), cleanup
}

func TestNagaCompiler(t *testing.T) {
	comp, cleanup := newTestNaga(t)
	defer cleanup()
	c := NewCache(comp)
	defer c.Close()

	vs, err := c.Build(msh.StageVertex, "BASE", vertexWGSL)
	if err != nil {
		t.Fatalf("Build vertex: %v", err)
	}
	if vs.Handle == nil {
		t.Error("vertex module has no handle")
	}
	ps, err := c.Build(msh.StagePixel, "BASE", fragmentWGSL)
	if err != nil {
		t.Fatalf("Build pixel with include: %v", err)
	}
	if ps.Handle == nil {
		t.Error("pixel module has no handle")
	}
}

func TestNagaCompilerErrors(t *testing.T) {
	comp, cleanup := newTestNaga(t)
	defer cleanup()
	c := NewCache(comp)
	defer c.Close()

	tests := []struct {
		name   string
		stage  msh.Stage
		source string
		want   string
	}{
		{"syntax", msh.StageVertex, "@vertex\nfn main( {\n", "parse error"},
		{"geometry", msh.StageGeometry, "// gs", "no geometry stage"},
		{"missing include", msh.StagePixel, "#include \"absent.wgsl\"\n", "absent.wgsl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Build(tt.stage, "BAD", tt.source)
			var ce *fault.CompileError
			if !errors.As(err, &ce) {
				t.Fatalf("Build = %v, want *CompileError", err)
			}
			if ce.Source != tt.source {
				t.Errorf("CompileError.Source = %q, want the generated text", ce.Source)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestSPIRVWords(t *testing.T) {
	words, err := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 2 || words[0] != 0x07230203 || words[1] != 1 {
		t.Errorf("words = %#x", words)
	}
	if _, err := spirvWords([]byte{1, 2, 3}); err == nil {
		t.Error("odd-sized input accepted")
	}
}
