package shader

import (
	"encoding/binary"
	"fmt"
	"io/fs"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/material/msh"
)

// NagaCompiler compiles WGSL with naga and uploads SPIR-V to a hal device.
// #include lines are expanded from the include file system first.
type NagaCompiler struct {
	device   hal.Device
	includes fs.FS
	options  naga.CompileOptions
}

// NewNagaCompiler returns a compiler creating modules on device.
// includes may be nil when generated text has no #include lines.
func NewNagaCompiler(device hal.Device, includes fs.FS, options naga.CompileOptions) *NagaCompiler {
	return &NagaCompiler{device: device, includes: includes, options: options}
}

// Compile implements Compiler.
func (c *NagaCompiler) Compile(stage msh.Stage, label, source string) (hal.ShaderModule, error) {
	if stage == msh.StageGeometry {
		return nil, fmt.Errorf("%s: WebGPU has no geometry stage", label)
	}
	expanded, err := ExpandIncludes(c.includes, source)
	if err != nil {
		return nil, err
	}
	code, err := naga.CompileWithOptions(expanded, c.options)
	if err != nil {
		return nil, err
	}
	words, err := spirvWords(code)
	if err != nil {
		return nil, err
	}
	return c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: words},
	})
}

// Release implements Compiler.
func (c *NagaCompiler) Release(module hal.ShaderModule) {
	c.device.DestroyShaderModule(module)
}

// spirvWords converts SPIR-V bytes to little-endian 32-bit words.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("spir-v size %d is not a multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}
