// Package material turns a library of shader fragments plus a feature mask
// into GPU render pipelines.
//
// # Overview
//
// Shaders are authored as small fragments ("microshaders"), each tagged with
// one feature bit. A material permutation is a bitmask selecting fragments;
// the builder composes the selected fragments into per-stage WGSL, compiles
// it with naga and assembles a wgpu/hal render pipeline. Every intermediate
// result is cached by content, so many masks share compiled modules whenever
// their generated text is identical.
//
// # Quick Start
//
//	layouts := vdecl.NewStorage()
//	b, err := material.NewBuilder(provider, layouts)
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	if err := b.Load(msh.Config{Dir: "shaders/fragments"}); err != nil {
//	    return err
//	}
//
//	color, _ := b.GetShaderMask("COLOR")
//	texture, _ := b.GetShaderMask("TEXTURE")
//	pos, _ := layouts.Add([]vdecl.Item{{Name: "pos", Type: vdecl.Float3, PerVertex: true}})
//	inst, _ := layouts.Add([]vdecl.Item{{Name: "offset", Type: vdecl.Float2, Slot: 1}})
//
//	texVar := b.CacheTextureVar("texBase", msh.StagePixel, material.Mutable)
//	p, err := b.Create(color|texture, material.SwapchainTargets, pos, inst, []material.VarID{texVar},
//	    material.DefaultPipelineDesc())
//
// # Packages
//
// The module is organized into:
//   - material: the Builder façade (variables, samplers, globals, targets, pipelines)
//   - msh: fragment parsing, the fragment library and mask composition
//   - vdecl: vertex layout interning
//   - shader: the content-addressed shader module cache and the naga compiler
//   - cache: the sharded content-addressed store used by the caches above
//   - fault: the error taxonomy
//
// # Errors
//
// Failures are one of three kinds, matched with errors.Is:
// [ErrAuthoring] for wrong fragment content, [ErrLookup] for invalid ids or
// names, and [ErrCompile] for generated text rejected by the compiler.
// Nothing is retried and no partial pipeline is returned.
//
// # Concurrency
//
// A Builder is safe for concurrent use. Every table carries its own lock and
// the first caller for a key computes the cached value.
package material
