package material

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/material/cache"
	"github.com/gogpu/material/internal/logging"
	"github.com/gogpu/material/msh"
	"github.com/gogpu/material/shader"
	"github.com/gogpu/material/vdecl"
)

// PipelineDesc is the fixed-function template of a pipeline. The builder
// fills in shaders, vertex buffers, bind group layouts and target formats.
type PipelineDesc struct {
	// Label names the pipeline; empty uses "material." plus the
	// permutation name.
	Label        string
	Primitive    gputypes.PrimitiveState
	DepthWrite   bool
	DepthCompare gputypes.CompareFunction
	Multisample  gputypes.MultisampleState
	Blend        *gputypes.BlendState // nil: replace
	WriteMask    gputypes.ColorWriteMask
}

// DefaultPipelineDesc returns opaque triangle-list rendering with back-face
// culling and a less-than depth test.
func DefaultPipelineDesc() PipelineDesc {
	return PipelineDesc{
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeBack,
		},
		DepthWrite:   true,
		DepthCompare: gputypes.CompareFunctionLess,
		Multisample:  gputypes.DefaultMultisampleState(),
		WriteMask:    gputypes.ColorWriteMaskAll,
	}
}

// BoundVar is a shader variable resolved against the bindings of a program.
type BoundVar struct {
	ID         VarID
	Name       string
	Stage      msh.Stage
	Mutability Mutability
	Kind       msh.BindingKind
	Group      uint32
	Binding    uint32
}

// StaticSampler is the sampler bound next to a texture variable.
type StaticSampler struct {
	Var     VarID
	Name    string // sampler identifier in the generated text
	Stage   msh.Stage
	Sampler SamplerID
	Handle  hal.Sampler
	Group   uint32
	Binding uint32
}

// AppliedGlobal is a global variable bound by a pipeline.
type AppliedGlobal struct {
	ID      GlobalVarID
	Name    string
	Stage   msh.Stage
	Buffer  hal.Buffer
	Group   uint32
	Binding uint32
}

// Pipeline is a render pipeline created for one permutation. The layouts it
// references are owned by the Builder; the pipeline itself is owned by the
// caller and released with Builder.Release.
type Pipeline struct {
	Name     string
	Mask     msh.Mask
	Layout   vdecl.ID
	Targets  TargetsFormat
	Composed *msh.Composed
	Handle   hal.RenderPipeline

	PipelineLayout   hal.PipelineLayout
	BindGroupLayouts []hal.BindGroupLayout // index is the bind group
	VertexBuffers    []gputypes.VertexBufferLayout

	Vars     []BoundVar
	Samplers []StaticSampler
	Globals  []AppliedGlobal
}

// Var returns the binding of variable id.
func (p *Pipeline) Var(id VarID) (BoundVar, bool) {
	for _, v := range p.Vars {
		if v.ID == id {
			return v, true
		}
	}
	return BoundVar{}, false
}

// Global returns the binding of global id.
func (p *Pipeline) Global(id GlobalVarID) (AppliedGlobal, bool) {
	for _, g := range p.Globals {
		if g.ID == id {
			return g, true
		}
	}
	return AppliedGlobal{}, false
}

// program is everything a pipeline needs that depends only on the mask and
// the vertex layout.
type program struct {
	composed *msh.Composed
	vertex   *shader.Module
	pixel    *shader.Module
	geometry *shader.Module
	buffers  []gputypes.VertexBufferLayout
	groups   []hal.BindGroupLayout
	layout   hal.PipelineLayout
}

// programKey identifies a program. gen is the library generation, so a
// reloaded library never reuses programs composed from earlier fragments.
type programKey struct {
	mask   msh.Mask
	layout vdecl.ID
	gen    uint64
}

func programHasher(k programKey) uint64 {
	return cache.Uint64Hasher(uint64(k.mask) ^ uint64(k.layout)*0x9E3779B97F4A7C15 ^ k.gen*0xC2B2AE3D27D4EB4F)
}

// programStages are the stages with a bind group on WebGPU.
var programStages = [...]msh.Stage{msh.StageVertex, msh.StagePixel}

// Create builds the pipeline for mask rendering into targets from vertex
// layouts perVertex and perInstance. perInstance may be 0 when the pipeline
// has no instance data; otherwise the two layouts are joined in that order.
//
// vars are resolved against the bindings of the generated program;
// variables the program does not declare are skipped and logged. Every
// global registered so far is bound where the program declares a uniform
// of the same stage and name.
func (b *Builder) Create(mask msh.Mask, targets TargetsID, perVertex, perInstance vdecl.ID, vars []VarID, tmpl PipelineDesc) (*Pipeline, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}

	layoutID := perVertex
	if perInstance != 0 {
		var err error
		if layoutID, err = b.layouts.Join(perVertex, perInstance); err != nil {
			return nil, err
		}
	}

	key := programKey{mask: mask, layout: layoutID, gen: b.library.Generation()}
	prog, err := b.programs.GetOrCreate(key, func() (*program, error) {
		return b.buildProgram(mask, layoutID)
	})
	if err != nil {
		return nil, err
	}

	outputs := prog.composed.OutputCount
	tf, err := b.GetTargetsFormat(targets, outputs)
	if err != nil {
		return nil, err
	}
	if tf.ColorCount < outputs {
		return nil, fmt.Errorf("material: %s writes %d outputs, targets %d hold %d color formats",
			prog.composed.Name, outputs, targets, tf.ColorCount)
	}

	label := tmpl.Label
	if label == "" {
		label = "material." + prog.composed.Name
	}
	desc := &hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: prog.layout,
		Vertex: hal.VertexState{
			Module:     prog.vertex.Handle,
			EntryPoint: "main",
			Buffers:    prog.buffers,
		},
		Primitive:   tmpl.Primitive,
		Multisample: tmpl.Multisample,
	}
	if outputs > 0 {
		colorTargets := make([]gputypes.ColorTargetState, outputs)
		for i := range colorTargets {
			colorTargets[i] = gputypes.ColorTargetState{
				Format:    tf.Colors[i],
				Blend:     tmpl.Blend,
				WriteMask: tmpl.WriteMask,
			}
		}
		desc.Fragment = &hal.FragmentState{
			Module:     prog.pixel.Handle,
			EntryPoint: "main",
			Targets:    colorTargets,
		}
	}
	if tf.Depth != gputypes.TextureFormatUndefined {
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            tf.Depth,
			DepthWriteEnabled: tmpl.DepthWrite,
			DepthCompare:      tmpl.DepthCompare,
		}
	}

	p := &Pipeline{
		Name:             prog.composed.Name,
		Mask:             mask,
		Layout:           layoutID,
		Targets:          tf,
		Composed:         prog.composed,
		PipelineLayout:   prog.layout,
		BindGroupLayouts: prog.groups,
		VertexBuffers:    prog.buffers,
	}
	if p.Vars, p.Samplers, err = b.resolveVars(prog, vars); err != nil {
		return nil, err
	}
	p.Globals = b.applyGlobals(prog)

	handle, err := b.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("material: create pipeline %s: %w", label, err)
	}
	p.Handle = handle
	logging.Logger().Debug("material: pipeline created",
		"name", p.Name, "mask", mask, "layout", layoutID,
		"outputs", outputs, "vars", len(p.Vars), "globals", len(p.Globals))
	return p, nil
}

// Release destroys the device pipeline of p. Release is idempotent.
func (b *Builder) Release(p *Pipeline) {
	if p == nil || p.Handle == nil {
		return
	}
	b.device.DestroyRenderPipeline(p.Handle)
	p.Handle = nil
}

func (b *Builder) buildProgram(mask msh.Mask, layoutID vdecl.ID) (*program, error) {
	decls, err := b.layouts.GetSemanticDecls(layoutID)
	if err != nil {
		return nil, err
	}
	composed, err := b.library.GetSources(mask, decls)
	if err != nil {
		return nil, err
	}
	buffers, err := b.layouts.BufferLayouts(layoutID)
	if err != nil {
		return nil, err
	}

	p := &program{composed: composed, buffers: buffers}
	for _, stage := range msh.Stages {
		m, err := b.shaders.Build(stage, composed.Name, composed.Source(stage))
		if err != nil {
			return nil, err
		}
		switch stage {
		case msh.StageVertex:
			p.vertex = m
		case msh.StagePixel:
			p.pixel = m
		case msh.StageGeometry:
			p.geometry = m
		}
	}
	if p.vertex == nil || p.pixel == nil {
		return nil, fmt.Errorf("material: %s: empty vertex or pixel stage", composed.Name)
	}

	for _, stage := range programStages {
		group, err := b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   stage.Prefix() + composed.Name,
			Entries: bindGroupEntries(composed.Bindings, stage),
		})
		if err != nil {
			p.destroy(b.device)
			return nil, fmt.Errorf("material: create %s bind group layout: %w", stage, err)
		}
		p.groups = append(p.groups, group)
	}
	layout, err := b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            composed.Name,
		BindGroupLayouts: p.groups,
	})
	if err != nil {
		p.destroy(b.device)
		return nil, fmt.Errorf("material: create pipeline layout: %w", err)
	}
	p.layout = layout

	logging.Logger().Debug("material: program built", "name", composed.Name, "mask", mask, "layout", layoutID)
	return p, nil
}

// destroy releases the layouts of p. Shader modules belong to the shader
// cache.
func (p *program) destroy(device hal.Device) {
	if p.layout != nil {
		device.DestroyPipelineLayout(p.layout)
		p.layout = nil
	}
	for _, g := range p.groups {
		device.DestroyBindGroupLayout(g)
	}
	p.groups = nil
}

func bindGroupEntries(bindings []msh.Binding, stage msh.Stage) []gputypes.BindGroupLayoutEntry {
	var entries []gputypes.BindGroupLayoutEntry
	for _, bd := range bindings {
		if bd.Stage != stage {
			continue
		}
		e := gputypes.BindGroupLayoutEntry{
			Binding:    bd.Binding,
			Visibility: stage.Visibility(),
		}
		switch bd.Kind {
		case msh.BindingUniform:
			e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
		case msh.BindingTexture:
			e.Texture = &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			}
		case msh.BindingSampler:
			e.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
		}
		entries = append(entries, e)
	}
	return entries
}

func findBinding(bindings []msh.Binding, stage msh.Stage, kind msh.BindingKind, match func(msh.Binding) bool) (msh.Binding, bool) {
	for _, bd := range bindings {
		if bd.Stage == stage && bd.Kind == kind && match(bd) {
			return bd, true
		}
	}
	return msh.Binding{}, false
}

func (b *Builder) resolveVars(prog *program, ids []VarID) ([]BoundVar, []StaticSampler, error) {
	var (
		vars     []BoundVar
		samplers []StaticSampler
		seen     = make(map[VarID]bool, len(ids))
	)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		sv, err := b.ShaderVar(id)
		if err != nil {
			return nil, nil, err
		}

		kind := msh.BindingUniform
		if sv.IsTexture() {
			kind = msh.BindingTexture
		}
		bd, ok := findBinding(prog.composed.Bindings, sv.Stage, kind, func(bd msh.Binding) bool {
			return bd.Name == sv.Name
		})
		if !ok {
			logging.Logger().Warn("material: variable not bound by program, skipped",
				"program", prog.composed.Name, "var", sv.Name, "stage", sv.Stage, "kind", kind)
			continue
		}
		vars = append(vars, BoundVar{
			ID:         id,
			Name:       sv.Name,
			Stage:      sv.Stage,
			Mutability: sv.Mutability,
			Kind:       kind,
			Group:      bd.Group,
			Binding:    bd.Binding,
		})

		if !sv.IsTexture() {
			continue
		}
		sd, ok := findBinding(prog.composed.Bindings, sv.Stage, msh.BindingSampler, func(bd msh.Binding) bool {
			return bd.Texture == sv.Name
		})
		if !ok {
			continue
		}
		handle, err := b.samplers.Value(uint32(sv.Sampler))
		if err != nil {
			return nil, nil, err
		}
		samplers = append(samplers, StaticSampler{
			Var:     id,
			Name:    sd.Var,
			Stage:   sv.Stage,
			Sampler: sv.Sampler,
			Handle:  handle,
			Group:   sd.Group,
			Binding: sd.Binding,
		})
	}
	return vars, samplers, nil
}

func (b *Builder) applyGlobals(prog *program) []AppliedGlobal {
	var applied []AppliedGlobal
	for i, g := range b.globals.snapshot() {
		bd, ok := findBinding(prog.composed.Bindings, g.stage, msh.BindingUniform, func(bd msh.Binding) bool {
			return bd.Name == g.name
		})
		if !ok {
			continue
		}
		applied = append(applied, AppliedGlobal{
			ID:      GlobalVarID(i + 1),
			Name:    g.name,
			Stage:   g.stage,
			Buffer:  g.buffer,
			Group:   bd.Group,
			Binding: bd.Binding,
		})
	}
	return applied
}

// Stats holds cache statistics of a Builder.
type Stats struct {
	Masks    cache.Stats // mask selections
	Composed cache.Stats // generated text per (mask, vertex input)
	Shaders  cache.Stats // compiled modules
	Programs cache.Stats // layouts per (mask, vertex layout)
}

// Stats returns cache statistics.
func (b *Builder) Stats() Stats {
	masks, composed := b.library.Stats()
	return Stats{
		Masks:    masks,
		Composed: composed,
		Shaders:  b.shaders.Stats(),
		Programs: b.programs.Stats(),
	}
}
