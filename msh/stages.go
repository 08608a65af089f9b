package msh

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/gogpu/material/fault"
)

// BindingKind is the resource type of a generated binding.
type BindingKind uint8

const (
	BindingUniform BindingKind = iota
	BindingTexture
	BindingSampler
)

func (k BindingKind) String() string {
	switch k {
	case BindingUniform:
		return "uniform"
	case BindingTexture:
		return "texture"
	case BindingSampler:
		return "sampler"
	default:
		return fmt.Sprintf("BindingKind(%d)", uint8(k))
	}
}

// Binding is one resource declaration emitted into generated text.
type Binding struct {
	Stage Stage
	Kind  BindingKind
	// Name is the lookup name used by material variables. For uniforms it
	// is Config.CBufferName applied to the declared name.
	Name string
	// Var is the identifier declared in the generated text.
	Var string
	// Texture is the texture a sampler belongs to; empty for other kinds.
	Texture string
	// Type is the declared WGSL type of a uniform.
	Type    string
	Group   uint32
	Binding uint32
}

// stageWriter accumulates the text and bindings of one generated stage.
type stageWriter struct {
	cfg      *Config
	stage    Stage
	b        strings.Builder
	next     uint32
	bindings []Binding
}

func newStageWriter(cfg *Config, stage Stage) *stageWriter {
	return &stageWriter{cfg: cfg, stage: stage}
}

func (w *stageWriter) includes(items Items) {
	for _, inc := range items.data {
		fmt.Fprintf(&w.b, "#include %q\n", inc)
	}
	if len(items.data) > 0 {
		w.b.WriteByte('\n')
	}
}

func (w *stageWriter) ioStruct(name string, decls SemanticDecls) {
	fmt.Fprintf(&w.b, "struct %s {\n", name)
	for _, d := range decls.data {
		fmt.Fprintf(&w.b, "    %s %s: %s,\n", d.Semantic, d.Name, d.Type)
	}
	w.b.WriteString("}\n\n")
}

// plainStruct writes a struct without IO attributes. WGSL has no empty
// structs, so an empty list gets a placeholder member.
func (w *stageWriter) plainStruct(name string, decls Decls) {
	fmt.Fprintf(&w.b, "struct %s {\n", name)
	if len(decls.data) == 0 {
		w.b.WriteString("    _unused: u32,\n")
	}
	for _, d := range decls.data {
		fmt.Fprintf(&w.b, "    %s: %s,\n", d.Name, d.Type)
	}
	w.b.WriteString("}\n\n")
}

func (w *stageWriter) cbuffers(decls Decls) {
	group := w.stage.Group()
	for _, d := range decls.data {
		fmt.Fprintf(&w.b, "@group(%d) @binding(%d) var<uniform> %s: %s;\n", group, w.next, d.Name, d.Type)
		w.bindings = append(w.bindings, Binding{
			Stage:   w.stage,
			Kind:    BindingUniform,
			Name:    w.cfg.CBufferName(d.Name),
			Var:     d.Name,
			Type:    d.Type,
			Group:   group,
			Binding: w.next,
		})
		w.next++
	}
	if len(decls.data) > 0 {
		w.b.WriteByte('\n')
	}
}

func (w *stageWriter) textures(items Items) {
	group := w.stage.Group()
	for _, tex := range items.data {
		sampler := tex + w.cfg.SamplerSuffix
		fmt.Fprintf(&w.b, "@group(%d) @binding(%d) var %s: texture_2d<f32>;\n", group, w.next, tex)
		fmt.Fprintf(&w.b, "@group(%d) @binding(%d) var %s: sampler;\n", group, w.next+1, sampler)
		w.bindings = append(w.bindings,
			Binding{Stage: w.stage, Kind: BindingTexture, Name: tex, Var: tex, Group: group, Binding: w.next},
			Binding{Stage: w.stage, Kind: BindingSampler, Name: sampler, Var: sampler, Texture: tex, Group: group, Binding: w.next + 1},
		)
		w.next += 2
	}
	if len(items.data) > 0 {
		w.b.WriteByte('\n')
	}
}

func (w *stageWriter) source(src string) {
	w.b.WriteString(src)
}

func (w *stageWriter) String() string { return w.b.String() }

// pixelStage is the merged pixel stage of one mask.
type pixelStage struct {
	text        string
	inputs      SemanticDecls
	outputCount int
	bindings    []Binding
}

// byOrder sorts fragments ascending by order key, ties by registration order.
func byOrder(aOrder int64, aSeq int, bOrder int64, bSeq int) int {
	return cmp.Or(cmp.Compare(aOrder, bOrder), cmp.Compare(aSeq, bSeq))
}

func composePixel(cfg *Config, frags []*PixelFragment) (*pixelStage, error) {
	if len(frags) == 0 {
		return nil, fault.Authoringf("", "no pixel fragments selected")
	}
	frags = slices.Clone(frags)
	slices.SortStableFunc(frags, func(a, b *PixelFragment) int {
		return byOrder(a.Order, a.Seq, b.Order, b.Seq)
	})

	var (
		includes, textures Items
		inputs, outputs    SemanticDecls
		locals, cbuffers   Decls
		src                strings.Builder
	)
	for _, f := range frags {
		includes.Append(f.Includes)
		textures.Append(f.Textures)
		inputs.Append(f.Inputs)
		outputs.Append(f.Outputs)
		locals.Append(f.Locals)
		cbuffers.Append(f.CBuffers)
		src.WriteString(f.Source)
		src.WriteByte('\n')
	}
	includes.Normalize()
	textures.Normalize()
	for _, step := range [...]struct {
		what string
		err  error
	}{
		{"pixel inputs", inputs.Normalize()},
		{"pixel outputs", outputs.Normalize()},
		{"pixel locals", locals.Normalize()},
		{"pixel cbuffers", cbuffers.Normalize()},
	} {
		if step.err != nil {
			return nil, wrapAuthoring(step.what, step.err)
		}
	}

	w := newStageWriter(cfg, StagePixel)
	w.includes(includes)
	w.ioStruct("PSOutput", outputs)
	w.ioStruct("PSInput", inputs)
	w.plainStruct("PSLocal", locals)
	w.cbuffers(cbuffers)
	w.textures(textures)
	w.source(src.String())
	w.b.WriteString("\n@fragment\nfn main(psIn: PSInput) -> PSOutput {\n    var psOut: PSOutput;\n    var psLocal: PSLocal;\n")
	for _, f := range frags {
		fmt.Fprintf(&w.b, "    %s(psIn, &psLocal, &psOut);\n", f.EntryPoint)
	}
	w.b.WriteString("    return psOut;\n}\n")

	return &pixelStage{
		text:        w.String(),
		inputs:      inputs,
		outputCount: outputs.Len(),
		bindings:    w.bindings,
	}, nil
}

// composeGeometry generates the geometry stage feeding psInput. It returns
// the geometry inputs, which become the vertex stage outputs.
func composeGeometry(cfg *Config, g *GeometryFragment, psInput SemanticDecls) (string, SemanticDecls, []Binding, error) {
	var outputs, includes, textures Items
	var inputs SemanticDecls
	var cbuffers Decls
	outputs.Append(g.Outputs)
	includes.Append(g.Includes)
	textures.Append(g.Textures)
	inputs.Append(g.Inputs)
	cbuffers.Append(g.CBuffers)

	outputs.Normalize()
	includes.Normalize()
	textures.Normalize()
	if err := inputs.Normalize(); err != nil {
		return "", SemanticDecls{}, nil, wrapAuthoring("geometry inputs", err)
	}
	if err := cbuffers.Normalize(); err != nil {
		return "", SemanticDecls{}, nil, wrapAuthoring("geometry cbuffers", err)
	}
	if !psInput.SameNames(outputs) {
		return "", SemanticDecls{}, nil, fault.Authoringf("",
			"pixel and geometry stages are not data-compatible: pixel inputs (%s), geometry outputs (%s)",
			psInput.Join(", "), outputs.Join(", "))
	}

	w := newStageWriter(cfg, StageGeometry)
	w.includes(includes)
	w.ioStruct("GSOutput", psInput)
	w.ioStruct("GSInput", inputs)
	w.cbuffers(cbuffers)
	w.textures(textures)
	w.source(g.Source)
	w.b.WriteByte('\n')
	return w.String(), inputs, w.bindings, nil
}

// composeVertex generates the vertex stage writing every field of output
// from the vertex fragments keyed by field name.
func composeVertex(cfg *Config, family map[string]*VertexFragment, input, output SemanticDecls) (string, []Binding, error) {
	frags := make([]*VertexFragment, 0, output.Len())
	for _, field := range output.data {
		f, ok := family[field.Name]
		if !ok {
			return "", nil, fault.Authoringf("",
				"vertex and pixel or geometry stages are not data-compatible: no vertex fragment writes %q", field.Name)
		}
		frags = append(frags, f)
	}
	if len(frags) == 0 {
		return "", nil, fault.Authoringf("", "no vertex fragments selected")
	}
	slices.SortStableFunc(frags, func(a, b *VertexFragment) int {
		return byOrder(a.Order, a.Seq, b.Order, b.Seq)
	})

	var (
		includes, inputs, textures Items
		cbuffers                   Decls
		src                        strings.Builder
	)
	for _, f := range frags {
		includes.Append(f.Includes)
		inputs.Append(f.Inputs)
		textures.Append(f.Textures)
		cbuffers.Append(f.CBuffers)
		src.WriteString(f.Source)
		src.WriteByte('\n')
	}
	includes.Normalize()
	inputs.Normalize()
	textures.Normalize()
	if err := cbuffers.Normalize(); err != nil {
		return "", nil, wrapAuthoring("vertex cbuffers", err)
	}
	for _, name := range inputs.data {
		if !input.Contains(name) {
			return "", nil, fault.Authoringf("",
				"vertex inputs (%s) and layout inputs (%s) are not data-compatible",
				inputs.Join(", "), input.Join(", "))
		}
	}

	input.MarkPreprocessed()
	w := newStageWriter(cfg, StageVertex)
	w.includes(includes)
	w.ioStruct("VSOutput", output)
	w.ioStruct("VSInput", input)
	w.cbuffers(cbuffers)
	w.textures(textures)
	w.source(src.String())
	w.b.WriteString("\n@vertex\nfn main(vsIn: VSInput) -> VSOutput {\n    var vsOut: VSOutput;\n")
	for _, f := range frags {
		fmt.Fprintf(&w.b, "    %s(vsIn, &vsOut);\n", f.EntryPoint)
	}
	w.b.WriteString("    return vsOut;\n}\n")
	return w.String(), w.bindings, nil
}

func wrapAuthoring(what string, err error) error {
	if ae, ok := err.(*fault.AuthoringError); ok {
		ae.Reason = what + ": " + ae.Reason
		return ae
	}
	return &fault.AuthoringError{Reason: what, Err: err}
}
