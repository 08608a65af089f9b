package msh

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/material/fault"
)

func TestParseSection(t *testing.T) {
	frag, err := ParseSection([]byte(`<pixel entrypoint="psColor" order="10" override="true">
		<include>common.wgsl</include>
		<texture>texBase</texture>
		<input name="uv" type="vec2f" semantic="@location(0)"/>
		<output name="color" type="vec4f" semantic="@location(0)"/>
		<local name="tint" type="vec4f"/>
		<cbuffer name="Material" type="MaterialData"/>
		<source>  // body  </source>
	</pixel>`))
	if err != nil {
		t.Fatalf("ParseSection: %v", err)
	}
	ps, ok := frag.(*PixelFragment)
	if !ok {
		t.Fatalf("fragment type = %T, want *PixelFragment", frag)
	}
	if ps.Stage() != StagePixel {
		t.Errorf("Stage() = %v, want pixel", ps.Stage())
	}
	if ps.EntryPoint != "psColor" || ps.Order != 10 || !ps.Override {
		t.Errorf("header = (%q, %d, %v), want (psColor, 10, true)", ps.EntryPoint, ps.Order, ps.Override)
	}
	if got := ps.Includes.Data(); len(got) != 1 || got[0] != "common.wgsl" {
		t.Errorf("Includes = %v", got)
	}
	if got := ps.Inputs.Data(); len(got) != 1 || got[0] != (SemanticDecl{"uv", "vec2f", "@location(0)"}) {
		t.Errorf("Inputs = %v", got)
	}
	if got := ps.CBuffers.Data(); len(got) != 1 || got[0] != (Decl{"Material", "MaterialData"}) {
		t.Errorf("CBuffers = %v", got)
	}
	if ps.Source != "// body" {
		t.Errorf("Source = %q, want trimmed text", ps.Source)
	}
	if ps.Unit != -1 {
		t.Errorf("Unit = %d, want -1 for a standalone fragment", ps.Unit)
	}
}

func TestParseSectionVertex(t *testing.T) {
	frag, err := ParseSection([]byte(`<vertex output="uv" entrypoint="vsUV" order="-3">
		<input>uv</input>
		<input>position</input>
		<source>// uv</source>
	</vertex>`))
	if err != nil {
		t.Fatalf("ParseSection: %v", err)
	}
	vs := frag.(*VertexFragment)
	if vs.Output != "uv" || vs.EntryPoint != "vsUV" || vs.Order != -3 {
		t.Errorf("header = (%q, %q, %d)", vs.Output, vs.EntryPoint, vs.Order)
	}
	if got := vs.Inputs.Join(","); got != "uv,position" {
		t.Errorf("Inputs = %q, want authored order before normalization", got)
	}
}

func TestParseSectionErrors(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want string
	}{
		{"unknown stage", `<compute entrypoint="cs"/>`, "unknown section"},
		{"main entrypoint", `<pixel entrypoint="main"/>`, "reserved"},
		{"missing entrypoint", `<pixel/>`, "entrypoint is missing"},
		{"vertex without output", `<vertex entrypoint="vs"/>`, "without output"},
		{"bad order", `<pixel entrypoint="ps" order="first"/>`, "wrong value"},
		{"bad override", `<pixel entrypoint="ps" override="maybe"/>`, "wrong value"},
		{"override on vertex", `<vertex output="uv" entrypoint="vs" override="true"/>`, "vertex.override"},
		{"unknown attribute", `<pixel entrypoint="ps" color="red"/>`, "unknown attribute"},
		{"unknown element", `<pixel entrypoint="ps"><shader>x</shader></pixel>`, "unknown section pixel.shader"},
		{"input without semantic", `<pixel entrypoint="ps"><input name="uv" type="vec2f"/></pixel>`, "needs name, type and semantic"},
		{"local without type", `<pixel entrypoint="ps"><local name="x"/></pixel>`, "needs name and type"},
		{"attributes on include", `<vertex output="uv" entrypoint="vs"><include name="x">a</include></vertex>`, "unexpected attributes"},
		{"geometry entrypoint", `<geometry entrypoint="gs"/>`, "geometry.entrypoint"},
		{"malformed", `<pixel entrypoint="ps">`, "malformed section"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSection([]byte(tt.xml))
			if err == nil {
				t.Fatal("ParseSection succeeded, want error")
			}
			if !errors.Is(err, fault.ErrAuthoring) {
				t.Errorf("error %v does not match ErrAuthoring", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestParseUnit(t *testing.T) {
	u, err := ParseUnit(strings.NewReader(`<fragment xmlns="urn:gogpu:material:fragment" name="TEXTURE">
		<vertex output="uv" entrypoint="vsUV"><input>uv</input></vertex>
		<vertex output="normal" entrypoint="vsNormal"/>
		<pixel entrypoint="psTexture"/>
		<geometry><gsoutput>uv</gsoutput></geometry>
	</fragment>`))
	if err != nil {
		t.Fatalf("ParseUnit: %v", err)
	}
	if u.Name != "TEXTURE" || u.Group != "TEXTURE" || u.Root {
		t.Errorf("unit = (%q, %q, %v), want group defaulting to name", u.Name, u.Group, u.Root)
	}
	frags := u.Fragments()
	if len(frags) != 4 {
		t.Fatalf("len(Fragments()) = %d, want 4", len(frags))
	}
	wantStages := []Stage{StageVertex, StageVertex, StagePixel, StageGeometry}
	for i, f := range frags {
		if f.Stage() != wantStages[i] {
			t.Errorf("Fragments()[%d].Stage() = %v, want %v", i, f.Stage(), wantStages[i])
		}
	}
	if first := frags[0].(*VertexFragment); first.Output != "normal" {
		t.Errorf("first vertex fragment = %q, want output-name order", first.Output)
	}
}

func TestParseUnitErrors(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want string
	}{
		{"missing name", `<fragment/>`, "name is missing"},
		{"bad root", `<fragment name="A" root="yes"/>`, "root"},
		{"unknown attribute", `<fragment name="A" id="3"/>`, "unknown attribute fragment.id"},
		{"two pixel sections", `<fragment name="A"><pixel entrypoint="a"/><pixel entrypoint="b"/></fragment>`, "more than one pixel"},
		{"two geometry sections", `<fragment name="A"><geometry/><geometry/></fragment>`, "more than one geometry"},
		{"vertex output twice", `<fragment name="A"><vertex output="uv" entrypoint="a"/><vertex output="uv" entrypoint="b"/></fragment>`, "defined twice"},
		{"section error names unit", `<fragment name="A"><pixel entrypoint="main"/></fragment>`, "authoring: A:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUnit(strings.NewReader(tt.xml))
			if err == nil {
				t.Fatal("ParseUnit succeeded, want error")
			}
			if !errors.Is(err, fault.ErrAuthoring) {
				t.Errorf("error %v does not match ErrAuthoring", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}
