package msh

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/material/fault"
)

func TestItemsNormalize(t *testing.T) {
	it := NewItems("b", "a", "b")
	it.Append(NewItems("c", "a"))
	it.Normalize()
	if got, want := it.Data(), []string{"a", "b", "c"}; !slices.Equal(got, want) {
		t.Errorf("Data() = %v, want %v", got, want)
	}
	if !it.Preprocessed() {
		t.Error("Preprocessed() = false after Normalize")
	}

	it.Append(NewItems("0"))
	if it.Preprocessed() {
		t.Error("Preprocessed() = true after Append")
	}
}

func TestDeclsNormalize(t *testing.T) {
	d := NewDecls(Decl{"tint", "vec4f"}, Decl{"base", "vec4f"})
	d.Append(NewDecls(Decl{"tint", "vec4f"}))
	if err := d.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := []Decl{{"base", "vec4f"}, {"tint", "vec4f"}}
	if got := d.Data(); !slices.Equal(got, want) {
		t.Errorf("Data() = %v, want %v", got, want)
	}

	bad := NewDecls(Decl{"tint", "vec4f"}, Decl{"tint", "vec3f"})
	if err := bad.Normalize(); !errors.Is(err, fault.ErrAuthoring) {
		t.Errorf("Normalize with conflicting types = %v, want ErrAuthoring", err)
	}
}

func TestSemanticDeclsNormalize(t *testing.T) {
	tests := []struct {
		name    string
		decls   []SemanticDecl
		want    []string
		wantErr bool
	}{
		{
			name:  "dedupe",
			decls: []SemanticDecl{{"uv", "vec2f", "@location(0)"}, {"position", "vec4f", "@builtin(position)"}, {"uv", "vec2f", "@location(0)"}},
			want:  []string{"position", "uv"},
		},
		{
			name:    "type mismatch",
			decls:   []SemanticDecl{{"uv", "vec2f", "@location(0)"}, {"uv", "vec3f", "@location(0)"}},
			wantErr: true,
		},
		{
			name:    "semantic mismatch",
			decls:   []SemanticDecl{{"uv", "vec2f", "@location(0)"}, {"uv", "vec2f", "@location(1)"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSemanticDecls(tt.decls...)
			err := s.Normalize()
			if tt.wantErr {
				if !errors.Is(err, fault.ErrAuthoring) {
					t.Fatalf("Normalize = %v, want ErrAuthoring", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if got := s.Names(); !slices.Equal(got, tt.want) {
				t.Errorf("Names() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSemanticDeclsPreprocessedKeepsOrder(t *testing.T) {
	s := NewSemanticDecls(SemanticDecl{"z", "f32", "@location(0)"}, SemanticDecl{"a", "f32", "@location(1)"})
	s.MarkPreprocessed()
	if err := s.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := s.Join(","); got != "z,a" {
		t.Errorf("Join = %q, want layout order kept", got)
	}
}

func TestSemanticDeclsSameNames(t *testing.T) {
	s := NewSemanticDecls(SemanticDecl{"uv", "vec2f", "@location(0)"}, SemanticDecl{"position", "vec4f", "@builtin(position)"})
	items := NewItems("uv", "position")
	if s.SameNames(items) {
		t.Error("SameNames before normalization = true")
	}
	if err := s.Normalize(); err != nil {
		t.Fatal(err)
	}
	items.Normalize()
	if !s.SameNames(items) {
		t.Error("SameNames = false for equal name sets")
	}
	items.Append(NewItems("normal"))
	items.Normalize()
	if s.SameNames(items) {
		t.Error("SameNames = true for different name sets")
	}
}

func TestSemanticDeclsSignature(t *testing.T) {
	a := NewSemanticDecls(SemanticDecl{"position", "vec3f", "@location(0)"})
	b := NewSemanticDecls(SemanticDecl{"position", "vec3f", "@location(0)"})
	c := NewSemanticDecls(SemanticDecl{"position", "vec3f", "@location(1)"})
	if a.Signature() != b.Signature() {
		t.Error("equal lists have different signatures")
	}
	if a.Signature() == c.Signature() {
		t.Error("different lists share a signature")
	}
}
