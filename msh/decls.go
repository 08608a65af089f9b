package msh

import (
	"cmp"
	"slices"
	"strings"

	"github.com/gogpu/material/fault"
)

// Items is a list of plain names: includes, textures, vertex inputs.
//
// Merging appends; the first normalize pass sorts and removes duplicates and
// marks the list preprocessed, after which its order is kept as is.
type Items struct {
	data         []string
	preprocessed bool
}

// NewItems returns an unprocessed list holding a copy of names.
func NewItems(names ...string) Items {
	return Items{data: slices.Clone(names)}
}

// Data returns a copy of the names.
func (it Items) Data() []string { return slices.Clone(it.data) }

func (it Items) Len() int { return len(it.data) }

// Preprocessed reports whether the list was sorted and deduplicated.
func (it Items) Preprocessed() bool { return it.preprocessed }

// Append adds the names of other and clears the preprocessed flag.
func (it *Items) Append(other Items) {
	it.data = append(it.data, other.data...)
	it.preprocessed = false
}

// Normalize sorts and deduplicates the list once.
func (it *Items) Normalize() {
	if it.preprocessed {
		return
	}
	slices.Sort(it.data)
	it.data = slices.Compact(it.data)
	it.preprocessed = true
}

// Join concatenates the names with sep.
func (it Items) Join(sep string) string { return strings.Join(it.data, sep) }

// Decl is a named, typed declaration without a semantic (locals, uniforms).
type Decl struct {
	Name string
	Type string
}

// Decls is a list of Decl merged by name.
type Decls struct {
	data         []Decl
	preprocessed bool
}

// NewDecls returns an unprocessed list holding a copy of decls.
func NewDecls(decls ...Decl) Decls {
	return Decls{data: slices.Clone(decls)}
}

// Data returns a copy of the declarations.
func (d Decls) Data() []Decl { return slices.Clone(d.data) }

func (d Decls) Len() int { return len(d.data) }

// Append adds the declarations of other and clears the preprocessed flag.
func (d *Decls) Append(other Decls) {
	d.data = append(d.data, other.data...)
	d.preprocessed = false
}

// Normalize sorts by (name, type) and keeps one entry per name.
// Two different types for one name is an authoring error.
func (d *Decls) Normalize() error {
	if d.preprocessed {
		return nil
	}
	slices.SortFunc(d.data, func(a, b Decl) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.Type, b.Type))
	})
	out := d.data[:0]
	for _, decl := range d.data {
		if n := len(out); n > 0 && out[n-1].Name == decl.Name {
			if out[n-1].Type != decl.Type {
				return fault.Authoringf("", "different types for one name %q: %q and %q", decl.Name, out[n-1].Type, decl.Type)
			}
			continue
		}
		out = append(out, decl)
	}
	d.data = out
	d.preprocessed = true
	return nil
}

// SemanticDecl is a stage input or output field.
type SemanticDecl struct {
	Name     string
	Type     string
	Semantic string // WGSL IO attribute, e.g. "@location(0)" or "@builtin(position)"
}

// SemanticDecls is a list of SemanticDecl merged by name.
type SemanticDecls struct {
	data         []SemanticDecl
	preprocessed bool
}

// NewSemanticDecls returns an unprocessed list holding a copy of decls.
func NewSemanticDecls(decls ...SemanticDecl) SemanticDecls {
	return SemanticDecls{data: slices.Clone(decls)}
}

// Data returns a copy of the declarations.
func (s SemanticDecls) Data() []SemanticDecl { return slices.Clone(s.data) }

func (s SemanticDecls) Len() int { return len(s.data) }

// Preprocessed reports whether the list is already in its final order.
func (s SemanticDecls) Preprocessed() bool { return s.preprocessed }

// MarkPreprocessed freezes the current order. Vertex layouts use it so the
// generated input struct follows attribute order instead of name order.
func (s *SemanticDecls) MarkPreprocessed() { s.preprocessed = true }

// Append adds the declarations of other and clears the preprocessed flag.
func (s *SemanticDecls) Append(other SemanticDecls) {
	s.data = append(s.data, other.data...)
	s.preprocessed = false
}

// Normalize sorts by name and keeps one entry per name. The same name with
// a different type or semantic is an authoring error.
func (s *SemanticDecls) Normalize() error {
	if s.preprocessed {
		return nil
	}
	slices.SortFunc(s.data, func(a, b SemanticDecl) int {
		return cmp.Or(
			strings.Compare(a.Name, b.Name),
			strings.Compare(a.Type, b.Type),
			strings.Compare(a.Semantic, b.Semantic),
		)
	})
	out := s.data[:0]
	for _, decl := range s.data {
		if n := len(out); n > 0 && out[n-1].Name == decl.Name {
			last := out[n-1]
			switch {
			case last.Type != decl.Type:
				return fault.Authoringf("", "different types for one name %q: %q and %q", decl.Name, last.Type, decl.Type)
			case last.Semantic != decl.Semantic:
				return fault.Authoringf("", "different semantics for one name %q: %q and %q", decl.Name, last.Semantic, decl.Semantic)
			}
			continue
		}
		out = append(out, decl)
	}
	s.data = out
	s.preprocessed = true
	return nil
}

// Names returns the field names in current order.
func (s SemanticDecls) Names() []string {
	names := make([]string, len(s.data))
	for i, d := range s.data {
		names[i] = d.Name
	}
	return names
}

// Contains reports whether a field called name exists.
func (s SemanticDecls) Contains(name string) bool {
	return slices.ContainsFunc(s.data, func(d SemanticDecl) bool { return d.Name == name })
}

// Join concatenates the field names with sep.
func (s SemanticDecls) Join(sep string) string { return strings.Join(s.Names(), sep) }

// SameNames reports whether both lists hold the same names in the same order.
// Both lists must be normalized first.
func (s SemanticDecls) SameNames(items Items) bool {
	if !s.preprocessed || !items.preprocessed {
		return false
	}
	return slices.Equal(s.Names(), items.data)
}

// Signature is a stable text key of the list, used for caching.
func (s SemanticDecls) Signature() string {
	var b strings.Builder
	for _, d := range s.data {
		b.WriteString(d.Name)
		b.WriteByte(0)
		b.WriteString(d.Type)
		b.WriteByte(0)
		b.WriteString(d.Semantic)
		b.WriteByte('\n')
	}
	return b.String()
}
