package msh

// Fragment is one stage section of a definition unit.
// The set of implementations is closed: *VertexFragment, *PixelFragment and
// *GeometryFragment. Dispatch with a type switch.
type Fragment interface {
	Stage() Stage
	fragment()
}

// VertexFragment writes one field of the vertex output struct.
type VertexFragment struct {
	// Output is the vertex output field this fragment produces. A unit may
	// carry several vertex fragments, one per field.
	Output     string
	EntryPoint string
	Order      int64
	Includes   Items
	Inputs     Items // vertex attribute names read from the layout
	Textures   Items
	CBuffers   Decls
	Source     string

	// Unit is the arena index of the owning unit inside its Library, or -1
	// for a fragment parsed on its own.
	Unit int
	// Seq is the registration order across the library; ties on Order are
	// broken by Seq.
	Seq int

	orderSet bool
}

// PixelFragment contributes an entry point to the pixel stage.
type PixelFragment struct {
	EntryPoint string
	Order      int64
	// Override makes this fragment the only pixel contributor of a mask.
	Override bool
	Includes Items
	Textures Items
	Inputs   SemanticDecls
	Outputs  SemanticDecls
	Locals   Decls
	CBuffers Decls
	Source   string

	Unit int
	Seq  int

	orderSet bool
}

// GeometryFragment is a complete geometry stage. At most one can be selected
// per mask.
type GeometryFragment struct {
	Includes Items
	// Outputs names the fields the geometry stage emits; they must match the
	// pixel stage inputs exactly.
	Outputs  Items
	Inputs   SemanticDecls
	Textures Items
	CBuffers Decls
	Source   string

	Unit int
}

func (*VertexFragment) Stage() Stage   { return StageVertex }
func (*PixelFragment) Stage() Stage    { return StagePixel }
func (*GeometryFragment) Stage() Stage { return StageGeometry }

func (*VertexFragment) fragment()   {}
func (*PixelFragment) fragment()    {}
func (*GeometryFragment) fragment() {}

// Unit is one definition file: a named feature with its stage fragments.
type Unit struct {
	Name  string
	Group string
	// Root units are part of every mask.
	Root bool
	// File is the path the unit was loaded from, for error messages.
	File string

	// ID is the mask bit index; 0 for the root unit.
	ID uint32
	// GroupID indexes Library groups; units sharing a group exclude each other.
	GroupID int

	// Vertex fragments keyed by the output field they write.
	Vertex   map[string]*VertexFragment
	Pixel    *PixelFragment
	Geometry *GeometryFragment
}

// Fragments returns every fragment of the unit, vertex fragments first in
// output-name order.
func (u *Unit) Fragments() []Fragment {
	out := make([]Fragment, 0, len(u.Vertex)+2)
	for _, key := range sortedKeys(u.Vertex) {
		out = append(out, u.Vertex[key])
	}
	if u.Pixel != nil {
		out = append(out, u.Pixel)
	}
	if u.Geometry != nil {
		out = append(out, u.Geometry)
	}
	return out
}

// source names the unit in error messages.
func (u *Unit) source() string {
	if u.File != "" {
		return u.File
	}
	return u.Name
}
