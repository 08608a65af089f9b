// Package vdecl interns vertex layouts.
//
// A layout is an ordered list of vertex attributes. Structurally equal lists
// share one ID, and every ID carries the derived GPU layout elements and the
// vertex input declarations generated shader text is built from.
//
// IDs start at 1. ID 0 is invalid and every accessor rejects it with a
// *fault.LookupError.
package vdecl

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/material/fault"
	"github.com/gogpu/material/internal/intern"
	"github.com/gogpu/material/internal/logging"
	"github.com/gogpu/material/msh"
)

// Type is the element type of a vertex attribute.
type Type uint8

const (
	Float Type = iota
	Float2
	Float3
	Float4
	// Color3 and Color4 are normalized 8-bit colors. Both occupy four bytes
	// in the vertex buffer.
	Color3
	Color4
)

var typeNames = [...]string{"Float", "Float2", "Float3", "Float4", "Color3", "Color4"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool { return t <= Color4 }

// WGSL returns the shader type the attribute is read as.
func (t Type) WGSL() string {
	switch t {
	case Float:
		return "f32"
	case Float2:
		return "vec2f"
	case Float3, Color3:
		return "vec3f"
	case Float4, Color4:
		return "vec4f"
	default:
		return ""
	}
}

// Format returns the vertex buffer format of the attribute.
func (t Type) Format() gputypes.VertexFormat {
	switch t {
	case Float:
		return gputypes.VertexFormatFloat32
	case Float2:
		return gputypes.VertexFormatFloat32x2
	case Float3:
		return gputypes.VertexFormatFloat32x3
	case Float4:
		return gputypes.VertexFormatFloat32x4
	case Color3, Color4:
		return gputypes.VertexFormatUnorm8x4
	default:
		return 0
	}
}

// Item is one vertex attribute.
type Item struct {
	Name      string
	Type      Type
	Slot      uint32 // vertex buffer slot
	PerVertex bool   // false: stepped per instance
}

// ID identifies an interned layout.
type ID uint32

// NameID identifies an interned attribute name.
type NameID uint32

// LayoutElement is the GPU description of one attribute.
type LayoutElement struct {
	Name     string
	Location uint32 // shader location, equal to the position in the layout
	Slot     uint32
	Format   gputypes.VertexFormat
	StepMode gputypes.VertexStepMode
}

type layout struct {
	items    []Item
	elements []LayoutElement
	decls    msh.SemanticDecls
}

type membership struct {
	name   NameID
	layout ID
}

// Storage interns vertex layouts. It is safe for concurrent use.
type Storage struct {
	layouts *intern.Table[string, *layout]
	names   *intern.Table[string, struct{}]

	mu      sync.RWMutex
	members map[membership]struct{}
}

// NewStorage returns an empty storage.
func NewStorage() *Storage {
	return &Storage{
		layouts: intern.New[string, *layout]("vertex layouts"),
		names:   intern.New[string, struct{}]("vertex attribute names"),
		members: make(map[membership]struct{}),
	}
}

// Add interns items and returns the ID of the layout. Structurally equal
// lists return the same ID on every call.
func (s *Storage) Add(items []Item) (ID, error) {
	key := addKey(items)
	var created *layout
	id, found, err := s.layouts.Intern(key, func() (*layout, error) {
		l, err := newLayout(items)
		created = l
		return l, err
	})
	if err != nil {
		return 0, err
	}
	if !found {
		s.remember(ID(id), created.items)
		logging.Logger().Debug("vdecl: layout added", "id", id, "attributes", len(items))
	}
	return ID(id), nil
}

// Join returns the layout holding the attributes of a followed by those of
// b, with locations renumbered from 0. Results are cached by the ordered
// pair, so Join(a, b) and Join(b, a) are different layouts.
func (s *Storage) Join(a, b ID) (ID, error) {
	la, err := s.layout(a)
	if err != nil {
		return 0, err
	}
	lb, err := s.layout(b)
	if err != nil {
		return 0, err
	}

	key := joinKey(a, b)
	var created *layout
	id, found, err := s.layouts.Intern(key, func() (*layout, error) {
		items := make([]Item, 0, len(la.items)+len(lb.items))
		items = append(items, la.items...)
		items = append(items, lb.items...)
		l, err := newLayout(items)
		created = l
		return l, err
	})
	if err != nil {
		return 0, err
	}
	if !found {
		s.remember(ID(id), created.items)
		logging.Logger().Debug("vdecl: layouts joined", "a", a, "b", b, "id", id)
	}
	return ID(id), nil
}

// GetVarNameId interns an attribute name.
func (s *Storage) GetVarNameId(name string) NameID {
	return NameID(s.names.Put(name, struct{}{}))
}

// IsNameExists reports whether the layout id holds an attribute whose name
// was interned as nameID.
func (s *Storage) IsNameExists(nameID NameID, id ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[membership{name: nameID, layout: id}]
	return ok
}

// GetSemanticDecls returns the vertex input declarations of layout id, in
// attribute order.
func (s *Storage) GetSemanticDecls(id ID) (msh.SemanticDecls, error) {
	l, err := s.layout(id)
	if err != nil {
		return msh.SemanticDecls{}, err
	}
	decls := msh.NewSemanticDecls(l.decls.Data()...)
	decls.MarkPreprocessed()
	return decls, nil
}

// GetLayoutElements returns the GPU layout elements of layout id.
func (s *Storage) GetLayoutElements(id ID) ([]LayoutElement, error) {
	l, err := s.layout(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(l.elements), nil
}

// Len returns the number of interned layouts, joined ones included.
func (s *Storage) Len() int { return s.layouts.Len() }

// BufferLayouts groups the elements of layout id by buffer slot. Slots
// without attributes are marked unused. Attributes of one slot must share
// their step mode.
func (s *Storage) BufferLayouts(id ID) ([]gputypes.VertexBufferLayout, error) {
	l, err := s.layout(id)
	if err != nil {
		return nil, err
	}
	if len(l.elements) == 0 {
		return nil, nil
	}

	var slots uint32
	for _, e := range l.elements {
		slots = max(slots, e.Slot+1)
	}
	out := make([]gputypes.VertexBufferLayout, slots)
	for i := range out {
		out[i].StepMode = gputypes.VertexStepModeVertexBufferNotUsed
	}
	for _, e := range l.elements {
		buf := &out[e.Slot]
		switch buf.StepMode {
		case gputypes.VertexStepModeVertexBufferNotUsed:
			buf.StepMode = e.StepMode
		case e.StepMode:
		default:
			return nil, fault.Authoringf("vertex layout "+strconv.Itoa(int(id)),
				"slot %d mixes per-vertex and per-instance attributes", e.Slot)
		}
		buf.Attributes = append(buf.Attributes, gputypes.VertexAttribute{
			Format:         e.Format,
			Offset:         buf.ArrayStride,
			ShaderLocation: e.Location,
		})
		buf.ArrayStride += e.Format.Size()
	}
	return out, nil
}

func (s *Storage) layout(id ID) (*layout, error) {
	return s.layouts.Value(uint32(id))
}

func (s *Storage) remember(id ID, items []Item) {
	names := make([]NameID, len(items))
	for i, it := range items {
		names[i] = s.GetVarNameId(it.Name)
	}
	s.mu.Lock()
	for _, n := range names {
		s.members[membership{name: n, layout: id}] = struct{}{}
	}
	s.mu.Unlock()
}

func newLayout(items []Item) (*layout, error) {
	l := &layout{
		items:    slices.Clone(items),
		elements: make([]LayoutElement, len(items)),
	}
	decls := make([]msh.SemanticDecl, len(items))
	for i, it := range items {
		if !it.Type.Valid() {
			return nil, fault.Authoringf("vertex attribute "+it.Name, "wrong type value %d", uint8(it.Type))
		}
		step := gputypes.VertexStepModeInstance
		if it.PerVertex {
			step = gputypes.VertexStepModeVertex
		}
		loc := uint32(i)
		l.elements[i] = LayoutElement{
			Name:     it.Name,
			Location: loc,
			Slot:     it.Slot,
			Format:   it.Type.Format(),
			StepMode: step,
		}
		decls[i] = msh.SemanticDecl{
			Name:     it.Name,
			Type:     it.Type.WGSL(),
			Semantic: fmt.Sprintf("@location(%d)", loc),
		}
	}
	l.decls = msh.NewSemanticDecls(decls...)
	l.decls.MarkPreprocessed()
	return l, nil
}

// addKey encodes items structurally. Join keys use a different prefix so a
// joined layout never aliases an added one.
func addKey(items []Item) string {
	b := make([]byte, 0, 1+len(items)*16)
	b = append(b, 'a')
	for _, it := range items {
		b = binary.AppendUvarint(b, uint64(len(it.Name)))
		b = append(b, it.Name...)
		b = append(b, byte(it.Type))
		b = binary.LittleEndian.AppendUint32(b, it.Slot)
		if it.PerVertex {
			b = append(b, 1)
		} else {
			b = append(b, 0)
		}
	}
	return string(b)
}

func joinKey(a, b ID) string {
	k := make([]byte, 0, 9)
	k = append(k, 'j')
	k = binary.LittleEndian.AppendUint32(k, uint32(a))
	k = binary.LittleEndian.AppendUint32(k, uint32(b))
	return string(k)
}
