package msh

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/gogpu/material/fault"
)

// Namespace is the XML namespace of fragment definition files.
const Namespace = "urn:gogpu:material:fragment"

const xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

// Section is one decoded stage element (<vertex>, <pixel> or <geometry>).
type Section struct {
	XMLName    xml.Name
	Output     string     `xml:"output,attr"`
	EntryPoint string     `xml:"entrypoint,attr"`
	Order      string     `xml:"order,attr"`
	Override   string     `xml:"override,attr"`
	Attrs      []xml.Attr `xml:",any,attr"`
	Children   []Element  `xml:",any"`
}

// Element is one child declaration of a Section.
type Element struct {
	XMLName  xml.Name
	Name     string     `xml:"name,attr"`
	Type     string     `xml:"type,attr"`
	Semantic string     `xml:"semantic,attr"`
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
}

type unitDoc struct {
	XMLName  xml.Name   `xml:"fragment"`
	Name     string     `xml:"name,attr"`
	Group    string     `xml:"group,attr"`
	Root     string     `xml:"root,attr"`
	Attrs    []xml.Attr `xml:",any,attr"`
	Sections []Section  `xml:",any"`
}

// ParseSection decodes one stage element and parses it.
func ParseSection(data []byte) (Fragment, error) {
	var sec Section
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&sec); err != nil {
		return nil, &fault.AuthoringError{Reason: "malformed section", Err: err}
	}
	return Parse(sec)
}

// Parse turns one stage section into a typed fragment.
// Unknown elements or attributes, bad numbers and booleans, missing entry
// points and entry points called "main" are authoring errors.
func Parse(sec Section) (Fragment, error) {
	switch sec.XMLName.Local {
	case "vertex":
		return parseVertex(sec)
	case "pixel":
		return parsePixel(sec)
	case "geometry":
		return parseGeometry(sec)
	default:
		return nil, fault.Authoringf("", "unknown section <%s>", sec.XMLName.Local)
	}
}

// ParseUnit decodes a whole definition unit. The returned unit has no ID or
// GroupID yet; Library.Load assigns them.
func ParseUnit(r io.Reader) (*Unit, error) {
	var doc unitDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &fault.AuthoringError{Reason: "malformed definition", Err: err}
	}
	if err := rejectAttrs("fragment", doc.Attrs); err != nil {
		return nil, err
	}
	if doc.Name == "" {
		return nil, fault.Authoringf("", "fragment name is missing")
	}

	u := &Unit{
		Name:   doc.Name,
		Group:  doc.Group,
		Vertex: make(map[string]*VertexFragment),
	}
	if u.Group == "" {
		u.Group = u.Name
	}
	if doc.Root != "" {
		root, err := parseBool(u.Name, "root", doc.Root)
		if err != nil {
			return nil, err
		}
		u.Root = root
	}

	for _, sec := range doc.Sections {
		frag, err := Parse(sec)
		if err != nil {
			return nil, withSource(err, u.Name)
		}
		switch f := frag.(type) {
		case *VertexFragment:
			if _, dup := u.Vertex[f.Output]; dup {
				return nil, fault.Authoringf(u.Name, "vertex output %q is defined twice", f.Output)
			}
			u.Vertex[f.Output] = f
		case *PixelFragment:
			if u.Pixel != nil {
				return nil, fault.Authoringf(u.Name, "more than one pixel section")
			}
			u.Pixel = f
		case *GeometryFragment:
			if u.Geometry != nil {
				return nil, fault.Authoringf(u.Name, "more than one geometry section")
			}
			u.Geometry = f
		}
	}
	return u, nil
}

func parseVertex(sec Section) (*VertexFragment, error) {
	if err := rejectAttrs("vertex", sec.Attrs); err != nil {
		return nil, err
	}
	if sec.Override != "" {
		return nil, fault.Authoringf("", "unknown attribute vertex.override")
	}
	if sec.Output == "" {
		return nil, fault.Authoringf("", "vertex section without output")
	}
	where := "vertex." + sec.Output
	ep, err := parseEntryPoint(where, sec.EntryPoint)
	if err != nil {
		return nil, err
	}
	order, err := parseOrder(where, sec.Order)
	if err != nil {
		return nil, err
	}

	f := &VertexFragment{Output: sec.Output, EntryPoint: ep, Order: order, Unit: -1, orderSet: sec.Order != ""}
	var includes, inputs, textures []string
	var cbuffers []Decl
	for _, el := range sec.Children {
		key := el.XMLName.Local
		if err := checkElementAttrs(where, el, key == "cbuffer"); err != nil {
			return nil, err
		}
		switch key {
		case "include":
			includes = append(includes, strings.TrimSpace(el.Text))
		case "input":
			inputs = append(inputs, strings.TrimSpace(el.Text))
		case "texture":
			textures = append(textures, strings.TrimSpace(el.Text))
		case "cbuffer":
			cbuffers = append(cbuffers, Decl{Name: el.Name, Type: el.Type})
		case "source":
			f.Source = strings.TrimSpace(el.Text)
		default:
			return nil, unknownElement(where, el)
		}
	}
	f.Includes = NewItems(includes...)
	f.Inputs = NewItems(inputs...)
	f.Textures = NewItems(textures...)
	f.CBuffers = NewDecls(cbuffers...)
	return f, nil
}

func parsePixel(sec Section) (*PixelFragment, error) {
	if err := rejectAttrs("pixel", sec.Attrs); err != nil {
		return nil, err
	}
	if sec.Output != "" {
		return nil, fault.Authoringf("", "unknown attribute pixel.output")
	}
	ep, err := parseEntryPoint("pixel", sec.EntryPoint)
	if err != nil {
		return nil, err
	}
	order, err := parseOrder("pixel", sec.Order)
	if err != nil {
		return nil, err
	}

	f := &PixelFragment{EntryPoint: ep, Order: order, Unit: -1, orderSet: sec.Order != ""}
	if sec.Override != "" {
		if f.Override, err = parseBool("pixel", "override", sec.Override); err != nil {
			return nil, err
		}
	}

	var includes, textures []string
	var inputs, outputs []SemanticDecl
	var locals, cbuffers []Decl
	for _, el := range sec.Children {
		key := el.XMLName.Local
		switch key {
		case "include", "texture", "source":
			if err := checkElementAttrs("pixel", el, false); err != nil {
				return nil, err
			}
		case "input", "output":
			if err := checkSemanticAttrs("pixel", el); err != nil {
				return nil, err
			}
		case "local", "cbuffer":
			if err := checkElementAttrs("pixel", el, true); err != nil {
				return nil, err
			}
		}
		switch key {
		case "include":
			includes = append(includes, strings.TrimSpace(el.Text))
		case "texture":
			textures = append(textures, strings.TrimSpace(el.Text))
		case "input":
			inputs = append(inputs, SemanticDecl{Name: el.Name, Type: el.Type, Semantic: el.Semantic})
		case "output":
			outputs = append(outputs, SemanticDecl{Name: el.Name, Type: el.Type, Semantic: el.Semantic})
		case "local":
			locals = append(locals, Decl{Name: el.Name, Type: el.Type})
		case "cbuffer":
			cbuffers = append(cbuffers, Decl{Name: el.Name, Type: el.Type})
		case "source":
			f.Source = strings.TrimSpace(el.Text)
		default:
			return nil, unknownElement("pixel", el)
		}
	}
	f.Includes = NewItems(includes...)
	f.Textures = NewItems(textures...)
	f.Inputs = NewSemanticDecls(inputs...)
	f.Outputs = NewSemanticDecls(outputs...)
	f.Locals = NewDecls(locals...)
	f.CBuffers = NewDecls(cbuffers...)
	return f, nil
}

func parseGeometry(sec Section) (*GeometryFragment, error) {
	if err := rejectAttrs("geometry", sec.Attrs); err != nil {
		return nil, err
	}
	for _, a := range [...]struct{ name, value string }{
		{"output", sec.Output}, {"entrypoint", sec.EntryPoint}, {"order", sec.Order}, {"override", sec.Override},
	} {
		if a.value != "" {
			return nil, fault.Authoringf("", "unknown attribute geometry.%s", a.name)
		}
	}

	f := &GeometryFragment{Unit: -1}
	var includes, outputs, textures []string
	var inputs []SemanticDecl
	var cbuffers []Decl
	for _, el := range sec.Children {
		key := el.XMLName.Local
		if key == "input" {
			if err := checkSemanticAttrs("geometry", el); err != nil {
				return nil, err
			}
		} else if err := checkElementAttrs("geometry", el, key == "cbuffer"); err != nil {
			return nil, err
		}
		switch key {
		case "include":
			includes = append(includes, strings.TrimSpace(el.Text))
		case "gsoutput":
			outputs = append(outputs, strings.TrimSpace(el.Text))
		case "input":
			inputs = append(inputs, SemanticDecl{Name: el.Name, Type: el.Type, Semantic: el.Semantic})
		case "texture":
			textures = append(textures, strings.TrimSpace(el.Text))
		case "cbuffer":
			cbuffers = append(cbuffers, Decl{Name: el.Name, Type: el.Type})
		case "source":
			f.Source = strings.TrimSpace(el.Text)
		default:
			return nil, unknownElement("geometry", el)
		}
	}
	f.Includes = NewItems(includes...)
	f.Outputs = NewItems(outputs...)
	f.Inputs = NewSemanticDecls(inputs...)
	f.Textures = NewItems(textures...)
	f.CBuffers = NewDecls(cbuffers...)
	return f, nil
}

func parseEntryPoint(where, ep string) (string, error) {
	switch ep {
	case "":
		return "", fault.Authoringf("", "%s: entrypoint is missing", where)
	case "main":
		return "", fault.Authoringf("", "%s: entrypoint name 'main' is reserved", where)
	}
	return ep, nil
}

func parseOrder(where, s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fault.Authoringf("", "%s.order: wrong value %q", where, s)
	}
	return v, nil
}

func parseBool(where, attr, s string) (bool, error) {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fault.Authoringf("", "%s.%s: wrong value %q", where, attr, s)
	}
	return v, nil
}

// rejectAttrs fails on any attribute left over after decoding, ignoring
// namespace declarations and xsi attributes.
func rejectAttrs(where string, attrs []xml.Attr) error {
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" || a.Name.Space == xsiNamespace {
			continue
		}
		return fault.Authoringf("", "unknown attribute %s.%s with data %q", where, a.Name.Local, a.Value)
	}
	return nil
}

// checkElementAttrs validates a plain element. named elements need name and
// type attributes; others must carry none.
func checkElementAttrs(where string, el Element, named bool) error {
	key := where + "." + el.XMLName.Local
	if err := rejectAttrs(key, el.Attrs); err != nil {
		return err
	}
	if el.Semantic != "" {
		return fault.Authoringf("", "unknown attribute %s.semantic", key)
	}
	if !named {
		if el.Name != "" || el.Type != "" {
			return fault.Authoringf("", "unexpected attributes on %s", key)
		}
		return nil
	}
	if el.Name == "" || el.Type == "" {
		return fault.Authoringf("", "%s needs name and type", key)
	}
	return nil
}

func checkSemanticAttrs(where string, el Element) error {
	key := where + "." + el.XMLName.Local
	if err := rejectAttrs(key, el.Attrs); err != nil {
		return err
	}
	if el.Name == "" || el.Type == "" || el.Semantic == "" {
		return fault.Authoringf("", "%s needs name, type and semantic", key)
	}
	return nil
}

func unknownElement(where string, el Element) error {
	return fault.Authoringf("", "unknown section %s.%s with data %q", where, el.XMLName.Local, strings.TrimSpace(el.Text))
}

// withSource fills in the source of an authoring error produced below the
// unit level.
func withSource(err error, source string) error {
	if ae, ok := err.(*fault.AuthoringError); ok && ae.Source == "" {
		ae.Source = source
		return ae
	}
	return fmt.Errorf("%s: %w", source, err)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
