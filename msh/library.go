package msh

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/gogpu/material/cache"
	"github.com/gogpu/material/fault"
	"github.com/gogpu/material/internal/logging"
)

// DefaultExtension is the file extension of definition units.
const DefaultExtension = ".msh"

// DefaultSamplerSuffix is appended to a texture name to name its sampler.
const DefaultSamplerSuffix = "_sampler"

// Config describes where definition units live and how generated text
// names its resources.
type Config struct {
	// Dir is the directory holding definition units. Ignored when FS is set.
	Dir string
	// FS overrides Dir; units are read from its root.
	FS fs.FS

	// SchemaPath locates an XSD document replacing the embedded schema.
	// It is resolved in SchemaFS when set, otherwise on the local disk.
	SchemaPath string
	SchemaFS   fs.FS

	// Extension filters unit files; a missing leading dot is added.
	// Default: ".msh".
	Extension string

	// SamplerSuffix names the sampler paired with each texture.
	// Default: "_sampler".
	SamplerSuffix string

	// CBufferName maps a uniform declaration name to the lookup name of its
	// binding. Default: identity.
	CBufferName func(name string) string
}

// ConfigError reports an unusable Config.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "msh: invalid config " + e.Field + ": " + e.Reason
}

func (c Config) withDefaults() (Config, error) {
	if c.FS == nil {
		if c.Dir == "" {
			return c, &ConfigError{Field: "Dir", Reason: "neither Dir nor FS is set"}
		}
		info, err := os.Stat(c.Dir)
		if err != nil {
			return c, &ConfigError{Field: "Dir", Reason: err.Error()}
		}
		if !info.IsDir() {
			return c, &ConfigError{Field: "Dir", Reason: c.Dir + " is not a directory"}
		}
		c.FS = os.DirFS(c.Dir)
	}
	if c.Extension == "" {
		c.Extension = DefaultExtension
	}
	if !strings.HasPrefix(c.Extension, ".") {
		c.Extension = "." + c.Extension
	}
	if c.SamplerSuffix == "" {
		c.SamplerSuffix = DefaultSamplerSuffix
	}
	if c.CBufferName == nil {
		c.CBufferName = func(name string) string { return name }
	}
	return c, nil
}

// Composed is the generated text of every stage for one permutation.
type Composed struct {
	// Name joins the selected unit names with "."; a mask selecting only
	// the root is named after the root.
	Name     string
	Mask     Mask
	Vertex   string
	Pixel    string
	Geometry string
	// OutputCount is the number of pixel stage outputs (color targets).
	OutputCount int
	// Bindings lists generated resources: vertex, then pixel, then geometry.
	Bindings []Binding
}

// Source returns the text of stage.
func (c *Composed) Source(stage Stage) string {
	switch stage {
	case StageVertex:
		return c.Vertex
	case StagePixel:
		return c.Pixel
	case StageGeometry:
		return c.Geometry
	default:
		return ""
	}
}

// selection is the mask-dependent part of a composition. It does not
// depend on the vertex layout.
type selection struct {
	name     string
	pixel    *pixelStage
	geometry string
	gsInputs SemanticDecls
	gsBind   []Binding
	hasGS    bool
	vertex   map[string]*VertexFragment
}

type composedKey struct {
	mask  Mask
	input string
}

func composedHasher(k composedKey) uint64 {
	return uint64(k.mask) ^ cache.StringHasher(k.input)
}

type libState struct {
	cfg    Config
	units  []*Unit // arena; Unit.ID indexes ids
	root   int
	ids    [MaxUnits + 1]int
	count  int // non-root units
	byName map[string]uint32
	groups []string
	gen    uint64 // 1 for the first successful Load

	selections *cache.Store[Mask, *selection]
	composed   *cache.Store[composedKey, *Composed]
}

// Library holds loaded definition units and composes permutations.
// A Library is safe for concurrent use.
type Library struct {
	mu    sync.RWMutex
	state *libState
}

// NewLibrary returns an empty library. Call Load before composing.
func NewLibrary() *Library {
	return &Library{}
}

// Load reads every definition unit described by cfg, replacing whatever
// was loaded before. On error the previous content is kept.
func (l *Library) Load(cfg Config) error {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return err
	}
	schema, err := loadConfigSchema(cfg)
	if err != nil {
		return err
	}

	files, err := fs.ReadDir(cfg.FS, ".")
	if err != nil {
		return fmt.Errorf("msh: read units: %w", err)
	}

	st := &libState{
		cfg:        cfg,
		root:       -1,
		byName:     make(map[string]uint32),
		selections: cache.NewStore[Mask, *selection](func(m Mask) uint64 { return uint64(m) }),
		composed:   cache.NewStore[composedKey, *Composed](composedHasher),
	}
	v := newLoadValidator()
	groupIDs := make(map[string]int)
	seq := 0

	// fs.ReadDir returns entries sorted by file name.
	for _, entry := range files {
		if !entry.Type().IsRegular() || path.Ext(entry.Name()) != cfg.Extension {
			continue
		}
		u, err := readUnit(cfg.FS, entry.Name(), schema)
		if err != nil {
			return err
		}
		if err := v.check(u); err != nil {
			return err
		}

		for _, f := range u.Fragments() {
			switch f := f.(type) {
			case *VertexFragment:
				f.Unit, f.Seq = len(st.units), seq
			case *PixelFragment:
				f.Unit, f.Seq = len(st.units), seq
			case *GeometryFragment:
				f.Unit = len(st.units)
			}
		}
		seq++

		if u.Root {
			if st.root >= 0 {
				return fault.Authoringf(u.source(), "second root unit %q, previous is %q", u.Name, st.units[st.root].Name)
			}
			u.GroupID = -1
			st.root = len(st.units)
			st.units = append(st.units, u)
			continue
		}

		if _, dup := st.byName[u.Name]; dup {
			return fault.Authoringf(u.source(), "unit name %q is duplicated", u.Name)
		}
		if st.count >= MaxUnits {
			return fault.Authoringf(u.source(), "number of units is over the limit (%d)", MaxUnits)
		}
		gid, ok := groupIDs[u.Group]
		if !ok {
			gid = len(st.groups)
			groupIDs[u.Group] = gid
			st.groups = append(st.groups, u.Group)
		}
		st.count++
		u.ID = uint32(st.count)
		u.GroupID = gid
		st.ids[u.ID] = len(st.units)
		st.byName[u.Name] = u.ID
		st.units = append(st.units, u)
	}

	if st.root < 0 {
		return fault.Authoringf("", "root unit not found")
	}
	if _, dup := st.byName[st.units[st.root].Name]; dup {
		return fault.Authoringf(st.units[st.root].source(), "unit name %q is duplicated", st.units[st.root].Name)
	}

	l.mu.Lock()
	if l.state != nil {
		st.gen = l.state.gen
	}
	st.gen++
	l.state = st
	l.mu.Unlock()

	logging.Logger().Info("msh: library loaded",
		"units", len(st.units), "groups", len(st.groups), "root", st.units[st.root].Name)
	return nil
}

func loadConfigSchema(cfg Config) (*Schema, error) {
	switch {
	case cfg.SchemaPath == "":
		return DefaultSchema()
	case cfg.SchemaFS != nil:
		return LoadSchema(cfg.SchemaFS, cfg.SchemaPath)
	default:
		return LoadSchemaFile(cfg.SchemaPath)
	}
}

func readUnit(fsys fs.FS, name string, schema *Schema) (*Unit, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("msh: read unit %s: %w", name, err)
	}
	if err := schema.Validate(name, data); err != nil {
		return nil, err
	}
	u, err := ParseUnit(bytes.NewReader(data))
	if err != nil {
		var ae *fault.AuthoringError
		if errors.As(err, &ae) {
			ae.Source = name
		}
		return nil, err
	}
	u.File = name
	return u, nil
}

// loadValidator enforces cross-unit uniqueness of entry points and orders.
type loadValidator struct {
	psEntryPoints map[string]string // entry point -> group
	psOrders      map[int64]string  // explicit order -> group
	vsEntryPoints map[string]struct{}
	vsOrders      map[int64]string
}

func newLoadValidator() *loadValidator {
	return &loadValidator{
		psEntryPoints: make(map[string]string),
		psOrders:      make(map[int64]string),
		vsEntryPoints: make(map[string]struct{}),
		vsOrders:      make(map[int64]string),
	}
}

func (v *loadValidator) check(u *Unit) error {
	if ps := u.Pixel; ps != nil {
		if g, ok := v.psEntryPoints[ps.EntryPoint]; ok && g != u.Group {
			return fault.Authoringf(u.source(), "pixel entrypoint %q is duplicated", ps.EntryPoint)
		}
		v.psEntryPoints[ps.EntryPoint] = u.Group
		if ps.orderSet {
			if g, ok := v.psOrders[ps.Order]; ok && g != u.Group {
				return fault.Authoringf(u.source(), "pixel order %d is duplicated", ps.Order)
			}
			v.psOrders[ps.Order] = u.Group
		}
	}
	for _, key := range sortedKeys(u.Vertex) {
		vs := u.Vertex[key]
		if _, ok := v.vsEntryPoints[vs.EntryPoint]; ok {
			return fault.Authoringf(u.source(), "vertex entrypoint %q is duplicated", vs.EntryPoint)
		}
		v.vsEntryPoints[vs.EntryPoint] = struct{}{}
		if vs.orderSet {
			if g, ok := v.vsOrders[vs.Order]; ok && g != u.Group {
				return fault.Authoringf(u.source(), "vertex order %d is duplicated", vs.Order)
			}
			v.vsOrders[vs.Order] = u.Group
		}
	}
	return nil
}

func (l *Library) current() (*libState, error) {
	l.mu.RLock()
	st := l.state
	l.mu.RUnlock()
	if st == nil {
		return nil, errors.New("msh: library is not loaded")
	}
	return st, nil
}

// GetMask returns the mask bit selecting the unit called name.
func (l *Library) GetMask(name string) (Mask, error) {
	st, err := l.current()
	if err != nil {
		return 0, err
	}
	id, ok := st.byName[name]
	if !ok {
		return 0, &fault.LookupError{Table: "units", Name: name}
	}
	return Mask(1) << id, nil
}

// Generation counts successful loads. It is 0 before the first Load and
// changes whenever Load replaces the content, so callers caching results of
// GetSources can key them by it.
func (l *Library) Generation() uint64 {
	st, err := l.current()
	if err != nil {
		return 0
	}
	return st.gen
}

// Units returns the loaded units in registration order.
func (l *Library) Units() []*Unit {
	st, err := l.current()
	if err != nil {
		return nil
	}
	return slices.Clone(st.units)
}

// Config returns the effective configuration of the last Load.
func (l *Library) Config() Config {
	st, err := l.current()
	if err != nil {
		return Config{}
	}
	return st.cfg
}

// GetSources composes the stage text for mask. vertexInput is the field
// list of the vertex layout the text is generated for.
//
// The same *Composed is returned for repeated calls with an equal mask and
// vertex input.
func (l *Library) GetSources(mask Mask, vertexInput SemanticDecls) (*Composed, error) {
	st, err := l.current()
	if err != nil {
		return nil, err
	}
	key := composedKey{mask: mask, input: vertexInput.Signature()}
	return st.composed.GetOrCreate(key, func() (*Composed, error) {
		sel, err := st.selections.GetOrCreate(mask, func() (*selection, error) {
			return st.selectUnits(mask)
		})
		if err != nil {
			return nil, err
		}
		return st.compose(mask, sel, vertexInput)
	})
}

// Stats reports hit and miss counters of the mask and composition caches.
func (l *Library) Stats() (masks, composed cache.Stats) {
	st, err := l.current()
	if err != nil {
		return cache.Stats{}, cache.Stats{}
	}
	return st.selections.Stats(), st.composed.Stats()
}

func (st *libState) selectUnits(mask Mask) (*selection, error) {
	if mask&1 != 0 {
		return nil, &fault.LookupError{Table: "units", ID: 0}
	}

	root := st.units[st.root]
	selected := []*Unit{root}
	var names []string
	groupsUsed := make(map[int]bool)
	for id := uint32(1); id <= MaxUnits; id++ {
		if mask&(Mask(1)<<id) == 0 {
			continue
		}
		if int(id) > st.count {
			return nil, &fault.LookupError{Table: "units", ID: uint64(id)}
		}
		u := st.units[st.ids[id]]
		if groupsUsed[u.GroupID] {
			return nil, fault.Authoringf(u.source(), "mask %s selects group %q twice", mask, u.Group)
		}
		groupsUsed[u.GroupID] = true
		selected = append(selected, u)
		names = append(names, u.Name)
	}

	sel := &selection{
		name:   strings.Join(names, "."),
		vertex: make(map[string]*VertexFragment),
	}
	if sel.name == "" {
		sel.name = root.Name
	}

	var pixel []*PixelFragment
	var override *PixelFragment
	var geometry *GeometryFragment
	for _, u := range selected {
		if ps := u.Pixel; ps != nil {
			switch {
			case ps.Override && override != nil:
				return nil, fault.Authoringf(u.source(),
					"pixel override is duplicated in mask %s: %s and %s",
					mask, st.units[override.Unit].Name, u.Name)
			case ps.Override:
				override = ps
				pixel = []*PixelFragment{ps}
			case override == nil:
				pixel = append(pixel, ps)
			}
		}
		if gs := u.Geometry; gs != nil {
			if geometry != nil {
				return nil, fault.Authoringf(u.source(), "found a second geometry stage in mask %s", mask)
			}
			geometry = gs
		}
		for _, key := range sortedKeys(u.Vertex) {
			vs := u.Vertex[key]
			if cur, ok := sel.vertex[key]; !ok || cur.Order < vs.Order {
				sel.vertex[key] = vs
			}
		}
	}

	ps, err := composePixel(&st.cfg, pixel)
	if err != nil {
		return nil, withMask(err, sel.name, mask)
	}
	sel.pixel = ps
	if geometry != nil {
		text, inputs, bindings, err := composeGeometry(&st.cfg, geometry, ps.inputs)
		if err != nil {
			return nil, withMask(err, sel.name, mask)
		}
		sel.geometry, sel.gsInputs, sel.gsBind, sel.hasGS = text, inputs, bindings, true
	}

	logging.Logger().Debug("msh: mask selected", "mask", mask, "name", sel.name, "pixel", len(pixel))
	return sel, nil
}

func (st *libState) compose(mask Mask, sel *selection, vertexInput SemanticDecls) (*Composed, error) {
	output := sel.pixel.inputs
	if sel.hasGS {
		output = sel.gsInputs
	}
	vsText, vsBind, err := composeVertex(&st.cfg, sel.vertex, vertexInput, output)
	if err != nil {
		return nil, withMask(err, sel.name, mask)
	}

	c := &Composed{
		Name:        sel.name,
		Mask:        mask,
		Vertex:      vsText,
		Pixel:       sel.pixel.text,
		Geometry:    sel.geometry,
		OutputCount: sel.pixel.outputCount,
	}
	c.Bindings = make([]Binding, 0, len(vsBind)+len(sel.pixel.bindings)+len(sel.gsBind))
	c.Bindings = append(c.Bindings, vsBind...)
	c.Bindings = append(c.Bindings, sel.pixel.bindings...)
	c.Bindings = append(c.Bindings, sel.gsBind...)
	return c, nil
}

// withMask names the permutation in authoring errors raised while merging.
func withMask(err error, name string, mask Mask) error {
	var ae *fault.AuthoringError
	if errors.As(err, &ae) && ae.Source == "" {
		ae.Source = fmt.Sprintf("%s (mask %s)", name, mask)
	}
	return err
}
