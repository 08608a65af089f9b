package material

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/material/fault"
	"github.com/gogpu/material/msh"
)

// Mutability tells how often a resource variable changes binding.
type Mutability uint8

const (
	// Static variables are bound once per pipeline.
	Static Mutability = iota
	// Mutable variables are bound once per material instance.
	Mutable
	// Dynamic variables may be rebound for every draw.
	Dynamic
)

func (m Mutability) String() string {
	switch m {
	case Static:
		return "static"
	case Mutable:
		return "mutable"
	case Dynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("Mutability(%d)", uint8(m))
	}
}

// VarID identifies an interned shader variable. 0 is invalid.
type VarID uint32

// SamplerID identifies an interned sampler. 0 is invalid; 1 is the default
// sampler.
type SamplerID uint32

// DefaultSampler is the id of the sampler interned by NewBuilder.
const DefaultSampler SamplerID = 1

// varKey is the interning key of a shader variable. Sampler is 0 for
// variables that are not textures.
type varKey struct {
	Name       string
	Stage      msh.Stage
	Sampler    SamplerID
	Mutability Mutability
}

// ShaderVar describes an interned shader variable.
type ShaderVar struct {
	Name       string
	Stage      msh.Stage
	Sampler    SamplerID // 0 unless the variable is a texture
	Mutability Mutability
}

// IsTexture reports whether the variable carries a sampler.
func (v ShaderVar) IsTexture() bool { return v.Sampler != 0 }

// CacheShaderVar interns a buffer variable. Identical arguments return the
// same id.
func (b *Builder) CacheShaderVar(name string, stage msh.Stage, mutability Mutability) VarID {
	return VarID(b.vars.Put(varKey{Name: name, Stage: stage, Mutability: mutability}, struct{}{}))
}

// CacheTextureVar interns a texture variable sampled with the default
// sampler. Identical arguments return the same id.
func (b *Builder) CacheTextureVar(name string, stage msh.Stage, mutability Mutability) VarID {
	return VarID(b.vars.Put(varKey{Name: name, Stage: stage, Sampler: DefaultSampler, Mutability: mutability}, struct{}{}))
}

// CacheTextureVarSampler returns the sibling of texture variable id that is
// sampled with desc. The sibling shares name, stage and mutability.
func (b *Builder) CacheTextureVarSampler(id VarID, desc gputypes.SamplerDescriptor) (VarID, error) {
	k, err := b.textureVar(id)
	if err != nil {
		return 0, err
	}
	sid, err := b.cacheSampler(desc)
	if err != nil {
		return 0, err
	}
	k.Sampler = sid
	return VarID(b.vars.Put(k, struct{}{})), nil
}

// GetCachedSamplerDesc returns the sampler descriptor of texture variable id.
func (b *Builder) GetCachedSamplerDesc(id VarID) (gputypes.SamplerDescriptor, error) {
	k, err := b.textureVar(id)
	if err != nil {
		return gputypes.SamplerDescriptor{}, err
	}
	return b.samplers.Key(uint32(k.Sampler))
}

// ShaderVar returns the variable interned as id.
func (b *Builder) ShaderVar(id VarID) (ShaderVar, error) {
	k, err := b.vars.Key(uint32(id))
	if err != nil {
		return ShaderVar{}, err
	}
	return ShaderVar(k), nil
}

// CacheSampler interns a sampler descriptor, creating the device sampler
// the first time it is seen.
func (b *Builder) CacheSampler(desc gputypes.SamplerDescriptor) (SamplerID, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	return b.cacheSampler(desc)
}

func (b *Builder) cacheSampler(desc gputypes.SamplerDescriptor) (SamplerID, error) {
	id, _, err := b.samplers.Intern(desc, func() (hal.Sampler, error) {
		s, err := b.device.CreateSampler(halSamplerDesc(desc))
		if err != nil {
			return nil, fmt.Errorf("create sampler: %w", err)
		}
		return s, nil
	})
	return SamplerID(id), err
}

func (b *Builder) textureVar(id VarID) (varKey, error) {
	k, err := b.vars.Key(uint32(id))
	if err != nil {
		return varKey{}, err
	}
	if k.Sampler == 0 {
		return varKey{}, &fault.LookupError{Table: "texture variables", ID: uint64(id)}
	}
	return k, nil
}

func halSamplerDesc(d gputypes.SamplerDescriptor) *hal.SamplerDescriptor {
	return &hal.SamplerDescriptor{
		Label:        d.Label,
		AddressModeU: d.AddressModeU,
		AddressModeV: d.AddressModeV,
		AddressModeW: d.AddressModeW,
		MagFilter:    d.MagFilter,
		MinFilter:    d.MinFilter,
		MipmapFilter: gputypes.FilterMode(d.MipmapFilter),
		LodMinClamp:  d.LodMinClamp,
		LodMaxClamp:  d.LodMaxClamp,
		Compare:      d.Compare,
		Anisotropy:   d.MaxAnisotropy,
	}
}
