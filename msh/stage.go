package msh

import (
	"strconv"

	"github.com/gogpu/gputypes"
)

// Stage is a pipeline stage a fragment contributes to.
type Stage uint8

const (
	StageVertex Stage = iota
	StagePixel
	StageGeometry
)

// Stages lists every stage in generation order.
var Stages = [...]Stage{StageVertex, StagePixel, StageGeometry}

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StagePixel:
		return "pixel"
	case StageGeometry:
		return "geometry"
	default:
		return "stage(" + strconv.Itoa(int(s)) + ")"
	}
}

// Prefix is the short label prefix used for compiled modules ("vs.", "ps.", "gs.").
func (s Stage) Prefix() string {
	switch s {
	case StageVertex:
		return "vs."
	case StagePixel:
		return "ps."
	case StageGeometry:
		return "gs."
	default:
		return "unknown."
	}
}

// Group is the bind group index generated resources of this stage live in.
func (s Stage) Group() uint32 { return uint32(s) }

// Visibility maps the stage to WebGPU shader stage flags.
// The geometry stage has no WebGPU equivalent and maps to ShaderStageNone.
func (s Stage) Visibility() gputypes.ShaderStages {
	switch s {
	case StageVertex:
		return gputypes.ShaderStageVertex
	case StagePixel:
		return gputypes.ShaderStageFragment
	default:
		return gputypes.ShaderStageNone
	}
}

// Mask selects fragment units. Bit i selects the unit with id i.
// Bit 0 is never assigned; a zero mask selects only the root unit.
type Mask uint64

// MaxUnits is the number of non-root units a library can hold.
const MaxUnits = 63

// Has reports whether every bit of other is set in m.
func (m Mask) Has(other Mask) bool { return m&other == other }

func (m Mask) String() string { return "0x" + strconv.FormatUint(uint64(m), 16) }
