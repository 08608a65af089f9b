package material

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// MaxColorTargets is the number of color attachments a TargetsFormat holds.
const MaxColorTargets = 8

// TargetsID identifies an interned TargetsFormat. 0 is invalid.
type TargetsID uint32

// SwapchainTargets is the TargetsID of the swapchain: the provider surface
// format for every pixel output plus the builder depth format. It is
// reserved by NewBuilder.
const SwapchainTargets TargetsID = 1

// swapchainKey reserves SwapchainTargets in the targets table. Validate
// rejects it, so no caller format can collide with it.
var swapchainKey = TargetsFormat{ColorCount: -1}

// TargetsFormat describes the attachments a pipeline renders into.
// Colors beyond ColorCount must be TextureFormatUndefined.
type TargetsFormat struct {
	Colors     [MaxColorTargets]gputypes.TextureFormat
	ColorCount int
	Depth      gputypes.TextureFormat // TextureFormatUndefined: no depth attachment
}

// NewTargetsFormat returns a format with the given color attachments.
func NewTargetsFormat(depth gputypes.TextureFormat, colors ...gputypes.TextureFormat) TargetsFormat {
	var t TargetsFormat
	t.ColorCount = copy(t.Colors[:], colors)
	t.Depth = depth
	return t
}

// Validate checks the attachment count and that unused slots are empty.
func (t TargetsFormat) Validate() error {
	if t.ColorCount < 0 || t.ColorCount > MaxColorTargets {
		return fmt.Errorf("material: %d color targets, at most %d allowed", t.ColorCount, MaxColorTargets)
	}
	for i, f := range t.Colors {
		used := i < t.ColorCount
		if used && f == gputypes.TextureFormatUndefined {
			return fmt.Errorf("material: color target %d has no format", i)
		}
		if !used && f != gputypes.TextureFormatUndefined {
			return fmt.Errorf("material: color target %d is set beyond ColorCount %d", i, t.ColorCount)
		}
	}
	if t.Depth != gputypes.TextureFormatUndefined && !t.Depth.HasDepth() {
		return fmt.Errorf("material: depth target format %s has no depth aspect", t.Depth)
	}
	return nil
}

// CacheTargetsFormat interns t. Identical formats return the same id.
func (b *Builder) CacheTargetsFormat(t TargetsFormat) (TargetsID, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	return TargetsID(b.targets.Put(t, struct{}{})), nil
}

// GetTargetsFormat returns the format interned as id. SwapchainTargets
// resolves against the provider for outputs color attachments. Id 0 and
// ids never returned by CacheTargetsFormat fail with a LookupError.
func (b *Builder) GetTargetsFormat(id TargetsID, outputs int) (TargetsFormat, error) {
	if id == SwapchainTargets {
		return b.swapchainTargets(outputs)
	}
	return b.targets.Key(uint32(id))
}

func (b *Builder) swapchainTargets(outputs int) (TargetsFormat, error) {
	if outputs > MaxColorTargets {
		return TargetsFormat{}, fmt.Errorf("material: %d pixel outputs, at most %d color targets", outputs, MaxColorTargets)
	}
	color := b.provider.SurfaceFormat()
	if color == gputypes.TextureFormatUndefined {
		color = b.opts.colorFormat
	}
	t := TargetsFormat{ColorCount: outputs, Depth: b.opts.depthFormat}
	for i := range outputs {
		t.Colors[i] = color
	}
	return t, nil
}
