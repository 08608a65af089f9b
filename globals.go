package material

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/material/fault"
	"github.com/gogpu/material/internal/logging"
	"github.com/gogpu/material/msh"
)

// GlobalVarID identifies a global variable. 0 is invalid.
type GlobalVarID uint32

// uniformAlign is the size granularity of uniform buffers.
const uniformAlign = 16

type globalVar struct {
	stage  msh.Stage
	name   string
	size   int // encoded size of the Go value
	buffer hal.Buffer
}

type globalKey struct {
	stage msh.Stage
	name  string
}

// globalTable holds global variables. Every global owns one uniform buffer
// bound to each pipeline created afterwards whose program declares a
// uniform of the same stage and name.
type globalTable struct {
	mu   sync.RWMutex
	ids  map[globalKey]GlobalVarID
	vars []*globalVar // index id-1
}

// AddGlobalVar registers a global variable holding a T and returns its id.
// The buffer starts zeroed. T must have a fixed size encoding (see
// encoding/binary). Adding the same stage and name again returns the
// existing id if the size matches.
func AddGlobalVar[T any](b *Builder, stage msh.Stage, name string) (GlobalVarID, error) {
	var zero T
	size := binary.Size(zero)
	if size <= 0 {
		return 0, fmt.Errorf("material: global %q: type %T has no fixed size encoding", name, zero)
	}
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	return b.globals.add(b, stage, name, size)
}

// UpdateGlobalVar writes data into the buffer of global id. Pipelines
// created before or after the update observe the new contents.
func UpdateGlobalVar[T any](b *Builder, id GlobalVarID, data T) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	g, err := b.globals.get(id)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, data); err != nil {
		return fmt.Errorf("material: encode global %q: %w", g.name, err)
	}
	if buf.Len() != g.size {
		return fault.Authoringf("global "+g.name, "update of %d bytes, registered with %d", buf.Len(), g.size)
	}
	if err := b.queue.WriteBuffer(g.buffer, 0, buf.Bytes()); err != nil {
		return fmt.Errorf("material: write global %q: %w", g.name, err)
	}
	return nil
}

func (t *globalTable) add(b *Builder, stage msh.Stage, name string, size int) (GlobalVarID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := globalKey{stage: stage, name: name}
	if id, ok := t.ids[k]; ok {
		if g := t.vars[id-1]; g.size != size {
			return 0, fault.Authoringf("global "+name,
				"registered for %s stage with %d bytes, added again with %d", stage, g.size, size)
		}
		return id, nil
	}

	bufSize := (uint64(size) + uniformAlign - 1) &^ (uniformAlign - 1)
	buffer, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "global." + name,
		Size:  bufSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return 0, fmt.Errorf("material: create global %q buffer: %w", name, err)
	}
	if err := b.queue.WriteBuffer(buffer, 0, make([]byte, bufSize)); err != nil {
		b.device.DestroyBuffer(buffer)
		return 0, fmt.Errorf("material: clear global %q buffer: %w", name, err)
	}

	if t.ids == nil {
		t.ids = make(map[globalKey]GlobalVarID)
	}
	t.vars = append(t.vars, &globalVar{stage: stage, name: name, size: size, buffer: buffer})
	id := GlobalVarID(len(t.vars))
	t.ids[k] = id
	logging.Logger().Debug("material: global added", "stage", stage, "name", name, "size", size)
	return id, nil
}

func (t *globalTable) get(id GlobalVarID) (*globalVar, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id == 0 || int(id) > len(t.vars) {
		return nil, &fault.LookupError{Table: "global variables", ID: uint64(id)}
	}
	return t.vars[id-1], nil
}

// snapshot returns the globals registered so far, in id order.
func (t *globalTable) snapshot() []*globalVar {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*globalVar(nil), t.vars...)
}

func (t *globalTable) destroy(device hal.Device) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, g := range t.vars {
		device.DestroyBuffer(g.buffer)
	}
	t.vars = nil
	t.ids = nil
}
