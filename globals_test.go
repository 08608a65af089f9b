package material

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/material/msh"
)

type cameraData struct {
	ViewProj [16]float32
	Eye      [4]float32
}

func TestAddGlobalVar(t *testing.T) {
	env := newTestEnv(t)
	b := env.builder

	id, err := AddGlobalVar[cameraData](b, msh.StageVertex, "Camera")
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 {
		t.Errorf("first global id = %d, want 1", id)
	}
	again, err := AddGlobalVar[cameraData](b, msh.StageVertex, "Camera")
	if err != nil || again != id {
		t.Errorf("re-adding = (%d, %v), want %d", again, err, id)
	}
	other, err := AddGlobalVar[cameraData](b, msh.StagePixel, "Camera")
	if err != nil || other == id {
		t.Errorf("other stage = (%d, %v), want a new id", other, err)
	}
	if _, err := AddGlobalVar[float32](b, msh.StageVertex, "Camera"); !errors.Is(err, ErrAuthoring) {
		t.Errorf("re-adding with another size = %v, want ErrAuthoring", err)
	}
	if _, err := AddGlobalVar[string](b, msh.StageVertex, "Name"); err == nil {
		t.Error("variable-size type accepted")
	}

	g, err := b.globals.get(id)
	if err != nil {
		t.Fatal(err)
	}
	zero := env.provider.queue.written(g.buffer)
	if len(zero) != 80 || !bytes.Equal(zero, make([]byte, 80)) {
		t.Errorf("initial contents = %v, want 80 zero bytes", zero)
	}
}

func TestAddGlobalVarPadsToUniformAlignment(t *testing.T) {
	env := newTestEnv(t)
	id, err := AddGlobalVar[[3]float32](env.builder, msh.StagePixel, "Light")
	if err != nil {
		t.Fatal(err)
	}
	g, _ := env.builder.globals.get(id)
	if got := len(env.provider.queue.written(g.buffer)); got != 16 {
		t.Errorf("buffer size = %d, want 16", got)
	}
}

func TestUpdateGlobalVar(t *testing.T) {
	env := newTestEnv(t)
	b := env.builder
	id, err := AddGlobalVar[cameraData](b, msh.StageVertex, "Camera")
	if err != nil {
		t.Fatal(err)
	}

	var cam cameraData
	cam.ViewProj[0] = 1
	cam.Eye = [4]float32{1, 2, 3, 1}
	if err := UpdateGlobalVar(b, id, cam); err != nil {
		t.Fatalf("UpdateGlobalVar: %v", err)
	}

	var want bytes.Buffer
	if err := binary.Write(&want, binary.LittleEndian, cam); err != nil {
		t.Fatal(err)
	}
	g, _ := b.globals.get(id)
	if got := env.provider.queue.written(g.buffer); !bytes.Equal(got, want.Bytes()) {
		t.Errorf("written = %v, want %v", got, want.Bytes())
	}
}

func TestUpdateGlobalVarErrors(t *testing.T) {
	b := newTestEnv(t).builder
	id, err := AddGlobalVar[cameraData](b, msh.StageVertex, "Camera")
	if err != nil {
		t.Fatal(err)
	}

	if err := UpdateGlobalVar(b, 0, cameraData{}); !errors.Is(err, ErrLookup) {
		t.Errorf("id 0 = %v, want ErrLookup", err)
	}
	if err := UpdateGlobalVar(b, id+5, cameraData{}); !errors.Is(err, ErrLookup) {
		t.Errorf("unknown id = %v, want ErrLookup", err)
	}
	if err := UpdateGlobalVar(b, id, float32(1)); !errors.Is(err, ErrAuthoring) {
		t.Errorf("size mismatch = %v, want ErrAuthoring", err)
	}
}
