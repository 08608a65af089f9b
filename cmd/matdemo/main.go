// Command matdemo composes and compiles material permutations on the noop
// backend and prints the generated WGSL and cache statistics.
package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/material"
	"github.com/gogpu/material/msh"
	"github.com/gogpu/material/vdecl"
)

//go:embed fragments/*.msh include/*.wgsl
var assets embed.FS

func main() {
	var (
		dir     = flag.String("dir", "", "fragment directory (default: built-in fragments)")
		include = flag.String("include", "", "directory for #include files (default: built-in)")
		units   = flag.String("units", "COLOR,TEXTURE;DEPTH_TINT", "permutations separated by ';', each a comma-separated list of unit names")
		dump    = flag.Bool("print", false, "print generated WGSL")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		material.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	provider, cleanup, err := openNoop()
	if err != nil {
		log.Fatalf("Failed to open noop device: %v", err)
	}
	defer cleanup()

	cfg := msh.Config{Dir: *dir}
	if *dir == "" {
		cfg.FS = mustSub("fragments")
	}
	includes := mustSub("include")
	if *include != "" {
		includes = os.DirFS(*include)
	}

	layouts := vdecl.NewStorage()
	vertex, err := layouts.Add([]vdecl.Item{
		{Name: "pos", Type: vdecl.Float3, PerVertex: true},
		{Name: "uv", Type: vdecl.Float2, PerVertex: true},
	})
	if err != nil {
		log.Fatalf("Failed to add vertex layout: %v", err)
	}

	b, err := material.NewBuilder(provider, layouts, material.WithIncludeFS(includes))
	if err != nil {
		log.Fatalf("Failed to create builder: %v", err)
	}
	defer b.Close()

	if err := b.Load(cfg); err != nil {
		log.Fatalf("Failed to load fragments: %v", err)
	}
	if _, err := material.AddGlobalVar[[16]float32](b, msh.StageVertex, "Camera"); err != nil {
		log.Fatalf("Failed to add camera global: %v", err)
	}

	failed := false
	for _, perm := range strings.Split(*units, ";") {
		if err := build(b, perm, vertex, *dump); err != nil {
			log.Printf("%s: %v", perm, err)
			var ce *material.CompileError
			if errors.As(err, &ce) {
				fmt.Fprintln(os.Stderr, ce.Listing())
			}
			failed = true
		}
	}

	st := b.Stats()
	log.Printf("masks: %d entries, %.0f%% hits", st.Masks.Len, st.Masks.HitRate*100)
	log.Printf("composed: %d entries, %.0f%% hits", st.Composed.Len, st.Composed.HitRate*100)
	log.Printf("shaders: %d modules, %.0f%% hits", st.Shaders.Len, st.Shaders.HitRate*100)
	log.Printf("programs: %d entries, %.0f%% hits", st.Programs.Len, st.Programs.HitRate*100)
	if failed {
		b.Close()
		cleanup()
		os.Exit(1)
	}
}

func build(b *material.Builder, perm string, vertex vdecl.ID, dump bool) error {
	var mask msh.Mask
	for _, name := range strings.Split(perm, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		bit, err := b.GetShaderMask(name)
		if err != nil {
			return err
		}
		mask |= bit
	}

	var vars []material.VarID
	for _, u := range b.Library().Units() {
		if mask&(1<<u.ID) == 0 && !u.Root {
			continue
		}
		if u.Pixel == nil {
			continue
		}
		for _, tex := range u.Pixel.Textures.Data() {
			vars = append(vars, b.CacheTextureVar(tex, msh.StagePixel, material.Mutable))
		}
		for _, cb := range u.Pixel.CBuffers.Data() {
			vars = append(vars, b.CacheShaderVar(cb.Name, msh.StagePixel, material.Mutable))
		}
	}

	p, err := b.Create(mask, material.SwapchainTargets, vertex, 0, vars, material.DefaultPipelineDesc())
	if err != nil {
		return err
	}
	defer b.Release(p)

	log.Printf("%s: mask %v, %d outputs, %d vars, %d samplers, %d globals",
		p.Name, p.Mask, p.Composed.OutputCount, len(p.Vars), len(p.Samplers), len(p.Globals))
	if dump {
		for _, stage := range msh.Stages {
			if src := p.Composed.Source(stage); src != "" {
				fmt.Printf("// ---- %s %s\n%s\n", stage, p.Name, src)
			}
		}
	}
	return nil
}

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(assets, dir)
	if err != nil {
		log.Fatalf("Failed to open embedded %s: %v", dir, err)
	}
	return sub
}

// noopProvider exposes a noop device as a gpucontext.DeviceProvider with
// HAL access.
type noopProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (p *noopProvider) Device() gpucontext.Device             { return p.device }
func (p *noopProvider) Queue() gpucontext.Queue               { return p.queue }
func (p *noopProvider) Adapter() gpucontext.Adapter           { return nil }
func (p *noopProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatUndefined }
func (p *noopProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "noop", Type: gpucontext.AdapterTypeSoftware}
}
func (p *noopProvider) HalDevice() any { return p.device }
func (p *noopProvider) HalQueue() any  { return p.queue }

func openNoop() (*noopProvider, func(), error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, nil, err
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, errors.New("no noop adapter")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, err
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return &noopProvider{device: openDev.Device, queue: openDev.Queue}, cleanup, nil
}
