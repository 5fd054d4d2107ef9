// Package renderer hosts an interop.Engine: it picks the backend pair for
// the platform, loads the scene and programs, and drives frames either into
// a window or headlessly into a PNG.
package renderer

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/sirupsen/logrus"

	"render-interop/config"
	"render-interop/core"
	"render-interop/core/window"
	"render-interop/interop"
	"render-interop/math"
	"render-interop/scene"
)

const (
	fieldOfView = 0.785
	// spinStep is the model rotation per frame in radians.
	spinStep = 0.01
	// orbitStep is the camera yaw or pitch per frame an arrow key is held.
	orbitStep = 0.03
)

// ResizeStep resizes the headless surface before frame AtFrame is rendered.
type ResizeStep struct {
	AtFrame int
	Size    interop.Extent
}

// ParseResizeStep parses "WIDTHxHEIGHT@FRAME", e.g. "1024x768@10".
func ParseResizeStep(s string) (ResizeStep, error) {
	dims, frame, ok := strings.Cut(s, "@")
	if !ok {
		return ResizeStep{}, fmt.Errorf("resize %q: want WIDTHxHEIGHT@FRAME", s)
	}
	w, h, ok := strings.Cut(dims, "x")
	if !ok {
		return ResizeStep{}, fmt.Errorf("resize %q: want WIDTHxHEIGHT@FRAME", s)
	}
	width, err := strconv.ParseUint(w, 10, 32)
	if err != nil {
		return ResizeStep{}, fmt.Errorf("resize %q: width: %w", s, err)
	}
	height, err := strconv.ParseUint(h, 10, 32)
	if err != nil {
		return ResizeStep{}, fmt.Errorf("resize %q: height: %w", s, err)
	}
	at, err := strconv.Atoi(frame)
	if err != nil || at < 0 {
		return ResizeStep{}, fmt.Errorf("resize %q: bad frame index %q", s, frame)
	}
	return ResizeStep{AtFrame: at, Size: interop.Extent{Width: uint32(width), Height: uint32(height)}}, nil
}

// Options controls a headless run.
type Options struct {
	Config  *config.Config
	Frames  int
	Resizes []ResizeStep
	// Output is the PNG path for the last frame; empty skips writing.
	Output string
}

// Result is what a headless run produced.
type Result struct {
	Image *image.RGBA
	Stats interop.Stats
}

// LoadMesh loads the configured model, or returns the built-in triangle
// when none is configured.
func LoadMesh(cfg *config.Config, log logrus.FieldLogger) (core.MeshData, error) {
	if cfg.Assets.Model == "" {
		return core.Triangle(), nil
	}
	return scene.LoadModel(cfg.Assets.Model, log)
}

// loadPrograms loads the SPIR-V pair. The software backend rasterizes
// without programs, so missing files only matter for native backends.
func loadPrograms(cfg *config.Config, native bool, log logrus.FieldLogger) (interop.ShaderSet, error) {
	shaders, err := LoadShaders(cfg.Assets.VertexShader, cfg.Assets.FragmentShader, log)
	if err != nil {
		if native {
			return interop.ShaderSet{}, err
		}
		log.WithError(err).Debug("no programs loaded, software backend ignores them")
		return interop.ShaderSet{}, nil
	}
	return shaders, nil
}

// newCamera frames the mesh for a surface of size.
func newCamera(mesh core.MeshData, size interop.Extent) *scene.OrbitCamera {
	bounds := scene.Bounds(mesh)
	cam := scene.NewOrbitCamera(bounds.Center(), 3, fieldOfView, float32(size.Width)/float32(size.Height))
	cam.FrameBounds(bounds.Center(), bounds.Radius())
	return cam
}

// warnIfPassive reports that the window only hosts the event loop: the
// software backend renders offscreen and never draws into it.
func warnIfPassive(b Backends, log logrus.FieldLogger) {
	if !b.Native {
		log.Warn("software backend renders offscreen, the window stays blank; use headless --out to see frames")
	}
}

// orbitKeys moves the camera while arrow keys are held.
func orbitKeys(host *window.Window, cam *scene.OrbitCamera) {
	var yaw, pitch float32
	if host.IsKeyPressed(glfw.KeyLeft) {
		yaw -= orbitStep
	}
	if host.IsKeyPressed(glfw.KeyRight) {
		yaw += orbitStep
	}
	if host.IsKeyPressed(glfw.KeyUp) {
		pitch += orbitStep
	}
	if host.IsKeyPressed(glfw.KeyDown) {
		pitch -= orbitStep
	}
	if yaw != 0 || pitch != 0 {
		cam.Orbit(yaw, pitch)
	}
}

func shutdown(engine *interop.Engine, log logrus.FieldLogger) {
	if err := engine.Shutdown(); err != nil {
		log.WithError(err).Error("shutdown reported errors")
	}
}

// RunWindowed renders into a window until it is closed, Escape is pressed
// or ctx is cancelled.
func RunWindowed(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) error {
	host, err := window.NewWindow(window.WindowConfig{
		Width:     cfg.Window.Width,
		Height:    cfg.Window.Height,
		Title:     cfg.Window.Title,
		Resizable: true,
		VSync:     cfg.Window.VSync,
		API:       HostAPI(),
	})
	if err != nil {
		return err
	}
	defer host.Destroy()

	backends, err := OpenBackends(cfg, host, log)
	if err != nil {
		return err
	}
	warnIfPassive(backends, log)
	mesh, err := LoadMesh(cfg, log)
	if err != nil {
		backends.Producer.Destroy()
		backends.Consumer.Destroy()
		return err
	}
	shaders, err := loadPrograms(cfg, backends.Native, log)
	if err != nil {
		backends.Producer.Destroy()
		backends.Consumer.Destroy()
		return err
	}

	engine := interop.NewEngine(cfg.EngineConfig(), backends.Producer, backends.Consumer, log)
	defer shutdown(engine, log)

	size := interop.Extent{Width: uint32(host.Width), Height: uint32(host.Height)}
	var surface interop.SurfaceSpec
	if backends.Native {
		surface = interop.SurfaceSpec{Window: host.NativeHandle(), VSync: cfg.Window.VSync}
		if host.API == window.ClientOpenGL {
			surface.Swap = host.SwapBuffers
		}
	}
	if err := engine.Init(size, mesh, shaders, surface); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"device": engine.Selection().Device.Name,
		"native": backends.Native,
		"size":   size,
	}).Info("rendering to window")

	pending, resized := size, false
	host.OnResize(func(width, height int) {
		pending = interop.Extent{Width: uint32(width), Height: uint32(height)}
		resized = true
	})
	host.OnClose(func() { log.Info("window closed") })

	stop := context.AfterFunc(ctx, host.Wake)
	defer stop()

	cam := newCamera(mesh, size)
	spin := scene.NewSpin(math.Vec3Up, spinStep)
	lastTitle, framesSinceTitle := time.Now(), 0
	for !host.ShouldClose() && ctx.Err() == nil {
		host.PollEvents()
		if host.IsKeyPressed(glfw.KeyEscape) {
			break
		}
		if resized {
			// A minimized window reports 0x0; wait for a real size.
			if !pending.Valid() {
				host.WaitEvents()
				continue
			}
			resized = false
			if err := engine.Resize(pending); err != nil {
				return err
			}
			cam.UpdateAspectRatio(float32(pending.Width), float32(pending.Height))
		}

		orbitKeys(host, cam)
		engine.SetUniforms(cam.Uniforms(spin.Model()))
		if err := engine.RenderFrame(); err != nil {
			return err
		}
		spin.Advance()

		framesSinceTitle++
		if elapsed := time.Since(lastTitle); elapsed >= time.Second {
			fps := float64(framesSinceTitle) / elapsed.Seconds()
			host.SetTitle(fmt.Sprintf("%s - %.0f fps", cfg.Window.Title, fps))
			lastTitle, framesSinceTitle = time.Now(), 0
		}
	}
	return nil
}

// RunHeadless renders opts.Frames frames offscreen, applying each resize
// step before its frame, and reads back the last one. Native backends on
// platforms that present through GL get a hidden window for the context.
func RunHeadless(ctx context.Context, opts Options, log logrus.FieldLogger) (Result, error) {
	cfg := opts.Config
	frames := max(opts.Frames, 1)
	steps := append([]ResizeStep(nil), opts.Resizes...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].AtFrame < steps[j].AtFrame })

	var host *window.Window
	if cfg.Backend != config.BackendSoft && HostAPI() == window.ClientOpenGL {
		w, err := window.NewWindow(window.WindowConfig{
			Width:  cfg.Window.Width,
			Height: cfg.Window.Height,
			Title:  cfg.Window.Title,
			API:    window.ClientOpenGL,
			Hidden: true,
		})
		switch {
		case err == nil:
			host = w
			defer host.Destroy()
		case cfg.Backend == config.BackendNative:
			return Result{}, err
		default:
			log.WithError(err).Warn("no GL context for a headless native run")
		}
	}

	var backends Backends
	var err error
	if host == nil && cfg.Backend != config.BackendSoft && HostAPI() == window.ClientOpenGL {
		backends = OpenSoft()
	} else if backends, err = OpenBackends(cfg, host, log); err != nil {
		return Result{}, err
	}

	mesh, err := LoadMesh(cfg, log)
	if err != nil {
		backends.Producer.Destroy()
		backends.Consumer.Destroy()
		return Result{}, err
	}
	shaders, err := loadPrograms(cfg, backends.Native, log)
	if err != nil {
		backends.Producer.Destroy()
		backends.Consumer.Destroy()
		return Result{}, err
	}

	engine := interop.NewEngine(cfg.EngineConfig(), backends.Producer, backends.Consumer, log)
	defer shutdown(engine, log)

	size := cfg.Size()
	if err := engine.Init(size, mesh, shaders, interop.SurfaceSpec{}); err != nil {
		return Result{}, err
	}

	cam := newCamera(mesh, size)
	spin := scene.NewSpin(math.Vec3Up, spinStep)
	for frame := 0; frame < frames; frame++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		for len(steps) > 0 && steps[0].AtFrame <= frame {
			step := steps[0]
			steps = steps[1:]
			if err := engine.Resize(step.Size); err != nil {
				return Result{}, err
			}
			cam.UpdateAspectRatio(float32(step.Size.Width), float32(step.Size.Height))
			log.WithFields(logrus.Fields{"frame": frame, "size": step.Size}).Debug("resized")
		}
		engine.SetUniforms(cam.Uniforms(spin.Model()))
		if err := engine.RenderFrame(); err != nil {
			return Result{}, err
		}
		spin.Advance()
	}

	img, err := engine.ReadBack()
	if err != nil {
		return Result{}, err
	}
	if opts.Output != "" {
		if err := WritePNG(opts.Output, img); err != nil {
			return Result{}, err
		}
		log.WithField("path", opts.Output).Info("frame written")
	}
	return Result{Image: img, Stats: engine.Stats()}, nil
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
