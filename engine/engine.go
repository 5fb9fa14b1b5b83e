package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/emberengine/ember/engine/assets"
	"github.com/emberengine/ember/engine/config"
	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/platform"
	"github.com/emberengine/ember/engine/renderer/backend"
	"github.com/emberengine/ember/engine/renderer/device"
	"github.com/emberengine/ember/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

const shaderDir = "assets/shaders"

type Engine struct {
	currentStage Stage
	config       *config.Config
	platform     *platform.Platform
	device       *vulkan.Device
	renderer     *backend.Context
	clock        *core.Clock
	isRunning    bool
	isSuspended  bool
	titleTimer   float64

	resizeWidth  uint32
	resizeHeight uint32
	resized      bool

	scene *demoScene

	// Programs touched on disk since the last frame, drained on the main
	// thread because the watcher fires from its own goroutine.
	reloadCh chan string
	watcher  *assets.ShaderWatcher
}

func New(configPath string) (*Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	p, err := platform.New()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       cfg,
		platform:     p,
		clock:        core.NewClock(),
		isRunning:    true,
		isSuspended:  false,
		reloadCh:     make(chan string, 8),
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	app := e.config.Application
	if err := e.platform.Startup(app.Name, app.StartX, app.StartY, app.Width, app.Height); err != nil {
		return err
	}

	dev, err := vulkan.NewDevice(e.platform.Window, app.Name, app.Width, app.Height,
		e.config.Renderer.ValidationLayers, e.config.Renderer.VSync)
	if err != nil {
		return err
	}
	e.device = dev

	rc, err := backend.NewContext(dev, e.config.Renderer)
	if err != nil {
		return err
	}
	e.renderer = rc

	e.platform.SetResizeCallback(func(width, height uint32) {
		e.isSuspended = width == 0 || height == 0
		if !e.isSuspended {
			e.resizeWidth, e.resizeHeight = width, height
			e.resized = true
		}
	})

	scene, err := newDemoScene(rc)
	if err != nil {
		return err
	}
	e.scene = scene

	w, err := assets.NewShaderWatcher(shaderDir, func(name string) {
		select {
		case e.reloadCh <- name:
		default:
		}
	})
	if err != nil {
		// Hot reload is a development convenience, run without it.
		core.LogWarn("shader watcher disabled: %s", err.Error())
	} else {
		e.watcher = w
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()

	ctx := context.Background()

	for e.isRunning && !e.platform.ShouldClose() {
		e.platform.PumpMessages()
		e.drainReloads()

		e.clock.Update()
		delta := e.clock.Delta()

		if e.isSuspended {
			continue
		}

		if e.resized {
			e.resized = false
			if err := e.device.Resize(e.resizeWidth, e.resizeHeight); err != nil {
				return err
			}
		}

		if err := e.renderFrame(ctx, delta); err != nil {
			if errors.Is(err, device.ErrOutOfDate) {
				// The surface changed under us, recreate and retry next frame.
				e.resized = true
				w, h := e.platform.Window.GetFramebufferSize()
				e.resizeWidth, e.resizeHeight = uint32(w), uint32(h)
				continue
			}
			if errors.Is(err, device.ErrDeviceLost) {
				core.LogFatal("device lost, shutting down")
				e.isRunning = false
				break
			}
			return err
		}

		core.MetricsUpdate(delta)
		e.updateTitle(delta)
	}
	core.LogInfo("main loop exited after %.1fs", e.clock.Elapsed())
	return e.Shutdown()
}

func (e *Engine) updateTitle(delta float64) {
	e.titleTimer += delta
	if e.titleTimer < 1.0 {
		return
	}
	e.titleTimer = 0

	fps, frameTime := core.MetricsFrame()
	e.platform.SetWindowTitle(fmt.Sprintf("%s | %.0f fps %.2f ms",
		e.config.Application.Name, fps, frameTime))
}

func (e *Engine) renderFrame(ctx context.Context, delta float64) error {
	if err := e.renderer.BeginFrame(ctx, [4]float32{0.1, 0.1, 0.15, 1.0}); err != nil {
		return err
	}
	if err := e.scene.draw(e.renderer, delta); err != nil {
		return err
	}
	return e.renderer.EndFrame()
}

func (e *Engine) drainReloads() {
	for {
		select {
		case name := <-e.reloadCh:
			if err := e.scene.reloadProgram(e.renderer, name); err != nil {
				core.LogError("reload of %s failed: %s", name, err.Error())
			}
		default:
			return
		}
	}
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			core.LogWarn(err.Error())
		}
	}
	if e.scene != nil {
		e.scene.destroy(e.renderer)
	}
	if e.renderer != nil {
		if err := e.renderer.Destroy(); err != nil {
			core.LogError(err.Error())
		}
	}
	if e.device != nil {
		e.device.Destroy()
	}
	return e.platform.Shutdown()
}
