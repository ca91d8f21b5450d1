// Command particles runs the particle simulation in a window, or headless on the software
// backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Carmen-Shannon/oxy-particles/engine"
	"github.com/Carmen-Shannon/oxy-particles/engine/assets"
	"github.com/Carmen-Shannon/oxy-particles/engine/config"
	"github.com/Carmen-Shannon/oxy-particles/engine/logger"
	"github.com/Carmen-Shannon/oxy-particles/engine/metrics"
	"github.com/Carmen-Shannon/oxy-particles/engine/profiler"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-particles/engine/simulation"
	"github.com/Carmen-Shannon/oxy-particles/engine/window"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		backend    = flag.String("backend", "", "override the renderer backend (wgpu|software)")
		frames     = flag.Uint64("frames", 0, "quit after this many frames (0 runs until closed)")
		particles  = flag.Int("particles", 0, "override the particle side length")
	)
	flag.Parse()

	if err := run(*configPath, *backend, *particles, *frames); err != nil {
		fmt.Fprintln(os.Stderr, "particles:", err)
		os.Exit(1)
	}
}

func run(configPath, backend string, particles int, frames uint64) (err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if backend != "" {
		cfg.Backend = backend
	}
	if particles > 0 {
		cfg.NumParticles = particles
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	runID := uuid.NewString()
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.Development, RunID: runID})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(log, cfg.MetricsAddr, reg)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	tp := newTracerProvider(log, runID, cfg.Development)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = multierr.Append(err, tp.Shutdown(ctx))
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var win window.Window
	if cfg.Backend == config.BackendWGPU {
		if win, err = window.NewWindow(
			window.WithTitle(cfg.Window.Title),
			window.WithWidth(cfg.Window.Width),
			window.WithHeight(cfg.Window.Height),
			window.WithLogger(log),
		); err != nil {
			return err
		}
	}

	r, err := newRenderer(cfg, win, log)
	if err != nil {
		return err
	}
	defer r.Release()

	var providers assets.ChainProvider
	if cfg.AssetsDir != "" {
		providers = append(providers, assets.NewDirProvider(cfg.AssetsDir, assets.WithLogger(log)))
	}
	providers = append(providers, assets.NewProceduralProvider(cfg.Environment.FaceSize))
	env, err := assets.LoadEnvironment(ctx, providers, cfg.Environment.FaceSize)
	if err != nil {
		return err
	}

	sim, err := simulation.New(r, cfg, env,
		simulation.WithLogger(log),
		simulation.WithMetrics(m),
		simulation.WithTracerProvider(tp),
	)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, sim.Release()) }()

	if cfg.HotReload {
		w, err := shader.NewWatcher(log, cfg.ShadersDir, 150*time.Millisecond, func(paths []string) {
			if err := sim.ReloadKernels(paths); err != nil {
				log.Warn("shader reload incomplete", zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = w.Stop() }()
	}

	opts := []engine.EngineBuilderOption{
		engine.WithLogger(log),
		engine.WithProfiling(cfg.Profiling),
		engine.WithProfiler(profiler.NewProfiler(log, m)),
		engine.WithTickRate(cfg.TickRate),
		engine.WithRenderFrameLimit(cfg.FrameLimit),
		engine.WithMaxFrames(frames),
		engine.WithScene(0, sim),
	}
	if win != nil {
		bindInput(win, sim)
		opts = append(opts, engine.WithWindow(win))
	}
	eng := engine.NewEngine(opts...)

	go func() {
		<-ctx.Done()
		eng.Quit()
	}()

	log.Info("starting",
		zap.String("backend", cfg.Backend),
		zap.Int("particles", cfg.NumParticles*cfg.NumParticles),
		zap.Int("skip_count", cfg.SkipCount),
	)
	eng.Run()
	return nil
}

func newRenderer(cfg config.Config, win window.Window, log *zap.Logger) (renderer.Renderer, error) {
	mode := renderer.PresentModeVSync
	if cfg.PresentMode == "uncapped" {
		mode = renderer.PresentModeUncapped
	}
	opts := []renderer.RendererBuilderOption{
		renderer.WithLogger(log),
		renderer.WithPresentMode(mode),
		renderer.WithMSAA(renderer.MSAASampleCount(cfg.MSAA)),
	}
	if win == nil {
		opts = append(opts, renderer.WithSurfaceSize(cfg.Window.Width, cfg.Window.Height))
		return renderer.NewRenderer(renderer.BackendTypeSoftware, nil, opts...)
	}
	return renderer.NewRenderer(renderer.BackendTypeWGPU, win, opts...)
}

// bindInput forwards window input to the simulation's camera controls.
func bindInput(win window.Window, sim *simulation.Simulation) {
	win.SetKeyDownCallback(sim.KeyDown)
	win.SetKeyUpCallback(sim.KeyUp)
	win.SetDragCallback(sim.Drag)
	win.SetScrollCallback(sim.Scroll)
}

func serveMetrics(log *zap.Logger, addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server exited", zap.Error(err))
		}
	}()
	return srv
}
