package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/mohammed-shakir/plot-editor/internal/core/config"
	"github.com/mohammed-shakir/plot-editor/internal/core/health"
	"github.com/mohammed-shakir/plot-editor/internal/core/observability"
	"github.com/mohammed-shakir/plot-editor/internal/core/router"
	"github.com/mohammed-shakir/plot-editor/internal/core/server"
	"github.com/mohammed-shakir/plot-editor/internal/flash"
	"github.com/mohammed-shakir/plot-editor/internal/hostsync"
	"github.com/mohammed-shakir/plot-editor/internal/logger"
	h3mapper "github.com/mohammed-shakir/plot-editor/internal/mapper/h3"
	"github.com/mohammed-shakir/plot-editor/internal/markers"
	"github.com/mohammed-shakir/plot-editor/internal/metrics"
	"github.com/mohammed-shakir/plot-editor/internal/mode"
	"github.com/mohammed-shakir/plot-editor/internal/popup"
	"github.com/mohammed-shakir/plot-editor/internal/redisstore"
	"github.com/mohammed-shakir/plot-editor/internal/store"
	"github.com/mohammed-shakir/plot-editor/internal/surface"
	"github.com/mohammed-shakir/plot-editor/internal/tools"
)

var Version = "dev"

// Options holds the command-line flags. Addr, Mode, Style and Seed are read
// from the environment by config.FromEnv; set here they win over the YAML file.
type Options struct {
	ConfigFile  string `short:"c" long:"config"       env:"CONFIG_FILE"  description:"Optional YAML config overlay"`
	Addr        string `short:"a" long:"addr"                            description:"HTTP listen address"`
	Mode        string `short:"m" long:"mode"                            description:"Default editing mode (task|project_bounds|checkpoint|default)"`
	Style       string `short:"s" long:"style"                           description:"Base map style used for marker colors"`
	Seed        string `long:"seed"                                      description:"GeoJSON FeatureCollection loaded at startup"`
	MetricsAddr string `long:"metrics-addr"           env:"METRICS_ADDR" description:"Serve metrics on a dedicated listener"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		slog.Error("config", "err", err)
		return 1
	}
	defMode := mode.Parse(cfg.Mode)

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Mode:      string(defMode),
		Component: "editor",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.SetMode(string(defMode))
	observability.ExposeBuildInfo(Version)
	appLog.Info("starting editor",
		"addr", cfg.Addr,
		"version", Version,
		"mode", string(defMode),
		"style", cfg.BaseStyle,
		"flash_driver", cfg.Flash.Driver,
		"host_sync", cfg.Host.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.MetricsAddr != "" {
		if err := serveMetrics(ctx, opts.MetricsAddr, appLog); err != nil {
			appLog.Error("metrics setup failed", "err", err)
			return 1
		}
	}

	checks := map[string]health.Check{}

	backend, closeFlash, err := flashBackend(ctx, cfg.Flash, checks)
	if err != nil {
		appLog.Error("flash backend init failed", "driver", cfg.Flash.Driver, "err", err)
		return 1
	}
	defer closeFlash()
	fl, err := flash.New(backend, cfg.Flash.TTL, flash.WithLogger(appLog))
	if err != nil {
		appLog.Error("flash init failed", "err", err)
		return 1
	}

	st := store.New(appLog)

	mp, err := h3mapper.New(cfg.SurfaceH3Res)
	if err != nil {
		appLog.Error("surface index init failed", "res", cfg.SurfaceH3Res, "err", err)
		return 1
	}
	layer := markers.NewLayer(cfg.Palette, cfg.BaseStyle, appLog)
	sf := surface.New(layer, mp, appLog)
	sf.Attach(st)

	if cfg.SeedFile != "" {
		seed, err := store.ReadFile(cfg.SeedFile)
		if err != nil {
			appLog.Error("seed load failed", "err", err)
			return 1
		}
		st.Set(seed, store.OriginLoad)
		appLog.Info("seed loaded", "path", cfg.SeedFile, "features", st.Len())
	}

	var pub *hostsync.Publisher
	if cfg.Host.Enabled {
		pub, err = hostsync.NewPublisher(cfg.Host.BrokerList(), cfg.Host.Topic, cfg.Host.Timeout, appLog)
		if err != nil {
			// save to project reports the host as unavailable
			appLog.Warn("host sync disabled", "err", err)
		} else {
			defer func() { _ = pub.Close() }()
		}
	}

	if cfg.Host.Subscribe {
		sub := hostsync.NewSubscriber(hostsync.SubscriberConfig{
			Brokers: cfg.Host.BrokerList(),
			Topic:   cfg.Host.ModelTopic,
			GroupID: cfg.Host.GroupID,
		}, st, appLog)
		go func() {
			if err := sub.Start(ctx); err != nil {
				appLog.Error("host model feed stopped", "err", err)
			}
		}()
	}

	rd, err := popup.NewRenderer()
	if err != nil {
		appLog.Error("popup template init failed", "err", err)
		return 1
	}

	popups := popup.NewController(st, fl, popup.NewRegistry(cfg.PopupCapacity),
		popup.WithLogger(appLog),
		popup.WithContainer(cfg.Flash.Container))

	api := &router.API{
		Store:       st,
		Popups:      popups,
		Renderer:    rd,
		Surface:     sf,
		Flash:       fl,
		Tools:       tools.New(st, sf, pub, appLog),
		Logger:      appLog,
		DefaultMode: defMode,
	}

	if err := server.Run(ctx, cfg, appLog, api, checks); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("shutdown complete")
	return 0
}

// loadConfig layers the environment, the optional YAML file and the flags,
// each overriding the one before.
func loadConfig(opts Options) (config.Config, error) {
	cfg := config.FromEnv()
	if opts.ConfigFile != "" {
		if err := config.LoadFile(opts.ConfigFile, &cfg); err != nil {
			return cfg, err
		}
	}
	applyFlags(&cfg, opts)
	return cfg, nil
}

func applyFlags(cfg *config.Config, opts Options) {
	if v := strings.TrimSpace(opts.Addr); v != "" {
		cfg.Addr = v
	}
	if v := strings.TrimSpace(opts.Mode); v != "" {
		cfg.Mode = v
	}
	if v := strings.TrimSpace(opts.Style); v != "" {
		cfg.BaseStyle = v
	}
	if v := strings.TrimSpace(opts.Seed); v != "" {
		cfg.SeedFile = v
	}
}

func flashBackend(ctx context.Context, fc config.FlashCfg, checks map[string]health.Check) (flash.Backend, func(), error) {
	switch fc.Driver {
	case "redis":
		client, err := redisstore.New(ctx, fc.RedisAddr,
			redisstore.WithDialTimeout(fc.OpTimeout),
			redisstore.WithReadTimeout(fc.OpTimeout),
			redisstore.WithWriteTimeout(fc.OpTimeout),
		)
		if err != nil {
			return nil, func() {}, err
		}
		be := flash.NewRedis(client, fc.TTL)
		checks["redis"] = be.Ready
		return be, func() { _ = client.Close() }, nil
	default:
		return flash.NewMemory(fc.Capacity, fc.TTL), func() {}, nil
	}
}

func serveMetrics(ctx context.Context, addr string, l *slog.Logger) error {
	p := metrics.Init(metrics.Config{
		Enabled: true,
		Addr:    addr,
		Path:    "/metrics",
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	if err := observability.Register(p.Registerer()); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		l.Info("metrics listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server exited", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return nil
}
