package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"rembgd/internal/common/fsutil"
	"rembgd/internal/config"
	"rembgd/internal/coordinator"
	"rembgd/internal/device"
	"rembgd/internal/httpapi"
	"rembgd/internal/matting"
	"rembgd/internal/registry"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cfg := config.Config{}
	var configPath string

	root := &cobra.Command{
		Use:           "rembgd",
		Short:         "Image background removal daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				fileCfg, err := config.Load(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = merge(fileCfg, cfg, cmd)
			}
			applyDefaults(&cfg)
			return runServe(cfg)
		},
	}

	f := serve.Flags()
	f.StringVar(&configPath, "config", "", "Config file (.yaml, .json or .toml); flags override it")
	f.StringVar(&cfg.Addr, "addr", "", "HTTP listen address, e.g. :8080 (defaults REMBGD_ADDR or :8080)")
	f.StringVar(&cfg.ModelsDir, "models-dir", "", "Directory to scan for *.onnx model weights")
	f.StringVar(&cfg.DefaultModel, "default-model", "", "Model id to initialize when requests omit one")
	f.StringSliceVar(&cfg.AllowedOrigins, "allowed-origin", nil, "Origin allowed to call the API (repeatable)")
	f.BoolVar(&cfg.AllowAnyOrigin, "allow-any-origin", false, "Accept any Origin header (demo deployments only)")
	f.IntVar(&cfg.MaxQueueDepth, "max-queue-depth", 0, "Pending inference requests before backpressure (0=default)")
	f.IntVar(&cfg.MaxWaitMS, "max-wait-ms", 0, "Admission wait before rejecting as too busy (0=default)")
	f.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", 0, "Maximum request body size in bytes (0=default)")
	f.IntVar(&cfg.IdleUnloadMin, "idle-unload-minutes", 0, "Unload the model after this many idle minutes (0=never)")
	f.StringVar(&cfg.LogLevel, "log-level", "", "Log level: debug|info|warn|error")

	models := &cobra.Command{
		Use:   "models",
		Short: "List the models the daemon would serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cmd.Flags().GetString("models-dir")
			if err != nil {
				return err
			}
			dir, err = fsutil.ExpandHome(dir)
			if err != nil {
				return err
			}
			if dir != "" && !fsutil.PathExists(dir) {
				dir = ""
			}
			reg, err := registry.LoadDir(dir)
			if err != nil {
				return err
			}
			caps := device.Probe()
			def := reg.Default(caps)
			w := cmd.OutOrStdout()
			for _, m := range reg.List() {
				marker := " "
				if m.ID == def.ID {
					marker = "*"
				}
				fmt.Fprintf(w, "%s %-24s %-10s %-4d %s\n", marker, m.ID, m.Output, m.InputSide, m.Name)
			}
			return nil
		},
	}
	models.Flags().String("models-dir", "", "Directory to scan for *.onnx model weights")

	root.AddCommand(serve, models)
	return root
}

// merge keeps file values except where the corresponding flag was set
// explicitly on the command line.
func merge(file, flags config.Config, cmd *cobra.Command) config.Config {
	out := file
	set := func(name string) bool { return cmd.Flags().Changed(name) }
	if set("addr") {
		out.Addr = flags.Addr
	}
	if set("models-dir") {
		out.ModelsDir = flags.ModelsDir
	}
	if set("default-model") {
		out.DefaultModel = flags.DefaultModel
	}
	if set("allowed-origin") {
		out.AllowedOrigins = flags.AllowedOrigins
	}
	if set("allow-any-origin") {
		out.AllowAnyOrigin = flags.AllowAnyOrigin
	}
	if set("max-queue-depth") {
		out.MaxQueueDepth = flags.MaxQueueDepth
	}
	if set("max-wait-ms") {
		out.MaxWaitMS = flags.MaxWaitMS
	}
	if set("max-body-bytes") {
		out.MaxBodyBytes = flags.MaxBodyBytes
	}
	if set("idle-unload-minutes") {
		out.IdleUnloadMin = flags.IdleUnloadMin
	}
	if set("log-level") {
		out.LogLevel = flags.LogLevel
	}
	return out
}

func applyDefaults(cfg *config.Config) {
	if cfg.Addr == "" {
		cfg.Addr = os.Getenv("REMBGD_ADDR")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func runServe(cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)

	caps := device.Probe()
	logger.Info().Bool("accelerated", caps.Accelerated).
		Bool("constrained_platform", caps.ConstrainedPlatform).Msg("device probed")

	modelsDir, err := fsutil.ExpandHome(cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("models dir: %w", err)
	}
	if modelsDir != "" && !fsutil.PathExists(modelsDir) {
		logger.Warn().Str("dir", modelsDir).Msg("models dir not found, serving built-in models only")
		modelsDir = ""
	}
	reg, err := registry.LoadDir(modelsDir)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}

	// Base context cancels in-flight work on shutdown.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	coord := coordinator.New(coordinator.Config{
		Registry:      reg,
		Capabilities:  caps,
		Runtime:       matting.New(&logger),
		DefaultModel:  cfg.DefaultModel,
		MaxQueueDepth: cfg.MaxQueueDepth,
		MaxWait:       time.Duration(cfg.MaxWaitMS) * time.Millisecond,
		BaseContext:   baseCtx,
		Logger:        &logger,
	})

	httpapi.SetLogger(logger)
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetOriginPolicy(cfg.AllowedOrigins, cfg.AllowAnyOrigin)
	if cfg.AllowAnyOrigin {
		logger.Warn().Msg("origin allow-list disabled: accepting any origin")
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(coord)}

	var sweeper *cron.Cron
	if cfg.IdleUnloadMin > 0 {
		maxIdle := time.Duration(cfg.IdleUnloadMin) * time.Minute
		sweeper = cron.New()
		if _, err := sweeper.AddFunc("@every 1m", func() {
			if coord.UnloadIdle(maxIdle) {
				logger.Info().Dur("max_idle", maxIdle).Msg("idle model unloaded")
			}
		}); err != nil {
			return fmt.Errorf("schedule idle sweep: %w", err)
		}
		sweeper.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("models_dir", modelsDir).Msg("rembgd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	if sweeper != nil {
		<-sweeper.Stop().Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown")
	}
	cancelBase()
	return coord.Close()
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
