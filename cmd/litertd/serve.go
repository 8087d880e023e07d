package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"litertd/internal/bridge"
	"litertd/internal/config"
	"litertd/internal/downloads"
	"litertd/internal/engine"
	"litertd/internal/httpapi"
	"litertd/internal/registry"
	"litertd/pkg/types"
)

type serveOptions struct {
	ConfigPath   string
	Addr         string
	ModelsDir    string
	DefaultModel string
	MaxTokens    int
	TopK         int
	Temperature  float64
	EnableVision bool
	EnableAudio  bool
	QueueDepth   int
	MaxWaitSec   int
	MaxRetries   int
	LogLevel     string
	CORSOrigins  string
}

func defaultServeOptions() *serveOptions {
	addr := ":8080"
	if v := os.Getenv("LITERTD_ADDR"); v != "" {
		addr = v
	}
	modelsDir := "~/models/litert"
	if v := os.Getenv("LITERTD_MODELS_DIR"); v != "" {
		modelsDir = v
	}
	return &serveOptions{
		Addr:      addr,
		ModelsDir: modelsDir,
		LogLevel:  "info",
	}
}

func addServeFlags(cmd *cobra.Command, opts *serveOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "Optional config file (.yaml/.json/.toml); flags override it")
	f.StringVar(&opts.Addr, "addr", opts.Addr, "HTTP listen address, e.g. :8080")
	f.StringVar(&opts.ModelsDir, "models-dir", opts.ModelsDir, "Directory to scan for *.task/*.litertlm model bundles")
	f.StringVar(&opts.DefaultModel, "default-model", opts.DefaultModel, "Default model id when request omits model")
	f.IntVar(&opts.MaxTokens, "max-tokens", opts.MaxTokens, "Max tokens per generation (0=engine default)")
	f.IntVar(&opts.TopK, "top-k", opts.TopK, "Top-k sampling parameter (0=engine default)")
	f.Float64Var(&opts.Temperature, "temperature", opts.Temperature, "Sampling temperature (0=engine default)")
	f.BoolVar(&opts.EnableVision, "enable-vision", opts.EnableVision, "Enable image attachments on sessions")
	f.BoolVar(&opts.EnableAudio, "enable-audio", opts.EnableAudio, "Enable audio attachments on sessions")
	f.IntVar(&opts.QueueDepth, "max-queue-depth", opts.QueueDepth, "Queued generations per session before 429 (0=default)")
	f.IntVar(&opts.MaxWaitSec, "max-wait-seconds", opts.MaxWaitSec, "Seconds a generation waits for a busy session before 429")
	f.IntVar(&opts.MaxRetries, "max-retries", opts.MaxRetries, "Structured output attempts before validation_failed")
	f.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level: debug|info|warn|error")
	f.StringVar(&opts.CORSOrigins, "cors-origins", opts.CORSOrigins, "Comma-separated allowed CORS origins (empty disables CORS)")
}

// applyConfigFile folds file values under unset flags.
func applyConfigFile(opts *serveOptions) error {
	if opts.ConfigPath == "" {
		return nil
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Addr != "" && opts.Addr == defaultServeOptions().Addr {
		opts.Addr = cfg.Addr
	}
	if cfg.ModelsDir != "" && opts.ModelsDir == defaultServeOptions().ModelsDir {
		opts.ModelsDir = cfg.ModelsDir
	}
	if cfg.DefaultModel != "" && opts.DefaultModel == "" {
		opts.DefaultModel = cfg.DefaultModel
	}
	if cfg.MaxTokens > 0 && opts.MaxTokens == 0 {
		opts.MaxTokens = cfg.MaxTokens
	}
	if cfg.TopK > 0 && opts.TopK == 0 {
		opts.TopK = cfg.TopK
	}
	if cfg.Temperature > 0 && opts.Temperature == 0 {
		opts.Temperature = cfg.Temperature
	}
	if cfg.EnableVision {
		opts.EnableVision = true
	}
	if cfg.EnableAudio {
		opts.EnableAudio = true
	}
	if cfg.MaxQueueDepth > 0 && opts.QueueDepth == 0 {
		opts.QueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWaitSeconds > 0 && opts.MaxWaitSec == 0 {
		opts.MaxWaitSec = cfg.MaxWaitSeconds
	}
	if cfg.MaxRetries > 0 && opts.MaxRetries == 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func runServe(opts *serveOptions) error {
	if err := applyConfigFile(opts); err != nil {
		return err
	}
	logger := newLogger(opts.LogLevel)

	catalog, err := registry.LoadDir(opts.ModelsDir)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}

	eng := engine.New()
	bcfg := bridge.Config{
		Catalog:       catalog,
		DefaultModel:  opts.DefaultModel,
		MaxTokens:     opts.MaxTokens,
		TopK:          opts.TopK,
		Temperature:   float32(opts.Temperature),
		EnableVision:  opts.EnableVision,
		EnableAudio:   opts.EnableAudio,
		MaxQueueDepth: opts.QueueDepth,
		MaxRetries:    opts.MaxRetries,
		Logger:        &logger,
	}
	if opts.MaxWaitSec > 0 {
		bcfg.MaxWait = time.Duration(opts.MaxWaitSec) * time.Second
	}
	b := bridge.New(eng, bcfg)
	defer b.Close()

	dl, err := downloads.NewManager(opts.ModelsDir, downloads.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("downloads: %w", err)
	}
	defer dl.Close()

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(logger)
	if origins := splitCSV(opts.CORSOrigins); len(origins) > 0 {
		httpapi.SetCORSOptions(true, origins,
			[]string{"GET", "POST", "DELETE", "OPTIONS"},
			[]string{"Accept", "Content-Type", "X-Log-Level"})
	}

	mux := httpapi.NewMux(httpapi.BridgeService{Bridge: b, DL: dl})
	srv := &http.Server{Addr: opts.Addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", opts.Addr).Str("models_dir", opts.ModelsDir).
			Int("models", len(catalog)).Msg("litertd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

func runListModels(opts *serveOptions) error {
	catalog, err := registry.LoadDir(opts.ModelsDir)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}
	if len(catalog) == 0 {
		fmt.Println("no model bundles found")
		return nil
	}
	for _, m := range catalog {
		printModel(m)
	}
	return nil
}

func printModel(m types.Model) {
	fmt.Printf("%s\t%s\t%s\n", m.ID, m.Format, m.Path)
}
