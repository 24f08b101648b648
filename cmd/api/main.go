package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/report-interpreter/internal/application/analysis"
	"github.com/bryanwahyu/report-interpreter/internal/config"
	domain "github.com/bryanwahyu/report-interpreter/internal/domain/analysis"
	"github.com/bryanwahyu/report-interpreter/internal/infra/ai/gemini"
	openaiclient "github.com/bryanwahyu/report-interpreter/internal/infra/ai/openai"
	"github.com/bryanwahyu/report-interpreter/internal/infra/httpserver"
	"github.com/bryanwahyu/report-interpreter/internal/logging"
	"github.com/bryanwahyu/report-interpreter/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	handler, relayer := newHandler(ctx, cfg, logger)

	// no WriteTimeout: upstream calls have no deadline unless one is configured
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// run server
	go func() {
		logger.Info("server listening",
			zap.String("addr", cfg.Addr()),
			zap.String("provider", cfg.Upstream.Provider),
			zap.String("model", relayer.Model()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

// newHandler wires the upstream adapters, the service and the router.
func newHandler(ctx context.Context, cfg *config.Config, logger *zap.Logger) (http.Handler, *gemini.Client) {
	geminiCfg := gemini.Config{
		APIKey:  cfg.Upstream.Gemini.APIKey,
		BaseURL: cfg.Upstream.Gemini.BaseURL,
		Model:   cfg.Upstream.Gemini.Model,
		Timeout: cfg.Upstream.Timeout,
	}

	// text relay
	relayer := gemini.NewClient(geminiCfg)

	// image extractor
	extractor, checks := buildExtractor(ctx, cfg, geminiCfg, logger)
	checks["gemini_api_key"] = middleware.CredentialConfigured("GEMINI_API_KEY", cfg.Upstream.Gemini.APIKey)

	svc := appanalysis.NewService(relayer, extractor, logger)

	return httpserver.NewRouter(svc, httpserver.Options{
		Logger:         logger,
		Metrics:        middleware.NewMetrics(),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Checks:         checks,
	}), relayer
}

// buildExtractor picks the structured image backend. A missing credential
// leaves the image route answering with an upstream error and /ready failing.
func buildExtractor(ctx context.Context, cfg *config.Config, geminiCfg gemini.Config, logger *zap.Logger) (domain.Extractor, map[string]middleware.HealthChecker) {
	checks := map[string]middleware.HealthChecker{}

	switch cfg.Upstream.Provider {
	case config.ProviderOpenAI:
		checks["openai_api_key"] = middleware.CredentialConfigured("OPENAI_API_KEY", cfg.Upstream.OpenAI.APIKey)
		if cfg.Upstream.OpenAI.APIKey == "" {
			logger.Warn("OPENAI_API_KEY not set, image analysis disabled")
			return nil, checks
		}
		return openaiclient.NewClient(
			cfg.Upstream.OpenAI.APIKey,
			cfg.Upstream.OpenAI.BaseURL,
			cfg.Upstream.OpenAI.Model,
			cfg.Upstream.Timeout,
		), checks
	default:
		ext, err := gemini.NewExtractor(ctx, geminiCfg)
		if err != nil {
			logger.Warn("image analysis disabled", zap.Error(err))
			return nil, checks
		}
		return ext, checks
	}
}
