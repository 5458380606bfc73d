package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/meditech/hemascan/anemia"
	"github.com/meditech/hemascan/api/handlers"
	"github.com/meditech/hemascan/config"
	"github.com/meditech/hemascan/internal/metrics"
	"github.com/meditech/hemascan/internal/server"
	"github.com/meditech/hemascan/llm"
	"github.com/meditech/hemascan/providers/gemini"
	"github.com/meditech/hemascan/providers/groq"
	"github.com/meditech/hemascan/providers/huggingface"
	"github.com/meditech/hemascan/store"
)

// Server assembles the screening service.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	registry         *prometheus.Registry
	metricsCollector *metrics.Collector

	providers    []llm.VisionProvider
	orchestrator *anemia.Orchestrator
	scanStore    *store.ScanStore

	healthHandler *handlers.HealthHandler
	scanHandler   *handlers.ScanHandler

	rateLimiterCancel context.CancelFunc
}

// NewServer creates a server from loaded configuration.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Start wires the pipeline and brings up both listeners.
func (s *Server) Start() error {
	s.registry = prometheus.NewRegistry()
	s.metricsCollector = metrics.NewCollector("hemascan", s.registry, s.logger)

	s.initProviders()
	s.initOrchestrator()
	if err := s.initStore(); err != nil {
		// Screening works without history; archive endpoints degrade.
		s.logger.Warn("scan archive unavailable", zap.Error(err))
	}
	s.initHandlers()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if s.cfg.Server.MetricsPort != 0 {
		if err := s.startMetricsServer(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

// initProviders builds the cascade in the configured priority order.
// Providers without credentials stay in the slice and report unavailable.
func (s *Server) initProviders() {
	byName := map[string]llm.VisionProvider{
		"gemini":      gemini.NewGeminiProvider(s.cfg.Gemini, s.logger),
		"groq":        groq.NewGroqProvider(s.cfg.Groq, s.logger),
		"huggingface": huggingface.NewHuggingFaceProvider(s.cfg.HuggingFace, s.logger),
	}

	order := s.cfg.ProviderOrder
	if len(order) == 0 {
		order = config.DefaultProviderOrder
	}
	s.providers = make([]llm.VisionProvider, 0, len(order))
	for _, name := range order {
		// Validate() guarantees the name resolves.
		s.providers = append(s.providers, byName[name])
	}

	available := 0
	for _, p := range s.providers {
		if p.Available() {
			available++
			s.logger.Info("provider configured", zap.String("provider", p.Name()))
		}
	}
	if available == 0 {
		s.logger.Warn("no providers have credentials, screenings will return UNKNOWN")
	}
}

func (s *Server) initOrchestrator() {
	s.orchestrator = anemia.NewOrchestrator(s.providers, s.cfg.Orchestrator, s.metricsCollector, s.logger)
}

func (s *Server) initStore() error {
	if s.cfg.Database.Path == "" {
		return nil
	}
	scanStore, err := store.Open(s.cfg.Database.Path, s.logger)
	if err != nil {
		return err
	}
	s.scanStore = scanStore
	s.logger.Info("scan archive opened", zap.String("path", s.cfg.Database.Path))
	return nil
}

func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.providers, s.logger)

	var archive handlers.ScanArchive
	if s.scanStore != nil {
		archive = s.scanStore
	}
	s.scanHandler = handlers.NewScanHandler(s.orchestrator, archive, s.logger)
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)

	mux.HandleFunc("POST /api/v1/scans", s.scanHandler.HandleCreate)
	mux.HandleFunc("GET /api/v1/scans", s.scanHandler.HandleList)
	mux.HandleFunc("GET /api/v1/scans/{id}", s.scanHandler.HandleGet)

	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// WaitForShutdown blocks until the HTTP server exits, then cleans up.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops everything gracefully.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
