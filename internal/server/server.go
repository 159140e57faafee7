package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	"github.com/circa10a/push-timer/api"
	"github.com/circa10a/push-timer/internal/server/apierr"
	"github.com/circa10a/push-timer/internal/server/database"
	"github.com/circa10a/push-timer/internal/server/handlers"
	"github.com/circa10a/push-timer/internal/server/middleware"
	"github.com/circa10a/push-timer/internal/server/push"
	"github.com/circa10a/push-timer/internal/server/secrets"
)

const (
	defaultLogLevel        = "info"
	defaultPushTTL         = 24 * time.Hour
	defaultPushTimeout     = 10 * time.Second
	defaultWorkerInterval  = 30 * time.Second
	defaultWorkerBatchSize = 100
	shutdownTimeout        = 10 * time.Second
)

// Server is the application context. It owns the store, the HTTP listener and the background jobs.
type Server struct {
	Config

	ctx        context.Context
	cancel     context.CancelFunc
	mux        http.Handler
	httpServer *http.Server
	logger     *slog.Logger
	store      database.Store
	jobs       *conc.WaitGroup
	vapid      secrets.VAPIDKeys
	Worker     *Worker
	Pruner     *Pruner
}

// Config holds configuration for creating a Server.
type Config struct {
	AutoTLS            bool
	ContactEmail       string
	CORSAllowedOrigins []string
	DatabaseURL        string
	DeliveryRate       float64
	Domains            []string
	EncryptionEnabled  bool
	LogFormat          string
	LogLevel           string
	Metrics            bool
	Notifiers          []string
	Port               int
	PruneSchedule      string
	PushTTL            time.Duration
	PushTimeout        time.Duration
	StorageDir         string
	TimerRetention     time.Duration
	TLSCert            string
	TLSKey             string
	Validation         bool
	VAPIDKeyDir        string
	VAPIDPrivateKey    string
	VAPIDPublicKey     string
	WorkerBatchSize    int
	WorkerInterval     time.Duration
}

// New returns a new server configured from cfg.
func New(cfg *Config) (*Server, error) {
	server := &Server{
		Config: *cfg,
		jobs:   conc.NewWaitGroup(),
	}

	server.applyDefaults()

	// Ensure configuration options are valid/compatible
	err := server.validate()
	if err != nil {
		return nil, err
	}

	// Logging
	logLevel, err := log.ParseLevel(server.LogLevel)
	if err != nil {
		return nil, err
	}

	logHandler := log.NewWithOptions(os.Stdout, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       getLogFormatter(server.LogFormat),
		Level:           logLevel,
	})
	server.logger = slog.New(logHandler)

	server.ctx, server.cancel = context.WithCancel(context.Background())

	// Database
	store, err := database.Open(server.ctx, database.Options{
		DatabaseURL: server.DatabaseURL,
		StorageDir:  server.StorageDir,
		Encrypt:     server.EncryptionEnabled,
	})
	if err != nil {
		server.cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	err = store.Init(server.ctx)
	if err != nil {
		server.cancel()
		_ = store.Close()
		return nil, fmt.Errorf("failed to create database tables: %w", err)
	}
	server.store = store
	server.logger.Info("Database ready", "dialect", store.Dialect(), "encryption", server.EncryptionEnabled)

	// Push delivery
	server.vapid, err = server.loadVAPIDKeys()
	if err != nil {
		server.cancel()
		_ = store.Close()
		return nil, fmt.Errorf("failed to load VAPID keys: %w", err)
	}

	mirror, err := push.NewMirror(server.Notifiers)
	if err != nil {
		server.cancel()
		_ = store.Close()
		return nil, err
	}

	sender := push.NewSender(push.Config{
		Keys:       server.vapid,
		Subscriber: server.ContactEmail,
		TTL:        server.PushTTL,
		Timeout:    server.PushTimeout,
	})
	if !sender.Enabled() {
		server.logger.Warn("VAPID keys not configured, push delivery is disabled")
	}

	var limiter *rate.Limiter
	if server.DeliveryRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(server.DeliveryRate), max(1, int(server.DeliveryRate)))
	}

	// Background jobs
	server.Worker = &Worker{
		Store:     store,
		Sender:    sender,
		Mirror:    mirror,
		Limiter:   limiter,
		BatchSize: server.WorkerBatchSize,
		Interval:  server.WorkerInterval,
		Logger:    server.logger.With("component", "worker"),
	}

	if server.TimerRetention > 0 {
		server.Pruner = &Pruner{
			Store:     store,
			Retention: server.TimerRetention,
			Schedule:  server.PruneSchedule,
			Logger:    server.logger.With("component", "pruner"),
		}
	}

	server.mux = server.routes()

	// If no auto TLS, use specified server port
	// :{port}
	server.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", server.Port),
		Handler:           server.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return server, nil
}

// routes builds the HTTP handler with all middlewares applied.
func (s *Server) routes() http.Handler {
	router := chi.NewRouter()
	v := validator.New()

	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecurityHeaders)
	router.Use(middleware.Logging(s.logger))

	// Features
	if s.Metrics {
		router.Use(middleware.Prometheus)
		router.Handle("/metrics", promhttp.Handler())
	}

	// Health check
	healthHandler := &handlers.Health{
		Store:           s.store,
		VAPIDConfigured: s.vapid.Complete(),
	}
	router.Get("/health", apierr.Handle(s.logger, healthHandler.GetHandleFunc))

	// Subscriptions
	subscriptionHandler := &handlers.Subscription{
		Store:  s.store,
		Logger: s.logger,
	}
	router.With(middleware.Validate[api.SubscribeRequest](v)).Post("/subscribe", apierr.Handle(s.logger, subscriptionHandler.PostHandleFunc))

	// Timers
	timerHandler := &handlers.Timer{
		Store:  s.store,
		Logger: s.logger,
	}
	router.With(middleware.Validate[api.StartTimerRequest](v)).Post("/start_timer", apierr.Handle(s.logger, timerHandler.StartHandleFunc))
	router.Route("/api/timers", func(r chi.Router) {
		r.Get("/", apierr.Handle(s.logger, timerHandler.GetHandleFunc))
		r.With(middleware.Validate[api.CancelTimerRequest](v)).Post("/cancel", apierr.Handle(s.logger, timerHandler.CancelHandleFunc))
		r.With(middleware.Validate[api.CancelAllRequest](v)).Post("/cancel_all", apierr.Handle(s.logger, timerHandler.CancelAllHandleFunc))
	})

	var handler http.Handler = router
	if len(s.CORSAllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: s.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		}).Handler(handler)
	}

	return handler
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start launches the background jobs and then the listener of the server. It blocks until the
// listener stops.
func (s *Server) Start() error {
	log := s.logger.With("component", "server")

	s.jobs.Go(func() { s.Worker.Start(s.ctx) })

	if s.Pruner != nil {
		s.jobs.Go(func() {
			err := s.Pruner.Start(s.ctx)
			if err != nil {
				log.Error("Pruner stopped", "error", err)
			}
		})
	}

	// Auto TLS will create listeners on port 80 and 443
	if s.AutoTLS {
		s.printBanner(":80, :443")
		log.Info("Starting server on :80 and :443")
		certmagic.DefaultACME.Agreed = true
		certmagic.DefaultACME.Email = s.ContactEmail
		return certmagic.HTTPS(s.Domains, s.mux)
	}

	addr := s.httpServer.Addr
	s.printBanner(addr)
	log.Info("Starting server on " + addr)

	var err error
	// If custom cert and key provided, listen on specified server port via https
	if s.TLSCert != "" && s.TLSKey != "" {
		err = s.httpServer.ListenAndServeTLS(s.TLSCert, s.TLSKey)
	} else {
		// No TLS requirements specified, listen on specified server port via http
		err = s.httpServer.ListenAndServe()
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Stop shuts the listener down, waits for background jobs and closes the store.
func (s *Server) Stop() {
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// In-flight requests drain before the background jobs and store go away.
	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.logger.Error("Failed to shut down http server", "error", err)
	}

	s.cancel()
	s.jobs.Wait()

	err = s.store.Close()
	if err != nil {
		s.logger.Error("Failed to close database", "error", err)
	}
}

// loadVAPIDKeys prefers explicitly configured keys and falls back to the key directory.
func (s *Server) loadVAPIDKeys() (secrets.VAPIDKeys, error) {
	keys := secrets.VAPIDKeys{
		PublicKey:  s.VAPIDPublicKey,
		PrivateKey: s.VAPIDPrivateKey,
	}

	if keys.Complete() || s.VAPIDKeyDir == "" {
		return keys, nil
	}

	return secrets.LoadOrCreateVAPIDKeys(s.VAPIDKeyDir)
}

func (s *Server) applyDefaults() {
	if s.LogLevel == "" {
		s.LogLevel = defaultLogLevel
	}

	if s.WorkerBatchSize == 0 {
		s.WorkerBatchSize = defaultWorkerBatchSize
	}

	if s.WorkerInterval == 0 {
		s.WorkerInterval = defaultWorkerInterval
	}

	if s.PushTTL == 0 {
		s.PushTTL = defaultPushTTL
	}

	if s.PushTimeout == 0 {
		s.PushTimeout = defaultPushTimeout
	}

	if s.PruneSchedule == "" {
		s.PruneSchedule = defaultPruneSchedule
	}

	s.LogFormat = strings.ToLower(s.LogFormat)
}

// validate validates the server configuration and checks for conflicting parameters.
func (s *Server) validate() error {
	if !s.Validation {
		return nil
	}

	if s.AutoTLS && (s.TLSCert != "" || s.TLSKey != "") {
		return errors.New("AutoTLS cannot be set along with TLS cert or TLS key")
	}

	if s.AutoTLS && len(s.Domains) == 0 {
		return errors.New("AutoTLS requires a domain to also be configured")
	}

	if s.TLSCert != "" && s.TLSKey == "" {
		return errors.New("TLS certificate is missing TLS key")
	}

	if s.TLSCert == "" && s.TLSKey != "" {
		return errors.New("TLS key is missing TLS certificate")
	}

	validLogFormats := []string{"json", "text", ""}
	if !slices.Contains(validLogFormats, s.LogFormat) {
		return fmt.Errorf("invalid log format. Valid log formats are: %v", validLogFormats)
	}

	if s.LogLevel != "" {
		_, err := log.ParseLevel(s.LogLevel)
		if err != nil {
			return err
		}
	}

	if s.DatabaseURL != "" && !database.IsPostgresURL(s.DatabaseURL) {
		return errors.New("database URL must start with postgres:// or postgresql://")
	}

	if (s.VAPIDPublicKey == "") != (s.VAPIDPrivateKey == "") {
		return errors.New("VAPID public and private keys must be configured together")
	}

	if s.WorkerInterval < 0 || s.PushTTL < 0 || s.PushTimeout < 0 || s.TimerRetention < 0 {
		return errors.New("durations cannot be negative")
	}

	if s.WorkerBatchSize < 0 {
		return errors.New("worker batch size cannot be negative")
	}

	if s.DeliveryRate < 0 {
		return errors.New("delivery rate cannot be negative")
	}

	err := push.ValidateNotifierURLs(s.Notifiers)
	if err != nil {
		return err
	}

	if s.TimerRetention > 0 {
		_, err = cronParser.Parse(s.PruneSchedule)
		if err != nil {
			return fmt.Errorf("invalid prune schedule %q: %w", s.PruneSchedule, err)
		}
	}

	return nil
}

// getLogFormatter converts a log format string to usable log formatter
func getLogFormatter(logformat string) log.Formatter {
	switch logformat {
	case "json":
		return log.JSONFormatter
	}
	return log.TextFormatter
}
