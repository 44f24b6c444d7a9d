// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/subgate/subgate/internal/access"
	"github.com/subgate/subgate/internal/application"
	"github.com/subgate/subgate/internal/auth"
	"github.com/subgate/subgate/internal/config"
	"github.com/subgate/subgate/internal/health"
	"github.com/subgate/subgate/internal/license"
	"github.com/subgate/subgate/internal/logging"
	"github.com/subgate/subgate/internal/metrics"
	"github.com/subgate/subgate/internal/notify"
	"github.com/subgate/subgate/internal/onboarding"
	"github.com/subgate/subgate/internal/payment"
	"github.com/subgate/subgate/internal/plan"
	"github.com/subgate/subgate/internal/ratelimit"
	"github.com/subgate/subgate/internal/realtime"
	"github.com/subgate/subgate/internal/reconcile"
	"github.com/subgate/subgate/internal/security"
	"github.com/subgate/subgate/internal/storage"
	"github.com/subgate/subgate/internal/subscription"
	"github.com/subgate/subgate/internal/sweeper"
	"github.com/subgate/subgate/internal/tenant"
	"github.com/subgate/subgate/internal/traces"
	"github.com/subgate/subgate/internal/usage"
	"github.com/subgate/subgate/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg *config.Config

	apps     application.Store
	tenants  tenant.Store
	plans    plan.Store
	catalog  plan.FeatureCatalog
	subs     subscription.Store
	licenses license.Store
	payments payment.Store
	events   reconcile.Store
	usages   usage.Store
	notifyEP notify.Store

	runner storage.TxRunner

	authMgr      *auth.Manager
	settings     config.Source // nil when no remote config endpoint is set
	subSvc       *subscription.Service
	licSvc       *license.Service
	paySvc       *payment.Service
	processor    *reconcile.Processor
	sweepSvc     *sweeper.Service
	sweepTimer   *sweeper.Timer
	usageSvc     *usage.Service
	accessSvc    *access.Service
	onboardSvc   *onboarding.Service
	dispatcher   *notify.Dispatcher
	realtimeHub  *realtime.Hub
	rateLimiter  *ratelimit.Limiter
	healthReg    *health.Registry
	tracerStop   func(context.Context) error
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logging.New(cfg.LogLevel, "json"),
		healthReg: health.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	// Storage: Postgres if DATABASE_URL set, otherwise in-memory.
	if cfg.DatabaseURL != "" {
		if err := s.setupPostgres(ctx, cfg.DatabaseURL); err != nil {
			return nil, err
		}
	} else {
		s.setupMemory()
	}

	s.authMgr = newAuthManager(ctx, s.db, s.logger)

	if cfg.RemoteConfigURL != "" {
		s.settings = config.NewHTTPSource(cfg.RemoteConfigURL, time.Minute)
		s.logger.Info("remote settings enabled", "url", cfg.RemoteConfigURL)
	}

	// Core services.
	s.subSvc = subscription.NewService(s.subs, s.plans, s.logger)
	s.licSvc = license.NewService(s.licenses, s.subs, s.plans, s.catalog,
		time.Duration(cfg.LicenseTTLHours)*time.Hour, s.logger)
	s.paySvc = payment.NewService(s.payments, s.logger)
	s.processor = reconcile.NewProcessor(s.events, s.subs, s.subSvc, s.paySvc, s.logger)
	s.sweepSvc = sweeper.NewService(s.subs, s.subSvc, s.licSvc, s.logger)
	s.usageSvc = usage.NewService(s.usages, s.tenants, s.logger)
	s.accessSvc = access.NewService(s.apps, s.tenants, s.subs, s.licSvc, s.logger)
	s.onboardSvc = onboarding.NewService(s.apps, s.tenants, s.plans, s.subSvc, s.licSvc, s.runner, s.logger)

	// Lifecycle event consumers.
	s.dispatcher = notify.NewDispatcher(s.notifyEP, s.logger,
		notify.WithSigningSecret(cfg.NotifySigningSecret))
	s.realtimeHub = realtime.NewHub(s.logger)
	s.subSvc.AddPublisher(s.dispatcher)
	s.subSvc.AddPublisher(s.realtimeHub)

	if interval := parseSweepInterval(cfg.SweepInterval); interval > 0 {
		s.sweepTimer = sweeper.NewTimer(s.sweepSvc, interval, s.logger)
		s.logger.Info("trial sweep timer enabled", "interval", interval.String())
	}

	// Tracing (no-op when endpoint unset).
	stop, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.tracerStop = stop
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

func (s *Server) setupPostgres(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	s.db = db
	s.logger.Info("using PostgreSQL storage", "url", maskDSN(dsn))
	s.healthReg.Register("postgres", health.DatabaseChecker("postgres", db))

	appStore := application.NewPostgresStore(db)
	planStore := plan.NewPostgresStore(db)
	tenantStore := tenant.NewPostgresStore(db)
	subStore := subscription.NewPostgresStore(db)
	licStore := license.NewPostgresStore(db)
	payStore := payment.NewPostgresStore(db)
	eventStore := reconcile.NewPostgresStore(db)
	usageStore := usage.NewPostgresStore(db)
	notifyStore := notify.NewPostgresStore(db)

	// Dev/test convenience; production runs the migration files.
	migrators := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"application", appStore.Migrate},
		{"plan", planStore.Migrate},
		{"tenant", tenantStore.Migrate},
		{"subscription", subStore.Migrate},
		{"license", licStore.Migrate},
		{"payment", payStore.Migrate},
		{"webhook_event", eventStore.Migrate},
		{"usage", usageStore.Migrate},
		{"notify", notifyStore.Migrate},
	}
	for _, m := range migrators {
		if err := m.fn(ctx); err != nil {
			s.logger.Warn("failed to migrate store", "store", m.name, "error", err)
		}
	}

	s.apps = appStore
	s.plans = planStore
	s.catalog = planStore
	s.tenants = tenantStore
	s.subs = subStore
	s.licenses = licStore
	s.payments = payStore
	s.events = eventStore
	s.usages = usageStore
	s.notifyEP = notifyStore
	s.runner = storage.NewSQLRunner(db)
	return nil
}

func (s *Server) setupMemory() {
	s.logger.Info("using in-memory storage (data will not persist)")

	appStore := application.NewMemoryStore()
	planStore := plan.NewMemoryStore()
	tenantStore := tenant.NewMemoryStore()
	subStore := subscription.NewMemoryStore()
	licStore := license.NewMemoryStore()
	payStore := payment.NewMemoryStore()
	eventStore := reconcile.NewMemoryStore()
	usageStore := usage.NewMemoryStore()

	s.apps = appStore
	s.plans = planStore
	s.catalog = planStore
	s.tenants = tenantStore
	s.subs = subStore
	s.licenses = licStore
	s.payments = payStore
	s.events = eventStore
	s.usages = usageStore
	s.notifyEP = notify.NewMemoryStore()
	s.runner = storage.NewMemoryRunner(tenantStore, subStore, licStore, payStore, eventStore, usageStore)
}

func newAuthManager(ctx context.Context, db *sql.DB, logger *slog.Logger) *auth.Manager {
	if db == nil {
		return auth.NewManager(auth.NewMemoryStore())
	}
	store := auth.NewPostgresStore(db)
	if err := store.Migrate(ctx); err != nil {
		logger.Warn("failed to migrate auth store", "error", err)
	}
	return auth.NewManager(store)
}

// parseSweepInterval returns 0 for empty or invalid values.
func parseSweepInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Maintenance mode (remote settings; stale cache tolerated)
	if s.settings != nil {
		s.router.Use(s.maintenanceMiddleware())
	}

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins by default - restrict per deployment)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	limiterCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPS > 0 {
		limiterCfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
	}
	s.rateLimiter = ratelimit.New(limiterCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

// maintenanceMiddleware rejects API traffic while the remote settings flag
// maintenance mode on. Health and metrics endpoints stay reachable.
func (s *Server) maintenanceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, "/v1/") {
			c.Next()
			return
		}

		settings, err := s.settings.Fetch(c.Request.Context())
		if err != nil || !settings.MaintenanceMode {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "maintenance",
			"message": "Service is temporarily unavailable for maintenance",
		})
	}
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func generateRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket for real-time lifecycle events
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	s.router.GET("/api", s.infoHandler)

	v1 := s.router.Group("/v1")

	// PUBLIC ROUTES (no auth required)
	plan.NewHandler(s.plans).RegisterRoutes(v1)
	onboarding.NewHandler(s.onboardSvc).RegisterRoutes(v1)
	tenant.NewHandler(s.apps, s.tenants, s.subs).RegisterRoutes(v1)
	license.NewHandler(s.licSvc).RegisterRoutes(v1)

	// Provider webhooks authenticate via signature, not API key.
	reconcile.NewHandler(s.processor, s.events, s.webhookAdapters()...).RegisterRoutes(v1)

	// PROTECTED ROUTES (require API key)
	protected := v1.Group("")
	protected.Use(auth.Middleware(s.authMgr), auth.RequireAuth(s.authMgr))
	{
		access.NewHandler(s.accessSvc).RegisterRoutes(protected)
		usage.NewHandler(s.usageSvc).RegisterRoutes(protected)
		notify.NewHandler(s.notifyEP).RegisterRoutes(protected)
		license.NewHandler(s.licSvc).RegisterProtectedRoutes(protected)
		subscription.NewHandler(s.subSvc).RegisterRoutes(protected)
	}

	// ADMIN ROUTES (require X-Admin-Secret)
	admin := v1.Group("/admin")
	admin.Use(auth.RequireAdmin(s.cfg.AdminSecret))
	{
		subscription.NewHandler(s.subSvc).RegisterAdminRoutes(admin)
		payment.NewHandler(s.paySvc, s.subs, s.plans, s.tenants).RegisterAdminRoutes(admin)
		sweeper.NewHandler(s.sweepSvc).RegisterRoutes(admin)
		application.NewHandler(s.apps, s.authMgr).RegisterRoutes(admin)
	}
}

func (s *Server) webhookAdapters() []reconcile.Adapter {
	return []reconcile.Adapter{
		reconcile.NewStripeAdapter(s.cfg.StripeWebhookSecret),
		reconcile.NewMercadoPagoAdapter(s.cfg.MercadoPagoWebhookSecret),
		reconcile.NewDLocalAdapter(s.cfg.DLocalWebhookSecret),
	}
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.healthReg.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"version":   "0.1.0",
		"checks":    statuses,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Subgate",
		"description": "Subscription and licensing backend for SaaS applications",
		"version":     "0.1.0",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can
	// stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.realtimeHub.Run(runCtx)
	s.dispatcher.Start(2)

	if s.sweepTimer != nil {
		go s.sweepTimer.Start(runCtx)
	}

	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, timers)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	if s.sweepTimer != nil {
		s.sweepTimer.Stop()
		s.logger.Info("sweep timer stopped")
	}

	s.dispatcher.Stop()
	s.logger.Info("notification dispatcher stopped")

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.tracerStop != nil {
		if err := s.tracerStop(ctx); err != nil {
			s.logger.Warn("tracer shutdown error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("database close error", "error", err)
		}
	}

	s.logger.Info("shutdown complete")
	return nil
}

// Router exposes the gin engine. Used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}
