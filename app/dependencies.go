package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upb/ai-dispatcher/auth"
	"github.com/upb/ai-dispatcher/config"
	"github.com/upb/ai-dispatcher/internal/observability"
	"github.com/upb/ai-dispatcher/middleware"
	"github.com/upb/ai-dispatcher/repositories"
	"github.com/upb/ai-dispatcher/repositories/postgres"
	"github.com/upb/ai-dispatcher/services/audit"
	"github.com/upb/ai-dispatcher/services/dispatcher"
	"github.com/upb/ai-dispatcher/services/providers"
	"github.com/upb/ai-dispatcher/services/workerpool"
	"go.uber.org/zap"
)

// stopTimeout bounds how long Close waits for background workers
const stopTimeout = 10 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB // nil when no database is configured
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Dispatch
	Pool       *workerpool.Pool
	Dispatcher *dispatcher.Dispatcher

	// Audit trail (nil when no database is configured)
	DispatchRecords repositories.DispatchRecordRepository
	Audit           *audit.Service

	// Auth
	AuthMiddleware *middleware.AuthMiddleware
}

// Option customizes NewDependencies
type Option func(*options)

type options struct {
	registry *providers.Registry
	db       *postgres.DB
}

// WithRegistry replaces the process-wide adapter registry
func WithRegistry(registry *providers.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithDB adopts an already opened database instead of dialing cfg.Database
func WithDB(db *postgres.DB) Option {
	return func(o *options) { o.db = db }
}

// NewDependencies creates and wires up all application dependencies.
// A provider that fails to initialize is logged, not fatal: queries report
// the failure to the user until an admin reconfigures the binding.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Dependencies, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}

	if err := deps.initPool(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize worker pool: %w", err)
	}

	if err := deps.initDatabase(ctx, cfg, o.db); err != nil {
		deps.stopPool()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initAudit(); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize audit: %w", err)
	}

	deps.initDispatcher(cfg, o.registry)

	if err := deps.initAuth(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func (d *Dependencies) initPool(cfg *config.Config) error {
	d.Pool = workerpool.New(workerpool.Config{
		Workers:   cfg.Dispatch.Workers,
		QueueSize: cfg.Dispatch.QueueSize,
	}, d.Logger)
	if err := d.Pool.Start(); err != nil {
		return err
	}
	d.Metrics.RegisterPool(d.Pool)
	return nil
}

// initDatabase opens PostgreSQL when configured and prepares the schema
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config, db *postgres.DB) error {
	if db == nil {
		if cfg.Database == nil {
			d.Logger.Info("no database configured, dispatch audit disabled")
			return nil
		}

		var err error
		db, err = postgres.NewDB(cfg.Database, d.Logger)
		if err != nil {
			return err
		}
	}

	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		return err
	}

	d.DB = db
	d.DispatchRecords = postgres.NewDispatchRecordRepository(db, d.Logger)
	return nil
}

func (d *Dependencies) initAudit() error {
	if d.DispatchRecords == nil {
		return nil
	}

	d.Audit = audit.NewService(d.DispatchRecords, d.Logger, audit.DefaultConfig())
	return d.Audit.Start()
}

// initDispatcher builds the dispatcher and binds the configured provider
func (d *Dependencies) initDispatcher(cfg *config.Config, registry *providers.Registry) {
	opts := dispatcher.Options{
		Registry:          registry,
		Offloader:         d.Pool,
		Logger:            d.Logger,
		Observer:          d.Metrics,
		DeliveryLimit:     cfg.Dispatch.DeliveryLimit,
		FileName:          cfg.Dispatch.ResponseFileName,
		GenerationTimeout: cfg.Dispatch.GenerationTimeout,
		ProcessingNotice:  cfg.Dispatch.ProcessingNotice,
	}
	if d.Audit != nil {
		opts.Recorder = d.Audit
	}

	d.Dispatcher = dispatcher.New(opts)
	if err := d.Dispatcher.Initialize(ProviderConfig(cfg.AI)); err != nil {
		d.Logger.Warn("starting without an AI provider", zap.Error(err))
	}
}

// ProviderConfig converts the loaded AI settings into an adapter binding
func ProviderConfig(ai config.AIConfig) providers.Config {
	return providers.Config{
		Provider:     providers.Kind(ai.Provider),
		APIKey:       ai.APIKey,
		Model:        ai.Model,
		SystemPrompt: ai.SystemPrompt,
		BaseURL:      ai.BaseURL,
		HTTPTimeout:  ai.HTTPTimeout,
	}
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	if cfg.Auth.AdminJWTSecret == "" {
		d.Logger.Warn("admin JWT secret not configured, admin endpoints disabled")
		// Reject-all validator so protected routes return 401
		d.AuthMiddleware = middleware.NewAuthMiddleware(&rejectAllValidator{}, d.Logger)
		return nil
	}

	validator, err := auth.NewValidator(cfg.Auth.AdminJWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(&jwtTokenValidatorAdapter{validator: validator}, d.Logger)
	return nil
}

// jwtTokenValidatorAdapter adapts auth.Validator to middleware.TokenValidator
type jwtTokenValidatorAdapter struct {
	validator *auth.Validator
}

func (a *jwtTokenValidatorAdapter) ValidateToken(_ context.Context, token string) (*middleware.Claims, error) {
	claims, err := a.validator.Validate(token)
	if err != nil {
		return nil, err
	}

	var exp int64
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Unix()
	}
	return &middleware.Claims{
		Sub:   claims.Subject,
		Roles: claims.Roles,
		Iss:   claims.Issuer,
		Exp:   exp,
	}, nil
}

// rejectAllValidator rejects all tokens (used when no admin secret is configured)
type rejectAllValidator struct{}

func (*rejectAllValidator) ValidateToken(context.Context, string) (*middleware.Claims, error) {
	return nil, errors.New("authentication not configured")
}

func (d *Dependencies) stopPool() {
	if d.Pool == nil {
		return
	}
	if err := d.Pool.Stop(stopTimeout); err != nil {
		d.Logger.Warn("worker pool did not stop cleanly", zap.Error(err))
	}
}

// Close gracefully shuts down all dependencies.
// The audit service is drained before the database closes.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Audit != nil {
		if err := d.Audit.Stop(stopTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.Pool != nil {
		if err := d.Pool.Stop(stopTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop worker pool: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
