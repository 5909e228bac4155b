package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/upb/ai-dispatcher/models"
	"github.com/upb/ai-dispatcher/services/providers"
	"go.uber.org/zap"
)

// Observer receives per-call and per-initialization measurements
type Observer interface {
	ObserveDispatch(provider, outcome, form string, latency time.Duration)
	ObserveInitialization(provider, result string)
}

// Recorder persists dispatch metadata, typically asynchronously
type Recorder interface {
	Record(record *models.DispatchRecord) error
}

// Options configures a Dispatcher
type Options struct {
	// Registry resolves adapters (defaults to providers.DefaultRegistry)
	Registry *providers.Registry

	// Offloader runs blocking backend calls
	Offloader providers.Offloader

	// HTTPClient overrides the adapters' transport (optional)
	HTTPClient *http.Client

	Logger   *zap.Logger
	Observer Observer
	Recorder Recorder

	// DeliveryLimit is the largest response, in characters, sent inline
	DeliveryLimit int

	// FileName names the attachment for oversized responses
	FileName string

	// GenerationTimeout bounds one backend call; zero disables it
	GenerationTimeout time.Duration

	// ProcessingNotice is sent before the backend call when non-empty
	ProcessingNotice string
}

// binding is one immutable pairing of configuration and adapter handle
type binding struct {
	config   providers.Config
	provider providers.Provider
	initErr  error
}

// Dispatcher routes queries to the bound provider and shapes the answers.
// The binding is loaded once per call, so re-initialization never affects
// a call already in flight.
type Dispatcher struct {
	registry          *providers.Registry
	providerOpts      providers.Options
	logger            *zap.Logger
	observer          Observer
	recorder          Recorder
	deliveryLimit     int
	fileName          string
	generationTimeout time.Duration
	processingNotice  string

	current atomic.Pointer[binding]
}

// Outcome describes how one call ended
type Outcome struct {
	RequestID   string
	State       State
	Provider    string
	Model       string
	Delivery    *Delivery
	Err         *DispatchError
	DeliveryErr error
	Latency     time.Duration
}

// Failure returns the dispatch failure as an error, or nil on success
func (o *Outcome) Failure() error {
	if o.Err == nil {
		return nil
	}
	return o.Err
}

// Status is a snapshot of the active binding
type Status struct {
	Config     providers.Config
	Ready      bool
	InitError  string
	Registered []providers.Kind
}

// New creates a Dispatcher with no provider bound
func New(opts Options) *Dispatcher {
	if opts.Registry == nil {
		opts.Registry = providers.DefaultRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.DeliveryLimit <= 0 {
		opts.DeliveryLimit = DefaultDeliveryLimit
	}
	if opts.FileName == "" {
		opts.FileName = DefaultFileName
	}

	d := &Dispatcher{
		registry: opts.Registry,
		providerOpts: providers.Options{
			Offloader:  opts.Offloader,
			HTTPClient: opts.HTTPClient,
			Logger:     opts.Logger,
		},
		logger:            opts.Logger,
		observer:          opts.Observer,
		recorder:          opts.Recorder,
		deliveryLimit:     opts.DeliveryLimit,
		fileName:          opts.FileName,
		generationTimeout: opts.GenerationTimeout,
		processingNotice:  opts.ProcessingNotice,
	}
	d.current.Store(&binding{})
	return d
}

// Initialize binds a new adapter handle built from cfg.
// The binding is replaced even on failure so later calls report why no
// handle is available. An absent API key skips handle construction.
func (d *Dispatcher) Initialize(cfg providers.Config) error {
	kind, err := providers.ParseKind(string(cfg.Provider))
	cfg.Provider = kind

	b := &binding{config: cfg}
	switch {
	case err != nil:
		b.initErr = err
	case !cfg.HasAPIKey():
		b.initErr = ErrNoAPIKey
	default:
		b.provider, b.initErr = d.registry.Initialize(cfg, d.providerOpts)
	}

	d.current.Store(b)

	if b.initErr != nil {
		dispatchErr := classifyInitError(b.initErr)
		d.observer.ObserveInitialization(providerLabel(kind), string(dispatchErr.Kind))
		d.logger.Warn("AI provider not initialized",
			zap.String("provider", string(kind)),
			zap.String("kind", string(dispatchErr.Kind)),
			zap.Error(b.initErr))
		return dispatchErr
	}

	d.observer.ObserveInitialization(providerLabel(kind), "ok")
	d.logger.Info("AI provider initialized",
		zap.String("provider", string(kind)),
		zap.String("model", cfg.Model),
		zap.String("api_key", cfg.Redacted().APIKey))
	return nil
}

// Reconfigure re-initializes from the active configuration with update applied.
// update sees the unredacted configuration, so callers can keep the stored key.
func (d *Dispatcher) Reconfigure(update func(cfg providers.Config) providers.Config) error {
	return d.Initialize(update(d.current.Load().config))
}

// Current returns the active configuration with the API key redacted
func (d *Dispatcher) Current() providers.Config {
	return d.current.Load().config.Redacted()
}

// Ready reports whether an adapter handle is bound
func (d *Dispatcher) Ready() bool {
	return d.current.Load().provider != nil
}

// Status returns a redacted snapshot of the active binding
func (d *Dispatcher) Status() Status {
	b := d.current.Load()
	status := Status{
		Config:     b.config.Redacted(),
		Ready:      b.provider != nil,
		Registered: d.registry.Registered(),
	}
	if b.initErr != nil {
		status.InitError = b.initErr.Error()
	}
	return status
}

// HandleQuery validates rawText, asks the bound provider and delivers the
// answer to ch. Every failure results in exactly one "Error: ..." message
// on ch; nothing is returned as a Go error.
func (d *Dispatcher) HandleQuery(ctx context.Context, rawText string, ch Channel) *Outcome {
	start := time.Now()
	b := d.current.Load()

	out := &Outcome{
		RequestID: RequestIDFromContext(ctx),
		State:     StateIdle,
		Provider:  string(b.config.Provider),
		Model:     b.config.Model,
	}
	logger := d.logger.With(
		zap.String("request_id", out.RequestID),
		zap.String("provider", out.Provider))

	d.transition(logger, out, StateValidating)
	query := strings.TrimSpace(rawText)

	if err := validate(b, query); err != nil {
		if err.Kind == KindProviderUninitialized {
			d.transition(logger, out, StateProviderUninitialized)
		}
		return d.fail(ctx, logger, ch, out, err, len(query), start)
	}

	d.transition(logger, out, StateCalling)
	if d.processingNotice != "" {
		if err := ch.SendText(ctx, d.processingNotice); err != nil {
			logger.Warn("failed to send processing notice", zap.Error(err))
		}
	}

	resp, err := d.generate(ctx, b.provider, query)
	if err != nil {
		return d.fail(ctx, logger, ch, out, err, len(query), start)
	}
	if resp.Model != "" {
		out.Model = resp.Model
	}

	d.transition(logger, out, StateShaping)
	delivery := Shape(resp.Text, d.deliveryLimit, d.fileName)
	out.Delivery = &delivery

	if err := delivery.Send(ctx, ch); err != nil {
		out.DeliveryErr = err
		d.transition(logger, out, StateFailed)
		logger.Error("failed to deliver response", zap.String("form", string(delivery.Form)), zap.Error(err))
	} else {
		d.transition(logger, out, StateDelivered)
	}

	d.finish(logger, out, len(query), start)
	return out
}

// validate checks the call preconditions in their fixed order
func validate(b *binding, query string) *DispatchError {
	if query == "" {
		return newDispatchError(KindNoQuery, ErrNoQuery)
	}
	if !b.config.HasAPIKey() {
		return newDispatchError(KindNoAPIKey, ErrNoAPIKey)
	}
	if !b.config.Provider.Valid() {
		return &DispatchError{
			Kind:   KindInvalidProvider,
			Detail: providers.ErrInvalidProvider.Error(),
			Err:    fmt.Errorf("%w: %q", providers.ErrInvalidProvider, b.config.Provider),
		}
	}
	if b.provider == nil {
		err := ErrProviderUninitialized
		if b.initErr != nil {
			err = fmt.Errorf("%w: %w", ErrProviderUninitialized, b.initErr)
		}
		return newDispatchError(KindProviderUninitialized, err)
	}
	return nil
}

func (d *Dispatcher) generate(ctx context.Context, provider providers.Provider, query string) (resp *providers.Response, dispatchErr *DispatchError) {
	callCtx := ctx
	if d.generationTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.generationTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			resp = nil
			dispatchErr = newDispatchError(KindGenerationError,
				providers.NewGenerationError(provider.Name(), "PANIC", fmt.Sprintf("provider panicked: %v", r), 0, nil))
		}
	}()

	resp, err := provider.Generate(callCtx, query)
	switch {
	case err == nil && (resp == nil || resp.Text == ""):
		err = providers.NewGenerationError(provider.Name(), "EMPTY_RESPONSE", "response contained no text", 0, nil)
	case err == nil:
		return resp, nil
	}

	if errors.Is(err, context.DeadlineExceeded) && d.generationTimeout > 0 && ctx.Err() == nil {
		return nil, &DispatchError{
			Kind:   KindGenerationError,
			Detail: fmt.Sprintf("generation timed out after %s", d.generationTimeout),
			Err:    fmt.Errorf("%w: %w", ErrGenerationTimeout, err),
		}
	}
	return nil, newDispatchError(KindGenerationError, err)
}

func (d *Dispatcher) fail(ctx context.Context, logger *zap.Logger, ch Channel, out *Outcome, err *DispatchError, queryLength int, start time.Time) *Outcome {
	out.Err = err
	d.transition(logger, out, StateFailed)

	if sendErr := ch.SendText(ctx, err.UserMessage()); sendErr != nil {
		out.DeliveryErr = sendErr
		logger.Error("failed to send error message", zap.Error(sendErr))
	}

	d.finish(logger, out, queryLength, start)
	return out
}

func (d *Dispatcher) finish(logger *zap.Logger, out *Outcome, queryLength int, start time.Time) {
	out.Latency = time.Since(start)

	status := models.DispatchStatusDelivered
	outcome := StateDelivered.String()
	if out.State == StateFailed {
		status = models.DispatchStatusFailed
		outcome = "delivery_failed"
	}
	if out.Err != nil {
		outcome = string(out.Err.Kind)
	}

	form := ""
	record := models.NewDispatchRecord(out.RequestID, out.Provider, out.Model, status).WithLatency(out.Latency)
	record.QueryLength = queryLength
	if out.Err != nil {
		record.WithError(string(out.Err.Kind))
	}
	if out.Delivery != nil {
		form = string(out.Delivery.Form)
		record.WithDelivery(form, out.Delivery.Size())
	}

	d.observer.ObserveDispatch(providerLabel(providers.Kind(out.Provider)), outcome, form, out.Latency)
	if err := d.recorder.Record(record); err != nil {
		logger.Warn("failed to record dispatch", zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("state", out.State.String()),
		zap.String("model", out.Model),
		zap.Int64("latency_ms", out.Latency.Milliseconds()),
	}
	if out.Err != nil {
		logger.Warn("dispatch failed", append(fields, zap.String("kind", string(out.Err.Kind)), zap.Error(out.Err.Err))...)
		return
	}
	logger.Info("dispatch completed", append(fields, zap.String("form", form))...)
}

func (d *Dispatcher) transition(logger *zap.Logger, out *Outcome, next State) {
	logger.Debug("dispatch state",
		zap.Stringer("from", out.State),
		zap.Stringer("to", next))
	out.State = next
}

// providerLabel keeps metric label values to the known providers
func providerLabel(kind providers.Kind) string {
	if kind.Valid() {
		return string(kind)
	}
	return "unknown"
}

type nopObserver struct{}

func (nopObserver) ObserveDispatch(string, string, string, time.Duration) {}
func (nopObserver) ObserveInitialization(string, string)                  {}

type nopRecorder struct{}

func (nopRecorder) Record(*models.DispatchRecord) error { return nil }
