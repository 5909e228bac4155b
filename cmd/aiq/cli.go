package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/upb/ai-dispatcher/auth"
	"github.com/upb/ai-dispatcher/internal/observability"
	"github.com/upb/ai-dispatcher/services/dispatcher"
	"github.com/upb/ai-dispatcher/services/providers"
	"github.com/upb/ai-dispatcher/services/workerpool"
	"go.uber.org/zap"
)

// Globals are the provider settings shared by every command
type Globals struct {
	Provider     string        `help:"Provider to use (gemini or openai)." default:"${default_provider}" env:"AI_PROVIDER"`
	APIKey       string        `name:"api-key" help:"Provider API key." env:"AI_API_KEY"`
	Model        string        `help:"Model name." default:"${default_model}" env:"AI_MODEL"`
	SystemPrompt string        `name:"system-prompt" help:"Instruction sent ahead of the query." env:"AI_SYSTEM_PROMPT"`
	BaseURL      string        `name:"base-url" help:"Override the provider endpoint." env:"AI_BASE_URL"`
	Timeout      time.Duration `help:"Generation deadline, 0 disables it." default:"0s" env:"AI_GENERATION_TIMEOUT"`
	LogLevel     string        `name:"log-level" help:"Log level." default:"error" env:"LOG_LEVEL"`
}

// CLI is the aiq command line
type CLI struct {
	Globals `embed:""`

	Config kong.ConfigFlag `help:"Load flag values from a YAML file." placeholder:"PATH"`

	Ask   AskCmd   `cmd:"" default:"withargs" help:"Send one query and print the answer."`
	Token TokenCmd `cmd:"" help:"Issue a bearer token for the admin API."`
}

// AskCmd sends one query through the dispatcher
type AskCmd struct {
	Query  []string `arg:"" optional:"" help:"Query text."`
	OutDir string   `name:"out-dir" help:"Directory oversized answers are written to." default:"." type:"path"`
	Notice bool     `help:"Print a processing notice before calling the provider."`
}

// Run implements the ask command
func (c *AskCmd) Run(g *Globals, env *runEnv) error {
	logger, err := observability.NewLogger(g.LogLevel, "console")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	pool := workerpool.New(workerpool.Config{Workers: 1}, logger)
	if err := pool.Start(); err != nil {
		return err
	}
	defer func() { _ = pool.Stop(5 * time.Second) }()

	opts := dispatcher.Options{
		Registry:          env.registry,
		Offloader:         pool,
		Logger:            logger,
		GenerationTimeout: g.Timeout,
	}
	if c.Notice {
		opts.ProcessingNotice = "⌛ Processing request..."
	}
	d := dispatcher.New(opts)

	// Initialization failures resurface as the query's error line
	if err := d.Initialize(providers.Config{
		Provider:     providers.Kind(g.Provider),
		APIKey:       g.APIKey,
		Model:        g.Model,
		SystemPrompt: g.SystemPrompt,
		BaseURL:      g.BaseURL,
	}); err != nil {
		logger.Debug("provider not initialized", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ch := &terminalChannel{stdout: env.stdout, stderr: env.stderr, dir: c.OutDir}
	out := d.HandleQuery(ctx, strings.Join(c.Query, " "), ch)
	if out.DeliveryErr != nil {
		return fmt.Errorf("failed to deliver response: %w", out.DeliveryErr)
	}
	if out.Err != nil {
		return errDispatchFailed
	}
	return nil
}

// TokenCmd issues an admin token for the HTTP server
type TokenCmd struct {
	Secret  string        `help:"HMAC signing secret." env:"ADMIN_JWT_SECRET" required:""`
	Issuer  string        `help:"Token issuer." default:"ai-dispatcher" env:"ADMIN_JWT_ISSUER"`
	Subject string        `help:"Token subject." required:""`
	Roles   []string      `help:"Granted roles." default:"admin"`
	TTL     time.Duration `name:"ttl" help:"Token lifetime." default:"1h"`
}

// Run implements the token command
func (c *TokenCmd) Run(env *runEnv) error {
	if c.TTL <= 0 {
		return errors.New("ttl must be positive")
	}
	token, err := auth.IssueToken(c.Secret, c.Issuer, c.Subject, c.Roles, c.TTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(env.stdout, token)
	return err
}
