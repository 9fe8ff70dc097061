package main

import (
	"context"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lox/blackjackd/cmd/blackjackd/shared"
	"github.com/lox/blackjackd/internal/audit"
	"github.com/lox/blackjackd/internal/auth"
	"github.com/lox/blackjackd/internal/config"
	"github.com/lox/blackjackd/internal/server"
	"github.com/lox/blackjackd/internal/session"
)

const shutdownTimeout = 5 * time.Second

// ServerCmd runs the HTTP and WebSocket server. Flags override the config file.
type ServerCmd struct {
	Config    string `kong:"short='c',default='blackjackd.hcl',help='HCL config file (optional)'"`
	Address   string `kong:"help='Listen address'"`
	Port      int    `kong:"help='Listen port'"`
	LogLevel  string `kong:"help='Log level (trace, debug, info, warn, error)'"`
	LogFormat string `kong:"help='Log format (console, json)'"`
	Debug     bool   `kong:"help='Enable debug logging'"`
	AuditDir  string `kong:"help='Write audit records to this directory'"`
	AuthURL   string `kong:"name='auth-url',help='Token validation endpoint; enables authentication'"`
}

func (c *ServerCmd) Run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}

	logger, err := shared.NewLogger(cfg.Server.LogLevel, cfg.Server.LogFormat)
	if err != nil {
		return err
	}

	ttl, err := cfg.SessionTTL()
	if err != nil {
		return err
	}
	sweep, err := cfg.SweepInterval()
	if err != nil {
		return err
	}

	clock := quartz.NewReal()
	opts := []session.Option{
		session.WithClock(clock),
		session.WithTTL(ttl),
		session.WithSweepInterval(sweep),
	}

	var trail *audit.Trail
	if cfg.Audit.Enabled {
		trail, err = newTrail(logger, cfg, clock)
		if err != nil {
			return err
		}
		opts = append(opts, session.WithResultSink(trail))
	}

	manager := session.NewManager(logger, opts...)

	var serverOpts []server.Option
	if cfg.AuthEnabled() {
		timeout, err := cfg.AuthTimeout()
		if err != nil {
			return err
		}
		serverOpts = append(serverOpts, server.WithAuthValidator(
			auth.NewHTTPValidator(cfg.Auth.URL, cfg.Auth.AdminSecret, timeout)))
	}
	s := server.NewServer(logger, manager, serverOpts...)

	logger.Info().
		Str("address", cfg.Address()).
		Dur("session_ttl", ttl).
		Dur("sweep_interval", sweep).
		Bool("audit", cfg.Audit.Enabled).
		Bool("auth", cfg.AuthEnabled()).
		Str("version", version).
		Msg("Starting blackjackd")

	// Setup graceful shutdown
	ctx, stop := shared.SetupSignalHandler(logger)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return manager.Run(gctx) })
	if trail != nil {
		g.Go(func() error { return trail.Run(gctx) })
	}
	g.Go(func() error { return s.Start(cfg.Address()) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (c *ServerCmd) load() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}

	if c.Address != "" {
		cfg.Server.Address = c.Address
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.Debug {
		cfg.Server.LogLevel = "debug"
	}
	if c.LogFormat != "" {
		cfg.Server.LogFormat = c.LogFormat
	}
	if c.AuditDir != "" {
		cfg.Audit.Enabled = true
		cfg.Audit.Dir = c.AuditDir
	}
	if c.AuthURL != "" {
		cfg.Auth.URL = c.AuthURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newTrail(logger zerolog.Logger, cfg *config.Config, clock quartz.Clock) (*audit.Trail, error) {
	flush, err := cfg.FlushInterval()
	if err != nil {
		return nil, err
	}
	return audit.NewTrail(logger, audit.Config{
		Dir:           cfg.Audit.Dir,
		FlushInterval: flush,
		FlushHands:    cfg.Audit.FlushHands,
		Clock:         clock,
	})
}
