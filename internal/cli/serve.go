package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/auditlog/internal/config"
	"github.com/runnerr0/auditlog/internal/httpserver"
	"github.com/runnerr0/auditlog/internal/storage"
)

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals, c.cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withStore(c.globals, cfg, c.store, func(store *storage.SQLiteStore) error {
		return c.executeWithStore(ctx, store, cfg)
	})
}

// listenAddr applies --host and --port over the configured address.
func (c *ServeCommand) listenAddr(cfg *config.Config) string {
	host, port := cfg.Server.Host, cfg.Server.Port
	if c.Host != "" {
		host = c.Host
	}
	if c.Port > 0 {
		port = c.Port
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// executeWithStore serves the query API from a provided store until ctx
// is cancelled.
func (c *ServeCommand) executeWithStore(ctx context.Context, store *storage.SQLiteStore, cfg *config.Config) error {
	logger, err := setupLogging(c.globals, cfg, c.LogLevel)
	if err != nil {
		return err
	}
	engine, err := newEngine(store, cfg, logger)
	if err != nil {
		return err
	}

	cleaner := storage.NewRetentionCleaner(store, storage.RetentionConfig{
		Days:     cfg.Retention.Days,
		Interval: time.Duration(cfg.Retention.PruneIntervalHours) * time.Hour,
		Logger:   logger,
	})
	if cleaner != nil {
		defer cleaner.Stop()
	}

	srv := httpserver.NewServer(c.listenAddr(cfg), store, engine, httpserver.Options{
		AuthToken:         cfg.Server.AuthToken,
		RestrictedLoggers: cfg.Access.RestrictedLoggers,
		ReadTimeout:       cfg.ReadTimeout(),
		Logger:            logger,
	})
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	defer srv.Stop()

	fmt.Fprintf(os.Stderr, "auditlog %s serving on http://%s\n", c.version, srv.Addr())
	if c.started != nil {
		c.started(srv.Addr())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("serve: errgroup exited with error", "err", err)
	}

	logger.Info("shutting down")
	return nil
}
