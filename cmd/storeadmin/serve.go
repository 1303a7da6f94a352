package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/storeadmin-io/storeadmin/internal/auth"
	"github.com/storeadmin-io/storeadmin/internal/config"
	"github.com/storeadmin-io/storeadmin/internal/database"
	"github.com/storeadmin-io/storeadmin/internal/mail"
	"github.com/storeadmin-io/storeadmin/internal/metrics"
	"github.com/storeadmin-io/storeadmin/internal/portal"
	"github.com/storeadmin-io/storeadmin/internal/sessions/redisstore"
	"github.com/storeadmin-io/storeadmin/internal/storage"
	"github.com/storeadmin-io/storeadmin/internal/store"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the administration panel web server",
		Long: `Migrate the database, then serve the administration panel until
SIGINT or SIGTERM, removing expired sessions in the background. Prometheus
metrics are served on metrics.addr, a listener separate from the panel.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	go a.sessions.RunCleanup(ctx, cfg.Sessions.CleanupInterval)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	servers := []*http.Server{srv}
	if cfg.Metrics.Addr != "" {
		servers = append(servers, &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           a.metricsHandler,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *http.Server) {
			logger.Info("starting server", "addr", s.Addr, "version", version)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- oops.Code("SERVER_FAILED").With("addr", s.Addr).Wrap(err)
			}
		}(s)
	}

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	logger.Info("shutting down servers", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil && serveErr == nil {
			serveErr = oops.Code("SHUTDOWN_FAILED").With("addr", s.Addr).Wrap(err)
		}
	}
	if serveErr == nil {
		logger.Info("server exited")
	}
	return serveErr
}

// newMetricsHandler serves the Prometheus registry apart from the panel.
func newMetricsHandler(m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", m.Handler())
	return r
}

// app is the wired application. Close releases the connections it opened.
type app struct {
	handler        http.Handler
	metricsHandler http.Handler
	sessions       *auth.SessionManager
	closers        []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("type", cfg.Database.Type).Wrap(err)
	}
	a.closers = append(a.closers, db)

	if err := db.Migrate(ctx); err != nil {
		a.Close()
		return nil, oops.Code("MIGRATION_FAILED").Wrap(err)
	}

	st := store.New(db)

	var sessionStore auth.SessionStore = st
	if cfg.Sessions.Store == "redis" {
		client, err := redisstore.Dial(ctx, cfg.Sessions)
		if err != nil {
			a.Close()
			return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.Sessions.RedisAddr).Wrap(err)
		}
		a.closers = append(a.closers, client)
		sessionStore = redisstore.New(client)
	}

	hasher, err := auth.NewHasher(cfg.Auth.HashAlgorithm)
	if err != nil {
		a.Close()
		return nil, err
	}
	signer, err := auth.NewSigner(cfg.SecretKey)
	if err != nil {
		a.Close()
		return nil, err
	}

	service, err := auth.NewService(st, hasher, signer, mail.NewSender(cfg.Mail, logger), auth.ServiceConfig{
		BaseURL:     cfg.Server.BaseURL,
		ResetMaxAge: cfg.Auth.ResetMaxAge,
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.sessions = auth.NewSessionManager(sessionStore, st, auth.SessionConfig{
		Lifetime:         cfg.Sessions.Lifetime,
		RememberLifetime: cfg.Sessions.RememberLifetime,
		Secure:           cfg.Sessions.SecureCookie,
	}, logger)

	m := metrics.New()
	a.metricsHandler = newMetricsHandler(m)

	opts := portal.Options{
		Auth:     service,
		Sessions: a.sessions,
		Catalog:  st,
		Metrics:  m,
		Logger:   logger,
	}
	if cfg.Storage.Bucket != "" {
		images, err := storage.NewImageStore(ctx, cfg.Storage)
		if err != nil {
			a.Close()
			return nil, oops.Code("STORAGE_INIT_FAILED").With("bucket", cfg.Storage.Bucket).Wrap(err)
		}
		opts.Images = images
	}

	p, err := portal.New(cfg, opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.handler = p.Routes()
	return a, nil
}
