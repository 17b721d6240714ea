package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/havoptic/havoptic/migrations"
	"github.com/havoptic/havoptic/pkg/blob"
	"github.com/havoptic/havoptic/pkg/config"
	"github.com/havoptic/havoptic/pkg/logger"
	"github.com/havoptic/havoptic/pkg/pg"
	"github.com/havoptic/havoptic/svc/auth"
	"github.com/havoptic/havoptic/svc/newsletter"
	"github.com/havoptic/havoptic/svc/og"
)

type serverConfig struct {
	Addr            string        `env:"SERVER_ADDR" envDefault:":8080"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

func main() {
	var srvCfg serverConfig
	config.MustLoad(&srvCfg)

	log := logger.New(logger.WithEnvironment(srvCfg.Environment, "havoptic"))
	logger.SetAsDefault(log)

	if err := run(srvCfg, log); err != nil {
		log.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(srvCfg serverConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		pgCfg   pg.Config
		s3Cfg   blob.S3Config
		authCfg auth.Config
		newsCfg newsletter.Config
		ogCfg   og.Config
	)
	config.MustLoad(&pgCfg)
	config.MustLoad(&s3Cfg)
	config.MustLoad(&authCfg)
	config.MustLoad(&newsCfg)
	config.MustLoad(&ogCfg)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, migrations.FS, ".", pgCfg, log); err != nil {
		return err
	}

	store, err := blob.NewS3Store(ctx, s3Cfg)
	if err != nil {
		return err
	}

	authStore := auth.NewPgStore(pool)
	newsSvc := newsletter.NewService(store, newsCfg, log)
	provider := auth.NewGithubProvider(authCfg.GithubClientID, authCfg.GithubClientSecret, authCfg.CallbackURL)
	authSvc := auth.NewService(authCfg, provider, authStore, authStore, newsSvc, log)
	ogSvc := og.NewService(store, ogCfg, log)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthHandler(pg.Healthcheck(pool)))
	r.Mount("/api/auth", authSvc.Handle())
	r.Mount("/", ogSvc.Handle())

	srv := &http.Server{
		Addr:         srvCfg.Addr,
		Handler:      r,
		ReadTimeout:  srvCfg.ReadTimeout,
		WriteTimeout: srvCfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", slog.String("addr", srvCfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := check(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
