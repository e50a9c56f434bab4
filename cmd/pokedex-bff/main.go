package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/pokedex-client/internal/app"
	"github.com/Sternrassler/pokedex-client/internal/bff"
	"github.com/Sternrassler/pokedex-client/internal/config"
	"github.com/Sternrassler/pokedex-client/pkg/logging"
	"github.com/Sternrassler/pokedex-client/pkg/repository"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logging.Setup(cfg.Logging("pokedex-bff"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	deps, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           newHandler(cfg, deps),
		ReadHeaderTimeout: cfg.HTTP.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("upstream", deps.Client.BaseURL()).
			Str("env", cfg.Env).
			Msg("Starting pokedex BFF")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", cfg.HTTP.ShutdownTimeout).Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}

func newHandler(cfg *config.Config, deps *app.Deps) http.Handler {
	h := bff.NewHandlers(deps.Repo, bff.Options{
		ResourceBase: deps.Client.BaseURL() + repository.ListPath,
		PublicURL:    cfg.HTTP.PublicURL,
		ReadyChecks:  []bff.ReadyCheck{deps.Ready},
	})

	return bff.NewRouter(h, bff.RouterOptions{
		Logger:      log.With().Str("component", "bff").Logger(),
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Timeout:     cfg.HTTP.RequestTimeout,
	})
}
