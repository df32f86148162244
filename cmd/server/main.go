// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/uno/internal/auth"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/config"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/handlers"
	"github.com/jason-s-yu/uno/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to open store")
	}
	defer st.Close()

	signer, err := newSigner(cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to set up session keys")
	}

	hub := handlers.NewHub()
	opts := []game.Option{
		game.WithLogger(logger),
		game.WithThinkDelay(cfg.ThinkDelay),
		game.WithStateObserver(hub.Notify),
	}
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to Redis")
		}
		defer rdb.Close()
		opts = append(opts, game.WithPublisher(cache.NewMoveQueue(rdb, cfg.QueueName)))
		logger.WithField("queue", cfg.QueueName).Info("publishing moves to Redis")
	}
	engine := game.NewEngine(st, opts...)

	api := handlers.NewAPI(ctx, engine, signer, hub, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		api.Wait()
		return err
	})
	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
	logger.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (store.Store, error) {
	if cfg.StoreBackend == config.BackendPostgres {
		return database.New(ctx, cfg.DatabaseURL, logger)
	}
	logger.Warn("using in-memory store, games are lost on restart")
	return store.NewMemory(), nil
}

func newSigner(cfg *config.Config) (*auth.Signer, error) {
	if cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "" {
		return auth.LoadSigner(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.TokenTTL)
	}
	return auth.NewSigner(cfg.TokenTTL)
}
