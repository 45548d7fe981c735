package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/scooterledger/internal/api"
	"github.com/punchamoorthee/scooterledger/internal/catalog"
	"github.com/punchamoorthee/scooterledger/internal/config"
	"github.com/punchamoorthee/scooterledger/internal/logging"
	"github.com/punchamoorthee/scooterledger/internal/notify"
	"github.com/punchamoorthee/scooterledger/internal/service"
	"github.com/punchamoorthee/scooterledger/internal/store"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Unable to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer st.Close()

	if err := store.SeedLevels(ctx, st, catalog.DefaultLevels()); err != nil {
		logger.Fatal("seeding levels failed", zap.Error(err))
	}

	dispatcher := notify.NewDispatcher(newNotifier(cfg, logger), logger.Named("notify"))
	defer dispatcher.Wait()

	svc := service.New(st, cfg.Settings,
		service.WithLogger(logger.Named("service")),
		service.WithDispatcher(dispatcher),
	)
	handler := api.NewHandler(svc, logger.Named("api"))

	r := handler.Router()
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server starting", zap.String("port", cfg.Port), zap.String("storage", cfg.Storage))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		return store.NewMemory(), nil
	}
	pg, err := store.NewPostgres(ctx, cfg.DBSource)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

func newNotifier(cfg *config.Config, logger *zap.Logger) notify.Notifier {
	if cfg.TelegramToken == "" {
		return notify.Log{L: logger.Named("notify")}
	}
	tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatIDs)
	if err != nil {
		logger.Warn("telegram disabled", zap.Error(err))
		return notify.Log{L: logger.Named("notify")}
	}
	return tg
}
