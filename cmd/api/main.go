package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/httpserver"
	"storefront/internal/logging"
	"storefront/internal/repository/catalog"
	"storefront/internal/service/camera"
	"storefront/internal/service/product"
	"storefront/internal/service/session"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		dbpool *pgxpool.Pool
		repo   catalog.Repository
	)
	if cfg.DBConnString != "" {
		dbpool, err = db.Connect(ctx, cfg.DBConnString, logger)
		if err != nil {
			logger.Fatal("connect to db", zap.Error(err))
		}
		defer dbpool.Close()
		repo = catalog.NewPostgres(dbpool, logger)
	} else {
		repo, err = catalog.NewFixture()
		if err != nil {
			logger.Fatal("load embedded catalog", zap.Error(err))
		}
		logger.Info("serving embedded catalog")
	}

	// Fail fast on a catalog the page cannot render.
	if _, err := repo.Load(ctx); err != nil {
		logger.Fatal("load catalog", zap.Error(err))
	}

	store := session.NewStore(repo, session.Deps{
		Device: cameraDevice(cfg.CameraMode, logger),
		Logger: logger,
	}, cfg.SessionTTL)

	products, err := product.New(repo)
	if err != nil {
		logger.Fatal("init product service", zap.Error(err))
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Sessions:     store,
		Products:     products,
		AllowOrigins: cfg.CORSAllowOrigins,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		store.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}

// cameraDevice picks the capture device for CAMERA_MODE. "unavailable"
// means there is no device at all.
func cameraDevice(mode string, logger *zap.Logger) camera.Device {
	switch camera.Mode(mode) {
	case camera.ModeUnavailable:
		return nil
	case camera.ModeDenied:
		return camera.NewSimulatedDevice(camera.ModeDenied)
	case camera.ModeReady:
		return camera.NewSimulatedDevice(camera.ModeReady)
	default:
		logger.Warn("unknown camera mode, using simulated", zap.String("mode", mode))
		return camera.NewSimulatedDevice(camera.ModeReady)
	}
}
