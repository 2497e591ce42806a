package main

import (
	"context"
	"flag"
	"log"
	"os"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/logging"
	"storefront/internal/repository/catalog"
	"storefront/internal/seed"

	"go.uber.org/zap"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Catalog YAML to seed (defaults to the embedded demo catalog)")
	flag.Parse()

	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("seed")

	doc, err := loadDocument(filePath)
	if err != nil {
		logger.Fatal("load catalog document", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	if err := seed.Apply(ctx, catalog.NewPostgres(pool, logger), doc, logger); err != nil {
		logger.Fatal("seed apply", zap.Error(err))
	}

	logger.Info("seed applied")
}

func loadDocument(path string) (catalog.Fixture, error) {
	if path == "" {
		return catalog.EmbeddedFixture()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return catalog.Fixture{}, err
	}
	return catalog.ParseFixture(data)
}
