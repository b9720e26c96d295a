package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"stockd/core"
	"stockd/core/providers"
	"stockd/storage"
)

// app holds the wired services of one process
type app struct {
	config *AppConfig
	logger *zap.Logger
	repo   core.Repository
	images *core.ImageService
	server *core.Server
}

func newLogger(config LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zapConfig := zap.NewProductionConfig()
	if strings.ToLower(config.Format) == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	return zapConfig.Build()
}

func initRepository(ctx context.Context, config DBConfig, logger *zap.Logger) (core.Repository, error) {
	switch strings.ToLower(config.Type) {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(config.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		logger.Info("using SQLite database", zap.String("path", config.SQLitePath))
		return repo, nil

	case "postgres":
		repo, err := storage.NewPostgresRepository(ctx, config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		logger.Info("using Postgres database")
		return repo, nil

	case "ydb":
		repo, err := storage.NewYDBRepository(ctx, &config.YDB)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize YDB repository: %w", err)
		}
		logger.Info("using YDB database")
		return repo, nil

	case "mock":
		logger.Info("using mock repository (in-memory)")
		return storage.NewMockRepository(), nil

	default:
		return nil, fmt.Errorf("unsupported DB type: %s", config.Type)
	}
}

func initFileStorage(ctx context.Context, config FilesConfig, logger *zap.Logger) (core.FileStorage, error) {
	switch strings.ToLower(config.Type) {
	case "local":
		files, err := storage.NewLocalFileStorage(config.Root)
		if err != nil {
			return nil, err
		}
		logger.Info("storing images on disk", zap.String("root", config.Root))
		return files, nil

	case "s3":
		files, err := storage.NewS3FileStorage(ctx, &config.S3)
		if err != nil {
			return nil, err
		}
		logger.Info("storing images in S3", zap.String("bucket", config.S3.Bucket))
		return files, nil

	default:
		return nil, fmt.Errorf("unsupported files type: %s", config.Type)
	}
}

func newApp(ctx context.Context, config *AppConfig) (*app, error) {
	logger, err := newLogger(config.Log)
	if err != nil {
		return nil, err
	}

	crypto, err := core.NewCryptoService(config.Core.Crypto.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize crypto service: %w", err)
	}

	repo, err := initRepository(ctx, config.DB, logger)
	if err != nil {
		return nil, err
	}

	files, err := initFileStorage(ctx, config.Files, logger)
	if err != nil {
		repo.Close()
		return nil, err
	}

	stock := providers.NewStockClient(&config.Stock, logger)
	ims := core.NewImsService(repo, providers.NewIMSProvider(&config.IMS), crypto, logger)
	assets := core.NewAssetListService(stock, ims, core.NewAssetEnricher(repo))
	images := core.NewImageService(stock, ims, core.NewAssetLookup(assets, logger), repo, files)

	return &app{
		config: config,
		logger: logger,
		repo:   repo,
		images: images,
		server: core.NewServer(ims, assets, images, &config.Core, core.NewTranslator(config.Locale), logger),
	}, nil
}

func (a *app) Close() error {
	// zap reports a harmless error syncing stdout on some platforms
	_ = a.logger.Sync()
	return a.repo.Close()
}
