package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"stockd/core"
	"stockd/core/providers"
	"stockd/storage"
)

const envPrefix = "STOCKD_"

type AppConfig struct {
	Core  core.Config           `yaml:",inline"`
	IMS   providers.IMSConfig   `yaml:"ims" envPrefix:"IMS_"`
	Stock providers.StockConfig `yaml:"stock" envPrefix:"STOCK_"`

	DB     DBConfig    `yaml:"db" envPrefix:"DB_"`
	Files  FilesConfig `yaml:"files" envPrefix:"FILES_"`
	Log    LogConfig   `yaml:"log" envPrefix:"LOG_"`
	Port   string      `yaml:"port" env:"PORT"`
	Locale string      `yaml:"locale" env:"LOCALE"` // Language of user facing messages
}

type DBConfig struct {
	Type        string            `yaml:"type" env:"TYPE"` // sqlite, postgres, ydb or mock
	SQLitePath  string            `yaml:"sqlite_path" env:"SQLITE_PATH"`
	PostgresDSN string            `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	YDB         storage.YDBConfig `yaml:"ydb" envPrefix:"YDB_"`
}

type FilesConfig struct {
	Type string           `yaml:"type" env:"TYPE"` // local or s3
	Root string           `yaml:"root" env:"ROOT"` // Media folder for local storage
	S3   storage.S3Config `yaml:"s3" envPrefix:"S3_"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"` // json or console
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Core: core.Config{
			JWT: core.JWTConfig{AccessTokenDuration: 3600},
		},
		Stock: providers.StockConfig{
			APIURL:      "https://stock.adobe.io",
			ProductName: "stockd/1.0",
		},
		DB:     DBConfig{Type: "sqlite", SQLitePath: "stockd.db"},
		Files:  FilesConfig{Type: "local", Root: "media"},
		Log:    LogConfig{Level: "info", Format: "json"},
		Port:   "8080",
		Locale: "en-US",
	}
}

// loadConfig reads the yaml file, then lets STOCKD_* variables override it.
// A missing file is fine when everything comes from the environment.
func loadConfig(path string) (*AppConfig, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate reports every problem at once.
func (c *AppConfig) Validate() error {
	var err error

	if c.Core.JWT.Secret == "" {
		err = multierr.Append(err, errors.New("jwt.secret is required"))
	}
	if len(c.Core.Crypto.EncryptionKey) != 32 {
		err = multierr.Append(err, errors.New("crypto.encryption_key must be 32 bytes"))
	}
	if c.IMS.APIKey == "" {
		err = multierr.Append(err, errors.New("ims.api_key is required"))
	}
	if c.IMS.TokenURL == "" {
		err = multierr.Append(err, errors.New("ims.token_url is required"))
	}
	if c.Stock.APIURL == "" {
		err = multierr.Append(err, errors.New("stock.api_url is required"))
	}
	if c.Port == "" {
		err = multierr.Append(err, errors.New("port is required"))
	}

	switch strings.ToLower(c.DB.Type) {
	case "sqlite":
		if c.DB.SQLitePath == "" {
			err = multierr.Append(err, errors.New("db.sqlite_path is required"))
		}
	case "postgres":
		if c.DB.PostgresDSN == "" {
			err = multierr.Append(err, errors.New("db.postgres_dsn is required"))
		}
	case "ydb":
		if c.DB.YDB.DSN == "" {
			err = multierr.Append(err, errors.New("db.ydb.dsn is required"))
		}
	case "mock":
	default:
		err = multierr.Append(err, fmt.Errorf("unsupported db.type %q (supported: sqlite, postgres, ydb, mock)", c.DB.Type))
	}

	switch strings.ToLower(c.Files.Type) {
	case "local":
		if c.Files.Root == "" {
			err = multierr.Append(err, errors.New("files.root is required"))
		}
	case "s3":
		if c.Files.S3.Bucket == "" {
			err = multierr.Append(err, errors.New("files.s3.bucket is required"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unsupported files.type %q (supported: local, s3)", c.Files.Type))
	}

	return err
}
