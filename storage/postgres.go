package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"stockd/storage/migrations"
)

// Postgres reuses the SQLite statements, both understand ON CONFLICT ... excluded.
var postgresDialect = dialect{
	numbered:      true,
	upsertProfile: sqliteDialect.upsertProfile,
	upsertAsset:   sqliteDialect.upsertAsset,
}

type PostgresRepository struct {
	sqlRepository
}

func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := NewPostgresRepositoryFromDB(db)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

// NewPostgresRepositoryFromDB wraps an open connection without migrating it.
func NewPostgresRepositoryFromDB(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{sqlRepository{db: db, dialect: postgresDialect}}
}

// Migrate applies pending goose migrations.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	return runMigrations(ctx, r.db, goose.DialectPostgres, migrations.Postgres, "postgres")
}

// gooseUp is a seam for tests that cannot run real migrations.
var gooseUp = func(ctx context.Context, provider *goose.Provider) error {
	_, err := provider.Up(ctx)
	return err
}

func runMigrations(ctx context.Context, db *sql.DB, dialect goose.Dialect, fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(dialect, db, sub)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	return gooseUp(ctx, provider)
}
