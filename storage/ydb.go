package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ydb-platform/ydb-go-sdk/v3"
	yc "github.com/ydb-platform/ydb-go-yc"
	"go.uber.org/multierr"

	"stockd/core"
	"stockd/storage/migrations"
)

var ydbDialect = dialect{
	upsertProfile: `
		UPSERT INTO ims_profiles (user_id, name, email, image, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
	upsertAsset: `
		UPSERT INTO stock_assets (media_id, path, title, category_id, category_name, content_type,
			width, height, preview_url, is_licensed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
}

type YDBConfig struct {
	DSN                   string `yaml:"dsn" env:"DSN"`
	ServiceAccountKeyFile string `yaml:"service_account_key_file" env:"SA_KEY_FILE"` // Metadata credentials when empty
}

// YDBRepository talks to YDB through the database/sql bridge.
// YDB reports no affected rows, so deletes check existence first.
type YDBRepository struct {
	sqlRepository
	driver *ydb.Driver
}

func NewYDBRepository(ctx context.Context, config *YDBConfig) (*YDBRepository, error) {
	credentials := yc.WithMetadataCredentials()
	if config.ServiceAccountKeyFile != "" {
		credentials = yc.WithServiceAccountKeyFileCredentials(config.ServiceAccountKeyFile)
	}

	driver, err := ydb.Open(ctx, config.DSN,
		yc.WithInternalCA(),
		credentials,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ydb: %w", err)
	}

	connector, err := ydb.Connector(driver,
		ydb.WithAutoDeclare(),
		ydb.WithPositionalArgs(),
	)
	if err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to create ydb connector: %w", err)
	}

	repo := &YDBRepository{
		sqlRepository: sqlRepository{db: sql.OpenDB(connector), dialect: ydbDialect},
		driver:        driver,
	}

	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

func (r *YDBRepository) Close() error {
	return multierr.Combine(
		r.db.Close(),
		r.driver.Close(context.Background()),
	)
}

// Migrate creates missing tables, one scheme statement at a time.
func (r *YDBRepository) Migrate(ctx context.Context) error {
	schemeCtx := ydb.WithQueryMode(ctx, ydb.SchemeQueryMode)

	for _, statement := range strings.Split(migrations.YDBSchema, ";") {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}
		if _, err := r.db.ExecContext(schemeCtx, statement); err != nil {
			return err
		}
	}

	return nil
}

func (r *YDBRepository) SaveProfile(ctx context.Context, profile *core.UserProfile) error {
	if profile.UserID <= 0 {
		return fmt.Errorf("%w: profile without user id", core.ErrInvalidArgument)
	}

	existing, err := r.GetProfileByUserID(ctx, profile.UserID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	createdAt := profile.CreatedAt.Unix()
	if existing != nil {
		createdAt = existing.CreatedAt.Unix()
	}

	var expiresAt *int64
	if profile.ExpiresAt != nil {
		unix := profile.ExpiresAt.Unix()
		expiresAt = &unix
	}

	_, err = r.db.ExecContext(ctx, r.dialect.upsertProfile,
		profile.UserID,
		profile.Name,
		profile.Email,
		profile.Image,
		profile.AccessToken,
		profile.RefreshToken,
		expiresAt,
		createdAt,
		profile.UpdatedAt.Unix(),
	)
	return err
}

func (r *YDBRepository) DeleteProfile(ctx context.Context, userID int64) error {
	if _, err := r.GetProfileByUserID(ctx, userID); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `DELETE FROM ims_profiles WHERE user_id = ?`, userID)
	return err
}

func (r *YDBRepository) SaveAsset(ctx context.Context, asset *core.Asset) error {
	if asset.MediaID > 0 && asset.CreatedAt.IsZero() {
		existing, err := r.GetAssetByID(ctx, asset.MediaID)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return err
		}
		if existing != nil {
			asset.CreatedAt = existing.CreatedAt
		}
	}

	return r.saveAsset(ctx, r.dialect.upsertAsset, asset)
}

func (r *YDBRepository) DeleteAsset(ctx context.Context, asset *core.Asset) (bool, error) {
	if asset == nil {
		return false, fmt.Errorf("%w: nil asset", core.ErrInvalidArgument)
	}

	_, err := r.GetAssetByID(ctx, asset.MediaID)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM stock_assets WHERE media_id = ?`, asset.MediaID); err != nil {
		return false, err
	}

	return true, nil
}
