package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"stockd/core"
)

// Search fields accepted in asset filters and sort orders, mapped to columns
var assetColumns = map[string]string{
	core.AttributeMediaID:      "media_id",
	core.AttributePath:         "path",
	core.AttributeTitle:        "title",
	core.AttributeCategoryID:   "category_id",
	core.AttributeCategoryName: "category_name",
	core.AttributeContentType:  "content_type",
	core.AttributeWidth:        "width",
	core.AttributeHeight:       "height",
	"is_licensed":              "is_licensed",
	"created_at":               "created_at",
	"updated_at":               "updated_at",
}

const assetSelectColumns = `media_id, path, title, category_id, category_name, content_type,
		width, height, preview_url, is_licensed, created_at, updated_at`

type dialect struct {
	numbered      bool // $1, $2 placeholders instead of ?
	upsertProfile string
	upsertAsset   string
}

var sqliteDialect = dialect{
	upsertProfile: `
		INSERT INTO ims_profiles (user_id, name, email, image, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			image = excluded.image,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`,
	upsertAsset: `
		INSERT INTO stock_assets (media_id, path, title, category_id, category_name, content_type,
			width, height, preview_url, is_licensed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (media_id) DO UPDATE SET
			path = excluded.path,
			title = excluded.title,
			category_id = excluded.category_id,
			category_name = excluded.category_name,
			content_type = excluded.content_type,
			width = excluded.width,
			height = excluded.height,
			preview_url = excluded.preview_url,
			is_licensed = excluded.is_licensed,
			updated_at = excluded.updated_at
	`,
}

// sqlRepository implements core.Repository on top of database/sql.
// Timestamps are stored as unix seconds.
type sqlRepository struct {
	db      *sql.DB
	dialect dialect
}

func (r *sqlRepository) Close() error {
	return r.db.Close()
}

// rebind rewrites ? placeholders for drivers that expect numbered ones.
func (r *sqlRepository) rebind(query string) string {
	if !r.dialect.numbered {
		return query
	}

	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r *sqlRepository) GetProfileByUserID(ctx context.Context, userID int64) (*core.UserProfile, error) {
	query := `
		SELECT user_id, name, email, image, access_token, refresh_token, expires_at, created_at, updated_at
		FROM ims_profiles
		WHERE user_id = ?
	`

	var profile core.UserProfile
	var expiresAt sql.NullInt64
	var createdAt, updatedAt int64

	err := r.db.QueryRowContext(ctx, r.rebind(query), userID).Scan(
		&profile.UserID,
		&profile.Name,
		&profile.Email,
		&profile.Image,
		&profile.AccessToken,
		&profile.RefreshToken,
		&expiresAt,
		&createdAt,
		&updatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		t := time.Unix(expiresAt.Int64, 0)
		profile.ExpiresAt = &t
	}
	profile.CreatedAt = time.Unix(createdAt, 0)
	profile.UpdatedAt = time.Unix(updatedAt, 0)

	return &profile, nil
}

func (r *sqlRepository) SaveProfile(ctx context.Context, profile *core.UserProfile) error {
	if profile.UserID <= 0 {
		return fmt.Errorf("%w: profile without user id", core.ErrInvalidArgument)
	}

	var expiresAt sql.NullInt64
	if profile.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: profile.ExpiresAt.Unix(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, r.rebind(r.dialect.upsertProfile),
		profile.UserID,
		profile.Name,
		profile.Email,
		profile.Image,
		profile.AccessToken,
		profile.RefreshToken,
		expiresAt,
		profile.CreatedAt.Unix(),
		profile.UpdatedAt.Unix(),
	)
	return err
}

func (r *sqlRepository) DeleteProfile(ctx context.Context, userID int64) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM ims_profiles WHERE user_id = ?`), userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return core.ErrNotFound
	}

	return nil
}

// LoadByIDs runs a single IN query regardless of how many ids are requested.
func (r *sqlRepository) LoadByIDs(ctx context.Context, ids []int64) (map[int64]*core.Asset, error) {
	assets := make(map[int64]*core.Asset, len(ids))
	if len(ids) == 0 {
		return assets, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `SELECT ` + assetSelectColumns + `
		FROM stock_assets
		WHERE media_id IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets[asset.MediaID] = asset
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return assets, nil
}

func (r *sqlRepository) GetAssetByID(ctx context.Context, mediaID int64) (*core.Asset, error) {
	query := `SELECT ` + assetSelectColumns + ` FROM stock_assets WHERE media_id = ?`

	asset, err := scanAsset(r.db.QueryRowContext(ctx, r.rebind(query), mediaID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return asset, nil
}

func (r *sqlRepository) SaveAsset(ctx context.Context, asset *core.Asset) error {
	return r.saveAsset(ctx, r.dialect.upsertAsset, asset)
}

func (r *sqlRepository) saveAsset(ctx context.Context, query string, asset *core.Asset) error {
	if asset.MediaID <= 0 {
		return fmt.Errorf("%w: asset without media id", core.ErrInvalidArgument)
	}

	now := time.Now()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}
	asset.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.rebind(query), assetArgs(asset)...)
	return err
}

func (r *sqlRepository) SearchAssets(ctx context.Context, criteria *core.SearchCriteria) (*core.AssetSearchResult, error) {
	if criteria == nil {
		criteria = core.NewSearchCriteria()
	}

	where, args, err := buildAssetWhere(criteria)
	if err != nil {
		return nil, err
	}

	orderBy, err := buildAssetOrder(criteria)
	if err != nil {
		return nil, err
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM stock_assets` + where
	if err := r.db.QueryRowContext(ctx, r.rebind(countQuery), args...).Scan(&total); err != nil {
		return nil, err
	}

	query := `SELECT ` + assetSelectColumns + ` FROM stock_assets` + where + orderBy
	if criteria.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", criteria.PageSize, criteria.Offset())
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &core.AssetSearchResult{
		Items:      []*core.Asset{},
		TotalCount: int(total),
	}
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, asset)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *sqlRepository) DeleteAsset(ctx context.Context, asset *core.Asset) (bool, error) {
	if asset == nil {
		return false, fmt.Errorf("%w: nil asset", core.ErrInvalidArgument)
	}

	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM stock_assets WHERE media_id = ?`), asset.MediaID)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*core.Asset, error) {
	var asset core.Asset
	var width, height int64
	var createdAt, updatedAt int64

	err := row.Scan(
		&asset.MediaID,
		&asset.Path,
		&asset.Title,
		&asset.CategoryID,
		&asset.CategoryName,
		&asset.ContentType,
		&width,
		&height,
		&asset.PreviewURL,
		&asset.IsLicensed,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	asset.Width = int(width)
	asset.Height = int(height)
	asset.CreatedAt = time.Unix(createdAt, 0)
	asset.UpdatedAt = time.Unix(updatedAt, 0)

	return &asset, nil
}

func assetArgs(asset *core.Asset) []any {
	return []any{
		asset.MediaID,
		asset.Path,
		asset.Title,
		asset.CategoryID,
		asset.CategoryName,
		asset.ContentType,
		int64(asset.Width),
		int64(asset.Height),
		asset.PreviewURL,
		asset.IsLicensed,
		asset.CreatedAt.Unix(),
		asset.UpdatedAt.Unix(),
	}
}

func buildAssetWhere(criteria *core.SearchCriteria) (string, []any, error) {
	var clauses []string
	var args []any

	for _, f := range criteria.Filters {
		if err := f.Validate(); err != nil {
			return "", nil, err
		}

		column, ok := assetColumns[f.Field]
		if !ok {
			return "", nil, fmt.Errorf("%w: unknown asset field %q", core.ErrInvalidArgument, f.Field)
		}

		switch f.ConditionType() {
		case core.ConditionEq:
			clauses = append(clauses, column+" = ?")
			args = append(args, f.Value)
		case core.ConditionNeq:
			clauses = append(clauses, column+" <> ?")
			args = append(args, f.Value)
		case core.ConditionGt:
			clauses = append(clauses, column+" > ?")
			args = append(args, f.Value)
		case core.ConditionLt:
			clauses = append(clauses, column+" < ?")
			args = append(args, f.Value)
		case core.ConditionLike:
			clauses = append(clauses, column+" LIKE ?")
			args = append(args, f.Value)
		case core.ConditionIn:
			values := inValues(f.Value)
			if len(values) == 0 {
				// nothing can match an empty set
				clauses = append(clauses, "1 = 0")
				continue
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
			clauses = append(clauses, column+" IN ("+placeholders+")")
			args = append(args, values...)
		}
	}

	if len(clauses) == 0 {
		return "", nil, nil
	}

	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func buildAssetOrder(criteria *core.SearchCriteria) (string, error) {
	if len(criteria.SortOrders) == 0 {
		return " ORDER BY media_id ASC", nil
	}

	parts := make([]string, 0, len(criteria.SortOrders))
	for _, order := range criteria.SortOrders {
		column, ok := assetColumns[order.Field]
		if !ok {
			return "", fmt.Errorf("%w: unknown sort field %q", core.ErrInvalidArgument, order.Field)
		}

		direction := strings.ToUpper(order.Direction)
		switch direction {
		case "":
			direction = core.SortASC
		case core.SortASC, core.SortDESC:
		default:
			return "", fmt.Errorf("%w: unknown sort direction %q", core.ErrInvalidArgument, order.Direction)
		}

		parts = append(parts, column+" "+direction)
	}

	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func inValues(value any) []any {
	switch v := value.(type) {
	case []int64:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	default:
		return nil
	}
}
