package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAmbiguousMatch wraps ErrNotFound: callers block on both, logs tell them apart.
	ErrAmbiguousMatch = fmt.Errorf("%w: ambiguous match", ErrNotFound)
)

// ProfileRepository persists IMS user profiles keyed by local admin user id.
// Upserts are last-writer-wins.
type ProfileRepository interface {
	GetProfileByUserID(ctx context.Context, userID int64) (*UserProfile, error)

	SaveProfile(ctx context.Context, profile *UserProfile) error

	DeleteProfile(ctx context.Context, userID int64) error
}

// AssetLoader bulk-loads local assets in a single query.
// Ids without a record are absent from the returned map.
type AssetLoader interface {
	LoadByIDs(ctx context.Context, ids []int64) (map[int64]*Asset, error)
}

// AssetRepository is the local asset store.
type AssetRepository interface {
	AssetLoader

	GetAssetByID(ctx context.Context, mediaID int64) (*Asset, error)

	SaveAsset(ctx context.Context, asset *Asset) error

	SearchAssets(ctx context.Context, criteria *SearchCriteria) (*AssetSearchResult, error)

	// DeleteAsset reports false without an error when the record does not exist.
	DeleteAsset(ctx context.Context, asset *Asset) (bool, error)
}

type Repository interface {
	ProfileRepository
	AssetRepository

	Close() error
}

// CleanAssetMetadata removes every local asset stored under path.
func CleanAssetMetadata(ctx context.Context, repo AssetRepository, path string) (int, error) {
	criteria := NewSearchCriteria().AddFilter(AttributePath, path, ConditionEq)

	result, err := repo.SearchAssets(ctx, criteria)
	if err != nil {
		return 0, fmt.Errorf("failed to search assets by path: %w", err)
	}

	removed := 0
	for _, asset := range result.Items {
		deleted, err := repo.DeleteAsset(ctx, asset)
		if err != nil {
			return removed, fmt.Errorf("failed to delete asset %d: %w", asset.MediaID, err)
		}
		if deleted {
			removed++
		}
	}

	return removed, nil
}
