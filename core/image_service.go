package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// FileStorage keeps downloaded images under relative paths
type FileStorage interface {
	Save(ctx context.Context, path string, body io.Reader) error

	Delete(ctx context.Context, path string) error
}

type ImageService struct {
	client StockClient
	tokens AccessTokenProvider
	lookup *AssetLookup
	repo   AssetRepository
	files  FileStorage
}

func NewImageService(client StockClient, tokens AccessTokenProvider, lookup *AssetLookup, repo AssetRepository, files FileStorage) *ImageService {
	return &ImageService{
		client: client,
		tokens: tokens,
		lookup: lookup,
		repo:   repo,
		files:  files,
	}
}

// SavePreview downloads the preview of a marketplace image into local storage.
func (s *ImageService) SavePreview(ctx context.Context, mediaID int64, destinationPath string) (*Asset, error) {
	asset, err := s.lookup.GetAssetByID(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	if asset.PreviewURL == "" {
		return nil, fmt.Errorf("%w: image %d has no preview url", ErrNotFound, mediaID)
	}

	if err := s.SaveImage(ctx, asset, asset.PreviewURL, destinationPath); err != nil {
		return nil, err
	}
	return asset, nil
}

// License licenses a marketplace image and saves the full size file.
func (s *ImageService) License(ctx context.Context, mediaID int64, destinationPath string) (*Asset, error) {
	asset, err := s.lookup.GetAssetByID(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.requireAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	url, err := s.client.License(ctx, accessToken, mediaID)
	if err != nil {
		return nil, err
	}

	asset.IsLicensed = true
	if err := s.SaveImage(ctx, asset, url, destinationPath); err != nil {
		return nil, err
	}
	return asset, nil
}

// SaveImage stores the file behind url and records the asset under its new path.
func (s *ImageService) SaveImage(ctx context.Context, asset *Asset, url, destinationPath string) error {
	dest, err := cleanDestinationPath(destinationPath)
	if err != nil {
		return err
	}

	accessToken, err := s.tokens.GetAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	body, err := s.client.Download(ctx, accessToken, url)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := s.files.Save(ctx, dest, body); err != nil {
		return fmt.Errorf("failed to store image: %w", err)
	}

	// A license already bought for this media id survives a later preview save.
	existing, err := s.repo.GetAssetByID(ctx, asset.MediaID)
	switch {
	case err == nil:
		asset.IsLicensed = asset.IsLicensed || existing.IsLicensed
		asset.CreatedAt = existing.CreatedAt
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("failed to load asset: %w", err)
	}

	asset.Path = dest
	if err := s.repo.SaveAsset(ctx, asset); err != nil {
		return fmt.Errorf("failed to save asset: %w", err)
	}
	return nil
}

// RemoveImage deletes a stored file and every local asset recorded under it.
func (s *ImageService) RemoveImage(ctx context.Context, destinationPath string) (int, error) {
	dest, err := cleanDestinationPath(destinationPath)
	if err != nil {
		return 0, err
	}

	if err := s.files.Delete(ctx, dest); err != nil {
		return 0, fmt.Errorf("failed to delete image: %w", err)
	}

	return CleanAssetMetadata(ctx, s.repo, dest)
}

func (s *ImageService) GetQuota(ctx context.Context) (*Quota, error) {
	accessToken, err := s.requireAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.GetQuota(ctx, accessToken)
}

func (s *ImageService) GetRelatedImages(ctx context.Context, imageID int64, limit int) (*RelatedImages, error) {
	if imageID <= 0 {
		return nil, fmt.Errorf("%w: image id is required", ErrInvalidArgument)
	}

	accessToken, err := s.tokens.GetAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}
	return s.client.GetRelatedImages(ctx, accessToken, imageID, limit)
}

func (s *ImageService) requireAccessToken(ctx context.Context) (string, error) {
	accessToken, err := s.tokens.GetAccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	if accessToken == "" {
		return "", ErrUnauthorized
	}
	return accessToken, nil
}

func cleanDestinationPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("%w: destination path is required", ErrInvalidArgument)
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", fmt.Errorf("%w: destination path must be relative", ErrInvalidArgument)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: destination path must not leave the media directory", ErrInvalidArgument)
		}
	}
	return path.Clean(p), nil
}
