package core

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrIntegration marks failed or unparseable calls to IMS or the marketplace.
var ErrIntegration = errors.New("integration failure")

var (
	ErrProviderTokenExchange = fmt.Errorf("%w: provider token exchange failed", ErrIntegration)
	ErrProviderUserInfo      = fmt.Errorf("%w: provider user info request failed", ErrIntegration)
	ErrProviderUserImage     = fmt.Errorf("%w: provider user image request failed", ErrIntegration)
	ErrProviderRefreshToken  = fmt.Errorf("%w: provider token refresh failed", ErrIntegration)
	ErrStockRequest          = fmt.Errorf("%w: stock request failed", ErrIntegration)
	ErrStockResponse         = fmt.Errorf("%w: stock response malformed", ErrIntegration)
)

// IdentityProvider talks to the IMS OAuth endpoints
type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code string) (*TokenPair, error)

	RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenPair, error)

	GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error)

	// GetImage returns the largest avatar of the user
	GetImage(ctx context.Context, accessToken string) (string, error)
}

// DocumentSearcher runs a search and returns result documents
type DocumentSearcher interface {
	Search(ctx context.Context, criteria *SearchCriteria) (*DocumentSearchResult, error)
}

// StockClient talks to the marketplace API on behalf of an IMS user.
// An empty access token performs anonymous requests where the API allows it.
type StockClient interface {
	Search(ctx context.Context, accessToken string, criteria *SearchCriteria) (*DocumentSearchResult, error)

	GetQuota(ctx context.Context, accessToken string) (*Quota, error)

	GetRelatedImages(ctx context.Context, accessToken string, imageID int64, limit int) (*RelatedImages, error)

	// License licenses the asset and returns the URL of the full size file
	License(ctx context.Context, accessToken string, mediaID int64) (string, error)

	Download(ctx context.Context, accessToken string, url string) (io.ReadCloser, error)
}
