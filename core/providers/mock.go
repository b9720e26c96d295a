package providers

import (
	"context"
	"fmt"
	"io"
	"strings"

	"stockd/core"
)

// Predefined test authorization codes
const (
	ValidCode1  = "mock_auth_code_1"
	ValidCode2  = "mock_auth_code_2"
	NoImageCode = "mock_auth_code_no_image"
)

// Predefined test IMS tokens
var (
	Tokens1 = &core.TokenPair{
		AccessToken:  "mock_access_token_1",
		RefreshToken: "mock_refresh_token_1",
	}

	Tokens2 = &core.TokenPair{
		AccessToken:  "mock_access_token_2",
		RefreshToken: "mock_refresh_token_2",
	}

	TokensNoImage = &core.TokenPair{
		AccessToken:  "mock_access_token_no_image",
		RefreshToken: "mock_refresh_token_no_image",
	}

	Tokens1Refreshed = &core.TokenPair{
		AccessToken:  "mock_access_token_1_refreshed",
		RefreshToken: "mock_refresh_token_1", // Same refresh token
	}
)

// Predefined test user info
var (
	User1 = &core.UserInfo{
		Name:  "Mock User One",
		Email: "user1@mock.test",
	}

	User2 = &core.UserInfo{
		Name:  "Mock User Two",
		Email: "user2@mock.test",
	}

	Image1 = "https://mock.test/276/avatar1.jpg"
	Image2 = "https://mock.test/276/avatar2.jpg"
)

// MockIdentityProvider is a test implementation of core.IdentityProvider
type MockIdentityProvider struct {
	codeToTokens     map[string]*core.TokenPair
	accessToUserInfo map[string]*core.UserInfo
	accessToImage    map[string]string
	refreshToTokens  map[string]*core.TokenPair

	// track method calls for verification
	ExchangeCodeCalls       int
	GetUserInfoCalls        int
	GetImageCalls           int
	RefreshAccessTokenCalls int
}

func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{
		codeToTokens: map[string]*core.TokenPair{
			ValidCode1:  Tokens1,
			ValidCode2:  Tokens2,
			NoImageCode: TokensNoImage,
		},

		accessToUserInfo: map[string]*core.UserInfo{
			Tokens1.AccessToken:          User1,
			Tokens1Refreshed.AccessToken: User1,
			Tokens2.AccessToken:          User2,
			TokensNoImage.AccessToken:    User2,
		},

		accessToImage: map[string]string{
			Tokens1.AccessToken: Image1,
			Tokens2.AccessToken: Image2,
		},

		refreshToTokens: map[string]*core.TokenPair{
			Tokens1.RefreshToken: Tokens1Refreshed,
		},
	}
}

func (m *MockIdentityProvider) ExchangeCode(ctx context.Context, code string) (*core.TokenPair, error) {
	m.ExchangeCodeCalls++

	tokens, ok := m.codeToTokens[code]
	if !ok {
		return nil, fmt.Errorf("%w: invalid_grant", core.ErrProviderTokenExchange)
	}

	return tokens, nil
}

func (m *MockIdentityProvider) GetUserInfo(ctx context.Context, accessToken string) (*core.UserInfo, error) {
	m.GetUserInfoCalls++

	userInfo, ok := m.accessToUserInfo[accessToken]
	if !ok {
		return nil, fmt.Errorf("%w: invalid_token", core.ErrProviderUserInfo)
	}

	return userInfo, nil
}

func (m *MockIdentityProvider) GetImage(ctx context.Context, accessToken string) (string, error) {
	m.GetImageCalls++

	image, ok := m.accessToImage[accessToken]
	if !ok {
		return "", fmt.Errorf("%w: invalid_token", core.ErrProviderUserImage)
	}

	return image, nil
}

func (m *MockIdentityProvider) RefreshAccessToken(ctx context.Context, refreshToken string) (*core.TokenPair, error) {
	m.RefreshAccessTokenCalls++

	tokens, ok := m.refreshToTokens[refreshToken]
	if !ok {
		return nil, fmt.Errorf("%w: invalid_grant", core.ErrProviderRefreshToken)
	}

	return tokens, nil
}

// MockStockClient is a test implementation of core.StockClient backed by a fixed catalog
type MockStockClient struct {
	Documents   []*core.Document
	Quota       *core.Quota
	Related     *core.RelatedImages
	LicenseURLs map[int64]string
	Files       map[string]string // url -> content
	Err         error

	// track method calls for verification
	SearchCalls   int
	LicenseCalls  int
	DownloadCalls int
	LastToken     string
}

func NewMockStockClient(docs ...*core.Document) *MockStockClient {
	return &MockStockClient{
		Documents:   docs,
		Quota:       &core.Quota{Credits: 1, Images: 2},
		Related:     &core.RelatedImages{},
		LicenseURLs: map[int64]string{},
		Files:       map[string]string{},
	}
}

// Search matches media_id equality filters and ignores everything else.
func (m *MockStockClient) Search(ctx context.Context, accessToken string, criteria *core.SearchCriteria) (*core.DocumentSearchResult, error) {
	m.SearchCalls++
	m.LastToken = accessToken
	if m.Err != nil {
		return nil, m.Err
	}

	mediaID, filtered := criteria.FilterValue(core.AttributeMediaID)

	result := &core.DocumentSearchResult{}
	for _, doc := range m.Documents {
		if filtered && fmt.Sprint(doc.ID) != fmt.Sprint(mediaID) {
			continue
		}
		// hand out copies, enrichment mutates documents
		clone := core.NewDocument(doc.ID)
		for code, attr := range doc.CustomAttributes {
			clone.SetCustomAttribute(code, attr.Value)
		}
		result.Items = append(result.Items, clone)
	}
	result.TotalCount = len(result.Items)

	if criteria.PageSize > 0 && len(result.Items) > criteria.PageSize {
		result.Items = result.Items[:criteria.PageSize]
	}

	return result, nil
}

func (m *MockStockClient) GetQuota(ctx context.Context, accessToken string) (*core.Quota, error) {
	m.LastToken = accessToken
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Quota, nil
}

func (m *MockStockClient) GetRelatedImages(ctx context.Context, accessToken string, imageID int64, limit int) (*core.RelatedImages, error) {
	m.LastToken = accessToken
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Related, nil
}

func (m *MockStockClient) License(ctx context.Context, accessToken string, mediaID int64) (string, error) {
	m.LicenseCalls++
	m.LastToken = accessToken

	url, ok := m.LicenseURLs[mediaID]
	if !ok {
		return "", fmt.Errorf("%w: no download url for content %d", core.ErrStockResponse, mediaID)
	}
	return url, nil
}

func (m *MockStockClient) Download(ctx context.Context, accessToken string, url string) (io.ReadCloser, error) {
	m.DownloadCalls++

	content, ok := m.Files[url]
	if !ok {
		return nil, fmt.Errorf("%w: status 404", core.ErrStockRequest)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}
