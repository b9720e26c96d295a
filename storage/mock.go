package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"stockd/core"
	"stockd/core/providers"
)

// TestEncryptionKey encrypts the tokens of the seeded profiles
const TestEncryptionKey = "12345678901234567890123456789012"

// Seeded admin users
const (
	AdminUser1     int64 = 1 // Signed in to IMS
	AdminUser2     int64 = 2 // Never signed in
	AdminUserNoKey int64 = 3 // Signed in, stored token cannot be decrypted
)

func testEncrypt(userID int64, plaintext string) string {
	crypto, err := core.NewCryptoService(TestEncryptionKey)
	if err != nil {
		panic(err)
	}
	ciphertext, err := crypto.EncryptToken(userID, plaintext)
	if err != nil {
		panic(err)
	}
	return ciphertext
}

var (
	Profile1 = &core.UserProfile{
		UserID:       AdminUser1,
		Name:         providers.User1.Name,
		Email:        providers.User1.Email,
		Image:        providers.Image1,
		AccessToken:  testEncrypt(AdminUser1, providers.Tokens1.AccessToken),
		RefreshToken: testEncrypt(AdminUser1, providers.Tokens1.RefreshToken),
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	ProfileBroken = &core.UserProfile{
		UserID:       AdminUserNoKey,
		Name:         providers.User2.Name,
		Email:        providers.User2.Email,
		AccessToken:  "not-a-ciphertext",
		RefreshToken: "not-a-ciphertext",
		CreatedAt:    time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
	}

	AllProfiles = []*core.UserProfile{Profile1, ProfileBroken}
)

var (
	Asset1 = &core.Asset{
		MediaID:      101,
		Path:         "stock/sunset.jpg",
		Title:        "Sunset over the sea",
		CategoryID:   1043,
		CategoryName: "Landscapes",
		ContentType:  "image/jpeg",
		Width:        1000,
		Height:       667,
		PreviewURL:   "https://mock.test/preview/101.jpg",
		CreatedAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	Asset2 = &core.Asset{
		MediaID:      102,
		Path:         "stock/mountains.jpg",
		Title:        "Mountains at dawn",
		CategoryID:   1043,
		CategoryName: "Landscapes",
		ContentType:  "image/jpeg",
		Width:        800,
		Height:       600,
		PreviewURL:   "https://mock.test/preview/102.jpg",
		IsLicensed:   true,
		CreatedAt:    time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
	}

	AllAssets = []*core.Asset{Asset1, Asset2}
)

// MockRepository is an in-memory core.Repository seeded with the fixtures above
type MockRepository struct {
	mu       sync.Mutex
	profiles map[int64]*core.UserProfile
	assets   map[int64]*core.Asset

	// Set to make every call fail
	Err error

	// Track method calls for verification
	GetProfileCalls   int
	SaveProfileCalls  int
	LoadByIDsCalls    int
	LastLoadedIDs     []int64
	SaveAssetCalls    int
	SearchAssetsCalls int
	DeleteAssetCalls  int
}

func NewMockRepository() *MockRepository {
	repo := &MockRepository{
		profiles: make(map[int64]*core.UserProfile),
		assets:   make(map[int64]*core.Asset),
	}

	for _, profile := range AllProfiles {
		copied := *profile
		repo.profiles[profile.UserID] = &copied
	}

	for _, asset := range AllAssets {
		copied := *asset
		repo.assets[asset.MediaID] = &copied
	}

	return repo
}

// NewEmptyMockRepository starts without seeded rows.
func NewEmptyMockRepository() *MockRepository {
	return &MockRepository{
		profiles: make(map[int64]*core.UserProfile),
		assets:   make(map[int64]*core.Asset),
	}
}

func (m *MockRepository) Close() error {
	return nil
}

func (m *MockRepository) GetProfileByUserID(ctx context.Context, userID int64) (*core.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetProfileCalls++

	if m.Err != nil {
		return nil, m.Err
	}

	profile, ok := m.profiles[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *profile
	return &copied, nil
}

func (m *MockRepository) SaveProfile(ctx context.Context, profile *core.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveProfileCalls++

	if m.Err != nil {
		return m.Err
	}

	copied := *profile
	if existing, ok := m.profiles[profile.UserID]; ok {
		copied.CreatedAt = existing.CreatedAt
	}
	m.profiles[profile.UserID] = &copied
	return nil
}

func (m *MockRepository) DeleteProfile(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	if _, ok := m.profiles[userID]; !ok {
		return core.ErrNotFound
	}
	delete(m.profiles, userID)
	return nil
}

// StoredProfile returns the raw stored row, tokens still encrypted.
func (m *MockRepository) StoredProfile(userID int64) (*core.UserProfile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, ok := m.profiles[userID]
	return profile, ok
}

func (m *MockRepository) LoadByIDs(ctx context.Context, ids []int64) (map[int64]*core.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadByIDsCalls++
	m.LastLoadedIDs = append([]int64(nil), ids...)

	if m.Err != nil {
		return nil, m.Err
	}

	result := make(map[int64]*core.Asset, len(ids))
	for _, id := range ids {
		if asset, ok := m.assets[id]; ok {
			copied := *asset
			result[id] = &copied
		}
	}
	return result, nil
}

func (m *MockRepository) GetAssetByID(ctx context.Context, mediaID int64) (*core.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	asset, ok := m.assets[mediaID]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *asset
	return &copied, nil
}

func (m *MockRepository) SaveAsset(ctx context.Context, asset *core.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveAssetCalls++

	if m.Err != nil {
		return m.Err
	}

	now := time.Now()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}
	asset.UpdatedAt = now

	copied := *asset
	m.assets[asset.MediaID] = &copied
	return nil
}

// SearchAssets supports eq and like filters on path and title, and eq on media_id.
func (m *MockRepository) SearchAssets(ctx context.Context, criteria *core.SearchCriteria) (*core.AssetSearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchAssetsCalls++

	if m.Err != nil {
		return nil, m.Err
	}
	if criteria == nil {
		criteria = core.NewSearchCriteria()
	}

	var matched []*core.Asset
	for _, asset := range m.assets {
		if matchesAsset(asset, criteria.Filters) {
			copied := *asset
			matched = append(matched, &copied)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].MediaID < matched[j].MediaID
	})

	result := &core.AssetSearchResult{TotalCount: len(matched)}

	offset := criteria.Offset()
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if criteria.PageSize > 0 && len(matched) > criteria.PageSize {
		matched = matched[:criteria.PageSize]
	}
	result.Items = matched

	return result, nil
}

func (m *MockRepository) DeleteAsset(ctx context.Context, asset *core.Asset) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteAssetCalls++

	if m.Err != nil {
		return false, m.Err
	}

	if _, ok := m.assets[asset.MediaID]; !ok {
		return false, nil
	}
	delete(m.assets, asset.MediaID)
	return true, nil
}

func matchesAsset(asset *core.Asset, filters []core.Filter) bool {
	for _, f := range filters {
		var field string
		switch f.Field {
		case core.AttributePath:
			field = asset.Path
		case core.AttributeTitle:
			field = asset.Title
		case core.AttributeMediaID:
			id, ok := f.Value.(int64)
			if !ok || asset.MediaID != id {
				return false
			}
			continue
		default:
			return false
		}

		value, _ := f.Value.(string)
		switch f.ConditionType() {
		case core.ConditionEq:
			if field != value {
				return false
			}
		case core.ConditionLike:
			if !strings.Contains(field, strings.Trim(value, "%")) {
				return false
			}
		default:
			return false
		}
	}
	return true
}
