package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// LookupStatus tags the outcome of a profile lookup
type LookupStatus int

const (
	LookupFound LookupStatus = iota
	LookupNotFound
	LookupFailed
)

// ProfileLookup is Found(profile), NotFound or Failed(err)
type ProfileLookup struct {
	Status  LookupStatus
	Profile *UserProfile
	Err     error
}

type ImsService struct {
	repo     ProfileRepository
	provider IdentityProvider
	crypto   *CryptoService
	logger   *zap.Logger
}

func NewImsService(repo ProfileRepository, provider IdentityProvider, crypto *CryptoService, logger *zap.Logger) *ImsService {
	return &ImsService{
		repo:     repo,
		provider: provider,
		crypto:   crypto,
		logger:   logger,
	}
}

// Login exchanges the authorization code and links the IMS profile to the current admin.
func (s *ImsService) Login(ctx context.Context, code string) (*UserProfile, error) {
	userID, ok := AdminUserIDFromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code is required", ErrInvalidArgument)
	}

	// 1. Exchange authorization code for tokens
	tokens, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	// 2. Get user info from provider
	userInfo, err := s.provider.GetUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}

	// 3. Avatar is optional
	image, err := s.provider.GetImage(ctx, tokens.AccessToken)
	if err != nil {
		s.logger.Error("Error during get adobe stock user image operation",
			zap.String("severity", "critical"),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		image = ""
	}

	// 4. Upsert profile keyed by the local admin
	profile := &UserProfile{
		UserID:       userID,
		Name:         userInfo.Name,
		Email:        userInfo.Email,
		Image:        image,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.Expiry,
	}

	if err := s.saveProfile(ctx, profile); err != nil {
		return nil, err
	}

	return profile, nil
}

// RefreshAccessToken renews the stored access token of the current admin.
func (s *ImsService) RefreshAccessToken(ctx context.Context) (*UserProfile, error) {
	lookup := s.LookupProfile(ctx)
	switch lookup.Status {
	case LookupNotFound:
		return nil, ErrNotFound
	case LookupFailed:
		return nil, lookup.Err
	}

	profile := lookup.Profile
	if profile.RefreshToken == "" {
		return nil, fmt.Errorf("%w: profile has no refresh token", ErrInvalidArgument)
	}

	tokens, err := s.provider.RefreshAccessToken(ctx, profile.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh access token: %w", err)
	}

	profile.AccessToken = tokens.AccessToken
	profile.ExpiresAt = tokens.Expiry
	// Providers may rotate the refresh token
	if tokens.RefreshToken != "" {
		profile.RefreshToken = tokens.RefreshToken
	}

	if err := s.saveProfile(ctx, profile); err != nil {
		return nil, err
	}

	return profile, nil
}

// LookupProfile resolves the profile of the current admin with decrypted tokens.
func (s *ImsService) LookupProfile(ctx context.Context) ProfileLookup {
	userID, ok := AdminUserIDFromContext(ctx)
	if !ok {
		return ProfileLookup{Status: LookupNotFound}
	}

	profile, err := s.repo.GetProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ProfileLookup{Status: LookupNotFound}
		}
		return ProfileLookup{Status: LookupFailed, Err: fmt.Errorf("failed to find profile: %w", err)}
	}

	decrypted, err := s.crypto.OpenProfile(profile)
	if err != nil {
		return ProfileLookup{Status: LookupFailed, Err: err}
	}

	return ProfileLookup{Status: LookupFound, Profile: decrypted}
}

// GetProfile returns ErrNotFound when the current admin never signed in.
func (s *ImsService) GetProfile(ctx context.Context) (*UserProfile, error) {
	lookup := s.LookupProfile(ctx)
	switch lookup.Status {
	case LookupFound:
		return lookup.Profile, nil
	case LookupNotFound:
		return nil, ErrNotFound
	default:
		return nil, lookup.Err
	}
}

// GetAccessToken returns "" without an error when the current admin is not signed in.
func (s *ImsService) GetAccessToken(ctx context.Context) (string, error) {
	lookup := s.LookupProfile(ctx)
	switch lookup.Status {
	case LookupFound:
		return lookup.Profile.AccessToken, nil
	case LookupNotFound:
		return "", nil
	default:
		return "", lookup.Err
	}
}

// IsAuthorized never fails: any lookup problem means not authorized.
func (s *ImsService) IsAuthorized(ctx context.Context) bool {
	lookup := s.LookupProfile(ctx)
	if lookup.Status == LookupFailed {
		s.logger.Warn("authorization check failed", zap.Error(lookup.Err))
	}
	return lookup.Status == LookupFound && lookup.Profile.AccessToken != ""
}

// Logout unlinks the IMS profile of the current admin.
func (s *ImsService) Logout(ctx context.Context) error {
	userID, ok := AdminUserIDFromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}

	if err := s.repo.DeleteProfile(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

func (s *ImsService) saveProfile(ctx context.Context, profile *UserProfile) error {
	now := time.Now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	stored, err := s.crypto.SealProfile(profile)
	if err != nil {
		return err
	}

	if err := s.repo.SaveProfile(ctx, stored); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}
