package core

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var (
	ErrInvalidEncryptionKey = errors.New("encryption key must be 32 bytes for AES-256")
	ErrInvalidCiphertext    = errors.New("invalid ciphertext")
)

// CryptoService keeps IMS tokens encrypted at rest. Every ciphertext is bound
// to the admin user id it was sealed for, so a token row copied to another
// user fails to open.
type CryptoService struct {
	aead cipher.AEAD
}

func NewCryptoService(encryptionKey string) (*CryptoService, error) {
	key := []byte(encryptionKey)
	if len(key) != 32 {
		return nil, ErrInvalidEncryptionKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &CryptoService{aead: aead}, nil
}

// EncryptToken returns base64(nonce || ciphertext), or "" for an empty token.
func (cs *CryptoService) EncryptToken(userID int64, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, cs.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := cs.aead.Seal(nonce, nonce, []byte(plaintext), userData(userID))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (cs *CryptoService) DecryptToken(userID int64, ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	nonceSize := cs.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := cs.aead.Open(nil, data[:nonceSize], data[nonceSize:], userData(userID))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}

// SealProfile returns a copy of profile with both tokens encrypted.
func (cs *CryptoService) SealProfile(profile *UserProfile) (*UserProfile, error) {
	sealed := *profile

	var err error
	if sealed.AccessToken, err = cs.EncryptToken(profile.UserID, profile.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	if sealed.RefreshToken, err = cs.EncryptToken(profile.UserID, profile.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	return &sealed, nil
}

// OpenProfile is the inverse of SealProfile.
func (cs *CryptoService) OpenProfile(profile *UserProfile) (*UserProfile, error) {
	opened := *profile

	var err error
	if opened.AccessToken, err = cs.DecryptToken(profile.UserID, profile.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	if opened.RefreshToken, err = cs.DecryptToken(profile.UserID, profile.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	return &opened, nil
}

func userData(userID int64) []byte {
	return []byte("ims-profile:" + strconv.FormatInt(userID, 10))
}
