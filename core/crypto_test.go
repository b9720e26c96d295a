package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockd/core"
	"stockd/storage"
)

func newTestCrypto(t *testing.T) *core.CryptoService {
	t.Helper()
	crypto, err := core.NewCryptoService(storage.TestEncryptionKey)
	require.NoError(t, err)
	return crypto
}

func TestCryptoService_RoundTrip(t *testing.T) {
	crypto := newTestCrypto(t)

	ciphertext, err := crypto.EncryptToken(storage.AdminUser1, "ims-access-token")
	require.NoError(t, err)
	assert.NotEqual(t, "ims-access-token", ciphertext)

	again, err := crypto.EncryptToken(storage.AdminUser1, "ims-access-token")
	require.NoError(t, err)
	assert.NotEqual(t, ciphertext, again, "nonce must differ between encryptions")

	plaintext, err := crypto.DecryptToken(storage.AdminUser1, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "ims-access-token", plaintext)
}

func TestCryptoService_EmptyToken(t *testing.T) {
	crypto := newTestCrypto(t)

	ciphertext, err := crypto.EncryptToken(storage.AdminUser1, "")
	require.NoError(t, err)
	assert.Equal(t, "", ciphertext)

	plaintext, err := crypto.DecryptToken(storage.AdminUser1, "")
	require.NoError(t, err)
	assert.Equal(t, "", plaintext)
}

func TestCryptoService_InvalidKey(t *testing.T) {
	_, err := core.NewCryptoService("too-short")
	assert.ErrorIs(t, err, core.ErrInvalidEncryptionKey)
}

func TestCryptoService_WrongKey(t *testing.T) {
	crypto := newTestCrypto(t)
	other, err := core.NewCryptoService("abcdefghijklmnopqrstuvwxyz012345")
	require.NoError(t, err)

	ciphertext, err := crypto.EncryptToken(storage.AdminUser1, "secret")
	require.NoError(t, err)

	_, err = other.DecryptToken(storage.AdminUser1, ciphertext)
	assert.Error(t, err)

	_, err = crypto.DecryptToken(storage.AdminUser1, "c2hvcnQ=")
	assert.ErrorIs(t, err, core.ErrInvalidCiphertext)

	_, err = crypto.DecryptToken(storage.AdminUser1, "not base64!")
	assert.ErrorIs(t, err, core.ErrInvalidCiphertext)
}

func TestCryptoService_TokenBoundToUser(t *testing.T) {
	crypto := newTestCrypto(t)

	ciphertext, err := crypto.EncryptToken(storage.AdminUser1, "secret")
	require.NoError(t, err)

	_, err = crypto.DecryptToken(storage.AdminUser2, ciphertext)
	assert.Error(t, err)
}

func TestCryptoService_SealAndOpenProfile(t *testing.T) {
	crypto := newTestCrypto(t)
	profile := &core.UserProfile{UserID: storage.AdminUser2, Name: "Jane", AccessToken: "T1", RefreshToken: "T2"}

	sealed, err := crypto.SealProfile(profile)
	require.NoError(t, err)
	assert.Equal(t, "T1", profile.AccessToken, "input must not be modified")
	assert.NotEqual(t, "T1", sealed.AccessToken)
	assert.NotEqual(t, "T2", sealed.RefreshToken)
	assert.Equal(t, "Jane", sealed.Name)

	opened, err := crypto.OpenProfile(sealed)
	require.NoError(t, err)
	assert.Equal(t, profile, opened)

	sealed.UserID = storage.AdminUser1
	_, err = crypto.OpenProfile(sealed)
	assert.Error(t, err)
}

func TestCryptoService_OpenSeededProfile(t *testing.T) {
	opened, err := newTestCrypto(t).OpenProfile(storage.Profile1)
	require.NoError(t, err)
	assert.Equal(t, "mock_access_token_1", opened.AccessToken)
}
