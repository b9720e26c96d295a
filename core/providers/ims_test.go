package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockd/core"
)

type imsServer struct {
	*httptest.Server
	tokenForms []map[string]string
	tokenBody  string
	tokenCode  int
	authHeader string
	apiKey     string
}

func newIMSServer(t *testing.T) *imsServer {
	t.Helper()

	s := &imsServer{
		tokenBody: `{"access_token":"T1","refresh_token":"T2","token_type":"bearer","expires_in":86399}`,
		tokenCode: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ims/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form := map[string]string{}
		for key := range r.PostForm {
			form[key] = r.PostForm.Get(key)
		}
		s.tokenForms = append(s.tokenForms, form)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.tokenCode)
		w.Write([]byte(s.tokenBody))
	})
	mux.HandleFunc("/ims/profile", func(w http.ResponseWriter, r *http.Request) {
		s.authHeader = r.Header.Get("Authorization")
		s.apiKey = r.Header.Get("X-Api-Key")
		if s.authHeader != "Bearer T1" {
			http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"name": "Jane Doe", "email": "jane@example.com"})
	})
	mux.HandleFunc("/ims/image", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{
				"images": map[string]string{
					"50":  "https://a.test/50.png",
					"276": "https://a.test/276.png",
					"100": "https://a.test/100.png",
				},
			},
		})
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *imsServer) provider() *IMSProvider {
	return NewIMSProvider(&IMSConfig{
		APIKey:          "client-id",
		PrivateKey:      "client-secret",
		TokenURL:        s.URL + "/ims/token",
		ProfileURL:      s.URL + "/ims/profile",
		ProfileImageURL: s.URL + "/ims/image",
	})
}

func TestIMSProvider_ExchangeCode(t *testing.T) {
	server := newIMSServer(t)

	tokens, err := server.provider().ExchangeCode(context.Background(), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "T1", tokens.AccessToken)
	assert.Equal(t, "T2", tokens.RefreshToken)
	require.NotNil(t, tokens.Expiry)

	require.Len(t, server.tokenForms, 1)
	form := server.tokenForms[0]
	assert.Equal(t, "authorization_code", form["grant_type"])
	assert.Equal(t, "auth-code", form["code"])
	assert.Equal(t, "client-id", form["client_id"])
	assert.Equal(t, "client-secret", form["client_secret"])
}

func TestIMSProvider_ExchangeCode_WithoutLifetime(t *testing.T) {
	server := newIMSServer(t)
	server.tokenBody = `{"access_token":"T1","refresh_token":"T2"}`

	tokens, err := server.provider().ExchangeCode(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "T1", tokens.AccessToken)
	assert.Nil(t, tokens.Expiry)
}

func TestIMSProvider_ExchangeCode_Failures(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
	}{
		{"error status", http.StatusBadRequest, `{"error":"invalid_grant"}`},
		{"server error", http.StatusInternalServerError, `oops`},
		{"malformed body", http.StatusOK, `{"access_token":`},
		{"missing access token", http.StatusOK, `{"refresh_token":"T2"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newIMSServer(t)
			server.tokenCode = tt.code
			server.tokenBody = tt.body

			_, err := server.provider().ExchangeCode(context.Background(), "auth-code")
			assert.ErrorIs(t, err, core.ErrProviderTokenExchange)
			assert.ErrorIs(t, err, core.ErrIntegration)
		})
	}
}

func TestIMSProvider_ExchangeCode_EmptyCode(t *testing.T) {
	server := newIMSServer(t)

	_, err := server.provider().ExchangeCode(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrProviderTokenExchange)
	assert.Empty(t, server.tokenForms)
}

func TestIMSProvider_RefreshAccessToken(t *testing.T) {
	server := newIMSServer(t)
	server.tokenBody = `{"access_token":"T3","expires_in":3600}`

	tokens, err := server.provider().RefreshAccessToken(context.Background(), "T2")
	require.NoError(t, err)

	assert.Equal(t, "T3", tokens.AccessToken)
	assert.Equal(t, "T2", tokens.RefreshToken)

	require.Len(t, server.tokenForms, 1)
	assert.Equal(t, "refresh_token", server.tokenForms[0]["grant_type"])
	assert.Equal(t, "T2", server.tokenForms[0]["refresh_token"])
}

func TestIMSProvider_RefreshAccessToken_Failure(t *testing.T) {
	server := newIMSServer(t)
	server.tokenCode = http.StatusBadRequest
	server.tokenBody = `{"error":"invalid_grant"}`

	_, err := server.provider().RefreshAccessToken(context.Background(), "T2")
	assert.ErrorIs(t, err, core.ErrProviderRefreshToken)
}

func TestIMSProvider_GetUserInfo(t *testing.T) {
	server := newIMSServer(t)

	info, err := server.provider().GetUserInfo(context.Background(), "T1")
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", info.Name)
	assert.Equal(t, "jane@example.com", info.Email)
	assert.Equal(t, "Bearer T1", server.authHeader)
	assert.Equal(t, "client-id", server.apiKey)

	_, err = server.provider().GetUserInfo(context.Background(), "expired")
	assert.ErrorIs(t, err, core.ErrProviderUserInfo)
}

func TestIMSProvider_GetImage(t *testing.T) {
	server := newIMSServer(t)

	image, err := server.provider().GetImage(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "https://a.test/276.png", image)
}

func TestIMSProvider_GetImage_Unreachable(t *testing.T) {
	server := newIMSServer(t)
	provider := server.provider()
	server.Close()

	_, err := provider.GetImage(context.Background(), "T1")
	assert.ErrorIs(t, err, core.ErrProviderUserImage)
}

func TestLargestImage(t *testing.T) {
	assert.Equal(t, "", LargestImage(nil))
	assert.Equal(t, "b", LargestImage(map[string]string{"100": "a", "115": "b", "bad": "c"}))
	assert.Equal(t, "", LargestImage(map[string]string{"bad": "c"}))
}
