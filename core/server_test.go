package core_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockd/core"
	"stockd/core/providers"
	"stockd/storage"
)

type uiResponse struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	ErrorMessage string          `json:"error_message"`
	Result       json.RawMessage `json:"result"`
}

func makeRequest(method, path string, body interface{}) (*http.Request, *httptest.ResponseRecorder) {
	var bodyReader *bytes.Reader

	switch v := body.(type) {
	case string:
		bodyReader = bytes.NewReader([]byte(v))
	case nil:
		bodyReader = bytes.NewReader([]byte{})
	default:
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	return req, w
}

// serveAs sends the request through the full router with an admin session.
func serveAs(t *testing.T, f *fixture, userID int64, req *http.Request, w *httptest.ResponseRecorder) uiResponse {
	t.Helper()

	req.Header.Set("Authorization", "Bearer "+adminToken(t, f.config, userID))
	f.server.Routes().ServeHTTP(w, req)

	var resp uiResponse
	if w.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return resp
}

func TestRoutes_RequireAdminSession(t *testing.T) {
	f := newFixture(t)
	routes := f.server.Routes()

	for _, path := range []string{core.RouteProfile, core.RouteSearch, core.RouteQuota, core.RouteSignIn, core.RouteCallback} {
		req, w := makeRequest(http.MethodGet, path, nil)
		routes.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	req, w := makeRequest(http.MethodGet, core.RouteProfile, nil)
	req.Header.Set("Authorization", "Bearer invalid_jwt_token")
	routes.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req, w = makeRequest(http.MethodGet, core.RouteProfile, nil)
	req.Header.Set("Authorization", "InvalidFormat")
	routes.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_AdminCookie(t *testing.T) {
	f := newFixture(t)

	req, w := makeRequest(http.MethodGet, core.RouteProfile, nil)
	req.AddCookie(&http.Cookie{Name: core.AdminTokenCookie, Value: adminToken(t, f.config, storage.AdminUser1)})
	f.server.Routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_RequestID(t *testing.T) {
	f := newFixture(t)

	req, w := makeRequest(http.MethodGet, core.RouteHealth, nil)
	f.server.Routes().ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req, w = makeRequest(http.MethodGet, core.RouteHealth, nil)
	req.Header.Set("X-Request-ID", "req-123")
	f.server.Routes().ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestHandleCallback_Success(t *testing.T) {
	f := newFixture(t)

	req, w := makeRequest(http.MethodGet, core.RouteCallback+"?code="+providers.ValidCode2, nil)
	serveAs(t, f, storage.AdminUser2, req, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "auth[code=success;message=Login successful]", w.Body.String())
	assert.True(t, f.ims.IsAuthorized(adminCtx(storage.AdminUser2)))
}

func TestHandleCallback_Failure(t *testing.T) {
	f := newFixture(t)

	req, w := makeRequest(http.MethodGet, core.RouteCallback+"?code=bogus", nil)
	serveAs(t, f, storage.AdminUser2, req, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "auth[code=error;message="+core.MsgLoginFailed+"]", w.Body.String())
	assert.NotContains(t, w.Body.String(), "invalid_grant")
	assert.Len(t, criticalLogs(f.logs), 1)
}

func TestHandleCallback_MissingCode(t *testing.T) {
	f := newFixture(t)

	req, w := makeRequest(http.MethodGet, core.RouteCallback, nil)
	serveAs(t, f, storage.AdminUser2, req, w)

	assert.Equal(t, "auth[code=error;message="+core.MsgCallbackCodeMissing+"]", w.Body.String())
	assert.Equal(t, 0, f.idp.ExchangeCodeCalls)
}

func TestHandleProfile_Success(t *testing.T) {
	f := newFixture(t)

	req, w := makeRequest(http.MethodGet, core.RouteProfile, nil)
	resp := serveAs(t, f, storage.AdminUser1, req, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	var result map[string]string
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, providers.User1.Email, result["email"])
	assert.Equal(t, providers.User1.Name, result["name"])
	assert.Equal(t, providers.Image1, result["image"])
}

func TestHandleProfile_NotSignedIn(t *testing.T) {
	f := newFixture(t)

	req, w := makeRequest(http.MethodGet, core.RouteProfile, nil)
	resp := serveAs(t, f, storage.AdminUser2, req, w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, core.MsgNotAuthorized, resp.Message)
}

func TestHandleProfile_LookupFailure(t *testing.T) {
	f := newFixture(t)

	req, w := makeRequest(http.MethodGet, core.RouteProfile, nil)
	resp := serveAs(t, f, storage.AdminUserNoKey, req, w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, core.MsgProfileFailed, resp.Message)
	assert.Len(t, criticalLogs(f.logs), 1)
}

func TestHandleProfile_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	req, w := makeRequest(http.MethodPost, core.RouteProfile, nil)
	serveAs(t, f, storage.AdminUser1, req, w)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleLogout(t *testing.T) {
	f := newFixture(t)

	req, w := makeRequest(http.MethodPost, core.RouteLogout, nil)
	resp := serveAs(t, f, storage.AdminUser1, req, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.False(t, f.ims.IsAuthorized(adminCtx(storage.AdminUser1)))
}

func TestHandleSignInConfig(t *testing.T) {
	f := newFixture(t)

	t.Run("signed in", func(t *testing.T) {
		req, w := makeRequest(http.MethodGet, core.RouteSignIn, nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t, f.config, storage.AdminUser1))
		f.server.Routes().ServeHTTP(w, req)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		user := resp["user"].(map[string]any)
		assert.Equal(t, true, user["isAuthorized"])
		assert.Equal(t, providers.User1.Email, user["email"])

		login := resp["loginConfig"].(map[string]any)
		assert.Equal(t, f.config.SignIn.AuthURL, login["url"])
		params := login["callbackParsingParams"].(map[string]any)
		assert.Equal(t, core.CallbackRegexpPattern, params["regexpPattern"])
		assert.Equal(t, "success", params["successCode"])
	})

	t.Run("not signed in", func(t *testing.T) {
		req, w := makeRequest(http.MethodGet, core.RouteSignIn, nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t, f.config, storage.AdminUserNoKey))
		f.server.Routes().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		user := resp["user"].(map[string]any)
		assert.Equal(t, false, user["isAuthorized"])
		assert.Equal(t, f.config.SignIn.DefaultProfileImage, user["image"])
	})
}

func TestHandleSearch(t *testing.T) {
	f := newFixture(t)

	req, w := makeRequest(http.MethodGet, core.RouteSearch+"?words=forest&limit=10", nil)
	resp := serveAs(t, f, storage.AdminUser1, req, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	var result core.DocumentSearchResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Items, 4)
	assert.Equal(t, float64(1), result.Items[0].CustomAttributes[core.AttributeIsDownloaded].Value)
	assert.Equal(t, storage.Asset1.Path, result.Items[0].CustomAttributes[core.AttributePath].Value)
	assert.Equal(t, float64(0), result.Items[1].CustomAttributes[core.AttributeIsDownloaded].Value)
}

func TestHandleSearch_InvalidMediaID(t *testing.T) {
	f := newFixture(t)

	req, w := makeRequest(http.MethodGet, core.RouteSearch+"?media_id=abc", nil)
	serveAs(t, f, storage.AdminUser1, req, w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, f.stock.SearchCalls)
}

func TestHandleSearch_IntegrationFailure(t *testing.T) {
	f := newFixture(t)
	f.stock.Err = core.ErrStockRequest

	req, w := makeRequest(http.MethodGet, core.RouteSearch, nil)
	resp := serveAs(t, f, storage.AdminUser1, req, w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, core.MsgSearchFailed, resp.Message)
	assert.Len(t, criticalLogs(f.logs), 1)
}

func TestHandleDownload_Success(t *testing.T) {
	f := newFixture(t)

	body := map[string]any{"media_id": 200, "destination_path": "stock/forest.jpg"}
	req, w := makeRequest(http.MethodPost, core.RouteDownload, body)
	resp := serveAs(t, f, storage.AdminUser1, req, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, core.MsgDownloadSuccessful, resp.Message)
	assert.Equal(t, "preview-200", f.files.files["stock/forest.jpg"])
}

func TestHandleDownload_NotFound(t *testing.T) {
	f := newFixture(t)

	for _, mediaID := range []int64{99, 42} {
		body := map[string]any{"media_id": mediaID, "destination_path": "stock/x.jpg"}
		req, w := makeRequest(http.MethodPost, core.RouteDownload, body)
		resp := serveAs(t, f, storage.AdminUser1, req, w)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, resp.Success)
		assert.Equal(t, core.MsgImageNotFound, resp.Message)
	}
	assert.Empty(t, criticalLogs(f.logs))
}

func TestHandleDownload_IntegrationFailure(t *testing.T) {
	f := newFixture(t)
	delete(f.stock.Files, previewURL200)

	body := map[string]any{"media_id": 200, "destination_path": "stock/forest.jpg"}
	req, w := makeRequest(http.MethodPost, core.RouteDownload, body)
	resp := serveAs(t, f, storage.AdminUser1, req, w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, core.MsgDownloadFailed, resp.Message)
	assert.NotContains(t, w.Body.String(), "404")

	critical := criticalLogs(f.logs)
	require.Len(t, critical, 1)
	assert.Contains(t, critical[0].Message, "An error occurred during image download")
}

func TestHandleDownload_InvalidBody(t *testing.T) {
	f := newFixture(t)

	req, w := makeRequest(http.MethodPost, core.RouteDownload, "invalid json")
	serveAs(t, f, storage.AdminUser1, req, w)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := map[string]any{"media_id": 200, "destination_path": "../escape.jpg"}
	req, w = makeRequest(http.MethodPost, core.RouteDownload, body)
	serveAs(t, f, storage.AdminUser1, req, w)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSave_NonPositiveMediaID(t *testing.T) {
	f := newFixture(t)

	bodies := []map[string]any{
		{"destination_path": "stock/x.jpg"},
		{"media_id": 0, "destination_path": "stock/x.jpg"},
		{"media_id": -1, "destination_path": "stock/x.jpg"},
	}
	for _, route := range []string{core.RouteDownload, core.RouteLicense} {
		for _, body := range bodies {
			req, w := makeRequest(http.MethodPost, route, body)
			resp := serveAs(t, f, storage.AdminUser1, req, w)

			assert.Equal(t, http.StatusBadRequest, w.Code, route)
			assert.False(t, resp.Success)
			assert.NotEqual(t, core.MsgImageNotFound, resp.Message)
		}
	}
	assert.Equal(t, 0, f.stock.SearchCalls)
	assert.Equal(t, 0, f.stock.LicenseCalls)
	assert.Equal(t, 0, f.repo.SaveAssetCalls)
}

func TestHandleDownload_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	req, w := makeRequest(http.MethodGet, core.RouteDownload, nil)
	serveAs(t, f, storage.AdminUser1, req, w)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleLicense(t *testing.T) {
	f := newFixture(t)

	body := map[string]any{"media_id": 200, "destination_path": "licensed/forest.jpg"}
	req, w := makeRequest(http.MethodPost, core.RouteLicense, body)
	resp := serveAs(t, f, storage.AdminUser1, req, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, core.MsgLicenseSuccessful, resp.Message)
	assert.Equal(t, "full-200", f.files.files["licensed/forest.jpg"])
}

func TestHandleLicense_NotSignedIn(t *testing.T) {
	f := newFixture(t)

	body := map[string]any{"media_id": 200, "destination_path": "licensed/forest.jpg"}
	req, w := makeRequest(http.MethodPost, core.RouteLicense, body)
	serveAs(t, f, storage.AdminUser2, req, w)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleQuota(t *testing.T) {
	f := newFixture(t)

	req, w := makeRequest(http.MethodGet, core.RouteQuota, nil)
	resp := serveAs(t, f, storage.AdminUser1, req, w)

	assert.Equal(t, http.StatusOK, w.Code)
	var quota core.Quota
	require.NoError(t, json.Unmarshal(resp.Result, &quota))
	assert.Equal(t, core.Quota{Credits: 1, Images: 2}, quota)
}

func TestHandleRelatedImages(t *testing.T) {
	f := newFixture(t)
	f.stock.Related = &core.RelatedImages{
		SameModel: []core.RelatedImage{{ID: 300, Title: "Same model", ThumbnailURL: "https://mock.test/300.jpg"}},
	}

	req, w := makeRequest(http.MethodGet, core.RouteRelated+"?image_id=200&limit=2", nil)
	resp := serveAs(t, f, storage.AdminUser1, req, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, core.MsgRelatedSuccessful, resp.Message)

	var related core.RelatedImages
	require.NoError(t, json.Unmarshal(resp.Result, &related))
	require.Len(t, related.SameModel, 1)
	assert.Equal(t, int64(300), related.SameModel[0].ID)

	req, w = makeRequest(http.MethodGet, core.RouteRelated+"?image_id=x", nil)
	serveAs(t, f, storage.AdminUser1, req, w)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(t)

	req, w := makeRequest(http.MethodGet, core.RouteHealth, nil)

	f.server.HandleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	assert.Equal(t, "ok", resp["status"])
}
