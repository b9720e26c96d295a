package integration_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

type mockImsUser struct {
	Email string
	Name  string
	Image string
}

var mockImsUsers = map[string]mockImsUser{
	"valid_code_1": {
		Email: "user1@example.com",
		Name:  "Test User 1",
		Image: "https://example.com/avatar1_276.jpg",
	},
	"valid_code_2": {
		Email: "user2@example.com",
		Name:  "Test User 2",
		Image: "https://example.com/avatar2_276.jpg",
	},
}

type mockStockFile struct {
	ID       int64
	Title    string
	SerieID  int64
	Category string
}

var mockStockFiles = []mockStockFile{
	{ID: 101, Title: "Sunset over the sea", SerieID: 1, Category: "Landscapes"},
	{ID: 200, Title: "Forest trail", SerieID: 1, Category: "Landscapes"},
	{ID: 300, Title: "City at night", SerieID: 2, Category: "Cities"},
}

// MockAdobeServer serves both the IMS endpoints and the Stock API.
type MockAdobeServer struct {
	server *httptest.Server

	mu            sync.Mutex
	accessTokens  map[string]mockImsUser
	refreshTokens map[string]mockImsUser
	licensed      map[int64]bool
}

func NewMockAdobeServer() *MockAdobeServer {
	m := &MockAdobeServer{
		accessTokens:  make(map[string]mockImsUser),
		refreshTokens: make(map[string]mockImsUser),
		licensed:      make(map[int64]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ims/token", m.handleToken)
	mux.HandleFunc("/ims/profile", m.handleProfile)
	mux.HandleFunc("/ims/image", m.handleImage)
	mux.HandleFunc("/Rest/Media/1/Search/Files", m.handleSearch)
	mux.HandleFunc("/Rest/Libraries/1/Member/Profile", m.handleQuota)
	mux.HandleFunc("/Rest/Libraries/1/Content/License", m.handleLicense)
	mux.HandleFunc("/files/", m.handleFile)

	m.server = httptest.NewServer(mux)
	return m
}

func (m *MockAdobeServer) URL() string {
	return m.server.URL
}

func (m *MockAdobeServer) Close() {
	m.server.Close()
}

func (m *MockAdobeServer) Licensed(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.licensed[id]
}

func (m *MockAdobeServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	var (
		user mockImsUser
		ok   bool
		key  string
	)
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		key = r.PostForm.Get("code")
		user, ok = mockImsUsers[key]
	case "refresh_token":
		key = "refreshed_" + r.PostForm.Get("refresh_token")
		m.mu.Lock()
		user, ok = m.refreshTokens[r.PostForm.Get("refresh_token")]
		m.mu.Unlock()
	}
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	accessToken := "access_" + key
	refreshToken := "refresh_" + key
	m.mu.Lock()
	m.accessTokens[accessToken] = user
	m.refreshTokens[refreshToken] = user
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    86399,
		"token_type":    "bearer",
	})
}

func (m *MockAdobeServer) user(r *http.Request) (mockImsUser, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.accessTokens[token]
	return user, ok
}

func (m *MockAdobeServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := m.user(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": user.Name, "email": user.Email})
}

func (m *MockAdobeServer) handleImage(w http.ResponseWriter, r *http.Request) {
	user, ok := m.user(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"images": map[string]string{
				"50":  strings.Replace(user.Image, "_276", "_50", 1),
				"276": user.Image,
			},
		},
	})
}

func (m *MockAdobeServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mediaID, _ := strconv.ParseInt(query.Get("search_parameters[media_id]"), 10, 64)
	sameSerieAs, _ := strconv.ParseInt(query.Get("search_parameters[serie_id]"), 10, 64)
	words := strings.ToLower(query.Get("search_parameters[words]"))

	files := []map[string]any{}
	for _, file := range mockStockFiles {
		switch {
		case mediaID > 0 && file.ID != mediaID:
			continue
		case sameSerieAs > 0 && (file.ID == sameSerieAs || file.SerieID != m.serieOf(sameSerieAs)):
			continue
		case query.Has("search_parameters[model_id]"):
			continue
		case words != "" && !strings.Contains(strings.ToLower(file.Title), words):
			continue
		}
		files = append(files, m.fileJSON(file))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"nb_results": len(files),
		"files":      files,
	})
}

func (m *MockAdobeServer) serieOf(id int64) int64 {
	for _, file := range mockStockFiles {
		if file.ID == id {
			return file.SerieID
		}
	}
	return 0
}

func (m *MockAdobeServer) fileJSON(file mockStockFile) map[string]any {
	return map[string]any{
		"id":                file.ID,
		"title":             file.Title,
		"thumbnail_240_url": fmt.Sprintf("%s/files/preview/%d.jpg", m.server.URL, file.ID),
		"width":             1000,
		"height":            667,
		"content_type":      "image/jpeg",
		"is_licensed":       "",
		"premium_level_id":  nil,
		"category":          map[string]any{"id": 1000 + file.SerieID, "name": file.Category},
	}
}

func (m *MockAdobeServer) handleQuota(w http.ResponseWriter, r *http.Request) {
	if _, ok := m.user(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available_entitlement": map[string]any{
			"quota":                  10,
			"full_entitlement_quota": map[string]int{"image_quota": 5},
		},
	})
}

func (m *MockAdobeServer) handleLicense(w http.ResponseWriter, r *http.Request) {
	if _, ok := m.user(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		return
	}

	contentID := r.URL.Query().Get("content_id")
	id, _ := strconv.ParseInt(contentID, 10, 64)

	m.mu.Lock()
	m.licensed[id] = true
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"contents": map[string]any{
			contentID: map[string]any{
				"purchase_details": map[string]string{
					"state": "just_purchased",
					"url":   fmt.Sprintf("%s/files/full/%s.jpg", m.server.URL, contentID),
				},
			},
		},
	})
}

func (m *MockAdobeServer) handleFile(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/files/full/") {
		if _, ok := m.user(r); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}
	w.Header().Set("Content-Type", "image/jpeg")
	fmt.Fprintf(w, "bytes of %s", strings.TrimPrefix(r.URL.Path, "/files/"))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
