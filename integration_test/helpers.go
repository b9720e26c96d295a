package integration_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

type UIResponse struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	ErrorMessage string          `json:"error_message"`
	Result       json.RawMessage `json:"result"`
}

type ProfileResult struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

type SearchResult struct {
	Items []struct {
		ID               int64 `json:"id"`
		CustomAttributes map[string]struct {
			Value any `json:"value"`
		} `json:"custom_attributes"`
	} `json:"items"`
	TotalCount int `json:"total_count"`
}

type SignInConfig struct {
	User struct {
		IsAuthorized bool   `json:"isAuthorized"`
		Email        string `json:"email"`
		Image        string `json:"image"`
	} `json:"user"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

// adminClient talks to stockd on behalf of one signed in admin user.
type adminClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAdminClient(baseURL, token string) *adminClient {
	return &adminClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *adminClient) do(method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

func (c *adminClient) callback(code string) (*http.Response, error) {
	return c.do(http.MethodGet, "/adobe_ims/oauth/callback?code="+url.QueryEscape(code), nil)
}

func (c *adminClient) profile() (*http.Response, error) {
	return c.do(http.MethodGet, "/adobe_ims/user/profile", nil)
}

func (c *adminClient) logout() (*http.Response, error) {
	return c.do(http.MethodPost, "/adobe_ims/user/logout", nil)
}

func (c *adminClient) signInConfig() (*http.Response, error) {
	return c.do(http.MethodGet, "/adobe_ims/signin/config", nil)
}

func (c *adminClient) search(words string) (*http.Response, error) {
	return c.do(http.MethodGet, "/adobe_stock/search?words="+url.QueryEscape(words), nil)
}

func (c *adminClient) download(mediaID int64, destination string) (*http.Response, error) {
	return c.do(http.MethodPost, "/adobe_stock/preview/download", map[string]any{
		"media_id":         mediaID,
		"destination_path": destination,
	})
}

func (c *adminClient) license(mediaID int64, destination string) (*http.Response, error) {
	return c.do(http.MethodPost, "/adobe_stock/license", map[string]any{
		"media_id":         mediaID,
		"destination_path": destination,
	})
}

func (c *adminClient) quota() (*http.Response, error) {
	return c.do(http.MethodGet, "/adobe_stock/license/quota", nil)
}

func (c *adminClient) related(imageID int64) (*http.Response, error) {
	return c.do(http.MethodGet, fmt.Sprintf("/adobe_stock/preview/related?image_id=%d", imageID), nil)
}

func parseJSON(resp *http.Response, dest any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(dest)
}

func readBody(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return string(data), err
}

func attributeValue(result *SearchResult, mediaID int64, code string) any {
	for _, item := range result.Items {
		if item.ID == mediaID {
			return item.CustomAttributes[code].Value
		}
	}
	return nil
}

func countRows(dbPath, table string) (int, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
	return count, err
}

func storedAccessToken(dbPath string, userID int64) (string, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return "", err
	}
	defer db.Close()

	var token string
	err = db.QueryRow("SELECT access_token FROM ims_profiles WHERE user_id = ?", userID).Scan(&token)
	return token, err
}

func assetRow(dbPath string, mediaID int64) (path string, licensed bool, err error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return "", false, err
	}
	defer db.Close()

	err = db.QueryRow("SELECT path, is_licensed FROM stock_assets WHERE media_id = ?", mediaID).Scan(&path, &licensed)
	return path, licensed, err
}

func cleanDatabase(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec("DELETE FROM stock_assets"); err != nil {
		return err
	}
	_, err = db.Exec("DELETE FROM ims_profiles")
	return err
}

func waitForServer(baseURL string, maxAttempts int) error {
	client := &http.Client{Timeout: 1 * time.Second}
	for i := 0; i < maxAttempts; i++ {
		resp, err := client.Get(baseURL + "/health")
		if err == nil && resp.StatusCode == 200 {
			resp.Body.Close()
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("server failed to start after %d attempts", maxAttempts)
}
