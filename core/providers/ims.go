package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"stockd/core"
)

type IMSConfig struct {
	APIKey          string `yaml:"api_key" env:"API_KEY"`
	PrivateKey      string `yaml:"private_key" env:"PRIVATE_KEY"`
	TokenURL        string `yaml:"token_url" env:"TOKEN_URL"`
	ProfileURL      string `yaml:"profile_url" env:"PROFILE_URL"`
	ProfileImageURL string `yaml:"profile_image_url" env:"PROFILE_IMAGE_URL"`
	Timeout         int    `yaml:"timeout" env:"TIMEOUT"` // Seconds, 10 when unset
}

type IMSProvider struct {
	config     *IMSConfig
	oauth      *oauth2.Config
	httpClient *http.Client
}

func NewIMSProvider(config *IMSConfig) *IMSProvider {
	timeout := 10 * time.Second
	if config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}

	return &IMSProvider{
		config: config,
		oauth: &oauth2.Config{
			ClientID:     config.APIKey,
			ClientSecret: config.PrivateKey,
			Endpoint: oauth2.Endpoint{
				TokenURL:  config.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: timeout},
	}
}

type imsUserInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type imsUserImages struct {
	User struct {
		Images map[string]string `json:"images"`
	} `json:"user"`
}

func (p *IMSProvider) ExchangeCode(ctx context.Context, code string) (*core.TokenPair, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty authorization code", core.ErrProviderTokenExchange)
	}

	token, err := p.oauth.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderTokenExchange, describeOAuthError(err))
	}

	return tokenPair(token), nil
}

func (p *IMSProvider) RefreshAccessToken(ctx context.Context, refreshToken string) (*core.TokenPair, error) {
	source := p.oauth.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})

	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderRefreshToken, describeOAuthError(err))
	}

	return tokenPair(token), nil
}

func (p *IMSProvider) GetUserInfo(ctx context.Context, accessToken string) (*core.UserInfo, error) {
	var userInfo imsUserInfo
	if err := p.getJSON(ctx, p.config.ProfileURL, accessToken, &userInfo); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderUserInfo, err)
	}

	return &core.UserInfo{
		Name:  userInfo.Name,
		Email: userInfo.Email,
	}, nil
}

func (p *IMSProvider) GetImage(ctx context.Context, accessToken string) (string, error) {
	var images imsUserImages
	if err := p.getJSON(ctx, p.config.ProfileImageURL, accessToken, &images); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrProviderUserImage, err)
	}

	return LargestImage(images.User.Images), nil
}

// LargestImage picks the url stored under the biggest pixel size key.
func LargestImage(images map[string]string) string {
	bestSize := -1
	best := ""
	for sizeStr, url := range images {
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			continue
		}
		if size > bestSize {
			bestSize = size
			best = url
		}
	}
	return best
}

func (p *IMSProvider) getJSON(ctx context.Context, url, accessToken string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Api-Key", p.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}

func (p *IMSProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func tokenPair(token *oauth2.Token) *core.TokenPair {
	pair := &core.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		pair.Expiry = &expiry
	}
	return pair
}

func describeOAuthError(err error) string {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return fmt.Sprintf("status %d: %s", retrieveErr.Response.StatusCode, string(retrieveErr.Body))
	}
	return err.Error()
}
