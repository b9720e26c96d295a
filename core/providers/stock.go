package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"stockd/core"
)

const (
	stockSearchPath  = "/Rest/Media/1/Search/Files"
	stockProfilePath = "/Rest/Libraries/1/Member/Profile"
	stockLicensePath = "/Rest/Libraries/1/Content/License"

	DefaultRelatedLimit = 4
	DefaultLicenseType  = "Standard"
)

type StockConfig struct {
	APIURL      string `yaml:"api_url" env:"API_URL"`
	APIKey      string `yaml:"api_key" env:"API_KEY"`
	ProductName string `yaml:"product_name" env:"PRODUCT_NAME"`
	Locale      string `yaml:"locale" env:"LOCALE"`
	Timeout     int    `yaml:"timeout" env:"TIMEOUT"` // Seconds, 30 when unset
}

type StockClient struct {
	config     *StockConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewStockClient(config *StockConfig, logger *zap.Logger) *StockClient {
	timeout := 30 * time.Second
	if config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}

	return &StockClient{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type stockSearchResponse struct {
	NbResults int              `json:"nb_results"`
	Files     []map[string]any `json:"files"`
}

type stockProfileResponse struct {
	AvailableEntitlement struct {
		Quota                int `json:"quota"`
		FullEntitlementQuota struct {
			ImageQuota int `json:"image_quota"`
		} `json:"full_entitlement_quota"`
	} `json:"available_entitlement"`
}

type stockLicenseResponse struct {
	Contents map[string]struct {
		PurchaseDetails struct {
			State string `json:"state"`
			URL   string `json:"url"`
		} `json:"purchase_details"`
	} `json:"contents"`
}

func (c *StockClient) Search(ctx context.Context, accessToken string, criteria *core.SearchCriteria) (*core.DocumentSearchResult, error) {
	params := c.searchParams(criteria)

	var resp stockSearchResponse
	if err := c.getJSON(ctx, stockSearchPath, params, accessToken, &resp); err != nil {
		return nil, err
	}

	result := &core.DocumentSearchResult{
		Items:      make([]*core.Document, 0, len(resp.Files)),
		TotalCount: resp.NbResults,
	}
	for _, file := range resp.Files {
		doc, err := StockFileToDocument(file)
		if err != nil {
			c.logger.Error("Create attributes process failed",
				zap.String("severity", "critical"),
				zap.Error(err),
			)
			return nil, err
		}
		result.Items = append(result.Items, doc)
	}

	return result, nil
}

func (c *StockClient) GetQuota(ctx context.Context, accessToken string) (*core.Quota, error) {
	params := url.Values{}
	params.Set("locale", c.locale())

	var resp stockProfileResponse
	if err := c.getJSON(ctx, stockProfilePath, params, accessToken, &resp); err != nil {
		return nil, err
	}

	return &core.Quota{
		Credits: resp.AvailableEntitlement.Quota,
		Images:  resp.AvailableEntitlement.FullEntitlementQuota.ImageQuota,
	}, nil
}

func (c *StockClient) GetRelatedImages(ctx context.Context, accessToken string, imageID int64, limit int) (*core.RelatedImages, error) {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}

	sameSeries, err := c.related(ctx, accessToken, "serie_id", imageID, limit)
	if err != nil {
		return nil, err
	}

	sameModel, err := c.related(ctx, accessToken, "model_id", imageID, limit)
	if err != nil {
		return nil, err
	}

	return &core.RelatedImages{
		SameSeries: sameSeries,
		SameModel:  sameModel,
	}, nil
}

func (c *StockClient) related(ctx context.Context, accessToken, param string, imageID int64, limit int) ([]core.RelatedImage, error) {
	params := url.Values{}
	params.Set("locale", c.locale())
	params.Set("search_parameters["+param+"]", strconv.FormatInt(imageID, 10))
	params.Set("search_parameters[limit]", strconv.Itoa(limit))

	var resp stockSearchResponse
	if err := c.getJSON(ctx, stockSearchPath, params, accessToken, &resp); err != nil {
		return nil, err
	}

	images := make([]core.RelatedImage, 0, len(resp.Files))
	for _, file := range resp.Files {
		doc, err := StockFileToDocument(file)
		if err != nil {
			return nil, err
		}
		asset, err := core.DocumentToAsset(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrStockResponse, err)
		}
		images = append(images, core.RelatedImage{
			ID:           asset.MediaID,
			Title:        asset.Title,
			ThumbnailURL: asset.PreviewURL,
		})
	}
	return images, nil
}

func (c *StockClient) License(ctx context.Context, accessToken string, mediaID int64) (string, error) {
	contentID := strconv.FormatInt(mediaID, 10)

	params := url.Values{}
	params.Set("content_id", contentID)
	params.Set("license", DefaultLicenseType)
	params.Set("locale", c.locale())

	var resp stockLicenseResponse
	if err := c.getJSON(ctx, stockLicensePath, params, accessToken, &resp); err != nil {
		return "", err
	}

	content, ok := resp.Contents[contentID]
	if !ok || content.PurchaseDetails.URL == "" {
		return "", fmt.Errorf("%w: no download url for content %s", core.ErrStockResponse, contentID)
	}

	return content.PurchaseDetails.URL, nil
}

// Download returns the body of url, the caller closes it.
func (c *StockClient) Download(ctx context.Context, accessToken string, fileURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStockRequest, err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStockRequest, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", core.ErrStockRequest, resp.StatusCode, string(body))
	}

	return resp.Body, nil
}

func (c *StockClient) searchParams(criteria *core.SearchCriteria) url.Values {
	params := url.Values{}
	params.Set("locale", c.locale())

	if criteria.PageSize > 0 {
		params.Set("search_parameters[limit]", strconv.Itoa(criteria.PageSize))
	}
	if offset := criteria.Offset(); offset > 0 {
		params.Set("search_parameters[offset]", strconv.Itoa(offset))
	}
	if criteria.Words != "" {
		params.Set("search_parameters[words]", criteria.Words)
	}

	for _, f := range criteria.Filters {
		if f.ConditionType() != core.ConditionEq {
			continue
		}
		value := fmt.Sprint(f.Value)
		if f.Field == core.AttributeMediaID {
			params.Set("search_parameters[media_id]", value)
			continue
		}
		params.Set("search_parameters[filters]["+f.Field+"]", value)
	}

	for _, order := range criteria.SortOrders {
		params.Set("search_parameters[order]", order.Field)
	}

	return params
}

func (c *StockClient) getJSON(ctx context.Context, path string, params url.Values, accessToken string, dest any) error {
	endpoint := strings.TrimSuffix(c.config.APIURL, "/") + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStockRequest, err)
	}

	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("x-product", c.config.ProductName)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStockRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", core.ErrStockRequest, resp.StatusCode, string(body))
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStockResponse, err)
	}

	return nil
}

func (c *StockClient) locale() string {
	if c.config.Locale == "" {
		return "en_US"
	}
	return c.config.Locale
}
