package core

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// AccessTokenProvider resolves the IMS access token of the current admin, "" when absent
type AccessTokenProvider interface {
	GetAccessToken(ctx context.Context) (string, error)
}

// AssetEnricher attaches local download state to remote search documents
type AssetEnricher struct {
	loader AssetLoader
}

func NewAssetEnricher(loader AssetLoader) *AssetEnricher {
	return &AssetEnricher{loader: loader}
}

// AppendAttributes sets is_downloaded and path on every document, in place,
// using one bulk lookup for the whole page. Nil documents are skipped.
func (e *AssetEnricher) AppendAttributes(ctx context.Context, items []*Document) ([]*Document, error) {
	if len(items) == 0 {
		return items, nil
	}

	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		ids = append(ids, item.ID)
	}

	assets, err := e.loader.LoadByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load local assets: %w", err)
	}

	for _, item := range items {
		if item == nil {
			continue
		}
		asset, ok := assets[item.ID]
		if !ok {
			item.SetCustomAttribute(AttributeIsDownloaded, 0)
			item.SetCustomAttribute(AttributePath, "")
			continue
		}
		item.SetCustomAttribute(AttributeIsDownloaded, 1)
		item.SetCustomAttribute(AttributePath, asset.Path)
	}

	return items, nil
}

// AssetListService searches the marketplace and enriches the page with local state
type AssetListService struct {
	client   StockClient
	tokens   AccessTokenProvider
	enricher *AssetEnricher
}

func NewAssetListService(client StockClient, tokens AccessTokenProvider, enricher *AssetEnricher) *AssetListService {
	return &AssetListService{
		client:   client,
		tokens:   tokens,
		enricher: enricher,
	}
}

func (s *AssetListService) Search(ctx context.Context, criteria *SearchCriteria) (*DocumentSearchResult, error) {
	accessToken, err := s.tokens.GetAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	result, err := s.client.Search(ctx, accessToken, criteria)
	if err != nil {
		return nil, err
	}

	if result.Items, err = s.enricher.AppendAttributes(ctx, result.Items); err != nil {
		return nil, err
	}

	return result, nil
}

// AssetLookup resolves a marketplace asset by its id through a filtered search
type AssetLookup struct {
	searcher DocumentSearcher
	logger   *zap.Logger
}

func NewAssetLookup(searcher DocumentSearcher, logger *zap.Logger) *AssetLookup {
	return &AssetLookup{
		searcher: searcher,
		logger:   logger,
	}
}

// GetAssetByID requires exactly one match. No match is ErrNotFound,
// several matches are ErrAmbiguousMatch which is also ErrNotFound.
func (l *AssetLookup) GetAssetByID(ctx context.Context, mediaID int64) (*Asset, error) {
	// Two rows are enough to tell one match from many
	criteria := NewSearchCriteria().
		AddFilter(AttributeMediaID, mediaID, ConditionEq).
		SetPage(1, 2)

	result, err := l.searcher.Search(ctx, criteria)
	if err != nil {
		return nil, err
	}

	switch len(result.Items) {
	case 0:
		return nil, fmt.Errorf("%w: requested image %d doesn't exist", ErrNotFound, mediaID)
	case 1:
		return DocumentToAsset(result.Items[0])
	default:
		l.logger.Warn("several assets share one media id",
			zap.Int64("media_id", mediaID),
			zap.Int("matches", len(result.Items)),
		)
		return nil, fmt.Errorf("%w: requested image %d doesn't exist", ErrAmbiguousMatch, mediaID)
	}
}

// DocumentToAsset converts an enriched search document into a typed asset.
func DocumentToAsset(doc *Document) (*Asset, error) {
	if doc == nil || doc.ID <= 0 {
		return nil, fmt.Errorf("%w: document has no id", ErrInvalidArgument)
	}

	asset := &Asset{
		MediaID:      doc.ID,
		Title:        stringAttribute(doc, AttributeTitle),
		CategoryID:   int64Attribute(doc, AttributeCategoryID),
		CategoryName: stringAttribute(doc, AttributeCategoryName),
		ContentType:  stringAttribute(doc, AttributeContentType),
		Width:        int(int64Attribute(doc, AttributeWidth)),
		Height:       int(int64Attribute(doc, AttributeHeight)),
		PreviewURL:   stringAttribute(doc, AttributeThumbnailURL),
		Path:         stringAttribute(doc, AttributePath),
	}

	return asset, nil
}

func stringAttribute(doc *Document, code string) string {
	attr, ok := doc.GetCustomAttribute(code)
	if !ok || attr.Value == nil {
		return ""
	}
	if s, ok := attr.Value.(string); ok {
		return s
	}
	return fmt.Sprint(attr.Value)
}

func int64Attribute(doc *Document, code string) int64 {
	attr, ok := doc.GetCustomAttribute(code)
	if !ok {
		return 0
	}
	switch v := attr.Value.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case fmt.Stringer:
		n, _ := strconv.ParseInt(v.String(), 10, 64)
		return n
	default:
		return 0
	}
}
