package core

import (
	"time"
)

// Attribute codes attached to search result documents
const (
	AttributeIDFieldName  = "id_field_name"
	AttributeIsDownloaded = "is_downloaded"
	AttributePath         = "path"
	AttributeMediaID      = "media_id"
	AttributeTitle        = "title"
	AttributeCategory     = "category"
	AttributeCategoryID   = "category_id"
	AttributeCategoryName = "category_name"
	AttributeContentType  = "content_type"
	AttributeWidth        = "width"
	AttributeHeight       = "height"
	AttributeThumbnailURL = "thumbnail_240_url"
)

// TokenPair is the result of an authorization code exchange
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	Expiry       *time.Time // Nil when the provider did not report a lifetime
}

// UserProfile is the IMS identity linked to one local admin account
type UserProfile struct {
	UserID       int64 // Local admin user id, at most one profile per user
	Name         string
	Email        string
	Image        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserInfo is the profile data returned by the identity provider
type UserInfo struct {
	Name  string
	Email string
	Image string
}

// AttributeValue is one custom attribute of a search document
type AttributeValue struct {
	Code  string `json:"attribute_code"`
	Value any    `json:"value"`
}

// Document is one remote asset in a search result page
type Document struct {
	ID               int64                     `json:"id"`
	CustomAttributes map[string]AttributeValue `json:"custom_attributes"`
}

func NewDocument(id int64) *Document {
	return &Document{
		ID:               id,
		CustomAttributes: make(map[string]AttributeValue),
	}
}

// SetCustomAttribute overwrites any previous value stored under the same code.
func (d *Document) SetCustomAttribute(code string, value any) {
	if d.CustomAttributes == nil {
		d.CustomAttributes = make(map[string]AttributeValue)
	}
	d.CustomAttributes[code] = AttributeValue{Code: code, Value: value}
}

func (d *Document) GetCustomAttribute(code string) (AttributeValue, bool) {
	attr, ok := d.CustomAttributes[code]
	return attr, ok
}

// DocumentSearchResult is a page of remote documents
type DocumentSearchResult struct {
	Items      []*Document `json:"items"`
	TotalCount int         `json:"total_count"`
}

// Asset is a locally known (downloaded or licensed) marketplace image
type Asset struct {
	MediaID      int64 // Marketplace asset id, unique in the local store
	Path         string
	Title        string
	CategoryID   int64
	CategoryName string
	ContentType  string
	Width        int
	Height       int
	PreviewURL   string
	IsLicensed   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AssetSearchResult is a page of local assets
type AssetSearchResult struct {
	Items      []*Asset
	TotalCount int
}

// Quota is the remaining license entitlement of the signed in IMS user
type Quota struct {
	Credits int `json:"credits"`
	Images  int `json:"images"`
}

// RelatedImage is a short description of a related marketplace image
type RelatedImage struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// RelatedImages groups images from the same series and the same model
type RelatedImages struct {
	SameSeries []RelatedImage `json:"same_series"`
	SameModel  []RelatedImage `json:"same_model"`
}
