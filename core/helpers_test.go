package core_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"stockd/core"
	"stockd/core/providers"
	"stockd/storage"
)

const testJWTSecret = "test-secret-key-for-testing-purposes-only"

const (
	previewURL200 = "https://mock.test/preview/200.jpg"
	fullURL200    = "https://mock.test/full/200.jpg"
)

func testConfig() *core.Config {
	return &core.Config{
		JWT: core.JWTConfig{
			Secret:              testJWTSecret,
			AccessTokenDuration: 1800,
		},
		Crypto: core.CryptoConfig{EncryptionKey: storage.TestEncryptionKey},
		SignIn: core.SignInConfig{
			AuthURL:             "https://ims.mock.test/authorize",
			DefaultProfileImage: "https://mock.test/default.png",
		},
	}
}

func stockDoc(id int64, title, thumbnail string) *core.Document {
	doc := core.NewDocument(id)
	doc.SetCustomAttribute(core.AttributeIDFieldName, "id")
	doc.SetCustomAttribute("id", id)
	doc.SetCustomAttribute(core.AttributeTitle, title)
	doc.SetCustomAttribute(core.AttributeThumbnailURL, thumbnail)
	doc.SetCustomAttribute(core.AttributeCategoryID, int64(1043))
	doc.SetCustomAttribute(core.AttributeCategoryName, "Landscapes")
	doc.SetCustomAttribute(core.AttributeContentType, "image/jpeg")
	doc.SetCustomAttribute(core.AttributeWidth, int64(500))
	doc.SetCustomAttribute(core.AttributeHeight, int64(300))
	return doc
}

// memFiles is an in-memory core.FileStorage
type memFiles struct {
	mu    sync.Mutex
	files map[string]string
	err   error
}

func newMemFiles() *memFiles {
	return &memFiles{files: map[string]string{}}
}

func (m *memFiles) Save(ctx context.Context, path string, body io.Reader) error {
	if m.err != nil {
		return m.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = buf.String()
	return nil
}

func (m *memFiles) Delete(ctx context.Context, path string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

type fixture struct {
	config *core.Config
	repo   *storage.MockRepository
	idp    *providers.MockIdentityProvider
	stock  *providers.MockStockClient
	files  *memFiles
	logs   *observer.ObservedLogs

	ims    *core.ImsService
	assets *core.AssetListService
	lookup *core.AssetLookup
	images *core.ImageService
	server *core.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	config := testConfig()
	crypto, err := core.NewCryptoService(config.Crypto.EncryptionKey)
	require.NoError(t, err)

	observed, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(observed)

	stock := providers.NewMockStockClient(
		stockDoc(storage.Asset1.MediaID, storage.Asset1.Title, storage.Asset1.PreviewURL),
		stockDoc(200, "Forest trail", previewURL200),
		stockDoc(42, "Duplicate A", "https://mock.test/preview/42a.jpg"),
		stockDoc(42, "Duplicate B", "https://mock.test/preview/42b.jpg"),
	)
	stock.LicenseURLs[200] = fullURL200
	stock.Files[previewURL200] = "preview-200"
	stock.Files[fullURL200] = "full-200"

	f := &fixture{
		config: config,
		repo:   storage.NewMockRepository(),
		idp:    providers.NewMockIdentityProvider(),
		stock:  stock,
		files:  newMemFiles(),
		logs:   logs,
	}

	f.ims = core.NewImsService(f.repo, f.idp, crypto, logger)
	f.assets = core.NewAssetListService(f.stock, f.ims, core.NewAssetEnricher(f.repo))
	f.lookup = core.NewAssetLookup(f.assets, logger)
	f.images = core.NewImageService(f.stock, f.ims, f.lookup, f.repo, f.files)
	f.server = core.NewServer(f.ims, f.assets, f.images, config, core.NewTranslator("en-US"), logger)

	return f
}

func adminCtx(userID int64) context.Context {
	return core.WithAdminUserID(context.Background(), userID)
}

func adminToken(t *testing.T, config *core.Config, userID int64) string {
	t.Helper()
	token, err := core.GenerateAdminToken(userID, &config.JWT)
	require.NoError(t, err)
	return token
}

func criticalLogs(logs *observer.ObservedLogs) []observer.LoggedEntry {
	var entries []observer.LoggedEntry
	for _, entry := range logs.All() {
		if fmt.Sprint(entry.ContextMap()["severity"]) == "critical" {
			entries = append(entries, entry)
		}
	}
	return entries
}
