package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weichen-dev/taosync/internal/credentials"
	"github.com/weichen-dev/taosync/internal/history"
	"github.com/weichen-dev/taosync/internal/models"
	"github.com/weichen-dev/taosync/internal/scraper"
)

type fakeScraper struct {
	record *models.ProductRecord
	err    error
}

func (f *fakeScraper) Scrape(ctx context.Context, rawURL string) (*models.ProductRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec := *f.record
	rec.URL = rawURL
	return &rec, nil
}

type fakeUploader struct {
	result  models.UploadResult
	connErr error
	got     *models.ProductRecord
}

func (f *fakeUploader) Upload(ctx context.Context, rec models.ProductRecord) models.UploadResult {
	f.got = &rec
	return f.result
}

func (f *fakeUploader) TestConnection(ctx context.Context) error { return f.connErr }

func (f *fakeUploader) DetailedTest(ctx context.Context) []string {
	return []string{"product list: ok"}
}

type fixture struct {
	scraper  *fakeScraper
	uploader *fakeUploader
	creds    *credentials.Store
	history  *history.MemoryStore
	router   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		scraper:  &fakeScraper{},
		uploader: &fakeUploader{},
		creds:    credentials.NewStore(filepath.Join(t.TempDir(), "credentials.json")),
		history:  history.NewMemoryStore(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandlers(f.scraper, f.creds,
		func(models.Credentials) Uploader { return f.uploader },
		f.history, logger)
	f.router = h.Routes(nil)
	return f
}

func (f *fixture) saveCredentials(t *testing.T) {
	t.Helper()
	require.NoError(t, f.creds.Save(models.Credentials{
		SiteURL:        "https://shop.example.com",
		ConsumerKey:    "ck_0123456789abcdef",
		ConsumerSecret: "cs_0123456789abcdef",
	}))
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func widgetRecord() *models.ProductRecord {
	return &models.ProductRecord{
		Title:          "Widget",
		Price:          9.99,
		Images:         []string{"https://cbu01.alicdn.com/a.jpg", "https://cbu01.alicdn.com/b.jpg"},
		Specifications: map[string]string{"color": "red"},
	}
}

func TestHandleScrape(t *testing.T) {
	f := newFixture(t)
	f.scraper.record = widgetRecord()

	rec := f.do(t, "POST", "/api/v1/scrape",
		map[string]string{"url": "https://detail.1688.com/offer/123.html"})

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.ProductRecord](t, rec)
	assert.Equal(t, "Widget", got.Title)
	assert.InDelta(t, 9.99, got.Price, 0.001)
	assert.Equal(t, "https://detail.1688.com/offer/123.html", got.URL)
}

func TestHandleScrapeErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid url", scraper.InvalidURLError{URL: "x"}, http.StatusBadRequest, "invalid_url"},
		{"network failure", scraper.NetworkError{URL: "x"}, http.StatusBadGateway, "network"},
		{"incomplete data", scraper.IncompleteDataError{URL: "x"}, http.StatusUnprocessableEntity, "incomplete_data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.scraper.err = tt.err

			rec := f.do(t, "POST", "/api/v1/scrape",
				map[string]string{"url": "https://detail.1688.com/offer/123.html"})

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode[map[string]string](t, rec)
			assert.Equal(t, tt.wantCode, body["code"])
		})
	}
}

func TestHandleScrapeMissingURL(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/v1/scrape", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUploadSuccess(t *testing.T) {
	f := newFixture(t)
	f.saveCredentials(t)
	f.uploader.result = models.UploadResult{
		Success:      true,
		RemoteID:     "456",
		StagedImages: 2,
	}

	record := widgetRecord()
	record.URL = "https://detail.1688.com/offer/123.html"
	rec := f.do(t, "POST", "/api/v1/upload", record)

	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[models.UploadResult](t, rec)
	assert.True(t, result.Success)
	assert.Equal(t, "456", result.RemoteID)

	require.NotNil(t, f.uploader.got)
	assert.Equal(t, "Widget", f.uploader.got.Title)

	entries, err := f.history.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Widget", entries[0].Title)
	assert.True(t, entries[0].Result.Success)
}

func TestHandleUploadAuthFailure(t *testing.T) {
	f := newFixture(t)
	f.saveCredentials(t)
	f.uploader.result = models.UploadResult{
		Success:      false,
		ErrorMessage: "authentication failed: check consumer key and secret (HTTP 401)",
	}

	rec := f.do(t, "POST", "/api/v1/upload", widgetRecord())

	// Upload failures are still a 200; the outcome is in the result body.
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[models.UploadResult](t, rec)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "auth")

	entries, err := f.history.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Result.Success)
}

func TestHandleUploadWithoutCredentials(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/v1/upload", widgetRecord())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleUploadIneligibleRecord(t *testing.T) {
	f := newFixture(t)
	f.saveCredentials(t)

	rec := f.do(t, "POST", "/api/v1/upload", &models.ProductRecord{Title: "No price or images"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCredentialLifecycle(t *testing.T) {
	f := newFixture(t)

	// Nothing configured yet.
	rec := f.do(t, "GET", "/api/v1/credentials", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Save.
	rec = f.do(t, "PUT", "/api/v1/credentials", models.Credentials{
		SiteURL:        "https://shop.example.com",
		ConsumerKey:    "ck_0123456789abcdef",
		ConsumerSecret: "cs_0123456789abcdef",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Read back with the secret masked.
	rec = f.do(t, "GET", "/api/v1/credentials", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "https://shop.example.com", body["site_url"])
	assert.Equal(t, "ck_0123456789abcdef", body["consumer_key"])
	assert.NotEqual(t, "cs_0123456789abcdef", body["consumer_secret"])
	assert.Contains(t, body["consumer_secret"], "*")

	// Delete.
	rec = f.do(t, "DELETE", "/api/v1/credentials", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, "GET", "/api/v1/credentials", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveInvalidCredentials(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "PUT", "/api/v1/credentials", models.Credentials{
		SiteURL:        "not-a-url",
		ConsumerKey:    "ck_0123456789abcdef",
		ConsumerSecret: "cs_0123456789abcdef",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTestCredentials(t *testing.T) {
	f := newFixture(t)
	f.saveCredentials(t)

	rec := f.do(t, "POST", "/api/v1/credentials/test", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["ok"])
	assert.NotEmpty(t, body["report"])
}

func TestHistoryEndpoints(t *testing.T) {
	f := newFixture(t)

	// Empty history is an empty array, not null.
	rec := f.do(t, "GET", "/api/v1/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	entry := history.NewEntry("https://detail.1688.com/offer/1.html", "Widget",
		models.UploadResult{Success: true, RemoteID: "456"})
	require.NoError(t, f.history.Add(context.Background(), entry))

	rec = f.do(t, "GET", "/api/v1/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]history.Entry](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "Widget", entries[0].Title)

	rec = f.do(t, "DELETE", "/api/v1/history", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, "GET", "/api/v1/history", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "healthy", body["status"])
}
