package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/weichen-dev/taosync/internal/history"
	"github.com/weichen-dev/taosync/internal/models"
	"github.com/weichen-dev/taosync/internal/scraper"
)

// ProductScraper is the slice of the scraper the API needs.
type ProductScraper interface {
	Scrape(ctx context.Context, rawURL string) (*models.ProductRecord, error)
}

// Uploader is the slice of the store client the API needs.
type Uploader interface {
	Upload(ctx context.Context, rec models.ProductRecord) models.UploadResult
	TestConnection(ctx context.Context) error
	DetailedTest(ctx context.Context) []string
}

// UploaderFactory builds an uploader for the currently saved credentials.
// Credentials can change between requests, so clients are built per call.
type UploaderFactory func(creds models.Credentials) Uploader

// CredentialStore is the slice of the credential store the API needs.
type CredentialStore interface {
	Save(c models.Credentials) error
	Load() (*models.Credentials, error)
	Clear() error
}

type Handlers struct {
	scraper     ProductScraper
	credentials CredentialStore
	newUploader UploaderFactory
	history     history.Store
	logger      *slog.Logger
}

func NewHandlers(
	s ProductScraper,
	creds CredentialStore,
	factory UploaderFactory,
	hist history.Store,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		scraper:     s,
		credentials: creds,
		newUploader: factory,
		history:     hist,
		logger:      logger.With("component", "api"),
	}
}

type scrapeRequest struct {
	URL string `json:"url"`
}

// HandleScrape fetches and parses a listing without touching the store.
func (h *Handlers) HandleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a url field")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "url is required")
		return
	}

	record, err := h.scraper.Scrape(r.Context(), req.URL)
	if err != nil {
		code := scraper.ErrorCode(err)
		h.logger.Warn("scrape failed", "url", req.URL, "code", code, "error", err)
		respondError(w, scrapeStatus(code), code, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, record)
}

func scrapeStatus(code string) int {
	switch code {
	case "invalid_url":
		return http.StatusBadRequest
	case "network":
		return http.StatusBadGateway
	case "incomplete_data":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// HandleUpload pushes a (possibly user-edited) record to the configured
// store. The outcome, success or failure, is a 200 with an UploadResult and
// lands in history either way.
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	var rec models.ProductRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body must be a product record")
		return
	}
	if !rec.UploadEligible() {
		respondError(w, http.StatusUnprocessableEntity, "not_eligible",
			"record needs a title and at least a price or one image")
		return
	}

	creds, err := h.credentials.Load()
	if err != nil {
		h.logger.Error("loading credentials", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "could not load credentials")
		return
	}
	if creds == nil {
		respondError(w, http.StatusConflict, "no_credentials", "no store credentials configured")
		return
	}

	result := h.newUploader(*creds).Upload(r.Context(), rec)

	entry := history.NewEntry(rec.URL, rec.Title, result)
	if err := h.history.Add(r.Context(), entry); err != nil {
		h.logger.Error("recording history", "error", err)
	}

	respondJSON(w, http.StatusOK, result)
}

// HandleSaveCredentials validates and stores the submitted credentials.
func (h *Handlers) HandleSaveCredentials(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body must be a credentials object")
		return
	}
	if err := h.credentials.Save(creds); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_credentials", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// HandleGetCredentials returns the saved credentials with the secret masked.
func (h *Handlers) HandleGetCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := h.credentials.Load()
	if err != nil {
		h.logger.Error("loading credentials", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "could not load credentials")
		return
	}
	if creds == nil {
		respondError(w, http.StatusNotFound, "no_credentials", "no store credentials configured")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"site_url":        creds.SiteURL,
		"consumer_key":    creds.ConsumerKey,
		"consumer_secret": maskSecret(creds.ConsumerSecret),
	})
}

func (h *Handlers) HandleDeleteCredentials(w http.ResponseWriter, r *http.Request) {
	if err := h.credentials.Clear(); err != nil {
		h.logger.Error("clearing credentials", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "could not clear credentials")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTestCredentials probes the store with the saved credentials and
// returns a per-endpoint report.
func (h *Handlers) HandleTestCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := h.credentials.Load()
	if err != nil {
		h.logger.Error("loading credentials", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "could not load credentials")
		return
	}
	if creds == nil {
		respondError(w, http.StatusConflict, "no_credentials", "no store credentials configured")
		return
	}

	client := h.newUploader(*creds)
	connErr := client.TestConnection(r.Context())

	response := map[string]any{
		"ok":     connErr == nil,
		"report": client.DetailedTest(r.Context()),
	}
	if connErr != nil {
		response["error"] = connErr.Error()
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *Handlers) HandleListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.history.List(r.Context())
	if err != nil {
		h.logger.Error("listing history", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "could not read history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handlers) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.history.Clear(r.Context()); err != nil {
		h.logger.Error("clearing history", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "could not clear history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// maskSecret keeps a short prefix so the user can recognize which key is
// stored without exposing it.
func maskSecret(secret string) string {
	if len(secret) <= 6 {
		return "******"
	}
	return secret[:6] + strings.Repeat("*", len(secret)-6)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}
