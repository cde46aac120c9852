package uploader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/weichen-dev/taosync/internal/models"
)

// AuthError indicates the connectivity check was rejected with an
// authentication or permission failure. Upload fails fast on it without
// touching the media or product endpoints.
type AuthError struct {
	StatusCode int
}

func (e AuthError) Error() string {
	if e.StatusCode == 403 {
		return "authentication failed: API key lacks the required permissions (HTTP 403)"
	}
	return fmt.Sprintf("authentication failed: check consumer key and secret (HTTP %d)", e.StatusCode)
}

type Options struct {
	Timeout time.Duration
	// ExternalImages skips media staging and references the source image URLs
	// directly in the product payload. Avoids media-library permission issues.
	ExternalImages bool
}

// Client talks to one WooCommerce store over the wc/v3 REST API using
// consumer key/secret basic auth. All failures from Upload come back as
// UploadResult data; no error crosses that boundary.
type Client struct {
	baseURL        string
	api            *resty.Client
	download       *resty.Client
	externalImages bool
	logger         *slog.Logger
}

func New(creds models.Credentials, opts Options, logger *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(creds.SiteURL, "/")

	api := resty.New()
	api.SetTimeout(opts.Timeout)
	api.SetBasicAuth(creds.ConsumerKey, creds.ConsumerSecret)
	api.SetHeader("Accept", "application/json")

	download := resty.New()
	download.SetTimeout(opts.Timeout)
	download.SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	return &Client{
		baseURL:        baseURL,
		api:            api,
		download:       download,
		externalImages: opts.ExternalImages,
		logger:         logger.With("component", "uploader"),
	}
}

// APIClient and DownloadClient expose the HTTP clients so tests can swap
// their transports.
func (c *Client) APIClient() *resty.Client      { return c.api }
func (c *Client) DownloadClient() *resty.Client { return c.download }

func (c *Client) wcURL(path string) string {
	return c.baseURL + "/wp-json/wc/v3/" + path
}

func (c *Client) wpURL(path string) string {
	return c.baseURL + "/wp-json/wp/v2/" + path
}

// TestConnection issues a lightweight read against the products endpoint.
// Returns AuthError on 401/403, a descriptive error otherwise, nil on success.
func (c *Client) TestConnection(ctx context.Context) error {
	resp, err := c.api.R().
		SetContext(ctx).
		SetQueryParam("per_page", "1").
		Get(c.wcURL("products"))
	if err != nil {
		return fmt.Errorf("cannot reach store: %w", err)
	}

	switch resp.StatusCode() {
	case 200:
		return nil
	case 401, 403:
		return AuthError{StatusCode: resp.StatusCode()}
	case 404:
		return fmt.Errorf("REST API endpoint not found: check the site URL (HTTP 404)")
	default:
		return fmt.Errorf("connection check failed: HTTP %d", resp.StatusCode())
	}
}

// DetailedTest probes the endpoints an upload touches and returns one report
// line per probe. Used by the credential test action in the UI.
func (c *Client) DetailedTest(ctx context.Context) []string {
	var report []string

	probe := func(label, url string) {
		resp, err := c.api.R().SetContext(ctx).SetQueryParam("per_page", "1").Get(url)
		switch {
		case err != nil:
			report = append(report, fmt.Sprintf("%s: unreachable (%v)", label, err))
		case resp.StatusCode() == 200:
			report = append(report, fmt.Sprintf("%s: ok", label))
		default:
			report = append(report, fmt.Sprintf("%s: HTTP %d", label, resp.StatusCode()))
		}
	}

	probe("product list", c.wcURL("products"))
	probe("product categories", c.wcURL("products/categories"))

	if c.externalImages {
		report = append(report, "media library: skipped (external image mode)")
	} else {
		probe("media library", c.wpURL("media"))
	}

	var status struct {
		Environment struct {
			WPVersion string `json:"wp_version"`
			WCVersion string `json:"wc_version"`
		} `json:"environment"`
	}
	resp, err := c.api.R().SetContext(ctx).SetResult(&status).Get(c.wcURL("system_status"))
	if err == nil && resp.StatusCode() == 200 {
		report = append(report, fmt.Sprintf("system: WordPress %s, WooCommerce %s",
			status.Environment.WPVersion, status.Environment.WCVersion))
	} else {
		report = append(report, "system status: not readable with this key")
	}

	return report
}

// Upload creates the product on the store. It never returns an error: every
// failure mode is folded into the UploadResult, image-staging failures first,
// then the creation outcome.
func (c *Client) Upload(ctx context.Context, rec models.ProductRecord) models.UploadResult {
	c.logger.Info("uploading product", "title", rec.Title, "images", len(rec.Images))

	if err := c.TestConnection(ctx); err != nil {
		return models.UploadResult{
			Success:      false,
			ErrorMessage: err.Error(),
		}
	}

	var images []wcImage
	var failed []string
	if c.externalImages {
		images = externalImageRefs(rec.Images)
	} else {
		images, failed = c.stageImages(ctx, rec.Images)
	}

	payload := buildProduct(rec, images)

	var created struct {
		ID        json.Number `json:"id"`
		Permalink string      `json:"permalink"`
	}
	resp, err := c.api.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&created).
		Post(c.wcURL("products"))

	result := models.UploadResult{
		StagedImages: len(images),
		FailedImages: failed,
	}

	if err != nil {
		result.ErrorMessage = composeError(failed, fmt.Sprintf("product creation failed: %v", err))
		return result
	}
	if resp.StatusCode() != 201 {
		result.ErrorMessage = composeError(failed, "product creation failed: "+apiErrorMessage(resp))
		return result
	}

	result.Success = true
	result.RemoteID = created.ID.String()
	result.ProductURL = created.Permalink
	if len(failed) > 0 {
		result.ErrorMessage = composeError(failed, "")
	}

	c.logger.Info("product created", "remoteID", result.RemoteID, "failedImages", len(failed))
	return result
}

// stageImages downloads each source image and pushes it to the WordPress
// media library. Per-image failures are skipped and recorded; a partial set
// is acceptable.
func (c *Client) stageImages(ctx context.Context, sources []string) ([]wcImage, []string) {
	var staged []wcImage
	var failed []string

	for i, src := range sources {
		mediaID, err := c.stageImage(ctx, src, i)
		if err != nil {
			c.logger.Warn("image staging failed", "url", src, "error", err)
			failed = append(failed, src)
			continue
		}
		staged = append(staged, wcImage{
			ID:  mediaID,
			Alt: fmt.Sprintf("product image %d", i+1),
		})
	}

	return staged, failed
}

func (c *Client) stageImage(ctx context.Context, src string, index int) (int64, error) {
	dl, err := c.download.R().SetContext(ctx).Get(src)
	if err != nil {
		return 0, fmt.Errorf("download: %w", err)
	}
	if dl.StatusCode() != 200 {
		return 0, fmt.Errorf("download: HTTP %d", dl.StatusCode())
	}
	contentType := dl.Header().Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return 0, fmt.Errorf("not an image: content type %q", contentType)
	}

	filename := fmt.Sprintf("product-image-%d-%d.jpg", time.Now().Unix(), index+1)

	var media struct {
		ID json.Number `json:"id"`
	}
	up, err := c.api.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename)).
		SetBody(dl.Body()).
		SetResult(&media).
		Post(c.wpURL("media"))
	if err != nil {
		return 0, fmt.Errorf("media upload: %w", err)
	}
	if up.StatusCode() != 201 {
		return 0, fmt.Errorf("media upload: HTTP %d", up.StatusCode())
	}

	id, err := media.ID.Int64()
	if err != nil {
		return 0, fmt.Errorf("media upload: bad id in response: %w", err)
	}
	return id, nil
}

// composeError puts staging failures ahead of the creation outcome so partial
// image failures stay visible either way.
func composeError(failed []string, creation string) string {
	var parts []string
	if len(failed) > 0 {
		parts = append(parts, fmt.Sprintf("%d image(s) could not be staged", len(failed)))
	}
	if creation != "" {
		parts = append(parts, creation)
	}
	return strings.Join(parts, "; ")
}

// apiErrorMessage extracts the human-readable message WooCommerce puts in
// error bodies, falling back to a body snippet.
func apiErrorMessage(resp *resty.Response) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Message != "" {
		return fmt.Sprintf("%s (HTTP %d)", body.Message, resp.StatusCode())
	}

	snippet := strings.TrimSpace(resp.String())
	if runes := []rune(snippet); len(runes) > 200 {
		snippet = string(runes[:200])
	}
	if snippet == "" {
		return fmt.Sprintf("HTTP %d", resp.StatusCode())
	}
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), snippet)
}
