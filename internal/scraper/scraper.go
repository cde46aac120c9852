package scraper

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/weichen-dev/taosync/internal/models"
	"github.com/weichen-dev/taosync/internal/parser"
)

var offerURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://detail\.1688\.com/offer/\d+\.html`),
	regexp.MustCompile(`^https?://m\.1688\.com/offer/\d+\.html`),
	regexp.MustCompile(`^https?://[^/]*\.1688\.com/.*offer`),
}

var productIDPattern = regexp.MustCompile(`offer/(\d+)`)

// errBlocked marks a fetch that technically succeeded but returned a login
// wall, captcha page or error status instead of the listing.
var errBlocked = errors.New("page blocked")

// ValidateURL reports whether raw matches a known 1688 offer link format,
// desktop or mobile.
func ValidateURL(raw string) bool {
	for _, pattern := range offerURLPatterns {
		if pattern.MatchString(raw) {
			return true
		}
	}
	return false
}

// ExtractProductID pulls the numeric offer id out of a listing URL.
func ExtractProductID(raw string) string {
	match := productIDPattern.FindStringSubmatch(raw)
	if len(match) > 1 {
		return match[1]
	}
	return ""
}

type Options struct {
	Timeout    time.Duration
	UserAgents []string
	CacheSize  int
}

// Scraper fetches 1688 offer pages and derives product records from them.
// The desktop page is the primary source; when it is blocked or yields an
// incomplete record the mobile variant is fetched exactly once and merged in.
type Scraper struct {
	client     *resty.Client
	parser     parser.Parser
	cache      *lru.Cache[string, models.ProductRecord]
	userAgents []string
	logger     *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Scraper {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = DefaultUserAgents()
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	cache, _ := lru.New[string, models.ProductRecord](opts.CacheSize)

	return &Scraper{
		client:     client,
		parser:     parser.NewAlibabaParser(),
		cache:      cache,
		userAgents: opts.UserAgents,
		logger:     logger.With("component", "scraper"),
	}
}

// Client exposes the underlying HTTP client so tests can swap its transport.
func (s *Scraper) Client() *resty.Client {
	return s.client
}

// Scrape fetches the listing at rawURL and returns a normalized record.
// Failures surface as InvalidURLError, NetworkError or IncompleteDataError.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*models.ProductRecord, error) {
	if !ValidateURL(rawURL) {
		return nil, InvalidURLError{URL: rawURL}
	}

	if cached, ok := s.cache.Get(rawURL); ok {
		s.logger.Info("cache hit", "url", rawURL)
		record := cached
		return &record, nil
	}

	primary, primaryErr := s.fetchAndParse(ctx, rawURL)
	if primaryErr != nil {
		s.logger.Warn("primary fetch failed", "url", rawURL, "error", primaryErr)
	}

	merged := primary
	mobileURL := mobileVariant(rawURL)
	if mobileURL != "" && (primary == nil || !primary.Complete()) {
		s.logger.Info("falling back to mobile variant", "url", mobileURL)
		fallback, fallbackErr := s.fetchAndParse(ctx, mobileURL)
		if fallbackErr != nil {
			s.logger.Warn("mobile fetch failed", "url", mobileURL, "error", fallbackErr)
		}
		if primary == nil && fallback == nil {
			return nil, s.fetchError(rawURL, primaryErr, fallbackErr)
		}
		merged = parser.Merge(primary, fallback)
	}

	if merged == nil {
		return nil, s.fetchError(rawURL, primaryErr, nil)
	}

	if !merged.HasTitle() || (!merged.HasPrice() && !merged.HasImages()) {
		return nil, IncompleteDataError{URL: rawURL}
	}

	description := merged.Description
	if description == "" {
		// Some listings carry no extractable copy at all.
		description = merged.Title + "。详细信息请查看原商品页面。"
	}

	record := &models.ProductRecord{
		URL:            rawURL,
		ProductID:      ExtractProductID(rawURL),
		Title:          merged.Title,
		Price:          merged.Price,
		PriceText:      merged.PriceText,
		Description:    description,
		Images:         merged.Images,
		Specifications: merged.Specifications,
		ScrapedAt:      time.Now(),
	}

	s.cache.Add(rawURL, *record)

	s.logger.Info("scraped product",
		"url", rawURL,
		"title", record.Title,
		"imageCount", len(record.Images),
		"specCount", len(record.Specifications),
	)

	return record, nil
}

// fetchError decides which typed error to report when no pass produced a
// record. A blocked page means we reached the site, so that counts as
// incomplete data rather than a network failure.
func (s *Scraper) fetchError(rawURL string, primaryErr, fallbackErr error) error {
	for _, err := range []error{primaryErr, fallbackErr} {
		if err != nil && errors.Is(err, errBlocked) {
			return IncompleteDataError{URL: rawURL}
		}
	}
	err := primaryErr
	if err == nil {
		err = fallbackErr
	}
	return NetworkError{URL: rawURL, Err: err}
}

func (s *Scraper) fetchAndParse(ctx context.Context, pageURL string) (*models.PartialRecord, error) {
	html, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return s.parser.ParsePage(html, pageURL)
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"User-Agent":                s.userAgents[rand.Intn(len(s.userAgents))],
			"Referer":                   "https://www.1688.com/",
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language":           "zh-CN,zh;q=0.9,en;q=0.8",
			"Upgrade-Insecure-Requests": "1",
			"Cache-Control":             "no-cache",
		}).
		Get(pageURL)
	if err != nil {
		return "", err
	}

	finalURL := pageURL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		finalURL = resp.RawResponse.Request.URL.String()
	}

	// Redirects to the passport domain mean the listing needs a login.
	if strings.Contains(finalURL, "login") || strings.Contains(finalURL, "passport") {
		return "", errBlocked
	}
	if resp.StatusCode() >= 400 {
		return "", errBlocked
	}

	body := resp.String()
	if strings.Contains(body, "验证码") || strings.Contains(body, "captcha") || strings.Contains(body, "人机验证") {
		return "", errBlocked
	}

	return body, nil
}

// mobileVariant returns the m.1688.com form of a desktop offer URL, or ""
// when the URL has no distinct mobile variant.
func mobileVariant(rawURL string) string {
	if !strings.Contains(rawURL, "detail.1688.com") {
		return ""
	}
	return strings.Replace(rawURL, "detail.1688.com", "m.1688.com", 1)
}

func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
	}
}
