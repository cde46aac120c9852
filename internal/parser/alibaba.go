package parser

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/weichen-dev/taosync/internal/models"
)

// AlibabaParser extracts product data from 1688.com offer pages. The markup
// differs between the desktop and mobile variants and changes frequently, so
// every field is resolved through a selector cascade with script-level
// fallbacks (JSON-LD, then inline JS state).
type AlibabaParser struct {
	titleScriptPatterns []*regexp.Regexp
	priceScriptPattern  *regexp.Regexp
	descScriptPatterns  []*regexp.Regexp
	imageScriptPattern  *regexp.Regexp
	specPairPattern     *regexp.Regexp
	priceValuePattern   *regexp.Regexp
	titleSuffixPatterns []*regexp.Regexp
}

func NewAlibabaParser() *AlibabaParser {
	return &AlibabaParser{
		titleScriptPatterns: []*regexp.Regexp{
			regexp.MustCompile(`"subject"\s*:\s*"([^"]{5,200})"`),
			regexp.MustCompile(`"title"\s*:\s*"([^"]{5,200})"`),
			regexp.MustCompile(`"productName"\s*:\s*"([^"]{5,200})"`),
			regexp.MustCompile(`"offerTitle"\s*:\s*"([^"]{5,200})"`),
		},
		priceScriptPattern: regexp.MustCompile(`"price[A-Za-z]*"\s*:\s*"?([¥￥$]?\s*[\d,]+\.?\d*)"?`),
		descScriptPatterns: []*regexp.Regexp{
			regexp.MustCompile(`"description"\s*:\s*"([^"]{20,500})"`),
			regexp.MustCompile(`"productDescription"\s*:\s*"([^"]{20,500})"`),
			regexp.MustCompile(`"desc"\s*:\s*"([^"]{20,500})"`),
		},
		imageScriptPattern: regexp.MustCompile(`https?://[^"'\s\\]+\.(?:jpg|jpeg|png|gif|webp)`),
		specPairPattern:    regexp.MustCompile(`"(?:name|attrName|key)"\s*:\s*"([^"]{1,50})"\s*,\s*"(?:value|attrValue|val)"\s*:\s*"([^"]{1,200})"`),
		priceValuePattern:  regexp.MustCompile(`[\d,]+\.?\d*`),
		titleSuffixPatterns: []*regexp.Regexp{
			regexp.MustCompile(`[-–—].*?(阿里巴巴|1688|批发网).*$`),
			regexp.MustCompile(`_.*?(阿里巴巴|1688).*$`),
		},
	}
}

func (p *AlibabaParser) ParsePage(html string, pageURL string) (*models.PartialRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	record := &models.PartialRecord{
		Title:          p.extractTitle(doc),
		Description:    p.extractDescription(doc),
		Images:         p.extractImages(doc, pageURL),
		Specifications: p.extractSpecifications(doc),
	}
	record.Price, record.PriceText = p.extractPrice(doc)

	return record, nil
}

var titleSelectors = []string{
	`[data-testid="product-title"]`,
	".offer-title",
	".product-title",
	".product-name",
	".detail-title",
	".offer-detail-title",
	"h1[data-spm-anchor-id]",
	".mod-detail-title h1",
	".mod-detail-title",
	"h1",
}

func (p *AlibabaParser) extractTitle(doc *goquery.Document) string {
	for _, selector := range titleSelectors {
		var title string
		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if isUsableText(text, 5, 200) {
				title = text
				return false
			}
			return true
		})
		if title != "" {
			return title
		}
	}

	// Page <title> with the marketplace suffix stripped.
	if pageTitle := strings.TrimSpace(doc.Find("title").First().Text()); pageTitle != "" {
		for _, pattern := range p.titleSuffixPatterns {
			pageTitle = strings.TrimSpace(pattern.ReplaceAllString(pageTitle, ""))
		}
		if len([]rune(pageTitle)) > 5 {
			return pageTitle
		}
	}

	if name := p.extractFromJSONLD(doc, "name"); isUsableText(name, 5, 200) {
		return name
	}

	return p.extractFromScripts(doc, p.titleScriptPatterns, 5)
}

var priceSelectors = []string{
	".price-range .price-value",
	".price .price-value",
	".mod-price .price-value",
	".offer-price .price-original",
	".price-original",
	".price-now",
	`[data-role="price"]`,
	".price-text",
}

func (p *AlibabaParser) extractPrice(doc *goquery.Document) (float64, string) {
	for _, selector := range priceSelectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text == "" {
			continue
		}
		if amount := p.parsePriceAmount(text); amount > 0 {
			return amount, text
		}
	}

	var amount float64
	var raw string
	doc.Find("script").EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(strings.ToLower(text), "price") {
			return true
		}
		matches := p.priceScriptPattern.FindStringSubmatch(text)
		if len(matches) > 1 {
			if v := p.parsePriceAmount(matches[1]); v > 0 {
				amount = v
				raw = strings.TrimSpace(matches[1])
				return false
			}
		}
		return true
	})

	return amount, raw
}

// parsePriceAmount pulls the first numeric value out of a price string like
// "¥ 9.99" or "12,800.00". Returns 0 when nothing numeric is present.
func (p *AlibabaParser) parsePriceAmount(text string) float64 {
	match := p.priceValuePattern.FindString(text)
	if match == "" {
		return 0
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0
	}
	return value
}

var imageSelectors = []string{
	".mod-detail-gallery img",
	".detail-gallery img",
	".product-images img",
	".offer-image img",
	".main-image img",
	".preview-image img",
	".m-gallery img",
}

var invalidImagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`1x1\.gif`),
	regexp.MustCompile(`(?i)placeholder`),
	regexp.MustCompile(`(?i)loading`),
	regexp.MustCompile(`(?i)icon`),
	regexp.MustCompile(`(?i)logo`),
	regexp.MustCompile(`(?i)btn`),
	regexp.MustCompile(`\.svg$`),
}

func (p *AlibabaParser) extractImages(doc *goquery.Document, pageURL string) []string {
	var images []string

	base, _ := url.Parse(pageURL)

	for _, selector := range imageSelectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			src, ok := s.Attr("src")
			if !ok || src == "" {
				if src, ok = s.Attr("data-src"); !ok || src == "" {
					src, _ = s.Attr("data-original")
				}
			}
			if src == "" {
				return
			}
			if resolved := resolveImageURL(src, base); isValidImageURL(resolved) {
				images = append(images, resolved)
			}
		})
	}

	// Gallery data often only exists in inline JS state.
	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		for _, match := range p.imageScriptPattern.FindAllString(s.Text(), -1) {
			if isValidImageURL(match) {
				images = append(images, match)
			}
		}
	})

	return dedupeImages(images)
}

func resolveImageURL(src string, base *url.URL) string {
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	if strings.HasPrefix(src, "/") && base != nil {
		ref, err := url.Parse(src)
		if err != nil {
			return ""
		}
		return base.ResolveReference(ref).String()
	}
	return src
}

func isValidImageURL(u string) bool {
	if len(u) < 10 || !strings.HasPrefix(u, "http") {
		return false
	}
	for _, pattern := range invalidImagePatterns {
		if pattern.MatchString(u) {
			return false
		}
	}
	return true
}

var descriptionSelectors = []string{
	`[data-testid="product-description"]`,
	".product-detail-description",
	".offer-detail-description",
	".detail-desc",
	".product-desc",
	".offer-desc",
	".description-content",
	".mod-detail-description",
	".mobile-desc",
	".desc-wrap",
}

var featureSelectors = []string{
	".product-features li",
	".selling-points li",
	".feature-list li",
	".m-features li",
}

func (p *AlibabaParser) extractDescription(doc *goquery.Document) string {
	for _, selector := range descriptionSelectors {
		var desc string
		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if isUsableText(text, 10, 2000) {
				desc = text
				return false
			}
			return true
		})
		if desc != "" {
			return cleanDescription(desc)
		}
	}

	if content, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		if isUsableText(strings.TrimSpace(content), 10, 2000) {
			return cleanDescription(strings.TrimSpace(content))
		}
	}

	if desc := p.extractFromJSONLD(doc, "description"); isUsableText(desc, 10, 2000) {
		return cleanDescription(desc)
	}

	if desc := p.extractFromScripts(doc, p.descScriptPatterns, 10); desc != "" {
		return cleanDescription(desc)
	}

	// Selling points as a last structured source.
	var features []string
	for _, selector := range featureSelectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if isUsableText(text, 5, 200) && len(features) < 5 {
				features = append(features, text)
			}
		})
		if len(features) >= 5 {
			break
		}
	}
	if len(features) > 0 {
		return cleanDescription(strings.Join(features, "；"))
	}

	return ""
}

var specTableSelectors = []string{
	".mod-detail-attributes table",
	".product-params table",
	".spec-table",
	".product-attributes table",
	".offer-attributes table",
	".m-params table",
	".m-spec-table",
}

var specListSelectors = []string{
	".product-attributes dl",
	".spec-list dl",
	".params-list dl",
	".m-params dl",
}

// specSkipKeys filters row labels that are table chrome, not attributes.
var specSkipKeys = []string{"序号", "操作", "index", "number"}

func (p *AlibabaParser) extractSpecifications(doc *goquery.Document) map[string]string {
	specs := make(map[string]string)

	for _, selector := range specTableSelectors {
		doc.Find(selector).Find("tr").Each(func(i int, row *goquery.Selection) {
			cells := row.Find("td, th")
			if cells.Length() < 2 {
				return
			}
			key := strings.TrimSpace(cells.Eq(0).Text())
			value := strings.TrimSpace(cells.Eq(1).Text())
			if usableSpecPair(key, value) {
				specs[key] = value
			}
		})
	}

	for _, selector := range specListSelectors {
		doc.Find(selector).Each(func(i int, dl *goquery.Selection) {
			key := strings.TrimSpace(dl.Find("dt").First().Text())
			value := strings.TrimSpace(dl.Find("dd").First().Text())
			if usableSpecPair(key, value) {
				specs[key] = value
			}
		})
	}

	// Attribute arrays embedded in page state.
	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		for _, match := range p.specPairPattern.FindAllStringSubmatch(s.Text(), -1) {
			key := strings.TrimSpace(match[1])
			value := strings.TrimSpace(match[2])
			if usableSpecPair(key, value) {
				if _, ok := specs[key]; !ok {
					specs[key] = value
				}
			}
		}
	})

	return specs
}

func usableSpecPair(key, value string) bool {
	if key == "" || value == "" {
		return false
	}
	if len([]rune(key)) >= 50 || len([]rune(value)) >= 200 {
		return false
	}
	lower := strings.ToLower(key)
	for _, skip := range specSkipKeys {
		if strings.Contains(lower, skip) {
			return false
		}
	}
	return true
}

// extractFromJSONLD searches application/ld+json blocks for a top-level string
// field, descending into arrays and nested objects.
func (p *AlibabaParser) extractFromJSONLD(doc *goquery.Document, field string) string {
	var found string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if v := jsonField(data, field); v != "" {
			found = v
			return false
		}
		return true
	})
	return found
}

func jsonField(data any, field string) string {
	switch v := data.(type) {
	case map[string]any:
		if s, ok := v[field].(string); ok && s != "" {
			return s
		}
		for _, child := range v {
			switch child.(type) {
			case map[string]any, []any:
				if s := jsonField(child, field); s != "" {
					return s
				}
			}
		}
	case []any:
		for _, item := range v {
			if s := jsonField(item, field); s != "" {
				return s
			}
		}
	}
	return ""
}

// extractFromScripts runs a pattern list over every inline script and returns
// the first usable capture.
func (p *AlibabaParser) extractFromScripts(doc *goquery.Document, patterns []*regexp.Regexp, minLen int) string {
	var found string
	doc.Find("script").EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := s.Text()
		for _, pattern := range patterns {
			for _, match := range pattern.FindAllStringSubmatch(text, -1) {
				candidate := strings.TrimSpace(match[1])
				if isUsableText(candidate, minLen, 500) {
					found = candidate
					return false
				}
			}
		}
		return true
	})
	return found
}

// junkWords mark selector hits that grabbed script or error output instead of
// product copy.
var junkWords = []string{"javascript", "function", "undefined", "null", "error", "script"}

func isUsableText(text string, minLen, maxLen int) bool {
	n := len([]rune(text))
	if n < minLen || n > maxLen {
		return false
	}
	lower := strings.ToLower(text)
	for _, word := range junkWords {
		if strings.Contains(lower, word) {
			return false
		}
	}
	return true
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func cleanDescription(text string) string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = strings.ReplaceAll(text, "\u200b", "")
	text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))

	runes := []rune(text)
	if len(runes) > 800 {
		return string(runes[:800]) + "..."
	}
	return text
}
