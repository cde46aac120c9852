package uploader

import (
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/weichen-dev/taosync/internal/models"
)

const shortDescriptionLimit = 160

type wcImage struct {
	ID  int64  `json:"id,omitempty"`
	Src string `json:"src,omitempty"`
	Alt string `json:"alt,omitempty"`
}

type wcAttribute struct {
	Name    string   `json:"name"`
	Visible bool     `json:"visible"`
	Options []string `json:"options"`
}

type wcMetaData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type wcProduct struct {
	Name             string        `json:"name"`
	Type             string        `json:"type"`
	Status           string        `json:"status"`
	RegularPrice     string        `json:"regular_price,omitempty"`
	Description      string        `json:"description"`
	ShortDescription string        `json:"short_description,omitempty"`
	Images           []wcImage     `json:"images,omitempty"`
	Attributes       []wcAttribute `json:"attributes,omitempty"`
	MetaData         []wcMetaData  `json:"meta_data,omitempty"`
}

// buildProduct maps a scraped record onto the wc/v3 product shape. Products
// land as drafts so the store owner reviews them before they go live.
func buildProduct(rec models.ProductRecord, images []wcImage) wcProduct {
	p := wcProduct{
		Name:             rec.Title,
		Type:             "simple",
		Status:           "draft",
		Description:      formatDescription(rec),
		ShortDescription: truncateRunes(rec.Description, shortDescriptionLimit),
		Images:           images,
		Attributes:       buildAttributes(rec.Specifications),
		MetaData: []wcMetaData{
			{Key: "_source_url", Value: rec.URL},
			{Key: "_source_product_id", Value: rec.ProductID},
			{Key: "_scraped_at", Value: rec.ScrapedAt.Format(time.RFC3339)},
		},
	}
	if rec.Price > 0 {
		p.RegularPrice = strconv.FormatFloat(rec.Price, 'f', 2, 64)
	}
	return p
}

// formatDescription renders the description as HTML with the specification
// table and a source link appended. All scraped text is escaped.
func formatDescription(rec models.ProductRecord) string {
	var b strings.Builder

	if rec.Description != "" {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(rec.Description))
		b.WriteString("</p>\n")
	}

	if len(rec.Specifications) > 0 {
		b.WriteString("<h3>产品规格</h3>\n<ul>\n")
		for _, key := range sortedKeys(rec.Specifications) {
			fmt.Fprintf(&b, "<li><strong>%s</strong>: %s</li>\n",
				html.EscapeString(key), html.EscapeString(rec.Specifications[key]))
		}
		b.WriteString("</ul>\n")
	}

	if rec.URL != "" {
		fmt.Fprintf(&b, `<p>商品信息来源: <a href="%s" rel="nofollow">1688</a></p>`,
			html.EscapeString(rec.URL))
		b.WriteString("\n")
	}

	return b.String()
}

func buildAttributes(specs map[string]string) []wcAttribute {
	if len(specs) == 0 {
		return nil
	}
	attrs := make([]wcAttribute, 0, len(specs))
	for _, key := range sortedKeys(specs) {
		attrs = append(attrs, wcAttribute{
			Name:    key,
			Visible: true,
			Options: []string{specs[key]},
		})
	}
	return attrs
}

// externalImageRefs maps absolute source URLs to src-only image entries for
// the no-staging mode.
func externalImageRefs(sources []string) []wcImage {
	var images []wcImage
	for _, src := range sources {
		if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
			continue
		}
		images = append(images, wcImage{Src: src})
	}
	return images
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncateRunes(s string, limit int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "..."
}
