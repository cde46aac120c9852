package uploader

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weichen-dev/taosync/internal/models"
)

func TestBuildProduct(t *testing.T) {
	rec := models.ProductRecord{
		URL:         "https://detail.1688.com/offer/123.html",
		ProductID:   "123",
		Title:       "Widget",
		Price:       9.9,
		Description: "A <fine> widget",
		Specifications: map[string]string{
			"color": "red",
			"size":  "M",
		},
		ScrapedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	p := buildProduct(rec, []wcImage{{ID: 7}})

	assert.Equal(t, "Widget", p.Name)
	assert.Equal(t, "simple", p.Type)
	assert.Equal(t, "draft", p.Status)
	assert.Equal(t, "9.90", p.RegularPrice)

	// Attributes come out sorted so payloads are stable.
	require.Len(t, p.Attributes, 2)
	assert.Equal(t, "color", p.Attributes[0].Name)
	assert.Equal(t, "size", p.Attributes[1].Name)

	// Scraped text is escaped before it lands in store HTML.
	assert.Contains(t, p.Description, "A &lt;fine&gt; widget")
	assert.Contains(t, p.Description, "产品规格")
	assert.Contains(t, p.Description, "detail.1688.com/offer/123.html")

	meta := map[string]string{}
	for _, m := range p.MetaData {
		meta[m.Key] = m.Value
	}
	assert.Equal(t, "https://detail.1688.com/offer/123.html", meta["_source_url"])
	assert.Equal(t, "123", meta["_source_product_id"])
	assert.Equal(t, "2026-08-01T12:00:00Z", meta["_scraped_at"])
}

func TestBuildProductWithoutPrice(t *testing.T) {
	rec := models.ProductRecord{Title: "Widget"}

	p := buildProduct(rec, nil)
	assert.Empty(t, p.RegularPrice)
}

func TestExternalImageRefs(t *testing.T) {
	images := externalImageRefs([]string{
		"https://cbu01.alicdn.com/a.jpg",
		"//cbu01.alicdn.com/b.jpg",
		"http://cbu01.alicdn.com/c.jpg",
	})

	require.Len(t, images, 2)
	assert.Equal(t, "https://cbu01.alicdn.com/a.jpg", images[0].Src)
	assert.Equal(t, "http://cbu01.alicdn.com/c.jpg", images[1].Src)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 10))

	long := strings.Repeat("说", 200)
	got := truncateRunes(long, 160)
	assert.Equal(t, 163, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}
