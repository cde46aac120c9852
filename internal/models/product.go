package models

import (
	"time"
)

// ProductRecord is the normalized representation of a scraped 1688 listing.
// It is created by the scraper, edited in the UI, consumed by the uploader
// and never persisted.
type ProductRecord struct {
	URL            string            `json:"url"`
	ProductID      string            `json:"product_id"`
	Title          string            `json:"title"`
	Price          float64           `json:"price"`
	PriceText      string            `json:"price_text"`
	Description    string            `json:"description"`
	Images         []string          `json:"images"`
	Specifications map[string]string `json:"specifications"`
	ScrapedAt      time.Time         `json:"scraped_at"`
}

// UploadEligible reports whether the record carries enough data to be worth
// creating on the destination store: a title plus at least a price or one image.
func (p *ProductRecord) UploadEligible() bool {
	return p.Title != "" && (p.Price > 0 || len(p.Images) > 0)
}

// PartialRecord holds the fields one extraction pass managed to recover from a
// single page variant. Zero values mean "not found"; the desktop and mobile
// passes are combined with parser.Merge.
type PartialRecord struct {
	Title          string            `json:"title"`
	Price          float64           `json:"price"`
	PriceText      string            `json:"price_text"`
	Description    string            `json:"description"`
	Images         []string          `json:"images"`
	Specifications map[string]string `json:"specifications"`
}

func (p *PartialRecord) HasTitle() bool  { return p.Title != "" }
func (p *PartialRecord) HasPrice() bool  { return p.Price > 0 || p.PriceText != "" }
func (p *PartialRecord) HasImages() bool { return len(p.Images) > 0 }

// Complete reports whether a fallback pass is unnecessary.
func (p *PartialRecord) Complete() bool {
	return p.HasTitle() && p.HasImages()
}

// Credentials identify the destination WooCommerce store.
type Credentials struct {
	SiteURL        string `json:"site_url"`
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

// UploadResult is the outcome of one upload attempt. The uploader always
// returns one of these; failures are data, not errors. FailedImages lists the
// source image URLs that could not be staged.
type UploadResult struct {
	Success      bool     `json:"success"`
	RemoteID     string   `json:"remote_id,omitempty"`
	ProductURL   string   `json:"product_url,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
	StagedImages int      `json:"staged_images"`
	FailedImages []string `json:"failed_images,omitempty"`
}
