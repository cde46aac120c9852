package parser

import (
	"github.com/weichen-dev/taosync/internal/models"
)

// MaxImages caps how many gallery images a single record carries.
const MaxImages = 10

// Parser extracts a partial product record from one page variant. The scraper
// runs it against the desktop page first and the mobile page as fallback.
type Parser interface {
	ParsePage(html string, pageURL string) (*models.PartialRecord, error)
}

// Merge combines the desktop extraction pass with the mobile fallback pass.
// It is a pure function: fallback values are used only for fields the primary
// pass left empty, and images are deduplicated by URL with primary order first.
func Merge(primary, fallback *models.PartialRecord) *models.PartialRecord {
	if primary == nil {
		primary = &models.PartialRecord{}
	}
	if fallback == nil {
		fallback = &models.PartialRecord{}
	}

	merged := &models.PartialRecord{
		Title:       primary.Title,
		Price:       primary.Price,
		PriceText:   primary.PriceText,
		Description: primary.Description,
	}

	if !primary.HasTitle() {
		merged.Title = fallback.Title
	}
	if !primary.HasPrice() {
		merged.Price = fallback.Price
		merged.PriceText = fallback.PriceText
	}
	if primary.Description == "" {
		merged.Description = fallback.Description
	}

	merged.Images = dedupeImages(append(append([]string{}, primary.Images...), fallback.Images...))

	merged.Specifications = make(map[string]string, len(primary.Specifications)+len(fallback.Specifications))
	for k, v := range primary.Specifications {
		merged.Specifications[k] = v
	}
	for k, v := range fallback.Specifications {
		if _, ok := merged.Specifications[k]; !ok {
			merged.Specifications[k] = v
		}
	}

	return merged
}

// dedupeImages removes duplicate URLs while preserving first-seen order and
// applies the MaxImages cap.
func dedupeImages(images []string) []string {
	seen := make(map[string]struct{}, len(images))
	out := make([]string, 0, len(images))
	for _, img := range images {
		if img == "" {
			continue
		}
		if _, ok := seen[img]; ok {
			continue
		}
		seen[img] = struct{}{}
		out = append(out, img)
		if len(out) == MaxImages {
			break
		}
	}
	return out
}
