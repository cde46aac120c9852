package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/weichen-dev/taosync/internal/models"
)

// maxEntries caps the retained history; older entries are dropped.
const maxEntries = 100

// Entry records one upload attempt, successful or not.
type Entry struct {
	ID        string              `json:"id"`
	Timestamp time.Time           `json:"timestamp"`
	SourceURL string              `json:"source_url"`
	Title     string              `json:"title"`
	Result    models.UploadResult `json:"result"`
}

// NewEntry stamps an upload outcome with an id and timestamp.
func NewEntry(sourceURL, title string, result models.UploadResult) Entry {
	return Entry{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		SourceURL: sourceURL,
		Title:     title,
		Result:    result,
	}
}

// Store keeps the most recent upload attempts, newest first.
type Store interface {
	Add(ctx context.Context, e Entry) error
	List(ctx context.Context) ([]Entry, error)
	Clear(ctx context.Context) error
}
