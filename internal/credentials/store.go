package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/weichen-dev/taosync/internal/models"
)

// minKeyLength guards against obviously truncated consumer keys; WooCommerce
// keys are ck_/cs_ prefixed 40+ character strings.
const minKeyLength = 10

// Store persists WooCommerce API credentials in a single user-scoped JSON
// file. Saves are atomic (temp file + rename); a missing file is the valid
// "not configured" state, not an error.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save validates and writes the credentials, replacing any previous ones.
func (s *Store) Save(c models.Credentials) error {
	c.SiteURL = strings.TrimRight(strings.TrimSpace(c.SiteURL), "/")
	c.ConsumerKey = strings.TrimSpace(c.ConsumerKey)
	c.ConsumerSecret = strings.TrimSpace(c.ConsumerSecret)

	if err := Validate(c); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load returns the stored credentials, or (nil, nil) when none were saved.
func (s *Store) Load() (*models.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var c models.Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("corrupt credentials file: %w", err)
	}
	return &c, nil
}

// Clear removes the stored credentials. Clearing an empty store is a no-op.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Validate checks credential shape only; connectivity is the uploader's job.
func Validate(c models.Credentials) error {
	if !strings.HasPrefix(c.SiteURL, "http://") && !strings.HasPrefix(c.SiteURL, "https://") {
		return fmt.Errorf("site_url must start with http:// or https://")
	}
	if len(c.ConsumerKey) < minKeyLength {
		return fmt.Errorf("consumer_key is too short")
	}
	if len(c.ConsumerSecret) < minKeyLength {
		return fmt.Errorf("consumer_secret is too short")
	}
	return nil
}
