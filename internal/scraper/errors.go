package scraper

import (
	"errors"
	"fmt"
)

// InvalidURLError indicates the input does not look like a 1688 offer page.
type InvalidURLError struct {
	URL string
}

func (e InvalidURLError) Error() string {
	return fmt.Sprintf("invalid_url: not a recognized 1688 offer link: %s", e.URL)
}

// NetworkError indicates the page could not be fetched at all, as opposed to
// fetched but unparseable.
type NetworkError struct {
	URL string
	Err error
}

func (e NetworkError) Error() string {
	return fmt.Sprintf("network: fetching %s: %v", e.URL, e.Err)
}

func (e NetworkError) Unwrap() error {
	return e.Err
}

// IncompleteDataError indicates both the desktop and mobile passes ran but
// neither recovered a usable title or price.
type IncompleteDataError struct {
	URL string
}

func (e IncompleteDataError) Error() string {
	return fmt.Sprintf("incomplete_data: no title or price recoverable from %s", e.URL)
}

// ErrorCode maps a scrape failure to a stable label for API responses.
func ErrorCode(err error) string {
	var invalid InvalidURLError
	if errors.As(err, &invalid) {
		return "invalid_url"
	}
	var network NetworkError
	if errors.As(err, &network) {
		return "network"
	}
	var incomplete IncompleteDataError
	if errors.As(err, &incomplete) {
		return "incomplete_data"
	}
	return "internal"
}
