package search

import (
	"errors"
	"fmt"
)

var ErrContentTooLarge = errors.New("gist content exceeds the maximum size")

// UpstreamError is returned when the gist API cannot be reached or answers
// with an error.
type UpstreamError struct {
	Op          string
	URL         string
	StatusCode  int
	RateLimited bool
	Err         error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) NotFound() bool {
	return e.StatusCode == 404
}
