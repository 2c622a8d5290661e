package bugs

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrSearchFailed = errors.New("search failed")
)
