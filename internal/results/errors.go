package results

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrMissingUserID = errors.New("userId is required")
)
