package portfolio

import "errors"

var (
	// ErrValidation wraps every file rejection.
	ErrValidation = errors.New("invalid portfolio file")
	// ErrInvalidType is returned for names that do not end in .csv.
	ErrInvalidType = &ValidationError{Reason: "Please select a CSV file only."}
	// ErrTooLarge is returned for files over MaxFileSize.
	ErrTooLarge = &ValidationError{Reason: "File size must be less than 10MB."}

	ErrUnauthenticated = errors.New("user not authenticated")
	ErrRead            = errors.New("read portfolio file")
	ErrUpload          = errors.New("store portfolio file")
)

// ValidationError carries the user-facing rejection reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error { return ErrValidation }
