package portfolio

import "strings"

// MaxFileSize is the largest accepted upload, inclusive.
const MaxFileSize int64 = 10 * 1024 * 1024

// FileInfo describes a candidate upload before any bytes are read.
type FileInfo struct {
	Name string
	Size int64
}

// ValidateFile accepts CSV files up to MaxFileSize.
func ValidateFile(f FileInfo) error {
	if !strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
		return ErrInvalidType
	}
	if f.Size > MaxFileSize {
		return ErrTooLarge
	}
	return nil
}
