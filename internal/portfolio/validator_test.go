package portfolio

import (
	"errors"
	"testing"
)

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name string
		file FileInfo
		want error
	}{
		{name: "plain csv", file: FileInfo{Name: "holdings.csv", Size: 120}, want: nil},
		{name: "upper case extension", file: FileInfo{Name: "HOLDINGS.CSV", Size: 120}, want: nil},
		{name: "mixed case extension", file: FileInfo{Name: "q3.CsV", Size: 1}, want: nil},
		{name: "empty csv", file: FileInfo{Name: "empty.csv", Size: 0}, want: nil},
		{name: "exactly ten MiB", file: FileInfo{Name: "big.csv", Size: 10 * 1024 * 1024}, want: nil},
		{name: "one byte over", file: FileInfo{Name: "big.csv", Size: 10*1024*1024 + 1}, want: ErrTooLarge},
		{name: "excel file", file: FileInfo{Name: "holdings.xlsx", Size: 10}, want: ErrInvalidType},
		{name: "csv in the middle", file: FileInfo{Name: "holdings.csv.txt", Size: 10}, want: ErrInvalidType},
		{name: "no extension", file: FileInfo{Name: "csv", Size: 10}, want: ErrInvalidType},
		{name: "wrong type and too large", file: FileInfo{Name: "a.pdf", Size: 20 << 20}, want: ErrInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFile(tt.file)
			if err != tt.want {
				t.Fatalf("ValidateFile(%+v) = %v, want %v", tt.file, err, tt.want)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Fatalf("expected error to wrap ErrValidation")
			}
		})
	}
}
