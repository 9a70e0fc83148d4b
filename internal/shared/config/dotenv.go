package config

import (
	"errors"
	"io/fs"
)

// isMissingFile reports whether err comes from an absent .env file.
// viper returns the raw open error when SetConfigFile names an explicit path.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
