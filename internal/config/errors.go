package config

import "errors"

// ErrInvalidConfig is returned (wrapped, with detail) when the merged
// configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")
