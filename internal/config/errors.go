package config

import "errors"

// ErrInvalidConfig marks values the service cannot start with; ErrLoadConfig
// marks a config file or environment that could not be read.
var (
	ErrInvalidConfig = errors.New("config: invalid value")
	ErrLoadConfig    = errors.New("config: cannot load")
)
