package sim

import "errors"

// ErrInvalidConfig wraps every sim config validation failure.
var ErrInvalidConfig = errors.New("invalid sim config")
