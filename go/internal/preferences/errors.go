package preferences

import "errors"

// ErrNoUser is returned when saving without an authenticated user.
var ErrNoUser = errors.New("preferences need a signed in user")
