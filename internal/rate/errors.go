package rate

import "errors"

// ErrRateLimited is returned once a subject has used its attempt budget for the window.
var ErrRateLimited = errors.New("rate limited")
