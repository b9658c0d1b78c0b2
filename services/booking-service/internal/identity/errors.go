package identity

import "errors"

var (
	errMissingToken    = errors.New("missing or invalid Authorization header")
	errMissingIdentity = errors.New("caller identity missing or unknown role")
)
