package cookie

import "errors"

var (
	// ErrCookieNotFound indicates the named cookie is absent from the request
	ErrCookieNotFound = errors.New("cookie.not_found")

	// ErrInvalidFormat indicates the cookie value could not be decoded
	ErrInvalidFormat = errors.New("cookie.invalid_format")
)
