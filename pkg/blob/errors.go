package blob

import "errors"

var (
	// ErrNotFound indicates the object does not exist
	ErrNotFound = errors.New("blob.not_found")

	// ErrInvalidKey indicates a key failed path validation
	ErrInvalidKey = errors.New("blob.invalid_key")

	// ErrInvalidConfig indicates required configuration is missing
	ErrInvalidConfig = errors.New("blob.invalid_config")

	// ErrBucketNotFound indicates the configured bucket does not exist
	ErrBucketNotFound = errors.New("blob.bucket_not_found")

	// ErrAccessDenied indicates the credentials lack permission
	ErrAccessDenied = errors.New("blob.access_denied")

	// ErrServiceUnavailable covers throttling and transient upstream outages
	ErrServiceUnavailable = errors.New("blob.service_unavailable")
)
