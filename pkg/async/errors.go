package async

import "errors"

var (
	// ErrTimeout indicates an Await exceeded its deadline
	ErrTimeout = errors.New("async.timeout")
)
