package detect

import "errors"

var (
	// ErrInvalidArgument flags conflicting or out-of-range run parameters.
	// It is returned before any frame is read.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnsupported flags an operation that is recognised but not implemented.
	ErrUnsupported = errors.New("unsupported operation")
)
