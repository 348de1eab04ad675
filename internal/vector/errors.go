package vector

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the store dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrStorageUnavailable is returned when persistence cannot be written or the remote
	// service still fails after retries.
	ErrStorageUnavailable = errors.New("vector storage unavailable")
	// ErrInvalidK is returned by Query when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
)
