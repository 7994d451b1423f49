package errors

import (
	"errors"
	"fmt"
)

// Standard errors
var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingUserID is returned when an operation requires a user id and none was supplied
	ErrMissingUserID = errors.New("user id is required")

	// ErrBufferUnavailable is returned when the short-term buffer store is unavailable
	ErrBufferUnavailable = errors.New("short-term buffer unavailable")

	// ErrVectorStoreUnavailable is returned when the vector store is unavailable
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// ErrEmbeddingFailed is returned when embedding generation fails
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrPromotionIncomplete is returned when a promotion run could not durably
	// store every buffered exchange and the buffer was preserved for retry
	ErrPromotionIncomplete = errors.New("promotion incomplete, buffer preserved")
)

// Wrap wraps an error with additional context
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience function that wraps errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target, and if so, sets
// target to that error value and returns true. Otherwise, it returns false.
// This is a convenience function that wraps errors.As
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
