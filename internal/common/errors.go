// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/pdfmail/internal/model"
)

// Common application errors.
var (
	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Connection errors.
	ErrNotConnected = errors.New("not connected")

	// Batch errors.
	ErrBatchAbandoned = errors.New("send batch exceeded its time budget")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// ConfigError reports a malformed or incomplete settings document.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}
	return fmt.Sprintf("invalid configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is lets ConfigError match ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigError creates a ConfigError for field.
func NewConfigError(field string, err error) error {
	return &ConfigError{Field: field, Err: err}
}

// AuthError reports rejected SMTP credentials. It is never retried.
type AuthError struct {
	Err  error
	User string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.User, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NetworkError reports a transient connectivity failure.
type NetworkError struct {
	Err      error
	Addr     string
	Attempts int
}

func (e *NetworkError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("network error for %s after %d attempts: %v", e.Addr, e.Attempts, e.Err)
	}
	return fmt.Sprintf("network error for %s: %v", e.Addr, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// SizeExceededError reports a group that is larger than the attachment limit.
type SizeExceededError struct {
	Company string
	Size    int64
	Limit   int64
}

func (e *SizeExceededError) Error() string {
	return fmt.Sprintf("attachments for %s total %d bytes, limit is %d", e.Company, e.Size, e.Limit)
}

// ArchiveFailure is one file that could not be moved.
type ArchiveFailure struct {
	Err  error
	Path string
}

// PartialArchiveError reports files that stayed in the source folder after
// their mail was delivered.
type PartialArchiveError struct {
	Failures []ArchiveFailure
	Moved    int
}

func (e *PartialArchiveError) Error() string {
	paths := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		paths = append(paths, fmt.Sprintf("%s (%v)", f.Path, f.Err))
	}
	return fmt.Sprintf("moved %d file(s), failed to move %d: %s", e.Moved, len(e.Failures), strings.Join(paths, "; "))
}

// Unwrap returns the individual move errors.
func (e *PartialArchiveError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if err == nil || IsAuthError(err) {
		return false
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// Categorize maps an error chain to a failure category.
func Categorize(err error) model.FailureCategory {
	if err == nil {
		return model.FailureNone
	}

	var (
		configErr *ConfigError
		authErr   *AuthError
		netErr    *NetworkError
		sizeErr   *SizeExceededError
	)
	switch {
	case errors.As(err, &configErr):
		return model.FailureConfig
	case errors.As(err, &authErr):
		return model.FailureAuth
	case errors.As(err, &sizeErr):
		return model.FailureSize
	case errors.As(err, &netErr):
		return model.FailureNetwork
	default:
		return model.FailureDelivery
	}
}
