package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Veraticus/pdfmail/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want model.FailureCategory
	}{
		{name: "nil", err: nil, want: model.FailureNone},
		{name: "config", err: NewConfigError("pattern", errors.New("bad")), want: model.FailureConfig},
		{name: "auth", err: fmt.Errorf("send: %w", &AuthError{User: "u", Err: errors.New("535")}), want: model.FailureAuth},
		{name: "network", err: &NetworkError{Addr: "h:1", Err: errors.New("refused")}, want: model.FailureNetwork},
		{name: "size", err: &SizeExceededError{Company: "Beta", Size: 2, Limit: 1}, want: model.FailureSize},
		{name: "other", err: errors.New("550 mailbox unavailable"), want: model.FailureDelivery},
		{name: "retry wrapped auth", err: fmt.Errorf("%w: %w", ErrMaxRetries, &AuthError{Err: errors.New("x")}), want: model.FailureAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(&AuthError{Err: errors.New("535")}))
	assert.True(t, IsRetryable(&NetworkError{Err: errors.New("refused")}))
	assert.False(t, IsRetryable(Permanent(&NetworkError{Err: errors.New("refused")})))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retryable: true}))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestConfigError_IsInvalidConfig(t *testing.T) {
	err := fmt.Errorf("load: %w", NewConfigError("companies.Acme.template", errors.New("unknown template")))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "companies.Acme.template")
}

func TestPartialArchiveError(t *testing.T) {
	diskErr := errors.New("disk full")
	err := &PartialArchiveError{
		Moved:    1,
		Failures: []ArchiveFailure{{Path: "b.pdf", Err: diskErr}},
	}

	assert.ErrorIs(t, err, diskErr)
	assert.Contains(t, err.Error(), "moved 1 file(s), failed to move 1")
	assert.Contains(t, err.Error(), "b.pdf")
}

func TestUserError(t *testing.T) {
	inner := errors.New("535 bad credentials")
	err := NewUserError("check your app password", inner)

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "check your app password: 535 bad credentials", err.Error())
	assert.Equal(t, "just a message", NewUserError("just a message", nil).Error())
}
