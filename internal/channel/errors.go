package channel

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
	"github.com/Hibaxbelghith/argus-sub000/internal/retry"
)

// ConfigError reports a delivery that cannot succeed until configuration
// changes, such as missing provider credentials or no phone number on file.
type ConfigError struct {
	Channel delivery.Channel
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Channel, e.Reason)
}

// Retryable implements retry.Classified.
func (e *ConfigError) Retryable() bool { return false }

// NewConfigError builds a ConfigError.
func NewConfigError(ch delivery.Channel, format string, args ...any) error {
	return &ConfigError{Channel: ch, Reason: fmt.Sprintf(format, args...)}
}

// TransientError wraps a provider failure that may succeed on retry.
type TransientError struct {
	Channel delivery.Channel
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Channel, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Retryable implements retry.Classified.
func (e *TransientError) Retryable() bool { return true }

// PermanentError wraps a provider failure that will not succeed on retry.
type PermanentError struct {
	Channel delivery.Channel
	Err     error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Channel, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Retryable implements retry.Classified.
func (e *PermanentError) Retryable() bool { return false }

// ProviderError wraps err from ch's provider, marking it transient when the
// retry classifier recognizes it as such.
func ProviderError(ch delivery.Channel, err error) error {
	if err == nil {
		return nil
	}
	if retry.IsRetryable(err) {
		return &TransientError{Channel: ch, Err: err}
	}
	return &PermanentError{Channel: ch, Err: err}
}

// StatusError wraps a provider failure that came with an HTTP status.
// Throttling, timeouts and server errors are transient.
func StatusError(ch delivery.Channel, status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return &TransientError{Channel: ch, Err: err}
	case status > 0:
		return &PermanentError{Channel: ch, Err: err}
	default:
		return ProviderError(ch, err)
	}
}

// ErrorCode returns the delivery error code stored for err.
func ErrorCode(err error) string {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return delivery.CodeConfigError
	}
	return delivery.CodeProviderError
}
