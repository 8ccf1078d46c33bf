// Package generate asks a generative model for listing documents and
// re-prompts until the answer passes validation.
package generate

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrCircuitOpen is returned while the provider circuit breaker is open.
var ErrCircuitOpen = errors.New("generation provider temporarily unavailable")

// ErrInvalidRequest marks requests rejected before any provider call.
var ErrInvalidRequest = errors.New("invalid generate request")

// ProviderError wraps a failed provider call.
type ProviderError struct {
	Provider   string
	StatusCode int // 0 when the failure happened before a response
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %q: HTTP %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %q: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true for 5xx, 429 and transport failures.
func (e *ProviderError) IsRetryable() bool {
	if e.StatusCode != 0 {
		return e.StatusCode >= 500 || e.StatusCode == 429
	}
	return isRetryableError(e.Err)
}

// EmptyResponseError is returned when a provider answers with no text.
type EmptyResponseError struct {
	Provider string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("provider %q returned an empty response", e.Provider)
}

// AttemptsError is returned when every attempt produced an invalid document.
type AttemptsError struct {
	Attempts int
	Err      error // last parse or validation error
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("no valid document after %d attempts: %v", e.Attempts, e.Err)
}

func (e *AttemptsError) Unwrap() error {
	return e.Err
}

// shouldRetry decides whether WithRetry tries again and whether the circuit
// breaker counts the failure.
func shouldRetry(err error) bool {
	if err == nil || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.IsRetryable()
	}
	var emptyErr *EmptyResponseError
	if errors.As(err, &emptyErr) {
		return true
	}
	return isRetryableError(err)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"timeout",
		"deadline exceeded",
		"temporary failure",
		"try again",
		"overloaded",
		"service unavailable",
		"bad gateway",
		"gateway timeout",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// UserFriendlyMessage returns a message suitable for showing to a seller.
func UserFriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrCircuitOpen) {
		return "The generator is temporarily unavailable. Please try again later."
	}
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		switch {
		case providerErr.StatusCode == 401 || providerErr.StatusCode == 403:
			return "The generator rejected the API key."
		case providerErr.StatusCode == 429:
			return "Too many requests. Please wait a moment."
		case providerErr.StatusCode >= 500:
			return "The generator is having trouble. Please try again."
		}
	}
	var attemptsErr *AttemptsError
	if errors.As(err, &attemptsErr) {
		return "The generator did not produce a usable template. Try rewording the prompt."
	}
	return "Generation failed. Please try again."
}
