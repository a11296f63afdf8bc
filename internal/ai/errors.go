package ai

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrUnavailable            = errors.New("ai provider not configured")
	ErrTemperatureUnsupported = errors.New("temperature not supported")
	ErrTransient              = errors.New("transient provider error")
)

// StatusError is a non-2xx provider answer. 429 and 5xx match ErrTransient;
// a 400 complaining about temperature matches ErrTemperatureUnsupported.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed: %d %s: %s", e.Provider, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	case ErrTemperatureUnsupported:
		return isTemperatureRejection(e.StatusCode, e.Body)
	}
	return false
}

func isTemperatureRejection(status int, body string) bool {
	if status != http.StatusBadRequest && status != http.StatusUnprocessableEntity {
		return false
	}
	return strings.Contains(strings.ToLower(body), "temperature")
}

func checkResponse(provider string, resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Provider: provider, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// transportError marks a failure to reach the provider as transient while
// keeping the cause (for example context.DeadlineExceeded) in the chain.
func transportError(provider string, err error) error {
	return fmt.Errorf("%s request: %w: %w", provider, ErrTransient, err)
}
