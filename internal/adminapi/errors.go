package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"github.com/xela07ax/shuma-dashboard/internal/domain"
)

// ErrCircuitOpen: предохранитель админ-API разомкнут, запрос не отправлялся.
var ErrCircuitOpen = errors.New("admin api is temporarily unavailable (circuit open)")

// APIError: не-2xx ответ админ-API. Message пригоден для показа во вкладке.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("admin api error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("admin api error: %d %s", e.Status, e.Message)
}

// Unwrap связывает 401 с domain.ErrUnauthorized для errors.Is.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return domain.ErrUnauthorized
	}
	return nil
}

// Retryable: повторяются только 5xx и 429.
func (e *APIError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

func newAPIError(status int, body []byte) *APIError {
	msg := strings.TrimSpace(string(body))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Message != "":
			msg = payload.Message
		}
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return &APIError{Status: status, Message: msg}
}

// isCancellation: отмена вызывающей стороной, а не сбой сервера.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

// isBreakerFailure решает, засчитывается ли ошибка предохранителю.
// Отмена и 4xx (включая 401): не отказ сервера.
func isBreakerFailure(err error) bool {
	if err == nil || isCancellation(err) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return true
}

func isRetryable(err error) bool {
	if err == nil || isCancellation(err) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}
