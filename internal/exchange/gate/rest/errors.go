package rest

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrTransport = errors.New("ошибка транспорта")

// APIError тело ошибки Gate: {"label": "...", "message": "..."}.
type APIError struct {
	Status  int    `json:"-"`
	Label   string `json:"label"`
	Message string `json:"message"`
	Body    string `json:"-"`
}

func (e *APIError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("Ошибка gate: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("Ошибка gate: %s: %s (status=%d)", e.Label, e.Message, e.Status)
}

func (e *APIError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests || e.Label == "TOO_MANY_REQUESTS"
}

// DecodeError хранит сырой ответ для диагностики.
type DecodeError struct {
	Body string
	Err  error
}

func (e *DecodeError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("Не удалось разобрать ответ: %v; тело: %q", e.Err, body)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func IsRateLimit(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.RateLimited()
}
