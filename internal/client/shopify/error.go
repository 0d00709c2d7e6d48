package shopify

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	go_json "github.com/goccy/go-json"
)

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify api: %d %s", e.StatusCode, e.Message)
}

// Retryable reports whether retrying the same call can succeed. Rate
// limits and server-side failures are transient; auth, validation, and
// duplicate-subscription errors are not.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// parseAPIError extracts a message from Shopify's error payloads, which
// come in several shapes: {"errors":"..."} as a string,
// {"errors":{"field":["msg", ...]}}, or {"error":"..."}.
func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var errResp struct {
		Errors any    `json:"errors"`
		Error  string `json:"error"`
	}
	if err := go_json.Unmarshal(body, &errResp); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	msg := flattenErrors(errResp.Errors)
	if msg == "" {
		msg = errResp.Error
	}
	if msg == "" {
		msg = resp.Status
	}

	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

func flattenErrors(v any) string {
	switch errs := v.(type) {
	case string:
		return errs
	case []any:
		parts := make([]string, 0, len(errs))
		for _, e := range errs {
			if s := flattenErrors(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		parts := make([]string, 0, len(errs))
		for field, e := range errs {
			if s := flattenErrors(e); s != "" {
				parts = append(parts, field+" "+s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}
