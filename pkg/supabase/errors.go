package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrInvalidOptions     = errors.New("supabase: invalid options")
	ErrInvalidCredentials = errors.New("supabase: invalid credentials")
	ErrNoAdminToken       = errors.New("supabase: no admin token available")
	ErrInvalidProcedure   = errors.New("supabase: invalid procedure name")
	ErrInvalidUserID      = errors.New("supabase: invalid user id")
)

// ============================================================================
// APIError - failures reported by the platform
// ============================================================================

// APIError is returned for every non-2xx response. GoTrue and PostgREST use
// different error bodies; both are folded into the same fields.
type APIError struct {
	StatusCode int

	// Code is the machine readable code: GoTrue's "error_code" or "error",
	// or PostgREST's SQLSTATE-style "code" (e.g. "P0001").
	Code string

	// ErrorCode is GoTrue's "error_code" as sent, empty for PostgREST and
	// older GoTrue versions.
	ErrorCode string

	Message string
	Details string
	Hint    string

	// Body is the raw response, kept for bodies that matched neither shape.
	Body string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "supabase: HTTP %d", e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, " %s", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Details != "" {
		fmt.Fprintf(&b, " (%s)", e.Details)
	}
	return b.String()
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool { return statusIs(err, http.StatusNotFound) }

// IsUnauthorized reports whether err is an APIError with status 401 or 403.
func IsUnauthorized(err error) bool {
	return statusIs(err, http.StatusUnauthorized) || statusIs(err, http.StatusForbidden)
}

func statusIs(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// ============================================================================
// Error body parsing
// ============================================================================

// errorBody is the union of the GoTrue and PostgREST error shapes.
type errorBody struct {
	// GoTrue
	Msg              string `json:"msg"`
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`

	// GoTrue sends the HTTP status as a number here, PostgREST a string code.
	Code json.RawMessage `json:"code"`

	// PostgREST
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
	Hint    string          `json:"hint"`
}

func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	apiErr.Code = firstNonEmpty(eb.ErrorCode, codeString(eb.Code), eb.Error)
	apiErr.ErrorCode = eb.ErrorCode
	apiErr.Message = firstNonEmpty(eb.Msg, eb.Message, eb.ErrorDescription, eb.Error, http.StatusText(resp.StatusCode))
	apiErr.Details = rawString(eb.Details)
	apiErr.Hint = eb.Hint
	return apiErr
}

// rawString renders a JSON string as its value and any other non-null JSON
// value as-is.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// codeString is rawString minus GoTrue's numeric codes, which only repeat
// the HTTP status.
func codeString(raw json.RawMessage) string {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return ""
	}
	return rawString(raw)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
