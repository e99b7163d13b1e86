// Package codec maps raw registry responses onto typed records or one of
// the classified error kinds. Decoding is a pure function of status and
// body; transport-level failures never reach it.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// NotFoundError reports an absent resource (HTTP 404). This is a normal,
// expected outcome for existence checks.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource at url '%s' could not be found", e.URL)
}

// PermissionDeniedError reports an HTTP 403, carrying the server's reason
// verbatim.
type PermissionDeniedError struct {
	Reason string
}

func (e *PermissionDeniedError) Error() string {
	if e.Reason == "" {
		return "permission denied"
	}
	return fmt.Sprintf("permission denied: %s", e.Reason)
}

// APIErrorDetail is a single diagnostic message in the registry error
// envelope.
type APIErrorDetail struct {
	Detail string `json:"detail"`
}

// APIError is the structured error payload returned by the registry,
// surfaced verbatim.
type APIError struct {
	Status int              `json:"-"`
	Errors []APIErrorDetail `json:"errors"`
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("api error (status %d)", e.Status)
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		if d.Detail != "" {
			msgs = append(msgs, d.Detail)
		}
	}
	if len(msgs) == 0 {
		return fmt.Sprintf("api error (status %d)", e.Status)
	}
	return fmt.Sprintf("api error (status %d): %s", e.Status, strings.Join(msgs, "; "))
}

// DecodeError reports a body that matched neither the endpoint's expected
// shape nor the error envelope. Detail names the offending field or offset.
type DecodeError struct {
	Detail string
	Err    error
}

func (e *DecodeError) Error() string {
	return "decode: " + e.Detail
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode maps a status/body pair onto T.
//
//   - 2xx with a body parseable as T yields the value. Fields the schema
//     does not declare are ignored; fields it declares but the body omits
//     stay at their zero value.
//   - 2xx with an unparseable body yields a DecodeError.
//   - 404 yields a NotFoundError, 403 a PermissionDeniedError.
//   - Any other status yields an APIError when the body carries the
//     registry error envelope, otherwise a DecodeError.
//
// The url parameter only enriches error messages; it takes no part in the
// decision.
func Decode[T any](status int, body []byte, url string) (T, error) {
	var zero T

	switch {
	case status >= 200 && status < 300:
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return zero, &DecodeError{Detail: describe(err), Err: err}
		}
		return v, nil

	case status == http.StatusNotFound:
		return zero, &NotFoundError{URL: url}

	case status == http.StatusForbidden:
		return zero, &PermissionDeniedError{Reason: strings.TrimSpace(string(body))}

	default:
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err != nil {
			return zero, &DecodeError{
				Detail: fmt.Sprintf("status %d with unrecognized error body: %s", status, describe(err)),
				Err:    err,
			}
		}
		if len(apiErr.Errors) == 0 {
			return zero, &DecodeError{
				Detail: fmt.Sprintf("status %d without error envelope", status),
			}
		}
		apiErr.Status = status
		return zero, &apiErr
	}
}

// describe extracts the offending field or offset from a json error.
func describe(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "(root)"
		}
		return fmt.Sprintf("unexpected %s for field %q of %s at offset %d",
			typeErr.Value, field, typeErr.Type, typeErr.Offset)
	}

	var synErr *json.SyntaxError
	if errors.As(err, &synErr) {
		return fmt.Sprintf("malformed JSON at offset %d: %v", synErr.Offset, synErr)
	}

	return err.Error()
}
