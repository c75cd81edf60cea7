package clash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind identifies the class of a failure
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotReady
	KindInvalidCredentials
	KindBadURL
	KindRequestFailed
	KindInvalidHeader
	KindFailedGetIP
	KindBadParameters
	KindAccessDenied
	KindNotFound
	KindThrottled
	KindMaintenance
	KindInvalidParameters
	KindBadResponse
	KindInvalidTag
	KindSerializationFailed
)

var kindNames = map[ErrorKind]string{
	KindUnknown:             "UNKNOWN",
	KindNotReady:            "NOT_READY",
	KindInvalidCredentials:  "INVALID_CREDENTIALS",
	KindBadURL:              "BAD_URL",
	KindRequestFailed:       "REQUEST_FAILED",
	KindInvalidHeader:       "INVALID_HEADER",
	KindFailedGetIP:         "FAILED_GET_IP",
	KindBadParameters:       "BAD_PARAMETERS",
	KindAccessDenied:        "ACCESS_DENIED",
	KindNotFound:            "NOT_FOUND",
	KindThrottled:           "THROTTLED",
	KindMaintenance:         "MAINTENANCE",
	KindInvalidParameters:   "INVALID_PARAMETERS",
	KindBadResponse:         "BAD_RESPONSE",
	KindInvalidTag:          "INVALID_TAG",
	KindSerializationFailed: "SERIALIZATION_FAILED",
}

var kindMessages = map[ErrorKind]string{
	KindUnknown:             "unknown error",
	KindNotReady:            "client is not logged in",
	KindInvalidCredentials:  "invalid credentials",
	KindBadURL:              "failed to parse URL",
	KindRequestFailed:       "request failed",
	KindInvalidHeader:       "invalid header",
	KindFailedGetIP:         "failed to get ip address",
	KindBadParameters:       "client provided incorrect parameters",
	KindAccessDenied:        "access denied",
	KindNotFound:            "resource not found",
	KindThrottled:           "request throttled",
	KindMaintenance:         "server under maintenance",
	KindInvalidParameters:   "invalid parameters",
	KindBadResponse:         "bad response",
	KindInvalidTag:          "invalid tag",
	KindSerializationFailed: "serialization or deserialization failed",
}

// String returns the upper snake case name of the kind
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinel errors, one per kind. They match any *APIError of the same kind
// with errors.Is.
var (
	ErrUnknown             = &APIError{Kind: KindUnknown}
	ErrNotReady            = &APIError{Kind: KindNotReady}
	ErrInvalidCredentials  = &APIError{Kind: KindInvalidCredentials}
	ErrBadURL              = &APIError{Kind: KindBadURL}
	ErrRequestFailed       = &APIError{Kind: KindRequestFailed}
	ErrInvalidHeader       = &APIError{Kind: KindInvalidHeader}
	ErrFailedGetIP         = &APIError{Kind: KindFailedGetIP}
	ErrBadParameters       = &APIError{Kind: KindBadParameters}
	ErrAccessDenied        = &APIError{Kind: KindAccessDenied}
	ErrNotFound            = &APIError{Kind: KindNotFound}
	ErrThrottled           = &APIError{Kind: KindThrottled}
	ErrMaintenance         = &APIError{Kind: KindMaintenance}
	ErrInvalidParameters   = &APIError{Kind: KindInvalidParameters}
	ErrBadResponse         = &APIError{Kind: KindBadResponse}
	ErrInvalidTag          = &APIError{Kind: KindInvalidTag}
	ErrSerializationFailed = &APIError{Kind: KindSerializationFailed}
)

// ClientError is the error document returned by the API and the portal.
// The statistics API fills Reason and Message; the portal fills Error and
// Description when no session is found. Detail has no fixed shape and is kept
// verbatim.
type ClientError struct {
	Reason      string          `json:"reason,omitempty"`
	Message     string          `json:"message,omitempty"`
	Type        string          `json:"type,omitempty"`
	Detail      json.RawMessage `json:"detail,omitempty"`
	ErrorCode   string          `json:"error,omitempty"`
	Description string          `json:"description,omitempty"`
}

// APIError is the single error type returned by this package
type APIError struct {
	Kind       ErrorKind
	Detail     string
	StatusCode int
	Body       []byte
	Remote     *ClientError
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(kindMessages[e.Kind])
	if b.Len() == 0 {
		b.WriteString(e.Kind.String())
	}
	switch {
	case e.Detail != "":
		b.WriteString(": ")
		b.WriteString(e.Detail)
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *APIError of the same kind
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Temporary reports whether retrying the same call later may succeed.
// The package itself never retries.
func (e *APIError) Temporary() bool {
	switch e.Kind {
	case KindThrottled, KindMaintenance, KindRequestFailed:
		return true
	}
	return false
}

// KindOf returns the kind of err, or KindUnknown when err is not an *APIError
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// Classify maps a non-2xx HTTP status and its body to an *APIError.
// It returns nil for 2xx statuses.
func Classify(status int, body []byte) *APIError {
	if status >= 200 && status <= 299 {
		return nil
	}

	apiErr := &APIError{
		StatusCode: status,
		Body:       body,
	}

	switch status {
	case http.StatusBadRequest:
		apiErr.Kind = KindBadParameters
	case http.StatusForbidden:
		apiErr.Kind = KindAccessDenied
	case http.StatusNotFound:
		apiErr.Kind = KindNotFound
	case http.StatusTooManyRequests:
		apiErr.Kind = KindThrottled
	case http.StatusServiceUnavailable:
		apiErr.Kind = KindMaintenance
	default:
		apiErr.Kind = KindBadResponse
		apiErr.Detail = string(body)
	}

	var remote ClientError
	if len(body) > 0 && json.Unmarshal(body, &remote) == nil {
		apiErr.Remote = &remote
		if apiErr.Detail == "" {
			apiErr.Detail = remote.summary()
		}
	}

	return apiErr
}

func (c *ClientError) summary() string {
	switch {
	case c.Reason != "" && c.Message != "":
		return c.Reason + ": " + c.Message
	case c.Reason != "":
		return c.Reason
	case c.Message != "":
		return c.Message
	case c.ErrorCode != "" && c.Description != "":
		return c.ErrorCode + ": " + c.Description
	}
	return c.ErrorCode
}

func newError(kind ErrorKind, detail string) *APIError {
	return &APIError{Kind: kind, Detail: detail}
}

func wrapError(kind ErrorKind, err error) *APIError {
	return &APIError{Kind: kind, Detail: err.Error(), Err: err}
}

// requestError wraps a transport failure. Timeouts and cancellations keep the
// context error reachable through errors.Is.
func requestError(err error) *APIError {
	apiErr := wrapError(KindRequestFailed, err)
	if errors.Is(err, context.DeadlineExceeded) {
		apiErr.Detail = "timeout: " + apiErr.Detail
	}
	return apiErr
}

func decodeError(err error) *APIError {
	return wrapError(KindSerializationFailed, err)
}
