package twikey

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// RemoteError is any failure talking to the remote service: a vendor-signaled
// API error (detected via the ApiErrorCode response header, not solely HTTP
// status) or a network-level failure. Op names the operation that failed
// ("Invite", "Sign", "Feed", "auth", ...).
type RemoteError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("twikey: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("twikey: %s: %s (code=%s, http=%d)", e.Op, e.Message, e.Code, e.StatusCode)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// apiErrorBody is the JSON error envelope the remote sends alongside the
// ApiErrorCode header.
type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// remoteError builds a RemoteError from a response carrying the vendor
// error header. The body is decoded on a best-effort basis; the header
// value is authoritative for the code.
func remoteError(op string, resp *http.Response) *RemoteError {
	e := &RemoteError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Code:       resp.Header.Get(headerAPIError),
	}
	var body apiErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		e.Message = body.Message
		if body.Code != "" {
			e.Code = body.Code
		}
	}
	if e.Message == "" {
		e.Message = resp.Status
	}
	return e
}

// requestError wraps a network-level failure (timeout, connection refused,
// malformed response) for the given operation.
func requestError(op string, err error) *RemoteError {
	return &RemoteError{Op: op, Err: err}
}
