package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrConnection wraps transport-level failures.
	ErrConnection = errors.New("connection to job service failed")
	// ErrUnauthorized is matched by 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrJobAlreadyFinished is returned when cancelling a job that has
	// already reached a terminal state.
	ErrJobAlreadyFinished = errors.New("job already finished")
	// ErrNoCredentials means a login was needed but no provider was set.
	ErrNoCredentials = errors.New("no credentials provider configured")
	// ErrWaitTimeout is returned when RetrieveJob runs out of time.
	ErrWaitTimeout = errors.New("timed out waiting for job")
)

// RemoteError is a non-success HTTP response from the service.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is match auth failures against ErrUnauthorized.
func (e *RemoteError) Is(target error) bool {
	if target == ErrUnauthorized {
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

func newRemoteError(status int, body []byte) *RemoteError {
	msg := strings.TrimSpace(string(body))
	var parsed struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		switch v := parsed.Error.(type) {
		case string:
			if v != "" {
				msg = v
			}
		case map[string]any:
			if text, ok := v["text"].(string); ok && text != "" {
				msg = text
			}
		}
		if parsed.Message != "" && msg == strings.TrimSpace(string(body)) {
			msg = parsed.Message
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &RemoteError{StatusCode: status, Message: msg}
}
