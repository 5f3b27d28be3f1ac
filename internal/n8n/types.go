package n8n

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/errors"
)

// APIKeyHeader carries the API key on every request.
const APIKeyHeader = "X-N8N-API-KEY"

// Operation names used in APIError
const (
	OpLookup = "Lookup"
	OpCreate = "Create"
	OpUpdate = "Update"
)

// ID is a server-assigned workflow identifier. Current n8n versions send a
// string; older ones sent a number, which is accepted too.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("workflow id must be a string or number: %s", string(data))
	}
	*id = ID(n.String())
	return nil
}

// Workflow is the subset of a remote workflow the deployer reads.
type Workflow struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Created parses CreatedAt. ok is false when it is missing or malformed.
func (w Workflow) Created() (t time.Time, ok bool) {
	if w.CreatedAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, w.CreatedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// workflowList is the envelope of GET /api/v1/workflows
type workflowList struct {
	Data       []Workflow `json:"data"`
	NextCursor *string    `json:"nextCursor,omitempty"`
}

// errorBody is the shape of n8n error responses
type errorBody struct {
	Message string `json:"message"`
}

// APIError is returned when the server answers with a status other than the
// one an operation expects.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

// Unauthorized reports whether the server rejected the API key.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func (e *APIError) Error() string {
	if e.Unauthorized() {
		return fmt.Sprintf("Authentication failed (%d): Invalid API key", e.StatusCode)
	}

	msg := fmt.Sprintf("%s failed with status %d", e.Op, e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap maps the operation onto its sentinel, plus ErrAuthFailed for a
// rejected API key, so callers can use errors.Is.
func (e *APIError) Unwrap() []error {
	var op error
	switch e.Op {
	case OpLookup:
		op = errors.ErrLookupFailed
	case OpCreate:
		op = errors.ErrCreateFailed
	case OpUpdate:
		op = errors.ErrUpdateFailed
	default:
		op = errors.ErrHTTPStatusFailed
	}

	if e.Unauthorized() {
		return []error{op, errors.ErrAuthFailed}
	}
	return []error{op}
}
