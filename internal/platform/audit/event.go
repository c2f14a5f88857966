// Package audit records one event per inbound request and persists it to an
// append-only store.
package audit

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Action is the CRUD class of a request.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Outcome is the final disposition of a request.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ResultCode refines Outcome by the response status.
type ResultCode string

const (
	ResultSuccess      ResultCode = "success"
	ResultFailure      ResultCode = "failure"
	ResultUnauthorized ResultCode = "unauthorized"
	ResultSystemError  ResultCode = "system_error"
)

// Anonymous is the actor recorded when no principal is authenticated.
const Anonymous = "anonymous"

// Event is a persisted record of who accessed what, when, with what outcome.
type Event struct {
	ID           uuid.UUID     `json:"id"`
	ActorID      string        `json:"actorId"`
	Timestamp    time.Time     `json:"timestamp"`
	ResourceName string        `json:"resourceName"`
	Action       Action        `json:"action"`
	Outcome      Outcome       `json:"outcome"`
	TraceID      string        `json:"traceId"`
	Subject      string        `json:"subject,omitempty"`
	Application  string        `json:"application,omitempty"`
	Version      string        `json:"version,omitempty"`
	Method       string        `json:"method,omitempty"`
	Path         string        `json:"path,omitempty"`
	ClientIP     string        `json:"clientIp,omitempty"`
	UserAgent    string        `json:"userAgent,omitempty"`
	StatusCode   int           `json:"statusCode"`
	ResultCode   ResultCode    `json:"resultCode"`
	Duration     time.Duration `json:"durationNs"`
}

// ActionForMethod maps an HTTP method to an Action. Unknown methods are
// reads.
func ActionForMethod(method string) Action {
	switch method {
	case http.MethodPost:
		return ActionCreate
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionRead
	}
}

// ResultCodeForStatus classifies a response status.
func ResultCodeForStatus(status int) ResultCode {
	switch {
	case status >= 200 && status < 400:
		return ResultSuccess
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ResultUnauthorized
	case status >= 500:
		return ResultSystemError
	default:
		return ResultFailure
	}
}

// OutcomeFor is Success only for a successful result code.
func OutcomeFor(rc ResultCode) Outcome {
	if rc == ResultSuccess {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
