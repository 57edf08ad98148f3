// Package api provides RFC 7807 Problem Detail error responses and HTTP
// hygiene middleware for the governance API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dealforge/governor/pkg/contracts"
)

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs).
// All API error responses use this format.
type ProblemDetail struct {
	// Type is a URI reference that identifies the problem type. The last
	// path segment is the machine-readable fault kind.
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`
	// Status is the HTTP status code.
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
	// Instance is a URI reference identifying the specific occurrence.
	Instance string `json:"instance,omitempty"`
	// Reason carries the enforcement reason code for frozen-deal rejections.
	Reason string `json:"reason,omitempty"`
	// TraceID links to the distributed trace for this request.
	TraceID string `json:"trace_id,omitempty"`
}

// Error implements the error interface.
func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

func problemType(kind contracts.FaultKind) string {
	return fmt.Sprintf("https://dealforge.dev/errors/%s", string(kind))
}

// statusFor maps the fault taxonomy onto HTTP statuses. Enforcement
// rejections are 423 Locked: the resource exists and the request is well
// formed, the deal is just frozen.
func statusFor(kind contracts.FaultKind) int {
	switch kind {
	case contracts.FaultValidation:
		return http.StatusBadRequest
	case contracts.FaultNotFound:
		return http.StatusNotFound
	case contracts.FaultEnforcement:
		return http.StatusLocked
	case contracts.FaultConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func titleFor(kind contracts.FaultKind) string {
	switch kind {
	case contracts.FaultValidation:
		return "Bad Request"
	case contracts.FaultNotFound:
		return "Not Found"
	case contracts.FaultEnforcement:
		return "Deal Frozen"
	case contracts.FaultConflict:
		return "Conflict"
	default:
		return "Internal Server Error"
	}
}

// WriteFault maps an engine error to its problem-details response. Internal
// faults are logged but never leak their message to the client.
func WriteFault(w http.ResponseWriter, r *http.Request, err error) {
	kind := contracts.KindOf(err)

	problem := &ProblemDetail{
		Type:     problemType(kind),
		Title:    titleFor(kind),
		Status:   statusFor(kind),
		Instance: r.URL.Path,
		TraceID:  w.Header().Get("X-Request-ID"),
	}

	if kind == contracts.FaultInternal {
		slog.Error("internal server error", "path", r.URL.Path, "error", err)
		problem.Detail = "An unexpected error occurred. Please try again later."
	} else {
		var fault *contracts.Fault
		if errors.As(err, &fault) {
			problem.Detail = fault.Message
			problem.Reason = string(fault.Reason)
		} else {
			problem.Detail = err.Error()
		}
	}

	writeProblem(w, problem)
}

// WriteError writes a problem-details response for HTTP-layer failures that
// never touched the engine (bad routes, auth, rate limits).
func WriteError(w http.ResponseWriter, status int, title, detail string) {
	writeProblem(w, &ProblemDetail{
		Type:   fmt.Sprintf("https://dealforge.dev/errors/%d", status),
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func writeProblem(w http.ResponseWriter, problem *ProblemDetail) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

// WriteBadRequest writes a 400 error response.
func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusBadRequest, "Bad Request", detail)
}

// WriteUnauthorized writes a 401 error response.
func WriteUnauthorized(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "Authentication required"
	}
	WriteError(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusNotFound, "Not Found", detail)
}

// WriteMethodNotAllowed writes a 405 error response.
func WriteMethodNotAllowed(w http.ResponseWriter) {
	WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed",
		"The HTTP method is not supported for this endpoint")
}

// WriteTooManyRequests writes a 429 error response with Retry-After header.
func WriteTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	WriteError(w, http.StatusTooManyRequests, "Too Many Requests",
		"Rate limit exceeded. Retry after the specified interval.")
}
