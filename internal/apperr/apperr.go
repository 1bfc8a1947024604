// Package apperr provides the typed error taxonomy of the trip pipeline.
// Components return these errors so callers can tell "no route exists"
// apart from "the network failed" without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindEndpointNotFound indicates an endpoint could not be resolved to a coordinate.
	KindEndpointNotFound
	// KindGeocoderUnavailable indicates the external geocoder could not be reached.
	KindGeocoderUnavailable
	// KindNoRouteFound indicates the planner answered but has no route.
	KindNoRouteFound
	// KindPlannerRejected indicates the planner answered with an error message.
	KindPlannerRejected
	// KindNetwork indicates a transport-level failure (timeout, non-2xx, malformed body).
	KindNetwork
	// KindStationIndexMiss indicates a name is not in the station index. Never surfaced to users.
	KindStationIndexMiss
	// KindStale indicates a result was superseded by a newer request.
	KindStale
	// KindValidation indicates invalid input data.
	KindValidation
	// KindNotFound indicates a stored resource was not found.
	KindNotFound
	// KindInternal indicates an unexpected internal error.
	KindInternal
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindEndpointNotFound:    "endpoint_not_found",
	KindGeocoderUnavailable: "geocoder_unavailable",
	KindNoRouteFound:        "no_route_found",
	KindPlannerRejected:     "planner_rejected",
	KindNetwork:             "network_error",
	KindStationIndexMiss:    "station_index_miss",
	KindStale:               "stale",
	KindValidation:          "validation",
	KindNotFound:            "not_found",
	KindInternal:            "internal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a pipeline error with a typed Kind.
type Error struct {
	Kind    Kind
	Message string
	Op      string // Operation that failed (optional)
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the gateway status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindEndpointNotFound, KindNoRouteFound, KindNotFound:
		return http.StatusNotFound
	case KindPlannerRejected:
		return http.StatusUnprocessableEntity
	case KindValidation:
		return http.StatusBadRequest
	case KindGeocoderUnavailable, KindNetwork:
		return http.StatusBadGateway
	case KindStale:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WithOp sets the operation and returns the error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// New creates a new error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Convenience constructors for the pipeline taxonomy.

// EndpointNotFound creates an endpoint-not-found error.
func EndpointNotFound(message string) *Error {
	return New(KindEndpointNotFound, message)
}

// GeocoderUnavailable wraps a geocoder transport failure.
func GeocoderUnavailable(err error) *Error {
	return Wrap(KindGeocoderUnavailable, "geocoder unavailable", err)
}

// NoRouteFound creates a no-route error.
func NoRouteFound() *Error {
	return New(KindNoRouteFound, "no route found")
}

// PlannerRejected carries the planner's own error message.
func PlannerRejected(message string) *Error {
	return New(KindPlannerRejected, message)
}

// Network wraps a transport-level failure.
func Network(err error) *Error {
	return Wrap(KindNetwork, "network error", err)
}

// StationIndexMiss reports a name missing from the station index.
func StationIndexMiss(name string) *Error {
	return New(KindStationIndexMiss, fmt.Sprintf("station %q not in index", name))
}

// Stale reports a superseded result.
func Stale() *Error {
	return New(KindStale, "result superseded by a newer request")
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// GetKind extracts the error kind from an error chain.
// Returns KindUnknown if no *Error is found.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err wraps an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && GetKind(err) == kind
}

// Message returns the message of the first *Error in the chain, or err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// StatusOf returns the gateway status code for any error.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}
