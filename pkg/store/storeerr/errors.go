// Package storeerr defines the error taxonomy shared by the resource store,
// the search engine, and the subscription engine. All failures are values,
// never panics: callers inspect a Kind and translate it to a response, they
// never unwind across a request boundary.
package storeerr

import (
	"errors"
	"fmt"
)

// Kind categorizes a store failure independent of its message. It maps
// directly onto the FHIR interaction error taxonomy and the HTTP status a
// transport layer should use, without the store importing net/http.
type Kind int

const (
	// KindInternal is an invariant violation inside the store.
	KindInternal Kind = iota
	// KindMalformedInput is a body or query string that failed to parse.
	KindMalformedInput
	// KindUnsupportedType is an interaction against a type the tenant does not support.
	KindUnsupportedType
	// KindNotFound is a (type, id) absent from the store.
	KindNotFound
	// KindPreconditionFailed is an If-Match/If-None-Match mismatch.
	KindPreconditionFailed
	// KindConflict is a conditional create matching multiple resources, or an id collision.
	KindConflict
	// KindUnsupportedMediaType is an unrecognized source or destination wire format.
	KindUnsupportedMediaType
	// KindInvariant is a resource that fails structural or business-rule validation.
	KindInvariant
	// KindCancelled is a caller-requested cancellation.
	KindCancelled
)

// HTTPStatus returns the status code spec.md §7 associates with this Kind.
// The store returns only the integer; it never imports net/http itself.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindMalformedInput:
		return 400
	case KindUnsupportedType, KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindPreconditionFailed:
		return 412
	case KindUnsupportedMediaType:
		return 415
	case KindInvariant:
		return 422
	case KindCancelled:
		return 499
	default:
		return 500
	}
}

// IssueCode returns the OperationOutcome issue-type code conventionally
// paired with this Kind, mirroring pkg/validator's issue-code vocabulary.
func (k Kind) IssueCode() string {
	switch k {
	case KindMalformedInput:
		return "structure"
	case KindUnsupportedType:
		return "not-supported"
	case KindNotFound:
		return "not-found"
	case KindPreconditionFailed:
		return "conflict"
	case KindConflict:
		return "duplicate"
	case KindUnsupportedMediaType:
		return "not-supported"
	case KindInvariant:
		return "invariant"
	case KindCancelled:
		return "timeout"
	default:
		return "exception"
	}
}

func (k Kind) String() string {
	switch k {
	case KindMalformedInput:
		return "MalformedInput"
	case KindUnsupportedType:
		return "UnsupportedType"
	case KindNotFound:
		return "NotFound"
	case KindPreconditionFailed:
		return "PreconditionFailed"
	case KindConflict:
		return "Conflict"
	case KindUnsupportedMediaType:
		return "UnsupportedMediaType"
	case KindInvariant:
		return "Invariant"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Internal"
	}
}

// Error is the store's uniform error type. ResourceType/ID are populated
// when the failure concerns a specific instance so a caller can build an
// OperationOutcome without re-parsing the message.
type Error struct {
	Kind         Kind
	Message      string
	ResourceType string
	ID           string
	Underlying   error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Underlying }

// New builds an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Underlying: err}
}

// WithInstance annotates the error with the resource it concerns.
func (e *Error) WithInstance(resourceType, id string) *Error {
	e.ResourceType = resourceType
	e.ID = id
	return e
}

// KindOf extracts the Kind from err, or KindInternal if err does not wrap a *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// Sentinel constructors for the common cases, matching spec.md §7.

func NotFound(resourceType, id string) *Error {
	return New(KindNotFound, "%s/%s not found", resourceType, id).WithInstance(resourceType, id)
}

func UnsupportedType(resourceType string) *Error {
	return New(KindUnsupportedType, "resource type %q is not supported by this tenant", resourceType).WithInstance(resourceType, "")
}

func PreconditionFailed(resourceType, id, expected, got string) *Error {
	return New(KindPreconditionFailed, "If-Match %s did not match current ETag %s", expected, got).WithInstance(resourceType, id)
}

func AlreadyExists(resourceType, id string) *Error {
	return New(KindConflict, "%s/%s already exists", resourceType, id).WithInstance(resourceType, id)
}

func Cancelled() *Error {
	return New(KindCancelled, "operation cancelled")
}
