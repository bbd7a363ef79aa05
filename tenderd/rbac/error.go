package rbac

import (
	"flag"
	"fmt"

	"golang.org/x/xerrors"

	"github.com/tenderd/tenderd/tenderd/rbac/policy"
)

// errUnauthorized is the only message a client ever sees for a denial.
// Whether the resource exists or which rule failed stays internal.
const errUnauthorized = "rbac: forbidden"

// Reason distinguishes denials for logging and audit. It is never part of
// the client-facing message.
type Reason string

const (
	ReasonNoMembership        Reason = "no_membership"
	ReasonUnknownRole         Reason = "unknown_role"
	ReasonUnknownResourceType Reason = "unknown_resource_type"
	ReasonActionNotGranted    Reason = "action_not_granted"
	ReasonConditionFailed     Reason = "condition_failed"
	ReasonMissingSnapshot     Reason = "missing_snapshot_for_conditional_rule"
	ReasonCrossOrganization   Reason = "cross_organization"
	ReasonResourceNotFound    Reason = "resource_not_found"
)

// ErrTemporarilyUnavailable is returned when a collaborator needed for a
// decision failed. It is not a denial and must not be treated as one.
var ErrTemporarilyUnavailable = xerrors.New("authorization temporarily unavailable")

// UnavailableError wraps the underlying store failure while still matching
// ErrTemporarilyUnavailable.
type UnavailableError struct {
	err error
}

func Unavailable(err error) error {
	return &UnavailableError{err: err}
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v", ErrTemporarilyUnavailable, e.err)
}

func (e *UnavailableError) Unwrap() error {
	return e.err
}

func (*UnavailableError) Is(target error) bool {
	return target == ErrTemporarilyUnavailable
}

// UnauthorizedError is the error type for authorization errors
type UnauthorizedError struct {
	// internal is the internal error that should never be shown to the client.
	internal error
	reason   Reason

	subject Subject
	action  policy.Action
	object  Object
}

// ForbiddenWithInternal creates a new error that will return a simple
// "forbidden" to the client, logging internally the more detailed message
// provided.
func ForbiddenWithInternal(reason Reason, internal error, subject Subject, action policy.Action, object Object) *UnauthorizedError {
	return &UnauthorizedError{
		internal: internal,
		reason:   reason,
		subject:  subject,
		action:   action,
		object:   object,
	}
}

// IsUnauthorizedError is a convenience function to check if err is UnauthorizedError.
func IsUnauthorizedError(err error) bool {
	var uerr *UnauthorizedError
	return xerrors.As(err, &uerr)
}

// ReasonOf returns the denial reason carried by err, if any.
func ReasonOf(err error) (Reason, bool) {
	var uerr *UnauthorizedError
	if !xerrors.As(err, &uerr) {
		return "", false
	}
	return uerr.reason, true
}

func (e *UnauthorizedError) Reason() Reason {
	return e.reason
}

func (e *UnauthorizedError) Unwrap() error {
	return e.internal
}

func (e *UnauthorizedError) longError() string {
	return fmt.Sprintf(
		"%s: (reason: %s), (subject: %v), (action: %v), (object: %v), (internal: %v)",
		errUnauthorized, e.reason, e.subject, e.action, e.object, e.internal,
	)
}

// Error implements the error interface.
func (e *UnauthorizedError) Error() string {
	if flag.Lookup("test.v") != nil {
		return e.longError()
	}
	return errUnauthorized
}

// Internal allows the internal error message to be logged.
func (e *UnauthorizedError) Internal() error {
	return e.internal
}

func (e *UnauthorizedError) Subject() Subject {
	return e.subject
}

func (e *UnauthorizedError) Action() policy.Action {
	return e.action
}

func (e *UnauthorizedError) Object() Object {
	return e.object
}
