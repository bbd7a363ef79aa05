// Package dbauthz wraps a database.Store so that every query is authorized
// against the actor carried by the context. Handlers use the wrapped store
// and cannot reach a resource without passing the permission evaluator.
package dbauthz

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/tenderd/tenderd/tenderd/audit"
	"github.com/tenderd/tenderd/tenderd/database"
	"github.com/tenderd/tenderd/tenderd/lifecycle"
	"github.com/tenderd/tenderd/tenderd/rbac"
	"github.com/tenderd/tenderd/tenderd/rbac/policy"
)

var _ database.Store = (*querier)(nil)

const wrapname = "dbauthz.querier"

// NoActorError is returned if no actor is present in the context.
var NoActorError = xerrors.Errorf("no authorization actor in context")

// ErrSystemOnly is returned when a query that only the server itself may
// run is called with a user actor.
var ErrSystemOnly = xerrors.New("query is restricted to the system actor")

// ErrStatusChanged is returned when a resource did not have the status a
// write expected, or kept changing while it was being authorized.
var ErrStatusChanged = xerrors.New("resource status changed")

// ErrAwardRequired is returned for a status change that awards a tender
// outside of a transaction started with AsAward. The award must create the
// tender's project in the same transaction.
var ErrAwardRequired = xerrors.New("awarding a tender must create its project in the same transaction")

// errRowChanged marks a guarded write that matched no row.
var errRowChanged = xerrors.New("row changed after it was authorized")

const writeAttempts = 3

type querier struct {
	db      database.Store
	auth    rbac.Authorizer
	log     slog.Logger
	auditor audit.Auditor
	inTx    bool
}

func New(db database.Store, authorizer rbac.Authorizer, logger slog.Logger, auditor audit.Auditor) database.Store {
	// If the underlying db store is already a querier, return it.
	// Do not double wrap.
	for _, w := range db.Wrappers() {
		if w == wrapname {
			return db
		}
	}
	if auditor == nil {
		auditor = audit.NewNop()
	}
	return &querier{
		db:      db,
		auth:    authorizer,
		log:     logger,
		auditor: auditor,
	}
}

func (q *querier) Wrappers() []string {
	return append(q.db.Wrappers(), wrapname)
}

func (q *querier) Ping(ctx context.Context) (time.Duration, error) {
	return q.db.Ping(ctx)
}

// InTx runs fn with a transaction-scoped store that is authorized the same
// way. Authorization inside the transaction reads through it.
func (q *querier) InTx(function func(database.Store) error, txOpts *database.TxOptions) error {
	return q.db.InTx(func(tx database.Store) error {
		auth := q.auth
		if strict, ok := auth.(*rbac.StrictAuthorizer); ok {
			auth = strict.WithReaders(database.Memberships(tx), database.Snapshots(tx))
		}
		wrapped := &querier{db: tx, auth: auth, log: q.log, auditor: q.auditor, inTx: true}
		return function(wrapped)
	}, txOpts)
}

type authContextKey struct{}

type awardContextKey struct{}

type actor struct {
	subject rbac.Subject
	system  bool
}

// As returns a context with the given subject stored in the context.
// This is used for authorization checks.
func As(ctx context.Context, subject rbac.Subject) context.Context {
	return context.WithValue(ctx, authContextKey{}, actor{subject: subject})
}

// AsSystem returns a context for queries run by the server itself, such as
// side effects of an action that was already authorized. An existing user
// subject is kept for audit.
func AsSystem(ctx context.Context) context.Context {
	a, _ := ctx.Value(authContextKey{}).(actor)
	a.system = true
	return context.WithValue(ctx, authContextKey{}, a)
}

// ActorFromContext returns the authorization subject from the context.
// All authentication flows should set the authorization subject in the context.
// If no actor is present, the function returns false.
func ActorFromContext(ctx context.Context) (rbac.Subject, bool) {
	a, ok := ctx.Value(authContextKey{}).(actor)
	if !ok || (a.subject == rbac.Subject{}) {
		return rbac.Subject{}, false
	}
	return a.subject, true
}

// AsAward marks ctx as the award path. Inside a transaction it allows the
// status change that awards a tender; the caller creates the project.
func AsAward(ctx context.Context) context.Context {
	return context.WithValue(ctx, awardContextKey{}, true)
}

func isAward(ctx context.Context) bool {
	award, _ := ctx.Value(awardContextKey{}).(bool)
	return award
}

func isSystem(ctx context.Context) bool {
	a, ok := ctx.Value(authContextKey{}).(actor)
	return ok && a.system
}

// authorizeContext is a helper function to authorize an action on an object.
func (q *querier) authorizeContext(ctx context.Context, action policy.Action, object rbac.Objecter) error {
	if isSystem(ctx) {
		return nil
	}
	act, ok := ActorFromContext(ctx)
	if !ok {
		return NoActorError
	}

	err := q.auth.Authorize(ctx, act, action, object.RBACObject())
	if err != nil {
		return q.notAuthorized(ctx, err)
	}
	return nil
}

func (*querier) authorizeSystem(ctx context.Context) error {
	if isSystem(ctx) {
		return nil
	}
	if _, ok := ActorFromContext(ctx); !ok {
		return NoActorError
	}
	return ErrSystemOnly
}

// notAuthorized logs and audits a denial. Unavailability is passed through
// untouched; it is not a denial.
func (q *querier) notAuthorized(ctx context.Context, err error) error {
	var uerr *rbac.UnauthorizedError
	if !xerrors.As(err, &uerr) {
		return err
	}
	q.log.Debug(ctx, "unauthorized",
		slog.F("reason", uerr.Reason()),
		slog.F("internal_error", uerr.Internal()),
		slog.F("input", uerr.Object().String()),
		slog.F("action", uerr.Action()),
	)
	aerr := q.auditor.Export(ctx, audit.Log{
		OrganizationID:  uerr.Subject().OrganizationID,
		UserID:          uerr.Subject().UserID,
		Action:          audit.ActionDenied,
		ResourceType:    uerr.Object().Type,
		ResourceID:      uerr.Object().ID,
		Reason:          string(uerr.Reason()),
		RequestedAction: string(uerr.Action()),
	})
	if aerr != nil {
		q.log.Warn(ctx, "export denial audit log", slog.Error(aerr))
	}
	return err
}

// fetchError keeps not-found as it is so that it is answered like a
// denial. Any other failure to read the object means no decision could be
// made.
func fetchError(err error) error {
	if xerrors.Is(err, sql.ErrNoRows) {
		return xerrors.Errorf("fetch object: %w", err)
	}
	return rbac.Unavailable(xerrors.Errorf("fetch object: %w", err))
}

// fetch is a generic function that wraps a database query function
// (returns an object and an error) with authorization. The returned object
// is only returned if the actor may perform the action on it.
func fetchWithAction[ArgumentType any, ObjectType rbac.Objecter](
	q *querier,
	action policy.Action,
	f func(ctx context.Context, arg ArgumentType) (ObjectType, error),
) func(ctx context.Context, arg ArgumentType) (ObjectType, error) {
	return func(ctx context.Context, arg ArgumentType) (empty ObjectType, err error) {
		object, err := f(ctx, arg)
		if err != nil {
			return empty, fetchError(err)
		}
		if err := q.authorizeContext(ctx, action, object); err != nil {
			return empty, err
		}
		return object, nil
	}
}

func fetch[ArgumentType any, ObjectType rbac.Objecter](
	q *querier,
	f func(ctx context.Context, arg ArgumentType) (ObjectType, error),
) func(ctx context.Context, arg ArgumentType) (ObjectType, error) {
	return fetchWithAction(q, policy.ActionRead, f)
}

// deleteByID authorizes a delete whose rule does not depend on the
// resource's state. Membership and the resource are read together.
func (q *querier) deleteByID(ctx context.Context, resourceType string, id uuid.UUID, deleteFunc func(ctx context.Context, id uuid.UUID) error) error {
	if !isSystem(ctx) {
		act, ok := ActorFromContext(ctx)
		if !ok {
			return NoActorError
		}
		var err error
		if q.inTx {
			// A transaction holds one connection, so read sequentially.
			var obj rbac.Object
			obj, err = database.Snapshots(q.db).GetSnapshot(ctx, resourceType, id)
			if err != nil {
				return fetchError(err)
			}
			err = q.auth.Authorize(ctx, act, policy.ActionDelete, obj)
		} else {
			err = q.auth.AuthorizeByID(ctx, act, policy.ActionDelete, resourceType, id)
		}
		if err != nil {
			return q.notAuthorized(ctx, err)
		}
	}
	return deleteFunc(ctx, id)
}

// guardedWrite runs attempt until its write applies to the state it was
// authorized against. A write that matched no row means the resource
// changed after it was read, so the next attempt reads and authorizes
// again.
func guardedWrite[T any](attempt func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for i := 0; i < writeAttempts; i++ {
		out, err = attempt()
		if !xerrors.Is(err, errRowChanged) {
			return out, err
		}
	}
	return out, xerrors.Errorf("gave up after %d attempts: %w", writeAttempts, ErrStatusChanged)
}

// updateStatus authorizes a status write with the action the lifecycle
// transition requires. Illegal transitions never reach the store, and the
// write only applies while the resource still has the status that was
// checked.
func updateStatus[ObjectType rbac.Objecter](
	q *querier,
	fetchFunc func(ctx context.Context, id uuid.UUID) (ObjectType, error),
	updateFunc func(ctx context.Context, arg database.UpdateStatusParams) (ObjectType, error),
) func(ctx context.Context, arg database.UpdateStatusParams) (ObjectType, error) {
	return func(ctx context.Context, arg database.UpdateStatusParams) (ObjectType, error) {
		return guardedWrite(func() (empty ObjectType, err error) {
			current, err := fetchFunc(ctx, arg.ID)
			if err != nil {
				return empty, fetchError(err)
			}
			obj := current.RBACObject()
			var from string
			if obj.Snapshot != nil {
				from = obj.Snapshot.Status
			}
			if arg.FromStatus != "" && arg.FromStatus != from {
				return empty, xerrors.Errorf("%s is %q, expected %q: %w", obj.Type, from, arg.FromStatus, ErrStatusChanged)
			}
			transition, err := lifecycle.ValidateTransition(obj.Type, from, arg.Status)
			if err != nil {
				return empty, err
			}
			if transition.Award && !(q.inTx && isAward(ctx)) {
				return empty, xerrors.Errorf("%s %q to %q: %w", obj.Type, from, arg.Status, ErrAwardRequired)
			}
			if err := q.authorizeContext(ctx, lifecycle.RequiredAction(transition), obj); err != nil {
				return empty, err
			}

			guarded := arg
			guarded.FromStatus = from
			updated, err := updateFunc(ctx, guarded)
			if xerrors.Is(err, sql.ErrNoRows) {
				return empty, errRowChanged
			}
			return updated, err
		})
	}
}
