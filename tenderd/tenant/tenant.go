// Package tenant turns request credentials into the (identity, active
// organization) pair that every permission check runs against.
package tenant

import (
	"context"
	"database/sql"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/tenderd/tenderd/tenderd/database"
	"github.com/tenderd/tenderd/tenderd/database/dbtime"
	"github.com/tenderd/tenderd/tenderd/rbac"
	"github.com/tenderd/tenderd/tenderd/rbac/policy"
	"github.com/tenderd/tenderd/tenderd/tracing"
)

const (
	SessionTokenHeader = "Tenderd-Session-Token"
	SessionTokenCookie = "tenderd_session_token"

	DefaultSessionDuration = 24 * time.Hour
)

var (
	// ErrUnauthenticated is returned for absent, malformed, unknown or
	// expired credentials.
	ErrUnauthenticated = xerrors.New("unauthenticated")
	// ErrNoActiveOrganization means the identity is valid but the session
	// has not selected an organization yet.
	ErrNoActiveOrganization = xerrors.New("session has no active organization")
	// ErrOrganizationMismatch means the request targets an organization
	// other than the session's active one. It is never resolved by
	// switching implicitly.
	ErrOrganizationMismatch = xerrors.New("requested organization does not match the active organization")
)

// SessionStore persists sessions. A missing session is reported as
// sql.ErrNoRows. database.Store satisfies it.
type SessionStore interface {
	GetSessionByID(ctx context.Context, id string) (database.Session, error)
	InsertSession(ctx context.Context, arg database.InsertSessionParams) (database.Session, error)
	UpdateSessionActiveOrganization(ctx context.Context, arg database.UpdateSessionActiveOrganizationParams) (database.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

type Options struct {
	Sessions SessionStore
	Members  rbac.MembershipReader
	Logger   slog.Logger
	// Clock defaults to the real clock.
	Clock quartz.Clock
	// SessionDuration defaults to DefaultSessionDuration.
	SessionDuration time.Duration
}

type Resolver struct {
	sessions SessionStore
	members  rbac.MembershipReader
	log      slog.Logger
	clock    quartz.Clock
	duration time.Duration
}

func New(opts Options) *Resolver {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.SessionDuration <= 0 {
		opts.SessionDuration = DefaultSessionDuration
	}
	return &Resolver{
		sessions: opts.Sessions,
		members:  opts.Members,
		log:      opts.Logger.Named("tenant"),
		clock:    opts.Clock,
		duration: opts.SessionDuration,
	}
}

// Authenticate resolves the identity behind a token without requiring an
// active organization. Org-agnostic routes use it directly.
func (r *Resolver) Authenticate(ctx context.Context, token string) (database.Session, error) {
	ctx, span := tracing.StartSpan(ctx)
	defer span.End()

	if token == "" {
		return database.Session{}, xerrors.Errorf("no session token: %w", ErrUnauthenticated)
	}
	id, secret, err := SplitToken(token)
	if err != nil {
		return database.Session{}, xerrors.Errorf("malformed session token (%s): %w", err, ErrUnauthenticated)
	}

	session, err := r.sessions.GetSessionByID(ctx, id)
	if xerrors.Is(err, sql.ErrNoRows) {
		return database.Session{}, xerrors.Errorf("session %q not found: %w", id, ErrUnauthenticated)
	}
	if err != nil {
		return database.Session{}, rbac.Unavailable(xerrors.Errorf("get session: %w", err))
	}
	if !secretMatches(secret, session.HashedSecret) {
		return database.Session{}, xerrors.Errorf("session secret mismatch: %w", ErrUnauthenticated)
	}
	if !r.clock.Now().Before(session.ExpiresAt) {
		return database.Session{}, xerrors.Errorf("session expired at %s: %w", session.ExpiresAt, ErrUnauthenticated)
	}
	span.SetAttributes(attribute.String("user_id", session.UserID.String()))
	return session, nil
}

// ResolveContext returns the subject for an organization-scoped request.
// The organization always comes from the session. requested is the
// organization the caller targeted, or uuid.Nil when none was supplied.
func (r *Resolver) ResolveContext(ctx context.Context, token string, requested uuid.UUID) (rbac.Subject, error) {
	ctx, span := tracing.StartSpan(ctx, trace.WithAttributes(
		attribute.String("requested_organization_id", requested.String()),
	))
	defer span.End()

	session, err := r.Authenticate(ctx, token)
	if err != nil {
		return rbac.Subject{}, err
	}
	if !session.HasActiveOrganization() {
		return rbac.Subject{}, ErrNoActiveOrganization
	}
	active := session.ActiveOrganizationID.UUID
	if requested != uuid.Nil && requested != active {
		r.log.Debug(ctx, "organization mismatch",
			slog.F("user_id", session.UserID),
			slog.F("active_organization_id", active),
			slog.F("requested_organization_id", requested),
		)
		return rbac.Subject{}, xerrors.Errorf("active %s, requested %s: %w", active, requested, ErrOrganizationMismatch)
	}
	return rbac.Subject{UserID: session.UserID, OrganizationID: active}, nil
}

// Issue creates a session for an authenticated user and returns its token.
// activeOrganization may be empty; the session then has to switch before
// organization-scoped requests succeed.
func (r *Resolver) Issue(ctx context.Context, userID uuid.UUID, activeOrganization uuid.NullUUID) (string, database.Session, error) {
	id, secret, err := generateToken()
	if err != nil {
		return "", database.Session{}, err
	}
	now := dbtime.Time(r.clock.Now())
	session, err := r.sessions.InsertSession(ctx, database.InsertSessionParams{
		ID:                   id,
		HashedSecret:         HashSecret(secret),
		UserID:               userID,
		ActiveOrganizationID: activeOrganization,
		CreatedAt:            now,
		ExpiresAt:            now.Add(r.duration),
	})
	if err != nil {
		return "", database.Session{}, xerrors.Errorf("insert session: %w", err)
	}
	return id + "-" + secret, session, nil
}

// SwitchOrganization moves the session's active organization pointer. The
// user must be a member of the target organization.
func (r *Resolver) SwitchOrganization(ctx context.Context, token string, organizationID uuid.UUID) (database.Session, error) {
	ctx, span := tracing.StartSpan(ctx)
	defer span.End()

	session, err := r.Authenticate(ctx, token)
	if err != nil {
		return database.Session{}, err
	}
	_, err = r.members.GetMemberRole(ctx, session.UserID, organizationID)
	if xerrors.Is(err, sql.ErrNoRows) {
		return database.Session{}, rbac.ForbiddenWithInternal(rbac.ReasonNoMembership,
			xerrors.Errorf("user %s is not a member of %s", session.UserID, organizationID),
			rbac.Subject{UserID: session.UserID, OrganizationID: organizationID},
			policy.ActionRead, rbac.ResourceOrganization.WithID(organizationID).InOrg(organizationID))
	}
	if err != nil {
		return database.Session{}, rbac.Unavailable(xerrors.Errorf("get membership: %w", err))
	}

	session, err = r.sessions.UpdateSessionActiveOrganization(ctx, database.UpdateSessionActiveOrganizationParams{
		ID:                   session.ID,
		ActiveOrganizationID: uuid.NullUUID{UUID: organizationID, Valid: true},
	})
	if err != nil {
		return database.Session{}, xerrors.Errorf("update session: %w", err)
	}
	return session, nil
}

// Logout destroys the session behind token.
func (r *Resolver) Logout(ctx context.Context, token string) error {
	session, err := r.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if err := r.sessions.DeleteSession(ctx, session.ID); err != nil && !xerrors.Is(err, sql.ErrNoRows) {
		return xerrors.Errorf("delete session: %w", err)
	}
	return nil
}
