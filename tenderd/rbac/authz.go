package rbac

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/tenderd/tenderd/tenderd/rbac/policy"
	"github.com/tenderd/tenderd/tenderd/tracing"
)

// Subject is the resolved (identity, active organization) pair every
// decision is made for.
type Subject struct {
	UserID         uuid.UUID `json:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
}

func (s Subject) String() string {
	return s.UserID.String() + "@" + s.OrganizationID.String()
}

// MembershipReader returns the role name a user holds in an organization.
// A missing membership is reported as sql.ErrNoRows.
type MembershipReader interface {
	GetMemberRole(ctx context.Context, userID, organizationID uuid.UUID) (string, error)
}

// SnapshotReader returns the current persisted state of a resource as an
// Object. A missing resource is reported as sql.ErrNoRows.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, resourceType string, id uuid.UUID) (Object, error)
}

type Authorizer interface {
	// Authorize checks the action against an object the caller already
	// holds. For conditional rules the object must carry a snapshot.
	Authorize(ctx context.Context, subject Subject, action policy.Action, object Object) error
	// AuthorizeByID fetches the resource's current state before deciding.
	AuthorizeByID(ctx context.Context, subject Subject, action policy.Action, resourceType string, id uuid.UUID) error
}

// Can collapses a decision into a boolean. Store failures also return
// false here; callers that need to tell them apart use Authorize.
func Can(ctx context.Context, auth Authorizer, subject Subject, action policy.Action, object Object) bool {
	return auth.Authorize(ctx, subject, action, object) == nil
}

var _ Authorizer = (*StrictAuthorizer)(nil)

// StrictAuthorizer evaluates every request against freshly read membership
// and resource state. Nothing is cached between calls.
type StrictAuthorizer struct {
	registry  *Registry
	members   MembershipReader
	snapshots SnapshotReader

	authorizeHist *prometheus.HistogramVec
}

func NewAuthorizer(registry *Registry, members MembershipReader, snapshots SnapshotReader, registerer prometheus.Registerer) *StrictAuthorizer {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	factory := promauto.With(registerer)
	return &StrictAuthorizer{
		registry:  registry,
		members:   members,
		snapshots: snapshots,
		authorizeHist: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tenderd",
			Subsystem: "authz",
			Name:      "authorize_duration_seconds",
			Help:      "Duration of authorization decisions in seconds, by outcome and denial reason.",
			Buckets: []float64{
				0.0005, 0.001, 0.002, 0.003, 0.005,
				0.01, 0.02, 0.03, 0.05, 0.1, 0.5, 1,
			},
		}, []string{"allowed", "reason"}),
	}
}

// WithReaders returns an authorizer that shares a's registry and metrics but
// reads through the given readers. It is used to make decisions inside a
// transaction see that transaction's state.
func (a *StrictAuthorizer) WithReaders(members MembershipReader, snapshots SnapshotReader) *StrictAuthorizer {
	cpy := *a
	cpy.members = members
	cpy.snapshots = snapshots
	return &cpy
}

func (a *StrictAuthorizer) Authorize(ctx context.Context, subject Subject, action policy.Action, object Object) error {
	ctx, span := tracing.StartSpan(ctx, rbacTraceAttributes(subject, action, object.Type))
	defer span.End()

	start := time.Now()
	if object.OrgID != subject.OrganizationID.String() {
		return a.record(start, ForbiddenWithInternal(ReasonCrossOrganization,
			xerrors.Errorf("object organization %q is not the active organization", object.OrgID),
			subject, action, object))
	}

	role, err := a.members.GetMemberRole(ctx, subject.UserID, subject.OrganizationID)
	if err != nil {
		if xerrors.Is(err, sql.ErrNoRows) {
			return a.record(start, ForbiddenWithInternal(ReasonNoMembership,
				xerrors.New("no membership in organization"), subject, action, object))
		}
		return Unavailable(xerrors.Errorf("get member role: %w", err))
	}

	return a.record(start, a.decide(subject, role, action, object))
}

func (a *StrictAuthorizer) AuthorizeByID(ctx context.Context, subject Subject, action policy.Action, resourceType string, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, rbacTraceAttributes(subject, action, resourceType))
	defer span.End()

	start := time.Now()
	var (
		role      string
		roleErr   error
		object    Object
		objectErr error
		eg, egCtx = errgroup.WithContext(ctx)
	)
	// Not-found results are recorded rather than returned so the other
	// read is not cancelled.
	eg.Go(func() error {
		role, roleErr = a.members.GetMemberRole(egCtx, subject.UserID, subject.OrganizationID)
		if roleErr != nil && !xerrors.Is(roleErr, sql.ErrNoRows) {
			return xerrors.Errorf("get member role: %w", roleErr)
		}
		return nil
	})
	eg.Go(func() error {
		object, objectErr = a.snapshots.GetSnapshot(egCtx, resourceType, id)
		if objectErr != nil && !xerrors.Is(objectErr, sql.ErrNoRows) {
			return xerrors.Errorf("get %s snapshot: %w", resourceType, objectErr)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return Unavailable(err)
	}

	target := Object{Type: resourceType, ID: id.String(), OrgID: subject.OrganizationID.String()}
	switch {
	case roleErr != nil:
		return a.record(start, ForbiddenWithInternal(ReasonNoMembership,
			xerrors.New("no membership in organization"), subject, action, target))
	case objectErr != nil:
		return a.record(start, ForbiddenWithInternal(ReasonResourceNotFound,
			xerrors.Errorf("%s not found", resourceType), subject, action, target))
	case object.OrgID != subject.OrganizationID.String():
		return a.record(start, ForbiddenWithInternal(ReasonCrossOrganization,
			xerrors.Errorf("object organization %q is not the active organization", object.OrgID),
			subject, action, object))
	}

	return a.record(start, a.decide(subject, role, action, object))
}

func (a *StrictAuthorizer) decide(subject Subject, role string, action policy.Action, object Object) error {
	allowed, reason := a.registry.Allows(role, action, object)
	if allowed {
		return nil
	}
	return ForbiddenWithInternal(reason,
		xerrors.Errorf("role %q denied %s on %s", role, action, object.Type),
		subject, action, object)
}

func (a *StrictAuthorizer) record(start time.Time, err error) error {
	var reason Reason
	if err != nil {
		reason, _ = ReasonOf(err)
	}
	a.authorizeHist.WithLabelValues(strconv.FormatBool(err == nil), string(reason)).
		Observe(time.Since(start).Seconds())
	return err
}
