package rbac_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/xerrors"

	"github.com/tenderd/tenderd/tenderd/rbac"
	"github.com/tenderd/tenderd/tenderd/rbac/policy"
	"github.com/tenderd/tenderd/tenderd/rbac/rbacmock"
	"github.com/tenderd/tenderd/testutil"
)

var allRoles = []string{rbac.RoleOwner, rbac.RoleAdmin, rbac.RoleManager, rbac.RoleMember}

var tenderStatuses = []string{"draft", "submitted", "pending", "won", "lost", "awarded", "cancelled", "rejected"}

// fakeMemberships is a static (user, org) -> role table.
type fakeMemberships map[[2]uuid.UUID]string

func (f fakeMemberships) GetMemberRole(_ context.Context, userID, orgID uuid.UUID) (string, error) {
	role, ok := f[[2]uuid.UUID{userID, orgID}]
	if !ok {
		return "", sql.ErrNoRows
	}
	return role, nil
}

type fakeSnapshots map[uuid.UUID]rbac.Object

func (f fakeSnapshots) GetSnapshot(_ context.Context, resourceType string, id uuid.UUID) (rbac.Object, error) {
	obj, ok := f[id]
	if !ok || obj.Type != resourceType {
		return rbac.Object{}, sql.ErrNoRows
	}
	return obj, nil
}

type authzFixture struct {
	auth  *rbac.StrictAuthorizer
	reg   *prometheus.Registry
	org   uuid.UUID
	users map[string]uuid.UUID
}

func setup(t *testing.T, snapshots fakeSnapshots) authzFixture {
	t.Helper()
	f := authzFixture{
		reg:   prometheus.NewRegistry(),
		org:   uuid.New(),
		users: map[string]uuid.UUID{},
	}
	members := fakeMemberships{}
	for _, role := range allRoles {
		id := uuid.New()
		f.users[role] = id
		members[[2]uuid.UUID{id, f.org}] = role
	}
	if snapshots == nil {
		snapshots = fakeSnapshots{}
	}
	f.auth = rbac.NewAuthorizer(rbac.BuiltinRegistry(), members, snapshots, f.reg)
	return f
}

func (f authzFixture) subject(role string) rbac.Subject {
	return rbac.Subject{UserID: f.users[role], OrganizationID: f.org}
}

func TestTenderDelete(t *testing.T) {
	t.Parallel()
	f := setup(t, nil)
	ctx := testutil.Context(t, testutil.WaitShort)

	for _, role := range allRoles {
		for _, status := range tenderStatuses {
			privileged := role == rbac.RoleOwner || role == rbac.RoleAdmin
			want := privileged || status == "draft"
			got := rbac.Can(ctx, f.auth, f.subject(role), policy.ActionDelete,
				rbac.ResourceTender.InOrg(f.org).WithID(uuid.New()).WithStatus(status))
			require.Equal(t, want, got, "role=%s status=%s", role, status)
		}
	}
}

func TestConditionReasons(t *testing.T) {
	t.Parallel()
	f := setup(t, nil)
	ctx := testutil.Context(t, testutil.WaitShort)

	err := f.auth.Authorize(ctx, f.subject(rbac.RoleManager), policy.ActionDelete,
		rbac.ResourceTender.InOrg(f.org).WithStatus("submitted"))
	require.True(t, rbac.IsUnauthorizedError(err))
	reason, _ := rbac.ReasonOf(err)
	require.Equal(t, rbac.ReasonConditionFailed, reason)

	// No snapshot for a conditional rule fails closed.
	err = f.auth.Authorize(ctx, f.subject(rbac.RoleMember), policy.ActionDelete,
		rbac.ResourceTender.InOrg(f.org))
	reason, _ = rbac.ReasonOf(err)
	require.Equal(t, rbac.ReasonMissingSnapshot, reason)

	// Unconditional grants never need a snapshot.
	require.NoError(t, f.auth.Authorize(ctx, f.subject(rbac.RoleAdmin), policy.ActionDelete,
		rbac.ResourceTender.InOrg(f.org)))
}

func TestOrganizationDelete(t *testing.T) {
	t.Parallel()
	f := setup(t, nil)
	ctx := testutil.Context(t, testutil.WaitShort)

	for _, role := range allRoles {
		for _, action := range []policy.Action{policy.ActionDelete, policy.ActionTransferOwnership} {
			got := rbac.Can(ctx, f.auth, f.subject(role), action, rbac.ResourceOrganization.InOrg(f.org).WithID(f.org))
			require.Equal(t, role == rbac.RoleOwner, got, "role=%s action=%s", role, action)
		}
		require.True(t, rbac.Can(ctx, f.auth, f.subject(role), policy.ActionRead,
			rbac.ResourceOrganization.InOrg(f.org).WithID(f.org)))
	}
}

func TestScenarios(t *testing.T) {
	t.Parallel()
	f := setup(t, nil)

	testCases := []struct {
		Name   string
		Role   string
		Action policy.Action
		Object func(org uuid.UUID) rbac.Object
		Allow  bool
		Reason rbac.Reason
	}{
		{
			Name: "ManagerDeleteSubmittedTender", Role: rbac.RoleManager, Action: policy.ActionDelete,
			Object: func(org uuid.UUID) rbac.Object { return rbac.ResourceTender.InOrg(org).WithStatus("submitted") },
			Reason: rbac.ReasonConditionFailed,
		},
		{
			Name: "MemberDeleteDraftTender", Role: rbac.RoleMember, Action: policy.ActionDelete,
			Object: func(org uuid.UUID) rbac.Object { return rbac.ResourceTender.InOrg(org).WithStatus("draft") },
			Allow:  true,
		},
		{
			Name: "AdminCreateProject", Role: rbac.RoleAdmin, Action: policy.ActionCreate,
			Object: func(org uuid.UUID) rbac.Object { return rbac.ResourceProject.InOrg(org) },
			Allow:  true,
		},
		{
			Name: "AdminDeleteProject", Role: rbac.RoleAdmin, Action: policy.ActionDelete,
			Object: func(org uuid.UUID) rbac.Object { return rbac.ResourceProject.InOrg(org).WithStatus("active") },
			Reason: rbac.ReasonActionNotGranted,
		},
		{
			Name: "OwnerDeleteProject", Role: rbac.RoleOwner, Action: policy.ActionDelete,
			Object: func(org uuid.UUID) rbac.Object { return rbac.ResourceProject.InOrg(org).WithStatus("active") },
			Allow:  true,
		},
		{
			Name: "MemberCreateProject", Role: rbac.RoleMember, Action: policy.ActionCreate,
			Object: func(org uuid.UUID) rbac.Object { return rbac.ResourceProject.InOrg(org) },
			Reason: rbac.ReasonActionNotGranted,
		},
		{
			Name: "ManagerRollbackTender", Role: rbac.RoleManager, Action: policy.ActionRollback,
			Object: func(org uuid.UUID) rbac.Object { return rbac.ResourceTender.InOrg(org).WithStatus("submitted") },
			Reason: rbac.ReasonActionNotGranted,
		},
		{
			Name: "AdminRollbackTender", Role: rbac.RoleAdmin, Action: policy.ActionRollback,
			Object: func(org uuid.UUID) rbac.Object { return rbac.ResourceTender.InOrg(org).WithStatus("submitted") },
			Allow:  true,
		},
		{
			Name: "ManagerCreatePurchaseOrder", Role: rbac.RoleManager, Action: policy.ActionCreate,
			Object: func(org uuid.UUID) rbac.Object { return rbac.ResourcePurchaseOrder.InOrg(org) },
			Allow:  true,
		},
		{
			Name: "MemberUpdatePurchaseOrder", Role: rbac.RoleMember, Action: policy.ActionUpdate,
			Object: func(org uuid.UUID) rbac.Object { return rbac.ResourcePurchaseOrder.InOrg(org).WithStatus("draft") },
			Reason: rbac.ReasonActionNotGranted,
		},
		{
			Name: "ManagerAssignRole", Role: rbac.RoleManager, Action: policy.ActionAssignRole,
			Object: func(org uuid.UUID) rbac.Object { return rbac.ResourceOrganizationMember.InOrg(org) },
			Reason: rbac.ReasonActionNotGranted,
		},
	}
	for _, c := range testCases {
		t.Run(c.Name, func(t *testing.T) {
			t.Parallel()
			ctx := testutil.Context(t, testutil.WaitShort)
			err := f.auth.Authorize(ctx, f.subject(c.Role), c.Action, c.Object(f.org))
			if c.Allow {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			reason, ok := rbac.ReasonOf(err)
			require.True(t, ok)
			require.Equal(t, c.Reason, reason)
		})
	}
}

func TestNoCrossTenantBleed(t *testing.T) {
	t.Parallel()
	f := setup(t, nil)
	ctx := testutil.Context(t, testutil.WaitShort)
	orgB := uuid.New()
	owner := f.users[rbac.RoleOwner]

	// Owner of A acting with B as the active organization.
	inB := rbac.Subject{UserID: owner, OrganizationID: orgB}
	for act := range policy.RBACPermissions[rbac.ResourceTender.Type].Actions {
		err := f.auth.Authorize(ctx, inB, act, rbac.ResourceTender.InOrg(orgB).WithStatus("draft"))
		reason, ok := rbac.ReasonOf(err)
		require.True(t, ok, "action %s", act)
		require.Equal(t, rbac.ReasonNoMembership, reason)
	}

	// Owner of A targeting an object that belongs to B.
	err := f.auth.Authorize(ctx, f.subject(rbac.RoleOwner), policy.ActionRead,
		rbac.ResourceTender.InOrg(orgB).WithStatus("draft"))
	reason, _ := rbac.ReasonOf(err)
	require.Equal(t, rbac.ReasonCrossOrganization, reason)

	// Objects with no organization never pass.
	err = f.auth.Authorize(ctx, f.subject(rbac.RoleOwner), policy.ActionRead, rbac.ResourceTender)
	reason, _ = rbac.ReasonOf(err)
	require.Equal(t, rbac.ReasonCrossOrganization, reason)
}

func TestIdempotent(t *testing.T) {
	t.Parallel()
	f := setup(t, nil)
	ctx := testutil.Context(t, testutil.WaitShort)

	for _, role := range allRoles {
		for _, status := range tenderStatuses {
			obj := rbac.ResourceTender.InOrg(f.org).WithStatus(status)
			first := f.auth.Authorize(ctx, f.subject(role), policy.ActionDelete, obj)
			second := f.auth.Authorize(ctx, f.subject(role), policy.ActionDelete, obj)
			require.Equal(t, first == nil, second == nil)
			r1, _ := rbac.ReasonOf(first)
			r2, _ := rbac.ReasonOf(second)
			require.Equal(t, r1, r2)
		}
	}
}

func TestAuthorizeByID(t *testing.T) {
	t.Parallel()

	draft, submitted, foreign := uuid.New(), uuid.New(), uuid.New()
	snapshots := fakeSnapshots{}
	f := setup(t, snapshots)
	snapshots[draft] = rbac.ResourceTender.InOrg(f.org).WithID(draft).WithStatus("draft")
	snapshots[submitted] = rbac.ResourceTender.InOrg(f.org).WithID(submitted).WithStatus("submitted")
	snapshots[foreign] = rbac.ResourceTender.InOrg(uuid.New()).WithID(foreign).WithStatus("draft")
	ctx := testutil.Context(t, testutil.WaitShort)
	member := f.subject(rbac.RoleMember)

	require.NoError(t, f.auth.AuthorizeByID(ctx, member, policy.ActionDelete, rbac.ResourceTender.Type, draft))

	err := f.auth.AuthorizeByID(ctx, member, policy.ActionDelete, rbac.ResourceTender.Type, submitted)
	reason, _ := rbac.ReasonOf(err)
	require.Equal(t, rbac.ReasonConditionFailed, reason)

	err = f.auth.AuthorizeByID(ctx, member, policy.ActionRead, rbac.ResourceTender.Type, foreign)
	reason, _ = rbac.ReasonOf(err)
	require.Equal(t, rbac.ReasonCrossOrganization, reason)

	missing := f.auth.AuthorizeByID(ctx, member, policy.ActionRead, rbac.ResourceTender.Type, uuid.New())
	reason, _ = rbac.ReasonOf(missing)
	require.Equal(t, rbac.ReasonResourceNotFound, reason)
	// Missing and foreign resources are both plain denials.
	require.True(t, rbac.IsUnauthorizedError(err))
	require.True(t, rbac.IsUnauthorizedError(missing))

	// Re-reads state on every call.
	snapshots[submitted] = rbac.ResourceTender.InOrg(f.org).WithID(submitted).WithStatus("draft")
	require.NoError(t, f.auth.AuthorizeByID(ctx, member, policy.ActionDelete, rbac.ResourceTender.Type, submitted))
}

func TestStoreFailureIsNotDeny(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	members := rbacmock.NewMockMembershipReader(ctrl)
	snapshots := rbacmock.NewMockSnapshotReader(ctrl)
	auth := rbac.NewAuthorizer(rbac.BuiltinRegistry(), members, snapshots, nil)
	ctx := testutil.Context(t, testutil.WaitShort)
	subject := rbac.Subject{UserID: uuid.New(), OrganizationID: uuid.New()}
	tenderID := uuid.New()

	members.EXPECT().GetMemberRole(gomock.Any(), subject.UserID, subject.OrganizationID).
		Return("", context.DeadlineExceeded).Times(2)
	snapshots.EXPECT().GetSnapshot(gomock.Any(), rbac.ResourceTender.Type, tenderID).
		Return(rbac.ResourceTender.InOrg(subject.OrganizationID).WithID(tenderID).WithStatus("draft"), nil).
		MaxTimes(1)

	err := auth.Authorize(ctx, subject, policy.ActionRead, rbac.ResourceTender.InOrg(subject.OrganizationID))
	require.ErrorIs(t, err, rbac.ErrTemporarilyUnavailable)
	require.False(t, rbac.IsUnauthorizedError(err))

	err = auth.AuthorizeByID(ctx, subject, policy.ActionRead, rbac.ResourceTender.Type, tenderID)
	require.ErrorIs(t, err, rbac.ErrTemporarilyUnavailable)
	require.True(t, xerrors.Is(err, context.DeadlineExceeded))
	require.False(t, rbac.Can(ctx, auth, subject, policy.ActionRead, rbac.ResourceTender))
}

func TestAuthorizeMetrics(t *testing.T) {
	t.Parallel()
	f := setup(t, nil)
	ctx := testutil.Context(t, testutil.WaitShort)

	_ = f.auth.Authorize(ctx, f.subject(rbac.RoleMember), policy.ActionDelete, rbac.ResourceTender.InOrg(f.org).WithStatus("draft"))
	_ = f.auth.Authorize(ctx, f.subject(rbac.RoleMember), policy.ActionDelete, rbac.ResourceTender.InOrg(f.org).WithStatus("won"))

	metrics, err := f.reg.Gather()
	require.NoError(t, err)
	const name = "tenderd_authz_authorize_duration_seconds"
	require.EqualValues(t, 1, testutil.PromHistogramSampleCount(t, metrics, name, "true", ""))
	require.EqualValues(t, 1, testutil.PromHistogramSampleCount(t, metrics, name, "false", string(rbac.ReasonConditionFailed)))
}
