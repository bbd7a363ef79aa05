package dbauthz_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/tenderd/tenderd/tenderd/audit"
	"github.com/tenderd/tenderd/tenderd/audit/audittest"
	"github.com/tenderd/tenderd/tenderd/database"
	"github.com/tenderd/tenderd/tenderd/database/dbauthz"
	"github.com/tenderd/tenderd/tenderd/database/dbmem"
	"github.com/tenderd/tenderd/tenderd/database/dbtime"
	"github.com/tenderd/tenderd/tenderd/lifecycle"
	"github.com/tenderd/tenderd/tenderd/rbac"
	"github.com/tenderd/tenderd/testutil"
)

type fixture struct {
	raw     database.Store
	db      database.Store
	auditor *audittest.MockAuditor
	org     database.Organization
	users   map[string]uuid.UUID
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	raw := dbmem.New()
	auditor := audittest.NewMock()
	authz := rbac.NewAuthorizer(rbac.BuiltinRegistry(), database.Memberships(raw), database.Snapshots(raw), nil)
	f := fixture{
		raw:     raw,
		db:      dbauthz.New(raw, authz, testutil.Logger(t), auditor),
		auditor: auditor,
		users:   map[string]uuid.UUID{},
	}

	now := dbtime.Now()
	org, err := raw.InsertOrganization(ctx, database.InsertOrganizationParams{
		ID: uuid.New(), Name: "acme", DisplayName: "Acme", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	f.org = org
	for _, role := range []string{rbac.RoleOwner, rbac.RoleAdmin, rbac.RoleManager, rbac.RoleMember} {
		id := uuid.New()
		f.users[role] = id
		_, err := raw.InsertOrganizationMember(ctx, database.InsertOrganizationMemberParams{
			UserID: id, OrganizationID: org.ID, Role: role, CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
	}
	return f
}

func (f fixture) as(ctx context.Context, role string) context.Context {
	return dbauthz.As(ctx, rbac.Subject{UserID: f.users[role], OrganizationID: f.org.ID})
}

func (f fixture) tender(t *testing.T, status string) database.Tender {
	t.Helper()
	now := dbtime.Now()
	tender, err := f.raw.InsertTender(context.Background(), database.InsertTenderParams{
		ID: uuid.New(), OrganizationID: f.org.ID, Title: "Harbour dredging", Currency: "EUR",
		Value: decimal.NewFromInt(5000), Status: status, CreatedBy: f.users[rbac.RoleMember],
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	return tender
}

func TestNoActor(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)

	_, err := f.db.GetOrganizationByID(ctx, f.org.ID)
	require.ErrorIs(t, err, dbauthz.NoActorError)
}

func TestSystemOnly(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)

	_, err := f.db.GetSessionByID(f.as(ctx, rbac.RoleOwner), "abc")
	require.ErrorIs(t, err, dbauthz.ErrSystemOnly)

	_, err = f.db.InsertSession(dbauthz.AsSystem(ctx), database.InsertSessionParams{
		ID: "abcdefghij", UserID: uuid.New(), CreatedAt: dbtime.Now(), ExpiresAt: dbtime.Now(),
	})
	require.NoError(t, err)
}

func TestDeleteTender(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)

	draft := f.tender(t, lifecycle.TenderDraft)
	require.NoError(t, f.db.DeleteTender(f.as(ctx, rbac.RoleMember), database.DeleteTenderParams{ID: draft.ID}))

	submitted := f.tender(t, lifecycle.TenderSubmitted)
	err := f.db.DeleteTender(f.as(ctx, rbac.RoleManager), database.DeleteTenderParams{ID: submitted.ID})
	require.True(t, rbac.IsUnauthorizedError(err))
	reason, _ := rbac.ReasonOf(err)
	require.Equal(t, rbac.ReasonConditionFailed, reason)
	require.True(t, f.auditor.Contains(audit.Log{
		Action:       audit.ActionDenied,
		ResourceType: rbac.ResourceTender.Type,
		ResourceID:   submitted.ID.String(),
		Reason:       string(rbac.ReasonConditionFailed),
	}))

	// Still there.
	_, err = f.raw.GetTenderByID(ctx, submitted.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.DeleteTender(f.as(ctx, rbac.RoleAdmin), database.DeleteTenderParams{ID: submitted.ID}))
}

func TestUpdateTenderStatus(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)
	tender := f.tender(t, lifecycle.TenderSubmitted)

	rollback := database.UpdateStatusParams{ID: tender.ID, Status: lifecycle.TenderDraft, UpdatedAt: dbtime.Now()}
	_, err := f.db.UpdateTenderStatus(f.as(ctx, rbac.RoleMember), rollback)
	reason, _ := rbac.ReasonOf(err)
	require.Equal(t, rbac.ReasonActionNotGranted, reason)

	_, err = f.db.UpdateTenderStatus(f.as(ctx, rbac.RoleMember), database.UpdateStatusParams{
		ID: tender.ID, Status: lifecycle.TenderLost, UpdatedAt: dbtime.Now(),
	})
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	updated, err := f.db.UpdateTenderStatus(f.as(ctx, rbac.RoleAdmin), rollback)
	require.NoError(t, err)
	require.Equal(t, lifecycle.TenderDraft, updated.Status)

	updated, err = f.db.UpdateTenderStatus(f.as(ctx, rbac.RoleMember), database.UpdateStatusParams{
		ID: tender.ID, Status: lifecycle.TenderSubmitted, UpdatedAt: dbtime.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, lifecycle.TenderSubmitted, updated.Status)
}

func TestCrossOrganization(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)
	tender := f.tender(t, lifecycle.TenderDraft)

	// The owner of f.org acting in another organization they belong to.
	now := dbtime.Now()
	other, err := f.raw.InsertOrganization(ctx, database.InsertOrganizationParams{
		ID: uuid.New(), Name: "other", DisplayName: "Other", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	_, err = f.raw.InsertOrganizationMember(ctx, database.InsertOrganizationMemberParams{
		UserID: f.users[rbac.RoleOwner], OrganizationID: other.ID, Role: rbac.RoleOwner, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	inOther := dbauthz.As(ctx, rbac.Subject{UserID: f.users[rbac.RoleOwner], OrganizationID: other.ID})

	_, err = f.db.GetTenderByID(inOther, tender.ID)
	reason, _ := rbac.ReasonOf(err)
	require.Equal(t, rbac.ReasonCrossOrganization, reason)
	require.Error(t, f.db.DeleteTender(inOther, database.DeleteTenderParams{ID: tender.ID}))
}

func TestUpdateMemberRole(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)

	toOwner := database.UpdateMemberRoleParams{
		UserID: f.users[rbac.RoleAdmin], OrganizationID: f.org.ID, Role: rbac.RoleOwner, UpdatedAt: dbtime.Now(),
	}
	_, err := f.db.UpdateMemberRole(f.as(ctx, rbac.RoleOwner), toOwner)
	require.True(t, rbac.IsUnauthorizedError(err))

	// Admins cannot demote other admins.
	_, err = f.db.UpdateMemberRole(f.as(ctx, rbac.RoleAdmin), database.UpdateMemberRoleParams{
		UserID: f.users[rbac.RoleAdmin], OrganizationID: f.org.ID, Role: rbac.RoleMember, UpdatedAt: dbtime.Now(),
	})
	require.True(t, rbac.IsUnauthorizedError(err))

	member, err := f.db.UpdateMemberRole(f.as(ctx, rbac.RoleAdmin), database.UpdateMemberRoleParams{
		UserID: f.users[rbac.RoleMember], OrganizationID: f.org.ID, Role: rbac.RoleManager, UpdatedAt: dbtime.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, rbac.RoleManager, member.Role)

	_, err = f.db.UpdateMemberRole(f.as(ctx, rbac.RoleManager), database.UpdateMemberRoleParams{
		UserID: f.users[rbac.RoleMember], OrganizationID: f.org.ID, Role: rbac.RoleMember, UpdatedAt: dbtime.Now(),
	})
	reason, _ := rbac.ReasonOf(err)
	require.Equal(t, rbac.ReasonActionNotGranted, reason)
}

func TestInTxAuthorized(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)
	tender := f.tender(t, lifecycle.TenderPending)

	err := f.db.InTx(func(tx database.Store) error {
		_, err := tx.UpdateTenderStatus(f.as(ctx, rbac.RoleMember), database.UpdateStatusParams{
			ID: tender.ID, Status: lifecycle.TenderSubmitted, UpdatedAt: dbtime.Now(),
		})
		return err
	}, nil)
	require.True(t, rbac.IsUnauthorizedError(err))

	got, err := f.raw.GetTenderByID(ctx, tender.ID)
	require.NoError(t, err)
	require.Equal(t, lifecycle.TenderPending, got.Status)
}

func TestGetOrganizationsByUserID(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)

	orgs, err := f.db.GetOrganizationsByUserID(f.as(ctx, rbac.RoleMember), f.users[rbac.RoleMember])
	require.NoError(t, err)
	require.Len(t, orgs, 1)

	_, err = f.db.GetOrganizationsByUserID(f.as(ctx, rbac.RoleMember), f.users[rbac.RoleOwner])
	require.True(t, rbac.IsUnauthorizedError(err))
}

func TestNoDoubleWrap(t *testing.T) {
	t.Parallel()
	f := setup(t)
	require.Same(t, f.db, dbauthz.New(f.db, nil, testutil.Logger(t), nil))
}

// hookStore runs afterRead after each tender read, which lets a test change
// the tender between the read that authorizes a write and the write.
type hookStore struct {
	database.Store

	mu        sync.Mutex
	reads     int
	afterRead func(reads int)
}

func (h *hookStore) GetTenderByID(ctx context.Context, id uuid.UUID) (database.Tender, error) {
	tender, err := h.Store.GetTenderByID(ctx, id)
	h.mu.Lock()
	h.reads++
	reads := h.reads
	h.mu.Unlock()
	if h.afterRead != nil {
		h.afterRead(reads)
	}
	return tender, err
}

func (f fixture) withHook(t *testing.T, afterRead func(reads int)) database.Store {
	t.Helper()
	authz := rbac.NewAuthorizer(rbac.BuiltinRegistry(), database.Memberships(f.raw), database.Snapshots(f.raw), nil)
	return dbauthz.New(&hookStore{Store: f.raw, afterRead: afterRead}, authz, testutil.Logger(t), f.auditor)
}

func (f fixture) setStatus(ctx context.Context, t *testing.T, id uuid.UUID, status string) {
	t.Helper()
	_, err := f.raw.UpdateTenderStatus(ctx, database.UpdateStatusParams{ID: id, Status: status, UpdatedAt: dbtime.Now()})
	require.NoError(t, err)
}

func TestDeleteTenderSubmittedAfterRead(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)
	tender := f.tender(t, lifecycle.TenderDraft)

	db := f.withHook(t, func(reads int) {
		if reads == 1 {
			f.setStatus(ctx, t, tender.ID, lifecycle.TenderSubmitted)
		}
	})
	err := db.DeleteTender(f.as(ctx, rbac.RoleMember), database.DeleteTenderParams{ID: tender.ID})
	reason, ok := rbac.ReasonOf(err)
	require.True(t, ok, "expected a denial, got %v", err)
	require.Equal(t, rbac.ReasonConditionFailed, reason)

	got, err := f.raw.GetTenderByID(ctx, tender.ID)
	require.NoError(t, err)
	require.Equal(t, lifecycle.TenderSubmitted, got.Status)
}

func TestUpdateStatusAfterConcurrentAward(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)
	tender := f.tender(t, lifecycle.TenderPending)

	db := f.withHook(t, func(reads int) {
		if reads != 1 {
			return
		}
		f.setStatus(ctx, t, tender.ID, lifecycle.TenderWon)
		_, err := f.raw.InsertProject(ctx, database.InsertProjectParams{
			ID: uuid.New(), OrganizationID: f.org.ID, SourceTenderID: uuid.NullUUID{UUID: tender.ID, Valid: true},
			Title: tender.Title, Currency: tender.Currency, Status: lifecycle.ProjectActive,
			CreatedAt: dbtime.Now(), UpdatedAt: dbtime.Now(),
		})
		require.NoError(t, err)
	})
	_, err := db.UpdateTenderStatus(f.as(ctx, rbac.RoleMember), database.UpdateStatusParams{
		ID: tender.ID, Status: lifecycle.TenderLost, UpdatedAt: dbtime.Now(),
	})
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	got, err := f.raw.GetTenderByID(ctx, tender.ID)
	require.NoError(t, err)
	require.Equal(t, lifecycle.TenderWon, got.Status)
	_, err = f.raw.GetProjectBySourceTenderID(ctx, tender.ID)
	require.NoError(t, err)
}

func TestGuardedWriteGivesUp(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)
	tender := f.tender(t, lifecycle.TenderSubmitted)

	db := f.withHook(t, func(reads int) {
		if reads%2 == 1 {
			f.setStatus(ctx, t, tender.ID, lifecycle.TenderPending)
		} else {
			f.setStatus(ctx, t, tender.ID, lifecycle.TenderSubmitted)
		}
	})
	err := db.DeleteTender(f.as(ctx, rbac.RoleAdmin), database.DeleteTenderParams{ID: tender.ID})
	require.ErrorIs(t, err, dbauthz.ErrStatusChanged)

	_, err = f.raw.GetTenderByID(ctx, tender.ID)
	require.NoError(t, err)
}

func TestExpectedStatus(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)
	tender := f.tender(t, lifecycle.TenderSubmitted)

	_, err := f.db.UpdateTenderStatus(f.as(ctx, rbac.RoleMember), database.UpdateStatusParams{
		ID: tender.ID, Status: lifecycle.TenderSubmitted, FromStatus: lifecycle.TenderDraft, UpdatedAt: dbtime.Now(),
	})
	require.ErrorIs(t, err, dbauthz.ErrStatusChanged)

	err = f.db.DeleteTender(f.as(ctx, rbac.RoleAdmin), database.DeleteTenderParams{ID: tender.ID, Status: lifecycle.TenderDraft})
	require.ErrorIs(t, err, dbauthz.ErrStatusChanged)

	_, err = f.raw.GetTenderByID(ctx, tender.ID)
	require.NoError(t, err)
}

func TestAwardRequiresTransaction(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)
	tender := f.tender(t, lifecycle.TenderPending)
	win := database.UpdateStatusParams{ID: tender.ID, Status: lifecycle.TenderWon, UpdatedAt: dbtime.Now()}

	_, err := f.db.UpdateTenderStatus(f.as(ctx, rbac.RoleMember), win)
	require.ErrorIs(t, err, dbauthz.ErrAwardRequired)
	_, err = f.db.UpdateTenderStatus(dbauthz.AsAward(f.as(ctx, rbac.RoleMember)), win)
	require.ErrorIs(t, err, dbauthz.ErrAwardRequired)
	//nolint:gocritic // The system actor cannot skip the project either.
	_, err = f.db.UpdateTenderStatus(dbauthz.AsSystem(ctx), win)
	require.ErrorIs(t, err, dbauthz.ErrAwardRequired)

	got, err := f.raw.GetTenderByID(ctx, tender.ID)
	require.NoError(t, err)
	require.Equal(t, lifecycle.TenderPending, got.Status)

	err = f.db.InTx(func(tx database.Store) error {
		_, err := tx.UpdateTenderStatus(dbauthz.AsAward(f.as(ctx, rbac.RoleMember)), win)
		return err
	}, nil)
	require.NoError(t, err)
	got, err = f.raw.GetTenderByID(ctx, tender.ID)
	require.NoError(t, err)
	require.Equal(t, lifecycle.TenderWon, got.Status)
}

// failingStore fails tender reads with err.
type failingStore struct {
	database.Store
	err error
}

func (s failingStore) GetTenderByID(context.Context, uuid.UUID) (database.Tender, error) {
	return database.Tender{}, s.err
}

func TestFetchFailure(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)
	tender := f.tender(t, lifecycle.TenderDraft)
	authz := rbac.NewAuthorizer(rbac.BuiltinRegistry(), database.Memberships(f.raw), database.Snapshots(f.raw), nil)

	testCases := []struct {
		Name        string
		Err         error
		Unavailable bool
	}{
		{Name: "Timeout", Err: context.DeadlineExceeded, Unavailable: true},
		{Name: "Broken", Err: xerrors.New("connection reset"), Unavailable: true},
		{Name: "NotFound", Err: sql.ErrNoRows},
	}
	for _, c := range testCases {
		t.Run(c.Name, func(t *testing.T) {
			t.Parallel()
			db := dbauthz.New(failingStore{Store: f.raw, err: c.Err}, authz, testutil.Logger(t), f.auditor)

			_, err := db.GetTenderByID(f.as(ctx, rbac.RoleMember), tender.ID)
			require.Equal(t, c.Unavailable, xerrors.Is(err, rbac.ErrTemporarilyUnavailable), "read: %v", err)
			err = db.DeleteTender(f.as(ctx, rbac.RoleMember), database.DeleteTenderParams{ID: tender.ID})
			require.Equal(t, c.Unavailable, xerrors.Is(err, rbac.ErrTemporarilyUnavailable), "delete: %v", err)
			_, err = db.UpdateTenderStatus(f.as(ctx, rbac.RoleMember), database.UpdateStatusParams{
				ID: tender.ID, Status: lifecycle.TenderSubmitted, UpdatedAt: dbtime.Now(),
			})
			require.Equal(t, c.Unavailable, xerrors.Is(err, rbac.ErrTemporarilyUnavailable), "update: %v", err)
			if !c.Unavailable {
				require.ErrorIs(t, err, sql.ErrNoRows)
			}
		})
	}
}

func TestDeleteProject(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)
	project, err := f.raw.InsertProject(ctx, database.InsertProjectParams{
		ID: uuid.New(), OrganizationID: f.org.ID, Title: "Quay wall", Currency: "EUR",
		Status: lifecycle.ProjectActive, CreatedAt: dbtime.Now(), UpdatedAt: dbtime.Now(),
	})
	require.NoError(t, err)

	err = f.db.DeleteProject(f.as(ctx, rbac.RoleAdmin), project.ID)
	reason, _ := rbac.ReasonOf(err)
	require.Equal(t, rbac.ReasonActionNotGranted, reason)

	err = f.db.DeleteProject(f.as(ctx, rbac.RoleOwner), uuid.New())
	reason, _ = rbac.ReasonOf(err)
	require.Equal(t, rbac.ReasonResourceNotFound, reason)

	require.NoError(t, f.db.DeleteProject(f.as(ctx, rbac.RoleOwner), project.ID))
	_, err = f.raw.GetProjectByID(ctx, project.ID)
	require.ErrorIs(t, err, sql.ErrNoRows)
}
