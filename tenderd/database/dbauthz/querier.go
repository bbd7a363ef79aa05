package dbauthz

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/tenderd/tenderd/tenderd/database"
	"github.com/tenderd/tenderd/tenderd/rbac"
	"github.com/tenderd/tenderd/tenderd/rbac/policy"
)

func (q *querier) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	return q.deleteByID(ctx, rbac.ResourceOrganization.Type, id, q.db.DeleteOrganization)
}

func (q *querier) GetOrganizationByID(ctx context.Context, id uuid.UUID) (database.Organization, error) {
	return fetch(q, q.db.GetOrganizationByID)(ctx, id)
}

func (q *querier) GetOrganizationByName(ctx context.Context, name string) (database.Organization, error) {
	return fetch(q, q.db.GetOrganizationByName)(ctx, name)
}

// InsertOrganization has no organization to authorize against yet. The
// caller creates the owner membership in the same transaction.
func (q *querier) InsertOrganization(ctx context.Context, arg database.InsertOrganizationParams) (database.Organization, error) {
	if err := q.authorizeSystem(ctx); err != nil {
		return database.Organization{}, err
	}
	return q.db.InsertOrganization(ctx, arg)
}

func (q *querier) DeleteOrganizationMember(ctx context.Context, arg database.GetOrganizationMemberParams) error {
	member, err := q.db.GetOrganizationMember(ctx, arg)
	if err != nil {
		return fetchError(err)
	}
	if err := q.authorizeContext(ctx, policy.ActionDelete, member); err != nil {
		return err
	}
	if err := q.canAssignRole(ctx, member.OrganizationID, member.Role); err != nil {
		return err
	}
	return q.db.DeleteOrganizationMember(ctx, arg)
}

func (q *querier) GetOrganizationMember(ctx context.Context, arg database.GetOrganizationMemberParams) (database.OrganizationMember, error) {
	return fetch(q, q.db.GetOrganizationMember)(ctx, arg)
}

func (q *querier) GetOrganizationOwner(ctx context.Context, organizationID uuid.UUID) (database.OrganizationMember, error) {
	return fetch(q, q.db.GetOrganizationOwner)(ctx, organizationID)
}

// GetOrganizationsByUserID lets a user list their own organizations, which
// spans tenants and so cannot be checked against one active organization.
func (q *querier) GetOrganizationsByUserID(ctx context.Context, userID uuid.UUID) ([]database.Organization, error) {
	if !isSystem(ctx) {
		act, ok := ActorFromContext(ctx)
		if !ok {
			return nil, NoActorError
		}
		if act.UserID != userID {
			return nil, q.notAuthorized(ctx, rbac.ForbiddenWithInternal(rbac.ReasonActionNotGranted,
				xerrors.New("organizations of another user"), act, policy.ActionRead, rbac.ResourceOrganization))
		}
	}
	return q.db.GetOrganizationsByUserID(ctx, userID)
}

func (q *querier) InsertOrganizationMember(ctx context.Context, arg database.InsertOrganizationMemberParams) (database.OrganizationMember, error) {
	if err := q.authorizeContext(ctx, policy.ActionCreate, rbac.ResourceOrganizationMember.InOrg(arg.OrganizationID).WithID(arg.UserID)); err != nil {
		return database.OrganizationMember{}, err
	}
	if err := q.canAssignRole(ctx, arg.OrganizationID, arg.Role); err != nil {
		return database.OrganizationMember{}, err
	}
	return q.db.InsertOrganizationMember(ctx, arg)
}

func (q *querier) UpdateMemberRole(ctx context.Context, arg database.UpdateMemberRoleParams) (database.OrganizationMember, error) {
	member, err := q.db.GetOrganizationMember(ctx, database.GetOrganizationMemberParams{
		UserID:         arg.UserID,
		OrganizationID: arg.OrganizationID,
	})
	if err != nil {
		return database.OrganizationMember{}, fetchError(err)
	}
	if err := q.authorizeContext(ctx, policy.ActionAssignRole, member); err != nil {
		return database.OrganizationMember{}, err
	}
	// Both the role being taken away and the one being granted must be
	// assignable by the actor.
	if err := q.canAssignRole(ctx, arg.OrganizationID, member.Role); err != nil {
		return database.OrganizationMember{}, err
	}
	if err := q.canAssignRole(ctx, arg.OrganizationID, arg.Role); err != nil {
		return database.OrganizationMember{}, err
	}
	return q.db.UpdateMemberRole(ctx, arg)
}

// canAssignRole checks the actor's own role against the role table of
// assignable roles.
func (q *querier) canAssignRole(ctx context.Context, organizationID uuid.UUID, role string) error {
	if isSystem(ctx) {
		return nil
	}
	act, ok := ActorFromContext(ctx)
	if !ok {
		return NoActorError
	}
	self, err := q.db.GetOrganizationMember(ctx, database.GetOrganizationMemberParams{
		UserID:         act.UserID,
		OrganizationID: organizationID,
	})
	if err != nil {
		if xerrors.Is(err, sql.ErrNoRows) {
			return xerrors.Errorf("fetch actor membership: %w", err)
		}
		return rbac.Unavailable(xerrors.Errorf("fetch actor membership: %w", err))
	}
	if !rbac.CanAssignRole(self.Role, role) {
		return q.notAuthorized(ctx, rbac.ForbiddenWithInternal(rbac.ReasonActionNotGranted,
			xerrors.Errorf("role %q cannot assign %q", self.Role, role),
			act, policy.ActionAssignRole, rbac.ResourceOrganizationMember.InOrg(organizationID)))
	}
	return nil
}

func (q *querier) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	if err := q.authorizeSystem(ctx); err != nil {
		return 0, err
	}
	return q.db.DeleteExpiredSessions(ctx, now)
}

func (q *querier) DeleteSession(ctx context.Context, id string) error {
	if err := q.authorizeSystem(ctx); err != nil {
		return err
	}
	return q.db.DeleteSession(ctx, id)
}

func (q *querier) GetSessionByID(ctx context.Context, id string) (database.Session, error) {
	if err := q.authorizeSystem(ctx); err != nil {
		return database.Session{}, err
	}
	return q.db.GetSessionByID(ctx, id)
}

func (q *querier) InsertSession(ctx context.Context, arg database.InsertSessionParams) (database.Session, error) {
	if err := q.authorizeSystem(ctx); err != nil {
		return database.Session{}, err
	}
	return q.db.InsertSession(ctx, arg)
}

func (q *querier) UpdateSessionActiveOrganization(ctx context.Context, arg database.UpdateSessionActiveOrganizationParams) (database.Session, error) {
	if err := q.authorizeSystem(ctx); err != nil {
		return database.Session{}, err
	}
	return q.db.UpdateSessionActiveOrganization(ctx, arg)
}

func (q *querier) GetCategoryByID(ctx context.Context, id uuid.UUID) (database.Category, error) {
	return fetch(q, q.db.GetCategoryByID)(ctx, id)
}

func (q *querier) GetClientByID(ctx context.Context, id uuid.UUID) (database.Client, error) {
	return fetch(q, q.db.GetClientByID)(ctx, id)
}

func (q *querier) InsertCategory(ctx context.Context, arg database.InsertCategoryParams) (database.Category, error) {
	if err := q.authorizeContext(ctx, policy.ActionCreate, rbac.ResourceCategory.InOrg(arg.OrganizationID)); err != nil {
		return database.Category{}, err
	}
	return q.db.InsertCategory(ctx, arg)
}

func (q *querier) InsertClient(ctx context.Context, arg database.InsertClientParams) (database.Client, error) {
	if err := q.authorizeContext(ctx, policy.ActionCreate, rbac.ResourceClient.InOrg(arg.OrganizationID)); err != nil {
		return database.Client{}, err
	}
	return q.db.InsertClient(ctx, arg)
}

// DeleteTender is allowed for some roles only while the tender is a draft,
// so the delete is guarded by the status the decision was made on.
func (q *querier) DeleteTender(ctx context.Context, arg database.DeleteTenderParams) error {
	_, err := guardedWrite(func() (struct{}, error) {
		tender, err := fetchWithAction(q, policy.ActionDelete, q.db.GetTenderByID)(ctx, arg.ID)
		if err != nil {
			return struct{}{}, err
		}
		if arg.Status != "" && arg.Status != tender.Status {
			return struct{}{}, xerrors.Errorf("tender is %q, expected %q: %w", tender.Status, arg.Status, ErrStatusChanged)
		}
		err = q.db.DeleteTender(ctx, database.DeleteTenderParams{ID: arg.ID, Status: tender.Status})
		if xerrors.Is(err, sql.ErrNoRows) {
			return struct{}{}, errRowChanged
		}
		return struct{}{}, err
	})
	return err
}

func (q *querier) GetTenderByID(ctx context.Context, id uuid.UUID) (database.Tender, error) {
	return fetch(q, q.db.GetTenderByID)(ctx, id)
}

func (q *querier) InsertTender(ctx context.Context, arg database.InsertTenderParams) (database.Tender, error) {
	if err := q.authorizeContext(ctx, policy.ActionCreate, rbac.ResourceTender.InOrg(arg.OrganizationID)); err != nil {
		return database.Tender{}, err
	}
	return q.db.InsertTender(ctx, arg)
}

func (q *querier) UpdateTenderStatus(ctx context.Context, arg database.UpdateStatusParams) (database.Tender, error) {
	return updateStatus(q, q.db.GetTenderByID, q.db.UpdateTenderStatus)(ctx, arg)
}

func (q *querier) DeleteProject(ctx context.Context, id uuid.UUID) error {
	return q.deleteByID(ctx, rbac.ResourceProject.Type, id, q.db.DeleteProject)
}

func (q *querier) GetProjectByID(ctx context.Context, id uuid.UUID) (database.Project, error) {
	return fetch(q, q.db.GetProjectByID)(ctx, id)
}

func (q *querier) GetProjectBySourceTenderID(ctx context.Context, tenderID uuid.UUID) (database.Project, error) {
	return fetch(q, q.db.GetProjectBySourceTenderID)(ctx, tenderID)
}

func (q *querier) InsertProject(ctx context.Context, arg database.InsertProjectParams) (database.Project, error) {
	if err := q.authorizeContext(ctx, policy.ActionCreate, rbac.ResourceProject.InOrg(arg.OrganizationID)); err != nil {
		return database.Project{}, err
	}
	return q.db.InsertProject(ctx, arg)
}

func (q *querier) UpdateProjectStatus(ctx context.Context, arg database.UpdateStatusParams) (database.Project, error) {
	return updateStatus(q, q.db.GetProjectByID, q.db.UpdateProjectStatus)(ctx, arg)
}

func (q *querier) GetPurchaseOrderByID(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
	return fetch(q, q.db.GetPurchaseOrderByID)(ctx, id)
}

// InsertPurchaseOrder also requires read access to the project the order
// is issued against, which must live in the same organization.
func (q *querier) InsertPurchaseOrder(ctx context.Context, arg database.InsertPurchaseOrderParams) (database.PurchaseOrder, error) {
	project, err := fetch(q, q.db.GetProjectByID)(ctx, arg.ProjectID)
	if err != nil {
		return database.PurchaseOrder{}, err
	}
	if project.OrganizationID != arg.OrganizationID {
		return database.PurchaseOrder{}, xerrors.New("purchase order and project belong to different organizations")
	}
	if err := q.authorizeContext(ctx, policy.ActionCreate, rbac.ResourcePurchaseOrder.InOrg(arg.OrganizationID)); err != nil {
		return database.PurchaseOrder{}, err
	}
	return q.db.InsertPurchaseOrder(ctx, arg)
}

func (q *querier) UpdatePurchaseOrderStatus(ctx context.Context, arg database.UpdateStatusParams) (database.PurchaseOrder, error) {
	return updateStatus(q, q.db.GetPurchaseOrderByID, q.db.UpdatePurchaseOrderStatus)(ctx, arg)
}
