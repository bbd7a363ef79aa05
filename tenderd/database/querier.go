package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// querier lists every query a Store answers. Not-found is reported as
// sql.ErrNoRows.
type querier interface {
	DeleteOrganization(ctx context.Context, id uuid.UUID) error
	GetOrganizationByID(ctx context.Context, id uuid.UUID) (Organization, error)
	GetOrganizationByName(ctx context.Context, name string) (Organization, error)
	InsertOrganization(ctx context.Context, arg InsertOrganizationParams) (Organization, error)

	DeleteOrganizationMember(ctx context.Context, arg GetOrganizationMemberParams) error
	GetOrganizationMember(ctx context.Context, arg GetOrganizationMemberParams) (OrganizationMember, error)
	GetOrganizationOwner(ctx context.Context, organizationID uuid.UUID) (OrganizationMember, error)
	GetOrganizationsByUserID(ctx context.Context, userID uuid.UUID) ([]Organization, error)
	InsertOrganizationMember(ctx context.Context, arg InsertOrganizationMemberParams) (OrganizationMember, error)
	UpdateMemberRole(ctx context.Context, arg UpdateMemberRoleParams) (OrganizationMember, error)

	// DeleteExpiredSessions removes sessions that expired at or before now
	// and returns how many were removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	DeleteSession(ctx context.Context, id string) error
	GetSessionByID(ctx context.Context, id string) (Session, error)
	InsertSession(ctx context.Context, arg InsertSessionParams) (Session, error)
	UpdateSessionActiveOrganization(ctx context.Context, arg UpdateSessionActiveOrganizationParams) (Session, error)

	GetCategoryByID(ctx context.Context, id uuid.UUID) (Category, error)
	GetClientByID(ctx context.Context, id uuid.UUID) (Client, error)
	InsertCategory(ctx context.Context, arg InsertCategoryParams) (Category, error)
	InsertClient(ctx context.Context, arg InsertClientParams) (Client, error)

	DeleteTender(ctx context.Context, arg DeleteTenderParams) error
	GetTenderByID(ctx context.Context, id uuid.UUID) (Tender, error)
	InsertTender(ctx context.Context, arg InsertTenderParams) (Tender, error)
	UpdateTenderStatus(ctx context.Context, arg UpdateStatusParams) (Tender, error)

	DeleteProject(ctx context.Context, id uuid.UUID) error
	GetProjectByID(ctx context.Context, id uuid.UUID) (Project, error)
	GetProjectBySourceTenderID(ctx context.Context, tenderID uuid.UUID) (Project, error)
	InsertProject(ctx context.Context, arg InsertProjectParams) (Project, error)
	UpdateProjectStatus(ctx context.Context, arg UpdateStatusParams) (Project, error)

	GetPurchaseOrderByID(ctx context.Context, id uuid.UUID) (PurchaseOrder, error)
	InsertPurchaseOrder(ctx context.Context, arg InsertPurchaseOrderParams) (PurchaseOrder, error)
	UpdatePurchaseOrderStatus(ctx context.Context, arg UpdateStatusParams) (PurchaseOrder, error)
}
