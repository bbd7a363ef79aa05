package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"
)

var _ querier = (*sqlQuerier)(nil)

// execOne runs a statement that must touch exactly one row.
func (q *sqlQuerier) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return xerrors.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const deleteOrganization = `DELETE FROM organizations WHERE id = $1`

func (q *sqlQuerier) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	return q.execOne(ctx, deleteOrganization, id)
}

const getOrganizationByID = `
SELECT id, name, display_name, created_at, updated_at
FROM organizations
WHERE id = $1
`

func (q *sqlQuerier) GetOrganizationByID(ctx context.Context, id uuid.UUID) (Organization, error) {
	var i Organization
	err := q.db.GetContext(ctx, &i, getOrganizationByID, id)
	return i, err
}

const getOrganizationByName = `
SELECT id, name, display_name, created_at, updated_at
FROM organizations
WHERE lower(name) = lower($1)
`

func (q *sqlQuerier) GetOrganizationByName(ctx context.Context, name string) (Organization, error) {
	var i Organization
	err := q.db.GetContext(ctx, &i, getOrganizationByName, name)
	return i, err
}

const insertOrganization = `
INSERT INTO organizations (id, name, display_name, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, name, display_name, created_at, updated_at
`

func (q *sqlQuerier) InsertOrganization(ctx context.Context, arg InsertOrganizationParams) (Organization, error) {
	var i Organization
	err := q.db.GetContext(ctx, &i, insertOrganization,
		arg.ID, arg.Name, arg.DisplayName, arg.CreatedAt, arg.UpdatedAt)
	return i, err
}

const deleteOrganizationMember = `
DELETE FROM organization_members WHERE user_id = $1 AND organization_id = $2
`

func (q *sqlQuerier) DeleteOrganizationMember(ctx context.Context, arg GetOrganizationMemberParams) error {
	return q.execOne(ctx, deleteOrganizationMember, arg.UserID, arg.OrganizationID)
}

const getOrganizationMember = `
SELECT user_id, organization_id, role, created_at, updated_at
FROM organization_members
WHERE user_id = $1 AND organization_id = $2
`

func (q *sqlQuerier) GetOrganizationMember(ctx context.Context, arg GetOrganizationMemberParams) (OrganizationMember, error) {
	var i OrganizationMember
	err := q.db.GetContext(ctx, &i, getOrganizationMember, arg.UserID, arg.OrganizationID)
	return i, err
}

const getOrganizationOwner = `
SELECT user_id, organization_id, role, created_at, updated_at
FROM organization_members
WHERE organization_id = $1 AND role = 'owner'
`

func (q *sqlQuerier) GetOrganizationOwner(ctx context.Context, organizationID uuid.UUID) (OrganizationMember, error) {
	var i OrganizationMember
	err := q.db.GetContext(ctx, &i, getOrganizationOwner, organizationID)
	return i, err
}

const getOrganizationsByUserID = `
SELECT o.id, o.name, o.display_name, o.created_at, o.updated_at
FROM organizations o
JOIN organization_members m ON m.organization_id = o.id
WHERE m.user_id = $1
ORDER BY o.name
`

func (q *sqlQuerier) GetOrganizationsByUserID(ctx context.Context, userID uuid.UUID) ([]Organization, error) {
	var items []Organization
	err := q.db.SelectContext(ctx, &items, getOrganizationsByUserID, userID)
	return items, err
}

const insertOrganizationMember = `
INSERT INTO organization_members (user_id, organization_id, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING user_id, organization_id, role, created_at, updated_at
`

func (q *sqlQuerier) InsertOrganizationMember(ctx context.Context, arg InsertOrganizationMemberParams) (OrganizationMember, error) {
	var i OrganizationMember
	err := q.db.GetContext(ctx, &i, insertOrganizationMember,
		arg.UserID, arg.OrganizationID, arg.Role, arg.CreatedAt, arg.UpdatedAt)
	return i, err
}

const updateMemberRole = `
UPDATE organization_members
SET role = $3, updated_at = $4
WHERE user_id = $1 AND organization_id = $2
RETURNING user_id, organization_id, role, created_at, updated_at
`

func (q *sqlQuerier) UpdateMemberRole(ctx context.Context, arg UpdateMemberRoleParams) (OrganizationMember, error) {
	var i OrganizationMember
	err := q.db.GetContext(ctx, &i, updateMemberRole,
		arg.UserID, arg.OrganizationID, arg.Role, arg.UpdatedAt)
	return i, err
}

const deleteExpiredSessions = `DELETE FROM sessions WHERE expires_at <= $1`

func (q *sqlQuerier) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredSessions, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteSession = `DELETE FROM sessions WHERE id = $1`

func (q *sqlQuerier) DeleteSession(ctx context.Context, id string) error {
	return q.execOne(ctx, deleteSession, id)
}

const getSessionByID = `
SELECT id, hashed_secret, user_id, active_organization_id, created_at, expires_at
FROM sessions
WHERE id = $1
`

func (q *sqlQuerier) GetSessionByID(ctx context.Context, id string) (Session, error) {
	var i Session
	err := q.db.GetContext(ctx, &i, getSessionByID, id)
	return i, err
}

const insertSession = `
INSERT INTO sessions (id, hashed_secret, user_id, active_organization_id, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, hashed_secret, user_id, active_organization_id, created_at, expires_at
`

func (q *sqlQuerier) InsertSession(ctx context.Context, arg InsertSessionParams) (Session, error) {
	var i Session
	err := q.db.GetContext(ctx, &i, insertSession,
		arg.ID, arg.HashedSecret, arg.UserID, arg.ActiveOrganizationID, arg.CreatedAt, arg.ExpiresAt)
	return i, err
}

const updateSessionActiveOrganization = `
UPDATE sessions
SET active_organization_id = $2
WHERE id = $1
RETURNING id, hashed_secret, user_id, active_organization_id, created_at, expires_at
`

func (q *sqlQuerier) UpdateSessionActiveOrganization(ctx context.Context, arg UpdateSessionActiveOrganizationParams) (Session, error) {
	var i Session
	err := q.db.GetContext(ctx, &i, updateSessionActiveOrganization, arg.ID, arg.ActiveOrganizationID)
	return i, err
}

const getCategoryByID = `
SELECT id, organization_id, name, created_at FROM categories WHERE id = $1
`

func (q *sqlQuerier) GetCategoryByID(ctx context.Context, id uuid.UUID) (Category, error) {
	var i Category
	err := q.db.GetContext(ctx, &i, getCategoryByID, id)
	return i, err
}

const getClientByID = `
SELECT id, organization_id, name, created_at FROM clients WHERE id = $1
`

func (q *sqlQuerier) GetClientByID(ctx context.Context, id uuid.UUID) (Client, error) {
	var i Client
	err := q.db.GetContext(ctx, &i, getClientByID, id)
	return i, err
}

const insertCategory = `
INSERT INTO categories (id, organization_id, name, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id, organization_id, name, created_at
`

func (q *sqlQuerier) InsertCategory(ctx context.Context, arg InsertCategoryParams) (Category, error) {
	var i Category
	err := q.db.GetContext(ctx, &i, insertCategory, arg.ID, arg.OrganizationID, arg.Name, arg.CreatedAt)
	return i, err
}

const insertClient = `
INSERT INTO clients (id, organization_id, name, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id, organization_id, name, created_at
`

func (q *sqlQuerier) InsertClient(ctx context.Context, arg InsertClientParams) (Client, error) {
	var i Client
	err := q.db.GetContext(ctx, &i, insertClient, arg.ID, arg.OrganizationID, arg.Name, arg.CreatedAt)
	return i, err
}

const tenderColumns = `id, organization_id, title, client_id, client_name, category_id, value, currency, status, created_by, created_at, updated_at`

const deleteTender = `DELETE FROM tenders WHERE id = $1 AND ($2::text = '' OR status::text = $2)`

func (q *sqlQuerier) DeleteTender(ctx context.Context, arg DeleteTenderParams) error {
	return q.execOne(ctx, deleteTender, arg.ID, arg.Status)
}

const getTenderByID = `SELECT ` + tenderColumns + ` FROM tenders WHERE id = $1`

func (q *sqlQuerier) GetTenderByID(ctx context.Context, id uuid.UUID) (Tender, error) {
	var i Tender
	err := q.db.GetContext(ctx, &i, getTenderByID, id)
	return i, err
}

const insertTender = `
INSERT INTO tenders (` + tenderColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + tenderColumns

func (q *sqlQuerier) InsertTender(ctx context.Context, arg InsertTenderParams) (Tender, error) {
	var i Tender
	err := q.db.GetContext(ctx, &i, insertTender,
		arg.ID, arg.OrganizationID, arg.Title, arg.ClientID, arg.ClientName, arg.CategoryID,
		arg.Value, arg.Currency, arg.Status, arg.CreatedBy, arg.CreatedAt, arg.UpdatedAt)
	return i, err
}

const updateTenderStatus = `
UPDATE tenders SET status = $2, updated_at = $3
WHERE id = $1 AND ($4::text = '' OR status::text = $4)
RETURNING ` + tenderColumns

func (q *sqlQuerier) UpdateTenderStatus(ctx context.Context, arg UpdateStatusParams) (Tender, error) {
	var i Tender
	err := q.db.GetContext(ctx, &i, updateTenderStatus, arg.ID, arg.Status, arg.UpdatedAt, arg.FromStatus)
	return i, err
}

const projectColumns = `id, organization_id, source_tender_id, title, client_id, client_name, value, currency, status, created_at, updated_at`

const deleteProject = `DELETE FROM projects WHERE id = $1`

func (q *sqlQuerier) DeleteProject(ctx context.Context, id uuid.UUID) error {
	return q.execOne(ctx, deleteProject, id)
}

const getProjectByID = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

func (q *sqlQuerier) GetProjectByID(ctx context.Context, id uuid.UUID) (Project, error) {
	var i Project
	err := q.db.GetContext(ctx, &i, getProjectByID, id)
	return i, err
}

const getProjectBySourceTenderID = `SELECT ` + projectColumns + ` FROM projects WHERE source_tender_id = $1`

func (q *sqlQuerier) GetProjectBySourceTenderID(ctx context.Context, tenderID uuid.UUID) (Project, error) {
	var i Project
	err := q.db.GetContext(ctx, &i, getProjectBySourceTenderID, tenderID)
	return i, err
}

const insertProject = `
INSERT INTO projects (` + projectColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + projectColumns

func (q *sqlQuerier) InsertProject(ctx context.Context, arg InsertProjectParams) (Project, error) {
	var i Project
	err := q.db.GetContext(ctx, &i, insertProject,
		arg.ID, arg.OrganizationID, arg.SourceTenderID, arg.Title, arg.ClientID, arg.ClientName,
		arg.Value, arg.Currency, arg.Status, arg.CreatedAt, arg.UpdatedAt)
	return i, err
}

const updateProjectStatus = `
UPDATE projects SET status = $2, updated_at = $3
WHERE id = $1 AND ($4::text = '' OR status::text = $4)
RETURNING ` + projectColumns

func (q *sqlQuerier) UpdateProjectStatus(ctx context.Context, arg UpdateStatusParams) (Project, error) {
	var i Project
	err := q.db.GetContext(ctx, &i, updateProjectStatus, arg.ID, arg.Status, arg.UpdatedAt, arg.FromStatus)
	return i, err
}

const purchaseOrderColumns = `id, organization_id, project_id, number, supplier, amount, currency, status, created_at, updated_at`

const getPurchaseOrderByID = `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE id = $1`

func (q *sqlQuerier) GetPurchaseOrderByID(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	var i PurchaseOrder
	err := q.db.GetContext(ctx, &i, getPurchaseOrderByID, id)
	return i, err
}

const insertPurchaseOrder = `
INSERT INTO purchase_orders (` + purchaseOrderColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + purchaseOrderColumns

func (q *sqlQuerier) InsertPurchaseOrder(ctx context.Context, arg InsertPurchaseOrderParams) (PurchaseOrder, error) {
	var i PurchaseOrder
	err := q.db.GetContext(ctx, &i, insertPurchaseOrder,
		arg.ID, arg.OrganizationID, arg.ProjectID, arg.Number, arg.Supplier,
		arg.Amount, arg.Currency, arg.Status, arg.CreatedAt, arg.UpdatedAt)
	return i, err
}

const updatePurchaseOrderStatus = `
UPDATE purchase_orders SET status = $2, updated_at = $3
WHERE id = $1 AND ($4::text = '' OR status::text = $4)
RETURNING ` + purchaseOrderColumns

func (q *sqlQuerier) UpdatePurchaseOrderStatus(ctx context.Context, arg UpdateStatusParams) (PurchaseOrder, error) {
	var i PurchaseOrder
	err := q.db.GetContext(ctx, &i, updatePurchaseOrderStatus, arg.ID, arg.Status, arg.UpdatedAt, arg.FromStatus)
	return i, err
}
