package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Organization struct {
	ID uuid.UUID `db:"id" json:"id"`
	// Name is the URL slug.
	Name        string    `db:"name" json:"name"`
	DisplayName string    `db:"display_name" json:"display_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type OrganizationMember struct {
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	Role           string    `db:"role" json:"role"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

type Session struct {
	ID                   string        `db:"id" json:"id"`
	HashedSecret         []byte        `db:"hashed_secret" json:"-"`
	UserID               uuid.UUID     `db:"user_id" json:"user_id"`
	ActiveOrganizationID uuid.NullUUID `db:"active_organization_id" json:"active_organization_id"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	ExpiresAt            time.Time     `db:"expires_at" json:"expires_at"`
}

type Client struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	Name           string    `db:"name" json:"name"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type Category struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	Name           string    `db:"name" json:"name"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type Tender struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	Title          string          `db:"title" json:"title"`
	ClientID       uuid.NullUUID   `db:"client_id" json:"client_id"`
	ClientName     string          `db:"client_name" json:"client_name"`
	CategoryID     uuid.NullUUID   `db:"category_id" json:"category_id"`
	Value          decimal.Decimal `db:"value" json:"value"`
	Currency       string          `db:"currency" json:"currency"`
	Status         string          `db:"status" json:"status"`
	CreatedBy      uuid.UUID       `db:"created_by" json:"created_by"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

type Project struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	SourceTenderID uuid.NullUUID   `db:"source_tender_id" json:"source_tender_id"`
	Title          string          `db:"title" json:"title"`
	ClientID       uuid.NullUUID   `db:"client_id" json:"client_id"`
	ClientName     string          `db:"client_name" json:"client_name"`
	Value          decimal.Decimal `db:"value" json:"value"`
	Currency       string          `db:"currency" json:"currency"`
	Status         string          `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

type PurchaseOrder struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	ProjectID      uuid.UUID       `db:"project_id" json:"project_id"`
	Number         string          `db:"number" json:"number"`
	Supplier       string          `db:"supplier" json:"supplier"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Currency       string          `db:"currency" json:"currency"`
	Status         string          `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

type InsertOrganizationParams struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	DisplayName string    `db:"display_name" json:"display_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type GetOrganizationMemberParams struct {
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
}

type InsertOrganizationMemberParams struct {
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	Role           string    `db:"role" json:"role"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

type UpdateMemberRoleParams struct {
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	Role           string    `db:"role" json:"role"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

type InsertSessionParams struct {
	ID                   string        `db:"id" json:"id"`
	HashedSecret         []byte        `db:"hashed_secret" json:"hashed_secret"`
	UserID               uuid.UUID     `db:"user_id" json:"user_id"`
	ActiveOrganizationID uuid.NullUUID `db:"active_organization_id" json:"active_organization_id"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	ExpiresAt            time.Time     `db:"expires_at" json:"expires_at"`
}

type UpdateSessionActiveOrganizationParams struct {
	ID                   string        `db:"id" json:"id"`
	ActiveOrganizationID uuid.NullUUID `db:"active_organization_id" json:"active_organization_id"`
}

type InsertClientParams struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	Name           string    `db:"name" json:"name"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type InsertCategoryParams struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	Name           string    `db:"name" json:"name"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type InsertTenderParams struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	Title          string          `db:"title" json:"title"`
	ClientID       uuid.NullUUID   `db:"client_id" json:"client_id"`
	ClientName     string          `db:"client_name" json:"client_name"`
	CategoryID     uuid.NullUUID   `db:"category_id" json:"category_id"`
	Value          decimal.Decimal `db:"value" json:"value"`
	Currency       string          `db:"currency" json:"currency"`
	Status         string          `db:"status" json:"status"`
	CreatedBy      uuid.UUID       `db:"created_by" json:"created_by"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// UpdateStatusParams changes a status. When FromStatus is set the row is
// only updated while it still has that status; otherwise sql.ErrNoRows is
// returned.
type UpdateStatusParams struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Status     string    `db:"status" json:"status"`
	FromStatus string    `db:"from_status" json:"from_status"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// DeleteTenderParams deletes a tender. When Status is set the tender is
// only deleted while it still has that status.
type DeleteTenderParams struct {
	ID     uuid.UUID `db:"id" json:"id"`
	Status string    `db:"status" json:"status"`
}

type InsertProjectParams struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	SourceTenderID uuid.NullUUID   `db:"source_tender_id" json:"source_tender_id"`
	Title          string          `db:"title" json:"title"`
	ClientID       uuid.NullUUID   `db:"client_id" json:"client_id"`
	ClientName     string          `db:"client_name" json:"client_name"`
	Value          decimal.Decimal `db:"value" json:"value"`
	Currency       string          `db:"currency" json:"currency"`
	Status         string          `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

type InsertPurchaseOrderParams struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	ProjectID      uuid.UUID       `db:"project_id" json:"project_id"`
	Number         string          `db:"number" json:"number"`
	Supplier       string          `db:"supplier" json:"supplier"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Currency       string          `db:"currency" json:"currency"`
	Status         string          `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}
