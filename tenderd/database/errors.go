package database

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"golang.org/x/xerrors"
)

// UniqueConstraint represents a named unique constraint on a table.
type UniqueConstraint string

const (
	UniqueOrganizationsName           UniqueConstraint = "organizations_name_key"
	UniqueOrganizationMembersPkey     UniqueConstraint = "organization_members_pkey"
	UniqueOrganizationMembersOneOwner UniqueConstraint = "organization_members_one_owner_idx"
	UniqueProjectsSourceTenderID      UniqueConstraint = "projects_source_tender_id_key"
	UniquePurchaseOrdersProjectNumber UniqueConstraint = "purchase_orders_project_id_number_key"
	UniqueClientsOrganizationName     UniqueConstraint = "clients_organization_id_name_key"
	UniqueCategoriesOrganizationName  UniqueConstraint = "categories_organization_id_name_key"
)

// ForeignKeyConstraint represents a named foreign key constraint on a table.
type ForeignKeyConstraint string

const (
	ForeignKeyPurchaseOrdersProjectID ForeignKeyConstraint = "purchase_orders_project_id_fkey"
	ForeignKeyTendersClientID         ForeignKeyConstraint = "tenders_client_id_fkey"
	ForeignKeyTendersCategoryID       ForeignKeyConstraint = "tenders_category_id_fkey"
)

func IsSerializedError(err error) bool {
	var pqErr *pq.Error
	if xerrors.As(err, &pqErr) {
		return pqErr.Code.Name() == "serialization_failure"
	}
	return false
}

// IsUniqueViolation checks if the error is due to a unique violation.
// If one or more specific unique constraints are given as arguments,
// the error must be caused by one of them. If no constraints are given,
// this function returns true for any unique violation.
func IsUniqueViolation(err error, uniqueConstraints ...UniqueConstraint) bool {
	var pqErr *pq.Error
	if xerrors.As(err, &pqErr) {
		if pqErr.Code.Name() == "unique_violation" {
			if len(uniqueConstraints) == 0 {
				return true
			}
			for _, uc := range uniqueConstraints {
				if pqErr.Constraint == string(uc) {
					return true
				}
			}
		}
	}
	return false
}

// IsForeignKeyViolation checks if the error is due to a foreign key violation.
func IsForeignKeyViolation(err error, foreignKeyConstraints ...ForeignKeyConstraint) bool {
	var pqErr *pq.Error
	if xerrors.As(err, &pqErr) {
		if pqErr.Code.Name() == "foreign_key_violation" {
			if len(foreignKeyConstraints) == 0 {
				return true
			}
			for _, fc := range foreignKeyConstraints {
				if pqErr.Constraint == string(fc) {
					return true
				}
			}
		}
	}
	return false
}

// IsQueryCanceledError checks if the error is due to a query being canceled.
func IsQueryCanceledError(err error) bool {
	var pqErr *pq.Error
	if xerrors.As(err, &pqErr) {
		return pqErr.Code.Name() == "query_canceled"
	}
	return xerrors.Is(err, context.Canceled) || xerrors.Is(err, context.DeadlineExceeded)
}

// IsNotFound reports whether a query found no rows.
func IsNotFound(err error) bool {
	return xerrors.Is(err, sql.ErrNoRows)
}
