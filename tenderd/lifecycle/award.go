package lifecycle

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"github.com/tenderd/tenderd/tenderd/rbac"
)

// TenderSnapshot is the tender state a project is derived from.
type TenderSnapshot struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Title          string
	ClientID       uuid.NullUUID
	ClientName     string
	Value          decimal.Decimal
	Currency       string
	Status         string
}

// ProjectSnapshot is the initial state of the project created by an award.
// It is copied once and does not follow later tender edits.
type ProjectSnapshot struct {
	OrganizationID uuid.UUID
	SourceTenderID uuid.UUID
	Title          string
	ClientID       uuid.NullUUID
	ClientName     string
	Value          decimal.Decimal
	Currency       string
	Status         string
}

// OnAward derives the project created when the tender moves to status
// "to". It fails unless that move is an award transition.
func OnAward(tender TenderSnapshot, to string) (ProjectSnapshot, error) {
	t, err := ValidateTransition(rbac.ResourceTender.Type, tender.Status, to)
	if err != nil {
		return ProjectSnapshot{}, err
	}
	if !t.Award {
		return ProjectSnapshot{}, xerrors.Errorf("moving a tender to %q does not award it: %w", to, ErrInvalidTransition)
	}
	return ProjectSnapshot{
		OrganizationID: tender.OrganizationID,
		SourceTenderID: tender.ID,
		Title:          tender.Title,
		ClientID:       tender.ClientID,
		ClientName:     tender.ClientName,
		Value:          tender.Value,
		Currency:       tender.Currency,
		Status:         ProjectActive,
	}, nil
}
