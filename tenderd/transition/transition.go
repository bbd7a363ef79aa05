// Package transition runs the state-changing operations on tenders,
// projects, purchase orders and memberships. Every store call goes through
// the authorizing store, and every successful change is audited.
package transition

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/tenderd/tenderd/tenderd/audit"
	"github.com/tenderd/tenderd/tenderd/database"
	"github.com/tenderd/tenderd/tenderd/database/dbauthz"
	"github.com/tenderd/tenderd/tenderd/database/dbtime"
	"github.com/tenderd/tenderd/tenderd/lifecycle"
	"github.com/tenderd/tenderd/tenderd/rbac"
	"github.com/tenderd/tenderd/tenderd/rbac/policy"
	"github.com/tenderd/tenderd/tenderd/tracing"
)

var (
	// ErrAwardSideEffectFailed is returned when the status flip and project
	// creation of an award could not be committed together.
	ErrAwardSideEffectFailed = xerrors.New("award side effect failed")
	// ErrOwnerRole is returned when a role change would grant or remove the
	// owner role. Ownership only moves through TransferOwnership.
	ErrOwnerRole = xerrors.New("the owner role can only change through an ownership transfer")
	// ErrUnknownRole is returned for role names the registry does not know.
	ErrUnknownRole = xerrors.New("unknown role")
	// ErrNotMember is returned when the target user is not a member of the
	// organization.
	ErrNotMember = xerrors.New("user is not a member of the organization")
)

type Options struct {
	// Database must be wrapped by dbauthz.
	Database   database.Store
	Authorizer rbac.Authorizer
	Registry   *rbac.Registry
	Auditor    audit.Auditor
	Logger     slog.Logger
}

type Service struct {
	db       database.Store
	authz    rbac.Authorizer
	registry *rbac.Registry
	auditor  audit.Auditor
	log      slog.Logger
}

func New(opts Options) *Service {
	if opts.Auditor == nil {
		opts.Auditor = audit.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = rbac.BuiltinRegistry()
	}
	return &Service{
		db:       opts.Database,
		authz:    opts.Authorizer,
		registry: opts.Registry,
		auditor:  opts.Auditor,
		log:      opts.Logger.Named("transition"),
	}
}

type CreateOrganizationParams struct {
	Name        string `json:"name" validate:"required,slug"`
	DisplayName string `json:"display_name"`
}

// CreateOrganization creates an organization with userID as its owner.
// Any authenticated user may do this, so no subject is involved.
func (s *Service) CreateOrganization(ctx context.Context, userID uuid.UUID, params CreateOrganizationParams) (database.Organization, error) {
	ctx, span := tracing.StartSpan(ctx)
	defer span.End()

	//nolint:gocritic // There is no organization to authorize against yet.
	sysCtx := dbauthz.AsSystem(ctx)
	if params.DisplayName == "" {
		params.DisplayName = params.Name
	}
	var org database.Organization
	err := s.db.InTx(func(tx database.Store) error {
		now := dbtime.Now()
		var err error
		org, err = tx.InsertOrganization(sysCtx, database.InsertOrganizationParams{
			ID:          uuid.New(),
			Name:        params.Name,
			DisplayName: params.DisplayName,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return xerrors.Errorf("insert organization: %w", err)
		}
		_, err = tx.InsertOrganizationMember(sysCtx, database.InsertOrganizationMemberParams{
			UserID:         userID,
			OrganizationID: org.ID,
			Role:           rbac.RoleOwner,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return xerrors.Errorf("insert owner membership: %w", err)
		}
		return nil
	}, nil)
	if err != nil {
		return database.Organization{}, err
	}
	s.export(ctx, audit.Log{
		OrganizationID: org.ID,
		UserID:         userID,
		Action:         audit.ActionCreate,
		ResourceType:   rbac.ResourceOrganization.Type,
		ResourceID:     org.ID.String(),
	})
	return org, nil
}

func (s *Service) DeleteOrganization(ctx context.Context, subject rbac.Subject) error {
	ctx = dbauthz.As(ctx, subject)
	if err := s.db.DeleteOrganization(ctx, subject.OrganizationID); err != nil {
		return err
	}
	s.export(ctx, audit.Log{
		OrganizationID: subject.OrganizationID,
		UserID:         subject.UserID,
		Action:         audit.ActionDelete,
		ResourceType:   rbac.ResourceOrganization.Type,
		ResourceID:     subject.OrganizationID.String(),
	})
	return nil
}

// TransferOwnership demotes the current owner to admin and promotes
// newOwnerID, who must already be a member, to owner in one transaction.
func (s *Service) TransferOwnership(ctx context.Context, subject rbac.Subject, newOwnerID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx)
	defer span.End()
	ctx = dbauthz.As(ctx, subject)

	org, err := s.db.GetOrganizationByID(ctx, subject.OrganizationID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, subject, policy.ActionTransferOwnership, org.RBACObject()); err != nil {
		return err
	}

	//nolint:gocritic // The transfer itself was authorized above.
	sysCtx := dbauthz.AsSystem(ctx)
	var previous database.OrganizationMember
	err = s.db.InTx(func(tx database.Store) error {
		var err error
		previous, err = tx.GetOrganizationOwner(sysCtx, org.ID)
		if err != nil {
			return xerrors.Errorf("get owner: %w", err)
		}
		if previous.UserID == newOwnerID {
			return xerrors.Errorf("user %s already owns the organization: %w", newOwnerID, ErrOwnerRole)
		}
		_, err = tx.GetOrganizationMember(sysCtx, database.GetOrganizationMemberParams{
			UserID:         newOwnerID,
			OrganizationID: org.ID,
		})
		if xerrors.Is(err, sql.ErrNoRows) {
			return ErrNotMember
		}
		if err != nil {
			return xerrors.Errorf("get new owner membership: %w", err)
		}

		now := dbtime.Now()
		// Demote first; only one owner may exist at any point.
		_, err = tx.UpdateMemberRole(sysCtx, database.UpdateMemberRoleParams{
			UserID: previous.UserID, OrganizationID: org.ID, Role: rbac.RoleAdmin, UpdatedAt: now,
		})
		if err != nil {
			return xerrors.Errorf("demote owner: %w", err)
		}
		_, err = tx.UpdateMemberRole(sysCtx, database.UpdateMemberRoleParams{
			UserID: newOwnerID, OrganizationID: org.ID, Role: rbac.RoleOwner, UpdatedAt: now,
		})
		if err != nil {
			return xerrors.Errorf("promote new owner: %w", err)
		}
		return nil
	}, nil)
	if err != nil {
		return err
	}
	s.export(ctx, audit.Log{
		OrganizationID: org.ID,
		UserID:         subject.UserID,
		Action:         audit.ActionTransferOwnership,
		ResourceType:   rbac.ResourceOrganizationMember.Type,
		ResourceID:     newOwnerID.String(),
		StatusFrom:     previous.UserID.String(),
		StatusTo:       newOwnerID.String(),
	})
	return nil
}

// UpdateMemberRole changes a member's role. Neither the new nor the old
// role may be owner.
func (s *Service) UpdateMemberRole(ctx context.Context, subject rbac.Subject, userID uuid.UUID, role string) (database.OrganizationMember, error) {
	ctx = dbauthz.As(ctx, subject)
	if _, ok := s.registry.Role(role); !ok {
		return database.OrganizationMember{}, xerrors.Errorf("%q: %w", role, ErrUnknownRole)
	}
	if role == rbac.RoleOwner {
		return database.OrganizationMember{}, ErrOwnerRole
	}

	current, err := s.db.GetOrganizationMember(ctx, database.GetOrganizationMemberParams{
		UserID:         userID,
		OrganizationID: subject.OrganizationID,
	})
	if err != nil {
		return database.OrganizationMember{}, err
	}
	if current.Role == rbac.RoleOwner {
		return database.OrganizationMember{}, ErrOwnerRole
	}
	if current.Role == role {
		return current, nil
	}

	member, err := s.db.UpdateMemberRole(ctx, database.UpdateMemberRoleParams{
		UserID:         userID,
		OrganizationID: subject.OrganizationID,
		Role:           role,
		UpdatedAt:      dbtime.Now(),
	})
	if err != nil {
		return database.OrganizationMember{}, err
	}
	s.export(ctx, audit.Log{
		OrganizationID: subject.OrganizationID,
		UserID:         subject.UserID,
		Action:         audit.ActionRoleChange,
		ResourceType:   rbac.ResourceOrganizationMember.Type,
		ResourceID:     userID.String(),
		StatusFrom:     current.Role,
		StatusTo:       member.Role,
	})
	return member, nil
}

type CreateTenderParams struct {
	Title      string          `json:"title" validate:"required"`
	ClientID   uuid.NullUUID   `json:"client_id"`
	ClientName string          `json:"client_name"`
	CategoryID uuid.NullUUID   `json:"category_id"`
	Value      decimal.Decimal `json:"value"`
	Currency   string          `json:"currency" validate:"required,len=3"`
}

// CreateTender creates a draft tender in the subject's organization.
func (s *Service) CreateTender(ctx context.Context, subject rbac.Subject, params CreateTenderParams) (database.Tender, error) {
	ctx = dbauthz.As(ctx, subject)
	now := dbtime.Now()
	tender, err := s.db.InsertTender(ctx, database.InsertTenderParams{
		ID:             uuid.New(),
		OrganizationID: subject.OrganizationID,
		Title:          params.Title,
		ClientID:       params.ClientID,
		ClientName:     params.ClientName,
		CategoryID:     params.CategoryID,
		Value:          params.Value,
		Currency:       params.Currency,
		Status:         lifecycle.TenderDraft,
		CreatedBy:      subject.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return database.Tender{}, err
	}
	s.export(ctx, audit.Log{
		OrganizationID: subject.OrganizationID,
		UserID:         subject.UserID,
		Action:         audit.ActionCreate,
		ResourceType:   rbac.ResourceTender.Type,
		ResourceID:     tender.ID.String(),
		StatusTo:       tender.Status,
	})
	return tender, nil
}

func (s *Service) DeleteTender(ctx context.Context, subject rbac.Subject, id uuid.UUID) error {
	ctx = dbauthz.As(ctx, subject)
	if err := s.db.DeleteTender(ctx, database.DeleteTenderParams{ID: id}); err != nil {
		return err
	}
	s.export(ctx, audit.Log{
		OrganizationID: subject.OrganizationID,
		UserID:         subject.UserID,
		Action:         audit.ActionDelete,
		ResourceType:   rbac.ResourceTender.Type,
		ResourceID:     id.String(),
	})
	return nil
}

type CreatePurchaseOrderParams struct {
	Number   string          `json:"number" validate:"required"`
	Supplier string          `json:"supplier" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" validate:"required,len=3"`
}

// CreatePurchaseOrder issues a draft purchase order against a project of
// the subject's organization.
func (s *Service) CreatePurchaseOrder(ctx context.Context, subject rbac.Subject, projectID uuid.UUID, params CreatePurchaseOrderParams) (database.PurchaseOrder, error) {
	ctx = dbauthz.As(ctx, subject)
	now := dbtime.Now()
	po, err := s.db.InsertPurchaseOrder(ctx, database.InsertPurchaseOrderParams{
		ID:             uuid.New(),
		OrganizationID: subject.OrganizationID,
		ProjectID:      projectID,
		Number:         params.Number,
		Supplier:       params.Supplier,
		Amount:         params.Amount,
		Currency:       params.Currency,
		Status:         lifecycle.PurchaseOrderDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return database.PurchaseOrder{}, err
	}
	s.export(ctx, audit.Log{
		OrganizationID: subject.OrganizationID,
		UserID:         subject.UserID,
		Action:         audit.ActionCreate,
		ResourceType:   rbac.ResourcePurchaseOrder.Type,
		ResourceID:     po.ID.String(),
		StatusTo:       po.Status,
	})
	return po, nil
}

// authorize checks actions that have no dedicated store query. Denials are
// audited like the ones raised by the store.
func (s *Service) authorize(ctx context.Context, subject rbac.Subject, action policy.Action, object rbac.Object) error {
	err := s.authz.Authorize(ctx, subject, action, object)
	var uerr *rbac.UnauthorizedError
	if xerrors.As(err, &uerr) {
		s.export(ctx, audit.Log{
			OrganizationID:  subject.OrganizationID,
			UserID:          subject.UserID,
			Action:          audit.ActionDenied,
			ResourceType:    object.Type,
			ResourceID:      object.ID,
			Reason:          string(uerr.Reason()),
			RequestedAction: string(action),
		})
	}
	return err
}

func (s *Service) export(ctx context.Context, alog audit.Log) {
	if err := s.auditor.Export(ctx, alog); err != nil {
		s.log.Warn(ctx, "export audit log",
			slog.F("action", alog.Action),
			slog.F("resource_type", alog.ResourceType),
			slog.Error(err),
		)
	}
}
