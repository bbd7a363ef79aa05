package transition

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/tenderd/tenderd/tenderd/audit"
	"github.com/tenderd/tenderd/tenderd/database"
	"github.com/tenderd/tenderd/tenderd/database/dbauthz"
	"github.com/tenderd/tenderd/tenderd/database/dbtime"
	"github.com/tenderd/tenderd/tenderd/lifecycle"
	"github.com/tenderd/tenderd/tenderd/rbac"
	"github.com/tenderd/tenderd/tenderd/tracing"
)

// UpdateTenderStatus moves a tender to status to. Moves that award the
// tender are routed through AwardTender so the project is created with
// them.
func (s *Service) UpdateTenderStatus(ctx context.Context, subject rbac.Subject, id uuid.UUID, to string) (database.Tender, error) {
	ctx, span := tracing.StartSpan(ctx, trace.WithAttributes(attribute.String("status_to", to)))
	defer span.End()
	ctx = dbauthz.As(ctx, subject)

	current, err := s.db.GetTenderByID(ctx, id)
	if err != nil {
		return database.Tender{}, err
	}
	t, err := lifecycle.ValidateTransition(rbac.ResourceTender.Type, current.Status, to)
	if err != nil {
		return database.Tender{}, err
	}
	if t.Award {
		tender, _, err := s.AwardTender(ctx, subject, id, to)
		return tender, err
	}

	tender, err := s.db.UpdateTenderStatus(ctx, database.UpdateStatusParams{
		ID: id, Status: to, FromStatus: current.Status, UpdatedAt: dbtime.Now(),
	})
	if err != nil {
		return database.Tender{}, err
	}
	s.exportStatusChange(ctx, subject, rbac.ResourceTender.Type, id, current.Status, tender.Status)
	return tender, nil
}

func (s *Service) UpdateProjectStatus(ctx context.Context, subject rbac.Subject, id uuid.UUID, to string) (database.Project, error) {
	ctx = dbauthz.As(ctx, subject)
	current, err := s.db.GetProjectByID(ctx, id)
	if err != nil {
		return database.Project{}, err
	}
	project, err := s.db.UpdateProjectStatus(ctx, database.UpdateStatusParams{
		ID: id, Status: to, FromStatus: current.Status, UpdatedAt: dbtime.Now(),
	})
	if err != nil {
		return database.Project{}, err
	}
	s.exportStatusChange(ctx, subject, rbac.ResourceProject.Type, id, current.Status, project.Status)
	return project, nil
}

func (s *Service) UpdatePurchaseOrderStatus(ctx context.Context, subject rbac.Subject, id uuid.UUID, to string) (database.PurchaseOrder, error) {
	ctx = dbauthz.As(ctx, subject)
	current, err := s.db.GetPurchaseOrderByID(ctx, id)
	if err != nil {
		return database.PurchaseOrder{}, err
	}
	po, err := s.db.UpdatePurchaseOrderStatus(ctx, database.UpdateStatusParams{
		ID: id, Status: to, FromStatus: current.Status, UpdatedAt: dbtime.Now(),
	})
	if err != nil {
		return database.PurchaseOrder{}, err
	}
	s.exportStatusChange(ctx, subject, rbac.ResourcePurchaseOrder.Type, id, current.Status, po.Status)
	return po, nil
}

// AwardTender moves a tender to won or awarded and creates its project in
// the same transaction. Validation and authorization failures are returned
// as they are. Any failure after that wraps ErrAwardSideEffectFailed.
func (s *Service) AwardTender(ctx context.Context, subject rbac.Subject, id uuid.UUID, to string) (database.Tender, database.Project, error) {
	ctx, span := tracing.StartSpan(ctx, trace.WithAttributes(attribute.String("status_to", to)))
	defer span.End()
	ctx = dbauthz.As(ctx, subject)

	var (
		from    string
		tender  database.Tender
		project database.Project
		// committing is set once the request passed validation and
		// authorization.
		committing bool
	)
	err := s.db.InTx(func(tx database.Store) error {
		committing = false
		current, err := tx.GetTenderByID(ctx, id)
		if err != nil {
			return err
		}
		from = current.Status
		snapshot, err := lifecycle.OnAward(current.Snapshot(), to)
		if err != nil {
			return err
		}

		tender, err = tx.UpdateTenderStatus(dbauthz.AsAward(ctx), database.UpdateStatusParams{
			ID: id, Status: to, FromStatus: from, UpdatedAt: dbtime.Now(),
		})
		if err != nil {
			if rbac.IsUnauthorizedError(err) ||
				xerrors.Is(err, lifecycle.ErrInvalidTransition) ||
				xerrors.Is(err, dbauthz.ErrStatusChanged) ||
				xerrors.Is(err, rbac.ErrTemporarilyUnavailable) {
				return err
			}
			committing = true
			return xerrors.Errorf("update tender status: %w", err)
		}
		committing = true

		// Members may award without being able to create projects
		// directly; the project is a consequence of the award.
		//nolint:gocritic // The award itself was authorized above.
		project, err = tx.InsertProject(dbauthz.AsSystem(ctx), database.InsertProjectParams{
			ID:             uuid.New(),
			OrganizationID: snapshot.OrganizationID,
			SourceTenderID: uuid.NullUUID{UUID: snapshot.SourceTenderID, Valid: true},
			Title:          snapshot.Title,
			ClientID:       snapshot.ClientID,
			ClientName:     snapshot.ClientName,
			Value:          snapshot.Value,
			Currency:       snapshot.Currency,
			Status:         snapshot.Status,
			CreatedAt:      tender.UpdatedAt,
			UpdatedAt:      tender.UpdatedAt,
		})
		if err != nil {
			return xerrors.Errorf("create project: %w", err)
		}
		return nil
	}, nil)
	if err != nil {
		if !committing {
			return database.Tender{}, database.Project{}, err
		}
		if s.partialAward(ctx, id, to) {
			return database.Tender{}, database.Project{}, xerrors.Errorf("partial award of tender %s (%v): %w", id, err, ErrAwardSideEffectFailed)
		}
		return database.Tender{}, database.Project{}, xerrors.Errorf("award tender %s (%v): %w", id, err, ErrAwardSideEffectFailed)
	}

	s.export(ctx, audit.Log{
		OrganizationID: subject.OrganizationID,
		UserID:         subject.UserID,
		Action:         audit.ActionAward,
		ResourceType:   rbac.ResourceTender.Type,
		ResourceID:     id.String(),
		StatusFrom:     from,
		StatusTo:       tender.Status,
	})
	s.export(ctx, audit.Log{
		OrganizationID: subject.OrganizationID,
		UserID:         subject.UserID,
		Action:         audit.ActionCreate,
		ResourceType:   rbac.ResourceProject.Type,
		ResourceID:     project.ID.String(),
		StatusTo:       project.Status,
	})
	return tender, project, nil
}

// partialAward reads back a failed award. A tender left in the award
// status without a project means the store did not roll back.
func (s *Service) partialAward(ctx context.Context, id uuid.UUID, to string) bool {
	//nolint:gocritic // Reading back state for consistency reporting.
	sysCtx := dbauthz.AsSystem(ctx)
	tender, err := s.db.GetTenderByID(sysCtx, id)
	if err != nil {
		s.log.Warn(ctx, "read back tender after failed award", slog.F("tender_id", id), slog.Error(err))
		return false
	}
	if tender.Status != to {
		return false
	}
	_, err = s.db.GetProjectBySourceTenderID(sysCtx, id)
	if xerrors.Is(err, sql.ErrNoRows) {
		s.log.Critical(ctx, "partial award: tender is awarded but has no project",
			slog.F("tender_id", id),
			slog.F("organization_id", tender.OrganizationID),
			slog.F("status", tender.Status),
		)
		return true
	}
	if err != nil {
		s.log.Warn(ctx, "read back project after failed award", slog.F("tender_id", id), slog.Error(err))
	}
	return false
}

func (s *Service) exportStatusChange(ctx context.Context, subject rbac.Subject, resourceType string, id uuid.UUID, from, to string) {
	s.export(ctx, audit.Log{
		OrganizationID: subject.OrganizationID,
		UserID:         subject.UserID,
		Action:         audit.ActionStatusChange,
		ResourceType:   resourceType,
		ResourceID:     id.String(),
		StatusFrom:     from,
		StatusTo:       to,
	})
}
