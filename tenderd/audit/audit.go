package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/xerrors"
)

type Action string

const (
	ActionCreate             Action = "create"
	ActionDelete             Action = "delete"
	ActionStatusChange       Action = "status_change"
	ActionAward              Action = "award"
	ActionRoleChange         Action = "role_change"
	ActionTransferOwnership  Action = "transfer_ownership"
	ActionSwitchOrganization Action = "switch_organization"
	// ActionDenied records an authorization denial with its internal
	// reason. The client only ever sees a generic forbidden.
	ActionDenied Action = "denied"
)

// Log is one audited event.
type Log struct {
	ID             uuid.UUID
	Time           time.Time
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	Action         Action
	ResourceType   string
	ResourceID     string
	StatusFrom     string
	StatusTo       string
	// Reason is set for denials.
	Reason string
	// RequestedAction is the rbac action that was checked, for denials.
	RequestedAction string
}

type Auditor interface {
	Export(ctx context.Context, alog Log) error
}

// Backend is a destination for audit logs.
type Backend interface {
	Export(ctx context.Context, alog Log) error
}

func NewNop() Auditor {
	return nop{}
}

type nop struct{}

func (nop) Export(context.Context, Log) error {
	return nil
}

// NewAuditor fans logs out to every backend. A failing backend does not
// stop the others.
func NewAuditor(reg prometheus.Registerer, backends ...Backend) Auditor {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &auditor{
		backends: backends,
		exported: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenderd",
			Subsystem: "audit",
			Name:      "logs_exported_total",
			Help:      "The number of audit logs exported, by action and resource type.",
		}, []string{"action", "resource_type"}),
	}
}

type auditor struct {
	backends []Backend
	exported *prometheus.CounterVec
}

func (a *auditor) Export(ctx context.Context, alog Log) error {
	if alog.ID == uuid.Nil {
		alog.ID = uuid.New()
	}
	if alog.Time.IsZero() {
		alog.Time = time.Now().UTC()
	}

	var merr error
	for _, backend := range a.backends {
		if err := backend.Export(ctx, alog); err != nil {
			merr = multierror.Append(merr, xerrors.Errorf("export to backend: %w", err))
		}
	}
	a.exported.WithLabelValues(string(alog.Action), alog.ResourceType).Inc()
	return merr
}
