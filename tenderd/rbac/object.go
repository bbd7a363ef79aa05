package rbac

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/tenderd/tenderd/tenderd/rbac/policy"
)

// Resources are the typed starting points for authz checks. Use the With*
// and InOrg helpers to narrow them down to a concrete object.
var (
	ResourceOrganization       = Object{Type: "organization"}
	ResourceOrganizationMember = Object{Type: "organization_member"}
	ResourceTender             = Object{Type: "tender"}
	ResourceProject            = Object{Type: "project"}
	ResourcePurchaseOrder      = Object{Type: "purchase_order"}
	ResourceCategory           = Object{Type: "category"}
	ResourceClient             = Object{Type: "client"}
)

// Snapshot is the current persisted state of a resource that conditional
// permissions are evaluated against.
type Snapshot struct {
	Status string `json:"status"`
}

// Object is used to create objects for authz checks.
type Object struct {
	// ID is the resource's uuid. Empty for checks that are not about a
	// concrete record, such as "create".
	ID string `json:"id"`
	// OrgID specifies which org the object is a part of. Every object
	// belongs to exactly one organization.
	OrgID string `json:"org_owner"`
	// Type is "tender", "project", etc.
	Type string `json:"type"`
	// Snapshot is nil when the caller has no current state in hand.
	// Conditional permissions never match a nil snapshot.
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}

// Objecter returns the RBAC object for itself.
type Objecter interface {
	RBACObject() Object
}

func (z Object) RBACObject() Object {
	return z
}

// String is not perfect, but decent enough for human display
func (z Object) String() string {
	var parts []string
	if z.OrgID != "" {
		parts = append(parts, fmt.Sprintf("org:%s", truncate(z.OrgID, 4)))
	}
	parts = append(parts, z.Type)
	if z.ID != "" {
		parts = append(parts, fmt.Sprintf("id:%s", truncate(z.ID, 4)))
	}
	if z.Snapshot != nil {
		parts = append(parts, fmt.Sprintf("status:%s", z.Snapshot.Status))
	}
	return strings.Join(parts, ".")
}

// ValidAction checks if the action is valid for the given object type.
func (z Object) ValidAction(action policy.Action) error {
	perms, ok := policy.RBACPermissions[z.Type]
	if !ok {
		return xerrors.Errorf("invalid type %q", z.Type)
	}
	if _, ok := perms.Actions[action]; !ok {
		return xerrors.Errorf("invalid action %q for type %q", action, z.Type)
	}
	return nil
}

func (z Object) Equal(b Object) bool {
	if z.ID != b.ID || z.OrgID != b.OrgID || z.Type != b.Type {
		return false
	}
	if (z.Snapshot == nil) != (b.Snapshot == nil) {
		return false
	}
	return z.Snapshot == nil || *z.Snapshot == *b.Snapshot
}

func (z Object) WithID(id uuid.UUID) Object {
	z.ID = id.String()
	return z
}

func (z Object) WithIDString(id string) Object {
	z.ID = id
	return z
}

// InOrg adds an org OwnerID to the resource
func (z Object) InOrg(orgID uuid.UUID) Object {
	z.OrgID = orgID.String()
	return z
}

// WithStatus attaches the resource's current status.
func (z Object) WithStatus(status string) Object {
	z.Snapshot = &Snapshot{Status: status}
	return z
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
