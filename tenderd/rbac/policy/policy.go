package policy

// Action represents the allowed actions to be done on an object.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"

	// ActionRollback moves a resource backward in its lifecycle. Forward
	// status changes only need ActionUpdate.
	ActionRollback Action = "rollback"

	ActionTransferOwnership Action = "transfer_ownership"
	ActionAssignRole        Action = "assign_role"
)

type PermissionDefinition struct {
	// Name is optional. Used to override "Type" for display.
	Name string
	// Actions are a map of actions to some description of what the action
	// should represent. The key in the actions map is the verb to use
	// in the rbac policy.
	Actions map[Action]ActionDefinition
	// Stateful resources carry a status that conditional permissions can
	// be evaluated against.
	Stateful bool
}

// Human friendly description to explain the action.
type ActionDefinition string

var crudActions = map[Action]ActionDefinition{
	ActionCreate: "create a new record",
	ActionRead:   "read the record",
	ActionUpdate: "edit the record",
	ActionDelete: "delete the record",
}

// RBACPermissions is indexed by the type
var RBACPermissions = map[string]PermissionDefinition{
	"organization": {
		Actions: map[Action]ActionDefinition{
			ActionRead:              "read organization details",
			ActionUpdate:            "rename or edit organization settings",
			ActionDelete:            "delete the organization and everything in it",
			ActionTransferOwnership: "hand the owner role to another member",
		},
	},
	"organization_member": {
		Name: "OrganizationMember",
		Actions: map[Action]ActionDefinition{
			ActionCreate:     "add a user to the organization",
			ActionRead:       "list organization members",
			ActionUpdate:     "edit member details",
			ActionDelete:     "remove a member from the organization",
			ActionAssignRole: "change the role of a member",
		},
	},
	"tender": {
		Stateful: true,
		Actions: map[Action]ActionDefinition{
			ActionCreate: "create a tender in draft",
			ActionRead:   "read tender data",
			// Award and every forward status change are updates.
			ActionUpdate:   "edit tender fields or move it forward in its lifecycle",
			ActionDelete:   "delete a tender",
			ActionRollback: "move a tender back to an earlier status",
		},
	},
	"project": {
		Stateful: true,
		Actions: map[Action]ActionDefinition{
			ActionCreate:   "create a project",
			ActionRead:     "read project data",
			ActionUpdate:   "edit project fields or status",
			ActionDelete:   "delete a project",
			ActionRollback: "reopen a completed project",
		},
	},
	"purchase_order": {
		Name:     "PurchaseOrder",
		Stateful: true,
		Actions:  crudActions,
	},
	"category": {
		Actions: crudActions,
	},
	"client": {
		Actions: crudActions,
	},
}
