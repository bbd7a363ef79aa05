package rbac

import (
	"sort"
	"sync"

	"golang.org/x/xerrors"

	"github.com/tenderd/tenderd/tenderd/rbac/policy"
)

const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
)

// builtinRoles returns fresh copies of the four organization roles. Every
// role is scoped to the organization of the membership that grants it.
func builtinRoles() []Role {
	allActions := func(resourceType string) []policy.Action {
		def := policy.RBACPermissions[resourceType]
		actions := make([]policy.Action, 0, len(def.Actions))
		for act := range def.Actions {
			actions = append(actions, act)
		}
		return actions
	}
	without := func(actions []policy.Action, exclude ...policy.Action) []policy.Action {
		out := make([]policy.Action, 0, len(actions))
	next:
		for _, act := range actions {
			for _, ex := range exclude {
				if act == ex {
					continue next
				}
			}
			out = append(out, act)
		}
		return out
	}
	draftOnlyDelete := Permission{
		Action:    policy.ActionDelete,
		Condition: StatusEquals("draft"),
	}

	ownerPerms := make(map[string][]policy.Action, len(policy.RBACPermissions))
	for resourceType := range policy.RBACPermissions {
		ownerPerms[resourceType] = allActions(resourceType)
	}

	adminPerms := make(map[string][]policy.Action, len(policy.RBACPermissions))
	for resourceType := range policy.RBACPermissions {
		adminPerms[resourceType] = allActions(resourceType)
	}
	adminPerms[ResourceOrganization.Type] = without(adminPerms[ResourceOrganization.Type],
		policy.ActionDelete, policy.ActionTransferOwnership)
	adminPerms[ResourceProject.Type] = without(adminPerms[ResourceProject.Type], policy.ActionDelete)

	manager := Role{
		Name:        RoleManager,
		DisplayName: "Manager",
		Statements: Permissions(map[string][]policy.Action{
			ResourceOrganization.Type:       {policy.ActionRead},
			ResourceOrganizationMember.Type: {policy.ActionRead},
			ResourceTender.Type:             {policy.ActionCreate, policy.ActionRead, policy.ActionUpdate},
			ResourceProject.Type:            {policy.ActionCreate, policy.ActionRead, policy.ActionUpdate},
			ResourcePurchaseOrder.Type:      {policy.ActionCreate, policy.ActionRead, policy.ActionUpdate},
			ResourceCategory.Type:           {policy.ActionCreate, policy.ActionRead, policy.ActionUpdate},
			ResourceClient.Type:             {policy.ActionCreate, policy.ActionRead, policy.ActionUpdate},
		}),
	}
	manager.Statements[ResourceTender.Type] = append(manager.Statements[ResourceTender.Type], draftOnlyDelete)

	member := Role{
		Name:        RoleMember,
		DisplayName: "Member",
		Statements: Permissions(map[string][]policy.Action{
			ResourceOrganization.Type:       {policy.ActionRead},
			ResourceOrganizationMember.Type: {policy.ActionRead},
			ResourceTender.Type:             {policy.ActionCreate, policy.ActionRead, policy.ActionUpdate},
			ResourceProject.Type:            {policy.ActionRead},
			ResourcePurchaseOrder.Type:      {policy.ActionRead},
			ResourceCategory.Type:           {policy.ActionRead},
			ResourceClient.Type:             {policy.ActionRead},
		}),
	}
	member.Statements[ResourceTender.Type] = append(member.Statements[ResourceTender.Type], draftOnlyDelete)

	return []Role{
		{
			Name:        RoleOwner,
			DisplayName: "Owner",
			Statements:  Permissions(ownerPerms),
		},
		{
			Name:        RoleAdmin,
			DisplayName: "Admin",
			Statements:  Permissions(adminPerms),
		},
		manager,
		member,
	}
}

// assignRoles is a map of roles that can be assigned if a user has a given
// role. Owner is never assignable; it only moves through an ownership
// transfer.
//
//	map[actor_role][assign_role]<can_assign>
var assignRoles = map[string]map[string]bool{
	RoleOwner: {
		RoleAdmin:   true,
		RoleManager: true,
		RoleMember:  true,
	},
	RoleAdmin: {
		RoleManager: true,
		RoleMember:  true,
	},
}

// CanAssignRole returns true if an actor holding actorRole may assign the
// specified role to someone, or take it away from them.
func CanAssignRole(actorRole, assignedRole string) bool {
	return assignRoles[actorRole][assignedRole]
}

// Registry is the immutable role table shared by every evaluation.
type Registry struct {
	roles map[string]Role
}

// NewRegistry validates every statement against the policy vocabulary.
func NewRegistry(roles ...Role) (*Registry, error) {
	r := &Registry{roles: make(map[string]Role, len(roles))}
	for _, role := range roles {
		if role.Name == "" {
			return nil, xerrors.New("role name is required")
		}
		if _, ok := r.roles[role.Name]; ok {
			return nil, xerrors.Errorf("duplicate role %q", role.Name)
		}
		for resourceType, perms := range role.Statements {
			for _, perm := range perms {
				err := Object{Type: resourceType}.ValidAction(perm.Action)
				if err != nil {
					return nil, xerrors.Errorf("role %q: %w", role.Name, err)
				}
				switch perm.Condition.Kind {
				case ConditionNone:
				case ConditionStatusEquals:
					if !policy.RBACPermissions[resourceType].Stateful {
						return nil, xerrors.Errorf("role %q: %q has no status to condition on", role.Name, resourceType)
					}
					if perm.Override {
						return nil, xerrors.Errorf("role %q: override only applies to unconditional grants", role.Name)
					}
				default:
					return nil, xerrors.Errorf("role %q: unknown condition %q", role.Name, perm.Condition.Kind)
				}
			}
		}
		r.roles[role.Name] = role.clone()
	}
	return r, nil
}

var (
	builtinOnce     sync.Once
	builtinRegistry *Registry
)

// BuiltinRegistry returns the process-wide registry of the four
// organization roles.
func BuiltinRegistry() *Registry {
	builtinOnce.Do(func() {
		var err error
		builtinRegistry, err = NewRegistry(builtinRoles()...)
		if err != nil {
			panic("developer error: invalid builtin roles: " + err.Error())
		}
	})
	return builtinRegistry
}

// Role returns a copy of the named role.
func (r *Registry) Role(name string) (Role, bool) {
	role, ok := r.roles[name]
	if !ok {
		return Role{}, false
	}
	return role.clone(), true
}

// Names returns the registered role names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.roles))
	for name := range r.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Allows evaluates the role's statements only. Organization scoping and
// membership are the Authorizer's job.
func (r *Registry) Allows(roleName string, action policy.Action, object Object) (bool, Reason) {
	role, ok := r.roles[roleName]
	if !ok {
		return false, ReasonUnknownRole
	}
	return role.allows(action, object)
}
