package rbac

import (
	"sort"

	"github.com/tenderd/tenderd/tenderd/rbac/policy"
)

// ConditionKind is the closed set of predicates a permission can be gated
// by. New kinds must be handled in Condition.Matches.
type ConditionKind string

const (
	// ConditionNone marks an unconditional permission.
	ConditionNone ConditionKind = ""
	// ConditionStatusEquals matches when the resource snapshot's status
	// equals Value.
	ConditionStatusEquals ConditionKind = "status_equals"
)

type Condition struct {
	Kind  ConditionKind `json:"kind,omitempty"`
	Value string        `json:"value,omitempty"`
}

func StatusEquals(status string) Condition {
	return Condition{Kind: ConditionStatusEquals, Value: status}
}

func (c Condition) Unconditional() bool {
	return c.Kind == ConditionNone
}

// Matches reports whether the snapshot satisfies the condition. Unknown
// kinds never match.
func (c Condition) Matches(s Snapshot) bool {
	switch c.Kind {
	case ConditionNone:
		return true
	case ConditionStatusEquals:
		return s.Status == c.Value
	default:
		return false
	}
}

type Permission struct {
	Action    policy.Action `json:"action"`
	Condition Condition     `json:"condition"`
	// Override lets an unconditional grant win over a conditional grant for
	// the same action. Without it, the condition is authoritative.
	Override bool `json:"override,omitempty"`
}

// Role is a named set of permissions, keyed by resource type. Roles are
// assigned per (user, organization), so every permission is implicitly
// scoped to the organization of the membership.
type Role struct {
	Name        string                  `json:"name"`
	DisplayName string                  `json:"display_name"`
	Statements  map[string][]Permission `json:"statements"`
}

// allows walks the role's statements for the object type. The returned
// reason is only meaningful when the result is false.
func (r Role) allows(action policy.Action, object Object) (bool, Reason) {
	perms, ok := r.Statements[object.Type]
	if !ok {
		return false, ReasonUnknownResourceType
	}

	var (
		unconditional bool
		override      bool
		conditional   []Condition
	)
	for _, perm := range perms {
		if perm.Action != action {
			continue
		}
		if perm.Condition.Unconditional() {
			unconditional = true
			override = override || perm.Override
			continue
		}
		conditional = append(conditional, perm.Condition)
	}

	switch {
	case unconditional && (len(conditional) == 0 || override):
		return true, ""
	case len(conditional) > 0:
		if object.Snapshot == nil {
			return false, ReasonMissingSnapshot
		}
		for _, cond := range conditional {
			if cond.Matches(*object.Snapshot) {
				return true, ""
			}
		}
		return false, ReasonConditionFailed
	default:
		return false, ReasonActionNotGranted
	}
}

func (r Role) clone() Role {
	statements := make(map[string][]Permission, len(r.Statements))
	for k, perms := range r.Statements {
		statements[k] = append([]Permission(nil), perms...)
	}
	return Role{
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Statements:  statements,
	}
}

// Permissions is just a helper function to make building roles that list out resources
// and actions a bit easier.
func Permissions(perms map[string][]policy.Action) map[string][]Permission {
	statements := make(map[string][]Permission, len(perms))
	for resourceType, actions := range perms {
		list := make([]Permission, 0, len(actions))
		for _, act := range actions {
			list = append(list, Permission{Action: act})
		}
		// Deterministic ordering of permissions
		sort.Slice(list, func(i, j int) bool {
			return list[i].Action < list[j].Action
		})
		statements[resourceType] = list
	}
	return statements
}
