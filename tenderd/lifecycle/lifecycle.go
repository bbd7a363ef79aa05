// Package lifecycle holds the status machines for tenders, projects and
// purchase orders. It answers whether a status change is legal at all,
// independent of who is asking; the rbac package decides who may ask.
package lifecycle

import (
	"sort"
	"strings"

	"golang.org/x/xerrors"

	"github.com/tenderd/tenderd/tenderd/rbac"
	"github.com/tenderd/tenderd/tenderd/rbac/policy"
)

// ErrInvalidTransition is wrapped by every rejected transition. The
// wrapping message is safe to show to the caller.
var ErrInvalidTransition = xerrors.New("invalid status transition")

type Kind string

const (
	KindForward  Kind = "forward"
	KindRollback Kind = "rollback"
)

// Transition describes a legal status change.
type Transition struct {
	ResourceType string
	From         string
	To           string
	Kind         Kind
	// Award is set when the change converts a tender into a project and
	// must run through the award path.
	Award bool
}

type edge struct {
	from, to string
}

type machine struct {
	statuses map[string]struct{}
	forward  map[edge]struct{}
	rollback map[edge]struct{}
	award    map[string]struct{}
}

func newMachine(statuses []string, forward, rollback []edge, award ...string) machine {
	m := machine{
		statuses: map[string]struct{}{},
		forward:  map[edge]struct{}{},
		rollback: map[edge]struct{}{},
		award:    map[string]struct{}{},
	}
	for _, s := range statuses {
		m.statuses[s] = struct{}{}
	}
	for _, e := range forward {
		m.forward[e] = struct{}{}
	}
	for _, e := range rollback {
		m.rollback[e] = struct{}{}
	}
	for _, s := range award {
		m.award[s] = struct{}{}
	}
	return m
}

// next lists every status reachable from s, for error messages.
func (m machine) next(s string) []string {
	var out []string
	for e := range m.forward {
		if e.from == s {
			out = append(out, e.to)
		}
	}
	for e := range m.rollback {
		if e.from == s {
			out = append(out, e.to+" (rollback)")
		}
	}
	sort.Strings(out)
	return out
}

var machines = map[string]machine{
	rbac.ResourceTender.Type: newMachine(
		TenderStatuses(),
		[]edge{
			{TenderDraft, TenderSubmitted},
			{TenderDraft, TenderCancelled},
			{TenderSubmitted, TenderPending},
			{TenderSubmitted, TenderRejected},
			{TenderSubmitted, TenderCancelled},
			{TenderPending, TenderWon},
			{TenderPending, TenderLost},
			{TenderPending, TenderRejected},
			{TenderPending, TenderCancelled},
			{TenderPending, TenderAwarded},
			{TenderWon, TenderAwarded},
			{TenderLost, TenderCancelled},
			{TenderLost, TenderRejected},
		},
		[]edge{
			{TenderSubmitted, TenderDraft},
			{TenderPending, TenderSubmitted},
			{TenderLost, TenderPending},
			{TenderRejected, TenderPending},
		},
		TenderWon, TenderAwarded,
	),
	rbac.ResourceProject.Type: newMachine(
		ProjectStatuses(),
		[]edge{
			{ProjectActive, ProjectOnHold},
			{ProjectOnHold, ProjectActive},
			{ProjectActive, ProjectCompleted},
			{ProjectActive, ProjectCancelled},
			{ProjectOnHold, ProjectCancelled},
		},
		[]edge{
			{ProjectCompleted, ProjectActive},
		},
	),
	rbac.ResourcePurchaseOrder.Type: newMachine(
		PurchaseOrderStatuses(),
		[]edge{
			{PurchaseOrderDraft, PurchaseOrderSent},
			{PurchaseOrderSent, PurchaseOrderDelivered},
		},
		nil,
	),
}

// ValidateTransition checks from -> to against the resource's status
// machine. It does not consider who requests the change.
func ValidateTransition(resourceType, from, to string) (Transition, error) {
	m, ok := machines[resourceType]
	if !ok {
		return Transition{}, xerrors.Errorf("%s has no status lifecycle: %w", resourceType, ErrInvalidTransition)
	}
	if _, ok := m.statuses[from]; !ok {
		return Transition{}, xerrors.Errorf("unknown %s status %q: %w", resourceType, from, ErrInvalidTransition)
	}
	if _, ok := m.statuses[to]; !ok {
		return Transition{}, xerrors.Errorf("unknown %s status %q: %w", resourceType, to, ErrInvalidTransition)
	}
	if from == to {
		return Transition{}, xerrors.Errorf("%s is already %q: %w", resourceType, to, ErrInvalidTransition)
	}

	t := Transition{ResourceType: resourceType, From: from, To: to}
	e := edge{from: from, to: to}
	switch {
	case has(m.forward, e):
		t.Kind = KindForward
		// A tender that is already won has its project.
		_, toAward := m.award[to]
		_, fromAward := m.award[from]
		t.Award = toAward && !fromAward
	case has(m.rollback, e):
		t.Kind = KindRollback
	default:
		next := m.next(from)
		if len(next) == 0 {
			return Transition{}, xerrors.Errorf("%s in status %q cannot change status: %w", resourceType, from, ErrInvalidTransition)
		}
		return Transition{}, xerrors.Errorf("%s cannot move from %q to %q, allowed: %s: %w",
			resourceType, from, to, strings.Join(next, ", "), ErrInvalidTransition)
	}
	return t, nil
}

// RequiredAction is the permission the actor needs to perform t.
func RequiredAction(t Transition) policy.Action {
	if t.Kind == KindRollback {
		return policy.ActionRollback
	}
	return policy.ActionUpdate
}

// Terminal reports whether no transition leaves the status.
func Terminal(resourceType, status string) bool {
	m, ok := machines[resourceType]
	if !ok {
		return true
	}
	return len(m.next(status)) == 0
}

func has(set map[edge]struct{}, e edge) bool {
	_, ok := set[e]
	return ok
}
