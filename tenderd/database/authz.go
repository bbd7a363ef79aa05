package database

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/tenderd/tenderd/tenderd/rbac"
)

// Memberships exposes the store as the rbac membership reader. It must be
// given the raw store, not an authorizing wrapper.
func Memberships(db Store) rbac.MembershipReader {
	return membershipReader{db: db}
}

type membershipReader struct {
	db Store
}

func (m membershipReader) GetMemberRole(ctx context.Context, userID, organizationID uuid.UUID) (string, error) {
	member, err := m.db.GetOrganizationMember(ctx, GetOrganizationMemberParams{
		UserID:         userID,
		OrganizationID: organizationID,
	})
	if err != nil {
		return "", err
	}
	return member.Role, nil
}

// Snapshots exposes the store as the rbac snapshot reader.
func Snapshots(db Store) rbac.SnapshotReader {
	return snapshotReader{db: db}
}

type snapshotReader struct {
	db Store
}

func (s snapshotReader) GetSnapshot(ctx context.Context, resourceType string, id uuid.UUID) (rbac.Object, error) {
	var (
		obj rbac.Objecter
		err error
	)
	switch resourceType {
	case rbac.ResourceOrganization.Type:
		obj, err = s.db.GetOrganizationByID(ctx, id)
	case rbac.ResourceTender.Type:
		obj, err = s.db.GetTenderByID(ctx, id)
	case rbac.ResourceProject.Type:
		obj, err = s.db.GetProjectByID(ctx, id)
	case rbac.ResourcePurchaseOrder.Type:
		obj, err = s.db.GetPurchaseOrderByID(ctx, id)
	case rbac.ResourceClient.Type:
		obj, err = s.db.GetClientByID(ctx, id)
	case rbac.ResourceCategory.Type:
		obj, err = s.db.GetCategoryByID(ctx, id)
	default:
		return rbac.Object{}, xerrors.Errorf("no snapshot for resource type %q", resourceType)
	}
	if err != nil {
		return rbac.Object{}, err
	}
	return obj.RBACObject(), nil
}
