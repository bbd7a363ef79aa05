package database

import (
	"github.com/tenderd/tenderd/tenderd/lifecycle"
	"github.com/tenderd/tenderd/tenderd/rbac"
)

func (o Organization) RBACObject() rbac.Object {
	return rbac.ResourceOrganization.InOrg(o.ID).WithID(o.ID)
}

func (m OrganizationMember) RBACObject() rbac.Object {
	return rbac.ResourceOrganizationMember.InOrg(m.OrganizationID).WithID(m.UserID)
}

func (c Client) RBACObject() rbac.Object {
	return rbac.ResourceClient.InOrg(c.OrganizationID).WithID(c.ID)
}

func (c Category) RBACObject() rbac.Object {
	return rbac.ResourceCategory.InOrg(c.OrganizationID).WithID(c.ID)
}

func (t Tender) RBACObject() rbac.Object {
	return rbac.ResourceTender.InOrg(t.OrganizationID).WithID(t.ID).WithStatus(t.Status)
}

func (p Project) RBACObject() rbac.Object {
	return rbac.ResourceProject.InOrg(p.OrganizationID).WithID(p.ID).WithStatus(p.Status)
}

func (p PurchaseOrder) RBACObject() rbac.Object {
	return rbac.ResourcePurchaseOrder.InOrg(p.OrganizationID).WithID(p.ID).WithStatus(p.Status)
}

// Snapshot is the state a project would be created from if this tender is
// awarded.
func (t Tender) Snapshot() lifecycle.TenderSnapshot {
	return lifecycle.TenderSnapshot{
		ID:             t.ID,
		OrganizationID: t.OrganizationID,
		Title:          t.Title,
		ClientID:       t.ClientID,
		ClientName:     t.ClientName,
		Value:          t.Value,
		Currency:       t.Currency,
		Status:         t.Status,
	}
}

func (s Session) HasActiveOrganization() bool {
	return s.ActiveOrganizationID.Valid
}
