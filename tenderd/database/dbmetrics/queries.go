package dbmetrics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tenderd/tenderd/tenderd/database"
)

func (m *queryMetricsStore) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := m.s.DeleteOrganization(ctx, id)
	m.queryLatencies.WithLabelValues("DeleteOrganization").Observe(time.Since(start).Seconds())
	return err
}

func (m *queryMetricsStore) GetOrganizationByID(ctx context.Context, id uuid.UUID) (database.Organization, error) {
	start := time.Now()
	r0, r1 := m.s.GetOrganizationByID(ctx, id)
	m.queryLatencies.WithLabelValues("GetOrganizationByID").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) GetOrganizationByName(ctx context.Context, name string) (database.Organization, error) {
	start := time.Now()
	r0, r1 := m.s.GetOrganizationByName(ctx, name)
	m.queryLatencies.WithLabelValues("GetOrganizationByName").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) InsertOrganization(ctx context.Context, arg database.InsertOrganizationParams) (database.Organization, error) {
	start := time.Now()
	r0, r1 := m.s.InsertOrganization(ctx, arg)
	m.queryLatencies.WithLabelValues("InsertOrganization").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) DeleteOrganizationMember(ctx context.Context, arg database.GetOrganizationMemberParams) error {
	start := time.Now()
	err := m.s.DeleteOrganizationMember(ctx, arg)
	m.queryLatencies.WithLabelValues("DeleteOrganizationMember").Observe(time.Since(start).Seconds())
	return err
}

func (m *queryMetricsStore) GetOrganizationMember(ctx context.Context, arg database.GetOrganizationMemberParams) (database.OrganizationMember, error) {
	start := time.Now()
	r0, r1 := m.s.GetOrganizationMember(ctx, arg)
	m.queryLatencies.WithLabelValues("GetOrganizationMember").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) GetOrganizationOwner(ctx context.Context, organizationID uuid.UUID) (database.OrganizationMember, error) {
	start := time.Now()
	r0, r1 := m.s.GetOrganizationOwner(ctx, organizationID)
	m.queryLatencies.WithLabelValues("GetOrganizationOwner").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) GetOrganizationsByUserID(ctx context.Context, userID uuid.UUID) ([]database.Organization, error) {
	start := time.Now()
	r0, r1 := m.s.GetOrganizationsByUserID(ctx, userID)
	m.queryLatencies.WithLabelValues("GetOrganizationsByUserID").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) InsertOrganizationMember(ctx context.Context, arg database.InsertOrganizationMemberParams) (database.OrganizationMember, error) {
	start := time.Now()
	r0, r1 := m.s.InsertOrganizationMember(ctx, arg)
	m.queryLatencies.WithLabelValues("InsertOrganizationMember").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) UpdateMemberRole(ctx context.Context, arg database.UpdateMemberRoleParams) (database.OrganizationMember, error) {
	start := time.Now()
	r0, r1 := m.s.UpdateMemberRole(ctx, arg)
	m.queryLatencies.WithLabelValues("UpdateMemberRole").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()
	r0, r1 := m.s.DeleteExpiredSessions(ctx, now)
	m.queryLatencies.WithLabelValues("DeleteExpiredSessions").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) DeleteSession(ctx context.Context, id string) error {
	start := time.Now()
	err := m.s.DeleteSession(ctx, id)
	m.queryLatencies.WithLabelValues("DeleteSession").Observe(time.Since(start).Seconds())
	return err
}

func (m *queryMetricsStore) GetSessionByID(ctx context.Context, id string) (database.Session, error) {
	start := time.Now()
	r0, r1 := m.s.GetSessionByID(ctx, id)
	m.queryLatencies.WithLabelValues("GetSessionByID").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) InsertSession(ctx context.Context, arg database.InsertSessionParams) (database.Session, error) {
	start := time.Now()
	r0, r1 := m.s.InsertSession(ctx, arg)
	m.queryLatencies.WithLabelValues("InsertSession").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) UpdateSessionActiveOrganization(ctx context.Context, arg database.UpdateSessionActiveOrganizationParams) (database.Session, error) {
	start := time.Now()
	r0, r1 := m.s.UpdateSessionActiveOrganization(ctx, arg)
	m.queryLatencies.WithLabelValues("UpdateSessionActiveOrganization").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) GetCategoryByID(ctx context.Context, id uuid.UUID) (database.Category, error) {
	start := time.Now()
	r0, r1 := m.s.GetCategoryByID(ctx, id)
	m.queryLatencies.WithLabelValues("GetCategoryByID").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) GetClientByID(ctx context.Context, id uuid.UUID) (database.Client, error) {
	start := time.Now()
	r0, r1 := m.s.GetClientByID(ctx, id)
	m.queryLatencies.WithLabelValues("GetClientByID").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) InsertCategory(ctx context.Context, arg database.InsertCategoryParams) (database.Category, error) {
	start := time.Now()
	r0, r1 := m.s.InsertCategory(ctx, arg)
	m.queryLatencies.WithLabelValues("InsertCategory").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) InsertClient(ctx context.Context, arg database.InsertClientParams) (database.Client, error) {
	start := time.Now()
	r0, r1 := m.s.InsertClient(ctx, arg)
	m.queryLatencies.WithLabelValues("InsertClient").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) DeleteTender(ctx context.Context, arg database.DeleteTenderParams) error {
	start := time.Now()
	err := m.s.DeleteTender(ctx, arg)
	m.queryLatencies.WithLabelValues("DeleteTender").Observe(time.Since(start).Seconds())
	return err
}

func (m *queryMetricsStore) GetTenderByID(ctx context.Context, id uuid.UUID) (database.Tender, error) {
	start := time.Now()
	r0, r1 := m.s.GetTenderByID(ctx, id)
	m.queryLatencies.WithLabelValues("GetTenderByID").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) InsertTender(ctx context.Context, arg database.InsertTenderParams) (database.Tender, error) {
	start := time.Now()
	r0, r1 := m.s.InsertTender(ctx, arg)
	m.queryLatencies.WithLabelValues("InsertTender").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) UpdateTenderStatus(ctx context.Context, arg database.UpdateStatusParams) (database.Tender, error) {
	start := time.Now()
	r0, r1 := m.s.UpdateTenderStatus(ctx, arg)
	m.queryLatencies.WithLabelValues("UpdateTenderStatus").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) DeleteProject(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := m.s.DeleteProject(ctx, id)
	m.queryLatencies.WithLabelValues("DeleteProject").Observe(time.Since(start).Seconds())
	return err
}

func (m *queryMetricsStore) GetProjectByID(ctx context.Context, id uuid.UUID) (database.Project, error) {
	start := time.Now()
	r0, r1 := m.s.GetProjectByID(ctx, id)
	m.queryLatencies.WithLabelValues("GetProjectByID").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) GetProjectBySourceTenderID(ctx context.Context, tenderID uuid.UUID) (database.Project, error) {
	start := time.Now()
	r0, r1 := m.s.GetProjectBySourceTenderID(ctx, tenderID)
	m.queryLatencies.WithLabelValues("GetProjectBySourceTenderID").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) InsertProject(ctx context.Context, arg database.InsertProjectParams) (database.Project, error) {
	start := time.Now()
	r0, r1 := m.s.InsertProject(ctx, arg)
	m.queryLatencies.WithLabelValues("InsertProject").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) UpdateProjectStatus(ctx context.Context, arg database.UpdateStatusParams) (database.Project, error) {
	start := time.Now()
	r0, r1 := m.s.UpdateProjectStatus(ctx, arg)
	m.queryLatencies.WithLabelValues("UpdateProjectStatus").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) GetPurchaseOrderByID(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
	start := time.Now()
	r0, r1 := m.s.GetPurchaseOrderByID(ctx, id)
	m.queryLatencies.WithLabelValues("GetPurchaseOrderByID").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) InsertPurchaseOrder(ctx context.Context, arg database.InsertPurchaseOrderParams) (database.PurchaseOrder, error) {
	start := time.Now()
	r0, r1 := m.s.InsertPurchaseOrder(ctx, arg)
	m.queryLatencies.WithLabelValues("InsertPurchaseOrder").Observe(time.Since(start).Seconds())
	return r0, r1
}

func (m *queryMetricsStore) UpdatePurchaseOrderStatus(ctx context.Context, arg database.UpdateStatusParams) (database.PurchaseOrder, error) {
	start := time.Now()
	r0, r1 := m.s.UpdatePurchaseOrderStatus(ctx, arg)
	m.queryLatencies.WithLabelValues("UpdatePurchaseOrderStatus").Observe(time.Since(start).Seconds())
	return r0, r1
}
