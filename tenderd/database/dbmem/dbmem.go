// Package dbmem is an in-memory database.Store. Transactions copy the data
// and only publish the copy when the function succeeds, so a failed InTx
// leaves no trace.
package dbmem

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/xerrors"

	"github.com/tenderd/tenderd/tenderd/database"
	"github.com/tenderd/tenderd/tenderd/lifecycle"
	"github.com/tenderd/tenderd/tenderd/rbac"
)

var _ database.Store = (*FakeQuerier)(nil)

func uniqueViolation(c database.UniqueConstraint) error {
	return &pq.Error{
		Code:       "23505",
		Message:    "duplicate key value violates unique constraint",
		Constraint: string(c),
	}
}

func foreignKeyViolation(c database.ForeignKeyConstraint) error {
	return &pq.Error{
		Code:       "23503",
		Message:    "insert or update violates foreign key constraint",
		Constraint: string(c),
	}
}

// New returns an in-memory fake of the database.
func New() *FakeQuerier {
	return &FakeQuerier{
		mutex: &sync.RWMutex{},
		data:  &data{},
	}
}

type rwMutex interface {
	Lock()
	RLock()
	Unlock()
	RUnlock()
}

// inTxMutex is a no op, since inside a transaction we are already locked.
type inTxMutex struct{}

func (inTxMutex) Lock()    {}
func (inTxMutex) RLock()   {}
func (inTxMutex) Unlock()  {}
func (inTxMutex) RUnlock() {}

// FakeQuerier replicates database functionality to enable quick testing.
type FakeQuerier struct {
	mutex rwMutex
	*data
}

type data struct {
	organizations       []database.Organization
	organizationMembers []database.OrganizationMember
	sessions            []database.Session
	clients             []database.Client
	categories          []database.Category
	tenders             []database.Tender
	projects            []database.Project
	purchaseOrders      []database.PurchaseOrder
}

func (d *data) clone() *data {
	return &data{
		organizations:       append([]database.Organization(nil), d.organizations...),
		organizationMembers: append([]database.OrganizationMember(nil), d.organizationMembers...),
		sessions:            append([]database.Session(nil), d.sessions...),
		clients:             append([]database.Client(nil), d.clients...),
		categories:          append([]database.Category(nil), d.categories...),
		tenders:             append([]database.Tender(nil), d.tenders...),
		projects:            append([]database.Project(nil), d.projects...),
		purchaseOrders:      append([]database.PurchaseOrder(nil), d.purchaseOrders...),
	}
}

func (*FakeQuerier) Wrappers() []string {
	return []string{}
}

func (*FakeQuerier) Ping(_ context.Context) (time.Duration, error) {
	return 0, nil
}

func (q *FakeQuerier) InTx(fn func(database.Store) error, opts *database.TxOptions) error {
	if opts == nil {
		opts = database.DefaultTXOptions()
	}
	database.IncrementExecutionCount(opts)

	if _, ok := q.mutex.(inTxMutex); ok {
		// Nested: the outer transaction publishes or discards.
		return fn(q)
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()
	tx := &FakeQuerier{mutex: inTxMutex{}, data: q.data.clone()}
	if err := fn(tx); err != nil {
		return xerrors.Errorf("execute transaction: %w", err)
	}
	q.data = tx.data
	return nil
}

func (q *FakeQuerier) DeleteOrganization(_ context.Context, id uuid.UUID) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for i, org := range q.organizations {
		if org.ID != id {
			continue
		}
		q.organizations = append(q.organizations[:i], q.organizations[i+1:]...)
		// ON DELETE CASCADE
		q.organizationMembers = filter(q.organizationMembers, func(m database.OrganizationMember) bool {
			return m.OrganizationID != id
		})
		q.clients = filter(q.clients, func(c database.Client) bool { return c.OrganizationID != id })
		q.categories = filter(q.categories, func(c database.Category) bool { return c.OrganizationID != id })
		q.tenders = filter(q.tenders, func(t database.Tender) bool { return t.OrganizationID != id })
		q.projects = filter(q.projects, func(p database.Project) bool { return p.OrganizationID != id })
		q.purchaseOrders = filter(q.purchaseOrders, func(p database.PurchaseOrder) bool { return p.OrganizationID != id })
		// ON DELETE SET NULL
		for j, s := range q.sessions {
			if s.ActiveOrganizationID.Valid && s.ActiveOrganizationID.UUID == id {
				s.ActiveOrganizationID = uuid.NullUUID{}
				q.sessions[j] = s
			}
		}
		return nil
	}
	return sql.ErrNoRows
}

func (q *FakeQuerier) GetOrganizationByID(_ context.Context, id uuid.UUID) (database.Organization, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, org := range q.organizations {
		if org.ID == id {
			return org, nil
		}
	}
	return database.Organization{}, sql.ErrNoRows
}

func (q *FakeQuerier) GetOrganizationByName(_ context.Context, name string) (database.Organization, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, org := range q.organizations {
		if strings.EqualFold(org.Name, name) {
			return org, nil
		}
	}
	return database.Organization{}, sql.ErrNoRows
}

func (q *FakeQuerier) InsertOrganization(_ context.Context, arg database.InsertOrganizationParams) (database.Organization, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for _, org := range q.organizations {
		if org.Name == arg.Name {
			return database.Organization{}, uniqueViolation(database.UniqueOrganizationsName)
		}
	}
	org := database.Organization{
		ID:          arg.ID,
		Name:        arg.Name,
		DisplayName: arg.DisplayName,
		CreatedAt:   arg.CreatedAt,
		UpdatedAt:   arg.UpdatedAt,
	}
	q.organizations = append(q.organizations, org)
	return org, nil
}

func (q *FakeQuerier) DeleteOrganizationMember(_ context.Context, arg database.GetOrganizationMemberParams) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for i, m := range q.organizationMembers {
		if m.UserID == arg.UserID && m.OrganizationID == arg.OrganizationID {
			q.organizationMembers = append(q.organizationMembers[:i], q.organizationMembers[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (q *FakeQuerier) GetOrganizationMember(_ context.Context, arg database.GetOrganizationMemberParams) (database.OrganizationMember, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, m := range q.organizationMembers {
		if m.UserID == arg.UserID && m.OrganizationID == arg.OrganizationID {
			return m, nil
		}
	}
	return database.OrganizationMember{}, sql.ErrNoRows
}

func (q *FakeQuerier) GetOrganizationOwner(_ context.Context, organizationID uuid.UUID) (database.OrganizationMember, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, m := range q.organizationMembers {
		if m.OrganizationID == organizationID && m.Role == rbac.RoleOwner {
			return m, nil
		}
	}
	return database.OrganizationMember{}, sql.ErrNoRows
}

func (q *FakeQuerier) GetOrganizationsByUserID(_ context.Context, userID uuid.UUID) ([]database.Organization, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	var orgs []database.Organization
	for _, org := range q.organizations {
		for _, m := range q.organizationMembers {
			if m.UserID == userID && m.OrganizationID == org.ID {
				orgs = append(orgs, org)
				break
			}
		}
	}
	return orgs, nil
}

// ownerConflict mirrors the partial unique index on owner rows.
func (q *FakeQuerier) ownerConflict(orgID, userID uuid.UUID, role string) bool {
	if role != rbac.RoleOwner {
		return false
	}
	for _, m := range q.organizationMembers {
		if m.OrganizationID == orgID && m.Role == rbac.RoleOwner && m.UserID != userID {
			return true
		}
	}
	return false
}

func (q *FakeQuerier) InsertOrganizationMember(_ context.Context, arg database.InsertOrganizationMemberParams) (database.OrganizationMember, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for _, m := range q.organizationMembers {
		if m.UserID == arg.UserID && m.OrganizationID == arg.OrganizationID {
			return database.OrganizationMember{}, uniqueViolation(database.UniqueOrganizationMembersPkey)
		}
	}
	if q.ownerConflict(arg.OrganizationID, arg.UserID, arg.Role) {
		return database.OrganizationMember{}, uniqueViolation(database.UniqueOrganizationMembersOneOwner)
	}
	member := database.OrganizationMember{
		UserID:         arg.UserID,
		OrganizationID: arg.OrganizationID,
		Role:           arg.Role,
		CreatedAt:      arg.CreatedAt,
		UpdatedAt:      arg.UpdatedAt,
	}
	q.organizationMembers = append(q.organizationMembers, member)
	return member, nil
}

func (q *FakeQuerier) UpdateMemberRole(_ context.Context, arg database.UpdateMemberRoleParams) (database.OrganizationMember, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for i, m := range q.organizationMembers {
		if m.UserID != arg.UserID || m.OrganizationID != arg.OrganizationID {
			continue
		}
		if q.ownerConflict(arg.OrganizationID, arg.UserID, arg.Role) {
			return database.OrganizationMember{}, uniqueViolation(database.UniqueOrganizationMembersOneOwner)
		}
		m.Role = arg.Role
		m.UpdatedAt = arg.UpdatedAt
		q.organizationMembers[i] = m
		return m, nil
	}
	return database.OrganizationMember{}, sql.ErrNoRows
}

func (q *FakeQuerier) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	before := len(q.sessions)
	q.sessions = filter(q.sessions, func(s database.Session) bool { return s.ExpiresAt.After(now) })
	return int64(before - len(q.sessions)), nil
}

func (q *FakeQuerier) DeleteSession(_ context.Context, id string) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for i, s := range q.sessions {
		if s.ID == id {
			q.sessions = append(q.sessions[:i], q.sessions[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (q *FakeQuerier) GetSessionByID(_ context.Context, id string) (database.Session, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, s := range q.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return database.Session{}, sql.ErrNoRows
}

func (q *FakeQuerier) InsertSession(_ context.Context, arg database.InsertSessionParams) (database.Session, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	session := database.Session{
		ID:                   arg.ID,
		HashedSecret:         arg.HashedSecret,
		UserID:               arg.UserID,
		ActiveOrganizationID: arg.ActiveOrganizationID,
		CreatedAt:            arg.CreatedAt,
		ExpiresAt:            arg.ExpiresAt,
	}
	q.sessions = append(q.sessions, session)
	return session, nil
}

func (q *FakeQuerier) UpdateSessionActiveOrganization(_ context.Context, arg database.UpdateSessionActiveOrganizationParams) (database.Session, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for i, s := range q.sessions {
		if s.ID == arg.ID {
			s.ActiveOrganizationID = arg.ActiveOrganizationID
			q.sessions[i] = s
			return s, nil
		}
	}
	return database.Session{}, sql.ErrNoRows
}

func (q *FakeQuerier) GetCategoryByID(_ context.Context, id uuid.UUID) (database.Category, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, c := range q.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return database.Category{}, sql.ErrNoRows
}

func (q *FakeQuerier) GetClientByID(_ context.Context, id uuid.UUID) (database.Client, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, c := range q.clients {
		if c.ID == id {
			return c, nil
		}
	}
	return database.Client{}, sql.ErrNoRows
}

func (q *FakeQuerier) InsertCategory(_ context.Context, arg database.InsertCategoryParams) (database.Category, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for _, c := range q.categories {
		if c.OrganizationID == arg.OrganizationID && c.Name == arg.Name {
			return database.Category{}, uniqueViolation(database.UniqueCategoriesOrganizationName)
		}
	}
	category := database.Category(arg)
	q.categories = append(q.categories, category)
	return category, nil
}

func (q *FakeQuerier) InsertClient(_ context.Context, arg database.InsertClientParams) (database.Client, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for _, c := range q.clients {
		if c.OrganizationID == arg.OrganizationID && c.Name == arg.Name {
			return database.Client{}, uniqueViolation(database.UniqueClientsOrganizationName)
		}
	}
	client := database.Client(arg)
	q.clients = append(q.clients, client)
	return client, nil
}

func (q *FakeQuerier) DeleteTender(_ context.Context, arg database.DeleteTenderParams) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	id := arg.ID
	for i, t := range q.tenders {
		if t.ID != id {
			continue
		}
		if arg.Status != "" && t.Status != arg.Status {
			return sql.ErrNoRows
		}
		q.tenders = append(q.tenders[:i], q.tenders[i+1:]...)
		for j, p := range q.projects {
			if p.SourceTenderID.Valid && p.SourceTenderID.UUID == id {
				p.SourceTenderID = uuid.NullUUID{}
				q.projects[j] = p
			}
		}
		return nil
	}
	return sql.ErrNoRows
}

func (q *FakeQuerier) GetTenderByID(_ context.Context, id uuid.UUID) (database.Tender, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, t := range q.tenders {
		if t.ID == id {
			return t, nil
		}
	}
	return database.Tender{}, sql.ErrNoRows
}

func (q *FakeQuerier) InsertTender(_ context.Context, arg database.InsertTenderParams) (database.Tender, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if arg.ClientID.Valid && !exists(q.clients, func(c database.Client) bool { return c.ID == arg.ClientID.UUID }) {
		return database.Tender{}, foreignKeyViolation(database.ForeignKeyTendersClientID)
	}
	if arg.CategoryID.Valid && !exists(q.categories, func(c database.Category) bool { return c.ID == arg.CategoryID.UUID }) {
		return database.Tender{}, foreignKeyViolation(database.ForeignKeyTendersCategoryID)
	}
	status := arg.Status
	if status == "" {
		status = lifecycle.TenderDraft
	}
	tender := database.Tender{
		ID:             arg.ID,
		OrganizationID: arg.OrganizationID,
		Title:          arg.Title,
		ClientID:       arg.ClientID,
		ClientName:     arg.ClientName,
		CategoryID:     arg.CategoryID,
		Value:          arg.Value,
		Currency:       arg.Currency,
		Status:         status,
		CreatedBy:      arg.CreatedBy,
		CreatedAt:      arg.CreatedAt,
		UpdatedAt:      arg.UpdatedAt,
	}
	q.tenders = append(q.tenders, tender)
	return tender, nil
}

func (q *FakeQuerier) UpdateTenderStatus(_ context.Context, arg database.UpdateStatusParams) (database.Tender, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for i, t := range q.tenders {
		if t.ID == arg.ID {
			if arg.FromStatus != "" && t.Status != arg.FromStatus {
				return database.Tender{}, sql.ErrNoRows
			}
			t.Status = arg.Status
			t.UpdatedAt = arg.UpdatedAt
			q.tenders[i] = t
			return t, nil
		}
	}
	return database.Tender{}, sql.ErrNoRows
}

func (q *FakeQuerier) DeleteProject(_ context.Context, id uuid.UUID) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for i, p := range q.projects {
		if p.ID == id {
			q.projects = append(q.projects[:i], q.projects[i+1:]...)
			q.purchaseOrders = filter(q.purchaseOrders, func(po database.PurchaseOrder) bool { return po.ProjectID != id })
			return nil
		}
	}
	return sql.ErrNoRows
}

func (q *FakeQuerier) GetProjectByID(_ context.Context, id uuid.UUID) (database.Project, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, p := range q.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return database.Project{}, sql.ErrNoRows
}

func (q *FakeQuerier) GetProjectBySourceTenderID(_ context.Context, tenderID uuid.UUID) (database.Project, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, p := range q.projects {
		if p.SourceTenderID.Valid && p.SourceTenderID.UUID == tenderID {
			return p, nil
		}
	}
	return database.Project{}, sql.ErrNoRows
}

func (q *FakeQuerier) InsertProject(_ context.Context, arg database.InsertProjectParams) (database.Project, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if arg.SourceTenderID.Valid {
		for _, p := range q.projects {
			if p.SourceTenderID == arg.SourceTenderID {
				return database.Project{}, uniqueViolation(database.UniqueProjectsSourceTenderID)
			}
		}
	}
	project := database.Project(arg)
	q.projects = append(q.projects, project)
	return project, nil
}

func (q *FakeQuerier) UpdateProjectStatus(_ context.Context, arg database.UpdateStatusParams) (database.Project, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for i, p := range q.projects {
		if p.ID == arg.ID {
			if arg.FromStatus != "" && p.Status != arg.FromStatus {
				return database.Project{}, sql.ErrNoRows
			}
			p.Status = arg.Status
			p.UpdatedAt = arg.UpdatedAt
			q.projects[i] = p
			return p, nil
		}
	}
	return database.Project{}, sql.ErrNoRows
}

func (q *FakeQuerier) GetPurchaseOrderByID(_ context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, po := range q.purchaseOrders {
		if po.ID == id {
			return po, nil
		}
	}
	return database.PurchaseOrder{}, sql.ErrNoRows
}

func (q *FakeQuerier) InsertPurchaseOrder(_ context.Context, arg database.InsertPurchaseOrderParams) (database.PurchaseOrder, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if !exists(q.projects, func(p database.Project) bool { return p.ID == arg.ProjectID }) {
		return database.PurchaseOrder{}, foreignKeyViolation(database.ForeignKeyPurchaseOrdersProjectID)
	}
	for _, po := range q.purchaseOrders {
		if po.ProjectID == arg.ProjectID && po.Number == arg.Number {
			return database.PurchaseOrder{}, uniqueViolation(database.UniquePurchaseOrdersProjectNumber)
		}
	}
	po := database.PurchaseOrder(arg)
	q.purchaseOrders = append(q.purchaseOrders, po)
	return po, nil
}

func (q *FakeQuerier) UpdatePurchaseOrderStatus(_ context.Context, arg database.UpdateStatusParams) (database.PurchaseOrder, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for i, po := range q.purchaseOrders {
		if po.ID == arg.ID {
			if arg.FromStatus != "" && po.Status != arg.FromStatus {
				return database.PurchaseOrder{}, sql.ErrNoRows
			}
			po.Status = arg.Status
			po.UpdatedAt = arg.UpdatedAt
			q.purchaseOrders[i] = po
			return po, nil
		}
	}
	return database.PurchaseOrder{}, sql.ErrNoRows
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := items[:0:0]
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func exists[T any](items []T, match func(T) bool) bool {
	for _, item := range items {
		if match(item) {
			return true
		}
	}
	return false
}
