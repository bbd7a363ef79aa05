// package rbacmock contains a mocked implementation of the rbac store
// readers for use in tests.
package rbacmock

//go:generate mockgen -destination ./rbacmock.go -package rbacmock github.com/tenderd/tenderd/tenderd/rbac MembershipReader,SnapshotReader
