package redisstore_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tenderd/tenderd/tenderd/database"
	"github.com/tenderd/tenderd/tenderd/database/dbmem"
	"github.com/tenderd/tenderd/tenderd/database/dbtime"
	"github.com/tenderd/tenderd/tenderd/rbac"
	"github.com/tenderd/tenderd/tenderd/tenant"
	"github.com/tenderd/tenderd/tenderd/tenant/redisstore"
	"github.com/tenderd/tenderd/testutil"
)

func setup(t *testing.T) (*redisstore.Store, *miniredis.Miniredis, *quartz.Mock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	clock := quartz.NewMock(t)
	return redisstore.New(client, clock), mr, clock
}

func TestStore(t *testing.T) {
	t.Parallel()
	store, mr, clock := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)

	now := clock.Now()
	inserted, err := store.InsertSession(ctx, database.InsertSessionParams{
		ID:           "abcdefghij",
		HashedSecret: tenant.HashSecret("secret"),
		UserID:       uuid.New(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
	})
	require.NoError(t, err)
	require.True(t, mr.Exists("tenderd:session:abcdefghij"))
	require.Equal(t, time.Hour, mr.TTL("tenderd:session:abcdefghij"))

	got, err := store.GetSessionByID(ctx, inserted.ID)
	require.NoError(t, err)
	require.Equal(t, inserted.HashedSecret, got.HashedSecret)
	require.Equal(t, inserted.UserID, got.UserID)
	require.False(t, got.HasActiveOrganization())

	_, err = store.InsertSession(ctx, database.InsertSessionParams{ID: "abcdefghij", ExpiresAt: now.Add(time.Hour)})
	require.Error(t, err)

	orgID := uuid.New()
	updated, err := store.UpdateSessionActiveOrganization(ctx, database.UpdateSessionActiveOrganizationParams{
		ID:                   inserted.ID,
		ActiveOrganizationID: uuid.NullUUID{UUID: orgID, Valid: true},
	})
	require.NoError(t, err)
	require.Equal(t, orgID, updated.ActiveOrganizationID.UUID)
	require.Equal(t, time.Hour, mr.TTL("tenderd:session:abcdefghij"), "switching keeps the expiry")

	require.NoError(t, store.DeleteSession(ctx, inserted.ID))
	_, err = store.GetSessionByID(ctx, inserted.ID)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.ErrorIs(t, store.DeleteSession(ctx, inserted.ID), sql.ErrNoRows)
	_, err = store.UpdateSessionActiveOrganization(ctx, database.UpdateSessionActiveOrganizationParams{ID: inserted.ID})
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStoreExpiry(t *testing.T) {
	t.Parallel()
	store, mr, clock := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)

	_, err := store.InsertSession(ctx, database.InsertSessionParams{
		ID: "abcdefghij", CreatedAt: clock.Now(), ExpiresAt: clock.Now().Add(-time.Second),
	})
	require.Error(t, err)

	_, err = store.InsertSession(ctx, database.InsertSessionParams{
		ID: "abcdefghij", CreatedAt: clock.Now(), ExpiresAt: clock.Now().Add(time.Minute),
	})
	require.NoError(t, err)
	mr.FastForward(time.Minute)
	_, err = store.GetSessionByID(ctx, "abcdefghij")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestResolverWithRedis(t *testing.T) {
	t.Parallel()
	store, _, clock := setup(t)
	ctx := testutil.Context(t, testutil.WaitShort)

	db := dbmem.New()
	org, err := db.InsertOrganization(ctx, database.InsertOrganizationParams{
		ID: uuid.New(), Name: "acme", DisplayName: "Acme", CreatedAt: dbtime.Now(), UpdatedAt: dbtime.Now(),
	})
	require.NoError(t, err)
	userID := uuid.New()
	_, err = db.InsertOrganizationMember(ctx, database.InsertOrganizationMemberParams{
		UserID: userID, OrganizationID: org.ID, Role: rbac.RoleOwner, CreatedAt: dbtime.Now(), UpdatedAt: dbtime.Now(),
	})
	require.NoError(t, err)

	resolver := tenant.New(tenant.Options{
		Sessions: store,
		Members:  database.Memberships(db),
		Logger:   testutil.Logger(t),
		Clock:    clock,
	})
	token, _, err := resolver.Issue(ctx, userID, uuid.NullUUID{})
	require.NoError(t, err)
	_, err = resolver.ResolveContext(ctx, token, org.ID)
	require.ErrorIs(t, err, tenant.ErrNoActiveOrganization)

	_, err = resolver.SwitchOrganization(ctx, token, org.ID)
	require.NoError(t, err)
	subject, err := resolver.ResolveContext(ctx, token, org.ID)
	require.NoError(t, err)
	require.Equal(t, rbac.Subject{UserID: userID, OrganizationID: org.ID}, subject)

	require.NoError(t, resolver.Logout(ctx, token))
	_, err = resolver.Authenticate(ctx, token)
	require.ErrorIs(t, err, tenant.ErrUnauthenticated)
}
