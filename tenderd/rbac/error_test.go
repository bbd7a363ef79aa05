package rbac

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/tenderd/tenderd/tenderd/rbac/policy"
)

func TestIsUnauthorizedError(t *testing.T) {
	t.Parallel()
	t.Run("NotWrapped", func(t *testing.T) {
		t.Parallel()
		err := error(ForbiddenWithInternal(ReasonActionNotGranted, nil, Subject{}, policy.ActionRead, ResourceTender))
		require.True(t, IsUnauthorizedError(err))
	})

	t.Run("Wrapped", func(t *testing.T) {
		t.Parallel()
		err := xerrors.Errorf("test error: %w",
			ForbiddenWithInternal(ReasonConditionFailed, nil, Subject{}, policy.ActionDelete, ResourceTender))
		require.True(t, IsUnauthorizedError(err))
		reason, ok := ReasonOf(err)
		require.True(t, ok)
		require.Equal(t, ReasonConditionFailed, reason)
	})

	t.Run("Other", func(t *testing.T) {
		t.Parallel()
		require.False(t, IsUnauthorizedError(xerrors.New("boom")))
		_, ok := ReasonOf(xerrors.New("boom"))
		require.False(t, ok)
	})
}

func TestUnavailable(t *testing.T) {
	t.Parallel()

	err := xerrors.Errorf("authorize: %w", Unavailable(sql.ErrConnDone))
	require.ErrorIs(t, err, ErrTemporarilyUnavailable)
	require.ErrorIs(t, err, sql.ErrConnDone)
	require.False(t, IsUnauthorizedError(err))
}
