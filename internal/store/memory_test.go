package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrattend/internal/model"
)

func TestMemoryUpsertAccount(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	now := time.Now().UTC()
	a := model.Account{ID: "a1", Email: "a@example.com", Name: "A", Role: model.RoleStudent, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, m.UpsertAccount(ctx, a))

	t.Run("replaces by identifier", func(t *testing.T) {
		a.Name = "A renamed"
		require.NoError(t, m.UpsertAccount(ctx, a))

		got, err := m.GetAccountByID(ctx, "a1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "A renamed", got.Name)

		accounts, err := m.ListAccounts(ctx)
		require.NoError(t, err)
		assert.Len(t, accounts, 1)
	})

	t.Run("rejects a second account with the same email", func(t *testing.T) {
		other := model.Account{ID: "a2", Email: "a@example.com", Name: "B", Role: model.RoleStudent}
		assert.ErrorIs(t, m.UpsertAccount(ctx, other), ErrDuplicate)
	})

	t.Run("email lookup is case-sensitive", func(t *testing.T) {
		got, err := m.GetAccountByEmail(ctx, "A@EXAMPLE.COM")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestMemoryUpsertSession(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	now := time.Now().UTC()
	s := model.Session{ID: "s1", Name: "Math", Token: "tok-1", IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, m.UpsertSession(ctx, s))

	t.Run("token can never move to another session", func(t *testing.T) {
		other := model.Session{ID: "s2", Name: "Physics", Token: "tok-1", IsActive: true}
		assert.ErrorIs(t, m.UpsertSession(ctx, other), ErrDuplicate)
	})

	t.Run("replacing the same session keeps its token", func(t *testing.T) {
		s.IsActive = false
		require.NoError(t, m.UpsertSession(ctx, s))

		got, err := m.GetSessionByToken(ctx, "tok-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.False(t, got.IsActive)
	})

	t.Run("lists newest first", func(t *testing.T) {
		later := model.Session{ID: "s3", Name: "Chem", Token: "tok-3", CreatedAt: now.Add(time.Hour)}
		require.NoError(t, m.UpsertSession(ctx, later))

		sessions, err := m.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, "s3", sessions[0].ID)
	})
}

func TestMemoryAppendCheckIn(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	now := time.Now().UTC()
	first := model.CheckIn{ID: "c1", AccountID: "a1", SessionID: "s1", Timestamp: now, Status: model.StatusPresent}
	require.NoError(t, m.AppendCheckIn(ctx, first))

	t.Run("same pair conflicts", func(t *testing.T) {
		dup := model.CheckIn{ID: "c2", AccountID: "a1", SessionID: "s1", Timestamp: now.Add(time.Minute)}
		assert.ErrorIs(t, m.AppendCheckIn(ctx, dup), ErrDuplicate)

		all, err := m.ListCheckIns(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("other pairs insert", func(t *testing.T) {
		require.NoError(t, m.AppendCheckIn(ctx, model.CheckIn{ID: "c3", AccountID: "a1", SessionID: "s2", Timestamp: now.Add(time.Minute)}))
		require.NoError(t, m.AppendCheckIn(ctx, model.CheckIn{ID: "c4", AccountID: "a2", SessionID: "s1", Timestamp: now.Add(2 * time.Minute)}))

		mine, err := m.ListCheckInsByAccount(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, "c3", mine[0].ID, "newest first")
	})
}
