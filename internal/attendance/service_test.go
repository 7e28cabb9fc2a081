package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrattend/internal/model"
	"qrattend/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	return NewService(st), st
}

func seedAccount(t *testing.T, st *store.Memory, id string, role model.Role) {
	t.Helper()
	now := time.Now().UTC()
	err := st.UpsertAccount(context.Background(), model.Account{
		ID:        id,
		Email:     id + "@example.com",
		Name:      id,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("starts active with a fresh token", func(t *testing.T) {
		svc, _ := newTestService(t)

		sess, err := svc.CreateSession(ctx, "Math - Morning", "admin-1")
		require.NoError(t, err)

		assert.True(t, sess.IsActive)
		assert.Equal(t, "Math - Morning", sess.Name)
		assert.Equal(t, "admin-1", sess.CreatedBy)
		assert.Len(t, sess.Token, 32)
		assert.NotEmpty(t, sess.ID)
	})

	t.Run("tokens never collide across sessions", func(t *testing.T) {
		svc, _ := newTestService(t)

		seen := make(map[string]bool)
		for i := 0; i < 50; i++ {
			sess, err := svc.CreateSession(ctx, "Session", "admin-1")
			require.NoError(t, err)
			assert.False(t, seen[sess.Token], "token %s reused", sess.Token)
			seen[sess.Token] = true
		}
	})

	t.Run("rejects blank names and persists nothing", func(t *testing.T) {
		svc, st := newTestService(t)

		for _, name := range []string{"", "   ", "\t\n"} {
			_, err := svc.CreateSession(ctx, name, "admin-1")
			require.ErrorIs(t, err, ErrValidation)
		}

		sessions, err := st.ListSessions(ctx)
		require.NoError(t, err)
		assert.Empty(t, sessions)
	})
}

func TestSetActive(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown session id", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.SetActive(ctx, "missing", true)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("activate then deactivate leaves it inactive with a later updated_at", func(t *testing.T) {
		svc, _ := newTestService(t)
		sess, err := svc.CreateSession(ctx, "Physics", "admin-1")
		require.NoError(t, err)
		before := sess.UpdatedAt

		clock := before
		svc.nowFunc = func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}

		_, err = svc.SetActive(ctx, sess.ID, true)
		require.NoError(t, err)
		after, err := svc.SetActive(ctx, sess.ID, false)
		require.NoError(t, err)

		assert.False(t, after.IsActive)
		assert.True(t, after.UpdatedAt.After(before))
	})

	t.Run("setting the same value twice still bumps the timestamp", func(t *testing.T) {
		svc, _ := newTestService(t)
		sess, err := svc.CreateSession(ctx, "Chemistry", "admin-1")
		require.NoError(t, err)

		clock := sess.UpdatedAt
		svc.nowFunc = func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}

		first, err := svc.SetActive(ctx, sess.ID, true)
		require.NoError(t, err)
		second, err := svc.SetActive(ctx, sess.ID, true)
		require.NoError(t, err)

		assert.True(t, second.IsActive)
		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	})
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.nowFunc = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	for _, name := range []string{"first", "second", "third"} {
		_, err := svc.CreateSession(ctx, name, "admin-1")
		require.NoError(t, err)
	}

	sessions, err := svc.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "third", sessions[0].Name)
	assert.Equal(t, "second", sessions[1].Name)
	assert.Equal(t, "first", sessions[2].Name)
}

func TestRedeem(t *testing.T) {
	ctx := context.Background()

	t.Run("records a present check-in", func(t *testing.T) {
		svc, st := newTestService(t)
		seedAccount(t, st, "student-1", model.RoleStudent)
		sess, err := svc.CreateSession(ctx, "Math - Morning", "admin-1")
		require.NoError(t, err)

		checkIn, err := svc.Redeem(ctx, sess.Token, "student-1")
		require.NoError(t, err)

		assert.Equal(t, model.StatusPresent, checkIn.Status)
		assert.Equal(t, "student-1", checkIn.AccountID)
		assert.Equal(t, sess.ID, checkIn.SessionID)
		assert.False(t, checkIn.Timestamp.IsZero())
	})

	t.Run("second redemption is a duplicate and leaves one record", func(t *testing.T) {
		svc, st := newTestService(t)
		seedAccount(t, st, "student-1", model.RoleStudent)
		sess, err := svc.CreateSession(ctx, "Math", "admin-1")
		require.NoError(t, err)

		_, err = svc.Redeem(ctx, sess.Token, "student-1")
		require.NoError(t, err)
		_, err = svc.Redeem(ctx, sess.Token, "student-1")
		require.ErrorIs(t, err, ErrDuplicateCheckIn)

		checkIns, err := st.ListCheckIns(ctx)
		require.NoError(t, err)
		assert.Len(t, checkIns, 1)
	})

	t.Run("unknown token creates nothing", func(t *testing.T) {
		svc, st := newTestService(t)
		seedAccount(t, st, "student-1", model.RoleStudent)

		_, err := svc.Redeem(ctx, "no-such-token", "student-1")
		require.ErrorIs(t, err, ErrInvalidToken)

		checkIns, err := st.ListCheckIns(ctx)
		require.NoError(t, err)
		assert.Empty(t, checkIns)
	})

	t.Run("token lookup is exact and case-sensitive", func(t *testing.T) {
		svc, st := newTestService(t)
		seedAccount(t, st, "student-1", model.RoleStudent)
		sess, err := svc.CreateSession(ctx, "Math", "admin-1")
		require.NoError(t, err)

		upper := []byte(sess.Token)
		for i, b := range upper {
			if b >= 'a' && b <= 'z' {
				upper[i] = b - 'a' + 'A'
			}
		}
		_, err = svc.Redeem(ctx, string(upper), "student-1")
		require.ErrorIs(t, err, ErrInvalidToken)
		_, err = svc.Redeem(ctx, sess.Token[:16], "student-1")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("inactive session rejects and creates nothing", func(t *testing.T) {
		svc, st := newTestService(t)
		seedAccount(t, st, "student-1", model.RoleStudent)
		sess, err := svc.CreateSession(ctx, "Math", "admin-1")
		require.NoError(t, err)
		_, err = svc.SetActive(ctx, sess.ID, false)
		require.NoError(t, err)

		_, err = svc.Redeem(ctx, sess.Token, "student-1")
		require.ErrorIs(t, err, ErrInactiveSession)

		checkIns, err := st.ListCheckIns(ctx)
		require.NoError(t, err)
		assert.Empty(t, checkIns)
	})

	t.Run("different accounts can redeem the same session", func(t *testing.T) {
		svc, st := newTestService(t)
		seedAccount(t, st, "student-1", model.RoleStudent)
		seedAccount(t, st, "student-2", model.RoleStudent)
		sess, err := svc.CreateSession(ctx, "Math", "admin-1")
		require.NoError(t, err)

		_, err = svc.Redeem(ctx, sess.Token, "student-1")
		require.NoError(t, err)
		_, err = svc.Redeem(ctx, sess.Token, "student-2")
		require.NoError(t, err)

		checkIns, err := st.ListCheckIns(ctx)
		require.NoError(t, err)
		assert.Len(t, checkIns, 2)
	})
}

func TestRedeemConcurrent(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedAccount(t, st, "student-1", model.RoleStudent)
	sess, err := svc.CreateSession(ctx, "Math", "admin-1")
	require.NoError(t, err)

	const n = 32
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Redeem(ctx, sess.Token, "student-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicateCheckIn):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, duplicates)

	checkIns, err := st.ListCheckIns(ctx)
	require.NoError(t, err)
	assert.Len(t, checkIns, 1)
}

func TestCheckInScenario(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	stats := NewStats(st)
	seedAccount(t, st, "student-1", model.RoleStudent)

	before, err := stats.Summary(ctx)
	require.NoError(t, err)

	sess, err := svc.CreateSession(ctx, "Math - Morning", "admin-1")
	require.NoError(t, err)

	checkIn, err := svc.Redeem(ctx, sess.Token, "student-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPresent, checkIn.Status)

	mine, err := stats.ForAccount(ctx, "student-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, mine.TotalAttended)

	after, err := stats.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.TodayCheckIns+1, after.TodayCheckIns)
}
