package attendance

import (
	"context"
	"time"

	"qrattend/internal/model"
)

// Summary holds the admin dashboard counters. TodayCheckIns uses the caller's
// local calendar day, computed at call time.
type Summary struct {
	TotalSessions  int `json:"total_sessions"`
	ActiveSessions int `json:"active_sessions"`
	TotalStudents  int `json:"total_students"`
	TodayCheckIns  int `json:"today_check_ins"`
}

// AccountStats holds one account's attendance counters. AttendanceRate is a
// percentage and is only present when the caller supplied a denominator; with
// no denominator the raw attended count stands on its own.
type AccountStats struct {
	TotalAttended  int      `json:"total_attended"`
	ThisMonth      int      `json:"this_month"`
	AttendanceRate *float64 `json:"attendance_rate,omitempty"`
}

// Record is a check-in enriched with its account and session, for listings
// and export. Either reference may be nil if the entity was never stored.
type Record struct {
	model.CheckIn
	Account *model.Account `json:"account,omitempty"`
	Session *model.Session `json:"session,omitempty"`
}

// Stats derives counters from the gateway's current contents on every call.
// It holds no cache and never writes.
type Stats struct {
	store   readStore
	nowFunc func() time.Time
}

// readStore is the read-only slice of the gateway the aggregator needs.
type readStore interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
	ListSessions(ctx context.Context) ([]model.Session, error)
	ListCheckIns(ctx context.Context) ([]model.CheckIn, error)
	ListCheckInsByAccount(ctx context.Context, accountID string) ([]model.CheckIn, error)
}

// NewStats creates an aggregator over the given gateway.
func NewStats(st readStore) *Stats {
	return &Stats{store: st, nowFunc: time.Now}
}

// Summary recomputes the dashboard counters from a fresh read.
func (s *Stats) Summary(ctx context.Context) (Summary, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return Summary{}, storageErr(err)
	}
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return Summary{}, storageErr(err)
	}
	checkIns, err := s.store.ListCheckIns(ctx)
	if err != nil {
		return Summary{}, storageErr(err)
	}

	var out Summary
	out.TotalSessions = len(sessions)
	for _, sess := range sessions {
		if sess.IsActive {
			out.ActiveSessions++
		}
	}
	for _, a := range accounts {
		if a.Role == model.RoleStudent {
			out.TotalStudents++
		}
	}
	now := s.nowFunc()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, c := range checkIns {
		local := c.Timestamp.In(now.Location())
		if !local.Before(dayStart) && local.Before(dayStart.AddDate(0, 0, 1)) {
			out.TodayCheckIns++
		}
	}
	return out, nil
}

// ForAccount recomputes one account's counters. denominator is the number of
// sessions offered to the account as known by the caller; pass 0 when it is
// unknown and no rate will be reported.
func (s *Stats) ForAccount(ctx context.Context, accountID string, denominator int) (AccountStats, error) {
	checkIns, err := s.store.ListCheckInsByAccount(ctx, accountID)
	if err != nil {
		return AccountStats{}, storageErr(err)
	}

	now := s.nowFunc()
	var out AccountStats
	out.TotalAttended = len(checkIns)
	for _, c := range checkIns {
		local := c.Timestamp.In(now.Location())
		if local.Year() == now.Year() && local.Month() == now.Month() {
			out.ThisMonth++
		}
	}
	if denominator > 0 {
		rate := float64(out.TotalAttended) / float64(denominator) * 100
		out.AttendanceRate = &rate
	}
	return out, nil
}

// Records returns all check-ins enriched with their account and session by
// identifier lookup, newest first.
func (s *Stats) Records(ctx context.Context) ([]Record, error) {
	checkIns, err := s.store.ListCheckIns(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, storageErr(err)
	}

	accountByID := make(map[string]model.Account, len(accounts))
	for _, a := range accounts {
		accountByID[a.ID] = a
	}
	sessionByID := make(map[string]model.Session, len(sessions))
	for _, sess := range sessions {
		sessionByID[sess.ID] = sess
	}

	out := make([]Record, 0, len(checkIns))
	for _, c := range checkIns {
		rec := Record{CheckIn: c}
		if a, ok := accountByID[c.AccountID]; ok {
			rec.Account = &a
		}
		if sess, ok := sessionByID[c.SessionID]; ok {
			rec.Session = &sess
		}
		out = append(out, rec)
	}
	return out, nil
}
