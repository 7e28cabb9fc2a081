package attendance

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"qrattend/internal/model"
	"qrattend/internal/store"
)

// tokenBytes is the entropy of a session token; 16 random bytes render as 32
// hex characters, a space large enough that collision is negligible.
const tokenBytes = 16

// Service owns the session lifecycle and check-in validation rules on top of
// the persistence gateway. It is safe for concurrent use.
type Service struct {
	store store.Store

	// pairMu serializes redeem steps for each (account, session) pair so two
	// racing calls cannot both pass the duplicate check. The backend's pair
	// constraint, where one exists, is the cross-process backstop.
	mu      sync.Mutex
	pairMu  map[string]*sync.Mutex
	nowFunc func() time.Time
}

// NewService creates a service backed by the given gateway.
func NewService(st store.Store) *Service {
	return &Service{
		store:   st,
		pairMu:  make(map[string]*sync.Mutex),
		nowFunc: time.Now,
	}
}

// CreateSession mints a new active session with a fresh token. The name must
// be non-blank; the creator is recorded as-is.
func (s *Service) CreateSession(ctx context.Context, name, creatorID string) (model.Session, error) {
	if strings.TrimSpace(name) == "" {
		return model.Session{}, fmt.Errorf("%w: session name required", ErrValidation)
	}
	token, err := newToken()
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	now := s.nowFunc().UTC()
	sess := model.Session{
		ID:        uuid.NewString(),
		Name:      name,
		Token:     token,
		IsActive:  true,
		CreatedBy: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.UpsertSession(ctx, sess); err != nil {
		// A token collision trips the uniqueness constraint; it is never
		// resolved by overwriting the holder.
		return model.Session{}, storageErr(err)
	}
	return sess, nil
}

// SetActive flips the session's active flag. Both transitions are always
// legal, including a no-op one, and every call bumps UpdatedAt.
func (s *Service) SetActive(ctx context.Context, sessionID string, active bool) (model.Session, error) {
	sess, err := s.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		return model.Session{}, storageErr(err)
	}
	if sess == nil {
		return model.Session{}, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	sess.IsActive = active
	sess.UpdatedAt = s.nowFunc().UTC()
	if err := s.store.UpsertSession(ctx, *sess); err != nil {
		return model.Session{}, storageErr(err)
	}
	return *sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *Service) ListSessions(ctx context.Context) ([]model.Session, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	return sessions, nil
}

// GetSession returns the session for id.
func (s *Service) GetSession(ctx context.Context, sessionID string) (model.Session, error) {
	sess, err := s.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		return model.Session{}, storageErr(err)
	}
	if sess == nil {
		return model.Session{}, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	return *sess, nil
}

// Redeem validates a decoded QR token for the given account and, on success,
// durably records a present check-in. Exactly one check-in can ever exist per
// (account, session) pair; the second and later attempts get
// ErrDuplicateCheckIn.
func (s *Service) Redeem(ctx context.Context, token, accountID string) (model.CheckIn, error) {
	if accountID == "" {
		return model.CheckIn{}, fmt.Errorf("%w: account required", ErrValidation)
	}
	sess, err := s.store.GetSessionByToken(ctx, token)
	if err != nil {
		return model.CheckIn{}, storageErr(err)
	}
	if sess == nil {
		return model.CheckIn{}, ErrInvalidToken
	}
	if !sess.IsActive {
		return model.CheckIn{}, ErrInactiveSession
	}

	unlock := s.lockPair(accountID, sess.ID)
	defer unlock()

	existing, err := s.store.ListCheckInsByAccount(ctx, accountID)
	if err != nil {
		return model.CheckIn{}, storageErr(err)
	}
	for _, c := range existing {
		if c.SessionID == sess.ID {
			return model.CheckIn{}, ErrDuplicateCheckIn
		}
	}

	checkIn := model.CheckIn{
		ID:        uuid.NewString(),
		AccountID: accountID,
		SessionID: sess.ID,
		Timestamp: s.nowFunc().UTC(),
		Status:    model.StatusPresent,
	}
	if err := s.store.AppendCheckIn(ctx, checkIn); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return model.CheckIn{}, ErrDuplicateCheckIn
		}
		return model.CheckIn{}, storageErr(err)
	}
	return checkIn, nil
}

// lockPair acquires the mutex for one (account, session) pair, lazily
// creating it, and returns the matching unlock.
func (s *Service) lockPair(accountID, sessionID string) func() {
	key := accountID + "|" + sessionID
	s.mu.Lock()
	pm, ok := s.pairMu[key]
	if !ok {
		pm = &sync.Mutex{}
		s.pairMu[key] = pm
	}
	s.mu.Unlock()
	pm.Lock()
	return pm.Unlock
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// storageErr folds a gateway failure into ErrStorage without losing the cause.
func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
