package store

import (
	"context"
	"errors"

	"qrattend/internal/model"
)

// Storage-level errors. ErrDuplicate signals a uniqueness-constraint conflict
// the backend could detect (the check-in pair constraint, a reused email or
// token); ErrUnavailable wraps every other backend failure, timeouts included.
var (
	ErrDuplicate   = errors.New("store: duplicate record")
	ErrUnavailable = errors.New("store: backend unavailable")
)

// Store is the persistence gateway for the three record kinds. Upserts replace
// by identifier when it already exists, otherwise insert. AppendCheckIn only
// inserts; the at-most-one-per-(account, session) rule is enforced by the
// check-in validator, with the backend's pair constraint as a backstop where
// one exists.
type Store interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
	ListSessions(ctx context.Context) ([]model.Session, error)
	ListCheckIns(ctx context.Context) ([]model.CheckIn, error)

	UpsertAccount(ctx context.Context, a model.Account) error
	UpsertSession(ctx context.Context, s model.Session) error
	AppendCheckIn(ctx context.Context, c model.CheckIn) error

	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetSessionByID(ctx context.Context, id string) (*model.Session, error)
	GetSessionByToken(ctx context.Context, token string) (*model.Session, error)
	ListCheckInsByAccount(ctx context.Context, accountID string) ([]model.CheckIn, error)
}
