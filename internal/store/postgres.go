package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"qrattend/internal/model"
)

// Postgres persists the three record kinds in Postgres over database/sql with
// the pgx driver. The check_ins table carries a UNIQUE(account_id, session_id)
// constraint, so a racing duplicate insert surfaces as ErrDuplicate no matter
// how many processes share the database.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open connection.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the schema when it does not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id            TEXT PRIMARY KEY,
		email         TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL DEFAULT '',
		name          TEXT NOT NULL,
		role          TEXT NOT NULL,
		enrollment_no TEXT NOT NULL DEFAULT '',
		semester      TEXT NOT NULL DEFAULT '',
		branch        TEXT NOT NULL DEFAULT '',
		course        TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		token      TEXT UNIQUE NOT NULL,
		is_active  BOOLEAN NOT NULL,
		created_by TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS check_ins (
		id         TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		session_id TEXT NOT NULL REFERENCES sessions(id),
		ts         TIMESTAMPTZ NOT NULL,
		status     TEXT NOT NULL,
		UNIQUE (account_id, session_id)
	);

	CREATE INDEX IF NOT EXISTS idx_check_ins_account ON check_ins(account_id);
	CREATE INDEX IF NOT EXISTS idx_check_ins_ts      ON check_ins(ts);
	`
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return wrapErr(err)
	}
	return nil
}

const accountCols = "id, email, password_hash, name, role, enrollment_no, semester, branch, course, created_at, updated_at"

func scanAccount(row interface{ Scan(...any) error }) (model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.Role,
		&a.EnrollmentNo, &a.Semester, &a.Branch, &a.Course, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// ListAccounts returns all accounts.
func (p *Postgres) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+accountCols+` FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()
	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, wrapErr(err)
		}
		out = append(out, a)
	}
	return out, wrapErr(rows.Err())
}

// ListSessions returns all sessions, newest first.
func (p *Postgres) ListSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, token, is_active, created_by, created_at, updated_at
		FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()
	var out []model.Session
	for rows.Next() {
		var s model.Session
		if err := rows.Scan(&s.ID, &s.Name, &s.Token, &s.IsActive, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, wrapErr(err)
		}
		out = append(out, s)
	}
	return out, wrapErr(rows.Err())
}

// ListCheckIns returns all check-ins, newest first.
func (p *Postgres) ListCheckIns(ctx context.Context) ([]model.CheckIn, error) {
	return p.queryCheckIns(ctx, `
		SELECT id, account_id, session_id, ts, status
		FROM check_ins ORDER BY ts DESC`)
}

// UpsertAccount inserts or replaces the account by identifier.
func (p *Postgres) UpsertAccount(ctx context.Context, a model.Account) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			enrollment_no = EXCLUDED.enrollment_no,
			semester = EXCLUDED.semester,
			branch = EXCLUDED.branch,
			course = EXCLUDED.course,
			updated_at = EXCLUDED.updated_at
	`, a.ID, a.Email, a.PasswordHash, a.Name, a.Role,
		a.EnrollmentNo, a.Semester, a.Branch, a.Course, a.CreatedAt, a.UpdatedAt)
	return wrapErr(err)
}

// UpsertSession inserts or replaces the session by identifier. The token
// column's uniqueness constraint guarantees a token is never reassigned.
func (p *Postgres) UpsertSession(ctx context.Context, s model.Session) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, token, is_active, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`, s.ID, s.Name, s.Token, s.IsActive, s.CreatedBy, s.CreatedAt, s.UpdatedAt)
	return wrapErr(err)
}

// AppendCheckIn inserts a new check-in. A conflict on the (account, session)
// pair constraint comes back as ErrDuplicate.
func (p *Postgres) AppendCheckIn(ctx context.Context, c model.CheckIn) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO check_ins (id, account_id, session_id, ts, status)
		VALUES ($1,$2,$3,$4,$5)
	`, c.ID, c.AccountID, c.SessionID, c.Timestamp, c.Status)
	return wrapErr(err)
}

// GetAccountByID returns the account for id, or nil if not found.
func (p *Postgres) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	return p.getAccount(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1`, id)
}

// GetAccountByEmail returns the account with the given email, or nil if not found.
func (p *Postgres) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return p.getAccount(ctx, `SELECT `+accountCols+` FROM accounts WHERE email = $1`, email)
}

func (p *Postgres) getAccount(ctx context.Context, query, arg string) (*model.Account, error) {
	a, err := scanAccount(p.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr(err)
	}
	return &a, nil
}

// GetSessionByID returns the session for id, or nil if not found.
func (p *Postgres) GetSessionByID(ctx context.Context, id string) (*model.Session, error) {
	return p.getSession(ctx, `
		SELECT id, name, token, is_active, created_by, created_at, updated_at
		FROM sessions WHERE id = $1`, id)
}

// GetSessionByToken returns the session whose token equals token, or nil if
// none matches.
func (p *Postgres) GetSessionByToken(ctx context.Context, token string) (*model.Session, error) {
	return p.getSession(ctx, `
		SELECT id, name, token, is_active, created_by, created_at, updated_at
		FROM sessions WHERE token = $1`, token)
}

func (p *Postgres) getSession(ctx context.Context, query, arg string) (*model.Session, error) {
	var s model.Session
	err := p.db.QueryRowContext(ctx, query, arg).
		Scan(&s.ID, &s.Name, &s.Token, &s.IsActive, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr(err)
	}
	return &s, nil
}

// ListCheckInsByAccount returns the account's check-ins, newest first.
func (p *Postgres) ListCheckInsByAccount(ctx context.Context, accountID string) ([]model.CheckIn, error) {
	return p.queryCheckIns(ctx, `
		SELECT id, account_id, session_id, ts, status
		FROM check_ins WHERE account_id = $1 ORDER BY ts DESC`, accountID)
}

func (p *Postgres) queryCheckIns(ctx context.Context, query string, args ...any) ([]model.CheckIn, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()
	var out []model.CheckIn
	for rows.Next() {
		var c model.CheckIn
		if err := rows.Scan(&c.ID, &c.AccountID, &c.SessionID, &c.Timestamp, &c.Status); err != nil {
			return nil, wrapErr(err)
		}
		out = append(out, c)
	}
	return out, wrapErr(rows.Err())
}

// wrapErr maps Postgres unique-constraint violations to ErrDuplicate and
// everything else to ErrUnavailable so callers see only the gateway taxonomy.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
