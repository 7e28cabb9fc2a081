package model

import "time"

// Role distinguishes admin accounts from student accounts.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

// CheckInStatus is the recorded presence state. The redemption path only ever
// produces StatusPresent; StatusAbsent is reserved for manual marking.
type CheckInStatus string

const (
	StatusPresent CheckInStatus = "present"
	StatusAbsent  CheckInStatus = "absent"
)

// Account is a person who can sign in. Academic fields are populated only for
// students. PasswordHash is a bcrypt digest and is never serialized outward.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	EnrollmentNo string    `json:"enrollment_no,omitempty"`
	Semester     string    `json:"semester,omitempty"`
	Branch       string    `json:"branch,omitempty"`
	Course       string    `json:"course,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session is one attendance-taking window. Token is the QR payload and is
// unique across all sessions for the lifetime of the system.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	IsActive  bool      `json:"is_active"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckIn is one account's recorded presence at one session. At most one
// exists per (account, session) pair, and it is write-once.
type CheckIn struct {
	ID        string        `json:"id"`
	AccountID string        `json:"account_id"`
	SessionID string        `json:"session_id"`
	Timestamp time.Time     `json:"timestamp"`
	Status    CheckInStatus `json:"status"`
}
