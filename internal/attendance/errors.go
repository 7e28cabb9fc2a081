package attendance

import "errors"

// Error taxonomy returned by the service. Callers branch on these with
// errors.Is; a duplicate check-in is an expected outcome, not a defect, and
// must stay distinguishable from an invalid or inactive token so the client
// can show the right message.
var (
	// ErrValidation means the caller supplied malformed data, such as an
	// empty session name.
	ErrValidation = errors.New("invalid input")
	// ErrNotFound means the referenced entity identifier does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidToken means the token matches no session.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInactiveSession means the token's session is currently deactivated.
	ErrInactiveSession = errors.New("session is inactive")
	// ErrDuplicateCheckIn means the account already redeemed this session.
	ErrDuplicateCheckIn = errors.New("attendance already marked")
	// ErrStorage means the persistence gateway could not complete the
	// operation. It is the only retry-eligible error in the taxonomy.
	ErrStorage = errors.New("storage failure")
)
