package user

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/SirMusk17/e-dental/internal/platform/auth"
)

var (
	// ErrInvalidCredentials is returned for unknown usernames and wrong
	// passwords alike, so login responses never reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while the lockout window is open.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrAccountDisabled is returned for deactivated staff accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrNotFound is returned when a user lookup matches nothing.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateUsername is returned when a username or email is taken.
	ErrDuplicateUsername = errors.New("username or email already in use")
)

// User is a staff account within one clinic schema. PasswordHash is bcrypt
// and never leaves the server; the json tag keeps it out of every response.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Role         auth.Role `db:"role" json:"role"`
	Phone        string    `db:"phone" json:"phone,omitempty"`

	// Practitioner fields, relevant for DENTIST accounts.
	LicenseNumber string `db:"license_number" json:"license_number,omitempty"`
	Speciality    string `db:"speciality" json:"speciality,omitempty"`

	PreferredLanguage string `db:"preferred_language" json:"preferred_language"`
	Active            bool   `db:"active" json:"active"`

	// Lockout state machine. FailedLoginAttempts counts consecutive
	// failures; LockedUntil is set when the threshold is crossed.
	FailedLoginAttempts int        `db:"failed_login_attempts" json:"-"`
	LockedUntil         *time.Time `db:"locked_until" json:"-"`

	LastLogin          *time.Time `db:"last_login" json:"last_login,omitempty"`
	LastPasswordChange *time.Time `db:"last_password_change" json:"last_password_change,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Locked reports whether the account is inside an open lockout window.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// Identity converts the account into the request identity embedded in tokens.
func (u *User) Identity() auth.Identity {
	return auth.Identity{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
