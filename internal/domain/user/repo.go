package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists staff accounts in the tenant schema.
type Repository interface {
	Insert(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	// Lockout bookkeeping. RecordFailure increments the counter and sets the
	// lock when the threshold is crossed; RecordSuccess resets both and
	// stamps last_login.
	RecordFailure(ctx context.Context, id uuid.UUID, maxFailures int, lockFor time.Duration) error
	RecordSuccess(ctx context.Context, id uuid.UUID) error

	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
}
