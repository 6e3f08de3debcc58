package auditlog

import (
	"context"
)

// Repository persists audit entries. It is insert-only: the interface has no
// update or delete on purpose, and the table revokes both.
type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error)
}
