package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SearchFilter carries the SQL-filterable search constraints. Free-text
// matching over encrypted columns happens in the service after decryption.
type SearchFilter struct {
	Gender          Gender
	AgeMin          *int
	AgeMax          *int
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
	IncludeInactive bool
}

// Repository persists patient records in the tenant schema. Implementations
// apply the field codec on the way in and out; callers only see plaintext.
type Repository interface {
	Insert(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	SetActive(ctx context.Context, id uuid.UUID, active bool, updatedBy *uuid.UUID) error
	List(ctx context.Context, includeInactive bool, limit, offset int) ([]*Patient, int, error)

	// Search returns every record matching the structural constraints.
	// Pagination is applied by the caller after free-text filtering.
	Search(ctx context.Context, f SearchFilter) ([]*Patient, error)

	// NextNumber issues the next patient number from the per-tenant
	// sequence row. The row lock serializes concurrent creates, so numbers
	// are unique and monotonic within the schema.
	NextNumber(ctx context.Context) (string, error)

	Statistics(ctx context.Context) (*Statistics, error)
}
