package tenant

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDomainInsertError(t *testing.T) {
	primary := &pgconn.PgError{Code: "23505", ConstraintName: "one_primary_per_clinic"}
	if err := mapDomainInsertError(primary); !errors.Is(err, ErrMultiplePrimaryDomains) {
		t.Fatalf("got %v, want ErrMultiplePrimaryDomains", err)
	}

	duplicate := &pgconn.PgError{Code: "23505", ConstraintName: "clinic_domain_domain_key"}
	if err := mapDomainInsertError(duplicate); !errors.Is(err, ErrDuplicateDomain) {
		t.Fatalf("got %v, want ErrDuplicateDomain", err)
	}

	other := errors.New("connection reset")
	if err := mapDomainInsertError(other); !errors.Is(err, other) {
		t.Fatalf("unrelated error rewritten: %v", err)
	}
}
