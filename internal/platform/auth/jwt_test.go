package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testIdentity() Identity {
	return Identity{
		UserID:    uuid.New(),
		Username:  "dr.dupont",
		Email:     "dupont@clinic.fr",
		Role:      RoleDentist,
		FirstName: "Jean",
		LastName:  "Dupont",
	}
}

func TestIssueAndVerifyPair(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, 30*time.Minute, 168*time.Hour)
	id := testIdentity()

	pair, err := issuer.IssuePair(id)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	claims, err := issuer.VerifyAccess(pair.Access)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	got, err := IdentityFromClaims(claims)
	if err != nil {
		t.Fatalf("IdentityFromClaims: %v", err)
	}
	if got != id {
		t.Fatalf("identity round trip: got %+v, want %+v", got, id)
	}

	if _, err := issuer.VerifyRefresh(pair.Refresh); err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
}

func TestTokenTypeMismatchRejected(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, 30*time.Minute, 168*time.Hour)
	pair, err := issuer.IssuePair(testIdentity())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := issuer.VerifyAccess(pair.Refresh); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh token accepted as access token: %v", err)
	}
	if _, err := issuer.VerifyRefresh(pair.Access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("access token accepted as refresh token: %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, -time.Minute, 168*time.Hour)
	token, err := issuer.IssueAccess(testIdentity())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := issuer.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, 30*time.Minute, 168*time.Hour)
	other := NewTokenIssuer("another-secret-another-secret-32", 30*time.Minute, 168*time.Hour)

	token, err := issuer.IssueAccess(testIdentity())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := other.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token verified with wrong secret: %v", err)
	}
}

func TestClaimsCarryIdentityFields(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, 30*time.Minute, 168*time.Hour)
	token, err := issuer.IssueAccess(testIdentity())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := issuer.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Role != string(RoleDentist) || claims.Username == "" {
		t.Fatalf("claims missing expected identity fields: %+v", claims)
	}
}
