package patient

import (
	"errors"
	"testing"

	"github.com/SirMusk17/e-dental/internal/platform/rgpd"
)

// The repository's sealed column set must track the documented encrypted
// field contract exactly.
func TestIdentityFieldsMatchEncryptedContract(t *testing.T) {
	contract := rgpd.EncryptedPatientFields()
	fields := identityFields(&Patient{})
	if len(fields) != len(contract) {
		t.Fatalf("identityFields covers %d columns, contract lists %d", len(fields), len(contract))
	}
}

func TestSealAndOpenRoundTrip(t *testing.T) {
	key := make([]byte, rgpd.KeySize)
	codec, err := rgpd.NewCodec(key)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	repo := &repoPG{cipher: codec}

	p := &Patient{
		FirstName:            "Jean",
		LastName:             "Martin",
		SocialSecurityNumber: "180057510811142",
		Phone:                "+33102030405",
		City:                 "Lyon",
	}

	sealed, err := repo.seal(p)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if sealed.FirstName == "Jean" || sealed.Phone == "+33102030405" {
		t.Fatal("identity fields left in clear")
	}
	if p.FirstName != "Jean" {
		t.Fatal("seal mutated the caller's struct")
	}
	if sealed.City != "Lyon" {
		t.Fatal("non-identity field was encrypted")
	}

	if err := repo.open(sealed); err != nil {
		t.Fatalf("open: %v", err)
	}
	if sealed.FirstName != "Jean" || sealed.SocialSecurityNumber != "180057510811142" {
		t.Fatalf("round trip mismatch: %+v", sealed)
	}
}

func TestOpenFailsClosedOnTamperedField(t *testing.T) {
	key := make([]byte, rgpd.KeySize)
	codec, err := rgpd.NewCodec(key)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	repo := &repoPG{cipher: codec}

	sealed, err := repo.seal(&Patient{FirstName: "Jean", LastName: "Martin"})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	sealed.LastName = "tampered!" + sealed.LastName

	if err := repo.open(sealed); !errors.Is(err, rgpd.ErrCipherIntegrity) {
		t.Fatalf("got %v, want ErrCipherIntegrity", err)
	}
}

func TestNilCipherPassthrough(t *testing.T) {
	repo := &repoPG{}
	p := &Patient{FirstName: "Jean"}
	sealed, err := repo.seal(p)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if sealed.FirstName != "Jean" {
		t.Fatal("nil cipher altered the value")
	}
	if err := repo.open(sealed); err != nil {
		t.Fatalf("open: %v", err)
	}
}
