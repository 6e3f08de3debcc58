package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SirMusk17/e-dental/internal/domain/auditlog"
	"github.com/SirMusk17/e-dental/internal/platform/auth"
)

type fakeUserRepo struct {
	users map[uuid.UUID]*User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]*User{}}
}

func (f *fakeUserRepo) Insert(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	for _, existing := range f.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrDuplicateUsername
		}
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	for _, u := range f.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeUserRepo) Update(ctx context.Context, u *User) error {
	stored, ok := f.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	*stored = *u
	return nil
}

func (f *fakeUserRepo) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var out []*User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

func (f *fakeUserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Active = active
	return nil
}

func (f *fakeUserRepo) RecordFailure(ctx context.Context, id uuid.UUID, maxFailures int, lockFor time.Duration) error {
	u := f.users[id]
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxFailures {
		until := time.Now().UTC().Add(lockFor)
		u.LockedUntil = &until
	}
	return nil
}

func (f *fakeUserRepo) RecordSuccess(ctx context.Context, id uuid.UUID) error {
	u := f.users[id]
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	now := time.Now().UTC()
	u.LastLogin = &now
	return nil
}

func (f *fakeUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	now := time.Now().UTC()
	u.LastPasswordChange = &now
	return nil
}

type fakeAuditRepo struct {
	entries []*auditlog.Entry
}

func (f *fakeAuditRepo) Insert(ctx context.Context, e *auditlog.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeAuditRepo) List(ctx context.Context, filter auditlog.Filter, limit, offset int) ([]*auditlog.Entry, int, error) {
	return f.entries, len(f.entries), nil
}

func newTestService(t *testing.T) (*Service, *fakeUserRepo, *fakeAuditRepo, *User) {
	t.Helper()

	repo := newFakeUserRepo()
	audits := &fakeAuditRepo{}
	issuer := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", 30*time.Minute, 168*time.Hour)
	svc := NewService(repo, issuer, auditlog.NewRecorder(audits, zerolog.Nop()), 5, 15*time.Minute, zerolog.Nop())

	hash, err := auth.HashPassword("v4lid-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &User{
		ID:           uuid.New(),
		Username:     "dr.dupont",
		Email:        "dupont@clinic.fr",
		PasswordHash: hash,
		Role:         auth.RoleDentist,
		Active:       true,
	}
	repo.users[u.ID] = u

	return svc, repo, audits, u
}

func TestAuthenticateSuccess(t *testing.T) {
	svc, repo, audits, u := newTestService(t)

	pair, got, err := svc.Authenticate(context.Background(), "dr.dupont", "v4lid-password", RequestMeta{IPAddress: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if pair.Access == "" || pair.Refresh == "" {
		t.Fatal("token pair not issued")
	}
	if got.ID != u.ID {
		t.Fatal("wrong user returned")
	}
	if repo.users[u.ID].LastLogin == nil {
		t.Error("last_login not stamped")
	}

	if len(audits.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(audits.entries))
	}
	e := audits.entries[0]
	if e.Action != auditlog.ActionLogin || e.EntityType != "user" || e.IPAddress != "10.0.0.1" {
		t.Errorf("unexpected login audit entry: %+v", e)
	}
}

func TestAuthenticateLockout(t *testing.T) {
	svc, repo, _, u := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := svc.Authenticate(ctx, "dr.dupont", "wrong", RequestMeta{})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: got %v, want ErrInvalidCredentials", i+1, err)
		}
	}
	if repo.users[u.ID].LockedUntil == nil {
		t.Fatal("account not locked after threshold")
	}

	// Even the correct password is rejected while the window is open, and
	// the counter is not advanced further.
	attempts := repo.users[u.ID].FailedLoginAttempts
	_, _, err := svc.Authenticate(ctx, "dr.dupont", "v4lid-password", RequestMeta{})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("got %v, want ErrAccountLocked", err)
	}
	if repo.users[u.ID].FailedLoginAttempts != attempts {
		t.Error("failure counter advanced during lockout")
	}

	// An expired window lets a correct password through and resets state.
	past := time.Now().UTC().Add(-time.Minute)
	repo.users[u.ID].LockedUntil = &past
	if _, _, err := svc.Authenticate(ctx, "dr.dupont", "v4lid-password", RequestMeta{}); err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
	if repo.users[u.ID].FailedLoginAttempts != 0 || repo.users[u.ID].LockedUntil != nil {
		t.Error("lockout state not reset after successful login")
	}
}

func TestAuthenticateUnknownUserAndDisabled(t *testing.T) {
	svc, repo, _, u := newTestService(t)

	_, _, err := svc.Authenticate(context.Background(), "nobody", "whatever", RequestMeta{})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: got %v, want ErrInvalidCredentials", err)
	}

	repo.users[u.ID].Active = false
	_, _, err = svc.Authenticate(context.Background(), "dr.dupont", "v4lid-password", RequestMeta{})
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("disabled account: got %v, want ErrAccountDisabled", err)
	}
}

func TestRefreshChecksCurrentAccountState(t *testing.T) {
	svc, repo, _, u := newTestService(t)
	ctx := context.Background()

	pair, _, err := svc.Authenticate(ctx, "dr.dupont", "v4lid-password", RequestMeta{})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if _, err := svc.Refresh(ctx, pair.Refresh); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	repo.users[u.ID].Active = false
	if _, err := svc.Refresh(ctx, pair.Refresh); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("refresh for disabled account: got %v, want ErrAccountDisabled", err)
	}

	if _, err := svc.Refresh(ctx, pair.Access); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("access token accepted for refresh: %v", err)
	}
}

func TestUpdateProfileAllowList(t *testing.T) {
	svc, repo, _, u := newTestService(t)

	newFirst := "Marie"
	newPhone := "+33600000000"
	got, err := svc.UpdateProfile(context.Background(), u.ID, ProfileUpdate{
		FirstName: &newFirst,
		Phone:     &newPhone,
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if got.FirstName != "Marie" || got.Phone != "+33600000000" {
		t.Errorf("fields not merged: %+v", got)
	}
	if got.Username != "dr.dupont" || got.Role != auth.RoleDentist {
		t.Error("allow-list leak: username or role changed")
	}
	if repo.users[u.ID].Email != u.Email {
		t.Error("absent field was overwritten")
	}
}

func TestUpdateAccountCanReassignRole(t *testing.T) {
	svc, repo, _, u := newTestService(t)
	ctx := context.Background()

	role := string(auth.RoleSecretary)
	newLast := "Moreau"
	got, err := svc.UpdateAccount(ctx, u.ID, AdminUpdate{
		ProfileUpdate: ProfileUpdate{LastName: &newLast},
		Role:          &role,
	})
	if err != nil {
		t.Fatalf("UpdateAccount: %v", err)
	}
	if got.Role != auth.RoleSecretary || got.LastName != "Moreau" {
		t.Errorf("account edit not applied: %+v", got)
	}
	if repo.users[u.ID].Role != auth.RoleSecretary {
		t.Error("role change not persisted")
	}

	bad := "SUPERHERO"
	_, err = svc.UpdateAccount(ctx, u.ID, AdminUpdate{Role: &bad})
	if !errors.Is(err, auth.ErrUnknownRole) {
		t.Fatalf("got %v, want ErrUnknownRole", err)
	}
	if repo.users[u.ID].Role != auth.RoleSecretary {
		t.Error("invalid role edit touched the stored account")
	}
}

func TestChangePassword(t *testing.T) {
	svc, repo, _, u := newTestService(t)
	ctx := context.Background()

	if err := svc.ChangePassword(ctx, u.ID, "wrong", "new-password-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong old password: got %v, want ErrInvalidCredentials", err)
	}
	if err := svc.ChangePassword(ctx, u.ID, "v4lid-password", "short"); err == nil {
		t.Fatal("short new password accepted")
	}
	if err := svc.ChangePassword(ctx, u.ID, "v4lid-password", "new-password-1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if !auth.CheckPassword(repo.users[u.ID].PasswordHash, "new-password-1") {
		t.Fatal("new password not stored")
	}
	if repo.users[u.ID].LastPasswordChange == nil {
		t.Error("last_password_change not stamped")
	}
}
