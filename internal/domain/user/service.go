package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SirMusk17/e-dental/internal/domain/auditlog"
	"github.com/SirMusk17/e-dental/internal/platform/auth"
)

// RequestMeta carries the client attribution attached to audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Service implements staff authentication and account management for one
// request's tenant.
type Service struct {
	repo        Repository
	issuer      *auth.TokenIssuer
	recorder    *auditlog.Recorder
	maxFailures int
	lockFor     time.Duration
	logger      zerolog.Logger
}

func NewService(repo Repository, issuer *auth.TokenIssuer, recorder *auditlog.Recorder, maxFailures int, lockFor time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		issuer:      issuer,
		recorder:    recorder,
		maxFailures: maxFailures,
		lockFor:     lockFor,
		logger:      logger,
	}
}

// Authenticate runs the login state machine. Wrong password and unknown
// username both come back as ErrInvalidCredentials. Each wrong password
// increments the failure counter; crossing the threshold opens the lockout
// window and further attempts are rejected without touching the counter.
// A success resets the counter and appends a LOGIN audit entry.
func (s *Service) Authenticate(ctx context.Context, username, password string, meta RequestMeta) (auth.TokenPair, *User, error) {
	u, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.TokenPair{}, nil, ErrInvalidCredentials
		}
		return auth.TokenPair{}, nil, err
	}

	now := time.Now().UTC()
	if u.Locked(now) {
		return auth.TokenPair{}, nil, ErrAccountLocked
	}
	if !u.Active {
		return auth.TokenPair{}, nil, ErrAccountDisabled
	}

	if !auth.CheckPassword(u.PasswordHash, password) {
		if err := s.repo.RecordFailure(ctx, u.ID, s.maxFailures, s.lockFor); err != nil {
			s.logger.Error().Err(err).Str("username", u.Username).Msg("record login failure")
		}
		return auth.TokenPair{}, nil, ErrInvalidCredentials
	}

	if err := s.repo.RecordSuccess(ctx, u.ID); err != nil {
		return auth.TokenPair{}, nil, fmt.Errorf("record login success: %w", err)
	}

	pair, err := s.issuer.IssuePair(u.Identity())
	if err != nil {
		return auth.TokenPair{}, nil, err
	}

	actorID := u.ID
	if err := s.recorder.Record(ctx, &auditlog.Entry{
		ActorID:    &actorID,
		ActorName:  u.Username,
		Action:     auditlog.ActionLogin,
		EntityType: "user",
		EntityID:   u.ID.String(),
		ObjectRepr: u.Username,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		return auth.TokenPair{}, nil, err
	}

	return pair, u, nil
}

// Refresh exchanges a valid refresh token for a fresh access token. The
// account is reloaded so a deactivation or lockout that happened after the
// refresh token was issued still blocks the exchange.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return "", err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", auth.ErrInvalidToken
	}

	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", auth.ErrInvalidToken
		}
		return "", err
	}
	if !u.Active {
		return "", ErrAccountDisabled
	}
	if u.Locked(time.Now().UTC()) {
		return "", ErrAccountLocked
	}

	return s.issuer.IssueAccess(u.Identity())
}

// CreateUserInput carries the fields an administrator sets on a new account.
type CreateUserInput struct {
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	Password          string    `json:"password"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	Role              auth.Role `json:"role"`
	Phone             string    `json:"phone"`
	LicenseNumber     string    `json:"license_number"`
	Speciality        string    `json:"speciality"`
	PreferredLanguage string    `json:"preferred_language"`
}

// Create registers a staff account. Admin-gated by the handler.
func (s *Service) Create(ctx context.Context, in CreateUserInput) (*User, error) {
	if strings.TrimSpace(in.Username) == "" {
		return nil, fmt.Errorf("username is required")
	}
	if _, err := auth.ParseRole(string(in.Role)); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	lang := in.PreferredLanguage
	if lang == "" {
		lang = "fr"
	}
	u := &User{
		Username:          strings.TrimSpace(in.Username),
		Email:             strings.TrimSpace(in.Email),
		PasswordHash:      hash,
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		Role:              in.Role,
		Phone:             in.Phone,
		LicenseNumber:     in.LicenseNumber,
		Speciality:        in.Speciality,
		PreferredLanguage: lang,
		Active:            true,
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		return nil, err
	}

	if err := s.recorder.Record(ctx, &auditlog.Entry{
		Action:     auditlog.ActionCreate,
		EntityType: "user",
		EntityID:   u.ID.String(),
		ObjectRepr: u.Username,
	}); err != nil {
		s.logger.Error().Err(err).Str("username", u.Username).Msg("audit user creation")
	}

	return u, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, false)
}

// ProfileUpdate is the allow-list for self-service profile updates. Role,
// username, and the lockout state are absent on purpose.
type ProfileUpdate struct {
	Email             *string `json:"email"`
	FirstName         *string `json:"first_name"`
	LastName          *string `json:"last_name"`
	Phone             *string `json:"phone"`
	Speciality        *string `json:"speciality"`
	PreferredLanguage *string `json:"preferred_language"`
}

func mergeProfile(u *User, in ProfileUpdate) {
	if in.Email != nil {
		u.Email = strings.TrimSpace(*in.Email)
	}
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	if in.Speciality != nil {
		u.Speciality = *in.Speciality
	}
	if in.PreferredLanguage != nil {
		u.PreferredLanguage = *in.PreferredLanguage
	}
}

// UpdateProfile merges the allow-listed fields into the caller's own account.
// Absent fields keep their stored values.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileUpdate) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	mergeProfile(u, in)

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// AdminUpdate extends the profile allow-list with the account fields only an
// administrator may change.
type AdminUpdate struct {
	ProfileUpdate
	Role          *string `json:"role"`
	LicenseNumber *string `json:"license_number"`
}

// UpdateAccount applies an administrator edit to any account, including role
// reassignment. The role is validated against the closed set before anything
// is written.
func (s *Service) UpdateAccount(ctx context.Context, userID uuid.UUID, in AdminUpdate) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Role != nil {
		role, err := auth.ParseRole(*in.Role)
		if err != nil {
			return nil, err
		}
		u.Role = role
	}
	if in.LicenseNumber != nil {
		u.LicenseNumber = *in.LicenseNumber
	}
	mergeProfile(u, in.ProfileUpdate)

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, oldPassword) {
		return ErrInvalidCredentials
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, userID, hash)
}
