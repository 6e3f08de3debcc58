package auditlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/SirMusk17/e-dental/internal/platform/auth"
)

// ErrAuditPersistence marks an audit insert failure. The business mutation
// that triggered the entry must roll back: a compliance-relevant operation is
// not allowed to be observable as successful without its trail.
var ErrAuditPersistence = errors.New("audit entry could not be persisted")

// Recorder appends audit entries. Services call it inside the same
// transaction as the mutation they are auditing (via db.InTx), so either both
// persist or neither does.
type Recorder struct {
	repo   Repository
	logger zerolog.Logger
}

func NewRecorder(repo Repository, logger zerolog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Record persists the entry. The actor fields are filled from the
// authenticated identity when present.
func (r *Recorder) Record(ctx context.Context, e *Entry) error {
	if id, ok := auth.IdentityFromContext(ctx); ok && e.ActorID == nil {
		actorID := id.UserID
		e.ActorID = &actorID
		e.ActorName = id.Username
	}
	e.RecordedAt = time.Now().UTC()

	if err := r.repo.Insert(ctx, e); err != nil {
		r.logger.Error().Err(err).
			Str("action", string(e.Action)).
			Str("entity_type", e.EntityType).
			Str("entity_id", e.EntityID).
			Msg("audit insert failed")
		return fmt.Errorf("%w: %v", ErrAuditPersistence, err)
	}
	return nil
}

// Service answers audit trail queries with role-based visibility: roles
// without the audit:read_all capability only see entries they produced.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, actor auth.Identity, f Filter, limit, offset int) ([]*Entry, int, error) {
	if !actor.Role.Can(auth.CapAuditReadAll) {
		actorID := actor.UserID
		f.ActorID = &actorID
	}
	return s.repo.List(ctx, f, limit, offset)
}

// ListForEntity returns the trail of one entity, newest first. Callers gate
// access (patient audit trail requires patient:audit_read).
func (s *Service) ListForEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]*Entry, int, error) {
	return s.repo.List(ctx, Filter{EntityType: entityType, EntityID: entityID}, limit, offset)
}
