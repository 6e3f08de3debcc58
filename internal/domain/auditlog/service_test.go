package auditlog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SirMusk17/e-dental/internal/platform/auth"
)

type fakeRepo struct {
	entries    []*Entry
	lastFilter Filter
	failInsert error
}

func (f *fakeRepo) Insert(ctx context.Context, e *Entry) error {
	if f.failInsert != nil {
		return f.failInsert
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeRepo) List(ctx context.Context, filter Filter, limit, offset int) ([]*Entry, int, error) {
	f.lastFilter = filter
	return f.entries, len(f.entries), nil
}

func TestRecordFillsActorFromContext(t *testing.T) {
	repo := &fakeRepo{}
	rec := NewRecorder(repo, zerolog.Nop())

	actor := auth.Identity{UserID: uuid.New(), Username: "dr.dupont", Role: auth.RoleDentist}
	ctx := auth.WithIdentity(context.Background(), actor)

	err := rec.Record(ctx, &Entry{
		Action:     ActionUpdate,
		EntityType: "patient",
		EntityID:   uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	e := repo.entries[0]
	if e.ActorID == nil || *e.ActorID != actor.UserID {
		t.Errorf("actor id not filled from context: %v", e.ActorID)
	}
	if e.ActorName != "dr.dupont" {
		t.Errorf("actor name = %q, want dr.dupont", e.ActorName)
	}
	if e.RecordedAt.IsZero() {
		t.Error("recorded_at not server-assigned")
	}
}

func TestRecordKeepsExplicitActor(t *testing.T) {
	repo := &fakeRepo{}
	rec := NewRecorder(repo, zerolog.Nop())

	explicit := uuid.New()
	err := rec.Record(context.Background(), &Entry{
		ActorID:    &explicit,
		ActorName:  "login-flow",
		Action:     ActionLogin,
		EntityType: "user",
		EntityID:   explicit.String(),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if *repo.entries[0].ActorID != explicit {
		t.Error("explicit actor id was overwritten")
	}
}

func TestRecordWrapsPersistenceFailure(t *testing.T) {
	repo := &fakeRepo{failInsert: errors.New("connection reset")}
	rec := NewRecorder(repo, zerolog.Nop())

	err := rec.Record(context.Background(), &Entry{
		Action:     ActionCreate,
		EntityType: "patient",
		EntityID:   uuid.NewString(),
	})
	if !errors.Is(err, ErrAuditPersistence) {
		t.Fatalf("got %v, want ErrAuditPersistence", err)
	}
}

func TestListScopesVisibilityByCapability(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)

	t.Run("assistant sees only own entries", func(t *testing.T) {
		assistant := auth.Identity{UserID: uuid.New(), Role: auth.RoleAssistant}
		if _, _, err := svc.List(context.Background(), assistant, Filter{}, 20, 0); err != nil {
			t.Fatalf("List: %v", err)
		}
		if repo.lastFilter.ActorID == nil || *repo.lastFilter.ActorID != assistant.UserID {
			t.Fatal("filter not scoped to the requesting actor")
		}
	})

	t.Run("dentist sees everything", func(t *testing.T) {
		dentist := auth.Identity{UserID: uuid.New(), Role: auth.RoleDentist}
		if _, _, err := svc.List(context.Background(), dentist, Filter{}, 20, 0); err != nil {
			t.Fatalf("List: %v", err)
		}
		if repo.lastFilter.ActorID != nil {
			t.Fatal("dentist query was scoped to self")
		}
	})

	t.Run("requested actor filter survives for privileged roles", func(t *testing.T) {
		dentist := auth.Identity{UserID: uuid.New(), Role: auth.RoleDentist}
		other := uuid.New()
		if _, _, err := svc.List(context.Background(), dentist, Filter{ActorID: &other}, 20, 0); err != nil {
			t.Fatalf("List: %v", err)
		}
		if repo.lastFilter.ActorID == nil || *repo.lastFilter.ActorID != other {
			t.Fatal("explicit actor filter was dropped")
		}
	})
}
