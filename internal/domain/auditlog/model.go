package auditlog

import (
	"time"

	"github.com/google/uuid"
)

// Action is the audit action kind.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionRead   Action = "READ"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionLogin  Action = "LOGIN"
	ActionLogout Action = "LOGOUT"
	ActionExport Action = "EXPORT"
)

// FieldChange is one entry in the structured diff attached to UPDATE events.
type FieldChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// Entry is an immutable audit record. ActorID is a pointer so entries
// survive actor deletion (SET NULL); ActorName snapshots the username at
// record time. RecordedAt is always server-assigned.
type Entry struct {
	ID         uuid.UUID              `db:"id" json:"id"`
	ActorID    *uuid.UUID             `db:"actor_id" json:"actor_id"`
	ActorName  string                 `db:"actor_name" json:"actor_name"`
	Action     Action                 `db:"action" json:"action"`
	EntityType string                 `db:"entity_type" json:"entity_type"`
	EntityID   string                 `db:"entity_id" json:"entity_id"`
	ObjectRepr string                 `db:"object_repr" json:"object_repr,omitempty"`
	Changes    map[string]FieldChange `db:"changes" json:"changes,omitempty"`
	IPAddress  string                 `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string                 `db:"user_agent" json:"user_agent,omitempty"`
	RecordedAt time.Time              `db:"recorded_at" json:"recorded_at"`
}

// Filter narrows an audit trail query. Zero values mean "no constraint".
type Filter struct {
	EntityType string
	EntityID   string
	ActorID    *uuid.UUID
	Action     Action
	From       *time.Time
	To         *time.Time
}
