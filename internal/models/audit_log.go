package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Actor types recorded in the audit trail
const (
	ActorTypeAdmin     = "admin"
	ActorTypeMember    = "member"
	ActorTypeSystem    = "system"
	ActorTypeAnonymous = "anonymous"
)

// AuditLog is one row of the append-only compliance trail. Rows are only
// ever inserted, never updated or deleted.
type AuditLog struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	ActorType  string          `db:"actor_type" json:"actor_type"`
	ActorID    NullString      `db:"actor_id" json:"actor_id"`
	Action     string          `db:"action" json:"action"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   NullString      `db:"entity_id" json:"entity_id"`
	Before     json.RawMessage `db:"before_state" json:"before_state,omitempty"`
	After      json.RawMessage `db:"after_state" json:"after_state,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address"`
	UserAgent  NullString      `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
