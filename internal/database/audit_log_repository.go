package database

import (
	"fmt"

	"github.com/bspcp/membership-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AuditLogRepository writes and reads the append-only audit trail.
// There are intentionally no update or delete methods.
type AuditLogRepository struct {
	db *sqlx.DB
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *sqlx.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Insert appends one audit row
func (r *AuditLogRepository) Insert(entry *models.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := r.db.Exec(`
		INSERT INTO audit_logs (id, actor_type, actor_id, action, entity_type, entity_id,
		                        before_state, after_state, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`, entry.ID, entry.ActorType, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID,
		entry.Before, entry.After, entry.IPAddress, entry.UserAgent)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// InsertTx appends one audit row inside an existing transaction so the
// trail entry commits atomically with the transition it records.
func (r *AuditLogRepository) InsertTx(tx *sqlx.Tx, entry *models.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := tx.Exec(`
		INSERT INTO audit_logs (id, actor_type, actor_id, action, entity_type, entity_id,
		                        before_state, after_state, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`, entry.ID, entry.ActorType, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID,
		entry.Before, entry.After, entry.IPAddress, entry.UserAgent)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// ListByEntity returns the trail for one entity, newest first
func (r *AuditLogRepository) ListByEntity(entityType, entityID string, limit int) ([]models.AuditLog, error) {
	logs := []models.AuditLog{}
	err := r.db.Select(&logs, `
		SELECT id, actor_type, actor_id, action, entity_type, entity_id,
		       before_state, after_state, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}

// ListRecent returns the most recent audit rows across all entities
func (r *AuditLogRepository) ListRecent(limit int) ([]models.AuditLog, error) {
	logs := []models.AuditLog{}
	err := r.db.Select(&logs, `
		SELECT id, actor_type, actor_id, action, entity_type, entity_id,
		       before_state, after_state, ip_address, user_agent, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}
