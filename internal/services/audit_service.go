package services

import (
	"encoding/json"
	"fmt"

	"github.com/bspcp/membership-backend/internal/database"
	"github.com/bspcp/membership-backend/internal/models"
	"github.com/bspcp/membership-backend/internal/utils"
	"github.com/jmoiron/sqlx"
)

// Actor identifies who performed an audited action
type Actor struct {
	Type      string // admin, member, system, anonymous
	ID        string // admin uuid or member id as string; empty for system
	IPAddress string
	UserAgent string
}

// SystemActor is used for transitions driven by the application itself
var SystemActor = Actor{Type: models.ActorTypeSystem}

// AuditService appends compliance events to the audit trail. Every state
// transition in the membership and payment workflows goes through here.
type AuditService struct {
	repo *database.AuditLogRepository
}

// NewAuditService creates a new audit service
func NewAuditService(repo *database.AuditLogRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Append writes one audit row outside of any transaction
func (s *AuditService) Append(actor Actor, action, entityType, entityID string, before, after map[string]interface{}) error {
	entry, err := s.buildEntry(actor, action, entityType, entityID, before, after)
	if err != nil {
		return err
	}
	return s.repo.Insert(entry)
}

// AppendTx writes one audit row inside the transaction that applies the
// transition it records.
func (s *AuditService) AppendTx(tx *sqlx.Tx, actor Actor, action, entityType, entityID string, before, after map[string]interface{}) error {
	entry, err := s.buildEntry(actor, action, entityType, entityID, before, after)
	if err != nil {
		return err
	}
	return s.repo.InsertTx(tx, entry)
}

// RecentForEntity returns the trail for one entity
func (s *AuditService) RecentForEntity(entityType, entityID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByEntity(entityType, entityID, limit)
}

// Recent returns the most recent events across all entities
func (s *AuditService) Recent(limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListRecent(limit)
}

func (s *AuditService) buildEntry(actor Actor, action, entityType, entityID string, before, after map[string]interface{}) (*models.AuditLog, error) {
	entry := &models.AuditLog{
		ActorType:  actor.Type,
		ActorID:    models.NewNullString(actor.ID),
		Action:     action,
		EntityType: entityType,
		EntityID:   models.NewNullString(entityID),
		IPAddress:  actor.IPAddress,
		UserAgent:  models.NewNullString(summarizeUserAgent(actor.UserAgent)),
	}

	if before != nil {
		raw, err := json.Marshal(before)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal before state: %w", err)
		}
		entry.Before = raw
	}
	if after != nil {
		raw, err := json.Marshal(after)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal after state: %w", err)
		}
		entry.After = raw
	}

	return entry, nil
}

// summarizeUserAgent condenses a raw UA string into a readable summary
func summarizeUserAgent(userAgent string) string {
	if userAgent == "" {
		return ""
	}
	info := utils.ParseUserAgent(userAgent)
	if info.Browser == "" || info.Browser == "Unknown" {
		return userAgent
	}
	return fmt.Sprintf("%s %s on %s (%s)", info.Browser, info.BrowserVer, info.OS, info.DeviceType)
}
