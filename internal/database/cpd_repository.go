package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bspcp/membership-backend/internal/models"
)

// CPDRepository handles continuing-professional-development records
type CPDRepository struct {
	db DB
}

// NewCPDRepository creates a new CPD repository
func NewCPDRepository(db DB) *CPDRepository {
	return &CPDRepository{db: db}
}

// Create inserts a CPD activity for a member
func (r *CPDRepository) Create(a *models.CPDActivity) error {
	a.CreatedAt = time.Now()
	err := r.db.QueryRow(`
		INSERT INTO cpd_activities (member_id, title, category, hours, activity_date, evidence_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, a.MemberID, a.Title, a.Category, a.Hours, a.ActivityDate, a.EvidencePath, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create cpd activity: %w", err)
	}
	return nil
}

// GetByID retrieves a CPD activity
func (r *CPDRepository) GetByID(id int64) (*models.CPDActivity, error) {
	var a models.CPDActivity
	err := r.db.Get(&a, `
		SELECT id, member_id, title, category, hours, activity_date, evidence_path, created_at
		FROM cpd_activities
		WHERE id = $1
	`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cpd activity: %w", err)
	}
	return &a, nil
}

// ListByMember returns a member's CPD activities, newest first
func (r *CPDRepository) ListByMember(memberID int64) ([]models.CPDActivity, error) {
	activities := []models.CPDActivity{}
	err := r.db.Select(&activities, `
		SELECT id, member_id, title, category, hours, activity_date, evidence_path, created_at
		FROM cpd_activities
		WHERE member_id = $1
		ORDER BY activity_date DESC
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cpd activities: %w", err)
	}
	return activities, nil
}

// YearlySummaries returns per-year hour totals for a member
func (r *CPDRepository) YearlySummaries(memberID int64) ([]models.CPDSummary, error) {
	summaries := []models.CPDSummary{}
	err := r.db.Select(&summaries, `
		SELECT EXTRACT(YEAR FROM activity_date)::int AS year,
		       COALESCE(SUM(hours), 0) AS total_hours,
		       COUNT(*) AS activities
		FROM cpd_activities
		WHERE member_id = $1
		GROUP BY year
		ORDER BY year DESC
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize cpd activities: %w", err)
	}
	return summaries, nil
}

// Delete removes a member's own CPD activity
func (r *CPDRepository) Delete(id, memberID int64) error {
	result, err := r.db.Exec(`DELETE FROM cpd_activities WHERE id = $1 AND member_id = $2`, id, memberID)
	if err != nil {
		return fmt.Errorf("failed to delete cpd activity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
