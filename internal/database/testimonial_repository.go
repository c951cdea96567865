package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bspcp/membership-backend/internal/models"
)

// TestimonialRepository handles testimonial operations
type TestimonialRepository struct {
	db DB
}

// NewTestimonialRepository creates a new testimonial repository
func NewTestimonialRepository(db DB) *TestimonialRepository {
	return &TestimonialRepository{db: db}
}

// Create inserts a testimonial, unapproved by default
func (r *TestimonialRepository) Create(t *models.Testimonial) error {
	t.Approved = false
	t.CreatedAt = time.Now()
	err := r.db.QueryRow(`
		INSERT INTO testimonials (author_name, author_role, body, approved, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, t.AuthorName, t.AuthorRole, t.Body, t.Approved, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to create testimonial: %w", err)
	}
	return nil
}

// GetByID retrieves a testimonial
func (r *TestimonialRepository) GetByID(id int64) (*models.Testimonial, error) {
	var t models.Testimonial
	err := r.db.Get(&t, `
		SELECT id, author_name, author_role, body, approved, created_at
		FROM testimonials
		WHERE id = $1
	`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get testimonial: %w", err)
	}
	return &t, nil
}

// List returns testimonials, optionally only approved ones
func (r *TestimonialRepository) List(approvedOnly bool) ([]models.Testimonial, error) {
	query := `
		SELECT id, author_name, author_role, body, approved, created_at
		FROM testimonials
	`
	if approvedOnly {
		query += ` WHERE approved = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	testimonials := []models.Testimonial{}
	if err := r.db.Select(&testimonials, query); err != nil {
		return nil, fmt.Errorf("failed to list testimonials: %w", err)
	}
	return testimonials, nil
}

// SetApproved flips the approval flag
func (r *TestimonialRepository) SetApproved(id int64, approved bool) error {
	result, err := r.db.Exec(`UPDATE testimonials SET approved = $1 WHERE id = $2`, approved, id)
	if err != nil {
		return fmt.Errorf("failed to update testimonial: %w", err)
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

// Delete removes a testimonial
func (r *TestimonialRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM testimonials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete testimonial: %w", err)
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
