package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bspcp/membership-backend/internal/models"
)

// ContentRepository handles content page operations
type ContentRepository struct {
	db DB
}

// NewContentRepository creates a new content repository
func NewContentRepository(db DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Create inserts a content page
func (r *ContentRepository) Create(p *models.ContentPage) error {
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	err := r.db.QueryRow(`
		INSERT INTO content_pages (slug, title, body, published, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, p.Slug, p.Title, p.Body, p.Published, p.UpdatedBy, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create content page: %w", err)
	}
	return nil
}

// GetBySlug retrieves a page by slug. When publishedOnly is set, drafts
// resolve to not found.
func (r *ContentRepository) GetBySlug(slug string, publishedOnly bool) (*models.ContentPage, error) {
	query := `
		SELECT id, slug, title, body, published, updated_by, created_at, updated_at
		FROM content_pages
		WHERE slug = $1
	`
	if publishedOnly {
		query += ` AND published = TRUE`
	}

	var p models.ContentPage
	err := r.db.Get(&p, query, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get content page: %w", err)
	}
	return &p, nil
}

// List returns pages, optionally only published ones
func (r *ContentRepository) List(publishedOnly bool) ([]models.ContentPage, error) {
	query := `
		SELECT id, slug, title, body, published, updated_by, created_at, updated_at
		FROM content_pages
	`
	if publishedOnly {
		query += ` WHERE published = TRUE`
	}
	query += ` ORDER BY updated_at DESC`

	pages := []models.ContentPage{}
	if err := r.db.Select(&pages, query); err != nil {
		return nil, fmt.Errorf("failed to list content pages: %w", err)
	}
	return pages, nil
}

// Update replaces a page's editable fields
func (r *ContentRepository) Update(p *models.ContentPage) error {
	p.UpdatedAt = time.Now()
	result, err := r.db.Exec(`
		UPDATE content_pages
		SET title = $1, body = $2, published = $3, updated_by = $4, updated_at = $5
		WHERE slug = $6
	`, p.Title, p.Body, p.Published, p.UpdatedBy, p.UpdatedAt, p.Slug)
	if err != nil {
		return fmt.Errorf("failed to update content page: %w", err)
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

// Delete removes a page by slug
func (r *ContentRepository) Delete(slug string) error {
	result, err := r.db.Exec(`DELETE FROM content_pages WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("failed to delete content page: %w", err)
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
