package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bspcp/membership-backend/internal/models"
	"github.com/google/uuid"
)

// AdminUserRepository handles admin user database operations
type AdminUserRepository struct {
	db DB
}

// NewAdminUserRepository creates a new admin user repository
func NewAdminUserRepository(db DB) *AdminUserRepository {
	return &AdminUserRepository{db: db}
}

// Create inserts an admin user
func (r *AdminUserRepository) Create(admin *models.AdminUser) error {
	if admin.ID == uuid.Nil {
		admin.ID = uuid.New()
	}
	admin.CreatedAt = time.Now()
	admin.UpdatedAt = admin.CreatedAt

	_, err := r.db.Exec(`
		INSERT INTO admin_users (id, email, password_hash, full_name, is_active, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, admin.ID, admin.Email, admin.PasswordHash, admin.FullName, admin.IsActive,
		admin.CreatedAt, admin.UpdatedAt, admin.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	return nil
}

// GetByEmail retrieves an admin user by email
func (r *AdminUserRepository) GetByEmail(email string) (*models.AdminUser, error) {
	query := `
		SELECT id, email, password_hash, full_name, is_active, last_login_at,
		       created_at, updated_at, created_by
		FROM admin_users
		WHERE LOWER(email) = LOWER($1)
	`

	var admin models.AdminUser
	err := r.db.QueryRow(query, email).Scan(
		&admin.ID, &admin.Email, &admin.PasswordHash, &admin.FullName, &admin.IsActive,
		&admin.LastLoginAt, &admin.CreatedAt, &admin.UpdatedAt, &admin.CreatedBy,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}

	return &admin, nil
}

// GetByID retrieves an admin user by ID
func (r *AdminUserRepository) GetByID(id uuid.UUID) (*models.AdminUser, error) {
	query := `
		SELECT id, email, password_hash, full_name, is_active, last_login_at,
		       created_at, updated_at, created_by
		FROM admin_users
		WHERE id = $1
	`

	var admin models.AdminUser
	err := r.db.QueryRow(query, id).Scan(
		&admin.ID, &admin.Email, &admin.PasswordHash, &admin.FullName, &admin.IsActive,
		&admin.LastLoginAt, &admin.CreatedAt, &admin.UpdatedAt, &admin.CreatedBy,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}

	return &admin, nil
}

// UpdateLastLogin records a successful admin login
func (r *AdminUserRepository) UpdateLastLogin(id uuid.UUID) error {
	_, err := r.db.Exec(`
		UPDATE admin_users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
