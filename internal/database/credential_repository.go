package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bspcp/membership-backend/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// CredentialRepository handles member login credential operations
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// IsUniqueViolation reports whether err is a Postgres unique constraint violation
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// sqlmock and wrapped drivers don't produce *pq.Error
	return err != nil && strings.Contains(err.Error(), "duplicate key value")
}

// UpsertTx creates or refreshes the credential row for a member inside an
// existing transaction. Re-approval replaces the username and clears the
// password so the setup link must be redeemed again; the row is keyed by
// member_id so no duplicates are possible.
func (r *CredentialRepository) UpsertTx(tx *sqlx.Tx, memberID int64, username string) error {
	_, err := tx.Exec(`
		INSERT INTO credentials (member_id, username, password_hash, password_set_at, created_at, updated_at)
		VALUES ($1, $2, NULL, NULL, NOW(), NOW())
		ON CONFLICT (member_id) DO UPDATE
		SET username = EXCLUDED.username,
		    password_hash = NULL,
		    password_set_at = NULL,
		    updated_at = NOW()
	`, memberID, username)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

// UsernameExistsTx checks whether a username is taken, inside the approval
// transaction so generation and insert see the same snapshot.
func (r *CredentialRepository) UsernameExistsTx(tx *sqlx.Tx, username string) (bool, error) {
	var exists bool
	err := tx.Get(&exists, `SELECT EXISTS(SELECT 1 FROM credentials WHERE username = $1)`, username)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

// GetByMemberID retrieves the credential for a member
func (r *CredentialRepository) GetByMemberID(memberID int64) (*models.Credential, error) {
	var c models.Credential
	err := r.db.Get(&c, `
		SELECT member_id, username, password_hash, password_set_at, created_at, updated_at
		FROM credentials
		WHERE member_id = $1
	`, memberID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &c, nil
}

// FindByIdentifier resolves a login identifier (username or email) to the
// credential and its member.
func (r *CredentialRepository) FindByIdentifier(identifier string) (*models.Credential, *models.Member, error) {
	row := r.db.QueryRow(`
		SELECT c.member_id, c.username, c.password_hash, c.password_set_at, c.created_at, c.updated_at,
		       m.id, m.first_name, m.last_name, m.email, m.phone, m.date_of_birth,
		       m.membership_type, m.application_status, m.member_status, m.payment_status,
		       m.membership_number, m.review_comment, m.reviewed_at, m.created_at, m.updated_at
		FROM credentials c
		JOIN members m ON m.id = c.member_id
		WHERE c.username = $1 OR LOWER(m.email) = LOWER($1)
	`, identifier)

	var c models.Credential
	var m models.Member
	err := row.Scan(
		&c.MemberID, &c.Username, &c.PasswordHash, &c.PasswordSetAt, &c.CreatedAt, &c.UpdatedAt,
		&m.ID, &m.FirstName, &m.LastName, &m.Email, &m.Phone, &m.DateOfBirth,
		&m.MembershipType, &m.ApplicationStatus, &m.MemberStatus, &m.PaymentStatus,
		&m.MembershipNumber, &m.ReviewComment, &m.ReviewedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to find credential: %w", err)
	}
	return &c, &m, nil
}

// SetPasswordTx stores the bcrypt hash for a member inside a transaction
func (r *CredentialRepository) SetPasswordTx(tx *sqlx.Tx, memberID int64, passwordHash string) error {
	result, err := tx.Exec(`
		UPDATE credentials
		SET password_hash = $1, password_set_at = NOW(), updated_at = NOW()
		WHERE member_id = $2
	`, passwordHash, memberID)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
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
