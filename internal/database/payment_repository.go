package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bspcp/membership-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrInvalidPaymentTransition is returned when a payment status change is
// attempted from a status that does not permit it.
var ErrInvalidPaymentTransition = errors.New("invalid payment status transition")

// PaymentRepository handles payment proof and upload log operations
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Beginx starts a transaction for payment state transitions
func (r *PaymentRepository) Beginx() (*sqlx.Tx, error) {
	return r.db.Beginx()
}

// SetPaymentStatusTx performs a guarded payment status transition. The WHERE
// clause pins the expected current status so concurrent transitions cannot
// skip an edge; zero rows affected means the member was not in fromStatus.
func (r *PaymentRepository) SetPaymentStatusTx(tx *sqlx.Tx, memberID int64, fromStatuses []string, toStatus string) (string, error) {
	var current string
	err := tx.Get(&current, `SELECT payment_status FROM members WHERE id = $1 FOR UPDATE`, memberID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read payment status: %w", err)
	}

	allowed := false
	for _, s := range fromStatuses {
		if current == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return current, fmt.Errorf("%w from %q to %q", ErrInvalidPaymentTransition, current, toStatus)
	}

	_, err = tx.Exec(`UPDATE members SET payment_status = $1, updated_at = NOW() WHERE id = $2`, toStatus, memberID)
	if err != nil {
		return current, fmt.Errorf("failed to update payment status: %w", err)
	}
	return current, nil
}

// InsertProofTx stores a payment proof row inside a transaction
func (r *PaymentRepository) InsertProofTx(tx *sqlx.Tx, proof *models.PaymentProof) error {
	proof.CreatedAt = time.Now()
	err := tx.QueryRow(`
		INSERT INTO payment_proofs (member_id, file_path, file_name, file_size, mime_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, proof.MemberID, proof.FilePath, proof.FileName, proof.FileSize, proof.MimeType, proof.CreatedAt).Scan(&proof.ID)
	if err != nil {
		return fmt.Errorf("failed to insert payment proof: %w", err)
	}
	return nil
}

// InsertUploadLogTx appends an upload log row inside a transaction.
// Upload logs are never updated or deleted.
func (r *PaymentRepository) InsertUploadLogTx(tx *sqlx.Tx, entry *models.UploadLog) error {
	entry.CreatedAt = time.Now()
	err := tx.QueryRow(`
		INSERT INTO upload_logs (member_id, proof_id, file_name, file_size, mime_type, submitter_ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, entry.MemberID, entry.ProofID, entry.FileName, entry.FileSize, entry.MimeType,
		entry.SubmitterIP, entry.UserAgent, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert upload log: %w", err)
	}
	return nil
}

// ReviewProofTx records the admin review outcome on the latest proof
func (r *PaymentRepository) ReviewProofTx(tx *sqlx.Tx, proofID int64, adminID uuid.UUID, notes string) error {
	result, err := tx.Exec(`
		UPDATE payment_proofs
		SET notes = NULLIF($1, ''), reviewed_by = $2, reviewed_at = NOW()
		WHERE id = $3
	`, notes, adminID, proofID)
	if err != nil {
		return fmt.Errorf("failed to review payment proof: %w", err)
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

// GetLatestProof returns the most recent proof for a member
func (r *PaymentRepository) GetLatestProof(memberID int64) (*models.PaymentProof, error) {
	var p models.PaymentProof
	err := r.db.Get(&p, `
		SELECT id, member_id, file_path, file_name, file_size, mime_type,
		       notes, reviewed_by, reviewed_at, created_at
		FROM payment_proofs
		WHERE member_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, memberID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment proof: %w", err)
	}
	return &p, nil
}

// ListProofs returns all proofs for a member, newest first
func (r *PaymentRepository) ListProofs(memberID int64) ([]models.PaymentProof, error) {
	proofs := []models.PaymentProof{}
	err := r.db.Select(&proofs, `
		SELECT id, member_id, file_path, file_name, file_size, mime_type,
		       notes, reviewed_by, reviewed_at, created_at
		FROM payment_proofs
		WHERE member_id = $1
		ORDER BY created_at DESC
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment proofs: %w", err)
	}
	return proofs, nil
}

// ListUploadLogs returns the upload log for a member, newest first
func (r *PaymentRepository) ListUploadLogs(memberID int64) ([]models.UploadLog, error) {
	logs := []models.UploadLog{}
	err := r.db.Select(&logs, `
		SELECT id, member_id, proof_id, file_name, file_size, mime_type,
		       submitter_ip, user_agent, created_at
		FROM upload_logs
		WHERE member_id = $1
		ORDER BY created_at DESC
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list upload logs: %w", err)
	}
	return logs, nil
}
