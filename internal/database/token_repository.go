package database

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// TokenRepository records redeemed one-time action tokens. The jti column
// carries a unique constraint, so a replayed token fails on insert.
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// ErrTokenConsumed is returned when an action token has already been redeemed
var ErrTokenConsumed = fmt.Errorf("token already consumed")

// ConsumeTx marks a token consumed inside the transaction that applies its
// effect, so the state change and the replay guard commit together.
func (r *TokenRepository) ConsumeTx(tx *sqlx.Tx, jti uuid.UUID, memberID int64, purpose string) error {
	_, err := tx.Exec(`
		INSERT INTO consumed_tokens (jti, member_id, purpose, consumed_at)
		VALUES ($1, $2, $3, NOW())
	`, jti, memberID, purpose)
	if err != nil {
		if IsUniqueViolation(err) {
			return ErrTokenConsumed
		}
		return fmt.Errorf("failed to consume token: %w", err)
	}
	return nil
}

// IsConsumed reports whether a token id has already been redeemed
func (r *TokenRepository) IsConsumed(jti uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM consumed_tokens WHERE jti = $1)`, jti)
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return exists, nil
}
