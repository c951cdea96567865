package models

import (
	"time"

	"github.com/google/uuid"
)

// Credential is the login record for a member, 1:1 keyed by member_id.
// PasswordHash stays null until the applicant completes password setup.
type Credential struct {
	MemberID      int64      `db:"member_id" json:"member_id"`
	Username      string     `db:"username" json:"username"`
	PasswordHash  NullString `db:"password_hash" json:"-"`
	PasswordSetAt NullTime   `db:"password_set_at" json:"password_set_at"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// HasPassword reports whether the member has completed password setup
func (c *Credential) HasPassword() bool {
	return c.PasswordHash.Valid && c.PasswordHash.String != ""
}

// Action token purposes
const (
	TokenPurposePasswordSetup = "password_setup"
	TokenPurposePaymentUpload = "payment_upload"
)

// ConsumedToken records a redeemed one-time action token so replay within
// the expiry window fails.
type ConsumedToken struct {
	JTI        uuid.UUID `db:"jti" json:"jti"`
	MemberID   int64     `db:"member_id" json:"member_id"`
	Purpose    string    `db:"purpose" json:"purpose"`
	ConsumedAt time.Time `db:"consumed_at" json:"consumed_at"`
}
