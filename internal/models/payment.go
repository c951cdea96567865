package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentProof represents a single payment-proof file submission
type PaymentProof struct {
	ID         int64      `db:"id" json:"id"`
	MemberID   int64      `db:"member_id" json:"member_id"`
	FilePath   string     `db:"file_path" json:"file_path"`
	FileName   string     `db:"file_name" json:"file_name"`
	FileSize   int64      `db:"file_size" json:"file_size"`
	MimeType   string     `db:"mime_type" json:"mime_type"`
	Notes      NullString `db:"notes" json:"notes"`
	ReviewedBy *uuid.UUID `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt NullTime   `db:"reviewed_at" json:"reviewed_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// UploadLog is the append-only record of a file submission event
type UploadLog struct {
	ID          int64      `db:"id" json:"id"`
	MemberID    int64      `db:"member_id" json:"member_id"`
	ProofID     *int64     `db:"proof_id" json:"proof_id,omitempty"`
	FileName    string     `db:"file_name" json:"file_name"`
	FileSize    int64      `db:"file_size" json:"file_size"`
	MimeType    string     `db:"mime_type" json:"mime_type"`
	SubmitterIP string     `db:"submitter_ip" json:"submitter_ip"`
	UserAgent   NullString `db:"user_agent" json:"user_agent"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
