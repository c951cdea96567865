package models

import (
	"time"

	"github.com/lib/pq"
)

// Membership types
const (
	MembershipTypeProfessional = "professional"
	MembershipTypeStudent      = "student"
)

// Application statuses
const (
	ApplicationStatusPending  = "pending"
	ApplicationStatusApproved = "approved"
	ApplicationStatusRejected = "rejected"
)

// Member statuses
const (
	MemberStatusPending              = "pending"
	MemberStatusPendingPasswordSetup = "pending_password_setup"
	MemberStatusActive               = "active"
	MemberStatusInactive             = "inactive"
)

// Payment statuses
const (
	PaymentStatusNotRequested = "not_requested"
	PaymentStatusRequested    = "requested"
	PaymentStatusUploaded     = "uploaded"
	PaymentStatusVerified     = "verified"
	PaymentStatusRejected     = "rejected"
)

// Member represents a membership applicant or counsellor
type Member struct {
	ID                int64      `db:"id" json:"id"`
	FirstName         string     `db:"first_name" json:"first_name"`
	LastName          string     `db:"last_name" json:"last_name"`
	Email             string     `db:"email" json:"email"`
	Phone             string     `db:"phone" json:"phone"`
	DateOfBirth       NullTime   `db:"date_of_birth" json:"date_of_birth"`
	MembershipType    string     `db:"membership_type" json:"membership_type"`
	ApplicationStatus string     `db:"application_status" json:"application_status"`
	MemberStatus      string     `db:"member_status" json:"member_status"`
	PaymentStatus     string     `db:"payment_status" json:"payment_status"`
	MembershipNumber  NullString `db:"membership_number" json:"membership_number"`
	ReviewComment     NullString `db:"review_comment" json:"review_comment"`
	ReviewedAt        NullTime   `db:"reviewed_at" json:"reviewed_at"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName returns the member's display name
func (m *Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

// IsBookable reports whether clients may book sessions with this member
func (m *Member) IsBookable() bool {
	return m.ApplicationStatus == ApplicationStatusApproved && m.MemberStatus == MemberStatusActive
}

// ProfessionalDetails holds the professional background of an applicant
type ProfessionalDetails struct {
	ID              int64          `db:"id" json:"id"`
	MemberID        int64          `db:"member_id" json:"member_id"`
	Qualification   string         `db:"qualification" json:"qualification"`
	Institution     string         `db:"institution" json:"institution"`
	YearQualified   int            `db:"year_qualified" json:"year_qualified"`
	Specializations pq.StringArray `db:"specializations" json:"specializations"`
	YearsExperience int            `db:"years_experience" json:"years_experience"`
	CurrentEmployer NullString     `db:"current_employer" json:"current_employer"`
	Bio             NullString     `db:"bio" json:"bio"`
}

// ContactInfo holds an applicant's postal contact details
type ContactInfo struct {
	ID               int64      `db:"id" json:"id"`
	MemberID         int64      `db:"member_id" json:"member_id"`
	Address          string     `db:"address" json:"address"`
	City             string     `db:"city" json:"city"`
	PostalCode       NullString `db:"postal_code" json:"postal_code"`
	Country          string     `db:"country" json:"country"`
	PreferredContact string     `db:"preferred_contact" json:"preferred_contact"`
}

// Document represents an uploaded application document
type Document struct {
	ID         int64     `db:"id" json:"id"`
	MemberID   int64     `db:"member_id" json:"member_id"`
	DocType    string    `db:"doc_type" json:"doc_type"`
	FilePath   string    `db:"file_path" json:"file_path"`
	FileName   string    `db:"file_name" json:"file_name"`
	FileSize   int64     `db:"file_size" json:"file_size"`
	MimeType   string    `db:"mime_type" json:"mime_type"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// Certificate represents an uploaded qualification certificate
type Certificate struct {
	ID         int64     `db:"id" json:"id"`
	MemberID   int64     `db:"member_id" json:"member_id"`
	Title      string    `db:"title" json:"title"`
	Issuer     string    `db:"issuer" json:"issuer"`
	FilePath   string    `db:"file_path" json:"file_path"`
	IssuedAt   NullTime  `db:"issued_at" json:"issued_at"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// MemberApplication aggregates a member with all application children
type MemberApplication struct {
	Member       Member               `json:"member"`
	Professional *ProfessionalDetails `json:"professional,omitempty"`
	Contact      *ContactInfo         `json:"contact,omitempty"`
	Documents    []Document           `json:"documents"`
	Certificates []Certificate        `json:"certificates"`
}
