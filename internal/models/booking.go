package models

import "time"

// Booking statuses
const (
	BookingStatusPending     = "pending"
	BookingStatusConfirmed   = "confirmed"
	BookingStatusRescheduled = "rescheduled"
	BookingStatusCancelled   = "cancelled"
)

// Booking is a counselling session request from an anonymous client
// against an active member. Its lifecycle is independent of the member's.
type Booking struct {
	ID          int64      `db:"id" json:"id"`
	MemberID    int64      `db:"member_id" json:"member_id"`
	ClientName  string     `db:"client_name" json:"client_name"`
	ClientEmail string     `db:"client_email" json:"client_email"`
	ClientPhone NullString `db:"client_phone" json:"client_phone"`
	SessionAt   time.Time  `db:"session_at" json:"session_at"`
	Notes       NullString `db:"notes" json:"notes"`
	Status      string     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
