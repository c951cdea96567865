package models

import "time"

// CPDActivity is a continuing-professional-development record logged by a member
type CPDActivity struct {
	ID           int64      `db:"id" json:"id"`
	MemberID     int64      `db:"member_id" json:"member_id"`
	Title        string     `db:"title" json:"title"`
	Category     string     `db:"category" json:"category"`
	Hours        float64    `db:"hours" json:"hours"`
	ActivityDate time.Time  `db:"activity_date" json:"activity_date"`
	EvidencePath NullString `db:"evidence_path" json:"evidence_path"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// CPDSummary aggregates a member's CPD hours for one year
type CPDSummary struct {
	Year       int     `db:"year" json:"year"`
	TotalHours float64 `db:"total_hours" json:"total_hours"`
	Activities int     `db:"activities" json:"activities"`
}
