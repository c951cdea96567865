package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentPage is a published piece of site content addressed by slug
type ContentPage struct {
	ID        int64      `db:"id" json:"id"`
	Slug      string     `db:"slug" json:"slug"`
	Title     string     `db:"title" json:"title"`
	Body      string     `db:"body" json:"body"`
	Published bool       `db:"published" json:"published"`
	UpdatedBy *uuid.UUID `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Testimonial is a client testimonial pending admin approval before display
type Testimonial struct {
	ID         int64      `db:"id" json:"id"`
	AuthorName string     `db:"author_name" json:"author_name"`
	AuthorRole NullString `db:"author_role" json:"author_role"`
	Body       string     `db:"body" json:"body"`
	Approved   bool       `db:"approved" json:"approved"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
