package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bspcp/membership-backend/internal/models"
	"github.com/lib/pq"
)

// BookingRepository handles booking database operations
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a new booking in pending status
func (r *BookingRepository) Create(b *models.Booking) error {
	b.Status = models.BookingStatusPending
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt

	err := r.db.QueryRow(`
		INSERT INTO bookings (member_id, client_name, client_email, client_phone, session_at, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, b.MemberID, b.ClientName, b.ClientEmail, b.ClientPhone, b.SessionAt, b.Notes, b.Status, b.CreatedAt, b.UpdatedAt).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetByID retrieves a booking by id
func (r *BookingRepository) GetByID(id int64) (*models.Booking, error) {
	var b models.Booking
	err := r.db.Get(&b, `
		SELECT id, member_id, client_name, client_email, client_phone,
		       session_at, notes, status, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

// ListByMember returns a counsellor's bookings, soonest session first
func (r *BookingRepository) ListByMember(memberID int64) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := r.db.Select(&bookings, `
		SELECT id, member_id, client_name, client_email, client_phone,
		       session_at, notes, status, created_at, updated_at
		FROM bookings
		WHERE member_id = $1
		ORDER BY session_at
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// SetStatus performs a guarded booking status transition. The WHERE clause
// pins the allowed current statuses; zero rows means the edge was invalid
// or the booking does not exist.
func (r *BookingRepository) SetStatus(id int64, fromStatuses []string, toStatus string) error {
	query := `UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2 AND status = ANY($3)`
	result, err := r.db.Exec(query, toStatus, id, pq.Array(fromStatuses))
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
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

// Reschedule moves the session time and marks the booking rescheduled
func (r *BookingRepository) Reschedule(id int64, sessionAt time.Time) error {
	result, err := r.db.Exec(`
		UPDATE bookings
		SET session_at = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND status = ANY($4)
	`, sessionAt, models.BookingStatusRescheduled, id,
		pq.Array([]string{models.BookingStatusPending, models.BookingStatusConfirmed, models.BookingStatusRescheduled}))
	if err != nil {
		return fmt.Errorf("failed to reschedule booking: %w", err)
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
