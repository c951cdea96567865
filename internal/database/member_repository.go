package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bspcp/membership-backend/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// MemberRepository handles member and application database operations.
// Multi-table writes run in a single transaction so partial failures
// roll back atomically.
type MemberRepository struct {
	db *sqlx.DB
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// Beginx starts a transaction for callers that span repositories
func (r *MemberRepository) Beginx() (*sqlx.Tx, error) {
	return r.db.Beginx()
}

// CreateApplication inserts a member together with its professional details,
// contact info, documents and certificates in one transaction.
func (r *MemberRepository) CreateApplication(app *models.MemberApplication) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	m := &app.Member
	m.ApplicationStatus = models.ApplicationStatusPending
	m.MemberStatus = models.MemberStatusPending
	m.PaymentStatus = models.PaymentStatusNotRequested
	m.CreatedAt = now
	m.UpdatedAt = now

	err = tx.QueryRow(`
		INSERT INTO members (
			first_name, last_name, email, phone, date_of_birth,
			membership_type, application_status, member_status, payment_status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		m.FirstName, m.LastName, m.Email, m.Phone, m.DateOfBirth,
		m.MembershipType, m.ApplicationStatus, m.MemberStatus, m.PaymentStatus,
		m.CreatedAt, m.UpdatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}

	if app.Professional != nil {
		p := app.Professional
		p.MemberID = m.ID
		err = tx.QueryRow(`
			INSERT INTO professional_details (
				member_id, qualification, institution, year_qualified,
				specializations, years_experience, current_employer, bio
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`,
			p.MemberID, p.Qualification, p.Institution, p.YearQualified,
			pq.Array(p.Specializations), p.YearsExperience, p.CurrentEmployer, p.Bio,
		).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("failed to create professional details: %w", err)
		}
	}

	if app.Contact != nil {
		ct := app.Contact
		ct.MemberID = m.ID
		err = tx.QueryRow(`
			INSERT INTO contact_info (
				member_id, address, city, postal_code, country, preferred_contact
			) VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`,
			ct.MemberID, ct.Address, ct.City, ct.PostalCode, ct.Country, ct.PreferredContact,
		).Scan(&ct.ID)
		if err != nil {
			return fmt.Errorf("failed to create contact info: %w", err)
		}
	}

	for i := range app.Documents {
		d := &app.Documents[i]
		d.MemberID = m.ID
		d.UploadedAt = now
		err = tx.QueryRow(`
			INSERT INTO documents (member_id, doc_type, file_path, file_name, file_size, mime_type, uploaded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, d.MemberID, d.DocType, d.FilePath, d.FileName, d.FileSize, d.MimeType, d.UploadedAt).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
	}

	for i := range app.Certificates {
		ce := &app.Certificates[i]
		ce.MemberID = m.ID
		ce.UploadedAt = now
		err = tx.QueryRow(`
			INSERT INTO certificates (member_id, title, issuer, file_path, issued_at, uploaded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, ce.MemberID, ce.Title, ce.Issuer, ce.FilePath, ce.IssuedAt, ce.UploadedAt).Scan(&ce.ID)
		if err != nil {
			return fmt.Errorf("failed to create certificate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit application: %w", err)
	}

	return nil
}

// GetByID retrieves a member by id
func (r *MemberRepository) GetByID(id int64) (*models.Member, error) {
	var m models.Member
	err := r.db.Get(&m, `
		SELECT id, first_name, last_name, email, phone, date_of_birth,
		       membership_type, application_status, member_status, payment_status,
		       membership_number, review_comment, reviewed_at, created_at, updated_at
		FROM members
		WHERE id = $1
	`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &m, nil
}

// GetByEmail retrieves a member by email
func (r *MemberRepository) GetByEmail(email string) (*models.Member, error) {
	var m models.Member
	err := r.db.Get(&m, `
		SELECT id, first_name, last_name, email, phone, date_of_birth,
		       membership_type, application_status, member_status, payment_status,
		       membership_number, review_comment, reviewed_at, created_at, updated_at
		FROM members
		WHERE LOWER(email) = LOWER($1)
	`, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get member by email: %w", err)
	}
	return &m, nil
}

// GetApplication retrieves a member with all application children
func (r *MemberRepository) GetApplication(id int64) (*models.MemberApplication, error) {
	member, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	app := &models.MemberApplication{
		Member:       *member,
		Documents:    []models.Document{},
		Certificates: []models.Certificate{},
	}

	var prof models.ProfessionalDetails
	err = r.db.Get(&prof, `
		SELECT id, member_id, qualification, institution, year_qualified,
		       specializations, years_experience, current_employer, bio
		FROM professional_details
		WHERE member_id = $1
	`, id)
	if err == nil {
		app.Professional = &prof
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get professional details: %w", err)
	}

	var contact models.ContactInfo
	err = r.db.Get(&contact, `
		SELECT id, member_id, address, city, postal_code, country, preferred_contact
		FROM contact_info
		WHERE member_id = $1
	`, id)
	if err == nil {
		app.Contact = &contact
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get contact info: %w", err)
	}

	err = r.db.Select(&app.Documents, `
		SELECT id, member_id, doc_type, file_path, file_name, file_size, mime_type, uploaded_at
		FROM documents
		WHERE member_id = $1
		ORDER BY uploaded_at
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}

	err = r.db.Select(&app.Certificates, `
		SELECT id, member_id, title, issuer, file_path, issued_at, uploaded_at
		FROM certificates
		WHERE member_id = $1
		ORDER BY uploaded_at
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get certificates: %w", err)
	}

	return app, nil
}

// ListByApplicationStatus lists members filtered by application status.
// An empty status returns all members.
func (r *MemberRepository) ListByApplicationStatus(status string, limit, offset int) ([]models.Member, error) {
	members := []models.Member{}

	if status == "" {
		err := r.db.Select(&members, `
			SELECT id, first_name, last_name, email, phone, date_of_birth,
			       membership_type, application_status, member_status, payment_status,
			       membership_number, review_comment, reviewed_at, created_at, updated_at
			FROM members
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2
		`, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list members: %w", err)
		}
		return members, nil
	}

	err := r.db.Select(&members, `
		SELECT id, first_name, last_name, email, phone, date_of_birth,
		       membership_type, application_status, member_status, payment_status,
		       membership_number, review_comment, reviewed_at, created_at, updated_at
		FROM members
		WHERE application_status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// ListBookable lists approved, active members for the public directory
func (r *MemberRepository) ListBookable() ([]models.Member, error) {
	members := []models.Member{}
	err := r.db.Select(&members, `
		SELECT id, first_name, last_name, email, phone, date_of_birth,
		       membership_type, application_status, member_status, payment_status,
		       membership_number, review_comment, reviewed_at, created_at, updated_at
		FROM members
		WHERE application_status = $1 AND member_status = $2
		ORDER BY last_name, first_name
	`, models.ApplicationStatusApproved, models.MemberStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookable members: %w", err)
	}
	return members, nil
}

// UpdateProfile updates the member-editable profile fields
func (r *MemberRepository) UpdateProfile(m *models.Member) error {
	m.UpdatedAt = time.Now()
	result, err := r.db.Exec(`
		UPDATE members
		SET first_name = $1, last_name = $2, phone = $3, date_of_birth = $4, updated_at = $5
		WHERE id = $6
	`, m.FirstName, m.LastName, m.Phone, m.DateOfBirth, m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("failed to update member profile: %w", err)
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

// SetMemberStatus updates member_status only
func (r *MemberRepository) SetMemberStatus(id int64, status string) error {
	result, err := r.db.Exec(`
		UPDATE members SET member_status = $1, updated_at = NOW() WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set member status: %w", err)
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

// ApproveTx marks an application approved inside an existing transaction,
// assigning the membership number when absent.
func (r *MemberRepository) ApproveTx(tx *sqlx.Tx, id int64, membershipNumber, comment string) error {
	result, err := tx.Exec(`
		UPDATE members
		SET application_status = $1,
		    member_status = $2,
		    membership_number = COALESCE(membership_number, $3),
		    review_comment = NULLIF($4, ''),
		    reviewed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $5
	`, models.ApplicationStatusApproved, models.MemberStatusPendingPasswordSetup, membershipNumber, comment, id)
	if err != nil {
		return fmt.Errorf("failed to approve member: %w", err)
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

// Reject marks an application rejected with the reviewer's comment
func (r *MemberRepository) Reject(id int64, comment string) error {
	result, err := r.db.Exec(`
		UPDATE members
		SET application_status = $1,
		    review_comment = NULLIF($2, ''),
		    reviewed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $3
	`, models.ApplicationStatusRejected, comment, id)
	if err != nil {
		return fmt.Errorf("failed to reject member: %w", err)
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

// ActivateTx flips a pending_password_setup member to active inside a transaction
func (r *MemberRepository) ActivateTx(tx *sqlx.Tx, id int64) error {
	result, err := tx.Exec(`
		UPDATE members
		SET member_status = $1, updated_at = NOW()
		WHERE id = $2 AND member_status = $3
	`, models.MemberStatusActive, id, models.MemberStatusPendingPasswordSetup)
	if err != nil {
		return fmt.Errorf("failed to activate member: %w", err)
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

// DeleteCascade removes a member and every dependent row in one transaction.
// It returns the stored file paths so the caller can best-effort delete the
// underlying files after commit. A second delete of the same id returns
// ErrNotFound.
func (r *MemberRepository) DeleteCascade(id int64) ([]string, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.Get(&exists, `SELECT EXISTS(SELECT 1 FROM members WHERE id = $1)`, id); err != nil {
		return nil, fmt.Errorf("failed to check member: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	paths := []string{}
	collect := func(query string) error {
		var batch []string
		if err := tx.Select(&batch, query, id); err != nil {
			return err
		}
		paths = append(paths, batch...)
		return nil
	}

	if err := collect(`SELECT file_path FROM documents WHERE member_id = $1`); err != nil {
		return nil, fmt.Errorf("failed to collect document paths: %w", err)
	}
	if err := collect(`SELECT file_path FROM certificates WHERE member_id = $1`); err != nil {
		return nil, fmt.Errorf("failed to collect certificate paths: %w", err)
	}
	if err := collect(`SELECT file_path FROM payment_proofs WHERE member_id = $1`); err != nil {
		return nil, fmt.Errorf("failed to collect payment proof paths: %w", err)
	}
	if err := collect(`SELECT evidence_path FROM cpd_activities WHERE member_id = $1 AND evidence_path IS NOT NULL`); err != nil {
		return nil, fmt.Errorf("failed to collect cpd evidence paths: %w", err)
	}

	// Children first, then the member row. upload_logs and audit_logs are
	// retained for compliance.
	for _, q := range []string{
		`DELETE FROM documents WHERE member_id = $1`,
		`DELETE FROM certificates WHERE member_id = $1`,
		`DELETE FROM payment_proofs WHERE member_id = $1`,
		`DELETE FROM cpd_activities WHERE member_id = $1`,
		`DELETE FROM bookings WHERE member_id = $1`,
		`DELETE FROM professional_details WHERE member_id = $1`,
		`DELETE FROM contact_info WHERE member_id = $1`,
		`DELETE FROM consumed_tokens WHERE member_id = $1`,
		`DELETE FROM credentials WHERE member_id = $1`,
		`DELETE FROM members WHERE id = $1`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return nil, fmt.Errorf("failed to delete member data: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}

	return paths, nil
}

// CountByApplicationStatus returns counts keyed by application status
func (r *MemberRepository) CountByApplicationStatus() (map[string]int64, error) {
	rows, err := r.db.Query(`
		SELECT application_status, COUNT(*) FROM members GROUP BY application_status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = count
	}
	return counts, nil
}
