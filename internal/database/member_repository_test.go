package database

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemberRepoMock(t *testing.T) (*MemberRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewMemberRepository(sqlxDB), mock, func() { db.Close() }
}

func memberColumns() []string {
	return []string{
		"id", "first_name", "last_name", "email", "phone", "date_of_birth",
		"membership_type", "application_status", "member_status", "payment_status",
		"membership_number", "review_comment", "reviewed_at", "created_at", "updated_at",
	}
}

func TestGetMemberByID(t *testing.T) {
	repo, mock, done := newMemberRepoMock(t)
	defer done()

	t.Run("Success", func(t *testing.T) {
		now := time.Now()

		mock.ExpectQuery(`FROM members\s+WHERE id`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(memberColumns()).AddRow(
				int64(7), "Thato", "Molefe", "thato@example.com", "+26771234567", nil,
				"professional", "approved", "active", "verified",
				"BSPCP260007", nil, now, now, now,
			))

		member, err := repo.GetByID(7)
		require.NoError(t, err)
		assert.Equal(t, int64(7), member.ID)
		assert.Equal(t, "Thato", member.FirstName)
		assert.Equal(t, "approved", member.ApplicationStatus)
		assert.Equal(t, "BSPCP260007", member.MembershipNumber.String)

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`FROM members\s+WHERE id`).
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)

		member, err := repo.GetByID(99)
		assert.Nil(t, member)
		assert.ErrorIs(t, err, ErrNotFound)

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectQuery(`FROM members\s+WHERE id`).
			WithArgs(int64(7)).
			WillReturnError(fmt.Errorf("database error"))

		member, err := repo.GetByID(7)
		assert.Nil(t, member)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get member")

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}

func TestApproveTx(t *testing.T) {
	repo, mock, done := newMemberRepoMock(t)
	defer done()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE members`).
			WithArgs("approved", "pending_password_setup", "BSPCP260012", "Welcome aboard", int64(12)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := repo.Beginx()
		require.NoError(t, err)

		err = repo.ApproveTx(tx, 12, "BSPCP260012", "Welcome aboard")
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})

	t.Run("Member Not Found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE members`).
			WithArgs("approved", "pending_password_setup", "BSPCP260099", "", int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		tx, err := repo.Beginx()
		require.NoError(t, err)

		err = repo.ApproveTx(tx, 99, "BSPCP260099", "")
		assert.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, tx.Rollback())

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}

func TestActivateTx(t *testing.T) {
	repo, mock, done := newMemberRepoMock(t)
	defer done()

	t.Run("Pending Setup Becomes Active", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE members`).
			WithArgs("active", int64(5), "pending_password_setup").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := repo.Beginx()
		require.NoError(t, err)

		err = repo.ActivateTx(tx, 5)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})

	t.Run("Already Active", func(t *testing.T) {
		// The status guard in the WHERE clause matches no rows, so a
		// member who already activated cannot be flipped twice.
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE members`).
			WithArgs("active", int64(5), "pending_password_setup").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		tx, err := repo.Beginx()
		require.NoError(t, err)

		err = repo.ActivateTx(tx, 5)
		assert.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, tx.Rollback())

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}

func TestRejectMember(t *testing.T) {
	repo, mock, done := newMemberRepoMock(t)
	defer done()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE members`).
			WithArgs("rejected", "Incomplete qualifications", int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Reject(3, "Incomplete qualifications")
		require.NoError(t, err)

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})

	t.Run("Member Not Found", func(t *testing.T) {
		mock.ExpectExec(`UPDATE members`).
			WithArgs("rejected", "", int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Reject(99, "")
		assert.ErrorIs(t, err, ErrNotFound)

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}

func TestDeleteCascade(t *testing.T) {
	repo, mock, done := newMemberRepoMock(t)
	defer done()

	t.Run("Success Collects File Paths", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM members WHERE id`).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		mock.ExpectQuery(`SELECT file_path FROM documents`).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"file_path"}).
				AddRow("uploads/doc-1.pdf").
				AddRow("uploads/doc-2.pdf"))
		mock.ExpectQuery(`SELECT file_path FROM certificates`).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"file_path"}).
				AddRow("uploads/cert-1.pdf"))
		mock.ExpectQuery(`SELECT file_path FROM payment_proofs`).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"file_path"}))
		mock.ExpectQuery(`SELECT evidence_path FROM cpd_activities`).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"evidence_path"}).
				AddRow("uploads/cpd-1.pdf"))

		for _, table := range []string{
			"documents", "certificates", "payment_proofs", "cpd_activities",
			"bookings", "professional_details", "contact_info",
			"consumed_tokens", "credentials",
		} {
			mock.ExpectExec(`DELETE FROM ` + table).
				WithArgs(int64(4)).
				WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectExec(`DELETE FROM members`).
			WithArgs(int64(4)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		paths, err := repo.DeleteCascade(4)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"uploads/doc-1.pdf", "uploads/doc-2.pdf",
			"uploads/cert-1.pdf", "uploads/cpd-1.pdf",
		}, paths)

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})

	t.Run("Already Deleted", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM members WHERE id`).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectRollback()

		paths, err := repo.DeleteCascade(4)
		assert.Nil(t, paths)
		assert.ErrorIs(t, err, ErrNotFound)

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}

func TestCountByApplicationStatus(t *testing.T) {
	repo, mock, done := newMemberRepoMock(t)
	defer done()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT application_status, COUNT\(\*\) FROM members`).
			WillReturnRows(sqlmock.NewRows([]string{"application_status", "count"}).
				AddRow("pending", 12).
				AddRow("approved", 40).
				AddRow("rejected", 3))

		counts, err := repo.CountByApplicationStatus()
		require.NoError(t, err)
		assert.Equal(t, int64(12), counts["pending"])
		assert.Equal(t, int64(40), counts["approved"])
		assert.Equal(t, int64(3), counts["rejected"])

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}
