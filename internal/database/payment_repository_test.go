package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bspcp/membership-backend/internal/models"
)

func newPaymentRepoMock(t *testing.T) (*PaymentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewPaymentRepository(sqlxDB), mock, func() { db.Close() }
}

func TestSetPaymentStatusTx(t *testing.T) {
	repo, mock, done := newPaymentRepoMock(t)
	defer done()

	cases := []struct {
		name    string
		current string
		from    []string
		to      string
		allowed bool
	}{
		{"Request From Not Requested", "not_requested", []string{"not_requested", "requested"}, "requested", true},
		{"Re-Request Resends Link", "requested", []string{"not_requested", "requested"}, "requested", true},
		{"Upload After Request", "requested", []string{"requested", "rejected"}, "uploaded", true},
		{"Re-Upload After Rejection", "rejected", []string{"requested", "rejected"}, "uploaded", true},
		{"Verify Uploaded Proof", "uploaded", []string{"uploaded"}, "verified", true},
		{"Reject Uploaded Proof", "uploaded", []string{"uploaded"}, "rejected", true},
		{"Upload Without Request", "not_requested", []string{"requested", "rejected"}, "uploaded", false},
		{"Verify Without Upload", "requested", []string{"uploaded"}, "verified", false},
		{"Request After Verification", "verified", []string{"not_requested", "requested"}, "requested", false},
		{"Double Verify", "verified", []string{"uploaded"}, "verified", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT payment_status FROM members WHERE id = \$1 FOR UPDATE`).
				WithArgs(int64(7)).
				WillReturnRows(sqlmock.NewRows([]string{"payment_status"}).AddRow(tc.current))
			if tc.allowed {
				mock.ExpectExec(`UPDATE members SET payment_status`).
					WithArgs(tc.to, int64(7)).
					WillReturnResult(sqlmock.NewResult(0, 1))
			}
			mock.ExpectRollback()

			tx, err := repo.Beginx()
			require.NoError(t, err)

			prior, err := repo.SetPaymentStatusTx(tx, 7, tc.from, tc.to)
			if tc.allowed {
				require.NoError(t, err)
				assert.Equal(t, tc.current, prior)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "invalid payment status transition")
				assert.Equal(t, tc.current, prior)
			}
			require.NoError(t, tx.Rollback())

			err = mock.ExpectationsWereMet()
			assert.NoError(t, err)
		})
	}

	t.Run("Member Not Found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT payment_status FROM members WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		tx, err := repo.Beginx()
		require.NoError(t, err)

		_, err = repo.SetPaymentStatusTx(tx, 99, []string{"requested"}, "uploaded")
		assert.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, tx.Rollback())

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}

func TestInsertProofTx(t *testing.T) {
	repo, mock, done := newPaymentRepoMock(t)
	defer done()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO payment_proofs`).
			WithArgs(int64(7), "uploads/proof.pdf", "proof.pdf", int64(2048), "application/pdf", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(31)))
		mock.ExpectCommit()

		tx, err := repo.Beginx()
		require.NoError(t, err)

		proof := &models.PaymentProof{
			MemberID: 7,
			FilePath: "uploads/proof.pdf",
			FileName: "proof.pdf",
			FileSize: 2048,
			MimeType: "application/pdf",
		}
		err = repo.InsertProofTx(tx, proof)
		require.NoError(t, err)
		assert.Equal(t, int64(31), proof.ID)
		require.NoError(t, tx.Commit())

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}

func TestReviewProofTx(t *testing.T) {
	repo, mock, done := newPaymentRepoMock(t)
	defer done()

	t.Run("Success", func(t *testing.T) {
		adminID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE payment_proofs`).
			WithArgs("amount mismatch", adminID, int64(31)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := repo.Beginx()
		require.NoError(t, err)

		err = repo.ReviewProofTx(tx, 31, adminID, "amount mismatch")
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})

	t.Run("Proof Not Found", func(t *testing.T) {
		adminID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE payment_proofs`).
			WithArgs("", adminID, int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		tx, err := repo.Beginx()
		require.NoError(t, err)

		err = repo.ReviewProofTx(tx, 99, adminID, "")
		assert.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, tx.Rollback())

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}

func TestGetLatestProof(t *testing.T) {
	repo, mock, done := newPaymentRepoMock(t)
	defer done()

	t.Run("Success", func(t *testing.T) {
		now := time.Now()

		mock.ExpectQuery(`FROM payment_proofs\s+WHERE member_id`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "member_id", "file_path", "file_name", "file_size", "mime_type",
				"notes", "reviewed_by", "reviewed_at", "created_at",
			}).AddRow(
				int64(31), int64(7), "uploads/proof.pdf", "proof.pdf", int64(2048), "application/pdf",
				nil, nil, nil, now,
			))

		proof, err := repo.GetLatestProof(7)
		require.NoError(t, err)
		assert.Equal(t, int64(31), proof.ID)
		assert.Equal(t, "proof.pdf", proof.FileName)

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})

	t.Run("No Proof Uploaded", func(t *testing.T) {
		mock.ExpectQuery(`FROM payment_proofs\s+WHERE member_id`).
			WithArgs(int64(7)).
			WillReturnError(sql.ErrNoRows)

		proof, err := repo.GetLatestProof(7)
		assert.Nil(t, proof)
		assert.ErrorIs(t, err, ErrNotFound)

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}
