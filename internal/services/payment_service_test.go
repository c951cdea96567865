package services

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bspcp/membership-backend/internal/config"
	"github.com/bspcp/membership-backend/internal/database"
	stdjwt "github.com/bspcp/membership-backend/pkg/jwt"
)

func memberSelectColumns() []string {
	return []string{
		"id", "first_name", "last_name", "email", "phone", "date_of_birth",
		"membership_type", "application_status", "member_status", "payment_status",
		"membership_number", "review_comment", "reviewed_at", "created_at", "updated_at",
	}
}

func newServiceMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// multipartFile builds a parsed multipart file header the way gin hands one
// to the upload path.
func multipartFile(t *testing.T, name, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="proof"; filename=%q`, name))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&buf, mw.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	require.Len(t, form.File["proof"], 1)
	return form.File["proof"][0]
}

func newPaymentServiceTest(t *testing.T) (*PaymentService, sqlmock.Sqlmock, string, func()) {
	t.Helper()

	sqlxDB, mock, closeDB := newServiceMockDB(t)
	logger := discardLogger()

	uploadDir := t.TempDir()
	uploadSvc, err := NewUploadService(uploadDir, logger)
	require.NoError(t, err)

	emailSvc, err := NewEmailService(config.SMTPConfig{Mode: "dev"}, logger)
	require.NoError(t, err)

	svc := NewPaymentService(
		database.NewMemberRepository(sqlxDB),
		database.NewPaymentRepository(sqlxDB),
		database.NewTokenRepository(sqlxDB),
		NewAuditService(database.NewAuditLogRepository(sqlxDB)),
		emailSvc,
		uploadSvc,
		stdjwt.NewService("test-secret", time.Hour, 24*time.Hour, 31*24*time.Hour),
		logger,
		"http://localhost:3000",
		10<<20,
	)
	return svc, mock, uploadDir, closeDB
}

func expectMemberByID(mock sqlmock.Sqlmock, id int64, paymentStatus string) {
	now := time.Now()
	mock.ExpectQuery(`FROM members\s+WHERE id`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(memberSelectColumns()).AddRow(
			id, "Thato", "Molefe", "thato@example.com", "+26771234567", nil,
			"professional", "approved", "active", paymentStatus,
			"BSPCP260007", nil, now, now, now,
		))
}

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< >>\n%%EOF\n")

func TestSubmitProof(t *testing.T) {
	actor := Actor{Type: "member", ID: "7", IPAddress: "10.0.0.9", UserAgent: "Mozilla/5.0"}

	t.Run("Records Proof Upload Log And Transition", func(t *testing.T) {
		svc, mock, _, done := newPaymentServiceTest(t)
		defer done()

		expectMemberByID(mock, 7, "requested")
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT payment_status FROM members`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"payment_status"}).AddRow("requested"))
		mock.ExpectExec(`UPDATE members SET payment_status`).
			WithArgs("uploaded", int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO payment_proofs`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(31)))
		mock.ExpectQuery(`INSERT INTO upload_logs`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
		mock.ExpectExec(`INSERT INTO audit_logs`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		proof, err := svc.SubmitProof(7, multipartFile(t, "receipt.pdf", "application/pdf", pdfBytes), actor)
		require.NoError(t, err)

		assert.Equal(t, int64(31), proof.ID)
		assert.Equal(t, int64(7), proof.MemberID)
		assert.Equal(t, "application/pdf", proof.MimeType)
		assert.Equal(t, "receipt.pdf", proof.FileName)
		assert.FileExists(t, proof.FilePath)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Resubmission After Rejection", func(t *testing.T) {
		svc, mock, _, done := newPaymentServiceTest(t)
		defer done()

		expectMemberByID(mock, 7, "rejected")
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT payment_status FROM members`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"payment_status"}).AddRow("rejected"))
		mock.ExpectExec(`UPDATE members SET payment_status`).
			WithArgs("uploaded", int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO payment_proofs`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(32)))
		mock.ExpectQuery(`INSERT INTO upload_logs`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(6)))
		mock.ExpectExec(`INSERT INTO audit_logs`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		proof, err := svc.SubmitProof(7, multipartFile(t, "receipt2.pdf", "application/pdf", pdfBytes), actor)
		require.NoError(t, err)
		assert.Equal(t, int64(32), proof.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Refused Before Payment Requested", func(t *testing.T) {
		svc, mock, uploadDir, done := newPaymentServiceTest(t)
		defer done()

		expectMemberByID(mock, 7, "not_requested")
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT payment_status FROM members`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"payment_status"}).AddRow("not_requested"))
		mock.ExpectRollback()

		_, err := svc.SubmitProof(7, multipartFile(t, "receipt.pdf", "application/pdf", pdfBytes), actor)
		require.Error(t, err)
		assert.ErrorIs(t, err, database.ErrInvalidPaymentTransition)

		// The stored file is removed again when the transaction fails.
		entries, readErr := os.ReadDir(uploadDir)
		require.NoError(t, readErr)
		assert.Empty(t, entries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rejects Disallowed File Type", func(t *testing.T) {
		svc, mock, uploadDir, done := newPaymentServiceTest(t)
		defer done()

		expectMemberByID(mock, 7, "requested")

		_, err := svc.SubmitProof(7, multipartFile(t, "notes.txt", "text/plain", []byte("hello")), actor)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidFile)

		entries, readErr := os.ReadDir(uploadDir)
		require.NoError(t, readErr)
		assert.Empty(t, entries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Proof Row Failure Rolls Back And Cleans Up", func(t *testing.T) {
		svc, mock, uploadDir, done := newPaymentServiceTest(t)
		defer done()

		expectMemberByID(mock, 7, "requested")
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT payment_status FROM members`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"payment_status"}).AddRow("requested"))
		mock.ExpectExec(`UPDATE members SET payment_status`).
			WithArgs("uploaded", int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO payment_proofs`).
			WillReturnError(fmt.Errorf("pq: connection reset by peer"))
		mock.ExpectRollback()

		_, err := svc.SubmitProof(7, multipartFile(t, "receipt.pdf", "application/pdf", pdfBytes), actor)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")

		entries, readErr := os.ReadDir(uploadDir)
		require.NoError(t, readErr)
		assert.Empty(t, entries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
