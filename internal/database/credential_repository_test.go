package database

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCredentialRepoMock(t *testing.T) (*CredentialRepository, *sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewCredentialRepository(sqlxDB), sqlxDB, mock, func() { db.Close() }
}

func TestUpsertCredentialTx(t *testing.T) {
	repo, sqlxDB, mock, done := newCredentialRepoMock(t)
	defer done()

	t.Run("Creates Credential", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO credentials`).
			WithArgs(int64(7), "tmolefe").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, err := sqlxDB.Beginx()
		require.NoError(t, err)

		err = repo.UpsertTx(tx, 7, "tmolefe")
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})

	t.Run("Re-Approval Replaces Existing Row", func(t *testing.T) {
		// ON CONFLICT (member_id) makes a second approval an update,
		// so the same call shape succeeds for an existing member.
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO credentials`).
			WithArgs(int64(7), "thatom").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := sqlxDB.Beginx()
		require.NoError(t, err)

		err = repo.UpsertTx(tx, 7, "thatom")
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})

	t.Run("Username Collision", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO credentials`).
			WithArgs(int64(8), "tmolefe").
			WillReturnError(fmt.Errorf(`duplicate key value violates unique constraint "credentials_username_key"`))
		mock.ExpectRollback()

		tx, err := sqlxDB.Beginx()
		require.NoError(t, err)

		err = repo.UpsertTx(tx, 8, "tmolefe")
		assert.Error(t, err)
		assert.True(t, IsUniqueViolation(err))
		require.NoError(t, tx.Rollback())

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}

func TestUsernameExistsTx(t *testing.T) {
	repo, sqlxDB, mock, done := newCredentialRepoMock(t)
	defer done()

	t.Run("Taken", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM credentials WHERE username`).
			WithArgs("tmolefe").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		tx, err := sqlxDB.Beginx()
		require.NoError(t, err)

		exists, err := repo.UsernameExistsTx(tx, "tmolefe")
		require.NoError(t, err)
		assert.True(t, exists)
		require.NoError(t, tx.Rollback())

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})

	t.Run("Free", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM credentials WHERE username`).
			WithArgs("tmolefe2").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectRollback()

		tx, err := sqlxDB.Beginx()
		require.NoError(t, err)

		exists, err := repo.UsernameExistsTx(tx, "tmolefe2")
		require.NoError(t, err)
		assert.False(t, exists)
		require.NoError(t, tx.Rollback())

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}

func TestFindByIdentifier(t *testing.T) {
	repo, _, mock, done := newCredentialRepoMock(t)
	defer done()

	joinedColumns := []string{
		"member_id", "username", "password_hash", "password_set_at", "created_at", "updated_at",
		"id", "first_name", "last_name", "email", "phone", "date_of_birth",
		"membership_type", "application_status", "member_status", "payment_status",
		"membership_number", "review_comment", "reviewed_at", "created_at", "updated_at",
	}

	t.Run("By Username", func(t *testing.T) {
		now := time.Now()

		mock.ExpectQuery(`FROM credentials c\s+JOIN members m`).
			WithArgs("tmolefe").
			WillReturnRows(sqlmock.NewRows(joinedColumns).AddRow(
				int64(7), "tmolefe", "$2a$10$hash", now, now, now,
				int64(7), "Thato", "Molefe", "thato@example.com", "+26771234567", nil,
				"professional", "approved", "active", "verified",
				"BSPCP260007", nil, now, now, now,
			))

		cred, member, err := repo.FindByIdentifier("tmolefe")
		require.NoError(t, err)
		assert.Equal(t, int64(7), cred.MemberID)
		assert.Equal(t, "tmolefe", cred.Username)
		assert.True(t, cred.HasPassword())
		assert.Equal(t, "Thato", member.FirstName)
		assert.Equal(t, "active", member.MemberStatus)

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})

	t.Run("Password Not Yet Set", func(t *testing.T) {
		now := time.Now()

		mock.ExpectQuery(`FROM credentials c\s+JOIN members m`).
			WithArgs("thato@example.com").
			WillReturnRows(sqlmock.NewRows(joinedColumns).AddRow(
				int64(7), "tmolefe", nil, nil, now, now,
				int64(7), "Thato", "Molefe", "thato@example.com", "+26771234567", nil,
				"professional", "approved", "pending_password_setup", "not_requested",
				"BSPCP260007", nil, now, now, now,
			))

		cred, member, err := repo.FindByIdentifier("thato@example.com")
		require.NoError(t, err)
		assert.False(t, cred.HasPassword())
		assert.Equal(t, "pending_password_setup", member.MemberStatus)

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})

	t.Run("Unknown Identifier", func(t *testing.T) {
		mock.ExpectQuery(`FROM credentials c\s+JOIN members m`).
			WithArgs("nobody").
			WillReturnError(sql.ErrNoRows)

		cred, member, err := repo.FindByIdentifier("nobody")
		assert.Nil(t, cred)
		assert.Nil(t, member)
		assert.ErrorIs(t, err, ErrNotFound)

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}

func TestSetPasswordTx(t *testing.T) {
	repo, sqlxDB, mock, done := newCredentialRepoMock(t)
	defer done()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE credentials`).
			WithArgs("$2a$10$newhash", int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := sqlxDB.Beginx()
		require.NoError(t, err)

		err = repo.SetPasswordTx(tx, 7, "$2a$10$newhash")
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})

	t.Run("No Credential Row", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE credentials`).
			WithArgs("$2a$10$newhash", int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		tx, err := sqlxDB.Beginx()
		require.NoError(t, err)

		err = repo.SetPasswordTx(tx, 99, "$2a$10$newhash")
		assert.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, tx.Rollback())

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("pq: duplicate key value violates unique constraint")))
	assert.False(t, IsUniqueViolation(fmt.Errorf("connection refused")))
	assert.False(t, IsUniqueViolation(nil))
}
