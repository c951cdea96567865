package services

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bspcp/membership-backend/internal/config"
	"github.com/bspcp/membership-backend/internal/database"
	stdjwt "github.com/bspcp/membership-backend/pkg/jwt"
)

// takenSet builds an existence prober over a fixed set of usernames
func takenSet(names ...string) func(string) (bool, error) {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(candidate string) (bool, error) {
		return set[candidate], nil
	}
}

func TestGenerateUsernameCandidateOrder(t *testing.T) {
	t.Run("First candidate free", func(t *testing.T) {
		username, err := GenerateUsername("Thato", "Molefe", takenSet())
		require.NoError(t, err)
		assert.Equal(t, "tmolefe", username)
	})

	t.Run("Falls through to second candidate", func(t *testing.T) {
		username, err := GenerateUsername("Thato", "Molefe", takenSet("tmolefe"))
		require.NoError(t, err)
		assert.Equal(t, "thatom", username)
	})

	t.Run("Falls through to third candidate", func(t *testing.T) {
		username, err := GenerateUsername("Thato", "Molefe", takenSet("tmolefe", "thatom"))
		require.NoError(t, err)
		assert.Equal(t, "thatomolefe", username)
	})

	t.Run("Numeric suffix when all literals taken", func(t *testing.T) {
		username, err := GenerateUsername("Thato", "Molefe", takenSet("tmolefe", "thatom", "thatomolefe"))
		require.NoError(t, err)
		assert.Equal(t, "tmolefe2", username)
	})

	t.Run("Suffixes advance sequentially", func(t *testing.T) {
		username, err := GenerateUsername("Thato", "Molefe",
			takenSet("tmolefe", "thatom", "thatomolefe", "tmolefe2", "tmolefe3"))
		require.NoError(t, err)
		assert.Equal(t, "tmolefe4", username)
	})
}

func TestGenerateUsernameNormalization(t *testing.T) {
	t.Run("Strips non-letters and lowercases", func(t *testing.T) {
		username, err := GenerateUsername("Marie-Anne", "O'Brien", takenSet())
		require.NoError(t, err)
		assert.Equal(t, "mobrien", username)
	})

	t.Run("Empty names use fallbacks", func(t *testing.T) {
		username, err := GenerateUsername("", "", takenSet())
		require.NoError(t, err)
		assert.Equal(t, "mbspcp", username)
	})
}

func TestGenerateUsernameTimestampFallback(t *testing.T) {
	// Every base and every numeric suffix is taken; the timestamp
	// fallback is the first probe that can succeed.
	exhausted := func(candidate string) (bool, error) {
		if len(candidate) > len("tmolefe") && candidate[:7] == "tmolefe" {
			// tmolefe2..tmolefe999 taken, timestamp suffix free
			if _, err := strconv.Atoi(candidate[7:]); err == nil && len(candidate)-7 <= 3 {
				return true, nil
			}
			return false, nil
		}
		switch candidate {
		case "tmolefe", "thatom", "thatomolefe":
			return true, nil
		}
		// thatom2.., thatomolefe2.. also taken
		return true, nil
	}

	username, err := GenerateUsername("Thato", "Molefe", exhausted)
	require.NoError(t, err)
	assert.Greater(t, len(username), len("tmolefe")+3)
	assert.Equal(t, "tmolefe", username[:7])
}

func newMembershipServiceTest(t *testing.T) (*MembershipService, sqlmock.Sqlmock, func()) {
	t.Helper()

	sqlxDB, mock, closeDB := newServiceMockDB(t)
	logger := discardLogger()

	emailSvc, err := NewEmailService(config.SMTPConfig{Mode: "dev"}, logger)
	require.NoError(t, err)

	svc := NewMembershipService(
		database.NewMemberRepository(sqlxDB),
		database.NewCredentialRepository(sqlxDB),
		database.NewTokenRepository(sqlxDB),
		NewAuditService(database.NewAuditLogRepository(sqlxDB)),
		emailSvc,
		stdjwt.NewService("test-secret", time.Hour, 24*time.Hour, 31*24*time.Hour),
		logger,
		"http://localhost:3000",
		bcrypt.MinCost,
	)
	return svc, mock, closeDB
}

// A concurrent approval can take the generated username between the
// existence probe and the credential insert; the approval is retried once
// against a fresh snapshot.
func TestApproveRetriesOnUsernameConflict(t *testing.T) {
	svc, mock, done := newMembershipServiceTest(t)
	defer done()

	now := time.Now()
	pendingRow := func() *sqlmock.Rows {
		return sqlmock.NewRows(memberSelectColumns()).AddRow(
			int64(12), "Thato", "Molefe", "thato@example.com", "+26771234567", nil,
			"professional", "pending", "pending", "not_requested",
			nil, nil, nil, now, now,
		)
	}

	mock.ExpectQuery(`FROM members\s+WHERE id`).
		WithArgs(int64(12)).
		WillReturnRows(pendingRow())

	// First attempt: tmolefe probes free but the insert loses the race.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM credentials`).
		WithArgs("tmolefe").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`UPDATE members`).
		WithArgs("approved", "pending_password_setup", sqlmock.AnyArg(), "", int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO credentials`).
		WithArgs(int64(12), "tmolefe").
		WillReturnError(fmt.Errorf(`pq: duplicate key value violates unique constraint "credentials_username_key"`))
	mock.ExpectRollback()

	// Retry: the fresh snapshot sees tmolefe taken and falls through.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM credentials`).
		WithArgs("tmolefe").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM credentials`).
		WithArgs("thatom").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`UPDATE members`).
		WithArgs("approved", "pending_password_setup", sqlmock.AnyArg(), "", int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO credentials`).
		WithArgs(int64(12), "thatom").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectQuery(`FROM members\s+WHERE id`).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows(memberSelectColumns()).AddRow(
			int64(12), "Thato", "Molefe", "thato@example.com", "+26771234567", nil,
			"professional", "approved", "pending_password_setup", "not_requested",
			"BSPCP260012", nil, now, now, now,
		))

	updated, err := svc.Approve(12, Actor{Type: "admin", ID: "a-1"}, "")
	require.NoError(t, err)

	assert.Equal(t, "approved", updated.ApplicationStatus)
	assert.Equal(t, "pending_password_setup", updated.MemberStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A non-conflict failure inside the approval transaction is not retried.
func TestApproveDoesNotRetryOtherFailures(t *testing.T) {
	svc, mock, done := newMembershipServiceTest(t)
	defer done()

	now := time.Now()
	mock.ExpectQuery(`FROM members\s+WHERE id`).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows(memberSelectColumns()).AddRow(
			int64(12), "Thato", "Molefe", "thato@example.com", "+26771234567", nil,
			"professional", "pending", "pending", "not_requested",
			nil, nil, nil, now, now,
		))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM credentials`).
		WithArgs("tmolefe").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`UPDATE members`).
		WithArgs("approved", "pending_password_setup", sqlmock.AnyArg(), "", int64(12)).
		WillReturnError(fmt.Errorf("pq: connection reset by peer"))
	mock.ExpectRollback()

	_, err := svc.Approve(12, Actor{Type: "admin", ID: "a-1"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipNumberFormat(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "BSPCP260007", MembershipNumber(now, 7))
	assert.Equal(t, "BSPCP260123", MembershipNumber(now, 123))
	assert.Equal(t, "BSPCP2612345", MembershipNumber(now, 12345))

	previous := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "BSPCP250042", MembershipNumber(previous, 42))
}
