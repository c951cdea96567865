package services

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/bspcp/membership-backend/internal/database"
	"github.com/bspcp/membership-backend/internal/models"
	stdjwt "github.com/bspcp/membership-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidTransition is returned when a lifecycle operation is attempted
// from a state that does not permit it.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// MembershipService drives the application lifecycle state machine:
// approval, rejection, password setup and activation.
type MembershipService struct {
	memberRepo *database.MemberRepository
	credRepo   *database.CredentialRepository
	tokenRepo  *database.TokenRepository
	audit      *AuditService
	email      *EmailService
	jwt        *stdjwt.Service
	logger     *logrus.Logger
	baseURL    string
	bcryptCost int
}

// NewMembershipService creates a new membership service
func NewMembershipService(
	memberRepo *database.MemberRepository,
	credRepo *database.CredentialRepository,
	tokenRepo *database.TokenRepository,
	audit *AuditService,
	email *EmailService,
	jwtService *stdjwt.Service,
	logger *logrus.Logger,
	baseURL string,
	bcryptCost int,
) *MembershipService {
	return &MembershipService{
		memberRepo: memberRepo,
		credRepo:   credRepo,
		tokenRepo:  tokenRepo,
		audit:      audit,
		email:      email,
		jwt:        jwtService,
		logger:     logger,
		baseURL:    baseURL,
		bcryptCost: bcryptCost,
	}
}

// MembershipNumber builds the number assigned at approval:
// BSPCP, two-digit year, member id zero-padded to four digits.
func MembershipNumber(now time.Time, memberID int64) string {
	return fmt.Sprintf("BSPCP%02d%04d", now.Year()%100, memberID)
}

// Approve transitions an application to approved. The membership number is
// assigned if absent, the credential row is created or refreshed (upsert
// keyed by member_id, so re-approval never duplicates), the member moves to
// pending_password_setup, and a 24h setup link is emailed. Username
// generation and the credential insert share the approval transaction; a
// unique-violation on the username triggers one regeneration retry.
func (s *MembershipService) Approve(memberID int64, actor Actor, comment string) (*models.Member, error) {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return nil, err
	}

	var username string
	attempt := func() error {
		tx, err := s.memberRepo.Beginx()
		if err != nil {
			return fmt.Errorf("failed to begin approval transaction: %w", err)
		}
		defer tx.Rollback()

		exists := func(candidate string) (bool, error) {
			return s.credRepo.UsernameExistsTx(tx, candidate)
		}
		username, err = GenerateUsername(member.FirstName, member.LastName, exists)
		if err != nil {
			return err
		}

		number := MembershipNumber(time.Now(), member.ID)
		if err := s.memberRepo.ApproveTx(tx, member.ID, number, comment); err != nil {
			return err
		}
		if err := s.credRepo.UpsertTx(tx, member.ID, username); err != nil {
			return err
		}

		if err := s.audit.AppendTx(tx, actor, "application_approved", "member", strconv.FormatInt(member.ID, 10),
			map[string]interface{}{
				"application_status": member.ApplicationStatus,
				"member_status":      member.MemberStatus,
			},
			map[string]interface{}{
				"application_status": models.ApplicationStatusApproved,
				"member_status":      models.MemberStatusPendingPasswordSetup,
				"username":           username,
			}); err != nil {
			return err
		}

		return tx.Commit()
	}

	if err := attempt(); err != nil {
		if database.IsUniqueViolation(err) {
			// Lost a race with a concurrent approval of an identically
			// named applicant; regenerate against the new snapshot.
			if err := attempt(); err != nil {
				return nil, err
			}
		} else {
			return nil, err
		}
	}

	updated, err := s.memberRepo.GetByID(member.ID)
	if err != nil {
		return nil, err
	}

	s.sendSetupLink(updated, username)

	return updated, nil
}

// ResendSetupLink issues a fresh password-setup token for an approved member
// still waiting on password setup.
func (s *MembershipService) ResendSetupLink(memberID int64) error {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return err
	}
	if member.MemberStatus != models.MemberStatusPendingPasswordSetup {
		return ErrInvalidTransition
	}
	cred, err := s.credRepo.GetByMemberID(memberID)
	if err != nil {
		return err
	}
	s.sendSetupLink(member, cred.Username)
	return nil
}

func (s *MembershipService) sendSetupLink(member *models.Member, username string) {
	token, _, err := s.jwt.GenerateActionToken(member.ID, models.TokenPurposePasswordSetup, s.jwt.SetupTokenExpiry())
	if err != nil {
		s.logger.WithError(err).Error("Failed to generate setup token")
		return
	}
	s.email.SendAsync(member.Email, TemplateApplicationApproved, map[string]interface{}{
		"Name":             member.FullName(),
		"MembershipNumber": member.MembershipNumber.String,
		"Username":         username,
		"SetupLink":        s.baseURL + "/setup-password?token=" + token,
	})
}

// Reject transitions an application to rejected. No credential is created;
// subsequent logins surface a distinct "application denied" error.
func (s *MembershipService) Reject(memberID int64, actor Actor, comment string) (*models.Member, error) {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return nil, err
	}

	if err := s.memberRepo.Reject(member.ID, comment); err != nil {
		return nil, err
	}

	if err := s.audit.Append(actor, "application_rejected", "member", strconv.FormatInt(member.ID, 10),
		map[string]interface{}{"application_status": member.ApplicationStatus},
		map[string]interface{}{"application_status": models.ApplicationStatusRejected, "comment": comment}); err != nil {
		s.logger.WithError(err).Error("Failed to audit rejection")
	}

	s.email.SendAsync(member.Email, TemplateApplicationRejected, map[string]interface{}{
		"Name":    member.FullName(),
		"Comment": comment,
	})

	return s.memberRepo.GetByID(member.ID)
}

// SetupPassword redeems a password-setup token: stores the bcrypt hash,
// activates the member, and consumes the token so a replay within the
// expiry window fails. All three writes share one transaction.
func (s *MembershipService) SetupPassword(tokenString, password string, actor Actor) error {
	claims, err := s.jwt.ValidateActionToken(tokenString, models.TokenPurposePasswordSetup)
	if err != nil {
		return err
	}
	jti, err := claims.JTI()
	if err != nil {
		return fmt.Errorf("%w: bad token id", stdjwt.ErrTokenInvalid)
	}

	member, err := s.memberRepo.GetByID(claims.MemberID)
	if err != nil {
		return err
	}
	if member.ApplicationStatus != models.ApplicationStatusApproved {
		return ErrInvalidTransition
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := s.memberRepo.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.tokenRepo.ConsumeTx(tx, jti, member.ID, models.TokenPurposePasswordSetup); err != nil {
		return err
	}
	if err := s.credRepo.SetPasswordTx(tx, member.ID, string(hash)); err != nil {
		return err
	}
	if member.MemberStatus == models.MemberStatusPendingPasswordSetup {
		if err := s.memberRepo.ActivateTx(tx, member.ID); err != nil {
			return err
		}
	}

	actor.Type = models.ActorTypeMember
	actor.ID = strconv.FormatInt(member.ID, 10)
	if err := s.audit.AppendTx(tx, actor, "password_setup", "member", strconv.FormatInt(member.ID, 10),
		map[string]interface{}{"member_status": member.MemberStatus},
		map[string]interface{}{"member_status": models.MemberStatusActive}); err != nil {
		return err
	}

	return tx.Commit()
}

// ActivateOnLogin flips a pending_password_setup member to active after the
// first successful password login.
func (s *MembershipService) ActivateOnLogin(memberID int64, actor Actor) error {
	tx, err := s.memberRepo.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.memberRepo.ActivateTx(tx, memberID); err != nil {
		return err
	}

	if err := s.audit.AppendTx(tx, actor, "member_activated_on_login", "member", strconv.FormatInt(memberID, 10),
		map[string]interface{}{"member_status": models.MemberStatusPendingPasswordSetup},
		map[string]interface{}{"member_status": models.MemberStatusActive}); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteApplication removes a member with all dependent rows and
// best-effort deletes the underlying files.
func (s *MembershipService) DeleteApplication(memberID int64, actor Actor, uploads *UploadService) error {
	paths, err := s.memberRepo.DeleteCascade(memberID)
	if err != nil {
		return err
	}

	if err := s.audit.Append(actor, "application_deleted", "member", strconv.FormatInt(memberID, 10),
		nil, map[string]interface{}{"files_removed": len(paths)}); err != nil {
		s.logger.WithError(err).Error("Failed to audit deletion")
	}

	uploads.DeleteAll(paths)
	return nil
}

// usernameAlphabet is the base36 alphabet used by the final fallback
const usernameAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateUsername reproduces the legacy username scheme. Three candidate
// bases are built from the applicant's name (ASCII letters only, lowercased):
// first initial + last name, first name + last initial, first name + last
// name. Each literal form is tried first; then numeric suffixes 2..999 per
// candidate; then the first base with the current epoch millis; finally the
// first base with a random base36 suffix.
func GenerateUsername(firstName, lastName string, exists func(string) (bool, error)) (string, error) {
	first := asciiLetters(firstName)
	last := asciiLetters(lastName)
	if first == "" {
		first = "member"
	}
	if last == "" {
		last = "bspcp"
	}

	bases := []string{
		first[:1] + last,
		first + last[:1],
		first + last,
	}

	for _, base := range bases {
		taken, err := exists(base)
		if err != nil {
			return "", err
		}
		if !taken {
			return base, nil
		}
	}

	for _, base := range bases {
		for n := 2; n <= 999; n++ {
			candidate := base + strconv.Itoa(n)
			taken, err := exists(candidate)
			if err != nil {
				return "", err
			}
			if !taken {
				return candidate, nil
			}
		}
	}

	candidate := bases[0] + strconv.FormatInt(time.Now().UnixMilli(), 10)
	taken, err := exists(candidate)
	if err != nil {
		return "", err
	}
	if !taken {
		return candidate, nil
	}

	suffix := make([]byte, 8)
	for i := range suffix {
		suffix[i] = usernameAlphabet[rand.Intn(len(usernameAlphabet))]
	}
	return bases[0] + string(suffix), nil
}

// asciiLetters lowercases a name and strips everything but ASCII letters
func asciiLetters(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
