package services

import (
	"fmt"
	"mime/multipart"
	"strconv"

	"github.com/bspcp/membership-backend/internal/database"
	"github.com/bspcp/membership-backend/internal/models"
	stdjwt "github.com/bspcp/membership-backend/pkg/jwt"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PaymentService drives the payment proof verification state machine:
// not_requested -> requested -> uploaded -> verified | rejected,
// with rejected -> uploaded on resubmission.
type PaymentService struct {
	memberRepo   *database.MemberRepository
	paymentRepo  *database.PaymentRepository
	tokenRepo    *database.TokenRepository
	audit        *AuditService
	email        *EmailService
	uploads      *UploadService
	jwt          *stdjwt.Service
	logger       *logrus.Logger
	baseURL      string
	maxProofSize int64
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	memberRepo *database.MemberRepository,
	paymentRepo *database.PaymentRepository,
	tokenRepo *database.TokenRepository,
	audit *AuditService,
	email *EmailService,
	uploads *UploadService,
	jwtService *stdjwt.Service,
	logger *logrus.Logger,
	baseURL string,
	maxProofSize int64,
) *PaymentService {
	return &PaymentService{
		memberRepo:   memberRepo,
		paymentRepo:  paymentRepo,
		tokenRepo:    tokenRepo,
		audit:        audit,
		email:        email,
		uploads:      uploads,
		jwt:          jwtService,
		logger:       logger,
		baseURL:      baseURL,
		maxProofSize: maxProofSize,
	}
}

// RequestPayment moves a member to payment_status=requested and emails a
// 31-day upload link. Allowed from not_requested, and again from requested
// (re-request just re-issues the link).
func (s *PaymentService) RequestPayment(memberID int64, actor Actor) error {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return err
	}

	tx, err := s.paymentRepo.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	prior, err := s.paymentRepo.SetPaymentStatusTx(tx, memberID,
		[]string{models.PaymentStatusNotRequested, models.PaymentStatusRequested},
		models.PaymentStatusRequested)
	if err != nil {
		return err
	}

	if err := s.audit.AppendTx(tx, actor, "payment_requested", "member", strconv.FormatInt(memberID, 10),
		map[string]interface{}{"payment_status": prior},
		map[string]interface{}{"payment_status": models.PaymentStatusRequested}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.sendUploadLink(member, TemplatePaymentRequested, nil)
	return nil
}

// SubmitProof records a proof uploaded by a logged-in member.
func (s *PaymentService) SubmitProof(memberID int64, file *multipart.FileHeader, actor Actor) (*models.PaymentProof, error) {
	return s.submitProof(memberID, nil, file, actor)
}

// SubmitProofWithToken redeems an emailed upload link. The token is consumed
// in the same transaction as the proof insert, so a replay after a completed
// upload fails even inside the 31-day window.
func (s *PaymentService) SubmitProofWithToken(tokenString string, file *multipart.FileHeader, actor Actor) (*models.PaymentProof, error) {
	claims, err := s.jwt.ValidateActionToken(tokenString, models.TokenPurposePaymentUpload)
	if err != nil {
		return nil, err
	}
	jti, err := claims.JTI()
	if err != nil {
		return nil, fmt.Errorf("%w: bad token id", stdjwt.ErrTokenInvalid)
	}
	actor.Type = models.ActorTypeMember
	actor.ID = strconv.FormatInt(claims.MemberID, 10)
	return s.submitProof(claims.MemberID, &jti, file, actor)
}

// submitProof stores the uploaded file and records the proof, the upload log
// entry, and the status transition to uploaded in a single transaction.
// Allowed from requested (first upload) and rejected (resubmission).
func (s *PaymentService) submitProof(memberID int64, jti *uuid.UUID, file *multipart.FileHeader, actor Actor) (*models.PaymentProof, error) {
	if _, err := s.memberRepo.GetByID(memberID); err != nil {
		return nil, err
	}

	stored, err := s.uploads.Store(file, s.maxProofSize)
	if err != nil {
		return nil, err
	}

	tx, err := s.paymentRepo.Beginx()
	if err != nil {
		s.uploads.Delete(stored.Path)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	submit := func() (*models.PaymentProof, error) {
		if jti != nil {
			if err := s.tokenRepo.ConsumeTx(tx, *jti, memberID, models.TokenPurposePaymentUpload); err != nil {
				return nil, err
			}
		}

		prior, err := s.paymentRepo.SetPaymentStatusTx(tx, memberID,
			[]string{models.PaymentStatusRequested, models.PaymentStatusRejected},
			models.PaymentStatusUploaded)
		if err != nil {
			return nil, err
		}

		proof := &models.PaymentProof{
			MemberID: memberID,
			FilePath: stored.Path,
			FileName: stored.Name,
			FileSize: stored.Size,
			MimeType: stored.MimeType,
		}
		if err := s.paymentRepo.InsertProofTx(tx, proof); err != nil {
			return nil, err
		}

		entry := &models.UploadLog{
			MemberID:    memberID,
			ProofID:     &proof.ID,
			FileName:    stored.Name,
			FileSize:    stored.Size,
			MimeType:    stored.MimeType,
			SubmitterIP: actor.IPAddress,
			UserAgent:   models.NewNullString(actor.UserAgent),
		}
		if err := s.paymentRepo.InsertUploadLogTx(tx, entry); err != nil {
			return nil, err
		}

		if err := s.audit.AppendTx(tx, actor, "payment_proof_uploaded", "member", strconv.FormatInt(memberID, 10),
			map[string]interface{}{"payment_status": prior},
			map[string]interface{}{"payment_status": models.PaymentStatusUploaded, "proof_id": proof.ID}); err != nil {
			return nil, err
		}

		return proof, tx.Commit()
	}

	proof, err := submit()
	if err != nil {
		s.uploads.Delete(stored.Path)
		return nil, err
	}
	return proof, nil
}

// VerifyProof marks the latest proof verified and moves the member to
// payment_status=verified. Only allowed from uploaded.
func (s *PaymentService) VerifyProof(memberID int64, adminID uuid.UUID, notes string, actor Actor) error {
	return s.review(memberID, adminID, notes, actor, models.PaymentStatusVerified, "payment_verified")
}

// RejectProof marks the latest proof rejected, moves the member to
// payment_status=rejected, and re-sends the upload link so a corrected
// proof can be submitted against the same window.
func (s *PaymentService) RejectProof(memberID int64, adminID uuid.UUID, notes string, actor Actor) error {
	return s.review(memberID, adminID, notes, actor, models.PaymentStatusRejected, "payment_rejected")
}

func (s *PaymentService) review(memberID int64, adminID uuid.UUID, notes string, actor Actor, toStatus, action string) error {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return err
	}
	proof, err := s.paymentRepo.GetLatestProof(memberID)
	if err != nil {
		return err
	}

	tx, err := s.paymentRepo.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	prior, err := s.paymentRepo.SetPaymentStatusTx(tx, memberID,
		[]string{models.PaymentStatusUploaded}, toStatus)
	if err != nil {
		return err
	}

	if err := s.paymentRepo.ReviewProofTx(tx, proof.ID, adminID, notes); err != nil {
		return err
	}

	if err := s.audit.AppendTx(tx, actor, action, "member", strconv.FormatInt(memberID, 10),
		map[string]interface{}{"payment_status": prior},
		map[string]interface{}{"payment_status": toStatus, "proof_id": proof.ID, "notes": notes}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if toStatus == models.PaymentStatusVerified {
		s.email.SendAsync(member.Email, TemplatePaymentVerified, map[string]interface{}{
			"Name": member.FullName(),
		})
	} else {
		s.sendUploadLink(member, TemplatePaymentRejected, map[string]interface{}{"Notes": notes})
	}
	return nil
}

// History returns a member's proofs and append-only upload log
func (s *PaymentService) History(memberID int64) ([]models.PaymentProof, []models.UploadLog, error) {
	proofs, err := s.paymentRepo.ListProofs(memberID)
	if err != nil {
		return nil, nil, err
	}
	logs, err := s.paymentRepo.ListUploadLogs(memberID)
	if err != nil {
		return nil, nil, err
	}
	return proofs, logs, nil
}

func (s *PaymentService) sendUploadLink(member *models.Member, templateID string, extra map[string]interface{}) {
	token, _, err := s.jwt.GenerateActionToken(member.ID, models.TokenPurposePaymentUpload, s.jwt.UploadTokenExpiry())
	if err != nil {
		s.logger.WithError(err).Error("Failed to generate upload token")
		return
	}
	data := map[string]interface{}{
		"Name":       member.FullName(),
		"UploadLink": s.baseURL + "/upload-payment?token=" + token,
	}
	for k, v := range extra {
		data[k] = v
	}
	s.email.SendAsync(member.Email, templateID, data)
}
