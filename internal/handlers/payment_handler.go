package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bspcp/membership-backend/internal/database"
	"github.com/bspcp/membership-backend/internal/middleware"
	"github.com/bspcp/membership-backend/internal/services"
	"github.com/bspcp/membership-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PaymentHandler handles the payment proof verification workflow
type PaymentHandler struct {
	paymentSvc *services.PaymentService
	logger     *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentSvc *services.PaymentService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentSvc: paymentSvc,
		logger:     logger,
	}
}

// Request asks a member for proof of payment and emails the upload link
// POST /api/admin/members/:id/payment/request
func (h *PaymentHandler) Request(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid member id",
		})
		return
	}

	if err := h.paymentSvc.RequestPayment(id, adminActor(c)); err != nil {
		h.respondTransitionError(c, err, "Member")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment requested and upload link emailed",
	})
}

// Upload accepts a payment proof from a logged-in member
// POST /api/payments/proof
func (h *PaymentHandler) Upload(c *gin.Context) {
	memberCtx := middleware.MustGetMemberContext(c)

	file, err := c.FormFile("proof")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "A proof file is required",
		})
		return
	}

	actor := memberActor(c, strconv.FormatInt(memberCtx.MemberID, 10))
	proof, err := h.paymentSvc.SubmitProof(memberCtx.MemberID, file, actor)
	if err != nil {
		h.respondUploadError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Payment proof uploaded",
		"proof":   proof,
	})
}

// UploadWithToken accepts a payment proof via an emailed one-time link
// POST /api/payments/proof/token
func (h *PaymentHandler) UploadWithToken(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		tokenString = c.PostForm("token")
	}
	if tokenString == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "An upload token is required",
		})
		return
	}

	file, err := c.FormFile("proof")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "A proof file is required",
		})
		return
	}

	proof, err := h.paymentSvc.SubmitProofWithToken(tokenString, file, anonymousActor(c))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "token_expired",
				"message": "This upload link has expired. Please contact BSPCP for a new one.",
				"code":    "TOKEN_EXPIRED",
			})
		case errors.Is(err, database.ErrTokenConsumed):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "token_consumed",
				"message": "This upload link has already been used",
				"code":    "TOKEN_CONSUMED",
			})
		case errors.Is(err, jwt.ErrTokenInvalid):
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "This upload link is invalid",
				"code":    "INVALID_TOKEN",
			})
		default:
			h.respondUploadError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Payment proof uploaded",
		"proof":   proof,
	})
}

// Verify marks the latest proof as verified
// POST /api/admin/members/:id/payment/verify
func (h *PaymentHandler) Verify(c *gin.Context) {
	h.review(c, h.paymentSvc.VerifyProof, "Payment verified")
}

// Reject marks the latest proof as rejected and re-sends the upload link
// POST /api/admin/members/:id/payment/reject
func (h *PaymentHandler) Reject(c *gin.Context) {
	h.review(c, h.paymentSvc.RejectProof, "Payment proof rejected")
}

// ReviewPaymentRequest carries the optional reviewer notes
type ReviewPaymentRequest struct {
	Notes string `json:"notes"`
}

func (h *PaymentHandler) review(c *gin.Context, fn func(int64, uuid.UUID, string, services.Actor) error, message string) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid member id",
		})
		return
	}

	var req ReviewPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	adminCtx := middleware.MustGetAdminContext(c)
	if err := fn(id, adminCtx.AdminID, req.Notes, adminActor(c)); err != nil {
		h.respondTransitionError(c, err, "Payment proof")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

// History returns a member's payment proofs and upload log
// GET /api/admin/members/:id/payment/history
func (h *PaymentHandler) History(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid member id",
		})
		return
	}

	proofs, logs, err := h.paymentSvc.History(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to load payment history",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"proofs":      proofs,
		"upload_logs": logs,
	})
}

func (h *PaymentHandler) respondTransitionError(c *gin.Context, err error, entity string) {
	if errors.Is(err, database.ErrInvalidPaymentTransition) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_transition",
			"message": err.Error(),
		})
		return
	}
	notFoundOr500(c, err, entity)
}

func (h *PaymentHandler) respondUploadError(c *gin.Context, err error) {
	if errors.Is(err, database.ErrInvalidPaymentTransition) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_transition",
			"message": err.Error(),
		})
		return
	}
	if err == database.ErrNotFound {
		notFoundOr500(c, err, "Member")
		return
	}
	respondStoreError(c, err)
}
