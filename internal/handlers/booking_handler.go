package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bspcp/membership-backend/internal/database"
	"github.com/bspcp/membership-backend/internal/middleware"
	"github.com/bspcp/membership-backend/internal/models"
	"github.com/bspcp/membership-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// BookingHandler handles counselling session bookings
type BookingHandler struct {
	bookingRepo *database.BookingRepository
	memberRepo  *database.MemberRepository
	emailSvc    *services.EmailService
	auditSvc    *services.AuditService
	logger      *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(
	bookingRepo *database.BookingRepository,
	memberRepo *database.MemberRepository,
	emailSvc *services.EmailService,
	auditSvc *services.AuditService,
	logger *logrus.Logger,
) *BookingHandler {
	return &BookingHandler{
		bookingRepo: bookingRepo,
		memberRepo:  memberRepo,
		emailSvc:    emailSvc,
		auditSvc:    auditSvc,
		logger:      logger,
	}
}

// CreateBookingRequest represents a public booking request
type CreateBookingRequest struct {
	MemberID    int64  `json:"member_id" binding:"required"`
	ClientName  string `json:"client_name" binding:"required"`
	ClientEmail string `json:"client_email" binding:"required,email"`
	ClientPhone string `json:"client_phone"`
	SessionAt   string `json:"session_at" binding:"required"`
	Notes       string `json:"notes"`
}

// Create books a session with a counsellor. Public, no login required.
// POST /api/bookings
func (h *BookingHandler) Create(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	sessionAt, err := time.Parse(time.RFC3339, req.SessionAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "session_at must be an RFC3339 timestamp",
		})
		return
	}
	if sessionAt.Before(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "session_at must be in the future",
		})
		return
	}

	member, err := h.memberRepo.GetByID(req.MemberID)
	if err != nil {
		notFoundOr500(c, err, "Counsellor")
		return
	}
	if !member.IsBookable() {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "not_bookable",
			"message": "This counsellor is not currently accepting bookings",
		})
		return
	}

	booking := &models.Booking{
		MemberID:    member.ID,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		ClientPhone: models.NewNullString(req.ClientPhone),
		SessionAt:   sessionAt,
		Notes:       models.NewNullString(req.Notes),
	}
	if err := h.bookingRepo.Create(booking); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "booking_failed",
			"message": "Failed to create booking",
			"details": err.Error(),
		})
		return
	}

	if err := h.auditSvc.Append(anonymousActor(c), "booking_created", "booking",
		strconv.FormatInt(booking.ID, 10), nil,
		map[string]interface{}{
			"member_id":  member.ID,
			"session_at": sessionAt,
			"status":     models.BookingStatusPending,
		}); err != nil {
		h.logger.WithError(err).Error("Failed to audit booking creation")
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Booking request received",
		"booking": booking,
	})
}

// ListMine returns the logged-in counsellor's bookings
// GET /api/bookings/me
func (h *BookingHandler) ListMine(c *gin.Context) {
	memberCtx := middleware.MustGetMemberContext(c)

	bookings, err := h.bookingRepo.ListByMember(memberCtx.MemberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to list bookings",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// Confirm confirms a pending or rescheduled booking
// POST /api/bookings/:id/confirm
func (h *BookingHandler) Confirm(c *gin.Context) {
	h.transition(c, models.BookingStatusConfirmed,
		[]string{models.BookingStatusPending, models.BookingStatusRescheduled},
		"booking_confirmed", services.TemplateBookingConfirmed, "Booking confirmed")
}

// Cancel cancels a booking that has not already been cancelled
// POST /api/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	h.transition(c, models.BookingStatusCancelled,
		[]string{models.BookingStatusPending, models.BookingStatusConfirmed, models.BookingStatusRescheduled},
		"booking_cancelled", services.TemplateBookingCancelled, "Booking cancelled")
}

// RescheduleRequest carries the new session time
type RescheduleRequest struct {
	SessionAt string `json:"session_at" binding:"required"`
}

// Reschedule moves a booking to a new time
// POST /api/bookings/:id/reschedule
func (h *BookingHandler) Reschedule(c *gin.Context) {
	booking, ok := h.ownedBooking(c)
	if !ok {
		return
	}

	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}
	sessionAt, err := time.Parse(time.RFC3339, req.SessionAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "session_at must be an RFC3339 timestamp",
		})
		return
	}

	if booking.Status == models.BookingStatusCancelled {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_transition",
			"message": "A cancelled booking cannot be rescheduled",
		})
		return
	}

	if err := h.bookingRepo.Reschedule(booking.ID, sessionAt); err != nil {
		notFoundOr500(c, err, "Booking")
		return
	}

	actor := memberActor(c, strconv.FormatInt(booking.MemberID, 10))
	if err := h.auditSvc.Append(actor, "booking_rescheduled", "booking",
		strconv.FormatInt(booking.ID, 10),
		map[string]interface{}{"session_at": booking.SessionAt, "status": booking.Status},
		map[string]interface{}{"session_at": sessionAt, "status": models.BookingStatusRescheduled}); err != nil {
		h.logger.WithError(err).Error("Failed to audit reschedule")
	}

	c.JSON(http.StatusOK, gin.H{"message": "Booking rescheduled"})
}

// transition applies a guarded status change on a booking owned by the
// logged-in counsellor and emails the client best-effort.
func (h *BookingHandler) transition(c *gin.Context, toStatus string, fromStatuses []string, action, templateID, message string) {
	booking, ok := h.ownedBooking(c)
	if !ok {
		return
	}

	if err := h.bookingRepo.SetStatus(booking.ID, fromStatuses, toStatus); err != nil {
		if err == database.ErrNotFound {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "invalid_transition",
				"message": "Booking is not in a state that allows this change",
			})
			return
		}
		notFoundOr500(c, err, "Booking")
		return
	}

	actor := memberActor(c, strconv.FormatInt(booking.MemberID, 10))
	if err := h.auditSvc.Append(actor, action, "booking",
		strconv.FormatInt(booking.ID, 10),
		map[string]interface{}{"status": booking.Status},
		map[string]interface{}{"status": toStatus}); err != nil {
		h.logger.WithError(err).Error("Failed to audit booking transition")
	}

	if member, err := h.memberRepo.GetByID(booking.MemberID); err == nil {
		h.emailSvc.SendAsync(booking.ClientEmail, templateID, map[string]interface{}{
			"ClientName":     booking.ClientName,
			"CounsellorName": member.FullName(),
			"SessionAt":      booking.SessionAt.Format("Monday, 2 January 2006 at 15:04"),
		})
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

// ownedBooking loads the booking and verifies the logged-in member owns it
func (h *BookingHandler) ownedBooking(c *gin.Context) (*models.Booking, bool) {
	memberCtx := middleware.MustGetMemberContext(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid booking id",
		})
		return nil, false
	}

	booking, err := h.bookingRepo.GetByID(id)
	if err != nil {
		notFoundOr500(c, err, "Booking")
		return nil, false
	}
	if booking.MemberID != memberCtx.MemberID {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "This booking belongs to another member",
		})
		return nil, false
	}
	return booking, true
}
