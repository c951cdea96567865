package handlers

import (
	"net/http"
	"strconv"

	"github.com/bspcp/membership-backend/internal/database"
	"github.com/bspcp/membership-backend/internal/middleware"
	"github.com/bspcp/membership-backend/internal/models"
	"github.com/bspcp/membership-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// MemberHandler handles member self-service and the public directory
type MemberHandler struct {
	memberRepo *database.MemberRepository
	auditSvc   *services.AuditService
	logger     *logrus.Logger
}

// NewMemberHandler creates a new MemberHandler
func NewMemberHandler(memberRepo *database.MemberRepository, auditSvc *services.AuditService, logger *logrus.Logger) *MemberHandler {
	return &MemberHandler{
		memberRepo: memberRepo,
		auditSvc:   auditSvc,
		logger:     logger,
	}
}

// GetProfile returns the logged-in member's full application record
// GET /api/members/me
func (h *MemberHandler) GetProfile(c *gin.Context) {
	memberCtx := middleware.MustGetMemberContext(c)

	app, err := h.memberRepo.GetApplication(memberCtx.MemberID)
	if err != nil {
		notFoundOr500(c, err, "Member")
		return
	}

	c.JSON(http.StatusOK, app)
}

// UpdateProfileRequest carries the member-editable profile fields
type UpdateProfileRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
}

// UpdateProfile updates the member-editable fields of the profile.
// Email, statuses and membership number are never member-writable.
// PUT /api/members/me
func (h *MemberHandler) UpdateProfile(c *gin.Context) {
	memberCtx := middleware.MustGetMemberContext(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	member, err := h.memberRepo.GetByID(memberCtx.MemberID)
	if err != nil {
		notFoundOr500(c, err, "Member")
		return
	}

	before := map[string]interface{}{
		"first_name": member.FirstName,
		"last_name":  member.LastName,
		"phone":      member.Phone,
	}

	member.FirstName = req.FirstName
	member.LastName = req.LastName
	member.Phone = req.Phone

	if err := h.memberRepo.UpdateProfile(member); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "update_failed",
			"message": "Failed to update profile",
			"details": err.Error(),
		})
		return
	}

	actor := memberActor(c, strconv.FormatInt(member.ID, 10))
	if err := h.auditSvc.Append(actor, "profile_updated", "member",
		strconv.FormatInt(member.ID, 10), before,
		map[string]interface{}{
			"first_name": member.FirstName,
			"last_name":  member.LastName,
			"phone":      member.Phone,
		}); err != nil {
		h.logger.WithError(err).Error("Failed to audit profile update")
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"member":  member,
	})
}

// ListCounsellors returns the public directory of bookable members
// GET /api/counsellors
func (h *MemberHandler) ListCounsellors(c *gin.Context) {
	members, err := h.memberRepo.ListBookable()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to list counsellors",
			"details": err.Error(),
		})
		return
	}

	// Public listing exposes only directory-safe fields
	type counsellor struct {
		ID               int64  `json:"id"`
		Name             string `json:"name"`
		MembershipType   string `json:"membership_type"`
		MembershipNumber string `json:"membership_number"`
	}
	out := make([]counsellor, 0, len(members))
	for _, m := range members {
		out = append(out, counsellor{
			ID:               m.ID,
			Name:             m.FullName(),
			MembershipType:   m.MembershipType,
			MembershipNumber: m.MembershipNumber.String,
		})
	}

	c.JSON(http.StatusOK, gin.H{"counsellors": out})
}

// SetStatusRequest carries an admin member-status override
type SetStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive"`
}

// SetStatus lets an admin deactivate or reactivate a member
// PUT /api/admin/members/:id/status
func (h *MemberHandler) SetStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid member id",
		})
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	member, err := h.memberRepo.GetByID(id)
	if err != nil {
		notFoundOr500(c, err, "Member")
		return
	}

	if member.MemberStatus != models.MemberStatusActive && member.MemberStatus != models.MemberStatusInactive {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_state",
			"message": "Only active or inactive members can have their status changed",
		})
		return
	}

	if err := h.memberRepo.SetMemberStatus(id, req.Status); err != nil {
		notFoundOr500(c, err, "Member")
		return
	}

	if err := h.auditSvc.Append(adminActor(c), "member_status_changed", "member",
		strconv.FormatInt(id, 10),
		map[string]interface{}{"member_status": member.MemberStatus},
		map[string]interface{}{"member_status": req.Status}); err != nil {
		h.logger.WithError(err).Error("Failed to audit status change")
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Member status updated",
	})
}
