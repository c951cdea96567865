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

// CPDHandler handles member CPD activity records
type CPDHandler struct {
	cpdRepo         *database.CPDRepository
	uploadSvc       *services.UploadService
	logger          *logrus.Logger
	maxEvidenceSize int64
}

// NewCPDHandler creates a new CPDHandler
func NewCPDHandler(cpdRepo *database.CPDRepository, uploadSvc *services.UploadService, logger *logrus.Logger, maxEvidenceSize int64) *CPDHandler {
	return &CPDHandler{
		cpdRepo:         cpdRepo,
		uploadSvc:       uploadSvc,
		logger:          logger,
		maxEvidenceSize: maxEvidenceSize,
	}
}

// CreateCPDRequest represents the non-file fields of a CPD activity
type CreateCPDRequest struct {
	Title        string  `form:"title" binding:"required"`
	Category     string  `form:"category" binding:"required"`
	Hours        float64 `form:"hours" binding:"required,gt=0"`
	ActivityDate string  `form:"activity_date" binding:"required"`
}

// Create records a CPD activity with optional evidence upload
// POST /api/cpd
func (h *CPDHandler) Create(c *gin.Context) {
	memberCtx := middleware.MustGetMemberContext(c)

	var req CreateCPDRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	activityDate, err := time.Parse("2006-01-02", req.ActivityDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "activity_date must be YYYY-MM-DD",
		})
		return
	}

	activity := &models.CPDActivity{
		MemberID:     memberCtx.MemberID,
		Title:        req.Title,
		Category:     req.Category,
		Hours:        req.Hours,
		ActivityDate: activityDate,
	}

	if fh, err := c.FormFile("evidence"); err == nil {
		stored, err := h.uploadSvc.Store(fh, h.maxEvidenceSize)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		activity.EvidencePath = models.NewNullString(stored.Path)
	}

	if err := h.cpdRepo.Create(activity); err != nil {
		if activity.EvidencePath.Valid {
			h.uploadSvc.Delete(activity.EvidencePath.String)
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "create_failed",
			"message": "Failed to record CPD activity",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "CPD activity recorded",
		"activity": activity,
	})
}

// List returns the logged-in member's CPD activities
// GET /api/cpd
func (h *CPDHandler) List(c *gin.Context) {
	memberCtx := middleware.MustGetMemberContext(c)

	activities, err := h.cpdRepo.ListByMember(memberCtx.MemberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to list CPD activities",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"activities": activities})
}

// Summary returns per-year CPD hour totals for the logged-in member
// GET /api/cpd/summary
func (h *CPDHandler) Summary(c *gin.Context) {
	memberCtx := middleware.MustGetMemberContext(c)

	summaries, err := h.cpdRepo.YearlySummaries(memberCtx.MemberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to summarize CPD activities",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

// Delete removes one of the member's own CPD activities
// DELETE /api/cpd/:id
func (h *CPDHandler) Delete(c *gin.Context) {
	memberCtx := middleware.MustGetMemberContext(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid activity id",
		})
		return
	}

	activity, err := h.cpdRepo.GetByID(id)
	if err != nil {
		notFoundOr500(c, err, "CPD activity")
		return
	}
	if activity.MemberID != memberCtx.MemberID {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "This activity belongs to another member",
		})
		return
	}

	if err := h.cpdRepo.Delete(id, memberCtx.MemberID); err != nil {
		notFoundOr500(c, err, "CPD activity")
		return
	}

	if activity.EvidencePath.Valid {
		h.uploadSvc.Delete(activity.EvidencePath.String)
	}

	c.JSON(http.StatusOK, gin.H{"message": "CPD activity deleted"})
}
