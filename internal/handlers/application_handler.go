package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bspcp/membership-backend/internal/database"
	"github.com/bspcp/membership-backend/internal/models"
	"github.com/bspcp/membership-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// ApplicationHandler handles membership application intake and review
type ApplicationHandler struct {
	memberRepo      *database.MemberRepository
	membershipSvc   *services.MembershipService
	uploadSvc       *services.UploadService
	emailSvc        *services.EmailService
	auditSvc        *services.AuditService
	logger          *logrus.Logger
	maxDocumentSize int64
}

// NewApplicationHandler creates a new ApplicationHandler
func NewApplicationHandler(
	memberRepo *database.MemberRepository,
	membershipSvc *services.MembershipService,
	uploadSvc *services.UploadService,
	emailSvc *services.EmailService,
	auditSvc *services.AuditService,
	logger *logrus.Logger,
	maxDocumentSize int64,
) *ApplicationHandler {
	return &ApplicationHandler{
		memberRepo:      memberRepo,
		membershipSvc:   membershipSvc,
		uploadSvc:       uploadSvc,
		emailSvc:        emailSvc,
		auditSvc:        auditSvc,
		logger:          logger,
		maxDocumentSize: maxDocumentSize,
	}
}

// SubmitApplicationRequest represents the non-file fields of an application
type SubmitApplicationRequest struct {
	FirstName        string `form:"first_name" binding:"required"`
	LastName         string `form:"last_name" binding:"required"`
	Email            string `form:"email" binding:"required,email"`
	Phone            string `form:"phone" binding:"required"`
	DateOfBirth      string `form:"date_of_birth"`
	MembershipType   string `form:"membership_type" binding:"required,oneof=professional student"`
	Qualification    string `form:"qualification" binding:"required"`
	Institution      string `form:"institution" binding:"required"`
	YearQualified    int    `form:"year_qualified" binding:"required"`
	Specializations  string `form:"specializations"`
	YearsExperience  int    `form:"years_experience"`
	CurrentEmployer  string `form:"current_employer"`
	Bio              string `form:"bio"`
	Address          string `form:"address" binding:"required"`
	City             string `form:"city" binding:"required"`
	PostalCode       string `form:"postal_code"`
	Country          string `form:"country" binding:"required"`
	PreferredContact string `form:"preferred_contact"`
}

// Submit accepts a new membership application with its documents
// POST /api/applications
func (h *ApplicationHandler) Submit(c *gin.Context) {
	var req SubmitApplicationRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	if _, err := h.memberRepo.GetByEmail(req.Email); err == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "duplicate_email",
			"message": "An application with this email already exists",
		})
		return
	} else if err != database.ErrNotFound {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
			"details": err.Error(),
		})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Expected a multipart form",
		})
		return
	}

	app := &models.MemberApplication{
		Member: models.Member{
			FirstName:      req.FirstName,
			LastName:       req.LastName,
			Email:          strings.ToLower(strings.TrimSpace(req.Email)),
			Phone:          req.Phone,
			MembershipType: req.MembershipType,
		},
		Professional: &models.ProfessionalDetails{
			Qualification:   req.Qualification,
			Institution:     req.Institution,
			YearQualified:   req.YearQualified,
			Specializations: pq.StringArray(splitSpecializations(req.Specializations)),
			YearsExperience: req.YearsExperience,
			CurrentEmployer: models.NewNullString(req.CurrentEmployer),
			Bio:             models.NewNullString(req.Bio),
		},
		Contact: &models.ContactInfo{
			Address:          req.Address,
			City:             req.City,
			PostalCode:       models.NewNullString(req.PostalCode),
			Country:          req.Country,
			PreferredContact: preferredContactOrDefault(req.PreferredContact),
		},
	}

	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "date_of_birth must be YYYY-MM-DD",
			})
			return
		}
		app.Member.DateOfBirth = models.NewNullTime(dob)
	}

	// Files are stored before the transaction; on a failed insert the
	// stored files are removed again.
	var storedPaths []string
	cleanup := func() { h.uploadSvc.DeleteAll(storedPaths) }

	for _, fh := range form.File["documents"] {
		stored, err := h.uploadSvc.Store(fh, h.maxDocumentSize)
		if err != nil {
			cleanup()
			respondStoreError(c, err)
			return
		}
		storedPaths = append(storedPaths, stored.Path)
		app.Documents = append(app.Documents, models.Document{
			DocType:  "application_document",
			FilePath: stored.Path,
			FileName: stored.Name,
			FileSize: stored.Size,
			MimeType: stored.MimeType,
		})
	}

	for _, fh := range form.File["certificates"] {
		stored, err := h.uploadSvc.Store(fh, h.maxDocumentSize)
		if err != nil {
			cleanup()
			respondStoreError(c, err)
			return
		}
		storedPaths = append(storedPaths, stored.Path)
		app.Certificates = append(app.Certificates, models.Certificate{
			Title:    fh.Filename,
			Issuer:   req.Institution,
			FilePath: stored.Path,
		})
	}

	if len(app.Documents) == 0 {
		cleanup()
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "At least one supporting document is required",
		})
		return
	}

	if err := h.memberRepo.CreateApplication(app); err != nil {
		cleanup()
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "submission_failed",
			"message": "Failed to submit application",
			"details": err.Error(),
		})
		return
	}

	if err := h.auditSvc.Append(anonymousActor(c), "application_submitted", "member",
		strconv.FormatInt(app.Member.ID, 10), nil,
		map[string]interface{}{
			"application_status": models.ApplicationStatusPending,
			"membership_type":    app.Member.MembershipType,
		}); err != nil {
		h.logger.WithError(err).Error("Failed to audit application submission")
	}

	h.emailSvc.SendAsync(app.Member.Email, services.TemplateApplicationReceived, map[string]interface{}{
		"Name": app.Member.FullName(),
	})

	c.JSON(http.StatusCreated, gin.H{
		"message":            "Application submitted successfully",
		"id":                 app.Member.ID,
		"application_status": app.Member.ApplicationStatus,
	})
}

// List returns applications filtered by status, with pending counts
// GET /api/admin/applications?status=pending&limit=20&offset=0
func (h *ApplicationHandler) List(c *gin.Context) {
	status := c.DefaultQuery("status", models.ApplicationStatusPending)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	members, err := h.memberRepo.ListByApplicationStatus(status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to list applications",
			"details": err.Error(),
		})
		return
	}

	counts, err := h.memberRepo.CountByApplicationStatus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to count applications",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"applications": members,
		"counts":       counts,
		"limit":        limit,
		"offset":       offset,
	})
}

// Get returns one application with all its children
// GET /api/admin/applications/:id
func (h *ApplicationHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid application id",
		})
		return
	}

	app, err := h.memberRepo.GetApplication(id)
	if err != nil {
		notFoundOr500(c, err, "Application")
		return
	}

	c.JSON(http.StatusOK, app)
}

// ReviewRequest carries the optional admin comment on approve/reject
type ReviewRequest struct {
	Comment string `json:"comment"`
}

// Approve approves an application
// POST /api/admin/applications/:id/approve
func (h *ApplicationHandler) Approve(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid application id",
		})
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	member, err := h.membershipSvc.Approve(id, adminActor(c), req.Comment)
	if err != nil {
		notFoundOr500(c, err, "Application")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":           "Application approved",
		"member":            member,
		"membership_number": member.MembershipNumber.String,
	})
}

// Reject rejects an application
// POST /api/admin/applications/:id/reject
func (h *ApplicationHandler) Reject(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid application id",
		})
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	member, err := h.membershipSvc.Reject(id, adminActor(c), req.Comment)
	if err != nil {
		notFoundOr500(c, err, "Application")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Application rejected",
		"member":  member,
	})
}

// Delete removes an application and all dependent rows and files
// DELETE /api/admin/applications/:id
func (h *ApplicationHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid application id",
		})
		return
	}

	if err := h.membershipSvc.DeleteApplication(id, adminActor(c), h.uploadSvc); err != nil {
		notFoundOr500(c, err, "Application")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Application deleted",
	})
}

// ResendSetupLink re-issues the password setup email for an approved member
// POST /api/admin/applications/:id/resend-setup-link
func (h *ApplicationHandler) ResendSetupLink(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid application id",
		})
		return
	}

	if err := h.membershipSvc.ResendSetupLink(id); err != nil {
		if err == services.ErrInvalidTransition {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "invalid_state",
				"message": "Member is not awaiting password setup",
			})
			return
		}
		notFoundOr500(c, err, "Application")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Setup link sent",
	})
}

// AuditTrail returns the audit history for one member
// GET /api/admin/applications/:id/audit
func (h *ApplicationHandler) AuditTrail(c *gin.Context) {
	id := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.auditSvc.RecentForEntity("member", id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to load audit trail",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func splitSpecializations(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func preferredContactOrDefault(v string) string {
	if v == "" {
		return "email"
	}
	return v
}
