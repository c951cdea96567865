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

// ContentHandler handles site content pages and testimonials
type ContentHandler struct {
	contentRepo     *database.ContentRepository
	testimonialRepo *database.TestimonialRepository
	auditSvc        *services.AuditService
	logger          *logrus.Logger
}

// NewContentHandler creates a new ContentHandler
func NewContentHandler(
	contentRepo *database.ContentRepository,
	testimonialRepo *database.TestimonialRepository,
	auditSvc *services.AuditService,
	logger *logrus.Logger,
) *ContentHandler {
	return &ContentHandler{
		contentRepo:     contentRepo,
		testimonialRepo: testimonialRepo,
		auditSvc:        auditSvc,
		logger:          logger,
	}
}

// ContentPageRequest carries the editable fields of a content page
type ContentPageRequest struct {
	Slug      string `json:"slug" binding:"required"`
	Title     string `json:"title" binding:"required"`
	Body      string `json:"body" binding:"required"`
	Published bool   `json:"published"`
}

// ListPages returns content pages; the public route sees published only
// GET /api/content            (public, published only)
// GET /api/admin/content       (admin, all)
func (h *ContentHandler) ListPages(publishedOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		pages, err := h.contentRepo.List(publishedOnly)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "list_failed",
				"message": "Failed to list content",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"pages": pages})
	}
}

// GetPage returns one content page by slug
// GET /api/content/:slug (public, published only)
// GET /api/admin/content/:slug (admin, any)
func (h *ContentHandler) GetPage(publishedOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := h.contentRepo.GetBySlug(c.Param("slug"), publishedOnly)
		if err != nil {
			notFoundOr500(c, err, "Page")
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// CreatePage creates a content page
// POST /api/admin/content
func (h *ContentHandler) CreatePage(c *gin.Context) {
	var req ContentPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	adminCtx := middleware.MustGetAdminContext(c)
	page := &models.ContentPage{
		Slug:      req.Slug,
		Title:     req.Title,
		Body:      req.Body,
		Published: req.Published,
		UpdatedBy: &adminCtx.AdminID,
	}
	if err := h.contentRepo.Create(page); err != nil {
		if database.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "duplicate_slug",
				"message": "A page with this slug already exists",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "create_failed",
			"message": "Failed to create page",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, page)
}

// UpdatePage updates a content page addressed by slug
// PUT /api/admin/content/:slug
func (h *ContentHandler) UpdatePage(c *gin.Context) {
	var req ContentPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	adminCtx := middleware.MustGetAdminContext(c)
	page := &models.ContentPage{
		Slug:      c.Param("slug"),
		Title:     req.Title,
		Body:      req.Body,
		Published: req.Published,
		UpdatedBy: &adminCtx.AdminID,
	}
	if err := h.contentRepo.Update(page); err != nil {
		notFoundOr500(c, err, "Page")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Page updated"})
}

// DeletePage removes a content page
// DELETE /api/admin/content/:slug
func (h *ContentHandler) DeletePage(c *gin.Context) {
	if err := h.contentRepo.Delete(c.Param("slug")); err != nil {
		notFoundOr500(c, err, "Page")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Page deleted"})
}

// TestimonialRequest carries a submitted testimonial
type TestimonialRequest struct {
	AuthorName string `json:"author_name" binding:"required"`
	AuthorRole string `json:"author_role"`
	Body       string `json:"body" binding:"required"`
}

// SubmitTestimonial accepts a public testimonial, held until approved
// POST /api/testimonials
func (h *ContentHandler) SubmitTestimonial(c *gin.Context) {
	var req TestimonialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	t := &models.Testimonial{
		AuthorName: req.AuthorName,
		AuthorRole: models.NewNullString(req.AuthorRole),
		Body:       req.Body,
	}
	if err := h.testimonialRepo.Create(t); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "create_failed",
			"message": "Failed to submit testimonial",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Thank you. Your testimonial will appear after review.",
	})
}

// ListTestimonials returns testimonials; public sees approved only
// GET /api/testimonials          (public)
// GET /api/admin/testimonials    (admin)
func (h *ContentHandler) ListTestimonials(approvedOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		testimonials, err := h.testimonialRepo.List(approvedOnly)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "list_failed",
				"message": "Failed to list testimonials",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"testimonials": testimonials})
	}
}

// ApproveTestimonialRequest toggles the approved flag
type ApproveTestimonialRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

// ApproveTestimonial sets the approved flag on a testimonial
// PUT /api/admin/testimonials/:id/approve
func (h *ContentHandler) ApproveTestimonial(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid testimonial id",
		})
		return
	}

	var req ApproveTestimonialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	if err := h.testimonialRepo.SetApproved(id, *req.Approved); err != nil {
		notFoundOr500(c, err, "Testimonial")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Testimonial updated"})
}

// DeleteTestimonial removes a testimonial
// DELETE /api/admin/testimonials/:id
func (h *ContentHandler) DeleteTestimonial(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid testimonial id",
		})
		return
	}

	if err := h.testimonialRepo.Delete(id); err != nil {
		notFoundOr500(c, err, "Testimonial")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Testimonial deleted"})
}
