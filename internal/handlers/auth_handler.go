package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bspcp/membership-backend/internal/database"
	"github.com/bspcp/membership-backend/internal/models"
	"github.com/bspcp/membership-backend/internal/services"
	"github.com/bspcp/membership-backend/pkg/jwt"
	"github.com/bspcp/membership-backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler handles member and admin login plus password setup
type AuthHandler struct {
	credRepo      *database.CredentialRepository
	memberRepo    *database.MemberRepository
	adminRepo     *database.AdminUserRepository
	membershipSvc *services.MembershipService
	jwtService    *jwt.Service
	passwords     *validator.PasswordValidator
	logger        *logrus.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	credRepo *database.CredentialRepository,
	memberRepo *database.MemberRepository,
	adminRepo *database.AdminUserRepository,
	membershipSvc *services.MembershipService,
	jwtService *jwt.Service,
	passwords *validator.PasswordValidator,
	logger *logrus.Logger,
) *AuthHandler {
	return &AuthHandler{
		credRepo:      credRepo,
		memberRepo:    memberRepo,
		adminRepo:     adminRepo,
		membershipSvc: membershipSvc,
		jwtService:    jwtService,
		passwords:     passwords,
		logger:        logger,
	}
}

// LoginRequest represents a member login request
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// Login authenticates a member by username or email.
// Checks run in a fixed order so a pending or rejected applicant always
// sees their application state rather than a generic credentials error.
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	cred, member, err := h.credRepo.FindByIdentifier(req.Identifier)
	if err == database.ErrNotFound {
		// No credential exists before approval; fall back to the member
		// record so an applicant logging in by email still gets the
		// application-state discriminator instead of invalid-credentials.
		if m, memberErr := h.memberRepo.GetByEmail(req.Identifier); memberErr == nil {
			if reject := applicationStateRejection(m); reject != nil {
				c.JSON(http.StatusForbidden, reject)
				return
			}
		}
		h.rejectInvalidCredentials(c, req.Identifier)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
			"details": err.Error(),
		})
		return
	}

	if !cred.HasPassword() {
		c.JSON(http.StatusForbidden, gin.H{
			"error":         "password_not_set",
			"message":       "Please set your password using the link emailed to you",
			"accountStatus": member.MemberStatus,
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash.String), []byte(req.Password)); err != nil {
		h.rejectInvalidCredentials(c, req.Identifier)
		return
	}

	if reject := applicationStateRejection(member); reject != nil {
		c.JSON(http.StatusForbidden, reject)
		return
	}

	switch member.MemberStatus {
	case models.MemberStatusActive:
		// proceed
	case models.MemberStatusPendingPasswordSetup:
		actor := memberActor(c, strconv.FormatInt(member.ID, 10))
		if err := h.membershipSvc.ActivateOnLogin(member.ID, actor); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "activation_failed",
				"message": "Failed to activate account",
				"details": err.Error(),
			})
			return
		}
		member.MemberStatus = models.MemberStatusActive
	default:
		c.JSON(http.StatusForbidden, gin.H{
			"error":         "account_inactive",
			"message":       "Your account is not active. Please contact BSPCP.",
			"accountStatus": member.MemberStatus,
		})
		return
	}

	token, err := h.jwtService.GenerateMemberToken(member.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "token_generation_failed",
			"message": "Failed to generate session token",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"member":   member,
		"username": cred.Username,
	})
}

// applicationStateRejection returns the 403 payload for a member whose
// application has not been approved, or nil if the application is approved.
func applicationStateRejection(member *models.Member) gin.H {
	switch member.ApplicationStatus {
	case models.ApplicationStatusPending:
		return gin.H{
			"error":             "application_pending",
			"message":           "Your application is still under review",
			"applicationStatus": models.ApplicationStatusPending,
		}
	case models.ApplicationStatusRejected:
		return gin.H{
			"error":             "application_denied",
			"message":           "Your membership application was not approved",
			"applicationStatus": models.ApplicationStatusRejected,
		}
	default:
		return nil
	}
}

func (h *AuthHandler) rejectInvalidCredentials(c *gin.Context, identifier string) {
	h.logger.WithFields(logrus.Fields{
		"identifier": identifier,
		"ip":         c.ClientIP(),
	}).Warn("Failed login attempt")
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":   "invalid_credentials",
		"message": "Invalid username/email or password",
	})
}

// AdminLoginRequest represents an admin login request
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AdminLogin authenticates an admin user
// POST /api/auth/admin/login
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	admin, err := h.adminRepo.GetByEmail(req.Email)
	if err == database.ErrNotFound {
		h.rejectInvalidCredentials(c, req.Email)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
			"details": err.Error(),
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		h.rejectInvalidCredentials(c, req.Email)
		return
	}

	if !admin.IsActive {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "account_inactive",
			"message": "This admin account has been deactivated",
		})
		return
	}

	if err := h.adminRepo.UpdateLastLogin(admin.ID); err != nil {
		h.logger.WithError(err).Warn("Failed to record admin login time")
	}

	token, err := h.jwtService.GenerateAdminToken(admin.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "token_generation_failed",
			"message": "Failed to generate session token",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"admin": gin.H{
			"id":    admin.ID,
			"email": admin.Email,
			"name":  admin.FullName,
		},
	})
}

// SetupPasswordRequest carries the emailed token and the chosen password
type SetupPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SetupPassword redeems a password-setup link
// POST /api/auth/setup-password
func (h *AuthHandler) SetupPassword(c *gin.Context) {
	var req SetupPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	if err := h.passwords.Validate(req.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "weak_password",
			"message": err.Error(),
		})
		return
	}

	actor := anonymousActor(c)
	if err := h.membershipSvc.SetupPassword(req.Token, req.Password, actor); err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "token_expired",
				"message": "This setup link has expired. Please request a new one.",
				"code":    "TOKEN_EXPIRED",
			})
		case errors.Is(err, database.ErrTokenConsumed):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "token_consumed",
				"message": "This setup link has already been used",
				"code":    "TOKEN_CONSUMED",
			})
		case err == database.ErrNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Member not found",
			})
		case err == services.ErrInvalidTransition:
			c.JSON(http.StatusConflict, gin.H{
				"error":   "invalid_state",
				"message": "This application is not approved for password setup",
			})
		case errors.Is(err, jwt.ErrTokenInvalid):
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "This setup link is invalid",
				"code":    "INVALID_TOKEN",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to set password",
				"details": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Password set successfully. You can now log in.",
	})
}
