package handlers

import (
	"errors"
	"net/http"

	"github.com/bspcp/membership-backend/internal/database"
	"github.com/bspcp/membership-backend/internal/middleware"
	"github.com/bspcp/membership-backend/internal/models"
	"github.com/bspcp/membership-backend/internal/services"
	"github.com/bspcp/membership-backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// adminActor builds the audit actor for a request authenticated as admin
func adminActor(c *gin.Context) services.Actor {
	actor := services.Actor{
		Type:      models.ActorTypeAnonymous,
		IPAddress: utils.GetRealIP(c),
		UserAgent: c.Request.UserAgent(),
	}
	if adminCtx, ok := middleware.GetAdminContext(c); ok {
		actor.Type = models.ActorTypeAdmin
		actor.ID = adminCtx.AdminID.String()
	}
	return actor
}

// memberActor builds the audit actor for a request authenticated as member
func memberActor(c *gin.Context, memberID string) services.Actor {
	return services.Actor{
		Type:      models.ActorTypeMember,
		ID:        memberID,
		IPAddress: utils.GetRealIP(c),
		UserAgent: c.Request.UserAgent(),
	}
}

// anonymousActor builds the audit actor for unauthenticated requests
func anonymousActor(c *gin.Context) services.Actor {
	return services.Actor{
		Type:      models.ActorTypeAnonymous,
		IPAddress: utils.GetRealIP(c),
		UserAgent: c.Request.UserAgent(),
	}
}

// respondStoreError maps upload storage errors: validation rejections are
// the client's fault, anything else is a server-side storage failure.
func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrInvalidFile) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_file",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "upload_failed",
		"message": "Failed to store uploaded file",
		"details": err.Error(),
	})
}

// notFoundOr500 maps repository errors to 404 for missing rows, 500 otherwise
func notFoundOr500(c *gin.Context, err error, entity string) {
	if err == database.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": entity + " not found",
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "An unexpected error occurred",
		"details": err.Error(),
	})
}
