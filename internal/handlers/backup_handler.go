package handlers

import (
	"net/http"

	"github.com/bspcp/membership-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// BackupHandler exposes admin backup management
type BackupHandler struct {
	backupSvc *services.BackupService
	cronSvc   *services.CronService
	auditSvc  *services.AuditService
	logger    *logrus.Logger
}

// NewBackupHandler creates a new BackupHandler
func NewBackupHandler(
	backupSvc *services.BackupService,
	cronSvc *services.CronService,
	auditSvc *services.AuditService,
	logger *logrus.Logger,
) *BackupHandler {
	return &BackupHandler{
		backupSvc: backupSvc,
		cronSvc:   cronSvc,
		auditSvc:  auditSvc,
		logger:    logger,
	}
}

// Create runs a backup immediately
// POST /api/admin/backups
func (h *BackupHandler) Create(c *gin.Context) {
	info, err := h.cronSvc.RunBackupNow()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "backup_failed",
			"message": "Failed to create backup",
			"details": err.Error(),
		})
		return
	}

	if err := h.auditSvc.Append(adminActor(c), "backup_created", "backup", info.Name,
		nil, map[string]interface{}{"size": info.Size}); err != nil {
		h.logger.WithError(err).Error("Failed to audit backup creation")
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Backup created",
		"backup":  info,
	})
}

// List returns all backup archives on disk
// GET /api/admin/backups
func (h *BackupHandler) List(c *gin.Context) {
	backups, err := h.backupSvc.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to list backups",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"backups": backups})
}

// Delete removes one backup archive by name
// DELETE /api/admin/backups/:name
func (h *BackupHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.backupSvc.Delete(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": err.Error(),
		})
		return
	}

	if err := h.auditSvc.Append(adminActor(c), "backup_deleted", "backup", name, nil, nil); err != nil {
		h.logger.WithError(err).Error("Failed to audit backup deletion")
	}

	c.JSON(http.StatusOK, gin.H{"message": "Backup deleted"})
}

// JobStatus reports the backup scheduler state
// GET /api/admin/backups/schedule
func (h *BackupHandler) JobStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.cronSvc.JobStatus())
}
