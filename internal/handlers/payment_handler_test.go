package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/bspcp/membership-backend/internal/database"
	"github.com/bspcp/membership-backend/internal/services"
)

func uploadErrorResponse(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	handler := NewPaymentHandler(nil, logger)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	handler.respondUploadError(c, err)
	return w, decodeBody(t, w)
}

func TestRespondUploadError(t *testing.T) {
	t.Run("Validation Rejection Is Client Error", func(t *testing.T) {
		err := fmt.Errorf("%w: file exceeds maximum size of 10485760 bytes", services.ErrInvalidFile)
		w, body := uploadErrorResponse(t, err)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_file", body["error"])
	})

	t.Run("Sniffing Failure Is Server Error", func(t *testing.T) {
		err := fmt.Errorf("failed to detect file type: %w", fmt.Errorf("read: input/output error"))
		w, body := uploadErrorResponse(t, err)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "upload_failed", body["error"])
	})

	t.Run("Storage Failure Is Server Error", func(t *testing.T) {
		err := fmt.Errorf("failed to create file: %w", fmt.Errorf("no space left on device"))
		w, body := uploadErrorResponse(t, err)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "upload_failed", body["error"])
	})

	t.Run("Disallowed Transition Is Conflict", func(t *testing.T) {
		err := fmt.Errorf("%w from %q to %q", database.ErrInvalidPaymentTransition, "not_requested", "uploaded")
		w, body := uploadErrorResponse(t, err)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "invalid_transition", body["error"])
	})

	t.Run("Unknown Member Is Not Found", func(t *testing.T) {
		w, body := uploadErrorResponse(t, database.ErrNotFound)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", body["error"])
	})
}
