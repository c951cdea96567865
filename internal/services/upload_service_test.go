package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStoredFileName(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	prefix := fmt.Sprintf("%d-", now.UnixMilli())

	assert.Equal(t, prefix+"receipt.pdf", StoredFileName(now, "receipt.pdf"))
	assert.Equal(t, prefix+"my_receipt_2026.pdf", StoredFileName(now, "my receipt 2026.pdf"))

	// Path components are stripped so uploads cannot escape the directory
	assert.Equal(t, prefix+"passwd", StoredFileName(now, "../../etc/passwd"))
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "degree-certificate.pdf", sanitizeFileName("degree-certificate.pdf"))
	assert.Equal(t, "re_u_me.pdf", sanitizeFileName("re(u)me.pdf"))
	assert.Equal(t, "file", sanitizeFileName(""))
	assert.Equal(t, "file", sanitizeFileName("///"))
}

func TestAllowedMime(t *testing.T) {
	assert.True(t, allowedMime("image/png"))
	assert.True(t, allowedMime("image/jpeg"))
	assert.True(t, allowedMime("application/pdf"))
	assert.False(t, allowedMime("application/zip"))
	assert.False(t, allowedMime("text/html"))
	assert.False(t, allowedMime("video/mp4"))
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "/uploads/1724840000000-proof.pdf", PublicURL("./uploads/1724840000000-proof.pdf"))
	assert.Equal(t, "/uploads/x.png", PublicURL("/var/data/uploads/x.png"))
}
