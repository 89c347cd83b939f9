package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/basit/rushupload-backend/apperrors"
	"github.com/basit/rushupload-backend/storage"
	"github.com/basit/rushupload-backend/upload"
)

type initiateRequest struct {
	Filename string `json:"filename" binding:"required"`
	MimeType string `json:"mimeType"`
}

type partRequest struct {
	UploadID   string `json:"uploadId" binding:"required"`
	Key        string `json:"key" binding:"required"`
	PartNumber int    `json:"partNumber"`
}

type completeRequest struct {
	UploadID string                  `json:"uploadId" binding:"required"`
	Key      string                  `json:"key" binding:"required"`
	Parts    []storage.CompletedPart `json:"parts"`
}

type abortRequest struct {
	UploadID string `json:"uploadId" binding:"required"`
	Key      string `json:"key" binding:"required"`
}

// InitiateUpload opens a multipart upload under the caller's key prefix.
func (h *Handler) InitiateUpload(c *gin.Context) {
	id := identity(c)
	if id == nil {
		return
	}
	var body initiateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "filename is required")
		return
	}

	sess, err := h.Uploads.Initiate(c.Request.Context(), upload.ObjectKey(id.AccountID, body.Filename), body.MimeType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploadId": sess.UploadID, "key": sess.ObjectKey})
}

// PresignedURL issues the write URL for one part.
func (h *Handler) PresignedURL(c *gin.Context) {
	id := identity(c)
	if id == nil {
		return
	}
	var body partRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "uploadId and key are required")
		return
	}
	if err := ownKey(id.AccountID, body.Key); err != nil {
		respondError(c, err)
		return
	}

	handle, err := h.Uploads.PartUploadHandle(c.Request.Context(), body.UploadID, body.Key, body.PartNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": handle.URL, "method": handle.Method, "expiresAt": handle.ExpiresAt, "partNumber": handle.PartNumber})
}

// CompleteMultipart assembles the parts the client uploaded.
func (h *Handler) CompleteMultipart(c *gin.Context) {
	id := identity(c)
	if id == nil {
		return
	}
	var body completeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "uploadId and key are required")
		return
	}
	if err := ownKey(id.AccountID, body.Key); err != nil {
		respondError(c, err)
		return
	}

	sess, err := h.Uploads.Complete(c.Request.Context(), body.UploadID, body.Key, body.Parts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Multipart upload completed successfully!",
		"key":      sess.ObjectKey,
		"location": h.Store.PublicURL(sess.ObjectKey),
	})
}

// AbortMultipart discards an upload and its parts.
func (h *Handler) AbortMultipart(c *gin.Context) {
	id := identity(c)
	if id == nil {
		return
	}
	var body abortRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "uploadId and key are required")
		return
	}
	if err := ownKey(id.AccountID, body.Key); err != nil {
		respondError(c, err)
		return
	}

	if _, err := h.Uploads.Abort(c.Request.Context(), body.UploadID, body.Key); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Multipart upload aborted"})
}

func ownKey(accountID uuid.UUID, key string) error {
	if !upload.OwnsKey(accountID, key) {
		return fmt.Errorf("%w: key is not yours", apperrors.ErrValidation)
	}
	return nil
}
