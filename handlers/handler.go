package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/basit/rushupload-backend/apperrors"
	"github.com/basit/rushupload-backend/auth"
	"github.com/basit/rushupload-backend/auth/middleware"
	"github.com/basit/rushupload-backend/initializers"
	"github.com/basit/rushupload-backend/models"
	"github.com/basit/rushupload-backend/services"
	"github.com/basit/rushupload-backend/storage"
	"github.com/basit/rushupload-backend/upload"
)

// Handler serves the file transfer API.
type Handler struct {
	DB            *gorm.DB
	Store         storage.Gateway
	Uploads       *upload.Orchestrator
	Distribution  *services.DistributionService
	Downloads     *services.DownloadTracker
	Files         *services.FileService
	Settings      *initializers.Settings
	ClientBaseURL string
}

// FileResponse is a file as returned to clients, with a public URL for its object.
type FileResponse struct {
	ID           uuid.UUID `json:"id"`
	OriginalName string    `json:"originalName"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Size         int64     `json:"size"`
	Downloads    int64     `json:"downloads"`
	IsExpired    bool      `json:"isExpired"`
	IsDeleted    bool      `json:"isDeleted"`
	ExpiredAt    time.Time `json:"expiredAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	LinkID       *string   `json:"linkId,omitempty"`
	Owner        string    `json:"owner,omitempty"`
	URL          string    `json:"url"`
}

func (h *Handler) toFileResponse(f models.File) FileResponse {
	resp := FileResponse{
		ID:           f.ID,
		OriginalName: f.OriginalName,
		Name:         f.StorageKey,
		Type:         f.Type,
		Size:         f.Size,
		Downloads:    f.Downloads,
		IsExpired:    f.ExpiredAsOf(time.Now()),
		IsDeleted:    f.IsDeleted,
		ExpiredAt:    f.ExpiredAt,
		UpdatedAt:    f.UpdatedAt,
		LinkID:       f.LinkID,
		URL:          h.Store.PublicURL(f.StorageKey),
	}
	if f.User != nil {
		resp.Owner = f.User.Email
	}
	return resp
}

func (h *Handler) toFileResponses(files []models.File) []FileResponse {
	out := make([]FileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, h.toFileResponse(f))
	}
	return out
}

func (h *Handler) linkURL(id string) string {
	return strings.TrimRight(h.ClientBaseURL, "/") + "/link/" + id
}

func identity(c *gin.Context) *auth.Identity {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return nil
	}
	return id
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// respondError maps the error taxonomy onto HTTP. Unclassified errors are
// logged and reported as a bare 500.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := gin.H{}

	switch {
	case errors.Is(err, apperrors.ErrFileExpired):
		status = http.StatusGone
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrConstraint):
		status = http.StatusUnprocessableEntity
		body["reason"] = apperrors.ConstraintReason(err)
	case errors.Is(err, apperrors.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrIncompleteUpload):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	switch status {
	case http.StatusInternalServerError:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		body["error"] = "internal server error"
	case http.StatusServiceUnavailable:
		log.Warn().Err(err).Str("path", c.FullPath()).Msg("object store unavailable")
		body["error"] = apperrors.ErrStoreUnavailable.Error()
	default:
		body["error"] = apperrors.Message(err)
	}
	c.AbortWithStatusJSON(status, body)
}
