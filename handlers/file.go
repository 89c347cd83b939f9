package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/basit/rushupload-backend/services"
)

const day = 24 * time.Hour

type linkRequest struct {
	Title         string               `json:"title"`
	Message       string               `json:"message"`
	ExpiresInDays int                  `json:"expiresInDays"`
	Files         []services.FileInput `json:"files"`
}

type mailRequest struct {
	To            json.RawMessage      `json:"to"`
	Title         string               `json:"title"`
	Message       string               `json:"message"`
	ExpiresInDays int                  `json:"expiresInDays"`
	Files         []services.FileInput `json:"files"`
}

// recipients accepts either a JSON array or a comma separated string.
func (r mailRequest) recipients() ([]string, bool) {
	var list []string
	if err := json.Unmarshal(r.To, &list); err == nil {
		return list, true
	}
	var single string
	if err := json.Unmarshal(r.To, &single); err == nil {
		return []string{single}, true
	}
	return nil, false
}

func (h *Handler) CreateLink(c *gin.Context) {
	id := identity(c)
	if id == nil {
		return
	}
	var body linkRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	if body.ExpiresInDays <= 0 {
		badRequest(c, "expiresInDays must be positive")
		return
	}

	link, err := h.Distribution.CreateLink(c.Request.Context(), id.AccountID, services.LinkInput{
		Title:     body.Title,
		Message:   body.Message,
		Files:     body.Files,
		ExpiresIn: time.Duration(body.ExpiresInDays) * day,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data": gin.H{"link": gin.H{
			"id":        link.ID,
			"title":     link.Title,
			"message":   link.Message,
			"url":       h.linkURL(link.ID),
			"createdAt": link.CreatedAt,
			"files":     h.toFileResponses(link.Files),
		}},
		"message": "Link Created Successfully!",
	})
}

func (h *Handler) SendMail(c *gin.Context) {
	id := identity(c)
	if id == nil {
		return
	}
	var body mailRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	to, ok := body.recipients()
	if !ok {
		badRequest(c, "to must be an email list")
		return
	}
	if body.ExpiresInDays <= 0 {
		badRequest(c, "expiresInDays must be positive")
		return
	}

	mail, err := h.Distribution.CreateMail(c.Request.Context(), id.AccountID, services.MailInput{
		To:        to,
		Title:     body.Title,
		Message:   body.Message,
		Files:     body.Files,
		ExpiresIn: time.Duration(body.ExpiresInDays) * day,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data": gin.H{"mail": gin.H{
			"id":        mail.ID,
			"to":        mail.To,
			"title":     mail.Title,
			"message":   mail.Message,
			"preview":   h.Distribution.PreviewURL(mail.ID),
			"createdAt": mail.CreatedAt,
			"files":     h.toFileResponses(mail.Files),
		}},
		"message": "Mail Sent Successfully!",
	})
}

// ListOwnedFiles returns the files the caller has shared.
func (h *Handler) ListOwnedFiles(c *gin.Context) {
	id := identity(c)
	if id == nil {
		return
	}
	files, err := h.Files.ListOwned(c.Request.Context(), id.AccountID, c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"files": h.toFileResponses(files)}, "message": "Files Fetched Successfully!"})
}

// ListReceivedFiles returns the files mailed to the caller.
func (h *Handler) ListReceivedFiles(c *gin.Context) {
	id := identity(c)
	if id == nil {
		return
	}
	files, err := h.Files.ListShared(c.Request.Context(), id.AccountID, c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"files": h.toFileResponses(files)}, "message": "Files Fetched Successfully!"})
}

// GetLink is public.
func (h *Handler) GetLink(c *gin.Context) {
	link, err := h.Files.GetLink(c.Request.Context(), c.Param("linkId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{"link": gin.H{
			"id":        link.ID,
			"title":     link.Title,
			"message":   link.Message,
			"createdAt": link.CreatedAt,
			"files":     h.toFileResponses(link.Files),
		}},
		"monetization": h.Settings != nil && h.Settings.Monetization,
		"message":      "Link Fetched Successfully!",
	})
}

// LinkQR renders the link's URL as a PNG QR code.
func (h *Handler) LinkQR(c *gin.Context) {
	link, err := h.Files.GetLink(c.Request.Context(), c.Param("linkId"))
	if err != nil {
		respondError(c, err)
		return
	}
	png, err := qrcode.Encode(h.linkURL(link.ID), qrcode.Medium, 256)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}

// DownloadFile is public: anyone holding a file id may download it.
func (h *Handler) DownloadFile(c *gin.Context) {
	fileID, err := uuid.Parse(c.Param("fileId"))
	if err != nil {
		badRequest(c, "File ID is invalid")
		return
	}

	res, err := h.Downloads.RequestDownload(c.Request.Context(), fileID, services.FingerprintInputs{
		Address: c.ClientIP(),
		Agent:   c.GetHeader("User-Agent"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": res.URL, "expiresAt": res.ExpiresAt})
}

func (h *Handler) DeleteFile(c *gin.Context) {
	id := identity(c)
	if id == nil {
		return
	}
	fileID, err := uuid.Parse(c.Param("fileId"))
	if err != nil {
		badRequest(c, "File ID is invalid")
		return
	}

	if err := h.Files.DeleteFile(c.Request.Context(), fileID, id.AccountID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
