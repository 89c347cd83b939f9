package routes

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/basit/rushupload-backend/auth/Oauth"
	"github.com/basit/rushupload-backend/handlers"
	"github.com/basit/rushupload-backend/metrics"
)

// RegisterFileRoutes mounts the transfer API. authRequired guards every
// endpoint except link reads and downloads.
func RegisterFileRoutes(r *gin.Engine, h *handlers.Handler, authRequired gin.HandlerFunc) {
	public := r.Group("/files")
	public.GET("/link/:linkId", h.GetLink)
	public.GET("/link/:linkId/qr", h.LinkQR)
	public.POST("/download/:fileId", h.DownloadFile)

	fileGroup := r.Group("/files")
	fileGroup.Use(authRequired)

	fileGroup.POST("/initiate", h.InitiateUpload)
	fileGroup.POST("/presigned-url", h.PresignedURL)
	fileGroup.POST("/complete-multipart", h.CompleteMultipart)
	fileGroup.POST("/abort-multipart", h.AbortMultipart)

	fileGroup.POST("/link", h.CreateLink)
	fileGroup.POST("/mail", h.SendMail)
	fileGroup.GET("/shared", h.ListOwnedFiles)
	fileGroup.GET("/received", h.ListReceivedFiles)
	fileGroup.DELETE("/:fileId", h.DeleteFile)
}

func RegisterAuthRoutes(r *gin.Engine, oauth *Oauth.Handler, store cookie.Store) {
	authGroup := r.Group("/auth")
	authGroup.Use(sessions.Sessions(Oauth.SessionName, store))
	authGroup.GET("/:provider", oauth.Begin)
	authGroup.GET("/:provider/callback", oauth.Complete)
}

func RegisterOpsRoutes(r *gin.Engine, h *handlers.Handler) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}
