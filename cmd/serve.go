package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/basit/rushupload-backend/auth"
	"github.com/basit/rushupload-backend/auth/Oauth"
	"github.com/basit/rushupload-backend/auth/middleware"
	"github.com/basit/rushupload-backend/cache"
	"github.com/basit/rushupload-backend/handlers"
	"github.com/basit/rushupload-backend/initializers"
	"github.com/basit/rushupload-backend/jobs"
	"github.com/basit/rushupload-backend/mailer"
	"github.com/basit/rushupload-backend/quota"
	"github.com/basit/rushupload-backend/routes"
	"github.com/basit/rushupload-backend/services"
	"github.com/basit/rushupload-backend/storage"
	"github.com/basit/rushupload-backend/upload"
)

const shutdownTimeout = 20 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the expiry sweep",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	settings, err := initializers.LoadSettings(cfg.SettingsFile)
	if err != nil {
		return err
	}
	enforcer := quota.NewEnforcer(settings.TierTable())

	db, err := initializers.ConnectToDatabase(cfg)
	if err != nil {
		return err
	}
	if err := initializers.Migrate(db); err != nil {
		return err
	}

	client, err := initializers.NewS3Client(ctx, cfg)
	if err != nil {
		return err
	}
	store := storage.NewS3Gateway(client, storage.S3Options{
		Bucket:        cfg.AWSBucket,
		Region:        cfg.AWSRegion,
		PublicBaseURL: cfg.S3PublicBaseURL,
		Timeout:       cfg.StoreTimeout,
	})

	var links cache.LinkCache = cache.NoopLinkCache{}
	rdb, err := initializers.ConnectToRedis(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, link cache disabled")
	} else if rdb != nil {
		defer rdb.Close()
		links = cache.NewRedisLinkCache(rdb, cfg.LinkCacheTTL)
	}

	var sender mailer.Sender = mailer.LogSender{}
	if cfg.SMTP.Configured() {
		sender = mailer.NewSMTPSender(cfg.SMTP)
	} else {
		log.Warn().Msg("SMTP not configured, mail notifications will only be logged")
	}
	dispatcher := mailer.NewDispatcher(sender, cfg.StoreTimeout)

	issuer := auth.NewTokenIssuer(cfg.JWTSecret)
	h := &handlers.Handler{
		DB:            db,
		Store:         store,
		Uploads:       upload.NewOrchestrator(store, cfg.PartURLTTL),
		Distribution:  services.NewDistributionService(db, enforcer, dispatcher, cfg.ClientBaseURL),
		Downloads:     services.NewDownloadTracker(db, store, services.DailyFingerprinter{}, cfg.DownloadURLTTL),
		Files:         services.NewFileService(db, links),
		Settings:      settings,
		ClientBaseURL: cfg.ClientBaseURL,
	}

	oauthCfg := Oauth.Config{
		SessionSecret: cfg.SessionSecret,
		ClientID:      cfg.GoogleClientID,
		ClientSecret:  cfg.GoogleClientSecret,
		RedirectURL:   cfg.GoogleRedirectURL,
		ClientBaseURL: cfg.ClientBaseURL,
		Secure:        cfg.IsProduction(),
	}
	sessionStore, err := Oauth.InitStore(oauthCfg)
	if err != nil {
		return err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Cleanup(ctx)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(limiter.Middleware())

	routes.RegisterFileRoutes(router, h, middleware.AuthRequired(db, issuer))
	routes.RegisterAuthRoutes(router, Oauth.NewHandler(db, issuer, enforcer, oauthCfg), sessionStore)
	routes.RegisterOpsRoutes(router, h)

	jobCtx, stopJob := context.WithCancel(context.Background())
	job := jobs.NewExpiryJob(db, store, cfg.ExpirySweepInterval, cfg.PurgeExpiredObjects)
	job.Start(jobCtx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stopJob()
		job.Wait()
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	stopJob()
	job.Wait()
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("pending mail deliveries abandoned")
	}
	log.Info().Msg("server stopped")
	return nil
}
