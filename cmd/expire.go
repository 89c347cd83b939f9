package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/basit/rushupload-backend/initializers"
	"github.com/basit/rushupload-backend/jobs"
	"github.com/basit/rushupload-backend/storage"
)

var purgeObjects bool

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Run one expiry sweep and exit",
	Long: `Flags every file past its expiry. With --purge (or PURGE_EXPIRED_OBJECTS=true)
the expired objects are also deleted from the bucket. File rows are kept.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		db, err := initializers.ConnectToDatabase(cfg)
		if err != nil {
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

		purge := purgeObjects || cfg.PurgeExpiredObjects
		n, err := jobs.NewExpiryJob(db, store, cfg.ExpirySweepInterval, purge).RunOnce(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("expired", n).Bool("purge", purge).Msg("expiry sweep finished")
		return nil
	},
}

func init() {
	expireCmd.Flags().BoolVar(&purgeObjects, "purge", false, "delete expired objects from the bucket")
}
