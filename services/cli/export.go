package cli

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/spf13/cobra"

	"fitverse/pkg/export"
	"fitverse/pkg/s3"
)

const defaultLinkTTL = 15 * time.Minute

func s3Uploader(ctx context.Context) (export.Uploader, error) {
	client, err := s3.NewClient(ctx, s3.ConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return client, nil
}

func newWorkoutsExportCommand(a *app) *cobra.Command {
	var (
		format   string
		compress bool
		output   string
		bucket   string
		key      string
		linkTTL  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot of your workouts to a file, stdout or S3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			ctrl, err := a.loaded(ctx)
			if err != nil {
				return err
			}

			userID := a.session.UserID()
			if userID == "" {
				userID, _ = a.session.CurrentIdentity(ctx)
			}
			snap := export.NewSnapshot(userID, ctrl.List().All(), time.Now())
			data, err := export.Marshal(snap, f, compress)
			if err != nil {
				return err
			}

			if bucket == "" {
				bucket = a.cfg.ExportBucket
			}
			wrote := false
			if output != "" && output != "-" {
				if err := os.WriteFile(output, data, 0o600); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(a.io.Err, "Wrote %d workouts to %s\n", snap.Count, output)
				wrote = true
			}
			if bucket != "" {
				if key == "" {
					owner := userID
					if owner == "" {
						owner = "unknown"
					}
					key = path.Join(owner, snap.Filename(f, compress))
				}
				uploader, err := a.uploader(ctx)
				if err != nil {
					return err
				}
				link, err := export.Upload(ctx, uploader, bucket, key, data, linkTTL)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.io.Err, "Uploaded %d workouts to s3://%s/%s\n", snap.Count, bucket, key)
				if link != "" {
					a.printf("%s\n", link)
				}
				wrote = true
			}
			if !wrote {
				_, err := a.io.Out.Write(data)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Snapshot format: json or yaml")
	cmd.Flags().BoolVar(&compress, "zstd", false, "Compress the snapshot with zstd")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file (stdout when omitted and no bucket is set)")
	cmd.Flags().StringVar(&bucket, "s3-bucket", "", "Upload to this bucket (default export_bucket from config)")
	cmd.Flags().StringVar(&key, "s3-key", "", "Object key (default <user id>/<file name>)")
	cmd.Flags().DurationVar(&linkTTL, "link-ttl", defaultLinkTTL, "Lifetime of the printed download link; 0 disables it")
	return cmd
}
