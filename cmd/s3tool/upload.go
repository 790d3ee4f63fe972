package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/s3tool/s3tool"
	"github.com/s3tool/s3tool/internal/progress"
)

func newUploadCmd(flags *globalFlags) *cobra.Command {
	var (
		acl       string
		chunkSize int64
		keyName   string
	)

	cmd := &cobra.Command{
		Use:   "upload <local-path> <s3://bucket/key>",
		Short: "Upload a local file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, key, err := parseURIArg(args, 1)
			if err != nil {
				return err
			}

			var opts []s3tool.UploadOption
			if acl != "" {
				opts = append(opts, s3tool.WithACL(acl))
			}
			if chunkSize > 0 {
				opts = append(opts, s3tool.WithChunkSize(chunkSize))
			}
			if keyName != "" {
				opts = append(opts, s3tool.WithKeyName(keyName))
			}

			uploadOpts, err := s3tool.NewUploadOptions(bucket, key, args[0], opts...)
			if err != nil {
				return err
			}

			bar := progressbar.DefaultBytes(-1, "uploading")
			client, err := withProgressListener(cmd, flags, bar)
			if err != nil {
				return err
			}
			result, err := client.Upload(cmd.Context(), uploadOpts)
			if err != nil {
				return err
			}
			_ = bar.Close()
			fmt.Printf("uploaded %s/%s in %d part(s), etag=%s\n", bucket, key, result.NumParts, result.ETag)
			return nil
		},
	}

	cmd.Flags().StringVar(&acl, "acl", "", "canned ACL for the uploaded object")
	cmd.Flags().Int64Var(&chunkSize, "chunk-size", 0, "plaintext chunk size in bytes (default: library default)")
	cmd.Flags().StringVar(&keyName, "key", "", "encrypt under this key pair name")
	return cmd
}

// withProgressListener builds a Client wired to bar via a progress.Listener.
func withProgressListener(cmd *cobra.Command, flags *globalFlags, bar *progressbar.ProgressBar) (*s3tool.Client, error) {
	cfg := s3tool.Config{
		Region:          flags.region,
		Endpoint:        flags.endpoint,
		AccessKeyID:     flags.accessKey,
		SecretAccessKey: flags.secretKey,
		KeyDir:          flags.keyDir,
		MaxRetries:      flags.retries,
	}
	listener := progress.ListenerFunc(func(e progress.Event) {
		if e.BytesTotal > 0 {
			bar.ChangeMax64(e.BytesTotal)
		}
		if e.Phase == "part" {
			_ = bar.Add64(e.BytesDone)
		}
	})
	return s3tool.New(cmd.Context(), cfg, s3tool.WithListener(listener))
}
