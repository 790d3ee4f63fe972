package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s3tool/s3tool"
	"github.com/s3tool/s3tool/internal/logx"
)

// globalFlags holds the persistent flags every sub-command shares,
// grounded on the teacher's pattern of one connection config built
// once in PersistentPreRunE and threaded to every sub-command.
type globalFlags struct {
	region    string
	endpoint  string
	accessKey string
	secretKey string
	keyDir    string
	retries   int
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "s3tool",
		Short:         "Chunked, parallel, optionally-encrypted S3 transfers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.region, "region", "us-east-1", "S3 region")
	root.PersistentFlags().StringVar(&flags.endpoint, "endpoint", "", "S3-compatible endpoint override")
	root.PersistentFlags().StringVar(&flags.accessKey, "access-key", "", "static access key ID")
	root.PersistentFlags().StringVar(&flags.secretKey, "secret-key", "", "static secret access key")
	root.PersistentFlags().StringVar(&flags.keyDir, "key-dir", "", "encryption key pair directory (default ~/.s3lib-keys)")
	root.PersistentFlags().IntVar(&flags.retries, "retry", 0, "retry cap override (0 uses the library default)")

	root.AddCommand(
		newUploadCmd(flags),
		newDownloadCmd(flags),
		newCopyCmd(flags),
		newLsCmd(flags),
		newRmCmd(flags),
		newExistsCmd(flags),
		newDuCmd(flags),
		newListPendingUploadsCmd(flags),
		newAbortPendingUploadCmd(flags),
		newAddEncryptedKeyCmd(flags),
		newRemoveEncryptedKeyCmd(flags),
	)

	return root
}

// client builds a Client from the global flags. Constructed fresh per
// invocation since the CLI is a one-shot process (Design Note 5: no
// mid-process config mutation).
func (f *globalFlags) client(ctx context.Context) (*s3tool.Client, error) {
	cfg := s3tool.Config{
		Region:          f.region,
		Endpoint:        f.endpoint,
		AccessKeyID:     f.accessKey,
		SecretAccessKey: f.secretKey,
		KeyDir:          f.keyDir,
		MaxRetries:      f.retries,
	}
	return s3tool.New(ctx, cfg, s3tool.WithLogger(logx.Default()))
}

func parseURIArg(args []string, index int) (bucket, key string, err error) {
	if index >= len(args) {
		return "", "", fmt.Errorf("missing s3:// URI argument")
	}
	bucket, key, _, err = s3tool.ParseURI(args[index])
	return bucket, key, err
}
