package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/s3tool/s3tool"
)

func newDownloadCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <s3://bucket/key> <local-path>",
		Short: "Download an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, key, err := parseURIArg(args, 0)
			if err != nil {
				return err
			}

			downloadOpts, err := s3tool.NewDownloadOptions(bucket, key, args[1])
			if err != nil {
				return err
			}

			bar := progressbar.DefaultBytes(-1, "downloading")
			client, err := withProgressListener(cmd, flags, bar)
			if err != nil {
				return err
			}
			result, err := client.Download(cmd.Context(), downloadOpts)
			if err != nil {
				return err
			}
			_ = bar.Close()
			fmt.Printf("downloaded %s/%s (%d bytes, %d part(s))\n", bucket, key, result.BytesWritten, result.NumParts)
			return nil
		},
	}
	return cmd
}
