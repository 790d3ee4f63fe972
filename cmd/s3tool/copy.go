package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/s3tool/s3tool"
)

func newCopyCmd(flags *globalFlags) *cobra.Command {
	var acl string

	cmd := &cobra.Command{
		Use:   "copy <s3://src-bucket/key> <s3://dst-bucket/key>",
		Short: "Server-side copy an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			srcBucket, srcKey, err := parseURIArg(args, 0)
			if err != nil {
				return err
			}
			dstBucket, dstKey, err := parseURIArg(args, 1)
			if err != nil {
				return err
			}

			var opts []s3tool.CopyOption
			if acl != "" {
				opts = append(opts, s3tool.WithCopyACL(acl))
			}
			copyOpts, err := s3tool.NewCopyOptions(srcBucket, srcKey, dstBucket, dstKey, opts...)
			if err != nil {
				return err
			}

			bar := progressbar.DefaultBytes(-1, "copying")
			client, err := withProgressListener(cmd, flags, bar)
			if err != nil {
				return err
			}
			result, err := client.Copy(cmd.Context(), copyOpts)
			if err != nil {
				return err
			}
			_ = bar.Close()
			fmt.Printf("copied to %s/%s in %d part(s), etag=%s\n", dstBucket, dstKey, result.NumParts, result.ETag)
			return nil
		},
	}

	cmd.Flags().StringVar(&acl, "acl", "", "canned ACL for the destination object")
	return cmd
}
