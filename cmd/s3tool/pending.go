package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListPendingUploadsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list-pending-uploads <bucket>",
		Short: "List incomplete multipart uploads in a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client(cmd.Context())
			if err != nil {
				return err
			}
			uploads, err := client.ListPendingUploads(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, u := range uploads {
				fmt.Printf("%s\t%s\t%s\n", u.UploadID, u.Key, u.Started)
			}
			return nil
		},
	}
}

func newAbortPendingUploadCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "abort-pending-upload <s3://bucket/key> <upload-id>",
		Short: "Abort an incomplete multipart upload",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, key, err := parseURIArg(args, 0)
			if err != nil {
				return err
			}
			client, err := flags.client(cmd.Context())
			if err != nil {
				return err
			}
			if err := client.AbortPendingUpload(cmd.Context(), bucket, key, args[1]); err != nil {
				return err
			}
			fmt.Printf("aborted upload %s for %s/%s\n", args[1], bucket, key)
			return nil
		},
	}
}
