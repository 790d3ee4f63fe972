package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDuCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "du <s3://bucket[/prefix]>",
		Short: "Sum object sizes under a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, prefix, err := parseBucketPrefix(args[0])
			if err != nil {
				return err
			}

			client, err := flags.client(cmd.Context())
			if err != nil {
				return err
			}
			objects, err := client.List(cmd.Context(), bucket, prefix, "")
			if err != nil {
				return err
			}

			var total int64
			for _, obj := range objects {
				total += obj.Size
			}
			fmt.Printf("%d\t%d object(s)\n", total, len(objects))
			return nil
		},
	}
}
