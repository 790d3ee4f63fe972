package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLsCmd(flags *globalFlags) *cobra.Command {
	var delimiter string

	cmd := &cobra.Command{
		Use:   "ls <s3://bucket[/prefix]>",
		Short: "List objects under a prefix",
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
			objects, err := client.List(cmd.Context(), bucket, prefix, delimiter)
			if err != nil {
				return err
			}
			for _, obj := range objects {
				fmt.Printf("%12d  %s\n", obj.Size, obj.Key)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&delimiter, "delimiter", "", "group keys sharing a prefix up to delimiter")
	return cmd
}

// parseBucketPrefix parses "s3://bucket" or "s3://bucket/prefix",
// where, unlike ParseURI's object key, the prefix component may be
// empty (list everything in the bucket).
func parseBucketPrefix(uri string) (bucket, prefix string, err error) {
	const scheme = "s3://"
	if !strings.HasPrefix(uri, scheme) {
		return "", "", fmt.Errorf("uri %q must start with %q", uri, scheme)
	}
	rest := uri[len(scheme):]
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("uri %q must have the form s3://bucket[/prefix]", uri)
	}
	return bucket, prefix, nil
}
