package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRmCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <s3://bucket/key>",
		Short: "Delete an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, key, err := parseURIArg(args, 0)
			if err != nil {
				return err
			}
			client, err := flags.client(cmd.Context())
			if err != nil {
				return err
			}
			if err := client.Delete(cmd.Context(), bucket, key); err != nil {
				return err
			}
			fmt.Printf("deleted %s/%s\n", bucket, key)
			return nil
		},
	}
}

func newExistsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <s3://bucket/key>",
		Short: "Check whether an object exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, key, err := parseURIArg(args, 0)
			if err != nil {
				return err
			}
			client, err := flags.client(cmd.Context())
			if err != nil {
				return err
			}
			exists, err := client.Exists(cmd.Context(), bucket, key)
			if err != nil {
				return err
			}
			if !exists {
				fmt.Printf("%s/%s does not exist\n", bucket, key)
				return errExitSilent{}
			}
			fmt.Printf("%s/%s exists\n", bucket, key)
			return nil
		},
	}
}

// errExitSilent signals a non-zero exit without printing "s3tool: ..."
// noise for the expected-false case of exists.
type errExitSilent struct{}

func (errExitSilent) Error() string { return "" }
