package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAddEncryptedKeyCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add-encrypted-key <s3://bucket/key> <key-name>",
		Short: "Wrap an encrypted object's symmetric key under another key pair",
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
			if err := client.AddEncryptedKey(cmd.Context(), bucket, key, args[1]); err != nil {
				return err
			}
			fmt.Printf("added key %q to %s/%s\n", args[1], bucket, key)
			return nil
		},
	}
}

func newRemoveEncryptedKeyCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-encrypted-key <s3://bucket/key> <key-name>",
		Short: "Remove a key-pair wrapping from an encrypted object",
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
			if err := client.RemoveEncryptedKey(cmd.Context(), bucket, key, args[1]); err != nil {
				return err
			}
			fmt.Printf("removed key %q from %s/%s\n", args[1], bucket, key)
			return nil
		},
	}
}
