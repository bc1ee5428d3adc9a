package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nordiq/mailroom/services/sync-service/internal/secret"
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt <plaintext>",
	Short: "Encrypt a credential secret",
	Long:  "Encrypts a plaintext secret with the configured key, for seeding credential rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := secret.NewCodec(viper.GetString("secret.key"))
		if err != nil {
			return fmt.Errorf("failed to initialize secret codec: %w", err)
		}

		ciphertext, err := codec.Encrypt(args[0])
		if err != nil {
			return fmt.Errorf("failed to encrypt: %w", err)
		}

		fmt.Println(ciphertext)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(encryptCmd)
}
