package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/giftry/shophook/internal/config"
	"github.com/giftry/shophook/internal/signature"
)

func verifyCmd() *cobra.Command {
	var (
		secretFlag string
		signFlag   bool
	)

	cmd := &cobra.Command{
		Use:   "verify <payload-file> [signature]",
		Short: "Verify or produce a webhook signature for a payload file",
		Long: `Verify checks a base64 HMAC-SHA256 signature against a payload file,
the same check the server applies to inbound deliveries. With --sign it
prints the signature instead, which is useful for crafting test requests.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := secretFlag
			if secret == "" {
				cfg, err := config.Read()
				if err != nil {
					return fmt.Errorf("failed to read config: %w", err)
				}
				secret = cfg.Shopify.APISecret
			}

			body, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read payload: %w", err)
			}

			if signFlag {
				fmt.Fprintln(cmd.OutOrStdout(), signature.Sign(body, secret))
				return nil
			}

			if len(args) < 2 {
				return fmt.Errorf("signature argument required unless --sign is set")
			}
			if !signature.Verify(body, args[1], secret) {
				return fmt.Errorf("signature mismatch")
			}

			fmt.Fprintln(cmd.OutOrStdout(), "signature valid")
			return nil
		},
	}

	cmd.Flags().StringVar(&secretFlag, "secret", "", "signing secret (defaults to SHOPIFY_API_SECRET)")
	cmd.Flags().BoolVar(&signFlag, "sign", false, "print the payload's signature instead of verifying")
	return cmd
}
