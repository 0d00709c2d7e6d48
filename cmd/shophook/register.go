package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/giftry/shophook/internal/client/shopify"
	"github.com/giftry/shophook/internal/config"
	"github.com/giftry/shophook/internal/registrar"
	"github.com/giftry/shophook/internal/xslog"
	go_json "github.com/goccy/go-json"
)

func registerCmd() *cobra.Command {
	var topicsFlag []string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create webhook subscriptions for the configured topics",
		Long: `Create a webhook subscription per topic pointing at the callback URL.
Topics are registered concurrently; transient failures are retried with
exponential backoff. Exits non-zero when any topic could not be subscribed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read()
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}
			if cfg.Shopify.AccessToken == "" || cfg.Shopify.ShopDomain == "" {
				return fmt.Errorf("SHOPIFY_ACCESS_TOKEN and SHOPIFY_SHOP_DOMAIN are required")
			}

			topics := cfg.Shopify.Topics
			if len(topicsFlag) > 0 {
				topics = topicsFlag
			}

			logger := xslog.NewLoggerFromEnv(os.Stderr)
			slog.SetDefault(logger)

			client := shopify.New(
				cfg.Shopify.ShopDomain,
				oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Shopify.AccessToken}),
				shopify.WithLogger(logger),
			)

			ctx := xslog.WithLogger(cmd.Context(), logger)
			report := registrar.New(client).Register(ctx, topics, cfg.CallbackURL())

			enc := go_json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}

			if report.HasFailures() {
				return fmt.Errorf("%d topic(s) failed to register", len(report.Failed))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&topicsFlag, "topics", nil, "override the configured topic list")
	return cmd
}
