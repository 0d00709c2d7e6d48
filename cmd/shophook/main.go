package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/giftry/shophook/internal/version"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:     "shophook",
		Short:   "Operate Shopify webhook subscriptions and verify deliveries",
		Version: version.Get(),
	}

	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(verifyCmd())

	if err := fang.Execute(context.Background(), rootCmd, fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM)); err != nil {
		os.Exit(1)
	}
}
