package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/posterfall/ratingscout/internal/app"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show today's upstream call usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, application *app.App) error {
			count, limit, err := application.QuotaStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Upstream calls today: %d / %d\n", count, limit)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(quotaCmd)
}
