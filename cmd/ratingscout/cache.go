package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/posterfall/ratingscout/internal/app"
	"github.com/posterfall/ratingscout/internal/logger"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the lookup cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired entries and enforce the size bound",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, application *app.App) error {
			removed, err := application.PruneCache(ctx)
			if err != nil {
				return err
			}
			remaining, err := application.CacheSize(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d entries, %d remaining\n", removed, remaining)
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached lookups",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, application *app.App) error {
			removed, err := application.ClearCache(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %d entries\n", removed)
			return nil
		})
	},
}

// withApp wires up an application instance for one maintenance command.
func withApp(fn func(context.Context, *app.App) error) error {
	log := logger.NewWithLevel(viper.GetString("log_level"))

	application, err := app.New(log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	return fn(context.Background(), application)
}

func init() {
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
