package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/posterfall/ratingscout/internal/app"
	"github.com/posterfall/ratingscout/internal/domain"
	"github.com/posterfall/ratingscout/internal/logger"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <title>",
	Short: "Resolve a title to its rating record",
	Long: `Resolve looks up a title against the local cache first, then the
upstream rating API. Supplying --year and --type narrows the search and
bounds upstream cost; a bare title may spend up to four calls.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.NewWithLevel(viper.GetString("log_level"))

		application, err := app.New(log)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		year, _ := cmd.Flags().GetString("year")
		mediaType, _ := cmd.Flags().GetString("type")
		if mediaType != "" && !domain.MediaType(mediaType).Valid() {
			return fmt.Errorf("invalid type: %s (must be 'movie' or 'series')", mediaType)
		}

		query := domain.LookupQuery{
			Title: args[0],
			Year:  year,
			Type:  domain.MediaType(mediaType),
		}

		resolution, err := application.Resolve(context.Background(), query)
		if err != nil {
			return err
		}

		if !resolution.Found() {
			fmt.Printf("No rating found for %q (cached: %v)\n", args[0], resolution.Cached)
			return nil
		}

		r := resolution.Record
		fmt.Printf("%s (%s, %s)\n", r.Title, r.Year, r.Type)
		if r.IMDBRating != "" {
			fmt.Printf("  IMDb:            %s\n", r.IMDBRating)
		}
		if r.RottenTomatoes != "" {
			fmt.Printf("  Rotten Tomatoes: %s\n", r.RottenTomatoes)
		}
		fmt.Printf("  ID: %s  cached: %v\n", r.ExternalID, resolution.Cached)
		return nil
	},
}

func init() {
	resolveCmd.Flags().String("year", "", "4-digit release year hint")
	resolveCmd.Flags().String("type", "", "media type hint: 'movie' or 'series'")
	rootCmd.AddCommand(resolveCmd)
}
