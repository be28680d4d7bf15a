package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fitDietAPI/internal/config"
	"fitDietAPI/internal/store"
	"fitDietAPI/internal/store/postgres"
	"fitDietAPI/internal/store/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "fitdiet",
	Short: "fitDiet progression API",
	Long: `fitDiet serves levels, leagues, streaks, daily tasks, achievements,
diet programs and the leaderboard for the fitDiet mobile app.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (default)",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	log.Println("Migrations applied")
	return nil
}

// openStore selects Postgres when DATABASE_URL is set, SQLite otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.UsePostgres() {
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Println("Successfully connected to Postgres")
		return s, nil
	}

	s, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	log.Printf("Using SQLite database at %s", cfg.SQLitePath)
	return s, nil
}
