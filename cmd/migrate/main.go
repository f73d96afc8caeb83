package main

import (
	"fmt"
	"os"

	"beveragedetect/internal/config"
	"beveragedetect/internal/repository/sqlite"
	"beveragedetect/internal/service/storage"

	"github.com/spf13/cobra"
)

var (
	imagesDir string
	dbPath    string
	dryRun    bool
)

// rootCmd reconciles the image directory with the run history
var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring stored images and the run history back in sync",
	Long: `Remove image files that belong to no run and runs whose images are
missing. Stop the server first.`,
	SilenceUsage: true,
	RunE:         runMigrate,
}

func init() {
	cfg := config.Load()
	rootCmd.Flags().StringVar(&imagesDir, "images", cfg.ImageDirectory, "Directory containing run images")
	rootCmd.Flags().StringVar(&dbPath, "db", cfg.DatabasePath, "Database path")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only report what would be removed")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Reconciling %s with database %s\n", imagesDir, dbPath)

	db, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	report, err := storage.Reconcile(imagesDir, sqlite.NewRunRepository(db), dryRun)
	if err != nil {
		return err
	}

	verb := "Removed"
	if dryRun {
		verb = "Would remove"
	}
	for _, path := range report.OrphanFiles {
		fmt.Fprintf(out, "%s orphan file %s\n", verb, path)
	}
	for _, run := range report.BrokenRuns {
		fmt.Fprintf(out, "%s run %s (%s)\n", verb, run.UUID, run.Filename)
	}
	fmt.Fprintf(out, "%d orphan file(s), %d broken run(s)\n", len(report.OrphanFiles), len(report.BrokenRuns))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
