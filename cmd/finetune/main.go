package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"beveragedetect/internal/config"
	"beveragedetect/internal/logger"
	"beveragedetect/internal/roboflow"

	"github.com/spf13/cobra"
)

var (
	envFile        string
	experimentsDir string
	trainerBinary  string

	workspace string
	project   string
	version   int
	format    string

	cfg *config.Config
	log *logger.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "finetune",
	Short: "Fine-tune the beverage container detector",
	Long: `Download the Beverage Containers dataset from Roboflow and fine-tune
YOLOv8 weights on it with the yolo trainer.

Requires ROBOFLOW_API_KEY in the environment or in a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		cfg = config.Load(files...)
		if !cmd.Flags().Changed("experiments") {
			experimentsDir = cfg.ExperimentsDir
		}
		if !cmd.Flags().Changed("trainer") {
			trainerBinary = cfg.TrainerBinary
		}

		var err error
		log, err = logger.NewLogger(cfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Extra .env file to load")
	rootCmd.PersistentFlags().StringVar(&experimentsDir, "experiments", "experiments", "Experiments directory (or set EXPERIMENTS_DIR)")
	rootCmd.PersistentFlags().StringVar(&trainerBinary, "trainer", "yolo", "Trainer executable (or set TRAINER_BIN)")

	for _, cmd := range []*cobra.Command{downloadCmd, trainCmd} {
		cmd.Flags().StringVar(&workspace, "workspace", roboflow.DefaultWorkspace, "Roboflow workspace")
		cmd.Flags().StringVar(&project, "project", roboflow.DefaultProject, "Roboflow project")
		cmd.Flags().IntVar(&version, "version", roboflow.DefaultVersion, "Dataset version")
		cmd.Flags().StringVar(&format, "format", roboflow.DefaultFormat, "Export format")
	}

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(exportCmd)
}

func datasetDir() string {
	return filepath.Join(experimentsDir, "dataset")
}

// downloadDataset fetches the configured dataset version into datasetDir.
func downloadDataset(ctx context.Context) (string, error) {
	client, err := roboflow.NewClient(cfg.RoboflowAPIKey, cfg.RoboflowAPIURL, log)
	if err != nil {
		return "", err
	}
	v := roboflow.Version{Workspace: workspace, Project: project, Number: version}
	dataPath, _, err := client.DownloadDataset(ctx, v, format, datasetDir())
	return dataPath, err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
