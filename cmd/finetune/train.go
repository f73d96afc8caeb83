package main

import (
	"fmt"
	"path/filepath"

	"beveragedetect/internal/dataset"
	"beveragedetect/internal/trainer"

	"github.com/spf13/cobra"
)

var (
	epochs       int
	imgSize      int
	weights      string
	runName      string
	skipDownload bool
)

// trainCmd runs the full fine-tuning pipeline
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Download the dataset and fine-tune YOLOv8",
	Long: `Download the dataset (unless --skip-download) and fine-tune the
pretrained weights with the yolo trainer. Trainer output is streamed to the log.`,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().IntVar(&epochs, "epochs", trainer.DefaultEpochs, "Number of training epochs")
	trainCmd.Flags().IntVar(&imgSize, "imgsz", trainer.DefaultImgSize, "Training image size")
	trainCmd.Flags().StringVar(&weights, "weights", "", "Pretrained weights (default <experiments>/yolov8n.pt)")
	trainCmd.Flags().StringVar(&runName, "name", trainer.DefaultName, "Run name under <experiments>/runs")
	trainCmd.Flags().BoolVar(&skipDownload, "skip-download", false, "Reuse an already downloaded dataset")
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dataPath := filepath.Join(datasetDir(), dataset.DataFile)
	if skipDownload {
		if _, err := dataset.ReadDataConfig(dataPath); err != nil {
			return fmt.Errorf("no usable dataset, run without --skip-download: %w", err)
		}
	} else {
		var err error
		if dataPath, err = downloadDataset(ctx); err != nil {
			return err
		}
	}

	model := weights
	if model == "" {
		model = filepath.Join(experimentsDir, trainer.DefaultWeights)
	}

	opts := trainer.TrainOptions{
		Data:    dataPath,
		Model:   model,
		Epochs:  epochs,
		ImgSize: imgSize,
		Project: filepath.Join(experimentsDir, "runs"),
		Name:    runName,
	}
	if err := trainer.NewRunner(trainerBinary, log).Train(ctx, opts); err != nil {
		return err
	}

	log.Info("Training finished, best weights: %s", opts.BestWeights())
	fmt.Fprintln(cmd.OutOrStdout(), opts.BestWeights())
	return nil
}
