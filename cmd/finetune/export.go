package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"beveragedetect/internal/trainer"

	"github.com/spf13/cobra"
)

var (
	exportWeights string
	exportFormat  string
	exportImgSize int
	exportOutput  string
)

// exportCmd converts trained weights for the server
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Convert trained weights to ONNX for the server",
	Long: `Run "yolo export" on the trained weights and copy the result to the
server's model path (MODEL_PATH unless --output is given).`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportWeights, "weights", "", "Trained weights (default <experiments>/runs/train/weights/best.pt)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "onnx", "Export format")
	exportCmd.Flags().IntVar(&exportImgSize, "imgsz", trainer.DefaultImgSize, "Export image size")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "Copy the exported model here (default MODEL_PATH, empty string to skip)")
}

func runExport(cmd *cobra.Command, args []string) error {
	weightsPath := exportWeights
	if weightsPath == "" {
		weightsPath = trainer.TrainOptions{Project: filepath.Join(experimentsDir, "runs"), Name: trainer.DefaultName}.BestWeights()
	}
	if _, err := os.Stat(weightsPath); err != nil {
		return fmt.Errorf("weights not found: %w", err)
	}

	exported, err := trainer.NewRunner(trainerBinary, log).Export(cmd.Context(), trainer.ExportOptions{
		Weights: weightsPath,
		Format:  exportFormat,
		ImgSize: exportImgSize,
	})
	if err != nil {
		return err
	}

	output := exportOutput
	if !cmd.Flags().Changed("output") {
		output = cfg.ModelPath
	}
	if output != "" {
		if err := copyFile(exported, output); err != nil {
			return err
		}
		log.Info("Model copied to %s", output)
		exported = output
	}

	fmt.Fprintln(cmd.OutOrStdout(), exported)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open exported model: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy model to %s: %w", dst, err)
	}
	return out.Close()
}
