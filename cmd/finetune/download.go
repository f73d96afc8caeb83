package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// downloadCmd fetches the dataset without training
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the dataset from Roboflow",
	Long: `Request a dataset export from Roboflow, download and extract it into
<experiments>/dataset and rewrite data.yaml with absolute split paths.`,
	RunE: runDownload,
}

func runDownload(cmd *cobra.Command, args []string) error {
	dataPath, err := downloadDataset(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), dataPath)
	return nil
}
