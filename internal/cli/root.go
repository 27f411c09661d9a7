// Package cli provides the pdfmerge command-line client.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"pdfmerger/internal/client"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string
	apiKey    string
)

var rootCmd = &cobra.Command{
	Use:   "pdfmerge",
	Short: "Merge PDFs and images with a pdfmerger server",
	Long: `pdfmerge uploads PDFs and JPG/PNG images to a pdfmerger server,
follows the merge job and downloads the result.

The server defaults to $PDF_MERGER_SERVER or http://localhost:8080.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newClient() *client.Client {
	return client.New(serverURL, apiKey)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", os.Getenv("PDF_MERGER_SERVER"), "server base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("PDF_MERGER_API_KEY"), "value sent as X-API-KEY")

	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(imagesCmd)
	rootCmd.AddCommand(eventsCmd)
}
