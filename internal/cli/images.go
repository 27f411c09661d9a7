package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pdfmerger/internal/client"
)

var (
	imagesRange   string
	imagesDPI     int
	imagesQuality int
	imagesOutput  string
)

var imagesCmd = &cobra.Command{
	Use:   "images FILE.pdf",
	Short: "Convert PDF pages to JPG images (ZIP)",
	Long: `Render the pages of a PDF to JPG on the server and save them as a ZIP.

Examples:
  pdfmerge images report.pdf
  pdfmerge images report.pdf --range 2-4 --dpi 300 -o pages.zip`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := imagesOutput
		if out == "" {
			base := filepath.Base(args[0])
			out = strings.TrimSuffix(base, filepath.Ext(base)) + "_images.zip"
		}

		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		opts := client.ImageOptions{PageRange: imagesRange, DPI: imagesDPI, Quality: imagesQuality}
		n, err := newClient().PdfToImages(cmd.Context(), args[0], opts, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(out)
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved %s (%d bytes)\n", out, n)
		return nil
	},
}

func init() {
	imagesCmd.Flags().StringVarP(&imagesRange, "range", "r", "", "pages to convert, e.g. 1-3,5")
	imagesCmd.Flags().IntVar(&imagesDPI, "dpi", 0, "resolution, 72-600 (server default 200)")
	imagesCmd.Flags().IntVar(&imagesQuality, "quality", 0, "JPG quality, 1-100 (server default 85)")
	imagesCmd.Flags().StringVarP(&imagesOutput, "output", "o", "", "output ZIP")
}
