package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pdfmerger/internal/client"
	"pdfmerger/internal/models"
)

var (
	mergeRanges      []string
	mergeOutput      string
	mergePaperSize   string
	mergeOrientation string
	mergeFitMode     string
	mergeNoWait      bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge FILE...",
	Short: "Merge files into one PDF",
	Long: `Merge PDFs and images in the given order.

--range may be repeated; the n-th value applies to the n-th file.
Layout flags apply to every file.

Examples:
  pdfmerge merge a.pdf b.pdf -o out.pdf
  pdfmerge merge scan.pdf photo.jpg --range 3-1 --range "" --paper-size A4`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringArrayVarP(&mergeRanges, "range", "r", nil, "page range per file, e.g. 1-3,5")
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "merged.pdf", "output file")
	mergeCmd.Flags().StringVar(&mergePaperSize, "paper-size", "", "A4 or Letter")
	mergeCmd.Flags().StringVar(&mergeOrientation, "orientation", "", "portrait or landscape")
	mergeCmd.Flags().StringVar(&mergeFitMode, "fit-mode", "", "letterbox or crop")
	mergeCmd.Flags().BoolVar(&mergeNoWait, "no-wait", false, "print the job id and exit")
}

func runMerge(cmd *cobra.Command, args []string) error {
	if len(mergeRanges) > len(args) {
		return fmt.Errorf("got %d ranges for %d files", len(mergeRanges), len(args))
	}

	var layout *client.Layout
	if mergePaperSize != "" || mergeOrientation != "" || mergeFitMode != "" {
		layout = &client.Layout{PaperSize: mergePaperSize, Orientation: mergeOrientation, FitMode: mergeFitMode}
	}

	uploads := make([]client.Upload, 0, len(args))
	for i, path := range args {
		var ranges string
		if i < len(mergeRanges) {
			ranges = mergeRanges[i]
		}
		u, err := client.UploadFromFile(path, ranges, layout)
		if err != nil {
			return err
		}
		uploads = append(uploads, u)
	}

	ctx := cmd.Context()
	c := newClient()
	accepted, err := c.Merge(ctx, uploads, outputName(mergeOutput))
	if err != nil {
		return fmt.Errorf("submit merge: %w", err)
	}
	if mergeNoWait {
		fmt.Println(accepted.JobID)
		return nil
	}
	fmt.Fprintf(os.Stderr, "Job %s\n", accepted.JobID)

	snap, err := c.Follow(ctx, accepted.JobID, printProgress)
	if err != nil {
		return fmt.Errorf("follow job: %w", err)
	}
	if err := finished(snap); err != nil {
		return err
	}
	return download(cmd, c, accepted.JobID, mergeOutput)
}

func printProgress(s models.Snapshot) {
	line := fmt.Sprintf("\r%-9s %s %6.2f%% (%d/%d)", s.Status, bar(s.Percent, 30), s.Percent, s.ProcessedPages, s.TotalPages)
	if s.CurrentFile != "" {
		line += " " + s.CurrentFile
	}
	fmt.Fprintf(os.Stderr, "%-100s", line)
	if s.Status.Terminal() {
		fmt.Fprintln(os.Stderr)
	}
}

func finished(s models.Snapshot) error {
	if s.Status == models.StatusError {
		return fmt.Errorf("merge failed: %s", s.Error)
	}
	return nil
}
