package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pdfmerger/internal/client"
	"pdfmerger/internal/models"
)

var (
	fetchOutput string
	statusJSON  bool
)

var statusCmd = &cobra.Command{
	Use:   "status JOB_ID",
	Short: "Show the current state of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := newClient().Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		printSnapshot(snap)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch JOB_ID",
	Short: "Stream progress events of a job until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := newClient().Watch(cmd.Context(), args[0], printProgress)
		if err != nil {
			return err
		}
		return finished(snap)
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch JOB_ID",
	Short: "Download the merged PDF of a completed job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		out := fetchOutput
		if out == "" {
			snap, err := c.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out = snap.OutputName
		}
		return download(cmd, c, args[0], out)
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw snapshot")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "output file (default: the job's output name)")
}

func download(cmd *cobra.Command, c *client.Client, jobID, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	n, err := c.Fetch(cmd.Context(), jobID, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	fmt.Fprintf(os.Stderr, "Saved %s (%d bytes)\n", path, n)
	return nil
}

func printSnapshot(s models.Snapshot) {
	fmt.Printf("Job:      %s\n", s.JobID)
	fmt.Printf("Status:   %s\n", s.Status)
	fmt.Printf("Progress: %d/%d (%.2f%%)\n", s.ProcessedPages, s.TotalPages, s.Percent)
	if s.CurrentFile != "" {
		fmt.Printf("File:     %s\n", s.CurrentFile)
	}
	if s.Error != "" {
		fmt.Printf("Error:    %s\n", s.Error)
	}
	fmt.Printf("Output:   %s (ready: %t)\n", s.OutputName, s.HasResult)
	fmt.Printf("Revision: %d at %s\n", s.Revision, s.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func bar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(" ", width-filled) + "]"
}

// outputName is the server-side name for a local output path.
func outputName(path string) string {
	return filepath.Base(path)
}
