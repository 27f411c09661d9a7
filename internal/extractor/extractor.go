// Package extractor renders PDF pages to JPEG images with poppler's pdftoppm
// and packages them as a ZIP archive.
package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultDPI     = 200
	DefaultQuality = 85
)

var (
	ErrInvalidDPI     = errors.New("dpi must be between 72 and 600")
	ErrInvalidQuality = errors.New("quality must be between 1 and 100")
	ErrNoPages        = errors.New("no pages selected")
)

// ProgressCallback receives the number of rendered pages after each page.
type ProgressCallback func(done, total int)

// Limiter bounds concurrent rendering. merger.Pool satisfies it.
type Limiter interface {
	Do(ctx context.Context, fn func() error) error
}

// Options controls rendering quality.
type Options struct {
	DPI     int
	Quality int
}

// Validate applies defaults to zero values and checks ranges.
func (o *Options) Validate() error {
	if o.DPI == 0 {
		o.DPI = DefaultDPI
	}
	if o.Quality == 0 {
		o.Quality = DefaultQuality
	}
	if o.DPI < 72 || o.DPI > 600 {
		return ErrInvalidDPI
	}
	if o.Quality < 1 || o.Quality > 100 {
		return ErrInvalidQuality
	}
	return nil
}

// Service wraps pdftoppm.
type Service struct {
	logger  *slog.Logger
	bin     string
	limiter Limiter
}

func NewService(logger *slog.Logger, bin string, limiter Limiter) *Service {
	if bin == "" {
		bin = "pdftoppm"
	}
	return &Service{logger: logger, bin: bin, limiter: limiter}
}

// Available reports whether the pdftoppm binary can be found.
func (s *Service) Available() bool {
	_, err := exec.LookPath(s.bin)
	return err == nil
}

// ExtractPages renders the zero-based pages of the PDF in data and returns a
// ZIP holding <stem>_page_0001.jpg, <stem>_page_0002.jpg, ... in the order
// the pages were given.
func (s *Service) ExtractPages(ctx context.Context, name string, data []byte, pages []int, opts Options, cb ProgressCallback) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	workDir, err := os.MkdirTemp("", "pdfmerger-extract-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input.pdf")
	if err := os.WriteFile(inputPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write input: %w", err)
	}

	stem := Stem(name)
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for i, page := range pages {
		var img []byte
		render := func() error {
			var err error
			img, err = s.renderPage(ctx, inputPath, workDir, page+1, opts)
			return err
		}
		if s.limiter != nil {
			err = s.limiter.Do(ctx, render)
		} else {
			err = render()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to convert page %d: %w", page+1, err)
		}

		w, err := zw.Create(fmt.Sprintf("%s_page_%04d.jpg", stem, i+1))
		if err != nil {
			return nil, fmt.Errorf("failed to add page to archive: %w", err)
		}
		if _, err := w.Write(img); err != nil {
			return nil, fmt.Errorf("failed to add page to archive: %w", err)
		}
		if cb != nil {
			cb(i+1, len(pages))
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	s.logger.Info("pages extracted", "file", name, "pages", len(pages), "dpi", opts.DPI, "bytes", buf.Len())
	return buf.Bytes(), nil
}

func (s *Service) renderPage(ctx context.Context, inputPath, workDir string, pageNo int, opts Options) ([]byte, error) {
	outBase := filepath.Join(workDir, "page-"+strconv.Itoa(pageNo))
	args := []string{
		"-jpeg",
		"-jpegopt", "quality=" + strconv.Itoa(opts.Quality),
		"-r", strconv.Itoa(opts.DPI),
		"-f", strconv.Itoa(pageNo),
		"-l", strconv.Itoa(pageNo),
		"-singlefile",
		inputPath,
		outBase,
	}

	cmd := exec.CommandContext(ctx, s.bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		if msg := lastLine(out); msg != "" {
			return nil, fmt.Errorf("pdftoppm failed: %s", msg)
		}
		return nil, fmt.Errorf("pdftoppm failed: %w", err)
	}

	outputPath := outBase + ".jpg"
	img, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm produced no image: %w", err)
	}
	_ = os.Remove(outputPath)
	return img, nil
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Stem is the file name without directory or extension, or "document".
func Stem(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		return "document"
	}
	return stem
}

// ArchiveName is the download name for the images of name.
func ArchiveName(name string) string {
	return Stem(name) + "_images.zip"
}
