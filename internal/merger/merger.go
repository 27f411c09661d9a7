// Package merger assembles uploaded PDFs and images into a single PDF.
package merger

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/go-pdf/fpdf"
	"github.com/go-pdf/fpdf/contrib/gofpdi"

	"pdfmerger/internal/jobs"
	"pdfmerger/internal/pageranges"
)

const mediaBox = "/MediaBox"

// Service builds merge batches that share one worker pool.
type Service struct {
	logger *slog.Logger
	pool   *Pool
}

func NewService(logger *slog.Logger, pool *Pool) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if pool == nil {
		pool = NewPool(0)
	}
	return &Service{logger: logger, pool: pool}
}

// Pool returns the service's worker pool.
func (s *Service) Pool() *Pool { return s.pool }

// NewBatch prepares files for merging in the given order.
func (s *Service) NewBatch(files []File) *Batch {
	return &Batch{svc: s, files: files}
}

// NewAssembler is NewBatch typed for the job runner.
func (s *Service) NewAssembler(files []File) jobs.Assembler {
	return s.NewBatch(files)
}

// source is a planned input: its kind, the pages it contributes and, for
// PDFs, the stream gofpdi imports from. gofpdi keys sources by the address of
// the stream field, so it must stay put for the life of the batch.
type source struct {
	file  File
	kind  Kind
	pages []int

	stream io.ReadSeeker
	boxes  pageBoxes
	img    image.Image
}

// Batch is one merge. It implements jobs.Assembler.
type Batch struct {
	svc     *Service
	files   []File
	sources []*source
	total   int
	planned bool
}

// Plan validates every file and resolves its page ranges. It returns the
// number of output pages.
func (b *Batch) Plan(ctx context.Context) (int, error) {
	b.sources = b.sources[:0]
	b.total = 0

	for _, f := range b.files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		src, err := b.planFile(f)
		if err != nil {
			return 0, err
		}
		b.sources = append(b.sources, src)
		b.total += len(src.pages)
	}
	b.planned = true
	return b.total, nil
}

func (b *Batch) planFile(f File) (*source, error) {
	if len(f.Data) == 0 {
		return nil, &InputError{File: f.Name, Msg: "Empty file: " + f.Name}
	}
	kind, err := DetectKind(f.Name)
	if err != nil {
		return nil, &InputError{File: f.Name, Msg: "Unsupported file type: " + f.Name}
	}

	src := &source{file: f, kind: kind}
	numPages := 1
	switch kind {
	case KindPDF:
		in, err := openPDF(f.Name, f.Data)
		if err != nil {
			return nil, err
		}
		numPages = in.pages
		src.stream = bytes.NewReader(in.data)
		src.boxes = in.boxes
	case KindImage:
		if src.img, err = decodeImage(f.Name, f.Data); err != nil {
			return nil, err
		}
	}

	if src.pages, err = pageranges.Parse(f.Ranges, numPages); err != nil {
		return nil, &InputError{File: f.Name, Msg: f.Name, Err: err}
	}
	return src, nil
}

// Assemble renders every planned page in order and returns the PDF bytes.
// progress is called after each page.
func (b *Batch) Assemble(ctx context.Context, progress jobs.ProgressFunc) ([]byte, error) {
	if !b.planned {
		if _, err := b.Plan(ctx); err != nil {
			return nil, err
		}
	}
	if b.total == 0 {
		return nil, jobs.ErrNothingSelected
	}

	w, h := DefaultLayout.Size()
	doc := fpdf.NewCustom(&fpdf.InitType{UnitStr: "pt", Size: fpdf.SizeType{Wd: w, Ht: h}})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	imp := gofpdi.NewImporter()

	done := 0
	for si, src := range b.sources {
		for _, idx := range src.pages {
			err := b.svc.pool.Do(ctx, func() error {
				if src.kind == KindImage {
					return addImagePage(doc, src, fmt.Sprintf("img-%d-%d", si, done))
				}
				return addPDFPage(doc, imp, src, idx)
			})
			if err != nil {
				return nil, err
			}
			done++
			if progress != nil {
				progress(done, src.file.Name)
			}
		}
	}

	var buf bytes.Buffer
	err := b.svc.pool.Do(ctx, func() error {
		if err := doc.Output(&buf); err != nil {
			return fmt.Errorf("write merged pdf: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.svc.logger.Debug("merge assembled", "files", len(b.sources), "pages", done, "bytes", buf.Len())
	return buf.Bytes(), nil
}

func addPDFPage(doc *fpdf.Fpdf, imp *gofpdi.Importer, src *source, idx int) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = recoveredError(src.file.Name, rec)
		}
	}()

	pageNo := idx + 1
	tpl := imp.ImportPageFromStream(doc, &src.stream, pageNo, mediaBox)

	var srcW, srcH float64
	if box, ok := src.boxes[pageNo][mediaBox]; ok {
		srcW, srcH = box["w"], box["h"]
	}

	if src.file.Layout == nil {
		if srcW <= 0 || srcH <= 0 {
			srcW, srcH = DefaultLayout.Size()
		}
		doc.AddPageFormat("P", fpdf.SizeType{Wd: srcW, Ht: srcH})
		imp.UseImportedTemplate(doc, tpl, 0, 0, srcW, srcH)
	} else {
		pageW, pageH, r := src.file.Layout.Place(srcW, srcH)
		doc.AddPageFormat("P", fpdf.SizeType{Wd: pageW, Ht: pageH})
		imp.UseImportedTemplate(doc, tpl, r.X, r.Y, r.W, r.H)
	}
	return docErr(doc)
}

func addImagePage(doc *fpdf.Fpdf, src *source, name string) error {
	layout := DefaultLayout
	if src.file.Layout != nil {
		layout = *src.file.Layout
	}

	page, err := renderImagePage(src.img, layout)
	if err != nil {
		return err
	}

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(page.jpeg))
	doc.AddPageFormat("P", fpdf.SizeType{Wd: page.pageW, Ht: page.pageH})
	doc.ImageOptions(name, page.rect.X, page.rect.Y, page.rect.W, page.rect.H, false, opts, 0, "")
	return docErr(doc)
}

func docErr(doc *fpdf.Fpdf) error {
	if doc.Err() {
		return fmt.Errorf("assemble pdf: %w", doc.Error())
	}
	return nil
}
