package merger

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	fpdi "github.com/phpdave11/gofpdi"
)

var errUnsupportedStructure = errors.New("unsupported PDF structure")

var disableConfigDir sync.Once

// pageBoxes is gofpdi's page geometry: page number, box name, "w" or "h".
type pageBoxes map[int]map[string]map[string]float64

// pdfInput is an uploaded PDF rewritten with a plain xref table and no
// object streams, ready for page import.
type pdfInput struct {
	data  []byte
	pages int
	boxes pageBoxes
}

func pdfConfig() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// openPDF parses data, rejects encrypted documents and loads the rewritten
// file into a page importer so that every read failure surfaces here rather
// than during assembly. Errors are *InputError.
func openPDF(name string, data []byte) (in *pdfInput, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			in, err = nil, recoveredError(name, rec)
		}
	}()

	ctx, err := api.ReadAndValidate(bytes.NewReader(data), pdfConfig())
	if err != nil {
		if errors.Is(err, pdfcpu.ErrWrongPassword) || hasEncryptTrailer(data) {
			return nil, encryptedError(name)
		}
		return nil, readError(name, err)
	}
	if ctx.Encrypt != nil {
		return nil, encryptedError(name)
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, readError(name, fmt.Errorf("rewrite: %w", err))
	}

	boxes, err := loadPageBoxes(name, buf.Bytes(), ctx.PageCount)
	if err != nil {
		return nil, err
	}
	return &pdfInput{data: buf.Bytes(), pages: ctx.PageCount, boxes: boxes}, nil
}

// loadPageBoxes reads data with the importer Assemble uses and returns the
// geometry of every page.
func loadPageBoxes(name string, data []byte, pages int) (boxes pageBoxes, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			boxes, err = nil, recoveredError(name, rec)
		}
	}()

	imp := fpdi.NewImporter()
	var rs io.ReadSeeker = bytes.NewReader(data)
	imp.SetSourceStream(&rs)
	if n := imp.GetNumPages(); n != pages {
		return nil, readError(name, fmt.Errorf("page tree lists %d pages, expected %d", n, pages))
	}
	return imp.GetPageSizes(), nil
}

func readError(name string, err error) *InputError {
	return &InputError{File: name, Msg: fmt.Sprintf("Failed to read '%s'", name), Err: err}
}

func encryptedError(name string) *InputError {
	return &InputError{File: name, Msg: "Encrypted PDF not supported: " + name}
}

// recoveredError turns a panic raised by a PDF library into an input error.
// Runtime faults carry no useful text for the user.
func recoveredError(name string, rec any) *InputError {
	if _, ok := rec.(runtime.Error); ok {
		return readError(name, errUnsupportedStructure)
	}
	if err, ok := rec.(error); ok {
		return readError(name, err)
	}
	return readError(name, fmt.Errorf("%v", rec))
}
