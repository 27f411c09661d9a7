package merger

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// makePDF returns a PDF with the given number of pages of size w x h points.
func makePDF(t *testing.T, pages int, w, h float64) []byte {
	t.Helper()
	doc := fpdf.NewCustom(&fpdf.InitType{UnitStr: "pt", Size: fpdf.SizeType{Wd: w, Ht: h}})
	for i := 0; i < pages; i++ {
		doc.AddPage()
		doc.Rect(10, 10, w/2, h/2, "F")
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

// makeObjectStreamPDF returns a PDF whose objects live in compressed object
// streams behind a cross-reference stream.
func makeObjectStreamPDF(t *testing.T, pages int, w, h float64) []byte {
	t.Helper()
	conf := pdfConfig()
	conf.Cmd = model.OPTIMIZE
	conf.WriteObjectStream = true
	conf.WriteXRefStream = true

	var buf bytes.Buffer
	require.NoError(t, api.Optimize(bytes.NewReader(makePDF(t, pages, w, h)), &buf, conf))
	require.Contains(t, buf.String(), "/ObjStm")
	return buf.Bytes()
}

// makePNG returns a solid w x h PNG.
func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
