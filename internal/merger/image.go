package merger

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Pixels per point used when rasterizing images onto a page (144 dpi).
const pixelsPerPoint = 2.0

// imagePage is an image resampled for one output page.
type imagePage struct {
	jpeg         []byte
	pageW, pageH float64
	rect         Rect
}

// decodeImage reads a JPEG or PNG and applies its EXIF orientation.
func decodeImage(name string, data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, readError(name, err)
	}
	return img, nil
}

// renderImagePage fits img onto a page described by layout. Letterbox only
// ever downsamples; crop fills the page exactly.
func renderImagePage(img image.Image, layout Layout) (*imagePage, error) {
	b := img.Bounds()
	pageW, pageH, rect := layout.Place(float64(b.Dx()), float64(b.Dy()))

	var out image.Image
	if layout.FitMode == Crop {
		rect = Rect{W: pageW, H: pageH}
		out = imaging.Fill(img, pixels(pageW), pixels(pageH), imaging.Center, imaging.Lanczos)
	} else {
		out = imaging.Fit(img, pixels(rect.W), pixels(rect.H), imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return &imagePage{jpeg: buf.Bytes(), pageW: pageW, pageH: pageH, rect: rect}, nil
}

func pixels(points float64) int {
	return max(1, int(math.Round(points*pixelsPerPoint)))
}
