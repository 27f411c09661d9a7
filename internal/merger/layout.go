package merger

import (
	"encoding/json"
	"fmt"
	"strings"
)

type PaperSize string

const (
	PaperA4     PaperSize = "A4"
	PaperLetter PaperSize = "Letter"
)

type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

type FitMode string

const (
	Letterbox FitMode = "letterbox"
	Crop      FitMode = "crop"
)

// Layout normalizes every page of a file onto one paper size.
type Layout struct {
	PaperSize   PaperSize   `json:"paper_size"`
	Orientation Orientation `json:"orientation"`
	FitMode     FitMode     `json:"fit_mode"`
}

var DefaultLayout = Layout{PaperSize: PaperA4, Orientation: Portrait, FitMode: Letterbox}

// Portrait dimensions in points.
var paperDimensions = map[PaperSize][2]float64{
	PaperA4:     {595.2755905511812, 841.8897637795277},
	PaperLetter: {612, 792},
}

// NormalizeLayout builds a Layout from loosely typed options. Unknown or
// missing values fall back to DefaultLayout. When no option is set, or all
// are "auto", it returns nil: the file keeps its own page geometry.
func NormalizeLayout(raw map[string]any) *Layout {
	auto := true
	for _, key := range []string{"paper_size", "orientation", "fit_mode"} {
		if v := strings.ToLower(optionString(raw, key)); v != "" && v != "auto" {
			auto = false
		}
	}
	if auto {
		return nil
	}

	l := DefaultLayout
	switch strings.ToLower(optionString(raw, "paper_size")) {
	case "a4":
		l.PaperSize = PaperA4
	case "letter":
		l.PaperSize = PaperLetter
	}
	switch strings.ToLower(optionString(raw, "orientation")) {
	case "portrait":
		l.Orientation = Portrait
	case "landscape":
		l.Orientation = Landscape
	}
	switch strings.ToLower(optionString(raw, "fit_mode")) {
	case "letterbox":
		l.FitMode = Letterbox
	case "crop":
		l.FitMode = Crop
	}
	return &l
}

func optionString(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// ParseLayouts decodes the per-file options form field: a JSON array whose
// elements are objects or null. The result always has n entries.
func ParseLayouts(data string, n int) ([]*Layout, error) {
	layouts := make([]*Layout, n)
	if strings.TrimSpace(data) == "" {
		return layouts, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("options must be a JSON list of objects: %w", err)
	}
	for i := 0; i < len(raw) && i < n; i++ {
		var obj map[string]any
		if err := json.Unmarshal(raw[i], &obj); err != nil {
			continue
		}
		layouts[i] = NormalizeLayout(obj)
	}
	return layouts, nil
}

// ParseRanges decodes the ranges form field: a JSON array of strings.
// Non-string entries become "" and the result is padded to n entries.
func ParseRanges(data string, n int) ([]string, error) {
	ranges := make([]string, 0, n)
	if strings.TrimSpace(data) != "" {
		var raw []any
		if err := json.Unmarshal([]byte(data), &raw); err != nil {
			return nil, fmt.Errorf("ranges must be a JSON list of strings: %w", err)
		}
		for _, v := range raw {
			s, _ := v.(string)
			ranges = append(ranges, s)
		}
	}
	for len(ranges) < n {
		ranges = append(ranges, "")
	}
	return ranges, nil
}

// Size returns the target page size in points.
func (l Layout) Size() (w, h float64) {
	dims, ok := paperDimensions[l.PaperSize]
	if !ok {
		dims = paperDimensions[PaperA4]
	}
	if l.Orientation == Landscape {
		return dims[1], dims[0]
	}
	return dims[0], dims[1]
}

// Rect is a placement on a page in points, origin at the top left.
type Rect struct {
	X, Y, W, H float64
}

// Place scales a srcW x srcH box onto the layout's page and centers it.
// Letterbox keeps the whole source visible; crop fills the page and lets
// the overflow fall outside it.
func (l Layout) Place(srcW, srcH float64) (pageW, pageH float64, r Rect) {
	pageW, pageH = l.Size()
	if srcW <= 0 || srcH <= 0 {
		srcW, srcH = pageW, pageH
	}

	sx, sy := pageW/srcW, pageH/srcH
	scale := min(sx, sy)
	if l.FitMode == Crop {
		scale = max(sx, sy)
	}
	if scale <= 0 {
		scale = 1
	}

	w, h := srcW*scale, srcH*scale
	return pageW, pageH, Rect{X: (pageW - w) / 2, Y: (pageH - h) / 2, W: w, H: h}
}
