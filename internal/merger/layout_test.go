package merger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLayout(t *testing.T) {
	assert.Nil(t, NormalizeLayout(nil))
	assert.Nil(t, NormalizeLayout(map[string]any{}))
	assert.Nil(t, NormalizeLayout(map[string]any{"paper_size": "auto", "orientation": "Auto", "fit_mode": ""}))

	l := NormalizeLayout(map[string]any{"paper_size": "auto", "fit_mode": "crop"})
	require.NotNil(t, l)
	assert.Equal(t, Layout{PaperSize: PaperA4, Orientation: Portrait, FitMode: Crop}, *l)

	l = NormalizeLayout(map[string]any{"paper_size": " letter ", "orientation": "LANDSCAPE", "fit_mode": "Crop"})
	require.NotNil(t, l)
	assert.Equal(t, Layout{PaperSize: PaperLetter, Orientation: Landscape, FitMode: Crop}, *l)

	l = NormalizeLayout(map[string]any{"paper_size": "tabloid", "fit_mode": 3})
	require.NotNil(t, l)
	assert.Equal(t, DefaultLayout, *l)
}

func TestLayoutSize(t *testing.T) {
	w, h := Layout{PaperSize: PaperLetter, Orientation: Portrait}.Size()
	assert.Equal(t, 612.0, w)
	assert.Equal(t, 792.0, h)

	w, h = Layout{PaperSize: PaperA4, Orientation: Landscape}.Size()
	assert.InDelta(t, 841.89, w, 0.01)
	assert.InDelta(t, 595.28, h, 0.01)
}

func TestLayoutPlaceLetterbox(t *testing.T) {
	l := Layout{PaperSize: PaperLetter, Orientation: Portrait, FitMode: Letterbox}

	pageW, pageH, r := l.Place(1224, 792)
	assert.Equal(t, 612.0, pageW)
	assert.Equal(t, 792.0, pageH)
	assert.InDelta(t, 612, r.W, 1e-9)
	assert.InDelta(t, 396, r.H, 1e-9)
	assert.InDelta(t, 0, r.X, 1e-9)
	assert.InDelta(t, 198, r.Y, 1e-9)
}

func TestLayoutPlaceCrop(t *testing.T) {
	l := Layout{PaperSize: PaperLetter, Orientation: Portrait, FitMode: Crop}

	_, _, r := l.Place(1224, 792)
	assert.InDelta(t, 1224, r.W, 1e-9)
	assert.InDelta(t, 792, r.H, 1e-9)
	assert.InDelta(t, -306, r.X, 1e-9)
	assert.InDelta(t, 0, r.Y, 1e-9)
}

func TestLayoutPlaceDegenerateBox(t *testing.T) {
	pageW, pageH, r := DefaultLayout.Place(0, 0)
	assert.Equal(t, Rect{W: pageW, H: pageH}, r)
}

func TestParseRanges(t *testing.T) {
	got, err := ParseRanges(`["1-3", 5, null]`, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"1-3", "", "", ""}, got)

	got, err = ParseRanges("", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"", ""}, got)

	_, err = ParseRanges(`{"a": 1}`, 1)
	assert.Error(t, err)

	_, err = ParseRanges(`not json`, 1)
	assert.Error(t, err)
}

func TestParseLayouts(t *testing.T) {
	got, err := ParseLayouts(`[null, {"paper_size": "letter"}, "junk"]`, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Nil(t, got[0])
	require.NotNil(t, got[1])
	assert.Equal(t, PaperLetter, got[1].PaperSize)
	assert.Nil(t, got[2])

	got, err = ParseLayouts("", 2)
	require.NoError(t, err)
	assert.Equal(t, []*Layout{nil, nil}, got)

	_, err = ParseLayouts(`{`, 1)
	assert.Error(t, err)
}
