package render

import (
	"fmt"
	"image/color"
	"strings"

	"gonum.org/v1/plot/vg"
)

// Style controls figure geometry and output encoding
type Style struct {
	Width  vg.Length
	Height vg.Length
	DPI    int
	Format string // default file extension, without the dot
}

// DefaultStyle returns a 12x8 inch figure rendered at 300 DPI to PNG
func DefaultStyle() Style {
	return Style{
		Width:  12 * vg.Inch,
		Height: 8 * vg.Inch,
		DPI:    300,
		Format: "png",
	}
}

var (
	pointColor  = color.NRGBA{R: 31, G: 119, B: 180, A: 128}
	gridColor   = color.NRGBA{R: 176, G: 176, B: 176, A: 77}
	boxFill     = color.NRGBA{R: 255, G: 255, B: 255, A: 204}
	boxBorder   = color.NRGBA{R: 128, G: 128, B: 128, A: 204}
	rasterTypes = map[string]bool{"png": true, "jpg": true, "jpeg": true, "tif": true, "tiff": true}
	vectorTypes = map[string]bool{"svg": true, "pdf": true, "eps": true}
)

// SupportedFormat reports whether the writer can encode the given extension
func SupportedFormat(format string) bool {
	f := strings.ToLower(strings.TrimPrefix(format, "."))
	return rasterTypes[f] || vectorTypes[f]
}

// PlotName is the file name for one (byte, rank) plot
func PlotName(byteIdx, rank int, format string) string {
	if format == "" {
		format = "png"
	}
	return fmt.Sprintf("byte_%d_rank_%d.%s", byteIdx, rank, strings.TrimPrefix(format, "."))
}
