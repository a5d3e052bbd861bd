package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// PlotWriter persists a finished plot
type PlotWriter interface {
	Write(p *plot.Plot, path string) error
}

// FileWriter implements PlotWriter for image files on disk
type FileWriter struct {
	style Style
}

// NewFileWriter creates a writer using the style's size and resolution
func NewFileWriter(style Style) *FileWriter {
	return &FileWriter{style: style}
}

// Write encodes p to path. The format comes from the path's extension,
// falling back to the style's default format.
func (fw *FileWriter) Write(p *plot.Plot, path string) error {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if format == "" {
		format = fw.style.Format
	}

	canvas, err := fw.canvas(format)
	if err != nil {
		return err
	}
	p.Draw(draw.New(canvas))

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plot file: %w", err)
	}

	if _, err := canvas.WriteTo(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return file.Close()
}

func (fw *FileWriter) canvas(format string) (vg.CanvasWriterTo, error) {
	if !SupportedFormat(format) {
		return nil, fmt.Errorf("unsupported plot format %q", format)
	}

	if !rasterTypes[format] {
		return draw.NewFormattedCanvas(fw.style.Width, fw.style.Height, format)
	}

	c := vgimg.NewWith(
		vgimg.UseWH(fw.style.Width, fw.style.Height),
		vgimg.UseDPI(fw.style.DPI),
	)
	switch format {
	case "png":
		return vgimg.PngCanvas{Canvas: c}, nil
	case "jpg", "jpeg":
		return vgimg.JpegCanvas{Canvas: c}, nil
	default:
		return vgimg.TiffCanvas{Canvas: c}, nil
	}
}
