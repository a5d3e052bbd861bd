package render

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// annotation draws boxed text anchored in axes-fraction coordinates, so it
// stays in the same corner whatever the data range is. The text sits on the
// anchor and grows up and to the right.
type annotation struct {
	Text   string
	X, Y   float64 // 0..1 across the data area, Y grows upwards
	Style  text.Style
	Pad    vg.Length
	Fill   color.Color
	Border draw.LineStyle
}

func newAnnotation(p *plot.Plot, txt string, x, y float64) *annotation {
	sty := p.X.Label.TextStyle
	sty.Font.Size = vg.Points(11)
	sty.XAlign = text.XLeft
	sty.YAlign = text.YBottom
	sty.Rotation = 0

	return &annotation{
		Text:  txt,
		X:     x,
		Y:     y,
		Style: sty,
		Pad:   0.3 * sty.Font.Size,
		Fill:  boxFill,
		Border: draw.LineStyle{
			Color: boxBorder,
			Width: vg.Points(1),
		},
	}
}

// Plot implements plot.Plotter
func (a *annotation) Plot(c draw.Canvas, _ *plot.Plot) {
	anchor := vg.Point{
		X: c.Min.X + vg.Length(a.X)*(c.Max.X-c.Min.X),
		Y: c.Min.Y + vg.Length(a.Y)*(c.Max.Y-c.Min.Y),
	}

	r := a.Style.Rectangle(a.Text)
	pad := vg.Point{X: a.Pad, Y: a.Pad}
	lo := r.Min.Add(anchor).Sub(pad)
	hi := r.Max.Add(anchor).Add(pad)

	outline := []vg.Point{
		lo,
		{X: hi.X, Y: lo.Y},
		hi,
		{X: lo.X, Y: hi.Y},
	}
	c.FillPolygon(a.Fill, outline)
	c.StrokeLines(a.Border, append(outline, lo))
	c.FillText(a.Style, anchor, a.Text)
}
