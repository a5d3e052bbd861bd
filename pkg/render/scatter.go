package render

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/gilchrisn/cpa-plot/pkg/correlation"
)

const (
	minMarkerArea = 1.0
	maxMarkerArea = 10.0
	markerBudget  = 9000.0

	// fraction of the data span added on each side of an axis
	axisMargin = 0.05
)

// MarkerArea returns the marker area in points² for n samples. Dense plots
// get smaller markers; the result is clamped to [1, 10].
func MarkerArea(n int) float64 {
	if n <= 0 {
		return maxMarkerArea
	}
	return math.Max(minMarkerArea, math.Min(maxMarkerArea, markerBudget/float64(n)))
}

// markerRadius converts an area to the glyph radius
func markerRadius(area float64) vg.Length {
	return vg.Points(math.Sqrt(area) / 2)
}

// ScatterRenderer builds one annotated scatter plot per candidate
type ScatterRenderer struct {
	style Style
}

func NewScatterRenderer(style Style) *ScatterRenderer {
	return &ScatterRenderer{style: style}
}

// Title is the two-line heading shown above a candidate's plot
func Title(byteIdx int, c correlation.Candidate) string {
	return fmt.Sprintf("Byte %d, Key Value %d, Rank %d\nPearson Correlation: %.6f",
		byteIdx, c.KeyByte, c.Rank, c.Correlation)
}

// layers holds everything drawn inside the data area of one plot
type layers struct {
	grid    *plotter.Grid
	scatter *plotter.Scatter
	notes   []*annotation
}

// Build lays out the scatter of Hamming distance against power for c
func (sr *ScatterRenderer) Build(byteIdx int, c correlation.Candidate) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = Title(byteIdx, c)
	p.X.Label.Text = "Hamming Distance"
	p.Y.Label.Text = "Power Consumption"

	l, err := sr.layers(p, byteIdx, c)
	if err != nil {
		return nil, err
	}

	p.Add(l.grid, l.scatter)
	p.X.Min, p.X.Max = paddedRange(l.scatter.XYs, func(xy plotter.XY) float64 { return xy.X })
	p.Y.Min, p.Y.Max = paddedRange(l.scatter.XYs, func(xy plotter.XY) float64 { return xy.Y })
	for _, a := range l.notes {
		p.Add(a)
	}

	return p, nil
}

// layers builds the grid, the scatter and the annotations for c. Marker size
// and the point count follow every sample; samples with a NaN or infinite
// coordinate are left out of the scatter itself.
func (sr *ScatterRenderer) layers(p *plot.Plot, byteIdx int, c correlation.Candidate) (*layers, error) {
	n := c.NumPoints()
	if n == 0 {
		return nil, fmt.Errorf("byte %d rank %d: %w", byteIdx, c.Rank, correlation.ErrNoSamples)
	}

	pts := finitePoints(c.Samples)
	if len(pts) == 0 {
		return nil, fmt.Errorf("byte %d rank %d: no finite samples: %w", byteIdx, c.Rank, correlation.ErrNoSamples)
	}

	grid := plotter.NewGrid()
	grid.Vertical.Color = gridColor
	grid.Horizontal.Color = gridColor

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create scatter: %w", err)
	}
	scatter.GlyphStyle = draw.GlyphStyle{
		Color:  pointColor,
		Radius: markerRadius(MarkerArea(n)),
		Shape:  draw.CircleGlyph{},
	}

	return &layers{
		grid:    grid,
		scatter: scatter,
		notes: []*annotation{
			newAnnotation(p, fmt.Sprintf("r = %.4f", c.Correlation), 0.05, 0.95),
			newAnnotation(p, fmt.Sprintf("Points: %d", n), 0.05, 0.89),
		},
	}, nil
}

func finitePoints(samples []correlation.Sample) plotter.XYs {
	pts := make(plotter.XYs, 0, len(samples))
	for _, s := range samples {
		if !finite(s.HammingDistance) || !finite(s.Power) {
			continue
		}
		pts = append(pts, plotter.XY{X: s.HammingDistance, Y: s.Power})
	}
	return pts
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// paddedRange returns the span of one coordinate of pts widened by
// axisMargin on each side. A degenerate span is widened by 0.5 so
// single-valued columns stay visible.
func paddedRange(pts plotter.XYs, coord func(plotter.XY) float64) (float64, float64) {
	vs := make([]float64, len(pts))
	for i, xy := range pts {
		vs[i] = coord(xy)
	}
	lo, hi := floats.Min(vs), floats.Max(vs)
	span := hi - lo
	if span == 0 {
		return lo - 0.5, hi + 0.5
	}
	return lo - axisMargin*span, hi + axisMargin*span
}
