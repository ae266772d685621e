package magcal

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Kind selects how a chart draws its series
type Kind int

const (
	Scatter Kind = iota
	Line
)

const (
	// simplifyThreshold is the point count above which line series are
	// decimated before drawing.
	simplifyThreshold = 500

	// simplifyTolerance is the Douglas-Peucker tolerance in canvas units (mm)
	simplifyTolerance = 0.1

	markerRadius = 0.8
	lineWidth    = 0.6
)

// Series is one named set of points on a chart
type Series struct {
	Name   string
	Color  color.NRGBA
	Points []orb.Point
}

// Chart is a single-panel scatter or line chart
type Chart struct {
	Title       string
	Kind        Kind
	Series      []Series
	Width       float64 // canvas units (mm)
	Height      float64
	Padding     float64
	EqualAspect bool              // same data scale on both axes
	Resolution  canvas.Resolution // PNG output resolution
}

// SeriesColors returns the palette assigned to series in order
func SeriesColors() []color.NRGBA {
	return []color.NRGBA{
		{220, 20, 60, 255},  // Crimson
		{30, 90, 200, 255},  // Blue
		{34, 139, 34, 255},  // Forest green
		{184, 134, 11, 255}, // Dark goldenrod
	}
}

// NewChart creates an empty chart with default layout
func NewChart(title string, kind Kind) *Chart {
	return &Chart{
		Title:      title,
		Kind:       kind,
		Width:      800,
		Height:     400,
		Padding:    30,
		Resolution: canvas.DPI(72),
	}
}

// AddSeries appends a series, assigning the next palette colour
func (c *Chart) AddSeries(name string, points []orb.Point) {
	colors := SeriesColors()
	c.Series = append(c.Series, Series{
		Name:   name,
		Color:  colors[len(c.Series)%len(colors)],
		Points: points,
	})
}

// ScatterChart plots raw and calibrated samples together. The raw samples
// are centred and divided by their mean norm so the distorted ellipse and
// the calibrated circle share one scale.
func ScatterChart(raw, calibrated []Sample) *Chart {
	c := NewChart("Magnetometer calibration", Scatter)
	c.Width, c.Height = 400, 400
	c.EqualAspect = true

	c.AddSeries("raw (normalized)", samplePoints(normalizeRaw(raw)))
	c.AddSeries("calibrated", samplePoints(calibrated))
	return c
}

// HeadingChart plots the magnetic heading against the reference heading by
// sample index.
func HeadingChart(heading, reference []float64) *Chart {
	c := NewChart("Calibrated magnetic heading vs course over ground", Line)
	c.AddSeries("mag", indexPoints(heading, 0))
	if len(reference) > 0 {
		c.AddSeries("reference", indexPoints(reference, 0))
	}
	return c
}

// CorrelationChart plots a full cross-correlation by lag. zeroIndex is the
// index of lag 0, len(b)-1 for CrossCorrelate(a, b).
func CorrelationChart(corr []float64, zeroIndex int) *Chart {
	c := NewChart("Heading cross-correlation", Line)
	c.AddSeries("correlation", indexPoints(corr, -zeroIndex))
	return c
}

func samplePoints(samples []Sample) []orb.Point {
	points := make([]orb.Point, len(samples))
	for i, s := range samples {
		points[i] = orb.Point{s.X, s.Y}
	}
	return points
}

func indexPoints(values []float64, offset int) []orb.Point {
	points := make([]orb.Point, len(values))
	for i, v := range values {
		points[i] = orb.Point{float64(i + offset), v}
	}
	return points
}

func normalizeRaw(raw []Sample) []Sample {
	if len(raw) == 0 {
		return nil
	}
	var mx, my float64
	for _, s := range raw {
		mx += s.X
		my += s.Y
	}
	mx /= float64(len(raw))
	my /= float64(len(raw))

	centred := Transform{A11: 1, A22: 1, B1: -mx, B2: -my}.ApplyAll(raw)
	scale := ComputeNormStats(centred).Mean
	if scale == 0 {
		return centred
	}
	return Transform{A11: 1 / scale, A22: 1 / scale}.ApplyAll(centred)
}

// nrgbaToRGBA premultiplies alpha for the canvas renderers
func nrgbaToRGBA(c color.NRGBA) color.RGBA {
	if c.A == 255 {
		return color.RGBA{c.R, c.G, c.B, 255}
	}
	a := uint32(c.A)
	return color.RGBA{
		R: uint8(uint32(c.R) * a / 255),
		G: uint8(uint32(c.G) * a / 255),
		B: uint8(uint32(c.B) * a / 255),
		A: c.A,
	}
}

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the chart as an SVG to the provided writer
func (c *Chart) RenderToSVG(w io.Writer) error {
	if err := c.validate(); err != nil {
		return err
	}
	svgRenderer := svg.New(w, c.Width, c.Height, nil)
	c.renderToCanvas(svgRenderer)
	return svgRenderer.Close()
}

// RenderToPNG writes the chart as a PNG with a title and legend
func (c *Chart) RenderToPNG(w io.Writer) error {
	if err := c.validate(); err != nil {
		return err
	}
	resolution := c.Resolution
	if resolution == 0 {
		resolution = canvas.DPI(72)
	}

	rast := rasterizer.New(c.Width, c.Height, resolution, canvas.DefaultColorSpace)
	c.renderToCanvas(rast)
	c.drawLabels(rast, resolution.DPMM())

	return png.Encode(w, rast)
}

func (c *Chart) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.New("chart width and height must be positive")
	}
	if 2*c.Padding >= math.Min(c.Width, c.Height) {
		return errors.New("chart padding leaves no plot area")
	}
	return nil
}

// bounds returns the data extent over every series, widened so that
// neither axis is degenerate.
func (c *Chart) bounds() orb.Bound {
	var all orb.MultiPoint
	for _, s := range c.Series {
		all = append(all, s.Points...)
	}
	if len(all) == 0 {
		return orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}}
	}

	b := all.Bound()
	if b.Max[0]-b.Min[0] == 0 {
		b.Min[0]--
		b.Max[0]++
	}
	if b.Max[1]-b.Min[1] == 0 {
		b.Min[1]--
		b.Max[1]++
	}
	if c.EqualAspect {
		b = c.equalAspect(b)
	}
	return b
}

// equalAspect grows the narrower axis so one data unit has the same
// length on both axes.
func (c *Chart) equalAspect(b orb.Bound) orb.Bound {
	plotW := c.Width - 2*c.Padding
	plotH := c.Height - 2*c.Padding
	dx := b.Max[0] - b.Min[0]
	dy := b.Max[1] - b.Min[1]
	center := b.Center()

	scale := math.Max(dx/plotW, dy/plotH)
	halfW := scale * plotW / 2
	halfH := scale * plotH / 2
	return orb.Bound{
		Min: orb.Point{center[0] - halfW, center[1] - halfH},
		Max: orb.Point{center[0] + halfW, center[1] + halfH},
	}
}

func (c *Chart) renderToCanvas(renderer canvasRenderer) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(c.Width, c.Height), bgStyle, canvas.Identity)

	b := c.bounds()
	plotW := c.Width - 2*c.Padding
	plotH := c.Height - 2*c.Padding
	toCanvas := func(p orb.Point) orb.Point {
		return orb.Point{
			c.Padding + (p[0]-b.Min[0])/(b.Max[0]-b.Min[0])*plotW,
			c.Padding + (p[1]-b.Min[1])/(b.Max[1]-b.Min[1])*plotH,
		}
	}

	frameStyle := canvas.DefaultStyle
	frameStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	frameStyle.Stroke = canvas.Paint{Color: canvas.Black}
	frameStyle.StrokeWidth = 0.4
	renderer.RenderPath(canvas.Rectangle(plotW, plotH).Translate(c.Padding, c.Padding), frameStyle, canvas.Identity)

	// Zero axes
	axisStyle := canvas.DefaultStyle
	axisStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	axisStyle.Stroke = canvas.Paint{Color: canvas.Gray}
	axisStyle.StrokeWidth = 0.3
	axisStyle.Dashes = []float64{2.0, 2.0}
	if b.Min[0] < 0 && b.Max[0] > 0 {
		from, to := toCanvas(orb.Point{0, b.Min[1]}), toCanvas(orb.Point{0, b.Max[1]})
		axis := &canvas.Path{}
		axis.MoveTo(from[0], from[1])
		axis.LineTo(to[0], to[1])
		renderer.RenderPath(axis, axisStyle, canvas.Identity)
	}
	if b.Min[1] < 0 && b.Max[1] > 0 {
		from, to := toCanvas(orb.Point{b.Min[0], 0}), toCanvas(orb.Point{b.Max[0], 0})
		axis := &canvas.Path{}
		axis.MoveTo(from[0], from[1])
		axis.LineTo(to[0], to[1])
		renderer.RenderPath(axis, axisStyle, canvas.Identity)
	}

	for _, s := range c.Series {
		if len(s.Points) == 0 {
			continue
		}
		points := make(orb.LineString, len(s.Points))
		for i, p := range s.Points {
			points[i] = toCanvas(p)
		}

		switch c.Kind {
		case Scatter:
			markerStyle := canvas.DefaultStyle
			markerStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(s.Color)}
			markerStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
			for _, p := range points {
				renderer.RenderPath(canvas.Circle(markerRadius).Translate(p[0], p[1]), markerStyle, canvas.Identity)
			}
		case Line:
			lineStyle := canvas.DefaultStyle
			lineStyle.Fill = canvas.Paint{Color: canvas.Transparent}
			lineStyle.Stroke = canvas.Paint{Color: nrgbaToRGBA(s.Color)}
			lineStyle.StrokeWidth = lineWidth

			path := &canvas.Path{}
			for i, p := range simplifyLine(points) {
				if i == 0 {
					path.MoveTo(p[0], p[1])
				} else {
					path.LineTo(p[0], p[1])
				}
			}
			renderer.RenderPath(path, lineStyle, canvas.Identity)
		}
	}
}

// simplifyLine decimates long polylines in canvas space
func simplifyLine(ls orb.LineString) orb.LineString {
	if len(ls) <= simplifyThreshold {
		return ls
	}
	simplified, ok := simplify.DouglasPeucker(simplifyTolerance).Simplify(ls.Clone()).(orb.LineString)
	if !ok || len(simplified) < 2 {
		return ls
	}
	return simplified
}

// drawLabels writes the title and a legend onto a rasterized chart.
// dpmm converts canvas units to pixels.
func (c *Chart) drawLabels(img draw.Image, dpmm float64) {
	left := int(c.Padding * dpmm)
	top := int(c.Padding*dpmm/2) + 5

	drawText(img, left, top, c.Title, color.RGBA{0, 0, 0, 255})

	x := left
	legendY := img.Bounds().Dy() - int(c.Padding*dpmm/2) + 5
	for _, s := range c.Series {
		drawText(img, x, legendY, s.Name, nrgbaToRGBA(s.Color))
		x += (len(s.Name) + 3) * basicfont.Face7x13.Advance
	}
}

func drawText(img draw.Image, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
