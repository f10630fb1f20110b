package route

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// RenderLayer is one polyline drawn on the route map.
type RenderLayer struct {
	Label  string
	Track  *Track
	Color  color.RGBA
	Width  float64 // stroke width in mm
	Dashed bool
}

var candidatePalette = []color.RGBA{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x17, G: 0xbe, B: 0xcf, A: 0xff},
}

var (
	outputColor    = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	referenceColor = color.RGBA{R: 0x66, G: 0x66, B: 0x66, A: 0xff}
	startColor     = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
	finishColor    = color.RGBA{R: 0x11, G: 0x11, B: 0x11, A: 0xff}
)

// RouteRenderer draws route maps and elevation profiles with tdewolff/canvas.
type RouteRenderer struct {
	Width      float64           // longer side of the map in mm
	Padding    float64           // mm
	Resolution canvas.Resolution // PNG resolution (default: 300 DPI)
}

// NewRouteRenderer creates a renderer with default settings
func NewRouteRenderer() *RouteRenderer {
	return &RouteRenderer{
		Width:      200,
		Padding:    10,
		Resolution: canvas.DPI(300),
	}
}

// LayersFor builds the standard layer stack for a run: candidates, then the
// reference, then the output on top.
func LayersFor(res *Result) []RenderLayer {
	var layers []RenderLayer
	for i, c := range res.Accepted {
		layers = append(layers, RenderLayer{
			Label: c.Source,
			Track: c.Track,
			Color: candidatePalette[i%len(candidatePalette)],
			Width: 0.4,
		})
	}
	if res.Reference.Len() >= 2 {
		layers = append(layers, RenderLayer{
			Label:  "reference",
			Track:  res.Reference,
			Color:  referenceColor,
			Width:  0.6,
			Dashed: true,
		})
	}
	layers = append(layers, RenderLayer{
		Label: res.SourceID,
		Track: res.Output,
		Color: outputColor,
		Width: 0.8,
	})
	return layers
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// mapFrame maps Web Mercator coordinates onto the drawing in mm.
type mapFrame struct {
	bound         orb.Bound
	scale         float64
	padding       float64
	width, height float64
}

func (r *RouteRenderer) frameFor(layers []RenderLayer) (mapFrame, error) {
	var bound orb.Bound
	first := true
	for _, l := range layers {
		for _, p := range l.Track.pointsOrNil() {
			m := project.Point(p.Orb(), project.WGS84.ToMercator)
			if first {
				bound = orb.Bound{Min: m, Max: m}
				first = false
				continue
			}
			bound = bound.Extend(m)
		}
	}
	if first {
		return mapFrame{}, fmt.Errorf("render: no points to draw")
	}

	spanX := math.Max(bound.Max.X()-bound.Min.X(), 1)
	spanY := math.Max(bound.Max.Y()-bound.Min.Y(), 1)
	scale := (r.Width - 2*r.Padding) / math.Max(spanX, spanY)
	return mapFrame{
		bound:   bound,
		scale:   scale,
		padding: r.Padding,
		width:   spanX*scale + 2*r.Padding,
		height:  spanY*scale + 2*r.Padding,
	}, nil
}

func (f mapFrame) toCanvas(p GeoPoint) (float64, float64) {
	m := project.Point(p.Orb(), project.WGS84.ToMercator)
	return (m.X()-f.bound.Min.X())*f.scale + f.padding, (m.Y()-f.bound.Min.Y())*f.scale + f.padding
}

// RenderSVG writes the route map as SVG.
func (r *RouteRenderer) RenderSVG(w io.Writer, layers []RenderLayer) error {
	frame, err := r.frameFor(layers)
	if err != nil {
		return err
	}
	svgRenderer := svg.New(w, frame.width, frame.height, nil)
	r.drawMap(svgRenderer, frame, layers)
	return svgRenderer.Close()
}

// RenderPNG writes the route map as PNG with a text legend.
func (r *RouteRenderer) RenderPNG(w io.Writer, layers []RenderLayer, title string) error {
	frame, err := r.frameFor(layers)
	if err != nil {
		return err
	}
	rast := rasterizer.New(frame.width, frame.height, r.Resolution, canvas.DefaultColorSpace)
	r.drawMap(rast, frame, layers)

	// Rasterizer implements draw.Image, so legend text goes straight onto it.
	y := 16
	if title != "" {
		drawText(rast, 8, y, title, color.RGBA{A: 0xff})
		y += 16
	}
	for _, l := range layers {
		drawSwatch(rast, 8, y-9, l.Color)
		drawText(rast, 24, y, l.Label, color.RGBA{A: 0xff})
		y += 16
	}
	return png.Encode(w, rast)
}

func (r *RouteRenderer) drawMap(renderer canvasRenderer, frame mapFrame, layers []RenderLayer) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(frame.width, frame.height), bgStyle, canvas.Identity)

	for _, l := range layers {
		if l.Track.Len() < 2 {
			continue
		}
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: canvas.Transparent}
		style.Stroke = canvas.Paint{Color: l.Color}
		style.StrokeWidth = l.Width
		if l.Dashed {
			style.Dashes = []float64{2, 1}
		}

		path := &canvas.Path{}
		for i, p := range l.Track.Points {
			x, y := frame.toCanvas(p)
			if i == 0 {
				path.MoveTo(x, y)
			} else {
				path.LineTo(x, y)
			}
		}
		renderer.RenderPath(path, style, canvas.Identity)
	}

	// Start/finish markers for the top layer.
	if len(layers) == 0 {
		return
	}
	top := layers[len(layers)-1].Track
	for _, marker := range []struct {
		get   func() (GeoPoint, bool)
		color color.RGBA
	}{
		{top.Start, startColor},
		{top.End, finishColor},
	} {
		p, ok := marker.get()
		if !ok {
			continue
		}
		x, y := frame.toCanvas(p)
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: marker.color}
		style.Stroke = canvas.Paint{Color: canvas.White}
		style.StrokeWidth = 0.3
		renderer.RenderPath(canvas.Circle(1.5).Translate(x, y), style, canvas.Identity)
	}
}

// RenderProfileSVG writes an elevation profile (distance vs elevation) of t.
// Points without elevation break the line.
func (r *RouteRenderer) RenderProfileSVG(w io.Writer, t *Track) error {
	if t.ElevationCount() < 2 {
		return fmt.Errorf("render profile: %s has fewer than 2 elevated points", t.Name)
	}

	a := AnalyzeGradients(t)
	cum := t.CumulativeDistances()
	total := math.Max(cum[len(cum)-1], 1)
	span := math.Max(a.MaxElevation-a.MinElevation, 10)

	width := r.Width
	height := width / 3
	inner := width - 2*r.Padding
	innerH := height - 2*r.Padding
	toXY := func(i int, ele float64) (float64, float64) {
		return r.Padding + cum[i]/total*inner, r.Padding + (ele-a.MinElevation)/span*innerH
	}

	svgRenderer := svg.New(w, width, height, nil)

	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	svgRenderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	axisStyle := canvas.DefaultStyle
	axisStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	axisStyle.Stroke = canvas.Paint{Color: referenceColor}
	axisStyle.StrokeWidth = 0.3
	axes := &canvas.Path{}
	axes.MoveTo(r.Padding, r.Padding+innerH)
	axes.LineTo(r.Padding, r.Padding)
	axes.LineTo(r.Padding+inner, r.Padding)
	svgRenderer.RenderPath(axes, axisStyle, canvas.Identity)

	lineStyle := canvas.DefaultStyle
	lineStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	lineStyle.Stroke = canvas.Paint{Color: outputColor}
	lineStyle.StrokeWidth = 0.5
	profile := &canvas.Path{}
	drawing := false
	for i, p := range t.Points {
		ele, ok := p.Elevation()
		if !ok {
			drawing = false
			continue
		}
		x, y := toXY(i, ele)
		if drawing {
			profile.LineTo(x, y)
		} else {
			profile.MoveTo(x, y)
			drawing = true
		}
	}
	svgRenderer.RenderPath(profile, lineStyle, canvas.Identity)

	return svgRenderer.Close()
}

// drawText renders text onto an image at the specified position
func drawText(img draw.Image, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func drawSwatch(img draw.Image, x, y int, c color.RGBA) {
	for dy := 0; dy < 10; dy++ {
		for dx := 0; dx < 10; dx++ {
			img.Set(x+dx, y+dy, c)
		}
	}
}
