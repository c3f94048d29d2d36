package lcd

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// CorrespondenceRenderer draws a registration attempt for visual debugging:
// source nodes, destination nodes, and the correspondence lines, with the
// inlier set highlighted. Coordinates are the XY projection of the problem.
type CorrespondenceRenderer struct {
	Snapshot   problemSnapshot
	Inliers    []Correspondence
	Scale      float64           // world units per canvas unit
	Padding    float64           // padding in world units
	Resolution canvas.Resolution // PNG output resolution
	Labels     bool              // annotate nodes with their ids (PNG only)
}

// NewCorrespondenceRenderer creates a renderer with default settings.
func NewCorrespondenceRenderer(correspondences []Correspondence, srcPoints, destPoints []Point3, inliers []Correspondence) *CorrespondenceRenderer {
	return &CorrespondenceRenderer{
		Snapshot: problemSnapshot{
			Correspondences: correspondences,
			SrcPoints:       srcPoints,
			DestPoints:      destPoints,
		},
		Inliers:    inliers,
		Scale:      1.0,
		Padding:    1.0,
		Resolution: canvas.DPI(150),
	}
}

// canvasRenderer is the subset both the svg and rasterizer backends implement.
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the debug view as an SVG to the provided writer.
func (r *CorrespondenceRenderer) RenderToSVG(w io.Writer) error {
	minX, minY, width, height := r.bounds()
	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, minX, minY)
	return svgRenderer.Close()
}

// RenderToPNG writes the debug view as a PNG to the provided writer.
func (r *CorrespondenceRenderer) RenderToPNG(w io.Writer) error {
	minX, minY, width, height := r.bounds()
	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, minX, minY)
	if r.Labels {
		// Rasterizer implements draw.Image, so labels go straight on top.
		r.drawLabels(rast, minX, minY, height)
	}
	return png.Encode(w, rast)
}

// drawLabels annotates each node with its id. Raster coordinates grow
// downward while canvas coordinates grow upward, so y is flipped.
func (r *CorrespondenceRenderer) drawLabels(img draw.Image, minX, minY, height float64) {
	dpmm := r.Resolution.DPMM()
	toPixel := func(p Point3) (int, int) {
		cx := (p.X-minX)/r.Scale + r.Padding
		cy := (p.Y-minY)/r.Scale + r.Padding
		return int(cx * dpmm), int((height - cy) * dpmm)
	}

	seen := make(map[NodeID]bool)
	label := func(id NodeID, p Point3, c color.RGBA) {
		if seen[id] {
			return
		}
		seen[id] = true
		x, y := toPixel(p)
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(c),
			Face: basicfont.Face7x13,
			Dot:  fixed.Point26_6{X: fixed.I(x + 3), Y: fixed.I(y - 3)},
		}
		d.DrawString(id.String())
	}

	for i, c := range r.Snapshot.Correspondences {
		label(c.Src, r.Snapshot.SrcPoints[i], color.RGBA{B: 120, A: 255})
		label(c.Dest, r.Snapshot.DestPoints[i], color.RGBA{R: 120, A: 255})
	}
}

func (r *CorrespondenceRenderer) bounds() (minX, minY, width, height float64) {
	first := true
	var maxX, maxY float64
	visit := func(p Point3) {
		if first {
			minX, maxX, minY, maxY = p.X, p.X, p.Y, p.Y
			first = false
			return
		}
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	for _, p := range r.Snapshot.SrcPoints {
		visit(p)
	}
	for _, p := range r.Snapshot.DestPoints {
		visit(p)
	}
	if first {
		return 0, 0, 2 * r.Padding, 2 * r.Padding
	}
	width = (maxX-minX)/r.Scale + 2*r.Padding
	height = (maxY-minY)/r.Scale + 2*r.Padding
	return minX, minY, width, height
}

func (r *CorrespondenceRenderer) renderToCanvas(renderer canvasRenderer, minX, minY float64) {
	_, _, width, height := r.bounds()

	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	toCanvas := func(p Point3) (float64, float64) {
		return (p.X-minX)/r.Scale + r.Padding, (p.Y-minY)/r.Scale + r.Padding
	}

	inlierSet := make(map[Correspondence]bool, len(r.Inliers))
	for _, c := range r.Inliers {
		inlierSet[c] = true
	}

	// Candidate correspondences first (thin grey), inliers on top (green).
	candidateStyle := canvas.DefaultStyle
	candidateStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	candidateStyle.Stroke = canvas.Paint{Color: color.RGBA{R: 180, G: 180, B: 180, A: 255}}
	candidateStyle.StrokeWidth = 0.02

	inlierStyle := candidateStyle
	inlierStyle.Stroke = canvas.Paint{Color: color.RGBA{G: 160, A: 255}}
	inlierStyle.StrokeWidth = 0.06

	for i, c := range r.Snapshot.Correspondences {
		sx, sy := toCanvas(r.Snapshot.SrcPoints[i])
		dx, dy := toCanvas(r.Snapshot.DestPoints[i])
		path := &canvas.Path{}
		path.MoveTo(sx, sy)
		path.LineTo(dx, dy)
		style := candidateStyle
		if inlierSet[c] {
			style = inlierStyle
		}
		renderer.RenderPath(path, style, canvas.Identity)
	}

	srcStyle := canvas.DefaultStyle
	srcStyle.Fill = canvas.Paint{Color: color.RGBA{B: 200, A: 255}}
	destStyle := canvas.DefaultStyle
	destStyle.Fill = canvas.Paint{Color: color.RGBA{R: 200, A: 255}}

	for _, p := range r.Snapshot.SrcPoints {
		cx, cy := toCanvas(p)
		renderer.RenderPath(canvas.Circle(0.08), srcStyle, canvas.Identity.Translate(cx, cy))
	}
	for _, p := range r.Snapshot.DestPoints {
		cx, cy := toCanvas(p)
		renderer.RenderPath(canvas.Circle(0.08), destStyle, canvas.Identity.Translate(cx, cy))
	}
}
