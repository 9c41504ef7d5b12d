package diagram

import (
	"fmt"
	"math"
)

const (
	// NodeWidth and NodeHeight are the rendered size of a component in pixels.
	NodeWidth  = 140.0
	NodeHeight = 70.0

	// curvature is the fraction of the dominant span used to offset Bézier control points.
	curvature = 0.3
)

// Point is a pixel coordinate on the canvas.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Canvas bounds every component position.
type Canvas struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Clamp keeps a component's top-left corner inside the canvas.
func (c Canvas) Clamp(p Point) Point {
	maxX := math.Max(0, c.Width-NodeWidth)
	maxY := math.Max(0, c.Height-NodeHeight)
	return Point{
		X: math.Min(math.Max(p.X, 0), maxX),
		Y: math.Min(math.Max(p.Y, 0), maxY),
	}
}

// Center returns the canvas midpoint.
func (c Canvas) Center() Point {
	return Point{X: c.Width / 2, Y: c.Height / 2}
}

// AnchorPoint returns the pixel location of an anchor on a node positioned at pos.
func AnchorPoint(pos Point, a Anchor) Point {
	switch a {
	case AnchorTop:
		return Point{X: pos.X + NodeWidth/2, Y: pos.Y}
	case AnchorRight:
		return Point{X: pos.X + NodeWidth, Y: pos.Y + NodeHeight/2}
	case AnchorBottom:
		return Point{X: pos.X + NodeWidth/2, Y: pos.Y + NodeHeight}
	default:
		return Point{X: pos.X, Y: pos.Y + NodeHeight/2}
	}
}

// Curve is the cubic Bézier drawn for a connection.
type Curve struct {
	Start    Point
	Control1 Point
	Control2 Point
	End      Point
	Label    Point
}

// BezierBetween computes the connection curve between two anchor points. Control
// points are offset along the axis with the larger span by 30% of that span, and
// the label sits on the straight-line midpoint.
func BezierBetween(start, end Point) Curve {
	dx := end.X - start.X
	dy := end.Y - start.Y

	c := Curve{
		Start: start,
		End:   end,
		Label: Point{X: (start.X + end.X) / 2, Y: (start.Y + end.Y) / 2},
	}

	if math.Abs(dx) >= math.Abs(dy) {
		offset := math.Abs(dx) * curvature
		dir := sign(dx)
		c.Control1 = Point{X: start.X + dir*offset, Y: start.Y}
		c.Control2 = Point{X: end.X - dir*offset, Y: end.Y}
	} else {
		offset := math.Abs(dy) * curvature
		dir := sign(dy)
		c.Control1 = Point{X: start.X, Y: start.Y + dir*offset}
		c.Control2 = Point{X: end.X, Y: end.Y - dir*offset}
	}
	return c
}

// SVGPath renders the curve as an SVG path "d" attribute.
func (c Curve) SVGPath() string {
	return fmt.Sprintf("M %s %s C %s %s, %s %s, %s %s",
		num(c.Start.X), num(c.Start.Y),
		num(c.Control1.X), num(c.Control1.Y),
		num(c.Control2.X), num(c.Control2.Y),
		num(c.End.X), num(c.End.Y))
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func num(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
