package model

import "math"

// EllipseGeometry is a fitted ellipse. Axes are semi-axis lengths in pixels;
// Angle is in degrees as returned by the fitter.
type EllipseGeometry struct {
	CenterX float64 `json:"ellipse_center_x"`
	CenterY float64 `json:"ellipse_center_y"`
	AxisX   float64 `json:"ellipse_axis_x"`
	AxisY   float64 `json:"ellipse_axis_y"`
	Angle   float64 `json:"ellipse_angle"`
}

// Canonical returns the same ellipse with AxisX >= AxisY and Angle in [0, 180).
func (g EllipseGeometry) Canonical() EllipseGeometry {
	c := g
	if c.AxisY > c.AxisX {
		c.AxisX, c.AxisY = c.AxisY, c.AxisX
		c.Angle += 90
	}
	c.Angle = math.Mod(c.Angle, 180)
	if c.Angle < 0 {
		c.Angle += 180
	}
	return c
}
