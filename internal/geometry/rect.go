package geometry

import "math"

// PageBox is a page rectangle in PDF points. Point space is top-down: y grows toward
// the bottom of the rendered page, matching the rasterizer's device space.
type PageBox struct {
	X0, Y0, X1, Y1 float64
}

// WidthPt returns the box width in points.
func (b PageBox) WidthPt() float64 { return b.X1 - b.X0 }

// HeightPt returns the box height in points.
func (b PageBox) HeightPt() float64 { return b.Y1 - b.Y0 }

// IsValid reports whether all coordinates are finite and the box has positive area.
func (b PageBox) IsValid() bool {
	for _, v := range [4]float64{b.X0, b.Y0, b.X1, b.Y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X1 > b.X0 && b.Y1 > b.Y0
}

// HasOrigin reports whether the box starts at (0,0).
func (b PageBox) HasOrigin() bool {
	return b.X0 == 0 && b.Y0 == 0
}

// Contains reports whether r lies entirely inside b.
func (b PageBox) Contains(r PageBox) bool {
	return r.X0 >= b.X0 && r.Y0 >= b.Y0 && r.X1 <= b.X1 && r.Y1 <= b.Y1
}

// Normalize orders the corners so that X0<=X1 and Y0<=Y1.
func (b PageBox) Normalize() PageBox {
	return PageBox{
		X0: math.Min(b.X0, b.X1),
		Y0: math.Min(b.Y0, b.Y1),
		X1: math.Max(b.X0, b.X1),
		Y1: math.Max(b.Y0, b.Y1),
	}
}

// Point represents a 2D point
type Point struct {
	X, Y float64
}

// Matrix represents a 2D affine transformation matrix [a b c d e f]
// applied to row vectors: x' = a*x + c*y + e, y' = b*x + d*y + f.
type Matrix [6]float64

// Identity returns an identity matrix
func Identity() Matrix {
	return Matrix{1, 0, 0, 1, 0, 0}
}

// Translate creates a translation matrix
func Translate(tx, ty float64) Matrix {
	return Matrix{1, 0, 0, 1, tx, ty}
}

// Scale creates a scaling matrix
func Scale(sx, sy float64) Matrix {
	return Matrix{sx, 0, 0, sy, 0, 0}
}

// Apply applies the matrix transformation to a point
func (m Matrix) Apply(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// Then returns the matrix that applies m first and other second.
func (m Matrix) Then(other Matrix) Matrix {
	return Matrix{
		m[0]*other[0] + m[1]*other[2],
		m[0]*other[1] + m[1]*other[3],
		m[2]*other[0] + m[3]*other[2],
		m[2]*other[1] + m[3]*other[3],
		m[4]*other[0] + m[5]*other[2] + other[4],
		m[4]*other[1] + m[5]*other[3] + other[5],
	}
}
