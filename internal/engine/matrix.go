package engine

// Matrix2D represents a 2D affine transformation matrix.
// Layout: [a, b, c, d, e, f] representing:
// | a  c  e |
// | b  d  f |
// | 0  0  1 |
//
// Layout coordinates are CSS pixels. The editor view (zoom and scroll) and
// the export raster (capture scale) are both expressed as matrices over them.
type Matrix2D [6]float64

// Identity returns the identity matrix.
func Identity() Matrix2D {
	return Matrix2D{1, 0, 0, 1, 0, 0}
}

// Translate returns a translation matrix.
func Translate(tx, ty float64) Matrix2D {
	return Matrix2D{1, 0, 0, 1, tx, ty}
}

// Scale returns a scale matrix.
func Scale(sx, sy float64) Matrix2D {
	return Matrix2D{sx, 0, 0, sy, 0, 0}
}

// ViewTransform maps surface coordinates to screen coordinates for a view
// zoomed by zoom and scrolled so that (scrollX, scrollY) is at the origin.
func ViewTransform(zoom, scrollX, scrollY float64) Matrix2D {
	return Scale(zoom, zoom).Multiply(Translate(-scrollX, -scrollY))
}

// Multiply multiplies this matrix by another: result = m * other
// This applies 'other' first, then 'm'.
func (m Matrix2D) Multiply(other Matrix2D) Matrix2D {
	return Matrix2D{
		m[0]*other[0] + m[2]*other[1],        // a
		m[1]*other[0] + m[3]*other[1],        // b
		m[0]*other[2] + m[2]*other[3],        // c
		m[1]*other[2] + m[3]*other[3],        // d
		m[0]*other[4] + m[2]*other[5] + m[4], // e
		m[1]*other[4] + m[3]*other[5] + m[5], // f
	}
}

// TransformPoint applies the matrix to a point.
func (m Matrix2D) TransformPoint(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// TransformRect transforms a rectangle and returns its axis-aligned bounding box.
func (m Matrix2D) TransformRect(r Rect) Rect {
	x0, y0 := m.TransformPoint(r.X, r.Y)
	x1, y1 := m.TransformPoint(r.X+r.Width, r.Y)
	x2, y2 := m.TransformPoint(r.X+r.Width, r.Y+r.Height)
	x3, y3 := m.TransformPoint(r.X, r.Y+r.Height)

	minX := min(x0, x1, x2, x3)
	minY := min(y0, y1, y2, y3)
	maxX := max(x0, x1, x2, x3)
	maxY := max(y0, y1, y2, y3)

	return Rect{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

// Determinant returns the determinant of the matrix.
func (m Matrix2D) Determinant() float64 {
	return m[0]*m[3] - m[1]*m[2]
}

// Invert returns the inverse of the matrix, or Identity if not invertible.
// View transforms built by ViewTransform with a positive zoom are always
// invertible.
func (m Matrix2D) Invert() Matrix2D {
	det := m.Determinant()
	if det == 0 {
		return Identity()
	}

	invDet := 1.0 / det
	return Matrix2D{
		m[3] * invDet,
		-m[1] * invDet,
		-m[2] * invDet,
		m[0] * invDet,
		(m[2]*m[5] - m[3]*m[4]) * invDet,
		(m[1]*m[4] - m[0]*m[5]) * invDet,
	}
}

// ToSlice returns the matrix in canvas setTransform order.
func (m Matrix2D) ToSlice() []float64 {
	return []float64{m[0], m[1], m[2], m[3], m[4], m[5]}
}

// translateBlock moves the origin of a text block through m.
func translateBlock(t *TextBlock, m Matrix2D) {
	t.X, t.Y = m.TransformPoint(t.X, t.Y)
}

// WithItemAt returns a copy of the layout in which the item id has its
// top-left corner at pos. Connectors are left where they were; they follow
// on the next full layout.
func (l *Layout) WithItemAt(id string, pos Point) *Layout {
	out := *l
	for i, c := range l.Events {
		if c.ID != id {
			continue
		}
		m := Translate(pos.X-c.Rect.X, pos.Y-c.Rect.Y)
		out.Events = append([]EventCard(nil), l.Events...)
		moved := &out.Events[i]
		moved.Rect = m.TransformRect(c.Rect)
		translateBlock(&moved.Title, m)
		if c.Date != nil {
			d := *c.Date
			translateBlock(&d, m)
			moved.Date = &d
		}
		if c.Detail != nil {
			d := *c.Detail
			translateBlock(&d, m)
			moved.Detail = &d
		}
		if c.Image != nil {
			img := *c.Image
			img.Rect = m.TransformRect(img.Rect)
			moved.Image = &img
		}
		return &out
	}
	for i, p := range l.Periods {
		if p.ID != id {
			continue
		}
		m := Translate(pos.X-p.Rect.X, pos.Y-p.Rect.Y)
		out.Periods = append([]PeriodBox(nil), l.Periods...)
		moved := &out.Periods[i]
		moved.Rect = m.TransformRect(p.Rect)
		moved.Bar = m.TransformRect(p.Bar)
		moved.LabelArea = m.TransformRect(p.LabelArea)
		moved.Caps = make([]Rect, len(p.Caps))
		for j, c := range p.Caps {
			moved.Caps[j] = m.TransformRect(c)
		}
		translateBlock(&moved.Label, m)
		if p.Detail != nil {
			d := *p.Detail
			translateBlock(&d, m)
			moved.Detail = &d
		}
		if p.Image != nil {
			img := *p.Image
			img.Rect = m.TransformRect(img.Rect)
			moved.Image = &img
		}
		return &out
	}
	return l
}
