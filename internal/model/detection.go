package model

// BoundingBox is a pixel rectangle given by its top-left (X1,Y1) and
// bottom-right (X2,Y2) corners.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the box width in pixels.
func (b BoundingBox) Width() int {
	return b.X2 - b.X1
}

// Height returns the box height in pixels.
func (b BoundingBox) Height() int {
	return b.Y2 - b.Y1
}

// Detection is a single object found by the detector in one frame.
type Detection struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}
