package types

// ConfidenceThreshold is the confidence (percent) below which an annotation is
// flagged for manual review.
const ConfidenceThreshold = 85

// MaxConfidence is assigned to an annotation once a human has corrected it.
const MaxConfidence = 100

// InchUnit is the label appended to recognized imperial values.
const InchUnit = `"`

// Annotation is one recognized dimension on a drawing.
//
// Metric is derived from Imperial and is only ever written by code that
// recomputes it with units.ToMetric.
type Annotation struct {
	ID         int    `json:"id"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Imperial   string `json:"imperial"`
	Metric     string `json:"metric"`
	Confidence int    `json:"confidence"`
	Unit       string `json:"unit"`
}

// LowConfidence reports whether the annotation falls below the review threshold.
func (a Annotation) LowConfidence(threshold int) bool {
	return a.Confidence < threshold
}

// Point is a pixel anchor on the source image.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Anchor returns the pixel position labels are drawn at.
func (a Annotation) Anchor() Point {
	return Point{X: a.X, Y: a.Y}
}

// Dimension is the shape a recognition backend reports before ids and metric
// values are assigned.
type Dimension struct {
	Value      string  `json:"value"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// DimensionResult is the complete response expected from a vision model.
type DimensionResult struct {
	Dimensions []Dimension `json:"dimensions"`
}
