package domain

import "image"

// Class is the label produced by the object detector.
type Class string

const (
	Class0        Class = "class0"
	Class1        Class = "class1"
	ClassPhone    Class = "phone"
	ClassCheating Class = "cheating"
)

// Box is an axis-aligned region in integer pixel coordinates.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b Box) Width() int  { return b.X2 - b.X1 }
func (b Box) Height() int { return b.Y2 - b.Y1 }

// Empty reports whether the box has no area.
func (b Box) Empty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// Clip bounds the box to [0,width]x[0,height].
func (b Box) Clip(width, height int) Box {
	return Box{
		X1: clamp(b.X1, 0, width),
		Y1: clamp(b.Y1, 0, height),
		X2: clamp(b.X2, 0, width),
		Y2: clamp(b.Y2, 0, height),
	}
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Detection is one object detector result.
type Detection struct {
	Box        Box     `json:"box"`
	Class      Class   `json:"class"`
	Confidence float64 `json:"confidence"`
}
