package domain

import (
	"fmt"
	"math"
)

// DescriptorSize is the dimensionality of a face descriptor.
const DescriptorSize = 128

// Unknown is the identity label returned when no reference is close enough.
const Unknown = "Unknown"

// Descriptor is a fixed-length face embedding.
type Descriptor [DescriptorSize]float64

// DescriptorFromSlice copies v into a Descriptor, rejecting wrong dimensions.
func DescriptorFromSlice(v []float64) (Descriptor, error) {
	var d Descriptor
	if len(v) != DescriptorSize {
		return d, ErrDescriptorDimension.WithError(fmt.Errorf("got %d components", len(v)))
	}
	copy(d[:], v)
	return d, nil
}

// Float32s converts the descriptor for vector storage.
func (d Descriptor) Float32s() []float32 {
	out := make([]float32, DescriptorSize)
	for i, v := range d {
		out[i] = float32(v)
	}
	return out
}

// IsZero reports whether every component is zero.
func (d Descriptor) IsZero() bool {
	for _, v := range d {
		if v != 0 {
			return false
		}
	}
	return true
}

// Distance returns the Euclidean distance between two descriptors.
func (d Descriptor) Distance(o Descriptor) float64 {
	var sum float64
	for i := range d {
		diff := d[i] - o[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Reference is the per-identity template. Valid is false when the identity
// had no usable enrollment image.
type Reference struct {
	Vector Descriptor
	Valid  bool
}

// Absent returns a reference that never matches.
func Absent() Reference {
	return Reference{}
}

// Present wraps a descriptor as a usable reference.
func Present(d Descriptor) Reference {
	return Reference{Vector: d, Valid: true}
}

// Identity is an enrolled person within one subject.
type Identity struct {
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Reference Reference `json:"-"`
	Samples   int       `json:"samples"`
}

// Match is the outcome of resolving a descriptor against the enrolled set.
type Match struct {
	Name     string
	Distance float64
}

// Known reports whether the match resolved to an enrolled identity.
func (m Match) Known() bool {
	return m.Name != "" && m.Name != Unknown
}
