package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorFromSlice(t *testing.T) {
	t.Run("accepts 128 components", func(t *testing.T) {
		v := make([]float64, DescriptorSize)
		v[0], v[127] = 0.5, -0.25

		d, err := DescriptorFromSlice(v)
		require.NoError(t, err)
		assert.Equal(t, 0.5, d[0])
		assert.Equal(t, -0.25, d[127])
	})

	t.Run("rejects other dimensions", func(t *testing.T) {
		_, err := DescriptorFromSlice(make([]float64, 512))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDescriptorDimension))
	})
}

func TestDescriptor_Distance(t *testing.T) {
	var a, b Descriptor
	a[0], b[0] = 0.3, 0.0
	a[1], b[1] = 0.0, 0.4

	assert.InDelta(t, 0.5, a.Distance(b), 1e-12)
	assert.InDelta(t, 0.5, b.Distance(a), 1e-12)
	assert.Zero(t, a.Distance(a))
}

func TestDescriptor_IsZero(t *testing.T) {
	var d Descriptor
	assert.True(t, d.IsZero())
	d[64] = math.SmallestNonzeroFloat64
	assert.False(t, d.IsZero())
}

func TestReference(t *testing.T) {
	assert.False(t, Absent().Valid)

	var d Descriptor
	assert.True(t, Present(d).Valid, "a zero vector is still a valid reference when built from samples")
}

func TestMatch_Known(t *testing.T) {
	assert.True(t, Match{Name: "Alice"}.Known())
	assert.False(t, Match{Name: Unknown}.Known())
	assert.False(t, Match{}.Known())
}

func TestBox_Clip(t *testing.T) {
	tests := []struct {
		name string
		box  Box
		want Box
	}{
		{"inside", Box{10, 10, 20, 20}, Box{10, 10, 20, 20}},
		{"negative corner", Box{-5, -7, 20, 20}, Box{0, 0, 20, 20}},
		{"past frame", Box{600, 400, 700, 500}, Box{600, 400, 640, 480}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.box.Clip(640, 480))
		})
	}
}

func TestBox_Geometry(t *testing.T) {
	b := Box{X1: 100, Y1: 100, X2: 150, Y2: 140}
	assert.Equal(t, 50, b.Width())
	assert.Equal(t, 40, b.Height())
	assert.False(t, b.Empty())
	assert.True(t, Box{X1: 5, Y1: 5, X2: 5, Y2: 9}.Empty())
}
