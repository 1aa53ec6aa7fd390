// Package pointcloud defines the point-cloud and multi-resolution Gaussian
// voxel-map primitives used by the global mapping backend: a submap's
// merged_keyframe, its randomly-subsampled derivative, and the voxel maps
// that back VGICP matching-cost factors.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// Cloud is a general purpose, order-preserving container of 3D points in some
// frame. It does not dictate sparse-vs-dense storage; the current
// implementation is a flat slice, which is what merged_keyframe and
// subsampled_cloud need: append-only, iterate-in-order, no spatial lookups.
type Cloud struct {
	points []r3.Vector
}

// New returns an empty Cloud.
func New() *Cloud {
	return &Cloud{}
}

// NewFromPoints returns a Cloud that takes ownership of points.
func NewFromPoints(points []r3.Vector) *Cloud {
	return &Cloud{points: points}
}

// Size returns the number of points in the cloud.
func (c *Cloud) Size() int {
	return len(c.points)
}

// Points returns the underlying point slice. Callers must not mutate it.
func (c *Cloud) Points() []r3.Vector {
	return c.points
}

// Append adds a point to the cloud.
func (c *Cloud) Append(p r3.Vector) {
	c.points = append(c.points, p)
}

// Iterate calls fn for every point in the cloud, in order, until fn returns
// false or the cloud is exhausted.
func (c *Cloud) Iterate(fn func(p r3.Vector) bool) {
	for _, p := range c.points {
		if !fn(p) {
			return
		}
	}
}

// Transform returns a new Cloud with every point of c mapped through toWorld.
// c is left unmodified.
func Transform(c *Cloud, toWorld func(r3.Vector) r3.Vector) *Cloud {
	out := make([]r3.Vector, len(c.points))
	for i, p := range c.points {
		out[i] = toWorld(p)
	}
	return NewFromPoints(out)
}

// Centroid returns the mean of all points, or the zero vector for an empty cloud.
func (c *Cloud) Centroid() r3.Vector {
	if len(c.points) == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	for _, p := range c.points {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(c.points)))
}

// RangesFromOrigin returns the Euclidean distance of every point from origin.
func RangesFromOrigin(c *Cloud, origin r3.Vector) []float64 {
	ranges := make([]float64, len(c.points))
	for i, p := range c.points {
		ranges[i] = p.Sub(origin).Norm()
	}
	return ranges
}

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
