// Package spatialmath provides the 3D rigid-transform primitives the backend uses to
// represent submap and IMU-endpoint poses, and the delta/compose operations the
// factor graph needs to linearize around them.
package spatialmath

import (
	"gonum.org/v1/gonum/num/quat"
)

// Orientation is an interface used to express the different parameterizations of the
// orientation of a rigid object or a frame of reference in 3D Euclidean space.
type Orientation interface {
	Quaternion() quat.Number
}

// Quaternion is a concrete Orientation backed by a Hamilton quaternion. Real is the
// scalar part; Imag/Jmag/Kmag are the i/j/k components.
type Quaternion struct {
	Real, Imag, Jmag, Kmag float64
}

// Quaternion returns the gonum quat.Number for this orientation.
func (q *Quaternion) Quaternion() quat.Number {
	return quat.Number{Real: q.Real, Imag: q.Imag, Jmag: q.Jmag, Kmag: q.Kmag}
}

// NewZeroOrientation returns an orientation which signifies no rotation.
func NewZeroOrientation() *Quaternion {
	return &Quaternion{Real: 1}
}

// QuaternionFromNumber wraps a gonum quat.Number as an Orientation.
func QuaternionFromNumber(q quat.Number) *Quaternion {
	return &Quaternion{Real: q.Real, Imag: q.Imag, Jmag: q.Jmag, Kmag: q.Kmag}
}

// OrientationAlmostEqual reports whether two orientations are approximately equal
// under a quaternion dot-product comparison (double-cover aware).
func OrientationAlmostEqual(o1, o2 Orientation, tol float64) bool {
	q1, q2 := o1.Quaternion(), o2.Quaternion()
	dot := q1.Real*q2.Real + q1.Imag*q2.Imag + q1.Jmag*q2.Jmag + q1.Kmag*q2.Kmag
	if dot < 0 {
		dot = -dot
	}
	return dot >= 1-tol
}

func normalizeQuat(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}
