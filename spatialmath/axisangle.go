package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// R4AA is an axis-angle representation of a rotation: Theta radians about the
// unit axis (RX, RY, RZ).
type R4AA struct {
	Theta      float64
	RX, RY, RZ float64
}

// Quaternion converts the axis-angle to a quaternion.
func (r *R4AA) Quaternion() quat.Number {
	n := math.Sqrt(r.RX*r.RX + r.RY*r.RY + r.RZ*r.RZ)
	if n < 1e-12 {
		return quat.Number{Real: 1}
	}
	s := math.Sin(r.Theta / 2)
	return quat.Number{
		Real: math.Cos(r.Theta / 2),
		Imag: s * r.RX / n,
		Jmag: s * r.RY / n,
		Kmag: s * r.RZ / n,
	}
}

// Log returns the rotation vector (SO(3) logarithm) of an orientation: a vector
// whose direction is the rotation axis and whose norm is the rotation angle in
// radians. This is the tangent-space representation used for 6-DoF pose deltas,
// damping-factor residuals, and Jacobian columns.
func Log(o Orientation) r3.Vector {
	q := normalizeQuat(o.Quaternion())
	imagNorm := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if imagNorm < 1e-12 {
		return r3.Vector{}
	}
	angle := 2 * math.Atan2(imagNorm, q.Real)
	if angle > math.Pi {
		angle -= 2 * math.Pi
	}
	scale := angle / imagNorm
	return r3.Vector{X: q.Imag * scale, Y: q.Jmag * scale, Z: q.Kmag * scale}
}

// Exp is the inverse of Log: it maps a rotation vector back to an Orientation.
func Exp(v r3.Vector) Orientation {
	angle := v.Norm()
	if angle < 1e-12 {
		return NewZeroOrientation()
	}
	aa := &R4AA{Theta: angle, RX: v.X / angle, RY: v.Y / angle, RZ: v.Z / angle}
	return QuaternionFromNumber(aa.Quaternion())
}

// PoseLog returns the 6-vector tangent-space delta of a Pose: translation
// followed by rotation vector. It is the residual representation used by
// between-factors, damping factors, and the LM solver in package graph.
func PoseLog(p Pose) [6]float64 {
	r := Log(p.Orientation())
	pt := p.Point()
	return [6]float64{pt.X, pt.Y, pt.Z, r.X, r.Y, r.Z}
}

// PoseFromLog is the inverse of PoseLog.
func PoseFromLog(v [6]float64) Pose {
	return NewPoseFromOrientation(r3.Vector{X: v[0], Y: v[1], Z: v[2]}, Exp(r3.Vector{X: v[3], Y: v[4], Z: v[5]}))
}
