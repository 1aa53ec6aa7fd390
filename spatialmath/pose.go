package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a rigid transform: a translation plus an orientation, expressed
// relative to some (unstated) parent frame. Submap origins, IMU endpoints, and
// odometry frames are all Poses.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

type pose struct {
	point       r3.Vector
	orientation Orientation
}

// NewZeroPose returns the identity transform.
func NewZeroPose() Pose {
	return &pose{r3.Vector{}, NewZeroOrientation()}
}

// NewPoseFromPoint returns a pure translation with zero rotation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return &pose{point, NewZeroOrientation()}
}

// NewPoseFromOrientation returns a Pose combining a point and an Orientation, matching
// the constructor shape used at the SLAM client boundary to rebuild a pose from a
// raw quaternion returned by an external SLAM process.
func NewPoseFromOrientation(point r3.Vector, o Orientation) Pose {
	return &pose{point, o}
}

func (p *pose) Point() r3.Vector       { return p.point }
func (p *pose) Orientation() Orientation { return p.orientation }

// Compose returns a*b: b expressed in a's frame, then composed into a's parent frame.
func Compose(a, b Pose) Pose {
	aq := a.Orientation().Quaternion()
	bq := b.Orientation().Quaternion()
	rotatedB := quat.Mul(quat.Mul(aq, quat.Number{Imag: b.Point().X, Jmag: b.Point().Y, Kmag: b.Point().Z}), quat.Conj(aq))
	point := a.Point().Add(r3.Vector{X: rotatedB.Imag, Y: rotatedB.Jmag, Z: rotatedB.Kmag})
	return &pose{point, QuaternionFromNumber(normalizeQuat(quat.Mul(aq, bq)))}
}

// Invert returns p^-1, such that Compose(p, Invert(p)) is the identity.
func Invert(p Pose) Pose {
	q := normalizeQuat(p.Orientation().Quaternion())
	qInv := quat.Conj(q)
	negPoint := quat.Number{Imag: -p.Point().X, Jmag: -p.Point().Y, Kmag: -p.Point().Z}
	rotated := quat.Mul(quat.Mul(qInv, negPoint), quat.Conj(qInv))
	return &pose{r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}, QuaternionFromNumber(qInv)}
}

// PoseBetween returns a^-1 * b, the relative transform taking a's frame to b's frame.
func PoseBetween(a, b Pose) Pose {
	return Compose(Invert(a), b)
}

// PoseAlmostEqual reports whether two poses are approximately equal in both
// translation (within tolMeters) and rotation (within tolQuat, see OrientationAlmostEqual).
func PoseAlmostEqual(a, b Pose, tolMeters, tolQuat float64) bool {
	d := a.Point().Sub(b.Point()).Norm()
	return d <= tolMeters && OrientationAlmostEqual(a.Orientation(), b.Orientation(), tolQuat)
}
