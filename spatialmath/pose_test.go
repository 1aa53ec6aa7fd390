package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestComposeIdentity(t *testing.T) {
	p := NewPoseFromOrientation(r3.Vector{X: 1, Y: 2, Z: 3}, &R4AA{Theta: math.Pi / 4, RX: 0, RY: 0, RZ: 1})
	composed := Compose(NewZeroPose(), p)
	test.That(t, composed.Point().X, test.ShouldAlmostEqual, p.Point().X)
	test.That(t, composed.Point().Y, test.ShouldAlmostEqual, p.Point().Y)
	test.That(t, composed.Point().Z, test.ShouldAlmostEqual, p.Point().Z)
}

func TestInvertRoundTrip(t *testing.T) {
	p := NewPoseFromOrientation(r3.Vector{X: 4, Y: -2, Z: 1}, (&R4AA{Theta: 1.1, RX: 0.3, RY: 0.7, RZ: 0.1}).asOrientation())
	inv := Invert(p)
	roundTrip := Compose(p, inv)
	test.That(t, PoseAlmostEqual(roundTrip, NewZeroPose(), 1e-9, 1e-9), test.ShouldBeTrue)
}

func (r *R4AA) asOrientation() Orientation {
	return QuaternionFromNumber(r.Quaternion())
}

func TestPoseBetween(t *testing.T) {
	a := NewPoseFromPoint(r3.Vector{X: 1, Y: 0, Z: 0})
	b := NewPoseFromPoint(r3.Vector{X: 3, Y: 0, Z: 0})
	delta := PoseBetween(a, b)
	test.That(t, delta.Point().X, test.ShouldAlmostEqual, 2)
}

func TestLogExpRoundTrip(t *testing.T) {
	v := r3.Vector{X: 0.1, Y: -0.2, Z: 0.05}
	o := Exp(v)
	back := Log(o)
	test.That(t, back.X, test.ShouldAlmostEqual, v.X)
	test.That(t, back.Y, test.ShouldAlmostEqual, v.Y)
	test.That(t, back.Z, test.ShouldAlmostEqual, v.Z)
}

func TestPoseLogFromLog(t *testing.T) {
	orig := [6]float64{1, 2, 3, 0.1, 0.2, 0.3}
	p := PoseFromLog(orig)
	back := PoseLog(p)
	for i := range orig {
		test.That(t, back[i], test.ShouldAlmostEqual, orig[i])
	}
}
