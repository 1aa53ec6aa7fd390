package graph

import (
	"errors"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/dedkryl/glim-dense-cloud/spatialmath"
)

// priorFactor pins a single Vector3Variable to a target value, used here to
// drive simple convergence tests without pulling in the backend package's
// domain-specific factor kinds.
type priorFactor struct {
	key    Key
	target r3.Vector
	sqrtW  float64
}

func (f *priorFactor) Keys() []Key      { return []Key{f.key} }
func (f *priorFactor) Dim() int         { return 3 }
func (f *priorFactor) Kind() FactorKind { return KindPrior }

func (f *priorFactor) Linearize(values *Values) ([]*mat.Dense, *mat.VecDense, error) {
	v := values.MustGet(f.key).(Vector3Variable).Value
	residual := mat.NewVecDense(3, []float64{
		f.sqrtW * (v.X - f.target.X),
		f.sqrtW * (v.Y - f.target.Y),
		f.sqrtW * (v.Z - f.target.Z),
	})
	jac := mat.NewDense(3, 3, nil)
	jac.Set(0, 0, f.sqrtW)
	jac.Set(1, 1, f.sqrtW)
	jac.Set(2, 2, f.sqrtW)
	return []*mat.Dense{jac}, residual, nil
}

// betweenVec3Factor ties two Vector3Variables to a fixed difference, used to
// build an under-constrained (indeterminate without a prior) test system.
type betweenVec3Factor struct {
	a, b  Key
	delta r3.Vector
}

func (f *betweenVec3Factor) Keys() []Key      { return []Key{f.a, f.b} }
func (f *betweenVec3Factor) Dim() int         { return 3 }
func (f *betweenVec3Factor) Kind() FactorKind { return KindBetween }

func (f *betweenVec3Factor) Linearize(values *Values) ([]*mat.Dense, *mat.VecDense, error) {
	va := values.MustGet(f.a).(Vector3Variable).Value
	vb := values.MustGet(f.b).(Vector3Variable).Value
	actual := vb.Sub(va)
	residual := mat.NewVecDense(3, []float64{
		actual.X - f.delta.X,
		actual.Y - f.delta.Y,
		actual.Z - f.delta.Z,
	})
	ja := mat.NewDense(3, 3, nil)
	jb := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		ja.Set(i, i, -1)
		jb.Set(i, i, 1)
	}
	return []*mat.Dense{ja, jb}, residual, nil
}

func TestSmootherConvergesSinglePrior(t *testing.T) {
	s := NewSmoother(DefaultSmootherConfig())
	values := NewValues()
	values.Insert(V(0), Vector3Variable{Value: r3.Vector{X: 5, Y: -3, Z: 1}})
	_, err := s.Update(values, []Factor{
		&priorFactor{key: V(0), target: r3.Vector{X: 0, Y: 0, Z: 0}, sqrtW: 1},
	})
	test.That(t, err, test.ShouldBeNil)

	result, err := s.Update(NewValues(), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Converged, test.ShouldBeTrue)

	got := s.Values().MustGet(V(0)).(Vector3Variable).Value
	test.That(t, got.Norm(), test.ShouldBeLessThan, 1e-4)
}

func TestSmootherConvergesBetweenPlusPrior(t *testing.T) {
	s := NewSmoother(DefaultSmootherConfig())
	values := NewValues()
	values.Insert(V(0), Vector3Variable{Value: r3.Vector{}})
	values.Insert(V(1), Vector3Variable{Value: r3.Vector{}})

	result, err := s.Update(values, []Factor{
		&priorFactor{key: V(0), target: r3.Vector{X: 1, Y: 2, Z: 3}, sqrtW: 1},
		&betweenVec3Factor{a: V(0), b: V(1), delta: r3.Vector{X: 1, Y: 0, Z: -1}},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.FinalCost, test.ShouldBeGreaterThanOrEqualTo, 0)

	for i := 0; i < 5 && !result.Converged; i++ {
		result, err = s.Update(NewValues(), nil)
		test.That(t, err, test.ShouldBeNil)
	}

	a := s.Values().MustGet(V(0)).(Vector3Variable).Value
	b := s.Values().MustGet(V(1)).(Vector3Variable).Value
	test.That(t, a.X, test.ShouldAlmostEqual, 1.0)
	test.That(t, b.X, test.ShouldAlmostEqual, 2.0)
	test.That(t, b.Z, test.ShouldAlmostEqual, 2.0)
}

func TestSmootherIndeterminateWithoutPrior(t *testing.T) {
	cfg := DefaultSmootherConfig()
	cfg.InitialLambda = 0
	s := NewSmoother(cfg)
	values := NewValues()
	values.Insert(V(0), Vector3Variable{Value: r3.Vector{}})
	values.Insert(V(1), Vector3Variable{Value: r3.Vector{}})

	_, err := s.Update(values, []Factor{
		&betweenVec3Factor{a: V(0), b: V(1), delta: r3.Vector{X: 1}},
	})
	test.That(t, err, test.ShouldNotBeNil)
	var indeterminate *IndeterminateSystemError
	test.That(t, errors.As(err, &indeterminate), test.ShouldBeTrue)
}

func TestSmootherPoseVariableRetraction(t *testing.T) {
	s := NewSmoother(DefaultSmootherConfig())
	values := NewValues()
	origin := spatialmath.NewPoseFromPoint(r3.Vector{X: 10})
	values.Insert(X(0), PoseVariable{Pose: origin})

	result, err := s.Update(values, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.FinalCost, test.ShouldEqual, 0.0)
	test.That(t, s.Values().MustGet(X(0)).(PoseVariable).Pose.Point().X, test.ShouldAlmostEqual, 10.0)
}
