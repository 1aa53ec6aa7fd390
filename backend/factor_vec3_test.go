package backend

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/dedkryl/glim-dense-cloud/graph"
)

func TestBetweenVector3FactorResidualZeroWhenDeltaMatches(t *testing.T) {
	a := r3.Vector{X: 1, Y: 2, Z: 3}
	b := r3.Vector{X: 2, Y: 2, Z: 3}
	values := graph.NewValues()
	values.Insert(graph.V(0), graph.Vector3Variable{Value: a})
	values.Insert(graph.V(1), graph.Vector3Variable{Value: b})

	f := &BetweenVector3Factor{KeyA: graph.V(0), KeyB: graph.V(1), Delta: [3]float64{1, 0, 0}, SqrtInfo: 4}
	_, residual, err := f.Linearize(values)
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 3; i++ {
		test.That(t, residual.AtVec(i), test.ShouldAlmostEqual, 0.0)
	}
}

func TestBetweenVector3FactorResidualNonzero(t *testing.T) {
	a := r3.Vector{}
	b := r3.Vector{X: 5}
	values := graph.NewValues()
	values.Insert(graph.V(0), graph.Vector3Variable{Value: a})
	values.Insert(graph.V(1), graph.Vector3Variable{Value: b})

	f := &BetweenVector3Factor{KeyA: graph.V(0), KeyB: graph.V(1), Delta: [3]float64{0, 0, 0}, SqrtInfo: 1}
	_, residual, err := f.Linearize(values)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, residual.AtVec(0), test.ShouldAlmostEqual, 5.0)
}
