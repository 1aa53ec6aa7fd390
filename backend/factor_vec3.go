package backend

import (
	"gonum.org/v1/gonum/mat"

	"github.com/dedkryl/glim-dense-cloud/graph"
)

// BetweenVector3Factor constrains two Vector3Variables (IMU endpoint
// velocities) to differ by Delta. §4.4's fallback when fewer than two IMU
// samples span a submap boundary uses this with Delta=0 at low precision
// ("a fallback zero-velocity between-factor on V at precision 1.0"), rather
// than an IMUPreintegrationFactor.
type BetweenVector3Factor struct {
	KeyA, KeyB graph.Key
	Delta      [3]float64
	SqrtInfo   float64
}

func (f *BetweenVector3Factor) Keys() []graph.Key      { return []graph.Key{f.KeyA, f.KeyB} }
func (f *BetweenVector3Factor) Dim() int               { return 3 }
func (f *BetweenVector3Factor) Kind() graph.FactorKind { return graph.KindBetween }

func (f *BetweenVector3Factor) Linearize(values *graph.Values) ([]*mat.Dense, *mat.VecDense, error) {
	a := values.MustGet(f.KeyA).(graph.Vector3Variable).Value
	b := values.MustGet(f.KeyB).(graph.Vector3Variable).Value
	residual := mat.NewVecDense(3, []float64{
		f.SqrtInfo * ((b.X - a.X) - f.Delta[0]),
		f.SqrtInfo * ((b.Y - a.Y) - f.Delta[1]),
		f.SqrtInfo * ((b.Z - a.Z) - f.Delta[2]),
	})
	return []*mat.Dense{identityN(3, -f.SqrtInfo), identityN(3, f.SqrtInfo)}, residual, nil
}
