package backend

import (
	"gonum.org/v1/gonum/mat"

	"github.com/dedkryl/glim-dense-cloud/graph"
)

func identityN(n int, scale float64) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, scale)
	}
	return m
}

// PriorBiasFactor pins a Vector6Variable (IMU bias) to Target (§4.5: "prior
// factors on biases (precision 1e6)"). Unlike the pose factors, a
// Vector6Variable's Retract is exact vector addition, so this Jacobian is
// exact, not an approximation.
type PriorBiasFactor struct {
	Key      graph.Key
	Target   [6]float64
	SqrtInfo float64
}

func (f *PriorBiasFactor) Keys() []graph.Key      { return []graph.Key{f.Key} }
func (f *PriorBiasFactor) Dim() int               { return 6 }
func (f *PriorBiasFactor) Kind() graph.FactorKind { return graph.KindPrior }

func (f *PriorBiasFactor) Linearize(values *graph.Values) ([]*mat.Dense, *mat.VecDense, error) {
	current := values.MustGet(f.Key).(graph.Vector6Variable).Value
	residual := mat.NewVecDense(6, nil)
	for i := 0; i < 6; i++ {
		residual.SetVec(i, f.SqrtInfo*(current[i]-f.Target[i]))
	}
	return []*mat.Dense{identityN(6, f.SqrtInfo)}, residual, nil
}

// BetweenBiasFactor constrains two consecutive biases to differ by Delta
// (zero, per §4.5's "between-factor on consecutive biases with zero
// expected change").
type BetweenBiasFactor struct {
	KeyA, KeyB graph.Key
	Delta      [6]float64
	SqrtInfo   float64
}

func (f *BetweenBiasFactor) Keys() []graph.Key      { return []graph.Key{f.KeyA, f.KeyB} }
func (f *BetweenBiasFactor) Dim() int               { return 6 }
func (f *BetweenBiasFactor) Kind() graph.FactorKind { return graph.KindBetween }

func (f *BetweenBiasFactor) Linearize(values *graph.Values) ([]*mat.Dense, *mat.VecDense, error) {
	a := values.MustGet(f.KeyA).(graph.Vector6Variable).Value
	b := values.MustGet(f.KeyB).(graph.Vector6Variable).Value
	residual := mat.NewVecDense(6, nil)
	for i := 0; i < 6; i++ {
		residual.SetVec(i, f.SqrtInfo*((b[i]-a[i])-f.Delta[i]))
	}
	return []*mat.Dense{identityN(6, -f.SqrtInfo), identityN(6, f.SqrtInfo)}, residual, nil
}
