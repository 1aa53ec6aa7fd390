package graph

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// SmootherConfig mirrors the §4.7 smoother knobs. The engine here runs a
// full batch Levenberg-Marquardt relinearization on every Update rather than
// GTSAM-style incremental relinearization of only affected cliques — see
// DESIGN.md's Open Question decision for why, and note that the public
// contract (exactly one Update per insert_submap, one more per
// find_overlapping_submaps) is unaffected by that internal simplification.
type SmootherConfig struct {
	UseDogleg            bool
	RelinearizeSkip      int
	RelinearizeThreshold float64
	MaxIterations        int
	InitialLambda        float64
	ConvergenceTolerance float64
}

// DefaultSmootherConfig returns the engine's defaults.
func DefaultSmootherConfig() SmootherConfig {
	return SmootherConfig{
		RelinearizeSkip:      1,
		RelinearizeThreshold: 0.1,
		MaxIterations:        15,
		InitialLambda:        1e-6,
		ConvergenceTolerance: 1e-8,
	}
}

// UpdateResult reports the outcome of one smoother update.
type UpdateResult struct {
	Converged  bool
	Iterations int
	FinalCost  float64
}

// Smoother is the incremental nonlinear least-squares engine (C5's
// collaborator). It owns the accumulated values and factor set and runs one
// relinearize-and-solve cycle per Update call.
type Smoother struct {
	cfg     SmootherConfig
	values  *Values
	factors []Factor
}

// NewSmoother constructs an empty Smoother.
func NewSmoother(cfg SmootherConfig) *Smoother {
	return &Smoother{cfg: cfg, values: NewValues()}
}

// Values returns the current estimate.
func (s *Smoother) Values() *Values { return s.values }

// Factors returns every factor submitted so far.
func (s *Smoother) Factors() []Factor {
	out := make([]Factor, len(s.factors))
	copy(out, s.factors)
	return out
}

// Config returns the engine configuration it was built with, so a rebuild
// during recovery (§4.5) can reuse it exactly.
func (s *Smoother) Config() SmootherConfig { return s.cfg }

// Update submits newValues and newFactors and runs one relinearize-and-solve
// cycle. Calling Update with both empty triggers a pure relinearize (the
// public optimize() operation).
func (s *Smoother) Update(newValues *Values, newFactors []Factor) (*UpdateResult, error) {
	if newValues != nil {
		s.values.Merge(newValues)
	}
	s.factors = append(s.factors, newFactors...)
	return s.solve()
}

type offsetTable struct {
	offset map[Key]int
	dim    int
}

func buildOffsets(values *Values) offsetTable {
	t := offsetTable{offset: make(map[Key]int)}
	for _, k := range values.Keys() {
		t.offset[k] = t.dim
		t.dim += values.MustGet(k).Dim()
	}
	return t
}

func (s *Smoother) cost(values *Values) (float64, error) {
	total := 0.0
	for _, f := range s.factors {
		_, residual, err := f.Linearize(values)
		if err != nil {
			return 0, err
		}
		total += 0.5 * mat.Dot(residual, residual)
	}
	return total, nil
}

// solve runs up to cfg.MaxIterations of damped Gauss-Newton (Levenberg-
// Marquardt) starting from the current values.
func (s *Smoother) solve() (*UpdateResult, error) {
	result := &UpdateResult{}
	if s.values.Len() == 0 {
		return result, nil
	}

	lambda := s.cfg.InitialLambda
	prevCost, err := s.cost(s.values)
	if err != nil {
		return result, err
	}
	result.FinalCost = prevCost

	for iter := 0; iter < s.cfg.MaxIterations; iter++ {
		offsets := buildOffsets(s.values)
		H := mat.NewSymDense(offsets.dim, nil)
		g := mat.NewVecDense(offsets.dim, nil)

		for _, f := range s.factors {
			jacobians, residual, lerr := f.Linearize(s.values)
			if lerr != nil {
				return result, lerr
			}
			keys := f.Keys()
			accumulateNormalEquations(H, g, offsets, keys, jacobians, residual)
		}

		damped := mat.NewSymDense(offsets.dim, nil)
		damped.CopySym(H)
		for i := 0; i < offsets.dim; i++ {
			damped.SetSym(i, i, damped.At(i, i)+lambda)
		}

		var chol mat.Cholesky
		ok := chol.Factorize(damped)
		if !ok {
			return result, &IndeterminateSystemError{NearKey: weakestKey(s.values, offsets, H)}
		}

		var dx mat.VecDense
		negG := mat.NewVecDense(offsets.dim, nil)
		negG.ScaleVec(-1, g)
		if err := chol.SolveVecTo(&dx, negG); err != nil {
			return result, &IndeterminateSystemError{NearKey: weakestKey(s.values, offsets, H)}
		}

		candidate := retract(s.values, offsets, &dx)
		newCost, cerr := s.cost(candidate)
		if cerr != nil {
			return result, cerr
		}

		if newCost <= prevCost {
			s.values = candidate
			result.FinalCost = newCost
			result.Iterations = iter + 1
			improvement := prevCost - newCost
			prevCost = newCost
			lambda = math.Max(lambda/10, 1e-12)
			if improvement < s.cfg.ConvergenceTolerance {
				result.Converged = true
				break
			}
		} else {
			lambda *= 10
			if lambda > 1e12 {
				return result, &IndeterminateSystemError{NearKey: weakestKey(s.values, offsets, H)}
			}
		}
	}
	return result, nil
}

// accumulateNormalEquations adds one factor's J^T*J and J^T*r contributions
// into the global (symmetric) information matrix H and gradient g.
func accumulateNormalEquations(H *mat.SymDense, g *mat.VecDense, offsets offsetTable, keys []Key, jacobians []*mat.Dense, residual *mat.VecDense) {
	for bi, ki := range keys {
		Ji := jacobians[bi]
		oi := offsets.offset[ki]
		_, colsI := Ji.Dims()

		var JiTr mat.VecDense
		JiTr.MulVec(Ji.T(), residual)
		for r := 0; r < colsI; r++ {
			g.SetVec(oi+r, g.AtVec(oi+r)+JiTr.AtVec(r))
		}

		for bj, kj := range keys {
			if bj < bi {
				continue
			}
			Jj := jacobians[bj]
			oj := offsets.offset[kj]
			var block mat.Dense
			block.Mul(Ji.T(), Jj)
			br, bc := block.Dims()
			for r := 0; r < br; r++ {
				for c := 0; c < bc; c++ {
					v := block.At(r, c)
					H.SetSym(oi+r, oj+c, H.At(oi+r, oj+c)+v)
				}
			}
		}
	}
}

// retract applies a global tangent-space step to every variable.
func retract(values *Values, offsets offsetTable, dx *mat.VecDense) *Values {
	out := NewValues()
	for _, k := range values.Keys() {
		v := values.MustGet(k)
		o := offsets.offset[k]
		delta := make([]float64, v.Dim())
		for i := range delta {
			delta[i] = dx.AtVec(o + i)
		}
		out.Insert(k, v.Retract(delta))
	}
	return out
}

// weakestKey identifies the variable whose diagonal block has the smallest
// minimum diagonal entry in H, used as the "nearby variable key" §4.5's
// recovery protocol redirects to X(j).
func weakestKey(values *Values, offsets offsetTable, H *mat.SymDense) Key {
	var (
		worstKey   Key
		worstValue = math.Inf(1)
		first      = true
	)
	for _, k := range values.Keys() {
		v := values.MustGet(k)
		o := offsets.offset[k]
		for i := 0; i < v.Dim(); i++ {
			d := H.At(o+i, o+i)
			if first || d < worstValue {
				worstValue = d
				worstKey = k
				first = false
			}
		}
	}
	return worstKey
}
