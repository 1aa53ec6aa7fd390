package graph

import "gonum.org/v1/gonum/mat"

// FactorKind tags a factor for persistence (§4.6/§9: "only factors whose
// state is self-contained are serialized; the rest are reconstructed from a
// compact descriptor on reload") and for diagnostics.
type FactorKind string

const (
	KindPrior      FactorKind = "prior"
	KindBetween    FactorKind = "between"
	KindDamping    FactorKind = "damping"
	KindIMU        FactorKind = "imu"
	KindRotateVec  FactorKind = "rotate_vector"
	KindGICP       FactorKind = "gicp"
	KindVGICP      FactorKind = "vgicp"
	KindVGICPGPU   FactorKind = "vgicp_gpu"
)

// Serializable reports whether a factor's own state is self-contained enough
// to round-trip through graph.bin, as opposed to needing reconstruction from
// an external descriptor (voxel maps, clouds) on load. Registration factors
// (GICP/VGICP/VGICP_GPU) return false.
func (k FactorKind) Serializable() bool {
	switch k {
	case KindGICP, KindVGICP, KindVGICPGPU:
		return false
	default:
		return true
	}
}

// Factor is a term in the nonlinear least-squares objective: "a trait 'can
// linearize around values'" per §9's design note. Residuals and Jacobians
// returned by Linearize are expected to already be whitened by the factor's
// noise model, so the smoother can assemble plain J^T*J normal equations.
type Factor interface {
	// Keys returns the variables this factor touches, in the order its
	// Jacobian blocks are returned.
	Keys() []Key
	// Dim returns the residual dimension.
	Dim() int
	// Kind identifies the factor's persistence/diagnostic category.
	Kind() FactorKind
	// Linearize evaluates the whitened residual and Jacobian blocks (one
	// per Keys(), each Dim() x variable.Dim()) at the given values.
	Linearize(values *Values) (jacobians []*mat.Dense, residual *mat.VecDense, err error)
}
