package graph

import (
	"github.com/golang/geo/r3"

	"github.com/dedkryl/glim-dense-cloud/spatialmath"
)

// Variable is a node value in the factor graph: anything that can be
// perturbed by a tangent-space delta (retraction) during a solve.
type Variable interface {
	// Dim returns the dimension of the variable's local tangent space.
	Dim() int
	// Retract returns a new Variable equal to this one composed with the
	// given tangent-space delta (length Dim()).
	Retract(delta []float64) Variable
}

// PoseVariable is a 6-DoF pose node (used for X, E).
type PoseVariable struct {
	Pose spatialmath.Pose
}

// Dim implements Variable.
func (PoseVariable) Dim() int { return 6 }

// Retract implements Variable: delta is [tx,ty,tz,rx,ry,rz], composed on the
// right of the current pose (i.e. expressed in the pose's local frame).
func (p PoseVariable) Retract(delta []float64) Variable {
	increment := spatialmath.PoseFromLog([6]float64{delta[0], delta[1], delta[2], delta[3], delta[4], delta[5]})
	return PoseVariable{Pose: spatialmath.Compose(p.Pose, increment)}
}

// Vector3Variable is a 3-dimensional Euclidean node (used for V, the
// world-frame IMU velocity).
type Vector3Variable struct {
	Value r3.Vector
}

// Dim implements Variable.
func (Vector3Variable) Dim() int { return 3 }

// Retract implements Variable.
func (v Vector3Variable) Retract(delta []float64) Variable {
	return Vector3Variable{Value: v.Value.Add(r3.Vector{X: delta[0], Y: delta[1], Z: delta[2]})}
}

// Vector6Variable is a 6-dimensional Euclidean node (used for B, an IMU bias:
// 3 accelerometer + 3 gyroscope components).
type Vector6Variable struct {
	Value [6]float64
}

// Dim implements Variable.
func (Vector6Variable) Dim() int { return 6 }

// Retract implements Variable.
func (v Vector6Variable) Retract(delta []float64) Variable {
	var out [6]float64
	for i := range out {
		out[i] = v.Value[i] + delta[i]
	}
	return Vector6Variable{Value: out}
}

// Values is the smoother's current estimate: a map from Key to Variable, plus
// the insertion order needed for stable normal-equations assembly.
type Values struct {
	vars  map[Key]Variable
	order []Key
}

// NewValues returns an empty Values.
func NewValues() *Values {
	return &Values{vars: make(map[Key]Variable)}
}

// Has reports whether k has a value.
func (v *Values) Has(k Key) bool {
	_, ok := v.vars[k]
	return ok
}

// Get returns k's value and whether it was present.
func (v *Values) Get(k Key) (Variable, bool) {
	val, ok := v.vars[k]
	return val, ok
}

// MustGet returns k's value, panicking if absent; used internally once a
// caller has already checked Has or is relying on an invariant.
func (v *Values) MustGet(k Key) Variable {
	val, ok := v.vars[k]
	if !ok {
		panic("graph: key not found: " + k.String())
	}
	return val
}

// Insert adds or overwrites k's value, and tracks first-seen order.
func (v *Values) Insert(k Key, val Variable) {
	if _, ok := v.vars[k]; !ok {
		v.order = append(v.order, k)
	}
	v.vars[k] = val
}

// Keys returns all keys in first-insertion order.
func (v *Values) Keys() []Key {
	out := make([]Key, len(v.order))
	copy(out, v.order)
	return out
}

// Len returns the number of variables.
func (v *Values) Len() int { return len(v.vars) }

// Clone returns a deep-enough copy: a new map and order slice, pointing at
// the same (immutable-by-convention) Variable values.
func (v *Values) Clone() *Values {
	out := &Values{vars: make(map[Key]Variable, len(v.vars)), order: make([]Key, len(v.order))}
	copy(out.order, v.order)
	for k, val := range v.vars {
		out.vars[k] = val
	}
	return out
}

// Merge copies every key from other into v, overwriting on conflict.
func (v *Values) Merge(other *Values) {
	for _, k := range other.order {
		v.Insert(k, other.vars[k])
	}
}
