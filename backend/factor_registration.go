package backend

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/dedkryl/glim-dense-cloud/graph"
	"github.com/dedkryl/glim-dense-cloud/pointcloud"
	"github.com/dedkryl/glim-dense-cloud/spatialmath"
)

// GICPFactor is a point-to-point registration factor between two submaps'
// keyframes (§4.3's local two-variable refinement, §GLOSSARY). Its residual
// is whitened by SqrtInfo and is the mean correspondence offset rather than
// one term per correspondence: the reference GICP factor assembles a full
// per-correspondence Mahalanobis cost inside the optimization library, which
// is out of scope (§1); aggregating to a single centroid-offset term keeps
// the normal-equations size independent of point count while preserving the
// factor's role (pull KeyB's pose toward the alignment GICP would find). See
// DESIGN.md.
type GICPFactor struct {
	KeyA, KeyB        graph.Key
	CloudA, CloudB    *pointcloud.Cloud
	MaxCorrespondence float64
	SqrtInfo          float64
}

func (f *GICPFactor) Keys() []graph.Key      { return []graph.Key{f.KeyA, f.KeyB} }
func (f *GICPFactor) Dim() int               { return 3 }
func (f *GICPFactor) Kind() graph.FactorKind { return graph.KindGICP }

func (f *GICPFactor) Linearize(values *graph.Values) ([]*mat.Dense, *mat.VecDense, error) {
	poseA := values.MustGet(f.KeyA).(graph.PoseVariable).Pose
	poseB := values.MustGet(f.KeyB).(graph.PoseVariable).Pose
	rel := spatialmath.PoseBetween(poseA, poseB)

	var sum r3.Vector
	matches := 0
	f.CloudB.Iterate(func(p r3.Vector) bool {
		transformed := spatialmath.Compose(rel, spatialmath.NewPoseFromPoint(p)).Point()
		if pt, ok := nearestPoint(f.CloudA, transformed, f.MaxCorrespondence); ok {
			sum = sum.Add(pt.Sub(transformed))
			matches++
		}
		return true
	})

	return centroidJacobians(f.SqrtInfo), registrationResidual(sum, matches, f.SqrtInfo), nil
}

func nearestPoint(cloud *pointcloud.Cloud, query r3.Vector, maxDist float64) (r3.Vector, bool) {
	best := maxDist
	var bestPoint r3.Vector
	found := false
	cloud.Iterate(func(p r3.Vector) bool {
		d := p.Sub(query).Norm()
		if d <= best {
			best = d
			bestPoint = p
			found = true
		}
		return true
	})
	return bestPoint, found
}

// VGICPFactor is a voxelized-GICP registration factor between a submap's
// multi-resolution voxel map and another submap's subsampled cloud, one per
// voxel level (§4.3's matching-cost factor set, §4.5's implicit-loop
// factors). Kind carries KindVGICP or KindVGICPGPU per
// Config.RegistrationErrorFactorType (§4.7); this implementation does not
// distinguish CPU/GPU execution, since no GPU path is available in this
// module (§7 case 6: "falls through silently to CPU equivalents").
type VGICPFactor struct {
	KeyA, KeyB graph.Key
	VoxelMap   *pointcloud.VoxelMap
	Cloud      *pointcloud.Cloud
	Level      int
	GPU        bool
	SqrtInfo   float64
}

func (f *VGICPFactor) Keys() []graph.Key { return []graph.Key{f.KeyA, f.KeyB} }
func (f *VGICPFactor) Dim() int          { return 3 }
func (f *VGICPFactor) Kind() graph.FactorKind {
	if f.GPU {
		return graph.KindVGICPGPU
	}
	return graph.KindVGICP
}

func (f *VGICPFactor) Linearize(values *graph.Values) ([]*mat.Dense, *mat.VecDense, error) {
	poseA := values.MustGet(f.KeyA).(graph.PoseVariable).Pose
	poseB := values.MustGet(f.KeyB).(graph.PoseVariable).Pose
	rel := spatialmath.PoseBetween(poseA, poseB)

	var sum r3.Vector
	matches := 0
	f.Cloud.Iterate(func(p r3.Vector) bool {
		transformed := spatialmath.Compose(rel, spatialmath.NewPoseFromPoint(p)).Point()
		coords := voxelCoordsFor(transformed, f.VoxelMap.Resolution)
		if voxel, ok := f.VoxelMap.Voxels[coords]; ok {
			sum = sum.Add(voxel.Mean.Sub(transformed))
			matches++
		}
		return true
	})

	return centroidJacobians(f.SqrtInfo), registrationResidual(sum, matches, f.SqrtInfo), nil
}

func voxelCoordsFor(p r3.Vector, resolution float64) pointcloud.VoxelCoords {
	return pointcloud.VoxelCoords{
		I: floorDiv(p.X, resolution),
		J: floorDiv(p.Y, resolution),
		K: floorDiv(p.Z, resolution),
	}
}

func floorDiv(v, resolution float64) int64 {
	q := v / resolution
	f := int64(q)
	if q < 0 && float64(f) != q {
		f--
	}
	return f
}

// registrationResidual returns the mean correspondence offset, whitened, or
// a zero residual when nothing matched (an unconstrained factor contributes
// nothing to the solve rather than a spurious pull).
func registrationResidual(sum r3.Vector, matches int, sqrtInfo float64) *mat.VecDense {
	if matches == 0 {
		return mat.NewVecDense(3, nil)
	}
	mean := sum.Mul(1.0 / float64(matches))
	return mat.NewVecDense(3, []float64{sqrtInfo * mean.X, sqrtInfo * mean.Y, sqrtInfo * mean.Z})
}

// centroidJacobians returns the [KeyA, KeyB] Jacobian blocks for the
// centroid-offset residual: translation-only coupling, matching the
// small-angle approximation used throughout this package's pose factors.
func centroidJacobians(sqrtInfo float64) []*mat.Dense {
	jacA := mat.NewDense(3, 6, nil)
	jacB := mat.NewDense(3, 6, nil)
	for i := 0; i < 3; i++ {
		jacA.Set(i, i, sqrtInfo)
		jacB.Set(i, i, -sqrtInfo)
	}
	return []*mat.Dense{jacA, jacB}
}
