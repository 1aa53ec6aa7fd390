package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// VoxelCoords are integer grid coordinates in a VoxelMap's axes.
type VoxelCoords struct {
	I, J, K int64
}

// GaussianVoxel holds the per-voxel sufficient statistics a VGICP matching-cost
// factor needs: the sample mean and covariance of the points that fell in it.
type GaussianVoxel struct {
	Key       VoxelCoords
	Mean      r3.Vector
	Cov       *mat.SymDense // 3x3
	NumPoints int
}

// VoxelMap is a single-resolution Gaussian voxel index over a point cloud, as
// produced by the voxel-map builder (C2) for one of a submap's multiple
// resolution levels.
type VoxelMap struct {
	Resolution float64
	Voxels     map[VoxelCoords]*GaussianVoxel
}

func coordsFor(p r3.Vector, resolution float64) VoxelCoords {
	return VoxelCoords{
		I: int64(math.Floor(p.X / resolution)),
		J: int64(math.Floor(p.Y / resolution)),
		K: int64(math.Floor(p.Z / resolution)),
	}
}

// NewVoxelMap inserts every point of c into a fresh grid at the given
// resolution and accumulates a mean/covariance per occupied voxel.
func NewVoxelMap(c *Cloud, resolution float64) *VoxelMap {
	vm := &VoxelMap{Resolution: resolution, Voxels: make(map[VoxelCoords]*GaussianVoxel)}
	vm.Insert(c)
	return vm
}

// Insert adds c's points into the existing grid, updating means/covariances of
// voxels they land in (creating new voxels as needed). This lets a voxel map
// be built incrementally as points arrive, matching the "insert the cloud
// into each" step of C2.
func (vm *VoxelMap) Insert(c *Cloud) {
	buckets := make(map[VoxelCoords][]r3.Vector)
	for _, p := range c.Points() {
		key := coordsFor(p, vm.Resolution)
		buckets[key] = append(buckets[key], p)
	}
	for key, pts := range buckets {
		existing, ok := vm.Voxels[key]
		if !ok {
			existing = &GaussianVoxel{Key: key}
			vm.Voxels[key] = existing
		}
		mergeGaussian(existing, pts)
	}
}

// mergeGaussian folds newPoints into the running mean/covariance of v.
func mergeGaussian(v *GaussianVoxel, newPoints []r3.Vector) {
	n0 := v.NumPoints
	n1 := len(newPoints)
	if n1 == 0 {
		return
	}
	var sum r3.Vector
	for _, p := range newPoints {
		sum = sum.Add(p)
	}
	newMean := sum.Mul(1 / float64(n1))

	if n0 == 0 {
		v.Mean = newMean
		v.Cov = covarianceOf(newPoints, newMean)
		v.NumPoints = n1
		return
	}

	// Combine two Gaussians' sufficient statistics (parallel-axis / Chan's
	// formula), so repeated Insert calls behave the same as one large batch.
	total := n0 + n1
	oldMean := v.Mean
	combinedMean := oldMean.Mul(float64(n0) / float64(total)).Add(newMean.Mul(float64(n1) / float64(total)))

	newCov := covarianceOf(newPoints, newMean)
	delta := oldMean.Sub(newMean)
	var correction mat.SymDense
	correction.SymOuterK(float64(n0)*float64(n1)/float64(total), mat.NewVecDense(3, []float64{delta.X, delta.Y, delta.Z}))

	var combined mat.SymDense
	combined.AddSym(scaleSym(v.Cov, float64(n0-1)), scaleSym(newCov, float64(n1-1)))
	combined.AddSym(&combined, &correction)
	combined.ScaleSym(1/float64(total-1), &combined)

	v.Mean = combinedMean
	v.Cov = &combined
	v.NumPoints = total
}

func scaleSym(m *mat.SymDense, s float64) *mat.SymDense {
	var out mat.SymDense
	out.ScaleSym(s, m)
	return &out
}

func covarianceOf(pts []r3.Vector, mean r3.Vector) *mat.SymDense {
	cov := mat.NewSymDense(3, nil)
	if len(pts) < 2 {
		// A single point (or none) has no empirical spread; fall back to a
		// small isotropic covariance so downstream Mahalanobis terms stay finite.
		for i := 0; i < 3; i++ {
			cov.SetSym(i, i, 1e-3)
		}
		return cov
	}
	for _, p := range pts {
		d := p.Sub(mean)
		dv := [3]float64{d.X, d.Y, d.Z}
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				cov.SetSym(i, j, cov.At(i, j)+dv[i]*dv[j])
			}
		}
	}
	cov.ScaleSym(1/float64(len(pts)-1), cov)
	return cov
}

// VoxelMapConfig mirrors the adaptive-resolution knobs in §4.7/C2.
type VoxelMapConfig struct {
	ResolutionMin     float64
	ResolutionMax     float64
	DistanceMin       float64
	DistanceMax       float64
	Levels            int
	ScalingFactor     float64
	RandomSamplingRate float64
}

// AdaptiveBaseResolution implements C2 steps 1-3: estimate the median range of
// up to 256 sampled points from origin, normalize it against the configured
// distance band, and linearly interpolate the resolution band.
func AdaptiveBaseResolution(c *Cloud, origin r3.Vector, cfg VoxelMapConfig) (float64, error) {
	pts := c.Points()
	const maxSamples = 256
	sample := pts
	if len(pts) > maxSamples {
		idx := sharedRNG()
		sample = make([]r3.Vector, maxSamples)
		for i := range sample {
			sample[i] = pts[idx.Intn(len(pts))]
		}
	}
	ranges := make([]float64, len(sample))
	for i, p := range sample {
		ranges[i] = p.Sub(origin).Norm()
	}
	if len(ranges) == 0 {
		return cfg.ResolutionMin, nil
	}
	d, err := stats.Median(ranges)
	if err != nil {
		return 0, err
	}
	p := clamp((d-cfg.DistanceMin)/(cfg.DistanceMax-cfg.DistanceMin), 0, 1)
	return cfg.ResolutionMin + p*(cfg.ResolutionMax-cfg.ResolutionMin), nil
}

// BuildVoxelMaps constructs cfg.Levels voxel maps from c, finest resolution
// first, with level i's resolution equal to baseResolution * scalingFactor^i.
func BuildVoxelMaps(c *Cloud, baseResolution float64, cfg VoxelMapConfig) []*VoxelMap {
	maps := make([]*VoxelMap, cfg.Levels)
	res := baseResolution
	for i := 0; i < cfg.Levels; i++ {
		maps[i] = NewVoxelMap(c, res)
		res *= cfg.ScalingFactor
	}
	return maps
}

// Overlap computes the fraction of transform(c)'s points that land inside an
// occupied voxel of vm, used by the overlap-driven implicit loop search (C6)
// and the matching-cost factor gate (C3).
func Overlap(vm *VoxelMap, c *Cloud, transform func(r3.Vector) r3.Vector) float64 {
	pts := c.Points()
	if len(pts) == 0 {
		return 0
	}
	hits := 0
	for _, p := range pts {
		key := coordsFor(transform(p), vm.Resolution)
		if _, ok := vm.Voxels[key]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(pts))
}
