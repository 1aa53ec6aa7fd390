package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func gridCloud(n int, spacing float64) *Cloud {
	pts := make([]r3.Vector, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			pts = append(pts, r3.Vector{X: float64(i) * spacing, Y: float64(j) * spacing, Z: 0})
		}
	}
	return NewFromPoints(pts)
}

func TestVoxelMapInsertMergesMeans(t *testing.T) {
	c := gridCloud(10, 0.05)
	vm := NewVoxelMap(c, 1.0)
	test.That(t, len(vm.Voxels), test.ShouldEqual, 1)
	v := vm.Voxels[VoxelCoords{0, 0, 0}]
	test.That(t, v.NumPoints, test.ShouldEqual, 100)
}

func TestVoxelMapIncrementalInsertMatchesBatch(t *testing.T) {
	c := gridCloud(6, 0.2)
	batch := NewVoxelMap(c, 1.0)

	incremental := &VoxelMap{Resolution: 1.0, Voxels: make(map[VoxelCoords]*GaussianVoxel)}
	half := c.Size() / 2
	incremental.Insert(NewFromPoints(c.Points()[:half]))
	incremental.Insert(NewFromPoints(c.Points()[half:]))

	bv := batch.Voxels[VoxelCoords{0, 0, 0}]
	iv := incremental.Voxels[VoxelCoords{0, 0, 0}]
	test.That(t, iv.NumPoints, test.ShouldEqual, bv.NumPoints)
	test.That(t, iv.Mean.X, test.ShouldAlmostEqual, bv.Mean.X)
	test.That(t, iv.Mean.Y, test.ShouldAlmostEqual, bv.Mean.Y)
}

func TestAdaptiveBaseResolutionClampsToBand(t *testing.T) {
	cfg := VoxelMapConfig{ResolutionMin: 0.1, ResolutionMax: 1.0, DistanceMin: 1, DistanceMax: 10}
	near := NewFromPoints([]r3.Vector{{X: 0.5}, {X: 0.5}, {X: 0.5}})
	res, err := AdaptiveBaseResolution(near, r3.Vector{}, cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res, test.ShouldAlmostEqual, cfg.ResolutionMin)

	far := NewFromPoints([]r3.Vector{{X: 50}, {X: 50}, {X: 50}})
	res, err = AdaptiveBaseResolution(far, r3.Vector{}, cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res, test.ShouldAlmostEqual, cfg.ResolutionMax)
}

func TestOverlapFullyOccupied(t *testing.T) {
	c := gridCloud(5, 0.1)
	vm := NewVoxelMap(c, 1.0)
	overlap := Overlap(vm, c, func(p r3.Vector) r3.Vector { return p })
	test.That(t, overlap, test.ShouldAlmostEqual, 1.0)
}

func TestOverlapDisjoint(t *testing.T) {
	c := gridCloud(5, 0.1)
	vm := NewVoxelMap(c, 1.0)
	other := gridCloud(5, 0.1)
	overlap := Overlap(vm, other, func(p r3.Vector) r3.Vector { return p.Add(r3.Vector{X: 1000}) })
	test.That(t, overlap, test.ShouldAlmostEqual, 0.0)
}

func TestBuildVoxelMapsGeometricResolutions(t *testing.T) {
	c := gridCloud(4, 0.1)
	cfg := VoxelMapConfig{Levels: 3, ScalingFactor: 2}
	maps := BuildVoxelMaps(c, 0.25, cfg)
	test.That(t, len(maps), test.ShouldEqual, 3)
	test.That(t, maps[0].Resolution, test.ShouldAlmostEqual, 0.25)
	test.That(t, maps[1].Resolution, test.ShouldAlmostEqual, 0.5)
	test.That(t, maps[2].Resolution, test.ShouldAlmostEqual, 1.0)
}
