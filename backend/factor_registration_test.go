package backend

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/dedkryl/glim-dense-cloud/graph"
	"github.com/dedkryl/glim-dense-cloud/pointcloud"
	"github.com/dedkryl/glim-dense-cloud/spatialmath"
)

func TestGICPFactorResidualZeroWhenCloudsAligned(t *testing.T) {
	pts := gridPoints(4, 0.2, r3.Vector{})
	cloud := pointcloud.NewFromPoints(pts)

	values := graph.NewValues()
	values.Insert(graph.X(0), graph.PoseVariable{Pose: spatialmath.NewZeroPose()})
	values.Insert(graph.X(1), graph.PoseVariable{Pose: spatialmath.NewZeroPose()})

	f := &GICPFactor{
		KeyA: graph.X(0), KeyB: graph.X(1),
		CloudA: cloud, CloudB: cloud,
		MaxCorrespondence: 0.05,
		SqrtInfo:          1,
	}
	_, residual, err := f.Linearize(values)
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 3; i++ {
		test.That(t, residual.AtVec(i), test.ShouldAlmostEqual, 0.0)
	}
}

func TestGICPFactorResidualZeroWhenNoCorrespondences(t *testing.T) {
	cloudA := pointcloud.NewFromPoints(gridPoints(3, 0.1, r3.Vector{}))
	cloudB := pointcloud.NewFromPoints(gridPoints(3, 0.1, r3.Vector{X: 1000}))

	values := graph.NewValues()
	values.Insert(graph.X(0), graph.PoseVariable{Pose: spatialmath.NewZeroPose()})
	values.Insert(graph.X(1), graph.PoseVariable{Pose: spatialmath.NewZeroPose()})

	f := &GICPFactor{
		KeyA: graph.X(0), KeyB: graph.X(1),
		CloudA: cloudA, CloudB: cloudB,
		MaxCorrespondence: 0.05,
		SqrtInfo:          1,
	}
	_, residual, err := f.Linearize(values)
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 3; i++ {
		test.That(t, residual.AtVec(i), test.ShouldAlmostEqual, 0.0)
	}
}

func TestVGICPFactorKindFollowsGPUFlag(t *testing.T) {
	f := &VGICPFactor{KeyA: graph.X(0), KeyB: graph.X(1)}
	test.That(t, f.Kind(), test.ShouldEqual, graph.KindVGICP)
	f.GPU = true
	test.That(t, f.Kind(), test.ShouldEqual, graph.KindVGICPGPU)
}

func TestVGICPFactorResidualZeroWhenAligned(t *testing.T) {
	pts := gridPoints(4, 0.2, r3.Vector{})
	cloud := pointcloud.NewFromPoints(pts)
	vm := pointcloud.NewVoxelMap(cloud, 0.2)

	values := graph.NewValues()
	values.Insert(graph.X(0), graph.PoseVariable{Pose: spatialmath.NewZeroPose()})
	values.Insert(graph.X(1), graph.PoseVariable{Pose: spatialmath.NewZeroPose()})

	f := &VGICPFactor{
		KeyA: graph.X(0), KeyB: graph.X(1),
		VoxelMap: vm, Cloud: cloud, Level: 0,
		SqrtInfo: 1,
	}
	_, residual, err := f.Linearize(values)
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 3; i++ {
		test.That(t, residual.AtVec(i), test.ShouldAlmostEqual, 0.0)
	}
}

func TestVoxelCoordsForMatchesFloorDiv(t *testing.T) {
	c := voxelCoordsFor(r3.Vector{X: -0.05, Y: 0.15, Z: 0.25}, 0.1)
	test.That(t, c.I, test.ShouldEqual, int64(-1))
	test.That(t, c.J, test.ShouldEqual, int64(1))
	test.That(t, c.K, test.ShouldEqual, int64(2))
}
