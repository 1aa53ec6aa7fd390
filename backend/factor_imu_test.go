package backend

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/dedkryl/glim-dense-cloud/graph"
	"github.com/dedkryl/glim-dense-cloud/spatialmath"
)

func TestIMUPreintegrationFactorResidualZeroWhenMeasurementMatches(t *testing.T) {
	poseL := spatialmath.NewZeroPose()
	poseR := spatialmath.NewPoseFromPoint(r3.Vector{X: 1})
	velL := r3.Vector{X: 0.5}
	velR := r3.Vector{X: 1.5}

	values := graph.NewValues()
	values.Insert(graph.E(0), graph.PoseVariable{Pose: poseL})
	values.Insert(graph.V(0), graph.Vector3Variable{Value: velL})
	values.Insert(graph.B(0), graph.Vector6Variable{})
	values.Insert(graph.E(1), graph.PoseVariable{Pose: poseR})
	values.Insert(graph.V(1), graph.Vector3Variable{Value: velR})

	f := &IMUPreintegrationFactor{
		ELeft: graph.E(0), VLeft: graph.V(0), BLeft: graph.B(0),
		ERight: graph.E(1), VRight: graph.V(1),
		Measurement: PreintegratedMeasurement{
			DeltaPosition: r3.Vector{X: 1},
			DeltaVelocity: r3.Vector{X: 1},
			DeltaRotation: spatialmath.NewZeroOrientation(),
			Dt:            1,
			NumSamples:    2,
		},
		SqrtInfo: 10,
	}
	_, residual, err := f.Linearize(values)
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 9; i++ {
		test.That(t, residual.AtVec(i), test.ShouldAlmostEqual, 0.0)
	}
}

func TestIMUPreintegrationFactorKeysDimKind(t *testing.T) {
	f := &IMUPreintegrationFactor{
		ELeft: graph.E(0), VLeft: graph.V(0), BLeft: graph.B(0),
		ERight: graph.E(1), VRight: graph.V(1),
	}
	test.That(t, f.Dim(), test.ShouldEqual, 9)
	test.That(t, f.Kind(), test.ShouldEqual, graph.KindIMU)
	test.That(t, f.Keys(), test.ShouldResemble, []graph.Key{
		graph.E(0), graph.V(0), graph.B(0), graph.E(1), graph.V(1),
	})
}

func TestIMUPreintegrationFactorResidualNonzeroVelocityMismatch(t *testing.T) {
	poseL := spatialmath.NewZeroPose()
	poseR := spatialmath.NewZeroPose()
	values := graph.NewValues()
	values.Insert(graph.E(0), graph.PoseVariable{Pose: poseL})
	values.Insert(graph.V(0), graph.Vector3Variable{Value: r3.Vector{}})
	values.Insert(graph.B(0), graph.Vector6Variable{})
	values.Insert(graph.E(1), graph.PoseVariable{Pose: poseR})
	values.Insert(graph.V(1), graph.Vector3Variable{Value: r3.Vector{X: 3}})

	f := &IMUPreintegrationFactor{
		ELeft: graph.E(0), VLeft: graph.V(0), BLeft: graph.B(0),
		ERight: graph.E(1), VRight: graph.V(1),
		Measurement: PreintegratedMeasurement{
			DeltaRotation: spatialmath.NewZeroOrientation(),
		},
		SqrtInfo: 1,
	}
	_, residual, err := f.Linearize(values)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, residual.AtVec(3), test.ShouldAlmostEqual, 3.0)
}
