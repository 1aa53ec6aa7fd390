package backend

import (
	"github.com/golang/geo/r3"

	"github.com/dedkryl/glim-dense-cloud/pointcloud"
	"github.com/dedkryl/glim-dense-cloud/spatialmath"
)

// gridPoints returns an n x n x n lattice of points, spaced by spacing and
// shifted by offset, used across this package's tests as submap keyframes.
func gridPoints(n int, spacing float64, offset r3.Vector) []r3.Vector {
	pts := make([]r3.Vector, 0, n*n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				pts = append(pts, r3.Vector{
					X: offset.X + float64(i)*spacing,
					Y: offset.Y + float64(j)*spacing,
					Z: offset.Z + float64(k)*spacing,
				})
			}
		}
	}
	return pts
}

// testConfig returns DefaultConfig with subsampling disabled, so a test's
// SubsampledCloud always equals its MergedKeyframe.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RandomSamplingRate = 1.0
	return cfg
}

// newTestSubmap builds a Submap whose endpoint frames all sit at origin, the
// shape every non-IMU test in this package needs; IMU tests override the
// endpoint frames they care about after construction.
func newTestSubmap(origin spatialmath.Pose, pts []r3.Vector) *Submap {
	return &Submap{
		MergedKeyframe:   pointcloud.NewFromPoints(pts),
		TWorldOrigin:     origin,
		TOriginEndpointL: spatialmath.NewZeroPose(),
		TOriginEndpointR: spatialmath.NewZeroPose(),
		OriginFirst:      EndpointFrame{Pose: origin, Stamp: 0},
		OriginLast:       EndpointFrame{Pose: origin, Stamp: 1},
		OptimFirst:       EndpointFrame{Pose: origin, Stamp: 0},
		OptimLast:        EndpointFrame{Pose: origin, Stamp: 1},
	}
}
