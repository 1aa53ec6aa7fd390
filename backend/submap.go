package backend

import (
	"github.com/dedkryl/glim-dense-cloud/graph"
	"github.com/dedkryl/glim-dense-cloud/pointcloud"
	"github.com/dedkryl/glim-dense-cloud/spatialmath"
)

// EndpointFrame is the slice of a front-end odometry frame the backend
// actually reads: the world-frame pose estimate, IMU bias, world-frame
// velocity, and timestamp at one end of a submap. spec.md's
// optim_odom_frames/origin_odom_frames are full per-scan sequences; only
// their first and last elements ever feed a backend operation, so Submap
// keeps those two endpoints directly rather than the whole sequence.
type EndpointFrame struct {
	Pose     spatialmath.Pose
	Bias     [6]float64
	Velocity [3]float64
	Stamp    float64
}

// Submap is a locally-consistent trajectory fragment handed to the backend
// by the front end, plus the backend's mutable pose estimate for it.
type Submap struct {
	ID int

	MergedKeyframe  *pointcloud.Cloud
	SubsampledCloud *pointcloud.Cloud
	VoxelMaps       []*pointcloud.VoxelMap

	// TWorldOrigin is mutated only by the smoother driver after each update.
	TWorldOrigin spatialmath.Pose

	TOriginEndpointL spatialmath.Pose
	TOriginEndpointR spatialmath.Pose

	// OriginFirst/OriginLast are origin_odom_frames.front()/back().
	OriginFirst EndpointFrame
	OriginLast  EndpointFrame

	// OptimFirst/OptimLast are optim_odom_frames.front()/back(), used to
	// chain world-frame endpoint poses when predicting a new submap's origin.
	OptimFirst EndpointFrame
	OptimLast  EndpointFrame
}

// Index is the append-only ordered collection of submaps (C1). It owns both
// the submap and its derived subsampled cloud, and is the single place
// submap poses are overwritten after a smoother update.
type Index struct {
	submaps []*Submap
}

// Append adds s to the index and returns its assigned id (= its index).
func (idx *Index) Append(s *Submap) int {
	s.ID = len(idx.submaps)
	idx.submaps = append(idx.submaps, s)
	return s.ID
}

// Len returns the number of submaps held.
func (idx *Index) Len() int { return len(idx.submaps) }

// Get returns submap k, or nil if out of range.
func (idx *Index) Get(k int) *Submap {
	if k < 0 || k >= len(idx.submaps) {
		return nil
	}
	return idx.submaps[k]
}

// All returns every submap in insertion order.
func (idx *Index) All() []*Submap {
	return idx.submaps
}

// RefreshPoses overwrites every submap's TWorldOrigin from values, matching
// §4.1's "on each smoother update, poses of all stored submaps are
// overwritten from the latest smoother estimate."
func (idx *Index) RefreshPoses(values *graph.Values) {
	for _, s := range idx.submaps {
		v, ok := values.Get(graph.X(uint64(s.ID)))
		if !ok {
			continue
		}
		s.TWorldOrigin = v.(graph.PoseVariable).Pose
	}
}
