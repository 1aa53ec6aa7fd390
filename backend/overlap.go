package backend

import (
	"github.com/golang/geo/r3"

	"github.com/dedkryl/glim-dense-cloud/pointcloud"
	"github.com/dedkryl/glim-dense-cloud/spatialmath"
)

// overlapPair is a candidate implicit loop between submap I and submap J.
type overlapPair struct {
	I, J    int
	Overlap float64
}

// computeOverlap returns the fraction of target's points that land in an
// occupied voxel of base's coarsest voxel map, under the rigid transform
// that expresses target's points in base's frame (§4.2's Overlap, reused by
// both §4.3's matching-cost gating and §4.5's find_overlapping_submaps).
func computeOverlap(base *Submap, target *Submap) float64 {
	if len(base.VoxelMaps) == 0 {
		return 0
	}
	rel := spatialmath.PoseBetween(base.TWorldOrigin, target.TWorldOrigin)
	transform := func(p r3.Vector) r3.Vector {
		return spatialmath.Compose(rel, spatialmath.NewPoseFromPoint(p)).Point()
	}
	coarsest := base.VoxelMaps[len(base.VoxelMaps)-1]
	return pointcloud.Overlap(coarsest, target.SubsampledCloud, transform)
}

func translationDistance(a, b spatialmath.Pose) float64 {
	return a.Point().Sub(b.Point()).Norm()
}

// findOverlappingPairs enumerates (i, j) pairs, i < j, within
// maxDistance and at or above minOverlap, skipping pairs already directly
// connected by an X<->X factor (linked reports that).
func findOverlappingPairs(idx *Index, maxDistance, minOverlap float64, linked func(i, j int) bool) []overlapPair {
	var pairs []overlapPair
	submaps := idx.All()
	for i := 0; i < len(submaps); i++ {
		for j := i + 1; j < len(submaps); j++ {
			if linked(i, j) {
				continue
			}
			if translationDistance(submaps[i].TWorldOrigin, submaps[j].TWorldOrigin) > maxDistance {
				continue
			}
			overlap := computeOverlap(submaps[i], submaps[j])
			if overlap >= minOverlap {
				pairs = append(pairs, overlapPair{I: i, J: j, Overlap: overlap})
			}
		}
	}
	return pairs
}
