package backend

import (
	"math"

	"github.com/dedkryl/glim-dense-cloud/graph"
	"github.com/dedkryl/glim-dense-cloud/spatialmath"
)

const (
	tightPrecision = 1e6
	vgicpPrecision = 100.0
)

func sqrtInfoFor(precision float64) float64 { return math.Sqrt(precision) }

// createBetweenFactors implements §4.3's between-factor set for submap k:
// empty for k=0 or when between-factors are disabled; a single tight
// between-factor when registration is disabled; otherwise a GICP-refined
// delta from a small local solve.
func (g *GlobalMapping) createBetweenFactors(k int) []graph.Factor {
	if k == 0 || !g.cfg.EnableBetweenFactors {
		return nil
	}
	prev := g.submaps.Get(k - 1)
	cur := g.submaps.Get(k)
	deltaInit := spatialmath.PoseBetween(prev.TWorldOrigin, cur.TWorldOrigin)

	if g.cfg.BetweenRegistrationType == "NONE" {
		return []graph.Factor{
			&BetweenPoseFactor{KeyA: graph.X(uint64(k - 1)), KeyB: graph.X(uint64(k)), Delta: deltaInit, SqrtInfo: sqrtInfoFor(tightPrecision)},
		}
	}

	delta := g.refineDeltaWithGICP(prev, cur, deltaInit)
	return []graph.Factor{
		&BetweenPoseFactor{KeyA: graph.X(uint64(k - 1)), KeyB: graph.X(uint64(k)), Delta: delta, SqrtInfo: sqrtInfoFor(1e4)},
	}
}

// refineDeltaWithGICP runs the §4.3 local two-variable LM problem: a tight
// prior pinning a local X(0)=I, a GICP factor to the other keyframe, solved
// with a small initial damping and a short iteration budget. It reuses the
// same graph.Smoother engine as the global driver, on an ephemeral, entirely
// local key namespace.
func (g *GlobalMapping) refineDeltaWithGICP(prev, cur *Submap, deltaInit spatialmath.Pose) spatialmath.Pose {
	cfg := graph.DefaultSmootherConfig()
	cfg.InitialLambda = 1e-12
	cfg.MaxIterations = 10
	local := graph.NewSmoother(cfg)

	localOrigin := graph.X(0)
	localOther := graph.X(1)

	values := graph.NewValues()
	values.Insert(localOrigin, graph.PoseVariable{Pose: spatialmath.NewZeroPose()})
	values.Insert(localOther, graph.PoseVariable{Pose: deltaInit})

	factors := []graph.Factor{
		&PriorPoseFactor{Key: localOrigin, Target: spatialmath.NewZeroPose(), SqrtInfo: sqrtInfoFor(tightPrecision)},
		&GICPFactor{KeyA: localOrigin, KeyB: localOther, CloudA: prev.MergedKeyframe, CloudB: cur.MergedKeyframe, MaxCorrespondence: 0.5, SqrtInfo: 1.0},
	}

	if _, err := local.Update(values, factors); err != nil {
		return deltaInit
	}
	return local.Values().MustGet(localOther).(graph.PoseVariable).Pose
}

// createMatchingCostFactors implements §4.3's matching-cost factor set for
// submap k: VGICP factors against every sufficiently close and overlapping
// prior submap, plus the isolation fallback against k-1 when its overlap is
// low.
func (g *GlobalMapping) createMatchingCostFactors(k int) []graph.Factor {
	var factors []graph.Factor
	cur := g.submaps.Get(k)
	prevOverlap := 0.0

	for i := 0; i < k; i++ {
		prior := g.submaps.Get(i)
		if translationDistance(prior.TWorldOrigin, cur.TWorldOrigin) > g.cfg.MaxImplicitLoopDistance {
			continue
		}
		overlap := computeOverlap(prior, cur)
		if overlap >= g.cfg.MinImplicitLoopOverlap {
			for level, vm := range prior.VoxelMaps {
				factors = append(factors, &VGICPFactor{
					KeyA: graph.X(uint64(i)), KeyB: graph.X(uint64(k)),
					VoxelMap: vm, Cloud: cur.SubsampledCloud, Level: level,
					GPU: g.cfg.registrationIsGPU(), SqrtInfo: sqrtInfoFor(vgicpPrecision),
				})
			}
		}
		if i == k-1 {
			prevOverlap = overlap
		}
	}
	if k >= 1 && prevOverlap < math.Max(0.25, g.cfg.MinImplicitLoopOverlap) {
		prev := g.submaps.Get(k - 1)
		delta := spatialmath.PoseBetween(prev.TWorldOrigin, cur.TWorldOrigin)
		factors = append(factors, &BetweenPoseFactor{
			KeyA: graph.X(uint64(k - 1)), KeyB: graph.X(uint64(k)),
			Delta: delta, SqrtInfo: sqrtInfoFor(tightPrecision),
		})
	}
	return factors
}
