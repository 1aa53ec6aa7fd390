package backend

import (
	"sort"

	"github.com/golang/geo/r3"

	"github.com/dedkryl/glim-dense-cloud/spatialmath"
)

// imuSample is one raw (stamp, accel, gyro) reading.
type imuSample struct {
	stamp float64
	accel r3.Vector
	gyro  r3.Vector
}

// PreintegratedMeasurement summarizes IMU samples over [tL, tR] into a single
// delta position/velocity/rotation, the form a preintegrated-IMU factor
// consumes (§4.4, §GLOSSARY). This backend integrates directly rather than
// caching bias-Jacobians for in-place re-integration on bias updates, which
// real preintegrated-IMU factors do — a documented simplification; see
// DESIGN.md.
type PreintegratedMeasurement struct {
	DeltaPosition r3.Vector
	DeltaVelocity r3.Vector
	DeltaRotation spatialmath.Orientation
	Dt            float64
	NumSamples    int
}

// imuIntegrator owns the time-ordered sample buffer (C4).
type imuIntegrator struct {
	samples []imuSample
}

func newIMUIntegrator() *imuIntegrator {
	return &imuIntegrator{}
}

// insert appends a sample, keeping the buffer time-ordered. Per §5's
// ordering guarantee, samples normally arrive in time order already; insert
// re-sorts the whole buffer by stamp, so a late sample is placed among the
// buffered ones. A late sample older than an already-consumed endpoint is
// not integrated: the next integrate call erases it unused.
func (b *imuIntegrator) insert(stamp float64, accel, gyro r3.Vector) {
	b.samples = append(b.samples, imuSample{stamp: stamp, accel: accel, gyro: gyro})
	sort.Slice(b.samples, func(i, j int) bool { return b.samples[i].stamp < b.samples[j].stamp })
}

// integrate consumes every buffered sample in [tL, tR], applying bias
// correction, and erases samples with stamp <= tR (§4.4: "samples with
// timestamp <= consumed cursor are erased"). It reports ok=false if fewer
// than 2 samples fall in the interval, per §4.4's IMU-factor fallback rule.
func (b *imuIntegrator) integrate(tL, tR float64, bias [6]float64) (PreintegratedMeasurement, bool) {
	var inInterval []imuSample
	for _, s := range b.samples {
		if s.stamp >= tL && s.stamp <= tR {
			inInterval = append(inInterval, s)
		}
	}

	kept := b.samples[:0:0]
	for _, s := range b.samples {
		if s.stamp > tR {
			kept = append(kept, s)
		}
	}
	b.samples = kept

	if len(inInterval) < 2 {
		return PreintegratedMeasurement{}, false
	}

	accelBias := r3.Vector{X: bias[0], Y: bias[1], Z: bias[2]}
	gyroBias := r3.Vector{X: bias[3], Y: bias[4], Z: bias[5]}

	var (
		deltaPos  r3.Vector
		deltaVel  r3.Vector
		rotVector r3.Vector // accumulated small-angle rotation, body frame
	)
	for i := 1; i < len(inInterval); i++ {
		dt := inInterval[i].stamp - inInterval[i-1].stamp
		if dt <= 0 {
			continue
		}
		accel := inInterval[i-1].accel.Sub(accelBias)
		gyro := inInterval[i-1].gyro.Sub(gyroBias)

		orientation := spatialmath.Exp(rotVector)
		worldAccel := rotateByOrientation(orientation, accel)

		deltaPos = deltaPos.Add(deltaVel.Mul(dt)).Add(worldAccel.Mul(0.5 * dt * dt))
		deltaVel = deltaVel.Add(worldAccel.Mul(dt))
		rotVector = rotVector.Add(gyro.Mul(dt))
	}

	return PreintegratedMeasurement{
		DeltaPosition: deltaPos,
		DeltaVelocity: deltaVel,
		DeltaRotation: spatialmath.Exp(rotVector),
		Dt:            inInterval[len(inInterval)-1].stamp - inInterval[0].stamp,
		NumSamples:    len(inInterval),
	}, true
}

func rotateByOrientation(o spatialmath.Orientation, v r3.Vector) r3.Vector {
	p := spatialmath.NewPoseFromOrientation(r3.Vector{}, o)
	return spatialmath.Compose(p, spatialmath.NewPoseFromPoint(v)).Point()
}
