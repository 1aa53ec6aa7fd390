package backend

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestIMUIntegratorFallsBackBelowTwoSamples(t *testing.T) {
	imu := newIMUIntegrator()
	imu.insert(0.0, r3.Vector{Z: 9.8}, r3.Vector{})

	_, ok := imu.integrate(0.0, 1.0, [6]float64{})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestIMUIntegratorNoSamplesFallsBack(t *testing.T) {
	imu := newIMUIntegrator()
	_, ok := imu.integrate(0.0, 1.0, [6]float64{})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestIMUIntegratorIntegratesStationarySpan(t *testing.T) {
	imu := newIMUIntegrator()
	imu.insert(0.0, r3.Vector{}, r3.Vector{})
	imu.insert(0.5, r3.Vector{}, r3.Vector{})
	imu.insert(1.0, r3.Vector{}, r3.Vector{})

	meas, ok := imu.integrate(0.0, 1.0, [6]float64{})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, meas.NumSamples, test.ShouldEqual, 3)
	test.That(t, meas.Dt, test.ShouldAlmostEqual, 1.0)
	test.That(t, meas.DeltaVelocity.Norm(), test.ShouldAlmostEqual, 0.0)
}

func TestIMUIntegratorConsumesSamples(t *testing.T) {
	imu := newIMUIntegrator()
	imu.insert(0.0, r3.Vector{}, r3.Vector{})
	imu.insert(0.5, r3.Vector{}, r3.Vector{})
	imu.insert(1.0, r3.Vector{}, r3.Vector{})

	_, ok := imu.integrate(0.0, 1.0, [6]float64{})
	test.That(t, ok, test.ShouldBeTrue)

	// A second call over the same span finds nothing left to integrate.
	_, ok = imu.integrate(0.0, 1.0, [6]float64{})
	test.That(t, ok, test.ShouldBeFalse)
}
