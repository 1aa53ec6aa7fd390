package backend

import (
	"testing"

	"go.viam.com/test"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	warnings, err := cfg.Validate("default")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(warnings), test.ShouldEqual, 0)
}

func TestValidateRejectsBadBetweenRegistrationType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BetweenRegistrationType = "ICP"
	_, err := cfg.Validate("cfg.json")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestValidateRejectsNonVGICPFactorType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RegistrationErrorFactorType = "GICP"
	_, err := cfg.Validate("cfg.json")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestValidateRejectsBadResolutionBand(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SubmapVoxelResolution = 3.0
	cfg.SubmapVoxelResolutionMax = 1.0
	_, err := cfg.Validate("cfg.json")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestValidateWarnsOnLowScalingFactor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SubmapVoxelmapScalingFactor = 0.5
	warnings, err := cfg.Validate("cfg.json")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(warnings), test.ShouldBeGreaterThan, 0)
}

func TestRegistrationIsGPU(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.registrationIsGPU(), test.ShouldBeFalse)
	cfg.RegistrationErrorFactorType = "VGICP_GPU"
	test.That(t, cfg.registrationIsGPU(), test.ShouldBeTrue)
}
