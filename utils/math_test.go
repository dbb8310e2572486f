package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestDegRad(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi)
	test.That(t, DegToRad(-90), test.ShouldAlmostEqual, -math.Pi/2)
	test.That(t, RadToDeg(math.Pi/4), test.ShouldAlmostEqual, 45)
	test.That(t, RadToDeg(DegToRad(33.3)), test.ShouldAlmostEqual, 33.3)
}

func TestAngleDiffDeg(t *testing.T) {
	test.That(t, AngleDiffDeg(10, 350), test.ShouldAlmostEqual, 20)
	test.That(t, AngleDiffDeg(350, 10), test.ShouldAlmostEqual, 20)
	test.That(t, AngleDiffDeg(90, 90), test.ShouldAlmostEqual, 0)
}

func TestModAngDeg(t *testing.T) {
	test.That(t, ModAngDeg(-10), test.ShouldAlmostEqual, 350)
	test.That(t, ModAngDeg(370), test.ShouldAlmostEqual, 10)
}
