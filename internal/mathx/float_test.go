package mathx

import (
	"math"
	"testing"
)

func TestDefinitelyGreater(t *testing.T) {
	if !DefinitelyGreater(1.1, 1.0, 1e-6) {
		t.Error("1.1 should be definitely greater than 1.0")
	}
	if DefinitelyGreater(1.0, 1.0, 1e-6) {
		t.Error("equal values must not compare greater")
	}
	if DefinitelyGreater(1.0+1e-12, 1.0, 1e-6) {
		t.Error("difference below tolerance must not compare greater")
	}
	if DefinitelyGreater(math.NaN(), 1.0, 1e-6) {
		t.Error("NaN never compares")
	}
	if !DefinitelyGreater(math.Inf(1), 1.0, 1e-6) {
		t.Error("+Inf is definitely greater than any finite value")
	}
}

func TestDefinitelyLess(t *testing.T) {
	if !DefinitelyLess(1.0, 1.1, 1e-6) {
		t.Error("1.0 should be definitely less than 1.1")
	}
	if DefinitelyLess(1.0, 1.0+1e-12, 1e-6) {
		t.Error("difference below tolerance must not compare less")
	}
	if !DefinitelyLess(math.Inf(-1), 1.0, 1e-6) {
		t.Error("-Inf is definitely less than any finite value")
	}
}

func TestEssentiallyEqual(t *testing.T) {
	if !EssentiallyEqual(1.0, 1.0+1e-12, 1e-6) {
		t.Error("values within tolerance are essentially equal")
	}
	if EssentiallyEqual(1.0, 1.1, 1e-6) {
		t.Error("distinct values are not essentially equal")
	}
	if !EssentiallyEqual(0.0, 0.0, 1e-6) {
		t.Error("zeros are equal")
	}
	if EssentiallyEqual(math.NaN(), math.NaN(), 1e-6) {
		t.Error("NaN is not equal to itself")
	}
}

func TestBounds(t *testing.T) {
	if !EssentiallyGreaterEqual(1.0, 1.0, 1e-6) {
		t.Error("equal values satisfy >=")
	}
	if !EssentiallyLessEqual(1.0, 1.0+1e-12, 1e-6) {
		t.Error("values within tolerance satisfy <=")
	}
}
