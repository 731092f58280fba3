package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Eps is the float64 machine epsilon, used as the additive guard on every
// norm and log in the scoring pipeline
const Eps = 2.220446049250313e-16

// Basic vector helpers shared by the STOI stages, built on gonum

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// L2Norm returns the Euclidean norm of data
func L2Norm(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Norm(data, 2)
}

// SubtractMean centres data in place and returns the removed mean
func SubtractMean(data []float64) float64 {
	mean := Mean(data)
	floats.AddConst(-mean, data)
	return mean
}

// UnitNormalize divides data in place by (‖data‖₂ + Eps) and returns the
// norm before scaling. An all-zero vector stays all zero.
func UnitNormalize(data []float64) float64 {
	norm := L2Norm(data)
	floats.Scale(1/(norm+Eps), data)
	return norm
}

// Decibels converts an amplitude to 20·log10(amplitude + Eps)
func Decibels(amplitude float64) float64 {
	return 20 * math.Log10(amplitude+Eps)
}

// GCD returns the greatest common divisor of two positive integers
func GCD(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// CeilDiv returns ceil(a/b) for non-negative a and positive b
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}
