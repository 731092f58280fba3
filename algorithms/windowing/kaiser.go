package windowing

import (
	"math"
)

// Kaiser represents a Kaiser window function
type Kaiser struct {
	size         int
	beta         float64
	symmetric    bool
	coefficients []float64
}

// NewKaiser creates a new Kaiser window
func NewKaiser(size int, beta float64, symmetric bool) *Kaiser {
	k := &Kaiser{
		size:      size,
		beta:      beta,
		symmetric: symmetric,
	}
	k.generate()
	return k
}

// KaiserBeta returns the beta giving roughly the requested stopband
// attenuation (dB) for a windowed-sinc design. Kaiser's empirical formula,
// high-attenuation branch.
func KaiserBeta(attenuationDB float64) float64 {
	switch {
	case attenuationDB > 50:
		return 0.1102 * (attenuationDB - 8.7)
	case attenuationDB >= 21:
		return 0.5842*math.Pow(attenuationDB-21, 0.4) + 0.07886*(attenuationDB-21)
	default:
		return 0
	}
}

func (k *Kaiser) generate() {
	k.coefficients = make([]float64, k.size)
	if k.size == 1 {
		k.coefficients[0] = 1
		return
	}

	denominator := float64(k.size)
	if k.symmetric {
		denominator = float64(k.size - 1)
	}

	i0Beta := BesselI0(k.beta)

	for i := range k.size {
		arg := 2.0*float64(i)/denominator - 1.0
		k.coefficients[i] = BesselI0(k.beta*math.Sqrt(math.Max(0, 1-arg*arg))) / i0Beta
	}
}

// BesselI0 computes the zero-order modified Bessel function of the first
// kind by its power series. Converges to full double precision for the
// beta values used in filter design (|x| < 30).
func BesselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	half := x / 2

	for i := 1; i < 500; i++ {
		f := half / float64(i)
		term *= f * f
		sum += term

		if term < sum*1e-17 {
			break
		}
	}

	return sum
}

// GetCoefficients returns a copy of the window coefficients
func (k *Kaiser) GetCoefficients() []float64 {
	coeffs := make([]float64, len(k.coefficients))
	copy(coeffs, k.coefficients)
	return coeffs
}
