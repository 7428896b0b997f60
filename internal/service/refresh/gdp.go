package refresh

import "math/rand"

const (
	multiplierMin = 1000.0
	multiplierMax = 2000.0
)

// Rand supplies the GDP multiplier draw. Injectable so tests can pin the
// multiplier instead of asserting against a random value.
type Rand interface {
	Float64() float64
}

type defaultRand struct{}

func (defaultRand) Float64() float64 { return rand.Float64() }

// EstimateGDP derives the synthetic GDP figure:
// (population * m) / rate for a uniform m in [1000, 2000).
// A zero rate means no usable exchange rate; the GDP is unknown, not an
// error, and ok is false.
func EstimateGDP(population int64, exchangeRate float64, rng Rand) (float64, bool) {
	if exchangeRate == 0 {
		return 0, false
	}
	m := multiplierMin + rng.Float64()*(multiplierMax-multiplierMin)
	return float64(population) * m / exchangeRate, true
}
