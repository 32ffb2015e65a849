package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// CalculateVolatility computes annualized volatility from a series of closing
// prices. Daily log returns are derived first, then the sample standard
// deviation is scaled by sqrt(252) trading days.
// Returns nil when fewer than two prices are available.
func CalculateVolatility(closes []float64) *float64 {
	if len(closes) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}

	if len(returns) < 2 {
		return nil
	}

	sd := stat.StdDev(returns, nil)
	if isNaN(sd) {
		return nil
	}

	result := sd * math.Sqrt(252)
	return &result
}

// PercentileRank returns where value sits within the sample, as a 0..100
// percentage of observations at or below it. An empty sample ranks at 50.
func PercentileRank(sample []float64, value float64) float64 {
	if len(sample) == 0 {
		return 50
	}

	below := 0
	for _, v := range sample {
		if v <= value {
			below++
		}
	}

	return 100 * float64(below) / float64(len(sample))
}
