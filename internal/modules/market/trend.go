package market

import (
	"github.com/grainflow/grainflow/internal/domain"
	"github.com/grainflow/grainflow/pkg/formulas"
)

const (
	rsiPeriod   = 14
	smaShort    = 20
	smaLong     = 50
	rsiNeutral  = 50.0
	smaGapBand  = 0.005 // within +-0.5% the trend is sideways
)

// AnalyzeTrend derives the technical trend from a series of daily closes,
// oldest first. Missing indicators degrade to neutral values rather than
// failing the assembly.
func AnalyzeTrend(closes []float64) domain.TrendAnalysis {
	trend := domain.TrendAnalysis{
		Direction: domain.TrendSideways,
		RSI:       rsiNeutral,
	}

	if len(closes) == 0 {
		return trend
	}

	last := closes[len(closes)-1]

	if rsi := formulas.CalculateRSI(closes, rsiPeriod); rsi != nil {
		trend.RSI = *rsi
	}

	if sma := formulas.CalculateSMA(closes, smaShort); sma != nil {
		trend.SMA20 = *sma
	} else {
		trend.SMA20 = last
	}

	if sma := formulas.CalculateSMA(closes, smaLong); sma != nil {
		trend.SMA50 = *sma
	} else {
		trend.SMA50 = trend.SMA20
	}

	if vol := formulas.CalculateVolatility(closes); vol != nil {
		trend.Volatility = *vol
	}

	// Direction from the short/long moving average gap
	if trend.SMA50 > 0 {
		gap := (trend.SMA20 - trend.SMA50) / trend.SMA50
		switch {
		case gap > smaGapBand:
			trend.Direction = domain.TrendUp
		case gap < -smaGapBand:
			trend.Direction = domain.TrendDown
		}
	}

	return trend
}
