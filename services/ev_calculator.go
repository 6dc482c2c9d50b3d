package services

import (
	"math"

	"optionscope/interfaces"
)

// normalCDF computes the cumulative distribution function of the standard
// normal distribution.
func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}

// CalculateEV derives the expected value of holding an option contract using
// the Black-Scholes d1/d2 parameterization.
//
// S = underlying price, K = strike, T = time to expiration in years,
// r = risk-free rate, sigma = implied volatility as a decimal. itmEstimate
// optionally overrides the estimated underlying price when the contract
// finishes in the money; when nil it defaults to K ± sigma*S.
//
// The function is stateless and safe to call concurrently.
func CalculateEV(S, K, T, r, sigma float64, kind interfaces.OptionKind, premium float64, itmEstimate *float64) (*interfaces.PricingResult, error) {
	if T <= 0 {
		return nil, &InvalidInputError{Field: "T", Value: T}
	}
	if sigma <= 0 {
		return nil, &InvalidInputError{Field: "sigma", Value: sigma}
	}

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	var pWin, delta, breakeven, estPrice, maxGain float64
	switch kind {
	case interfaces.KindCall:
		pWin = normalCDF(d2)
		delta = normalCDF(d1)
		breakeven = K + premium
		estPrice = K + sigma*S
		if itmEstimate != nil {
			estPrice = *itmEstimate
		}
		maxGain = math.Max(0, estPrice-K-premium)
	case interfaces.KindPut:
		pWin = normalCDF(-d2)
		delta = -normalCDF(-d1)
		breakeven = K - premium
		estPrice = K - sigma*S
		if itmEstimate != nil {
			estPrice = *itmEstimate
		}
		maxGain = math.Max(0, K-estPrice-premium)
	default:
		return nil, &InvalidKindError{Kind: string(kind)}
	}

	maxLoss := premium
	ev := pWin*maxGain - (1-pWin)*maxLoss

	return &interfaces.PricingResult{
		ExpectedValue: round4(ev),
		Probability:   round4(pWin),
		Delta:         round4(delta),
		MaxGain:       round4(maxGain),
		MaxLoss:       round4(maxLoss),
		Breakeven:     round4(breakeven),
	}, nil
}
