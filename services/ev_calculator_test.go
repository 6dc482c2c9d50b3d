package services

import (
	"testing"

	"optionscope/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateEVRejectsBadInputs(t *testing.T) {
	t.Run("zero time to expiration", func(t *testing.T) {
		_, err := CalculateEV(100, 100, 0, 0.05, 0.2, interfaces.KindCall, 5, nil)
		require.Error(t, err)

		var invalid *InvalidInputError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "T", invalid.Field)
	})

	t.Run("zero volatility", func(t *testing.T) {
		_, err := CalculateEV(100, 100, 0.5, 0.05, 0, interfaces.KindCall, 5, nil)
		require.Error(t, err)

		var invalid *InvalidInputError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "sigma", invalid.Field)
	})

	t.Run("negative time to expiration", func(t *testing.T) {
		_, err := CalculateEV(100, 100, -0.1, 0.05, 0.2, interfaces.KindCall, 5, nil)

		var invalid *InvalidInputError
		require.ErrorAs(t, err, &invalid)
	})

	t.Run("unsupported kind", func(t *testing.T) {
		_, err := CalculateEV(100, 100, 0.5, 0.05, 0.2, interfaces.OptionKind("straddle"), 5, nil)

		var invalidKind *InvalidKindError
		require.ErrorAs(t, err, &invalidKind)
	})

	t.Run("stock kind is not priceable", func(t *testing.T) {
		_, err := CalculateEV(100, 100, 0.5, 0.05, 0.2, interfaces.KindNone, 5, nil)

		var invalidKind *InvalidKindError
		require.ErrorAs(t, err, &invalidKind)
	})
}

func TestCalculateEVCallExample(t *testing.T) {
	// S=150, K=145, 30 days out, r=5%, sigma=35%, premium 7.50. Reference
	// values from a standard Black-Scholes calculator.
	result, err := CalculateEV(150, 145, 30.0/365.0, 0.05, 0.35, interfaces.KindCall, 7.50, nil)
	require.NoError(t, err)

	assert.InDelta(t, 0.6288, result.Probability, 1e-3)
	assert.InDelta(t, 0.6660, result.Delta, 1e-3)
	assert.InDelta(t, 45.0, result.MaxGain, 1e-3)
	assert.InDelta(t, 7.50, result.MaxLoss, 1e-9)
	assert.InDelta(t, 152.50, result.Breakeven, 1e-9)
	assert.InDelta(t, 25.5114, result.ExpectedValue, 1e-3)
}

func TestCalculateEVPutExample(t *testing.T) {
	result, err := CalculateEV(100, 105, 0.25, 0.05, 0.30, interfaces.KindPut, 8.0, nil)
	require.NoError(t, err)

	assert.InDelta(t, 0.6244, result.Probability, 1e-3)
	assert.InDelta(t, -0.5663, result.Delta, 1e-3)
	assert.InDelta(t, 22.0, result.MaxGain, 1e-3)
	assert.InDelta(t, 8.0, result.MaxLoss, 1e-9)
	assert.InDelta(t, 97.0, result.Breakeven, 1e-9)
	assert.InDelta(t, 10.7306, result.ExpectedValue, 1e-3)
}

func TestCalculateEVDeltaIdentity(t *testing.T) {
	// For matching inputs, delta_call - delta_put = Phi(d1) + Phi(-d1) = 1.
	call, err := CalculateEV(100, 105, 0.25, 0.05, 0.30, interfaces.KindCall, 8.0, nil)
	require.NoError(t, err)

	put, err := CalculateEV(100, 105, 0.25, 0.05, 0.30, interfaces.KindPut, 8.0, nil)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, call.Delta-put.Delta, 1e-9)
}

func TestCalculateEVCallProbabilityMonotoneInUnderlying(t *testing.T) {
	prev := -1.0
	for S := 80.0; S <= 130.0; S += 2.5 {
		result, err := CalculateEV(S, 100, 0.25, 0.05, 0.30, interfaces.KindCall, 5.0, nil)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, result.Probability, prev, "probability must not decrease as S rises (S=%v)", S)
		prev = result.Probability
	}
}

func TestCalculateEVITMEstimateOverride(t *testing.T) {
	estimate := 160.0
	result, err := CalculateEV(150, 145, 30.0/365.0, 0.05, 0.35, interfaces.KindCall, 7.50, &estimate)
	require.NoError(t, err)

	// max gain = estimate - K - premium.
	assert.InDelta(t, 7.50, result.MaxGain, 1e-9)
}

func TestCalculateEVDeepOTMGainFloorsAtZero(t *testing.T) {
	// Put with an ITM estimate above breakeven: gain clamps to zero and EV is
	// pure expected loss.
	estimate := 104.0
	result, err := CalculateEV(100, 105, 0.25, 0.05, 0.30, interfaces.KindPut, 8.0, &estimate)
	require.NoError(t, err)

	assert.Zero(t, result.MaxGain)
	assert.Negative(t, result.ExpectedValue)
}
