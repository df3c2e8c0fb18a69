package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateROIFifteenToThirty(t *testing.T) {
	got := EstimateROI(Hours15To30, DefaultROIAssumptions())

	assert.Equal(t, int64(22), got.HoursPerWeek)
	assert.Equal(t, int64(88), got.HoursPerMonth)
	assert.Equal(t, int64(70), got.SavingsPercentage)
	assert.Equal(t, KES(88*500), got.MonetaryValuePerMonth)

	want := decimal.NewFromInt(88 * 500).Mul(decimal.RequireFromString("0.7"))
	assert.True(t, want.Equal(got.PotentialMonthlySavings), "got %s", got.PotentialMonthlySavings)
}

func TestEstimateROIBands(t *testing.T) {
	tests := map[HoursBand]int64{
		Hours1To5:   12,
		Hours5To15:  40,
		Hours15To30: 88,
		Hours30Plus: 160,
	}
	for band, perMonth := range tests {
		got := EstimateROI(band, ROIAssumptions{})
		assert.Equal(t, perMonth, got.HoursPerMonth, "band %s", band)
	}
}

func TestEstimateROIMissingBandIsZero(t *testing.T) {
	for _, band := range []HoursBand{"", "100+"} {
		got := EstimateROI(band, DefaultROIAssumptions())
		assert.Zero(t, got.HoursPerMonth)
		assert.Zero(t, got.MonetaryValuePerMonth)
		assert.True(t, got.PotentialMonthlySavings.IsZero())
	}
}

func TestEstimateROIOverrides(t *testing.T) {
	a := DefaultROIAssumptions()
	a.HourlyValue = 1000
	a.SavingsPercentage = 50
	got := EstimateROI(Hours5To15, a)

	assert.Equal(t, int64(40), got.HoursPerMonth)
	assert.Equal(t, KES(40000), got.MonetaryValuePerMonth)
	assert.True(t, decimal.NewFromInt(20000).Equal(got.PotentialMonthlySavings))
}

func TestEstimateROIExplicitZeroSavings(t *testing.T) {
	a := DefaultROIAssumptions()
	a.SavingsPercentage = 0
	got := EstimateROI(Hours15To30, a)

	assert.Equal(t, int64(88), got.HoursPerMonth)
	assert.Equal(t, KES(88*500), got.MonetaryValuePerMonth)
	assert.Zero(t, got.SavingsPercentage)
	assert.True(t, got.PotentialMonthlySavings.IsZero())
}

func TestROIAssumptionsValidate(t *testing.T) {
	require.NoError(t, DefaultROIAssumptions().validate())

	bad := DefaultROIAssumptions()
	bad.SavingsPercentage = 120
	require.ErrorIs(t, bad.validate(), ErrInvalidCatalog)

	bad = DefaultROIAssumptions()
	bad.BandHours = map[HoursBand]int64{Hours1To5: -1}
	require.ErrorIs(t, bad.validate(), ErrInvalidCatalog)
}
