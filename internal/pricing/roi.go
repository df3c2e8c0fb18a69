package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ROI defaults. These are business assumptions, not derived figures.
const (
	DefaultHourlyValue KES = 500
	// DefaultSavingsPercentage is applied uniformly to every estimate.
	DefaultSavingsPercentage int64 = 70
	// DefaultWeeksPerMonth approximates a month as four weeks.
	DefaultWeeksPerMonth int64 = 4
)

// DefaultBandHours maps each band to representative hours per week.
var DefaultBandHours = map[HoursBand]int64{
	Hours1To5:   3,
	Hours5To15:  10,
	Hours15To30: 22,
	Hours30Plus: 40,
}

// ROIAssumptions are the overridable constants behind EstimateROI.
type ROIAssumptions struct {
	HourlyValue       KES                 `json:"hourly_value" yaml:"hourly_value"`
	SavingsPercentage int64               `json:"savings_percentage" yaml:"savings_percentage"`
	WeeksPerMonth     int64               `json:"weeks_per_month" yaml:"weeks_per_month"`
	BandHours         map[HoursBand]int64 `json:"band_hours" yaml:"band_hours"`
}

// DefaultROIAssumptions returns the stock assumptions.
func DefaultROIAssumptions() ROIAssumptions {
	hours := make(map[HoursBand]int64, len(DefaultBandHours))
	for k, v := range DefaultBandHours {
		hours[k] = v
	}
	return ROIAssumptions{
		HourlyValue:       DefaultHourlyValue,
		SavingsPercentage: DefaultSavingsPercentage,
		WeeksPerMonth:     DefaultWeeksPerMonth,
		BandHours:         hours,
	}
}

// UnmarshalYAML decodes over the defaults, so omitted keys keep their stock
// value while explicit zeros are honoured.
func (a *ROIAssumptions) UnmarshalYAML(node *yaml.Node) error {
	type plain ROIAssumptions
	out := plain(DefaultROIAssumptions())
	if err := node.Decode(&out); err != nil {
		return err
	}
	*a = ROIAssumptions(out)
	return nil
}

func (a ROIAssumptions) isZero() bool {
	return a.HourlyValue == 0 && a.SavingsPercentage == 0 && a.WeeksPerMonth == 0 && len(a.BandHours) == 0
}

func (a ROIAssumptions) validate() error {
	if a.HourlyValue < 0 {
		return fmt.Errorf("%w: negative hourly value", ErrInvalidCatalog)
	}
	if a.SavingsPercentage < 0 || a.SavingsPercentage > 100 {
		return fmt.Errorf("%w: savings percentage out of range", ErrInvalidCatalog)
	}
	if a.WeeksPerMonth <= 0 {
		return fmt.Errorf("%w: weeks per month must be positive", ErrInvalidCatalog)
	}
	for band, h := range a.BandHours {
		if h < 0 {
			return fmt.Errorf("%w: negative hours for band %s", ErrInvalidCatalog, band)
		}
	}
	return nil
}

// ROIEstimate projects the monthly value of automating a manual process.
type ROIEstimate struct {
	HoursPerWeek            int64           `json:"hours_per_week"`
	HoursPerMonth           int64           `json:"hours_per_month"`
	MonetaryValuePerMonth   KES             `json:"monetary_value_per_month"`
	SavingsPercentage       int64           `json:"savings_percentage"`
	PotentialMonthlySavings decimal.Decimal `json:"potential_monthly_savings"`
}

// EstimateROI converts an hours band into a monthly projection. An empty or
// unknown band yields a zero estimate so callers can render partial forms.
// A zero ROIAssumptions stands for DefaultROIAssumptions; any other value is
// used as given.
func EstimateROI(band HoursBand, a ROIAssumptions) ROIEstimate {
	if a.isZero() {
		a = DefaultROIAssumptions()
	}
	perWeek, ok := a.BandHours[band]
	if !ok {
		return ROIEstimate{PotentialMonthlySavings: decimal.Zero}
	}
	perMonth := perWeek * a.WeeksPerMonth
	value := KES(perMonth) * a.HourlyValue
	savings := decimal.NewFromInt(int64(value)).
		Mul(decimal.NewFromInt(a.SavingsPercentage)).
		Div(decimal.NewFromInt(100))
	return ROIEstimate{
		HoursPerWeek:            perWeek,
		HoursPerMonth:           perMonth,
		MonetaryValuePerMonth:   value,
		SavingsPercentage:       a.SavingsPercentage,
		PotentialMonthlySavings: savings,
	}
}
