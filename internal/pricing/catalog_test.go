package pricing

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalCatalog = `
version: "%s"
website:
  base_cost: %d
  entries:
    - key: blog
      label: Blog
      unit_price: 8000
      recurrence: one_time
software:
  audit_price: 10
  discovery_fee: 5
  tiers:
    simple: {min: 1, max: 2}
    medium: {min: 2, max: 3}
    complex: {min: 3, max: 4}
`

func sprintfCatalog(version string, baseCost int) string {
	return fmt.Sprintf(minimalCatalog, version, baseCost)
}

func TestDefaultCatalogLoads(t *testing.T) {
	cat, err := DefaultCatalog()
	require.NoError(t, err)

	assert.Equal(t, "2025.1", cat.Version)
	assert.Equal(t, KES(35000), cat.Website.BaseCost)

	entry, err := cat.Entry(ServiceWebsite, KeyCarePlanPremium)
	require.NoError(t, err)
	assert.Equal(t, Monthly, entry.Recurrence)
	assert.Equal(t, ServiceWebsite, entry.ServiceType)

	assert.Equal(t, DefaultSavingsPercentage, cat.Automation.SavingsPercentage)
	assert.Len(t, cat.Software.Tiers, 3)
}

func TestParseCatalogAutomationOverrides(t *testing.T) {
	doc := sprintfCatalog("zero-roi", 1000) + `
automation:
  hourly_value: 0
  savings_percentage: 0
`
	cat, err := ParseCatalog([]byte(doc))
	require.NoError(t, err)
	assert.Zero(t, cat.Automation.HourlyValue)
	assert.Zero(t, cat.Automation.SavingsPercentage)
	assert.Equal(t, DefaultWeeksPerMonth, cat.Automation.WeeksPerMonth)
	assert.Equal(t, DefaultBandHours, cat.Automation.BandHours)

	roi := EstimateROI(Hours15To30, cat.Automation)
	assert.Equal(t, int64(88), roi.HoursPerMonth)
	assert.Zero(t, roi.MonetaryValuePerMonth)
	assert.True(t, roi.PotentialMonthlySavings.IsZero())

	cat, err = ParseCatalog([]byte(sprintfCatalog("no-roi", 1000)))
	require.NoError(t, err)
	assert.Equal(t, DefaultROIAssumptions(), cat.Automation)

	cat, err = ParseCatalog([]byte(sprintfCatalog("half-roi", 1000) + "automation:\n  savings_percentage: 40\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(40), cat.Automation.SavingsPercentage)
	assert.Equal(t, DefaultHourlyValue, cat.Automation.HourlyValue)
}

func TestParseCatalogRejectsBadDocuments(t *testing.T) {
	tests := map[string]string{
		"negative price": `
version: "x"
website:
  base_cost: 1
  entries:
    - {key: blog, label: Blog, unit_price: -5, recurrence: one_time}
software:
  tiers: {simple: {min: 1, max: 2}, medium: {min: 2, max: 3}, complex: {min: 3, max: 4}}
`,
		"missing tier": `
version: "x"
website: {base_cost: 1}
software:
  tiers: {simple: {min: 1, max: 2}}
`,
		"inverted band": `
version: "x"
website: {base_cost: 1}
software:
  tiers: {simple: {min: 5, max: 2}, medium: {min: 2, max: 3}, complex: {min: 3, max: 4}}
`,
		"duplicate key": `
version: "x"
website:
  base_cost: 1
  entries:
    - {key: blog, label: Blog, unit_price: 5, recurrence: one_time}
    - {key: blog, label: Blog, unit_price: 6, recurrence: one_time}
software:
  tiers: {simple: {min: 1, max: 2}, medium: {min: 2, max: 3}, complex: {min: 3, max: 4}}
`,
		"bad recurrence": `
version: "x"
website:
  base_cost: 1
  entries:
    - {key: blog, label: Blog, unit_price: 5, recurrence: weekly}
software:
  tiers: {simple: {min: 1, max: 2}, medium: {min: 2, max: 3}, complex: {min: 3, max: 4}}
`,
		"no version": `
website: {base_cost: 1}
`,
		"not yaml": `{{{`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(doc))
			require.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sprintfCatalog("file", 1234)), 0o600))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, "file", cat.Version)
	assert.Equal(t, KES(1234), cat.Website.BaseCost)

	def, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, "2025.1", def.Version)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestCatalogStoreReplace(t *testing.T) {
	first, err := ParseCatalog([]byte(sprintfCatalog("v1", 100)))
	require.NoError(t, err)
	second, err := ParseCatalog([]byte(sprintfCatalog("v2", 200)))
	require.NoError(t, err)

	store := NewCatalogStore(first)
	assert.Equal(t, "v1", store.Current().Version)

	store.Replace(second)
	assert.Equal(t, "v2", store.Current().Version)

	store.Replace(nil)
	assert.Equal(t, "v2", store.Current().Version)
}

func TestCatalogEntryUnknownKey(t *testing.T) {
	cat := mustDefaultCatalog(t)

	_, err := cat.Entry(ServiceWebsite, "chatbot")
	require.ErrorIs(t, err, ErrUnknownCatalogKey)

	var nilCatalog *Catalog
	_, err = nilCatalog.Entry(ServiceWebsite, KeyBlog)
	require.ErrorIs(t, err, ErrUnknownCatalogKey)
}
