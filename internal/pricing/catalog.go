package pricing

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/quoteflow/quoteflow/internal/shared"
)

var (
	// ErrInvalidCatalog is a configuration error raised while loading prices.
	ErrInvalidCatalog = errors.New("pricing: invalid catalog")
	// ErrUnknownCatalogKey is returned when a selected feature has no price.
	ErrUnknownCatalogKey = fmt.Errorf("pricing: unknown catalog key: %w", shared.ErrInvalidState)
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// KES is an amount in whole Kenyan shillings.
type KES int64

// Recurrence is how often a catalog line is billed.
type Recurrence string

const (
	OneTime Recurrence = "one_time"
	Monthly Recurrence = "monthly"
	Annual  Recurrence = "annual"
)

func (r Recurrence) valid() bool {
	return r == OneTime || r == Monthly || r == Annual
}

// Catalog keys for website lines.
const (
	KeyBase            = "base"
	KeyBlog            = "blog"
	KeyGallery         = "gallery"
	KeyBooking         = "booking"
	KeyEcommerce       = "ecommerce"
	KeyCustomAPI       = "custom_api"
	KeyHostingBasic    = "hosting_basic"
	KeyHostingPremium  = "hosting_premium"
	KeyCarePlanBasic   = "care_basic"
	KeyCarePlanPremium = "care_premium"
	KeyDiscovery       = "discovery"
	KeyAudit           = "audit"
)

// PriceCatalogEntry is one priced feature of a service type.
type PriceCatalogEntry struct {
	ServiceType ServiceType `json:"service_type" yaml:"-"`
	FeatureKey  string      `json:"feature_key" yaml:"key"`
	Label       string      `json:"label" yaml:"label"`
	UnitPrice   KES         `json:"unit_price" yaml:"unit_price"`
	Recurrence  Recurrence  `json:"recurrence" yaml:"recurrence"`
}

// PriceRange is an inclusive min/max band.
type PriceRange struct {
	Min KES `json:"min" yaml:"min"`
	Max KES `json:"max" yaml:"max"`
}

// WebsitePrices holds the website price list.
type WebsitePrices struct {
	BaseCost KES                 `json:"base_cost" yaml:"base_cost"`
	Entries  []PriceCatalogEntry `json:"entries" yaml:"entries"`
}

// SoftwarePrices holds the software bands and fixed fees.
type SoftwarePrices struct {
	AuditPrice   KES                       `json:"audit_price" yaml:"audit_price"`
	DiscoveryFee KES                       `json:"discovery_fee" yaml:"discovery_fee"`
	Tiers        map[Complexity]PriceRange `json:"tiers" yaml:"tiers"`
}

// Catalog is an immutable, versioned price list. Build it with ParseCatalog
// or LoadCatalog and never mutate it afterwards.
type Catalog struct {
	Version    string         `json:"version" yaml:"version"`
	Website    WebsitePrices  `json:"website" yaml:"website"`
	Software   SoftwarePrices `json:"software" yaml:"software"`
	Automation ROIAssumptions `json:"automation" yaml:"automation"`

	index map[ServiceType]map[string]PriceCatalogEntry
}

// DefaultCatalog parses the embedded price list.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// LoadCatalog reads a catalog from path, falling back to the embedded default
// when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pricing: read catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes and validates a YAML catalog document.
func ParseCatalog(raw []byte) (*Catalog, error) {
	c := Catalog{Automation: DefaultROIAssumptions()}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidCatalog, err)
	}
	if c.Automation.isZero() {
		// "automation:" with a null value
		c.Automation = DefaultROIAssumptions()
	}
	if err := c.build(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) build() error {
	if c.Version == "" {
		return fmt.Errorf("%w: version required", ErrInvalidCatalog)
	}
	if c.Website.BaseCost < 0 {
		return fmt.Errorf("%w: negative website base cost", ErrInvalidCatalog)
	}
	c.index = map[ServiceType]map[string]PriceCatalogEntry{ServiceWebsite: {}}
	for i := range c.Website.Entries {
		e := &c.Website.Entries[i]
		e.ServiceType = ServiceWebsite
		if e.FeatureKey == "" {
			return fmt.Errorf("%w: website entry %d has no key", ErrInvalidCatalog, i)
		}
		if e.UnitPrice < 0 {
			return fmt.Errorf("%w: negative price for %s", ErrInvalidCatalog, e.FeatureKey)
		}
		if !e.Recurrence.valid() {
			return fmt.Errorf("%w: recurrence %q for %s", ErrInvalidCatalog, e.Recurrence, e.FeatureKey)
		}
		if _, dup := c.index[ServiceWebsite][e.FeatureKey]; dup {
			return fmt.Errorf("%w: duplicate key %s", ErrInvalidCatalog, e.FeatureKey)
		}
		c.index[ServiceWebsite][e.FeatureKey] = *e
	}

	if c.Software.AuditPrice < 0 || c.Software.DiscoveryFee < 0 {
		return fmt.Errorf("%w: negative software fee", ErrInvalidCatalog)
	}
	for _, tier := range []Complexity{ComplexitySimple, ComplexityMedium, ComplexityComplex} {
		band, ok := c.Software.Tiers[tier]
		if !ok {
			return fmt.Errorf("%w: missing software tier %s", ErrInvalidCatalog, tier)
		}
		if band.Min < 0 || band.Max < band.Min {
			return fmt.Errorf("%w: bad band for tier %s", ErrInvalidCatalog, tier)
		}
	}

	return c.Automation.validate()
}

// Entry looks up a priced feature. Unknown keys are an error so a feature is
// never silently priced at zero.
func (c *Catalog) Entry(service ServiceType, key string) (PriceCatalogEntry, error) {
	if c != nil {
		if e, ok := c.index[service][key]; ok {
			return e, nil
		}
	}
	return PriceCatalogEntry{}, fmt.Errorf("%w: %s/%s", ErrUnknownCatalogKey, service, key)
}

// CatalogStore holds the active catalog and swaps it atomically.
type CatalogStore struct {
	current atomic.Pointer[Catalog]
}

// NewCatalogStore seeds the store with an initial catalog.
func NewCatalogStore(c *Catalog) *CatalogStore {
	s := &CatalogStore{}
	s.current.Store(c)
	return s
}

// Current returns the active catalog.
func (s *CatalogStore) Current() *Catalog {
	return s.current.Load()
}

// Replace installs a new catalog. Quotes already frozen keep their snapshot.
func (s *CatalogStore) Replace(c *Catalog) {
	if c != nil {
		s.current.Store(c)
	}
}
