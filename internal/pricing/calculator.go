package pricing

import (
	"errors"
	"fmt"
)

// Line is one priced row of an estimate breakdown.
type Line struct {
	Key        string     `json:"key"`
	Label      string     `json:"label"`
	Amount     KES        `json:"amount"`
	Recurrence Recurrence `json:"recurrence"`
}

// Estimate is the priced result of a selection. Software estimates carry a
// PriceRange; automation estimates carry ROI and Qualification and no money.
type Estimate struct {
	ServiceType    ServiceType   `json:"service_type"`
	CatalogVersion string        `json:"catalog_version"`
	OneTimeTotal   KES           `json:"one_time_total"`
	MonthlyTotal   KES           `json:"monthly_total"`
	YearlyTotal    KES           `json:"yearly_total"`
	Breakdown      []Line        `json:"breakdown"`
	PriceRange     *PriceRange   `json:"price_range,omitempty"`
	Complexity     Complexity    `json:"complexity,omitempty"`
	Qualification  Qualification `json:"qualification,omitempty"`
	ROI            *ROIEstimate  `json:"roi,omitempty"`
}

func (e *Estimate) add(l Line) {
	if l.Amount == 0 {
		return
	}
	e.addAlways(l)
}

func (e *Estimate) addAlways(l Line) {
	e.Breakdown = append(e.Breakdown, l)
	switch l.Recurrence {
	case Monthly:
		e.MonthlyTotal += l.Amount
		e.YearlyTotal += l.Amount * 12
	case Annual:
		e.YearlyTotal += l.Amount
	default:
		e.OneTimeTotal += l.Amount
	}
}

// Compute prices a selection against a catalog. The same inputs always give
// the same estimate.
func Compute(cat *Catalog, sel Selection) (Estimate, error) {
	if cat == nil {
		return Estimate{}, errors.New("pricing: catalog required")
	}
	if err := sel.Validate(); err != nil {
		return Estimate{}, err
	}

	est := Estimate{ServiceType: sel.ServiceType, CatalogVersion: cat.Version}
	var err error
	switch sel.ServiceType {
	case ServiceWebsite:
		err = computeWebsite(cat, sel.Website.normalized(), &est)
	case ServiceSoftware:
		err = computeSoftware(cat, *sel.Software, &est)
	case ServiceAutomation:
		computeAutomation(cat, *sel.Automation, &est)
	}
	if err != nil {
		return Estimate{}, err
	}
	if est.Breakdown == nil {
		est.Breakdown = []Line{}
	}
	return est, nil
}

func computeWebsite(cat *Catalog, w WebsiteSelection, est *Estimate) error {
	est.add(Line{Key: KeyBase, Label: "Base website", Amount: cat.Website.BaseCost, Recurrence: OneTime})

	features := []struct {
		on  bool
		key string
	}{
		{w.HasBlog, KeyBlog},
		{w.HasGallery, KeyGallery},
		{w.HasBooking, KeyBooking},
		{w.HasEcommerce, KeyEcommerce},
		{w.HasCustomAPI, KeyCustomAPI},
	}
	for _, f := range features {
		if !f.on {
			continue
		}
		if err := addEntry(cat, est, f.key); err != nil {
			return err
		}
	}

	hosting, err := tierKey(w.Hosting, KeyHostingBasic, KeyHostingPremium)
	if err != nil {
		return fmt.Errorf("%w: hosting: %v", ErrInvalidSelection, err)
	}
	if hosting != "" {
		if err := addEntry(cat, est, hosting); err != nil {
			return err
		}
	}

	care, err := tierKey(w.CarePlan, KeyCarePlanBasic, KeyCarePlanPremium)
	if err != nil {
		return fmt.Errorf("%w: care plan: %v", ErrInvalidSelection, err)
	}
	if care != "" {
		if err := addEntry(cat, est, care); err != nil {
			return err
		}
	}
	return nil
}

func addEntry(cat *Catalog, est *Estimate, key string) error {
	entry, err := cat.Entry(ServiceWebsite, key)
	if err != nil {
		return err
	}
	est.add(Line{Key: entry.FeatureKey, Label: entry.Label, Amount: entry.UnitPrice, Recurrence: entry.Recurrence})
	return nil
}

func tierKey(t Tier, basic, premium string) (string, error) {
	switch t {
	case TierNone, "":
		return "", nil
	case TierBasic:
		return basic, nil
	case TierPremium:
		return premium, nil
	}
	return "", fmt.Errorf("unknown tier %q", t)
}

func computeSoftware(cat *Catalog, s SoftwareSelection, est *Estimate) error {
	if s.ProjectType == ProjectAudit {
		est.addAlways(Line{Key: KeyAudit, Label: "Technical audit", Amount: cat.Software.AuditPrice, Recurrence: OneTime})
		return nil
	}

	tier := Classify(s.Features)
	band, ok := cat.Software.Tiers[tier]
	if !ok {
		return fmt.Errorf("%w: software/%s", ErrUnknownCatalogKey, tier)
	}
	est.Complexity = tier
	est.PriceRange = &PriceRange{Min: band.Min, Max: band.Max}
	est.add(Line{Key: "development_" + string(tier), Label: "Development (" + string(tier) + " tier, from)", Amount: band.Min, Recurrence: OneTime})
	est.addAlways(Line{Key: KeyDiscovery, Label: "Discovery phase", Amount: cat.Software.DiscoveryFee, Recurrence: OneTime})
	return nil
}

func computeAutomation(cat *Catalog, a AutomationSelection, est *Estimate) {
	roi := EstimateROI(a.HoursPerWeek, cat.Automation)
	est.ROI = &roi
	est.Qualification = Qualify(a.HoursPerWeek, a.ToolCategory)
}
