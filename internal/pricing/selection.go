package pricing

import (
	"fmt"

	"github.com/quoteflow/quoteflow/internal/shared"
)

// ErrInvalidSelection reports a selection whose populated variant does not
// match its service type.
var ErrInvalidSelection = fmt.Errorf("pricing: invalid selection: %w", shared.ErrInvalidInput)

// ServiceType discriminates the selection variants.
type ServiceType string

const (
	ServiceWebsite    ServiceType = "website"
	ServiceSoftware   ServiceType = "software"
	ServiceAutomation ServiceType = "automation"
)

// Valid reports whether the service type is known.
func (s ServiceType) Valid() bool {
	switch s {
	case ServiceWebsite, ServiceSoftware, ServiceAutomation:
		return true
	}
	return false
}

// Tier is the hosting or care plan level of a website.
type Tier string

const (
	TierNone    Tier = "none"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// WebsiteSelection lists the website options. The base site is always included.
type WebsiteSelection struct {
	HasBlog      bool `json:"has_blog"`
	HasGallery   bool `json:"has_gallery"`
	HasBooking   bool `json:"has_booking"`
	HasEcommerce bool `json:"has_ecommerce"`
	HasCustomAPI bool `json:"has_custom_api"`
	Hosting      Tier `json:"hosting,omitempty" validate:"omitempty,oneof=none basic premium"`
	CarePlan     Tier `json:"care_plan,omitempty" validate:"omitempty,oneof=none basic premium"`
}

// HasCarePlan reports whether a paid care plan was selected.
func (w WebsiteSelection) HasCarePlan() bool {
	return w.CarePlan != "" && w.CarePlan != TierNone
}

// ProjectType classifies software engagements.
type ProjectType string

const (
	ProjectBusinessSoftware ProjectType = "business_software"
	ProjectSaaS             ProjectType = "saas"
	ProjectMobileApp        ProjectType = "mobile_app"
	ProjectAudit            ProjectType = "audit"
)

// ProjectStage is how far the client has taken the idea.
type ProjectStage string

const (
	StageIdea    ProjectStage = "idea"
	StageDesigns ProjectStage = "designs"
	StageSpecs   ProjectStage = "specs"
)

// SoftwareFeatures is the fixed set of eight software feature flags.
type SoftwareFeatures struct {
	UserAuth               bool `json:"user_auth"`
	Payments               bool `json:"payments"`
	AdminDashboard         bool `json:"admin_dashboard"`
	Reporting              bool `json:"reporting"`
	ThirdPartyIntegrations bool `json:"third_party_integrations"`
	Notifications          bool `json:"notifications"`
	FileUploads            bool `json:"file_uploads"`
	MultiLanguage          bool `json:"multi_language"`
}

// Count returns the number of enabled flags.
func (f SoftwareFeatures) Count() int {
	n := 0
	for _, on := range []bool{
		f.UserAuth, f.Payments, f.AdminDashboard, f.Reporting,
		f.ThirdPartyIntegrations, f.Notifications, f.FileUploads, f.MultiLanguage,
	} {
		if on {
			n++
		}
	}
	return n
}

// SoftwareSelection describes a custom software request.
type SoftwareSelection struct {
	ProjectType  ProjectType      `json:"project_type" validate:"required,oneof=business_software saas mobile_app audit"`
	ProjectStage ProjectStage     `json:"project_stage,omitempty" validate:"omitempty,oneof=idea designs specs"`
	Features     SoftwareFeatures `json:"features"`
}

// BusinessArea is the department an automation targets.
type BusinessArea string

const (
	AreaSalesMarketing     BusinessArea = "sales_marketing"
	AreaFinanceAccounting  BusinessArea = "finance_accounting"
	AreaOperations         BusinessArea = "operations"
	AreaCustomerService    BusinessArea = "customer_service"
	AreaHRAdmin            BusinessArea = "hr_admin"
	AreaInventoryLogistics BusinessArea = "inventory_logistics"
)

// ToolCategory is the client's current tooling maturity.
type ToolCategory string

const (
	ToolsPaper        ToolCategory = "paper"
	ToolsSpreadsheets ToolCategory = "spreadsheets"
	ToolsDigital      ToolCategory = "digital_tools"
	ToolsAdvanced     ToolCategory = "advanced"
)

// HoursBand is the self-reported weekly time spent on the manual process.
type HoursBand string

const (
	Hours1To5   HoursBand = "1-5"
	Hours5To15  HoursBand = "5-15"
	Hours15To30 HoursBand = "15-30"
	Hours30Plus HoursBand = "30+"
)

// AutomationSelection describes an automation lead.
type AutomationSelection struct {
	BusinessArea BusinessArea `json:"business_area,omitempty" validate:"omitempty,oneof=sales_marketing finance_accounting operations customer_service hr_admin inventory_logistics"`
	ToolCategory ToolCategory `json:"tool_category,omitempty" validate:"omitempty,oneof=paper spreadsheets digital_tools advanced"`
	HoursPerWeek HoursBand    `json:"hours_per_week,omitempty" validate:"omitempty,oneof=1-5 5-15 15-30 30+"`
}

// Selection is a tagged union keyed by ServiceType. Exactly one variant is set.
type Selection struct {
	ServiceType ServiceType          `json:"service_type" validate:"required,oneof=website software automation"`
	Website     *WebsiteSelection    `json:"website,omitempty"`
	Software    *SoftwareSelection   `json:"software,omitempty"`
	Automation  *AutomationSelection `json:"automation,omitempty"`
}

// NewWebsiteSelection wraps a website variant.
func NewWebsiteSelection(w WebsiteSelection) Selection {
	return Selection{ServiceType: ServiceWebsite, Website: &w}
}

// NewSoftwareSelection wraps a software variant.
func NewSoftwareSelection(s SoftwareSelection) Selection {
	return Selection{ServiceType: ServiceSoftware, Software: &s}
}

// NewAutomationSelection wraps an automation variant.
func NewAutomationSelection(a AutomationSelection) Selection {
	return Selection{ServiceType: ServiceAutomation, Automation: &a}
}

// Validate checks the union shape. It never guesses a service type.
func (s Selection) Validate() error {
	populated := 0
	for _, set := range []bool{s.Website != nil, s.Software != nil, s.Automation != nil} {
		if set {
			populated++
		}
	}
	if populated != 1 {
		return fmt.Errorf("%w: %d variants populated for %q", ErrInvalidSelection, populated, s.ServiceType)
	}
	switch s.ServiceType {
	case ServiceWebsite:
		if s.Website == nil {
			return fmt.Errorf("%w: website selection missing", ErrInvalidSelection)
		}
	case ServiceSoftware:
		if s.Software == nil {
			return fmt.Errorf("%w: software selection missing", ErrInvalidSelection)
		}
	case ServiceAutomation:
		if s.Automation == nil {
			return fmt.Errorf("%w: automation selection missing", ErrInvalidSelection)
		}
	default:
		return fmt.Errorf("%w: unknown service type %q", ErrInvalidSelection, s.ServiceType)
	}
	return nil
}

// normalized returns a copy with absent optional tiers defaulted to none.
func (w WebsiteSelection) normalized() WebsiteSelection {
	if w.Hosting == "" {
		w.Hosting = TierNone
	}
	if w.CarePlan == "" {
		w.CarePlan = TierNone
	}
	return w
}
