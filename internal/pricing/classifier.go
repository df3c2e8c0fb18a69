package pricing

// Complexity is the software tier derived from the feature count.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Qualification is the automation lead tier.
type Qualification string

const (
	QualificationHigh       Qualification = "high"
	QualificationMedium     Qualification = "medium"
	QualificationFoundation Qualification = "foundation"
)

// Tier boundaries are inclusive on the lower tier.
const (
	simpleMaxFeatures = 2
	mediumMaxFeatures = 5
)

// Classify maps the number of enabled software features to a tier.
func Classify(features SoftwareFeatures) Complexity {
	return classifyCount(features.Count())
}

func classifyCount(n int) Complexity {
	switch {
	case n <= simpleMaxFeatures:
		return ComplexitySimple
	case n <= mediumMaxFeatures:
		return ComplexityMedium
	default:
		return ComplexityComplex
	}
}

// Qualify ranks an automation lead. Anything that is not high or medium,
// including missing input, is foundation.
func Qualify(hours HoursBand, tools ToolCategory) Qualification {
	highTime := hours == Hours15To30 || hours == Hours30Plus
	goodTooling := tools == ToolsDigital || tools == ToolsAdvanced

	switch {
	case highTime && goodTooling:
		return QualificationHigh
	case hours == Hours5To15 && goodTooling:
		return QualificationMedium
	case highTime && tools == ToolsSpreadsheets:
		return QualificationMedium
	default:
		return QualificationFoundation
	}
}
