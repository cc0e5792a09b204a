// Package extraction turns scraped code text into structured records
// via a language-model backend. Every extracted item carries a
// self-reported confidence tier used downstream to compute job-level
// confidence and flag items for human review.
package extraction

// Confidence is the extractor's self-assessment for one item.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Weight maps a confidence tier onto the numeric scale used for
// aggregate scoring. Unknown or absent tiers score 0.5.
func (c Confidence) Weight() float64 {
	switch c {
	case ConfidenceHigh:
		return 1.0
	case ConfidenceMedium:
		return 0.7
	case ConfidenceLow:
		return 0.4
	default:
		return 0.5
	}
}

// NeedsReview reports whether the item should be queued for a human.
// Only low-confidence items are flagged.
func (c Confidence) NeedsReview() bool {
	return c == ConfidenceLow
}

// Zone is one zoning district extracted from code text.
type Zone struct {
	ZoneCode        string     `json:"zone_code"`
	ZoneName        string     `json:"zone_name"`
	Category        string     `json:"category"`
	Description     string     `json:"description"`
	MinLotSqft      *float64   `json:"min_lot_sqft"`
	MaxLotCoverage  *float64   `json:"max_lot_coverage"`
	MaxHeightFt     *float64   `json:"max_height_ft"`
	MaxStories      *float64   `json:"max_stories"`
	FrontSetbackFt  *float64   `json:"front_setback_ft"`
	SideSetbackFt   *float64   `json:"side_setback_ft"`
	RearSetbackFt   *float64   `json:"rear_setback_ft"`
	MaxFAR          *float64   `json:"max_far"`
	AllowedUses     []string   `json:"allowed_uses"`
	ConditionalUses []string   `json:"conditional_uses"`
	ProhibitedUses  []string   `json:"prohibited_uses"`
	ParkingRequired *string    `json:"parking_required"`
	Notes           *string    `json:"notes"`
	CodeSection     *string    `json:"code_section"`
	Confidence      Confidence `json:"confidence"`
}

// Permit is one permit requirement extracted from code text.
type Permit struct {
	PermitType         string     `json:"permit_type"`
	Category           string     `json:"category"`
	Description        string     `json:"description"`
	RequiredFor        string     `json:"required_for"`
	Exemptions         *string    `json:"exemptions"`
	FeeBase            *float64   `json:"fee_base"`
	FeeFormula         *string    `json:"fee_formula"`
	ReviewDays         *int       `json:"review_days"`
	RequiresPlans      bool       `json:"requires_plans"`
	RequiresInspection bool       `json:"requires_inspection"`
	InspectionTypes    []string   `json:"inspection_types"`
	CodeSection        *string    `json:"code_section"`
	Confidence         Confidence `json:"confidence"`
}

// Fee is one fee schedule entry.
type Fee struct {
	PermitType  string     `json:"permit_type"`
	Description string     `json:"description"`
	FeeType     string     `json:"fee_type"`
	BaseFee     *float64   `json:"base_fee"`
	PerSqftFee  *float64   `json:"per_sqft_fee"`
	MinimumFee  *float64   `json:"minimum_fee"`
	MaximumFee  *float64   `json:"maximum_fee"`
	Notes       *string    `json:"notes"`
	Confidence  Confidence `json:"confidence"`
}

// BuildingCode is one practical code requirement chunk.
type BuildingCode struct {
	CodeType   string     `json:"code_type"`
	Section    string     `json:"section"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Keywords   []string   `json:"keywords"`
	AppliesTo  []string   `json:"applies_to"`
	Confidence Confidence `json:"confidence"`
}

// Question is one generated Q&A pair. Questions carry no confidence
// tier; they are synthesized from already-scored zones and permits.
type Question struct {
	Question       string   `json:"question"`
	Category       string   `json:"category"`
	Answer         string   `json:"answer"`
	RelatedPermits []string `json:"related_permits"`
	CodeReference  *string  `json:"code_reference"`
}

// IndustryPermit is one industry-specific permit requirement.
type IndustryPermit struct {
	PermitType      string     `json:"permit_type"`
	Category        string     `json:"category"`
	Description     string     `json:"description"`
	ZonesAllowed    []string   `json:"zones_allowed"`
	ZonesProhibited []string   `json:"zones_prohibited"`
	Requirements    []string   `json:"requirements"`
	FeeBase         *float64   `json:"fee_base"`
	ReviewDays      *int       `json:"review_days"`
	CodeSection     *string    `json:"code_section"`
	Confidence      Confidence `json:"confidence"`
}

// Unparseable captures a model response that was not valid JSON. The
// raw text is preserved so a human can salvage it; a parse failure is
// data, not a pipeline error.
type Unparseable struct {
	Reason string `json:"error"`
	Raw    string `json:"raw"`
}
