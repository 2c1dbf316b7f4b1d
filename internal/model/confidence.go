package model

import "slices"

// ConfidenceLevel buckets a confidence value.
type ConfidenceLevel string

// Confidence levels.
const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Default thresholds. Both the level boundaries and the review threshold can
// be overridden through the heuristic tables and the workflow options.
const (
	DefaultHighConfidence   = 0.8
	DefaultMediumConfidence = 0.5
	DefaultReviewThreshold  = 0.8
)

// Levels holds the lower bounds of the high and medium buckets.
type Levels struct {
	High   float64 `yaml:"high" json:"high"`
	Medium float64 `yaml:"medium" json:"medium"`
}

// DefaultLevels returns the stock level boundaries.
func DefaultLevels() Levels {
	return Levels{High: DefaultHighConfidence, Medium: DefaultMediumConfidence}
}

// Classify returns the level for v.
func (l Levels) Classify(v float64) ConfidenceLevel {
	switch {
	case v >= l.High:
		return ConfidenceHigh
	case v >= l.Medium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ConfidenceScore is a value in [0,1] with its bucket and the reasons behind it.
type ConfidenceScore struct {
	Level     ConfidenceLevel `json:"level"`
	Rationale []string        `json:"rationale,omitempty"`
	Value     float64         `json:"value"`
}

// Clone returns a deep copy.
func (c ConfidenceScore) Clone() ConfidenceScore {
	c.Rationale = slices.Clone(c.Rationale)
	return c
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Field names an inferred specification field.
type Field string

// Field constants.
const (
	FieldPouchType Field = "pouch_type"
	FieldWidth     Field = "width"
	FieldHeight    Field = "height"
	FieldGusset    Field = "gusset"
	FieldMaterials Field = "materials"
	FieldFeatures  Field = "features"
)

// IsCritical reports whether the overall confidence is capped by this field.
func (f Field) IsCritical() bool {
	return f == FieldPouchType || f == FieldWidth || f == FieldHeight
}

// CriticalFields are the fields the overall score can never exceed.
var CriticalFields = []Field{FieldPouchType, FieldWidth, FieldHeight}

// ConfidenceReport is the overall score plus a score per field that had evidence.
type ConfidenceReport struct {
	Fields  map[Field]ConfidenceScore `json:"fields"`
	Overall ConfidenceScore           `json:"overall"`
}

// Clone returns a deep copy.
func (r ConfidenceReport) Clone() ConfidenceReport {
	out := ConfidenceReport{Overall: r.Overall.Clone()}
	if r.Fields != nil {
		out.Fields = make(map[Field]ConfidenceScore, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v.Clone()
		}
	}
	return out
}

// Issue codes produced by validation and cross-checking.
const (
	IssueInsufficientData     = "insufficient_data"
	IssueDimensionMissing     = "dimension_missing"
	IssueDimensionOutOfRange  = "dimension_out_of_range"
	IssueGussetImplausible    = "gusset_implausible"
	IssueGussetMismatch       = "gusset_mismatch"
	IssuePouchTypeUnknown     = "pouch_type_unknown"
	IssueMaterialsMissing     = "materials_missing"
	IssueMaterialUnknown      = "material_unknown"
	IssueThicknessOutOfRange  = "thickness_out_of_range"
	IssueTotalThicknessHigh   = "total_thickness_high"
	IssueFeatureContradiction = "feature_contradiction"
	IssueQuotationMismatch    = "quotation_mismatch"
)

// Issue is one validation finding.
type Issue struct {
	Code    string `json:"code"`
	Field   Field  `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationResult separates blocking errors from advisory warnings.
type ValidationResult struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	IsValid  bool    `json:"isValid"`
}

// HasCode reports whether any error carries code.
func (v ValidationResult) HasCode(code string) bool {
	return slices.ContainsFunc(v.Errors, func(i Issue) bool { return i.Code == code })
}

// CrossCheckResult compares extracted specifications with a quotation.
// It never makes an extraction invalid.
type CrossCheckResult struct {
	QuotationID    string  `json:"quotationId"`
	Warnings       []Issue `json:"warnings"`
	AgreementScore float64 `json:"agreementScore"`
}

// ExtractionResult is everything one extraction produced.
type ExtractionResult struct {
	CrossCheck     *CrossCheckResult     `json:"crossCheck,omitempty"`
	Confidence     ConfidenceReport      `json:"confidence"`
	Validation     ValidationResult      `json:"validation"`
	Specifications ProductSpecifications `json:"specifications"`
}
