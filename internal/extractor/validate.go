package extractor

import (
	"fmt"

	"github.com/Veraticus/pouchspec/internal/heuristics"
	"github.com/Veraticus/pouchspec/internal/model"
)

// ValidateSpecifications checks specifications for missing or implausible
// values and for combinations that cannot be manufactured. It works on any
// specifications, including ones edited by a reviewer.
func (e *Extractor) ValidateSpecifications(specs model.ProductSpecifications) model.ValidationResult {
	v := &validation{}
	p := e.tables.Plausibility

	if isEmptySpecification(specs) {
		v.fail(model.IssueInsufficientData, "", "design file carries no usable specification data")
	}

	d := specs.Dimensions
	e.checkDimension(v, model.FieldWidth, d.Width)
	e.checkDimension(v, model.FieldHeight, d.Height)

	if d.Gusset > 0 && (d.Gusset < p.MinGussetMM || d.Gusset > p.MaxGussetMM) {
		v.warn(model.IssueGussetImplausible, model.FieldGusset,
			fmt.Sprintf("gusset %gmm outside plausible range %g-%gmm", d.Gusset, p.MinGussetMM, p.MaxGussetMM))
	}
	if d.Gusset > 0 && d.Width > 0 && d.Gusset > d.Width {
		v.warn(model.IssueGussetImplausible, model.FieldGusset,
			fmt.Sprintf("gusset %gmm is wider than the pouch (%gmm)", d.Gusset, d.Width))
	}

	switch {
	case specs.PouchType == model.PouchTypeUnknown || specs.PouchType == "":
		v.warn(model.IssuePouchTypeUnknown, model.FieldPouchType, "pouch type could not be determined")
	case specs.PouchType.RequiresGusset() && d.Gusset == 0:
		v.warn(model.IssueGussetMismatch, model.FieldGusset,
			fmt.Sprintf("%s pouch without a gusset dimension", specs.PouchType))
	case specs.PouchType == model.PouchFlat3Side && d.Gusset > 0:
		v.warn(model.IssueGussetMismatch, model.FieldGusset,
			fmt.Sprintf("flat three-side pouch with a %gmm gusset", d.Gusset))
	}

	e.checkMaterials(v, specs)

	var contradicted []model.Feature
	for _, c := range e.tables.ContradictionsFor(specs.PouchType) {
		if !specs.ProcessingFeatures.Has(c.Feature) {
			continue
		}
		contradicted = append(contradicted, c.Feature)
		msg := fmt.Sprintf("%s: %s", c.Feature, c.Message)
		if c.Severity == heuristics.SeverityError {
			v.fail(model.IssueFeatureContradiction, model.FieldFeatures, msg)
		} else {
			v.warn(model.IssueFeatureContradiction, model.FieldFeatures, msg)
		}
	}
	if len(contradicted) > 1 {
		v.warn(model.IssueFeatureContradiction, model.FieldFeatures,
			fmt.Sprintf("%s pouch conflicts with %s", specs.PouchType, featureNames(contradicted)))
	}

	return v.result()
}

func (e *Extractor) checkDimension(v *validation, field model.Field, value float64) {
	p := e.tables.Plausibility
	switch {
	case value <= 0:
		v.fail(model.IssueDimensionMissing, field, fmt.Sprintf("%s is missing", field))
	case value < p.MinMM || value > p.MaxMM:
		v.fail(model.IssueDimensionOutOfRange, field,
			fmt.Sprintf("%s %gmm outside plausible range %g-%gmm", field, value, p.MinMM, p.MaxMM))
	}
}

func (e *Extractor) checkMaterials(v *validation, specs model.ProductSpecifications) {
	if len(specs.MaterialLayers) == 0 {
		v.warn(model.IssueMaterialsMissing, model.FieldMaterials, "no material layers found")
		return
	}
	for _, l := range specs.MaterialLayers {
		spec, known := e.tables.LookupMaterial(l.Material)
		switch {
		case !known:
			v.warn(model.IssueMaterialUnknown, model.FieldMaterials, fmt.Sprintf("unknown material %s", l.Material))
		case l.ThicknessMicron <= 0:
			v.warn(model.IssueThicknessOutOfRange, model.FieldMaterials, fmt.Sprintf("%s has no thickness", l.Material))
		case l.ThicknessMicron < spec.MinThickness || l.ThicknessMicron > spec.MaxThickness:
			v.warn(model.IssueThicknessOutOfRange, model.FieldMaterials,
				fmt.Sprintf("%s %gμm outside usual %g-%gμm", l.Material, l.ThicknessMicron, spec.MinThickness, spec.MaxThickness))
		}
	}
	if total := specs.TotalThickness(); total > e.tables.Plausibility.MaxTotalThickness {
		v.warn(model.IssueTotalThicknessHigh, model.FieldMaterials,
			fmt.Sprintf("total thickness %gμm exceeds %gμm", total, e.tables.Plausibility.MaxTotalThickness))
	}
}

func isEmptySpecification(specs model.ProductSpecifications) bool {
	if specs.PouchType != model.PouchTypeUnknown && specs.PouchType != "" {
		return false
	}
	d := specs.Dimensions
	if d.Width > 0 || d.Height > 0 || d.Gusset > 0 || len(specs.MaterialLayers) > 0 {
		return false
	}
	for _, f := range model.AllFeatures {
		if specs.ProcessingFeatures.Has(f) {
			return false
		}
	}
	return true
}

type validation struct {
	errors   []model.Issue
	warnings []model.Issue
}

func (v *validation) fail(code string, field model.Field, msg string) {
	v.errors = append(v.errors, model.Issue{Code: code, Field: field, Message: msg})
}

func (v *validation) warn(code string, field model.Field, msg string) {
	v.warnings = append(v.warnings, model.Issue{Code: code, Field: field, Message: msg})
}

func (v *validation) result() model.ValidationResult {
	res := model.ValidationResult{
		Errors:   append([]model.Issue{}, v.errors...),
		Warnings: append([]model.Issue{}, v.warnings...),
	}
	res.IsValid = len(res.Errors) == 0
	return res
}
