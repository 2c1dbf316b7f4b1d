package extractor

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Veraticus/pouchspec/internal/model"
)

// Agreement deductions per mismatch category.
const (
	pouchMismatchPenalty     = 0.2
	dimensionMismatchPenalty = 0.1
	materialMismatchPenalty  = 0.3
	featureMismatchPenalty   = 0.1
)

var optionDiameterRe = regexp.MustCompile(`(\d+(?:\.\d+)?)mm`)

// CrossCheckWithQuotation compares specifications with a prior quotation.
// Mismatches lower the agreement score and produce warnings; they never
// invalidate the extraction.
func (e *Extractor) CrossCheckWithQuotation(specs model.ProductSpecifications, q model.Quotation) model.CrossCheckResult {
	res := model.CrossCheckResult{QuotationID: q.ID, Warnings: []model.Issue{}, AgreementScore: 1}
	deduct := func(penalty float64, field model.Field, format string, args ...any) {
		res.AgreementScore -= penalty
		res.Warnings = append(res.Warnings, model.Issue{
			Code:    model.IssueQuotationMismatch,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
		})
	}

	e.crossCheckPouch(specs, q, deduct)
	e.crossCheckDimensions(specs, q, deduct)
	e.crossCheckMaterials(specs, q, deduct)
	e.crossCheckFeatures(specs, q, deduct)

	res.AgreementScore = round3(math.Max(res.AgreementScore, 0))
	return res
}

type deductFunc func(penalty float64, field model.Field, format string, args ...any)

func (e *Extractor) crossCheckPouch(specs model.ProductSpecifications, q model.Quotation, deduct deductFunc) {
	id := strings.ToLower(strings.TrimSpace(q.BagTypeID))
	if id == "" {
		return
	}
	quoted, ok := e.tables.BagTypeAliases[id]
	if !ok {
		deduct(0, model.FieldPouchType, "quotation bag type %q has no pouch type mapping", q.BagTypeID)
		return
	}
	if specs.PouchType == model.PouchTypeUnknown {
		return
	}
	if quoted != specs.PouchType {
		deduct(pouchMismatchPenalty, model.FieldPouchType,
			"pouch type %s differs from quotation %s", specs.PouchType, quoted)
	}
}

func (e *Extractor) crossCheckDimensions(specs model.ProductSpecifications, q model.Quotation, deduct deductFunc) {
	tol := e.tables.Tolerance(specs.PouchType)
	check := func(field model.Field, extracted, quoted float64) {
		if quoted <= 0 || extracted <= 0 {
			return
		}
		if diff := math.Abs(extracted - quoted); diff > tol {
			deduct(dimensionMismatchPenalty, field,
				"%s %gmm differs from quotation %gmm by more than %gmm", field, extracted, quoted, tol)
		}
	}
	d := specs.Dimensions
	check(model.FieldWidth, d.Width, q.Width)
	check(model.FieldHeight, d.Height, q.Height)
	check(model.FieldGusset, d.Gusset, q.Gusset)
}

// crossCheckMaterials checks that each material named by the quotation id
// (e.g. "pet_ny_al") appears in the extracted stack. Quotation ids often
// omit the sealant, so extra extracted films are not a mismatch.
func (e *Extractor) crossCheckMaterials(specs model.ProductSpecifications, q model.Quotation, deduct deductFunc) {
	id := strings.TrimSpace(q.MaterialID)
	if id == "" || len(specs.MaterialLayers) == 0 {
		return
	}

	extracted := make(map[string]bool, len(specs.MaterialLayers))
	for _, l := range specs.MaterialLayers {
		code := l.Material
		if spec, ok := e.tables.LookupMaterial(code); ok {
			code = spec.Code
		}
		extracted[code] = true
	}

	var missing []string
	for _, token := range strings.FieldsFunc(id, func(r rune) bool { return r == '_' || r == '-' || r == '/' }) {
		spec, ok := e.tables.LookupMaterial(token)
		if !ok {
			continue
		}
		if !extracted[spec.Code] && !(spec.Code == "PE" && extracted["LLDPE"]) && !(spec.Code == "LLDPE" && extracted["PE"]) {
			missing = append(missing, spec.Code)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		deduct(materialMismatchPenalty, model.FieldMaterials,
			"quotation material %s includes %s not found in the design", q.MaterialID, strings.Join(missing, ", "))
	}
}

func (e *Extractor) crossCheckFeatures(specs model.ProductSpecifications, q model.Quotation, deduct deductFunc) {
	options := append([]string(nil), q.PostProcessingOptions...)
	sort.Strings(options)
	for _, option := range options {
		feature, want, detail, ok := e.parseOption(option)
		if !ok {
			continue
		}
		got := specs.ProcessingFeatures.Has(feature)
		if got != want {
			deduct(featureMismatchPenalty, model.FieldFeatures,
				"quotation option %s expects %s=%t, design has %t", option, feature, want, got)
			continue
		}
		if feature == model.FeatureHangingHole && want && detail != "" {
			m := optionDiameterRe.FindStringSubmatch(detail)
			if m == nil {
				continue
			}
			quoted, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			if d := specs.ProcessingFeatures.HangingHole.DiameterMM; d > 0 && math.Abs(d-quoted) > 0.5 {
				deduct(featureMismatchPenalty, model.FieldFeatures,
					"hanging hole %gmm differs from quotation %gmm", d, quoted)
			}
		}
	}
}

// parseOption maps an option id such as "zipper-yes", "hang-hole-6mm" or
// "corner-square" to a feature and the expected flag. The longest matching
// prefix wins. Options without a feature (finishes such as "matte") are skipped.
func (e *Extractor) parseOption(option string) (model.Feature, bool, string, bool) {
	norm := normalize(option)
	best := ""
	for prefix := range e.tables.OptionFeatures {
		if (norm == prefix || strings.HasPrefix(norm, prefix+"-")) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return "", false, "", false
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(norm, best), "-")
	want := true
	for _, neg := range e.tables.OptionNegatives {
		if rest == neg {
			want = false
			break
		}
	}
	return e.tables.OptionFeatures[best], want, rest, true
}
