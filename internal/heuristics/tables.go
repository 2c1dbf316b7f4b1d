// Package heuristics holds the reference tables that drive extraction:
// pouch keywords, material abbreviations, known laminate combinations,
// dimensional tolerances, feature markers and contradiction rules.
// Tables are plain data and can be overridden from YAML.
package heuristics

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Veraticus/pouchspec/internal/model"
)

// Severity marks a contradiction as blocking or advisory.
type Severity string

// Severity constants.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ErrInvalidTables is returned by Validate.
var ErrInvalidTables = errors.New("invalid heuristic tables")

// PouchKeyword maps a normalized keyword to a pouch type.
// Higher Specificity wins over lower when both appear.
type PouchKeyword struct {
	Keyword     string          `yaml:"keyword"`
	Type        model.PouchType `yaml:"type"`
	Specificity int             `yaml:"specificity"`
	Confidence  float64         `yaml:"confidence"`
}

// MaterialSpec describes a film material and its usual gauge in microns.
type MaterialSpec struct {
	Code             string   `yaml:"code"`
	Description      string   `yaml:"description"`
	Aliases          []string `yaml:"aliases"`
	DefaultThickness float64  `yaml:"default_thickness"`
	MinThickness     float64  `yaml:"min_thickness"`
	MaxThickness     float64  `yaml:"max_thickness"`
}

// Combination is a commonly produced laminate, outer to inner.
type Combination struct {
	Name   string   `yaml:"name"`
	Layers []string `yaml:"layers"`
}

// Plausibility bounds physically sensible values.
type Plausibility struct {
	MinMM             float64 `yaml:"min_mm"`
	MaxMM             float64 `yaml:"max_mm"`
	MinGussetMM       float64 `yaml:"min_gusset_mm"`
	MaxGussetMM       float64 `yaml:"max_gusset_mm"`
	MaxTotalThickness float64 `yaml:"max_total_thickness"`
}

// Contradiction is a pouch type and feature that should not appear together.
type Contradiction struct {
	PouchType model.PouchType `yaml:"pouch_type"`
	Feature   model.Feature   `yaml:"feature"`
	Severity  Severity        `yaml:"severity"`
	Message   string          `yaml:"message"`
}

// Scoring holds the weights used to turn evidence into confidence.
type Scoring struct {
	Weights            map[model.Field]float64 `yaml:"weights"`
	DimensionBase      float64                 `yaml:"dimension_base"`
	CorroborationBoost float64                 `yaml:"corroboration_boost"`
	MaxConfidence      float64                 `yaml:"max_confidence"`
	ConflictPenalty    float64                 `yaml:"conflict_penalty"`
	RivalPenalty       float64                 `yaml:"rival_penalty"`
	KnownMaterial      float64                 `yaml:"known_material"`
	UnknownMaterial    float64                 `yaml:"unknown_material"`
	CombinationBoost   float64                 `yaml:"combination_boost"`
	ThicknessPenalty   float64                 `yaml:"thickness_penalty"`
	FeatureBase        float64                 `yaml:"feature_base"`
	CriticalWeight     float64                 `yaml:"critical_weight"`
}

// Weight returns the weight of a non-critical field, defaulting to 1.
func (s Scoring) Weight(f model.Field) float64 {
	if w, ok := s.Weights[f]; ok {
		return w
	}
	return 1
}

// Negations are the words that mark a feature as absent. A prefix is
// written immediately before a marker (no-zipper), a suffix immediately
// after it (zipper-none, ジッパーなし).
type Negations struct {
	Prefixes []string `yaml:"prefixes"`
	Suffixes []string `yaml:"suffixes"`
}

// Tables is the full set of extraction heuristics.
type Tables struct {
	Tolerances            map[model.PouchType]float64 `yaml:"tolerances"`
	FeatureMarkers        map[model.Feature][]string  `yaml:"feature_markers"`
	BagTypeAliases        map[string]model.PouchType  `yaml:"bag_type_aliases"`
	OptionFeatures        map[string]model.Feature    `yaml:"option_features"`
	PouchKeywords         []PouchKeyword              `yaml:"pouch_keywords"`
	Materials             []MaterialSpec              `yaml:"materials"`
	Combinations          []Combination               `yaml:"combinations"`
	Negations             Negations                   `yaml:"negations"`
	OptionNegatives       []string                    `yaml:"option_negatives"`
	Contradictions        []Contradiction             `yaml:"contradictions"`
	Scoring               Scoring                     `yaml:"scoring"`
	Levels                model.Levels                `yaml:"levels"`
	Plausibility          Plausibility                `yaml:"plausibility"`
	DefaultHoleDiameterMM float64                     `yaml:"default_hole_diameter_mm"`
}

// Tolerance returns the dimensional tolerance in mm for a pouch type.
func (t Tables) Tolerance(pt model.PouchType) float64 {
	if v, ok := t.Tolerances[pt]; ok {
		return v
	}
	return t.Tolerances[model.PouchTypeUnknown]
}

// LookupMaterial resolves a code or alias, case-insensitively.
func (t Tables) LookupMaterial(token string) (MaterialSpec, bool) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return MaterialSpec{}, false
	}
	for _, m := range t.Materials {
		if strings.EqualFold(m.Code, token) {
			return m, true
		}
		for _, a := range m.Aliases {
			if strings.EqualFold(a, token) {
				return m, true
			}
		}
	}
	return MaterialSpec{}, false
}

// MatchCombination returns the combination whose layer codes equal codes.
func (t Tables) MatchCombination(codes []string) (Combination, bool) {
	for _, c := range t.Combinations {
		if slices.Equal(c.Layers, codes) {
			return c, true
		}
	}
	return Combination{}, false
}

// ContradictionsFor lists the contradictions that apply to a pouch type.
func (t Tables) ContradictionsFor(pt model.PouchType) []Contradiction {
	var out []Contradiction
	for _, c := range t.Contradictions {
		if c.PouchType == pt {
			out = append(out, c)
		}
	}
	return out
}

// Validate checks that the tables are internally consistent.
func (t Tables) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if len(t.PouchKeywords) == 0 {
		add("no pouch keywords")
	}
	for i, k := range t.PouchKeywords {
		if strings.TrimSpace(k.Keyword) == "" {
			add("pouch keyword %d is empty", i)
		}
		if model.ParsePouchType(string(k.Type)) == model.PouchTypeUnknown {
			add("pouch keyword %q maps to unknown type %q", k.Keyword, k.Type)
		}
		if k.Specificity < 1 {
			add("pouch keyword %q has specificity %d", k.Keyword, k.Specificity)
		}
		if k.Confidence <= 0 || k.Confidence > 1 {
			add("pouch keyword %q has confidence %v", k.Keyword, k.Confidence)
		}
	}

	codes := make(map[string]bool, len(t.Materials))
	for _, m := range t.Materials {
		if m.Code == "" {
			add("material with empty code")
			continue
		}
		codes[m.Code] = true
		if m.MinThickness > m.MaxThickness {
			add("material %s has min thickness above max", m.Code)
		}
		if m.DefaultThickness < 0 {
			add("material %s has negative default thickness", m.Code)
		}
	}
	for _, c := range t.Combinations {
		for _, l := range c.Layers {
			if !codes[l] {
				add("combination %s references unknown material %s", c.Name, l)
			}
		}
	}

	if _, ok := t.Tolerances[model.PouchTypeUnknown]; !ok {
		add("no tolerance for unknown pouch type")
	}
	for pt, v := range t.Tolerances {
		if v < 0 {
			add("tolerance for %s is negative", pt)
		}
	}

	p := t.Plausibility
	if p.MinMM <= 0 || p.MinMM >= p.MaxMM {
		add("plausibility range [%v, %v] is empty", p.MinMM, p.MaxMM)
	}
	if p.MinGussetMM < 0 || p.MinGussetMM >= p.MaxGussetMM {
		add("gusset plausibility range [%v, %v] is empty", p.MinGussetMM, p.MaxGussetMM)
	}

	for _, token := range append(slices.Clone(t.Negations.Prefixes), t.Negations.Suffixes...) {
		if strings.TrimSpace(token) == "" || strings.ContainsAny(token, " -_") {
			add("negation token %q must be a single non-empty word", token)
		}
	}

	for _, c := range t.Contradictions {
		if !slices.Contains(model.AllFeatures, c.Feature) {
			add("contradiction references unknown feature %q", c.Feature)
		}
		if c.Severity != SeverityError && c.Severity != SeverityWarning {
			add("contradiction %s/%s has severity %q", c.PouchType, c.Feature, c.Severity)
		}
	}

	s := t.Scoring
	for name, v := range map[string]float64{
		"dimension_base":      s.DimensionBase,
		"corroboration_boost": s.CorroborationBoost,
		"max_confidence":      s.MaxConfidence,
		"conflict_penalty":    s.ConflictPenalty,
		"rival_penalty":       s.RivalPenalty,
		"known_material":      s.KnownMaterial,
		"unknown_material":    s.UnknownMaterial,
		"combination_boost":   s.CombinationBoost,
		"thickness_penalty":   s.ThicknessPenalty,
		"feature_base":        s.FeatureBase,
		"critical_weight":     s.CriticalWeight,
	} {
		if v < 0 || v > 1 {
			add("scoring %s = %v is outside [0,1]", name, v)
		}
	}
	for f, w := range s.Weights {
		if f.IsCritical() {
			add("weight given for critical field %s", f)
		}
		if w < 0 {
			add("weight for %s is negative", f)
		}
	}

	if t.Levels.Medium < 0 || t.Levels.Medium > t.Levels.High || t.Levels.High > 1 {
		add("levels medium=%v high=%v are not ordered within [0,1]", t.Levels.Medium, t.Levels.High)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidTables, errors.Join(errs...))
}
