// Package extractor infers packaging specifications from decoded design file
// metadata. An Extractor is immutable once built and safe for concurrent use;
// identical input always yields identical output.
package extractor

import (
	"fmt"
	"sort"
	"time"

	"github.com/Veraticus/pouchspec/internal/heuristics"
	"github.com/Veraticus/pouchspec/internal/model"
)

// Extractor runs the extraction pipeline against a fixed set of tables.
type Extractor struct {
	now       func() time.Time
	keywords  []heuristics.PouchKeyword
	tables    heuristics.Tables
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock sets the clock used for ExtractedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// New builds an Extractor after validating the tables.
func New(tables heuristics.Tables, opts ...Option) (*Extractor, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}

	e := &Extractor{
		tables: tables,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.keywords = make([]heuristics.PouchKeyword, 0, len(tables.PouchKeywords))
	for _, kw := range tables.PouchKeywords {
		kw.Keyword = normalize(kw.Keyword)
		e.keywords = append(e.keywords, kw)
	}
	sort.SliceStable(e.keywords, func(i, j int) bool {
		if e.keywords[i].Specificity != e.keywords[j].Specificity {
			return e.keywords[i].Specificity > e.keywords[j].Specificity
		}
		return len(e.keywords[i].Keyword) > len(e.keywords[j].Keyword)
	})

	return e, nil
}

// NewDefault builds an Extractor on the stock tables.
func NewDefault(opts ...Option) *Extractor {
	e, err := New(heuristics.Defaults(), opts...)
	if err != nil {
		panic(fmt.Sprintf("default heuristic tables are invalid: %v", err))
	}
	return e
}

// Tables returns the tables the extractor was built with.
func (e *Extractor) Tables() heuristics.Tables {
	return e.tables
}

// Levels returns the confidence level boundaries in use.
func (e *Extractor) Levels() model.Levels {
	return e.tables.Levels
}

// ExtractSpecifications runs the full pipeline. It never fails: a nil or
// empty file degrades to an unknown pouch with zero confidence and an
// insufficient-data validation error. When quotation is non-nil its
// mismatches are added to the validation warnings.
func (e *Extractor) ExtractSpecifications(file *model.DesignFile, quotation *model.Quotation) model.ExtractionResult {
	if file == nil {
		file = &model.DesignFile{}
	}

	signals := collectSignals(file.Layers)
	pouch := e.detectPouchType(signals)
	dims := e.extractDimensions(signals, file.Artboards, pouch.Type)
	materials := e.extractMaterials(signals)

	var features FeatureExtraction
	if len(signals) > 0 {
		features = e.extractFeatures(signals)
	} else {
		features = FeatureExtraction{Evidence: FieldEvidence{Field: model.FieldFeatures}}
	}

	report := CalculateConfidence([]FieldEvidence{
		pouch.Evidence,
		dims.Width,
		dims.Height,
		dims.Gusset,
		materials.Evidence,
		features.Evidence,
	}, e.tables.Scoring, e.tables.Levels)

	specs := model.ProductSpecifications{
		SourceFileID:       file.ID,
		SourceVersion:      file.Version,
		PouchType:          pouch.Type,
		Dimensions:         dims.Dimensions,
		MaterialLayers:     materials.Layers,
		ProcessingFeatures: features.Features,
		OverallConfidence:  report.Overall,
		ExtractedAt:        e.now().UTC(),
	}

	result := model.ExtractionResult{
		Specifications: specs,
		Confidence:     report,
		Validation:     e.ValidateSpecifications(specs),
	}

	if quotation != nil {
		cc := e.CrossCheckWithQuotation(specs, *quotation)
		result.CrossCheck = &cc
		result.Validation.Warnings = append(result.Validation.Warnings, cc.Warnings...)
	}

	return result
}
