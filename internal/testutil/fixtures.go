package testutil

import (
	"strconv"
	"sync"
	"time"

	"github.com/Veraticus/pouchspec/internal/model"
)

// FixedTime is the timestamp fixtures use.
var FixedTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// Clock returns a time source that advances one second per call, starting
// just after FixedTime. It is safe for concurrent use.
func Clock() func() time.Time {
	var mu sync.Mutex
	t := FixedTime
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

// SequentialIDs returns a generator producing prefix-1, prefix-2, ...
func SequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

// SpecBuilder builds ProductSpecifications for tests.
type SpecBuilder struct {
	specs model.ProductSpecifications
}

// NewSpecBuilder starts from a plausible stand-up pouch with medium confidence.
func NewSpecBuilder(sourceFileID string) *SpecBuilder {
	return &SpecBuilder{specs: model.ProductSpecifications{
		ExtractedAt:  FixedTime,
		SourceFileID: sourceFileID,
		PouchType:    model.PouchStandUp,
		OverallConfidence: model.ConfidenceScore{
			Value: 0.6,
			Level: model.ConfidenceMedium,
		},
		MaterialLayers: []model.MaterialLayer{
			{Material: "PET", ThicknessMicron: 12, Position: model.PositionOuter, Confidence: 0.9, Known: true},
			{Material: "PE", ThicknessMicron: 80, Position: model.PositionInner, Confidence: 0.9, Known: true},
		},
		Dimensions: model.Dimensions{
			Unit: model.UnitMillimetre, Width: 130, Height: 190, Gusset: 35, Confidence: 0.6,
		},
		ProcessingFeatures: model.ProcessingFeatures{Zipper: true},
		SourceVersion:      1,
	}}
}

// WithConfidence sets the overall confidence and its level.
func (b *SpecBuilder) WithConfidence(v float64) *SpecBuilder {
	b.specs.OverallConfidence.Value = v
	b.specs.OverallConfidence.Level = model.DefaultLevels().Classify(v)
	return b
}

// WithPouchType sets the pouch type.
func (b *SpecBuilder) WithPouchType(pt model.PouchType) *SpecBuilder {
	b.specs.PouchType = pt
	return b
}

// WithDimensions sets width, height and gusset in millimetres.
func (b *SpecBuilder) WithDimensions(width, height, gusset float64) *SpecBuilder {
	b.specs.Dimensions.Width = width
	b.specs.Dimensions.Height = height
	b.specs.Dimensions.Gusset = gusset
	return b
}

// WithSourceVersion sets the design file version.
func (b *SpecBuilder) WithSourceVersion(v int) *SpecBuilder {
	b.specs.SourceVersion = v
	return b
}

// Build returns a copy of the specifications.
func (b *SpecBuilder) Build() model.ProductSpecifications {
	return b.specs.Clone()
}

// Result wraps specifications in an extraction result. A valid result has
// no validation errors.
func Result(specs model.ProductSpecifications, valid bool, errorCodes ...string) model.ExtractionResult {
	res := model.ExtractionResult{
		Specifications: specs,
		Confidence:     model.ConfidenceReport{Overall: specs.OverallConfidence},
		Validation:     model.ValidationResult{IsValid: valid},
	}
	for _, code := range errorCodes {
		res.Validation.Errors = append(res.Validation.Errors, model.Issue{Code: code, Message: code})
	}
	return res
}

// Layer returns a visible layer with optional text frames.
func Layer(id, name string, texts ...string) model.Layer {
	l := model.Layer{ID: id, Name: name, Visible: true}
	for i, content := range texts {
		l.Texts = append(l.Texts, model.TextElement{ID: id + "-t" + strconv.Itoa(i+1), Content: content})
	}
	return l
}

// DesignFile returns a version 1 design file with the given layers.
func DesignFile(id string, layers ...model.Layer) *model.DesignFile {
	return &model.DesignFile{ID: id, Name: id + ".ai", Layers: layers, Version: 1}
}
