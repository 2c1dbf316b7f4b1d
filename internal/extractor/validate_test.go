package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/pouchspec/internal/model"
)

func validSpecs() model.ProductSpecifications {
	return model.ProductSpecifications{
		SourceFileID: "f-1",
		PouchType:    model.PouchStandUp,
		Dimensions:   model.Dimensions{Unit: model.UnitMillimetre, Width: 130, Height: 190, Gusset: 35},
		MaterialLayers: []model.MaterialLayer{
			{Material: "PET", Position: model.PositionOuter, ThicknessMicron: 12, Known: true},
			{Material: "AL", Position: model.PositionMiddle, ThicknessMicron: 7, Known: true},
			{Material: "PE", Position: model.PositionInner, ThicknessMicron: 80, Known: true},
		},
		ProcessingFeatures: model.ProcessingFeatures{Zipper: true},
	}
}

func TestValidateSpecifications(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*model.ProductSpecifications)
		wantValid    bool
		wantErrors   []string
		wantWarnings []string
	}{
		{
			name:      "clean specification",
			mutate:    func(*model.ProductSpecifications) {},
			wantValid: true,
		},
		{
			name:       "missing width",
			mutate:     func(s *model.ProductSpecifications) { s.Dimensions.Width = 0 },
			wantErrors: []string{model.IssueDimensionMissing},
		},
		{
			name:       "height out of range",
			mutate:     func(s *model.ProductSpecifications) { s.Dimensions.Height = 1500 },
			wantErrors: []string{model.IssueDimensionOutOfRange},
		},
		{
			name:         "gusset wider than pouch",
			mutate:       func(s *model.ProductSpecifications) { s.Dimensions.Gusset = 140 },
			wantValid:    true,
			wantWarnings: []string{model.IssueGussetImplausible},
		},
		{
			name:         "stand up without gusset",
			mutate:       func(s *model.ProductSpecifications) { s.Dimensions.Gusset = 0 },
			wantValid:    true,
			wantWarnings: []string{model.IssueGussetMismatch},
		},
		{
			name: "three side seal with gusset",
			mutate: func(s *model.ProductSpecifications) {
				s.PouchType = model.PouchFlat3Side
				s.ProcessingFeatures.Zipper = false
			},
			wantValid:    true,
			wantWarnings: []string{model.IssueGussetMismatch},
		},
		{
			name:         "unknown pouch type",
			mutate:       func(s *model.ProductSpecifications) { s.PouchType = model.PouchTypeUnknown },
			wantValid:    true,
			wantWarnings: []string{model.IssuePouchTypeUnknown},
		},
		{
			name:         "no materials",
			mutate:       func(s *model.ProductSpecifications) { s.MaterialLayers = nil },
			wantValid:    true,
			wantWarnings: []string{model.IssueMaterialsMissing},
		},
		{
			name: "unknown material and odd gauge",
			mutate: func(s *model.ProductSpecifications) {
				s.MaterialLayers[0].Material = "XYZ"
				s.MaterialLayers[1].ThicknessMicron = 40
			},
			wantValid:    true,
			wantWarnings: []string{model.IssueMaterialUnknown, model.IssueThicknessOutOfRange},
		},
		{
			name: "laminate too thick",
			mutate: func(s *model.ProductSpecifications) {
				s.MaterialLayers[2].ThicknessMicron = 150
				s.MaterialLayers = append(s.MaterialLayers, model.MaterialLayer{Material: "CPP", ThicknessMicron: 100})
			},
			wantValid:    true,
			wantWarnings: []string{model.IssueTotalThicknessHigh},
		},
		{
			name: "roll film with zipper and spout",
			mutate: func(s *model.ProductSpecifications) {
				s.PouchType = model.PouchRollFilm
				s.Dimensions.Gusset = 0
				s.ProcessingFeatures.Spout = true
			},
			wantErrors:   []string{model.IssueFeatureContradiction, model.IssueFeatureContradiction},
			wantWarnings: []string{model.IssueFeatureContradiction},
		},
		{
			name: "spout on a box pouch is only a warning",
			mutate: func(s *model.ProductSpecifications) {
				s.PouchType = model.PouchBox
				s.ProcessingFeatures.Spout = true
			},
			wantValid:    true,
			wantWarnings: []string{model.IssueFeatureContradiction},
		},
		{
			name: "nothing at all",
			mutate: func(s *model.ProductSpecifications) {
				*s = model.ProductSpecifications{PouchType: model.PouchTypeUnknown}
			},
			wantErrors:   []string{model.IssueInsufficientData, model.IssueDimensionMissing, model.IssueDimensionMissing},
			wantWarnings: []string{model.IssuePouchTypeUnknown, model.IssueMaterialsMissing},
		},
	}

	e := newTestExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specs := validSpecs()
			tt.mutate(&specs)
			got := e.ValidateSpecifications(specs)

			assert.Equal(t, tt.wantValid, got.IsValid)
			assert.Equal(t, nonNil(tt.wantErrors), codes(got.Errors))
			assert.Equal(t, nonNil(tt.wantWarnings), codes(got.Warnings))
			assert.NotNil(t, got.Errors)
			assert.NotNil(t, got.Warnings)
		})
	}
}

func codes(issues []model.Issue) []string {
	out := []string{}
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
