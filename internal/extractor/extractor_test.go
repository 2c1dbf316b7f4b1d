package extractor

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/pouchspec/internal/heuristics"
	"github.com/Veraticus/pouchspec/internal/model"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New(heuristics.Defaults(), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return e
}

func layer(id, name string) model.Layer {
	return model.Layer{ID: id, Name: name, Visible: true}
}

func designFile(id string, layers ...model.Layer) *model.DesignFile {
	return &model.DesignFile{ID: id, Name: id + ".ai", Layers: layers, Version: 1}
}

func TestNew(t *testing.T) {
	t.Run("rejects invalid tables", func(t *testing.T) {
		tables := heuristics.Defaults()
		tables.Levels = model.Levels{High: 0.2, Medium: 0.6}
		_, err := New(tables)
		require.ErrorIs(t, err, heuristics.ErrInvalidTables)
	})

	t.Run("rejects multi word negation", func(t *testing.T) {
		tables := heuristics.Defaults()
		tables.Negations.Prefixes = append(tables.Negations.Prefixes, "do not")
		_, err := New(tables)
		require.ErrorIs(t, err, heuristics.ErrInvalidTables)
	})

	t.Run("default extractor exposes its tables", func(t *testing.T) {
		e := NewDefault()
		assert.Equal(t, model.DefaultLevels(), e.Levels())
		assert.NotEmpty(t, e.Tables().PouchKeywords)
	})
}

func TestExtractSpecifications_Scenarios(t *testing.T) {
	e := newTestExtractor(t)

	t.Run("clear stand up pouch is high confidence", func(t *testing.T) {
		res := e.ExtractSpecifications(designFile("f-a",
			layer("1", "gusset-bottom"),
			layer("2", "width-100mm"),
			layer("3", "height-160mm"),
		), nil)

		specs := res.Specifications
		assert.Equal(t, model.PouchStandUp, specs.PouchType)
		assert.InDelta(t, 100, specs.Dimensions.Width, 0.001)
		assert.InDelta(t, 160, specs.Dimensions.Height, 0.001)
		assert.Equal(t, model.UnitMillimetre, specs.Dimensions.Unit)
		assert.Equal(t, "f-a", specs.SourceFileID)
		assert.Equal(t, 1, specs.SourceVersion)
		assert.Equal(t, fixedNow, specs.ExtractedAt)

		assert.InDelta(t, 0.9, res.Confidence.Fields[model.FieldPouchType].Value, 0.001)
		assert.InDelta(t, 0.85, res.Confidence.Fields[model.FieldWidth].Value, 0.001)
		assert.InDelta(t, 0.85, res.Confidence.Overall.Value, 0.001)
		assert.Equal(t, model.ConfidenceHigh, res.Confidence.Overall.Level)
		assert.Equal(t, res.Confidence.Overall, specs.OverallConfidence)

		assert.True(t, res.Validation.IsValid)
		assert.Empty(t, res.Validation.Errors)
		assert.True(t, hasWarning(res.Validation, model.IssueGussetMismatch))
		assert.True(t, hasWarning(res.Validation, model.IssueMaterialsMissing))
		assert.Nil(t, res.CrossCheck)
	})

	t.Run("conflicting widths lower confidence", func(t *testing.T) {
		res := e.ExtractSpecifications(designFile("f-b",
			layer("1", "gusset-bottom"),
			layer("2", "width-100mm"),
			layer("3", "height-160mm"),
			layer("4", "width-120mm"),
		), nil)

		assert.InDelta(t, 100, res.Specifications.Dimensions.Width, 0.001)
		assert.InDelta(t, 0.325, res.Confidence.Fields[model.FieldWidth].Value, 0.001)
		assert.Less(t, res.Confidence.Overall.Value, model.DefaultReviewThreshold)
		assert.Equal(t, model.ConfidenceLow, res.Confidence.Overall.Level)
		assert.True(t, res.Validation.IsValid)
		assert.Contains(t, res.Confidence.Overall.Rationale[0], "width")
	})

	t.Run("empty file yields insufficient data", func(t *testing.T) {
		res := e.ExtractSpecifications(designFile("f-c"), nil)

		assert.Equal(t, model.PouchTypeUnknown, res.Specifications.PouchType)
		assert.Zero(t, res.Confidence.Overall.Value)
		assert.Equal(t, model.ConfidenceLow, res.Confidence.Overall.Level)
		assert.False(t, res.Validation.IsValid)
		assert.True(t, res.Validation.HasCode(model.IssueInsufficientData))
		assert.Empty(t, res.Specifications.MaterialLayers)
		assert.NotNil(t, res.Specifications.MaterialLayers)
		for _, f := range model.AllFeatures {
			assert.False(t, res.Specifications.ProcessingFeatures.Has(f), f)
		}
	})

	t.Run("nil file degrades like an empty one", func(t *testing.T) {
		res := e.ExtractSpecifications(nil, nil)
		assert.True(t, res.Validation.HasCode(model.IssueInsufficientData))
		assert.Zero(t, res.Confidence.Overall.Value)
	})

	t.Run("roll film with zipper is contradictory", func(t *testing.T) {
		res := e.ExtractSpecifications(designFile("f-e",
			layer("1", "roll-film"),
			layer("2", "zipper"),
			layer("3", "W120 x H200"),
		), nil)

		assert.Equal(t, model.PouchRollFilm, res.Specifications.PouchType)
		assert.True(t, res.Specifications.ProcessingFeatures.Zipper)
		assert.False(t, res.Validation.IsValid)
		assert.True(t, res.Validation.HasCode(model.IssueFeatureContradiction))
	})

	t.Run("quotation mismatches become warnings", func(t *testing.T) {
		q := &model.Quotation{ID: "q-1", BagTypeID: "flat_3_side", Width: 100, Height: 160}
		res := e.ExtractSpecifications(designFile("f-q",
			layer("1", "gusset-bottom"),
			layer("2", "width-100mm"),
			layer("3", "height-160mm"),
		), q)

		require.NotNil(t, res.CrossCheck)
		assert.Equal(t, "q-1", res.CrossCheck.QuotationID)
		assert.InDelta(t, 0.8, res.CrossCheck.AgreementScore, 0.001)
		assert.True(t, res.Validation.IsValid)
		assert.True(t, hasWarning(res.Validation, model.IssueQuotationMismatch))
	})
}

func TestExtractSpecifications_Deterministic(t *testing.T) {
	e := newTestExtractor(t)
	layers := []model.Layer{
		layer("1", "Stand Up Pouch"),
		layer("2", "W130 x H190 x G35"),
		layer("3", "PET12/AL7/PE80"),
		{ID: "4", Name: "notes", Texts: []model.TextElement{
			{ID: "t1", Content: "zipper"},
			{ID: "t2", Content: "V-notch 3mm both sides"},
			{ID: "t3", Content: "hang hole φ6mm"},
		}},
		layer("5", "width-131mm"),
	}
	file := designFile("f-det", layers...)

	first := e.ExtractSpecifications(file, nil)
	second := e.ExtractSpecifications(file, nil)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated extraction differs (-first +second):\n%s", diff)
	}

	reversed := slices.Clone(layers)
	slices.Reverse(reversed)
	third := e.ExtractSpecifications(designFile("f-det", reversed...), nil)
	if diff := cmp.Diff(first, third); diff != "" {
		t.Errorf("layer order changed the result (-original +reversed):\n%s", diff)
	}

	assert.Equal(t, model.PouchStandUp, first.Specifications.PouchType)
	assert.InDelta(t, 35, first.Specifications.Dimensions.Gusset, 0.001)
	assert.True(t, first.Specifications.ProcessingFeatures.Zipper)
	assert.True(t, first.Specifications.ProcessingFeatures.Notch.Present)
	assert.True(t, first.Specifications.ProcessingFeatures.HangingHole.Present)
}

func TestExtractSpecifications_ScoresStayInRange(t *testing.T) {
	e := newTestExtractor(t)
	files := []*model.DesignFile{
		designFile("r1"),
		designFile("r2", layer("1", "stand-up"), layer("2", "stand-up"), layer("3", "stand-up"), layer("4", "stand-up"), layer("5", "stand-up")),
		designFile("r3", layer("1", "box"), layer("2", "roll"), layer("3", "flat"), layer("4", "zipper"), layer("5", "no zipper")),
		designFile("r4", layer("1", "width-5mm"), layer("2", "height-9000mm"), layer("3", "XYZ900/QQ3")),
		designFile("r5", layer("1", "W100xH160"), layer("2", "W140xH220"), layer("3", "W180xH260")),
	}

	for _, f := range files {
		res := e.ExtractSpecifications(f, nil)
		assertUnit(t, f.ID+" overall", res.Confidence.Overall.Value)
		assertUnit(t, f.ID+" dimensions", res.Specifications.Dimensions.Confidence)
		for field, score := range res.Confidence.Fields {
			assertUnit(t, f.ID+" "+string(field), score.Value)
			if field.IsCritical() {
				assert.LessOrEqual(t, res.Confidence.Overall.Value, score.Value, "%s overall above %s", f.ID, field)
			}
		}
		for _, l := range res.Specifications.MaterialLayers {
			assertUnit(t, f.ID+" "+l.Material, l.Confidence)
		}
	}
}

func TestExtractBatch(t *testing.T) {
	e := newTestExtractor(t)
	inputs := []BatchInput{
		{File: *designFile("b1", layer("1", "stand-up"), layer("2", "100x160mm"))},
		{File: *designFile("b2")},
		{File: *designFile("b3", layer("1", "box-pouch")), Quotation: &model.Quotation{ID: "q", BagTypeID: "box"}},
	}

	t.Run("keeps input order", func(t *testing.T) {
		items := e.ExtractBatch(context.Background(), inputs, 2)
		require.Len(t, items, 3)
		for i, item := range items {
			assert.Equal(t, i, item.Index)
			assert.Equal(t, inputs[i].File.ID, item.FileID)
			assert.NoError(t, item.Err)
			assert.Equal(t, inputs[i].File.ID, item.Result.Specifications.SourceFileID)
		}
		assert.Equal(t, model.PouchStandUp, items[0].Result.Specifications.PouchType)
		require.NotNil(t, items[2].Result.CrossCheck)

		single := e.ExtractSpecifications(&inputs[0].File, nil)
		if diff := cmp.Diff(single, items[0].Result); diff != "" {
			t.Errorf("batch result differs from single extraction:\n%s", diff)
		}
	})

	t.Run("cancelled context marks every item", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		items := e.ExtractBatch(ctx, inputs, 1)
		require.Len(t, items, 3)
		for _, item := range items {
			assert.True(t, errors.Is(item.Err, context.Canceled), "item %d", item.Index)
		}
	})
}

func hasWarning(v model.ValidationResult, code string) bool {
	return slices.ContainsFunc(v.Warnings, func(i model.Issue) bool { return i.Code == code })
}

func assertUnit(t *testing.T, label string, v float64) {
	t.Helper()
	assert.GreaterOrEqual(t, v, 0.0, label)
	assert.LessOrEqual(t, v, 1.0, label)
}
