package heuristics

import "github.com/Veraticus/pouchspec/internal/model"

// Defaults returns the stock tables. Each call returns a fresh copy.
func Defaults() Tables {
	return Tables{
		PouchKeywords:  DefaultPouchKeywords(),
		Materials:      DefaultMaterials(),
		Combinations:   DefaultCombinations(),
		Tolerances:     DefaultTolerances(),
		FeatureMarkers: DefaultFeatureMarkers(),
		Negations: Negations{
			Prefixes: []string{"no", "non", "without"},
			Suffixes: []string{"no", "none", "なし", "無し", "不要"},
		},
		Contradictions: DefaultContradictions(),
		Plausibility: Plausibility{
			MinMM:             20,
			MaxMM:             1000,
			MinGussetMM:       5,
			MaxGussetMM:       500,
			MaxTotalThickness: 200,
		},
		Scoring: Scoring{
			DimensionBase:      0.85,
			CorroborationBoost: 0.05,
			MaxConfidence:      0.98,
			ConflictPenalty:    0.1,
			RivalPenalty:       0.15,
			KnownMaterial:      0.9,
			UnknownMaterial:    0.4,
			CombinationBoost:   0.05,
			ThicknessPenalty:   0.2,
			FeatureBase:        0.9,
			CriticalWeight:     0.7,
			Weights: map[model.Field]float64{
				model.FieldGusset:    1,
				model.FieldMaterials: 2,
				model.FieldFeatures:  1,
			},
		},
		Levels:                model.DefaultLevels(),
		BagTypeAliases:        DefaultBagTypeAliases(),
		OptionFeatures:        DefaultOptionFeatures(),
		OptionNegatives:       []string{"no", "none", "square", "nashi"},
		DefaultHoleDiameterMM: 5,
	}
}

// DefaultPouchKeywords returns the keyword table. Keywords are in normalized
// form: lower case with underscores and whitespace folded into hyphens.
func DefaultPouchKeywords() []PouchKeyword {
	return []PouchKeyword{
		// Spout pouches
		{Keyword: "spout-pouch", Type: model.PouchSpout, Specificity: 4, Confidence: 0.92},
		{Keyword: "spout", Type: model.PouchSpout, Specificity: 3, Confidence: 0.85},
		{Keyword: "スパウト", Type: model.PouchSpout, Specificity: 3, Confidence: 0.85},

		// Stand-up pouches
		{Keyword: "gusset-bottom", Type: model.PouchStandUp, Specificity: 4, Confidence: 0.9},
		{Keyword: "bottom-gusset", Type: model.PouchStandUp, Specificity: 4, Confidence: 0.9},
		{Keyword: "stand-up", Type: model.PouchStandUp, Specificity: 4, Confidence: 0.9},
		{Keyword: "standup", Type: model.PouchStandUp, Specificity: 4, Confidence: 0.9},
		{Keyword: "stand-pouch", Type: model.PouchStandUp, Specificity: 4, Confidence: 0.9},
		{Keyword: "doypack", Type: model.PouchStandUp, Specificity: 4, Confidence: 0.9},
		{Keyword: "スタンド", Type: model.PouchStandUp, Specificity: 3, Confidence: 0.85},
		{Keyword: "底マチ", Type: model.PouchStandUp, Specificity: 3, Confidence: 0.85},
		{Keyword: "stand", Type: model.PouchStandUp, Specificity: 2, Confidence: 0.75},

		// Flat pouches with zipper
		{Keyword: "flat-zip", Type: model.PouchFlatWithZip, Specificity: 4, Confidence: 0.9},
		{Keyword: "zip-flat", Type: model.PouchFlatWithZip, Specificity: 4, Confidence: 0.9},
		{Keyword: "zipper-pouch", Type: model.PouchFlatWithZip, Specificity: 3, Confidence: 0.85},
		{Keyword: "zip-pouch", Type: model.PouchFlatWithZip, Specificity: 3, Confidence: 0.85},
		{Keyword: "チャック袋", Type: model.PouchFlatWithZip, Specificity: 3, Confidence: 0.85},
		{Keyword: "zipper", Type: model.PouchFlatWithZip, Specificity: 1, Confidence: 0.6},
		{Keyword: "zip", Type: model.PouchFlatWithZip, Specificity: 1, Confidence: 0.6},

		// Roll film
		{Keyword: "roll-film", Type: model.PouchRollFilm, Specificity: 4, Confidence: 0.9},
		{Keyword: "rollstock", Type: model.PouchRollFilm, Specificity: 4, Confidence: 0.9},
		{Keyword: "ロールフィルム", Type: model.PouchRollFilm, Specificity: 4, Confidence: 0.9},
		{Keyword: "roll", Type: model.PouchRollFilm, Specificity: 2, Confidence: 0.7},

		// Box pouches
		{Keyword: "box-pouch", Type: model.PouchBox, Specificity: 4, Confidence: 0.9},
		{Keyword: "flat-bottom", Type: model.PouchBox, Specificity: 4, Confidence: 0.9},
		{Keyword: "ボックス", Type: model.PouchBox, Specificity: 3, Confidence: 0.85},
		{Keyword: "box", Type: model.PouchBox, Specificity: 2, Confidence: 0.7},

		// Three side seal
		{Keyword: "three-side", Type: model.PouchFlat3Side, Specificity: 3, Confidence: 0.88},
		{Keyword: "3-side", Type: model.PouchFlat3Side, Specificity: 3, Confidence: 0.88},
		{Keyword: "3side", Type: model.PouchFlat3Side, Specificity: 3, Confidence: 0.88},
		{Keyword: "三方", Type: model.PouchFlat3Side, Specificity: 3, Confidence: 0.85},
		{Keyword: "flat-pouch", Type: model.PouchFlat3Side, Specificity: 3, Confidence: 0.85},
		{Keyword: "flat", Type: model.PouchFlat3Side, Specificity: 1, Confidence: 0.6},
		{Keyword: "pillow", Type: model.PouchFlat3Side, Specificity: 1, Confidence: 0.6},

		// Side gusset
		{Keyword: "side-gusset", Type: model.PouchGusset, Specificity: 3, Confidence: 0.85},
		{Keyword: "ガゼット", Type: model.PouchGusset, Specificity: 3, Confidence: 0.85},
		{Keyword: "gusset", Type: model.PouchGusset, Specificity: 1, Confidence: 0.65},
		{Keyword: "マチ", Type: model.PouchGusset, Specificity: 1, Confidence: 0.6},
	}
}

// DefaultMaterials returns the film materials and their usual gauges in microns.
func DefaultMaterials() []MaterialSpec {
	return []MaterialSpec{
		{Code: "PET", Description: "Polyester", Aliases: []string{"POLYESTER"}, DefaultThickness: 12, MinThickness: 9, MaxThickness: 25},
		{Code: "AL", Description: "Aluminum foil", Aliases: []string{"ALU", "ALUMINUM", "ALUMINIUM", "AL-FOIL"}, DefaultThickness: 7, MinThickness: 6, MaxThickness: 15},
		{Code: "PE", Description: "Polyethylene", Aliases: []string{"LDPE", "POLYETHYLENE"}, DefaultThickness: 80, MinThickness: 30, MaxThickness: 150},
		{Code: "LLDPE", Description: "Linear low-density polyethylene", Aliases: []string{"L-LDPE"}, DefaultThickness: 60, MinThickness: 30, MaxThickness: 150},
		{Code: "CPP", Description: "Cast polypropylene", Aliases: []string{"RCPP"}, DefaultThickness: 50, MinThickness: 20, MaxThickness: 100},
		{Code: "OPP", Description: "Oriented polypropylene", Aliases: []string{"BOPP"}, DefaultThickness: 20, MinThickness: 15, MaxThickness: 40},
		{Code: "PA", Description: "Nylon", Aliases: []string{"NY", "ONY", "NYLON"}, DefaultThickness: 15, MinThickness: 12, MaxThickness: 25},
		{Code: "EVOH", Description: "Ethylene vinyl alcohol", DefaultThickness: 5, MinThickness: 3, MaxThickness: 20},
		{Code: "VMPET", Description: "Metallized polyester", Aliases: []string{"MET", "MPET", "VM-PET"}, DefaultThickness: 12, MinThickness: 9, MaxThickness: 25},
		{Code: "KRAFT", Description: "Kraft paper", Aliases: []string{"PAPER"}, DefaultThickness: 50, MinThickness: 30, MaxThickness: 120},
	}
}

// DefaultCombinations returns laminates that are commonly produced.
func DefaultCombinations() []Combination {
	return []Combination{
		{Name: "standard_stand", Layers: []string{"PET", "AL", "PE"}},
		{Name: "lamination_ready", Layers: []string{"PET", "AL", "CPP"}},
		{Name: "clear_pouch", Layers: []string{"PET", "PE"}},
		{Name: "high_barrier", Layers: []string{"PET", "EVOH", "PE"}},
		{Name: "nylon_retort", Layers: []string{"PET", "PA", "AL", "CPP"}},
		{Name: "nylon_barrier", Layers: []string{"PET", "PA", "AL", "PE"}},
		{Name: "vmpet_barrier", Layers: []string{"PET", "VMPET", "PE"}},
		{Name: "kraft_paper", Layers: []string{"KRAFT", "PE"}},
	}
}

// DefaultTolerances returns the dimensional tolerance in mm per pouch type.
func DefaultTolerances() map[model.PouchType]float64 {
	return map[model.PouchType]float64{
		model.PouchStandUp:     2,
		model.PouchFlat3Side:   3,
		model.PouchFlatWithZip: 2,
		model.PouchGusset:      3,
		model.PouchBox:         3,
		model.PouchSpout:       2,
		model.PouchRollFilm:    5,
		model.PouchTypeUnknown: 5,
	}
}

// DefaultFeatureMarkers returns normalized markers per feature.
func DefaultFeatureMarkers() map[model.Feature][]string {
	return map[model.Feature][]string{
		model.FeatureNotch:       {"notch", "tear-notch", "ノッチ", "切り欠き"},
		model.FeatureHangingHole: {"hang-hole", "hanging-hole", "hanging", "hang", "euro-hole", "euro-slot", "吊り穴", "吊下げ穴"},
		model.FeatureZipper:      {"zipper", "ziplock", "zip-lock", "zip", "ジッパー", "チャック"},
		model.FeatureValve:       {"valve", "degassing", "バルブ"},
		model.FeatureSpout:       {"spout", "スパウト"},
		model.FeatureCornerRound: {"corner-round", "round-corner", "rounded-corner", "r-corner", "角丸"},
		model.FeatureSlit:        {"slit", "スリット"},
		model.FeatureDieCut:      {"die-cut", "diecut", "型抜き"},
		model.FeaturePunchHole:   {"punch", "perforation", "パンチ"},
		model.FeatureEmbossing:   {"emboss", "エンボス"},
		model.FeatureHotStamping: {"hot-stamp", "foil-stamp", "箔押し"},
	}
}

// DefaultContradictions returns pouch type and feature pairs that conflict.
func DefaultContradictions() []Contradiction {
	return []Contradiction{
		{PouchType: model.PouchRollFilm, Feature: model.FeatureZipper, Severity: SeverityError, Message: "roll film cannot carry a zipper"},
		{PouchType: model.PouchRollFilm, Feature: model.FeatureSpout, Severity: SeverityError, Message: "roll film cannot carry a spout"},
		{PouchType: model.PouchRollFilm, Feature: model.FeatureHangingHole, Severity: SeverityError, Message: "roll film cannot carry a hanging hole"},
		{PouchType: model.PouchRollFilm, Feature: model.FeatureValve, Severity: SeverityWarning, Message: "valve on roll film is applied after forming"},
		{PouchType: model.PouchRollFilm, Feature: model.FeatureCornerRound, Severity: SeverityWarning, Message: "round corners on roll film are unusual"},
		{PouchType: model.PouchFlat3Side, Feature: model.FeatureSpout, Severity: SeverityWarning, Message: "spout on a flat three-side pouch"},
		{PouchType: model.PouchFlatWithZip, Feature: model.FeatureSpout, Severity: SeverityWarning, Message: "spout on a flat zipper pouch"},
		{PouchType: model.PouchGusset, Feature: model.FeatureSpout, Severity: SeverityWarning, Message: "spout on a side gusset pouch"},
		{PouchType: model.PouchBox, Feature: model.FeatureSpout, Severity: SeverityWarning, Message: "spout on a box pouch"},
		{PouchType: model.PouchBox, Feature: model.FeatureHangingHole, Severity: SeverityWarning, Message: "hanging hole on a box pouch"},
	}
}

// DefaultBagTypeAliases maps quotation bag type ids to pouch types.
func DefaultBagTypeAliases() map[string]model.PouchType {
	return map[string]model.PouchType{
		"flat_3_side":     model.PouchFlat3Side,
		"three_side_seal": model.PouchFlat3Side,
		"flat_pouch":      model.PouchFlat3Side,
		"stand_up":        model.PouchStandUp,
		"stand_pouch":     model.PouchStandUp,
		"standup_pouch":   model.PouchStandUp,
		"gusset":          model.PouchGusset,
		"gazette":         model.PouchGusset,
		"side_gusset":     model.PouchGusset,
		"roll_film":       model.PouchRollFilm,
		"spout_pouch":     model.PouchSpout,
		"zipper_pouch":    model.PouchFlatWithZip,
		"flat_with_zip":   model.PouchFlatWithZip,
		"box":             model.PouchBox,
		"box_pouch":       model.PouchBox,
		"flat_bottom":     model.PouchBox,
	}
}

// DefaultOptionFeatures maps quotation post-processing option prefixes to features.
func DefaultOptionFeatures() map[string]model.Feature {
	return map[string]model.Feature{
		"zipper":    model.FeatureZipper,
		"notch":     model.FeatureNotch,
		"hang-hole": model.FeatureHangingHole,
		"valve":     model.FeatureValve,
		"spout":     model.FeatureSpout,
		"corner":    model.FeatureCornerRound,
		"slit":      model.FeatureSlit,
		"die-cut":   model.FeatureDieCut,
		"punch":     model.FeaturePunchHole,
		"emboss":    model.FeatureEmbossing,
		"hot-stamp": model.FeatureHotStamping,
	}
}
