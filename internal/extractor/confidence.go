package extractor

import (
	"fmt"
	"math"

	"github.com/Veraticus/pouchspec/internal/heuristics"
	"github.com/Veraticus/pouchspec/internal/model"
)

// FieldEvidence summarises what the extractor found for one field.
type FieldEvidence struct {
	Field model.Field
	Notes []string
	// Base is the confidence of the best single signal.
	Base float64
	// Penalty is subtracted after corroboration and conflict scaling.
	Penalty float64
	// Sources is the number of independent sources agreeing with the chosen value.
	Sources int
	// Candidates is the number of sources that produced any value, agreeing or not.
	Candidates int
	Present    bool
}

// ScoreField turns evidence into a confidence value in [0,1].
func ScoreField(ev FieldEvidence, s heuristics.Scoring) float64 {
	if !ev.Present || ev.Sources <= 0 {
		return 0
	}

	score := ev.Base + s.CorroborationBoost*float64(ev.Sources-1)
	if ceiling := math.Max(s.MaxConfidence, ev.Base); score > ceiling {
		score = ceiling
	}

	if ev.Candidates > ev.Sources {
		score = score*float64(ev.Sources)/float64(ev.Candidates) - s.ConflictPenalty
	}

	return model.Clamp01(score - ev.Penalty)
}

// CalculateConfidence scores every field and combines them. Missing critical
// fields score zero; missing non-critical fields are left out. The overall
// value never exceeds the weakest critical field.
func CalculateConfidence(evidence []FieldEvidence, s heuristics.Scoring, levels model.Levels) model.ConfidenceReport {
	report := model.ConfidenceReport{Fields: make(map[model.Field]model.ConfidenceScore, len(evidence))}

	byField := make(map[model.Field]FieldEvidence, len(evidence))
	for _, ev := range evidence {
		byField[ev.Field] = ev
	}

	var rationale []string
	criticalMin := 1.0
	weakest := model.Field("")
	for _, f := range model.CriticalFields {
		ev, ok := byField[f]
		score := 0.0
		notes := []string{fmt.Sprintf("no evidence for %s", f)}
		if ok && ev.Present {
			score = ScoreField(ev, s)
			notes = ev.Notes
		}
		report.Fields[f] = scoreOf(score, notes, levels)
		if score < criticalMin {
			criticalMin = score
			weakest = f
		}
	}

	var weighted, totalWeight float64
	for _, f := range []model.Field{model.FieldGusset, model.FieldMaterials, model.FieldFeatures} {
		ev, ok := byField[f]
		if !ok || !ev.Present {
			continue
		}
		score := ScoreField(ev, s)
		report.Fields[f] = scoreOf(score, ev.Notes, levels)
		w := s.Weight(f)
		weighted += score * w
		totalWeight += w
	}

	nonCritical := criticalMin
	if totalWeight > 0 {
		nonCritical = math.Min(weighted/totalWeight, criticalMin)
	}

	overall := model.Clamp01(s.CriticalWeight*criticalMin + (1-s.CriticalWeight)*nonCritical)
	if weakest != "" {
		rationale = append(rationale, fmt.Sprintf("limited by %s (%.2f)", weakest, criticalMin))
	}
	for _, f := range model.CriticalFields {
		if sc := report.Fields[f]; sc.Level == model.ConfidenceLow {
			rationale = append(rationale, fmt.Sprintf("%s confidence is low", f))
		}
	}

	report.Overall = scoreOf(overall, rationale, levels)
	return report
}

func scoreOf(v float64, notes []string, levels model.Levels) model.ConfidenceScore {
	v = round3(model.Clamp01(v))
	return model.ConfidenceScore{
		Value:     v,
		Level:     levels.Classify(v),
		Rationale: append([]string(nil), notes...),
	}
}

// round3 rounds to three decimals so equal evidence always prints the same.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
