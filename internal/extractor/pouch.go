package extractor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/pouchspec/internal/heuristics"
	"github.com/Veraticus/pouchspec/internal/model"
)

// PouchDetection is the outcome of pouch type detection.
type PouchDetection struct {
	Type        model.PouchType
	Matched     []string
	Rivals      []model.PouchType
	Evidence    FieldEvidence
	Confidence  float64
	Specificity int
	Sources     int
}

type pouchTally struct {
	keywords    []string
	sources     []string
	specificity int
	confidence  float64
}

// DetectPouchType infers the pouch type from layer names and texts.
func (e *Extractor) DetectPouchType(layers []model.Layer) PouchDetection {
	return e.detectPouchType(collectSignals(layers))
}

func (e *Extractor) detectPouchType(signals []signal) PouchDetection {
	tallies := make(map[model.PouchType]*pouchTally)

	for _, s := range signals {
		for _, kw := range e.matchKeywords(s.Norm) {
			t := tallies[kw.Type]
			if t == nil {
				t = &pouchTally{}
				tallies[kw.Type] = t
			}
			switch {
			case kw.Specificity > t.specificity:
				t.specificity = kw.Specificity
				t.confidence = kw.Confidence
			case kw.Specificity == t.specificity && kw.Confidence > t.confidence:
				t.confidence = kw.Confidence
			}
			t.keywords = append(t.keywords, kw.Keyword)
			t.sources = append(t.sources, s.Source)
		}
	}

	if len(tallies) == 0 {
		return PouchDetection{
			Type: model.PouchTypeUnknown,
			Evidence: FieldEvidence{
				Field: model.FieldPouchType,
				Notes: []string{"no pouch type keyword found"},
			},
		}
	}

	types := make([]model.PouchType, 0, len(tallies))
	for pt := range tallies {
		types = append(types, pt)
	}
	sort.Slice(types, func(i, j int) bool {
		a, b := tallies[types[i]], tallies[types[j]]
		if a.specificity != b.specificity {
			return a.specificity > b.specificity
		}
		as, bs := distinctSources(a.sources), distinctSources(b.sources)
		if as != bs {
			return as > bs
		}
		return types[i].Rank() < types[j].Rank()
	})

	winner := types[0]
	w := tallies[winner]
	sources := distinctSources(w.sources)
	keywords := sortedUnique(w.keywords)

	var rivals []model.PouchType
	var penalty float64
	notes := []string{fmt.Sprintf("matched %s", strings.Join(keywords, ", "))}
	for _, pt := range types[1:] {
		rivals = append(rivals, pt)
		if tallies[pt].specificity == w.specificity {
			penalty += e.tables.Scoring.RivalPenalty
			notes = append(notes, fmt.Sprintf("conflicting keyword for %s", pt))
		}
	}
	sort.Slice(rivals, func(i, j int) bool { return rivals[i].Rank() < rivals[j].Rank() })

	if sources > 1 {
		notes = append(notes, fmt.Sprintf("corroborated by %d sources", sources))
	}

	ev := FieldEvidence{
		Field:      model.FieldPouchType,
		Present:    true,
		Base:       w.confidence,
		Sources:    sources,
		Candidates: sources,
		Penalty:    penalty,
		Notes:      notes,
	}

	return PouchDetection{
		Type:        winner,
		Confidence:  round3(ScoreField(ev, e.tables.Scoring)),
		Specificity: w.specificity,
		Sources:     sources,
		Matched:     keywords,
		Rivals:      rivals,
		Evidence:    ev,
	}
}

// matchKeywords returns the keywords found in text, dropping any keyword that
// is part of a longer keyword also found in the same text.
func (e *Extractor) matchKeywords(text string) []heuristics.PouchKeyword {
	var found []heuristics.PouchKeyword
	for _, kw := range e.keywords {
		if containsWord(text, kw.Keyword) {
			found = append(found, kw)
		}
	}

	out := found[:0:0]
	for _, kw := range found {
		subsumed := false
		for _, other := range found {
			if len(other.Keyword) > len(kw.Keyword) && strings.Contains(other.Keyword, kw.Keyword) {
				subsumed = true
				break
			}
		}
		if !subsumed {
			out = append(out, kw)
		}
	}
	return out
}
