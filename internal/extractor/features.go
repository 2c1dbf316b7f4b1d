package extractor

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/Veraticus/pouchspec/internal/model"
)

var (
	notchTypeRe     = regexp.MustCompile(`(?:^|[^a-z])(v|u|i|round|straight|triangle|easy-tear)-?notch|notch-(v|u|i|round|straight|triangle)(?:$|[^a-z])`)
	notchSizeRe     = regexp.MustCompile(`notch[-:=：]*(\d+(?:\.\d+)?)mm`)
	positionRe      = regexp.MustCompile(`(?:^|[^a-z])(top-center|top|bottom|left|right|both-sides|both|side|center|上部|下部|左右|両側)(?:$|[^a-z])`)
	holeDiameterRe  = regexp.MustCompile(`(?:φ|ø|⌀|dia-?)?(\d+(?:\.\d+)?)-?mm`)
	holeTypeRe      = regexp.MustCompile(`(?:^|[^a-z])(euro|round|slot|oval|d-shape|butterfly)(?:$|[^a-z])`)
	cornerRadiusVal = regexp.MustCompile(`(?:^|[^a-z])(?:corner-radius|corner-r|radius|角r|r)[-:=：]*(\d+(?:\.\d+)?)(?:mm)?(?:$|[^a-z0-9])`)
)

// FeatureExtraction is the outcome of post-processing feature extraction.
type FeatureExtraction struct {
	Conflicts []model.Feature
	Evidence  FieldEvidence
	Features  model.ProcessingFeatures
}

type featureTally struct {
	positive []string
	negative []string
	texts    []string
}

// ExtractProcessingFeatures reads every post-processing flag. Each flag is
// set explicitly; a feature with no marker is false.
func (e *Extractor) ExtractProcessingFeatures(layers []model.Layer) FeatureExtraction {
	return e.extractFeatures(collectSignals(layers))
}

func (e *Extractor) extractFeatures(signals []signal) FeatureExtraction {
	tallies := make(map[model.Feature]*featureTally, len(model.AllFeatures))
	for _, f := range model.AllFeatures {
		tallies[f] = &featureTally{}
	}

	var sealWidths, radii []float64
	for _, s := range signals {
		cornerNegated := false
		for _, f := range model.AllFeatures {
			present, absent := e.markerPolarity(f, s.Norm)
			t := tallies[f]
			if absent {
				t.negative = append(t.negative, s.Source)
				if f == model.FeatureCornerRound {
					cornerNegated = true
				}
			}
			if present {
				t.positive = append(t.positive, s.Source)
				t.texts = append(t.texts, s.Norm)
			}
		}

		if m := sealWidthRe.FindStringSubmatch(s.Norm); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				sealWidths = append(sealWidths, v)
			}
		}
		if !cornerNegated {
			if m := cornerRadiusVal.FindStringSubmatch(s.Norm); m != nil {
				if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
					radii = append(radii, v)
					t := tallies[model.FeatureCornerRound]
					t.positive = append(t.positive, s.Source)
				}
			}
		}
	}

	out := FeatureExtraction{}
	notes := []string{}
	for _, f := range model.AllFeatures {
		t := tallies[f]
		pos, neg := distinctSources(t.positive), distinctSources(t.negative)
		value := pos > 0
		out.Features.Set(f, value)
		if pos > 0 && neg > 0 {
			out.Conflicts = append(out.Conflicts, f)
			notes = append(notes, fmt.Sprintf("%s marked both present (%d) and absent (%d)", f, pos, neg))
		} else if value {
			notes = append(notes, fmt.Sprintf("%s from %d source(s)", f, pos))
		}
	}

	if out.Features.Notch.Present {
		out.Features.Notch = notchDetails(tallies[model.FeatureNotch].texts)
	}
	if out.Features.HangingHole.Present {
		out.Features.HangingHole = e.holeDetails(tallies[model.FeatureHangingHole].texts)
	}
	if out.Features.CornerRound && len(radii) > 0 {
		out.Features.CornerRadiusMM = smallest(radii)
	}
	if len(sealWidths) > 0 {
		out.Features.SealWidthMM = smallest(sealWidths)
	}

	out.Evidence = FieldEvidence{
		Field:      model.FieldFeatures,
		Present:    true,
		Base:       e.tables.Scoring.FeatureBase,
		Sources:    1,
		Candidates: 1,
		Penalty:    e.tables.Scoring.ConflictPenalty * float64(len(out.Conflicts)),
		Notes:      notes,
	}
	return out
}

// markerPolarity reports whether text marks f as present, absent, or both.
// A negation word applies only to the marker it is written against.
func (e *Extractor) markerPolarity(f model.Feature, text string) (present, absent bool) {
	for _, sp := range e.markerSpans(f, text) {
		if e.negatedAt(text, sp[0], sp[1]) {
			absent = true
		} else {
			present = true
		}
	}
	return present, absent
}

// markerSpans finds every occurrence of f's markers, dropping occurrences
// that lie inside a longer marker of the same feature (hang in hang-hole).
func (e *Extractor) markerSpans(f model.Feature, text string) [][2]int {
	var found [][2]int
	for _, marker := range e.tables.FeatureMarkers[f] {
		if marker == "" {
			continue
		}
		for offset := 0; offset <= len(text)-len(marker); {
			i := strings.Index(text[offset:], marker)
			if i < 0 {
				break
			}
			start := offset + i
			end := start + len(marker)
			if boundaryOK(text, start, end, marker) {
				found = append(found, [2]int{start, end})
			}
			offset = start + 1
		}
	}

	out := found[:0:0]
	for i, sp := range found {
		inner := false
		for j, other := range found {
			if i == j || other[0] > sp[0] || other[1] < sp[1] {
				continue
			}
			if other[1]-other[0] > sp[1]-sp[0] || (other == sp && j < i) {
				inner = true
				break
			}
		}
		if !inner {
			out = append(out, sp)
		}
	}
	return out
}

// negatedAt reports whether the marker at text[start:end] carries a
// negation prefix (no-zipper) or suffix (zipper-none, ジッパーなし). A
// trailing word that is also a prefix of the next marker belongs to that
// marker instead: in zipper-no-notch only the notch is absent.
func (e *Extractor) negatedAt(text string, start, end int) bool {
	neg := e.tables.Negations

	before := text[:start]
	for _, p := range neg.Prefixes {
		tok := p + "-"
		if !strings.HasSuffix(before, tok) {
			continue
		}
		if head := before[:len(before)-len(tok)]; head == "" || !isASCIILetter(head[len(head)-1]) {
			return true
		}
	}

	after := text[end:]
	for _, sfx := range neg.Suffixes {
		rest := after
		if isASCIILetter(sfx[0]) {
			if !strings.HasPrefix(rest, "-") {
				continue
			}
			rest = rest[1:]
		} else {
			rest = strings.TrimPrefix(rest, "-")
		}
		if !strings.HasPrefix(rest, sfx) {
			continue
		}
		tail := rest[len(sfx):]
		if isASCIILetter(sfx[len(sfx)-1]) && tail != "" && isASCIILetter(tail[0]) {
			continue
		}
		if strings.HasPrefix(tail, "-") && slices.Contains(neg.Prefixes, sfx) && e.startsWithMarker(tail[1:]) {
			continue
		}
		return true
	}
	return false
}

func (e *Extractor) startsWithMarker(text string) bool {
	for _, markers := range e.tables.FeatureMarkers {
		for _, m := range markers {
			if m != "" && strings.HasPrefix(text, m) && boundaryOK(text, 0, len(m), m) {
				return true
			}
		}
	}
	return false
}

// notchDetails reads type, position and size from the first text that
// carries each detail. texts arrive in signal order, which is sorted.
func notchDetails(texts []string) model.NotchInfo {
	info := model.NotchInfo{Present: true, Type: "v"}
	typeSet, posSet, sizeSet := false, false, false
	for _, t := range texts {
		if m := notchTypeRe.FindStringSubmatch(t); m != nil && !typeSet {
			info.Type = firstNonEmpty(m[1], m[2])
			typeSet = true
		}
		if m := positionRe.FindStringSubmatch(t); m != nil && !posSet {
			info.Position = m[1]
			posSet = true
		}
		if m := notchSizeRe.FindStringSubmatch(t); m != nil && !sizeSet {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				info.SizeMM = v
				sizeSet = true
			}
		}
	}
	return info
}

func (e *Extractor) holeDetails(texts []string) model.HangingHoleInfo {
	info := model.HangingHoleInfo{
		Present:    true,
		Type:       "round",
		Position:   "top-center",
		DiameterMM: e.tables.DefaultHoleDiameterMM,
	}
	typeSet, posSet, diaSet := false, false, false
	for _, t := range texts {
		if m := holeTypeRe.FindStringSubmatch(t); m != nil && !typeSet {
			info.Type = m[1]
			typeSet = true
		}
		if m := positionRe.FindStringSubmatch(t); m != nil && !posSet {
			info.Position = m[1]
			posSet = true
		}
		if m := holeDiameterRe.FindStringSubmatch(t); m != nil && !diaSet {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
				info.DiameterMM = v
				diaSet = true
			}
		}
	}
	if info.Type == "euro" && !diaSet {
		info.DiameterMM = 0
	}
	return info
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func smallest(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return sorted[0]
}

// featureNames renders features for messages.
func featureNames(features []model.Feature) string {
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
