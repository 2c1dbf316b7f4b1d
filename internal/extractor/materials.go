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

var (
	materialPrefixRe = regexp.MustCompile(`(?i)^\s*(?:materials?|mat|structure|構成|材質|素材)\s*[:：=]?\s*`)
	materialSplitRe  = regexp.MustCompile(`\s*(?://|/|／|\+)\s*`)

	positionWords = `(?:(outer|surface|外層|表層)|(middle|中間層|中層)|(inner|sealant|内層|シーラント))`
	filmPattern   = `([a-z][a-z-]*?)\s*-?\s*(\d+(?:\.\d+)?)?\s*(?:μm|µm|um|μ|µ|mic|microns?)?`

	stackPartRe  = regexp.MustCompile(`(?i)^(?:` + positionWords + `\s*[:：=-]?\s*)?` + filmPattern + `$`)
	positionalRe = regexp.MustCompile(`(?i)^` + positionWords + `[\s:：=_-]*` + filmPattern + `$`)
)

// MaterialExtraction is the outcome of material stack extraction.
type MaterialExtraction struct {
	Combination string
	Layers      []model.MaterialLayer
	Evidence    FieldEvidence
}

type film struct {
	Material  string
	Position  model.LayerPosition
	Thickness float64
	Known     bool
}

type stackCandidate struct {
	Source    string
	Signature string
	Films     []film
}

// ExtractMaterialLayers reads the laminate from stack annotations such as
// "PET12/AL7/PE80" and from positional labels such as "inner: PE80".
func (e *Extractor) ExtractMaterialLayers(layers []model.Layer) MaterialExtraction {
	return e.extractMaterials(collectSignals(layers))
}

func (e *Extractor) extractMaterials(signals []signal) MaterialExtraction {
	var candidates []stackCandidate
	var positional []film
	var positionalSources []string

	for _, s := range signals {
		raw := strings.TrimSpace(materialPrefixRe.ReplaceAllString(s.Raw, ""))
		if films, ok := e.parseStack(raw); ok {
			candidates = append(candidates, stackCandidate{Source: s.Source, Films: films, Signature: signature(films)})
			continue
		}
		if f, ok := e.parsePositional(raw); ok {
			positional = append(positional, f)
			positionalSources = append(positionalSources, s.Source)
		}
	}

	if len(positional) > 0 {
		films := orderPositional(positional)
		candidates = append(candidates, stackCandidate{
			Source:    "positional:" + strings.Join(sortedUnique(positionalSources), ","),
			Films:     films,
			Signature: signature(films),
		})
	}

	if len(candidates) == 0 {
		return MaterialExtraction{
			Layers: []model.MaterialLayer{},
			Evidence: FieldEvidence{
				Field: model.FieldMaterials,
				Notes: []string{"no material annotation found"},
			},
		}
	}

	groups := make(map[string][]stackCandidate)
	for _, c := range candidates {
		groups[c.Signature] = append(groups[c.Signature], c)
	}
	signatures := make([]string, 0, len(groups))
	for sig := range groups {
		signatures = append(signatures, sig)
	}
	sort.Slice(signatures, func(i, j int) bool {
		a, b := groups[signatures[i]], groups[signatures[j]]
		as, bs := distinctSources(sourcesOf(a)), distinctSources(sourcesOf(b))
		if as != bs {
			return as > bs
		}
		_, ak := e.tables.MatchCombination(codesOf(a[0].Films))
		_, bk := e.tables.MatchCombination(codesOf(b[0].Films))
		if ak != bk {
			return ak
		}
		return signatures[i] < signatures[j]
	})

	chosen := groups[signatures[0]]
	films := chosen[0].Films
	sources := distinctSources(sourcesOf(chosen))
	candidateCount := 0
	for _, g := range groups {
		candidateCount += distinctSources(sourcesOf(g))
	}

	layers := make([]model.MaterialLayer, 0, len(films))
	notes := []string{fmt.Sprintf("stack %s from %d source(s)", signatures[0], sources)}
	var total float64
	for _, f := range films {
		conf, note := e.filmConfidence(f)
		if note != "" {
			notes = append(notes, note)
		}
		total += conf
		desc := ""
		if spec, ok := e.tables.LookupMaterial(f.Material); ok {
			desc = spec.Description
		}
		layers = append(layers, model.MaterialLayer{
			Material:        f.Material,
			ThicknessMicron: f.Thickness,
			Position:        f.Position,
			Known:           f.Known,
			Description:     desc,
			Confidence:      round3(conf),
		})
	}
	base := total / float64(len(films))

	out := MaterialExtraction{Layers: layers}
	if combo, ok := e.tables.MatchCombination(codesOf(films)); ok {
		out.Combination = combo.Name
		base += e.tables.Scoring.CombinationBoost
		notes = append(notes, fmt.Sprintf("matches common combination %s", combo.Name))
	}
	for _, sig := range signatures[1:] {
		notes = append(notes, fmt.Sprintf("conflicting stack %s", sig))
	}

	out.Evidence = FieldEvidence{
		Field:      model.FieldMaterials,
		Present:    true,
		Base:       math.Min(base, 1),
		Sources:    sources,
		Candidates: candidateCount,
		Notes:      notes,
	}
	return out
}

// parseStack splits an annotation into films. At least two parts are needed
// and at least one of them must be a known material.
func (e *Extractor) parseStack(raw string) ([]film, bool) {
	parts := materialSplitRe.Split(raw, -1)
	if len(parts) < 2 {
		return nil, false
	}

	films := make([]film, 0, len(parts))
	known := 0
	for _, p := range parts {
		m := stackPartRe.FindStringSubmatch(strings.TrimSpace(p))
		if m == nil {
			return nil, false
		}
		f := e.resolveFilm(m[4], m[5])
		if f.Known {
			known++
		}
		films = append(films, f)
	}
	if known == 0 {
		return nil, false
	}

	for i := range films {
		switch {
		case i == 0:
			films[i].Position = model.PositionOuter
		case i == len(films)-1:
			films[i].Position = model.PositionInner
		default:
			films[i].Position = model.PositionMiddle
		}
	}
	return films, true
}

func (e *Extractor) parsePositional(raw string) (film, bool) {
	m := positionalRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return film{}, false
	}
	f := e.resolveFilm(m[4], m[5])
	if !f.Known {
		return film{}, false
	}
	switch {
	case m[1] != "":
		f.Position = model.PositionOuter
	case m[2] != "":
		f.Position = model.PositionMiddle
	default:
		f.Position = model.PositionInner
	}
	return f, true
}

func (e *Extractor) resolveFilm(name, thickness string) film {
	code := strings.ToUpper(strings.Trim(name, "-"))
	f := film{Material: code}
	if spec, ok := e.tables.LookupMaterial(code); ok {
		f.Material = spec.Code
		f.Known = true
		f.Thickness = spec.DefaultThickness
	}
	if thickness != "" {
		if v, err := strconv.ParseFloat(thickness, 64); err == nil {
			f.Thickness = v
		}
	}
	return f
}

// filmConfidence scores a single film, penalising gauges outside the usual range.
func (e *Extractor) filmConfidence(f film) (float64, string) {
	s := e.tables.Scoring
	if !f.Known {
		return s.UnknownMaterial, fmt.Sprintf("unknown material %s", f.Material)
	}
	spec, _ := e.tables.LookupMaterial(f.Material)
	var distance float64
	switch {
	case f.Thickness < spec.MinThickness && spec.MinThickness > 0:
		distance = (spec.MinThickness - f.Thickness) / spec.MinThickness
	case f.Thickness > spec.MaxThickness && spec.MaxThickness > 0:
		distance = (f.Thickness - spec.MaxThickness) / spec.MaxThickness
	}
	if distance == 0 {
		return s.KnownMaterial, ""
	}
	distance = math.Min(distance, 1)
	return model.Clamp01(s.KnownMaterial - s.ThicknessPenalty*distance),
		fmt.Sprintf("%s %gμm outside usual %g-%gμm", f.Material, f.Thickness, spec.MinThickness, spec.MaxThickness)
}

// orderPositional sorts positional films outer, middle, inner; films at the
// same position are ordered by material code.
func orderPositional(films []film) []film {
	rank := map[model.LayerPosition]int{model.PositionOuter: 0, model.PositionMiddle: 1, model.PositionInner: 2}
	out := append([]film(nil), films...)
	sort.SliceStable(out, func(i, j int) bool {
		if rank[out[i].Position] != rank[out[j].Position] {
			return rank[out[i].Position] < rank[out[j].Position]
		}
		if out[i].Material != out[j].Material {
			return out[i].Material < out[j].Material
		}
		return out[i].Thickness < out[j].Thickness
	})
	return out
}

func signature(films []film) string {
	parts := make([]string, len(films))
	for i, f := range films {
		parts[i] = f.Material + strconv.FormatFloat(f.Thickness, 'f', -1, 64)
	}
	return strings.Join(parts, "/")
}

func codesOf(films []film) []string {
	codes := make([]string, len(films))
	for i, f := range films {
		codes[i] = f.Material
	}
	return codes
}

func sourcesOf(stacks []stackCandidate) []string {
	out := make([]string, len(stacks))
	for i, s := range stacks {
		out[i] = s.Source
	}
	return out
}
