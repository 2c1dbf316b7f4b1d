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
	numberPattern = `(\d+(?:\.\d+)?)`
	unitPattern   = `(mm|cm|inch|in|pt)?`

	widthRe  = regexp.MustCompile(`(?:^|[^a-z])(?:width|w|横幅|幅|横)[-:=：]*` + numberPattern + unitPattern)
	heightRe = regexp.MustCompile(`(?:^|[^a-z])(?:height|h|高さ|縦)[-:=：]*` + numberPattern + unitPattern)
	gussetRe = regexp.MustCompile(`(?:^|[^a-z])(?:gusset|g|底マチ|マチ)[-:=：]*` + numberPattern + unitPattern)

	combinedRe = regexp.MustCompile(
		`(?:w|width)?[-:=]*` + numberPattern + `(?:mm)?-?[x×*]-?` +
			`(?:h|height)?[-:=]*` + numberPattern + `(?:mm)?` +
			`(?:-?[x×*]-?(?:g|gusset)?[-:=]*` + numberPattern + `)?` + unitPattern)

	// A bare reading such as "100mm" is a dimension only when its layer is
	// named for one.
	bareValueRe   = regexp.MustCompile(`^` + numberPattern + `-?` + unitPattern + `$`)
	widthLabelRe  = regexp.MustCompile(`^(?:width|w|横幅|幅|横)$`)
	heightLabelRe = regexp.MustCompile(`^(?:height|h|高さ|縦)$`)
	gussetLabelRe = regexp.MustCompile(`^(?:gusset|g|底マチ|マチ)$`)

	// Seal widths and corner radii look like labeled dimensions and are
	// removed before dimension parsing.
	sealWidthRe    = regexp.MustCompile(`(?:seal(?:-width)?|シール幅)[-:=：]*(\d+(?:\.\d+)?)(?:mm)?`)
	cornerRadiusRe = regexp.MustCompile(`(?:^|[^a-z])(?:corner-radius|corner-r|radius|角r|r)[-:=：]*(\d+(?:\.\d+)?)(?:mm)?`)
)

// Unit conversion factors to millimetres.
const (
	mmPerCM    = 10.0
	mmPerInch  = 25.4
	mmPerPoint = 0.3528
)

// DimensionExtraction is the outcome of dimension extraction.
type DimensionExtraction struct {
	Rejected   []string
	Width      FieldEvidence
	Height     FieldEvidence
	Gusset     FieldEvidence
	Dimensions model.Dimensions
}

type dimCandidate struct {
	Source string
	Value  float64
}

type dimCluster struct {
	values  []dimCandidate
	sources int
	value   float64
}

// ExtractDimensions reads width, height and gusset in millimetres. Tolerance
// for treating two readings as the same value comes from the pouch type.
func (e *Extractor) ExtractDimensions(layers []model.Layer, artboards []model.Artboard, pt model.PouchType) DimensionExtraction {
	return e.extractDimensions(collectSignals(layers), artboards, pt)
}

func (e *Extractor) extractDimensions(signals []signal, artboards []model.Artboard, pt model.PouchType) DimensionExtraction {
	var width, height, gusset []dimCandidate

	for _, s := range signals {
		text := sealWidthRe.ReplaceAllString(s.Norm, " ")
		text = cornerRadiusRe.ReplaceAllString(text, " ")

		for _, m := range combinedRe.FindAllStringSubmatch(text, -1) {
			unit := m[4]
			width = appendCandidate(width, s.Source, m[1], unit)
			height = appendCandidate(height, s.Source, m[2], unit)
			if m[3] != "" {
				gusset = appendCandidate(gusset, s.Source, m[3], unit)
			}
		}
		for _, m := range widthRe.FindAllStringSubmatch(text, -1) {
			width = appendCandidate(width, s.Source, m[1], m[2])
		}
		for _, m := range heightRe.FindAllStringSubmatch(text, -1) {
			height = appendCandidate(height, s.Source, m[1], m[2])
		}
		for _, m := range gussetRe.FindAllStringSubmatch(text, -1) {
			gusset = appendCandidate(gusset, s.Source, m[1], m[2])
		}

		if m := bareValueRe.FindStringSubmatch(s.Norm); m != nil && s.Label != "" {
			switch {
			case widthLabelRe.MatchString(s.Label):
				width = appendCandidate(width, s.Source, m[1], m[2])
			case heightLabelRe.MatchString(s.Label):
				height = appendCandidate(height, s.Source, m[1], m[2])
			case gussetLabelRe.MatchString(s.Label):
				gusset = appendCandidate(gusset, s.Source, m[1], m[2])
			}
		}
	}

	out := DimensionExtraction{}
	p := e.tables.Plausibility
	tol := e.tables.Tolerance(pt)

	width, rejected := filterPlausible(model.FieldWidth, width, p.MinMM, p.MaxMM)
	out.Rejected = append(out.Rejected, rejected...)
	height, rejected = filterPlausible(model.FieldHeight, height, p.MinMM, p.MaxMM)
	out.Rejected = append(out.Rejected, rejected...)
	gusset, rejected = filterPlausible(model.FieldGusset, gusset, p.MinGussetMM, p.MaxGussetMM)
	out.Rejected = append(out.Rejected, rejected...)

	base := e.tables.Scoring.DimensionBase
	fallbackBase := base * 0.8
	if len(width) == 0 || len(height) == 0 {
		aw, ah := artboardCandidates(artboards)
		aw, _ = filterPlausible(model.FieldWidth, aw, p.MinMM, p.MaxMM)
		ah, _ = filterPlausible(model.FieldHeight, ah, p.MinMM, p.MaxMM)
		if len(width) == 0 && len(aw) > 0 {
			width = aw
			out.Rejected = append(out.Rejected, "width taken from artboard")
		}
		if len(height) == 0 && len(ah) > 0 {
			height = ah
			out.Rejected = append(out.Rejected, "height taken from artboard")
		}
	}

	var wv, hv, gv float64
	wv, out.Width = chooseDimension(model.FieldWidth, width, tol, base, rejectedFor(model.FieldWidth, out.Rejected))
	hv, out.Height = chooseDimension(model.FieldHeight, height, tol, base, rejectedFor(model.FieldHeight, out.Rejected))
	gv, out.Gusset = chooseDimension(model.FieldGusset, gusset, tol, base, rejectedFor(model.FieldGusset, out.Rejected))

	if containsString(out.Rejected, "width taken from artboard") {
		out.Width.Base = fallbackBase
	}
	if containsString(out.Rejected, "height taken from artboard") {
		out.Height.Base = fallbackBase
	}

	conf := 0.0
	if out.Width.Present && out.Height.Present {
		conf = math.Min(ScoreField(out.Width, e.tables.Scoring), ScoreField(out.Height, e.tables.Scoring))
	}

	out.Dimensions = model.Dimensions{
		Width:      wv,
		Height:     hv,
		Gusset:     gv,
		Unit:       model.UnitMillimetre,
		Confidence: round3(conf),
	}
	return out
}

func appendCandidate(list []dimCandidate, source, number, unit string) []dimCandidate {
	v, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return list
	}
	mm := roundTenth(toMillimetres(v, unit))
	for _, c := range list {
		if c.Source == source && c.Value == mm {
			return list
		}
	}
	return append(list, dimCandidate{Source: source, Value: mm})
}

func toMillimetres(v float64, unit string) float64 {
	switch unit {
	case "cm":
		return v * mmPerCM
	case "in", "inch":
		return v * mmPerInch
	case "pt":
		return v * mmPerPoint
	default:
		return v
	}
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func artboardCandidates(artboards []model.Artboard) (width, height []dimCandidate) {
	for _, a := range artboards {
		unit := strings.ToLower(a.Unit)
		switch unit {
		case "", "px", "pt", "points":
			unit = "pt"
		case "millimeters", "millimetres":
			unit = "mm"
		case "centimeters", "centimetres":
			unit = "cm"
		case "inches":
			unit = "in"
		}
		source := fmt.Sprintf("a:%s:%gx%g", a.Name, a.Width, a.Height)
		if a.Width > 0 {
			width = append(width, dimCandidate{Source: source, Value: roundTenth(toMillimetres(a.Width, unit))})
		}
		if a.Height > 0 {
			height = append(height, dimCandidate{Source: source, Value: roundTenth(toMillimetres(a.Height, unit))})
		}
	}
	return width, height
}

func filterPlausible(field model.Field, in []dimCandidate, minMM, maxMM float64) (kept []dimCandidate, rejected []string) {
	for _, c := range in {
		if c.Value < minMM || c.Value > maxMM {
			rejected = append(rejected, fmt.Sprintf("%s %gmm outside plausible range %g-%gmm", field, c.Value, minMM, maxMM))
			continue
		}
		kept = append(kept, c)
	}
	sort.Strings(rejected)
	return kept, rejected
}

func rejectedFor(field model.Field, notes []string) []string {
	var out []string
	prefix := string(field) + " "
	for _, n := range notes {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out
}

// chooseDimension clusters candidates within tol and picks the cluster with
// the most distinct sources, then the smallest value.
func chooseDimension(field model.Field, candidates []dimCandidate, tol, base float64, notes []string) (float64, FieldEvidence) {
	ev := FieldEvidence{Field: field, Notes: append([]string(nil), notes...)}
	if len(candidates) == 0 {
		ev.Notes = append(ev.Notes, fmt.Sprintf("no %s found", field))
		return 0, ev
	}

	clusters := clusterCandidates(candidates, tol)
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].sources != clusters[j].sources {
			return clusters[i].sources > clusters[j].sources
		}
		return clusters[i].value < clusters[j].value
	})

	total := 0
	for _, c := range clusters {
		total += c.sources
	}
	best := clusters[0]

	ev.Present = true
	ev.Base = base
	ev.Sources = best.sources
	ev.Candidates = total
	ev.Notes = append(ev.Notes, fmt.Sprintf("%s %gmm from %d source(s)", field, best.value, best.sources))
	for _, c := range clusters[1:] {
		ev.Notes = append(ev.Notes, fmt.Sprintf("conflicting %s %gmm from %d source(s)", field, c.value, c.sources))
	}
	return best.value, ev
}

func clusterCandidates(candidates []dimCandidate, tol float64) []dimCluster {
	sorted := append([]dimCandidate(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value < sorted[j].Value
		}
		return sorted[i].Source < sorted[j].Source
	})

	var clusters []dimCluster
	for _, c := range sorted {
		n := len(clusters)
		if n > 0 && c.Value-clusters[n-1].values[0].Value <= tol {
			clusters[n-1].values = append(clusters[n-1].values, c)
			continue
		}
		clusters = append(clusters, dimCluster{values: []dimCandidate{c}})
	}

	for i := range clusters {
		clusters[i].sources, clusters[i].value = summarizeCluster(clusters[i].values)
	}
	return clusters
}

// summarizeCluster returns the cluster's distinct source count and its
// representative value: the value reported by the most sources, smallest on ties.
func summarizeCluster(values []dimCandidate) (int, float64) {
	all := make([]string, 0, len(values))
	byValue := make(map[float64][]string)
	for _, v := range values {
		all = append(all, v.Source)
		byValue[v.Value] = append(byValue[v.Value], v.Source)
	}

	rep, repCount := 0.0, -1
	for value, sources := range byValue {
		n := distinctSources(sources)
		if n > repCount || (n == repCount && value < rep) {
			rep, repCount = value, n
		}
	}
	return distinctSources(all), rep
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
