package extractor

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/Veraticus/pouchspec/internal/model"
)

// signal is one independent piece of text evidence: a layer name, a text
// element or an artboard. Label is the normalized name of the layer that
// owns a text element.
type signal struct {
	Source string
	Raw    string
	Norm   string
	Label  string
}

// collectSignals flattens the layer tree depth-first. Source ids derive from
// layer ids and names, never from sibling positions.
func collectSignals(layers []model.Layer) []signal {
	var out []signal
	for i := range layers {
		walkLayer(&layers[i], "", &out)
	}
	sortSignals(out)
	return out
}

func walkLayer(l *model.Layer, parent string, out *[]signal) {
	id := layerKey(l, parent)
	label := normalize(l.Name)
	if name := strings.TrimSpace(l.Name); name != "" {
		*out = append(*out, signal{Source: id, Raw: name, Norm: label})
	}
	for j := range l.Texts {
		content := strings.TrimSpace(l.Texts[j].Content)
		if content == "" {
			continue
		}
		textID := l.Texts[j].ID
		if textID == "" {
			textID = fmt.Sprintf("%s#%s", id, content)
		}
		*out = append(*out, signal{Source: id + "/t:" + textID, Raw: content, Norm: normalize(content), Label: label})
	}
	for k := range l.Children {
		walkLayer(&l.Children[k], id, out)
	}
}

// layerKey identifies a layer by id, or by name and parent when the decoder
// gave it none. Two unnamed id-less siblings collapse into one source.
func layerKey(l *model.Layer, parent string) string {
	if l.ID != "" {
		return "l:" + l.ID
	}
	return parent + "/n:" + l.Name
}

// sortSignals orders signals by source, then text, so downstream
// tie-breaking never depends on layer order.
func sortSignals(s []signal) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Source != s[j].Source {
			return s[i].Source < s[j].Source
		}
		return s[i].Raw < s[j].Raw
	})
}

// normalize lowercases and folds underscores and whitespace runs into a
// single hyphen.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r == '_' || unicode.IsSpace(r) {
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteRune('-')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	return b.String()
}

// distinctSources counts unique source ids.
func distinctSources(sources []string) int {
	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		seen[s] = struct{}{}
	}
	return len(seen)
}

// sortedUnique returns the unique strings in ascending order.
func sortedUnique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// containsWord reports whether kw occurs in text without being glued to an
// ASCII letter on either side. Non-ASCII keywords match anywhere.
func containsWord(text, kw string) bool {
	if kw == "" {
		return false
	}
	for offset := 0; offset <= len(text)-len(kw); {
		i := strings.Index(text[offset:], kw)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(kw)
		if boundaryOK(text, start, end, kw) {
			return true
		}
		offset = start + 1
	}
	return false
}

func boundaryOK(text string, start, end int, kw string) bool {
	if isASCIILetter(kw[0]) && start > 0 && isASCIILetter(text[start-1]) {
		return false
	}
	if isASCIILetter(kw[len(kw)-1]) && end < len(text) && isASCIILetter(text[end]) {
		return false
	}
	return true
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
