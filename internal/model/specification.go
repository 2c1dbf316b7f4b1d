package model

import (
	"slices"
	"time"
)

// PouchType is the structural family of a pouch.
type PouchType string

// Pouch type constants. The order of AllPouchTypes is used to break ties.
const (
	PouchFlat3Side   PouchType = "flat_3_side"
	PouchStandUp     PouchType = "stand_up"
	PouchBox         PouchType = "box"
	PouchSpout       PouchType = "spout_pouch"
	PouchRollFilm    PouchType = "roll_film"
	PouchGusset      PouchType = "gusset"
	PouchFlatWithZip PouchType = "flat_with_zip"
	PouchTypeUnknown PouchType = "unknown"
)

// AllPouchTypes lists the known pouch types, unknown last.
var AllPouchTypes = []PouchType{
	PouchStandUp,
	PouchFlat3Side,
	PouchFlatWithZip,
	PouchGusset,
	PouchBox,
	PouchSpout,
	PouchRollFilm,
	PouchTypeUnknown,
}

// ParsePouchType maps a string to a PouchType, falling back to unknown.
func ParsePouchType(s string) PouchType {
	for _, pt := range AllPouchTypes {
		if string(pt) == s {
			return pt
		}
	}
	return PouchTypeUnknown
}

// Rank returns the position of the type in AllPouchTypes.
func (p PouchType) Rank() int {
	if i := slices.Index(AllPouchTypes, p); i >= 0 {
		return i
	}
	return len(AllPouchTypes)
}

// RequiresGusset reports whether the pouch family is normally built with a gusset.
func (p PouchType) RequiresGusset() bool {
	switch p {
	case PouchStandUp, PouchGusset, PouchBox:
		return true
	default:
		return false
	}
}

// LayerPosition is the location of a film in the laminate.
type LayerPosition string

// Layer positions, outer to inner.
const (
	PositionOuter  LayerPosition = "outer"
	PositionMiddle LayerPosition = "middle"
	PositionInner  LayerPosition = "inner"
)

// Dimensions are always expressed in millimetres. A zero Gusset means no
// gusset was found.
type Dimensions struct {
	Unit       string  `json:"unit"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Gusset     float64 `json:"gusset,omitempty"`
	Confidence float64 `json:"confidence"`
}

// UnitMillimetre is the only unit dimensions are reported in.
const UnitMillimetre = "mm"

// MaterialLayer is one film of the laminate.
type MaterialLayer struct {
	Material        string        `json:"material"`
	Position        LayerPosition `json:"position"`
	Description     string        `json:"description,omitempty"`
	ThicknessMicron float64       `json:"thicknessMicron"`
	Confidence      float64       `json:"confidence"`
	Known           bool          `json:"known"`
}

// NotchInfo describes the tear notch.
type NotchInfo struct {
	Type     string  `json:"type,omitempty"`
	Position string  `json:"position,omitempty"`
	SizeMM   float64 `json:"sizeMm,omitempty"`
	Present  bool    `json:"present"`
}

// HangingHoleInfo describes the hang hole punched into the pouch.
type HangingHoleInfo struct {
	Type       string  `json:"type,omitempty"`
	Position   string  `json:"position,omitempty"`
	DiameterMM float64 `json:"diameterMm,omitempty"`
	Present    bool    `json:"present"`
}

// ProcessingFeatures are the post-processing options. Every flag is always
// set to an explicit value.
type ProcessingFeatures struct {
	Notch          NotchInfo       `json:"notch"`
	HangingHole    HangingHoleInfo `json:"hangingHole"`
	CornerRadiusMM float64         `json:"cornerRadiusMm,omitempty"`
	SealWidthMM    float64         `json:"sealWidthMm,omitempty"`
	Zipper         bool            `json:"zipper"`
	Valve          bool            `json:"valve"`
	Spout          bool            `json:"spout"`
	CornerRound    bool            `json:"cornerRound"`
	Slit           bool            `json:"slit"`
	DieCut         bool            `json:"dieCut"`
	PunchHole      bool            `json:"punchHole"`
	Embossing      bool            `json:"embossing"`
	HotStamping    bool            `json:"hotStamping"`
}

// Feature names a post-processing flag.
type Feature string

// Feature constants.
const (
	FeatureNotch       Feature = "notch"
	FeatureHangingHole Feature = "hanging_hole"
	FeatureZipper      Feature = "zipper"
	FeatureValve       Feature = "valve"
	FeatureSpout       Feature = "spout"
	FeatureCornerRound Feature = "corner_round"
	FeatureSlit        Feature = "slit"
	FeatureDieCut      Feature = "die_cut"
	FeaturePunchHole   Feature = "punch_hole"
	FeatureEmbossing   Feature = "embossing"
	FeatureHotStamping Feature = "hot_stamping"
)

// AllFeatures lists every feature in a stable order.
var AllFeatures = []Feature{
	FeatureNotch,
	FeatureHangingHole,
	FeatureZipper,
	FeatureValve,
	FeatureSpout,
	FeatureCornerRound,
	FeatureSlit,
	FeatureDieCut,
	FeaturePunchHole,
	FeatureEmbossing,
	FeatureHotStamping,
}

// Has reports the flag for f.
func (p ProcessingFeatures) Has(f Feature) bool {
	switch f {
	case FeatureNotch:
		return p.Notch.Present
	case FeatureHangingHole:
		return p.HangingHole.Present
	case FeatureZipper:
		return p.Zipper
	case FeatureValve:
		return p.Valve
	case FeatureSpout:
		return p.Spout
	case FeatureCornerRound:
		return p.CornerRound
	case FeatureSlit:
		return p.Slit
	case FeatureDieCut:
		return p.DieCut
	case FeaturePunchHole:
		return p.PunchHole
	case FeatureEmbossing:
		return p.Embossing
	case FeatureHotStamping:
		return p.HotStamping
	default:
		return false
	}
}

// Set assigns the flag for f. Unknown features are ignored.
func (p *ProcessingFeatures) Set(f Feature, v bool) {
	switch f {
	case FeatureNotch:
		p.Notch.Present = v
	case FeatureHangingHole:
		p.HangingHole.Present = v
	case FeatureZipper:
		p.Zipper = v
	case FeatureValve:
		p.Valve = v
	case FeatureSpout:
		p.Spout = v
	case FeatureCornerRound:
		p.CornerRound = v
	case FeatureSlit:
		p.Slit = v
	case FeatureDieCut:
		p.DieCut = v
	case FeaturePunchHole:
		p.PunchHole = v
	case FeatureEmbossing:
		p.Embossing = v
	case FeatureHotStamping:
		p.HotStamping = v
	}
}

// ProductSpecifications is the structured result of an extraction.
type ProductSpecifications struct {
	ExtractedAt        time.Time          `json:"extractedAt"`
	SourceFileID       string             `json:"sourceFileId"`
	PouchType          PouchType          `json:"pouchType"`
	OverallConfidence  ConfidenceScore    `json:"overallConfidence"`
	MaterialLayers     []MaterialLayer    `json:"materialLayers"`
	Dimensions         Dimensions         `json:"dimensions"`
	ProcessingFeatures ProcessingFeatures `json:"processingFeatures"`
	SourceVersion      int                `json:"sourceVersion"`
}

// Clone returns a deep copy.
func (s ProductSpecifications) Clone() ProductSpecifications {
	out := s
	out.MaterialLayers = slices.Clone(s.MaterialLayers)
	out.OverallConfidence = s.OverallConfidence.Clone()
	return out
}

// TotalThickness sums the thickness of every material layer.
func (s ProductSpecifications) TotalThickness() float64 {
	var total float64
	for _, l := range s.MaterialLayers {
		total += l.ThicknessMicron
	}
	return total
}
