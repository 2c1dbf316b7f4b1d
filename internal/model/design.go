// Package model defines the core domain models used throughout the application.
package model

// DesignFile is the decoded metadata of a packaging design file.
// It is produced by an external decoder and never modified here.
type DesignFile struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Layers    []Layer    `json:"layers"`
	Artboards []Artboard `json:"artboards,omitempty"`
	Version   int        `json:"version,omitempty"`
}

// Layer is one node of the design file's layer tree.
type Layer struct {
	ID       string        `json:"id,omitempty"`
	Name     string        `json:"name"`
	Type     string        `json:"type,omitempty"`
	Children []Layer       `json:"children,omitempty"`
	Texts    []TextElement `json:"texts,omitempty"`
	Visible  bool          `json:"visible,omitempty"`
	Locked   bool          `json:"locked,omitempty"`
}

// TextElement is a text frame attached to a layer.
type TextElement struct {
	ID       string   `json:"id,omitempty"`
	Content  string   `json:"content"`
	Font     string   `json:"font,omitempty"`
	Position Position `json:"position"`
}

// Position is a point on the artboard in design units.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Artboard is the bounding box of a design page.
type Artboard struct {
	Name   string  `json:"name,omitempty"`
	Unit   string  `json:"unit,omitempty"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Quotation is a previously issued price quotation for the same product.
// Identifiers follow the quotation system's vocabulary (bag type ids such as
// "stand_up", material ids such as "pet_ny_al", option ids such as "zipper-yes").
type Quotation struct {
	ID                    string   `json:"id"`
	BagTypeID             string   `json:"bagTypeId"`
	MaterialID            string   `json:"materialId,omitempty"`
	PostProcessingOptions []string `json:"postProcessingOptions,omitempty"`
	Width                 float64  `json:"width"`
	Height                float64  `json:"height"`
	Gusset                float64  `json:"gusset,omitempty"`
}
