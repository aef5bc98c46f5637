package stamp

import "fmt"

// Placement fixes where the signature lands on page 1, in points measured
// from the top-left corner of the page. The image is scaled to fit inside
// Width x Height with its aspect ratio preserved; the label starts
// LabelGap points below the box.
type Placement struct {
	X        float64
	Y        float64
	Width    float64
	Height   float64
	LabelGap float64
	FontName string
	FontSize float64
}

// DefaultPlacement is the signature box used for every signing:
// a 150pt square at (50, 20) with a 10pt Helvetica label beneath it.
var DefaultPlacement = Placement{
	X:        50,
	Y:        20,
	Width:    150,
	Height:   150,
	LabelGap: 5,
	FontName: "Helvetica",
	FontSize: 10,
}

// Scale returns the absolute scale factor that fits an image of w x h
// pixels inside the box.
func (p Placement) Scale(w, h int) float64 {
	if w <= 0 || h <= 0 {
		return 1
	}
	return min(p.Width/float64(w), p.Height/float64(h))
}

// LabelY returns the label's distance from the top of the page.
func (p Placement) LabelY() float64 {
	return p.Y + p.Height + p.LabelGap
}

// ImageDescription returns the pdfcpu stamp description for an image of
// w x h pixels.
func (p Placement) ImageDescription(w, h int) string {
	return fmt.Sprintf(
		"position:tl, offset:%s %s, scalefactor:%.4f abs, rotation:0, opacity:1",
		num(p.X), num(-p.Y), p.Scale(w, h),
	)
}

// TextDescription returns the pdfcpu stamp description for the label.
func (p Placement) TextDescription() string {
	return fmt.Sprintf(
		"fontname:%s, points:%s, position:tl, offset:%s %s, scalefactor:1 abs, rotation:0, fillcolor:#000000, opacity:1",
		p.FontName, num(p.FontSize), num(p.X), num(-p.LabelY()),
	)
}

func num(f float64) string {
	return fmt.Sprintf("%g", f)
}
