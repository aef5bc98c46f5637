// Package stamp composites a signature image and a one-line label onto the
// first page of a PDF using pdfcpu stamps.
package stamp

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var configOnce sync.Once

func configuration() *model.Configuration {
	configOnce.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Image describes a decoded signature image.
type Image struct {
	Format string
	Width  int
	Height int
	data   []byte
}

// DecodeImage validates that data is a PNG or JPEG image and reads its
// dimensions.
func DecodeImage(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrUnsupportedImage
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrUnsupportedImage, err)
	}
	if format != "png" && format != "jpeg" {
		return Image{}, fmt.Errorf("%w: got %s", ErrUnsupportedImage, format)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return Image{}, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}
	return Image{Format: format, Width: cfg.Width, Height: cfg.Height, data: data}, nil
}

// Label returns the text stamped beneath the signature.
func Label(signer, signedAt string) string {
	return fmt.Sprintf("%s signed on: %s", signer, signedAt)
}

// Apply reads the PDF from rs and writes a copy to w whose first page
// carries img inside the placement box and label below it. Other pages are
// left unchanged. The placement does not depend on page count or on stamps
// already present in the document.
func Apply(rs io.ReadSeeker, w io.Writer, img Image, label string, p Placement) error {
	if strings.TrimSpace(label) == "" {
		return ErrEmptyLabel
	}
	if len(img.data) == 0 {
		return ErrUnsupportedImage
	}

	imgWM, err := api.ImageWatermarkForReader(
		bytes.NewReader(img.data),
		p.ImageDescription(img.Width, img.Height),
		true, false, types.POINTS,
	)
	if err != nil {
		return fmt.Errorf("build image stamp: %w", err)
	}

	textWM, err := api.TextWatermark(label, p.TextDescription(), true, false, types.POINTS)
	if err != nil {
		return fmt.Errorf("build text stamp: %w", err)
	}

	stamps := map[int][]*model.Watermark{1: {imgWM, textWM}}
	if err := api.AddWatermarksSliceMap(rs, w, stamps, configuration()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPDF, err)
	}
	return nil
}

// PageCount returns the number of pages in the PDF read from rs.
func PageCount(rs io.ReadSeeker) (int, error) {
	n, err := api.PageCount(rs, configuration())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidPDF, err)
	}
	return n, nil
}
