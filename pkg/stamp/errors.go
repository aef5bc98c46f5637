package stamp

import "errors"

var (
	// ErrUnsupportedImage indicates signature data that is not a PNG or JPEG image.
	ErrUnsupportedImage = errors.New("signature image must be PNG or JPEG")
	// ErrInvalidPDF indicates input that pdfcpu cannot read as a PDF.
	ErrInvalidPDF = errors.New("invalid PDF document")
	// ErrEmptyLabel indicates a stamp with no label text.
	ErrEmptyLabel = errors.New("stamp label must not be empty")
)
