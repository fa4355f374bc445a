package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Format identifies how an input file has to be decoded.
type Format int

const (
	FormatImage Format = iota
	FormatHEIC
	FormatPDF
)

// DetectFormat sniffs data, falling back to the file extension of name.
func DetectFormat(data []byte, name string) Format {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return FormatPDF
	}
	if isHEICFormat(data) {
		return FormatHEIC
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF
	case ".heic", ".heif":
		return FormatHEIC
	}
	return FormatImage
}

// Decode decodes every page of an input file. Raster formats have one page;
// PDFs have one per document page.
func Decode(data []byte, name string) ([]image.Image, error) {
	switch DetectFormat(data, name) {
	case FormatPDF:
		return pdfPages(data)
	case FormatHEIC:
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return []image.Image{img}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") {
			return nil, fmt.Errorf("unsupported image format. Supported formats: PNG, JPEG, GIF, TIFF, BMP, WebP, HEIC, HEIF, PDF. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return []image.Image{img}, nil
}

// pdfPages renders every page of a PDF
func pdfPages(data []byte) ([]image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	pages := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", i+1, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}

// ToPNG converts the first page of any supported input to PNG. PNG input is
// returned unchanged.
func ToPNG(data []byte, name string) ([]byte, error) {
	if bytes.HasPrefix(data, pngMagic) {
		return data, nil
	}
	pages, err := Decode(data, name)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, pages[0]); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files carry an ftyp box at offset 4 with a HEIF brand
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}
