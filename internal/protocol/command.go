package protocol

import (
	"errors"
	"fmt"
	"strconv"
)

// Command words and subcommand words of the helper's argument vector.
const (
	wordScan        = "scan"
	wordListDevices = "list-devices"
	wordToImages    = "to-images"
	wordPdf         = "pdf"
	wordJpeg        = "jpeg"
	wordExport      = "export"
	wordImport      = "import"
	wordOcr         = "ocr"
	wordLanguages   = "languages"
	wordRecognize   = "recognize"
)

// DefaultDPI is used when a scan command carries no resolution.
const DefaultDPI = 300

// Command is one helper operation. Implementations are plain values built
// per call.
type Command interface {
	// Name is the "<command> <subcommand>" pair, used in logs and errors.
	Name() string
	args() ([]string, error)
}

// ListDevices enumerates devices for Driver, or for the helper's default
// driver when Driver is empty.
type ListDevices struct {
	Driver Driver
}

// ScanToImages acquires pages from DeviceID into a fresh temp directory.
type ScanToImages struct {
	DeviceID    string
	Driver      Driver
	DPI         int
	PaperSource PaperSource
}

// ExportJpeg re-encodes ImagePaths as JPEG files in OutputDir.
type ExportJpeg struct {
	OutputDir  string
	ImagePaths []string
}

// ExportPdf writes ImagePaths, one page per image, into the PDF file at
// OutputPath.
type ExportPdf struct {
	OutputPath string
	ImagePaths []string
}

// ImportPdf renders every page of PdfPath as an image.
type ImportPdf struct {
	PdfPath string
}

// OcrLanguages lists the OCR engine's languages.
type OcrLanguages struct{}

// OcrRecognize runs OCR over ImagePath.
type OcrRecognize struct {
	ImagePath string
	Language  string
}

func (ListDevices) Name() string  { return wordScan + " " + wordListDevices }
func (ScanToImages) Name() string { return wordScan + " " + wordToImages }
func (ExportJpeg) Name() string   { return wordPdf + " " + wordJpeg }
func (ExportPdf) Name() string    { return wordPdf + " " + wordExport }
func (ImportPdf) Name() string    { return wordPdf + " " + wordImport }
func (OcrLanguages) Name() string { return wordOcr + " " + wordLanguages }
func (OcrRecognize) Name() string { return wordOcr + " " + wordRecognize }

func (c ListDevices) args() ([]string, error) {
	args := []string{wordScan, wordListDevices}
	if c.Driver != "" {
		if !c.Driver.Valid() {
			return nil, fmt.Errorf("invalid driver %q", c.Driver)
		}
		args = append(args, c.Driver.String())
	}
	return args, nil
}

func (c ScanToImages) args() ([]string, error) {
	if c.DeviceID == "" {
		return nil, errors.New("device id is required")
	}
	if c.Driver != "" && !c.Driver.Valid() {
		return nil, fmt.Errorf("invalid driver %q", c.Driver)
	}
	if c.PaperSource != "" && !c.PaperSource.Valid() {
		return nil, fmt.Errorf("invalid paper source %q", c.PaperSource)
	}
	dpi := c.DPI
	if dpi == 0 {
		dpi = DefaultDPI
	}
	if dpi < 0 {
		return nil, fmt.Errorf("invalid dpi %d", c.DPI)
	}

	// The driver sits between two positional fields, so an absent driver is
	// passed as an empty placeholder. Paper source is the tail and is omitted.
	args := []string{wordScan, wordToImages, c.DeviceID, c.Driver.String(), strconv.Itoa(dpi)}
	if c.PaperSource != "" {
		args = append(args, c.PaperSource.String())
	}
	return args, nil
}

func (c ExportJpeg) args() ([]string, error) {
	if c.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	if len(c.ImagePaths) == 0 {
		return nil, errors.New("at least one image path is required")
	}
	args := make([]string, 0, 3+len(c.ImagePaths))
	args = append(args, wordPdf, wordJpeg, c.OutputDir)
	for i, p := range c.ImagePaths {
		if p == "" {
			return nil, fmt.Errorf("image path %d is empty", i)
		}
		args = append(args, p)
	}
	return args, nil
}

func (c ExportPdf) args() ([]string, error) {
	if c.OutputPath == "" {
		return nil, errors.New("output path is required")
	}
	if len(c.ImagePaths) == 0 {
		return nil, errors.New("at least one image path is required")
	}
	args := make([]string, 0, 3+len(c.ImagePaths))
	args = append(args, wordPdf, wordExport, c.OutputPath)
	for i, p := range c.ImagePaths {
		if p == "" {
			return nil, fmt.Errorf("image path %d is empty", i)
		}
		args = append(args, p)
	}
	return args, nil
}

func (c ImportPdf) args() ([]string, error) {
	if c.PdfPath == "" {
		return nil, errors.New("pdf path is required")
	}
	return []string{wordPdf, wordImport, c.PdfPath}, nil
}

func (OcrLanguages) args() ([]string, error) {
	return []string{wordOcr, wordLanguages}, nil
}

func (c OcrRecognize) args() ([]string, error) {
	if c.ImagePath == "" {
		return nil, errors.New("image path is required")
	}
	if c.Language == "" {
		return nil, errors.New("language is required")
	}
	return []string{wordOcr, wordRecognize, c.ImagePath, c.Language}, nil
}

// Encode turns cmd into the helper's argument vector, program name
// excluded. Every element is a discrete argument.
func Encode(cmd Command) ([]string, error) {
	if cmd == nil {
		return nil, errors.New("encoding command: nil command")
	}
	args, err := cmd.args()
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", cmd.Name(), err)
	}
	return args, nil
}
