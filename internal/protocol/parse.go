package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Usage is the helper's usage text.
const Usage = `usage:
  scan list-devices [driver]
  scan to-images <deviceId> [driver] [dpi] [paperSource]
  pdf jpeg <outputDir> <imagePath>...
  pdf export <outputPath> <imagePath>...
  pdf import <pdfPath>
  ocr languages
  ocr recognize <imagePath> <language>

drivers: Default, Apple, Sane, Escl, Wia, Twain
paper sources: Flatbed, Feeder, Duplex`

// UsageError reports an argument vector the helper cannot execute.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string { return e.Reason }

func usageErrorf(format string, a ...any) error {
	return &UsageError{Reason: fmt.Sprintf(format, a...)}
}

// ParseArgs is the helper-side inverse of Encode. Empty positional
// arguments mean "absent". Enum values are parsed leniently; every fallback
// is returned as a Notice.
func ParseArgs(args []string) (Command, []Notice, error) {
	var notices []Notice

	parseDriver := func(s string) Driver {
		if s == "" {
			return ""
		}
		d, ok := ParseDriver(s)
		if !ok {
			notices = append(notices, Notice{Field: "driver", Value: s, Fallback: string(d)})
		}
		return d
	}

	switch len(args) {
	case 0:
		return ListDevices{}, nil, nil
	case 1:
		switch args[0] {
		case wordScan, wordPdf, wordOcr:
			return nil, nil, usageErrorf("missing subcommand for %q", args[0])
		}
		// A single bare argument is a driver name for list-devices.
		cmd := ListDevices{Driver: parseDriver(args[0])}
		return cmd, notices, nil
	}

	word, sub, rest := args[0], args[1], args[2:]
	switch word {
	case wordScan:
		switch sub {
		case wordListDevices:
			cmd := ListDevices{}
			if len(rest) > 0 {
				cmd.Driver = parseDriver(rest[0])
			}
			return cmd, notices, nil
		case wordToImages:
			if len(rest) == 0 || strings.TrimSpace(rest[0]) == "" {
				return nil, nil, usageErrorf("scan to-images: missing device id")
			}
			cmd := ScanToImages{DeviceID: rest[0], DPI: DefaultDPI}
			if len(rest) > 1 {
				cmd.Driver = parseDriver(rest[1])
			}
			if len(rest) > 2 && rest[2] != "" {
				dpi, err := strconv.Atoi(strings.TrimSpace(rest[2]))
				if err != nil || dpi <= 0 {
					return nil, nil, usageErrorf("scan to-images: invalid dpi %q", rest[2])
				}
				cmd.DPI = dpi
			}
			if len(rest) > 3 && rest[3] != "" {
				p, ok := ParsePaperSource(rest[3])
				if !ok {
					notices = append(notices, Notice{Field: "paper source", Value: rest[3]})
				}
				cmd.PaperSource = p
			}
			return cmd, notices, nil
		}
	case wordPdf:
		switch sub {
		case wordJpeg:
			if len(rest) == 0 || rest[0] == "" {
				return nil, nil, usageErrorf("pdf jpeg: missing output directory")
			}
			if len(rest) == 1 {
				return nil, nil, usageErrorf("pdf jpeg: missing image paths")
			}
			return ExportJpeg{OutputDir: rest[0], ImagePaths: append([]string(nil), rest[1:]...)}, nil, nil
		case wordExport:
			if len(rest) == 0 || rest[0] == "" {
				return nil, nil, usageErrorf("pdf export: missing output path")
			}
			if len(rest) == 1 {
				return nil, nil, usageErrorf("pdf export: missing image paths")
			}
			return ExportPdf{OutputPath: rest[0], ImagePaths: append([]string(nil), rest[1:]...)}, nil, nil
		case wordImport:
			if len(rest) == 0 || rest[0] == "" {
				return nil, nil, usageErrorf("pdf import: missing pdf path")
			}
			return ImportPdf{PdfPath: rest[0]}, nil, nil
		}
	case wordOcr:
		switch sub {
		case wordLanguages:
			return OcrLanguages{}, nil, nil
		case wordRecognize:
			if len(rest) < 2 || rest[0] == "" || rest[1] == "" {
				return nil, nil, usageErrorf("ocr recognize: missing image path or language")
			}
			return OcrRecognize{ImagePath: rest[0], Language: rest[1]}, nil, nil
		}
	default:
		return nil, nil, usageErrorf("unknown command %q", word)
	}
	return nil, nil, usageErrorf("unknown subcommand %q for %q", sub, word)
}
