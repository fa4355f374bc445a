// Package helper runs one protocol command per process: parse argv, execute
// against the scanning, export and OCR components, and write exactly one
// JSON payload to stdout.
package helper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/zombor/scanbridge/internal/engine"
	"github.com/zombor/scanbridge/internal/ocr"
	"github.com/zombor/scanbridge/internal/protocol"
)

// Scanner lists devices and acquires pages
type Scanner interface {
	ListDevices(ctx context.Context, driver protocol.Driver) ([]protocol.ScannerDevice, error)
	ScanToImages(ctx context.Context, deviceID string, driver protocol.Driver, opts engine.ScanOptions) (*protocol.ScanResult, error)
}

// Exporter writes images as JPEG files
type Exporter interface {
	ExportJpeg(ctx context.Context, outputDir string, imagePaths []string) protocol.JpegSaveResult
}

// PDFConverter builds PDFs from images and renders PDFs into images
type PDFConverter interface {
	ExportPdf(ctx context.Context, outputPath string, imagePaths []string) (*protocol.PdfSaveResult, error)
	ImportPdf(ctx context.Context, pdfPath string) ([]string, error)
}

// Dispatcher executes one helper invocation.
type Dispatcher struct {
	Scanner  Scanner
	Exporter Exporter
	PDF      PDFConverter
	// OCR may be nil when no engine is configured.
	OCR ocr.Engine

	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// StackTraces adds the goroutine stack to error payloads.
	StackTraces bool
}

// Run parses args, executes the command and returns the process exit code:
// 0 when a payload was written (including error payloads), 1 for usage
// errors and unhandled failures.
func (d *Dispatcher) Run(ctx context.Context, args []string) (code int) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Helper panicked", "panic", r, "stack", string(debug.Stack()))
			fmt.Fprintf(d.Stderr, "internal error: %v\n", r)
			code = 1
		}
	}()

	cmd, notices, err := protocol.ParseArgs(args)
	if err != nil {
		logger.Debug("Rejected arguments", "args", args, "error", err)
		fmt.Fprintf(d.Stderr, "error: %v\n\n%s\n", err, protocol.Usage)
		return 1
	}
	for _, n := range notices {
		logger.Warn("Argument fallback", "notice", n.String())
	}

	logger.Debug("Executing command", "command", cmd.Name())
	payload := d.execute(ctx, cmd, logger)

	if err := protocol.WritePayload(d.Stdout, payload); err != nil {
		logger.Error("Failed to write payload", "error", err)
		fmt.Fprintf(d.Stderr, "%v\n", err)
		return 1
	}
	return 0
}

func (d *Dispatcher) execute(ctx context.Context, cmd protocol.Command, logger *slog.Logger) any {
	switch c := cmd.(type) {
	case protocol.ListDevices:
		devices, err := d.Scanner.ListDevices(ctx, c.Driver)
		if err != nil {
			return d.failure(logger, cmd, protocol.KindScanFailed, err)
		}
		if devices == nil {
			devices = []protocol.ScannerDevice{}
		}
		return devices

	case protocol.ScanToImages:
		res, err := d.Scanner.ScanToImages(ctx, c.DeviceID, c.Driver, engine.ScanOptions{DPI: c.DPI, PaperSource: c.PaperSource})
		if err != nil {
			kind := protocol.KindScanFailed
			if errors.Is(err, engine.ErrDeviceNotFound) {
				kind = protocol.KindDeviceNotFound
			}
			return d.failure(logger, cmd, kind, err)
		}
		return res

	case protocol.ExportJpeg:
		return d.Exporter.ExportJpeg(ctx, c.OutputDir, c.ImagePaths)

	case protocol.ExportPdf:
		if d.PDF == nil {
			return d.failure(logger, cmd, protocol.KindUnsupported, errors.New("no PDF support configured"))
		}
		res, err := d.PDF.ExportPdf(ctx, c.OutputPath, c.ImagePaths)
		if err != nil {
			return d.failure(logger, cmd, protocol.KindExportFailed, err)
		}
		return res

	case protocol.ImportPdf:
		if d.PDF == nil {
			return d.failure(logger, cmd, protocol.KindUnsupported, errors.New("no PDF support configured"))
		}
		paths, err := d.PDF.ImportPdf(ctx, c.PdfPath)
		if err != nil {
			return d.failure(logger, cmd, protocol.KindImportFailed, err)
		}
		return paths

	case protocol.OcrLanguages:
		if d.OCR == nil {
			return d.failure(logger, cmd, protocol.KindUnsupported, errors.New("no OCR engine configured"))
		}
		langs, err := d.OCR.Languages(ctx)
		if err != nil {
			return d.failure(logger, cmd, protocol.KindOcrFailed, err)
		}
		return langs

	case protocol.OcrRecognize:
		if d.OCR == nil {
			return d.failure(logger, cmd, protocol.KindUnsupported, errors.New("no OCR engine configured"))
		}
		data, err := os.ReadFile(c.ImagePath)
		if err != nil {
			return d.failure(logger, cmd, protocol.KindOcrFailed, fmt.Errorf("reading image: %w", err))
		}
		text, err := d.OCR.Recognize(ctx, data, c.ImagePath, c.Language)
		if err != nil {
			return d.failure(logger, cmd, protocol.KindOcrFailed, fmt.Errorf("%s: %w", d.OCR.Name(), err))
		}
		return text
	}

	return d.failure(logger, cmd, protocol.KindUnsupported, fmt.Errorf("unsupported command %s", cmd.Name()))
}

func (d *Dispatcher) failure(logger *slog.Logger, cmd protocol.Command, kind protocol.ErrorKind, err error) *protocol.RemoteError {
	logger.Error("Command failed", "command", cmd.Name(), "kind", kind, "error", err)
	re := &protocol.RemoteError{Message: err.Error(), Kind: kind}
	if d.StackTraces {
		re.StackTrace = string(debug.Stack())
	}
	return re
}
