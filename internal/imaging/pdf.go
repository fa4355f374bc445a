package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/scanbridge/internal/protocol"
)

// PDF assembles images into PDF documents and renders PDF documents back
// into images.
type PDF struct {
	tempRoot string
	quality  int
	dpi      int
	workers  int
	newID    func() string
	logger   *slog.Logger
}

// NewPDF creates a PDF converter. Imported pages go to new directories
// under tempRoot (os.TempDir when empty). Non-positive quality or workers
// select DefaultQuality and one worker per CPU.
func NewPDF(tempRoot string, quality, workers int, logger *slog.Logger) *PDF {
	if tempRoot == "" {
		tempRoot = os.TempDir()
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PDF{
		tempRoot: tempRoot,
		quality:  quality,
		dpi:      protocol.DefaultDPI,
		workers:  workers,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

// ExportPdf writes imagePaths into a PDF at outputPath, one page per image
// page, each sized to the image at the scan resolution. Unlike a JPEG
// export every input must convert; the first failure aborts the export.
// An existing file at outputPath is replaced.
func (p *PDF) ExportPdf(ctx context.Context, outputPath string, imagePaths []string) (*protocol.PdfSaveResult, error) {
	converted := make([][]jpegPage, len(imagePaths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, path := range imagePaths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pages, err := encodeJPEG(path, p.quality)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			converted[i] = pages
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.SetCreator("scanbridge", true)

	count := 0
	for _, pages := range converted {
		for _, page := range pages {
			count++
			w := float64(page.width) * 72 / float64(p.dpi)
			h := float64(page.height) * 72 / float64(p.dpi)
			name := fmt.Sprintf("page-%d", count)
			opts := fpdf.ImageOptions{ImageType: "JPG"}

			doc.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
			doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(page.data))
			doc.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("building PDF: %w", err)
	}

	storage, err := NewLocalStorage(filepath.Dir(outputPath))
	if err != nil {
		return nil, err
	}
	saved, err := storage.Save(filepath.Base(outputPath), buf.Bytes())
	if err != nil {
		return nil, err
	}

	p.logger.Info("Exported PDF", "path", saved, "pages", count, "inputs", len(imagePaths))
	return &protocol.PdfSaveResult{Path: saved, PageCount: count}, nil
}

// ImportPdf renders every page of pdfPath as 1.png, 2.png, ... in a new
// directory under the temp root and returns their paths in page order. The
// caller owns the directory. Nothing is left behind on failure.
func (p *PDF) ImportPdf(ctx context.Context, pdfPath string) (paths []string, err error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("reading PDF: %w", err)
	}
	if DetectFormat(data, pdfPath) != FormatPDF {
		return nil, fmt.Errorf("%s is not a PDF", pdfPath)
	}
	pages, err := pdfPages(data)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(p.tempRoot, "scanbridge-"+p.newID())
	storage, err := NewLocalStorage(dir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	paths = make([]string, 0, len(pages))
	for i, img := range pages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("import interrupted: %w", err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding page %d: %w", i+1, err)
		}
		saved, err := storage.Save(fmt.Sprintf("%d.png", i+1), buf.Bytes())
		if err != nil {
			return nil, err
		}
		paths = append(paths, saved)
	}

	p.logger.Info("Imported PDF", "path", pdfPath, "pages", len(paths), "dir", dir)
	return paths, nil
}
