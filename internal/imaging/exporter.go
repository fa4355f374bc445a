// Package imaging converts scanned pages into the formats the helper hands
// back to callers.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/scanbridge/internal/protocol"
)

const DefaultQuality = 90

// Exporter writes images as JPEG files.
type Exporter struct {
	quality    int
	workers    int
	newStorage func(dir string) (Storage, error)
	logger     *slog.Logger
}

// NewExporter creates an Exporter. Non-positive quality or workers select
// DefaultQuality and one worker per CPU.
func NewExporter(quality, workers int, logger *slog.Logger) *Exporter {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		quality: quality,
		workers: workers,
		newStorage: func(dir string) (Storage, error) {
			return NewLocalStorage(dir)
		},
		logger: logger,
	}
}

// encoded holds the JPEG pages converted from one input.
type encoded struct {
	base  string
	pages []jpegPage
}

// jpegPage is one encoded page with its pixel size.
type jpegPage struct {
	data          []byte
	width, height int
}

// ExportJpeg converts imagePaths into outputDir, creating it if needed.
// Conversion runs in parallel; files are named and written in input order.
// Inputs that cannot be read, decoded or written are logged and left out
// of Files without failing the export.
func (e *Exporter) ExportJpeg(ctx context.Context, outputDir string, imagePaths []string) protocol.JpegSaveResult {
	res := protocol.JpegSaveResult{Directory: outputDir, Files: []string{}}
	if abs, err := filepath.Abs(outputDir); err == nil {
		res.Directory = abs
	}

	storage, err := e.newStorage(res.Directory)
	if err != nil {
		return failed(res, err)
	}

	converted := make([]*encoded, len(imagePaths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, path := range imagePaths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pages, err := encodeJPEG(path, e.quality)
			if err != nil {
				e.logger.Warn("Skipping image", "path", path, "error", err)
				return nil
			}
			converted[i] = &encoded{base: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), pages: pages}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return failed(res, fmt.Errorf("export interrupted: %w", err))
	}

	used := make(map[string]bool)
	for _, c := range converted {
		if c == nil {
			continue
		}
		for n, page := range c.pages {
			name := c.base + ".jpg"
			if len(c.pages) > 1 {
				name = fmt.Sprintf("%s-%d.jpg", c.base, n+1)
			}
			name = uniqueName(storage, name, used)
			saved, err := storage.Save(name, page.data)
			if err != nil {
				e.logger.Warn("Failed to write JPEG", "file", name, "error", err)
				continue
			}
			res.Files = append(res.Files, saved)
		}
	}

	res.Success = true
	res.Count = len(res.Files)
	e.logger.Info("Exported JPEG files", "directory", res.Directory, "count", res.Count, "inputs", len(imagePaths))
	return res
}

func failed(res protocol.JpegSaveResult, err error) protocol.JpegSaveResult {
	msg := err.Error()
	res.Success = false
	res.Error = &msg
	res.Files = []string{}
	res.Count = 0
	return res
}

// encodeJPEG decodes path and encodes each of its pages as JPEG.
func encodeJPEG(path string, quality int) ([]jpegPage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	imgs, err := Decode(data, path)
	if err != nil {
		return nil, err
	}

	pages := make([]jpegPage, 0, len(imgs))
	for _, img := range imgs {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encoding JPEG: %w", err)
		}
		b := img.Bounds()
		pages = append(pages, jpegPage{data: buf.Bytes(), width: b.Dx(), height: b.Dy()})
	}
	return pages, nil
}

// flatten composites img over white; JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}
