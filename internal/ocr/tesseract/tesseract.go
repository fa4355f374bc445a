// Package tesseract provides the local Tesseract OCR engine. It needs the
// tesseract and leptonica libraries at build time.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/zombor/scanbridge/internal/imaging"
	"github.com/zombor/scanbridge/internal/ocr"
	"github.com/zombor/scanbridge/internal/protocol"
)

// Engine implements ocr.Engine with gosseract.
type Engine struct {
	clientFactory func() *gosseract.Client
	listLanguages func() ([]string, error)
}

// New constructs a Tesseract-backed OCR engine.
func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient, listLanguages: gosseract.GetAvailableLanguages}
}

func (e *Engine) Name() string { return "tesseract" }

// Languages lists the installed traineddata packs.
func (e *Engine) Languages(ctx context.Context) ([]protocol.OcrLanguage, error) {
	codes, err := e.listLanguages()
	if err != nil {
		return nil, fmt.Errorf("listing tesseract languages: %w", err)
	}
	return ocr.Languages(codes), nil
}

// Recognize runs OCR on one image. Tesseract cannot be interrupted, so ctx
// is only checked before starting.
func (e *Engine) Recognize(ctx context.Context, imageData []byte, name, language string) (*protocol.OcrText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(language) == "" {
		language = ocr.DefaultLanguage
	}

	pngData, err := imaging.ToPNG(imageData, name)
	if err != nil {
		return nil, err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(strings.Split(language, "+")...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetImageFromBytes(pngData); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	return &protocol.OcrText{Text: ocr.CleanText(text), Language: language}, nil
}

// Close is a no-op; clients are created per call.
func (e *Engine) Close() error { return nil }
