// Package ocr recognizes text in scanned pages. Engines are selected by
// name when the helper starts.
package ocr

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/zombor/scanbridge/internal/protocol"
)

// DefaultLanguage is used when a request names no language.
const DefaultLanguage = "eng"

// Engine defines the interface for text recognition
type Engine interface {
	// Name identifies the engine in logs
	Name() string
	// Languages lists the languages the engine can recognize
	Languages(ctx context.Context) ([]protocol.OcrLanguage, error)
	// Recognize extracts the text of an image. name is the source file name
	// and only serves format detection.
	Recognize(ctx context.Context, imageData []byte, name, language string) (*protocol.OcrText, error)
	// Close releases resources
	Close() error
}

// transcribePrompt is the shared prompt used by the LLM engines.
const transcribePrompt = `You are an OCR engine. Transcribe all text in this scanned page exactly as it appears.

Rules:
- The page is written in %s.
- Preserve the reading order and line breaks.
- Keep paragraphs separated by a single blank line.
- Do not translate, summarize, correct or comment on the text.
- Output only the transcribed text, without markdown code blocks.
- If the page contains no text, output nothing.`

func prompt(language string) string {
	return fmt.Sprintf(transcribePrompt, LanguageName(language))
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// CleanText strips markdown fences an LLM may wrap its answer in, normalizes
// line endings and collapses runs of blank lines.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		if nl := strings.Index(text, "\n"); nl != -1 {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankRuns.ReplaceAllString(text, "\n\n"))
}

// normalizeLanguage applies the default language.
func normalizeLanguage(language string) string {
	if l := strings.TrimSpace(language); l != "" {
		return l
	}
	return DefaultLanguage
}
