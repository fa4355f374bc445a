package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zombor/scanbridge/internal/imaging"
	"github.com/zombor/scanbridge/internal/protocol"
)

// Gemini implements the Engine interface using Google Gemini
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// NewGemini creates a new Gemini Engine instance
func NewGemini(ctx context.Context, apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	return &Gemini{
		client:  client,
		model:   model,
		timeout: 60 * time.Second,
	}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Languages lists the languages offered for LLM transcription
func (g *Gemini) Languages(ctx context.Context) ([]protocol.OcrLanguage, error) {
	return Languages(llmLanguages), nil
}

// Recognize transcribes the text of an image
func (g *Gemini) Recognize(ctx context.Context, imageData []byte, name, language string) (*protocol.OcrText, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	language = normalizeLanguage(language)
	pngData, err := imaging.ToPNG(imageData, name)
	if err != nil {
		return nil, err
	}

	// genai.ImageData expects just the format suffix (e.g., "png"), not the full MIME type
	resp, err := g.model.GenerateContent(ctx, genai.ImageData("png", pngData), genai.Text(prompt(language)))
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	return &protocol.OcrText{Text: CleanText(text), Language: language}, nil
}

// responseText concatenates the text parts of the first candidate. A
// response without a candidate is an error, not a blank page.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response from gemini")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
