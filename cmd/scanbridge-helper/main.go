// Command scanbridge-helper executes one scanning, export or OCR command per
// invocation and prints the JSON result on stdout.
package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/scanbridge/internal/engine"
	"github.com/zombor/scanbridge/internal/helper"
	"github.com/zombor/scanbridge/internal/imaging"
	"github.com/zombor/scanbridge/internal/logging"
	"github.com/zombor/scanbridge/internal/ocr"
	"github.com/zombor/scanbridge/internal/ocr/tesseract"
	"github.com/zombor/scanbridge/internal/protocol"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	os.Exit(run(os.Args[1:]))
}

type ocrConfig struct {
	engine      string
	geminiKey   string
	geminiModel string
	ollamaURL   string
	ollamaModel string
}

func run(args []string) int {
	fs := ff.NewFlagSet("scanbridge-helper")
	var (
		logLevel      = fs.StringLong("log-level", "warn", "Log level: debug, info, warn or error")
		logFormat     = fs.StringLong("log-format", "text", "Log format: text or json")
		logFile       = fs.StringLong("log-file", "", "Also write logs to this rotating file")
		verbose       = fs.BoolLong("verbose", "Debug logging and stack traces in error payloads")
		tempDir       = fs.StringLong("temp-dir", "", "Directory for scanned and imported pages (default: system temp dir)")
		scanimage     = fs.StringLong("scanimage", "scanimage", "Path to the SANE scanimage binary")
		esclHosts     = fs.StringListLong("escl-host", "eSCL scanner base URL, e.g. http://192.168.1.20/eSCL (repeatable)")
		esclTimeout   = fs.DurationLong("escl-timeout", 60*time.Second, "HTTP timeout for eSCL requests")
		ocrEngine     = fs.StringLong("ocr-engine", "tesseract", "OCR engine: tesseract, gemini, ollama or none")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		jpegQuality   = fs.IntLong("jpeg-quality", imaging.DefaultQuality, "JPEG quality for exports and PDF pages (1-100)")
		exportWorkers = fs.IntLong("export-workers", 0, "Parallel image conversions during export (default: CPU count)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("SCANBRIDGE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if *showVersion {
		fmt.Println(version)
		return 0
	}

	level := *logLevel
	if *verbose {
		level = "debug"
	}
	logger, closer, err := logging.New(logging.Config{Level: level, Format: *logFormat, FilePath: *logFile}, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	platform := engine.CurrentPlatform()
	eng := engine.New(platform, *tempDir, logger)
	if platform.Supports(protocol.DriverSane) {
		eng.Register(protocol.DriverSane, engine.NewSane(*scanimage, logger))
	}
	if len(*esclHosts) > 0 {
		eng.Register(protocol.DriverEscl, engine.NewEscl(*esclHosts, *esclTimeout, logger))
	}

	recognizer, err := newOCR(ctx, ocrConfig{
		engine:      *ocrEngine,
		geminiKey:   *geminiKey,
		geminiModel: *geminiModel,
		ollamaURL:   *ollamaURL,
		ollamaModel: *ollamaModel,
	})
	if err != nil {
		// Scanning still works; OCR commands report Unsupported.
		logger.Warn("OCR unavailable", "engine", *ocrEngine, "error", err)
	}
	if recognizer != nil {
		defer recognizer.Close()
	}

	d := &helper.Dispatcher{
		Scanner:     eng,
		Exporter:    imaging.NewExporter(*jpegQuality, *exportWorkers, logger),
		PDF:         imaging.NewPDF(*tempDir, *jpegQuality, *exportWorkers, logger),
		OCR:         recognizer,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Logger:      logger,
		StackTraces: *verbose,
	}
	return d.Run(ctx, fs.GetArgs())
}

func newOCR(ctx context.Context, cfg ocrConfig) (ocr.Engine, error) {
	switch strings.ToLower(cfg.engine) {
	case "tesseract":
		return tesseract.New(), nil
	case "gemini":
		apiKey := cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		g, err := ocr.NewGemini(ctx, apiKey, cfg.geminiModel)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "ollama":
		return ocr.NewOllama(cfg.ollamaURL, cfg.ollamaModel), nil
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("invalid OCR engine %q, valid: tesseract, gemini, ollama or none", cfg.engine)
}
