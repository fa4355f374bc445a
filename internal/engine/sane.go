package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zombor/scanbridge/internal/protocol"
)

// CommandRunner runs an external program and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// saneListFormat asks scanimage for "<device>\t<vendor> <model>" lines.
const saneListFormat = "%d\t%v %m%n"

// Sane drives SANE devices through the scanimage command.
type Sane struct {
	path   string
	run    CommandRunner
	logger *slog.Logger
}

// NewSane creates a SANE backend using the scanimage binary at path.
func NewSane(path string, logger *slog.Logger) *Sane {
	return NewSaneWithRunner(path, execRunner, logger)
}

// NewSaneWithRunner creates a SANE backend with a custom command runner for
// testing.
func NewSaneWithRunner(path string, run CommandRunner, logger *slog.Logger) *Sane {
	if path == "" {
		path = "scanimage"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sane{path: path, run: run, logger: logger}
}

// Devices lists SANE devices. A missing scanimage binary means SANE is not
// installed, which is reported as no devices.
func (s *Sane) Devices(ctx context.Context) ([]protocol.ScannerDevice, error) {
	out, err := s.run(ctx, s.path, "-f", saneListFormat)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			s.logger.Warn("scanimage not found, SANE unavailable", "path", s.path)
			return []protocol.ScannerDevice{}, nil
		}
		return nil, fmt.Errorf("listing sane devices: %w", err)
	}
	return parseSaneDevices(out), nil
}

func parseSaneDevices(out []byte) []protocol.ScannerDevice {
	devices := []protocol.ScannerDevice{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		id, name, _ := strings.Cut(line, "\t")
		name = strings.TrimSpace(name)
		if name == "" {
			name = id
		}
		devices = append(devices, protocol.ScannerDevice{ID: id, Name: name, Driver: protocol.DriverSane.String()})
	}
	return devices
}

// saneSource maps a paper source onto the common SANE source names.
func saneSource(p protocol.PaperSource) string {
	switch p {
	case protocol.PaperSourceFlatbed:
		return "Flatbed"
	case protocol.PaperSourceFeeder:
		return "ADF"
	case protocol.PaperSourceDuplex:
		return "ADF Duplex"
	}
	return ""
}

// Scan runs scanimage in batch mode so pages land as 1.png, 2.png, ... in
// dir. Feeder scans stop when the feeder runs empty; other sources scan a
// single page.
func (s *Sane) Scan(ctx context.Context, device protocol.ScannerDevice, opts ScanOptions, dir string) ([]string, error) {
	dpi := opts.DPI
	if dpi <= 0 {
		dpi = protocol.DefaultDPI
	}
	args := []string{
		"-d", device.ID,
		"--resolution", strconv.Itoa(dpi),
		"--format=png",
		"--batch=" + filepath.Join(dir, "%d.png"),
		"--batch-start=1",
	}
	if src := saneSource(opts.PaperSource); src != "" {
		args = append(args, "--source", src)
	}
	if opts.PaperSource != protocol.PaperSourceFeeder && opts.PaperSource != protocol.PaperSourceDuplex {
		args = append(args, "--batch-count=1")
	}

	_, err := s.run(ctx, s.path, args...)
	pages := collectPages(dir, ".png")
	if err != nil {
		// scanimage exits non-zero when the feeder empties after the last
		// page; keep what was acquired.
		if len(pages) > 0 && ctx.Err() == nil {
			s.logger.Debug("scanimage ended with an error after scanning pages", "pages", len(pages), "error", err)
			return pages, nil
		}
		return nil, fmt.Errorf("running scanimage: %w", err)
	}
	return pages, nil
}
