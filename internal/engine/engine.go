package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/zombor/scanbridge/internal/protocol"
)

var (
	// ErrDeviceNotFound is returned when a scan names a device id that the
	// driver does not enumerate.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrNoPages is returned when a scan finished without acquiring a page.
	ErrNoPages = errors.New("no pages scanned")
)

// ScanOptions are the acquisition settings passed to a Backend.
type ScanOptions struct {
	DPI         int
	PaperSource protocol.PaperSource
}

// Backend talks to one driver's devices.
type Backend interface {
	// Devices enumerates the devices currently reachable.
	Devices(ctx context.Context) ([]protocol.ScannerDevice, error)
	// Scan acquires pages from device into dir, naming them 1.<ext>,
	// 2.<ext>, ... and returns their paths in page order.
	Scan(ctx context.Context, device protocol.ScannerDevice, opts ScanOptions, dir string) ([]string, error)
}

// Engine routes operations to the backend registered for a driver. It is
// built fresh for each helper invocation and caches nothing.
type Engine struct {
	platform Platform
	backends map[protocol.Driver]Backend
	tempRoot string
	newID    func() string
	logger   *slog.Logger
}

// New creates an Engine that places scan directories under tempRoot
// (os.TempDir when empty).
func New(platform Platform, tempRoot string, logger *slog.Logger) *Engine {
	if tempRoot == "" {
		tempRoot = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		platform: platform,
		backends: make(map[protocol.Driver]Backend),
		tempRoot: tempRoot,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

// Register installs b as the backend for d.
func (e *Engine) Register(d protocol.Driver, b Backend) {
	e.backends[d] = b
}

// resolve maps the empty and Default drivers to the platform default.
func (e *Engine) resolve(d protocol.Driver) protocol.Driver {
	if d == "" || d == protocol.DriverDefault {
		return e.platform.DefaultDriver()
	}
	return d
}

// ListDevices enumerates devices for driver. A driver that cannot exist on
// this platform, or that has no backend here, yields an empty list rather
// than an error; the caller sees "no devices".
func (e *Engine) ListDevices(ctx context.Context, driver protocol.Driver) ([]protocol.ScannerDevice, error) {
	resolved := e.resolve(driver)
	if !e.platform.Supports(resolved) {
		e.logger.Warn("Driver not available on this platform, returning no devices",
			"driver", resolved, "os", e.platform.GOOS)
		return []protocol.ScannerDevice{}, nil
	}
	backend, ok := e.backends[resolved]
	if !ok {
		e.logger.Warn("Driver unsupported in this environment, returning no devices", "driver", resolved)
		return []protocol.ScannerDevice{}, nil
	}

	devices, err := backend.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing %s devices: %w", resolved, err)
	}
	for i := range devices {
		if devices[i].Driver == "" {
			devices[i].Driver = resolved.String()
		}
	}
	if devices == nil {
		devices = []protocol.ScannerDevice{}
	}
	e.logger.Debug("Listed devices", "driver", resolved, "count", len(devices))
	return devices, nil
}

// ScanToImages looks deviceID up among the devices of driver, taking the
// first match, and scans into a new uniquely named directory. The caller
// owns the directory on success; on failure it is removed.
func (e *Engine) ScanToImages(ctx context.Context, deviceID string, driver protocol.Driver, opts ScanOptions) (*protocol.ScanResult, error) {
	devices, err := e.ListDevices(ctx, driver)
	if err != nil {
		return nil, err
	}

	var device *protocol.ScannerDevice
	for i := range devices {
		if devices[i].ID == deviceID {
			device = &devices[i]
			break
		}
	}
	if device == nil {
		return nil, fmt.Errorf("device %q (driver %s): %w", deviceID, e.resolve(driver), ErrDeviceNotFound)
	}
	backend := e.backends[e.resolve(driver)]

	root, err := filepath.Abs(e.tempRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving temp root: %w", err)
	}
	dir := filepath.Join(root, "scanbridge-"+e.newID())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating scan directory: %w", err)
	}

	e.logger.Info("Scanning", "device", device.ID, "name", device.Name, "dpi", opts.DPI, "source", opts.PaperSource, "dir", dir)
	paths, err := backend.Scan(ctx, *device, opts, dir)
	if err == nil && len(paths) == 0 {
		err = ErrNoPages
	}
	if err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			e.logger.Warn("Failed to remove scan directory", "dir", dir, "error", rmErr)
		}
		return nil, fmt.Errorf("scanning with %s: %w", device.ID, err)
	}

	for i, p := range paths {
		if !filepath.IsAbs(p) {
			paths[i] = filepath.Join(dir, p)
		}
	}
	return &protocol.ScanResult{ImagePaths: paths, TempDirectory: dir}, nil
}

// PagePath is the path of 1-based page n with extension ext (".png").
func PagePath(dir string, n int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%d%s", n, ext))
}

// collectPages returns the consecutive pages 1.<ext>, 2.<ext>, ... that
// exist in dir.
func collectPages(dir, ext string) []string {
	var pages []string
	for n := 1; ; n++ {
		p := PagePath(dir, n, ext)
		if _, err := os.Stat(p); err != nil {
			return pages
		}
		pages = append(pages, p)
	}
}
