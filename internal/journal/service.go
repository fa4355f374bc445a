package journal

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/scanbridge/internal/protocol"
)

// IDGenerator generates unique IDs for scans
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string { return uuid.NewString() }

type systemTime struct{}

func (systemTime) Now() time.Time { return time.Now() }

// Service handles journal operations
type Service struct {
	db          DB
	removeAll   func(path string) error
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB) *Service {
	return NewServiceWithDeps(db, os.RemoveAll, uuidGenerator{}, systemTime{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, removeAll func(path string) error, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		removeAll:   removeAll,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Record stores a completed scan
func (s *Service) Record(req protocol.ScanToImages, res *protocol.ScanResult) (*Scan, error) {
	now := s.timeSource.Now()
	scan := &Scan{
		ID:            s.idGenerator.Generate(),
		DeviceID:      req.DeviceID,
		Driver:        req.Driver.String(),
		DPI:           req.DPI,
		PaperSource:   string(req.PaperSource),
		TempDirectory: res.TempDirectory,
		ImagePaths:    res.ImagePaths,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.db.SaveScan(scan); err != nil {
		return nil, fmt.Errorf("saving scan to database: %w", err)
	}
	return scan, nil
}

// MarkExported attaches a JPEG export to a recorded scan
func (s *Service) MarkExported(id string, res protocol.JpegSaveResult) (*Scan, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	scan.ExportDir = res.Directory
	scan.ExportedFiles = res.Files
	scan.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveScan(scan); err != nil {
		return nil, fmt.Errorf("saving scan to database: %w", err)
	}
	return scan, nil
}

// MarkPdf attaches a PDF export to a recorded scan
func (s *Service) MarkPdf(id string, res protocol.PdfSaveResult) (*Scan, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	scan.PDFPath = res.Path
	scan.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveScan(scan); err != nil {
		return nil, fmt.Errorf("saving scan to database: %w", err)
	}
	return scan, nil
}

// Get retrieves a scan by ID
func (s *Service) Get(id string) (*Scan, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	return scan, nil
}

// List returns all scans, newest first
func (s *Service) List() ([]*Scan, error) {
	scans, err := s.db.ListScans()
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	sort.SliceStable(scans, func(i, j int) bool {
		return scans[i].CreatedAt.After(scans[j].CreatedAt)
	})
	return scans, nil
}

// Cleanup removes a scan's temp directory and its journal entry. Exported
// files are left alone.
func (s *Service) Cleanup(id string) error {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return fmt.Errorf("getting scan for cleanup: %w", err)
	}

	if scan.TempDirectory != "" {
		if err := s.removeAll(scan.TempDirectory); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", scan.TempDirectory, err)
		}
	}

	if err := s.db.DeleteScan(id); err != nil {
		return fmt.Errorf("deleting scan from database: %w", err)
	}
	slog.Debug("Cleaned up scan", "id", id, "dir", scan.TempDirectory)
	return nil
}

// CleanupOlderThan cleans up every scan created more than age ago and
// returns how many were removed. It keeps going after a failure and
// returns the joined errors.
func (s *Service) CleanupOlderThan(age time.Duration) (int, error) {
	scans, err := s.db.ListScans()
	if err != nil {
		return 0, fmt.Errorf("listing scans: %w", err)
	}

	cutoff := s.timeSource.Now().Add(-age)
	var (
		removed int
		errs    []error
	)
	for _, scan := range scans {
		if !scan.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.Cleanup(scan.ID); err != nil {
			slog.Warn("Failed to clean up scan", "id", scan.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
