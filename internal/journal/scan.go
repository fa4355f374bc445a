// Package journal records the scans made by the controller so their
// temporary directories can be found and cleaned up later.
package journal

import "time"

// Scan is one successful scan_to_images call
type Scan struct {
	ID            string    `json:"id"`
	DeviceID      string    `json:"device_id"`
	Driver        string    `json:"driver"`
	DPI           int       `json:"dpi"`
	PaperSource   string    `json:"paper_source,omitempty"`
	TempDirectory string    `json:"temp_directory"`
	ImagePaths    []string  `json:"image_paths"`
	ExportDir     string    `json:"export_dir,omitempty"`
	ExportedFiles []string  `json:"exported_files,omitempty"`
	PDFPath       string    `json:"pdf_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
