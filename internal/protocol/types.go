package protocol

import "fmt"

// ScannerDevice is a device reported by the helper. Ids are not guaranteed
// to be unique or stable across calls.
type ScannerDevice struct {
	ID     string `json:"Id"`
	Name   string `json:"Name"`
	Driver string `json:"Driver"`
}

// ScanResult lists the images acquired by one scan. The caller owns
// TempDirectory and everything in it.
type ScanResult struct {
	ImagePaths    []string `json:"ImagePaths"`
	TempDirectory string   `json:"TempDirectory"`
}

// JpegSaveResult is the outcome of a JPEG export. Count always equals
// len(Files) and Error is set iff Success is false.
type JpegSaveResult struct {
	Success    bool     `json:"Success"`
	Directory  string   `json:"Directory"`
	Files      []string `json:"Files"`
	Count      int      `json:"Count"`
	Error      *string  `json:"Error,omitempty"`
	StackTrace *string  `json:"StackTrace,omitempty"`
}

// PdfSaveResult is the payload of a pdf export call.
type PdfSaveResult struct {
	Path      string `json:"Path"`
	PageCount int    `json:"PageCount"`
}

// OcrLanguage is a language supported by the helper's OCR engine.
type OcrLanguage struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// OcrText is the payload of an ocr recognize call.
type OcrText struct {
	Text     string `json:"Text"`
	Language string `json:"Language"`
}

// ErrorKind tags an error payload.
type ErrorKind string

const (
	KindDeviceNotFound ErrorKind = "DeviceNotFound"
	KindUnsupported    ErrorKind = "Unsupported"
	KindScanFailed     ErrorKind = "ScanFailed"
	KindExportFailed   ErrorKind = "ExportFailed"
	KindImportFailed   ErrorKind = "ImportFailed"
	KindOcrFailed      ErrorKind = "OcrFailed"
)

// RemoteError is a domain failure reported by the helper inside a
// successfully decoded payload. It doubles as the wire shape of the error
// payload.
type RemoteError struct {
	Message    string    `json:"Error"`
	Kind       ErrorKind `json:"Kind,omitempty"`
	StackTrace string    `json:"StackTrace"`
}

func (e *RemoteError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("helper error: %s", e.Message)
	}
	return fmt.Sprintf("helper error (%s): %s", e.Kind, e.Message)
}
