package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const maxSnippet = 200

// DecodeError reports a payload that does not have the shape the issued
// command declares. It is never used for domain failures; those decode into
// a RemoteError.
type DecodeError struct {
	Reason  string
	Snippet string
	Err     error
}

func (e *DecodeError) Error() string {
	msg := "decoding helper payload: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Snippet != "" {
		msg += fmt.Sprintf(" (payload: %q)", e.Snippet)
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(data []byte, err error, format string, a ...any) error {
	snippet := string(data)
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet] + "..."
	}
	return &DecodeError{Reason: fmt.Sprintf(format, a...), Snippet: snippet, Err: err}
}

// prepare trims the payload and rejects an empty one.
func prepare(stdout []byte) ([]byte, error) {
	data := bytes.TrimSpace(stdout)
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty payload"}
	}
	return data, nil
}

// errorPayload recognizes the error-as-payload shape: an object with an
// Error key that lacks the result's discriminating field. discriminator ""
// means any object carrying Error is an error payload.
func errorPayload(data []byte, discriminator string) (*RemoteError, bool) {
	if len(data) == 0 || data[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, false
	}
	if _, ok := fields["Error"]; !ok {
		return nil, false
	}
	if discriminator != "" {
		if _, ok := fields[discriminator]; ok {
			return nil, false
		}
	}
	var wire struct {
		Error      *string   `json:"Error"`
		Kind       ErrorKind `json:"Kind"`
		StackTrace *string   `json:"StackTrace"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, false
	}
	re := &RemoteError{Kind: wire.Kind}
	if wire.Error != nil {
		re.Message = *wire.Error
	}
	if wire.StackTrace != nil {
		re.StackTrace = *wire.StackTrace
	}
	return re, true
}

// DecodeDevices decodes a device list payload. An empty array decodes to
// an empty, non-nil slice.
func DecodeDevices(stdout []byte) ([]ScannerDevice, error) {
	data, err := prepare(stdout)
	if err != nil {
		return nil, err
	}
	if re, ok := errorPayload(data, ""); ok {
		return nil, re
	}

	var wire []struct {
		ID     *string `json:"Id"`
		Name   string  `json:"Name"`
		Driver string  `json:"Driver"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, decodeErr(data, err, "device list")
	}

	devices := make([]ScannerDevice, 0, len(wire))
	for i, w := range wire {
		if w.ID == nil {
			return nil, decodeErr(data, nil, "device %d: missing Id", i)
		}
		devices = append(devices, ScannerDevice{ID: *w.ID, Name: w.Name, Driver: w.Driver})
	}
	return devices, nil
}

// DecodeScanResult decodes a scan payload. Paths are returned verbatim.
func DecodeScanResult(stdout []byte) (*ScanResult, error) {
	data, err := prepare(stdout)
	if err != nil {
		return nil, err
	}
	if re, ok := errorPayload(data, "ImagePaths"); ok {
		return nil, re
	}

	var wire struct {
		ImagePaths    *[]string `json:"ImagePaths"`
		TempDirectory *string   `json:"TempDirectory"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, decodeErr(data, err, "scan result")
	}
	if wire.ImagePaths == nil {
		return nil, decodeErr(data, nil, "scan result: missing ImagePaths")
	}
	if wire.TempDirectory == nil {
		return nil, decodeErr(data, nil, "scan result: missing TempDirectory")
	}
	return &ScanResult{ImagePaths: *wire.ImagePaths, TempDirectory: *wire.TempDirectory}, nil
}

// DecodeJpegSaveResult decodes an export payload and checks its
// invariants: Count matches Files and Error is set iff Success is false.
func DecodeJpegSaveResult(stdout []byte) (*JpegSaveResult, error) {
	data, err := prepare(stdout)
	if err != nil {
		return nil, err
	}
	if re, ok := errorPayload(data, "Success"); ok {
		return nil, re
	}

	var wire struct {
		Success    *bool    `json:"Success"`
		Directory  string   `json:"Directory"`
		Files      []string `json:"Files"`
		Count      *int     `json:"Count"`
		Error      *string  `json:"Error"`
		StackTrace *string  `json:"StackTrace"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, decodeErr(data, err, "jpeg save result")
	}
	if wire.Success == nil {
		return nil, decodeErr(data, nil, "jpeg save result: missing Success")
	}

	res := &JpegSaveResult{
		Success:    *wire.Success,
		Directory:  wire.Directory,
		Files:      wire.Files,
		Error:      wire.Error,
		StackTrace: wire.StackTrace,
	}
	if res.Files == nil {
		res.Files = []string{}
	}
	res.Count = len(res.Files)
	if wire.Count != nil && *wire.Count != res.Count {
		return nil, decodeErr(data, nil, "jpeg save result: Count %d does not match %d files", *wire.Count, res.Count)
	}

	hasError := res.Error != nil && *res.Error != ""
	switch {
	case res.Success && hasError:
		return nil, decodeErr(data, nil, "jpeg save result: Error set on a successful result")
	case !res.Success && !hasError:
		return nil, decodeErr(data, nil, "jpeg save result: failed result without Error")
	}
	if !hasError {
		res.Error = nil
	}
	return res, nil
}

// DecodePdfSaveResult decodes a pdf export payload.
func DecodePdfSaveResult(stdout []byte) (*PdfSaveResult, error) {
	data, err := prepare(stdout)
	if err != nil {
		return nil, err
	}
	if re, ok := errorPayload(data, "Path"); ok {
		return nil, re
	}

	var wire struct {
		Path      *string `json:"Path"`
		PageCount int     `json:"PageCount"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, decodeErr(data, err, "pdf save result")
	}
	if wire.Path == nil || *wire.Path == "" {
		return nil, decodeErr(data, nil, "pdf save result: missing Path")
	}
	if wire.PageCount <= 0 {
		return nil, decodeErr(data, nil, "pdf save result: invalid PageCount %d", wire.PageCount)
	}
	return &PdfSaveResult{Path: *wire.Path, PageCount: wire.PageCount}, nil
}

// DecodeImagePaths decodes the path list of a pdf import. Paths are
// returned verbatim.
func DecodeImagePaths(stdout []byte) ([]string, error) {
	data, err := prepare(stdout)
	if err != nil {
		return nil, err
	}
	if re, ok := errorPayload(data, ""); ok {
		return nil, re
	}

	var paths []string
	if err := json.Unmarshal(data, &paths); err != nil {
		return nil, decodeErr(data, err, "image paths")
	}
	if paths == nil {
		return nil, decodeErr(data, nil, "image paths: not an array")
	}
	for i, p := range paths {
		if p == "" {
			return nil, decodeErr(data, nil, "image path %d is empty", i)
		}
	}
	return paths, nil
}

// DecodeOcrLanguages decodes a language list payload.
func DecodeOcrLanguages(stdout []byte) ([]OcrLanguage, error) {
	data, err := prepare(stdout)
	if err != nil {
		return nil, err
	}
	if re, ok := errorPayload(data, ""); ok {
		return nil, re
	}

	var wire []struct {
		Code *string `json:"code"`
		Name string  `json:"name"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, decodeErr(data, err, "ocr languages")
	}
	langs := make([]OcrLanguage, 0, len(wire))
	for i, w := range wire {
		if w.Code == nil || *w.Code == "" {
			return nil, decodeErr(data, nil, "ocr language %d: missing code", i)
		}
		langs = append(langs, OcrLanguage{Code: *w.Code, Name: w.Name})
	}
	return langs, nil
}

// DecodeOcrText decodes a recognize payload.
func DecodeOcrText(stdout []byte) (*OcrText, error) {
	data, err := prepare(stdout)
	if err != nil {
		return nil, err
	}
	if re, ok := errorPayload(data, "Text"); ok {
		return nil, re
	}

	var wire struct {
		Text     *string `json:"Text"`
		Language string  `json:"Language"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, decodeErr(data, err, "ocr text")
	}
	if wire.Text == nil {
		return nil, decodeErr(data, nil, "ocr text: missing Text")
	}
	return &OcrText{Text: *wire.Text, Language: wire.Language}, nil
}

// IsDecodeError reports whether err is, or wraps, a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
