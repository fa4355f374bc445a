package engine

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zombor/scanbridge/internal/protocol"
)

const (
	esclDefaultTimeout = 60 * time.Second
	esclBusyRetries    = 20
)

// Escl drives network scanners speaking eSCL (AirScan). Hosts are base URLs
// such as http://192.168.1.20/eSCL; each reachable host is one device whose
// id is its base URL.
type Escl struct {
	hosts   []string
	client  *http.Client
	limiter *rate.Limiter
	retries int
	logger  *slog.Logger
}

// NewEscl creates an eSCL backend for hosts.
func NewEscl(hosts []string, timeout time.Duration, logger *slog.Logger) *Escl {
	if timeout <= 0 {
		timeout = esclDefaultTimeout
	}
	return NewEsclWithClient(hosts, &http.Client{Timeout: timeout}, rate.NewLimiter(rate.Every(500*time.Millisecond), 1), logger)
}

// NewEsclWithClient creates an eSCL backend with a custom HTTP client and
// busy-retry limiter for testing.
func NewEsclWithClient(hosts []string, client *http.Client, limiter *rate.Limiter, logger *slog.Logger) *Escl {
	if logger == nil {
		logger = slog.Default()
	}
	trimmed := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.TrimRight(strings.TrimSpace(h), "/"); h != "" {
			trimmed = append(trimmed, h)
		}
	}
	return &Escl{hosts: trimmed, client: client, limiter: limiter, retries: esclBusyRetries, logger: logger}
}

type esclCapabilities struct {
	MakeAndModel string `xml:"MakeAndModel"`
	UUID         string `xml:"UUID"`
}

// Devices queries each host's capabilities. Unreachable hosts are skipped.
func (e *Escl) Devices(ctx context.Context) ([]protocol.ScannerDevice, error) {
	devices := []protocol.ScannerDevice{}
	for _, host := range e.hosts {
		caps, err := e.capabilities(ctx, host)
		if err != nil {
			e.logger.Warn("eSCL host unreachable", "host", host, "error", err)
			continue
		}
		name := strings.TrimSpace(caps.MakeAndModel)
		if name == "" {
			name = host
		}
		devices = append(devices, protocol.ScannerDevice{ID: host, Name: name, Driver: protocol.DriverEscl.String()})
	}
	return devices, nil
}

func (e *Escl) capabilities(ctx context.Context, host string) (*esclCapabilities, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/ScannerCapabilities", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling scanner: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scanner capabilities (status %d)", resp.StatusCode)
	}
	var caps esclCapabilities
	if err := xml.NewDecoder(resp.Body).Decode(&caps); err != nil {
		return nil, fmt.Errorf("decoding capabilities: %w", err)
	}
	return &caps, nil
}

const esclScanSettings = `<?xml version="1.0" encoding="UTF-8"?>
<scan:ScanSettings xmlns:scan="http://schemas.hp.com/imaging/escl/2011/05/03" xmlns:pwg="http://www.pwg.org/schemas/2010/12/sm">
  <pwg:Version>2.0</pwg:Version>
  <scan:Intent>Document</scan:Intent>
  <pwg:InputSource>%s</pwg:InputSource>%s
  <scan:ColorMode>RGB24</scan:ColorMode>
  <pwg:DocumentFormat>image/jpeg</pwg:DocumentFormat>
  <scan:DocumentFormatExt>image/jpeg</scan:DocumentFormatExt>
  <scan:XResolution>%d</scan:XResolution>
  <scan:YResolution>%d</scan:YResolution>
</scan:ScanSettings>`

func esclSettings(opts ScanOptions) []byte {
	dpi := opts.DPI
	if dpi <= 0 {
		dpi = protocol.DefaultDPI
	}
	source, duplex := "Platen", ""
	switch opts.PaperSource {
	case protocol.PaperSourceFeeder:
		source = "Feeder"
	case protocol.PaperSourceDuplex:
		source = "Feeder"
		duplex = "\n  <scan:Duplex>true</scan:Duplex>"
	}
	return []byte(fmt.Sprintf(esclScanSettings, source, duplex, dpi, dpi))
}

// Scan creates a scan job and pulls NextDocument until the scanner reports
// no more pages. Platen scans keep one page and then close the job.
func (e *Escl) Scan(ctx context.Context, device protocol.ScannerDevice, opts ScanOptions, dir string) ([]string, error) {
	job, err := e.createJob(ctx, device.ID, opts)
	if err != nil {
		return nil, err
	}

	multiPage := opts.PaperSource == protocol.PaperSourceFeeder || opts.PaperSource == protocol.PaperSourceDuplex
	var pages []string
	for n := 1; ; n++ {
		path, done, err := e.nextDocument(ctx, job, dir, n)
		if err != nil {
			e.cancelJob(job)
			return nil, fmt.Errorf("fetching page %d: %w", n, err)
		}
		if done {
			break
		}
		pages = append(pages, path)
		if !multiPage {
			e.finishJob(ctx, job)
			break
		}
	}
	return pages, nil
}

// finishJob asks for the page after the last one wanted so the scanner
// retires the job. A scanner that still has a document gets the job
// deleted instead.
func (e *Escl) finishJob(ctx context.Context, job string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job+"/NextDocument", nil)
	if err != nil {
		e.cancelJob(job)
		return
	}
	resp, err := e.client.Do(req)
	if err != nil {
		e.cancelJob(job)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusGone {
		e.logger.Debug("eSCL job still open after last page", "job", job, "status", resp.StatusCode)
		e.cancelJob(job)
	}
}

func (e *Escl) createJob(ctx context.Context, host string, opts ScanOptions) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+"/ScanJobs", bytes.NewReader(esclSettings(opts)))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("creating scan job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("creating scan job (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("creating scan job: no Location header")
	}
	base, err := url.Parse(host + "/")
	if err != nil {
		return "", fmt.Errorf("parsing host: %w", err)
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("parsing job location: %w", err)
	}
	return strings.TrimRight(base.ResolveReference(ref).String(), "/"), nil
}

// nextDocument fetches page n. done is true once the job has no more pages.
func (e *Escl) nextDocument(ctx context.Context, job, dir string, n int) (path string, done bool, err error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, job+"/NextDocument", nil)
		if err != nil {
			return "", false, fmt.Errorf("creating request: %w", err)
		}
		resp, err := e.client.Do(req)
		if err != nil {
			return "", false, fmt.Errorf("calling scanner: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			path, err := savePage(resp, dir, n)
			resp.Body.Close()
			return path, false, err
		case http.StatusNotFound, http.StatusGone:
			resp.Body.Close()
			return "", true, nil
		case http.StatusServiceUnavailable:
			resp.Body.Close()
			if attempt >= e.retries {
				return "", false, fmt.Errorf("scanner busy after %d retries", attempt)
			}
			if err := e.limiter.Wait(ctx); err != nil {
				return "", false, err
			}
		default:
			resp.Body.Close()
			return "", false, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
	}
}

func savePage(resp *http.Response, dir string, n int) (string, error) {
	ext := ".jpg"
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		switch mt {
		case "image/png":
			ext = ".png"
		case "application/pdf":
			ext = ".pdf"
		}
	}
	path := PagePath(dir, n, ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating page file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("writing page: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing page: %w", err)
	}
	return path, nil
}

// cancelJob asks the scanner to drop job, ignoring failures.
func (e *Escl) cancelJob(job string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, job, nil)
	if err != nil {
		return
	}
	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Debug("Failed to cancel eSCL job", "job", job, "error", err)
		return
	}
	resp.Body.Close()
}
