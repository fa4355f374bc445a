package client

import (
	"context"

	"github.com/zombor/scanbridge/internal/protocol"
)

// ScanRequest describes one scan. Driver and PaperSource are optional; a
// zero DPI means protocol.DefaultDPI.
type ScanRequest struct {
	DeviceID    string
	Driver      protocol.Driver
	DPI         int
	PaperSource protocol.PaperSource
}

// ScanClient groups the scanning operations.
type ScanClient struct {
	c *Client
}

// ListDevices enumerates devices for driver, or for the helper's default
// driver when driver is empty. An empty list is a valid result: the driver
// may have no devices or be unavailable in the helper's environment.
func (s *ScanClient) ListDevices(ctx context.Context, driver protocol.Driver) ([]protocol.ScannerDevice, error) {
	cmd := protocol.ListDevices{Driver: driver}
	out, err := s.c.call(ctx, cmd)
	if err != nil {
		return nil, err
	}
	devices, err := protocol.DecodeDevices(out)
	if err != nil {
		return nil, decodeFailure(cmd.Name(), err)
	}
	return devices, nil
}

// ScanToImages scans with the device identified by req.DeviceID. The helper
// resolves the id against its own enumeration; an unknown id yields an error
// matching ErrDeviceNotFound. The caller owns the returned TempDirectory.
func (s *ScanClient) ScanToImages(ctx context.Context, req ScanRequest) (*protocol.ScanResult, error) {
	cmd := protocol.ScanToImages{
		DeviceID:    req.DeviceID,
		Driver:      req.Driver,
		DPI:         req.DPI,
		PaperSource: req.PaperSource,
	}
	out, err := s.c.call(ctx, cmd)
	if err != nil {
		return nil, err
	}
	res, err := protocol.DecodeScanResult(out)
	if err != nil {
		return nil, decodeFailure(cmd.Name(), err)
	}
	s.c.logger.Debug("Scan complete", "device", req.DeviceID, "pages", len(res.ImagePaths), "dir", res.TempDirectory)
	return res, nil
}
