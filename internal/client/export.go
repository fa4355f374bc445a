package client

import (
	"context"

	"github.com/zombor/scanbridge/internal/protocol"
)

// ExportClient groups the image export operations.
type ExportClient struct {
	c *Client
}

// Jpeg re-encodes imagePaths as JPEG files in outputDir. Images the helper
// cannot process are left out of Files; that alone is not a failure. When
// the helper reports Success=false the result is returned together with an
// error matching ErrExportFailed.
func (e *ExportClient) Jpeg(ctx context.Context, outputDir string, imagePaths []string) (*protocol.JpegSaveResult, error) {
	cmd := protocol.ExportJpeg{OutputDir: outputDir, ImagePaths: imagePaths}
	out, err := e.c.call(ctx, cmd)
	if err != nil {
		return nil, err
	}
	res, err := protocol.DecodeJpegSaveResult(out)
	if err != nil {
		return nil, decodeFailure(cmd.Name(), err)
	}
	if !res.Success {
		return res, &Error{Op: cmd.Name(), Kind: ErrExportFailed, Message: *res.Error}
	}
	if skipped := len(imagePaths) - res.Count; skipped > 0 {
		e.c.logger.Info("Some images were not exported", "requested", len(imagePaths), "exported", res.Count)
	}
	return res, nil
}

// SaveAsJpeg is shorthand for Export().Jpeg.
func (c *Client) SaveAsJpeg(ctx context.Context, imagePaths []string, outputDir string) (*protocol.JpegSaveResult, error) {
	return c.export.Jpeg(ctx, outputDir, imagePaths)
}
