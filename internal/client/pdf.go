package client

import (
	"context"

	"github.com/zombor/scanbridge/internal/protocol"
)

// PDFClient groups the PDF operations.
type PDFClient struct {
	c *Client
}

// Export writes imagePaths into a single PDF at outputPath, replacing any
// existing file. Every image must convert; otherwise nothing is written and
// the error matches ErrExportFailed.
func (p *PDFClient) Export(ctx context.Context, outputPath string, imagePaths []string) (*protocol.PdfSaveResult, error) {
	cmd := protocol.ExportPdf{OutputPath: outputPath, ImagePaths: imagePaths}
	out, err := p.c.call(ctx, cmd)
	if err != nil {
		return nil, err
	}
	res, err := protocol.DecodePdfSaveResult(out)
	if err != nil {
		return nil, decodeFailure(cmd.Name(), err)
	}
	return res, nil
}

// Import renders each page of pdfPath as an image in a new temp directory
// and returns the image paths in page order. The caller owns the directory
// containing them.
func (p *PDFClient) Import(ctx context.Context, pdfPath string) ([]string, error) {
	cmd := protocol.ImportPdf{PdfPath: pdfPath}
	out, err := p.c.call(ctx, cmd)
	if err != nil {
		return nil, err
	}
	paths, err := protocol.DecodeImagePaths(out)
	if err != nil {
		return nil, decodeFailure(cmd.Name(), err)
	}
	return paths, nil
}
