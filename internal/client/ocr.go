package client

import (
	"context"

	"github.com/zombor/scanbridge/internal/protocol"
)

// OCRClient groups the OCR operations.
type OCRClient struct {
	c *Client
}

// Languages lists the languages of the helper's OCR engine.
func (o *OCRClient) Languages(ctx context.Context) ([]protocol.OcrLanguage, error) {
	cmd := protocol.OcrLanguages{}
	out, err := o.c.call(ctx, cmd)
	if err != nil {
		return nil, err
	}
	langs, err := protocol.DecodeOcrLanguages(out)
	if err != nil {
		return nil, decodeFailure(cmd.Name(), err)
	}
	return langs, nil
}

// Recognize returns the text found in imagePath.
func (o *OCRClient) Recognize(ctx context.Context, imagePath, language string) (string, error) {
	cmd := protocol.OcrRecognize{ImagePath: imagePath, Language: language}
	out, err := o.c.call(ctx, cmd)
	if err != nil {
		return "", err
	}
	res, err := protocol.DecodeOcrText(out)
	if err != nil {
		return "", decodeFailure(cmd.Name(), err)
	}
	return res.Text, nil
}
