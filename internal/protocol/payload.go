package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// WritePayload serializes v as the single payload of a helper invocation.
func WritePayload(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing payload: %w", err)
	}
	return nil
}
