package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// writeJSON prints v followed by a newline. With doubleEncode the JSON text is
// itself printed as a JSON string.
func writeJSON(w io.Writer, v any, indent string, doubleEncode bool) error {
	payload, err := encode(v, indent)
	if err != nil {
		return err
	}
	if doubleEncode {
		if payload, err = encode(string(payload), ""); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "%s\n", payload); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func encode(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
