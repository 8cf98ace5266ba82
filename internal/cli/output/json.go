package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter formats data as indented JSON. Stored strings are printed
// as stored: HTML characters are not escaped.
type JSONFormatter struct{}

// Format formats data as indented JSON.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
