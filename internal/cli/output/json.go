package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter renders host replies as indented JSON. HTML escaping is
// off so project roots and launch commands print as the host sent them.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
