package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/arjunmenon/quiesce/internal/model"
)

// WriteJSON serializes report as indented JSON. If path is "-" or empty,
// it writes to stdout. Adapted verbatim from melisai's output.WriteJSON.
func WriteJSON(report *model.Report, path string) error {
	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// LoadReport reads and parses a JSON report file, the read-side counterpart
// WriteJSON's format needs for `quiescectl diff` to compare two runs.
func LoadReport(path string) (*model.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var report model.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &report, nil
}
