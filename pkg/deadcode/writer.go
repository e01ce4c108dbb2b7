package deadcode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact file names written by WriteReports.
const (
	ReportFile         = "dead_code.json"
	DeleteListFile     = "delete_list.txt"
	DeleteListHighFile = "delete_list_high.txt"
)

// MarshalReport renders the dead_code.json document.
func MarshalReport(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// WriteReports writes dead_code.json, delete_list.txt and
// delete_list_high.txt into dir, creating it if needed. Lists hold one
// path per line without a trailing newline.
func WriteReports(dir string, r *Report) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := MarshalReport(r)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	files := []struct {
		name string
		data []byte
	}{
		{ReportFile, data},
		{DeleteListFile, []byte(strings.Join(r.DeleteList, "\n"))},
		{DeleteListHighFile, []byte(strings.Join(r.DeleteListHigh, "\n"))},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), f.data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
	}
	return nil
}
