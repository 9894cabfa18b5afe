package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// Entry is one file inside a batch export archive.
type Entry struct {
	Name string
	Data []byte
}

// Build assembles the entries into a zip archive held in memory. Batch
// exports are bounded by the maximum batch size, so buffering the whole
// archive is fine.
func Build(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, entry := range entries {
		w, err := zw.Create(entry.Name)
		if err != nil {
			return nil, fmt.Errorf("archive: create %s: %w", entry.Name, err)
		}
		if _, err := w.Write(entry.Data); err != nil {
			return nil, fmt.Errorf("archive: write %s: %w", entry.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive: finalize: %w", err)
	}
	return buf.Bytes(), nil
}
