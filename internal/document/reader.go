package document

import "os"

// FileReader abstracts document file access so the planner can be exercised
// without touching the filesystem.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// OSFileReader reads documents from the local filesystem.
type OSFileReader struct{}

func (OSFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// MapFileReader serves documents from an in-memory map, keyed by path. Used
// by tests and by bundle-style execution where documents are already inlined.
type MapFileReader map[string][]byte

func (m MapFileReader) ReadFile(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return data, nil
}
