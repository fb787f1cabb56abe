package registry

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Reader builds the job's datasource: the initial map of keys to values
// handed out as map tasks.
type Reader interface {
	Read(inputPattern string) (map[any]any, error)
}

// Readers is the registry of available Reader implementations.
var Readers = NewRegistry[Reader]()

// GlobReader expands inputPattern with filepath.Glob and emits one entry
// per matched path, keyed by its index in sorted order.
type GlobReader struct{}

// Read implements Reader.
func (GlobReader) Read(inputPattern string) (map[any]any, error) {
	matches, err := filepath.Glob(inputPattern)
	if err != nil {
		return nil, fmt.Errorf("registry: GlobReader: %w", err)
	}
	sort.Strings(matches)

	data := make(map[any]any, len(matches))
	for i, path := range matches {
		data[int64(i)] = path
	}
	return data, nil
}

// FileLineReader expands inputPattern with filepath.Glob and emits one
// entry per line of every matched file, keyed as "path:lineIndex".
type FileLineReader struct{}

// Read implements Reader.
func (FileLineReader) Read(inputPattern string) (map[any]any, error) {
	matches, err := filepath.Glob(inputPattern)
	if err != nil {
		return nil, fmt.Errorf("registry: FileLineReader: %w", err)
	}
	sort.Strings(matches)

	data := make(map[any]any)
	for _, path := range matches {
		if err := readLinesInto(path, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func readLinesInto(path string, data map[any]any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("registry: FileLineReader: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for i := 0; scanner.Scan(); i++ {
		data[fmt.Sprintf("%s:%d", path, i)] = scanner.Text()
	}
	return scanner.Err()
}

func init() {
	Readers.RegisterDefault("glob", func() Reader { return GlobReader{} })
	Readers.Register("lines", func() Reader { return FileLineReader{} })
}
