package registry

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mrd-project/mrd/pkg/wire"
)

// Writer consumes a finished job's results.
type Writer interface {
	Write(result map[any]any) error
}

// Writers is the registry of available Writer implementations.
var Writers = NewRegistry[Writer]()

// StreamWriter writes "key: value\n" for every result, sorted by the
// string form of the key for reproducible output, to an io.Writer. The
// zero value writes to os.Stdout.
type StreamWriter struct {
	Out io.Writer
}

// Write implements Writer.
func (w StreamWriter) Write(result map[any]any) error {
	out := w.Out
	if out == nil {
		out = os.Stdout
	}
	for _, key := range sortedKeys(result) {
		if _, err := fmt.Fprintf(out, "%v: %#v\n", key, result[key]); err != nil {
			return fmt.Errorf("registry: StreamWriter: %w", err)
		}
	}
	return nil
}

// FileWriter writes results to a named file in the same format as
// StreamWriter.
type FileWriter struct {
	Path string
}

// Write implements Writer.
func (w FileWriter) Write(result map[any]any) error {
	f, err := os.Create(w.Path)
	if err != nil {
		return fmt.Errorf("registry: FileWriter: %w", err)
	}
	defer f.Close()
	return StreamWriter{Out: f}.Write(result)
}

// CBORWriter writes the results map as a single CBOR-encoded map to a
// named file, for consumers that want to read the results back as
// structured data rather than parse "key: value" lines. It replaces the
// pickle-writer suggestion from the original design with this system's
// one concrete self-describing encoding. A reader decoding the file back
// with wire.Unmarshal should pass every value through wire.NormalizeValue,
// the same way wire's own Decode* functions do, since raw CBOR decode
// turns positive integers into uint64 rather than int64.
type CBORWriter struct {
	Path string
}

// Write implements Writer.
func (w CBORWriter) Write(result map[any]any) error {
	data, err := wire.Marshal(result)
	if err != nil {
		return fmt.Errorf("registry: CBORWriter: encoding results: %w", err)
	}
	if err := os.WriteFile(w.Path, data, 0o644); err != nil {
		return fmt.Errorf("registry: CBORWriter: %w", err)
	}
	return nil
}

// sortedKeys returns result's keys ordered by their string
// representation, for reproducible output despite map[any]any's
// unspecified iteration order.
func sortedKeys(result map[any]any) []any {
	strs := make([]string, 0, len(result))
	byStr := make(map[string]any, len(result))
	for k := range result {
		s := fmt.Sprintf("%v", k)
		strs = append(strs, s)
		byStr[s] = k
	}
	sort.Strings(strs)

	keys := make([]any, len(strs))
	for i, s := range strs {
		keys[i] = byStr[s]
	}
	return keys
}

func init() {
	Writers.RegisterDefault("stdout", func() Writer { return StreamWriter{} })
	Writers.Register("file", func() Writer { return FileWriter{} })
	Writers.Register("cbor", func() Writer { return CBORWriter{} })
}
