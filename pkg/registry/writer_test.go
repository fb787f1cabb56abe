package registry

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mrd-project/mrd/pkg/wire"
)

func TestStreamWriter(t *testing.T) {
	var buf bytes.Buffer
	w := StreamWriter{Out: &buf}
	err := w.Write(map[any]any{int64(1): "b", int64(0): "a"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if strings.Index(out, "0: ") > strings.Index(out, "1: ") {
		t.Fatalf("expected key 0 before key 1, got: %s", out)
	}
}

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	w := FileWriter{Path: path}
	if err := w.Write(map[any]any{"k": "v"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "k:") {
		t.Fatalf("got %q", data)
	}
}

func TestCBORWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.cbor")
	w := CBORWriter{Path: path}
	if err := w.Write(map[any]any{"k": int64(3)}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var result map[any]any
	if err := wire.Unmarshal(data, &result); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	// wire.Unmarshal is the raw CBOR decode: a reader of a CBORWriter
	// file must normalize integers itself, just as DecodeMapResult et
	// al. do internally.
	if wire.NormalizeValue(result["k"]) != int64(3) {
		t.Fatalf("got %v", result)
	}
}

func TestWritersRegistryHasFileAndCBOR(t *testing.T) {
	if _, err := Writers.New("file"); err != nil {
		t.Fatalf("New(file): %v", err)
	}
	if _, err := Writers.New("cbor"); err != nil {
		t.Fatalf("New(cbor): %v", err)
	}
}
