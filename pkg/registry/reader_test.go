package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGlobReader(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	data, err := GlobReader{}.Read(filepath.Join(dir, "*.txt"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(data) != 2 {
		t.Fatalf("got %d entries, want 2", len(data))
	}
}

func TestFileLineReader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	if err := os.WriteFile(path, []byte("alpha\nbeta\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := FileLineReader{}.Read(filepath.Join(dir, "*.txt"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(data) != 2 {
		t.Fatalf("got %d entries, want 2", len(data))
	}
	if data[path+":0"] != "alpha" || data[path+":1"] != "beta" {
		t.Fatalf("got %#v", data)
	}
}
