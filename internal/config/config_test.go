package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server {
		t.Fatal("expected worker mode by default")
	}
	if cfg.Mapper != "identity" || cfg.Reducer != "identity" {
		t.Fatalf("got mapper=%q reducer=%q", cfg.Mapper, cfg.Reducer)
	}
	if cfg.Port != 11235 {
		t.Fatalf("got port %d, want 11235", cfg.Port)
	}
}

func TestParseFlagsOverrideDefaults(t *testing.T) {
	cfg, err := Parse([]string{"-server", "-mapper=split", "-port=9999", "-timeout=30"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.Server {
		t.Fatal("expected server mode")
	}
	if cfg.Mapper != "split" {
		t.Fatalf("got mapper %q", cfg.Mapper)
	}
	if cfg.Port != 9999 {
		t.Fatalf("got port %d", cfg.Port)
	}
	if cfg.Timeout().Seconds() != 30 {
		t.Fatalf("got timeout %v", cfg.Timeout())
	}
}

func TestParseConfigFileThenFlagOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mrd.yaml")
	contents := "mapper: split\nreducer: sum\nport: 4000\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Parse([]string{"-config=" + path, "-port=5000"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Mapper != "split" {
		t.Fatalf("got mapper %q, want file value split", cfg.Mapper)
	}
	if cfg.Reducer != "sum" {
		t.Fatalf("got reducer %q, want file value sum", cfg.Reducer)
	}
	if cfg.Port != 5000 {
		t.Fatalf("got port %d, want flag override 5000", cfg.Port)
	}
}

func TestScanConfigFlagVariants(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"-config=a.yaml"}, "a.yaml"},
		{[]string{"--config=a.yaml"}, "a.yaml"},
		{[]string{"-config", "b.yaml"}, "b.yaml"},
		{[]string{"--config", "b.yaml"}, "b.yaml"},
		{[]string{"-server"}, ""},
	}
	for _, c := range cases {
		if got := scanConfigFlag(c.args); got != c.want {
			t.Errorf("scanConfigFlag(%v) = %q, want %q", c.args, got, c.want)
		}
	}
}
