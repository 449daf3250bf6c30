package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saftcr.ini")
	if err := Write(path, &Config{Language: LanguageDanish}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Language != LanguageDanish {
		t.Errorf("got language %q, want %q", cfg.Language, LanguageDanish)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.ini")); err == nil {
		t.Error("expected an error loading a nonexistent config file")
	}
}

func TestLoadOrCreatePromptsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saftcr.ini")
	in := strings.NewReader("xx\nen\n")
	var out strings.Builder

	cfg, err := LoadOrCreate(path, in, &out)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if cfg.Language != LanguageEnglish {
		t.Errorf("got language %q, want %q", cfg.Language, LanguageEnglish)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected the config file to be written: %v", err)
	}

	reloaded, err := LoadOrCreate(path, strings.NewReader(""), &out)
	if err != nil {
		t.Fatalf("second LoadOrCreate should reuse the written file: %v", err)
	}
	if reloaded.Language != LanguageEnglish {
		t.Errorf("reloaded language = %q, want %q", reloaded.Language, LanguageEnglish)
	}
}
