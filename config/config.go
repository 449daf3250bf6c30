// Package config reads and (on first run) interactively creates the
// engine's INI configuration file: one [Settings] section with a single
// language key, following the original prompt-driven setup.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// Language is the report/locale language selector.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageDanish  Language = "dk"
)

func validLanguage(s string) (Language, bool) {
	switch Language(s) {
	case LanguageEnglish, LanguageDanish:
		return Language(s), true
	default:
		return "", false
	}
}

// Config is the loaded [Settings] block.
type Config struct {
	Language Language
}

// Load reads path as an INI file and returns its [Settings].language, or an
// error if the file or key is missing.
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("saftcr/config: cannot read %s: %w", path, err)
	}
	section, err := f.GetSection("Settings")
	if err != nil {
		return nil, fmt.Errorf("saftcr/config: missing [Settings] section: %w", err)
	}
	lang, ok := validLanguage(section.Key("language").String())
	if !ok {
		return nil, fmt.Errorf("saftcr/config: invalid or missing language setting")
	}
	return &Config{Language: lang}, nil
}

// Write saves cfg to path as INI.
func Write(path string, cfg *Config) error {
	f := ini.Empty()
	section, err := f.NewSection("Settings")
	if err != nil {
		return err
	}
	if _, err := section.NewKey("language", string(cfg.Language)); err != nil {
		return err
	}
	return f.SaveTo(path)
}

// LoadOrCreate loads path if it exists and is valid; otherwise it runs the
// interactive setup prompt against in/out, writes the result to path, and
// returns it (spec.md §6 "Created interactively on first run").
func LoadOrCreate(path string, in io.Reader, out io.Writer) (*Config, error) {
	if cfg, err := Load(path); err == nil {
		return cfg, nil
	}
	cfg, err := promptForLanguage(in, out)
	if err != nil {
		return nil, err
	}
	if err := Write(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func promptForLanguage(in io.Reader, out io.Writer) (*Config, error) {
	fmt.Fprintln(out, "Welcome to the language configuration setup.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Enter your preferred language code (dk/en): ")
		if !scanner.Scan() {
			return nil, fmt.Errorf("saftcr/config: input closed before a valid language was entered")
		}
		answer := strings.TrimSpace(scanner.Text())
		if lang, ok := validLanguage(answer); ok {
			return &Config{Language: lang}, nil
		}
	}
}

// DefaultPath returns the conventional location of the config file next to
// the running executable's working directory.
func DefaultPath() string {
	if wd, err := os.Getwd(); err == nil {
		return wd + string(os.PathSeparator) + "saftcr.ini"
	}
	return "saftcr.ini"
}
