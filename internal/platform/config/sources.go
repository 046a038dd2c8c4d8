package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Source is one named layer of configuration values.
type Source struct {
	Name string
	k    *koanf.Koanf
}

// Lookup returns the value of key in this layer. Empty values count as absent.
func (s Source) Lookup(key string) (string, bool) {
	if s.k == nil || !s.k.Exists(key) {
		return "", false
	}
	v := s.k.String(key)
	if v == "" {
		return "", false
	}
	return v, true
}

// MapSource builds a layer from in-memory values, such as parsed flags or defaults.
func MapSource(name string, values map[string]string) Source {
	m := make(map[string]any, len(values))
	for key, v := range values {
		m[key] = v
	}
	k := koanf.New(".")
	_ = k.Load(confmap.Provider(m, "."), nil)
	return Source{Name: name, k: k}
}

// FileSource loads a flat JSON file. A missing file yields an empty layer; a
// file that exists but cannot be parsed is an error.
func FileSource(name, path string) (Source, error) {
	k := koanf.New(".")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Source{Name: name, k: k}, nil
	}
	if err := k.Load(file.Provider(path), json.Parser()); err != nil {
		return Source{}, fmt.Errorf("loading %s: %w", path, err)
	}
	return Source{Name: name, k: k}, nil
}

// EnvSource maps PREFIX_SOME_KEY to some_key.
func EnvSource(name, prefix string) Source {
	k := koanf.New(".")
	_ = k.Load(env.Provider(prefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, prefix))
	}), nil)
	return Source{Name: name, k: k}
}

// Sources are consulted in order; earlier layers win.
type Sources []Source

// Resolve returns the first non-empty value for key and the name of the layer
// it came from.
func (s Sources) Resolve(key string) (value, source string, ok bool) {
	for _, src := range s {
		if v, found := src.Lookup(key); found {
			return v, src.Name, true
		}
	}
	return "", "", false
}

// Get is Resolve without the provenance.
func (s Sources) Get(key string) string {
	v, _, _ := s.Resolve(key)
	return v
}

// SaveFile merges values into the flat JSON file at path, creating it and its
// directory if needed. The file is written with owner-only permissions since
// it may hold credentials.
func SaveFile(path string, values map[string]string) error {
	k := koanf.New(".")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	for key, v := range values {
		if err := k.Set(key, v); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}

	out, err := k.Marshal(json.Parser())
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
