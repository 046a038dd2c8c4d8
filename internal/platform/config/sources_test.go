package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/direqt/direqt-go/internal/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSources_ResolvePrecedence(t *testing.T) {
	sources := config.Sources{
		config.MapSource("flag", map[string]string{"apiroot": "https://flag.example.com"}),
		config.MapSource("project", map[string]string{"apiroot": "https://project.example.com", "apikey_id": "k-project"}),
		config.MapSource("env", map[string]string{"apikey_id": "k-env", "api_token": ""}),
		config.MapSource("default", map[string]string{"apiroot": "https://api.direqt.io/api/v0"}),
	}

	tests := []struct {
		key        string
		wantValue  string
		wantSource string
		wantOK     bool
	}{
		{key: "apiroot", wantValue: "https://flag.example.com", wantSource: "flag", wantOK: true},
		{key: "apikey_id", wantValue: "k-project", wantSource: "project", wantOK: true},
		{key: "api_token", wantOK: false},
		{key: "signing_secret", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			value, source, ok := sources.Resolve(tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantValue, value)
			assert.Equal(t, tt.wantSource, source)
		})
	}
}

func TestSources_FallsThroughToDefault(t *testing.T) {
	sources := config.Sources{
		config.MapSource("flag", nil),
		config.MapSource("default", map[string]string{"adsroot": "https://ads.example.com"}),
	}

	value, source, ok := sources.Resolve("adsroot")
	require.True(t, ok)
	assert.Equal(t, "https://ads.example.com", value)
	assert.Equal(t, "default", source)
	assert.Equal(t, "https://ads.example.com", sources.Get("adsroot"))
}

func TestEnvSource(t *testing.T) {
	t.Setenv("DIREQT_APIKEY_ID", "k-env")
	t.Setenv("DIREQT_APIKEY_SECRET", "s-env")

	src := config.EnvSource("env", "DIREQT_")

	v, ok := src.Lookup("apikey_id")
	require.True(t, ok)
	assert.Equal(t, "k-env", v)

	v, ok = src.Lookup("apikey_secret")
	require.True(t, ok)
	assert.Equal(t, "s-env", v)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is empty", func(t *testing.T) {
		src, err := config.FileSource("project", filepath.Join(dir, "direqt.json"))
		require.NoError(t, err)
		_, ok := src.Lookup("apiroot")
		assert.False(t, ok)
	})

	t.Run("reads flat json", func(t *testing.T) {
		path := filepath.Join(dir, "flat.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"apiroot":"https://x.example.com","apikey_id":"k1"}`), 0o600))

		src, err := config.FileSource("project", path)
		require.NoError(t, err)
		v, ok := src.Lookup("apikey_id")
		assert.True(t, ok)
		assert.Equal(t, "k1", v)
	})

	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

		_, err := config.FileSource("project", path)
		assert.Error(t, err)
	})
}

func TestSaveFile_Merges(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".direqt", "config.json")

	require.NoError(t, config.SaveFile(path, map[string]string{"api_token": "tok-1"}))
	require.NoError(t, config.SaveFile(path, map[string]string{"apikey_id": "k1", "apikey_secret": "s1"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, map[string]string{
		"api_token":     "tok-1",
		"apikey_id":     "k1",
		"apikey_secret": "s1",
	}, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
