package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"To Do", "In Progress", "Completed"}, cfg.Board.DefaultSections)
	assert.Equal(t, "/v1", cfg.Server.BasePath)

	statuses := cfg.StatusSet()
	assert.Equal(t, "pending", statuses.Default())
	assert.Equal(t, []string{"pending", "in_progress", "on_hold", "completed"}, statuses.Keys())
	assert.Equal(t, "On Hold", statuses.Labels()["on_hold"])

	ttl, err := cfg.CacheTTL()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, ttl)
}

func TestFromYAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := FromYAML([]byte("server:\n  addr: 0.0.0.0:9000\n"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Len(t, cfg.Board.DefaultSections, 3)
	assert.Equal(t, []string{"admin"}, cfg.AdminRoles())
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"duplicate status": "statuses:\n  - key: a\n  - key: a\n",
		"empty status key": "statuses:\n  - key: \"\"\n",
		"empty section":    "board:\n  default_sections: [\"\"]\n",
		"bad ttl":          "cache:\n  ttl: soon\n",
		"bad base path":    "server:\n  base_path: v1\n",
		"not yaml":         "server: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "pending", cfg.StatusSet().Default())
}

func TestLoadReadsWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	doc := "statuses:\n  - key: open\n    label: Open\n  - key: done\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(doc), 0o644))
	cfg, err := Load(dir)
	require.NoError(t, err)

	statuses := cfg.StatusSet()
	assert.Equal(t, "open", statuses.Default())
	assert.Equal(t, "done", statuses.Labels()["done"])

	key, ok := statuses.Normalize("  ")
	assert.True(t, ok)
	assert.Equal(t, "open", key)
	_, ok = statuses.Normalize("pending")
	assert.False(t, ok)
}
