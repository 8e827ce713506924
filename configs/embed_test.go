package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amansuggest/internal/config"
)

func TestConfigTemplate_LoadsCleanly(t *testing.T) {
	// Given: the template written to disk
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ConfigTemplate), 0o644))

	// When: loading it
	cfg, err := config.Load(path)

	// Then: it matches the built-in suggester defaults
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSuggesterConfig(), cfg.Suggester)
	assert.True(t, cfg.ProjectsEnabled)
	assert.Equal(t, "127.0.0.1:8089", cfg.Server.HTTPAddr)
}
