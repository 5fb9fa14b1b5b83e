package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadClampsFramesInFlight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ember.toml")
	data := `
[renderer]
frames_in_flight = 8
block_step_size = 128
max_block_size = 64
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), cfg.Renderer.FramesInFlight)
	assert.Equal(t, uint32(128), cfg.Renderer.BlockStepSize)
	assert.Equal(t, uint32(128*8), cfg.Renderer.MaxBlockSize)
}

func TestLoadRoundsMaxBlockSizeToStepMultiple(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ember.toml")
	data := `
[renderer]
block_step_size = 256
max_block_size = 1000
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(1024), cfg.Renderer.MaxBlockSize)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ember.toml")
	data := `
[application]
name = "Sandbox"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Sandbox", cfg.Application.Name)
	assert.Equal(t, uint32(1280), cfg.Application.Width)
	assert.Equal(t, uint32(2), cfg.Renderer.FramesInFlight)
}
