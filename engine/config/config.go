package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/emberengine/ember/engine/core"
)

type ApplicationConfig struct {
	Name   string `toml:"name"`
	StartX int32  `toml:"start_x"`
	StartY int32  `toml:"start_y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	// Number of frames the CPU may record ahead of the GPU. Clamped to [2, 3].
	FramesInFlight uint32 `toml:"frames_in_flight"`
	// Scratch allocator size-class step and ceiling, in bytes.
	BlockStepSize uint32 `toml:"block_step_size"`
	MaxBlockSize  uint32 `toml:"max_block_size"`
	// Descriptors per CPU/GPU descriptor pool page.
	DescriptorsPerPool uint32 `toml:"descriptors_per_pool"`
	// When set, device call failures panic instead of returning an error.
	VerifyCalls      bool `toml:"verify_calls"`
	ValidationLayers bool `toml:"validation_layers"`
	VSync            bool `toml:"vsync"`
}

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Renderer    RendererConfig    `toml:"renderer"`
}

func Defaults() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:   "Ember Application",
			StartX: 100,
			StartY: 100,
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			FramesInFlight:     2,
			BlockStepSize:      256,
			MaxBlockSize:       2048,
			DescriptorsPerPool: 512,
			VerifyCalls:        false,
			ValidationLayers:   false,
			VSync:              true,
		},
	}
}

// Load reads a TOML config file, filling in defaults for anything unset.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			core.LogWarn("config file %s not found, using defaults", path)
			return cfg, nil
		}
		core.LogError("failed to read config file %s", path)
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		core.LogError("failed to parse config file %s", path)
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.Renderer.FramesInFlight < 2 {
		c.Renderer.FramesInFlight = 2
	}
	if c.Renderer.FramesInFlight > 3 {
		c.Renderer.FramesInFlight = 3
	}
	if c.Renderer.BlockStepSize == 0 {
		c.Renderer.BlockStepSize = 256
	}
	if c.Renderer.MaxBlockSize < c.Renderer.BlockStepSize {
		c.Renderer.MaxBlockSize = c.Renderer.BlockStepSize * 8
	}
	// The scratch allocator sizes one pool per step, so the ceiling must be
	// a whole number of steps. A config mistake gets rounded up, not trapped.
	if rem := c.Renderer.MaxBlockSize % c.Renderer.BlockStepSize; rem != 0 {
		c.Renderer.MaxBlockSize += c.Renderer.BlockStepSize - rem
	}
	if c.Renderer.DescriptorsPerPool == 0 {
		c.Renderer.DescriptorsPerPool = 512
	}
}
