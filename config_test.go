package hooptrack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 20, cfg.Detector.BatchSize)
	assert.Equal(t, float32(0.5), cfg.Detector.Confidence)
	assert.Equal(t, 25.0, cfg.Ball.MaxDistance)
	assert.Equal(t, 50, cfg.Team.ResetEvery)
	assert.Equal(t, "white shirt", cfg.Team.Team1Label)
	assert.Equal(t, "dark blue shirt", cfg.Team.Team2Label)
}

func TestLoadConfigMergesFileOverDefaults(t *testing.T) {

	path := filepath.Join(t.TempDir(), "hooptrack.yaml")
	data := []byte(`
detector:
  batch_size: 8
  model: models/player_detector.onnx
ball:
  max_distance: 40
stubs:
  read: true
  ball: ""
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Detector.BatchSize)
	assert.Equal(t, "models/player_detector.onnx", cfg.Detector.Model)
	assert.Equal(t, float32(0.5), cfg.Detector.Confidence)
	assert.Equal(t, 40.0, cfg.Ball.MaxDistance)
	assert.True(t, cfg.Stubs.ReadFromStub)
	assert.Equal(t, "", cfg.Stubs.Ball)
	assert.Equal(t, DefaultConfig().Stubs.Players, cfg.Stubs.Players)
	assert.Equal(t, 50, cfg.Team.ResetEvery)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("HOOPTRACK_TEAM_RESET_EVERY", "75")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.Team.ResetEvery)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {

	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"zero batch", func(c *Config) { c.Detector.BatchSize = 0 }, "detector.batch_size"},
		{"confidence above one", func(c *Config) { c.Detector.Confidence = 1.5 }, "detector.confidence"},
		{"negative distance", func(c *Config) { c.Ball.MaxDistance = -1 }, "ball.max_distance"},
		{"zero window", func(c *Config) { c.Team.ResetEvery = 0 }, "team.reset_every"},
		{"same labels", func(c *Config) { c.Team.Team2Label = c.Team.Team1Label }, "distinct"},
		{"no ball class", func(c *Config) { c.Ball.Class = "" }, "ball.class"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}
