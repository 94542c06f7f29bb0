package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/keyglow/internal/matrix"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestSaveLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	c := Default()
	c.Driver = "i2c"
	c.Power.BudgetMA = 400
	require.NoError(t, Save(path, c))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
driver: console
luminosity: 100
i2c:
  chip_addr: 0xE8
keymap:
  x:
    capability: blockKey
    args: [0x1b]
`), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "console", c.Driver)
	assert.Equal(t, uint8(100), c.Luminosity)
	assert.Equal(t, uint8(0xE8), c.I2C.ChipAddr)
	assert.Equal(t, ":8080", c.Addr, "unset keys keep defaults")
	assert.Equal(t, matrix.Keymap{"x": {Capability: "blockKey", Args: []byte{0x1b}}}, c.MatrixKeymap())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		mod  func(c *Config)
	}{
		{"driver", func(c *Config) { c.Driver = "pwm" }},
		{"luminosity", func(c *Config) { c.Luminosity = 250 }},
		{"arg range", func(c *Config) { c.Keymap["a"] = Key{Capability: "blockKey", Args: []int{256}} }},
		{"no capability", func(c *Config) { c.Keymap["b"] = Key{} }},
		{"period", func(c *Config) { c.ScanPeriodMs = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mod(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLuminosityOffIsValid(t *testing.T) {
	c := Default()
	c.Luminosity = 0
	assert.NoError(t, c.Validate())
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, Save(path, Default()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zerolog.Nop(), func(c *Config) {
			select {
			case got <- c:
			default:
			}
		})
	}()

	c := Default()
	c.Luminosity = 50
	// the watcher may not be registered yet; keep writing until it reports
	require.Eventually(t, func() bool {
		_ = Save(path, c)
		select {
		case r := <-got:
			return r.Luminosity == 50
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
