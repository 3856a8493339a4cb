package main

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/ledsmooth/internal/config"
	"github.com/coreman2200/ledsmooth/internal/led"
	"github.com/coreman2200/ledsmooth/internal/smoothing"
)

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	applyFlags(cfg, 4, 0, 3, "spi", "", ":9000", "plane_z")
	assert.Equal(t, config.Dim{X: 4, Y: 10, Z: 3}, cfg.Dim)
	assert.Equal(t, "spi", cfg.Driver)
	assert.Equal(t, "GRB", cfg.ColorOrder)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "plane_z", cfg.Effect.Name)
}

func TestOpenDriverFallsBackToSim(t *testing.T) {
	cfg := config.Default()
	cfg.Driver = "serial"
	cfg.Serial.Port = "/dev/does-not-exist"
	drv, name := openDriver(cfg, 4)
	assert.Equal(t, "sim", name)
	assert.IsType(t, &led.Sim{}, drv)

	cfg.Driver = "laser"
	_, name = openDriver(cfg, 4)
	assert.Equal(t, "sim", name)
}

func TestRegisterProfilesIsIdempotent(t *testing.T) {
	eng, err := smoothing.New(led.NewSim(1, zerolog.Nop()), smoothing.DefaultSettings(), smoothing.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	profiles := []config.Profile{{Name: "video", TimeMs: 80, UpdateFrequency: 50}, {Name: "direct", DirectMode: true}}

	registerProfiles(eng, profiles)
	registerProfiles(eng, profiles)
	assert.Equal(t, 4, eng.ConfigCount())

	cfg, ok := eng.Config(firstProfileID)
	require.True(t, ok)
	assert.Equal(t, 80*time.Millisecond, cfg.SettlingTime)
	assert.Equal(t, 20*time.Millisecond, cfg.TickInterval)
}
