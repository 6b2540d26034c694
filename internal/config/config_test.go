package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("RERUN_ON_SAVE", "")
	t.Setenv("RERUN_AUTO_OUTPUT", "")
	t.Setenv("RERUN_INSTALL_TRACER", "")
	t.Setenv("RERUN_PAUSE_INTERVAL", "")

	cfg := New()

	assert.True(t, cfg.RunOnSave)
	assert.False(t, cfg.AutoOutput)
	assert.True(t, cfg.InstallTracer)
	assert.Equal(t, 100*time.Millisecond, cfg.PauseInterval)
}

func TestNew_ReadsEnvironment(t *testing.T) {
	t.Setenv("RERUN_ON_SAVE", "false")
	t.Setenv("RERUN_AUTO_OUTPUT", "true")
	t.Setenv("RERUN_INSTALL_TRACER", "false")
	t.Setenv("RERUN_PAUSE_INTERVAL", "250ms")

	cfg := New()

	assert.False(t, cfg.RunOnSave)
	assert.True(t, cfg.AutoOutput)
	assert.False(t, cfg.InstallTracer)
	assert.Equal(t, 250*time.Millisecond, cfg.PauseInterval)
}

func TestNew_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("RERUN_ON_SAVE", "maybe")
	t.Setenv("RERUN_PAUSE_INTERVAL", "soon")

	cfg := New()

	assert.True(t, cfg.RunOnSave)
	assert.Equal(t, 100*time.Millisecond, cfg.PauseInterval)
}

func TestValidate(t *testing.T) {
	valid := &Config{PauseInterval: time.Millisecond}
	require.NoError(t, valid.Validate())

	invalid := &Config{PauseInterval: 0}
	assert.Error(t, invalid.Validate())
}
