// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate_RejectsUnknownMovieNfoNaming(t *testing.T) {
	cfg := Default()
	cfg.Export.MovieNfoNaming = "basename"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsOutOfRangeScheduledDay(t *testing.T) {
	cfg := Default()
	cfg.Scheduled.Days = []int{7}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsZeroPeriodWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.Periodic.IsEnabled = true
	cfg.Periodic.Period = 0
	assert.Error(t, cfg.Validate())
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Sync, cfg.Sync)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync:\n  should_clean: false\nexport:\n  actor_handling: merge\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Sync.ShouldClean)
	assert.Equal(t, "merge", cfg.Export.ActorHandling)
	// Everything else should still carry its default.
	assert.True(t, cfg.Sync.ShouldImport)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("avoidance:\n  wait_time: 5\n"), 0o600))

	t.Setenv("NFOSYNC_AVOIDANCE_WAIT_TIME", "15")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Avoidance.WaitTime)
}

func TestLoad_InvalidResultIsRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("export:\n  actor_handling: bogus\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
