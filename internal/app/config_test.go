package app

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	t.Setenv("AUTHZ_USER_OVERRIDES", "true")
	t.Setenv("AUTHZ_STORE_TIMEOUT", "750ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 512, cfg.AuthzDecisionCacheSize)
	assert.Equal(t, 750*time.Millisecond, cfg.AuthzStoreTimeout)
	assert.True(t, cfg.AuthzUserOverrides)
	assert.Empty(t, cfg.LegacyRulesFile)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "c")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsEmptyCache(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	t.Setenv("AUTHZ_DECISION_CACHE_SIZE", "0")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "module", "jobs")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "jobs", line["module"])
	assert.Contains(t, line, "source")
}
