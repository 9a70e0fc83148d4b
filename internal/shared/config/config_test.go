package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestFromViperDefaults(t *testing.T) {
	cfg, err := FromViper(newViper(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "local", cfg.ObjectStoreType)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSAllowOrigin)
	assert.Equal(t, 2*time.Second, cfg.SimulateDelay)
	assert.Equal(t, int64(5<<20), cfg.IngestMaxBodyBytes)
	assert.Zero(t, cfg.WebhookTimeout)
	assert.Empty(t, cfg.WebhookURL)
}

func TestFromViperNormalizes(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]any{
		"ENV":                "Development",
		"OBJECT_STORE":       " MinIO ",
		"CORS_ALLOW_ORIGINS": "http://a.test, ,http://b.test",
	}))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "minio", cfg.ObjectStoreType)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowOrigin)
}

func TestFromViperProductionRequiresSecrets(t *testing.T) {
	_, err := FromViper(newViper(map[string]any{"ENV": "prod"}))
	require.Error(t, err)

	_, err = FromViper(newViper(map[string]any{
		"ENV":          "prod",
		"JWT_SECRET":   "s3cret",
		"DATABASE_URL": "postgres://localhost/portfolio",
	}))
	require.NoError(t, err)
}

func TestLoadReadsEnvironment(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("PORT", "9090")
	t.Setenv("N8N_WEBHOOK_URL", " https://hooks.example.com/x ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://hooks.example.com/x", cfg.WebhookURL)
}
