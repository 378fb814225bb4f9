package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(1024), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 20, cfg.Pipeline.BatchSize)
	assert.Equal(t, 8, cfg.Pipeline.MaxConcurrent)
	assert.Equal(t, 2.0, cfg.Pipeline.DispatchPerSecond)
	assert.Equal(t, 3, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.RetryDelay)
	assert.Equal(t, 500, cfg.Pipeline.LookupChunkSize)
	assert.Equal(t, 100, cfg.Pipeline.UpdateChunkSize)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("NATURALIZE_STORE_DRIVER", "sqlite")
	t.Setenv("NATURALIZE_PIPELINE_BATCH_SIZE", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Pipeline.BatchSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		desc    string
		cfg     Config
		wantErr string
	}{
		{
			desc:    "missing anthropic key",
			cfg:     Config{Store: StoreConfig{Driver: "sqlite"}},
			wantErr: "anthropic key",
		},
		{
			desc: "postgres without database url",
			cfg: Config{
				Store:     StoreConfig{Driver: "postgres"},
				Anthropic: AnthropicConfig{Key: "sk-test"},
			},
			wantErr: "database_url",
		},
		{
			desc: "sqlite without database url is fine",
			cfg: Config{
				Store:     StoreConfig{Driver: "sqlite"},
				Anthropic: AnthropicConfig{Key: "sk-test"},
			},
		},
		{
			desc: "postgres fully configured",
			cfg: Config{
				Store:     StoreConfig{Driver: "postgres", DatabaseURL: "postgres://localhost/naming"},
				Anthropic: AnthropicConfig{Key: "sk-test"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestInitLogger(t *testing.T) {
	assert.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "not-a-level"}))
}
