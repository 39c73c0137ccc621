package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("AI_PROVIDER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageBackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, AIProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, int64(100<<20), cfg.Upload.MaxFileSize)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxInlineFileSize)
	assert.Equal(t, 2*time.Second, cfg.Upload.ProcessingDelay)
	assert.Equal(t, 120*time.Second, cfg.AI.RequestTimeout)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "MEMORY")
	t.Setenv("AI_PROVIDER", "gigachat")
	t.Setenv("QUEUE_WORKERS", "8")
	t.Setenv("UPLOAD_PROCESSING_DELAY", "150ms")
	t.Setenv("GIGACHAT_INSECURE_SKIP_VERIFY", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageBackendMemory, cfg.Storage.Backend)
	assert.Equal(t, AIProviderGigaChat, cfg.AI.Provider)
	assert.Equal(t, 8, cfg.Queue.Workers)
	assert.Equal(t, 150*time.Millisecond, cfg.Upload.ProcessingDelay)
	assert.False(t, cfg.AI.GigaChat.InsecureSkipVerify)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("QUEUE_WORKERS", "many")
	t.Setenv("UPLOAD_PROCESSING_DELAY", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Queue.Workers)
	assert.Equal(t, 2*time.Second, cfg.Upload.ProcessingDelay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "mongo" }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.AI.Provider = "claude" }, wantErr: true},
		{name: "no workers", mutate: func(c *Config) { c.Queue.Workers = 0 }, wantErr: true},
		{name: "no attempts", mutate: func(c *Config) { c.Queue.MaxAttempts = 0 }, wantErr: true},
		{name: "zero upload limit", mutate: func(c *Config) { c.Upload.MaxFileSize = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Storage: StorageConfig{Backend: StorageBackendMemory},
				AI:      AIConfig{Provider: AIProviderNone},
				Queue:   QueueConfig{Workers: 1, MaxAttempts: 1},
				Upload:  UploadConfig{MaxFileSize: 1, MaxInlineFileSize: 1},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "lt", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=lt sslmode=disable", c.DSN())
}
