package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.ModelName)
	assert.Equal(t, 0.1, cfg.ModelTemperature)
	assert.Equal(t, "whisper-1", cfg.WhisperModel)
	assert.Equal(t, BackendSQL, cfg.CheckpointBackend)
	assert.Equal(t, "direct", cfg.FlowVariant)
	assert.Equal(t, 0.8, cfg.ConfidenceThreshold)
	assert.Equal(t, 2, cfg.MaxClassifyAttempts)
	assert.Equal(t, 4096, cfg.MaxInputSize)
	assert.False(t, cfg.WhatsAppEnabled())
	assert.False(t, cfg.TwilioEnabled())
	assert.False(t, cfg.MaskPII)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WHATSAPP_VERIFY_TOKEN=from-dotenv\n"), 0o600))
	file := filepath.Join(dir, "incidentbot.yaml")
	require.NoError(t, os.WriteFile(file, []byte("flow_variant: guided\nmodel_name: gpt-4o\nhttp_addr: \":9000\"\n"), 0o600))
	t.Setenv("MODEL_NAME", "from-env")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "guided", cfg.FlowVariant, "file overrides defaults")
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "from-env", cfg.ModelName, "env overrides file")
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "from-dotenv", cfg.WhatsAppVerifyToken)

	// godotenv leaves the variable behind; clean it for other tests.
	t.Cleanup(func() { _ = os.Unsetenv("WHATSAPP_VERIFY_TOKEN") })
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load("")
	require.NoError(t, err)

	bad := *base
	bad.CheckpointBackend = "etcd"
	assert.ErrorContains(t, bad.Validate(), "checkpoint_backend")

	bad = *base
	bad.ConfidenceThreshold = 1.5
	assert.ErrorContains(t, bad.Validate(), "confidence_threshold")

	bad = *base
	bad.MaxClassifyAttempts = 0
	assert.ErrorContains(t, bad.Validate(), "max_classify_attempts")

	bad = *base
	bad.EncryptionKey = "zz"
	assert.ErrorContains(t, bad.Validate(), "hex")

	bad = *base
	bad.EncryptionKey = "0011"
	assert.ErrorContains(t, bad.Validate(), "bytes")
}

func TestKey(t *testing.T) {
	cfg := Config{EncryptionKey: "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"}
	key, err := cfg.Key()
	require.NoError(t, err)
	assert.Len(t, key, 32)

	cfg.EncryptionKey = ""
	key, err = cfg.Key()
	require.NoError(t, err)
	assert.Nil(t, key)
}
