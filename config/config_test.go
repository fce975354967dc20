package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 200, cfg.Protocol.ChunkSize)
	assert.Equal(t, []int{0, 1}, cfg.Protocol.CreateFolderOK)
}

func TestLoadEmptyPathAndMissingFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pixlfs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
device:
  address: "10.0.0.5:7000"
protocol:
  chunk_size: 128
  command_timeout: 3s
  create_folder_ok: [0]
  retries: 2
logging:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5:7000", cfg.Device.Address)
	assert.Equal(t, 5*time.Second, cfg.Device.DialTimeout, "unset fields keep defaults")
	assert.Equal(t, 128, cfg.Protocol.ChunkSize)
	assert.Equal(t, 3*time.Second, cfg.Protocol.CommandTimeout)
	assert.Equal(t, []int{0}, cfg.Protocol.CreateFolderOK)
	assert.Equal(t, 2, cfg.Protocol.Retries)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	cfg := Default()
	err := Decode(strings.NewReader("protocol:\n  chunksize: 100\n"), &cfg)
	assert.Error(t, err)
}

func TestDecodeEmptyDocument(t *testing.T) {
	cfg := Default()
	require.NoError(t, Decode(strings.NewReader(""), &cfg))
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty address", func(c *Config) { c.Device.Address = "" }},
		{"zero dial timeout", func(c *Config) { c.Device.DialTimeout = 0 }},
		{"zero chunk", func(c *Config) { c.Protocol.ChunkSize = 0 }},
		{"chunk over frame", func(c *Config) { c.Protocol.ChunkSize = 240 }},
		{"zero command timeout", func(c *Config) { c.Protocol.CommandTimeout = 0 }},
		{"status out of range", func(c *Config) { c.Protocol.CreateFolderOK = []int{256} }},
		{"negative retries", func(c *Config) { c.Protocol.Retries = -1 }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestToOptions(t *testing.T) {
	cfg := Default()
	cfg.Protocol.ChunkSize = 100
	cfg.Protocol.CommandTimeout = 2 * time.Second
	cfg.Protocol.CreateFolderOK = []int{0, 1, 5}
	cfg.Protocol.Retries = 1

	opts := cfg.ToOptions()

	assert.Equal(t, 2*time.Second, opts.CommandTimeout)
	assert.Equal(t, 100, opts.Transfer.ChunkSize)
	assert.Equal(t, []byte{0, 1, 5}, opts.Transfer.CreateFolderOK)
	assert.Equal(t, 1, opts.Transfer.Retries)
}

func TestLoggingApply(t *testing.T) {
	prevLevel := logrus.GetLevel()
	prevFormatter := logrus.StandardLogger().Formatter
	prevOut := logrus.StandardLogger().Out
	defer func() {
		logrus.SetLevel(prevLevel)
		logrus.SetFormatter(prevFormatter)
		logrus.SetOutput(prevOut)
	}()

	var buf bytes.Buffer
	require.NoError(t, Logging{Level: "warn", Format: "json"}.Apply(&buf))

	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	logrus.WithField("function", "TestLoggingApply").Warn("hello")
	assert.Contains(t, buf.String(), `"function":"TestLoggingApply"`)

	assert.Error(t, Logging{Level: "nope"}.Apply(&buf))
}
