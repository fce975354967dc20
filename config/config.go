// Package config loads pixlfs settings from a YAML file.
//
//	device:
//	  address: "127.0.0.1:9123"
//	  dial_timeout: 5s
//	protocol:
//	  chunk_size: 200
//	  command_timeout: 10s
//	  create_folder_ok: [0, 1]
//	  retries: 0
//	logging:
//	  level: info
//	  format: text
//
// Omitted fields keep their defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/opd-ai/pixlfs"
	"github.com/opd-ai/pixlfs/limits"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Device selects the BLE-UART bridge to talk to.
type Device struct {
	Address     string        `yaml:"address"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// Protocol tunes the command engine.
type Protocol struct {
	ChunkSize      int           `yaml:"chunk_size"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	// CreateFolderOK lists CreateFolder statuses treated as success. The
	// firmware is believed to report 1 for an existing folder.
	CreateFolderOK []int `yaml:"create_folder_ok"`
	// Retries bounds re-sends of CreateFolder and Remove.
	Retries int `yaml:"retries"`
}

// Logging configures logrus.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the whole file.
type Config struct {
	Device   Device   `yaml:"device"`
	Protocol Protocol `yaml:"protocol"`
	Logging  Logging  `yaml:"logging"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Device: Device{
			Address:     "127.0.0.1:9123",
			DialTimeout: 5 * time.Second,
		},
		Protocol: Protocol{
			ChunkSize:      limits.DefaultChunkSize,
			CommandTimeout: 10 * time.Second,
			CreateFolderOK: []int{0, 1},
			Retries:        0,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. An empty path or a missing file yields
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"path":     path,
		}).Debug("Config file not found, using defaults")
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	if err := Decode(f, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML from r over cfg and validates the result.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return cfg.Validate()
}

// Validate checks every field.
func (c *Config) Validate() error {
	if c.Device.Address == "" {
		return errors.New("device.address must not be empty")
	}
	if c.Device.DialTimeout <= 0 {
		return fmt.Errorf("device.dial_timeout must be positive, got %s", c.Device.DialTimeout)
	}
	if err := limits.ValidateChunkSize(c.Protocol.ChunkSize); err != nil {
		return fmt.Errorf("protocol.chunk_size: %w", err)
	}
	if c.Protocol.CommandTimeout <= 0 {
		return fmt.Errorf("protocol.command_timeout must be positive, got %s", c.Protocol.CommandTimeout)
	}
	for _, status := range c.Protocol.CreateFolderOK {
		if status < 0 || status > 0xFF {
			return fmt.Errorf("protocol.create_folder_ok: status %d out of range", status)
		}
	}
	if c.Protocol.Retries < 0 {
		return fmt.Errorf("protocol.retries must not be negative, got %d", c.Protocol.Retries)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// ToOptions converts the protocol section into client options.
func (c Config) ToOptions() *pixlfs.Options {
	opts := pixlfs.NewOptions()
	opts.CommandTimeout = c.Protocol.CommandTimeout
	opts.Transfer.ChunkSize = c.Protocol.ChunkSize
	opts.Transfer.Retries = c.Protocol.Retries
	opts.Transfer.CreateFolderOK = make([]byte, 0, len(c.Protocol.CreateFolderOK))
	for _, status := range c.Protocol.CreateFolderOK {
		opts.Transfer.CreateFolderOK = append(opts.Transfer.CreateFolderOK, byte(status))
	}
	return opts
}

// Apply configures the standard logrus logger.
func (l Logging) Apply(out io.Writer) error {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetOutput(out)

	switch l.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
