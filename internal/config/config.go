// Package config loads the lighthouse tool configuration (lighthouse.toml).
package config

import (
	"bytes"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// DefaultFile is read when no --config flag is given. It may be absent.
const DefaultFile = "lighthouse.toml"

// Engine kinds.
const (
	EngineCLI = "cli"
	EngineAPI = "api"
)

type Config struct {
	// Project scopes the containers lighthouse manages on a host. The
	// manifest name is used when empty.
	Project      string `toml:"project"`
	Engine       string `toml:"engine"`
	DockerBinary string `toml:"docker_binary"`
	Host         string `toml:"host"`
	LogLevel     string `toml:"log_level"`
	// StopTimeout is in seconds.
	StopTimeout int    `toml:"stop_timeout"`
	Remote      Remote `toml:"remote"`
	Server      Server `toml:"server"`
}

// Remote configures deploys that run lighthouse on another host over ssh.
type Remote struct {
	SSHBinary string `toml:"ssh_binary"`
	SSHConfig string `toml:"ssh_config"`
	User      string `toml:"user"`
	Binary    string `toml:"binary"`
}

type Server struct {
	Listen string `toml:"listen"`
}

// Default returns the configuration used when no file sets a value.
func Default() Config {
	return Config{
		Engine:       EngineCLI,
		DockerBinary: "docker",
		LogLevel:     "info",
		StopTimeout:  10,
		Remote: Remote{
			SSHBinary: "ssh",
			User:      "kerek",
			Binary:    "lighthouse",
		},
		Server: Server{Listen: ":3000"},
	}
}

// Load reads path on top of Default. A missing file is only an error when
// required is set.
func Load(path string, required bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return Default(), nil
		}
		return Config{}, errors.Wrapf(err, "unable to open configuration file %s", path)
	}
	var cfg Config
	if err := toml.NewDecoder(bytes.NewReader(data)).Strict(true).Decode(&cfg); err != nil {
		return Config{}, errors.Wrapf(err, "unable to deserialize configuration file %s", path)
	}
	// Zero values, stop_timeout = 0 included, fall back to the defaults.
	if err := mergo.Merge(&cfg, Default()); err != nil {
		return Config{}, errors.Wrap(err, "unable to apply configuration defaults")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "invalid configuration file %s", path)
	}
	return cfg, nil
}

// Validate checks values the decoder cannot.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineCLI, EngineAPI:
	default:
		return errors.Errorf("engine must be %q or %q, got %q", EngineCLI, EngineAPI, c.Engine)
	}
	if c.StopTimeout < 0 {
		return errors.Errorf("stop_timeout must not be negative, got %d", c.StopTimeout)
	}
	return nil
}

// StopTimeoutDuration returns StopTimeout as a duration.
func (c Config) StopTimeoutDuration() time.Duration {
	return time.Duration(c.StopTimeout) * time.Second
}
