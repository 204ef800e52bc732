// Package config loads the harness configuration from the environment,
// an optional .env file, and an optional YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults used when neither the environment nor the config file
// provide a value.
const (
	DefaultAPIURL       = "https://api.nimbus.cloud/v1"
	DefaultZone         = "ost1"
	DefaultImage        = "debian-12"
	DefaultFlavor       = "flex-4-1"
	DefaultRuntimePath  = ".runtime"
	DefaultEventsPath   = "events"
	DefaultStartTimeout = 240 * time.Second
	DefaultConcurrency  = 2
	DefaultConfigFile   = "acctest.yml"
)

// Environment variables recognized by Load.
const (
	EnvToken       = "NIMBUS_API_TOKEN"
	EnvAPIURL      = "NIMBUS_API_URL"
	EnvZone        = "ACCTEST_ZONE"
	EnvImage       = "ACCTEST_DEFAULT_IMAGE"
	EnvFlavor      = "ACCTEST_DEFAULT_FLAVOR"
	EnvRuntimePath = "ACCTEST_RUNTIME_PATH"
	EnvEventsPath  = "ACCTEST_EVENTS_PATH"
	EnvConfigFile  = "ACCTEST_CONFIG"
)

// Config holds everything the harness needs to reach the provider and
// to coordinate with sibling worker processes on the same machine.
type Config struct {
	// APIToken is the long-lived bearer credential. It also seeds the
	// runner identity, so concurrent runners on a shared account must
	// use distinct tokens.
	APIToken string `yaml:"api_token"`

	// APIURL is the versioned base URL, without a trailing slash.
	APIURL string `yaml:"api_url"`

	Zone          string `yaml:"zone"`
	DefaultImage  string `yaml:"default_image"`
	DefaultFlavor string `yaml:"default_flavor"`

	// RuntimePath holds per-run state; advisory locks live beneath it.
	RuntimePath string `yaml:"runtime_path"`

	// EventsPath is where the structured event log is appended.
	EventsPath string `yaml:"events_path"`

	ServerStartTimeout time.Duration `yaml:"server_start_timeout"`

	// CreationConcurrency bounds how many resources may be created in
	// parallel by a single InParallel call.
	CreationConcurrency int `yaml:"creation_concurrency"`
}

// Load builds the configuration. A .env file in the working directory
// is honored if present, then the optional YAML file, then environment
// variables. The API token is required.
func Load() (*Config, error) {
	// Missing .env files are fine, the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		APIURL:              DefaultAPIURL,
		Zone:                DefaultZone,
		DefaultImage:        DefaultImage,
		DefaultFlavor:       DefaultFlavor,
		RuntimePath:         DefaultRuntimePath,
		EventsPath:          DefaultEventsPath,
		ServerStartTimeout:  DefaultStartTimeout,
		CreationConcurrency: DefaultConcurrency,
	}

	path := os.Getenv(EnvConfigFile)
	explicit := path != ""
	if path == "" {
		path = DefaultConfigFile
	}
	if err := cfg.applyFile(path, explicit); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if cfg.APIToken == "" {
		return nil, fmt.Errorf("no API token found in the %s environment variable", EnvToken)
	}

	// The trailing slash is significant when joining paths.
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	return cfg, nil
}

// applyFile overlays values from a YAML file. A missing file is only an
// error if it was explicitly requested.
func (c *Config) applyFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return nil
}

func (c *Config) applyEnv() {
	for env, target := range map[string]*string{
		EnvToken:       &c.APIToken,
		EnvAPIURL:      &c.APIURL,
		EnvZone:        &c.Zone,
		EnvImage:       &c.DefaultImage,
		EnvFlavor:      &c.DefaultFlavor,
		EnvRuntimePath: &c.RuntimePath,
		EnvEventsPath:  &c.EventsPath,
	} {
		if v := os.Getenv(env); v != "" {
			*target = v
		}
	}
}

// LocksPath is where cross-process advisory locks are kept. The
// directory is assumed to exist and be writable.
func (c *Config) LocksPath() string {
	return c.RuntimePath + "/locks"
}
