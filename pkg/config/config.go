// Package config loads ServeConfig from a YAML file, a structural defaults
// layer merged in the teacher's style with dario.cat/mergo, and a handful
// of CACHEFS_* environment variable overrides for container deployment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"dario.cat/mergo"
	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// XTEAKey is a 128-bit key held as four 32-bit words, serialized in YAML as
// a four-element array.
type XTEAKey [4]uint32

// BootstrapManifest describes where cache files may be fetched from when
// they're absent locally.
type BootstrapManifest struct {
	Bucket string   `yaml:"bucket"`
	Prefix string   `yaml:"prefix"`
	Region string   `yaml:"region"`
	Files  []string `yaml:"files"`
}

// ServeConfig is the process-level configuration object.
type ServeConfig struct {
	ListenAddr     string            `yaml:"listen_addr"`
	StoreRoot      string            `yaml:"store_root"`
	ClientVersions []uint32          `yaml:"client_versions"`
	XTEAKeys       map[int]XTEAKey   `yaml:"xtea_keys"` // archive id -> key
	CacheCapacity  int64             `yaml:"cache_capacity_bytes"`
	SigningKey     *SigningKeyConfig `yaml:"signing_key,omitempty"`
	Bootstrap      *BootstrapManifest `yaml:"bootstrap,omitempty"`
}

// SigningKeyConfig holds the RSA parameters used by ChecksumTable's
// optional signed-Whirlpool encoding mode. Both fields are decimal-string
// encoded big integers. No code in this module reads these fields; the
// server always serves the unsigned plain checksum form.
type SigningKeyConfig struct {
	PrivateExponent string `yaml:"private_exponent"`
	Modulus         string `yaml:"modulus"`
}

// Defaults returns the process-level defaults every loaded file is merged
// on top of.
func Defaults() ServeConfig {
	return ServeConfig{
		ListenAddr:     "127.0.0.1:43594",
		StoreRoot:      "./cache",
		ClientVersions: []uint32{530},
		CacheCapacity:  1 << 30,
	}
}

// Load reads path (resolving a leading "~" via go-homedir), unmarshals it
// as YAML, merges it over Defaults(), and applies CACHEFS_* environment
// overrides.
func Load(path string) (ServeConfig, error) {
	cfg := Defaults()

	resolved, err := homedir.Expand(path)
	if err != nil {
		return cfg, fmt.Errorf("config: expanding path %q: %w", path, err)
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %q: %w", resolved, err)
	}

	var fromFile ServeConfig
	if err := yaml.Unmarshal(raw, &fromFile); err != nil {
		return cfg, fmt.Errorf("config: parsing %q: %w", resolved, err)
	}

	if err := mergo.Merge(&fromFile, cfg); err != nil {
		return cfg, fmt.Errorf("config: merging defaults: %w", err)
	}
	cfg = fromFile

	applyEnvOverrides(&cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *ServeConfig) {
	if v := os.Getenv("CACHEFS_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("CACHEFS_STORE_ROOT"); v != "" {
		cfg.StoreRoot = v
	}
	if v := os.Getenv("CACHEFS_CACHE_CAPACITY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.CacheCapacity = n
		}
	}
}
