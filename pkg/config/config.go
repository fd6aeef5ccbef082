// Package config loads endpoint configuration for hermit tools from YAML
// files. The library packages themselves take explicit parameters; this is
// glue for the command line binaries.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hermit-proto/hermit-go/pkg/identity"
	"github.com/hermit-proto/hermit-go/pkg/lenlimit"
	"github.com/hermit-proto/hermit-go/pkg/wire"
)

// Config errors.
var (
	// ErrMissingIdentity indicates neither a seed nor a peer key is set.
	ErrMissingIdentity = errors.New("no identity material configured")

	// ErrInvalidLimit indicates a configured limit outside the negotiable
	// range.
	ErrInvalidLimit = errors.New("configured limit out of range")
)

// Config is the YAML configuration of one endpoint.
type Config struct {
	// Address to listen on (server) or connect to (client).
	Address string `yaml:"address"`

	Identity IdentityConfig `yaml:"identity"`
	Limits   LimitsConfig   `yaml:"limits"`
	Log      LogConfig      `yaml:"log"`
}

// IdentityConfig holds the long-term key material, hex encoded. A server
// sets Seed; a client sets PeerKey.
type IdentityConfig struct {
	// Seed is the local Ed25519 private key seed (64 hex chars).
	Seed string `yaml:"seed,omitempty"`

	// PeerKey is the pinned Ed25519 public key of the expected peer
	// (64 hex chars).
	PeerKey string `yaml:"peer_key,omitempty"`
}

// LimitsConfig bounds length limit negotiation.
type LimitsConfig struct {
	// MaxAccept caps peer requests to raise the receive limit. Zero means
	// accept anything in the negotiable range.
	MaxAccept int `yaml:"max_accept,omitempty"`

	// Request is a send limit to ask for right after establishment. Zero
	// means keep the initial limit.
	Request int `yaml:"request,omitempty"`
}

// LogConfig configures protocol event logging.
type LogConfig struct {
	// Level for console output: debug, info, warn, error. Empty disables
	// console logging.
	Level string `yaml:"level,omitempty"`

	// File receives the CBOR event stream. Empty disables file capture.
	File string `yaml:"file,omitempty"`
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML config bytes.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks field ranges and encodings.
func (c *Config) Validate() error {
	if c.Identity.Seed == "" && c.Identity.PeerKey == "" {
		return ErrMissingIdentity
	}
	if c.Identity.Seed != "" {
		if _, err := c.SigningKeys(); err != nil {
			return err
		}
	}
	if c.Identity.PeerKey != "" {
		if _, err := c.PinnedPeer(); err != nil {
			return err
		}
	}

	for _, limit := range []int{c.Limits.MaxAccept, c.Limits.Request} {
		if limit != 0 && (limit < wire.MinLenLimit || limit > wire.MaxLenLimit) {
			return fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
		}
	}
	return nil
}

// SigningKeys reconstructs the local key pair from the configured seed.
func (c *Config) SigningKeys() (*identity.KeyPair, error) {
	seed, err := hex.DecodeString(c.Identity.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode identity seed: %w", err)
	}
	return identity.FromSeed(seed)
}

// PinnedPeer builds the pinned peer identity from the configured key.
func (c *Config) PinnedPeer() (identity.PeerIdentity, error) {
	key, err := hex.DecodeString(c.Identity.PeerKey)
	if err != nil {
		return identity.PeerIdentity{}, fmt.Errorf("failed to decode peer key: %w", err)
	}
	return identity.NewPeerIdentity(key)
}

// AcceptPolicy returns the raise-request policy implied by the limits
// section.
func (c *Config) AcceptPolicy() lenlimit.Policy {
	if c.Limits.MaxAccept == 0 {
		return lenlimit.AcceptAll
	}
	return lenlimit.AcceptUpTo(c.Limits.MaxAccept)
}
