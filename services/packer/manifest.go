package packer

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is the signed metadata embedded in a jar pack.
type Manifest struct {
	Version          string      `yaml:"version"`
	CreatedAt        time.Time   `yaml:"created_at"`
	Signer           string      `yaml:"signer,omitempty"`
	SigningPublicKey string      `yaml:"signing_public_key,omitempty"`
	Signature        string      `yaml:"signature,omitempty"`
	Entries          []PackEntry `yaml:"entries"`
}

// SigningBytes marshals the manifest without its signature for signing and
// verification.
func (m Manifest) SigningBytes() ([]byte, error) {
	clone := m
	clone.Signature = ""
	return yaml.Marshal(clone)
}

// PackEntry describes a single cached jar within the pack. Key is the object
// key the jar occupies in the cache bucket.
type PackEntry struct {
	Key      string `yaml:"key"`
	Platform string `yaml:"platform"`
	Version  string `yaml:"mc_version"`
	Build    string `yaml:"build,omitempty"`
	Size     int64  `yaml:"size"`
	SHA256   string `yaml:"sha256"`
}
