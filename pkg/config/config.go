package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/overlaydb/pkg/txpool"
	"gopkg.in/yaml.v3"
)

// CacheMode is the YAML-facing spelling of txpool.CacheMode.
type CacheMode string

const (
	CachePersistent CacheMode = "persistent"
	CacheOneTime    CacheMode = "one_time"
)

// ToTxPool resolves the YAML spelling to the concrete txpool.CacheMode,
// defaulting to Persistent for an empty or unrecognized value.
func (m CacheMode) ToTxPool() txpool.CacheMode {
	if m == CacheOneTime {
		return txpool.OneTime
	}
	return txpool.Persistent
}

// ScopeSpec names one scope entry within a pool resource file and the
// scopes it depends on, mirroring pkg/scope.Scope's Name/Deps fields.
type ScopeSpec struct {
	Name string   `yaml:"name"`
	Deps []string `yaml:"deps,omitempty"`
}

// PoolSpec is the body of a Pool resource file: the pool's cache mode,
// its per-entry lock-acquire timeout, and the scopes it expects to have
// registered (for validating a Pool built in code against the file that
// described it).
type PoolSpec struct {
	CacheMode   CacheMode     `yaml:"cacheMode"`
	LockTimeout time.Duration `yaml:"lockTimeout"`
	Scopes      []ScopeSpec   `yaml:"scopes"`
}

// ResourceMetadata names a resource file and may carry labels, the usual
// Kubernetes-flavored shape this kind of resource convention takes.
type ResourceMetadata struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// PoolResource is a Pool resource file's top-level shape: apiVersion/kind
// discriminate the file, Metadata names it, Spec carries its settings.
type PoolResource struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   ResourceMetadata `yaml:"metadata"`
	Spec       PoolSpec         `yaml:"spec"`
}

// LoadPoolResource reads and parses a Pool resource file. It rejects any
// file whose Kind is not "Pool", failing closed on an unexpected resource
// kind rather than guessing at its shape.
func LoadPoolResource(path string) (*PoolResource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var res PoolResource
	if err := yaml.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if res.Kind != "Pool" {
		return nil, fmt.Errorf("config: %s: unsupported resource kind %q", path, res.Kind)
	}
	return &res, nil
}

// DepsByName indexes the resource's scopes by name, for a caller building
// scope.Scope values in code and wanting to confirm the Deps it declared
// there match what the resource file describes.
func (r *PoolResource) DepsByName() map[string][]string {
	out := make(map[string][]string, len(r.Spec.Scopes))
	for _, s := range r.Spec.Scopes {
		out[s.Name] = s.Deps
	}
	return out
}
