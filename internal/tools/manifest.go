package tools

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/tailscale/hujson"
)

// ManifestEntry describes a remote tool in a manifest file.
type ManifestEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	Endpoint    string          `json:"endpoint"`
	TimeoutMs   int             `json:"timeout_ms"`
}

// Manifest is the file format: {"tools": [...]}. Comments and trailing
// commas are allowed.
type Manifest struct {
	Tools []ManifestEntry `json:"tools"`
}

// ParseManifest decodes a JSON-with-comments manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	standard, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parse manifest failed: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(standard, &m); err != nil {
		return nil, fmt.Errorf("decode manifest failed: %w", err)
	}
	for i, t := range m.Tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tool #%d: name is required", i)
		}
		u, err := url.Parse(t.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("tool %s: invalid endpoint URL %q", t.Name, t.Endpoint)
		}
	}
	return &m, nil
}

// LoadManifest reads path and registers every remote tool it lists.
// defaultTimeout applies to entries without timeout_ms.
func LoadManifest(r *Registry, path string, defaultTimeout time.Duration) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read manifest failed: %w", err)
	}
	m, err := ParseManifest(content)
	if err != nil {
		return 0, err
	}
	for _, t := range m.Tools {
		timeout := defaultTimeout
		if t.TimeoutMs > 0 {
			timeout = time.Duration(t.TimeoutMs) * time.Millisecond
		}
		def := Definition{
			Name:          t.Name,
			Description:   t.Description,
			Parameters:    t.Parameters,
			Invoker:       NewRemoteInvoker(t.Name, t.Endpoint, timeout),
			RemoteAddress: t.Endpoint,
			Timeout:       timeout,
		}
		if err := r.Register(def); err != nil {
			return 0, err
		}
	}
	return len(m.Tools), nil
}
