package ingest

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// ErrNoSources is returned when a source list resolves to zero URLs.
var ErrNoSources = errors.New("no sources configured")

// Registry is the list of pages to extract grants from, in visit order.
type Registry struct {
	Sources []SourceConfig `yaml:"sources" json:"sources"`
}

// SourceConfig is one entry of the source list. In the file an entry may be
// a bare URL string or a mapping.
type SourceConfig struct {
	URL    string `yaml:"url" json:"url"`
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
	Active *bool  `yaml:"active,omitempty" json:"active,omitempty"`
}

func (s *SourceConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.URL = strings.TrimSpace(node.Value)
		return nil
	}
	type plain SourceConfig
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = SourceConfig(p)
	s.URL = strings.TrimSpace(s.URL)
	return nil
}

// IsActive reports whether the entry should be visited. Entries are active
// unless marked otherwise.
func (s SourceConfig) IsActive() bool {
	return s.Active == nil || *s.Active
}

// URLs returns the active source URLs in file order.
func (r *Registry) URLs() []string {
	out := make([]string, 0, len(r.Sources))
	for _, s := range r.Sources {
		if s.URL == "" || !s.IsActive() {
			continue
		}
		out = append(out, s.URL)
	}
	return out
}

// LoadRegistry reads a YAML or JSON source list. An empty path loads the
// embedded default list.
func LoadRegistry(path string) (*Registry, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read source list: %w", err)
	}

	// Expand environment variables within the content (e.g. ${PORTAL_HOST})
	expanded := os.ExpandEnv(string(data))

	// JSON is valid YAML, so one decoder serves both formats.
	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("failed to parse source list %s: %w", path, err)
	}

	return &reg, nil
}

// LoadSources returns the active URLs from path, or ErrNoSources when there
// are none.
func LoadSources(path string) ([]string, error) {
	reg, err := LoadRegistry(path)
	if err != nil {
		return nil, err
	}
	urls := reg.URLs()
	if len(urls) == 0 {
		return nil, ErrNoSources
	}
	return urls, nil
}
