package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/tnqbao/gau-media-service/entity"
	"gopkg.in/yaml.v3"
)

// OwnerDefinition declares one owner type: where its records live and the
// media collections it accepts.
type OwnerDefinition struct {
	Table       string                             `yaml:"table"`
	Key         string                             `yaml:"key"`
	Collections map[string]entity.CollectionConfig `yaml:"collections"`
}

// CollectionRegistry maps a lower-cased owner type to its definition.
type CollectionRegistry map[string]OwnerDefinition

func (r CollectionRegistry) Owner(ownerType string) (OwnerDefinition, bool) {
	def, ok := r[strings.ToLower(strings.TrimSpace(ownerType))]
	return def, ok
}

func (r CollectionRegistry) OwnerTypes() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	return out
}

// LoadCollections reads the registry from a YAML file. A missing file yields an
// empty registry.
func LoadCollections(path string) (CollectionRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return CollectionRegistry{}, nil
		}
		return nil, fmt.Errorf("failed to read collections file %s: %w", path, err)
	}
	return ParseCollections(data)
}

func ParseCollections(data []byte) (CollectionRegistry, error) {
	var raw map[string]OwnerDefinition
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse collections: %w", err)
	}

	registry := make(CollectionRegistry, len(raw))
	for ownerType, def := range raw {
		key := strings.ToLower(strings.TrimSpace(ownerType))
		if key == "" {
			return nil, fmt.Errorf("collections: empty owner type")
		}
		if def.Key == "" {
			def.Key = "id"
		}
		if def.Collections == nil {
			def.Collections = map[string]entity.CollectionConfig{}
		}
		registry[key] = def
	}
	return registry, nil
}
