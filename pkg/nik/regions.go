package nik

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed regions.yaml
var embeddedRegions []byte

// District is a kecamatan with its known kelurahan/desa names.
type District struct {
	Name     string   `yaml:"name"`
	Villages []string `yaml:"villages"`
}

// Regions maps administrative code prefixes to names.
type Regions struct {
	Provinces map[string]string   `yaml:"provinces"`
	Regencies map[string]string   `yaml:"regencies"`
	Districts map[string]District `yaml:"districts"`
}

// LoadRegions decodes a region table in the embedded YAML layout.
func LoadRegions(data []byte) (*Regions, error) {
	var r Regions
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode regions: %w", err)
	}
	if len(r.Provinces) == 0 {
		return nil, fmt.Errorf("decode regions: no provinces")
	}
	return &r, nil
}

// DefaultRegions returns the embedded region table. The result is shared and
// must not be mutated.
var DefaultRegions = sync.OnceValue(func() *Regions {
	r, err := LoadRegions(embeddedRegions)
	if err != nil {
		panic(err)
	}
	return r
})
