package ingest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Manifest overrides the dataset list and data folder, e.g.
//
//	data_folder: go_metadata/data
//	datasets:
//	  - Leukemia_2_0.5
type Manifest struct {
	DataFolder string   `yaml:"data_folder"`
	Datasets   []string `yaml:"datasets"`
}

func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("error reading manifest %s: %w", path, err)
	}

	var manifest Manifest
	if err := yaml.UnmarshalStrict(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("error parsing manifest %s: %w", path, err)
	}
	return manifest, nil
}

func (m Manifest) Apply(cfg Config) Config {
	if m.DataFolder != "" {
		cfg.DataFolder = m.DataFolder
	}
	if len(m.Datasets) > 0 {
		cfg.DatasetNames = m.Datasets
	}
	return cfg
}
