package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClassesFile is the YAML document describing which detector labels raise
// alerts and under which category id.
//
//	description: "Objeto detectado"
//	classes:
//	  cell phone: "1"
//	  clock: "2"
type ClassesFile struct {
	Description string            `yaml:"description"`
	Classes     map[string]string `yaml:"classes"`
}

// LoadClasses reads a classes file. A missing file is reported with an
// error wrapping os.ErrNotExist.
func LoadClasses(path string) (*ClassesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classes file: %w", err)
	}

	var file ClassesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse classes file %s: %w", path, err)
	}
	if len(file.Classes) == 0 {
		return nil, fmt.Errorf("classes file %s defines no classes", path)
	}

	return &file, nil
}
