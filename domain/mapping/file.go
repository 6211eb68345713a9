package mapping

import (
	"os"

	"ddreport/internal/errors"

	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML form of the placeholder configuration.
type File struct {
	Placeholders []Entry   `yaml:"placeholders"`
	Facts        FactCells `yaml:"facts"`
}

// Config is a validated placeholder mapping plus fact cells.
type Config struct {
	Mapping Mapping
	Facts   FactCells
}

// DefaultConfig returns the built-in mapping and fact cells.
func DefaultConfig() Config {
	return Config{Mapping: Default(), Facts: DefaultFactCells()}
}

// LoadFile reads a YAML mapping file. Fact cells left out of the file fall
// back to the defaults; an empty placeholder list is an error.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "failed to read mapping file %s", path))
	}
	return Parse(data)
}

// Parse decodes and validates YAML mapping content.
func Parse(data []byte) (Config, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Config{}, errors.WithCode(errors.CodeConfigInvalid, errors.Wrap(err, "failed to parse mapping file"))
	}

	facts := DefaultFactCells()
	if f.Facts.Organization != "" {
		facts.Organization = f.Facts.Organization
	}
	if f.Facts.Responsible != "" {
		facts.Responsible = f.Facts.Responsible
	}
	if f.Facts.StartDate != "" {
		facts.StartDate = f.Facts.StartDate
	}
	if f.Facts.EndDate != "" {
		facts.EndDate = f.Facts.EndDate
	}

	cfg := Config{Mapping: Mapping(f.Placeholders), Facts: facts}
	if err := cfg.Mapping.Validate(); err != nil {
		return Config{}, err
	}
	if err := cfg.Facts.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load returns the mapping from path, or the defaults when path is empty.
func Load(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}
