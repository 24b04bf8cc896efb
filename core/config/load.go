package config

import (
	"errors"
	"io/fs"
	"log"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load loads and validates the configuration in the directory path of
// configFs. Files the configuration names are resolved relative to it.
func Load(configFs afero.Fs, path string) (*Configuration, error) {
	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	configContents, err := afero.ReadFile(configFs, filepath.Join(path, ConfigurationName))
	if err != nil {
		return nil, err
	}
	var out Configuration
	if err := yaml.UnmarshalStrict(configContents, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	out.configFs = afero.NewBasePathFs(configFs, path)
	return &out, nil
}

// Initialize writes the default configuration into dir unless one is
// already there, then loads it.
func Initialize(configFs afero.Fs, dir string, logger *log.Logger) (*Configuration, error) {
	if err := configFs.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	configPath := filepath.Join(dir, ConfigurationName)
	switch _, err := configFs.Stat(configPath); {
	case err == nil:
		logger.Printf("- %s already exists, keeping it", configPath)
	case errors.Is(err, fs.ErrNotExist):
		logger.Printf("- Writing %s", configPath)
		if err := afero.WriteFile(configFs, configPath, defaultConfigData, 0644); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return Load(configFs, dir)
}
