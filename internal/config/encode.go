package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Supported config file formats
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// ValidFormats returns the config file formats understood by Marshal
func ValidFormats() []string {
	return []string{FormatYAML, FormatTOML}
}

// ConfigFileFor returns the config file path for the given format.
func ConfigFileFor(format string) string {
	return filepath.Join(ConfigDir(), "config."+format)
}

// Marshal encodes cfg as a config file in the given format. The result can
// be read back by viper.
func Marshal(cfg *Config, format string) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatTOML:
		var buf bytes.Buffer
		enc := toml.NewEncoder(&buf)
		enc.SetIndentTables(true)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("encode toml: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unsupported config format %q (valid: %v)", format, ValidFormats())
}

// Unmarshal decodes a config file in the given format on top of the
// defaults.
func Unmarshal(data []byte, format string) (*Config, error) {
	cfg := Default()
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, cfg)
	case FormatTOML:
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q (valid: %v)", format, ValidFormats())
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	return cfg, nil
}

// IsValidFormat reports whether format is a supported config file format
func IsValidFormat(format string) bool {
	return slices.Contains(ValidFormats(), format)
}
