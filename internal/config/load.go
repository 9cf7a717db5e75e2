package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format identifies a config file encoding.
type Format string

// Supported formats.
const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf returns the format implied by the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}

// Load reads the config file at path over the defaults. An empty path or a
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	return LoadFS(osFS{}, path)
}

// LoadFS is Load against fsys.
func LoadFS(fsys fs.ReadFileFS, path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := decode(cfg, format, path, data); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// Parse decodes data in the given format over the defaults.
func Parse(format Format, data []byte) (*Config, error) {
	cfg := Default()
	if err := decode(cfg, format, "<input>", data); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func decode(cfg *Config, format Format, source string, data []byte) error {
	switch format {
	case FormatTOML:
		return decodeTOML(cfg, source, data)
	case FormatYAML:
		return decodeYAML(cfg, source, data)
	default:
		return fmt.Errorf("%s: %w", format, ErrUnsupportedFormat)
	}
}

func decodeTOML(cfg *Config, source string, data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}

		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return perr
	}
	return nil
}

func decodeYAML(cfg *Config, source string, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// An empty document leaves the defaults in place.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &ParseError{Path: source, Message: err.Error(), Err: err}
	}
	return nil
}

// osFS reads files by their OS path, relative or absolute.
type osFS struct{}

func (osFS) Open(name string) (fs.File, error) {
	return os.Open(name)
}

func (osFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}
