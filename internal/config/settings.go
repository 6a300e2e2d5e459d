package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings file keys. They double as field names in errors.
const (
	fieldDestination = "stats-destination"
	fieldInterface   = "interface-name"
	fieldRootPath    = "root-path"
	fieldMinInterval = "min-interval"
	fieldMaxInterval = "max-interval"
	fieldConfig      = "config"
	fieldLogLevel    = "log-level"
	fieldLogFormat   = "log-format"
	fieldExporter    = "otel-exporter"
)

// ErrMalformedSettings is returned by YAMLFile.Load for unparseable files.
var ErrMalformedSettings = errors.New("malformed settings file")

// Settings is one layer of optional, unvalidated values. A nil field is
// unset and may be filled by a lower-precedence layer.
type Settings struct {
	StatsDestination *string `yaml:"stats-destination,omitempty"`
	InterfaceName    *string `yaml:"interface-name,omitempty"`
	RootPath         *string `yaml:"root-path,omitempty"`
	MinInterval      *string `yaml:"min-interval,omitempty"`
	MaxInterval      *string `yaml:"max-interval,omitempty"`
}

// fillFrom copies every field of other into s that s has not set.
func (s *Settings) fillFrom(other Settings) {
	fillIfAbsent(&s.StatsDestination, other.StatsDestination)
	fillIfAbsent(&s.InterfaceName, other.InterfaceName)
	fillIfAbsent(&s.RootPath, other.RootPath)
	fillIfAbsent(&s.MinInterval, other.MinInterval)
	fillIfAbsent(&s.MaxInterval, other.MaxInterval)
}

func (s Settings) empty() bool {
	return s == Settings{}
}

func fillIfAbsent(dst **string, src *string) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
	}
}

func stringPtr(s string) *string {
	return &s
}

// Store reads and writes the persisted settings file. Load must return an
// error matching fs.ErrNotExist when the file does not exist.
type Store interface {
	Load(path string) (Settings, error)
	Save(path string, s Settings) error
}

// YAMLFile stores Settings as a flat YAML map. Lines starting with '#' are
// comments.
type YAMLFile struct{}

func (YAMLFile) Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty or comment-only file.
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf("%w: %v", ErrMalformedSettings, err)
	}
	return s, nil
}

// Save writes the set fields of s and lists the unset ones as commented-out
// defaults, so the file documents every key it understands.
func (YAMLFile) Save(path string, s Settings) error {
	var buf bytes.Buffer
	buf.WriteString("# hoststat settings\n")
	buf.WriteString("# Command-line flags override these values; unset keys use computed defaults.\n")

	if !s.empty() {
		out, err := yaml.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode settings: %w", err)
		}
		buf.Write(out)
	}

	unset := []struct {
		key  string
		set  bool
		hint string
	}{
		{fieldDestination, s.StatsDestination != nil, DefaultDestination},
		{fieldInterface, s.InterfaceName != nil, "<first interface with a hardware address>"},
		{fieldRootPath, s.RootPath != nil, "<first mount point>"},
		{fieldMinInterval, s.MinInterval != nil, DefaultMinInterval},
		{fieldMaxInterval, s.MaxInterval != nil, DefaultMaxInterval},
	}
	for _, u := range unset {
		if !u.set {
			fmt.Fprintf(&buf, "# %s: %s\n", u.key, u.hint)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
