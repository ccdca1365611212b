// Package gencfg holds the tracegen configuration: the marker word that
// triggers rewriting and the references of the context library operations
// the generated code calls at failure sites.
package gencfg

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Reference identifies a function declared in some package, in the form
//
//	"pkg/path".Name
//	"pkg/path".Type.Name
type Reference struct {
	Package string
	Type    string
	Name    string
}

var _ encoding.TextUnmarshaler = (*Reference)(nil)

func (r *Reference) UnmarshalText(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if s == "" {
		return errors.New("empty reference")
	}

	if !strings.HasPrefix(s, `"`) {
		return fmt.Errorf("reference must start with quoted package: %q", s)
	}
	end := strings.Index(s[1:], `"`)
	if end < 0 {
		return fmt.Errorf("unterminated quoted package in reference: %q", s)
	}
	end++ // include the first quote

	pkg := s[1:end]
	if pkg == "" {
		return fmt.Errorf("package cannot be empty in reference: %q", s)
	}

	rest := strings.TrimPrefix(s[end+1:], ".")
	if rest == "" {
		return fmt.Errorf("reference must contain a name: %q", s)
	}

	parts := strings.Split(rest, ".")
	if len(parts) < 1 || len(parts) > 2 {
		return fmt.Errorf("reference must have 1 or 2 identifiers after package: %q", s)
	}

	for _, p := range parts {
		if !isIdent(p) {
			return fmt.Errorf("invalid identifier %q in reference %q", p, s)
		}
	}

	r.Package = pkg
	switch len(parts) {
	case 1:
		r.Type = ""
		r.Name = parts[0]
	case 2:
		r.Type = parts[0]
		r.Name = parts[1]
	}

	return nil
}

func (r Reference) MarshalText() ([]byte, error) {
	if r.Package == "" {
		return nil, fmt.Errorf("cannot marshal Reference: empty Package")
	}
	if r.Name == "" {
		return nil, fmt.Errorf("cannot marshal Reference: empty Name")
	}

	var b strings.Builder
	b.WriteByte('"')
	b.WriteString(r.Package)
	b.WriteByte('"')
	b.WriteByte('.')

	if r.Type != "" {
		b.WriteString(r.Type)
		b.WriteByte('.')
	}

	b.WriteString(r.Name)

	return []byte(b.String()), nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !unicode.IsLetter(r) && r != '_' {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

// Config controls a tracegen run.
type Config struct {
	// Marker is the directive word that triggers rewriting of a function,
	// matched as a "//<marker>" comment on the declaration.
	Marker string `yaml:"marker"`

	// Wrap references the "wrap existing error with context" operation.
	Wrap Reference `yaml:"wrap"`

	// New references the "construct new contextual error" operation.
	New Reference `yaml:"new"`

	// ImportAlias is the name under which the context package is imported
	// into rewritten files. Empty means the package base name.
	ImportAlias string `yaml:"import-alias"`

	// SafeIndex turns on guarded rewriting of plain index assignments.
	SafeIndex bool `yaml:"safe-index"`
}

// Default returns the configuration used when no config file is given.
func Default() Config {
	return Config{
		Marker: "traceback:trace",
		Wrap: Reference{
			Package: "github.com/Tommy-ASD/traceback",
			Name:    "Wrap",
		},
		New: Reference{
			Package: "github.com/Tommy-ASD/traceback",
			Name:    "New",
		},
	}
}

// Parse decodes raw YAML into a Config. Fields left out keep their
// default values.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config data: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Load reads and parses a YAML config file.
func Load(filename string) (Config, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", filename, err)
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.Marker == "" {
		return errors.New("marker cannot be empty")
	}
	if strings.ContainsAny(c.Marker, " \t") {
		return fmt.Errorf("marker cannot contain spaces: %q", c.Marker)
	}
	if c.Wrap.Package == "" || c.Wrap.Name == "" {
		return errors.New("wrap reference is incomplete")
	}
	if c.New.Package == "" || c.New.Name == "" {
		return errors.New("new reference is incomplete")
	}
	if c.Wrap.Type != "" || c.New.Type != "" {
		return errors.New("wrap and new must reference free functions, not methods")
	}

	return nil
}

// ContextPackageName returns the identifier the generated code uses to
// qualify calls into the context package.
func (c Config) ContextPackageName() string {
	if c.ImportAlias != "" {
		return c.ImportAlias
	}

	return path.Base(c.Wrap.Package)
}
