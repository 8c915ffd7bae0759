// Package config resolves rwsort's command-line flags and optional TOML
// config file into a sortkey.SortPlan and the driver options: a plain
// struct decoded from a config file via BurntSushi/toml, whose values only
// fill in flags the caller left at their default.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/hrbrmstr/rwsort/internal/record"
	"github.com/hrbrmstr/rwsort/internal/sortkey"
)

// File is the decoded shape of an optional --config TOML file; every field
// mirrors a command-line flag of the same purpose.
type File struct {
	Fields         []string `toml:"fields"`
	Reverse        bool     `toml:"reverse"`
	PresortedInput bool     `toml:"presorted_input"`
	SortBufferSize string   `toml:"sort_buffer_size"`
	OutputStream   string   `toml:"output_stream"`
	Compress       bool     `toml:"compress"`
	TempDir        string   `toml:"temp_dir"`
	InputFiles     []string `toml:"input_files"`
}

// LoadFile decodes a TOML config file.
func LoadFile(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", path, err)
	}
	return &f, nil
}

// Resolved is what cmd/rwsort needs after merging flags, an optional
// config file, and the built-in/plug-in field registries.
type Resolved struct {
	Plan           *sortkey.SortPlan
	PresortedInput bool
	SortBufferSize int
	OutputStream   string
	Compress       bool
	TempDir        string
	InputFiles     []string
}

// Resolve builds a SortPlan from a list of field names against the
// built-in registry plus any externally-supplied plug-in fields, in
// declaration order — mirroring the original tool's key_fields[], where a
// --plugin-provided field is registered and then referenced by name
// exactly like a built-in one.
func Resolve(fieldNames []string, reverse bool, plugins map[string]sortkey.PluginField, recordWidth int) (*sortkey.SortPlan, error) {
	if len(fieldNames) == 0 {
		return nil, fmt.Errorf("config: at least one sort field is required")
	}
	builtins := record.BuiltInFields()
	descs := make([]sortkey.Descriptor, 0, len(fieldNames))
	for _, name := range fieldNames {
		if bf, ok := builtins[name]; ok {
			descs = append(descs, sortkey.BuiltIn(bf))
			continue
		}
		if pf, ok := plugins[name]; ok {
			descs = append(descs, sortkey.Plugin(pf))
			continue
		}
		return nil, fmt.Errorf("config: unknown sort field %q", name)
	}
	return sortkey.NewSortPlan(descs, reverse, recordWidth), nil
}

// ParseByteSize parses a human-readable byte size with an optional k/m/g
// suffix (case-insensitive), e.g. "512m", "2g".
func ParseByteSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("config: empty size")
	}
	mult := 1
	last := s[len(s)-1]
	switch last {
	case 'k', 'K':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'g', 'G':
		mult = 1 << 30
		s = s[:len(s)-1]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("config: invalid size %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("config: size must be positive, got %q", s)
	}
	return n * mult, nil
}

// MergeFieldList splits a comma-separated --fields flag value into field
// names, trimming surrounding whitespace around each.
func MergeFieldList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
