package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf returns the manifest format implied by a file extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".toml":
		return FormatTOML, true
	}
	return "", false
}

// Parse decodes every plan in data and validates each. YAML input may
// hold several documents; TOML holds exactly one.
func Parse(data []byte, format Format) ([]Definition, error) {
	var defs []Definition

	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		for {
			var def Definition
			if err := dec.Decode(&def); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, err
			}
			if def.IsBlank() {
				continue
			}
			defs = append(defs, def)
		}
	case FormatTOML:
		var def Definition
		if _, err := toml.Decode(string(data), &def); err != nil {
			return nil, err
		}
		if !def.IsBlank() {
			defs = append(defs, def)
		}
	default:
		return nil, fmt.Errorf("unsupported plan format %q", format)
	}

	for i := range defs {
		if err := defs[i].Validate(); err != nil {
			return nil, fmt.Errorf("plan %q: %w", defs[i].Project.Name, err)
		}
	}
	return defs, nil
}

// ParseFile parses the plans in one file.
func ParseFile(path string) ([]Definition, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("%s is not a YAML or TOML file", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	defs, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// Collect resolves paths to plan files and parses them. A path may be a
// file, a directory (walked for .yaml, .yml and .toml files) or a
// doublestar glob such as plans/**/*.yaml. No paths means the current
// directory.
func Collect(paths []string) ([]Definition, error) {
	files, err := Files(paths)
	if err != nil {
		return nil, err
	}

	var defs []Definition
	for _, f := range files {
		parsed, err := ParseFile(f)
		if err != nil {
			return nil, err
		}
		defs = append(defs, parsed...)
	}
	return defs, nil
}

// Files resolves paths to the plan files Collect would parse, in order.
func Files(paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	return resolve(paths)
}

func resolve(paths []string) ([]string, error) {
	seen := map[string]struct{}{}
	var files []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	for _, p := range paths {
		if hasMeta(p) {
			matches, err := doublestar.FilepathGlob(p)
			if err != nil {
				return nil, fmt.Errorf("glob %s: %w", p, err)
			}
			sort.Strings(matches)
			for _, m := range matches {
				if _, ok := FormatOf(m); ok {
					add(m)
				}
			}
			continue
		}

		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		if err := filepath.WalkDir(p, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return nil
			}
			if _, ok := FormatOf(path); ok {
				add(path)
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}
