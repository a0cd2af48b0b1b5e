package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/openfroyo/vtyctl/pkg/schema"
)

// Loader reads desired state from CUE, YAML and Starlark files, choosing
// the format by extension. Directories are loaded as a CUE package unless
// they hold no .cue file, in which case each supported file is loaded.
type Loader struct {
	reg      *schema.Registry
	cue      *CUEParser
	yaml     *YAMLLoader
	starlark *StarlarkEvaluator
}

// NewLoader creates a loader for the kinds in reg.
func NewLoader(reg *schema.Registry, starlarkTimeout time.Duration) (*Loader, error) {
	cp, err := NewCUEParser(reg)
	if err != nil {
		return nil, err
	}
	return &Loader{
		reg:      reg,
		cue:      cp,
		yaml:     NewYAMLLoader(cp.GetSchemaRegistry()),
		starlark: NewStarlarkEvaluator(reg, starlarkTimeout),
	}, nil
}

// Schemas returns the CUE schema registry shared by every format.
func (l *Loader) Schemas() *SchemaRegistry {
	return l.cue.GetSchemaRegistry()
}

// Load loads every path and merges the results. Validation problems are
// collected in ParsedConfig.Errors; call Err to turn them into an error.
func (l *Loader) Load(ctx context.Context, paths ...string) (*ParsedConfig, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no desired state files given")
	}

	merged := &ParsedConfig{ParsedAt: time.Now()}
	var cueSources []string

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		if info.IsDir() {
			files, hasCUE, err := listDir(path)
			if err != nil {
				return nil, err
			}
			if hasCUE {
				cueSources = append(cueSources, path)
				continue
			}
			for _, f := range files {
				pc, err := l.loadFile(ctx, f)
				if err != nil {
					return nil, err
				}
				merged.Merge(pc)
			}
			continue
		}

		if formatOf(path) == formatCUE {
			cueSources = append(cueSources, path)
			continue
		}
		pc, err := l.loadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		merged.Merge(pc)
	}

	if len(cueSources) > 0 {
		pc, err := l.cue.Parse(ctx, cueSources)
		if err != nil {
			return nil, err
		}
		merged.Merge(pc)
	}

	return merged, nil
}

func (l *Loader) loadFile(ctx context.Context, path string) (*ParsedConfig, error) {
	switch formatOf(path) {
	case formatCUE:
		return l.cue.Parse(ctx, []string{path})
	case formatYAML:
		return l.yaml.LoadFile(ctx, path)
	case formatStarlark:
		return l.loadStarlark(ctx, path)
	}
	return nil, fmt.Errorf("unsupported desired state file %s (want .cue, .yaml, .yml or .star)", path)
}

func (l *Loader) loadStarlark(ctx context.Context, path string) (*ParsedConfig, error) {
	script, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	pc := &ParsedConfig{SourceFiles: []string{path}, ParsedAt: time.Now()}
	result, err := l.starlark.Evaluate(ctx, path, string(script), nil)
	if err != nil {
		pc.Errors = append(pc.Errors, ValidationError{File: path, Message: err.Error(), Severity: SeverityError})
		return pc, nil
	}

	schemas := l.Schemas()
	for _, rc := range result.Resources {
		if err := schemas.ValidateResource(ctx, rc); err != nil {
			pc.Errors = append(pc.Errors, ValidationError{
				File:     path,
				Path:     fmt.Sprintf("%s(%q)", rc.Kind, rc.Name),
				Message:  err.Error(),
				Severity: SeverityError,
			})
			continue
		}
		pc.Resources = append(pc.Resources, rc)
	}
	return pc, nil
}

type format int

const (
	formatUnknown format = iota
	formatCUE
	formatYAML
	formatStarlark
)

func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return formatCUE
	case ".yaml", ".yml":
		return formatYAML
	case ".star", ".bzl":
		return formatStarlark
	}
	return formatUnknown
}

func listDir(dir string) ([]string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	hasCUE := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		switch formatOf(path) {
		case formatCUE:
			hasCUE = true
		case formatYAML, formatStarlark:
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files, hasCUE, nil
}
