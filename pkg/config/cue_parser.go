package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/vtyctl/pkg/schema"
)

// CUEParser parses and validates CUE desired state files.
//
// Files are evaluated with the generated kind definitions in scope, so a
// resource may be written as
//
//	resources: edge: #bgp_router & {name: "65000", properties: router_id: "10.0.0.1"}
type CUEParser struct {
	ctx            *cue.Context
	schemaRegistry *SchemaRegistry
	validator      *validator.Validate
	scope          cue.Value
}

// NewCUEParser creates a parser for the kinds in reg.
func NewCUEParser(reg *schema.Registry) (*CUEParser, error) {
	schemas, err := NewSchemaRegistry(reg)
	if err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	scope := ctx.CompileString(schemas.Source())
	if err := scope.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile schema scope: %w", err)
	}

	return &CUEParser{
		ctx:            ctx,
		schemaRegistry: schemas,
		validator:      validator.New(),
		scope:          scope,
	}, nil
}

// Parse parses CUE configuration from the given files and directories.
// Parse errors are reported in ParsedConfig.Errors; the returned error is
// reserved for unreadable sources.
func (cp *CUEParser) Parse(ctx context.Context, sources []string) (*ParsedConfig, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	var cueValue cue.Value
	var sourceFiles []string
	var parseErrors []ValidationError

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		var val cue.Value
		var errs []ValidationError
		if info.IsDir() {
			var files []string
			val, files, errs = cp.loadDirectory(source)
			sourceFiles = append(sourceFiles, files...)
		} else {
			val, errs = cp.loadFile(source)
			sourceFiles = append(sourceFiles, source)
		}

		parseErrors = append(parseErrors, errs...)
		if val.Exists() {
			if cueValue.Exists() {
				cueValue = cueValue.Unify(val)
			} else {
				cueValue = val
			}
		}
	}

	if len(parseErrors) > 0 {
		return &ParsedConfig{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      parseErrors,
		}, nil
	}

	if err := cueValue.Err(); err != nil {
		return &ParsedConfig{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      cp.convertCUEErrors(err),
		}, nil
	}

	return cp.extractConfig(ctx, cueValue, sourceFiles), nil
}

// ParseInline parses inline CUE content.
func (cp *CUEParser) ParseInline(ctx context.Context, content string) (*ParsedConfig, error) {
	val := cp.ctx.CompileString(content, cue.Scope(cp.scope))
	if err := val.Err(); err != nil {
		return &ParsedConfig{
			SourceFiles: []string{"inline"},
			ParsedAt:    time.Now(),
			Errors:      cp.convertCUEErrors(err),
		}, nil
	}

	return cp.extractConfig(ctx, val, []string{"inline"}), nil
}

// loadDirectory loads a directory as a CUE package.
func (cp *CUEParser) loadDirectory(dir string) (cue.Value, []string, []ValidationError) {
	buildInstances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(buildInstances) == 0 {
		return cue.Value{}, nil, []ValidationError{{
			File:     dir,
			Message:  "no CUE files found",
			Severity: SeverityError,
		}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, nil, cp.convertCUEErrors(inst.Err)
	}

	val := cp.ctx.BuildInstance(inst, cue.Scope(cp.scope))
	if err := val.Err(); err != nil {
		return cue.Value{}, nil, cp.convertCUEErrors(err)
	}

	var files []string
	for _, file := range inst.Files {
		if file.Filename != "" {
			files = append(files, file.Filename)
		}
	}

	return val, files, nil
}

// loadFile loads a single CUE file.
func (cp *CUEParser) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{
			File:     path,
			Message:  fmt.Sprintf("failed to read file: %v", err),
			Severity: SeverityError,
		}}
	}

	val := cp.ctx.CompileString(string(content), cue.Filename(path), cue.Scope(cp.scope))
	if err := val.Err(); err != nil {
		return cue.Value{}, cp.convertCUEErrors(err)
	}

	return val, nil
}

// extractConfig pulls the resources field out of the evaluated value.
// Resources may be written as a map keyed by ID or as a list.
func (cp *CUEParser) extractConfig(ctx context.Context, val cue.Value, sourceFiles []string) *ParsedConfig {
	parsedConfig := &ParsedConfig{
		SourceFiles: sourceFiles,
		ParsedAt:    time.Now(),
	}

	fail := func(path string, pos cue.Value, err error) {
		ve := ValidationError{Path: path, Message: err.Error(), Severity: SeverityError}
		if p := pos.Pos(); p.IsValid() {
			ve.File, ve.Line, ve.Column = p.Filename(), p.Line(), p.Column()
		}
		parsedConfig.Errors = append(parsedConfig.Errors, ve)
	}

	resourcesVal := val.LookupPath(cue.ParsePath("resources"))
	if !resourcesVal.Exists() {
		return parsedConfig
	}

	switch resourcesVal.Kind() {
	case cue.StructKind:
		iter, err := resourcesVal.Fields()
		if err != nil {
			fail("resources", resourcesVal, fmt.Errorf("failed to iterate resources: %w", err))
			return parsedConfig
		}
		for iter.Next() {
			path := fmt.Sprintf("resources.%s", iter.Selector())
			resource, err := cp.extractResource(ctx, iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				fail(path, iter.Value(), err)
				continue
			}
			parsedConfig.Resources = append(parsedConfig.Resources, resource)
		}
	case cue.ListKind:
		list, err := resourcesVal.List()
		if err != nil {
			fail("resources", resourcesVal, fmt.Errorf("failed to list resources: %w", err))
			return parsedConfig
		}
		for idx := 0; list.Next(); idx++ {
			resource, err := cp.extractResource(ctx, "", list.Value())
			if err != nil {
				fail(fmt.Sprintf("resources[%d]", idx), list.Value(), err)
				continue
			}
			parsedConfig.Resources = append(parsedConfig.Resources, resource)
		}
	default:
		fail("resources", resourcesVal, fmt.Errorf("resources must be a struct or a list, got %s", resourcesVal.Kind()))
	}

	return parsedConfig
}

// extractResource decodes one resource and validates it both with the
// struct tags and against the generated definition of its kind.
func (cp *CUEParser) extractResource(ctx context.Context, id string, val cue.Value) (ResourceConfig, error) {
	var resource ResourceConfig

	if err := val.Decode(&resource); err != nil {
		return resource, fmt.Errorf("failed to decode resource: %w", err)
	}

	if resource.ID == "" && id != "" {
		resource.ID = id
	}

	if err := cp.validator.Struct(resource); err != nil {
		return resource, fmt.Errorf("validation failed: %w", err)
	}

	if err := cp.schemaRegistry.ValidateResource(ctx, resource); err != nil {
		return resource, err
	}

	return resource, nil
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func (cp *CUEParser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range errors.Errors(err) {
		var file string
		var line, column int
		if pos := errors.Positions(e); len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Message:  errors.Details(e, nil),
			Severity: SeverityError,
		})
	}

	return validationErrors
}

// GetSchemaRegistry returns the schema registry.
func (cp *CUEParser) GetSchemaRegistry() *SchemaRegistry {
	return cp.schemaRegistry
}
