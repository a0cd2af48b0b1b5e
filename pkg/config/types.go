package config

import (
	"fmt"
	"slices"
	"time"
)

// Ensure values accepted in desired state files.
const (
	EnsurePresent = "present"
	EnsureAbsent  = "absent"
)

// ResourceConfig is one desired resource as written in a CUE, YAML or
// Starlark file, before it is checked against the schema registry.
type ResourceConfig struct {
	// ID names the resource inside the file. It defaults to the map key in
	// map form and to "kind[name]" otherwise.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Kind is the resource kind (e.g. "bgp_router", "static_route").
	Kind string `json:"kind" yaml:"kind" validate:"required"`

	// Name is the instance key: AS number, list name, interface, prefix or
	// address family.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Parent is the enclosing instance key for nested kinds.
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty" validate:"required_if=Kind bgp_address_family"`

	// Ensure is present (default) or absent.
	Ensure string `json:"ensure,omitempty" yaml:"ensure,omitempty" validate:"omitempty,oneof=present absent"`

	// Targets limits the resource to the named targets. Empty means every
	// target.
	Targets []string `json:"targets,omitempty" yaml:"targets,omitempty" validate:"omitempty,dive,required"`

	// Properties holds only the managed properties; anything left out is
	// not touched on the daemon.
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Identifier returns the explicit ID or a derived one.
func (rc ResourceConfig) Identifier() string {
	if rc.ID != "" {
		return rc.ID
	}
	if rc.Parent != "" {
		return fmt.Sprintf("%s[%s/%s]", rc.Kind, rc.Parent, rc.Name)
	}
	return fmt.Sprintf("%s[%s]", rc.Kind, rc.Name)
}

// Absent reports whether the resource asks for removal.
func (rc ResourceConfig) Absent() bool {
	return rc.Ensure == EnsureAbsent
}

// AppliesTo reports whether the resource is selected for target.
func (rc ResourceConfig) AppliesTo(target string) bool {
	return len(rc.Targets) == 0 || slices.Contains(rc.Targets, target)
}

// ParsedConfig is the result of loading one or more desired state files.
type ParsedConfig struct {
	// Resources are all resources in load order.
	Resources []ResourceConfig `json:"resources"`

	// SourceFiles are the files that were loaded.
	SourceFiles []string `json:"source_files"`

	// ParsedAt is when the configuration was loaded.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists validation errors with their location.
	Errors []ValidationError `json:"errors,omitempty"`
}

// HasErrors reports whether loading produced any error.
func (pc *ParsedConfig) HasErrors() bool {
	for _, e := range pc.Errors {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Err joins the collected errors into one, or returns nil.
func (pc *ParsedConfig) Err() error {
	if !pc.HasErrors() {
		return nil
	}
	return &LoadError{Errors: pc.Errors}
}

// Merge appends the resources, files and errors of other.
func (pc *ParsedConfig) Merge(other *ParsedConfig) {
	pc.Resources = append(pc.Resources, other.Resources...)
	pc.SourceFiles = append(pc.SourceFiles, other.SourceFiles...)
	pc.Errors = append(pc.Errors, other.Errors...)
}

// Severity levels of a ValidationError.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the document path to the error (e.g. "resources.edge.properties").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is error or warning.
	Severity string `json:"severity" validate:"required,oneof=error warning"`
}

func (e ValidationError) String() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
		if e.Column > 0 {
			loc = fmt.Sprintf("%s:%d", loc, e.Column)
		}
	}
	msg := e.Message
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if loc != "" {
		return loc + ": " + msg
	}
	return msg
}

// LoadError carries every error found while loading desired state.
type LoadError struct {
	Errors []ValidationError
}

func (e *LoadError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].String()
	}
	return fmt.Sprintf("%s (and %d more errors)", e.Errors[0], len(e.Errors)-1)
}

// StarlarkResult represents the result of Starlark execution.
type StarlarkResult struct {
	// Resources are the resources declared through the builtins.
	Resources []ResourceConfig `json:"resources,omitempty"`

	// Output holds the exported globals of the script.
	Output map[string]interface{} `json:"output,omitempty"`

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error is any error that occurred.
	Error string `json:"error,omitempty"`
}
