package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// YAMLLoader reads desired state written as YAML:
//
//	resources:
//	  edge:
//	    kind: bgp_router
//	    name: "65000"
//	    properties:
//	      router_id: 10.0.0.1
//
// The resources field may also be a list.
type YAMLLoader struct {
	schemas   *SchemaRegistry
	validator *validator.Validate
}

// NewYAMLLoader creates a loader validating against schemas.
func NewYAMLLoader(schemas *SchemaRegistry) *YAMLLoader {
	return &YAMLLoader{schemas: schemas, validator: validator.New()}
}

// LoadFile loads one YAML file.
func (yl *YAMLLoader) LoadFile(ctx context.Context, path string) (*ParsedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return yl.Load(ctx, path, data), nil
}

// Load parses YAML content. name is used in error locations.
func (yl *YAMLLoader) Load(ctx context.Context, name string, data []byte) *ParsedConfig {
	pc := &ParsedConfig{SourceFiles: []string{name}, ParsedAt: time.Now()}

	fail := func(path string, node *yaml.Node, msg string) {
		ve := ValidationError{File: name, Path: path, Message: msg, Severity: SeverityError}
		if node != nil {
			ve.Line, ve.Column = node.Line, node.Column
		}
		pc.Errors = append(pc.Errors, ve)
	}

	var doc struct {
		Resources yaml.Node `yaml:"resources"`
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return pc
		}
		fail("", nil, err.Error())
		return pc
	}

	add := func(path, id string, node *yaml.Node) {
		var rc ResourceConfig
		if err := node.Decode(&rc); err != nil {
			fail(path, node, fmt.Sprintf("failed to decode resource: %v", err))
			return
		}
		if rc.ID == "" {
			rc.ID = id
		}
		if err := yl.validator.Struct(rc); err != nil {
			fail(path, node, fmt.Sprintf("validation failed: %v", err))
			return
		}
		if err := yl.schemas.ValidateResource(ctx, rc); err != nil {
			fail(path, node, err.Error())
			return
		}
		pc.Resources = append(pc.Resources, rc)
	}

	node := &doc.Resources
	switch node.Kind {
	case 0:
		// no resources field
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			add("resources."+key, key, node.Content[i+1])
		}
	case yaml.SequenceNode:
		for i, item := range node.Content {
			add(fmt.Sprintf("resources[%d]", i), "", item)
		}
	default:
		fail("resources", node, "resources must be a mapping or a sequence")
	}

	return pc
}
