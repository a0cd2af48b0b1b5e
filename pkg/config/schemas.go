package config

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/openfroyo/vtyctl/pkg/schema"
)

// SchemaRegistry holds one closed CUE definition per resource kind,
// generated from the resource schema registry.
type SchemaRegistry struct {
	ctx     *cue.Context
	source  string
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry compiles the definitions for every kind in reg.
func NewSchemaRegistry(reg *schema.Registry) (*SchemaRegistry, error) {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	sr.source = GenerateCUE(reg)
	val := sr.ctx.CompileString(sr.source, cue.Filename("vtyctl_schemas.cue"))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile resource schemas: %w", err)
	}

	for _, s := range reg.Schemas() {
		def := val.LookupPath(cue.ParsePath(definitionName(s.Kind)))
		if err := def.Err(); err != nil {
			return nil, fmt.Errorf("failed to look up schema %s: %w", s.Kind, err)
		}
		sr.schemas[string(s.Kind)] = def
	}

	return sr, nil
}

// RegisterSchema registers an additional CUE definition under name. The
// source must declare a field called name.
func (sr *SchemaRegistry) RegisterSchema(name, source string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(source)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	def := val.LookupPath(cue.ParsePath(name))
	if !def.Exists() {
		return fmt.Errorf("schema %s does not declare %s", name, name)
	}

	sr.schemas[name] = def
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Source returns the generated CUE text, for `vtyctl validate --schema`.
func (sr *SchemaRegistry) Source() string {
	return sr.source
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	def, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := def.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ValidateResource validates a resource against the definition of its kind.
func (sr *SchemaRegistry) ValidateResource(ctx context.Context, rc ResourceConfig) error {
	if _, ok := sr.GetSchema(rc.Kind); !ok {
		return fmt.Errorf("unknown resource kind %q", rc.Kind)
	}
	return sr.ValidateAgainstSchema(ctx, rc.Kind, rc)
}

// ListSchemas returns all registered schema names in sorted order.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func definitionName(kind schema.Kind) string {
	return "#" + string(kind)
}

// GenerateCUE renders a closed definition per kind, e.g.
//
//	#pim_interface: {
//		kind: "pim_interface"
//		name: string & =~"^\\S+$"
//		...
//		properties?: {
//			igmp_query_interval?: int & >=1 & <=1800
//		}
//	}
func GenerateCUE(reg *schema.Registry) string {
	var b strings.Builder
	b.WriteString("// Generated from the vtyctl resource registry.\n\n")

	for _, s := range reg.Schemas() {
		fmt.Fprintf(&b, "%s: {\n", definitionName(s.Kind))
		fmt.Fprintf(&b, "\tid?: string\n")
		fmt.Fprintf(&b, "\tkind: %s\n", strconv.Quote(string(s.Kind)))
		fmt.Fprintf(&b, "\tname: %s\n", stringConstraint(s.ValidKey))
		if s.Layout == schema.LayoutNested {
			var domain *regexp.Regexp
			if p, ok := reg.Lookup(s.Parent); ok {
				domain = p.ValidKey
			}
			fmt.Fprintf(&b, "\tparent: %s\n", stringConstraint(domain))
		} else {
			b.WriteString("\tparent?: \"\"\n")
		}
		b.WriteString("\tensure?: \"present\" | \"absent\"\n")
		b.WriteString("\ttargets?: [...string]\n")
		b.WriteString("\tproperties?: {\n")
		for _, p := range s.Properties {
			fmt.Fprintf(&b, "\t\t%s?: %s\n", p.Name, propertyConstraint(p))
		}
		b.WriteString("\t}\n")
		b.WriteString("}\n\n")
	}

	return b.String()
}

func stringConstraint(domain *regexp.Regexp) string {
	if domain == nil {
		return "string & !=\"\""
	}
	return "string & =~" + strconv.Quote(domain.String())
}

func propertyConstraint(p schema.PropertyDescriptor) string {
	switch p.Type {
	case schema.TypeBoolean:
		return "bool"
	case schema.TypeInteger:
		c := "int & >=" + strconv.Itoa(p.Min)
		if p.Max != 0 {
			c += " & <=" + strconv.Itoa(p.Max)
		}
		return c
	case schema.TypeString, schema.TypeSymbol:
		if p.Domain == nil {
			return "string"
		}
		return "string & =~" + strconv.Quote(p.Domain.String())
	case schema.TypeList:
		elem := "string"
		if p.Domain != nil {
			elem = "string & =~" + strconv.Quote(p.Domain.String())
		}
		return fmt.Sprintf("[...(%s)] | (%s)", elem, elem)
	case schema.TypeMap:
		return "{[string]: string}"
	}
	return "_"
}
