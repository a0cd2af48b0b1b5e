package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openfroyo/vtyctl/pkg/schema"
)

func newTestParser(t *testing.T) *CUEParser {
	t.Helper()
	parser, err := NewCUEParser(schema.Quagga())
	if err != nil {
		t.Fatalf("NewCUEParser() error = %v", err)
	}
	return parser
}

func TestCUEParser_ParseInline(t *testing.T) {
	parser := newTestParser(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		content   string
		wantErr   bool
		errCount  int
		errSubstr string
		checkFunc func(*testing.T, *ParsedConfig)
	}{
		{
			name: "plain struct resources",
			content: `
resources: {
	edge: {
		kind: "bgp_router"
		name: "65000"
		properties: {
			router_id: "10.0.0.1"
			redistribute: ["connected", "static"]
		}
	}
}
`,
			checkFunc: func(t *testing.T, pc *ParsedConfig) {
				if len(pc.Resources) != 1 {
					t.Fatalf("expected 1 resource, got %d", len(pc.Resources))
				}
				rc := pc.Resources[0]
				if rc.ID != "edge" {
					t.Errorf("expected ID from map key 'edge', got %s", rc.ID)
				}
				if rc.Kind != "bgp_router" || rc.Name != "65000" {
					t.Errorf("unexpected resource %s[%s]", rc.Kind, rc.Name)
				}
				if rc.Properties["router_id"] != "10.0.0.1" {
					t.Errorf("expected router_id 10.0.0.1, got %v", rc.Properties["router_id"])
				}
			},
		},
		{
			name: "kind definitions are in scope",
			content: `
resources: {
	eth0: #pim_interface & {
		name: "eth0"
		properties: {
			igmp: true
			igmp_query_interval: 30
		}
	}
}
`,
			checkFunc: func(t *testing.T, pc *ParsedConfig) {
				if len(pc.Resources) != 1 {
					t.Fatalf("expected 1 resource, got %d", len(pc.Resources))
				}
				if pc.Resources[0].Kind != "pim_interface" {
					t.Errorf("expected kind pim_interface, got %s", pc.Resources[0].Kind)
				}
				if pc.Resources[0].Properties["igmp_query_interval"] != int64(30) {
					t.Errorf("expected igmp_query_interval 30, got %#v", pc.Resources[0].Properties["igmp_query_interval"])
				}
			},
		},
		{
			name: "list form",
			content: `
resources: [
	{kind: "static_route", name: "10.0.0.0/8", properties: option: "blackhole"},
	{kind: "bgp_as_path", name: "foo", properties: rules: ["permit ^100$"]},
]
`,
			checkFunc: func(t *testing.T, pc *ParsedConfig) {
				if len(pc.Resources) != 2 {
					t.Fatalf("expected 2 resources, got %d", len(pc.Resources))
				}
				if pc.Resources[1].Identifier() != "bgp_as_path[foo]" {
					t.Errorf("expected derived identifier, got %s", pc.Resources[1].Identifier())
				}
			},
		},
		{
			name: "no resources",
			content: `
other: 1
`,
			checkFunc: func(t *testing.T, pc *ParsedConfig) {
				if len(pc.Resources) != 0 {
					t.Errorf("expected no resources, got %d", len(pc.Resources))
				}
			},
		},
		{
			name: "invalid CUE syntax",
			content: `
resources: {
	invalid syntax here
}
`,
			wantErr: true,
		},
		{
			name: "missing required name",
			content: `
resources: {
	r: {kind: "static_route"}
}
`,
			wantErr:   true,
			errCount:  1,
			errSubstr: "Name",
		},
		{
			name: "unknown kind",
			content: `
resources: {
	r: {kind: "ospf_router", name: "1"}
}
`,
			wantErr:   true,
			errCount:  1,
			errSubstr: "unknown resource kind",
		},
		{
			name: "unknown property",
			content: `
resources: {
	r: {kind: "pim_interface", name: "eth0", properties: igmp_version: 3}
}
`,
			wantErr:  true,
			errCount: 1,
		},
		{
			name: "value out of range",
			content: `
resources: {
	r: {kind: "pim_interface", name: "eth0", properties: igmp_query_interval: 5000}
}
`,
			wantErr:  true,
			errCount: 1,
		},
		{
			name: "address family without parent",
			content: `
resources: {
	r: {kind: "bgp_address_family", name: "ipv6_unicast"}
}
`,
			wantErr:  true,
			errCount: 1,
		},
		{
			name: "invalid router key",
			content: `
resources: {
	r: {kind: "bgp_router", name: "as65000"}
}
`,
			wantErr:  true,
			errCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := parser.ParseInline(ctx, tt.content)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.wantErr {
				if len(pc.Errors) == 0 {
					t.Fatalf("expected validation errors, got none")
				}
				if tt.errCount > 0 && len(pc.Errors) != tt.errCount {
					t.Errorf("expected %d errors, got %d: %v", tt.errCount, len(pc.Errors), pc.Errors)
				}
				if tt.errSubstr != "" && !strings.Contains(pc.Errors[0].Message, tt.errSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errSubstr, pc.Errors[0].Message)
				}
				if pc.Err() == nil {
					t.Errorf("expected Err() to be non-nil")
				}
				return
			}

			if len(pc.Errors) > 0 {
				t.Fatalf("unexpected validation errors: %v", pc.Errors)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, pc)
			}
		})
	}
}

func TestCUEParser_ParseFile(t *testing.T) {
	parser := newTestParser(t)
	ctx := context.Background()

	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "edge.cue")

	content := `
resources: {
	edge: #bgp_router & {
		name: "65000"
		targets: ["edge1"]
		properties: router_id: "10.0.0.1"
	}
	v6: #bgp_address_family & {
		name: "ipv6_unicast"
		parent: "65000"
		properties: networks: ["2001:db8::/32"]
	}
}
`

	if err := os.WriteFile(testFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	pc, err := parser.Parse(ctx, []string{testFile})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pc.Errors) > 0 {
		t.Fatalf("unexpected validation errors: %v", pc.Errors)
	}

	if len(pc.SourceFiles) != 1 || pc.SourceFiles[0] != testFile {
		t.Errorf("expected source file %s, got %v", testFile, pc.SourceFiles)
	}
	if len(pc.Resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(pc.Resources))
	}
	if !pc.Resources[0].AppliesTo("edge1") || pc.Resources[0].AppliesTo("edge2") {
		t.Errorf("expected edge to apply only to edge1, got targets %v", pc.Resources[0].Targets)
	}
}

func TestCUEParser_ParseFileErrorLocation(t *testing.T) {
	parser := newTestParser(t)
	ctx := context.Background()

	testFile := filepath.Join(t.TempDir(), "bad.cue")
	content := "resources: {\n\tr: {kind: \"static_route\", name: \"10.0.0.0/8\"\n}\n"
	if err := os.WriteFile(testFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	pc, err := parser.Parse(ctx, []string{testFile})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pc.Errors) == 0 {
		t.Fatal("expected a syntax error")
	}
	if pc.Errors[0].File != testFile || pc.Errors[0].Line == 0 {
		t.Errorf("expected error located in %s, got %+v", testFile, pc.Errors[0])
	}
}

func TestCUEParser_ParseDirectory(t *testing.T) {
	parser := newTestParser(t)
	ctx := context.Background()

	dir := t.TempDir()
	files := map[string]string{
		"routers.cue": "package desired\n\nresources: edge: {kind: \"bgp_router\", name: \"65000\"}\n",
		"routes.cue":  "package desired\n\nresources: dflt: {kind: \"static_route\", name: \"0.0.0.0/0\", properties: gateway: \"192.0.2.1\"}\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}

	pc, err := parser.Parse(ctx, []string{dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pc.Errors) > 0 {
		t.Fatalf("unexpected validation errors: %v", pc.Errors)
	}
	if len(pc.Resources) != 2 {
		t.Errorf("expected 2 resources from the package, got %d", len(pc.Resources))
	}
	if len(pc.SourceFiles) != 2 {
		t.Errorf("expected 2 source files, got %v", pc.SourceFiles)
	}
}

func TestCUEParser_MissingSource(t *testing.T) {
	parser := newTestParser(t)

	if _, err := parser.Parse(context.Background(), nil); err == nil {
		t.Error("expected error for no sources")
	}
	if _, err := parser.Parse(context.Background(), []string{filepath.Join(t.TempDir(), "nope.cue")}); err == nil {
		t.Error("expected error for missing file")
	}
}
