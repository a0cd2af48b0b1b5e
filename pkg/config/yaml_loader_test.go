package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestYAMLLoader(t *testing.T) *YAMLLoader {
	t.Helper()
	return NewYAMLLoader(newTestSchemas(t))
}

func TestYAMLLoader_Load(t *testing.T) {
	yl := newTestYAMLLoader(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		content   string
		wantErrs  int
		errLine   int
		errSubstr string
		checkFunc func(*testing.T, *ParsedConfig)
	}{
		{
			name: "mapping form",
			content: `
resources:
  edge:
    kind: bgp_router
    name: "65000"
    properties:
      router_id: 10.0.0.1
      redistribute: [connected, static]
  eth0:
    kind: pim_interface
    name: eth0
    targets: [edge1]
    properties:
      igmp: true
`,
			checkFunc: func(t *testing.T, pc *ParsedConfig) {
				if len(pc.Resources) != 2 {
					t.Fatalf("expected 2 resources, got %d", len(pc.Resources))
				}
				if pc.Resources[0].ID != "edge" || pc.Resources[1].ID != "eth0" {
					t.Errorf("expected IDs in document order, got %s, %s", pc.Resources[0].ID, pc.Resources[1].ID)
				}
				if pc.Resources[1].Properties["igmp"] != true {
					t.Errorf("expected igmp=true, got %v", pc.Resources[1].Properties["igmp"])
				}
			},
		},
		{
			name: "sequence form",
			content: `
resources:
  - kind: static_route
    name: 0.0.0.0/0
    properties:
      gateway: 192.0.2.1
  - kind: bgp_as_path
    name: transit
    ensure: absent
`,
			checkFunc: func(t *testing.T, pc *ParsedConfig) {
				if len(pc.Resources) != 2 {
					t.Fatalf("expected 2 resources, got %d", len(pc.Resources))
				}
				if !pc.Resources[1].Absent() {
					t.Error("expected the as-path to be absent")
				}
			},
		},
		{
			name:    "empty document",
			content: ``,
			checkFunc: func(t *testing.T, pc *ParsedConfig) {
				if len(pc.Resources) != 0 {
					t.Errorf("expected no resources, got %d", len(pc.Resources))
				}
			},
		},
		{
			name: "missing kind is reported at the resource",
			content: `resources:
  r:
    name: eth0
`,
			wantErrs:  1,
			errLine:   3,
			errSubstr: "Kind",
		},
		{
			name: "out of range property",
			content: `resources:
  r:
    kind: pim_interface
    name: eth0
    properties:
      igmp_query_interval: 0
`,
			wantErrs: 1,
		},
		{
			name: "good and bad resources",
			content: `resources:
  good:
    kind: bgp_as_path
    name: transit
  bad:
    kind: bgp_as_path
    name: other
    ensure: maybe
`,
			wantErrs: 1,
			checkFunc: func(t *testing.T, pc *ParsedConfig) {
				if len(pc.Resources) != 1 || pc.Resources[0].ID != "good" {
					t.Errorf("expected only the good resource, got %+v", pc.Resources)
				}
			},
		},
		{
			name:     "resources is a scalar",
			content:  "resources: 3\n",
			wantErrs: 1,
		},
		{
			name:     "malformed yaml",
			content:  "resources: [\n",
			wantErrs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := yl.Load(ctx, "desired.yaml", []byte(tt.content))

			if len(pc.Errors) != tt.wantErrs {
				t.Fatalf("expected %d errors, got %d: %v", tt.wantErrs, len(pc.Errors), pc.Errors)
			}
			if tt.wantErrs > 0 {
				ve := pc.Errors[0]
				if ve.File != "desired.yaml" {
					t.Errorf("expected file desired.yaml, got %s", ve.File)
				}
				if tt.errLine > 0 && ve.Line != tt.errLine {
					t.Errorf("expected error on line %d, got %d", tt.errLine, ve.Line)
				}
				if tt.errSubstr != "" && !strings.Contains(ve.Message, tt.errSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errSubstr, ve.Message)
				}
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, pc)
			}
		})
	}
}

func TestYAMLLoader_LoadFile(t *testing.T) {
	yl := newTestYAMLLoader(t)

	path := filepath.Join(t.TempDir(), "routes.yml")
	if err := os.WriteFile(path, []byte("resources:\n  r:\n    kind: static_route\n    name: 10.0.0.0/8\n    properties: {option: blackhole}\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	pc, err := yl.LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if pc.HasErrors() {
		t.Fatalf("unexpected errors: %v", pc.Errors)
	}
	if len(pc.Resources) != 1 || pc.SourceFiles[0] != path {
		t.Errorf("unexpected result %+v", pc)
	}

	if _, err := yl.LoadFile(context.Background(), path+".missing"); err == nil {
		t.Error("expected error for missing file")
	}
}
