package schema

import (
	"slices"
	"testing"
)

func TestValue_ZeroIsAbsent(t *testing.T) {
	var v Value
	if !v.IsAbsent() || !v.Equal(Absent()) {
		t.Errorf("zero value should be absent, got %s", v)
	}
	if v.Interface() != nil {
		t.Errorf("Interface() = %v, want nil", v.Interface())
	}
	if v.String() != "<absent>" {
		t.Errorf("String() = %q", v.String())
	}
}

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same bool", Bool(true), Bool(true), true},
		{"different bool", Bool(true), Bool(false), false},
		{"int vs string", Int(1), String("1"), false},
		{"string vs symbol", String("reject"), Symbol("reject"), false},
		{"empty lists", List(), List(), true},
		{"list order matters", List("a", "b"), List("b", "a"), false},
		{"absent vs false", Absent(), Bool(false), false},
		{"maps", Map(map[string]string{"a": "1"}), Map(map[string]string{"a": "1"}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("%s.Equal(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestValue_SymbolNormalizesDashes(t *testing.T) {
	s, ok := Symbol("ipv4-unicast").AsString()
	if !ok || s != "ipv4_unicast" {
		t.Errorf("AsString() = %q, %v", s, ok)
	}
}

func TestValue_CloneIsDeep(t *testing.T) {
	orig := List("a")
	clone := orig.Clone()
	clone = clone.Append("b")

	if !slices.Equal(orig.Items(), []string{"a"}) {
		t.Errorf("original changed: %v", orig.Items())
	}
	if !slices.Equal(clone.Items(), []string{"a", "b"}) {
		t.Errorf("clone = %v", clone.Items())
	}

	items := orig.Items()
	items[0] = "changed"
	if !slices.Equal(orig.Items(), []string{"a"}) {
		t.Errorf("Items() shares storage: %v", orig.Items())
	}
}

func TestValue_AppendToAbsentStartsList(t *testing.T) {
	v := Absent().Append("x")
	if v.Type() != TypeList || !slices.Equal(v.Items(), []string{"x"}) {
		t.Errorf("Append() = %s", v)
	}

	// appending to a scalar is ignored
	if !Int(3).Append("x").Equal(Int(3)) {
		t.Error("append changed a scalar")
	}
}

func TestInstance_IDAndClone(t *testing.T) {
	in := &Instance{Kind: KindBGPAddressFamily, Key: AFIPv6Unicast, Parent: "65000", Exists: true}
	in.Set("networks", List("2001:db8::/32"))
	if in.ID() != "bgp_address_family[65000/ipv6_unicast]" {
		t.Errorf("ID() = %s", in.ID())
	}

	clone := in.Clone()
	clone.Set("networks", List())
	if !in.Properties["networks"].Equal(List("2001:db8::/32")) {
		t.Errorf("clone shares properties: %s", in.Properties["networks"])
	}
	if in.Equivalent(clone) {
		t.Error("modified clone should not be equivalent")
	}

	route := &Instance{Kind: KindStaticRoute, Key: "10.0.0.0/8"}
	if route.ID() != "static_route[10.0.0.0/8]" {
		t.Errorf("ID() = %s", route.ID())
	}
	if route.Has("gateway") {
		t.Error("unset property reported as managed")
	}
}
