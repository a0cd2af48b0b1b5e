package parser

import (
	"slices"
	"testing"

	"github.com/openfroyo/vtyctl/pkg/schema"
)

var reg = schema.Quagga()

func parse(text string) []*schema.Instance {
	return New(reg).Parse(text)
}

func find(t *testing.T, instances []*schema.Instance, id string) *schema.Instance {
	t.Helper()
	for _, in := range instances {
		if in.ID() == id {
			return in
		}
	}
	t.Fatalf("instance %s not parsed", id)
	return nil
}

func ids(instances []*schema.Instance) []string {
	out := make([]string, 0, len(instances))
	for _, in := range instances {
		out = append(out, in.ID())
	}
	return out
}

// expectProperty fails the test when in does not hold want for name.
func expectProperty(t *testing.T, in *schema.Instance, name string, want schema.Value) {
	t.Helper()
	if got := in.Properties[name]; !got.Equal(want) {
		t.Errorf("%s.%s = %s, want %s", in.ID(), name, got, want)
	}
}

func expectIDs(t *testing.T, instances []*schema.Instance, want ...string) {
	t.Helper()
	if got := ids(instances); !slices.Equal(got, want) {
		t.Errorf("parsed %v, want %v", got, want)
	}
}

func TestParse_Empty(t *testing.T) {
	if got := parse(""); len(got) != 0 {
		t.Errorf("Parse(\"\") = %v", ids(got))
	}
	if got := parse("!\n!\n\n"); len(got) != 0 {
		t.Errorf("Parse(comments) = %v", ids(got))
	}
}

func TestParse_ConsecutiveBlocks(t *testing.T) {
	got := parse("interface eth0\n ip igmp\ninterface eth1\n ip pim ssm\n")

	expectIDs(t, got, "pim_interface[eth0]", "pim_interface[eth1]")
	eth0 := find(t, got, "pim_interface[eth0]")
	eth1 := find(t, got, "pim_interface[eth1]")
	expectProperty(t, eth0, "igmp", schema.Bool(true))
	expectProperty(t, eth0, "pim_ssm", schema.Bool(false))
	expectProperty(t, eth1, "pim_ssm", schema.Bool(true))
	expectProperty(t, eth1, "igmp", schema.Bool(false))
}

func TestParse_DefaultsSeeded(t *testing.T) {
	got := parse("interface eth0\n")
	if len(got) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(got))
	}
	if !got[0].Exists {
		t.Error("parsed instance should exist")
	}
	expectProperty(t, got[0], "igmp_query_interval", schema.Int(125))
	expectProperty(t, got[0], "igmp_query_max_response_time_dsec", schema.Int(100))
}

func TestParse_CommentsAndUnknownLines(t *testing.T) {
	text := `!
hostname edge1
password zebra
!
interface eth0
 description uplink
 ip igmp query-interval 30
 ! nested comment
 ip address 192.0.2.1/24
!
line vty
 exec-timeout 0 0
!
`
	got := parse(text)
	if len(got) != 1 {
		t.Fatalf("expected 1 instance, got %v", ids(got))
	}
	expectProperty(t, got[0], "igmp_query_interval", schema.Int(30))
}

func TestParse_UnmatchedTrailingLine(t *testing.T) {
	got := parse("interface eth0\n ip igmp\nlog file /var/log/quagga.log\n ip pim ssm")
	if len(got) != 1 {
		t.Fatalf("expected 1 instance, got %v", ids(got))
	}
	// the indented line after an unmodelled top-level line is not eth0's
	expectProperty(t, got[0], "pim_ssm", schema.Bool(false))
}

func TestParse_Router(t *testing.T) {
	text := `router bgp 65000
 bgp router-id 10.0.0.1
 no bgp default ipv4-unicast
 bgp network import-check
 bgp default local-preference 250
 timers bgp 10 30
 redistribute connected
 redistribute static
 neighbor 192.0.2.2 remote-as 65001
 network 10.1.0.0/16
 network 10.2.0.0/16
 maximum-paths 4
 maximum-paths ibgp 2
 aggregate-address 10.0.0.0/8 summary-only
!
`
	got := parse(text)
	expectIDs(t, got, "bgp_router[65000]", "bgp_address_family[65000/ipv4_unicast]")

	router := find(t, got, "bgp_router[65000]")
	expectProperty(t, router, "router_id", schema.String("10.0.0.1"))
	expectProperty(t, router, "default_ipv4_unicast", schema.Bool(false))
	expectProperty(t, router, "import_check", schema.Bool(true))
	expectProperty(t, router, "default_local_preference", schema.Int(250))
	expectProperty(t, router, "keepalive", schema.Int(10))
	expectProperty(t, router, "holdtime", schema.Int(30))
	expectProperty(t, router, "redistribute", schema.List("connected", "static"))

	af := find(t, got, "bgp_address_family[65000/ipv4_unicast]")
	if af.Parent != "65000" {
		t.Errorf("Parent = %q", af.Parent)
	}
	expectProperty(t, af, "networks", schema.List("10.1.0.0/16", "10.2.0.0/16"))
	expectProperty(t, af, "maximum_ebgp_paths", schema.Int(4))
	expectProperty(t, af, "maximum_ibgp_paths", schema.Int(2))
	expectProperty(t, af, "aggregate_address", schema.List("10.0.0.0/8 summary-only"))
}

func TestParse_RouterWithoutBodyKeepsImplicitFamily(t *testing.T) {
	got := parse("router bgp 1\n")
	expectIDs(t, got, "bgp_router[1]", "bgp_address_family[1/ipv4_unicast]")
	expectProperty(t, got[0], "router_id", schema.Absent())
}

func TestParse_AddressFamilySubBlocks(t *testing.T) {
	text := `router bgp 65000
 network 10.1.0.0/16
 address-family ipv6
 network 2001:db8::/32
 exit-address-family
 address-family ipv4 multicast
  network 232.0.0.0/8
 exit-address-family
 address-family ipv4 unicast
 maximum-paths 8
 exit-address-family
 bgp router-id 10.0.0.9
!
`
	got := parse(text)
	want := []string{
		"bgp_router[65000]",
		"bgp_address_family[65000/ipv4_unicast]",
		"bgp_address_family[65000/ipv6_unicast]",
		"bgp_address_family[65000/ipv4_multicast]",
	}
	if gotIDs := ids(got); len(gotIDs) != len(want) {
		t.Fatalf("parsed %v, want %v", gotIDs, want)
	}
	for _, id := range want {
		find(t, got, id)
	}

	v6 := find(t, got, "bgp_address_family[65000/ipv6_unicast]")
	expectProperty(t, v6, "networks", schema.List("2001:db8::/32"))

	mc := find(t, got, "bgp_address_family[65000/ipv4_multicast]")
	expectProperty(t, mc, "networks", schema.List("232.0.0.0/8"))

	// an explicit ipv4 unicast sub-block merges with the implicit family
	v4 := find(t, got, "bgp_address_family[65000/ipv4_unicast]")
	expectProperty(t, v4, "networks", schema.List("10.1.0.0/16"))
	expectProperty(t, v4, "maximum_ebgp_paths", schema.Int(8))

	// router lines after a sub-block still belong to the router
	router := find(t, got, "bgp_router[65000]")
	expectProperty(t, router, "router_id", schema.String("10.0.0.9"))
}

func TestParse_ASPathRowsMerge(t *testing.T) {
	text := `ip as-path access-list foo permit ^100$
ip as-path access-list foo deny ^200$ ^300$
ip as-path access-list bar permit .*
`
	got := parse(text)
	expectIDs(t, got, "bgp_as_path[foo]", "bgp_as_path[bar]")

	foo := find(t, got, "bgp_as_path[foo]")
	expectProperty(t, foo, "rules", schema.List("permit ^100$", "deny ^200$", "deny ^300$"))
}

func TestParse_StaticRoutes(t *testing.T) {
	text := `ip route 0.0.0.0/0 192.0.2.1
ip route 10.0.0.0/8 blackhole
ip route 172.16.0.0 255.240.0.0 eth1 200
ip route 192.168.0.0/16 10.0.0.1 tag 5
`
	got := parse(text)
	expectIDs(t, got,
		"static_route[0.0.0.0/0]",
		"static_route[10.0.0.0/8]",
		"static_route[172.16.0.0 255.240.0.0]",
	)

	def := find(t, got, "static_route[0.0.0.0/0]")
	expectProperty(t, def, "gateway", schema.String("192.0.2.1"))
	expectProperty(t, def, "option", schema.Absent())

	mask := find(t, got, "static_route[172.16.0.0 255.240.0.0]")
	expectProperty(t, mask, "interface", schema.String("eth1"))
	expectProperty(t, mask, "distance", schema.Int(200))
}

func TestParse_SamePrefixRoutesStaySeparate(t *testing.T) {
	got := parse("ip route 0.0.0.0/0 10.0.0.1\nip route 0.0.0.0/0 10.0.0.2\n")

	expectIDs(t, got, "static_route[0.0.0.0/0]", "static_route[0.0.0.0/0]")
	if len(got) != 2 {
		t.FailNow()
	}
	expectProperty(t, got[0], "gateway", schema.String("10.0.0.1"))
	expectProperty(t, got[1], "gateway", schema.String("10.0.0.2"))
}

func TestParse_RowsInterleavedWithBlocks(t *testing.T) {
	text := `ip as-path access-list foo permit ^1$
interface eth0
 ip igmp
ip as-path access-list foo permit ^2$
`
	got := parse(text)
	// non-consecutive rows with the same key are separate instances
	expectIDs(t, got, "bgp_as_path[foo]", "pim_interface[eth0]", "bgp_as_path[foo]")
}

func TestClassifier(t *testing.T) {
	c := NewClassifier(reg)

	tests := []struct {
		line string
		want LineClass
	}{
		{"", LineSkip},
		{"!", LineSkip},
		{" !", LineSkip},
		{"interface eth0", LineBlockStart},
		{"router bgp 65000  ", LineBlockStart},
		{"ip route 10.0.0.0/8 10.0.0.1", LineRow},
		{"hostname edge1", LineTopLevel},
		{" ip igmp", LineBody},
		{"\tip igmp", LineBody},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := c.Classify(tt.line).Class; got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParser_IsReusable(t *testing.T) {
	p := New(reg)
	first := p.Parse("interface eth0\n ip igmp\n")
	second := p.Parse("interface eth0\n")

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("parsed %v then %v", ids(first), ids(second))
	}
	expectProperty(t, second[0], "igmp", schema.Bool(false))
	if p.Registry() != reg {
		t.Error("Registry() returned a different registry")
	}
}
