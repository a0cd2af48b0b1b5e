package engine

import (
	"strings"
	"testing"

	"github.com/openfroyo/vtyctl/pkg/parser"
	"github.com/openfroyo/vtyctl/pkg/schema"
)

const runningConfig = `!
interface eth0
 ip igmp
 ip igmp query-interval 30
!
interface eth1
!
router bgp 65000
 bgp router-id 10.0.0.1
 no bgp default ipv4-unicast
 timers bgp 10 30
 network 10.1.0.0/16
 address-family ipv6
 network 2001:db8::/32
 exit-address-family
!
ip as-path access-list foo permit ^100$
ip route 10.0.0.0/8 10.0.0.1
ip route 192.168.0.0/16 blackhole
!
line vty
!
`

func newPlanner(t *testing.T) *Planner {
	t.Helper()
	p, err := NewPlanner(quagga)
	if err != nil {
		t.Fatalf("NewPlanner() error = %v", err)
	}
	return p
}

func observedState() []*schema.Instance {
	return parser.New(quagga).Parse(runningConfig)
}

func mustPlan(t *testing.T, observed, desired []*schema.Instance, opts PlanOptions) *Plan {
	t.Helper()
	plan, err := newPlanner(t).Plan("edge1", observed, desired, opts)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	return plan
}

func TestPlanner_ObservedStateIsConverged(t *testing.T) {
	observed := observedState()

	// Desired state equal to everything observed produces no commands.
	var desired []*schema.Instance
	for _, in := range observed {
		desired = append(desired, in.Clone())
	}

	plan := mustPlan(t, observed, desired, PlanOptions{})
	if plan.HasChanges() {
		t.Errorf("unexpected changes: %+v", plan.Pending())
	}
	if plan.Summary.Noop != len(observed) {
		t.Errorf("Noop = %d, want %d", plan.Summary.Noop, len(observed))
	}
	if Drift(plan) != DriftStatusInSync {
		t.Errorf("Drift() = %s", Drift(plan))
	}
	if plan.ID == "" {
		t.Error("plan has no ID")
	}
}

func TestPlanner_MixedPlan(t *testing.T) {
	desired := []*schema.Instance{
		want(schema.KindPIMInterface, "eth0", map[string]schema.Value{"igmp_query_interval": schema.Int(60)}),
		want(schema.KindPIMInterface, "eth2", map[string]schema.Value{"igmp": schema.Bool(true)}),
		gone(schema.KindStaticRoute, "192.168.0.0/16"),
		want(schema.KindBGPASPath, "foo", map[string]schema.Value{"rules": schema.List("permit ^100$", "deny ^200$")}),
	}

	plan := mustPlan(t, observedState(), desired, PlanOptions{})

	byID := make(map[string]ResourcePlan)
	for _, rp := range plan.Resources {
		byID[rp.ID] = rp
	}

	eth0 := byID["pim_interface[eth0]"]
	if eth0.Operation != OperationUpdate {
		t.Errorf("eth0 operation = %s", eth0.Operation)
	}
	expectCommands(t, eth0.Commands, "interface eth0", "ip igmp query-interval 60")
	if len(eth0.Changes) != 1 || eth0.Changes[0].Before != 30 || eth0.Changes[0].After != 60 {
		t.Errorf("eth0 changes = %+v", eth0.Changes)
	}

	if op := byID["pim_interface[eth2]"].Operation; op != OperationCreate {
		t.Errorf("eth2 operation = %s", op)
	}
	expectCommands(t, byID["static_route[192.168.0.0/16]"].Commands, "no ip route 192.168.0.0/16 blackhole")
	expectCommands(t, byID["bgp_as_path[foo]"].Commands, "ip as-path access-list foo deny ^200$")

	wantSummary := PlanSummary{Create: 1, Update: 2, Delete: 1, Commands: 6}
	if plan.Summary != wantSummary {
		t.Errorf("Summary = %+v, want %+v", plan.Summary, wantSummary)
	}
	if Drift(plan) != DriftStatusDrifted {
		t.Errorf("Drift() = %s", Drift(plan))
	}

	// the delete runs last
	if last := plan.Resources[len(plan.Resources)-1]; last.Operation != OperationDelete {
		t.Errorf("last operation = %s, want delete", last.Operation)
	}
	for i, rp := range plan.Resources {
		if rp.Order != i {
			t.Errorf("%s: Order = %d, want %d", rp.ID, rp.Order, i)
		}
	}
}

func TestPlanner_UnmanagedObservedLeftAlone(t *testing.T) {
	plan := mustPlan(t, observedState(), nil, PlanOptions{})
	if len(plan.Resources) != 0 {
		t.Errorf("expected an empty plan, got %d resources", len(plan.Resources))
	}
}

func TestPlanner_Purge(t *testing.T) {
	desired := []*schema.Instance{
		want(schema.KindStaticRoute, "10.0.0.0/8", map[string]schema.Value{"gateway": schema.String("10.0.0.1")}),
	}

	plan := mustPlan(t, observedState(), desired, PlanOptions{
		Purge: []schema.Kind{schema.KindStaticRoute},
	})

	if len(plan.Resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(plan.Resources))
	}
	if op := plan.Resources[0].Operation; op != OperationNoop {
		t.Errorf("managed route operation = %s", op)
	}
	if op := plan.Resources[1].Operation; op != OperationDelete {
		t.Errorf("unmanaged route operation = %s", op)
	}
	expectCommands(t, plan.Resources[1].Commands, "no ip route 192.168.0.0/16 blackhole")
}

func TestPlanner_PurgeKeepsImplicitAddressFamily(t *testing.T) {
	plan := mustPlan(t, observedState(), nil, PlanOptions{
		Purge: []schema.Kind{schema.KindBGPAddressFamily},
	})

	if len(plan.Resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(plan.Resources))
	}
	rp := plan.Resources[0]
	if rp.ID != "bgp_address_family[65000/ipv6_unicast]" || rp.Operation != OperationDelete {
		t.Errorf("got %s %s", rp.Operation, rp.ID)
	}
	expectCommands(t, rp.Commands,
		"router bgp 65000",
		"address-family ipv6",
		"no network 2001:db8::/32",
		"exit-address-family",
	)
}

func TestPlanner_SamePrefixRoutes(t *testing.T) {
	observed := parser.New(quagga).Parse("ip route 0.0.0.0/0 10.0.0.1\nip route 0.0.0.0/0 10.0.0.2\n")
	route := func(gateway string) []*schema.Instance {
		return []*schema.Instance{
			want(schema.KindStaticRoute, "0.0.0.0/0", map[string]schema.Value{"gateway": schema.String(gateway)}),
		}
	}

	tests := []struct {
		name    string
		desired []*schema.Instance
		purge   []schema.Kind
		want    [][]string
	}{
		{"first next hop", route("10.0.0.1"), nil, [][]string{nil}},
		{"second next hop", route("10.0.0.2"), nil, [][]string{nil}},
		{
			"new next hop replaces the first",
			route("10.0.0.3"),
			nil,
			[][]string{{"no ip route 0.0.0.0/0 10.0.0.1", "ip route 0.0.0.0/0 10.0.0.3"}},
		},
		{
			"purge drops the other next hop",
			route("10.0.0.1"),
			[]schema.Kind{schema.KindStaticRoute},
			[][]string{nil, {"no ip route 0.0.0.0/0 10.0.0.2"}},
		},
		{
			"delete removes every next hop",
			[]*schema.Instance{gone(schema.KindStaticRoute, "0.0.0.0/0")},
			nil,
			[][]string{{"no ip route 0.0.0.0/0 10.0.0.1"}, {"no ip route 0.0.0.0/0 10.0.0.2"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := mustPlan(t, observed, tt.desired, PlanOptions{Purge: tt.purge})
			if len(plan.Resources) != len(tt.want) {
				t.Fatalf("expected %d resources, got %d", len(tt.want), len(plan.Resources))
			}
			for i, rp := range plan.Resources {
				expectCommands(t, rp.Commands, tt.want[i]...)
			}
		})
	}
}

func TestPlanner_RouteTargetChange(t *testing.T) {
	tests := []struct {
		name     string
		observed string
		props    map[string]schema.Value
		want     []string
	}{
		{
			"interface over gateway",
			"ip route 10.0.0.0/8 10.0.0.1\n",
			map[string]schema.Value{"interface": schema.String("eth1")},
			[]string{"no ip route 10.0.0.0/8 10.0.0.1", "ip route 10.0.0.0/8 eth1"},
		},
		{
			"option over gateway",
			"ip route 10.0.0.0/8 10.0.0.1\n",
			map[string]schema.Value{"option": schema.Symbol("blackhole")},
			[]string{"no ip route 10.0.0.0/8 10.0.0.1", "ip route 10.0.0.0/8 blackhole"},
		},
		{
			"gateway drops an unmanaged option",
			"ip route 10.0.0.0/8 10.0.0.1 reject 20\n",
			map[string]schema.Value{"gateway": schema.String("10.0.0.1")},
			[]string{"no ip route 10.0.0.0/8 10.0.0.1 reject 20", "ip route 10.0.0.0/8 10.0.0.1 20"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observed := parser.New(quagga).Parse(tt.observed)
			plan := mustPlan(t, observed, []*schema.Instance{
				want(schema.KindStaticRoute, "10.0.0.0/8", tt.props),
			}, PlanOptions{})

			if len(plan.Resources) != 1 {
				t.Fatalf("expected 1 resource, got %d", len(plan.Resources))
			}
			if op := plan.Resources[0].Operation; op != OperationUpdate {
				t.Errorf("Operation = %s, want update", op)
			}
			expectCommands(t, plan.Resources[0].Commands, tt.want...)
			if Drift(plan) != DriftStatusDrifted {
				t.Errorf("Drift() = %s", Drift(plan))
			}
		})
	}
}

func TestPlanner_FillsParentFromObservedRouter(t *testing.T) {
	af := want(schema.KindBGPAddressFamily, schema.AFIPv4Unicast, map[string]schema.Value{
		"networks": schema.List("10.1.0.0/16", "10.2.0.0/16"),
	})

	plan := mustPlan(t, observedState(), []*schema.Instance{af}, PlanOptions{})

	if len(plan.Resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(plan.Resources))
	}
	rp := plan.Resources[0]
	if rp.Parent != "65000" || rp.Operation != OperationUpdate {
		t.Errorf("got %s with parent %q", rp.Operation, rp.Parent)
	}
	expectCommands(t, rp.Commands, "router bgp 65000", "network 10.2.0.0/16")
}

func TestPlanner_NewRouterOrdersBeforeItsFamilies(t *testing.T) {
	af := want(schema.KindBGPAddressFamily, schema.AFIPv4Unicast, map[string]schema.Value{
		"maximum_ibgp_paths": schema.Int(2),
	})
	router := want(schema.KindBGPRouter, "64512", nil)
	asPath := want(schema.KindBGPASPath, "bar", map[string]schema.Value{"rules": schema.List("deny .*")})

	plan, err := newPlanner(t).Plan("edge2", nil, []*schema.Instance{af, router, asPath}, PlanOptions{})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	wantKinds := []schema.Kind{schema.KindBGPASPath, schema.KindBGPRouter, schema.KindBGPAddressFamily}
	if len(plan.Resources) != len(wantKinds) {
		t.Fatalf("expected %d resources, got %d", len(wantKinds), len(plan.Resources))
	}
	for i, rp := range plan.Resources {
		if rp.Kind != wantKinds[i] {
			t.Errorf("resource %d is %s, want %s", i, rp.Kind, wantKinds[i])
		}
	}
	if plan.Resources[2].Parent != "64512" {
		t.Errorf("Parent = %q", plan.Resources[2].Parent)
	}
}

func TestPlanner_Errors(t *testing.T) {
	twoRouters := []*schema.Instance{
		want(schema.KindBGPRouter, "1", nil),
		want(schema.KindBGPRouter, "2", nil),
		want(schema.KindBGPAddressFamily, schema.AFIPv4Unicast, nil),
	}

	tests := []struct {
		name     string
		observed []*schema.Instance
		desired  []*schema.Instance
		code     string
	}{
		{"unknown kind", nil, []*schema.Instance{want("ospf_router", "1", nil)}, ErrCodeUnknownKind},
		{"invalid key", nil, []*schema.Instance{want(schema.KindBGPRouter, "not-a-number", nil)}, ErrCodeValidation},
		{
			"duplicate",
			nil,
			[]*schema.Instance{want(schema.KindPIMInterface, "eth0", nil), want(schema.KindPIMInterface, "eth0", nil)},
			ErrCodeDuplicateResource,
		},
		{"no parent", nil, []*schema.Instance{want(schema.KindBGPAddressFamily, schema.AFIPv4Unicast, nil)}, ErrCodeMissingParent},
		{"ambiguous parent", nil, twoRouters, ErrCodeMissingParent},
		{
			"invalid value",
			nil,
			[]*schema.Instance{want(schema.KindPIMInterface, "eth0", map[string]schema.Value{"igmp_query_interval": schema.Int(0)})},
			ErrCodeInvalidPropertyValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newPlanner(t).Plan("edge1", tt.observed, tt.desired, PlanOptions{})
			expectCode(t, err, tt.code)
		})
	}
}

func TestPlanner_DuplicateIsConflict(t *testing.T) {
	_, err := newPlanner(t).Plan("edge1", nil, []*schema.Instance{
		want(schema.KindPIMInterface, "eth0", nil),
		want(schema.KindPIMInterface, "eth0", nil),
	}, PlanOptions{})
	if !IsConflict(err) {
		t.Errorf("expected a conflict, got %v", err)
	}
}

func TestPlanner_ApplyingPlanConverges(t *testing.T) {
	desired := []*schema.Instance{
		want(schema.KindBGPASPath, "foo", map[string]schema.Value{"rules": schema.List("permit ^100$", "deny ^200$")}),
		want(schema.KindPIMInterface, "eth1", map[string]schema.Value{"pim_ssm": schema.Bool(true)}),
	}
	after := strings.Replace(runningConfig,
		"ip as-path access-list foo permit ^100$\n",
		"ip as-path access-list foo permit ^100$\nip as-path access-list foo deny ^200$\n", 1)
	after = strings.Replace(after, "interface eth1\n", "interface eth1\n ip pim ssm\n", 1)

	plan := mustPlan(t, parser.New(quagga).Parse(after), desired, PlanOptions{})
	if plan.HasChanges() {
		t.Errorf("unexpected changes: %+v", plan.Pending())
	}
}

// layoutRunning lays out the commands of a plan the way the daemon shows
// them: one block per context command with its body indented one space,
// and rows at column 0.
func layoutRunning(plan *Plan) string {
	var (
		heads  []string
		bodies = make(map[string][]string)
		rows   []string
	)
	for _, rp := range plan.Resources {
		if len(rp.Commands) == 0 {
			continue
		}
		if lookup(rp.Kind).Layout == schema.LayoutRow {
			rows = append(rows, rp.Commands...)
			continue
		}
		head := rp.Commands[0]
		if _, ok := bodies[head]; !ok {
			heads = append(heads, head)
			bodies[head] = nil
		}
		for _, cmd := range rp.Commands[1:] {
			bodies[head] = append(bodies[head], " "+cmd)
		}
	}

	var b strings.Builder
	for _, head := range heads {
		b.WriteString("!\n" + head + "\n")
		for _, line := range bodies[head] {
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("!\n")
	for _, row := range rows {
		b.WriteString(row + "\n")
	}
	b.WriteString("!\nline vty\n!\n")
	return b.String()
}

// TestPlanner_CreateRoundTrip renders each desired set as a creation, lays
// the commands out as running configuration, parses it back and expects
// nothing left to do.
func TestPlanner_CreateRoundTrip(t *testing.T) {
	route := func(key string, props map[string]schema.Value) []*schema.Instance {
		return []*schema.Instance{want(schema.KindStaticRoute, key, props)}
	}
	family := func(key string, props map[string]schema.Value) []*schema.Instance {
		return []*schema.Instance{
			want(schema.KindBGPRouter, "65000", nil),
			want(schema.KindBGPAddressFamily, key, props),
		}
	}

	tests := []struct {
		name    string
		desired []*schema.Instance
	}{
		{"router with every setting", []*schema.Instance{
			want(schema.KindBGPRouter, "65000", map[string]schema.Value{
				"import_check":             schema.Bool(true),
				"default_ipv4_unicast":     schema.Bool(false),
				"default_local_preference": schema.Int(250),
				"redistribute":             schema.List("connected", "static"),
				"router_id":                schema.String("10.0.0.1"),
				"keepalive":                schema.Int(10),
				"holdtime":                 schema.Int(30),
			}),
		}},
		{"router with one timer", []*schema.Instance{
			want(schema.KindBGPRouter, "65000", map[string]schema.Value{"keepalive": schema.Int(5)}),
		}},
		{"router with defaults only", []*schema.Instance{
			want(schema.KindBGPRouter, "65000", map[string]schema.Value{
				"default_ipv4_unicast": schema.Bool(true),
				"keepalive":            schema.Int(3),
			}),
		}},
		{"implicit ipv4 unicast family", family(schema.AFIPv4Unicast, map[string]schema.Value{
			"aggregate_address":  schema.List("10.0.0.0/8 summary-only"),
			"maximum_ebgp_paths": schema.Int(4),
			"maximum_ibgp_paths": schema.Int(2),
			"networks":           schema.List("10.1.0.0/16", "10.2.0.0/16"),
		})},
		{"ipv6 unicast family", family(schema.AFIPv6Unicast, map[string]schema.Value{
			"maximum_ebgp_paths": schema.Int(2),
			"networks":           schema.List("2001:db8::/32"),
		})},
		{"ipv4 multicast family", family(schema.AFIPv4Multicast, map[string]schema.Value{
			"networks": schema.List("232.0.0.0/8"),
		})},
		{"router with families", []*schema.Instance{
			want(schema.KindBGPRouter, "65000", map[string]schema.Value{"router_id": schema.String("10.0.0.1")}),
			want(schema.KindBGPAddressFamily, schema.AFIPv4Unicast, map[string]schema.Value{"networks": schema.List("10.1.0.0/16")}),
			want(schema.KindBGPAddressFamily, schema.AFIPv6Unicast, map[string]schema.Value{"networks": schema.List("2001:db8::/32")}),
			want(schema.KindBGPAddressFamily, schema.AFIPv4Multicast, map[string]schema.Value{"maximum_ibgp_paths": schema.Int(3)}),
		}},
		{"as-path rules", []*schema.Instance{
			want(schema.KindBGPASPath, "foo", map[string]schema.Value{
				"rules": schema.List("permit ^100$", "deny ^200$", "permit .*"),
			}),
		}},
		{"pim interface with every setting", []*schema.Instance{
			want(schema.KindPIMInterface, "eth0", map[string]schema.Value{
				"multicast":                         schema.Bool(true),
				"igmp":                              schema.Bool(true),
				"pim_ssm":                           schema.Bool(true),
				"igmp_query_interval":               schema.Int(30),
				"igmp_query_max_response_time_dsec": schema.Int(50),
			}),
		}},
		{"pim interfaces", []*schema.Instance{
			want(schema.KindPIMInterface, "eth0", map[string]schema.Value{"pim_ssm": schema.Bool(true)}),
			want(schema.KindPIMInterface, "eth1", map[string]schema.Value{"igmp_query_interval": schema.Int(60)}),
		}},
		{"route via gateway", route("10.0.0.0/8", map[string]schema.Value{"gateway": schema.String("10.0.0.1")})},
		{"route via gateway with distance", route("10.0.0.0/8", map[string]schema.Value{
			"gateway":  schema.String("10.0.0.1"),
			"distance": schema.Int(20),
		})},
		{"route via gateway rejected", route("10.0.0.0/8", map[string]schema.Value{
			"gateway": schema.String("10.0.0.1"),
			"option":  schema.Symbol("reject"),
		})},
		{"route via interface", route("10.0.0.0/8", map[string]schema.Value{"interface": schema.String("eth1")})},
		{"route via interface blackholed", route("10.0.0.0/8", map[string]schema.Value{
			"interface": schema.String("Null0"),
			"option":    schema.Symbol("blackhole"),
			"distance":  schema.Int(250),
		})},
		{"blackhole route", route("192.168.0.0/16", map[string]schema.Value{"option": schema.Symbol("blackhole")})},
		{"route with netmask", route("172.16.0.0 255.240.0.0", map[string]schema.Value{
			"gateway": schema.String("192.0.2.1"),
		})},
		{"mixed kinds", []*schema.Instance{
			want(schema.KindBGPASPath, "bar", map[string]schema.Value{"rules": schema.List("deny .*")}),
			want(schema.KindBGPRouter, "64512", map[string]schema.Value{"import_check": schema.Bool(true)}),
			want(schema.KindPIMInterface, "eth2", map[string]schema.Value{"igmp": schema.Bool(true)}),
			want(schema.KindStaticRoute, "0.0.0.0/0", map[string]schema.Value{"gateway": schema.String("192.0.2.1")}),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := mustPlan(t, nil, tt.desired, PlanOptions{})
			text := layoutRunning(created)

			observed := parser.New(quagga).Parse(text)
			replan := mustPlan(t, observed, tt.desired, PlanOptions{})
			if replan.HasChanges() {
				t.Fatalf("running configuration:\n%s\nstill pending: %+v", text, replan.Pending())
			}
			for _, rp := range replan.Resources {
				if rp.Operation != OperationNoop {
					t.Errorf("%s: Operation = %s, want noop", rp.ID, rp.Operation)
				}
				for _, delta := range rp.Diff.Deltas {
					if !delta.IsUnchanged() {
						t.Errorf("%s.%s: %s", rp.ID, delta.Property, delta.Kind)
					}
				}
			}
		})
	}
}
