package schema

import (
	"regexp"
	"strings"
)

// Resource kinds managed through vtysh.
const (
	KindBGPRouter        Kind = "bgp_router"
	KindBGPAddressFamily Kind = "bgp_address_family"
	KindBGPASPath        Kind = "bgp_as_path"
	KindPIMInterface     Kind = "pim_interface"
	KindStaticRoute      Kind = "static_route"
)

// Address family keys.
const (
	AFIPv4Unicast   = "ipv4_unicast"
	AFIPv4Multicast = "ipv4_multicast"
	AFIPv6Unicast   = "ipv6_unicast"
)

var (
	ipv4Domain   = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){3}$`)
	prefixDomain = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){3}(?:/\d{1,2}| \d{1,3}(?:\.\d{1,3}){3})$`)
	wordDomain   = regexp.MustCompile(`^\S+$`)
)

// Quagga returns the registry of every kind managed through vtysh.
// Callers build it once and pass it to the parser and the engine.
func Quagga() *Registry {
	return MustRegistry(
		bgpASPathSchema(),
		bgpRouterSchema(),
		bgpAddressFamilySchema(),
		pimInterfaceSchema(),
		staticRouteSchema(),
	)
}

// stem renders a fixed command that carries no argument.
func stem(cmd string) RenderFunc {
	return func(RenderParams) string { return cmd }
}

// withArg renders cmd followed by the value when one is present.
func withArg(cmd string) RenderFunc {
	return func(p RenderParams) string {
		if p.Value.IsAbsent() {
			return cmd
		}
		if p.Value.Type() == TypeSymbol {
			s, _ := p.Value.AsString()
			return cmd + " " + strings.ReplaceAll(s, "_", "-")
		}
		if s, ok := p.Value.AsString(); ok {
			return cmd + " " + s
		}
		return cmd + " " + p.Value.String()
	}
}

func bgpRouterSchema() *ResourceSchema {
	return &ResourceSchema{
		Kind:         KindBGPRouter,
		Layout:       LayoutBlock,
		Start:        regexp.MustCompile(`^router bgp (\d+)$`),
		ValidKey:     regexp.MustCompile(`^\d+$`),
		EnterCreates: true,
		Enter:        func(in *Instance) []string { return []string{"router bgp " + in.Key} },
		Destroy:      func(in *Instance) []string { return []string{"no router bgp " + in.Key} },
		DependsOn:    []Kind{KindBGPASPath},
		Properties: []PropertyDescriptor{
			{
				Name:    "import_check",
				Type:    TypeBoolean,
				Default: Bool(false),
				Match:   regexp.MustCompile(`^ bgp network import-check$`),
				Render:  stem("bgp network import-check"),
			},
			{
				Name:    "default_ipv4_unicast",
				Type:    TypeBoolean,
				Default: Bool(true),
				Match:   regexp.MustCompile(`^ no bgp default ipv4-unicast$`),
				Render:  stem("bgp default ipv4-unicast"),
			},
			{
				Name:    "default_local_preference",
				Type:    TypeInteger,
				Default: Int(100),
				Match:   regexp.MustCompile(`^ bgp default local-preference (\d+)$`),
				Render:  withArg("bgp default local-preference"),
			},
			{
				Name:    "redistribute",
				Type:    TypeList,
				Default: List(),
				Match:   regexp.MustCompile(`^ redistribute (.+)$`),
				Render:  withArg("redistribute"),
			},
			{
				Name:      "router_id",
				Type:      TypeString,
				Match:     regexp.MustCompile(`^ bgp router-id (\S+)$`),
				Render:    withArg("bgp router-id"),
				Exclusive: true,
				Domain:    ipv4Domain,
			},
			{Name: "keepalive", Type: TypeInteger, Default: Int(3), Max: 65535},
			{Name: "holdtime", Type: TypeInteger, Default: Int(9), Max: 65535},
		},
		Composites: []CompositeDescriptor{
			{
				Name:    "timers",
				Members: []string{"keepalive", "holdtime"},
				Match:   regexp.MustCompile(`^ timers bgp (\d+) (\d+)$`),
				Render: func(p CompositeParams) string {
					return "timers bgp " + p.Values["keepalive"].String() + " " + p.Values["holdtime"].String()
				},
				Reset: "timers bgp",
			},
		},
	}
}

// addressFamilyHeader maps a family key to its vtysh sub-mode argument.
func addressFamilyHeader(key string) string {
	switch key {
	case AFIPv6Unicast:
		return "ipv6"
	case AFIPv4Multicast:
		return "ipv4 multicast"
	default:
		return "ipv4 unicast"
	}
}

func bgpAddressFamilySchema() *ResourceSchema {
	return &ResourceSchema{
		Kind:        KindBGPAddressFamily,
		Layout:      LayoutNested,
		Parent:      KindBGPRouter,
		Start:       regexp.MustCompile(`^ address-family (ipv4|ipv6)(?: (unicast|multicast))?$`),
		End:         regexp.MustCompile(`^ exit-address-family$`),
		ImplicitKey: AFIPv4Unicast,
		KeyOf: func(m []string) string {
			safi := m[2]
			if safi == "" {
				safi = "unicast"
			}
			return m[1] + "_" + safi
		},
		ValidKey: regexp.MustCompile(`^(ipv4_unicast|ipv4_multicast|ipv6_unicast)$`),
		Enter: func(in *Instance) []string {
			cmds := []string{"router bgp " + in.Parent}
			if in.Key != AFIPv4Unicast {
				cmds = append(cmds, "address-family "+addressFamilyHeader(in.Key))
			}
			return cmds
		},
		Leave: func(in *Instance) []string {
			if in.Key != AFIPv4Unicast {
				return []string{"exit-address-family"}
			}
			return nil
		},
		DependsOn: []Kind{KindBGPRouter},
		Properties: []PropertyDescriptor{
			{
				Name:    "aggregate_address",
				Type:    TypeList,
				Default: List(),
				Match:   regexp.MustCompile(`^ aggregate-address (.+)$`),
				Render:  withArg("aggregate-address"),
			},
			{
				Name:    "maximum_ebgp_paths",
				Type:    TypeInteger,
				Default: Int(1),
				Match:   regexp.MustCompile(`^ maximum-paths (\d+)$`),
				Render:  withArg("maximum-paths"),
				Min:     1,
				Max:     255,
			},
			{
				Name:    "maximum_ibgp_paths",
				Type:    TypeInteger,
				Default: Int(1),
				Match:   regexp.MustCompile(`^ maximum-paths ibgp (\d+)$`),
				Render:  withArg("maximum-paths ibgp"),
				Min:     1,
				Max:     255,
			},
			{
				Name:    "networks",
				Type:    TypeList,
				Default: List(),
				Match:   regexp.MustCompile(`^ network (\S+)$`),
				Render:  withArg("network"),
				Domain:  wordDomain,
			},
		},
	}
}

func bgpASPathSchema() *ResourceSchema {
	return &ResourceSchema{
		Kind:      KindBGPASPath,
		Layout:    LayoutRow,
		Start:     regexp.MustCompile(`^ip as-path access-list (\S+) (permit|deny) (.+)$`),
		ValidKey:  wordDomain,
		MergeRows: true,
		DecodeRow: func(m []string) (string, map[string]Value, bool) {
			var rules []string
			for _, re := range strings.Fields(m[3]) {
				rules = append(rules, m[2]+" "+re)
			}
			return m[1], map[string]Value{"rules": List(rules...)}, true
		},
		Destroy: func(in *Instance) []string {
			return []string{"no ip as-path access-list " + in.Key}
		},
		Properties: []PropertyDescriptor{
			{
				Name:    "rules",
				Type:    TypeList,
				Default: List(),
				Render: func(p RenderParams) string {
					rule, _ := p.Value.AsString()
					return "ip as-path access-list " + p.Key + " " + rule
				},
				Domain: regexp.MustCompile(`^(permit|deny) \S+$`),
			},
		},
	}
}

func pimInterfaceSchema() *ResourceSchema {
	return &ResourceSchema{
		Kind:     KindPIMInterface,
		Layout:   LayoutBlock,
		Start:    regexp.MustCompile(`^interface (\S+)$`),
		ValidKey: wordDomain,
		Enter:    func(in *Instance) []string { return []string{"interface " + in.Key} },
		Properties: []PropertyDescriptor{
			{
				Name:    "multicast",
				Type:    TypeBoolean,
				Default: Bool(false),
				Match:   regexp.MustCompile(`^ multicast$`),
				Render:  stem("multicast"),
			},
			{
				Name:    "igmp",
				Type:    TypeBoolean,
				Default: Bool(false),
				Match:   regexp.MustCompile(`^ ip igmp$`),
				Render:  stem("ip igmp"),
			},
			{
				Name:    "pim_ssm",
				Type:    TypeBoolean,
				Default: Bool(false),
				Match:   regexp.MustCompile(`^ ip pim ssm$`),
				Render:  stem("ip pim ssm"),
			},
			{
				Name:    "igmp_query_interval",
				Type:    TypeInteger,
				Default: Int(125),
				Match:   regexp.MustCompile(`^ ip igmp query-interval (\d+)$`),
				Render:  withArg("ip igmp query-interval"),
				Min:     1,
				Max:     1800,
			},
			{
				Name:    "igmp_query_max_response_time_dsec",
				Type:    TypeInteger,
				Default: Int(100),
				Match:   regexp.MustCompile(`^ ip igmp query-max-response-time-dsec (\d+)$`),
				Render:  withArg("ip igmp query-max-response-time-dsec"),
				Min:     10,
				Max:     250,
			},
		},
	}
}

func staticRouteSchema() *ResourceSchema {
	return &ResourceSchema{
		Kind:         KindStaticRoute,
		Layout:       LayoutRow,
		Start:        regexp.MustCompile(`^ip route (\d{1,3}(?:\.\d{1,3}){3}(?:/\d{1,2}| \d{1,3}(?:\.\d{1,3}){3})) (.+)$`),
		ValidKey:     prefixDomain,
		DecodeRow:    decodeRoute,
		RenderRow:    renderRoute,
		Alternatives: []string{"gateway", "interface", "option"},
		Destroy: func(in *Instance) []string {
			row, err := renderRoute(in)
			if err != nil {
				return nil
			}
			return []string{"no " + row}
		},
		Properties: staticRouteProperties,
	}
}
