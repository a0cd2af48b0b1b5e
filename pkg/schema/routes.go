package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// routeAlternative decodes the part of a static route row after the prefix.
// Fields name the property each capture group feeds.
type routeAlternative struct {
	pattern *regexp.Regexp
	fields  []string
}

// Tried in order, most specific first. The first match wins.
var routeAlternatives = []routeAlternative{
	{
		pattern: regexp.MustCompile(`^(\d{1,3}(?:\.\d{1,3}){3}) (reject|blackhole)(?: (\d+))?$`),
		fields:  []string{"gateway", "option", "distance"},
	},
	{
		pattern: regexp.MustCompile(`^(\S+) (reject|blackhole)(?: (\d+))?$`),
		fields:  []string{"interface", "option", "distance"},
	},
	{
		pattern: regexp.MustCompile(`^(reject|blackhole)(?: (\d+))?$`),
		fields:  []string{"option", "distance"},
	},
	{
		pattern: regexp.MustCompile(`^(\d{1,3}(?:\.\d{1,3}){3})(?: (\d+))?$`),
		fields:  []string{"gateway", "distance"},
	},
	{
		pattern: regexp.MustCompile(`^(\S+)(?: (\d+))?$`),
		fields:  []string{"interface", "distance"},
	},
}

// decodeRoute decomposes "ip route PREFIX REST". Unknown forms, such as
// routes carrying a tag or a vrf, are not modelled and are skipped.
func decodeRoute(m []string) (string, map[string]Value, bool) {
	prefix, rest := m[1], strings.TrimSpace(m[2])
	for _, alt := range routeAlternatives {
		sub := alt.pattern.FindStringSubmatch(rest)
		if sub == nil {
			continue
		}
		props := map[string]Value{
			"gateway":   Absent(),
			"interface": Absent(),
			"option":    Absent(),
			"distance":  Absent(),
		}
		for i, field := range alt.fields {
			raw := sub[i+1]
			if raw == "" {
				continue
			}
			switch field {
			case "distance":
				n, err := strconv.Atoi(raw)
				if err != nil {
					return "", nil, false
				}
				props[field] = Int(n)
			case "option":
				props[field] = Symbol(raw)
			default:
				props[field] = String(raw)
			}
		}
		return prefix, props, true
	}
	return "", nil, false
}

// RouteParams is the explicit input of the static route template.
type RouteParams struct {
	Prefix    string
	Gateway   string
	Interface string
	Option    string
	Distance  int
}

// Render builds "ip route PREFIX TARGET[ OPTION][ DISTANCE]".
// The gateway wins over the interface when both are set.
func (p RouteParams) Render() string {
	var b strings.Builder
	b.WriteString("ip route ")
	b.WriteString(p.Prefix)
	switch {
	case p.Gateway != "":
		b.WriteString(" " + p.Gateway)
	case p.Interface != "":
		b.WriteString(" " + p.Interface)
	}
	if p.Option != "" {
		b.WriteString(" " + p.Option)
	}
	if p.Distance > 0 {
		b.WriteString(" " + strconv.Itoa(p.Distance))
	}
	return b.String()
}

// staticRouteProperties is shared by the schema and the row renderer.
var staticRouteProperties = []PropertyDescriptor{
	{Name: "gateway", Type: TypeString, Domain: ipv4Domain},
	{Name: "interface", Type: TypeString, Domain: wordDomain},
	{Name: "option", Type: TypeSymbol, Domain: regexp.MustCompile(`^(reject|blackhole)$`)},
	{Name: "distance", Type: TypeInteger, Min: 1, Max: 255},
}

// renderRoute checks every value against its descriptor and renders the row.
func renderRoute(in *Instance) (string, error) {
	p := RouteParams{Prefix: in.Key}
	for i := range staticRouteProperties {
		d := &staticRouteProperties[i]
		v := in.Properties[d.Name]
		if err := d.Check(KindStaticRoute, v); err != nil {
			return "", err
		}
		if v.IsAbsent() {
			continue
		}
		switch d.Name {
		case "gateway":
			p.Gateway, _ = v.AsString()
		case "interface":
			p.Interface, _ = v.AsString()
		case "option":
			p.Option, _ = v.AsString()
		case "distance":
			p.Distance, _ = v.AsInt()
		}
	}
	if p.Gateway == "" && p.Interface == "" && p.Option == "" {
		return "", &ValueError{
			Kind:     KindStaticRoute,
			Property: "gateway",
			Expected: TypeString,
			Reason:   fmt.Sprintf("route %s needs a gateway, an interface or an option", p.Prefix),
		}
	}
	return p.Render(), nil
}
