package schema

import (
	"fmt"
	"regexp"
	"strconv"
)

// RenderParams carries everything a property template may reference.
// Value is absent when the template renders a bare command stem,
// e.g. the argument-less form used after "no".
type RenderParams struct {
	Key   string
	Value Value
}

// RenderFunc renders one configuration command without the "no" prefix.
type RenderFunc func(RenderParams) string

// PropertyDescriptor describes one managed property of a resource kind.
type PropertyDescriptor struct {
	// Name is the property identifier used in desired state files.
	Name string

	// Type is the declared value type.
	Type ValueType

	// Default is the value seeded into freshly parsed instances.
	// An absent default means the property is unset unless configured.
	Default Value

	// Match recognizes the property inside a block. A pattern without a
	// capture group is presence-only and toggles a boolean away from its
	// default. Nil for properties only reachable through a composite.
	Match *regexp.Regexp

	// Render produces the positive command.
	Render RenderFunc

	// Exclusive marks a scalar where only one value may be active at a time.
	// Changing it negates the old directive before asserting the new one.
	Exclusive bool

	// Domain restricts string, symbol and list element values.
	Domain *regexp.Regexp

	// Min and Max bound integer values when Max is non-zero.
	Min, Max int
}

// CompositeParams carries the resolved member values of a composite.
type CompositeParams struct {
	Key    string
	Values map[string]Value
}

// CompositeDescriptor is a single configuration line that carries several
// scalar properties, such as "timers bgp <keepalive> <holdtime>".
type CompositeDescriptor struct {
	Name string

	// Members are property names, in capture group order.
	Members []string

	Match  *regexp.Regexp
	Render func(CompositeParams) string

	// Reset is the negated stem emitted when every member returns to its
	// default on update.
	Reset string
}

// ValueError reports a value that falls outside its property's domain.
type ValueError struct {
	Kind     Kind
	Property string
	Expected ValueType
	Got      Value
	Reason   string
}

func (e *ValueError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s.%s: invalid value %s: %s", e.Kind, e.Property, e.Got, e.Reason)
	}
	return fmt.Sprintf("%s.%s: expected %s, got %s %s", e.Kind, e.Property, e.Expected, e.Got.Type(), e.Got)
}

// Check verifies that v belongs to the descriptor's domain.
// Absent values are always accepted.
func (d *PropertyDescriptor) Check(kind Kind, v Value) error {
	if v.IsAbsent() {
		return nil
	}
	fail := func(reason string) error {
		return &ValueError{Kind: kind, Property: d.Name, Expected: d.Type, Got: v, Reason: reason}
	}
	if v.Type() != d.Type {
		return fail("")
	}
	switch d.Type {
	case TypeInteger:
		n, _ := v.AsInt()
		if d.Max != 0 && (n < d.Min || n > d.Max) {
			return fail(fmt.Sprintf("must be between %d and %d", d.Min, d.Max))
		}
		if d.Max == 0 && n < d.Min {
			return fail("must be at least " + strconv.Itoa(d.Min))
		}
	case TypeString, TypeSymbol:
		s, _ := v.AsString()
		if d.Domain != nil && !d.Domain.MatchString(s) {
			return fail("does not match " + d.Domain.String())
		}
	case TypeList:
		if d.Domain == nil {
			return nil
		}
		for _, item := range v.Items() {
			if !d.Domain.MatchString(item) {
				return fail(fmt.Sprintf("element %q does not match %s", item, d.Domain))
			}
		}
	}
	return nil
}

// presenceOnly reports whether the match pattern carries no capture group.
func (d *PropertyDescriptor) presenceOnly() bool {
	return d.Match != nil && d.Match.NumSubexp() == 0
}

// Decode converts a match of d.Match into a value. The current value is
// needed because list properties append to what is already accumulated.
func (d *PropertyDescriptor) Decode(current Value, match []string) (Value, bool) {
	if d.presenceOnly() {
		if d.Type != TypeBoolean {
			return Value{}, false
		}
		def, _ := d.Default.AsBool()
		return Bool(!def), true
	}
	raw := match[1]
	switch d.Type {
	case TypeBoolean:
		return Bool(true), true
	case TypeInteger:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Value{}, false
		}
		return Int(n), true
	case TypeString:
		return String(raw), true
	case TypeSymbol:
		return Symbol(raw), true
	case TypeList:
		return current.Append(raw), true
	}
	return Value{}, false
}
