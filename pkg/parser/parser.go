package parser

import (
	"bufio"
	"strings"

	"github.com/openfroyo/vtyctl/pkg/schema"
)

type state int

const (
	stateOutside state = iota
	stateInBlock
	stateInSubBlock
)

func (s state) String() string {
	switch s {
	case stateOutside:
		return "outside"
	case stateInBlock:
		return "in-block"
	case stateInSubBlock:
		return "in-sub-block"
	}
	return "unknown"
}

// Parser turns running-config text into observed resource instances.
// It is stateless between calls and safe for concurrent use.
type Parser struct {
	reg        *schema.Registry
	classifier *Classifier
}

// New creates a parser for the kinds in reg.
func New(reg *schema.Registry) *Parser {
	return &Parser{reg: reg, classifier: NewClassifier(reg)}
}

// Registry returns the registry the parser was built with.
func (p *Parser) Registry() *schema.Registry {
	return p.reg
}

// Parse scans text once and returns every recognized instance in the order
// its first line appeared. Unrecognized lines are ignored; Parse never fails.
func (p *Parser) Parse(text string) []*schema.Instance {
	sc := &scan{p: p}
	lines := bufio.NewScanner(strings.NewReader(text))
	lines.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for lines.Scan() {
		sc.feed(lines.Text())
	}
	sc.closeBlock()
	return sc.out
}

// scan holds the machine state of one Parse call.
type scan struct {
	p     *Parser
	state state
	out   []*schema.Instance

	block       *schema.Instance
	blockSchema *schema.ResourceSchema

	// children of the open block, by kind and key
	children map[string]*schema.Instance
	implicit []childInstance

	sub       *schema.Instance
	subSchema *schema.ResourceSchema

	lastRow *schema.Instance
}

type childInstance struct {
	inst   *schema.Instance
	schema *schema.ResourceSchema
}

func (sc *scan) feed(line string) {
	c := sc.p.classifier.Classify(line)
	if c.Class == LineSkip {
		return
	}
	switch sc.state {
	case stateOutside:
		sc.outside(line, c)
	case stateInBlock:
		sc.inBlock(line, c)
	case stateInSubBlock:
		sc.inSubBlock(line, c)
	}
}

func (sc *scan) outside(line string, c Classification) {
	switch c.Class {
	case LineBlockStart:
		sc.lastRow = nil
		sc.enterBlock(c)
	case LineRow:
		sc.applyRow(c)
	case LineTopLevel:
		sc.lastRow = nil
	case LineBody:
		// indented line under a block we do not model
	}
}

func (sc *scan) inBlock(line string, c Classification) {
	if c.Class != LineBody {
		sc.closeBlock()
		sc.outside(line, c)
		return
	}
	if s, m := sc.p.classifier.SubBlockStart(sc.blockSchema.Kind, line); s != nil {
		sc.enterSubBlock(s, m)
		return
	}
	if applyLine(sc.blockSchema, sc.block, line) {
		return
	}
	for _, child := range sc.implicit {
		if applyLine(child.schema, child.inst, line) {
			return
		}
	}
}

func (sc *scan) inSubBlock(line string, c Classification) {
	if c.Class != LineBody {
		sc.closeBlock()
		sc.outside(line, c)
		return
	}
	if SubBlockEnd(sc.subSchema, line) {
		sc.leaveSubBlock()
		return
	}
	// some daemons indent sub-block bodies one level deeper
	applyLine(sc.subSchema, sc.sub, " "+strings.TrimLeft(line, " \t"))
}

// enterBlock opens a new block instance seeded with defaults, together with
// the implicit instances of its nested kinds.
func (sc *scan) enterBlock(c Classification) {
	s := c.Schema
	sc.block = s.NewInstance(s.KeyFromMatch(c.Match))
	sc.blockSchema = s
	sc.children = make(map[string]*schema.Instance)
	sc.implicit = nil
	sc.out = append(sc.out, sc.block)

	for _, child := range sc.p.reg.Children(s.Kind) {
		if child.ImplicitKey == "" {
			continue
		}
		in := sc.child(child, child.ImplicitKey)
		sc.implicit = append(sc.implicit, childInstance{inst: in, schema: child})
	}
	sc.state = stateInBlock
}

// child returns the nested instance with the given key, creating it on
// first use so that repeated sub-blocks merge.
func (sc *scan) child(s *schema.ResourceSchema, key string) *schema.Instance {
	id := string(s.Kind) + "/" + key
	if in, ok := sc.children[id]; ok {
		return in
	}
	in := s.NewInstance(key)
	in.Parent = sc.block.Key
	sc.children[id] = in
	sc.out = append(sc.out, in)
	return in
}

func (sc *scan) enterSubBlock(s *schema.ResourceSchema, m []string) {
	sc.sub = sc.child(s, s.KeyFromMatch(m))
	sc.subSchema = s
	sc.state = stateInSubBlock
}

func (sc *scan) leaveSubBlock() {
	sc.sub, sc.subSchema = nil, nil
	sc.state = stateInBlock
}

func (sc *scan) closeBlock() {
	sc.leaveSubBlock()
	sc.block, sc.blockSchema = nil, nil
	sc.children, sc.implicit = nil, nil
	sc.state = stateOutside
}

// applyRow decodes a row into a new instance. For kinds that merge rows,
// consecutive rows with the same key extend one instance: lists append and
// scalars take the last value.
func (sc *scan) applyRow(c Classification) {
	s := c.Schema
	key, props, ok := s.DecodeRow(c.Match)
	if !ok {
		sc.lastRow = nil
		return
	}
	in := sc.lastRow
	if !s.MergeRows || in == nil || in.Kind != s.Kind || in.Key != key {
		in = s.NewInstance(key)
		sc.out = append(sc.out, in)
	}
	for _, d := range s.Properties {
		v, ok := props[d.Name]
		if !ok {
			continue
		}
		if d.Type == schema.TypeList {
			cur := in.Properties[d.Name]
			for _, item := range v.Items() {
				cur = cur.Append(item)
			}
			in.Set(d.Name, cur)
			continue
		}
		in.Set(d.Name, v)
	}
	sc.lastRow = in
}

// applyLine offers a body line to the kind's properties in registry order,
// then to its composites. The first match wins.
func applyLine(s *schema.ResourceSchema, in *schema.Instance, line string) bool {
	line = strings.TrimRight(line, " \t\r")
	for i := range s.Properties {
		d := &s.Properties[i]
		if d.Match == nil {
			continue
		}
		m := d.Match.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, ok := d.Decode(in.Properties[d.Name], m)
		if !ok {
			continue
		}
		in.Set(d.Name, v)
		return true
	}
	for _, c := range s.Composites {
		m := c.Match.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		for i, member := range c.Members {
			d, _ := s.Property(member)
			v, ok := d.Decode(in.Properties[member], []string{m[0], m[i+1]})
			if ok {
				in.Set(member, v)
			}
		}
		return true
	}
	return false
}
