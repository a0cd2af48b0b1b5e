package parser

import (
	"strings"

	"github.com/openfroyo/vtyctl/pkg/schema"
)

// LineClass is the coarse category of one running-config line.
type LineClass int

const (
	// LineSkip is a blank line or a "!" separator.
	LineSkip LineClass = iota

	// LineBlockStart is a column-0 header of a block kind.
	LineBlockStart

	// LineRow is a column-0 line of a row kind.
	LineRow

	// LineTopLevel is any other column-0 line. It closes an open block.
	LineTopLevel

	// LineBody is an indented line.
	LineBody
)

func (c LineClass) String() string {
	switch c {
	case LineSkip:
		return "skip"
	case LineBlockStart:
		return "block-start"
	case LineRow:
		return "row"
	case LineTopLevel:
		return "top-level"
	case LineBody:
		return "body"
	}
	return "unknown"
}

// Classification is the result of classifying a line. Schema and Match are
// set for block starts and rows.
type Classification struct {
	Class  LineClass
	Schema *schema.ResourceSchema
	Match  []string
}

// Classifier recognizes block starts, rows and nested sub-block boundaries
// using the patterns of a schema registry.
type Classifier struct {
	reg    *schema.Registry
	blocks []*schema.ResourceSchema
	rows   []*schema.ResourceSchema
}

// NewClassifier builds a classifier over the registry's block and row kinds.
func NewClassifier(reg *schema.Registry) *Classifier {
	return &Classifier{
		reg:    reg,
		blocks: reg.ByLayout(schema.LayoutBlock),
		rows:   reg.ByLayout(schema.LayoutRow),
	}
}

// Classify categorizes a single line. Trailing whitespace is ignored.
func (c *Classifier) Classify(line string) Classification {
	line = strings.TrimRight(line, " \t\r")
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "!") {
		return Classification{Class: LineSkip}
	}
	if isIndented(line) {
		return Classification{Class: LineBody}
	}
	for _, s := range c.blocks {
		if m := s.Start.FindStringSubmatch(line); m != nil {
			return Classification{Class: LineBlockStart, Schema: s, Match: m}
		}
	}
	for _, s := range c.rows {
		if m := s.Start.FindStringSubmatch(line); m != nil {
			return Classification{Class: LineRow, Schema: s, Match: m}
		}
	}
	return Classification{Class: LineTopLevel}
}

// SubBlockStart reports whether an indented line opens a nested kind of
// the given parent kind.
func (c *Classifier) SubBlockStart(parent schema.Kind, line string) (*schema.ResourceSchema, []string) {
	line = strings.TrimRight(line, " \t\r")
	for _, s := range c.reg.Children(parent) {
		if m := s.Start.FindStringSubmatch(line); m != nil {
			return s, m
		}
	}
	return nil, nil
}

// SubBlockEnd reports whether an indented line closes the nested kind.
func SubBlockEnd(s *schema.ResourceSchema, line string) bool {
	return s.End != nil && s.End.MatchString(strings.TrimRight(line, " \t\r"))
}

func isIndented(line string) bool {
	return line != "" && (line[0] == ' ' || line[0] == '\t')
}
