package xlbuild

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Layout describes a workbook as YAML: sheets, their offsets and rows.
//
//	data:
//	  people: [{name: Ann}, {name: Bob}]
//	sheets:
//	  - title: Report
//	    column_offset: 1
//	    rows:
//	      - [ID, Name]
//	      - [{value: Total, col: 2, key: total}]
//	      - each: {items: people, var: p, cells: ["${index+1}", "${p.name}"]}
//	    auto_size: true
type Layout struct {
	Data   map[string]any `yaml:"data,omitempty"`
	Sheets []SheetLayout  `yaml:"sheets"`
}

// SheetLayout describes one sheet. Name selects an existing sheet; else
// Index (default: the sheet's position in the layout) selects or creates one.
type SheetLayout struct {
	Index        *int         `yaml:"index,omitempty"`
	Name         string       `yaml:"name,omitempty"`
	Title        string       `yaml:"title,omitempty"`
	RowOffset    int          `yaml:"row_offset,omitempty"`
	ColumnOffset int          `yaml:"column_offset,omitempty"`
	Rows         []RowLayout  `yaml:"rows"`
	WrapText     *RangeToggle `yaml:"wrap_text,omitempty"`
	AutoSize     *RangeToggle `yaml:"auto_size,omitempty"`
}

// RowLayout is either a list of cells or an each block.
type RowLayout struct {
	Cells []CellLayout
	Each  *EachLayout
	Line  int
}

// EachLayout appends one row per element of the Items expression.
type EachLayout struct {
	Items string       `yaml:"items"`
	Var   string       `yaml:"var"`
	Cells []CellLayout `yaml:"cells"`
}

// CellLayout is a scalar (plain cell) or a mapping with value, col, row,
// skip and key (annotated cell).
type CellLayout struct {
	Value     any
	Col       *int
	Row       *int
	Skip      *int
	Key       string
	Annotated bool
	Line      int
}

// RangeToggle is either a boolean (apply to the default range) or a range
// string, "A1:C9" for wrap text and "A:C" for auto size.
type RangeToggle struct {
	Enabled bool
	Range   string
}

// LoadLayout decodes a YAML layout from r.
func LoadLayout(r io.Reader) (*Layout, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var l Layout
	if err := dec.Decode(&l); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode layout: empty document")
		}
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	return &l, nil
}

// LoadLayoutFile decodes the YAML layout at path.
func LoadLayoutFile(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layout %q: %w", path, err)
	}
	defer f.Close()
	return LoadLayout(f)
}

func (c *CellLayout) UnmarshalYAML(node *yaml.Node) error {
	c.Line = node.Line
	if node.Kind != yaml.MappingNode {
		return node.Decode(&c.Value)
	}

	var raw struct {
		Value any       `yaml:"value"`
		Col   *int      `yaml:"col"`
		Row   *int      `yaml:"row"`
		Skip  *int      `yaml:"skip"`
		Key   yaml.Node `yaml:"key"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Key.Kind != 0 && raw.Key.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: cell key must be a string or number", raw.Key.Line)
	}
	c.Value = raw.Value
	c.Col, c.Row, c.Skip = raw.Col, raw.Row, raw.Skip
	c.Key = raw.Key.Value
	c.Annotated = true
	return nil
}

// Cell converts the layout cell into a builder cell.
func (c CellLayout) Cell() Cell {
	if !c.Annotated {
		return Plain(c.Value)
	}
	var opts []CellOption
	if c.Col != nil {
		opts = append(opts, WithColSpan(*c.Col))
	}
	if c.Row != nil {
		opts = append(opts, WithRowSpan(*c.Row))
	}
	if c.Skip != nil {
		opts = append(opts, WithSkip(*c.Skip))
	}
	if c.Key != "" {
		opts = append(opts, WithKey(c.Key))
	}
	return Annotate(c.Value, opts...)
}

func (r *RowLayout) UnmarshalYAML(node *yaml.Node) error {
	r.Line = node.Line
	switch node.Kind {
	case yaml.SequenceNode:
		return node.Decode(&r.Cells)
	case yaml.MappingNode:
		var raw struct {
			Each *EachLayout `yaml:"each"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		if raw.Each == nil {
			return fmt.Errorf("line %d: row mapping needs an each block", node.Line)
		}
		r.Each = raw.Each
		return nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil // empty row
		}
	}
	return fmt.Errorf("line %d: row must be a list of cells or an each block", node.Line)
}

func (t *RangeToggle) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a boolean or a range", node.Line)
	}
	if node.Tag == "!!bool" {
		return node.Decode(&t.Enabled)
	}
	t.Enabled = true
	t.Range = node.Value
	return nil
}

func layoutCells(layout []CellLayout) []Cell {
	out := make([]Cell, len(layout))
	for i, c := range layout {
		out[i] = c.Cell()
	}
	return out
}

// Apply writes every sheet of the layout through b. Layout data is merged
// over the builder's data for each blocks.
func (l *Layout) Apply(b *Builder) error {
	env := make(map[string]any)
	maps.Copy(env, b.options().data)
	maps.Copy(env, l.Data)

	for i, s := range l.Sheets {
		if err := s.apply(b, i, env); err != nil {
			return fmt.Errorf("sheet %d: %w", i, err)
		}
	}
	return nil
}

func (s SheetLayout) apply(b *Builder, position int, env map[string]any) error {
	if s.Name != "" {
		b.UseSheet(s.Name, s.Title)
	} else {
		index := position
		if s.Index != nil {
			index = *s.Index
		}
		b.SelectSheet(index, s.Title)
	}
	b.SetRowOffset(s.RowOffset).SetColumnOffset(s.ColumnOffset)
	if err := b.Err(); err != nil {
		return err
	}

	for _, row := range s.Rows {
		if row.Each == nil {
			b.AppendRow(layoutCells(row.Cells)...)
		} else {
			items, err := b.evaluator().Evaluate(row.Each.Items, env)
			if err != nil {
				return fmt.Errorf("line %d: each items: %w", row.Line, err)
			}
			b.appendEach(items, row.Each.Var, layoutCells(row.Each.Cells), env)
		}
		if err := b.Err(); err != nil {
			return fmt.Errorf("line %d: %w", row.Line, err)
		}
	}

	if s.WrapText != nil {
		b.SetWrapText(s.WrapText.Range, s.WrapText.Enabled)
	}
	if s.AutoSize != nil {
		start, end, err := splitColumnRange(s.AutoSize.Range)
		if err != nil {
			return err
		}
		b.SetAutoSize(start, end, s.AutoSize.Enabled)
	}
	return b.Err()
}

// splitColumnRange splits "A:C" into its labels. A single label "B" means
// "B:B"; an empty string means the default range.
func splitColumnRange(s string) (string, string, error) {
	if s == "" {
		return "", "", nil
	}
	start, end, found := strings.Cut(s, ":")
	if !found {
		end = start
	}
	for _, label := range []string{start, end} {
		if _, err := NameToCol(label); err != nil {
			return "", "", fmt.Errorf("auto size range %q: %w", s, err)
		}
	}
	return start, end, nil
}
