package xlbuild

import "strconv"

// Cell is one entry of a row passed to AppendRow. It is either a plain
// value, written as-is and advancing the column pointer by one, or an
// annotated cell carrying span, skip and key information.
//
// Build cells with Plain, Annotate or Row. A struct literal with a key or
// a span or skip above 1 is treated as annotated; zero spans and skips
// count as 1.
type Cell struct {
	Value     any
	ColSpan   int    // columns merged, starting at the cell (default 1)
	RowSpan   int    // rows merged, starting at the cell (default 1)
	Skip      int    // columns the pointer advances after the cell (default 1)
	Key       string // identifier for the coordinate maps; empty means none
	annotated bool
}

// CellOption configures an annotated cell.
type CellOption func(*Cell)

// Plain returns a cell that writes v and occupies one column.
func Plain(v any) Cell {
	return Cell{Value: v, ColSpan: 1, RowSpan: 1, Skip: 1}
}

// Annotate returns an annotated cell holding v. Without options it behaves
// like Plain, but it is still recorded when a key is set later.
func Annotate(v any, opts ...CellOption) Cell {
	c := Cell{Value: v, ColSpan: 1, RowSpan: 1, Skip: 1, annotated: true}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithColSpan merges n columns starting at the cell.
func WithColSpan(n int) CellOption {
	return func(c *Cell) { c.ColSpan = n }
}

// WithRowSpan merges n rows starting at the cell.
func WithRowSpan(n int) CellOption {
	return func(c *Cell) { c.RowSpan = n }
}

// WithSkip advances the column pointer by n after the cell.
func WithSkip(n int) CellOption {
	return func(c *Cell) { c.Skip = n }
}

// WithKey records the cell's location under key.
func WithKey(key string) CellOption {
	return func(c *Cell) { c.Key = key }
}

// WithIntKey records the cell's location under the decimal form of key.
func WithIntKey(key int) CellOption {
	return WithKey(strconv.Itoa(key))
}

// IsAnnotated reports whether the cell was built with Annotate or carries
// a key, a span or a skip.
func (c Cell) IsAnnotated() bool {
	return c.annotated || c.Key != "" || c.ColSpan > 1 || c.RowSpan > 1 || c.Skip > 1
}

func (c Cell) belowMinimum() bool {
	return c.ColSpan < 1 || c.RowSpan < 1 || c.Skip < 1
}

// normalized returns the cell with spans and skip clamped to at least 1.
func (c Cell) normalized() Cell {
	c.ColSpan = max(c.ColSpan, 1)
	c.RowSpan = max(c.RowSpan, 1)
	c.Skip = max(c.Skip, 1)
	return c
}

// Row converts values into cells. Cell values pass through unchanged and
// anything else becomes a plain cell.
func Row(values ...any) []Cell {
	cells := make([]Cell, len(values))
	for i, v := range values {
		switch c := v.(type) {
		case Cell:
			cells[i] = c
		case *Cell:
			if c != nil {
				cells[i] = *c
			} else {
				cells[i] = Plain(nil)
			}
		default:
			cells[i] = Plain(v)
		}
	}
	return cells
}
