// Package xlbuild appends rows of values to spreadsheet sheets while
// tracking where every keyed cell landed, so later code can style or
// reference those cells by name instead of by coordinate.
//
//	b := xlbuild.New()
//	b.AppendValues("ID", "Name", "Email").
//		AppendRow(xlbuild.Annotate("Total", xlbuild.WithColSpan(2), xlbuild.WithKey("total")))
//	if err := b.Err(); err != nil { ... }
//	rng, _ := b.Range("total") // "A2:B2"
package xlbuild

import (
	"fmt"
	"io"
	"maps"
	"reflect"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Builder holds the state of one build: the document, the active sheet,
// the row and column offsets and the four key maps. A Builder is not safe
// for concurrent use; use one Builder per document.
//
// Chainable methods record the first error, which Err returns. While an
// error is recorded they do nothing.
type Builder struct {
	doc   Document
	sheet string
	opts  *Options
	log   *logrus.Entry
	err   error

	rowOffset int
	colOffset int

	coordinates map[string]string
	columns     map[string]string
	rows        map[string]int
	ranges      map[string]string
}

// New creates a Builder writing into a new empty workbook.
func New(opts ...Option) *Builder {
	return newBuilder(NewExcelizeDocument(), opts)
}

// NewWithDocument creates a Builder writing into doc.
func NewWithDocument(doc Document, opts ...Option) (*Builder, error) {
	if isNil(doc) {
		return nil, ErrInvalidDocument
	}
	return newBuilder(doc, opts), nil
}

// OpenFile creates a Builder appending to the workbook at path.
func OpenFile(path string, opts ...Option) (*Builder, error) {
	doc, err := OpenExcelizeDocument(path)
	if err != nil {
		return nil, err
	}
	return newBuilder(doc, opts), nil
}

// OpenReader creates a Builder appending to the workbook read from r.
func OpenReader(r io.Reader, opts ...Option) (*Builder, error) {
	doc, err := OpenExcelizeReader(r)
	if err != nil {
		return nil, err
	}
	return newBuilder(doc, opts), nil
}

func newBuilder(doc Document, opts []Option) *Builder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	b := &Builder{doc: doc, opts: o}
	b.reset()
	return b
}

func isNil(doc Document) bool {
	if doc == nil {
		return true
	}
	v := reflect.ValueOf(doc)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Err returns the first error recorded by a chainable method.
func (b *Builder) Err() error {
	return b.err
}

// ClearErr drops the recorded error so the Builder accepts operations again.
func (b *Builder) ClearErr() *Builder {
	b.err = nil
	return b
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
		b.logger().WithError(err).Debug("builder operation failed")
	}
	return b
}

func (b *Builder) logger() *logrus.Entry {
	if b.log != nil {
		return b.log
	}
	return logrus.NewEntry(b.options().logger)
}

// Document returns the document the Builder writes into.
func (b *Builder) Document() Document {
	return b.doc
}

// SetDocument replaces the document and resets the sheet state.
func (b *Builder) SetDocument(doc Document) *Builder {
	if b.err != nil {
		return b
	}
	if isNil(doc) {
		return b.fail(ErrInvalidDocument)
	}
	b.doc = doc
	b.reset()
	return b
}

// ResetSheet forgets the active sheet and clears both offsets and all key
// maps. The document is kept.
func (b *Builder) ResetSheet() *Builder {
	if b.err != nil {
		return b
	}
	b.reset()
	return b
}

func (b *Builder) reset() {
	b.sheet = ""
	b.log = nil
	b.rowOffset = 0
	b.colOffset = 0
	b.coordinates = make(map[string]string)
	b.columns = make(map[string]string)
	b.rows = make(map[string]int)
	b.ranges = make(map[string]string)
}

// SelectSheet resets the sheet state and activates the sheet at index,
// first appending blank sheets until the document has index+1 sheets.
// A title, if given, renames the sheet.
func (b *Builder) SelectSheet(index int, title ...string) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.selectSheet(index, title...); err != nil {
		return b.fail(err)
	}
	return b
}

func (b *Builder) selectSheet(index int, title ...string) error {
	if index < 0 {
		return fmt.Errorf("sheet index %d: %w", index, ErrInvalidSheetReference)
	}
	if b.doc == nil {
		return fmt.Errorf("sheet index %d without a document: %w", index, ErrInvalidSheetReference)
	}
	b.reset()

	for n := b.doc.SheetCount(); n <= index; n++ {
		name, err := b.doc.AppendSheet()
		if err != nil {
			return fmt.Errorf("create sheet %d: %w", n, err)
		}
		b.logger().WithField("sheet", name).Debug("created sheet")
	}
	name, err := b.doc.SheetName(index)
	if err != nil {
		return err
	}
	if err := b.doc.SetActiveSheet(index); err != nil {
		return err
	}
	return b.activate(name, title)
}

// UseSheet resets the sheet state and activates the existing sheet name
// without creating any sheets. A title, if given, renames the sheet.
func (b *Builder) UseSheet(name string, title ...string) *Builder {
	if b.err != nil {
		return b
	}
	if b.doc == nil {
		return b.fail(fmt.Errorf("sheet %q without a document: %w", name, ErrInvalidSheetReference))
	}
	index := b.doc.SheetIndex(name)
	if name == "" || index < 0 {
		return b.fail(fmt.Errorf("sheet %q: %w", name, ErrInvalidSheetReference))
	}
	b.reset()
	if err := b.doc.SetActiveSheet(index); err != nil {
		return b.fail(err)
	}
	if err := b.activate(name, title); err != nil {
		return b.fail(err)
	}
	return b
}

func (b *Builder) activate(name string, title []string) error {
	if len(title) > 0 && title[0] != "" {
		newName := SafeSheetName(title[0])
		if err := b.doc.RenameSheet(name, newName); err != nil {
			return err
		}
		name = newName
	}
	b.sheet = name
	b.log = b.logger().WithField("sheet", name)
	b.log.Debug("sheet selected")
	return nil
}

// Sheet returns the name of the active sheet, or "" if none is selected.
func (b *Builder) Sheet() string {
	return b.sheet
}

// ensureSheet selects sheet 0 when no sheet is active. It is the only
// implicit sheet selection the Builder performs. Offsets set before the
// selection are kept.
func (b *Builder) ensureSheet() error {
	if b.sheet != "" {
		return nil
	}
	if b.doc == nil {
		return ErrNoActiveSheet
	}
	row, col := b.rowOffset, b.colOffset
	if err := b.selectSheet(0); err != nil {
		return fmt.Errorf("select default sheet: %w", err)
	}
	b.rowOffset, b.colOffset = row, col
	return nil
}

// SetRowOffset sets the last written row number. The next AppendRow
// writes row n+1. Negative values become 0.
func (b *Builder) SetRowOffset(n int) *Builder {
	if b.err == nil {
		b.rowOffset = max(n, 0)
	}
	return b
}

// RowOffset returns the last written row number.
func (b *Builder) RowOffset() int {
	return b.rowOffset
}

// SetColumnOffset sets the 0-based column every row starts at. Negative
// values become 0.
func (b *Builder) SetColumnOffset(n int) *Builder {
	if b.err == nil {
		b.colOffset = max(n, 0)
	}
	return b
}

// ColumnOffset returns the 0-based column every row starts at.
func (b *Builder) ColumnOffset() int {
	return b.colOffset
}

// keyEntry is one staged update to the key maps.
type keyEntry struct {
	key    string
	coord  string
	column string
	row    int
	rng    string
}

// AppendRow writes cells to the next row, starting at the column offset.
// If no sheet is active, sheet 0 is selected first.
//
// A plain cell is written and the column pointer moves one column right.
// An annotated cell is written at the pointer; a span greater than one
// merges the rectangle starting there and moves the pointer to the last
// merged column; the pointer then advances by Skip. Keyed cells are
// recorded in the key maps only if the whole row was written.
func (b *Builder) AppendRow(cells ...Cell) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.ensureSheet(); err != nil {
		return b.fail(err)
	}

	b.rowOffset++
	row := b.rowOffset
	col := b.colOffset
	var staged []keyEntry

	for _, cell := range cells {
		if !cell.IsAnnotated() {
			if err := b.doc.SetCellValue(b.sheet, CellRef{Col: col, Row: row}, cell.Value); err != nil {
				return b.fail(b.rowError(row, col, err))
			}
			col++
			continue
		}

		if cell.annotated && cell.belowMinimum() {
			b.logger().WithFields(logrus.Fields{
				"cell":     CellName(col, row),
				"col_span": cell.ColSpan,
				"row_span": cell.RowSpan,
				"skip":     cell.Skip,
			}).Warn("span or skip below 1 treated as 1")
		}
		c := cell.normalized()
		if err := b.doc.SetCellValue(b.sheet, CellRef{Col: col, Row: row}, c.Value); err != nil {
			return b.fail(b.rowError(row, col, err))
		}

		origin := col
		var merged *AreaRef
		if c.ColSpan > 1 || c.RowSpan > 1 {
			col = origin + c.ColSpan - 1
			area := AreaRef{
				First: CellRef{Col: origin, Row: row},
				Last:  CellRef{Col: col, Row: row + c.RowSpan - 1},
			}
			if err := b.doc.MergeCells(b.sheet, area); err != nil {
				return b.fail(b.rowError(row, origin, fmt.Errorf("merge %s: %w", area, err)))
			}
			merged = &area
		}

		if c.Key != "" {
			start := CellRef{Col: origin, Row: row}
			var rng string
			switch {
			case merged != nil:
				rng = merged.String()
			case c.Skip > 1:
				rng = start.String() + ":" + CellName(col+c.Skip-1, row)
			default:
				rng = start.String() + ":" + start.String()
			}
			staged = append(staged, keyEntry{
				key:    c.Key,
				coord:  start.String(),
				column: ColToName(origin),
				row:    row,
				rng:    rng,
			})
		}

		col += c.Skip
	}

	for _, e := range staged {
		b.coordinates[e.key] = e.coord
		b.columns[e.key] = e.column
		b.rows[e.key] = e.row
		b.ranges[e.key] = e.rng
	}
	if b.log != nil && b.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		b.log.WithFields(logrus.Fields{
			"row":   row,
			"cells": len(cells),
			"keys":  len(staged),
		}).Debug("row appended")
	}
	return b
}

func (b *Builder) rowError(row, col int, err error) error {
	return &RowError{Sheet: b.sheet, Row: row, Col: col, Err: err}
}

// AppendRows calls AppendRow for each row in order.
func (b *Builder) AppendRows(rows ...[]Cell) *Builder {
	for _, cells := range rows {
		b.AppendRow(cells...)
	}
	return b
}

// AppendValues appends one row built from values with Row.
func (b *Builder) AppendValues(values ...any) *Builder {
	return b.AppendRow(Row(values...)...)
}

// Coordinate returns the coordinate recorded for key, like "C5".
func (b *Builder) Coordinate(key string) (string, bool) {
	v, ok := b.coordinates[key]
	return v, ok
}

// Column returns the column label recorded for key, like "C".
func (b *Builder) Column(key string) (string, bool) {
	v, ok := b.columns[key]
	return v, ok
}

// RowOf returns the row number recorded for key.
func (b *Builder) RowOf(key string) (int, bool) {
	v, ok := b.rows[key]
	return v, ok
}

// Range returns the range recorded for key, like "C5:D5".
func (b *Builder) Range(key string) (string, bool) {
	v, ok := b.ranges[key]
	return v, ok
}

// CoordinateMap returns a copy of all recorded coordinates.
func (b *Builder) CoordinateMap() map[string]string {
	return cloneOrEmpty(b.coordinates)
}

// ColumnMap returns a copy of all recorded column labels.
func (b *Builder) ColumnMap() map[string]string {
	return cloneOrEmpty(b.columns)
}

// RowMap returns a copy of all recorded row numbers.
func (b *Builder) RowMap() map[string]int {
	return cloneOrEmpty(b.rows)
}

// RangeMap returns a copy of all recorded ranges.
func (b *Builder) RangeMap() map[string]string {
	return cloneOrEmpty(b.ranges)
}

func cloneOrEmpty[V any](m map[string]V) map[string]V {
	if m == nil {
		return make(map[string]V)
	}
	return maps.Clone(m)
}

// FullRange returns the range from row 1 at the column offset to the
// sheet's highest used column and row. If no sheet is active, sheet 0 is
// selected first.
func (b *Builder) FullRange() (string, error) {
	area, err := b.fullArea()
	if err != nil {
		return "", err
	}
	return area.String(), nil
}

func (b *Builder) fullArea() (AreaRef, error) {
	if err := b.ensureSheet(); err != nil {
		return AreaRef{}, err
	}
	dim, err := b.doc.Dimension(b.sheet)
	if err != nil {
		return AreaRef{}, err
	}
	return AreaRef{First: CellRef{Col: b.colOffset, Row: 1}, Last: dim}, nil
}

// SetWrapText toggles wrap-text over rng, or over FullRange when rng is
// empty. If no sheet is active, sheet 0 is selected first.
func (b *Builder) SetWrapText(rng string, enabled bool) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.ensureSheet(); err != nil {
		return b.fail(err)
	}

	var area AreaRef
	var err error
	if rng == "" {
		area, err = b.fullArea()
	} else {
		area, err = ParseAreaRef(rng)
	}
	if err != nil {
		return b.fail(fmt.Errorf("wrap text: %w", err))
	}
	if err := b.doc.SetWrapText(b.sheet, area, enabled); err != nil {
		return b.fail(fmt.Errorf("wrap text %s: %w", area, err))
	}
	return b
}

// SetAutoSize toggles auto-sizing for the inclusive column range
// start..end given as labels, in either order. An empty start means the
// column offset and an empty end means the sheet's highest used column.
// The range is cut at the workbook's last column (XFD). If no sheet is
// active, sheet 0 is selected first.
func (b *Builder) SetAutoSize(start, end string, enabled bool) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.ensureSheet(); err != nil {
		return b.fail(err)
	}

	first := b.colOffset
	if start != "" {
		col, err := NameToCol(start)
		if err != nil {
			return b.fail(fmt.Errorf("auto size: %w", err))
		}
		first = col
	}
	var last int
	if end != "" {
		col, err := NameToCol(end)
		if err != nil {
			return b.fail(fmt.Errorf("auto size: %w", err))
		}
		last = col
	} else {
		dim, err := b.doc.Dimension(b.sheet)
		if err != nil {
			return b.fail(fmt.Errorf("auto size: %w", err))
		}
		last = dim.Col
	}

	if first > last {
		first, last = last, first
	}
	if first >= excelize.MaxColumns {
		return b.fail(fmt.Errorf("auto size column %s beyond %s: %w", ColToName(first), ColToName(excelize.MaxColumns-1), ErrInvalidLabel))
	}
	last = min(last, excelize.MaxColumns-1)

	for col := first; col <= last; col++ {
		if err := b.doc.SetAutoSize(b.sheet, col, enabled); err != nil {
			return b.fail(fmt.Errorf("auto size column %s: %w", ColToName(col), err))
		}
	}
	return b
}

// Close releases the document.
func (b *Builder) Close() error {
	if b.doc == nil {
		return nil
	}
	return b.doc.Close()
}
