package xlbuild

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/width"
)

// Document is the spreadsheet the Builder writes into. Sheets are
// addressed by name; indexes follow workbook order.
type Document interface {
	SheetCount() int
	SheetName(index int) (string, error)
	// SheetIndex returns the index of the named sheet, or -1.
	SheetIndex(name string) int
	// AppendSheet adds a blank sheet at the end and returns its name.
	AppendSheet() (string, error)
	SetActiveSheet(index int) error
	RenameSheet(name, title string) error

	SetCellValue(sheet string, ref CellRef, value any) error
	MergeCells(sheet string, area AreaRef) error
	// Dimension returns the highest used column and row of a sheet.
	// An empty sheet reports A1.
	Dimension(sheet string) (CellRef, error)

	SetWrapText(sheet string, area AreaRef, enabled bool) error
	SetAutoSize(sheet string, col int, enabled bool) error

	Write(w io.Writer, format Format) error
	Close() error
}

// ExcelizeDocument implements Document using excelize.
type ExcelizeDocument struct {
	file       *excelize.File
	autoSize   map[string]map[int]bool // sheet → columns sized at write time
	wrapStyles map[wrapKey]int         // base style + flag → derived style ID
	extents    map[string]CellRef      // sheet → highest cell addressed through this document
}

type wrapKey struct {
	base    int
	enabled bool
}

// NewExcelizeDocument creates an empty workbook with one sheet and a
// unique document identifier.
func NewExcelizeDocument() *ExcelizeDocument {
	f := excelize.NewFile()
	// Core properties are informational; a failure leaves the defaults.
	_ = f.SetDocProps(&excelize.DocProperties{
		Creator:    "xlbuild",
		Identifier: uuid.NewString(),
		Created:    time.Now().UTC().Format(time.RFC3339),
	})
	return WrapExcelizeFile(f)
}

// WrapExcelizeFile creates a Document from an already opened excelize file.
func WrapExcelizeFile(f *excelize.File) *ExcelizeDocument {
	return &ExcelizeDocument{
		file:       f,
		autoSize:   make(map[string]map[int]bool),
		wrapStyles: make(map[wrapKey]int),
		extents:    make(map[string]CellRef),
	}
}

// OpenExcelizeDocument opens an existing workbook file.
func OpenExcelizeDocument(path string) (*ExcelizeDocument, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %q: %w", path, err)
	}
	return WrapExcelizeFile(f), nil
}

// OpenExcelizeReader opens a workbook from r.
func OpenExcelizeReader(r io.Reader) (*ExcelizeDocument, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook reader: %w", err)
	}
	return WrapExcelizeFile(f), nil
}

// File returns the underlying excelize file for advanced operations.
func (d *ExcelizeDocument) File() *excelize.File {
	return d.file
}

// SheetCount returns the number of sheets in the workbook.
func (d *ExcelizeDocument) SheetCount() int {
	return d.file.SheetCount
}

// SheetName returns the name of the sheet at index in workbook order.
func (d *ExcelizeDocument) SheetName(index int) (string, error) {
	sheets := d.file.GetSheetList()
	if index < 0 || index >= len(sheets) {
		return "", fmt.Errorf("sheet index %d out of range [0,%d)", index, len(sheets))
	}
	return sheets[index], nil
}

// SheetIndex returns the index of the named sheet, or -1 if it does not exist.
func (d *ExcelizeDocument) SheetIndex(name string) int {
	idx, err := d.file.GetSheetIndex(name)
	if err != nil {
		return -1
	}
	return idx
}

// AppendSheet adds a blank sheet named "SheetN" with the first free N.
func (d *ExcelizeDocument) AppendSheet() (string, error) {
	n := d.file.SheetCount + 1
	name := fmt.Sprintf("Sheet%d", n)
	for d.SheetIndex(name) >= 0 {
		n++
		name = fmt.Sprintf("Sheet%d", n)
	}
	if _, err := d.file.NewSheet(name); err != nil {
		return "", fmt.Errorf("create sheet %q: %w", name, err)
	}
	return name, nil
}

// SetActiveSheet makes the sheet at index the one shown on open.
func (d *ExcelizeDocument) SetActiveSheet(index int) error {
	if index < 0 || index >= d.file.SheetCount {
		return fmt.Errorf("sheet index %d out of range [0,%d)", index, d.file.SheetCount)
	}
	d.file.SetActiveSheet(index)
	return nil
}

// RenameSheet renames a sheet, carrying its auto-size flags and extent along.
func (d *ExcelizeDocument) RenameSheet(name, title string) error {
	if name == title {
		return nil
	}
	if err := d.file.SetSheetName(name, title); err != nil {
		return fmt.Errorf("rename sheet %q to %q: %w", name, title, err)
	}
	if cols, ok := d.autoSize[name]; ok {
		delete(d.autoSize, name)
		d.autoSize[title] = cols
	}
	if ext, ok := d.extents[name]; ok {
		delete(d.extents, name)
		d.extents[title] = ext
	}
	return nil
}

// SetCellValue writes value at ref. A nil value leaves the cell untouched
// but still counts towards the sheet's dimension.
func (d *ExcelizeDocument) SetCellValue(sheet string, ref CellRef, value any) error {
	if value != nil {
		if err := d.file.SetCellValue(sheet, ref.String(), value); err != nil {
			return err
		}
	}
	d.extend(sheet, ref)
	return nil
}

// MergeCells merges the cells of area, keeping the top-left value.
func (d *ExcelizeDocument) MergeCells(sheet string, area AreaRef) error {
	if err := d.file.MergeCell(sheet, area.First.String(), area.Last.String()); err != nil {
		return err
	}
	d.extend(sheet, area.Last)
	return nil
}

func (d *ExcelizeDocument) extend(sheet string, ref CellRef) {
	ext, ok := d.extents[sheet]
	if !ok {
		ext = CellRef{Col: 0, Row: 1}
	}
	d.extents[sheet] = CellRef{Col: max(ext.Col, ref.Col), Row: max(ext.Row, ref.Row)}
}

// Dimension returns the highest used column and row. GetRows drops
// trailing empty cells, so cells addressed through this document are
// counted from the recorded extent.
func (d *ExcelizeDocument) Dimension(sheet string) (CellRef, error) {
	rows, err := d.file.GetRows(sheet)
	if err != nil {
		return CellRef{}, fmt.Errorf("read rows from sheet %q: %w", sheet, err)
	}
	dim := CellRef{Col: 0, Row: 1}
	if ext, ok := d.extents[sheet]; ok {
		dim = ext
	}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		dim.Row = max(dim.Row, i+1)
		dim.Col = max(dim.Col, len(row)-1)
	}

	merges, err := d.file.GetMergeCells(sheet)
	if err != nil {
		return CellRef{}, fmt.Errorf("read merged cells from sheet %q: %w", sheet, err)
	}
	for _, mc := range merges {
		end, err := ParseCellRef(mc.GetEndAxis())
		if err != nil {
			continue
		}
		dim.Row = max(dim.Row, end.Row)
		dim.Col = max(dim.Col, end.Col)
	}
	return dim, nil
}

// SetWrapText toggles wrap-text on every cell of area, keeping the rest of
// each cell's style.
func (d *ExcelizeDocument) SetWrapText(sheet string, area AreaRef, enabled bool) error {
	for row := area.First.Row; row <= area.Last.Row; row++ {
		for col := area.First.Col; col <= area.Last.Col; col++ {
			cell := CellName(col, row)
			base, err := d.file.GetCellStyle(sheet, cell)
			if err != nil {
				return fmt.Errorf("get style of %s!%s: %w", sheet, cell, err)
			}
			styleID, err := d.wrapStyle(base, enabled)
			if err != nil {
				return fmt.Errorf("wrap style for %s!%s: %w", sheet, cell, err)
			}
			if styleID == base {
				continue
			}
			if err := d.file.SetCellStyle(sheet, cell, cell, styleID); err != nil {
				return fmt.Errorf("set style of %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

func (d *ExcelizeDocument) wrapStyle(base int, enabled bool) (int, error) {
	key := wrapKey{base: base, enabled: enabled}
	if id, ok := d.wrapStyles[key]; ok {
		return id, nil
	}
	style, err := d.file.GetStyle(base)
	if err != nil {
		return 0, err
	}
	if style.Alignment == nil {
		style.Alignment = &excelize.Alignment{}
	}
	if style.Alignment.WrapText == enabled {
		d.wrapStyles[key] = base
		return base, nil
	}
	style.Alignment.WrapText = enabled
	id, err := d.file.NewStyle(style)
	if err != nil {
		return 0, err
	}
	d.wrapStyles[key] = id
	return id, nil
}

// SetAutoSize flags a column for auto-sizing. Widths are computed from the
// cell contents when the document is written.
func (d *ExcelizeDocument) SetAutoSize(sheet string, col int, enabled bool) error {
	if col < 0 {
		return fmt.Errorf("column %d: %w", col, ErrInvalidLabel)
	}
	cols, ok := d.autoSize[sheet]
	if !ok {
		if !enabled {
			return nil
		}
		cols = make(map[int]bool)
		d.autoSize[sheet] = cols
	}
	if enabled {
		cols[col] = true
	} else {
		delete(cols, col)
	}
	return nil
}

// applyAutoSize sets the width of every flagged column to fit its widest
// cell. Cells inside horizontal merges do not count.
func (d *ExcelizeDocument) applyAutoSize() error {
	for sheet, cols := range d.autoSize {
		if len(cols) == 0 || d.SheetIndex(sheet) < 0 {
			continue
		}
		rows, err := d.file.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("read rows from sheet %q: %w", sheet, err)
		}
		merges, err := d.file.GetMergeCells(sheet)
		if err != nil {
			return fmt.Errorf("read merged cells from sheet %q: %w", sheet, err)
		}
		var spans []AreaRef
		for _, mc := range merges {
			area, err := ParseAreaRef(mc.GetStartAxis() + ":" + mc.GetEndAxis())
			if err == nil && area.Size().Width > 1 {
				spans = append(spans, area)
			}
		}

		widths := make(map[int]int)
		for r, row := range rows {
			for c, val := range row {
				if !cols[c] || val == "" || inAnyArea(spans, CellRef{Col: c, Row: r + 1}) {
					continue
				}
				widths[c] = max(widths[c], textWidth(val))
			}
		}
		for col, w := range widths {
			name := ColToName(col)
			if err := d.file.SetColWidth(sheet, name, name, columnWidth(w)); err != nil {
				return fmt.Errorf("set width of %s!%s: %w", sheet, name, err)
			}
		}
	}
	return nil
}

func inAnyArea(areas []AreaRef, ref CellRef) bool {
	for _, a := range areas {
		if a.Contains(ref) {
			return true
		}
	}
	return false
}

// textWidth measures the longest line of s in character cells, counting
// East Asian wide and fullwidth runes twice.
func textWidth(s string) int {
	widest := 0
	for _, line := range strings.Split(s, "\n") {
		n := 0
		for _, r := range line {
			switch width.LookupRune(r).Kind() {
			case width.EastAsianWide, width.EastAsianFullwidth:
				n += 2
			default:
				n++
			}
		}
		widest = max(widest, n)
	}
	return widest
}

const maxColumnWidth = 255

func columnWidth(chars int) float64 {
	return min(float64(chars)*1.1+2, maxColumnWidth)
}

// Write serializes the workbook. CSV writes the active sheet only.
func (d *ExcelizeDocument) Write(w io.Writer, format Format) error {
	if format == FormatCSV {
		return d.writeCSV(w)
	}
	ext, ok := format.Extension()
	if !ok {
		return fmt.Errorf("format %q: %w", format, ErrUnsupportedFormat)
	}
	if err := d.applyAutoSize(); err != nil {
		return err
	}

	// excelize picks the package content type from the file extension.
	path := d.file.Path
	d.file.Path = "workbook" + ext
	defer func() { d.file.Path = path }()

	if _, err := d.file.WriteTo(w); err != nil {
		return fmt.Errorf("write %s workbook: %w", format, err)
	}
	return nil
}

func (d *ExcelizeDocument) writeCSV(w io.Writer) error {
	sheet := d.file.GetSheetName(d.file.GetActiveSheetIndex())
	rows, err := d.file.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read rows from sheet %q: %w", sheet, err)
	}
	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}
	cw := csv.NewWriter(w)
	for _, row := range rows {
		record := make([]string, cols)
		copy(record, row)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Close closes the underlying excelize file.
func (d *ExcelizeDocument) Close() error {
	return d.file.Close()
}
