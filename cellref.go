package xlbuild

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CellRef identifies a single cell on a sheet.
type CellRef struct {
	Col int // 0-based column index
	Row int // 1-based row number, as written in A1 notation
}

// NewCellRef creates a CellRef from a 0-based column and a 1-based row.
func NewCellRef(col, row int) CellRef {
	return CellRef{Col: col, Row: row}
}

// ParseCellRef parses a coordinate like "C5" or "$C$5".
func ParseCellRef(s string) (CellRef, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "$", "")
	if s == "" {
		return CellRef{}, fmt.Errorf("empty cell reference")
	}

	i := 0
	for i < len(s) && isAlpha(s[i]) {
		i++
	}
	if i == 0 || i == len(s) {
		return CellRef{}, fmt.Errorf("invalid cell reference: %q", s)
	}

	col, err := NameToCol(s[:i])
	if err != nil {
		return CellRef{}, fmt.Errorf("invalid cell reference %q: %w", s, err)
	}
	row, err := strconv.Atoi(s[i:])
	if err != nil || row < 1 {
		return CellRef{}, fmt.Errorf("invalid row in cell reference: %q", s)
	}
	return CellRef{Col: col, Row: row}, nil
}

func isAlpha(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// String formats the reference as a coordinate like "C5".
func (c CellRef) String() string {
	return CellName(c.Col, c.Row)
}

// CellName joins a column label and a row number: CellName(2, 5) == "C5".
func CellName(col, row int) string {
	return ColToName(col) + strconv.Itoa(row)
}

// ColToName converts a 0-based column index to a column label.
// 0→"A", 25→"Z", 26→"AA", 701→"ZZ", 702→"AAA". Negative input yields "".
func ColToName(col int) string {
	if col < 0 {
		return ""
	}
	var buf [16]byte
	i := len(buf)
	col++ // 1-based for the bijective digits
	for col > 0 {
		col--
		i--
		buf[i] = byte('A' + col%26)
		col /= 26
	}
	return string(buf[i:])
}

// NameToCol converts a column label to a 0-based column index.
// "A"→0, "Z"→25, "AA"→26. Lowercase letters are accepted.
func NameToCol(name string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("empty column name: %w", ErrInvalidLabel)
	}
	col := 0
	for _, ch := range strings.ToUpper(name) {
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("column name %q: %w", name, ErrInvalidLabel)
		}
		if col > (math.MaxInt-26)/26 {
			return 0, fmt.Errorf("column name %q is too long: %w", name, ErrInvalidLabel)
		}
		col = col*26 + int(ch-'A') + 1
	}
	return col - 1, nil
}

// AreaRef is a rectangular region between two cells, inclusive.
type AreaRef struct {
	First CellRef
	Last  CellRef
}

// NewAreaRef creates an AreaRef, normalizing the corners so First is top-left.
func NewAreaRef(a, b CellRef) AreaRef {
	first := CellRef{Col: min(a.Col, b.Col), Row: min(a.Row, b.Row)}
	last := CellRef{Col: max(a.Col, b.Col), Row: max(a.Row, b.Row)}
	return AreaRef{First: first, Last: last}
}

// ParseAreaRef parses a range like "A1:C5". A single coordinate "B2" is
// accepted as the one-cell range "B2:B2".
func ParseAreaRef(s string) (AreaRef, error) {
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, ":", 2)

	first, err := ParseCellRef(parts[0])
	if err != nil {
		return AreaRef{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	if len(parts) == 1 {
		return AreaRef{First: first, Last: first}, nil
	}
	last, err := ParseCellRef(parts[1])
	if err != nil {
		return AreaRef{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	return NewAreaRef(first, last), nil
}

// String formats the area as "A1:C5".
func (a AreaRef) String() string {
	return a.First.String() + ":" + a.Last.String()
}

// Size returns the width and height of the area.
func (a AreaRef) Size() Size {
	return Size{
		Width:  a.Last.Col - a.First.Col + 1,
		Height: a.Last.Row - a.First.Row + 1,
	}
}

// Contains reports whether ref lies inside the area.
func (a AreaRef) Contains(ref CellRef) bool {
	return ref.Row >= a.First.Row && ref.Row <= a.Last.Row &&
		ref.Col >= a.First.Col && ref.Col <= a.Last.Col
}

// Size represents width (columns) and height (rows).
type Size struct {
	Width  int
	Height int
}

// String formats the Size as "(WxH)".
func (s Size) String() string {
	return fmt.Sprintf("(%dx%d)", s.Width, s.Height)
}

// SafeSheetName sanitizes a string for use as a sheet title.
// It replaces forbidden characters ([]*?/\:) with underscore and truncates to 31 chars.
func SafeSheetName(name string) string {
	runes := []rune(name)
	for i, r := range runes {
		if strings.ContainsRune(`/\:*?[]`, r) {
			runes[i] = '_'
		}
	}
	if len(runes) > 31 {
		runes = runes[:31]
	}
	return string(runes)
}
