package xlbuild

import (
	"errors"
	"fmt"
)

// ErrInvalidDocument indicates a nil or unusable document was supplied.
var ErrInvalidDocument = errors.New("invalid document")

// ErrInvalidSheetReference indicates a sheet selection with neither an
// existing sheet name nor a non-negative index, or without a document.
var ErrInvalidSheetReference = errors.New("invalid sheet reference")

// ErrNoActiveSheet indicates an operation needed a sheet and none could be resolved.
var ErrNoActiveSheet = errors.New("no active sheet")

// ErrInvalidLabel indicates a column label containing something other than A-Z.
var ErrInvalidLabel = errors.New("invalid column label")

// ErrUnsupportedFormat indicates an export format the document cannot write.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// RowError reports the cell at which appending a row failed.
type RowError struct {
	Sheet string
	Row   int // 1-based row number
	Col   int // 0-based column index
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("append row %d on sheet %q at %s: %v", e.Row, e.Sheet, CellName(e.Col, e.Row), e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
