package xlbuild

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// reopen serializes the builder's workbook and opens the result with excelize.
func reopen(t *testing.T, b *Builder) *excelize.File {
	t.Helper()
	data, err := b.WriteBytes(FormatXLSX)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

// cellValue reads a formatted cell value, failing the test on error.
func cellValue(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, cell)
	require.NoError(t, err)
	return v
}

// mergedAreas lists the merged ranges of a sheet as "A1:B2" strings.
func mergedAreas(t *testing.T, f *excelize.File, sheet string) []string {
	t.Helper()
	merges, err := f.GetMergeCells(sheet)
	require.NoError(t, err)
	out := make([]string, len(merges))
	for i, mc := range merges {
		out[i] = mc.GetStartAxis() + ":" + mc.GetEndAxis()
	}
	return out
}

var errWriteFailed = errors.New("write failed")

// failingDocument wraps a document and fails SetCellValue at one coordinate.
type failingDocument struct {
	Document
	failAt string
}

func (d *failingDocument) SetCellValue(sheet string, ref CellRef, value any) error {
	if ref.String() == d.failAt {
		return errWriteFailed
	}
	return d.Document.SetCellValue(sheet, ref, value)
}
