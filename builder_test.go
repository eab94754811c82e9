package xlbuild

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Row appending ---

func TestAppendRow_AdvancesRowOffset(t *testing.T) {
	b := New()
	for i := 0; i < 5; i++ {
		b.AppendValues("a", i)
	}
	require.NoError(t, b.Err())
	assert.Equal(t, 5, b.RowOffset())

	f := reopen(t, b)
	assert.Equal(t, "a", cellValue(t, f, "Sheet1", "A5"))
	assert.Equal(t, "4", cellValue(t, f, "Sheet1", "B5"))
}

func TestAppendRow_SelectsFirstSheet(t *testing.T) {
	b := New()
	assert.Equal(t, "", b.Sheet())
	b.AppendValues("x")
	require.NoError(t, b.Err())
	assert.Equal(t, "Sheet1", b.Sheet())
}

func TestAppendRow_RecordsKey(t *testing.T) {
	b := New()
	b.AppendValues("header").
		AppendRow(Annotate("value", WithKey("k1")))
	require.NoError(t, b.Err())

	coord, ok := b.Coordinate("k1")
	require.True(t, ok)
	assert.Equal(t, "A2", coord)
	col, _ := b.Column("k1")
	assert.Equal(t, "A", col)
	row, _ := b.RowOf("k1")
	assert.Equal(t, 2, row)
	rng, _ := b.Range("k1")
	assert.Equal(t, "A2:A2", rng)
}

func TestAppendRow_ColSpanMerges(t *testing.T) {
	b := New()
	b.AppendRow(Annotate("Total", WithColSpan(2), WithKey("total")), Plain("next"))
	require.NoError(t, b.Err())

	coord, _ := b.Coordinate("total")
	assert.Equal(t, "A1", coord)
	rng, _ := b.Range("total")
	assert.Equal(t, "A1:B1", rng)

	f := reopen(t, b)
	assert.Equal(t, []string{"A1:B1"}, mergedAreas(t, f, "Sheet1"))
	assert.Equal(t, "Total", cellValue(t, f, "Sheet1", "A1"))
	assert.Equal(t, "next", cellValue(t, f, "Sheet1", "C1"))
}

func TestAppendRow_RowSpanMerges(t *testing.T) {
	b := New()
	b.AppendRow(Annotate("Group", WithRowSpan(2), WithKey("group")), Plain("first")).
		AppendRow(Plain(nil), Plain("second"))
	require.NoError(t, b.Err())

	rng, _ := b.Range("group")
	assert.Equal(t, "A1:A2", rng)

	f := reopen(t, b)
	assert.Equal(t, []string{"A1:A2"}, mergedAreas(t, f, "Sheet1"))
	assert.Equal(t, "first", cellValue(t, f, "Sheet1", "B1"))
	assert.Equal(t, "second", cellValue(t, f, "Sheet1", "B2"))
}

func TestAppendRow_SkipAdvancesPointer(t *testing.T) {
	b := New()
	b.AppendRow(Annotate("wide", WithSkip(3), WithKey("wide")), Plain("after"))
	require.NoError(t, b.Err())

	rng, _ := b.Range("wide")
	assert.Equal(t, "A1:C1", rng)

	f := reopen(t, b)
	assert.Empty(t, mergedAreas(t, f, "Sheet1"))
	assert.Equal(t, "after", cellValue(t, f, "Sheet1", "D1"))
}

func TestAppendRow_MergeThenSkip(t *testing.T) {
	b := New()
	b.AppendRow(Annotate("m", WithColSpan(2), WithSkip(2), WithKey("m")), Plain("p"))
	require.NoError(t, b.Err())

	rng, _ := b.Range("m")
	assert.Equal(t, "A1:B1", rng)

	f := reopen(t, b)
	assert.Equal(t, "p", cellValue(t, f, "Sheet1", "D1"))
}

func TestAppendRow_ClampsSpanAndSkip(t *testing.T) {
	b := New()
	b.AppendRow(Annotate("x", WithColSpan(0), WithRowSpan(-1), WithSkip(-2), WithKey("x")), Plain("y"))
	require.NoError(t, b.Err())

	rng, _ := b.Range("x")
	assert.Equal(t, "A1:A1", rng)

	f := reopen(t, b)
	assert.Empty(t, mergedAreas(t, f, "Sheet1"))
	assert.Equal(t, "y", cellValue(t, f, "Sheet1", "B1"))
}

func TestAppendRow_StructLiteralCells(t *testing.T) {
	b := New()
	b.AppendRow(Cell{Value: "v", Key: "k"}, Cell{Value: "w", ColSpan: 2}, Cell{Value: "x"})
	require.NoError(t, b.Err())

	coord, ok := b.Coordinate("k")
	require.True(t, ok)
	assert.Equal(t, "A1", coord)

	f := reopen(t, b)
	assert.Equal(t, []string{"B1:C1"}, mergedAreas(t, f, "Sheet1"))
	assert.Equal(t, "x", cellValue(t, f, "Sheet1", "D1"))
}

func TestAppendRow_IntKey(t *testing.T) {
	b := New()
	b.AppendValues(Annotate("seven", WithIntKey(7)))
	require.NoError(t, b.Err())

	coord, ok := b.Coordinate("7")
	require.True(t, ok)
	assert.Equal(t, "A1", coord)
}

func TestAppendRow_LaterKeyWins(t *testing.T) {
	b := New()
	b.AppendValues(Annotate("one", WithKey("k"))).
		AppendValues("x", Annotate("two", WithKey("k")))
	require.NoError(t, b.Err())

	coord, _ := b.Coordinate("k")
	assert.Equal(t, "B2", coord)
	assert.Len(t, b.CoordinateMap(), 1)
}

func TestAppendRow_NilValueLeavesCellEmpty(t *testing.T) {
	b := New()
	b.AppendValues(nil, "b")
	require.NoError(t, b.Err())

	f := reopen(t, b)
	assert.Equal(t, "", cellValue(t, f, "Sheet1", "A1"))
	assert.Equal(t, "b", cellValue(t, f, "Sheet1", "B1"))
}

func TestAppendRow_EmptyRow(t *testing.T) {
	b := New()
	b.AppendRow().AppendValues("second")
	require.NoError(t, b.Err())
	assert.Equal(t, 2, b.RowOffset())
}

func TestAppendRows(t *testing.T) {
	b := New()
	b.AppendRows(
		Row("a", "b"),
		Row(Annotate("c", WithKey("c"))),
	)
	require.NoError(t, b.Err())
	assert.Equal(t, 2, b.RowOffset())
	coord, _ := b.Coordinate("c")
	assert.Equal(t, "A2", coord)
}

func TestRow_PassesCellsThrough(t *testing.T) {
	annotated := Annotate("x", WithKey("x"))
	cells := Row("plain", annotated, &annotated, (*Cell)(nil))
	require.Len(t, cells, 4)
	assert.False(t, cells[0].IsAnnotated())
	assert.True(t, cells[1].IsAnnotated())
	assert.Equal(t, "x", cells[2].Key)
	assert.Nil(t, cells[3].Value)
}

// --- Offsets ---

func TestOffsets(t *testing.T) {
	b := New()
	b.SetRowOffset(4).SetColumnOffset(2).
		AppendRow(Annotate("v", WithKey("v")))
	require.NoError(t, b.Err())

	coord, _ := b.Coordinate("v")
	assert.Equal(t, "C5", coord)
	assert.Equal(t, 5, b.RowOffset())
	assert.Equal(t, 2, b.ColumnOffset())
}

func TestOffsets_NegativeClamped(t *testing.T) {
	b := New()
	b.SetRowOffset(-3).SetColumnOffset(-1)
	assert.Equal(t, 0, b.RowOffset())
	assert.Equal(t, 0, b.ColumnOffset())
}

// --- Sheets ---

func TestSelectSheet_CreatesMissingSheets(t *testing.T) {
	b := New()
	b.AppendValues(Annotate("k", WithKey("k"))).
		SetColumnOffset(3).
		SelectSheet(5)
	require.NoError(t, b.Err())

	assert.Equal(t, 6, b.Document().SheetCount())
	assert.Equal(t, "Sheet6", b.Sheet())
	assert.Equal(t, 0, b.RowOffset())
	assert.Equal(t, 0, b.ColumnOffset())
	assert.Empty(t, b.CoordinateMap())
	assert.Empty(t, b.RangeMap())
}

func TestSelectSheet_Title(t *testing.T) {
	b := New()
	b.SelectSheet(1, "Q1/Q2 Summary").AppendValues("x")
	require.NoError(t, b.Err())
	assert.Equal(t, "Q1_Q2 Summary", b.Sheet())

	f := reopen(t, b)
	assert.Equal(t, []string{"Sheet1", "Q1_Q2 Summary"}, f.GetSheetList())
	assert.Equal(t, "x", cellValue(t, f, "Q1_Q2 Summary", "A1"))
	assert.Equal(t, 1, f.GetActiveSheetIndex())
}

func TestSelectSheet_NegativeIndex(t *testing.T) {
	b := New()
	b.SelectSheet(-1)
	assert.ErrorIs(t, b.Err(), ErrInvalidSheetReference)
}

func TestUseSheet(t *testing.T) {
	b := New()
	b.SelectSheet(2).AppendValues("on three").
		UseSheet("Sheet1").AppendValues("on one")
	require.NoError(t, b.Err())
	assert.Equal(t, "Sheet1", b.Sheet())
	assert.Equal(t, 1, b.RowOffset())

	f := reopen(t, b)
	assert.Equal(t, "on one", cellValue(t, f, "Sheet1", "A1"))
	assert.Equal(t, "on three", cellValue(t, f, "Sheet3", "A1"))
}

func TestUseSheet_Unknown(t *testing.T) {
	b := New()
	b.UseSheet("missing")
	assert.ErrorIs(t, b.Err(), ErrInvalidSheetReference)
}

func TestResetSheet(t *testing.T) {
	b := New()
	b.AppendValues(Annotate("k", WithKey("k"))).ResetSheet()
	require.NoError(t, b.Err())
	assert.Equal(t, "", b.Sheet())
	assert.Equal(t, 0, b.RowOffset())
	assert.Empty(t, b.CoordinateMap())
}

// --- Errors ---

func TestBuilder_NoDocument(t *testing.T) {
	var b Builder
	b.AppendValues("x")
	assert.ErrorIs(t, b.Err(), ErrNoActiveSheet)

	_, err := b.FullRange()
	assert.ErrorIs(t, err, ErrNoActiveSheet)
}

func TestNewWithDocument_Nil(t *testing.T) {
	_, err := NewWithDocument(nil)
	assert.ErrorIs(t, err, ErrInvalidDocument)

	var typed *ExcelizeDocument
	_, err = NewWithDocument(typed)
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestSetDocument_Nil(t *testing.T) {
	b := New()
	b.SetDocument(nil)
	assert.ErrorIs(t, b.Err(), ErrInvalidDocument)
}

func TestSetDocument_ResetsState(t *testing.T) {
	b := New()
	b.AppendValues(Annotate("k", WithKey("k")))
	doc := NewExcelizeDocument()
	b.SetDocument(doc)
	require.NoError(t, b.Err())
	assert.Same(t, doc, b.Document())
	assert.Equal(t, 0, b.RowOffset())
	assert.Empty(t, b.RowMap())
}

func TestBuilder_StickyError(t *testing.T) {
	b := New()
	b.SelectSheet(-1).AppendValues("ignored").SetRowOffset(10)
	assert.ErrorIs(t, b.Err(), ErrInvalidSheetReference)
	assert.Equal(t, 0, b.RowOffset())

	b.ClearErr().AppendValues("written")
	require.NoError(t, b.Err())
	assert.Equal(t, 1, b.RowOffset())
}

func TestAppendRow_FailureKeepsKeyMaps(t *testing.T) {
	doc := &failingDocument{Document: NewExcelizeDocument(), failAt: "B2"}
	b, err := NewWithDocument(doc)
	require.NoError(t, err)

	b.AppendValues(Annotate("ok", WithKey("ok"))).
		AppendValues(Annotate("a", WithKey("a")), "b")

	var rowErr *RowError
	require.ErrorAs(t, b.Err(), &rowErr)
	assert.ErrorIs(t, b.Err(), errWriteFailed)
	assert.Equal(t, 2, rowErr.Row)
	assert.Equal(t, 1, rowErr.Col)
	assert.Equal(t, "Sheet1", rowErr.Sheet)

	_, ok := b.Coordinate("a")
	assert.False(t, ok)
	_, ok = b.Coordinate("ok")
	assert.True(t, ok)
	assert.Equal(t, 2, b.RowOffset())
}

// --- Lookups ---

func TestLookups_AbsentKey(t *testing.T) {
	b := New()
	_, ok := b.Coordinate("nope")
	assert.False(t, ok)
	_, ok = b.Column("nope")
	assert.False(t, ok)
	_, ok = b.RowOf("nope")
	assert.False(t, ok)
	_, ok = b.Range("nope")
	assert.False(t, ok)
}

func TestMaps_AreCopies(t *testing.T) {
	b := New()
	b.AppendValues(Annotate("a", WithKey("a")), Annotate("b", WithKey("b"), WithColSpan(2)))
	require.NoError(t, b.Err())

	assert.Equal(t, map[string]string{"a": "A1", "b": "B1"}, b.CoordinateMap())
	assert.Equal(t, map[string]string{"a": "A", "b": "B"}, b.ColumnMap())
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, b.RowMap())
	assert.Equal(t, map[string]string{"a": "A1:A1", "b": "B1:C1"}, b.RangeMap())

	m := b.CoordinateMap()
	m["a"] = "Z99"
	coord, _ := b.Coordinate("a")
	assert.Equal(t, "A1", coord)
}

// --- Ranges and formatting ---

func TestFullRange(t *testing.T) {
	b := New()
	b.AppendValues("a", "b", "c").AppendValues("d")
	rng, err := b.FullRange()
	require.NoError(t, err)
	assert.Equal(t, "A1:C2", rng)
}

func TestFullRange_ColumnOffset(t *testing.T) {
	b := New()
	b.SetColumnOffset(1).AppendValues("a", "b")
	rng, err := b.FullRange()
	require.NoError(t, err)
	assert.Equal(t, "B1:C1", rng)
}

func TestFullRange_IncludesMerges(t *testing.T) {
	b := New()
	b.AppendValues(Annotate("wide", WithColSpan(4), WithRowSpan(2)))
	rng, err := b.FullRange()
	require.NoError(t, err)
	assert.Equal(t, "A1:D2", rng)
}

func TestFullRange_TrailingEmptyCells(t *testing.T) {
	b := New()
	b.AppendValues("a", "", Annotate("", WithKey("k"))).
		AppendValues("b", Annotate(nil, WithKey("n"), WithSkip(2)), nil)
	require.NoError(t, b.Err())

	rng, err := b.FullRange()
	require.NoError(t, err)
	assert.Equal(t, "A1:D2", rng)
	keyRange, _ := b.Range("k")
	assert.Equal(t, "C1:C1", keyRange)
}

func TestFullRange_EmptySheet(t *testing.T) {
	rng, err := New().FullRange()
	require.NoError(t, err)
	assert.Equal(t, "A1:A1", rng)
}

func TestSetWrapText(t *testing.T) {
	b := New()
	b.AppendValues("a long line of text", "short").SetWrapText("", true)
	require.NoError(t, b.Err())

	f := reopen(t, b)
	for _, cell := range []string{"A1", "B1"} {
		id, err := f.GetCellStyle("Sheet1", cell)
		require.NoError(t, err)
		style, err := f.GetStyle(id)
		require.NoError(t, err)
		require.NotNil(t, style.Alignment, cell)
		assert.True(t, style.Alignment.WrapText, cell)
	}
}

func TestSetWrapText_Range(t *testing.T) {
	b := New()
	b.AppendValues("a", "b").SetWrapText("B1", true)
	require.NoError(t, b.Err())

	f := reopen(t, b)
	id, err := f.GetCellStyle("Sheet1", "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(id)
	require.NoError(t, err)
	assert.True(t, style.Alignment == nil || !style.Alignment.WrapText)
}

func TestSetWrapText_InvalidRange(t *testing.T) {
	b := New()
	b.SetWrapText("nope", true)
	assert.Error(t, b.Err())
}

func TestSetAutoSize(t *testing.T) {
	b := New()
	b.AppendValues("id", "a much longer value").
		AppendValues("12345", "x").
		SetAutoSize("", "", true)
	require.NoError(t, b.Err())

	f := reopen(t, b)
	w, err := f.GetColWidth("Sheet1", "A")
	require.NoError(t, err)
	assert.InDelta(t, columnWidth(5), w, 0.01)
	w, err = f.GetColWidth("Sheet1", "B")
	require.NoError(t, err)
	assert.InDelta(t, columnWidth(19), w, 0.01)
}

func TestSetAutoSize_IgnoresHorizontalMerges(t *testing.T) {
	b := New()
	b.AppendValues(Annotate("a title spanning both columns", WithColSpan(2))).
		AppendValues("ab", "cd").
		SetAutoSize("A", "B", true)
	require.NoError(t, b.Err())

	f := reopen(t, b)
	w, err := f.GetColWidth("Sheet1", "A")
	require.NoError(t, err)
	assert.InDelta(t, columnWidth(2), w, 0.01)
}

func TestSetAutoSize_ReversedRange(t *testing.T) {
	b := New()
	b.AppendValues("abc", "defgh").SetAutoSize("B", "A", true)
	require.NoError(t, b.Err())

	f := reopen(t, b)
	w, err := f.GetColWidth("Sheet1", "A")
	require.NoError(t, err)
	assert.InDelta(t, columnWidth(3), w, 0.01)
	w, err = f.GetColWidth("Sheet1", "B")
	require.NoError(t, err)
	assert.InDelta(t, columnWidth(5), w, 0.01)
}

func TestSetAutoSize_StopsAtLastColumn(t *testing.T) {
	doc := NewExcelizeDocument()
	b, err := NewWithDocument(doc)
	require.NoError(t, err)

	b.SetAutoSize("A", "ZZZZZZ", true)
	require.NoError(t, b.Err())
	assert.Len(t, doc.autoSize["Sheet1"], 16384)
	assert.True(t, doc.autoSize["Sheet1"][16383])

	b.SetAutoSize("XFE", "XFF", true)
	assert.ErrorIs(t, b.Err(), ErrInvalidLabel)
}

func TestSetAutoSize_InvalidLabel(t *testing.T) {
	b := New()
	b.SetAutoSize("A1", "", true)
	assert.ErrorIs(t, b.Err(), ErrInvalidLabel)
}

func TestTextWidth(t *testing.T) {
	assert.Equal(t, 5, textWidth("hello"))
	assert.Equal(t, 4, textWidth("日本"))
	assert.Equal(t, 6, textWidth("ab\nlonger"))
	assert.Equal(t, maxColumnWidth, int(columnWidth(1000)))
}

// --- Logging ---

func TestBuilder_LogsRows(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	b := New(WithLogger(logger))
	b.AppendValues("a", Annotate("b", WithKey("b")))
	require.NoError(t, b.Err())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "row appended", entry.Message)
	assert.Equal(t, "Sheet1", entry.Data["sheet"])
	assert.Equal(t, 1, entry.Data["row"])
	assert.Equal(t, 1, entry.Data["keys"])
}

func TestBuilder_LogsFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	b := New(WithLogger(logger))
	b.SelectSheet(-2)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "builder operation failed", entry.Message)
	assert.ErrorIs(t, entry.Data[logrus.ErrorKey].(error), ErrInvalidSheetReference)
}

func TestAppendRow_WarnsOnClampedSpan(t *testing.T) {
	logger, hook := test.NewNullLogger()

	b := New(WithLogger(logger))
	b.AppendRow(Annotate("x", WithColSpan(0), WithSkip(-1)), Cell{Value: "y", Key: "y"})
	require.NoError(t, b.Err())

	var warnings []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings = append(warnings, e)
		}
	}
	require.Len(t, warnings, 1)
	assert.Equal(t, "A1", warnings[0].Data["cell"])
	assert.Equal(t, 0, warnings[0].Data["col_span"])
	assert.Equal(t, -1, warnings[0].Data["skip"])
}
