package xlbuild

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// Severity indicates the severity of a validation issue.
type Severity int

const (
	SeverityError   Severity = iota // Layout will fail when applied
	SeverityWarning                 // Layout may produce unexpected results
)

// ValidationIssue represents a single problem found in a layout.
type ValidationIssue struct {
	Severity Severity
	Sheet    int // position of the sheet in the layout
	Line     int // YAML line, 0 if unknown
	Message  string
}

// String formats the issue as "[ERROR] sheet 0 line 7: message" or "[WARN] ...".
func (v ValidationIssue) String() string {
	sev := "ERROR"
	if v.Severity == SeverityWarning {
		sev = "WARN"
	}
	if v.Line > 0 {
		return fmt.Sprintf("[%s] sheet %d line %d: %s", sev, v.Sheet, v.Line, v.Message)
	}
	return fmt.Sprintf("[%s] sheet %d: %s", sev, v.Sheet, v.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []ValidationIssue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateLayout checks a layout without a document: expression syntax,
// sheet references, offsets, spans and skips, and keys reused within a sheet.
func ValidateLayout(l *Layout) []ValidationIssue {
	var issues []ValidationIssue
	notationBegin, notationEnd := "${", "}"

	for i, s := range l.Sheets {
		add := func(sev Severity, line int, format string, args ...any) {
			issues = append(issues, ValidationIssue{
				Severity: sev,
				Sheet:    i,
				Line:     line,
				Message:  fmt.Sprintf(format, args...),
			})
		}

		if s.Index != nil && *s.Index < 0 {
			add(SeverityError, 0, "sheet index %d is negative", *s.Index)
		}
		if s.Index != nil && s.Name != "" {
			add(SeverityWarning, 0, "both index and name given; name %q wins", s.Name)
		}
		if s.RowOffset < 0 {
			add(SeverityWarning, 0, "row_offset %d is negative and will be treated as 0", s.RowOffset)
		}
		if s.ColumnOffset < 0 {
			add(SeverityWarning, 0, "column_offset %d is negative and will be treated as 0", s.ColumnOffset)
		}
		if s.AutoSize != nil {
			if _, _, err := splitColumnRange(s.AutoSize.Range); err != nil {
				add(SeverityError, 0, "%v", err)
			}
		}
		if s.WrapText != nil && s.WrapText.Range != "" {
			if _, err := ParseAreaRef(s.WrapText.Range); err != nil {
				add(SeverityError, 0, "wrap_text: %v", err)
			}
		}

		keys := make(map[string]int)
		checkCells := func(cells []CellLayout, inEach bool) {
			for _, c := range cells {
				for _, f := range []struct {
					name string
					n    *int
				}{{"col", c.Col}, {"row", c.Row}, {"skip", c.Skip}} {
					if f.n != nil && *f.n < 1 {
						add(SeverityWarning, c.Line, "%s %d is below 1 and will be treated as 1", f.name, *f.n)
					}
				}
				if c.Key != "" && !inEach {
					if prev, ok := keys[c.Key]; ok {
						add(SeverityWarning, c.Line, "key %q already used on line %d and will be overwritten", c.Key, prev)
					}
					keys[c.Key] = c.Line
				}
				if !inEach {
					continue
				}
				// Only each templates are evaluated; other values are written as-is.
				if str, ok := c.Value.(string); ok {
					for _, msg := range checkExpressionSyntax(str, notationBegin, notationEnd) {
						add(SeverityError, c.Line, "value: %s", msg)
					}
				}
				if c.Key == "" {
					continue
				}
				for _, msg := range checkExpressionSyntax(c.Key, notationBegin, notationEnd) {
					add(SeverityError, c.Line, "key: %s", msg)
				}
				if !strings.Contains(c.Key, notationBegin) {
					add(SeverityWarning, c.Line, "key %q inside each is recorded for the last item only", c.Key)
				}
			}
		}

		for _, row := range s.Rows {
			if row.Each == nil {
				checkCells(row.Cells, false)
				continue
			}
			if row.Each.Items == "" {
				add(SeverityError, row.Line, "each block requires items")
			} else if msg := compileCheck(row.Each.Items); msg != "" {
				add(SeverityError, row.Line, "each items: %s", msg)
			}
			checkCells(row.Each.Cells, true)
		}
	}
	return issues
}

// checkExpressionSyntax compiles every ${...} expression in value and
// returns a message per syntax error.
func checkExpressionSyntax(value, notationBegin, notationEnd string) []string {
	var msgs []string
	for _, seg := range ParseExpressions(value, notationBegin, notationEnd) {
		if !seg.IsExpression {
			continue
		}
		if msg := compileCheck(seg.Text); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// compileCheck compiles an expression for syntax checking.
func compileCheck(expression string) string {
	if _, err := expr.Compile(expression, expr.AllowUndefinedVariables()); err != nil {
		return fmt.Sprintf("invalid expression syntax %q: %v", expression, err)
	}
	return ""
}
