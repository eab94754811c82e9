package xlbuild

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format names an export format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLSM Format = "xlsm"
	FormatXLTX Format = "xltx"
	FormatXLTM Format = "xltm"
	FormatCSV  Format = "csv"
)

var formatInfo = map[Format]struct {
	ext         string
	contentType string
}{
	FormatXLSX: {".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	FormatXLSM: {".xlsm", "application/vnd.ms-excel.sheet.macroEnabled.12"},
	FormatXLTX: {".xltx", "application/vnd.openxmlformats-officedocument.spreadsheetml.template"},
	FormatXLTM: {".xltm", "application/vnd.ms-excel.template.macroEnabled.12"},
	FormatCSV:  {".csv", "text/csv; charset=utf-8"},
}

// ParseFormat parses a format name or file extension such as "xlsx" or ".csv".
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	if _, ok := formatInfo[f]; !ok {
		return "", fmt.Errorf("format %q: %w", s, ErrUnsupportedFormat)
	}
	return f, nil
}

// Extension returns the file extension of the format, including the dot.
func (f Format) Extension() (string, bool) {
	info, ok := formatInfo[f]
	return info.ext, ok
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	return formatInfo[f].contentType
}

// Write serializes the document to w in the given format.
func (b *Builder) Write(w io.Writer, format Format) error {
	if b.doc == nil {
		return ErrInvalidDocument
	}
	return b.doc.Write(w, format)
}

// WriteBytes serializes the document and returns the output as bytes.
func (b *Builder) WriteBytes(format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Write(&buf, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveAs writes the document to path, choosing the format from the file
// extension.
func (b *Builder) SaveAs(path string) error {
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file %q: %w", path, err)
	}

	if err := b.Write(out, format); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}
