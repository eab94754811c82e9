package xlbuild

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"
)

// WriteHTTP sends the document as a file download named filename plus the
// format's extension. Nothing is written to w if serialization fails.
func (b *Builder) WriteHTTP(w http.ResponseWriter, filename string, format Format) error {
	ext, ok := format.Extension()
	if !ok {
		return fmt.Errorf("format %q: %w", format, ErrUnsupportedFormat)
	}
	if filename == "" {
		filename = "excel"
	}

	var buf bytes.Buffer
	if err := b.Write(&buf, format); err != nil {
		return err
	}

	h := w.Header()
	h.Set("Content-Type", format.ContentType())
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename + ext}))
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	h.Set("Cache-Control", "max-age=0, must-revalidate")
	h.Set("Pragma", "public")
	h.Set("Expires", "Mon, 26 Jul 1997 05:00:00 GMT")
	h.Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)

	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
