// Package report renders batch results as the plain-text summary shown to
// users.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/kznrluk/pagerace/internal/batch"
)

// WriteResult writes the line for a single result.
func WriteResult(w io.Writer, r batch.Result) error {
	var err error
	if r.OK() {
		_, err = fmt.Fprintf(w, "%s downloaded: %d characters long.\n", r.URL, r.Length())
	} else {
		_, err = fmt.Fprintf(w, "%s failed: %v\n", r.URL, r.Err)
	}
	return err
}

// Write writes one line per result, in order, followed by the total
// execution time in milliseconds.
func Write(w io.Writer, b *batch.Batch) error {
	for _, r := range b.Results {
		if err := WriteResult(w, r); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Total execution time %d\n", b.Elapsed.Milliseconds())
	return err
}

// String renders b the same way Write does.
func String(b *batch.Batch) string {
	var sb strings.Builder
	_ = Write(&sb, b)
	return sb.String()
}
