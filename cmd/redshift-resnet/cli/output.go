package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// printer renders command output as indented JSON or aligned text.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string) printer {
	return printer{format: format, w: os.Stdout}
}

func (p printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes an aligned table with a header row.
func (p printer) table(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	writeRow(tw, header)
	for _, row := range rows {
		writeRow(tw, row)
	}
	_ = tw.Flush()
}

// kv writes one name/value pair per line, aligned on the values.
func (p printer) kv(pairs [][2]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, pair := range pairs {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", pair[0], pair[1])
	}
	_ = tw.Flush()
}

func writeRow(w io.Writer, cols []string) {
	_, _ = fmt.Fprintln(w, strings.Join(cols, "\t"))
}
