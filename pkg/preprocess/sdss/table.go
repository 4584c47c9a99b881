package sdss

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/contenthash"
)

// TableRow is one row of a CasJobs CSV export, keyed by column name.
type TableRow map[string]string

// Fields converts a row into the raw field mapping the checkpoint schema
// consumes. Values stay strings; RecordSchema parses the numeric ones.
func (r TableRow) Fields() map[string]any {
	fields := make(map[string]any, len(r))
	for key, value := range r {
		fields[key] = value
	}
	return fields
}

// ReadTable parses a CasJobs CSV export. The first line is the header;
// every following line becomes a TableRow. Rows with a field count that
// differs from the header are rejected by the CSV reader.
func ReadTable(r io.Reader) ([]TableRow, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("table export is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read table header: %w", err)
	}

	var rows []TableRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read table row: %w", err)
		}

		row := make(TableRow, len(header))
		for i, column := range header {
			row[column] = record[i]
		}
		rows = append(rows, row)
	}
}

// DatasetGUID derives a stable identifier for a set of rows by digesting
// the named column's values in row order. Subsets drawn in a different
// order produce different identifiers on purpose: the identifier names
// the exact slice of the table a run operated on.
func DatasetGUID(rows []TableRow, column string) (string, error) {
	values := make([]string, 0, len(rows))
	for i, row := range rows {
		value, ok := row[column]
		if !ok {
			return "", fmt.Errorf("row %d has no column %q", i, column)
		}
		values = append(values, value)
	}
	return contenthash.Keys(values), nil
}
