package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/peekknuf/datatrust/internal/dataset"
)

var errNoSheets = errors.New("workbook has no sheets")

// decodeXLSX reads the first sheet. The first row is the header and cells
// follow the CSV typing rules.
func decodeXLSX(_ context.Context, data []byte) (*dataset.Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errNoSheets
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, errEmptyInput
	}

	header := rows[0]
	body := rows[1:]
	for i, row := range body {
		if len(row) > len(header) {
			return nil, fmt.Errorf("row %d: expected %d cells, saw %d", i+2, len(header), len(row))
		}
	}
	return fromStrings(header, body)
}
