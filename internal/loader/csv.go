package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cast"

	"github.com/peekknuf/datatrust/internal/dataset"
)

const delimiterSampleSize = 4096

// candidateDelimiters is ordered; on equal counts the earlier one wins.
var candidateDelimiters = []byte{',', ';', '\t', '|'}

// naTokens are read as missing values.
var naTokens = map[string]bool{
	"": true, "NA": true, "N/A": true, "NaN": true, "nan": true,
	"null": true, "NULL": true, "None": true,
}

var boolTokens = map[string]bool{
	"True": true, "true": true, "TRUE": true,
	"False": false, "false": false, "FALSE": false,
}

var errEmptyInput = errors.New("no columns to parse")

// DetectDelimiter picks the most frequent candidate delimiter within the
// first few lines of data, defaulting to a comma.
func DetectDelimiter(data []byte) rune {
	sample := data[:min(len(data), delimiterSampleSize)]

	counts := make(map[byte]int, len(candidateDelimiters))
	lines := 0
	for _, b := range sample {
		if b == '\n' {
			lines++
			if lines >= 5 {
				break
			}
			continue
		}
		if bytes.IndexByte(candidateDelimiters, b) >= 0 {
			counts[b]++
		}
	}

	best, bestCount := byte(','), 0
	for _, d := range candidateDelimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return rune(best)
}

func decodeCSV(_ context.Context, data []byte) (*dataset.Dataset, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = DetectDelimiter(data)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) > len(header) {
			line, _ := r.FieldPos(0)
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(header), len(rec))
		}
		rows = append(rows, rec)
	}
	return fromStrings(header, rows)
}

// fromStrings builds typed columns from text cells. A column is numeric when
// every non-missing cell parses as a number, boolean when every one is a
// boolean token, and text otherwise.
func fromStrings(header []string, rows [][]string) (*dataset.Dataset, error) {
	names := uniqueNames(header)
	cols := make([]dataset.Column, len(names))

	for j, name := range names {
		cells := make([]string, len(rows))
		missing := make([]bool, len(rows))
		numeric, boolean := true, true
		for i, row := range rows {
			if j < len(row) {
				cells[i] = row[j]
			}
			if naTokens[cells[i]] {
				missing[i] = true
				continue
			}
			if _, err := cast.ToFloat64E(cells[i]); err != nil {
				numeric = false
			}
			if _, ok := boolTokens[cells[i]]; !ok {
				boolean = false
			}
		}

		values := make([]dataset.Value, len(rows))
		for i, cell := range cells {
			switch {
			case missing[i]:
				values[i] = dataset.Null()
			case numeric:
				values[i] = dataset.Number(cast.ToFloat64(cell))
			case boolean:
				values[i] = dataset.Bool(boolTokens[cell])
			default:
				values[i] = dataset.Text(cell)
			}
		}
		cols[j] = dataset.NewColumn(name, values)
	}
	return dataset.New(cols...)
}

// uniqueNames suffixes repeated header names with ".1", ".2" and so on, and
// names blank headers after their position.
func uniqueNames(header []string) []string {
	used := make(map[string]bool, len(header))
	repeats := make(map[string]int)
	out := make([]string, len(header))
	for i, h := range header {
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for used[name] {
			repeats[h]++
			name = h + "." + strconv.Itoa(repeats[h])
		}
		used[name] = true
		out[i] = name
	}
	return out
}
