package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cast"

	"github.com/peekknuf/datatrust/internal/dataset"
)

var errJSONShape = errors.New("expected an array of records or an object of columns")

// decodeJSON accepts either an array of row objects or an object mapping
// column names to arrays or to index-keyed objects. Column order follows
// first appearance in the document.
func decodeJSON(_ context.Context, data []byte) (*dataset.Dataset, error) {
	dec := newJSONDecoder(data)
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	var b columnBuilder
	switch tok {
	case json.Delim('['):
		err = b.readRecords(dec)
	case json.Delim('{'):
		err = b.readColumns(dec)
	default:
		return nil, errJSONShape
	}
	if err != nil {
		return nil, err
	}
	return b.build()
}

func newJSONDecoder(data []byte) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec
}

type columnBuilder struct {
	names  []string
	values map[string][]dataset.Value
	rows   int
}

func (b *columnBuilder) column(name string) []dataset.Value {
	if b.values == nil {
		b.values = make(map[string][]dataset.Value)
	}
	if _, ok := b.values[name]; !ok {
		b.names = append(b.names, name)
		b.values[name] = make([]dataset.Value, b.rows)
	}
	return b.values[name]
}

func (b *columnBuilder) readRecords(dec *json.Decoder) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if tok != json.Delim('{') {
			return fmt.Errorf("record %d: %w", b.rows, errJSONShape)
		}

		row := make(map[string]dataset.Value)
		for dec.More() {
			key, val, err := readMember(dec)
			if err != nil {
				return fmt.Errorf("record %d: %w", b.rows, err)
			}
			b.column(key)
			row[key] = val
		}
		if _, err := dec.Token(); err != nil {
			return err
		}

		for _, name := range b.names {
			b.values[name] = append(b.values[name], row[name])
		}
		b.rows++
	}
	_, err := dec.Token()
	return err
}

func (b *columnBuilder) readColumns(dec *json.Decoder) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return errJSONShape
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
		cells, err := columnCells(raw)
		if err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}

		b.column(name)
		b.values[name] = cells
		b.rows = max(b.rows, len(cells))
	}
	_, err := dec.Token()
	return err
}

// columnCells decodes one column given as an array or as an object keyed by
// row index.
func columnCells(raw json.RawMessage) ([]dataset.Value, error) {
	dec := newJSONDecoder(raw)
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	var cells []dataset.Value
	switch tok {
	case json.Delim('['):
		for dec.More() {
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, err
			}
			cells = append(cells, jsonValue(v))
		}
	case json.Delim('{'):
		for dec.More() {
			_, val, err := readMember(dec)
			if err != nil {
				return nil, err
			}
			cells = append(cells, val)
		}
	default:
		return nil, errJSONShape
	}
	return cells, nil
}

func readMember(dec *json.Decoder) (string, dataset.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", dataset.Value{}, err
	}
	key, ok := tok.(string)
	if !ok {
		return "", dataset.Value{}, errJSONShape
	}
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", dataset.Value{}, err
	}
	return key, jsonValue(v), nil
}

func (b *columnBuilder) build() (*dataset.Dataset, error) {
	cols := make([]dataset.Column, len(b.names))
	for j, name := range b.names {
		vals := b.values[name]
		if len(vals) < b.rows {
			vals = append(vals, make([]dataset.Value, b.rows-len(vals))...)
		}
		cols[j] = dataset.NewColumn(name, vals)
	}
	return dataset.New(cols...)
}

func jsonValue(v any) dataset.Value {
	switch x := v.(type) {
	case nil:
		return dataset.Null()
	case json.Number:
		f, err := cast.ToFloat64E(x.String())
		if err != nil {
			return dataset.Text(x.String())
		}
		return dataset.Number(f)
	case bool:
		return dataset.Bool(x)
	case string:
		return dataset.Text(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return dataset.Other(fmt.Sprint(x))
		}
		return dataset.Other(string(b))
	}
}
