package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peekknuf/datatrust/internal/dataset"
	"github.com/peekknuf/datatrust/internal/profiler"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrParseFailure      = errors.New("failed to parse dataset")
)

type decoder func(ctx context.Context, data []byte) (*dataset.Dataset, error)

var decoders = map[string]decoder{
	".csv":     decodeCSV,
	".json":    decodeJSON,
	".xlsx":    decodeXLSX,
	".parquet": decodeParquet,
}

// Extensions lists the supported file extensions.
func Extensions() []string {
	return []string{".csv", ".json", ".xlsx", ".parquet"}
}

// Supported reports whether files with the given extension can be loaded.
func Supported(ext string) bool {
	_, ok := decoders[strings.ToLower(ext)]
	return ok
}

// LoadResult is a decoded dataset plus what the loader knows about the file.
type LoadResult struct {
	Dataset *dataset.Dataset
	Name    string
	Format  string
	SizeKB  float64
	// Hash fingerprints the dataset as a list of records. Unlike
	// Dataset.Hash it does not depend on the table rendering.
	Hash string
	// FileHash fingerprints the raw file bytes.
	FileHash string
}

// Load reads and decodes the file at path.
func Load(ctx context.Context, path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return Read(ctx, filepath.Base(path), f)
}

// Read decodes a dataset from r. The format comes from the extension of
// filename and the dataset name from its stem.
func Read(ctx context.Context, filename string, r io.Reader) (*LoadResult, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	decode, ok := decoders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}

	d, err := decode(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParseFailure, filename, err)
	}

	hash, err := recordsHash(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParseFailure, filename, err)
	}

	return &LoadResult{
		Dataset:  d,
		Name:     strings.TrimSuffix(filename, filepath.Ext(filename)),
		Format:   strings.TrimPrefix(ext, "."),
		SizeKB:   profiler.Round(float64(len(data))/1024, 2),
		Hash:     hash,
		FileHash: dataset.Fingerprint(data),
	}, nil
}

// recordsHash fingerprints the dataset serialized as a JSON array of
// row objects with keys in column order.
func recordsHash(d *dataset.Dataset) (string, error) {
	var buf bytes.Buffer
	names := d.Names()
	keys := make([][]byte, len(names))
	for j, n := range names {
		k, err := json.Marshal(n)
		if err != nil {
			return "", err
		}
		keys[j] = k
	}

	buf.WriteByte('[')
	for i := 0; i < d.Rows(); i++ {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteByte('{')
		for j, v := range d.Row(i) {
			if j > 0 {
				buf.WriteString(", ")
			}
			buf.Write(keys[j])
			buf.WriteString(": ")
			if err := writeJSONValue(&buf, v); err != nil {
				return "", err
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return dataset.Fingerprint(buf.Bytes()), nil
}

func writeJSONValue(buf *bytes.Buffer, v dataset.Value) error {
	switch v.Kind() {
	case dataset.KindNull:
		buf.WriteString("NaN")
		return nil
	case dataset.KindNumber:
		f, _ := v.Float()
		b, err := json.Marshal(f)
		if err != nil {
			// infinities
			buf.WriteString(v.String())
			return nil
		}
		buf.Write(b)
		return nil
	case dataset.KindBool:
		if v.String() == "True" {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	default:
		b, err := json.Marshal(v.String())
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}
