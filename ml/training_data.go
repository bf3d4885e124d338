package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// maxRowErrors caps how many bad rows are reported before parsing stops.
const maxRowErrors = 10

// CSVOptions controls how delimited dataset files are read.
type CSVOptions struct {
	// Delimiter defaults to ','.
	Delimiter rune
	// Encoding is a WHATWG encoding label such as "utf-8", "utf-16le" or
	// "windows-1258". Empty means UTF-8.
	Encoding string
}

// Dataset is a labelled training set whose columns follow Schema order.
type Dataset struct {
	Schema   Schema
	Features [][]float64
	Labels   []int
}

func (d *Dataset) Len() int {
	return len(d.Labels)
}

// ClassCounts returns the number of rows labelled 0 and 1.
func (d *Dataset) ClassCounts() (negatives, positives int) {
	for _, label := range d.Labels {
		if label == 1 {
			positives++
		} else {
			negatives++
		}
	}
	return negatives, positives
}

// Record is one unlabelled row keyed by an identifier column.
type Record struct {
	ID     string
	Values []float64
}

func LoadDataset(path string, schema Schema, opts CSVOptions) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	dataset, err := ReadDataset(file, schema, opts)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return dataset, nil
}

func ReadDataset(r io.Reader, schema Schema, opts CSVOptions) (*Dataset, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	reader, err := newCSVReader(r, opts)
	if err != nil {
		return nil, err
	}
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset has no header row")
		}
		return nil, err
	}
	columns := append(append([]string(nil), schema.Features...), schema.Label)
	index, err := columnIndex(header, columns)
	if err != nil {
		return nil, err
	}
	labelIdx := index[len(index)-1]
	featureIdx := index[:len(index)-1]

	dataset := &Dataset{Schema: schema}
	var rowErrs error
	bad := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)

		vector, err := parseVector(row, featureIdx, schema.Features)
		if err == nil {
			var label int
			label, err = parseLabel(cell(row, labelIdx))
			if err == nil {
				dataset.Features = append(dataset.Features, vector)
				dataset.Labels = append(dataset.Labels, label)
				continue
			}
			err = fmt.Errorf("column %q: %w", schema.Label, err)
		}
		rowErrs = multierr.Append(rowErrs, fmt.Errorf("line %d: %w", line, err))
		bad++
		if bad >= maxRowErrors {
			break
		}
	}
	if rowErrs != nil {
		return nil, rowErrs
	}
	if dataset.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	return dataset, nil
}

// LoadRecords reads an identifier column and the given feature columns from
// a delimited file, for batch scoring.
func LoadRecords(path, idColumn string, features []string, opts CSVOptions) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records: %w", err)
	}
	defer file.Close()

	records, err := ReadRecords(file, idColumn, features, opts)
	if err != nil {
		return nil, fmt.Errorf("read records %s: %w", path, err)
	}
	return records, nil
}

func ReadRecords(r io.Reader, idColumn string, features []string, opts CSVOptions) ([]Record, error) {
	if idColumn == "" {
		return nil, errors.New("id column is required")
	}
	reader, err := newCSVReader(r, opts)
	if err != nil {
		return nil, err
	}
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("records file has no header row")
		}
		return nil, err
	}
	index, err := columnIndex(header, append([]string{idColumn}, features...))
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0)
	var rowErrs error
	bad := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		vector, err := parseVector(row, index[1:], features)
		if err != nil {
			rowErrs = multierr.Append(rowErrs, fmt.Errorf("line %d: %w", line, err))
			bad++
			if bad >= maxRowErrors {
				break
			}
			continue
		}
		records = append(records, Record{
			ID:     strings.TrimSpace(cell(row, index[0])),
			Values: vector,
		})
	}
	if rowErrs != nil {
		return nil, rowErrs
	}
	return records, nil
}

// ParseFeature parses one numeric feature value.
func ParseFeature(raw string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	return value, nil
}

func newCSVReader(r io.Reader, opts CSVOptions) (*csv.Reader, error) {
	decoded, err := decodeReader(r, opts.Encoding)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(decoded)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.TrimLeadingSpace = true
	// short rows are reported per column rather than failing the whole file
	reader.FieldsPerRecord = -1
	return reader, nil
}

// decodeReader converts the input to UTF-8. A leading UTF-8 or UTF-16 byte
// order mark always wins over the configured encoding and is stripped.
func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(encoding))
	if name == "" || name == "utf-8" || name == "utf8" {
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", encoding, err)
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

func columnIndex(header []string, columns []string) ([]int, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := positions[name]; !dup {
			positions[name] = i
		}
	}
	index := make([]int, len(columns))
	var missing []string
	for i, name := range columns {
		pos, ok := positions[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		index[i] = pos
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return index, nil
}

func parseVector(row []string, index []int, names []string) ([]float64, error) {
	vector := make([]float64, len(index))
	for i, pos := range index {
		if pos >= len(row) {
			return nil, fmt.Errorf("column %q: missing value", names[i])
		}
		value, err := ParseFeature(row[pos])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", names[i], err)
		}
		vector[i] = value
	}
	return vector, nil
}

func cell(row []string, pos int) string {
	if pos >= len(row) {
		return ""
	}
	return row[pos]
}

func parseLabel(raw string) (int, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLabel, raw)
	}
	switch value {
	case 0:
		return 0, nil
	case 1:
		return 1, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLabel, raw)
	}
}
