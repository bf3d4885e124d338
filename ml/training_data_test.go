package ml

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

func basicSchema() Schema {
	return NewSchema([]string{FeatureNumTickets, FeatureTrades}, "")
}

func TestReadDataset(t *testing.T) {
	input := "user,num_tickets,trades,is_scalper\n" +
		"a,1,10,1\n" +
		"b,10,1,0\n" +
		"c, 3 ,2,0\n"

	dataset, err := ReadDataset(strings.NewReader(input), basicSchema(), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, dataset.Len())
	assert.Equal(t, [][]float64{{1, 10}, {10, 1}, {3, 2}}, dataset.Features)
	assert.Equal(t, []int{1, 0, 0}, dataset.Labels)

	negatives, positives := dataset.ClassCounts()
	assert.Equal(t, 2, negatives)
	assert.Equal(t, 1, positives)
}

func TestReadDatasetColumnOrderFollowsSchema(t *testing.T) {
	input := "is_scalper,trades,num_tickets\n1,10,1\n"

	dataset, err := ReadDataset(strings.NewReader(input), basicSchema(), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 10}, dataset.Features[0])
}

func TestReadDatasetErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		wantMsg string
	}{
		{
			name:    "missing feature column",
			input:   "num_tickets,is_scalper\n1,1\n",
			wantErr: ErrMissingColumn,
			wantMsg: "trades",
		},
		{
			name:    "missing label column",
			input:   "num_tickets,trades\n1,2\n",
			wantErr: ErrMissingColumn,
			wantMsg: "is_scalper",
		},
		{
			name:    "label out of range",
			input:   "num_tickets,trades,is_scalper\n1,2,3\n",
			wantErr: ErrInvalidLabel,
		},
		{
			name:    "no rows",
			input:   "num_tickets,trades,is_scalper\n",
			wantErr: ErrEmptyDataset,
		},
		{
			name:    "non numeric feature",
			input:   "num_tickets,trades,is_scalper\nmany,2,1\n",
			wantMsg: `line 2: column "num_tickets": not a number: "many"`,
		},
		{
			name:    "short row",
			input:   "num_tickets,trades,is_scalper\n1\n",
			wantMsg: `column "trades": missing value`,
		},
		{
			name:    "empty input",
			input:   "",
			wantMsg: "no header row",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDataset(strings.NewReader(tt.input), basicSchema(), CSVOptions{})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestReadDatasetReportsEveryBadRow(t *testing.T) {
	input := "num_tickets,trades,is_scalper\n" +
		"x,1,1\n" +
		"1,1,1\n" +
		"2,y,0\n" +
		"3,3,7\n"

	_, err := ReadDataset(strings.NewReader(input), basicSchema(), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "line 4")
	assert.Contains(t, err.Error(), "line 5")
	assert.True(t, errors.Is(err, ErrInvalidLabel))
}

func TestReadDatasetStopsAfterTooManyBadRows(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("num_tickets,trades,is_scalper\n")
	for i := 0; i < maxRowErrors+5; i++ {
		sb.WriteString("bad,1,1\n")
	}

	_, err := ReadDataset(strings.NewReader(sb.String()), basicSchema(), CSVOptions{})
	require.Error(t, err)
	assert.Equal(t, maxRowErrors, strings.Count(err.Error(), "not a number"))
}

func TestReadDatasetStripsByteOrderMark(t *testing.T) {
	input := "\ufeffnum_tickets,trades,is_scalper\n1,10,1\n10,1,0\n"

	dataset, err := ReadDataset(strings.NewReader(input), basicSchema(), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, dataset.Len())
}

func TestReadDatasetUTF16(t *testing.T) {
	encoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, err := encoder.String("num_tickets;trades;is_scalper\n1;10;1\n10;1;0\n")
	require.NoError(t, err)

	dataset, err := ReadDataset(bytes.NewReader([]byte(encoded)), basicSchema(), CSVOptions{Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, dataset.Labels)
}

func TestReadDatasetLegacyEncoding(t *testing.T) {
	// 0xfa is "ú" in windows-1258
	input := []byte("ghi_ch\xfa,num_tickets,trades,is_scalper\nx,1,10,1\ny,10,1,0\n")

	dataset, err := ReadDataset(bytes.NewReader(input), basicSchema(), CSVOptions{Encoding: "windows-1258"})
	require.NoError(t, err)
	assert.Equal(t, 2, dataset.Len())

	_, err = ReadDataset(bytes.NewReader(input), basicSchema(), CSVOptions{Encoding: "klingon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported encoding")
}

func TestLoadDatasetMissingFile(t *testing.T) {
	_, err := LoadDataset(filepath.Join(t.TempDir(), "nope.csv"), basicSchema(), CSVOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadRecords(t *testing.T) {
	input := "user_id,num_tickets,trades,email\n" +
		"u1,1,10,a@example.com\n" +
		"u2,10,1,b@example.com\n"

	records, err := ReadRecords(strings.NewReader(input), "user_id", basicSchema().Features, CSVOptions{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Record{ID: "u1", Values: []float64{1, 10}}, records[0])
	assert.Equal(t, Record{ID: "u2", Values: []float64{10, 1}}, records[1])

	_, err = ReadRecords(strings.NewReader(input), "customer", basicSchema().Features, CSVOptions{})
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestParseFeature(t *testing.T) {
	value, err := ParseFeature(" 2.5 ")
	require.NoError(t, err)
	assert.Equal(t, 2.5, value)

	for _, raw := range []string{"", "abc", "NaN", "+Inf"} {
		_, err := ParseFeature(raw)
		assert.Error(t, err, raw)
	}
}
