package geodata

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanCSV(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name     string
		input    string
		rows     int
		columns  []string
		wantErr  bool
		firstRow map[string]any
	}{
		{
			name:    "drops duplicates",
			input:   "name,city\na,x\na,x\nb,y\n",
			rows:    2,
			columns: []string{"name", "city"},
		},
		{
			name: "drops missing and out of range coordinates",
			input: "name,latitude,longitude\n" +
				"ok,52.37,4.89\n" +
				"nolat,,4.89\n" +
				"badlat,91,4.89\n" +
				"badlon,10,-181\n" +
				"text,north,4.89\n" +
				"edge,-90,180\n",
			rows:     2,
			columns:  []string{"name", "latitude", "longitude"},
			firstRow: map[string]any{"name": "ok", "latitude": json.Number("52.37"), "longitude": json.Number("4.89")},
		},
		{
			name:    "latitude only keeps empty values",
			input:   "name,latitude\na,\nb,100\n",
			rows:    1,
			columns: []string{"name", "latitude"},
		},
		{
			name:    "empty document",
			input:   "",
			wantErr: true,
		},
		{
			name:    "header only",
			input:   "latitude,longitude\n",
			rows:    0,
			columns: []string{"latitude", "longitude"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dataset, err := CleanCSV(strings.NewReader(tt.input), now)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidContent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rows, dataset.Metadata.Count)
			assert.Len(t, dataset.Data, tt.rows)
			assert.Equal(t, tt.columns, dataset.Metadata.Columns)
			assert.Equal(t, "2023-11-14T22:13:20Z", dataset.Metadata.GeneratedAt)
			if tt.firstRow != nil {
				assert.Equal(t, tt.firstRow, dataset.Data[0])
			}
		})
	}
}

func TestCleanCSVEncodesAsJSON(t *testing.T) {
	dataset, err := CleanCSV(strings.NewReader("id,latitude,longitude,note\n7,1.5,2.5,\n"), time.Now())
	require.NoError(t, err)

	encoded, err := json.Marshal(dataset.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":7,"latitude":1.5,"longitude":2.5,"note":null}]`, string(encoded))
}
