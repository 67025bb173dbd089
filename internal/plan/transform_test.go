package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransforms(t *testing.T) {
	tests := []struct {
		name    string
		fn      Transform
		in      any
		want    any
		wantErr bool
	}{
		{"trim string", Trim, "  alice ", "alice", false},
		{"trim bytes", Trim, []byte(" bob\t"), "bob", false},
		{"trim nil", Trim, nil, nil, false},
		{"trim or empty nil", TrimOrEmpty, nil, "", false},
		{"float from text", Float, "12.50", 12.5, false},
		{"float from int", Float, int64(3), 3.0, false},
		{"float nil", Float, nil, nil, false},
		{"float garbage", Float, "abc", nil, true},
		{"int string from decimal", IntString, 1042.0, "1042", false},
		{"int string from text", IntString, "77.0", "77", false},
		{"int string from int", IntString, int64(5), "5", false},
		{"int string nil", IntString, nil, nil, false},
		{"iso time", ISOTime, time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC), "2026-10-19T08:30:00", false},
		{"iso time passthrough", ISOTime, "2026-10-19", "2026-10-19", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	task := Default()[2]
	names := task.ColumnNames()
	values := []any{
		[]byte("1001.0"),
		time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 18, 19, 45, 10, 0, time.UTC),
		[]byte(" waiter1 "),
		[]byte("250.75"),
	}

	record, err := task.Normalize(names, values)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"billno": "1001",
		"date":   "2026-10-18T00:00:00",
		"time":   "2026-10-18T19:45:10",
		"user":   "waiter1",
		"amount": 250.75,
	}, record.Map())
	assert.Equal(t, names, []string{record[0].Name, record[1].Name, record[2].Name, record[3].Name, record[4].Name})
}

func TestNormalize_BadValue(t *testing.T) {
	task := Default()[2]
	_, err := task.Normalize(task.ColumnNames(), []any{"x", nil, nil, nil, nil})
	assert.ErrorContains(t, err, "column billno")
}
