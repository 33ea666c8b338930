package transform

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextSequence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		existing []string
		want     int
		wantErr  bool
	}{
		{name: "empty snapshot starts at one", existing: nil, want: 1},
		{name: "continues from max", existing: []string{"CUST1", "CUST7", "CUST3"}, want: 8},
		{name: "multi digit suffix", existing: []string{"CUST99", "CUST100"}, want: 101},
		{name: "non numeric suffix", existing: []string{"CUST1", "CUSTX"}, wantErr: true},
		{name: "wrong prefix", existing: []string{"PROD1"}, wantErr: true},
		{name: "prefix only", existing: []string{"CUST"}, wantErr: true},
		{name: "negative suffix", existing: []string{"CUST-1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NextSequence(tt.existing, "CUST")
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateKeys_AssignsInRowOrder(t *testing.T) {
	t.Parallel()

	type row struct {
		name string
		sk   string
	}
	rows := []row{{name: "a"}, {name: "b"}, {name: "c"}}

	keyed, err := GenerateKeys(rows, []string{"PROD4", "PROD2"}, "PROD", func(r *row, sk string) { r.sk = sk })
	require.NoError(t, err)

	assert.Equal(t, []row{{"a", "PROD5"}, {"b", "PROD6"}, {"c", "PROD7"}}, keyed)
	for _, r := range rows {
		assert.Empty(t, r.sk, "input rows must not be modified")
	}
}

func TestGenerateKeys_MonotonicAcrossRuns(t *testing.T) {
	t.Parallel()

	var persisted []string
	seen := make(map[string]bool)
	last := 0

	for batch := 1; batch <= 6; batch++ {
		rows := make([]string, batch)
		keyed, err := GenerateKeys(rows, persisted, "SALES", func(r *string, sk string) { *r = sk })
		require.NoError(t, err)

		for _, key := range keyed {
			require.False(t, seen[key], "duplicate key %s", key)
			seen[key] = true

			n, err := strconv.Atoi(strings.TrimPrefix(key, "SALES"))
			require.NoError(t, err)
			require.Greater(t, n, last)
			last = n
		}
		persisted = append(persisted, keyed...)
	}

	assert.Len(t, seen, 21)
}

func TestGenerateKeys_MalformedExistingKey(t *testing.T) {
	t.Parallel()

	_, err := GenerateKeys([]int{1}, []string{"DATE1", "oops"}, "DATE", func(*int, string) {})
	require.ErrorIs(t, err, ErrMalformedKey)
}
