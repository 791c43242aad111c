package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWire(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "RFC3339 with millis",
			input: "2026-03-02T09:30:00.000Z",
			want:  time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
		},
		{
			name:  "RFC3339 with offset",
			input: "2026-03-02T11:30:00+02:00",
			want:  time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
		},
		{
			name:  "no offset is UTC",
			input: "2026-03-02T09:30:00",
			want:  time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
		},
		{
			name:  "date only",
			input: "2026-03-02",
			want:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{name: "empty", input: "  ", wantErr: true},
		{name: "garbage", input: "next tuesday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWire(tt.input, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
		})
	}
}

func TestFormatWire_IsLosslessToTheSecond(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	original := time.Date(2026, 5, 14, 16, 45, 12, 0, loc)

	wire := FormatWire(original)
	assert.Equal(t, "2026-05-14T13:45:12.000Z", wire)

	parsed, err := ParseWire(wire, nil)
	require.NoError(t, err)
	assert.True(t, original.Equal(parsed))
}

func TestDayBounds(t *testing.T) {
	ts := time.Date(2026, 1, 10, 14, 5, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), StartOfDay(ts))
	assert.Equal(t, time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), EndOfDay(ts))
}

func TestCombineDateTime(t *testing.T) {
	got, err := CombineDateTime("2026-07-01", "14:30", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 1, 14, 30, 0, 0, time.UTC), got)

	_, err = CombineDateTime("2026-07-01", "2pm", time.UTC)
	assert.Error(t, err)

	_, err = CombineDateTime("07/01/2026", "14:30", time.UTC)
	assert.Error(t, err)
}

func TestFormatRange(t *testing.T) {
	start := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "Mon, Feb 2 09:00-09:30", FormatRange(start, start.Add(30*time.Minute)))
	assert.Equal(t, "", FormatRange(time.Time{}, start))
}
