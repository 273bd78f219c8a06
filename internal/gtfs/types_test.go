package gtfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServiceTime(t *testing.T) {
	tests := []struct {
		in    string
		want  ServiceTime
		clock string
	}{
		{"08:05:00", NewServiceTime(8, 5), "08:05"},
		{"8:05", NewServiceTime(8, 5), "08:05"},
		{"23:59:30", ServiceTime(23*3600 + 59*60 + 30), "23:59"},
		{"24:10:00", NewServiceTime(24, 10), "00:10"},
		{"25:45:00", NewServiceTime(25, 45), "01:45"},
	}
	for _, tt := range tests {
		got, err := ParseServiceTime(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.clock, got.Clock(), tt.in)
	}
}

func TestParseServiceTime_Invalid(t *testing.T) {
	for _, in := range []string{"", "8", "aa:bb", "10:75", "1:2:3:4", "-1:00"} {
		_, err := ParseServiceTime(in)
		assert.Error(t, err, in)
	}
}

func TestServiceDate(t *testing.T) {
	d, err := ParseServiceDate("20240315")
	require.NoError(t, err)
	assert.Equal(t, ServiceDate{Year: 2024, Month: time.March, Day: 15}, d)
	assert.Equal(t, "20240315", d.String())
	assert.Equal(t, time.Friday, d.Weekday())

	assert.Equal(t, "20240301", ServiceDate{2024, time.February, 29}.AddDays(1).String())
	assert.Equal(t, "20231231", ServiceDate{2024, time.January, 1}.AddDays(-1).String())
	assert.Equal(t, d, d.AddDays(1).AddDays(-1))

	for _, bad := range []string{"", "2024-03-15", "20241301", "2024031"} {
		_, err := ParseServiceDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestPointDist2(t *testing.T) {
	p := Point{Lat: 45.0, Lon: 12.0}
	assert.InDelta(t, 0.0001, p.Dist2(45.01, 12.0), 1e-12)
	assert.InDelta(t, 0.0009, p.Dist2(45.0, 11.97), 1e-12)
}

func TestHHMM(t *testing.T) {
	got, err := ParseHHMM("0930")
	require.NoError(t, err)
	assert.Equal(t, NewServiceTime(9, 30), got)
	assert.Equal(t, "0930", got.HHMM())

	late, err := ParseHHMM("2515")
	require.NoError(t, err)
	assert.Equal(t, "01:15", late.Clock())
	assert.Equal(t, "2515", late.HHMM())

	for _, bad := range []string{"", "930", "09:30", "0975", "ab12"} {
		_, err := ParseHHMM(bad)
		assert.Error(t, err, bad)
	}
}
