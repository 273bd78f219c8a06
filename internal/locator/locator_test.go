package locator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsarrco/MuoVErsi/internal/gtfs"
	"github.com/gsarrco/MuoVErsi/internal/service"
)

type fakeFinder struct {
	stops     []gtfs.Stop
	headsigns map[string][]gtfs.HeadsignCount
	calls     int
	err       error
}

func (f *fakeFinder) StopsByName(_ context.Context, _ service.Mode, fragment string, limit int) ([]gtfs.Stop, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []gtfs.Stop
	for _, s := range f.stops {
		if strings.Contains(s.Name, fragment) && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeFinder) StopsNear(_ context.Context, _ service.Mode, p gtfs.Point, limit int) ([]gtfs.Stop, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := append([]gtfs.Stop(nil), f.stops...)
	// insertion sort keeps table order for ties, like the database
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && p.Dist2(out[j].Lat, out[j].Lon) < p.Dist2(out[j-1].Lat, out[j-1].Lon); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeFinder) Headsigns(_ context.Context, _ service.Mode, stopID string, limit int) ([]gtfs.HeadsignCount, error) {
	f.calls++
	hs := f.headsigns[stopID]
	if len(hs) > limit {
		hs = hs[:limit]
	}
	return hs, nil
}

func TestSearch_TextScenario(t *testing.T) {
	f := &fakeFinder{
		stops: []gtfs.Stop{{StopID: "101", Name: "Piazzale Roma", Lat: 45.438, Lon: 12.319}},
		headsigns: map[string][]gtfs.HeadsignCount{
			"101": {{Headsign: "Lido", Count: 3}, {Headsign: "Mestre", Count: 1}},
		},
	}
	l := New(f, time.Minute)

	got, err := l.Search(context.Background(), service.Navigazione, TextQuery("Piazzale Roma"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "101", got[0].StopID)
	assert.Equal(t, "Lido/Mestre", HeadsignLabel(got[0]))
	assert.Equal(t, 4, got[0].Count)
}

func TestSearch_TextOrderedByPopularity(t *testing.T) {
	f := &fakeFinder{
		stops: []gtfs.Stop{
			{StopID: "1", Name: "San Marco A"},
			{StopID: "2", Name: "San Marco B"},
			{StopID: "3", Name: "San Marco C"},
			{StopID: "4", Name: "San Marco D"},
			{StopID: "5", Name: "San Marco E"},
			{StopID: "6", Name: "San Marco F"},
		},
		headsigns: map[string][]gtfs.HeadsignCount{
			"1": {{Headsign: "Lido", Count: 2}},
			"2": {{Headsign: "Lido", Count: 9}, {Headsign: "Murano", Count: 4}},
			"4": {{Headsign: "Rialto", Count: 5}},
			"5": {{Headsign: "Lido", Count: 7}},
			"6": {{Headsign: "Lido", Count: 100}},
		},
	}
	l := New(f, time.Minute)

	got, err := l.Search(context.Background(), service.Navigazione, TextQuery("San Marco"))
	require.NoError(t, err)
	require.Len(t, got, MaxResults)

	var ids []string
	for i, c := range got {
		ids = append(ids, c.StopID)
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Count, c.Count)
		}
	}
	// stop 6 is past the cap before ranking; stop 3 has no schedule and sorts last
	assert.Equal(t, []string{"2", "5", "4", "1", "3"}, ids)
	assert.Equal(t, []string{NoSchedule}, got[4].Headsigns)
	assert.Equal(t, 0, got[4].Count)
}

func TestSearch_PointOrderedByDistance(t *testing.T) {
	f := &fakeFinder{
		stops: []gtfs.Stop{
			{StopID: "B", Name: "Busy far", Lat: 45.03, Lon: 12.0},
			{StopID: "A", Name: "Quiet near", Lat: 45.01, Lon: 12.0},
		},
		headsigns: map[string][]gtfs.HeadsignCount{
			"B": {{Headsign: "Lido", Count: 500}},
		},
	}
	l := New(f, time.Minute)

	got, err := l.Search(context.Background(), service.Automobilistico, PointQuery(45.0, 12.0))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].StopID)
	assert.Equal(t, "B", got[1].StopID)
	assert.InDelta(t, 0.0001, got[0].Dist2, 1e-9)
	assert.InDelta(t, 0.0009, got[1].Dist2, 1e-9)
	assert.Equal(t, []string{NoSchedule}, got[0].Headsigns)
}

func TestSearch_Empty(t *testing.T) {
	l := New(&fakeFinder{}, time.Minute)
	got, err := l.Search(context.Background(), service.Navigazione, TextQuery("Nowhere"))
	require.NoError(t, err)
	assert.Empty(t, got)

}

func TestSearch_EmptyFragmentMatchesAll(t *testing.T) {
	src := &fakeFinder{stops: []gtfs.Stop{
		{StopID: "1", Name: "Lido"}, {StopID: "2", Name: "Rialto"}, {StopID: "3", Name: "Ferrovia"},
		{StopID: "4", Name: "San Marco"}, {StopID: "5", Name: "Murano"}, {StopID: "6", Name: "Burano"},
	}}
	got, err := New(src, time.Minute).Search(context.Background(), service.Navigazione, TextQuery(""))
	require.NoError(t, err)
	assert.Len(t, got, MaxResults)
}

func TestNew_NonPositiveTTL(t *testing.T) {
	src := &fakeFinder{
		stops:     []gtfs.Stop{{StopID: "1", Name: "Lido"}},
		headsigns: map[string][]gtfs.HeadsignCount{"1": {{Headsign: "Venezia", Count: 2}}},
	}
	l := New(src, 0)
	for i := 0; i < 2; i++ {
		_, err := l.Search(context.Background(), service.Navigazione, TextQuery("Lido"))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.calls)
	_, exp, ok := l.headsigns.GetWithExpiration("navigazione:1")
	require.True(t, ok)
	assert.False(t, exp.IsZero())
}

func TestSearch_CachesHeadsigns(t *testing.T) {
	f := &fakeFinder{
		stops:     []gtfs.Stop{{StopID: "101", Name: "Piazzale Roma"}},
		headsigns: map[string][]gtfs.HeadsignCount{"101": {{Headsign: "Lido", Count: 1}}},
	}
	l := New(f, time.Minute)
	for i := 0; i < 3; i++ {
		_, err := l.Search(context.Background(), service.Navigazione, TextQuery("Piazzale"))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.calls)
}

func TestSearch_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	l := New(&fakeFinder{err: boom}, time.Minute)
	_, err := l.Search(context.Background(), service.Navigazione, TextQuery("x"))
	assert.ErrorIs(t, err, boom)
}
