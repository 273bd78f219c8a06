package db

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsarrco/MuoVErsi/internal/gtfs"
	"github.com/gsarrco/MuoVErsi/internal/service"
)

// openTestStore loads a tiny schedule into temporary tables of the database
// named by MUOVERSI_TEST_DATABASE_URL. Temp tables live on one connection,
// so the pool is pinned to a single connection.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dsn := os.Getenv("MUOVERSI_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MUOVERSI_TEST_DATABASE_URL not set")
	}
	d, err := Open(dsn)
	require.NoError(t, err)
	d.SetMaxOpenConns(1)
	d.SetMaxIdleConns(1)
	t.Cleanup(func() { d.Close() })

	ctx := context.Background()
	stmts := []string{
		`CREATE TEMP TABLE stops (stop_id text, stop_name text, stop_lat double precision, stop_lon double precision)`,
		`CREATE TEMP TABLE stop_times (trip_id text, stop_id text, stop_sequence int, departure_time text, stop_headsign text)`,
		`INSERT INTO stops VALUES
			('101', 'Piazzale Roma', 45.4380, 12.3190),
			('102', 'Ferrovia', 45.4410, 12.3210),
			('103', 'Rialto', 45.4380, 12.3360),
			('104', 'piazzale vuoto', 45.5000, 12.5000)`,
		`INSERT INTO stop_times VALUES
			('t1', '101', 1, '08:00:00', 'Lido'),
			('t1', '102', 2, '08:05:00', 'Lido'),
			('t1', '103', 3, '08:15:00', 'Lido'),
			('t2', '101', 1, '09:00:00', 'Lido'),
			('t3', '101', 1, '24:10:00', 'Lido'),
			('t4', '101', 4, '07:30:00', 'Mestre'),
			('t4', '103', 5, '07:40:00', ''),
			('t5', '102', 1, '10:00:00', NULL),
			('t5', '103', 2, '10:10:00', NULL)`,
	}
	for _, s := range stmts {
		_, err := d.ExecContext(ctx, s)
		require.NoError(t, err, s)
	}
	store, err := NewStore(ctx, map[service.Mode]*sql.DB{service.Navigazione: d})
	require.NoError(t, err)
	return store
}

func TestStoreIntegration_StopsByName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stops, err := s.StopsByName(ctx, service.Navigazione, "Piazzale", 5)
	require.NoError(t, err)
	require.Len(t, stops, 1)
	assert.Equal(t, "101", stops[0].StopID)

	stops, err = s.StopsByName(ctx, service.Navigazione, "%", 5)
	require.NoError(t, err)
	assert.Empty(t, stops)
}

func TestStoreIntegration_StopsNear(t *testing.T) {
	s := openTestStore(t)
	stops, err := s.StopsNear(context.Background(), service.Navigazione, gtfs.Point{Lat: 45.4381, Lon: 12.3191}, 2)
	require.NoError(t, err)
	require.Len(t, stops, 2)
	assert.Equal(t, "101", stops[0].StopID)
	assert.Equal(t, "102", stops[1].StopID)
}

func TestStoreIntegration_Headsigns(t *testing.T) {
	s := openTestStore(t)
	hs, err := s.Headsigns(context.Background(), service.Navigazione, "101", 2)
	require.NoError(t, err)
	assert.Equal(t, []gtfs.HeadsignCount{{Headsign: "Lido", Count: 3}, {Headsign: "Mestre", Count: 1}}, hs)

	hs, err = s.Headsigns(context.Background(), service.Navigazione, "104", 2)
	require.NoError(t, err)
	assert.Empty(t, hs)
}

func TestStoreIntegration_Departures(t *testing.T) {
	s := openTestStore(t)
	day := gtfs.ServiceDate{Year: 2024, Month: time.March, Day: 15}
	deps, err := s.Departures(context.Background(), service.Navigazione, "101", day, gtfs.NewServiceTime(8, 0))
	require.NoError(t, err)
	require.Len(t, deps, 3)
	assert.Equal(t, "t1", deps[0].TripID)
	assert.Equal(t, "t2", deps[1].TripID)
	assert.Equal(t, "t3", deps[2].TripID)
	assert.Equal(t, "00:10", deps[2].Time.Clock())

	deps, err = s.Departures(context.Background(), service.Navigazione, "102", day, 0)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	// missing headsign falls back to the trip's last stop
	assert.Equal(t, "Rialto", deps[1].Headsign)
}

func TestStoreIntegration_Itinerary(t *testing.T) {
	s := openTestStore(t)
	visits, err := s.Itinerary(context.Background(), service.Navigazione, "t1", 2)
	require.NoError(t, err)
	require.Len(t, visits, 2)
	assert.Equal(t, "Ferrovia", visits[0].StopName)
	assert.Equal(t, "Rialto", visits[1].StopName)

	visits, err = s.Itinerary(context.Background(), service.Navigazione, "nope", 0)
	require.NoError(t, err)
	assert.Empty(t, visits)
}

func TestStoreIntegration_Stop(t *testing.T) {
	s := openTestStore(t)
	st, err := s.Stop(context.Background(), service.Navigazione, "103")
	require.NoError(t, err)
	assert.Equal(t, "Rialto", st.Name)

	_, err = s.Stop(context.Background(), service.Navigazione, "999")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Stop(context.Background(), service.Automobilistico, "103")
	assert.ErrorIs(t, err, ErrUnknownMode)
}
