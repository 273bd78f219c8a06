package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/gsarrco/MuoVErsi/internal/gtfs"
	"github.com/gsarrco/MuoVErsi/internal/service"
)

// StopsByName returns stops whose name contains fragment (case-sensitive), in table order.
func (s *Store) StopsByName(ctx context.Context, mode service.Mode, fragment string, limit int) ([]gtfs.Stop, error) {
	c, err := s.conn(mode)
	if err != nil {
		return nil, err
	}
	// strpos keeps LIKE wildcards in user input literal
	q := `SELECT stop_id::text, stop_name, COALESCE(stop_lat, 0), COALESCE(stop_lon, 0)
FROM stops WHERE strpos(stop_name, $1) > 0 LIMIT $2`
	rows, err := c.db.QueryContext(ctx, q, fragment, limit)
	if err != nil {
		return nil, unavailable("query stops by name", err)
	}
	defer rows.Close()
	return scanStops(rows)
}

// StopsNear returns the closest stops by squared distance in raw degrees.
func (s *Store) StopsNear(ctx context.Context, mode service.Mode, p gtfs.Point, limit int) ([]gtfs.Stop, error) {
	c, err := s.conn(mode)
	if err != nil {
		return nil, err
	}
	q := `SELECT stop_id::text, stop_name, stop_lat, stop_lon
FROM stops
WHERE stop_lat IS NOT NULL AND stop_lon IS NOT NULL
ORDER BY ((stop_lat - $1) * (stop_lat - $1)) + ((stop_lon - $2) * (stop_lon - $2)) ASC
LIMIT $3`
	rows, err := c.db.QueryContext(ctx, q, p.Lat, p.Lon, limit)
	if err != nil {
		return nil, unavailable("query stops near", err)
	}
	defer rows.Close()
	return scanStops(rows)
}

func scanStops(rows *sql.Rows) ([]gtfs.Stop, error) {
	var stops []gtfs.Stop
	for rows.Next() {
		var st gtfs.Stop
		if err := rows.Scan(&st.StopID, &st.Name, &st.Lat, &st.Lon); err != nil {
			return nil, unavailable("scan stop", err)
		}
		stops = append(stops, st)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate stops", err)
	}
	return stops, nil
}

// Stop looks up a single stop by id.
func (s *Store) Stop(ctx context.Context, mode service.Mode, stopID string) (gtfs.Stop, error) {
	c, err := s.conn(mode)
	if err != nil {
		return gtfs.Stop{}, err
	}
	var st gtfs.Stop
	q := `SELECT stop_id::text, stop_name, COALESCE(stop_lat, 0), COALESCE(stop_lon, 0) FROM stops WHERE stop_id::text = $1`
	err = c.db.QueryRowContext(ctx, q, stopID).Scan(&st.StopID, &st.Name, &st.Lat, &st.Lon)
	if errors.Is(err, sql.ErrNoRows) {
		return gtfs.Stop{}, fmt.Errorf("stop %q: %w", stopID, ErrNotFound)
	}
	if err != nil {
		return gtfs.Stop{}, unavailable("query stop", err)
	}
	return st, nil
}

// Headsigns returns the most frequent headsigns at a stop, most frequent first.
func (s *Store) Headsigns(ctx context.Context, mode service.Mode, stopID string, limit int) ([]gtfs.HeadsignCount, error) {
	c, err := s.conn(mode)
	if err != nil {
		return nil, err
	}
	q := `SELECT stop_headsign, count(stop_headsign) AS headsign_count
FROM stop_times WHERE stop_id::text = $1 AND stop_headsign IS NOT NULL
GROUP BY stop_headsign ORDER BY headsign_count DESC LIMIT $2`
	rows, err := c.db.QueryContext(ctx, q, stopID, limit)
	if err != nil {
		return nil, unavailable("query headsigns", err)
	}
	defer rows.Close()
	var out []gtfs.HeadsignCount
	for rows.Next() {
		var h gtfs.HeadsignCount
		if err := rows.Scan(&h.Headsign, &h.Count); err != nil {
			return nil, unavailable("scan headsign", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate headsigns", err)
	}
	return out, nil
}

// Departures returns the stop-visits at stopID on date departing at or after from,
// ordered by time. Without a service calendar every stop-visit is a candidate.
func (s *Store) Departures(ctx context.Context, mode service.Mode, stopID string, date gtfs.ServiceDate, from gtfs.ServiceTime) ([]gtfs.Departure, error) {
	c, err := s.conn(mode)
	if err != nil {
		return nil, err
	}
	q := `SELECT st.trip_id::text, st.stop_sequence, COALESCE(st.departure_time::text, ''),
       COALESCE(NULLIF(st.stop_headsign, ''), (
           SELECT s2.stop_name FROM stop_times st2
           JOIN stops s2 ON s2.stop_id = st2.stop_id
           WHERE st2.trip_id = st.trip_id
           ORDER BY st2.stop_sequence DESC LIMIT 1), '')
FROM stop_times st
WHERE st.stop_id::text = $1`
	args := []any{stopID}
	if c.calendar {
		serviceIDs, err := fetchActiveServiceIDs(ctx, c.db, date)
		if err != nil {
			return nil, unavailable("query active services", err)
		}
		if len(serviceIDs) == 0 {
			return nil, nil
		}
		q += ` AND st.trip_id IN (SELECT trip_id FROM trips WHERE service_id::text = ANY($2::text[]))`
		args = append(args, serviceIDs)
	}
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable("query departures", err)
	}
	defer rows.Close()

	var deps []gtfs.Departure
	for rows.Next() {
		var d gtfs.Departure
		var dep string
		if err := rows.Scan(&d.TripID, &d.StopSequence, &dep, &d.Headsign); err != nil {
			return nil, unavailable("scan departure", err)
		}
		t, err := gtfs.ParseServiceTime(dep)
		if err != nil {
			log.Printf("skip departure trip=%s stop=%s: %v", d.TripID, stopID, err)
			continue
		}
		if t < from {
			continue
		}
		d.Time = t
		d.StopID = stopID
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate departures", err)
	}
	sort.SliceStable(deps, func(i, j int) bool {
		if deps[i].Time != deps[j].Time {
			return deps[i].Time < deps[j].Time
		}
		if deps[i].TripID != deps[j].TripID {
			return deps[i].TripID < deps[j].TripID
		}
		return deps[i].StopSequence < deps[j].StopSequence
	})
	return deps, nil
}

// Itinerary returns the stop-visits of tripID from fromSeq onwards.
func (s *Store) Itinerary(ctx context.Context, mode service.Mode, tripID string, fromSeq int) ([]gtfs.StopVisit, error) {
	c, err := s.conn(mode)
	if err != nil {
		return nil, err
	}
	q := `SELECT stop_times.stop_sequence, COALESCE(departure_time::text, ''), stop_name
FROM stop_times
INNER JOIN stops ON stop_times.stop_id = stops.stop_id
WHERE stop_times.trip_id::text = $1
AND stop_sequence >= $2
ORDER BY stop_sequence`
	rows, err := c.db.QueryContext(ctx, q, tripID, fromSeq)
	if err != nil {
		return nil, unavailable("query itinerary", err)
	}
	defer rows.Close()

	var visits []gtfs.StopVisit
	for rows.Next() {
		var v gtfs.StopVisit
		var dep string
		if err := rows.Scan(&v.StopSequence, &dep, &v.StopName); err != nil {
			return nil, unavailable("scan itinerary", err)
		}
		t, err := gtfs.ParseServiceTime(dep)
		if err != nil {
			log.Printf("skip stop-visit trip=%s seq=%d: %v", tripID, v.StopSequence, err)
			continue
		}
		v.Time = t
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate itinerary", err)
	}
	return visits, nil
}

func fetchActiveServiceIDs(ctx context.Context, db *sql.DB, day gtfs.ServiceDate) ([]string, error) {
	date := day.Time(time.UTC).Format("2006-01-02")
	dow := int(day.Weekday()) // 0=Sunday

	// calendar has booleans (0/1). calendar_dates has exception_type (1 add, 2 remove)
	q := `
WITH base AS (
  SELECT service_id
  FROM calendar
  WHERE start_date <= $1::date AND end_date >= $1::date
    AND (
      ($2 = 0 AND (sunday::text IN ('1','t','true','available'))) OR
      ($2 = 1 AND (monday::text IN ('1','t','true','available'))) OR
      ($2 = 2 AND (tuesday::text IN ('1','t','true','available'))) OR
      ($2 = 3 AND (wednesday::text IN ('1','t','true','available'))) OR
      ($2 = 4 AND (thursday::text IN ('1','t','true','available'))) OR
      ($2 = 5 AND (friday::text IN ('1','t','true','available'))) OR
      ($2 = 6 AND (saturday::text IN ('1','t','true','available')))
    )
), add_exc AS (
  SELECT service_id FROM calendar_dates WHERE date = $1::date AND (exception_type::text IN ('1','added'))
), rm_exc AS (
  SELECT service_id FROM calendar_dates WHERE date = $1::date AND (exception_type::text IN ('2','removed'))
), merged AS (
  SELECT service_id FROM base
  UNION
  SELECT service_id FROM add_exc
)
SELECT DISTINCT service_id::text FROM merged
WHERE service_id NOT IN (SELECT service_id FROM rm_exc)
`
	rows, err := db.QueryContext(ctx, q, date, dow)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var svc []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		svc = append(svc, s)
	}
	return svc, rows.Err()
}
