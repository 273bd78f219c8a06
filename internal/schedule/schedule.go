package schedule

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gsarrco/MuoVErsi/internal/gtfs"
	"github.com/gsarrco/MuoVErsi/internal/service"
)

// Source is the read side of the schedule store used for timetables.
type Source interface {
	Stop(ctx context.Context, mode service.Mode, stopID string) (gtfs.Stop, error)
	Departures(ctx context.Context, mode service.Mode, stopID string, date gtfs.ServiceDate, from gtfs.ServiceTime) ([]gtfs.Departure, error)
	Itinerary(ctx context.Context, mode service.Mode, tripID string, fromSeq int) ([]gtfs.StopVisit, error)
}

// Observer receives query timings; nil disables it.
type Observer interface {
	QueryObserve(op string, d time.Duration)
}

type Query struct {
	src Source
	obs Observer
}

func New(src Source, obs Observer) *Query {
	return &Query{src: src, obs: obs}
}

// FullDay is the time filter selecting the whole service day.
const FullDay = ""

// Filter is a parsed listing time filter: departures at or after From,
// leaving out the first Skip of them. Skip lets a page continue inside
// the minute where the previous page stopped.
type Filter struct {
	From gtfs.ServiceTime
	Skip int
}

// ParseFilter accepts "" (whole day), HHMM, or HHMM+N with N > 0.
func ParseFilter(filter string) (Filter, error) {
	if filter == FullDay {
		return Filter{}, nil
	}
	hhmm, skip, found := strings.Cut(filter, "+")
	from, err := gtfs.ParseHHMM(hhmm)
	if err != nil {
		return Filter{}, err
	}
	f := Filter{From: from}
	if found {
		n, err := strconv.Atoi(skip)
		if err != nil || n <= 0 || strconv.Itoa(n) != skip {
			return Filter{}, fmt.Errorf("invalid skip in time filter %q", filter)
		}
		f.Skip = n
	}
	return f, nil
}

func (f Filter) String() string {
	if f.Skip > 0 {
		return f.From.HHMM() + "+" + strconv.Itoa(f.Skip)
	}
	return f.From.HHMM()
}

// FilterFrom is the filter showing departures at or after t.
func FilterFrom(t gtfs.ServiceTime) string { return Filter{From: t}.String() }

func (q *Query) Stop(ctx context.Context, mode service.Mode, stopID string) (gtfs.Stop, error) {
	defer q.observe("stop", time.Now())
	return q.src.Stop(ctx, mode, stopID)
}

// Departures lists departures at stopID on date selected by filter, ordered
// by SortDepartures. An unknown stop yields an empty slice.
func (q *Query) Departures(ctx context.Context, mode service.Mode, stopID string, date gtfs.ServiceDate, filter string) ([]gtfs.Departure, error) {
	from, err := ParseFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("time filter: %w", err)
	}
	defer q.observe("departures", time.Now())
	deps, err := q.src.Departures(ctx, mode, stopID, date, from.From)
	if err != nil {
		return nil, err
	}
	out := deps[:0:0]
	for _, d := range deps {
		if d.Time >= from.From {
			out = append(out, d)
		}
	}
	SortDepartures(out)
	if from.Skip >= len(out) {
		return nil, nil
	}
	return out[from.Skip:], nil
}

// SortDepartures orders by time, then trip and stop sequence, so pages cut
// with Filter.Skip are the same on every query.
func SortDepartures(deps []gtfs.Departure) {
	sort.SliceStable(deps, func(i, j int) bool {
		a, b := deps[i], deps[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if a.TripID != b.TripID {
			return a.TripID < b.TripID
		}
		return a.StopSequence < b.StopSequence
	})
}

// Itinerary lists the remaining stop-visits of tripID from fromSeq, by sequence.
func (q *Query) Itinerary(ctx context.Context, mode service.Mode, tripID string, fromSeq int) ([]gtfs.StopVisit, error) {
	defer q.observe("itinerary", time.Now())
	visits, err := q.src.Itinerary(ctx, mode, tripID, fromSeq)
	if err != nil {
		return nil, err
	}
	out := visits[:0:0]
	for _, v := range visits {
		if v.StopSequence >= fromSeq {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StopSequence < out[j].StopSequence })
	return out, nil
}

func (q *Query) observe(op string, start time.Time) {
	if q.obs != nil {
		q.obs.QueryObserve(op, time.Since(start))
	}
}
