package locator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/gsarrco/MuoVErsi/internal/gtfs"
	"github.com/gsarrco/MuoVErsi/internal/service"
)

const (
	// MaxResults caps every search.
	MaxResults = 5
	// NoSchedule labels stops with no scheduled departures.
	NoSchedule = "*NO ORARI*"

	DefaultHeadsignTTL = time.Hour

	headsignsPerStop = 2
)

// StopFinder is the read side of the schedule store used for stop search.
type StopFinder interface {
	StopsByName(ctx context.Context, mode service.Mode, fragment string, limit int) ([]gtfs.Stop, error)
	StopsNear(ctx context.Context, mode service.Mode, p gtfs.Point, limit int) ([]gtfs.Stop, error)
	Headsigns(ctx context.Context, mode service.Mode, stopID string, limit int) ([]gtfs.HeadsignCount, error)
}

// Query is either free text or a position, never both.
type Query struct {
	Text  string
	Point *gtfs.Point
}

func TextQuery(s string) Query { return Query{Text: s} }

func PointQuery(lat, lon float64) Query { return Query{Point: &gtfs.Point{Lat: lat, Lon: lon}} }

type Locator struct {
	src       StopFinder
	headsigns *cache.Cache
}

// New builds a Locator. Headsign summaries are cached for ttl; the schedule
// databases are read-only so entries only go stale on a database rebuild.
// A non-positive ttl means DefaultHeadsignTTL.
func New(src StopFinder, ttl time.Duration) *Locator {
	if ttl <= 0 {
		ttl = DefaultHeadsignTTL
	}
	return &Locator{
		src:       src,
		headsigns: cache.New(ttl, 2*ttl),
	}
}

// Search returns at most MaxResults candidates. Position queries are ordered
// by distance; text queries by total departure count, busiest first. An
// empty fragment is contained in every name, so it matches the first stops.
// An empty result is not an error.
func (l *Locator) Search(ctx context.Context, mode service.Mode, q Query) ([]gtfs.Candidate, error) {
	var (
		stops []gtfs.Stop
		err   error
	)
	if q.Point != nil {
		stops, err = l.src.StopsNear(ctx, mode, *q.Point, MaxResults)
	} else {
		stops, err = l.src.StopsByName(ctx, mode, q.Text, MaxResults)
	}
	if err != nil {
		return nil, err
	}
	if len(stops) > MaxResults {
		stops = stops[:MaxResults]
	}

	cands := make([]gtfs.Candidate, 0, len(stops))
	for _, st := range stops {
		c, err := l.candidate(ctx, mode, st)
		if err != nil {
			return nil, err
		}
		if q.Point != nil {
			c.Dist2 = q.Point.Dist2(st.Lat, st.Lon)
		}
		cands = append(cands, c)
	}

	if q.Point != nil {
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].Dist2 < cands[j].Dist2 })
	} else {
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].Count > cands[j].Count })
	}
	return cands, nil
}

type summary struct {
	headsigns []string
	count     int
}

func (l *Locator) candidate(ctx context.Context, mode service.Mode, st gtfs.Stop) (gtfs.Candidate, error) {
	key := fmt.Sprintf("%s:%s", mode, st.StopID)
	if v, ok := l.headsigns.Get(key); ok {
		s := v.(summary)
		return gtfs.Candidate{Stop: st, Headsigns: s.headsigns, Count: s.count}, nil
	}

	hs, err := l.src.Headsigns(ctx, mode, st.StopID, headsignsPerStop)
	if err != nil {
		return gtfs.Candidate{}, err
	}
	s := summary{}
	for _, h := range hs {
		s.headsigns = append(s.headsigns, h.Headsign)
		s.count += h.Count
	}
	if len(s.headsigns) == 0 {
		s.headsigns = []string{NoSchedule}
	}
	l.headsigns.SetDefault(key, s)
	return gtfs.Candidate{Stop: st, Headsigns: s.headsigns, Count: s.count}, nil
}

// HeadsignLabel joins the headsigns the way candidate labels show them.
func HeadsignLabel(c gtfs.Candidate) string {
	return strings.Join(c.Headsigns, "/")
}
