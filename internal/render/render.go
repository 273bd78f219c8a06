package render

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/goodsign/monday"

	"github.com/gsarrco/MuoVErsi/internal/gtfs"
	"github.com/gsarrco/MuoVErsi/internal/navstate"
	"github.com/gsarrco/MuoVErsi/internal/schedule"
)

const (
	BackLabel = "Indietro"
	MoreLabel = "Altri orari"

	noDepartures = "Nessun orario disponibile."
	noVisits     = "Nessun orario disponibile per questa corsa."
)

// Button is an inline button; Payload is an encoded navigation state.
type Button struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

type Message struct {
	Text   string
	Inline [][]Button
}

type Renderer struct {
	maxDepartures int
}

func New(maxDepartures int) *Renderer {
	if maxDepartures <= 0 {
		maxDepartures = 12
	}
	return &Renderer{maxDepartures: maxDepartures}
}

// FullDate formats a service day the long Italian way, e.g. "venerdì 15 marzo 2024".
func FullDate(d gtfs.ServiceDate) string {
	return monday.Format(d.Time(time.UTC), "Monday 2 January 2006", monday.LocaleItIT)
}

// Listing renders one page of departures. deps is what the schedule query
// returned for l's filter, skip already applied. Visits already shown on an
// earlier page of the same stop and date are left out; shown is returned
// updated.
func (r *Renderer) Listing(stop gtfs.Stop, deps []gtfs.Departure, l navstate.Listing, shown Shown) (Message, Shown) {
	f, err := schedule.ParseFilter(l.TimeFilter)
	if err != nil {
		f = schedule.Filter{}
	}
	shown = shown.forListing(l)
	seen := shown.before(f)

	var (
		visible []gtfs.Departure
		at      []int // index of each visible departure in deps
	)
	for i, d := range deps {
		if !seen[visitKey(d)] {
			visible = append(visible, d)
			at = append(at, i)
		}
	}
	page := visible
	if len(page) > r.maxDepartures {
		page = page[:r.maxDepartures]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n%s", stop.Name, stop.StopID, FullDate(l.Date))
	if l.TimeFilter != schedule.FullDay {
		fmt.Fprintf(&b, " dalle %s", f.From.Clock())
	}
	b.WriteString("\n")
	if len(page) == 0 {
		b.WriteString("\n" + noDepartures)
	}

	var rows [][]Button
	offered := make(map[string]bool, len(page))
	visits := make([]string, 0, len(page))
	for _, d := range page {
		fmt.Fprintf(&b, "\n%s %s", d.Time.Clock(), d.Headsign)
		visits = append(visits, visitKey(d))
		if offered[d.TripID] {
			continue
		}
		offered[d.TripID] = true
		it := navstate.FitLine(navstate.Itinerary{
			TripID:       d.TripID,
			StopID:       stop.StopID,
			Date:         l.Date,
			StopSequence: d.StopSequence,
			Line:         d.Headsign,
		})
		tok, err := navstate.Encode(it)
		if err != nil {
			log.Printf("no drill-down for trip=%s stop=%s: %v", d.TripID, stop.StopID, err)
			continue
		}
		rows = append(rows, []Button{{Label: d.Time.Clock() + " " + d.Headsign, Payload: tok}})
	}
	shown = shown.record(f, visits)

	if len(visible) > len(page) {
		more := l
		more.TimeFilter = nextPage(deps, at[len(page)], f).String()
		if tok, err := navstate.Encode(more); err == nil {
			rows = append(rows, []Button{{Label: MoreLabel, Payload: tok}})
		}
	}
	return Message{Text: b.String(), Inline: rows}, shown
}

// nextPage is the filter whose query starts exactly at deps[i]: its minute,
// skipping the departures of that minute that come before it.
func nextPage(deps []gtfs.Departure, i int, cur schedule.Filter) schedule.Filter {
	next := schedule.Filter{From: deps[i].Time}
	for _, d := range deps[:i] {
		if d.Time == next.From {
			next.Skip++
		}
	}
	if next.From == cur.From {
		next.Skip += cur.Skip
	}
	return next
}

// Itinerary renders the rest of a trip with a single back button to back.
func (r *Renderer) Itinerary(visits []gtfs.StopVisit, line string, date gtfs.ServiceDate, back string) Message {
	var b strings.Builder
	b.WriteString(FullDate(date) + " - linea " + line + "\n")
	if len(visits) == 0 {
		b.WriteString("\n" + noVisits)
	}
	for _, v := range visits {
		fmt.Fprintf(&b, "\n%s %s", v.Time.Clock(), v.StopName)
	}
	msg := Message{Text: b.String()}
	if back != "" {
		msg.Inline = [][]Button{{{Label: BackLabel, Payload: back}}}
	}
	return msg
}
