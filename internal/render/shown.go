package render

import (
	"strconv"

	"github.com/gsarrco/MuoVErsi/internal/gtfs"
	"github.com/gsarrco/MuoVErsi/internal/navstate"
	"github.com/gsarrco/MuoVErsi/internal/schedule"
)

// DefaultShownPages bounds how many listing pages Shown remembers.
const DefaultShownPages = 8

// Shown remembers which stop-visits were listed on the pages of the current
// stop and date, so paging forward does not offer the same departure twice.
// A visit is a trip at one stop sequence: a loop trip calling twice at the
// stop is two visits. It is a UX aid only; losing it just repeats a few lines.
type Shown struct {
	key      string
	maxPages int
	pages    []shownPage
}

type shownPage struct {
	filter schedule.Filter
	visits []string
}

func NewShown(maxPages int) Shown {
	if maxPages <= 0 {
		maxPages = DefaultShownPages
	}
	return Shown{maxPages: maxPages}
}

// Len is the number of remembered pages.
func (s Shown) Len() int { return len(s.pages) }

func visitKey(d gtfs.Departure) string {
	return d.TripID + "/" + strconv.Itoa(d.StopSequence)
}

func earlier(a, b schedule.Filter) bool {
	if a.From != b.From {
		return a.From < b.From
	}
	return a.Skip < b.Skip
}

func (s Shown) forListing(l navstate.Listing) Shown {
	key := l.StopID + "/" + l.Date.String()
	if s.key == key {
		return s
	}
	return Shown{key: key, maxPages: s.maxPages}
}

// before collects visits shown on pages starting strictly earlier than f.
func (s Shown) before(f schedule.Filter) map[string]bool {
	seen := make(map[string]bool)
	for _, p := range s.pages {
		if earlier(p.filter, f) {
			for _, v := range p.visits {
				seen[v] = true
			}
		}
	}
	return seen
}

func (s Shown) record(f schedule.Filter, visits []string) Shown {
	pages := make([]shownPage, 0, len(s.pages)+1)
	for _, p := range s.pages {
		if p.filter != f {
			pages = append(pages, p)
		}
	}
	pages = append(pages, shownPage{filter: f, visits: visits})
	limit := s.maxPages
	if limit <= 0 {
		limit = DefaultShownPages
	}
	if len(pages) > limit {
		pages = pages[len(pages)-limit:]
	}
	s.pages = pages
	return s
}
