package render

import (
	"fmt"
	"regexp"

	"github.com/gsarrco/MuoVErsi/internal/gtfs"
	"github.com/gsarrco/MuoVErsi/internal/locator"
	"github.com/gsarrco/MuoVErsi/internal/navstate"
)

// Day pager commands, sent as plain text from a reply keyboard.
const (
	PrevDay = "-1g"
	NextDay = "+1g"
)

// CandidateLabel is "<name> (<stop_id>) - <headsigns>".
func CandidateLabel(c gtfs.Candidate) string {
	return fmt.Sprintf("%s (%s) - %s", c.Name, c.StopID, locator.HeadsignLabel(c))
}

// Candidates lays out one label per reply keyboard row.
func Candidates(cands []gtfs.Candidate) [][]string {
	rows := make([][]string, 0, len(cands))
	for _, c := range cands {
		rows = append(rows, []string{CandidateLabel(c)})
	}
	return rows
}

// The last parenthesised group before " - " is the id, so names may contain parentheses.
var candidateRe = regexp.MustCompile(`^(.*) \(([^()]+)\) - (.*)$`)

// ParseCandidateLabel extracts the stop id from a candidate label.
func ParseCandidateLabel(label string) (string, bool) {
	m := candidateRe.FindStringSubmatch(label)
	if m == nil {
		return "", false
	}
	return m[2], true
}

// DayPager returns the reply keyboard for day paging and the states its
// labels stand for.
func DayPager(l navstate.Listing) ([][]string, map[string]string, error) {
	prev, err := navstate.Encode(l.ShiftDays(-1))
	if err != nil {
		return nil, nil, err
	}
	next, err := navstate.Encode(l.ShiftDays(1))
	if err != nil {
		return nil, nil, err
	}
	return [][]string{{PrevDay, NextDay}}, map[string]string{PrevDay: prev, NextDay: next}, nil
}
