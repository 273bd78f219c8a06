package gtfs

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Stop struct {
	StopID string
	Name   string
	Lat    float64
	Lon    float64
}

type Point struct {
	Lat float64
	Lon float64
}

// Dist2 is the squared planar distance in raw degrees. Only meaningful at city scale.
func (p Point) Dist2(lat, lon float64) float64 {
	dLat := lat - p.Lat
	dLon := lon - p.Lon
	return dLat*dLat + dLon*dLon
}

type HeadsignCount struct {
	Headsign string
	Count    int
}

// Candidate is one stop search result with its ranking metadata.
type Candidate struct {
	Stop
	Headsigns []string
	Count     int
	Dist2     float64 // only set for coordinate searches
}

type Departure struct {
	TripID       string
	StopID       string
	StopSequence int
	Time         ServiceTime
	Headsign     string // stop_headsign, or the trip's last stop name when missing
}

type StopVisit struct {
	StopSequence int
	Time         ServiceTime
	StopName     string
}

// ServiceTime is seconds since the start of the service day (can exceed 24h).
type ServiceTime int

// ParseServiceTime parses HH:MM:SS or HH:MM, possibly with hours >= 24.
func ParseServiceTime(s string) (ServiceTime, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid service time %q", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid service time %q", s)
		}
		vals[i] = v
	}
	if vals[1] > 59 || vals[2] > 59 {
		return 0, fmt.Errorf("invalid service time %q", s)
	}
	return ServiceTime(vals[0]*3600 + vals[1]*60 + vals[2]), nil
}

func NewServiceTime(h, m int) ServiceTime { return ServiceTime(h*3600 + m*60) }

func (t ServiceTime) Hours() int   { return int(t) / 3600 }
func (t ServiceTime) Minutes() int { return int(t) % 3600 / 60 }

// Clock formats the time of day as HH:MM, wrapping post-midnight service times.
func (t ServiceTime) Clock() string {
	return fmt.Sprintf("%02d:%02d", t.Hours()%24, t.Minutes())
}

// ServiceDate is a calendar day in the agency's local time.
type ServiceDate struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "20060102"

func DateOf(t time.Time) ServiceDate {
	y, m, d := t.Date()
	return ServiceDate{Year: y, Month: m, Day: d}
}

// ParseServiceDate parses the compact YYYYMMDD form.
func ParseServiceDate(s string) (ServiceDate, error) {
	if len(s) != len(dateLayout) {
		return ServiceDate{}, fmt.Errorf("invalid service date %q", s)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return ServiceDate{}, fmt.Errorf("invalid service date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d ServiceDate) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d ServiceDate) AddDays(n int) ServiceDate {
	return DateOf(d.Time(time.UTC).AddDate(0, 0, n))
}

func (d ServiceDate) Weekday() time.Weekday { return d.Time(time.UTC).Weekday() }

func (d ServiceDate) IsZero() bool { return d == ServiceDate{} }

func (d ServiceDate) String() string { return d.Time(time.UTC).Format(dateLayout) }

// HHMM is the compact four digit form used in time filters.
func (t ServiceTime) HHMM() string {
	return fmt.Sprintf("%02d%02d", t.Hours(), t.Minutes())
}

// ParseHHMM parses four digits; hours may exceed 23 for post-midnight service.
func ParseHHMM(s string) (ServiceTime, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid time %q", s)
		}
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[2:])
	if m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return NewServiceTime(h, m), nil
}
