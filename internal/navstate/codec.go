// Package navstate encodes "what the user is looking at" into compact
// button payloads. The grammar is positional: a one byte tag followed by
// '/'-separated fields, with no field names, so it fits the transport's
// 64 byte callback limit.
package navstate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/gsarrco/MuoVErsi/internal/gtfs"
	"github.com/gsarrco/MuoVErsi/internal/schedule"
)

const (
	TagListing   = 'L'
	TagItinerary = 'R'

	Delimiter = "/"

	// MaxTokenLen is the transport's ceiling for button payloads.
	MaxTokenLen = 64
)

var (
	ErrMalformedToken = errors.New("malformed navigation token")
	ErrTokenTooLong   = errors.New("navigation token too long")
	ErrDelimiter      = errors.New("field contains delimiter")
	ErrNotASCII       = errors.New("field is not ASCII")
)

// State is either a Listing or an Itinerary.
type State interface {
	tag() byte
	fields() []string
}

// Listing shows departures at a stop on a date. TimeFilter follows
// schedule.ParseFilter: "" for the whole day, HHMM, or HHMM+N for the page
// continuing after N departures from HHMM.
type Listing struct {
	StopID     string
	Date       gtfs.ServiceDate
	TimeFilter string
}

// Itinerary shows the rest of a trip from StopSequence onwards.
type Itinerary struct {
	TripID       string
	StopID       string
	Date         gtfs.ServiceDate
	StopSequence int
	Line         string
}

func (Listing) tag() byte { return TagListing }

func (l Listing) fields() []string {
	return []string{l.StopID, l.Date.String(), l.TimeFilter}
}

// ShiftDays returns the same listing moved by n days.
func (l Listing) ShiftDays(n int) Listing {
	l.Date = l.Date.AddDays(n)
	return l
}

func (Itinerary) tag() byte { return TagItinerary }

func (it Itinerary) fields() []string {
	return []string{it.TripID, it.StopID, it.Date.String(), strconv.Itoa(it.StopSequence), it.Line}
}

func Encode(s State) (string, error) {
	if s == nil {
		return "", fmt.Errorf("%w: nil state", ErrMalformedToken)
	}
	fs := s.fields()
	for _, f := range fs {
		if strings.Contains(f, Delimiter) {
			return "", fmt.Errorf("%w: %q", ErrDelimiter, f)
		}
		if !isASCII(f) {
			return "", fmt.Errorf("%w: %q", ErrNotASCII, f)
		}
	}
	tok := string(s.tag()) + strings.Join(fs, Delimiter)
	if len(tok) > MaxTokenLen {
		return "", fmt.Errorf("%w: %d bytes", ErrTokenTooLong, len(tok))
	}
	// Anything Encode emits must decode.
	if _, err := Decode(tok); err != nil {
		return "", err
	}
	return tok, nil
}

// MustEncode is for states whose fields are known to be delimiter free and short.
func MustEncode(s State) string {
	tok, err := Encode(s)
	if err != nil {
		panic(err)
	}
	return tok
}

func Decode(tok string) (State, error) {
	if tok == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedToken)
	}
	if !isASCII(tok) {
		return nil, fmt.Errorf("%w: not ASCII", ErrMalformedToken)
	}
	fs := strings.Split(tok[1:], Delimiter)
	switch tok[0] {
	case TagListing:
		if len(fs) != 3 || fs[0] == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedToken, tok)
		}
		date, err := gtfs.ParseServiceDate(fs[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		if _, err := schedule.ParseFilter(fs[2]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		return Listing{StopID: fs[0], Date: date, TimeFilter: fs[2]}, nil
	case TagItinerary:
		if len(fs) != 5 || fs[0] == "" || fs[1] == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedToken, tok)
		}
		date, err := gtfs.ParseServiceDate(fs[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		seq, err := strconv.Atoi(fs[3])
		if err != nil || seq < 0 || strconv.Itoa(seq) != fs[3] {
			return nil, fmt.Errorf("%w: bad stop sequence %q", ErrMalformedToken, fs[3])
		}
		return Itinerary{TripID: fs[0], StopID: fs[1], Date: date, StopSequence: seq, Line: fs[4]}, nil
	default:
		return nil, fmt.Errorf("%w: unknown tag %q", ErrMalformedToken, tok[0])
	}
}

// FitLine makes it.Line encodable: accents are stripped, other non-ASCII
// runes and the delimiter are replaced, and the line is cut until the whole
// token fits MaxTokenLen.
func FitLine(it Itinerary) Itinerary {
	it.Line = strings.ReplaceAll(asciiFold(it.Line), Delimiter, "-")
	base := it
	base.Line = ""
	room := MaxTokenLen - len(string(base.tag())+strings.Join(base.fields(), Delimiter))
	if room <= 0 {
		it.Line = ""
		return it
	}
	if len(it.Line) > room {
		it.Line = it.Line[:room]
	}
	return it
}

func asciiFold(s string) string {
	if isASCII(s) {
		return s
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '?'
		}
		return r
	}, folded)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}
