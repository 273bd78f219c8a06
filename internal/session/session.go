package session

import (
	"sync"

	"github.com/gsarrco/MuoVErsi/internal/render"
	"github.com/gsarrco/MuoVErsi/internal/service"
)

// Step is the conversation state.
type Step int

const (
	// StepIdle is outside any conversation; cancel returns here.
	StepIdle Step = iota
	// StepChoosingService waits for one of the service names.
	StepChoosingService
	// StepSearchingStop waits for a stop name fragment or a position.
	StepSearchingStop
	// StepShowingDepartures waits for one of the offered candidate labels.
	StepShowingDepartures
	// StepFilteringDepartures handles taps, day paging and back navigation.
	StepFilteringDepartures
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepChoosingService:
		return "choosing_service"
	case StepSearchingStop:
		return "searching_stop"
	case StepShowingDepartures:
		return "showing_departures"
	case StepFilteringDepartures:
		return "filtering_departures"
	}
	return "unknown"
}

// Session is one chat's navigation state. It is process local and guarded
// by mu; the Manager holds the lock for the whole turn.
type Session struct {
	mu sync.Mutex

	step Step
	mode service.Mode
	// current is the encoded listing last shown, the target of "back".
	current string
	// labels maps reply keyboard labels to the state they stand for, since
	// plain text replies carry no payload.
	labels map[string]string
	shown  render.Shown

	shownPages int
}

func newSession(shownPages int) *Session {
	s := &Session{shownPages: shownPages}
	s.reset()
	return s
}

func (s *Session) reset() {
	s.step = StepIdle
	s.mode = 0
	s.current = ""
	s.labels = map[string]string{}
	s.shown = render.NewShown(s.shownPages)
}
