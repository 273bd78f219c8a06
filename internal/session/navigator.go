package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gsarrco/MuoVErsi/internal/db"
	"github.com/gsarrco/MuoVErsi/internal/gtfs"
	"github.com/gsarrco/MuoVErsi/internal/locator"
	"github.com/gsarrco/MuoVErsi/internal/navstate"
	"github.com/gsarrco/MuoVErsi/internal/render"
	"github.com/gsarrco/MuoVErsi/internal/schedule"
	"github.com/gsarrco/MuoVErsi/internal/service"
)

var ErrNotUnderstood = errors.New("choice not understood")

type StopSearcher interface {
	Search(ctx context.Context, mode service.Mode, q locator.Query) ([]gtfs.Candidate, error)
}

type Timetable interface {
	Stop(ctx context.Context, mode service.Mode, stopID string) (gtfs.Stop, error)
	Departures(ctx context.Context, mode service.Mode, stopID string, date gtfs.ServiceDate, filter string) ([]gtfs.Departure, error)
	Itinerary(ctx context.Context, mode service.Mode, tripID string, fromSeq int) ([]gtfs.StopVisit, error)
}

// Navigator runs single turns of the conversation against a locked Session.
type Navigator struct {
	stops    StopSearcher
	times    Timetable
	renderer *render.Renderer
	loc      *time.Location
	now      func() time.Time
}

func NewNavigator(stops StopSearcher, times Timetable, renderer *render.Renderer, loc *time.Location) *Navigator {
	if loc == nil {
		loc = time.Local
	}
	return &Navigator{stops: stops, times: times, renderer: renderer, loc: loc, now: time.Now}
}

// Turn applies ev to s. The returned effects always tell the user what
// happened; err classifies a failed turn for logging. Session fields are
// only written once every query of the turn has succeeded.
func (n *Navigator) Turn(ctx context.Context, s *Session, ev Event) ([]Effect, error) {
	if cmd, ok := ev.(CommandEvent); ok {
		return n.command(s, cmd)
	}
	switch s.step {
	case StepChoosingService:
		return n.chooseService(s, ev)
	case StepSearchingStop:
		return n.searchStop(ctx, s, ev)
	case StepShowingDepartures:
		return n.showStop(ctx, s, ev)
	case StepFilteringDepartures:
		return n.filterTimes(ctx, s, ev)
	}
	return nil, nil
}

func (n *Navigator) command(s *Session, cmd CommandEvent) ([]Effect, error) {
	switch cmd.Name {
	case CmdStart:
		return []Effect{SendText{Text: msgWelcome}}, nil
	case CmdSearch:
		s.reset()
		s.step = StepChoosingService
		var labels []string
		for _, m := range service.Modes() {
			labels = append(labels, m.Label())
		}
		return []Effect{SendTextWithReplyButtons{
			Text:        msgChooseService,
			Rows:        [][]string{labels},
			Placeholder: placeholderService,
		}}, nil
	case CmdSearchAut:
		s.reset()
		return n.promptStop(s, service.Automobilistico), nil
	case CmdSearchNav:
		s.reset()
		return n.promptStop(s, service.Navigazione), nil
	case CmdCancel:
		s.reset()
		return []Effect{SendText{Text: msgCancelled, RemoveKeyboard: true}}, nil
	}
	return []Effect{SendText{Text: msgUnknownCommand}}, fmt.Errorf("%w: command %q", ErrNotUnderstood, cmd.Name)
}

func (n *Navigator) chooseService(s *Session, ev Event) ([]Effect, error) {
	text, ok := ev.(TextEvent)
	if !ok {
		return notUnderstood(fmt.Errorf("%w: %s while choosing service", ErrNotUnderstood, ev.Kind()))
	}
	mode, err := service.Parse(text.Text)
	if err != nil {
		// an invalid service ends the conversation instead of re-prompting
		s.reset()
		return []Effect{SendText{Text: msgInvalidService, RemoveKeyboard: true}}, err
	}
	return n.promptStop(s, mode), nil
}

func (n *Navigator) promptStop(s *Session, mode service.Mode) []Effect {
	s.mode = mode
	s.step = StepSearchingStop
	return []Effect{SendTextWithReplyButtons{
		Text:            fmt.Sprintf(msgEnterStop, mode),
		Rows:            [][]string{{labelSendLocation}},
		Placeholder:     placeholderPos,
		RequestLocation: true,
	}}
}

func (n *Navigator) searchStop(ctx context.Context, s *Session, ev Event) ([]Effect, error) {
	var q locator.Query
	switch e := ev.(type) {
	case TextEvent:
		q = locator.TextQuery(e.Text)
	case LocationEvent:
		q = locator.PointQuery(e.Lat, e.Lon)
	default:
		return notUnderstood(fmt.Errorf("%w: %s while searching stop", ErrNotUnderstood, ev.Kind()))
	}
	cands, err := n.stops.Search(ctx, s.mode, q)
	if err != nil {
		return failed(err)
	}
	if len(cands) == 0 {
		return []Effect{SendText{Text: msgStopNotFound}}, fmt.Errorf("stop search: %w", db.ErrNotFound)
	}
	s.step = StepShowingDepartures
	return []Effect{SendTextWithReplyButtons{
		Text:        msgChooseStop,
		Rows:        render.Candidates(cands),
		Placeholder: msgChooseStop,
	}}, nil
}

func (n *Navigator) showStop(ctx context.Context, s *Session, ev Event) ([]Effect, error) {
	text, ok := ev.(TextEvent)
	if !ok {
		return notUnderstood(fmt.Errorf("%w: %s while choosing stop", ErrNotUnderstood, ev.Kind()))
	}
	stopID, ok := render.ParseCandidateLabel(text.Text)
	if !ok {
		return notUnderstood(fmt.Errorf("%w: %q is not a stop label", ErrNotUnderstood, text.Text))
	}
	now := n.now().In(n.loc)
	l := navstate.Listing{
		StopID:     stopID,
		Date:       gtfs.DateOf(now),
		TimeFilter: schedule.FilterFrom(gtfs.NewServiceTime(now.Hour(), now.Minute())),
	}
	msg, pager, err := n.listing(ctx, s, l)
	if err != nil {
		return failed(err)
	}
	s.step = StepFilteringDepartures
	return []Effect{
		SendTextWithReplyButtons{Text: msgHereAreTimes, Rows: pager},
		SendTextWithInlineButtons{Text: msg.Text, Inline: msg.Inline},
	}, nil
}

func (n *Navigator) filterTimes(ctx context.Context, s *Session, ev Event) ([]Effect, error) {
	var (
		tok       string
		messageID int64
		edit      bool
	)
	switch e := ev.(type) {
	case ButtonTapEvent:
		tok, messageID, edit = e.Payload, e.MessageID, true
	case TextEvent:
		t, ok := s.labels[e.Text]
		if !ok {
			return notUnderstood(fmt.Errorf("%w: unknown label %q", ErrNotUnderstood, e.Text))
		}
		tok = t
	default:
		return notUnderstood(fmt.Errorf("%w: %s while showing departures", ErrNotUnderstood, ev.Kind()))
	}

	st, err := navstate.Decode(tok)
	if err != nil {
		return notUnderstood(err)
	}

	var msg render.Message
	switch st := st.(type) {
	case navstate.Listing:
		msg, _, err = n.listing(ctx, s, st)
	case navstate.Itinerary:
		msg, err = n.itinerary(ctx, s, st)
	}
	if err != nil {
		return failed(err)
	}
	if edit {
		return []Effect{EditMessage{MessageID: messageID, Text: msg.Text, Inline: msg.Inline}}, nil
	}
	return []Effect{SendTextWithInlineButtons{Text: msg.Text, Inline: msg.Inline}}, nil
}

// listing queries and renders l, then makes it the session's back target.
func (n *Navigator) listing(ctx context.Context, s *Session, l navstate.Listing) (render.Message, [][]string, error) {
	tok, err := navstate.Encode(l)
	if err != nil {
		return render.Message{}, nil, err
	}
	pager, labels, err := render.DayPager(l)
	if err != nil {
		return render.Message{}, nil, err
	}
	stop, err := n.times.Stop(ctx, s.mode, l.StopID)
	if err != nil {
		return render.Message{}, nil, err
	}
	deps, err := n.times.Departures(ctx, s.mode, l.StopID, l.Date, l.TimeFilter)
	if err != nil {
		return render.Message{}, nil, err
	}
	msg, shown := n.renderer.Listing(stop, deps, l, s.shown)

	s.current = tok
	s.labels = labels
	s.shown = shown
	return msg, pager, nil
}

// itinerary leaves the back target untouched so "back" returns to the listing.
func (n *Navigator) itinerary(ctx context.Context, s *Session, it navstate.Itinerary) (render.Message, error) {
	visits, err := n.times.Itinerary(ctx, s.mode, it.TripID, it.StopSequence)
	if err != nil {
		return render.Message{}, err
	}
	return n.renderer.Itinerary(visits, it.Line, it.Date, s.current), nil
}

func notUnderstood(err error) ([]Effect, error) {
	return []Effect{SendText{Text: msgNotUnderstood}}, err
}

func failed(err error) ([]Effect, error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return []Effect{SendText{Text: msgStopNotFound}}, err
	case errors.Is(err, navstate.ErrMalformedToken), errors.Is(err, navstate.ErrDelimiter), errors.Is(err, navstate.ErrTokenTooLong):
		return notUnderstood(err)
	}
	return []Effect{SendText{Text: msgUnavailable}}, err
}

// ErrorKind classifies a turn error for metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, service.ErrInvalidService):
		return "invalid_service"
	case errors.Is(err, navstate.ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, ErrNotUnderstood):
		return "not_understood"
	case errors.Is(err, db.ErrNotFound):
		return "not_found"
	case errors.Is(err, db.ErrUnavailable):
		return "unavailable"
	}
	return "internal"
}
