package session

import "github.com/gsarrco/MuoVErsi/internal/render"

// Event is one inbound user turn.
type Event interface {
	Kind() string
}

type TextEvent struct {
	Text string
}

type LocationEvent struct {
	Lat float64
	Lon float64
}

// ButtonTapEvent carries the payload of a tapped inline button and the
// message the button belongs to.
type ButtonTapEvent struct {
	Payload   string
	MessageID int64
}

type CommandEvent struct {
	Name string
}

func (TextEvent) Kind() string      { return "text" }
func (LocationEvent) Kind() string  { return "location" }
func (ButtonTapEvent) Kind() string { return "button" }
func (CommandEvent) Kind() string   { return "command" }

// Commands understood in any state.
const (
	CmdStart     = "start"
	CmdSearch    = "fermata"
	CmdSearchAut = "fermata_aut"
	CmdSearchNav = "fermata_nav"
	CmdCancel    = "annulla"
)

// Effect is one outbound action for the messaging layer.
type Effect interface {
	effect()
}

type SendText struct {
	Text           string
	RemoveKeyboard bool
}

// SendTextWithReplyButtons shows a reply keyboard; tapping a label sends it back as text.
// With RequestLocation the first label asks the client for the user's position.
type SendTextWithReplyButtons struct {
	Text            string
	Rows            [][]string
	Placeholder     string
	RequestLocation bool
}

type SendTextWithInlineButtons struct {
	Text   string
	Inline [][]render.Button
}

// EditMessage replaces the text and inline buttons of an earlier message in place.
type EditMessage struct {
	MessageID int64
	Text      string
	Inline    [][]render.Button
}

func (SendText) effect()                  {}
func (SendTextWithReplyButtons) effect()  {}
func (SendTextWithInlineButtons) effect() {}
func (EditMessage) effect()               {}
