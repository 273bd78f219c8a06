package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gsarrco/MuoVErsi/internal/render"
	"github.com/gsarrco/MuoVErsi/internal/session"
)

var ErrBadUpdate = errors.New("malformed update")

// Update is one inbound user action forwarded by the chat frontend.
type Update struct {
	ChatID    int64   `json:"chat_id"`
	MessageID int64   `json:"message_id,omitempty"`
	Type      string  `json:"type"`
	Text      string  `json:"text,omitempty"`
	Lat       float64 `json:"lat,omitempty"`
	Lon       float64 `json:"lon,omitempty"`
	Payload   string  `json:"payload,omitempty"`
	Command   string  `json:"command,omitempty"`
}

// Reply is one outbound action for the chat frontend.
type Reply struct {
	ChatID          int64             `json:"chat_id"`
	Type            string            `json:"type"`
	Text            string            `json:"text"`
	Rows            [][]string        `json:"rows,omitempty"`
	Inline          [][]render.Button `json:"inline,omitempty"`
	MessageID       int64             `json:"message_id,omitempty"`
	RemoveKeyboard  bool              `json:"remove_keyboard,omitempty"`
	Placeholder     string            `json:"placeholder,omitempty"`
	RequestLocation bool              `json:"request_location,omitempty"`
}

const (
	ReplySendText          = "send_text"
	ReplySendReplyButtons  = "send_reply_buttons"
	ReplySendInlineButtons = "send_inline_buttons"
	ReplyEditMessage       = "edit_message"
)

// DecodeUpdate parses an inbound message into the chat id and its session event.
func DecodeUpdate(data []byte) (int64, session.Event, error) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrBadUpdate, err)
	}
	if u.ChatID == 0 {
		return 0, nil, fmt.Errorf("%w: missing chat_id", ErrBadUpdate)
	}
	switch u.Type {
	case "text":
		return u.ChatID, session.TextEvent{Text: u.Text}, nil
	case "location":
		return u.ChatID, session.LocationEvent{Lat: u.Lat, Lon: u.Lon}, nil
	case "button":
		return u.ChatID, session.ButtonTapEvent{Payload: u.Payload, MessageID: u.MessageID}, nil
	case "command":
		name := strings.TrimPrefix(strings.TrimSpace(u.Command), "/")
		if name == "" {
			return 0, nil, fmt.Errorf("%w: empty command", ErrBadUpdate)
		}
		return u.ChatID, session.CommandEvent{Name: name}, nil
	default:
		return 0, nil, fmt.Errorf("%w: unknown type %q", ErrBadUpdate, u.Type)
	}
}

func EncodeReply(chatID int64, e session.Effect) ([]byte, error) {
	r := Reply{ChatID: chatID}
	switch e := e.(type) {
	case session.SendText:
		r.Type = ReplySendText
		r.Text = e.Text
		r.RemoveKeyboard = e.RemoveKeyboard
	case session.SendTextWithReplyButtons:
		r.Type = ReplySendReplyButtons
		r.Text = e.Text
		r.Rows = e.Rows
		r.Placeholder = e.Placeholder
		r.RequestLocation = e.RequestLocation
	case session.SendTextWithInlineButtons:
		r.Type = ReplySendInlineButtons
		r.Text = e.Text
		r.Inline = e.Inline
	case session.EditMessage:
		r.Type = ReplyEditMessage
		r.Text = e.Text
		r.Inline = e.Inline
		r.MessageID = e.MessageID
	default:
		return nil, fmt.Errorf("unsupported effect %T", e)
	}
	return json.Marshal(r)
}
