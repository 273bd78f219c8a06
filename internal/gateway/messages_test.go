package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsarrco/MuoVErsi/internal/render"
	"github.com/gsarrco/MuoVErsi/internal/session"
)

func TestDecodeUpdate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want session.Event
	}{
		{"text", `{"chat_id":7,"type":"text","text":"Roma"}`, session.TextEvent{Text: "Roma"}},
		{"location", `{"chat_id":7,"type":"location","lat":45.43,"lon":12.33}`, session.LocationEvent{Lat: 45.43, Lon: 12.33}},
		{"button", `{"chat_id":7,"type":"button","payload":"L101/20240315/","message_id":99}`, session.ButtonTapEvent{Payload: "L101/20240315/", MessageID: 99}},
		{"command", `{"chat_id":7,"type":"command","command":"/fermata"}`, session.CommandEvent{Name: "fermata"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chatID, ev, err := DecodeUpdate([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, int64(7), chatID)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestDecodeUpdate_Malformed(t *testing.T) {
	for _, in := range []string{
		`not json`,
		`{"type":"text","text":"x"}`,
		`{"chat_id":1,"type":"sticker"}`,
		`{"chat_id":1,"type":"command","command":"/"}`,
	} {
		_, _, err := DecodeUpdate([]byte(in))
		assert.ErrorIs(t, err, ErrBadUpdate, in)
	}
}

func TestEncodeReply(t *testing.T) {
	inline := [][]render.Button{{{Label: "08:05 Lido", Payload: "Rt1/101/20240315/3/5"}}}
	tests := []struct {
		name   string
		effect session.Effect
		want   Reply
	}{
		{
			"text",
			session.SendText{Text: "ciao", RemoveKeyboard: true},
			Reply{ChatID: -5, Type: ReplySendText, Text: "ciao", RemoveKeyboard: true},
		},
		{
			"reply buttons",
			session.SendTextWithReplyButtons{Text: "scegli", Rows: [][]string{{"a"}, {"b"}}, Placeholder: "p", RequestLocation: true},
			Reply{ChatID: -5, Type: ReplySendReplyButtons, Text: "scegli", Rows: [][]string{{"a"}, {"b"}}, Placeholder: "p", RequestLocation: true},
		},
		{
			"inline",
			session.SendTextWithInlineButtons{Text: "orari", Inline: inline},
			Reply{ChatID: -5, Type: ReplySendInlineButtons, Text: "orari", Inline: inline},
		},
		{
			"edit",
			session.EditMessage{MessageID: 42, Text: "orari", Inline: inline},
			Reply{ChatID: -5, Type: ReplyEditMessage, Text: "orari", Inline: inline, MessageID: 42},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := EncodeReply(-5, tt.effect)
			require.NoError(t, err)
			var got Reply
			require.NoError(t, json.Unmarshal(b, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeReply_WireNames(t *testing.T) {
	b, err := EncodeReply(3, session.EditMessage{MessageID: 8, Text: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"chat_id":3,"type":"edit_message","text":"x","message_id":8}`, string(b))
}

func TestReplySubject(t *testing.T) {
	assert.Equal(t, "muoversi.replies.123", ReplySubject("muoversi.replies", 123))
	assert.Equal(t, "muoversi.replies.-100", ReplySubject("muoversi.replies", -100))
	assert.Equal(t, "a_b", subjectToken(" a.b "))
	assert.Equal(t, "_", subjectToken(""))
}
