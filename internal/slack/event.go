package slack

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/carmelo-bot/server/internal/bot/model"
)

// socketEnvelope is one frame from the Socket Mode websocket. Every envelope
// with an id must be acknowledged or Slack redelivers it.
type socketEnvelope struct {
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Type       string          `json:"type,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type eventsAPIPayload struct {
	TeamID    string          `json:"team_id,omitempty"`
	EventID   string          `json:"event_id,omitempty"`
	EventTime int64           `json:"event_time,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

type mentionEvent struct {
	Type     string `json:"type,omitempty"`
	Subtype  string `json:"subtype,omitempty"`
	User     string `json:"user,omitempty"`
	Text     string `json:"text,omitempty"`
	Channel  string `json:"channel,omitempty"`
	TS       string `json:"ts,omitempty"`
	ThreadTS string `json:"thread_ts,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
}

// botMentionPattern matches a mention of one specific user id. Only the bot's
// own mention is stripped; mentions of other users stay in the text because
// the classifier's special-case rule needs them.
func botMentionPattern(botUserID string) *regexp.Regexp {
	return regexp.MustCompile(`<@` + regexp.QuoteMeta(botUserID) + `(?:\|[^>]+)?>`)
}

// parseMentionEvent extracts an app_mention from a socket envelope. The second
// return value is false for every frame that is not a usable mention: other
// envelope types, other event types, bot echoes, subtyped edits.
func parseMentionEvent(envelope socketEnvelope, botUserID string) (model.InboundMessage, bool, error) {
	if strings.TrimSpace(envelope.Type) != "events_api" || len(envelope.Payload) == 0 {
		return model.InboundMessage{}, false, nil
	}
	var payload eventsAPIPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return model.InboundMessage{}, false, err
	}
	var event mentionEvent
	if err := json.Unmarshal(payload.Event, &event); err != nil {
		return model.InboundMessage{}, false, err
	}

	if strings.TrimSpace(event.Type) != "app_mention" {
		return model.InboundMessage{}, false, nil
	}
	if strings.TrimSpace(event.Subtype) != "" {
		return model.InboundMessage{}, false, nil
	}
	if strings.TrimSpace(event.BotID) != "" {
		return model.InboundMessage{}, false, nil
	}
	userID := strings.TrimSpace(event.User)
	if userID == "" || userID == strings.TrimSpace(botUserID) {
		return model.InboundMessage{}, false, nil
	}
	channelID := strings.TrimSpace(event.Channel)
	if channelID == "" {
		return model.InboundMessage{}, false, nil
	}
	eventTS := strings.TrimSpace(event.TS)
	if eventTS == "" {
		return model.InboundMessage{}, false, nil
	}

	text := stripBotMention(event.Text, botUserID)
	if text == "" {
		return model.InboundMessage{}, false, nil
	}

	sentAt := time.Now().UTC()
	if payload.EventTime > 0 {
		sentAt = time.Unix(payload.EventTime, 0).UTC()
	}

	return model.InboundMessage{
		Text:      text,
		ChannelID: channelID,
		EventTS:   eventTS,
		ThreadTS:  strings.TrimSpace(event.ThreadTS),
		SentAt:    sentAt,
	}, true, nil
}

// stripBotMention removes the bot's own <@U…> reference so the model sees
// only the message itself.
func stripBotMention(text, botUserID string) string {
	return strings.TrimSpace(botMentionPattern(botUserID).ReplaceAllString(text, ""))
}
