package model

import "time"

// InboundMessage is one mention event from the chat platform. It is transient;
// nothing outside a single dispatch cycle holds on to it.
type InboundMessage struct {
	// Text is the message body with the bot mention already stripped.
	Text string
	// ChannelID identifies the Slack channel the mention arrived in.
	ChannelID string
	// EventTS is the timestamp of the triggering message itself.
	EventTS string
	// ThreadTS is the parent thread timestamp, empty when the mention started
	// a new thread.
	ThreadTS string
	// SentAt is the platform-reported event time.
	SentAt time.Time
}

// ConversationID keys the history store. Messages sharing a thread anchor
// belong to the same conversation.
func (m InboundMessage) ConversationID() string {
	return m.ChannelID + ":" + m.ThreadAnchor()
}

// ThreadAnchor returns the timestamp replies should attach to: the existing
// thread when there is one, otherwise the triggering message.
func (m InboundMessage) ThreadAnchor() string {
	if m.ThreadTS != "" {
		return m.ThreadTS
	}
	return m.EventTS
}

// OutboundReply is the single reply produced for one inbound message.
type OutboundReply struct {
	Text      string
	ChannelID string
	ThreadTS  string
}
