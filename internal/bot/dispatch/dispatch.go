// Package dispatch orchestrates one inbound mention end to end: classify,
// compose, invoke the model, update history, emit the reply. All failures are
// absorbed here; the chat surface always gets some reply, never a raw error.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/carmelo-bot/server/internal/bot/classify"
	"github.com/carmelo-bot/server/internal/bot/model"
	"github.com/carmelo-bot/server/internal/bot/prompts"
	errx "github.com/carmelo-bot/server/internal/core/error"
	logx "github.com/carmelo-bot/server/pkg/logger"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// RateLimitedReply is the user-facing fallback when the model throttles us.
	RateLimitedReply = "I'm getting rate limited right now. Give me a minute and try again."
	// GenericFailureReply is the user-facing fallback for every other failure.
	GenericFailureReply = "Sorry, I ran into an error. Try again in a moment."
)

// Config holds everything needed to construct a Dispatcher.
type Config struct {
	Store        model.ConversationStore
	ChatModel    einomodel.BaseChatModel
	SystemPrompt string
	// Location for the wall-clock annotation on stored user turns.
	Location *time.Location
	// ModelTimeout bounds a single model invocation; zero disables the bound.
	ModelTimeout time.Duration
	// Now is the clock; defaults to time.Now. Injectable for tests.
	Now func() time.Time
}

// Dispatcher handles inbound messages one at a time per conversation.
type Dispatcher struct {
	store        model.ConversationStore
	chat         einomodel.BaseChatModel
	systemPrompt string
	loc          *time.Location
	modelTimeout time.Duration
	now          func() time.Time
	locks        *conversationLocks
}

func New(cfg Config) (*Dispatcher, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("conversation store is nil")
	}
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		store:        cfg.Store,
		chat:         cfg.ChatModel,
		systemPrompt: cfg.SystemPrompt,
		loc:          cfg.Location,
		modelTimeout: cfg.ModelTimeout,
		now:          now,
		locks:        newConversationLocks(),
	}, nil
}

// Handle processes one inbound message and always produces a reply anchored to
// the originating thread.
func (d *Dispatcher) Handle(ctx context.Context, in model.InboundMessage) model.OutboundReply {
	res := classify.Classify(in.Text)

	var text string
	switch res.Mode {
	case classify.ModeSpecialCase:
		// Canned acknowledgment, no model call, no history write.
		text = res.Reply
	case classify.ModeMorningBrief:
		text = d.handleMorningBrief(ctx, in, res)
	default:
		text = d.handlePlain(ctx, in, res)
	}

	return model.OutboundReply{
		Text:      text,
		ChannelID: in.ChannelID,
		ThreadTS:  in.ThreadAnchor(),
	}
}

// handleMorningBrief runs the stateless batch path: one fixed-template prompt,
// no prior context, no history update.
func (d *Dispatcher) handleMorningBrief(ctx context.Context, in model.InboundMessage, res classify.Result) string {
	msgs := []*schema.Message{
		schema.SystemMessage(d.systemPrompt),
		schema.UserMessage(prompts.MorningBrief(res.Tickers)),
	}

	out, err := d.generate(ctx, msgs)
	if err != nil {
		return d.fallbackFor(in, err)
	}
	return out.Content
}

// handlePlain runs the history-aware path under the conversation's lock.
func (d *Dispatcher) handlePlain(ctx context.Context, in model.InboundMessage, res classify.Result) string {
	conversationID := in.ConversationID()

	lock := d.locks.get(conversationID)
	lock.Lock()
	defer lock.Unlock()

	history, err := d.store.History(ctx, conversationID)
	if err != nil {
		logx.Error().Err(err).Str("conversationID", conversationID).Msg("failed to load history")
		return d.fallbackFor(in, err)
	}

	stamped := prompts.StampTime(prompts.AnnotateTickers(in.Text, res.Tickers), d.now(), d.loc)
	userTurn := schema.UserMessage(stamped)
	if err := d.store.AddTurn(ctx, conversationID, userTurn); err != nil {
		logx.Error().Err(err).Str("conversationID", conversationID).Msg("failed to append user turn")
		return d.fallbackFor(in, err)
	}

	msgs := make([]*schema.Message, 0, len(history.Turns)+2)
	msgs = append(msgs, schema.SystemMessage(d.systemPrompt))
	msgs = append(msgs, history.Turns...)
	msgs = append(msgs, userTurn)

	out, err := d.generate(ctx, msgs)
	if err != nil {
		return d.fallbackFor(in, err)
	}

	if err := d.store.AddTurn(ctx, conversationID, schema.AssistantMessage(out.Content, nil)); err != nil {
		// The reply is already composed; log and still deliver it.
		logx.Error().Err(err).Str("conversationID", conversationID).Msg("failed to append assistant turn")
	}
	return out.Content
}

// generate is the only suspension point in a dispatch cycle.
func (d *Dispatcher) generate(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	if d.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.modelTimeout)
		defer cancel()
	}

	out, err := d.chat.Generate(ctx, msgs)
	if err != nil {
		return nil, errx.WrapModel(err)
	}
	if out == nil {
		return nil, errx.WrapModel(fmt.Errorf("model returned no message"))
	}
	return out, nil
}

// fallbackFor maps a failure to one of the two fixed user-facing apologies.
// The detail is logged for operators and never surfaced to the channel.
func (d *Dispatcher) fallbackFor(in model.InboundMessage, err error) string {
	if errx.IsRateLimited(err) {
		logx.Warn().Err(err).Str("channelID", in.ChannelID).Str("eventTS", in.EventTS).Msg("model rate limited")
		return RateLimitedReply
	}
	logx.Error().Err(err).Str("channelID", in.ChannelID).Str("eventTS", in.EventTS).Msg("dispatch failed")
	return GenericFailureReply
}
