package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carmelo-bot/server/internal/bot/model"
	logx "github.com/carmelo-bot/server/pkg/logger"
	"github.com/gorilla/websocket"
)

const reconnectDelay = 2 * time.Second

// Handler processes one inbound mention and always produces a reply.
type Handler interface {
	Handle(ctx context.Context, in model.InboundMessage) model.OutboundReply
}

// Gateway consumes Socket Mode events and feeds mentions to the handler. Each
// mention runs as its own goroutine; ordering within a conversation is the
// handler's concern.
type Gateway struct {
	api       *API
	handler   Handler
	botUserID string
}

func NewGateway(api *API, handler Handler) (*Gateway, error) {
	if api == nil {
		return nil, fmt.Errorf("slack api is nil")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is nil")
	}
	return &Gateway{api: api, handler: handler}, nil
}

// Run connects, consumes, and reconnects until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	auth, err := g.api.AuthTest(ctx)
	if err != nil {
		return err
	}
	if auth.UserID == "" {
		return fmt.Errorf("slack auth.test returned empty user_id")
	}
	g.botUserID = auth.UserID
	logx.Info().Str("botUserID", g.botUserID).Str("teamID", auth.TeamID).Msg("slack gateway starting")

	for {
		if ctx.Err() != nil {
			logx.Info().Msg("slack gateway stopped")
			return nil
		}

		conn, err := g.api.ConnectSocket(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logx.Warn().Err(err).Msg("slack socket connect failed")
			if err := sleepWithContext(ctx, reconnectDelay); err != nil {
				return nil
			}
			continue
		}
		logx.Info().Msg("slack socket connected")

		readErr := g.consume(ctx, conn)
		_ = conn.Close()
		if readErr != nil && !errors.Is(readErr, context.Canceled) && !errors.Is(readErr, context.DeadlineExceeded) {
			logx.Warn().Err(readErr).Msg("slack socket read failed")
		}
	}
}

// consume reads envelopes until the connection drops, acking each one that
// carries an envelope id.
func (g *Gateway) consume(ctx context.Context, conn *websocket.Conn) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		envelope, ok := decodeEnvelope(raw)
		if !ok {
			continue
		}
		if envelope.EnvelopeID != "" {
			if err := conn.WriteJSON(map[string]string{"envelope_id": envelope.EnvelopeID}); err != nil {
				return err
			}
		}

		in, ok, err := parseMentionEvent(envelope, g.botUserID)
		if err != nil {
			logx.Warn().Err(err).Msg("slack event parse failed")
			continue
		}
		if !ok {
			continue
		}

		// One inbound event, one asynchronous task.
		go g.dispatch(ctx, in)
	}
}

func (g *Gateway) dispatch(ctx context.Context, in model.InboundMessage) {
	reply := g.handler.Handle(ctx, in)
	if reply.Text == "" {
		return
	}
	if err := g.api.PostMessage(ctx, reply.ChannelID, reply.Text, reply.ThreadTS); err != nil {
		logx.Error().Err(err).Str("channelID", reply.ChannelID).Str("threadTS", reply.ThreadTS).Msg("slack reply post failed")
	}
}

func decodeEnvelope(raw []byte) (socketEnvelope, bool) {
	var envelope socketEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return socketEnvelope{}, false
	}
	return envelope, true
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
