package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/carmelo-bot/server/internal/bot/model"
	"github.com/carmelo-bot/server/internal/bot/repo"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// stubChatModel records every Generate call and returns a fixed reply or error.
type stubChatModel struct {
	mu    sync.Mutex
	calls [][]*schema.Message
	reply string
	err   error
}

func (s *stubChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	s.mu.Lock()
	snapshot := make([]*schema.Message, len(input))
	copy(snapshot, input)
	s.calls = append(s.calls, snapshot)
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.reply, nil), nil
}

func (s *stubChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func (s *stubChatModel) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubChatModel) lastCall() []*schema.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

func fixedClock() time.Time {
	return time.Date(2024, time.January, 8, 15, 0, 0, 0, time.UTC)
}

func newTestDispatcher(t *testing.T, chat *stubChatModel) (*Dispatcher, *repo.MemoryConversationStore) {
	t.Helper()

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	store := repo.NewMemoryConversationStore(20)
	d, err := New(Config{
		Store:        store,
		ChatModel:    chat,
		SystemPrompt: "system persona",
		Location:     loc,
		Now:          fixedClock,
	})
	require.NoError(t, err)
	return d, store
}

func inbound(text string) model.InboundMessage {
	return model.InboundMessage{
		Text:      text,
		ChannelID: "C01",
		EventTS:   "1700000000.000100",
		SentAt:    fixedClock(),
	}
}

func TestHandleSpecialCase(t *testing.T) {
	chat := &stubChatModel{reply: "should never be used"}
	d, store := newTestDispatcher(t, chat)

	reply := d.Handle(context.Background(), inbound("get me @bob here by 6am"))

	assert.Equal(t, "it is done", reply.Text)
	assert.Zero(t, chat.callCount(), "special case must not invoke the model")

	n, err := store.TurnCount(context.Background(), inbound("").ConversationID())
	require.NoError(t, err)
	assert.Zero(t, n, "special case must not touch history")
}

func TestHandleMorningBrief(t *testing.T) {
	chat := &stubChatModel{reply: "AAPL up, NVDA up, TSLA down"}
	d, store := newTestDispatcher(t, chat)

	in := inbound("morning brief: $AAPL, NVDA TSLA")
	reply := d.Handle(context.Background(), in)

	assert.Equal(t, "AAPL up, NVDA up, TSLA down", reply.Text)
	require.Equal(t, 1, chat.callCount())

	msgs := chat.lastCall()
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[1].Content, "AAPL, NVDA, TSLA")

	n, err := store.TurnCount(context.Background(), in.ConversationID())
	require.NoError(t, err)
	assert.Zero(t, n, "morning brief is stateless")
}

func TestHandlePlainUpdatesHistory(t *testing.T) {
	chat := &stubChatModel{reply: "looking strong"}
	d, store := newTestDispatcher(t, chat)

	in := inbound("Thoughts on $AAPL and $nvda?")
	reply := d.Handle(context.Background(), in)

	assert.Equal(t, "looking strong", reply.Text)
	assert.Equal(t, "C01", reply.ChannelID)
	assert.Equal(t, in.EventTS, reply.ThreadTS)

	h, err := store.History(context.Background(), in.ConversationID())
	require.NoError(t, err)
	require.Len(t, h.Turns, 2)

	assert.Equal(t, schema.User, h.Turns[0].Role)
	assert.Equal(t, "[Mon, 08 Jan 2024 10:00 EST] Thoughts on $AAPL and $nvda? (note: AAPL, NVDA are stock ticker symbols)", h.Turns[0].Content)
	assert.Equal(t, schema.Assistant, h.Turns[1].Role)
	assert.Equal(t, "looking strong", h.Turns[1].Content)
}

func TestHandlePlainSuppliesPriorContext(t *testing.T) {
	chat := &stubChatModel{reply: "noted"}
	d, _ := newTestDispatcher(t, chat)

	first := inbound("what moved the market today?")
	d.Handle(context.Background(), first)

	second := first
	second.Text = "and tomorrow?"
	d.Handle(context.Background(), second)

	msgs := chat.lastCall()
	// system + first user + first assistant + current user
	require.Len(t, msgs, 4)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[1].Content, "what moved the market today?")
	assert.Equal(t, "noted", msgs[2].Content)
	assert.Contains(t, msgs[3].Content, "and tomorrow?")
}

func TestHandleRateLimitedFallback(t *testing.T) {
	chat := &stubChatModel{err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}}
	d, _ := newTestDispatcher(t, chat)

	reply := d.Handle(context.Background(), inbound("how is $SPY?"))

	assert.Equal(t, RateLimitedReply, reply.Text)
	assert.NotEqual(t, GenericFailureReply, reply.Text)
}

func TestHandleGenericFallback(t *testing.T) {
	chat := &stubChatModel{err: errors.New("connection reset by peer")}
	d, store := newTestDispatcher(t, chat)

	in := inbound("how is $SPY?")
	reply := d.Handle(context.Background(), in)

	assert.Equal(t, GenericFailureReply, reply.Text)

	// The user turn was registered before the failed call; no assistant turn
	// follows it.
	h, err := store.History(context.Background(), in.ConversationID())
	require.NoError(t, err)
	require.Len(t, h.Turns, 1)
	assert.Equal(t, schema.User, h.Turns[0].Role)
}

func TestHandleThreadAnchor(t *testing.T) {
	chat := &stubChatModel{reply: "ok"}
	d, _ := newTestDispatcher(t, chat)

	in := inbound("hello")
	in.ThreadTS = "1690000000.000200"
	reply := d.Handle(context.Background(), in)

	assert.Equal(t, "1690000000.000200", reply.ThreadTS)
}

func TestHandleSerializesPerConversation(t *testing.T) {
	chat := &stubChatModel{reply: "ok"}
	d, store := newTestDispatcher(t, chat)

	in := inbound("hello")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := in
			msg.Text = fmt.Sprintf("message %d", i)
			d.Handle(context.Background(), msg)
		}(i)
	}
	wg.Wait()

	// Ten user turns and ten assistant turns, capped at 20, with no torn
	// interleavings losing a turn.
	n, err := store.TurnCount(context.Background(), in.ConversationID())
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, 10, chat.callCount())
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{ChatModel: &stubChatModel{}})
	assert.Error(t, err)

	_, err = New(Config{Store: repo.NewMemoryConversationStore(0)})
	assert.Error(t, err)
}
