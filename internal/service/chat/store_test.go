package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/serene-care/backend/internal/model/chat"
	chat "github.com/zhouzirui/serene-care/backend/internal/service/chat"
)

const greeting = "Hi! I’m Serene, your health companion. How can I help today?"

// gatedCompleter blocks every call until release is closed.
type gatedCompleter struct {
	mu      sync.Mutex
	calls   [][]model.Turn
	release chan struct{}
	reply   string
	err     error
}

func newGatedCompleter(reply string, err error) *gatedCompleter {
	return &gatedCompleter{release: make(chan struct{}), reply: reply, err: err}
}

func (g *gatedCompleter) Complete(ctx context.Context, turns []model.Turn) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, turns)
	g.mu.Unlock()

	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return g.reply, g.err
}

func (g *gatedCompleter) Calls() [][]model.Turn {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]model.Turn(nil), g.calls...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (r *recordingNotifier) Notify(title, _ string) {
	r.mu.Lock()
	r.titles = append(r.titles, title)
	r.mu.Unlock()
}

func (r *recordingNotifier) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.titles)
}

func waitSettled(t *testing.T, p *chat.Pending) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx))
}

func TestNewStoreStartsWithGreeting(t *testing.T) {
	store := chat.NewStore(greeting, newGatedCompleter("", nil))

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleAssistant, msgs[0].Role)
	assert.Equal(t, greeting, msgs[0].Content)
	assert.NotEmpty(t, msgs[0].ID)
	assert.False(t, store.Awaiting())
}

func TestSubmitHeadacheScenario(t *testing.T) {
	const reply = "Rest, hydrate, and consider an OTC analgesic; seek care if severe or persistent."
	completer := newGatedCompleter(reply, nil)
	store := chat.NewStore(greeting, completer)

	pending, err := store.Submit(context.Background(), "  I have a headache, what should I do?  ")
	require.NoError(t, err)

	// state changes are visible before the proxy settles
	assert.True(t, store.Awaiting())
	require.Equal(t, 2, store.Len())
	user := store.Messages()[1]
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Equal(t, "I have a headache, what should I do?", user.Content)

	close(completer.release)
	waitSettled(t, pending)

	assert.False(t, store.Awaiting())
	msgs := store.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, model.RoleAssistant, msgs[2].Role)
	assert.Equal(t, reply, msgs[2].Content)
	assert.Equal(t, msgs[2], pending.Reply())
	assert.NoError(t, pending.Err())

	calls := completer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []model.Turn{
		{Role: model.RoleAssistant, Content: greeting},
		{Role: model.RoleUser, Content: "I have a headache, what should I do?"},
	}, calls[0])
}

func TestSubmitRejectsEmptyInput(t *testing.T) {
	store := chat.NewStore(greeting, newGatedCompleter("", nil))

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := store.Submit(context.Background(), text)
		assert.ErrorIs(t, err, chat.ErrEmptyInput)
	}
	assert.Equal(t, 1, store.Len())
	assert.False(t, store.Awaiting())
}

func TestSubmitRejectsWhileAwaiting(t *testing.T) {
	completer := newGatedCompleter("ok", nil)
	store := chat.NewStore(greeting, completer)

	pending, err := store.Submit(context.Background(), "first")
	require.NoError(t, err)

	_, err = store.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, chat.ErrAwaitingReply)
	assert.Equal(t, 2, store.Len())

	close(completer.release)
	waitSettled(t, pending)
	assert.Equal(t, 3, store.Len())
	assert.Len(t, completer.Calls(), 1)
}

func TestSubmitFailureAppendsFallbackAndNotifies(t *testing.T) {
	completer := newGatedCompleter("", errors.New("HTTP 500"))
	notifier := &recordingNotifier{}
	store := chat.NewStore(greeting, completer, chat.WithNotifier(notifier))

	pending, err := store.Submit(context.Background(), "hello")
	require.NoError(t, err)
	close(completer.release)
	waitSettled(t, pending)

	msgs := store.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, chat.FallbackReply, msgs[2].Content)
	assert.Equal(t, model.RoleAssistant, msgs[2].Role)
	assert.Error(t, pending.Err())
	assert.Equal(t, 1, notifier.Count())
	assert.False(t, store.Awaiting())
}

func TestSubmitReleasesGuardWhenNotifierPanics(t *testing.T) {
	completer := newGatedCompleter("", errors.New("boom"))
	store := chat.NewStore(greeting, completer, chat.WithNotifier(chat.NotifierFunc(func(string, string) {
		panic("toast failed")
	})))

	pending, err := store.Submit(context.Background(), "hello")
	require.NoError(t, err)
	close(completer.release)
	waitSettled(t, pending)

	assert.False(t, store.Awaiting())
	assert.Equal(t, 3, store.Len())
}

func TestSubmitReplyTimeoutReleasesGuard(t *testing.T) {
	completer := newGatedCompleter("never", nil)
	store := chat.NewStore(greeting, completer, chat.WithReplyTimeout(20*time.Millisecond))

	pending, err := store.Submit(context.Background(), "hello")
	require.NoError(t, err)
	waitSettled(t, pending)

	assert.ErrorIs(t, pending.Err(), context.DeadlineExceeded)
	assert.Equal(t, chat.FallbackReply, pending.Reply().Content)
	assert.False(t, store.Awaiting())
}

// stuckCompleter never returns and never looks at its context.
type stuckCompleter struct{ block chan struct{} }

func (s stuckCompleter) Complete(context.Context, []model.Turn) (string, error) {
	<-s.block
	return "too late", nil
}

func TestSubmitReplyTimeoutAbandonsCompleterIgnoringContext(t *testing.T) {
	completer := stuckCompleter{block: make(chan struct{})}
	defer close(completer.block)
	notifier := &recordingNotifier{}
	store := chat.NewStore(greeting, completer,
		chat.WithReplyTimeout(20*time.Millisecond),
		chat.WithNotifier(notifier),
	)

	pending, err := store.Submit(context.Background(), "hello")
	require.NoError(t, err)
	waitSettled(t, pending)

	assert.ErrorIs(t, pending.Err(), context.DeadlineExceeded)
	assert.Equal(t, chat.FallbackReply, pending.Reply().Content)
	assert.False(t, store.Awaiting())
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, 1, notifier.Count())

	store.SetInput("next question")
	assert.True(t, store.CanSubmit())
}

type panickingCompleter struct{}

func (panickingCompleter) Complete(context.Context, []model.Turn) (string, error) {
	panic("nil upstream")
}

func TestSubmitRecoversCompleterPanic(t *testing.T) {
	store := chat.NewStore(greeting, panickingCompleter{})

	pending, err := store.Submit(context.Background(), "hello")
	require.NoError(t, err)
	waitSettled(t, pending)

	require.Error(t, pending.Err())
	assert.Contains(t, pending.Err().Error(), "nil upstream")
	assert.Equal(t, chat.FallbackReply, pending.Reply().Content)
	assert.False(t, store.Awaiting())
}

func TestCompletedTurnsGrowConversationByTwo(t *testing.T) {
	completer := newGatedCompleter("ok", nil)
	close(completer.release)
	store := chat.NewStore(greeting, completer)

	for i := 0; i < 3; i++ {
		before := store.Len()
		pending, err := store.Submit(context.Background(), "question")
		require.NoError(t, err)
		waitSettled(t, pending)
		assert.Equal(t, before+2, store.Len())
	}
}

func TestSendUsesInputBufferAndClearsIt(t *testing.T) {
	completer := newGatedCompleter("ok", nil)
	store := chat.NewStore(greeting, completer)

	assert.False(t, store.CanSubmit())
	store.SetInput("   ")
	assert.False(t, store.CanSubmit())

	store.SetInput("Daily health tip")
	assert.True(t, store.CanSubmit())

	pending, err := store.Send(context.Background())
	require.NoError(t, err)
	assert.Empty(t, store.Input())

	store.SetInput("next question")
	assert.False(t, store.CanSubmit(), "awaiting reply")

	close(completer.release)
	waitSettled(t, pending)
	assert.True(t, store.CanSubmit())
}

func TestSetFeedback(t *testing.T) {
	store := chat.NewStore(greeting, newGatedCompleter("", nil))
	id := store.Messages()[0].ID

	assert.True(t, store.SetFeedback(id, model.FeedbackPositive))
	assert.True(t, store.SetFeedback(id, model.FeedbackPositive))
	assert.Equal(t, model.FeedbackPositive, store.Messages()[0].Feedback)

	assert.True(t, store.SetFeedback(id, model.FeedbackNegative))
	assert.Equal(t, model.FeedbackNegative, store.Messages()[0].Feedback)

	before := store.Messages()
	assert.False(t, store.SetFeedback("missing", model.FeedbackPositive))
	assert.Equal(t, before, store.Messages())
}
