package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/zhouzirui/serene-care/backend/internal/model/chat"
)

var (
	ErrEmptyInput    = errors.New("message is empty")
	ErrAwaitingReply = errors.New("a reply is already awaited")
)

// FallbackReply is appended when a turn fails so the user always gets an
// answer.
const FallbackReply = "I’m having trouble reaching the service. Please try again soon."

// NotifyTitle heads the transient notification raised on a failed turn.
const NotifyTitle = "Chat service unavailable"

// DefaultReplyTimeout bounds a single turn.
const DefaultReplyTimeout = 60 * time.Second

// Completer sends the projected history to the completion proxy.
type Completer interface {
	Complete(ctx context.Context, turns []chat.Turn) (string, error)
}

// Notifier surfaces a transient, user-visible message.
type Notifier interface {
	Notify(title, description string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(title, description string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(title, description string) { f(title, description) }

// Option customises a Store.
type Option func(*Store)

// WithNotifier sets the failure notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithReplyTimeout bounds how long a turn may wait for the proxy.
func WithReplyTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.replyTimeout = d
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store owns one conversation: its messages, the pending input and the
// awaiting-reply flag. At most one proxy call is in flight at a time; a
// submission made while awaiting is rejected, not queued.
type Store struct {
	mu       sync.Mutex
	messages []chat.Message
	input    string
	awaiting bool

	completer    Completer
	notifier     Notifier
	replyTimeout time.Duration
	now          func() time.Time
}

// NewStore starts a conversation with the assistant greeting.
func NewStore(greeting string, completer Completer, opts ...Option) *Store {
	s := &Store{
		completer:    completer,
		replyTimeout: DefaultReplyTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	s.messages = make([]chat.Message, 0, 16)
	s.messages = append(s.messages, s.newMessage(chat.RoleAssistant, greeting))
	return s
}

// SetInput replaces the pending input buffer.
func (s *Store) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
}

// Input returns the pending input buffer.
func (s *Store) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// CanSubmit reports whether Send would be accepted right now.
func (s *Store) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(s.input) != "" && !s.awaiting
}

// Awaiting reports whether a reply is outstanding.
func (s *Store) Awaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting
}

// Messages returns a copy of the conversation in order.
func (s *Store) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]chat.Message, len(s.messages))
	copy(copied, s.messages)
	return copied
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Send submits the pending input buffer.
func (s *Store) Send(ctx context.Context) (*Pending, error) {
	return s.Submit(ctx, s.Input())
}

// Submit appends a user message and asks the completer for a reply in the
// background. The user message and the awaiting flag are in place before
// Submit returns. Rejected submissions change nothing.
func (s *Store) Submit(ctx context.Context, text string) (*Pending, error) {
	content := strings.TrimSpace(text)

	s.mu.Lock()
	if content == "" {
		s.mu.Unlock()
		return nil, ErrEmptyInput
	}
	if s.awaiting {
		s.mu.Unlock()
		return nil, ErrAwaitingReply
	}

	s.messages = append(s.messages, s.newMessage(chat.RoleUser, content))
	s.input = ""
	s.awaiting = true
	turns := chat.Project(s.messages)
	s.mu.Unlock()

	pending := &Pending{done: make(chan struct{})}
	go s.complete(ctx, turns, pending)
	return pending, nil
}

// SetFeedback annotates a message. It returns false and changes nothing
// when id is unknown. Feedback stays local and is never sent upstream.
func (s *Store) SetFeedback(id string, feedback chat.Feedback) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Feedback = feedback
			return true
		}
	}
	return false
}

func (s *Store) complete(ctx context.Context, turns []chat.Turn, pending *Pending) {
	var (
		reply   chat.Message
		turnErr error
	)
	defer func() {
		s.mu.Lock()
		s.awaiting = false
		s.mu.Unlock()
		pending.finish(reply, turnErr)
	}()

	ctx, cancel := context.WithTimeout(ctx, s.replyTimeout)
	defer cancel()

	text, err := s.callCompleter(ctx, turns)
	if err != nil {
		turnErr = err
		log.WithError(err).Warn("[chat] turn failed, appending fallback reply")
		s.notify(err)
		reply = s.appendAssistant(FallbackReply)
		return
	}
	reply = s.appendAssistant(text)
}

type completion struct {
	text string
	err  error
}

// callCompleter returns when the completer answers or ctx ends, whichever is
// first. A completer that ignores ctx is abandoned, not waited on.
func (s *Store) callCompleter(ctx context.Context, turns []chat.Turn) (string, error) {
	done := make(chan completion, 1)
	go func() {
		var res completion
		defer func() {
			if r := recover(); r != nil {
				res = completion{err: fmt.Errorf("completer panicked: %v", r)}
			}
			done <- res
		}()
		res.text, res.err = s.completer.Complete(ctx, turns)
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Store) notify(cause error) {
	if s.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[chat] notifier panicked: %v", r)
		}
	}()
	s.notifier.Notify(NotifyTitle, cause.Error())
}

func (s *Store) appendAssistant(content string) chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.newMessage(chat.RoleAssistant, content)
	s.messages = append(s.messages, msg)
	return msg
}

func (s *Store) newMessage(role chat.Role, content string) chat.Message {
	return chat.Message{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
		SentAt:  s.now(),
	}
}

// Pending tracks one in-flight turn.
type Pending struct {
	done  chan struct{}
	reply chat.Message
	err   error
}

// Done is closed once the reply (or fallback) has been appended and the
// store is idle again.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the turn settles or ctx ends.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reply returns the appended assistant message. Valid after Done.
func (p *Pending) Reply() chat.Message {
	<-p.done
	return p.reply
}

// Err returns the failure that produced a fallback reply, if any.
func (p *Pending) Err() error {
	<-p.done
	return p.err
}

func (p *Pending) finish(reply chat.Message, err error) {
	p.reply = reply
	p.err = err
	close(p.done)
}
