// Package session owns the chat conversation: message history, the in-flight
// request and the loading indicator shown while it is pending.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"huijin-agent/internal/domain"
	"huijin-agent/internal/id"
)

const (
	// DefaultFloor is the minimum time a request shows as loading.
	DefaultFloor = 40 * time.Second

	clearedNotice = "对话已清空"
	networkNotice = "网络错误，请检查连接"
)

// Gateway sends one message to the chat gateway.
type Gateway interface {
	Send(ctx context.Context, message, sessionID string) (domain.ChatReply, error)
}

// userMessager is implemented by gateway errors that carry display text.
type userMessager interface {
	UserMessage() string
}

type Controller struct {
	gateway Gateway
	clock   clockwork.Clock
	floor   time.Duration
	newID   func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     State
	closed    bool
	request   uint64 // current submission, guards late countdown ticks
	epoch     uint64 // bumped by Clear, guards late replies
	noticeSeq uint64
	version   uint64
	listeners []func(State)

	notifyMu sync.Mutex
	notified uint64
}

type Option func(*Controller)

// WithClock replaces the wall clock, e.g. with a fake in tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithFloor sets the minimum loading duration. The countdown starts at the
// floor in whole seconds.
func WithFloor(d time.Duration) Option {
	return func(c *Controller) {
		c.floor = d
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		c.newID = fn
	}
}

func New(gateway Gateway, opts ...Option) (*Controller, error) {
	if gateway == nil {
		return nil, errors.New("session: gateway must not be nil")
	}
	c := &Controller{
		gateway: gateway,
		clock:   clockwork.NewRealClock(),
		floor:   DefaultFloor,
		newID:   id.New,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.floor < 0 {
		return nil, errors.New("session: floor must not be negative")
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.state.Countdown = c.seed()
	return c, nil
}

func (c *Controller) seed() int {
	return int(c.floor / time.Second)
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn must not block for long.
func (c *Controller) Subscribe(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Controller) SetInput(text string) {
	c.update(func(s *State) {
		s.Input = text
	})
}

// UseSuggestion fills the input with the i-th suggestion. It only applies
// while the conversation is empty.
func (c *Controller) UseSuggestion(i int) bool {
	if i < 0 || i >= len(Suggestions) {
		return false
	}
	applied := false
	c.update(func(s *State) {
		if len(s.Messages) > 0 {
			return
		}
		s.Input = Suggestions[i]
		applied = true
	})
	return applied
}

// Submit sends the current input. It is a no-op, returning false, when the
// input is blank, a request is already in flight or the controller is
// closed. The returned channel is closed once the request has settled.
func (c *Controller) Submit() (<-chan struct{}, bool) {
	c.mu.Lock()
	text := strings.TrimSpace(c.state.Input)
	if text == "" || c.state.Loading || c.closed {
		c.mu.Unlock()
		return nil, false
	}

	c.request++
	request, epoch, sessionID, seed := c.request, c.epoch, c.state.SessionID, c.seed()

	c.state.Messages = append(c.state.Messages, domain.Message{
		ID:        c.newID(),
		Content:   text,
		Role:      domain.RoleUser,
		Timestamp: c.clock.Now(),
	})
	c.state.Input = ""
	c.state.Loading = true
	c.state.Phase = PhaseSearching
	c.state.Countdown = seed
	if seed == 0 {
		c.state.Phase = PhaseGenerating
	}
	snapshot := c.commitLocked()
	c.wg.Add(2)
	c.mu.Unlock()
	c.notify(snapshot)

	phaseCtx, endPhase := context.WithCancel(c.ctx)
	done := make(chan struct{})

	go func() {
		defer c.wg.Done()
		if seed == 0 {
			return
		}
		countdown(phaseCtx, c.clock, seed, func(remaining int) {
			c.tick(request, remaining)
		})
	}()

	go func() {
		defer c.wg.Done()
		defer close(done)

		send := func(ctx context.Context) (domain.ChatReply, error) {
			return c.gateway.Send(ctx, text, sessionID)
		}
		reply, _, err := Join(c.ctx, send, Floor(c.clock, c.floor))
		endPhase()
		c.finish(epoch, reply, err)
	}()

	return done, true
}

func (c *Controller) tick(request uint64, remaining int) {
	c.update(func(s *State) {
		if c.request != request || !s.Loading || s.Phase != PhaseSearching {
			return
		}
		s.Countdown = remaining
		if remaining == 0 {
			s.Phase = PhaseGenerating
		}
	})
}

func (c *Controller) finish(epoch uint64, reply domain.ChatReply, err error) {
	c.update(func(s *State) {
		if c.closed {
			return
		}
		s.Loading = false
		s.Phase = PhaseNone
		s.Countdown = c.seed()

		if err != nil {
			slog.Warn("chat request failed", "error", err)
			s.Notice = c.newNoticeLocked(NoticeError, noticeText(err))
			return
		}
		if c.epoch != epoch {
			slog.Info("dropping reply for a cleared conversation")
			return
		}
		s.Messages = append(s.Messages, domain.Message{
			ID:        c.newID(),
			Content:   reply.Message,
			Role:      domain.RoleAssistant,
			Timestamp: c.clock.Now(),
		})
		if reply.SessionID != "" {
			s.SessionID = reply.SessionID
		}
	})
}

// Clear empties the history and forgets the session. A reply still in
// flight is discarded when it arrives.
func (c *Controller) Clear() {
	c.update(func(s *State) {
		c.epoch++
		s.Messages = nil
		s.SessionID = ""
		s.Notice = c.newNoticeLocked(NoticeSuccess, clearedNotice)
	})
}

// DismissNotice hides the notice with the given id if it is still shown.
func (c *Controller) DismissNotice(noticeID uint64) {
	c.update(func(s *State) {
		if s.Notice != nil && s.Notice.ID == noticeID {
			s.Notice = nil
		}
	})
}

// Close stops timers and abandons any request in flight.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) update(fn func(*State)) {
	c.mu.Lock()
	fn(&c.state)
	snapshot := c.commitLocked()
	c.mu.Unlock()
	c.notify(snapshot)
}

type versioned struct {
	version   uint64
	state     State
	listeners []func(State)
}

func (c *Controller) commitLocked() versioned {
	c.version++
	return versioned{
		version:   c.version,
		state:     c.state.clone(),
		listeners: c.listeners,
	}
}

// notify delivers snapshots in version order and drops ones overtaken by a
// newer delivery.
func (c *Controller) notify(v versioned) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if v.version <= c.notified {
		return
	}
	c.notified = v.version
	for _, fn := range v.listeners {
		fn(v.state)
	}
}

func (c *Controller) newNoticeLocked(kind NoticeKind, text string) *Notice {
	c.noticeSeq++
	return &Notice{ID: c.noticeSeq, Kind: kind, Text: text}
}

func noticeText(err error) string {
	var um userMessager
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	return networkNotice
}
