// Package welcome shows the "welcome back" notification after a sign-in and
// takes it down again.
//
// The notifier never owns the flag. The session Manager raises
// JustAuthenticated on every successful login or signup; the notifier arms a
// timer for that particular login (identified by WelcomeSeq) and, when it
// fires, asks the Manager to expire that same login's welcome. If anything
// else clears the flag first (logout, the close button, a newer login) the
// timer is stopped or its expiry is ignored.
package welcome

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/clint-crypto/internal/model"
	"github.com/sakif/clint-crypto/internal/session"
)

// DefaultDelay is how long the notification stays up.
const DefaultDelay = 4 * time.Second

// Source is the part of the session Manager the notifier needs.
type Source interface {
	State() session.State
	Subscribe(fn func(session.State)) (unsubscribe func())
	ExpireWelcome(seq uint64) bool
}

// Hooks are called when the notification appears or disappears. Either may be nil.
type Hooks struct {
	OnShow func(identity model.Identity)
	OnHide func()
}

// Notifier tracks one visible-or-not notification.
type Notifier struct {
	source Source
	delay  time.Duration
	hooks  Hooks
	logger *slog.Logger

	mu       sync.Mutex
	timer    *time.Timer
	armedSeq uint64
	visible  bool
}

// New returns a Notifier; a non-positive delay means DefaultDelay.
func New(source Source, delay time.Duration, hooks Hooks, logger *slog.Logger) *Notifier {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Notifier{
		source: source,
		delay:  delay,
		hooks:  hooks,
		logger: logger,
	}
}

// Start subscribes to the session and reacts to the current state straight
// away. The returned stop function unsubscribes and cancels a pending timer.
func (n *Notifier) Start() (stop func()) {
	unsubscribe := n.source.Subscribe(n.handle)
	n.handle(n.source.State())

	return func() {
		unsubscribe()
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.timer != nil {
			n.timer.Stop()
			n.timer = nil
		}
	}
}

// Visible reports whether the notification is currently shown.
func (n *Notifier) Visible() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.visible
}

// handle runs inside the Manager's notification, so it must not call back
// into a transition method synchronously. The timer callback runs on its own
// goroutine, which is fine.
func (n *Notifier) handle(s session.State) {
	n.mu.Lock()

	switch {
	case s.JustAuthenticated && s.Identity != nil:
		if n.visible && n.armedSeq == s.WelcomeSeq {
			// Same login, some other field changed. Keep the running timer.
			n.mu.Unlock()
			return
		}
		if n.timer != nil {
			n.timer.Stop()
		}
		seq := s.WelcomeSeq
		n.armedSeq = seq
		n.visible = true
		n.timer = time.AfterFunc(n.delay, func() { n.expire(seq) })
		identity := *s.Identity
		n.mu.Unlock()

		n.logger.Debug("welcome shown", slog.Uint64("seq", seq))
		if n.hooks.OnShow != nil {
			n.hooks.OnShow(identity)
		}

	case n.visible:
		if n.timer != nil {
			n.timer.Stop()
			n.timer = nil
		}
		n.visible = false
		seq := n.armedSeq
		n.mu.Unlock()

		n.logger.Debug("welcome hidden", slog.Uint64("seq", seq))
		if n.hooks.OnHide != nil {
			n.hooks.OnHide()
		}

	default:
		n.mu.Unlock()
	}
}

// expire is the timer callback. The Manager decides whether seq is still
// current; if it is, the resulting transition comes back through handle and
// hides the notification.
func (n *Notifier) expire(seq uint64) {
	if !n.source.ExpireWelcome(seq) {
		n.logger.Debug("welcome timer fired for a superseded login", slog.Uint64("seq", seq))
	}
}
