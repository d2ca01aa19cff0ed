// Package session owns the signed-in state of the client.
//
// STATE MACHINE:
//
//	             no stored token
//	Resolving ───────────────────────────▶ Unauthenticated ◀──┐
//	    │        token, /users/me fails        │   ▲           │
//	    │        (token is cleared)            │   │ logout    │ login/signup
//	    │                                      │   │           │ fails (no change)
//	    │ token, /users/me ok   login/signup ok▼   │           │
//	    └─────────────────────────────────▶ Authenticated ─────┘
//	                                           │   ▲
//	                                           └───┘ profile update / refresh
//
// Resolving is the only initial state and is left exactly once, when Bootstrap
// finishes. The Manager is the single writer of State; everybody else reads a
// snapshot through State() or gets one pushed through Subscribe().
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/clint-crypto/internal/apperror"
	"github.com/sakif/clint-crypto/internal/metrics"
	"github.com/sakif/clint-crypto/internal/model"
	"github.com/sakif/clint-crypto/internal/repository"
)

// Gateway is the slice of the backend client the Manager drives.
// *api.Client satisfies it.
type Gateway interface {
	Signup(ctx context.Context, email, password, fullName string) (*model.AuthResponse, error)
	Login(ctx context.Context, email, password string) (*model.AuthResponse, error)
	Logout(ctx context.Context) error
	GetProfile(ctx context.Context) (*model.Identity, error)
	UpdateProfile(ctx context.Context, fullName string) (*model.Identity, error)
}

type listener struct {
	id int
	fn func(State)
}

// Manager is the session state machine.
//
// LOCKING:
//   - mu guards state, epoch and listeners; it is never held while calling out.
//   - emitMu serialises whole transitions (mutate + notify) so subscribers see
//     snapshots in the order they happened. Subscribers may call State() but
//     must not call a transition method synchronously.
//
// Network calls happen outside both locks. Login, signup and profile updates
// are not queued: if two overlap, the last response to arrive decides the
// final state.
type Manager struct {
	gateway Gateway
	store   repository.CredentialStore
	logger  *slog.Logger
	metrics *metrics.Metrics

	emitMu sync.Mutex

	mu        sync.RWMutex
	state     State
	epoch     uint64 // bumped by every sign-in and sign-out; in-flight calls check it before writing
	listeners []listener
	nextID    int

	resolved     chan struct{}
	resolvedOnce sync.Once
}

// NewManager returns a Manager in PhaseResolving. Call Bootstrap next.
//
// store is read (and, for a rejected token, cleared) only by Bootstrap;
// persisting and forgetting the token during login/logout is the gateway's job.
func NewManager(gateway Gateway, store repository.CredentialStore, logger *slog.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		gateway:  gateway,
		store:    store,
		logger:   logger,
		metrics:  m,
		state:    State{Phase: PhaseResolving},
		resolved: make(chan struct{}),
	}
}

// State returns a snapshot of the current session.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// Resolved is closed once the session has left PhaseResolving.
func (m *Manager) Resolved() <-chan struct{} {
	return m.resolved
}

// Subscribe registers fn to receive every new snapshot, in transition order.
// The returned function unsubscribes; calling it more than once is harmless.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners = append(m.listeners, listener{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, l := range m.listeners {
				if l.id == id {
					m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// =========================================================================
// BOOTSTRAP
// =========================================================================

// Bootstrap resolves the stored credential. It is the only way out of
// PhaseResolving and runs to completion before the phase changes, so no
// consumer ever sees a decision based on half a check.
//
// Outcomes:
//   - no token               → Unauthenticated
//   - token, profile ok      → Authenticated(profile)
//   - token, profile fails   → token cleared, Unauthenticated (logged, not returned)
//
// A returned error means the credential store itself could not be read, or
// ctx was cancelled before the check finished; the session then stays
// Resolving. Calling Bootstrap after the session has resolved is a no-op.
func (m *Manager) Bootstrap(ctx context.Context) error {
	m.mu.RLock()
	if m.state.Phase != PhaseResolving {
		m.mu.RUnlock()
		return nil
	}
	epoch := m.epoch
	m.mu.RUnlock()

	start := time.Now()
	defer func() {
		m.metrics.BootstrapDuration.Observe(float64(time.Since(start).Milliseconds()))
	}()

	token, err := m.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("session: reading stored credential: %w", err)
	}

	if token == "" {
		m.settle(epoch, nil)
		return nil
	}

	profile, err := m.gateway.GetProfile(ctx)
	if err != nil {
		// Our caller gave up; that says nothing about the token.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("session: bootstrap interrupted: %w", ctxErr)
		}

		// Expired, revoked or otherwise unverifiable. There is nothing the
		// user can do about it, so drop it quietly and start signed out.
		m.logger.Warn("stored credential rejected, starting signed out",
			slog.String("error", err.Error()),
		)
		m.metrics.StaleCredentials.Inc()
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			m.logger.Error("failed to clear stale credential",
				slog.String("error", clearErr.Error()),
			)
		}
		m.settle(epoch, nil)
		return nil
	}

	m.settle(epoch, profile)
	return nil
}

// settle leaves PhaseResolving, unless a sign-out already did.
func (m *Manager) settle(epoch uint64, profile *model.Identity) {
	m.transition(func(s *State) bool {
		if s.Phase != PhaseResolving || m.epoch != epoch {
			return false
		}
		if profile == nil {
			s.Phase = PhaseUnauthenticated
			s.Identity = nil
			return true
		}
		id := *profile
		s.Phase = PhaseAuthenticated
		s.Identity = &id
		return true
	})
}

// =========================================================================
// SIGN-IN / SIGN-OUT
// =========================================================================

// Login validates input, signs in, and raises the welcome flag.
//
// Validation failures never reach the network. API and protocol failures
// leave the state untouched and are returned for display (see
// apperror.Message); nothing is retried.
func (m *Manager) Login(ctx context.Context, email, password string) (*model.Identity, error) {
	if err := ValidateCredentials(email, password); err != nil {
		m.countAttempt("login", err)
		return nil, err
	}
	if m.State().Resolving() {
		return nil, apperror.Resolving()
	}

	resp, err := m.gateway.Login(ctx, email, password)
	if err != nil {
		m.countAttempt("login", err)
		m.logger.Info("login failed", slog.String("reason", apperror.Message(err)))
		return nil, fmt.Errorf("session: login: %w", err)
	}

	m.countAttempt("login", nil)
	return m.signedIn(resp.User), nil
}

// Signup validates input, creates the account, and signs in.
func (m *Manager) Signup(ctx context.Context, email, password, fullName string) (*model.Identity, error) {
	if err := ValidateSignup(email, password, fullName); err != nil {
		m.countAttempt("signup", err)
		return nil, err
	}
	if m.State().Resolving() {
		return nil, apperror.Resolving()
	}

	resp, err := m.gateway.Signup(ctx, email, password, strings.TrimSpace(fullName))
	if err != nil {
		m.countAttempt("signup", err)
		m.logger.Info("signup failed", slog.String("reason", apperror.Message(err)))
		return nil, fmt.Errorf("session: signup: %w", err)
	}

	m.countAttempt("signup", nil)
	return m.signedIn(resp.User), nil
}

// signedIn moves to Authenticated and starts a new welcome.
func (m *Manager) signedIn(user model.Identity) *model.Identity {
	next, _ := m.transition(func(s *State) bool {
		m.epoch++
		id := user
		s.Phase = PhaseAuthenticated
		s.Identity = &id
		s.JustAuthenticated = true
		s.WelcomeSeq++
		return true
	})
	m.logger.Info("signed in", slog.String("userId", user.UserID))
	return next.Identity
}

// Logout forgets the credential and moves to Unauthenticated. It is
// idempotent: a second call ends in the same state.
//
// The in-memory transition happens even if clearing storage fails; that error
// is still returned so the caller can tell the user.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.gateway.Logout(ctx)

	m.signedOut()

	if err != nil {
		return fmt.Errorf("session: logout: %w", err)
	}
	return nil
}

func (m *Manager) signedOut() {
	m.transition(m.clearSession)
}

// signedOutIf signs out only if nobody signed in or out since epoch.
func (m *Manager) signedOutIf(epoch uint64) {
	m.transition(func(s *State) bool {
		if m.epoch != epoch {
			return false
		}
		return m.clearSession(s)
	})
}

// clearSession runs inside transition.
func (m *Manager) clearSession(s *State) bool {
	m.epoch++
	changed := s.Phase != PhaseUnauthenticated || s.Identity != nil || s.JustAuthenticated
	s.Phase = PhaseUnauthenticated
	s.Identity = nil
	s.JustAuthenticated = false
	return changed
}

// =========================================================================
// PROFILE
// =========================================================================

// UpdateProfile saves a new display name. On success the identity is replaced
// with the fields the server confirmed; on failure it is left as it was and
// the error is returned.
//
// If the user signed out (or someone else signed in) while the request was in
// flight, the answer belongs to a session that no longer exists: the state is
// left alone and ErrUnauthenticated is returned.
func (m *Manager) UpdateProfile(ctx context.Context, fullName string) (*model.Identity, error) {
	if err := ValidateFullName(fullName); err != nil {
		m.countAttempt("update_profile", err)
		return nil, err
	}
	epoch, ok := m.authenticatedEpoch()
	if !ok {
		return nil, apperror.Unauthenticated()
	}

	profile, err := m.gateway.UpdateProfile(ctx, strings.TrimSpace(fullName))
	if err != nil {
		m.countAttempt("update_profile", err)
		return nil, fmt.Errorf("session: update profile: %w", err)
	}

	m.countAttempt("update_profile", nil)
	return m.replaceIdentity(epoch, profile)
}

// Refresh re-reads the profile from the backend.
//
// A 401 means the token has been revoked or has expired since we checked it:
// it is treated exactly like a stale credential at startup (cleared, signed
// out) and the error is returned. Any other failure leaves the identity alone.
// As with UpdateProfile, an answer that arrives after the session changed
// hands is dropped.
func (m *Manager) Refresh(ctx context.Context) (*model.Identity, error) {
	epoch, ok := m.authenticatedEpoch()
	if !ok {
		return nil, apperror.Unauthenticated()
	}

	profile, err := m.gateway.GetProfile(ctx)
	if err != nil {
		m.countAttempt("refresh", err)
		if apperror.IsUnauthorizedStatus(err) && m.currentEpoch() == epoch {
			m.logger.Warn("credential rejected during refresh, signing out")
			m.metrics.StaleCredentials.Inc()
			if clearErr := m.store.Clear(ctx); clearErr != nil {
				m.logger.Error("failed to clear rejected credential",
					slog.String("error", clearErr.Error()),
				)
			}
			m.signedOutIf(epoch)
		}
		return nil, fmt.Errorf("session: refresh: %w", err)
	}

	m.countAttempt("refresh", nil)
	return m.replaceIdentity(epoch, profile)
}

// replaceIdentity swaps in a server-confirmed profile if the session that
// asked for it is still the current one.
func (m *Manager) replaceIdentity(epoch uint64, profile *model.Identity) (*model.Identity, error) {
	id := *profile
	var stale bool
	m.transition(func(s *State) bool {
		if s.Phase != PhaseAuthenticated || m.epoch != epoch {
			stale = true
			return false
		}
		cp := id
		s.Identity = &cp
		return true
	})
	if stale {
		m.logger.Info("dropping profile from a session that has ended")
		return nil, apperror.Unauthenticated()
	}
	return &id, nil
}

func (m *Manager) authenticatedEpoch() (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch, m.state.Phase == PhaseAuthenticated
}

func (m *Manager) currentEpoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

// =========================================================================
// WELCOME FLAG
// =========================================================================

// DismissWelcome clears the welcome flag (the user closed the notification).
func (m *Manager) DismissWelcome() {
	m.transition(func(s *State) bool {
		if !s.JustAuthenticated {
			return false
		}
		s.JustAuthenticated = false
		return true
	})
}

// ExpireWelcome clears the welcome flag only if seq still identifies the
// current welcome. It reports whether anything changed.
func (m *Manager) ExpireWelcome(seq uint64) bool {
	_, changed := m.transition(func(s *State) bool {
		if !s.JustAuthenticated || s.WelcomeSeq != seq {
			return false
		}
		s.JustAuthenticated = false
		return true
	})
	return changed
}

// =========================================================================
// INTERNALS
// =========================================================================

// transition applies fn to the state and, if fn reports a change, pushes the
// new snapshot to every subscriber before returning.
func (m *Manager) transition(fn func(s *State) bool) (State, bool) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	prev := m.state.Phase
	if !fn(&m.state) {
		snap := m.state.clone()
		m.mu.Unlock()
		return snap, false
	}
	next := m.state.clone()
	listeners := make([]listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	if prev != next.Phase {
		m.metrics.SessionTransitions.WithLabelValues(prev.String(), next.Phase.String()).Inc()
		m.logger.Info("session transition",
			slog.String("from", prev.String()),
			slog.String("to", next.Phase.String()),
		)
		if prev == PhaseResolving {
			m.resolvedOnce.Do(func() { close(m.resolved) })
		}
	}

	for _, l := range listeners {
		l.fn(next.clone())
	}
	return next, true
}

func (m *Manager) countAttempt(operation string, err error) {
	m.metrics.AuthAttempts.WithLabelValues(operation, outcomeLabel(err)).Inc()
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperror.ErrValidation):
		return "validation_error"
	case errors.Is(err, apperror.ErrAPI):
		return "api_error"
	case errors.Is(err, apperror.ErrProtocol):
		return "protocol_error"
	default:
		return "error"
	}
}
