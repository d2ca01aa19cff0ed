package session

import "github.com/sakif/clint-crypto/internal/model"

// Phase is where the session is in its lifecycle.
//
// THREE STATES, NOT A BOOLEAN:
// "no identity in memory" means two different things depending on whether the
// stored credential has been checked yet. PhaseResolving is "not known yet";
// PhaseUnauthenticated is "known to be signed out". Collapsing them is what
// produces a flash of the sign-in screen on reload.
type Phase int

const (
	PhaseResolving Phase = iota
	PhaseUnauthenticated
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseResolving:
		return "resolving"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// MarshalText makes Phase encode as its name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is an immutable snapshot of the session.
//
// Identity is non-nil exactly when Phase == PhaseAuthenticated. WelcomeSeq
// counts successful logins/signups; it tags each welcome so that a timer armed
// for an earlier login can't dismiss a later one.
type State struct {
	Phase             Phase           `json:"phase"`
	Identity          *model.Identity `json:"identity"`
	JustAuthenticated bool            `json:"justAuthenticated"`
	WelcomeSeq        uint64          `json:"welcomeSeq"`
}

// Resolving reports whether the startup credential check is still running.
// While true, nobody may assume the user is signed out.
func (s State) Resolving() bool { return s.Phase == PhaseResolving }

// Authenticated reports whether a verified identity is present.
func (s State) Authenticated() bool { return s.Phase == PhaseAuthenticated }

// clone copies the identity so subscribers can't mutate manager state
// through the pointer.
func (s State) clone() State {
	if s.Identity != nil {
		id := *s.Identity
		s.Identity = &id
	}
	return s
}
