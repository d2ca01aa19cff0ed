// Package guard decides what a navigation request is allowed to show.
//
// Decide is a pure function of (session state, path). It does no I/O and
// never changes anything; the HTTP shell turns a Decision into a response.
//
// RULE TABLE (first match wins):
//
//	session resolving                → RenderLoading      (any path)
//	unknown path                     → Render NotFound
//	protected view, signed out       → RedirectSignedOutEntry
//	public-only view, signed in      → RedirectAuthenticatedHome
//	otherwise                        → Render view
//
// Resolving wins over everything so nothing, not even the not-found page,
// is shown on half-known state.
package guard

import (
	"strings"

	"github.com/sakif/clint-crypto/internal/session"
)

// Kind classifies a view.
type Kind int

const (
	// Protected views require a signed-in user.
	Protected Kind = iota
	// PublicOnly views are for signed-out users (signup, login).
	PublicOnly
	// Public views are shown to everybody. Only the not-found view uses it.
	Public
)

func (k Kind) String() string {
	switch k {
	case Protected:
		return "protected"
	case PublicOnly:
		return "public-only"
	default:
		return "public"
	}
}

// MarshalText encodes Kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// View is one navigable screen.
type View struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Kind Kind   `json:"kind"`
}

// Outcome is what the caller should do.
type Outcome int

const (
	Render Outcome = iota
	RedirectSignedOutEntry
	RedirectAuthenticatedHome
	RenderLoading
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case RedirectSignedOutEntry:
		return "redirect-signed-out-entry"
	case RedirectAuthenticatedHome:
		return "redirect-authenticated-home"
	case RenderLoading:
		return "render-loading"
	default:
		return "unknown"
	}
}

// MarshalText encodes Outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Decision is the result of Decide.
//
// View is set for Render. Location is set for the two redirects.
type Decision struct {
	Outcome  Outcome `json:"outcome"`
	View     View    `json:"view"`
	Location string  `json:"location,omitempty"`
}

// Routes is the navigation table.
type Routes struct {
	// SignedOutEntry is where signed-out users are sent (the signup screen).
	SignedOutEntry string
	// AuthenticatedHome is where signed-in users are sent.
	AuthenticatedHome string
	NotFound          View

	byPath map[string]View
}

// NewRoutes builds a table from views. Paths are normalised the same way
// request paths are, so "/settings/" and "/settings" are the same entry.
func NewRoutes(signedOutEntry, authenticatedHome string, notFound View, views ...View) *Routes {
	r := &Routes{
		SignedOutEntry:    signedOutEntry,
		AuthenticatedHome: authenticatedHome,
		NotFound:          notFound,
		byPath:            make(map[string]View, len(views)),
	}
	for _, v := range views {
		v.Path = normalize(v.Path)
		r.byPath[v.Path] = v
	}
	return r
}

// DefaultRoutes is the application's navigation table.
func DefaultRoutes() *Routes {
	return NewRoutes("/", "/dashboard",
		View{Name: "not-found", Kind: Public},
		View{Name: "signup", Path: "/", Kind: PublicOnly},
		View{Name: "login", Path: "/login", Kind: PublicOnly},
		View{Name: "dashboard", Path: "/dashboard", Kind: Protected},
		View{Name: "deposit", Path: "/deposit", Kind: Protected},
		View{Name: "withdraw", Path: "/withdraw", Kind: Protected},
		View{Name: "settings", Path: "/settings", Kind: Protected},
	)
}

// Lookup returns the view registered at path.
func (r *Routes) Lookup(path string) (View, bool) {
	v, ok := r.byPath[normalize(path)]
	return v, ok
}

// Decide applies the rule table.
func (r *Routes) Decide(state session.State, path string) Decision {
	if state.Resolving() {
		return Decision{Outcome: RenderLoading}
	}

	view, ok := r.Lookup(path)
	if !ok {
		nf := r.NotFound
		nf.Path = normalize(path)
		return Decision{Outcome: Render, View: nf}
	}

	switch {
	case view.Kind == Protected && !state.Authenticated():
		return Decision{Outcome: RedirectSignedOutEntry, Location: r.SignedOutEntry}
	case view.Kind == PublicOnly && state.Authenticated():
		return Decision{Outcome: RedirectAuthenticatedHome, Location: r.AuthenticatedHome}
	default:
		return Decision{Outcome: Render, View: view}
	}
}

// normalize strips a trailing slash (except on the root) and the query.
func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}
