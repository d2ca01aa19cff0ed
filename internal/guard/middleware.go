package guard

import (
	"context"
	"net/http"

	"github.com/sakif/clint-crypto/internal/session"
)

type contextKey string

const (
	decisionKey contextKey = "guardDecision"
	stateKey    contextKey = "guardState"
)

// Middleware runs Decide for every request that reaches it.
//
// Redirect outcomes are answered here with 303 See Other and a Location
// header. Render and RenderLoading are passed on to next with the Decision in
// the request context (see DecisionFromContext); next decides how a view or
// the loading placeholder is drawn.
//
// current is called once per request so a request never mixes two snapshots.
// The snapshot the decision was made from travels with it (StateFromContext),
// so next can describe the session without reading it again.
func Middleware(routes *Routes, current func() session.State) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := current()
			d := routes.Decide(st, r.URL.Path)

			switch d.Outcome {
			case RedirectSignedOutEntry, RedirectAuthenticatedHome:
				http.Redirect(w, r, d.Location, http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), decisionKey, d)
			ctx = context.WithValue(ctx, stateKey, st)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DecisionFromContext returns the Decision Middleware stored for this request.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionKey).(Decision)
	return d, ok
}

// StateFromContext returns the session snapshot Middleware decided on.
func StateFromContext(ctx context.Context) (session.State, bool) {
	st, ok := ctx.Value(stateKey).(session.State)
	return st, ok
}
