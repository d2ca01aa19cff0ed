package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/sakif/clint-crypto/internal/apperror"
	"github.com/sakif/clint-crypto/internal/metrics"
	"github.com/sakif/clint-crypto/internal/model"
	"github.com/sakif/clint-crypto/internal/repository/memory"
)

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestClient points a Client at handler through an httptest server.
func newTestClient(t *testing.T, handler http.Handler, token string) (*Client, *memory.CredentialStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := memory.NewCredentialStore(token)
	c := New(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}, store, testLogger(), metrics.New(prometheus.NewRegistry()))
	return c, store
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =========================================================================
// REQUEST TESTS
// =========================================================================

func TestRequest_AttachesBearerAndJSONHeaders(t *testing.T) {
	var got *http.Request
	var gotBody map[string]string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
	}), "tok-123")

	var out map[string]string
	err := c.Request(context.Background(), http.MethodPut, "/users/me", map[string]string{"fullName": "Ann"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "/users/me", got.URL.Path)
	assert.Equal(t, "Bearer tok-123", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.NotEmpty(t, got.Header.Get("X-Request-ID"))
	assert.Equal(t, "Ann", gotBody["fullName"])
	assert.Equal(t, "yes", out["ok"])
}

func TestRequest_NoTokenNoAuthorizationHeader(t *testing.T) {
	var got *http.Request
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		writeJSON(w, http.StatusOK, map[string]string{})
	}), "")

	require.NoError(t, c.Request(context.Background(), http.MethodGet, "/users/me", nil, nil))
	assert.Empty(t, got.Header.Get("Authorization"))
	// Content-Type is sent even without a body.
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
}

func TestRequest_ErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantErr     error
		wantMessage string
		wantStatus  int
	}{
		{
			name: "server message is surfaced verbatim",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "Email already registered"})
			},
			wantErr:     apperror.ErrAPI,
			wantMessage: "Email already registered",
			wantStatus:  http.StatusConflict,
		},
		{
			name: "missing error field falls back to generic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})
			},
			wantErr:     apperror.ErrAPI,
			wantMessage: apperror.GenericMessage,
			wantStatus:  http.StatusInternalServerError,
		},
		{
			name: "JSON that is not an object still maps to API error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadRequest, []string{"nope"})
			},
			wantErr:     apperror.ErrAPI,
			wantMessage: apperror.GenericMessage,
			wantStatus:  http.StatusBadRequest,
		},
		{
			name: "HTML error page is a protocol failure",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = io.WriteString(w, "<html>Bad Gateway</html>")
			},
			wantErr:     apperror.ErrProtocol,
			wantMessage: apperror.GenericMessage,
			wantStatus:  http.StatusBadGateway,
		},
		{
			name: "non-JSON 200 is a protocol failure",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, "OK")
			},
			wantErr:     apperror.ErrProtocol,
			wantMessage: apperror.GenericMessage,
			wantStatus:  http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.handler, "")

			err := c.Request(context.Background(), http.MethodGet, "/users/me", nil, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantMessage, apperror.Message(err))

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantStatus, appErr.Status)
		})
	}
}

func TestRequest_UnreachableIsProtocolFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listens there any more

	c := New(Config{BaseURL: url, Timeout: time.Second}, memory.NewCredentialStore(""), testLogger(), metrics.New(prometheus.NewRegistry()))
	err := c.Request(context.Background(), http.MethodGet, "/users/me", nil, nil)

	assert.ErrorIs(t, err, apperror.ErrProtocol)
	assert.Equal(t, apperror.GenericMessage, apperror.Message(err))
}

func TestRequest_TimeoutIsProtocolFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, memory.NewCredentialStore(""), testLogger(), metrics.New(prometheus.NewRegistry()))
	err := c.Request(context.Background(), http.MethodGet, "/users/me", nil, nil)

	assert.ErrorIs(t, err, apperror.ErrProtocol)
}

func TestRequest_ConcurrentCallsAreIndependent(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, model.Identity{Email: "a@b.com"})
	}), "tok")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetProfile(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 10, hits.Load())
}

// =========================================================================
// DERIVED OPERATION TESTS
// =========================================================================

func TestLogin_PersistsToken(t *testing.T) {
	var gotBody map[string]string
	c, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, http.StatusOK, model.AuthResponse{
			Token: "fresh-token",
			User:  model.Identity{UserID: "u1", Email: "a@b.com", FullName: "Ann"},
		})
	}), "")

	resp, err := c.Login(context.Background(), "a@b.com", "longenough1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", resp.User.Email)
	assert.Equal(t, map[string]string{"email": "a@b.com", "password": "longenough1"}, gotBody)

	token, _ := store.Get(context.Background())
	assert.Equal(t, "fresh-token", token)
}

func TestLogin_FailureDoesNotTouchStore(t *testing.T) {
	c, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
	}), "old-token")

	_, err := c.Login(context.Background(), "a@b.com", "wrongpassword")
	assert.ErrorIs(t, err, apperror.ErrAPI)
	assert.Equal(t, "Invalid email or password", apperror.Message(err))

	token, _ := store.Get(context.Background())
	assert.Equal(t, "old-token", token)
}

func TestSignup_SendsFullNameAndPersistsToken(t *testing.T) {
	var gotBody map[string]string
	c, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/signup", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, http.StatusCreated, model.AuthResponse{
			Token: "signup-token",
			User:  model.Identity{UserID: "u2", Email: "a@b.com", FullName: "Ann"},
		})
	}), "")

	resp, err := c.Signup(context.Background(), "a@b.com", "longenough1", "Ann")
	require.NoError(t, err)
	assert.Equal(t, "Ann", resp.User.FullName)
	assert.Equal(t, "Ann", gotBody["fullName"])

	token, _ := store.Get(context.Background())
	assert.Equal(t, "signup-token", token)
}

func TestSignup_MissingTokenIsProtocolFailure(t *testing.T) {
	c, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]string{"email": "a@b.com"}})
	}), "")

	_, err := c.Signup(context.Background(), "a@b.com", "longenough1", "Ann")
	assert.ErrorIs(t, err, apperror.ErrProtocol)

	token, _ := store.Get(context.Background())
	assert.Empty(t, token)
}

func TestLogout_ClearsStoreWithoutNetwork(t *testing.T) {
	var hits atomic.Int32
	c, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}), "tok")

	require.NoError(t, c.Logout(context.Background()))
	require.NoError(t, c.Logout(context.Background()))

	token, _ := store.Get(context.Background())
	assert.Empty(t, token)
	assert.Zero(t, hits.Load(), "logout must not call the backend")
}

func TestProfileRoundTrip(t *testing.T) {
	profile := model.Identity{UserID: "u1", Email: "a@b.com", FullName: "Ann"}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			profile.FullName = body["fullName"]
		}
		writeJSON(w, http.StatusOK, profile)
	}), "tok")

	got, err := c.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.FullName)

	updated, err := c.UpdateProfile(context.Background(), "Ann Lee")
	require.NoError(t, err)
	assert.Equal(t, model.Identity{UserID: "u1", Email: "a@b.com", FullName: "Ann Lee"}, *updated)
}

func TestWallets(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, []model.Wallet{{ID: "w1", Currency: "BTC", Balance: 1.5}})
		case http.MethodPost:
			var req model.CreateWalletRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			writeJSON(w, http.StatusCreated, model.Wallet{ID: "w2", Currency: req.Currency, Address: req.Address})
		}
	}), "tok")

	wallets, err := c.ListWallets(context.Background())
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, "BTC", wallets[0].Currency)

	created, err := c.CreateWallet(context.Background(), "ETH", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "w2", created.ID)
	assert.Equal(t, "0xabc", created.Address)
}

// =========================================================================
// TRACING
// =========================================================================

func TestRequest_RecordsSpan(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       any
		wantStatus codes.Code
		wantDesc   string
	}{
		{"success", http.StatusOK, map[string]string{"email": "a@b.com"}, codes.Unset, ""},
		{"api failure", http.StatusUnauthorized, map[string]string{"error": "Unauthorized"}, codes.Error, "Unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))
			t.Cleanup(srv.Close)

			rec := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
			t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

			c := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second, TracerProvider: tp},
				memory.NewCredentialStore("tok"), testLogger(), metrics.New(prometheus.NewRegistry()))

			_, _ = c.GetProfile(context.Background())

			spans := rec.Ended()
			require.Len(t, spans, 1)
			span := spans[0]
			assert.Equal(t, "api GET /users/me", span.Name())
			assert.Equal(t, trace.SpanKindClient, span.SpanKind())
			assert.Equal(t, tt.wantStatus, span.Status().Code)
			assert.Equal(t, tt.wantDesc, span.Status().Description)

			attrs := make(map[attribute.Key]attribute.Value)
			for _, kv := range span.Attributes() {
				attrs[kv.Key] = kv.Value
			}
			assert.Equal(t, "GET", attrs["http.request.method"].AsString())
			assert.Equal(t, "/users/me", attrs["url.path"].AsString())
			assert.Equal(t, int64(tt.status), attrs["http.response.status_code"].AsInt64())
		})
	}
}
