package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sakif/clint-crypto/internal/apperror"
	"github.com/sakif/clint-crypto/internal/metrics"
	"github.com/sakif/clint-crypto/internal/model"
	"github.com/sakif/clint-crypto/internal/repository"
	"github.com/sakif/clint-crypto/internal/repository/memory"
	"github.com/sakif/clint-crypto/internal/repository/mocks"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeGateway behaves like api.Client against an in-memory "backend": it
// persists tokens into the shared store on login/signup and clears it on
// logout. Set the *Err fields to simulate failures.
type fakeGateway struct {
	mu    sync.Mutex
	store repository.CredentialStore

	accounts map[string]model.Identity // keyed by email
	tokens   map[string]string         // token → email
	nextID   int

	loginErr   error
	signupErr  error
	profileErr error
	updateErr  error

	// profileGate and updateGate, when set, make GetProfile and
	// UpdateProfile wait until they are closed.
	profileGate chan struct{}
	updateGate  chan struct{}

	calls map[string]int
}

func newFakeGateway(store repository.CredentialStore) *fakeGateway {
	return &fakeGateway{
		store:    store,
		accounts: make(map[string]model.Identity),
		tokens:   make(map[string]string),
		calls:    make(map[string]int),
	}
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeGateway) issue(ctx context.Context, email string) (*model.AuthResponse, error) {
	f.nextID++
	token := fmt.Sprintf("tok-%d-%s", f.nextID, email)
	f.tokens[token] = email
	if err := f.store.Set(ctx, token); err != nil {
		return nil, err
	}
	return &model.AuthResponse{Token: token, User: f.accounts[email]}, nil
}

func (f *fakeGateway) Signup(ctx context.Context, email, password, fullName string) (*model.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["signup"]++
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	f.accounts[email] = model.Identity{UserID: "user-" + email, Email: email, FullName: fullName}
	return f.issue(ctx, email)
}

func (f *fakeGateway) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["login"]++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if _, ok := f.accounts[email]; !ok {
		return nil, apperror.APIFailure(http.StatusUnauthorized, "Invalid email or password")
	}
	return f.issue(ctx, email)
}

func (f *fakeGateway) Logout(ctx context.Context) error {
	f.mu.Lock()
	f.calls["logout"]++
	f.mu.Unlock()
	return f.store.Clear(ctx)
}

func (f *fakeGateway) GetProfile(ctx context.Context) (*model.Identity, error) {
	f.mu.Lock()
	f.calls["profile"]++
	gate := f.profileGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, apperror.ProtocolFailure(0, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	token, _ := f.store.Get(ctx)
	email, ok := f.tokens[token]
	if !ok {
		return nil, apperror.APIFailure(http.StatusUnauthorized, "Unauthorized")
	}
	id := f.accounts[email]
	return &id, nil
}

func (f *fakeGateway) UpdateProfile(ctx context.Context, fullName string) (*model.Identity, error) {
	// The token goes out with the request, before any waiting.
	token, _ := f.store.Get(ctx)

	f.mu.Lock()
	f.calls["update"]++
	gate := f.updateGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, apperror.ProtocolFailure(0, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	email := f.tokens[token]
	id := f.accounts[email]
	id.FullName = fullName
	f.accounts[email] = id
	return &id, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestManager(gw Gateway, store repository.CredentialStore) *Manager {
	return NewManager(gw, store, testLogger(), metrics.New(prometheus.NewRegistry()))
}

// signedInManager returns a bootstrapped manager with a signed-up account.
func signedInManager(t *testing.T) (*Manager, *fakeGateway, *memory.CredentialStore) {
	t.Helper()
	store := memory.NewCredentialStore("")
	gw := newFakeGateway(store)
	m := newTestManager(gw, store)
	require.NoError(t, m.Bootstrap(context.Background()))
	_, err := m.Signup(context.Background(), "a@b.com", "longenough1", "Ann")
	require.NoError(t, err)
	return m, gw, store
}

func storedToken(t *testing.T, store repository.CredentialStore) string {
	t.Helper()
	token, err := store.Get(context.Background())
	require.NoError(t, err)
	return token
}

// =========================================================================
// BOOTSTRAP TESTS
// =========================================================================

func TestNewManager_StartsResolving(t *testing.T) {
	m := newTestManager(newFakeGateway(memory.NewCredentialStore("")), memory.NewCredentialStore(""))

	st := m.State()
	assert.True(t, st.Resolving())
	assert.Nil(t, st.Identity)
	select {
	case <-m.Resolved():
		t.Fatal("Resolved() closed before Bootstrap")
	default:
	}
}

func TestBootstrap_NoCredential(t *testing.T) {
	store := memory.NewCredentialStore("")
	gw := newFakeGateway(store)
	m := newTestManager(gw, store)

	require.NoError(t, m.Bootstrap(context.Background()))

	st := m.State()
	assert.Equal(t, PhaseUnauthenticated, st.Phase)
	assert.Nil(t, st.Identity)
	assert.Zero(t, gw.count("profile"), "no token means no profile fetch")
	<-m.Resolved()
}

func TestBootstrap_ValidCredential(t *testing.T) {
	store := memory.NewCredentialStore("")
	gw := newFakeGateway(store)
	gw.accounts["a@b.com"] = model.Identity{UserID: "u1", Email: "a@b.com", FullName: "Ann"}
	gw.tokens["good"] = "a@b.com"
	require.NoError(t, store.Set(context.Background(), "good"))

	m := newTestManager(gw, store)
	require.NoError(t, m.Bootstrap(context.Background()))

	st := m.State()
	assert.Equal(t, PhaseAuthenticated, st.Phase)
	require.NotNil(t, st.Identity)
	assert.Equal(t, "a@b.com", st.Identity.Email)
	assert.False(t, st.JustAuthenticated, "restoring a session is not a fresh sign-in")
}

func TestBootstrap_StaleCredentialIsClearedSilently(t *testing.T) {
	store := memory.NewCredentialStore("revoked-token")
	gw := newFakeGateway(store)
	m := newTestManager(gw, store)

	err := m.Bootstrap(context.Background())

	require.NoError(t, err, "a stale credential is not reported to the caller")
	st := m.State()
	assert.Equal(t, PhaseUnauthenticated, st.Phase)
	assert.Nil(t, st.Identity)
	assert.Empty(t, storedToken(t, store))
}

func TestBootstrap_ProtocolFailureAlsoDiscardsToken(t *testing.T) {
	store := memory.NewCredentialStore("maybe-good")
	gw := newFakeGateway(store)
	gw.profileErr = apperror.ProtocolFailure(0, errors.New("connection refused"))
	m := newTestManager(gw, store)

	require.NoError(t, m.Bootstrap(context.Background()))

	assert.Equal(t, PhaseUnauthenticated, m.State().Phase)
	assert.Empty(t, storedToken(t, store))
}

func TestBootstrap_UnreadableStoreIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockCredentialStore(ctrl)
	store.EXPECT().Get(gomock.Any()).Return("", errors.New("disk I/O error"))

	gw := newFakeGateway(memory.NewCredentialStore(""))
	m := newTestManager(gw, store)

	err := m.Bootstrap(context.Background())

	require.Error(t, err)
	assert.True(t, m.State().Resolving(), "nothing was learned, so nothing is decided")
	assert.Zero(t, gw.count("profile"))
}

func TestBootstrap_ClearFailureStillSignsOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockCredentialStore(ctrl)
	gomock.InOrder(
		store.EXPECT().Get(gomock.Any()).Return("stale", nil),
		store.EXPECT().Clear(gomock.Any()).Return(errors.New("read-only database")),
	)

	gw := newFakeGateway(memory.NewCredentialStore(""))
	gw.profileErr = apperror.APIFailure(http.StatusUnauthorized, "Unauthorized")
	m := newTestManager(gw, store)

	require.NoError(t, m.Bootstrap(context.Background()))
	assert.Equal(t, PhaseUnauthenticated, m.State().Phase)
}

func TestBootstrap_CancelledContextKeepsToken(t *testing.T) {
	store := memory.NewCredentialStore("")
	gw := newFakeGateway(store)
	gw.tokens["good"] = "a@b.com"
	gw.profileGate = make(chan struct{}) // never released
	require.NoError(t, store.Set(context.Background(), "good"))
	m := newTestManager(gw, store)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Bootstrap(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, m.State().Resolving())
	assert.Equal(t, "good", storedToken(t, store))
}

func TestBootstrap_SecondCallIsNoop(t *testing.T) {
	store := memory.NewCredentialStore("")
	gw := newFakeGateway(store)
	m := newTestManager(gw, store)

	require.NoError(t, m.Bootstrap(context.Background()))
	require.NoError(t, m.Bootstrap(context.Background()))
	assert.Equal(t, PhaseUnauthenticated, m.State().Phase)
}

func TestBootstrap_LogoutWhileResolvingWins(t *testing.T) {
	store := memory.NewCredentialStore("")
	gw := newFakeGateway(store)
	gw.accounts["a@b.com"] = model.Identity{Email: "a@b.com"}
	gw.tokens["good"] = "a@b.com"
	gw.profileGate = make(chan struct{})
	require.NoError(t, store.Set(context.Background(), "good"))
	m := newTestManager(gw, store)

	done := make(chan error, 1)
	go func() { done <- m.Bootstrap(context.Background()) }()

	// Wait until the profile fetch is in flight, then sign out under it.
	require.Eventually(t, func() bool { return gw.count("profile") == 1 }, time.Second, time.Millisecond)
	require.NoError(t, m.Logout(context.Background()))
	close(gw.profileGate)
	require.NoError(t, <-done)

	assert.Equal(t, PhaseUnauthenticated, m.State().Phase)
	assert.Nil(t, m.State().Identity)
}

// =========================================================================
// LOGIN / SIGNUP TESTS
// =========================================================================

func TestSignup_Success(t *testing.T) {
	m, _, store := signedInManager(t)

	st := m.State()
	assert.False(t, st.Resolving())
	require.NotNil(t, st.Identity)
	assert.Equal(t, "a@b.com", st.Identity.Email)
	assert.Equal(t, "Ann", st.Identity.FullName)
	assert.True(t, st.JustAuthenticated)
	assert.NotEmpty(t, storedToken(t, store))
}

func TestLogin_ValidationRejectsBeforeNetwork(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		password  string
		wantField string
		wantMsg   string
	}{
		{"short password", "a@b.com", "short", "password", "Password must be at least 8 characters"},
		{"email without at-sign", "ab.com", "longenough1", "email", "Please enter a valid email address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewCredentialStore("")
			gw := newFakeGateway(store)
			m := newTestManager(gw, store)
			require.NoError(t, m.Bootstrap(context.Background()))
			before := m.State()

			_, err := m.Login(context.Background(), tt.email, tt.password)

			require.ErrorIs(t, err, apperror.ErrValidation)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantField, appErr.Field)
			assert.Equal(t, tt.wantMsg, apperror.Message(err))
			assert.Zero(t, gw.count("login"), "validation must short-circuit the network call")
			assert.Equal(t, before, m.State())
		})
	}
}

func TestSignup_ValidationRequiresName(t *testing.T) {
	store := memory.NewCredentialStore("")
	gw := newFakeGateway(store)
	m := newTestManager(gw, store)
	require.NoError(t, m.Bootstrap(context.Background()))

	_, err := m.Signup(context.Background(), "a@b.com", "longenough1", "   ")

	assert.Equal(t, "Please enter your full name", apperror.Message(err))
	assert.Zero(t, gw.count("signup"))
}

func TestLogin_APIFailureLeavesStateUnchanged(t *testing.T) {
	store := memory.NewCredentialStore("")
	gw := newFakeGateway(store)
	m := newTestManager(gw, store)
	require.NoError(t, m.Bootstrap(context.Background()))

	_, err := m.Login(context.Background(), "nobody@b.com", "longenough1")

	assert.ErrorIs(t, err, apperror.ErrAPI)
	assert.Equal(t, "Invalid email or password", apperror.Message(err))
	assert.Equal(t, PhaseUnauthenticated, m.State().Phase)
	assert.Equal(t, 1, gw.count("login"), "no automatic retry")
	assert.Empty(t, storedToken(t, store))
}

func TestLogin_ProtocolFailureShowsGenericMessage(t *testing.T) {
	store := memory.NewCredentialStore("")
	gw := newFakeGateway(store)
	gw.loginErr = apperror.ProtocolFailure(0, errors.New("no such host"))
	m := newTestManager(gw, store)
	require.NoError(t, m.Bootstrap(context.Background()))

	_, err := m.Login(context.Background(), "a@b.com", "longenough1")

	assert.ErrorIs(t, err, apperror.ErrProtocol)
	assert.Equal(t, apperror.GenericMessage, apperror.Message(err))
	assert.Equal(t, PhaseUnauthenticated, m.State().Phase)
}

func TestLogin_WhileResolvingIsRejected(t *testing.T) {
	store := memory.NewCredentialStore("")
	gw := newFakeGateway(store)
	m := newTestManager(gw, store)

	_, err := m.Login(context.Background(), "a@b.com", "longenough1")

	assert.ErrorIs(t, err, apperror.ErrResolving)
	assert.Zero(t, gw.count("login"))
}

func TestLogin_NewLoginStartsNewWelcome(t *testing.T) {
	m, _, _ := signedInManager(t)
	first := m.State().WelcomeSeq

	_, err := m.Login(context.Background(), "a@b.com", "longenough1")
	require.NoError(t, err)

	st := m.State()
	assert.True(t, st.JustAuthenticated)
	assert.Greater(t, st.WelcomeSeq, first)
}

// Round trip: a successful login followed by a fresh process (new Manager,
// same durable store) reconstructs the same identity.
func TestLogin_ThenFreshBootstrapRestoresIdentity(t *testing.T) {
	m, gw, store := signedInManager(t)
	require.NoError(t, m.Logout(context.Background()))
	_, err := m.Login(context.Background(), "a@b.com", "longenough1")
	require.NoError(t, err)

	restarted := newTestManager(gw, store)
	require.NoError(t, restarted.Bootstrap(context.Background()))

	st := restarted.State()
	require.Equal(t, PhaseAuthenticated, st.Phase)
	assert.Equal(t, "a@b.com", st.Identity.Email)
}

// =========================================================================
// LOGOUT TESTS
// =========================================================================

func TestLogout_IsIdempotent(t *testing.T) {
	m, _, store := signedInManager(t)

	require.NoError(t, m.Logout(context.Background()))
	once := m.State()
	require.NoError(t, m.Logout(context.Background()))
	twice := m.State()

	assert.Equal(t, once, twice)
	assert.Equal(t, PhaseUnauthenticated, twice.Phase)
	assert.False(t, twice.JustAuthenticated)
	assert.Nil(t, twice.Identity)
	assert.Empty(t, storedToken(t, store))
}

func TestLogout_StorageFailureStillSignsOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockCredentialStore(ctrl)
	store.EXPECT().Get(gomock.Any()).Return("", nil)
	store.EXPECT().Clear(gomock.Any()).Return(errors.New("disk full"))

	m := newTestManager(newFakeGateway(store), store)
	require.NoError(t, m.Bootstrap(context.Background()))

	err := m.Logout(context.Background())

	assert.Error(t, err)
	assert.Equal(t, PhaseUnauthenticated, m.State().Phase)
}

// =========================================================================
// PROFILE TESTS
// =========================================================================

func TestUpdateProfile_ReplacesOnlyConfirmedFields(t *testing.T) {
	m, _, _ := signedInManager(t)
	before := *m.State().Identity

	updated, err := m.UpdateProfile(context.Background(), "Ann Lee")
	require.NoError(t, err)

	assert.Equal(t, "Ann Lee", updated.FullName)
	after := m.State().Identity
	assert.Equal(t, "Ann Lee", after.FullName)
	assert.Equal(t, before.Email, after.Email)
	assert.Equal(t, before.UserID, after.UserID)
}

func TestUpdateProfile_FailureKeepsIdentity(t *testing.T) {
	m, gw, _ := signedInManager(t)
	gw.updateErr = apperror.APIFailure(http.StatusBadRequest, "Name too long")
	before := *m.State().Identity

	_, err := m.UpdateProfile(context.Background(), "Ann Lee")

	assert.Equal(t, "Name too long", apperror.Message(err))
	assert.Equal(t, before, *m.State().Identity)
}

func TestUpdateProfile_RequiresSignIn(t *testing.T) {
	store := memory.NewCredentialStore("")
	gw := newFakeGateway(store)
	m := newTestManager(gw, store)
	require.NoError(t, m.Bootstrap(context.Background()))

	_, err := m.UpdateProfile(context.Background(), "Ann")

	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
	assert.Zero(t, gw.count("update"))
}

func TestUpdateProfile_LateAnswerForEndedSessionIsDropped(t *testing.T) {
	tests := []struct {
		name    string
		between func(t *testing.T, m *Manager)
		want    string // email of the identity afterwards, "" for signed out
	}{
		{
			name: "logout then another user logs in",
			between: func(t *testing.T, m *Manager) {
				require.NoError(t, m.Logout(context.Background()))
				_, err := m.Login(context.Background(), "bob@b.com", "longenough1")
				require.NoError(t, err)
			},
			want: "bob@b.com",
		},
		{
			name: "another user logs in without a logout",
			between: func(t *testing.T, m *Manager) {
				_, err := m.Login(context.Background(), "bob@b.com", "longenough1")
				require.NoError(t, err)
			},
			want: "bob@b.com",
		},
		{
			name: "logout only",
			between: func(t *testing.T, m *Manager) {
				require.NoError(t, m.Logout(context.Background()))
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, gw, _ := signedInManager(t)
			gw.mu.Lock()
			gw.accounts["bob@b.com"] = model.Identity{UserID: "user-bob", Email: "bob@b.com", FullName: "Bob"}
			gate := make(chan struct{})
			gw.updateGate = gate
			gw.mu.Unlock()

			type result struct {
				id  *model.Identity
				err error
			}
			done := make(chan result, 1)
			go func() {
				id, err := m.UpdateProfile(context.Background(), "Ann Lee")
				done <- result{id, err}
			}()
			require.Eventually(t, func() bool { return gw.count("update") == 1 }, time.Second, time.Millisecond)

			tt.between(t, m)
			close(gate)
			res := <-done

			assert.ErrorIs(t, res.err, apperror.ErrUnauthenticated)
			assert.Nil(t, res.id)
			st := m.State()
			if tt.want == "" {
				assert.Equal(t, PhaseUnauthenticated, st.Phase)
				assert.Nil(t, st.Identity)
				return
			}
			require.NotNil(t, st.Identity)
			assert.Equal(t, tt.want, st.Identity.Email)
			assert.Equal(t, "Bob", st.Identity.FullName)
		})
	}
}

func TestRefresh_LateRejectionDoesNotSignOutNewSession(t *testing.T) {
	m, gw, store := signedInManager(t)
	gw.mu.Lock()
	gw.accounts["bob@b.com"] = model.Identity{UserID: "user-bob", Email: "bob@b.com", FullName: "Bob"}
	gate := make(chan struct{})
	gw.profileGate = gate
	gw.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := m.Refresh(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return gw.count("profile") == 1 }, time.Second, time.Millisecond)

	_, err := m.Login(context.Background(), "bob@b.com", "longenough1")
	require.NoError(t, err)
	bobToken := storedToken(t, store)

	gw.mu.Lock()
	gw.profileErr = apperror.APIFailure(http.StatusUnauthorized, "Unauthorized")
	gw.mu.Unlock()
	close(gate)

	assert.Error(t, <-done)
	st := m.State()
	assert.Equal(t, PhaseAuthenticated, st.Phase)
	assert.Equal(t, "bob@b.com", st.Identity.Email)
	assert.Equal(t, bobToken, storedToken(t, store))
}

func TestRefresh_RevokedTokenSignsOut(t *testing.T) {
	m, gw, store := signedInManager(t)
	gw.profileErr = apperror.APIFailure(http.StatusUnauthorized, "Unauthorized")

	_, err := m.Refresh(context.Background())

	assert.Error(t, err)
	assert.Equal(t, PhaseUnauthenticated, m.State().Phase)
	assert.Empty(t, storedToken(t, store))
}

func TestRefresh_OtherFailureKeepsSession(t *testing.T) {
	m, gw, store := signedInManager(t)
	gw.profileErr = apperror.ProtocolFailure(0, errors.New("timeout"))

	_, err := m.Refresh(context.Background())

	assert.ErrorIs(t, err, apperror.ErrProtocol)
	assert.Equal(t, PhaseAuthenticated, m.State().Phase)
	assert.NotEmpty(t, storedToken(t, store))
}

// =========================================================================
// WELCOME FLAG & SUBSCRIPTION TESTS
// =========================================================================

func TestExpireWelcome_IgnoresStaleSequence(t *testing.T) {
	m, _, _ := signedInManager(t)
	seq := m.State().WelcomeSeq

	assert.False(t, m.ExpireWelcome(seq-1))
	assert.True(t, m.State().JustAuthenticated)

	assert.True(t, m.ExpireWelcome(seq))
	assert.False(t, m.State().JustAuthenticated)

	assert.False(t, m.ExpireWelcome(seq), "second expiry is a no-op")
}

func TestDismissWelcome(t *testing.T) {
	m, _, _ := signedInManager(t)

	m.DismissWelcome()

	assert.False(t, m.State().JustAuthenticated)
	assert.Equal(t, PhaseAuthenticated, m.State().Phase)
}

func TestSubscribe_ReceivesTransitionsInOrder(t *testing.T) {
	store := memory.NewCredentialStore("")
	gw := newFakeGateway(store)
	m := newTestManager(gw, store)

	var phases []Phase
	unsubscribe := m.Subscribe(func(s State) { phases = append(phases, s.Phase) })

	require.NoError(t, m.Bootstrap(context.Background()))
	_, err := m.Signup(context.Background(), "a@b.com", "longenough1", "Ann")
	require.NoError(t, err)
	require.NoError(t, m.Logout(context.Background()))

	unsubscribe()
	unsubscribe()
	_, err = m.Login(context.Background(), "a@b.com", "longenough1")
	require.NoError(t, err)

	assert.Equal(t, []Phase{PhaseUnauthenticated, PhaseAuthenticated, PhaseUnauthenticated}, phases)
}

func TestState_SnapshotIsACopy(t *testing.T) {
	m, _, _ := signedInManager(t)

	snap := m.State()
	snap.Identity.FullName = "Mallory"

	assert.Equal(t, "Ann", m.State().Identity.FullName)
}
