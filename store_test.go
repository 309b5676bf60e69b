package authsync

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/authsync/clock"
	"github.com/MrEthical07/authsync/persist"
)

var testStart = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func testUser(id string) *User {
	return &User{
		ID:    id,
		Email: id + "@example.com",
		Name:  "User " + id,
	}
}

func newTestStore(t *testing.T, backend *mockBackend) (*SessionStore, *persist.Memory) {
	t.Helper()

	storage := persist.NewMemory()
	store, err := New().
		WithBackend(backend).
		WithPersistence(storage).
		WithClock(clock.NewFake(testStart)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(store.Close)
	return store, storage
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestLoginSuccess(t *testing.T) {
	backend := &mockBackend{
		loginData: AuthData{Token: "tok-1", User: testUser("u1")},
	}
	store, storage := newTestStore(t, backend)

	data, err := store.Login(context.Background(), "u1@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if data.Token != "tok-1" {
		t.Fatalf("returned token = %q, want tok-1", data.Token)
	}

	state := store.State()
	if !state.IsAuthenticated {
		t.Error("expected authenticated state")
	}
	if state.IsLoading {
		t.Error("loading flag still set after settle")
	}
	if state.Err != nil {
		t.Errorf("unexpected state error: %v", state.Err)
	}
	if state.Token != "tok-1" {
		t.Errorf("state token = %q, want tok-1", state.Token)
	}
	if state.User == nil || state.User.ID != "u1" {
		t.Fatalf("state user = %+v, want u1", state.User)
	}

	projection, ok, err := storage.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if projection.UserID != "u1" || !projection.Authenticated {
		t.Errorf("projection = %+v, want u1 authenticated", projection)
	}

	if got := store.MetricsSnapshot().Counters[MetricLoginSuccess]; got != 1 {
		t.Errorf("login success counter = %d, want 1", got)
	}
}

// The persisted projection must never carry the credential. The file store
// makes that observable: the raw blob on disk cannot contain the token.
func TestPersistedProjectionOmitsToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.bin")
	backend := &mockBackend{
		loginData: AuthData{Token: "secret-raw-credential-7f3a", User: testUser("u1")},
	}

	store, err := New().
		WithBackend(backend).
		WithPersistence(persist.NewFile(path)).
		WithClock(clock.NewFake(testStart)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer store.Close()

	if _, err := store.Login(context.Background(), "u1@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read projection file: %v", err)
	}
	if bytes.Contains(raw, []byte("secret-raw-credential-7f3a")) {
		t.Fatal("credential leaked into persisted projection")
	}
	if !bytes.Contains(raw, []byte("u1@example.com")) {
		t.Error("projection missing user identity")
	}
}

func TestLoginFailureKeepsPriorSession(t *testing.T) {
	backend := &mockBackend{
		loginData: AuthData{Token: "tok-1", User: testUser("u1")},
	}
	store, _ := newTestStore(t, backend)

	if _, err := store.Login(context.Background(), "u1@example.com", "pw"); err != nil {
		t.Fatalf("first login: %v", err)
	}

	backend.mu.Lock()
	backend.loginErr = errors.New("password mismatch")
	backend.mu.Unlock()

	_, err := store.Login(context.Background(), "u1@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("second login error = %v, want ErrInvalidCredentials", err)
	}

	state := store.State()
	if !state.IsAuthenticated || state.Token != "tok-1" {
		t.Errorf("prior session disturbed by failed login: %+v", state)
	}
	if state.User == nil || state.User.ID != "u1" {
		t.Errorf("prior user disturbed: %+v", state.User)
	}
	if !errors.Is(state.Err, ErrInvalidCredentials) {
		t.Errorf("state error = %v, want ErrInvalidCredentials", state.Err)
	}
	if state.IsLoading {
		t.Error("loading flag still set after failed settle")
	}

	store.ClearError()
	if state := store.State(); state.Err != nil {
		t.Errorf("error survived ClearError: %v", state.Err)
	}
	if state := store.State(); !state.IsAuthenticated {
		t.Error("ClearError must not touch session fields")
	}
}

func TestLoginExpiredCredentialNotAuthenticated(t *testing.T) {
	expired := signedToken(t, testStart.Add(-time.Hour))
	backend := &mockBackend{
		loginData: AuthData{Token: expired, User: testUser("u1")},
	}
	store, _ := newTestStore(t, backend)

	if _, err := store.Login(context.Background(), "u1@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	state := store.State()
	if state.IsAuthenticated {
		t.Error("expired credential must not read authenticated")
	}
	if state.Token != expired {
		t.Error("token field should still carry the backend credential")
	}
}

func TestLogoutIdempotent(t *testing.T) {
	backend := &mockBackend{
		loginData: AuthData{Token: "tok-1", User: testUser("u1")},
	}
	store, storage := newTestStore(t, backend)

	if _, err := store.Login(context.Background(), "u1@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	store.Logout(context.Background())
	store.Logout(context.Background())

	state := store.State()
	if state.IsAuthenticated || state.User != nil || state.Token != "" {
		t.Errorf("state not cleared: %+v", state)
	}
	if state.IsLoading || state.Err != nil {
		t.Errorf("flags not cleared: %+v", state)
	}
	if backend.logoutCalls != 2 {
		t.Errorf("backend logout calls = %d, want 2", backend.logoutCalls)
	}
	if _, ok, _ := storage.Load(context.Background()); ok {
		t.Error("projection survived logout")
	}
}

func TestLogoutClearsDespiteBackendFailure(t *testing.T) {
	backend := &mockBackend{
		loginData: AuthData{Token: "tok-1", User: testUser("u1")},
		logoutErr: errors.New("network down"),
	}
	store, _ := newTestStore(t, backend)

	if _, err := store.Login(context.Background(), "u1@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	store.Logout(context.Background())

	if state := store.State(); state.IsAuthenticated {
		t.Error("local session must clear even when backend logout fails")
	}
}

// A login dispatched before a logout must not resurrect the session when it
// completes after the logout settled.
func TestStaleLoginDiscardedAfterLogout(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{})
	backend := &mockBackend{
		loginData:    AuthData{Token: "tok-stale", User: testUser("u1")},
		loginGate:    gate,
		loginEntered: entered,
	}
	store, storage := newTestStore(t, backend)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = store.Login(context.Background(), "u1@example.com", "pw")
	}()

	<-entered
	store.Logout(context.Background())
	close(gate)
	<-done

	state := store.State()
	if state.IsAuthenticated || state.Token != "" || state.User != nil {
		t.Errorf("stale login resurrected session: %+v", state)
	}
	if _, ok, _ := storage.Load(context.Background()); ok {
		t.Error("stale login reached persistence")
	}
	if got := store.MetricsSnapshot().Counters[MetricStaleCompletionDiscarded]; got != 1 {
		t.Errorf("stale completion counter = %d, want 1", got)
	}
}

func TestRefreshWithoutSession(t *testing.T) {
	backend := &mockBackend{}
	store, _ := newTestStore(t, backend)

	if data := store.Refresh(context.Background()); data != nil {
		t.Fatalf("Refresh with no backend credential = %+v, want nil", data)
	}
	if backend.refreshCalls != 0 {
		t.Errorf("refresh hit the backend %d times with no session", backend.refreshCalls)
	}
}

func TestRefreshSuccess(t *testing.T) {
	backend := &mockBackend{
		refreshData: AuthData{Token: "tok-2", User: testUser("u1")},
	}
	backend.set("tok-1", testUser("u1"), true)
	store, storage := newTestStore(t, backend)

	data := store.Refresh(context.Background())
	if data == nil || data.Token != "tok-2" {
		t.Fatalf("Refresh = %+v, want tok-2", data)
	}

	state := store.State()
	if !state.IsAuthenticated || state.Token != "tok-2" {
		t.Errorf("state after refresh = %+v", state)
	}

	projection, ok, _ := storage.Load(context.Background())
	if !ok || !projection.Authenticated {
		t.Errorf("refresh success not persisted: ok=%v %+v", ok, projection)
	}
}

func TestRefreshFailureClearsSession(t *testing.T) {
	backend := &mockBackend{
		loginData: AuthData{Token: "tok-1", User: testUser("u1")},
	}
	store, storage := newTestStore(t, backend)

	if _, err := store.Login(context.Background(), "u1@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	backend.mu.Lock()
	backend.refreshErr = errors.New("token revoked")
	backend.mu.Unlock()

	if data := store.Refresh(context.Background()); data != nil {
		t.Fatalf("failed refresh returned data: %+v", data)
	}

	state := store.State()
	if state.IsAuthenticated || state.User != nil || state.Token != "" {
		t.Errorf("rejected refresh left session behind: %+v", state)
	}
	if state.Err != nil {
		t.Errorf("refresh expiry must not surface as a state error, got %v", state.Err)
	}
	if _, ok, _ := storage.Load(context.Background()); ok {
		t.Error("projection survived rejected refresh")
	}
	if got := store.MetricsSnapshot().Counters[MetricRefreshExpired]; got != 1 {
		t.Errorf("refresh expired counter = %d, want 1", got)
	}
}

func TestRefreshEmptyTokenTreatedAsExpired(t *testing.T) {
	backend := &mockBackend{
		refreshData: AuthData{Token: "", User: testUser("u1")},
	}
	backend.set("tok-1", testUser("u1"), true)
	store, _ := newTestStore(t, backend)

	if data := store.Refresh(context.Background()); data != nil {
		t.Fatalf("credential-less refresh returned data: %+v", data)
	}
	if state := store.State(); state.IsAuthenticated {
		t.Error("credential-less refresh left an authenticated session")
	}
}

func TestCheckAuthSyncsFromBackend(t *testing.T) {
	backend := &mockBackend{}
	store, _ := newTestStore(t, backend)

	backend.set("tok-1", testUser("u1"), true)
	state := store.CheckAuth()
	if !state.IsAuthenticated || state.Token != "tok-1" {
		t.Errorf("CheckAuth with valid backend = %+v", state)
	}

	backend.set("", nil, false)
	state = store.CheckAuth()
	if state.IsAuthenticated || state.User != nil || state.Token != "" {
		t.Errorf("CheckAuth with invalid backend = %+v", state)
	}
}

func TestCheckAuthRejectsExpiredCredential(t *testing.T) {
	backend := &mockBackend{}
	store, _ := newTestStore(t, backend)

	backend.set(signedToken(t, testStart.Add(-time.Hour)), testUser("u1"), true)
	if state := store.CheckAuth(); state.IsAuthenticated {
		t.Error("CheckAuth accepted a dead credential")
	}
}

func TestSubscribersObserveTransitions(t *testing.T) {
	backend := &mockBackend{
		loginData: AuthData{Token: "tok-1", User: testUser("u1")},
	}
	store, _ := newTestStore(t, backend)

	var snapshots []State
	unsubscribe := store.Subscribe(func(s State) {
		snapshots = append(snapshots, s)
	})

	if _, err := store.Login(context.Background(), "u1@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// One loading transition, one settled transition.
	if len(snapshots) != 2 {
		t.Fatalf("snapshot count = %d, want 2", len(snapshots))
	}
	if !snapshots[0].IsLoading {
		t.Error("first transition should be the loading snapshot")
	}
	if !snapshots[1].IsAuthenticated || snapshots[1].IsLoading {
		t.Errorf("second transition = %+v, want settled session", snapshots[1])
	}

	unsubscribe()
	store.Logout(context.Background())
	if len(snapshots) != 2 {
		t.Errorf("unsubscribed callback still fired, %d snapshots", len(snapshots))
	}
}

func TestSubscriberSnapshotsAreIsolated(t *testing.T) {
	backend := &mockBackend{
		loginData: AuthData{Token: "tok-1", User: testUser("u1")},
	}
	store, _ := newTestStore(t, backend)

	var seen State
	store.Subscribe(func(s State) { seen = s })

	if _, err := store.Login(context.Background(), "u1@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	seen.User.Email = "mutated@example.com"
	if store.State().User.Email != "u1@example.com" {
		t.Error("subscriber snapshot aliases store state")
	}
}

func TestRestoreFromPersistence(t *testing.T) {
	storage := persist.NewMemory()
	seed := persist.Projection{
		UserID:        "u1",
		Email:         "u1@example.com",
		Name:          "User u1",
		Authenticated: true,
		SavedAt:       testStart.Unix(),
	}
	if err := storage.Save(context.Background(), seed); err != nil {
		t.Fatalf("seed storage: %v", err)
	}

	backend := &mockBackend{}
	store, err := New().
		WithBackend(backend).
		WithPersistence(storage).
		WithClock(clock.NewFake(testStart)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer store.Close()

	state := store.State()
	if !state.Restored {
		t.Fatal("restored flag not set")
	}
	if !state.IsAuthenticated || state.User == nil || state.User.ID != "u1" {
		t.Fatalf("restored state = %+v", state)
	}
	if state.Token != "" {
		t.Error("restore invented a credential")
	}

	// The backend knows nothing about the restored session; the first
	// re-derivation downgrades it and clears the flag.
	state = store.CheckAuth()
	if state.Restored {
		t.Error("restored flag survived CheckAuth")
	}
	if state.IsAuthenticated {
		t.Error("unconfirmed restore stayed authenticated past CheckAuth")
	}
}

func TestRestoreSkipsCorruptStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.bin")
	if err := os.WriteFile(path, []byte{0xFF, 0x01, 0x02}, 0o600); err != nil {
		t.Fatalf("write corrupt blob: %v", err)
	}

	store, err := New().
		WithBackend(&mockBackend{}).
		WithPersistence(persist.NewFile(path)).
		WithClock(clock.NewFake(testStart)).
		Build()
	if err != nil {
		t.Fatalf("Build with corrupt storage: %v", err)
	}
	defer store.Close()

	if state := store.State(); state.Restored || state.IsAuthenticated {
		t.Errorf("corrupt storage restored a session: %+v", state)
	}
}

func TestPersistenceDisabled(t *testing.T) {
	storage := persist.NewMemory()
	cfg := defaultConfig()
	cfg.Persistence.Enabled = false

	backend := &mockBackend{
		loginData: AuthData{Token: "tok-1", User: testUser("u1")},
	}
	store, err := New().
		WithConfig(cfg).
		WithBackend(backend).
		WithPersistence(storage).
		WithClock(clock.NewFake(testStart)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer store.Close()

	if _, err := store.Login(context.Background(), "u1@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, ok, _ := storage.Load(context.Background()); ok {
		t.Error("projection written with persistence disabled")
	}
}

func TestBuilderRequiresBackend(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("Build without backend should fail")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithBackend(&mockBackend{})
	store, err := b.Build()
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	defer store.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("second Build on the same builder should fail")
	}
}

func TestLoginLatencyHistogram(t *testing.T) {
	backend := &mockBackend{
		loginData: AuthData{Token: "tok-1", User: testUser("u1")},
	}
	store, err := New().
		WithBackend(backend).
		WithPersistence(persist.NewMemory()).
		WithClock(clock.NewFake(testStart)).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer store.Close()

	if _, err := store.Login(context.Background(), "u1@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	buckets := store.MetricsSnapshot().Histograms[MetricLoginLatency]
	if len(buckets) == 0 {
		t.Fatal("latency histogram missing from snapshot")
	}
	var total uint64
	for _, b := range buckets {
		total += b
	}
	if total != 1 {
		t.Errorf("histogram sample count = %d, want 1", total)
	}
}
