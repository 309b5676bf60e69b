package authsync

import (
	"context"
	"sync"
)

// mockBackend is a controllable Backend double. Login can be gated on a
// channel so tests can interleave completions with other operations.
type mockBackend struct {
	mu sync.Mutex

	token string
	user  *User
	valid bool

	loginData    AuthData
	loginErr     error
	loginGate    chan struct{}
	loginEntered chan struct{}
	loginCalls   int

	refreshData  AuthData
	refreshErr   error
	refreshCalls int

	logoutErr   error
	logoutCalls int

	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(string, *User)
}

func (m *mockBackend) Login(_ context.Context, _, _ string) (AuthData, error) {
	m.mu.Lock()
	m.loginCalls++
	gate := m.loginGate
	entered := m.loginEntered
	m.mu.Unlock()

	if entered != nil {
		close(entered)
		m.mu.Lock()
		m.loginEntered = nil
		m.mu.Unlock()
	}
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loginErr != nil {
		return AuthData{}, m.loginErr
	}
	m.token = m.loginData.Token
	m.user = m.loginData.User
	m.valid = true
	return m.loginData, nil
}

func (m *mockBackend) Refresh(_ context.Context) (AuthData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCalls++
	if m.refreshErr != nil {
		m.token = ""
		m.user = nil
		m.valid = false
		return AuthData{}, m.refreshErr
	}
	m.token = m.refreshData.Token
	m.user = m.refreshData.User
	m.valid = m.refreshData.Token != ""
	return m.refreshData, nil
}

func (m *mockBackend) Logout(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logoutCalls++
	m.token = ""
	m.user = nil
	m.valid = false
	return m.logoutErr
}

func (m *mockBackend) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *mockBackend) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

func (m *mockBackend) Record() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

func (m *mockBackend) Subscribe(fn func(string, *User)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subs = append(m.subs, subscriber{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.subs {
			if sub.id == id {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// set replaces the backend's reported credential store.
func (m *mockBackend) set(token string, user *User, valid bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.user = user
	m.valid = valid
}

// emitChange fires the raw change stream the way real client SDKs do:
// every subscriber sees every event, whether or not anything changed.
func (m *mockBackend) emitChange(token string, user *User) {
	m.mu.Lock()
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.fn(token, user)
	}
}
