package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/quantumai/api"
	"github.com/rustyeddy/quantumai/logging"
	"github.com/rustyeddy/quantumai/metrics"
)

const (
	// TTLDays is how long a login stays valid.
	TTLDays = 7

	ExpiredNotice   = "Your session has expired. Please login again."
	NotAuthMessage  = "Not authenticated"
	SaveFailMessage = "Could not save session. Please try again."
	NoTokenMessage  = "Login response did not include a token."
)

// Backend is the subset of the remote API the session needs.
type Backend interface {
	Register(ctx context.Context, phone, password, referralCode string) (api.Result, error)
	Login(ctx context.Context, phone, password string) (api.Result, error)
	Logout(ctx context.Context, token string) error
	UserData(ctx context.Context, token string) (*api.UserProfile, error)
	ChangePassword(ctx context.Context, token, oldPassword, newPassword string) (api.Result, error)
	ForgotPassword(ctx context.Context, phone string) (api.Result, error)
	Validate(ctx context.Context, token string) (bool, error)
}

// Session is the stored record of a signed-in user.
type Session struct {
	Token  string          `json:"token"`
	Phone  string          `json:"phone"`
	User   json.RawMessage `json:"user"`
	Expiry time.Time       `json:"expiry"`
}

// Manager owns the session lifecycle: Anonymous -> Active on login, and
// back to Anonymous on logout, expiry or a 401. mu serializes every
// read-then-clear and every write of the stored session.
type Manager struct {
	mu      sync.Mutex
	backend Backend
	store   Store
	now     func() time.Time
	log     *zap.Logger
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = logging.OrNop(l) }
}

func NewManager(backend Backend, store Store, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		store:   store,
		now:     time.Now,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying key-value store.
func (m *Manager) Store() Store { return m.store }

// Register creates an account. It never changes the session.
func (m *Manager) Register(ctx context.Context, phone, password, referralCode string) api.Result {
	res, err := m.backend.Register(ctx, phone, password, referralCode)
	if err != nil {
		m.log.Warn("register failed", zap.String("phone", phone), zap.Error(err))
		return api.NetworkFailure()
	}
	return res
}

// Login signs in and, on success, stores the session with a fresh expiry.
// On any other outcome the store is not touched.
func (m *Manager) Login(ctx context.Context, phone, password string) api.Result {
	res, err := m.backend.Login(ctx, phone, password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		m.log.Warn("login failed", zap.String("phone", phone), zap.Error(err))
		return api.NetworkFailure()
	}
	if !res.Success {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		return res
	}
	if res.Token == "" {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		m.log.Error("login succeeded without a token", zap.String("phone", phone))
		return api.Failure(NoTokenMessage)
	}

	user := string(res.User)
	if user == "" {
		user = "null"
	}
	expiry := m.now().UTC().AddDate(0, 0, TTLDays)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.save(ctx, map[string]string{
		KeyPhone:  phone,
		KeyUser:   user,
		KeyExpiry: expiry.Format(time.RFC3339Nano),
		KeyToken:  res.Token,
	}); err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		m.log.Error("store session", zap.Error(err))
		m.clearLocked(ctx, "store_error")
		return api.Failure(SaveFailMessage)
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	m.log.Info("logged in", zap.String("phone", phone), zap.Time("expiry", expiry))
	return res
}

func (m *Manager) save(ctx context.Context, kv map[string]string) error {
	if bs, ok := m.store.(BatchStore); ok {
		return bs.SetAll(ctx, kv)
	}
	for _, k := range Keys {
		if err := m.store.Set(ctx, k, kv[k]); err != nil {
			return err
		}
	}
	return nil
}

// Logout notifies the backend when a token is held and then clears the
// session. A failed notification is logged and ignored; only a local store
// failure is returned.
func (m *Manager) Logout(ctx context.Context) error {
	if token, ok := m.get(ctx, KeyToken); ok && token != "" {
		if err := m.backend.Logout(ctx, token); err != nil {
			m.log.Warn("logout notify failed", zap.Error(err))
		}
	}
	return m.clear(ctx, "logout")
}

// IsAuthenticated reports whether a token and an unexpired expiry are
// stored. Any other state is wiped so that no partial session survives. A
// store read error reports false and leaves the store alone.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active(ctx)
	return ok
}

// active returns the stored session keys when the session is valid. The
// caller holds mu.
func (m *Manager) active(ctx context.Context) (map[string]string, bool) {
	kv, err := m.snapshot(ctx)
	if err != nil {
		return nil, false
	}
	token, hasToken := kv[KeyToken]
	rawExpiry, hasExpiry := kv[KeyExpiry]

	switch {
	case len(kv) == 0:
		return nil, false
	case !hasToken && !hasExpiry:
		// Drop any stray phone/user left behind.
		m.clearLocked(ctx, "")
		return nil, false
	case !hasToken || token == "" || !hasExpiry:
		m.clearLocked(ctx, "incomplete")
		return nil, false
	}

	expiry, err := time.Parse(time.RFC3339Nano, rawExpiry)
	if err != nil {
		m.log.Warn("unparseable session expiry", zap.String("expiry", rawExpiry))
		m.clearLocked(ctx, "corrupt_expiry")
		return nil, false
	}
	if m.now().After(expiry) {
		m.clearLocked(ctx, "expired")
		return nil, false
	}
	return kv, true
}

// snapshot reads every session key. Absent keys are left out of the map.
func (m *Manager) snapshot(ctx context.Context) (map[string]string, error) {
	kv := make(map[string]string, len(Keys))
	for _, k := range Keys {
		v, ok, err := m.store.Get(ctx, k)
		if err != nil {
			m.log.Warn("session store read", zap.String("key", k), zap.Error(err))
			return nil, err
		}
		if ok {
			kv[k] = v
		}
	}
	return kv, nil
}

// checkExpiry clears the session when a stored expiry has passed and
// reports whether it did.
func (m *Manager) checkExpiry(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rawExpiry, ok, err := m.store.Get(ctx, KeyExpiry)
	if err != nil || !ok {
		return false
	}
	expiry, err := time.Parse(time.RFC3339Nano, rawExpiry)
	if err != nil || !m.now().After(expiry) {
		return false
	}
	m.clearLocked(ctx, "expired")
	return true
}

// authToken returns the bearer token after the expiry check that must
// precede every authenticated call.
func (m *Manager) authToken(ctx context.Context) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kv, ok := m.active(ctx)
	if !ok {
		return "", false
	}
	return kv[KeyToken], true
}

// GetUserData fetches the live profile. It returns nil without a session,
// on a 401 (after clearing the session) and on transient failures (keeping
// the session).
func (m *Manager) GetUserData(ctx context.Context) *api.UserProfile {
	token, ok := m.authToken(ctx)
	if !ok {
		return nil
	}

	profile, err := m.backend.UserData(ctx, token)
	if api.IsUnauthorized(err) {
		m.revoke(ctx, token)
		return nil
	}
	if err != nil {
		m.log.Warn("get user data failed", zap.Error(err))
		return nil
	}
	return profile
}

// ChangePassword updates the password of the signed-in user.
func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword string) api.Result {
	token, ok := m.authToken(ctx)
	if !ok {
		return api.Failure(NotAuthMessage)
	}

	res, err := m.backend.ChangePassword(ctx, token, oldPassword, newPassword)
	if api.IsUnauthorized(err) {
		m.revoke(ctx, token)
		return api.Failure(ExpiredNotice)
	}
	if err != nil {
		m.log.Warn("change password failed", zap.Error(err))
		return api.NetworkFailure()
	}
	return res
}

// RequestPasswordReset asks the backend to reset the password for phone.
// It never changes the session.
func (m *Manager) RequestPasswordReset(ctx context.Context, phone string) api.Result {
	res, err := m.backend.ForgotPassword(ctx, phone)
	if err != nil {
		m.log.Warn("password reset failed", zap.String("phone", phone), zap.Error(err))
		return api.NetworkFailure()
	}
	return res
}

// ValidateSession checks the session locally and then with the backend.
// A 401 clears the session; a transport failure only returns false.
func (m *Manager) ValidateSession(ctx context.Context) bool {
	token, ok := m.authToken(ctx)
	if !ok {
		return false
	}

	valid, err := m.backend.Validate(ctx, token)
	if api.IsUnauthorized(err) {
		m.revoke(ctx, token)
		return false
	}
	if err != nil {
		m.log.Warn("validate failed", zap.Error(err))
		return false
	}
	return valid
}

// HandleUnauthorized clears the session after another component got a 401
// with the current token.
func (m *Manager) HandleUnauthorized(ctx context.Context) {
	m.clear(ctx, "unauthorized")
}

// Token returns the stored bearer token after the expiry check.
func (m *Manager) Token(ctx context.Context) (string, bool) {
	return m.authToken(ctx)
}

// Phone returns the stored phone number.
func (m *Manager) Phone(ctx context.Context) (string, bool) {
	return m.get(ctx, KeyPhone)
}

// User decodes the profile stored at login.
func (m *Manager) User(ctx context.Context) (*api.UserProfile, error) {
	raw, ok := m.get(ctx, KeyUser)
	if !ok {
		return nil, nil
	}
	return api.ParseUser([]byte(raw))
}

// Current returns the stored session, or nil when not signed in.
func (m *Manager) Current(ctx context.Context) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	kv, ok := m.active(ctx)
	if !ok {
		return nil
	}
	expiry, _ := time.Parse(time.RFC3339Nano, kv[KeyExpiry])

	return &Session{
		Token:  kv[KeyToken],
		Phone:  kv[KeyPhone],
		User:   json.RawMessage(kv[KeyUser]),
		Expiry: expiry,
	}
}

// RedirectToLogin sends page to the login view unless it already shows a
// public view.
func (m *Manager) RedirectToLogin(page Page) {
	if page.View().Public() {
		return
	}
	page.Redirect(ViewLogin)
}

// Init runs once per page load. An expired session is cleared, with a
// notice on the dashboard, and protected views without a valid session are
// sent to login. It reports whether the page may render.
func (m *Manager) Init(ctx context.Context, page Page) bool {
	expired := m.checkExpiry(ctx)
	if expired && page.View() == ViewDashboard {
		page.Alert(ExpiredNotice)
	}

	if page.View().RequiresAuth() && (expired || !m.IsAuthenticated(ctx)) {
		m.RedirectToLogin(page)
		return false
	}
	return true
}

func (m *Manager) get(ctx context.Context, key string) (string, bool) {
	v, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.log.Warn("session store read", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, ok
}

// revoke clears the session after a 401 for token. A session stored since
// token was read belongs to a newer login and is kept.
func (m *Manager) revoke(ctx context.Context, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok, err := m.store.Get(ctx, KeyToken); err == nil && ok && current != token {
		return
	}
	m.clearLocked(ctx, "unauthorized")
}

func (m *Manager) clear(ctx context.Context, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearLocked(ctx, reason)
}

// clearLocked erases the whole session. An empty reason skips logging and
// metrics for routine housekeeping. The caller holds mu.
func (m *Manager) clearLocked(ctx context.Context, reason string) error {
	if err := m.store.ClearAll(ctx); err != nil {
		m.log.Error("clear session", zap.String("reason", reason), zap.Error(err))
		return err
	}
	if reason != "" {
		metrics.SessionClears.WithLabelValues(reason).Inc()
		m.log.Info("session cleared", zap.String("reason", reason))
	}
	return nil
}
