// Package session tracks logged-in users. The browser holds a signed token
// naming a server-side session id; logging out deletes the id, so a copied
// cookie stops working immediately.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultCookieName = "spendboard_session"
	MinSecretLength   = 32
)

var ErrInvalidToken = errors.New("invalid session token")

// Config holds session settings
type Config struct {
	Secret     []byte
	CookieName string
	Secure     bool
	// MaxAge limits session lifetime. Zero keeps sessions until logout.
	MaxAge time.Duration
}

// Claims carried by the session cookie
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

type entry struct {
	username string
	created  time.Time
	expires  time.Time // zero means no expiry
}

type Manager struct {
	cfg Config
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]entry
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.MaxAge < 0 {
		cfg.MaxAge = 0
	}
	return &Manager{cfg: cfg, now: time.Now, sessions: make(map[string]entry)}, nil
}

// Login starts a session for username and sets the cookie on w.
func (m *Manager) Login(w http.ResponseWriter, username string) error {
	now := m.now()
	sid := uuid.NewString()
	e := entry{username: username, created: now}
	if m.cfg.MaxAge > 0 {
		e.expires = now.Add(m.cfg.MaxAge)
	}

	token, err := m.sign(sid, e)
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}

	m.mu.Lock()
	m.pruneLocked(now)
	m.sessions[sid] = e
	m.mu.Unlock()

	cookie := m.cookie(token)
	if m.cfg.MaxAge > 0 {
		cookie.MaxAge = int(m.cfg.MaxAge / time.Second)
		cookie.Expires = e.expires
	}
	http.SetCookie(w, cookie)
	return nil
}

// Current returns the username of the session attached to r. The token must
// verify and its session id must still be live.
func (m *Manager) Current(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.cfg.CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	claims, err := m.parse(c.Value)
	if err != nil {
		return "", false
	}

	m.mu.RLock()
	e, ok := m.sessions[claims.SessionID]
	m.mu.RUnlock()
	if !ok || e.username != claims.Subject {
		return "", false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		return "", false
	}
	return e.username, true
}

// Logout ends the session attached to r, if any, and clears the cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(m.cfg.CookieName); err == nil {
		if claims, err := m.parse(c.Value); err == nil {
			m.mu.Lock()
			delete(m.sessions, claims.SessionID)
			m.mu.Unlock()
		}
	}
	cookie := m.cookie("")
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(w, cookie)
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) sign(sid string, e entry) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  e.username,
			IssuedAt: jwt.NewNumericDate(e.created),
		},
		SessionID: sid,
	}
	if !e.expires.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(e.expires)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Secret)
}

func (m *Manager) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.SessionID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *Manager) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *Manager) pruneLocked(now time.Time) {
	for sid, e := range m.sessions {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.sessions, sid)
		}
	}
}

type contextKey struct{}

// WithUsername returns a copy of ctx carrying the authenticated username.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, contextKey{}, username)
}

// UsernameFromContext returns the username stored by Require.
func UsernameFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(contextKey{}).(string)
	return u, ok && u != ""
}

// Require only lets requests with a live session through to next; the rest
// are handed to deny.
func (m *Manager) Require(deny http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, ok := m.Current(r)
			if !ok {
				deny.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), username)))
		})
	}
}
