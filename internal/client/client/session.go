package client

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Session holds the cookie session token shared by the API client and the
// upload backend.
type Session struct {
	mu    sync.RWMutex
	token string
	now   func() time.Time
}

func NewSession(token string) *Session {
	return &Session{token: token, now: time.Now}
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// ExpiresAt reads the exp claim without verifying the signature; the server
// does the verifying. ok is false for opaque tokens and tokens without exp.
func (s *Session) ExpiresAt() (exp time.Time, ok bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether the token carries an exp claim in the past.
func (s *Session) Expired() bool {
	exp, ok := s.ExpiresAt()
	return ok && !s.now().Before(exp)
}

// Authorize attaches the session cookie to req.
func (s *Session) Authorize(req *http.Request) error {
	token := s.Token()
	if token == "" {
		return fmt.Errorf("%w: no session", ErrUnauthorized)
	}
	if s.Expired() {
		return fmt.Errorf("%w: session expired", ErrUnauthorized)
	}
	req.AddCookie(&http.Cookie{Name: common.SessionCookieName, Value: token})
	return nil
}

// Refresh picks up a rotated session cookie from a response.
func (s *Session) Refresh(resp *http.Response) {
	for _, c := range resp.Cookies() {
		if c.Name != common.SessionCookieName {
			continue
		}
		if c.MaxAge < 0 || c.Value == "" {
			s.SetToken("")
			continue
		}
		s.SetToken(c.Value)
	}
}
