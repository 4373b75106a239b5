package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "productdesk_session", "secret", time.Hour, false)
}

func roundTrip(t *testing.T, sm *SessionManager, cookies []*http.Cookie, mutate func(*Session)) (*Session, []*http.Cookie) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	if mutate != nil {
		mutate(sess)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, sess))
	return sess, rec.Result().Cookies()
}

func TestFlashSurvivesRedirect(t *testing.T) {
	sm := newTestSessions(t)

	_, cookies := roundTrip(t, sm, nil, func(s *Session) {
		s.AddFlash(FlashMessage{Kind: FlashSuccess, Message: "Product created"})
	})
	require.Len(t, cookies, 1)

	var popped *FlashMessage
	_, cookies = roundTrip(t, sm, cookies, func(s *Session) {
		popped = s.PopFlash()
	})
	require.NotNil(t, popped)
	assert.Equal(t, "Product created", popped.Message)

	roundTrip(t, sm, cookies, func(s *Session) {
		assert.Nil(t, s.PopFlash())
	})
}

func TestSessionJSONValues(t *testing.T) {
	sm := newTestSessions(t)
	type state struct {
		Page int `json:"page"`
	}

	_, cookies := roundTrip(t, sm, nil, func(s *Session) {
		require.NoError(t, s.SetJSON("list", state{Page: 3}))
	})

	roundTrip(t, sm, cookies, func(s *Session) {
		var got state
		ok, err := s.GetJSON("list", &got)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 3, got.Page)

		ok, err = s.GetJSON("missing", &got)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestUnknownSessionCookieGetsFreshID(t *testing.T) {
	sm := newTestSessions(t)
	sess, _ := roundTrip(t, sm, []*http.Cookie{{Name: sm.CookieName(), Value: "attacker-chosen"}}, nil)
	assert.NotEqual(t, "attacker-chosen", sess.ID)
}

func TestCSRFTokenBoundToSession(t *testing.T) {
	sm := newTestSessions(t)
	csrf := NewCSRFManager("csrf-secret")

	var token string
	_, cookies := roundTrip(t, sm, nil, func(s *Session) {
		var err error
		token, err = csrf.EnsureToken(s)
		require.NoError(t, err)
	})

	roundTrip(t, sm, cookies, func(s *Session) {
		again, err := csrf.EnsureToken(s)
		require.NoError(t, err)
		assert.Equal(t, token, again, "the token is stable within a session")
		assert.NoError(t, csrf.VerifyToken(s, token))
		assert.ErrorIs(t, csrf.VerifyToken(s, "forged"), ErrCSRFTokenMismatch)
		assert.ErrorIs(t, csrf.VerifyToken(s, ""), ErrCSRFTokenMissing)
	})
}

func TestCSRFTokensAreUnique(t *testing.T) {
	csrf := NewCSRFManager("csrf-secret")
	a, err := csrf.generateToken("same-session")
	require.NoError(t, err)
	b, err := csrf.generateToken("same-session")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.True(t, csrf.signedFor("same-session", a))
	assert.False(t, csrf.signedFor("other-session", a))
}

func TestCSRFTokenRotatesWithReplacedSession(t *testing.T) {
	sm := newTestSessions(t)
	csrf := NewCSRFManager("csrf-secret")

	var old *Session
	var oldToken string
	old, cookies := roundTrip(t, sm, nil, func(s *Session) {
		var err error
		oldToken, err = csrf.EnsureToken(s)
		require.NoError(t, err)
	})
	sm.Destroy(old)
	require.NoError(t, sm.Commit(context.Background(), httptest.NewRecorder(), old))

	roundTrip(t, sm, cookies, func(s *Session) {
		assert.NotEqual(t, old.ID, s.ID, "an unknown cookie gets a fresh session")
		assert.ErrorIs(t, csrf.VerifyToken(s, oldToken), ErrCSRFTokenMissing)
		fresh, err := csrf.EnsureToken(s)
		require.NoError(t, err)
		assert.NotEqual(t, oldToken, fresh)
		assert.NoError(t, csrf.VerifyToken(s, fresh))
	})
}

func TestCSRFTokenCopiedFromAnotherSessionIsReissued(t *testing.T) {
	sm := newTestSessions(t)
	csrf := NewCSRFManager("csrf-secret")

	victim, _ := roundTrip(t, sm, nil, nil)
	stolen, err := csrf.EnsureToken(victim)
	require.NoError(t, err)

	roundTrip(t, sm, nil, func(s *Session) {
		s.Set(CSRFSessionKey, stolen)
		assert.ErrorIs(t, csrf.VerifyToken(s, stolen), ErrCSRFTokenMismatch)
		reissued, err := csrf.EnsureToken(s)
		require.NoError(t, err)
		assert.NotEqual(t, stolen, reissued)
	})
}

func TestRequestSession(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, RequestSession(req))
	assert.Nil(t, RequestSession(nil))

	sess := &Session{ID: "abc"}
	req = req.WithContext(ContextWithSession(req.Context(), sess))
	assert.Same(t, sess, RequestSession(req))
}
