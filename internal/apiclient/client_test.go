package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/leadcrm/internal/config"
	"github.com/spec-kit/leadcrm/internal/domain"
	"github.com/spec-kit/leadcrm/internal/observability"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func staticToken(tok string) TokenSource {
	return TokenSourceFunc(func(context.Context) (string, error) { return tok, nil })
}

func TestLogin_Success(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))

		var creds domain.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "a@b.co", creds.Email)

		writeJSON(w, http.StatusOK, map[string]any{
			"token": "tok",
			"user":  map[string]any{"id": "u1", "email": "a@b.co", "name": "A", "role": "agent"},
		})
	})

	c := New(srv.URL + "/api")
	res, err := c.Login(context.Background(), domain.Credentials{Email: "a@b.co", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
	assert.Equal(t, "u1", res.User.ID)
	require.NotNil(t, res.User.Preferences, "defaults filled in")
	assert.Equal(t, domain.ThemeSystem, res.User.Preferences.Theme)
}

func TestLogin_MissingTokenIsError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u1"}})
	})
	_, err := New(srv.URL).Login(context.Background(), domain.Credentials{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAPI))
}

func TestRegister_MissingUserIsError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/register", r.URL.Path)
		writeJSON(w, http.StatusCreated, map[string]any{"message": "registered"})
	})
	user, err := New(srv.URL).Register(context.Background(), domain.RegisterData{Email: "n@b.co"})
	assert.Nil(t, user)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAPI))
	assert.Equal(t, "Registration failed", apperrors.Message(err))
}

func TestErrorMessageExtraction(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    any
		code    string
		message string
	}{
		{"top level message", http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"}, apperrors.CodeUnauthorized, "Invalid credentials"},
		{"nested error", http.StatusConflict, map[string]any{"error": map[string]any{"code": "CONFLICT", "message": "email taken"}}, apperrors.CodeConflict, "email taken"},
		{"flat error string", http.StatusBadRequest, map[string]any{"error": "bad payload"}, apperrors.CodeValidation, "bad payload"},
		{"no body", http.StatusInternalServerError, nil, apperrors.CodeAPI, "Login failed"},
		{"not found", http.StatusNotFound, map[string]any{}, apperrors.CodeNotFound, "Login failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				if tc.body == nil {
					w.WriteHeader(tc.status)
					return
				}
				writeJSON(w, tc.status, tc.body)
			})
			_, err := New(srv.URL).Login(context.Background(), domain.Credentials{})
			require.Error(t, err)
			de := apperrors.ToDomainError(err)
			assert.Equal(t, tc.code, de.Code)
			assert.Equal(t, tc.message, de.Message)
			assert.Equal(t, tc.status, de.HTTPStatus)
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).Me(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNetwork))
}

func TestBearerHeaderAndUnauthorizedHook(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "invalid token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u1"}})
	})

	var fired atomic.Int32
	var rejected atomic.Value
	c := New(srv.URL, WithTokenSource(staticToken("good")))
	c.OnUnauthorized(func(_ context.Context, token string) {
		fired.Add(1)
		rejected.Store(token)
	})

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Zero(t, fired.Load())

	c.SetTokenSource(staticToken("bad"))
	_, err = c.Me(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
	assert.EqualValues(t, 1, fired.Load())
	assert.Equal(t, "bad", rejected.Load())

	c.SetTokenSource(nil)
	_, err = c.Login(context.Background(), domain.Credentials{})
	assert.Error(t, err)
	assert.EqualValues(t, 1, fired.Load(), "401 without a token does not invalidate")
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	c := New(srv.URL, WithBreaker(config.BreakerConfig{Enabled: true, MinRequests: 2, FailureRatio: 0.5, OpenSeconds: 60}))
	for i := 0; i < 2; i++ {
		_, err := c.Me(context.Background())
		assert.True(t, apperrors.IsCode(err, apperrors.CodeAPI))
	}

	_, err := c.Me(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeCircuitOpen))
	assert.EqualValues(t, 2, hits.Load(), "open breaker fails fast")
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "nope"})
	})
	c := New(srv.URL, WithBreaker(config.BreakerConfig{Enabled: true, MinRequests: 1, FailureRatio: 0.1}))
	for i := 0; i < 5; i++ {
		_, err := c.Login(context.Background(), domain.Credentials{})
		assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
	}
}

func TestMetricsRecorded(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "missing"})
	})
	metrics := observability.NewMetrics()
	c := New(srv.URL, WithMetrics(metrics))
	_, err := c.GetLead(context.Background(), "x1")
	require.Error(t, err)

	snap := metrics.Snapshot()
	require.Len(t, snap.Requests, 1)
	assert.Equal(t, "/leads/x1|GET|404", snap.Requests[0].Key)
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, "/leads/x1|GET|NOT_FOUND", snap.Errors[0].Key)
}

func TestRequestIDHeader(t *testing.T) {
	var seen atomic.Value
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u1", "role": "agent"}})
	})

	c := New(srv.URL+"/api", WithRequestIDs(func() string { return "req-1" }))
	_, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "req-1", seen.Load())
}
