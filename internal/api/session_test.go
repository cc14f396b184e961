package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func newTestSession(t *testing.T, handler http.Handler) *Session {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSession(Config{
		BaseURL:       srv.URL,
		HTTPClient:    srv.Client(),
		Credentials:   func(context.Context) (string, string, error) { return "user@example.com", "pw", nil },
		RetryInterval: 5 * time.Millisecond,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func loginHandler(t *testing.T, idToken string, logins *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		atomic.AddInt32(logins, 1)
		writeJSON(w, http.StatusOK, map[string]string{"id-token": idToken, "refresh-token": ""})
	}
}

func TestSubmitJobSendsBodyAndToken(t *testing.T) {
	idToken := signedToken(t, time.Now().Add(time.Hour))
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", loginHandler(t, idToken, &logins))
	mux.HandleFunc("POST /job", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, idToken, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "H1-1", body["machine"])
		writeJSON(w, http.StatusOK, map[string]string{"job": "job-123"})
	})

	s := newTestSession(t, mux)
	id, err := s.SubmitJob(context.Background(), map[string]any{"machine": "H1-1"})
	require.NoError(t, err)
	assert.Equal(t, "job-123", id)

	_, err = s.SubmitJob(context.Background(), map[string]any{"machine": "H1-1"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&logins), "unexpired token should be reused")
}

func TestSubmitJobRemoteError(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", loginHandler(t, "tok", &logins))
	mux.HandleFunc("POST /job", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"code": 21, "text": "bad program"}})
	})

	s := newTestSession(t, mux)
	_, err := s.SubmitJob(context.Background(), map[string]any{})
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.StatusCode)
	assert.Equal(t, "bad program", re.Message)
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestSubmitJobConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	tokens := NewMemoryTokenStore()
	tokens.SetIDToken("tok")
	s := NewSession(Config{BaseURL: srv.URL, Tokens: tokens})
	_, err := s.SubmitJob(context.Background(), map[string]any{})
	require.ErrorIs(t, err, ErrConnection)
}

func TestJobStatusUnauthorized(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", loginHandler(t, "tok", &logins))
	mux.HandleFunc("GET /job/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token expired"})
	})

	s := newTestSession(t, mux)
	_, err := s.JobStatus(context.Background(), "abc")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRetrieveJobPollsUntilTerminal(t *testing.T) {
	var logins, polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", loginHandler(t, "tok", &logins))
	mux.HandleFunc("GET /job/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.PathValue("id"))
		if atomic.AddInt32(&polls, 1) < 3 {
			writeJSON(w, http.StatusOK, map[string]any{"status": "running"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "completed",
			"results": map[string][]string{"c": {"01", "10"}},
			"cost":    12.5,
		})
	})

	s := newTestSession(t, mux)
	resp, err := s.RetrieveJob(context.Background(), "abc", WaitOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, resp.Status)
	assert.Equal(t, []string{"01", "10"}, resp.Results["c"])
	assert.JSONEq(t, "12.5", string(resp.Cost))
	assert.Equal(t, int32(3), atomic.LoadInt32(&polls))
}

func TestRetrieveJobTimeoutIsPerCall(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", loginHandler(t, "tok", &logins))
	mux.HandleFunc("GET /job/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "queued"})
	})

	s := newTestSession(t, mux)
	_, err := s.RetrieveJob(context.Background(), "abc", WaitOptions{Timeout: 30 * time.Millisecond, RetryInterval: 5 * time.Millisecond})
	require.ErrorIs(t, err, ErrWaitTimeout)

	defaults := s.WaitDefaults()
	assert.Zero(t, defaults.Timeout, "per-call timeout must not change session defaults")
	assert.Equal(t, 5*time.Millisecond, defaults.RetryInterval)
}

func TestCancelJobAlreadyFinished(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", loginHandler(t, "tok", &logins))
	mux.HandleFunc("POST /job/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "done" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Job already completed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "canceling"})
	})

	s := newTestSession(t, mux)
	require.NoError(t, s.CancelJob(context.Background(), "live"))
	err := s.CancelJob(context.Background(), "done")
	require.ErrorIs(t, err, ErrJobAlreadyFinished)
}

func TestLoginRefreshAndLogout(t *testing.T) {
	fresh := signedToken(t, time.Now().Add(time.Hour))
	refresh := signedToken(t, time.Now().Add(24*time.Hour))
	var withRefresh, withPassword int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["refresh-token"] != "" {
			atomic.AddInt32(&withRefresh, 1)
		} else {
			atomic.AddInt32(&withPassword, 1)
		}
		writeJSON(w, http.StatusOK, map[string]string{"id-token": fresh, "refresh-token": refresh})
	})

	s := newTestSession(t, mux)
	require.NoError(t, s.Login(context.Background()))
	require.NoError(t, s.Login(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&withPassword))
	assert.Equal(t, int32(1), atomic.LoadInt32(&withRefresh))

	s.Logout()
	assert.Empty(t, s.tokens.IDToken())
	assert.Empty(t, s.tokens.RefreshToken())
}

func TestLoginWithoutCredentials(t *testing.T) {
	s := NewSession(Config{BaseURL: "http://127.0.0.1:1"})
	err := s.Login(context.Background())
	require.ErrorIs(t, err, ErrNoCredentials)
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	assert.True(t, tokenExpired(signedToken(t, now.Add(-time.Minute)), now))
	assert.False(t, tokenExpired(signedToken(t, now.Add(time.Minute)), now))
	assert.False(t, tokenExpired("not-a-jwt", now))
}

func TestMachineStateShapes(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", loginHandler(t, "tok", &logins))
	mux.HandleFunc("GET /machine/{name}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("name") {
		case "H1-1":
			writeJSON(w, http.StatusOK, map[string]string{"state": "online"})
		case "H1":
			writeJSON(w, http.StatusOK, []map[string]string{{"name": "H1-2", "state": "offline"}, {"name": "H1", "state": "in maintenance"}})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"H2": map[string]string{"state": "reserved"}})
		}
	})

	s := newTestSession(t, mux)
	for name, want := range map[string]string{"H1-1": "online", "H1": "in maintenance", "H2": "reserved"} {
		got, err := s.MachineState(context.Background(), name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestListMachines(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", loginHandler(t, "tok", &logins))
	mux.HandleFunc("GET /machine/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("config"))
		writeJSON(w, http.StatusOK, DefaultMachines())
	})

	s := newTestSession(t, mux)
	machines, err := s.ListMachines(context.Background())
	require.NoError(t, err)
	assert.Len(t, machines, len(DefaultMachines()))
	assert.Equal(t, "H1-1", machines[0]["name"])
}

func TestOfflineRecordsJobs(t *testing.T) {
	o := NewOffline(nil)
	id, err := o.SubmitJob(context.Background(), map[string]any{"name": "test 1"})
	require.NoError(t, err)
	assert.Empty(t, id)
	require.Len(t, o.Jobs(), 1)
	assert.Equal(t, "test 1", o.Jobs()[0]["name"])

	_, err = o.RetrieveJob(context.Background(), id, WaitOptions{})
	assert.ErrorIs(t, err, ErrOffline)
}
