package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/QuantPilot/config"
	"github.com/dyike/QuantPilot/internal/models"
)

type fakeSession struct {
	mu       sync.Mutex
	token    string
	user     *models.UserInfo
	tornDown int
}

func (s *fakeSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSession) User() *models.UserInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *fakeSession) Teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	s.tornDown++
	return nil
}

func testConfig(baseURL string) *config.Config {
	cfg := config.DefaultConfigWithRoot("")
	cfg.APIBaseURL = baseURL
	cfg.RetryCount = 0
	return cfg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestBearerTokenInjectedWhenPresent(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, models.VerifyReply{Valid: true})
	}))
	defer srv.Close()

	sess := &fakeSession{token: "abc"}
	c := New(testConfig(srv.URL), sess)

	_, err := c.Auth.Verify(context.Background())
	require.NoError(t, err)

	sess.token = ""
	_, err = c.Auth.Verify(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer abc", ""}, got)
}

func TestUnauthorizedClearsSessionAndRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "token expired"})
	}))
	defer srv.Close()

	sess := &fakeSession{token: "stale", user: &models.UserInfo{ID: "u1"}}
	var redirected []string
	c := New(testConfig(srv.URL), sess, WithRedirector(func(p string) { redirected = append(redirected, p) }))

	_, err := c.Chat.ListConversations(context.Background(), ListOptions{})
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	assert.Equal(t, 1, sess.tornDown)
	assert.Empty(t, sess.Token())
	assert.Equal(t, []string{LoginPath}, redirected)
}

func TestErrorStatusRejectsWithServerPayload(t *testing.T) {
	payload := map[string]any{"message": "strategy name taken", "code": float64(4091), "field": "name"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, payload)
	}))
	defer srv.Close()

	sess := &fakeSession{token: "abc"}
	redirected := false
	c := New(testConfig(srv.URL), sess, WithRedirector(func(string) { redirected = true }))

	_, err := c.Strategy.Create(context.Background(), models.Strategy{Name: "momo"})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, payload, apiErr.Payload)
	assert.Equal(t, "strategy name taken", apiErr.Message)
	assert.False(t, IsUnauthorized(err))
	assert.False(t, redirected)
	assert.Equal(t, "abc", sess.Token())
}

func TestErrorStatusWithoutJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), &fakeSession{})
	_, err := c.Portfolio.Summary(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Nil(t, apiErr.Payload)
	assert.Equal(t, "upstream exploded", apiErr.Message)
}

func TestNetworkFailureIsNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	sess := &fakeSession{token: "abc"}
	c := New(testConfig(url), sess)

	_, err := c.Dashboard.Overview(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	assert.Equal(t, networkMessage, err.Error())
	assert.Equal(t, 0, sess.tornDown)
}

func TestTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := New(testConfig(srv.URL), &fakeSession{})
	_, err := c.Auth.Verify(ctx)
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRequestStageErrorIsReturnedRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), &fakeSession{})
	_, err := c.Strategy.Create(context.Background(), models.Strategy{
		Name:   "bad",
		Params: map[string]any{"fn": func() {}},
	})
	require.Error(t, err)
	assert.False(t, IsNetwork(err))
	var apiErr *Error
	assert.False(t, errors.As(err, &apiErr))
}

func TestRetriesIdempotentReadsOnly(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.RetryCount = 2

	attempts := 0
	c := New(cfg, &fakeSession{}, WithTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		attempts++
		return nil, errors.New("connection refused")
	})))

	_, err := c.Data.Sources(context.Background())
	assert.True(t, IsNetwork(err))
	assert.Equal(t, 3, attempts)

	attempts = 0
	_, err = c.Chat.Send(context.Background(), models.ChatRequest{Message: "hi"})
	assert.True(t, IsNetwork(err))
	assert.Equal(t, 1, attempts)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestPipelineOrder(t *testing.T) {
	c := New(testConfig("http://localhost"), &fakeSession{})
	p := c.pipeline()
	assert.Len(t, p.Request, 1)
	assert.Len(t, p.Response, 2)
}
