package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/QuantPilot/config"
	"github.com/dyike/QuantPilot/internal/models"
)

type recorded struct {
	method string
	path   string
	query  map[string]string
	body   map[string]any
}

func recordingServer(t *testing.T, reply any) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: map[string]string{}}
		for k := range r.URL.Query() {
			rec.query[k] = r.URL.Query().Get(k)
		}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.body)
		}
		calls = append(calls, rec)
		writeJSON(w, http.StatusOK, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestLoginRejectsEmptyCredentialsLocally(t *testing.T) {
	srv, calls := recordingServer(t, models.LoginReply{})
	c := New(testConfig(srv.URL), &fakeSession{})

	_, err := c.Auth.Login(context.Background(), models.Credentials{Username: " ", Password: "x"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "username", vErr.Field)

	_, err = c.Auth.Login(context.Background(), models.Credentials{Username: "amy"})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "password", vErr.Field)

	assert.Empty(t, *calls)
}

func TestLoginDecodesPayload(t *testing.T) {
	srv, calls := recordingServer(t, models.LoginReply{
		AccessToken: "jwt",
		User:        models.UserInfo{ID: "u7", Username: "amy", PermissionLevel: 2},
	})
	c := New(testConfig(srv.URL), &fakeSession{})

	reply, err := c.Auth.Login(context.Background(), models.Credentials{Username: "amy", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "jwt", reply.AccessToken)
	assert.Equal(t, 2, reply.User.PermissionLevel)

	require.Len(t, *calls, 1)
	assert.Equal(t, http.MethodPost, (*calls)[0].method)
	assert.Equal(t, "/auth/login", (*calls)[0].path)
	assert.Equal(t, "amy", (*calls)[0].body["username"])
}

func TestChatEndpointsShapeRequests(t *testing.T) {
	srv, calls := recordingServer(t, map[string]any{})
	cfg := testConfig(srv.URL + "/api")
	c := New(cfg, &fakeSession{user: &models.UserInfo{ID: "u42"}})
	ctx := context.Background()

	_, err := c.Chat.Send(ctx, models.ChatRequest{Message: "hedge?", ConversationID: "c1"})
	require.NoError(t, err)
	_, err = c.Chat.CreateConversation(ctx, "Bonds", models.CategoryInvestment)
	require.NoError(t, err)
	_, err = c.Chat.ListConversations(ctx, ListOptions{})
	require.NoError(t, err)
	_, err = c.Chat.History(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, c.Chat.DeleteConversation(ctx, "c1"))
	_, err = c.Chat.Search(ctx, "bond", 0)
	require.NoError(t, err)

	got := *calls
	require.Len(t, got, 6)

	assert.Equal(t, "/api/chat", got[0].path)
	assert.Equal(t, "c1", got[0].body["conversation_id"])
	assert.Equal(t, "u42", got[0].body["user_id"])

	assert.Equal(t, "/api/v1/chat/conversation", got[1].path)
	assert.Equal(t, "investment", got[1].body["type"])

	assert.Equal(t, http.MethodGet, got[2].method)
	assert.Equal(t, "/api/v1/chat/conversations", got[2].path)
	assert.Equal(t, map[string]string{"user_id": "u42", "limit": "50"}, got[2].query)

	assert.Equal(t, "/api/v1/chat/history/c1", got[3].path)

	assert.Equal(t, http.MethodDelete, got[4].method)
	assert.Equal(t, "/api/v1/chat/conversation/c1", got[4].path)

	assert.Equal(t, "/api/v1/chat/search", got[5].path)
	assert.Equal(t, "bond", got[5].query["query"])
	assert.Equal(t, "20", got[5].query["limit"])
}

func TestFavoriteEndpoints(t *testing.T) {
	srv, calls := recordingServer(t, map[string]any{"is_favorite": true})
	c := New(testConfig(srv.URL), &fakeSession{})
	ctx := context.Background()

	_, err := c.Favorites.Add(ctx, models.Favorite{MessageID: "m1", Content: "keep"})
	require.NoError(t, err)
	require.NoError(t, c.Favorites.Remove(ctx, "f1"))
	_, err = c.Favorites.List(ctx, 0)
	require.NoError(t, err)
	check, err := c.Favorites.Check(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, check.IsFavorite)
	note := "macro view"
	_, err = c.Favorites.Update(ctx, "f1", models.FavoriteUpdate{Note: &note})
	require.NoError(t, err)

	got := *calls
	require.Len(t, got, 5)
	assert.Equal(t, "default_user", got[0].body["user_id"])
	assert.Equal(t, []string{"POST", "DELETE", "GET", "GET", "PUT"},
		[]string{got[0].method, got[1].method, got[2].method, got[3].method, got[4].method})
	assert.Equal(t, []string{"/v1/chat/favorite", "/v1/chat/favorite/f1", "/v1/chat/favorites", "/v1/chat/favorite/check/m1", "/v1/chat/favorite/f1"},
		[]string{got[0].path, got[1].path, got[2].path, got[3].path, got[4].path})
	assert.Equal(t, "macro view", got[4].body["note"])

	_, err = c.Favorites.Add(ctx, models.Favorite{})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestMarketQuoteDecodesDecimals(t *testing.T) {
	srv, calls := recordingServer(t, map[string]any{
		"symbol": "AAPL", "price": "189.9800", "change": -1.25, "change_percent": "-0.65",
	})
	c := New(testConfig(srv.URL), &fakeSession{})

	q, err := c.Market.Quote(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(decimal.RequireFromString("189.98")))
	assert.True(t, q.Change.Equal(decimal.RequireFromString("-1.25")))
	assert.Equal(t, "/market/quote/AAPL", (*calls)[0].path)

	_, err = c.Market.Quote(context.Background(), "")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestMarketReadsFailFast(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(srv.URL)
	cfg.QuoteTimeout = config.Duration(50 * time.Millisecond)
	c := New(cfg, &fakeSession{})

	start := time.Now()
	_, err := c.Market.Quote(context.Background(), "TSLA")
	assert.True(t, IsNetwork(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestKLineDefaults(t *testing.T) {
	srv, calls := recordingServer(t, []map[string]any{{"symbol": "MSFT", "close": "410.1"}})
	c := New(testConfig(srv.URL), &fakeSession{})

	bars, err := c.Market.KLine(context.Background(), "msft", "", 0)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "/market/kline/MSFT", (*calls)[0].path)
	assert.Equal(t, map[string]string{"period": "day", "limit": "100"}, (*calls)[0].query)
}
