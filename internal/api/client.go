// Package api is the HTTP client for the QuantPilot backend.
//
// Every request passes through an ordered pipeline of middleware stages
// registered on a resty client: request stages inject credentials, response
// stages tear the session down on 401 and normalize error statuses. Feature
// groups (Chat, Market, ...) only map method calls to verb, path and payload.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/dyike/QuantPilot/config"
	"github.com/dyike/QuantPilot/internal/models"
)

// LoginPath is where an unauthorized response sends the user.
const LoginPath = "/login"

// Session is the identity the client consults. *session.Store satisfies it.
type Session interface {
	Token() string
	User() *models.UserInfo
	Teardown() error
}

// Redirector performs a hard navigation to path.
type Redirector func(path string)

type Client struct {
	http     *resty.Client
	sess     Session
	redirect Redirector
	logger   *zap.Logger

	defaultUserID string
	marketTimeout time.Duration
	quoteTimeout  time.Duration

	Auth      *AuthAPI
	Chat      *ChatAPI
	Favorites *FavoritesAPI
	Market    *MarketAPI
	Strategy  *StrategyAPI
	Portfolio *PortfolioAPI
	Trades    *TradesAPI
	Dashboard *DashboardAPI
	Data      *DataAPI
	Admin     *AdminAPI
}

type Option func(*Client)

func WithRedirector(r Redirector) Option {
	return func(c *Client) {
		if r != nil {
			c.redirect = r
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTransport swaps the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.http.SetTransport(rt)
		}
	}
}

func New(cfg *config.Config, sess Session, opts ...Option) *Client {
	c := &Client{
		http:          resty.New(),
		sess:          sess,
		redirect:      func(string) {},
		logger:        zap.NewNop(),
		defaultUserID: cfg.DefaultUserID,
		marketTimeout: cfg.MarketTimeout.Std(),
		quoteTimeout:  cfg.QuoteTimeout.Std(),
	}

	c.http.SetBaseURL(strings.TrimRight(cfg.APIBaseURL, "/"))
	c.http.SetTimeout(cfg.RequestTimeout.Std())
	c.http.SetHeader("Content-Type", "application/json")
	c.http.SetHeader("Accept", "application/json")
	c.http.SetRetryCount(cfg.RetryCount)
	c.http.SetRetryWaitTime(500 * time.Millisecond)
	c.http.SetRetryMaxWaitTime(3 * time.Second)
	c.http.AddRetryCondition(retryIdempotentOnNetworkError)

	for _, opt := range opts {
		opt(c)
	}

	c.installPipeline()

	c.Auth = &AuthAPI{c: c}
	c.Chat = &ChatAPI{c: c}
	c.Favorites = &FavoritesAPI{c: c}
	c.Market = &MarketAPI{c: c}
	c.Strategy = &StrategyAPI{c: c}
	c.Portfolio = &PortfolioAPI{c: c}
	c.Trades = &TradesAPI{c: c}
	c.Dashboard = &DashboardAPI{c: c}
	c.Data = &DataAPI{c: c}
	c.Admin = &AdminAPI{c: c}
	return c
}

// UserID is the id sent on user-scoped calls: the logged-in user, or the
// configured default.
func (c *Client) UserID() string {
	if c.sess != nil {
		if u := c.sess.User(); u != nil && u.ID != "" {
			return u.ID
		}
	}
	return c.defaultUserID
}

// retryIdempotentOnNetworkError retries GETs that never got a response.
// HTTP error statuses are never retried.
func retryIdempotentOnNetworkError(resp *resty.Response, err error) bool {
	if err == nil || resp == nil || resp.Request == nil {
		return false
	}
	if resp.RawResponse != nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return resp.Request.Method == http.MethodGet
}

type call struct {
	method string
	path   string
	params map[string]string
	query  map[string]string
	body   any
	out    any
	// timeout, when set, bounds this call below the client-wide timeout.
	timeout time.Duration
}

func (c *Client) do(ctx context.Context, cl call) error {
	if cl.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cl.timeout)
		defer cancel()
	}

	req := c.http.R().SetContext(ctx)
	if len(cl.params) > 0 {
		req.SetPathParams(cl.params)
	}
	if len(cl.query) > 0 {
		req.SetQueryParams(cl.query)
	}
	if cl.body != nil {
		req.SetBody(cl.body)
	}
	if cl.out != nil {
		req.SetResult(cl.out)
		req.ForceContentType("application/json")
	}

	start := time.Now()
	resp, err := req.Execute(cl.method, cl.path)
	if err == nil {
		c.logger.Debug("api call",
			zap.String("method", cl.method),
			zap.String("path", cl.path),
			zap.Int("status", resp.StatusCode()),
			zap.Duration("elapsed", time.Since(start)))
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		c.logger.Debug("api call rejected",
			zap.String("method", cl.method),
			zap.String("path", cl.path),
			zap.Int("status", apiErr.Status))
		return apiErr
	}
	if resp == nil {
		// The request was never built; surface the raw error.
		return err
	}
	c.logger.Warn("api call failed",
		zap.String("method", cl.method),
		zap.String("path", cl.path),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	return newNetworkError(err)
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, out any) error {
	return c.do(ctx, call{method: http.MethodGet, path: path, query: query, out: out})
}
