package api

import (
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Pipeline is the ordered list of stages wrapped around every request.
// Response stages stop at the first stage that returns an error.
type Pipeline struct {
	Request  []resty.RequestMiddleware
	Response []resty.ResponseMiddleware
}

func (c *Client) pipeline() Pipeline {
	return Pipeline{
		Request: []resty.RequestMiddleware{
			c.injectBearerToken,
		},
		Response: []resty.ResponseMiddleware{
			c.handleUnauthorized,
			c.normalizeErrors,
		},
	}
}

func (c *Client) installPipeline() {
	p := c.pipeline()
	for _, stage := range p.Request {
		c.http.OnBeforeRequest(stage)
	}
	for _, stage := range p.Response {
		c.http.OnAfterResponse(stage)
	}
}

// injectBearerToken attaches the session token when there is one. Requests
// without a token go out unauthenticated.
func (c *Client) injectBearerToken(_ *resty.Client, req *resty.Request) error {
	if c.sess == nil {
		return nil
	}
	if token := c.sess.Token(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return nil
}

// handleUnauthorized clears the session and forces navigation to the login
// page on a 401.
func (c *Client) handleUnauthorized(_ *resty.Client, resp *resty.Response) error {
	if resp.StatusCode() != http.StatusUnauthorized {
		return nil
	}
	if c.sess != nil {
		if err := c.sess.Teardown(); err != nil {
			c.logger.Error("clear session after 401", zap.Error(err))
		}
	}
	c.logger.Info("session rejected by backend, redirecting to login",
		zap.String("path", resp.Request.URL))
	c.redirect(LoginPath)
	return newHTTPError(resp)
}

func (c *Client) normalizeErrors(_ *resty.Client, resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	return newHTTPError(resp)
}
