package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dyike/QuantPilot/internal/models"
)

// MarketAPI reads market data. Each call carries a short timeout so a slow
// feed fails fast instead of blocking the caller.
type MarketAPI struct{ c *Client }

func (a *MarketAPI) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, &ValidationError{Field: "symbol", Message: "symbol is required"}
	}
	var out models.Quote
	err := a.c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/market/quote/{symbol}",
		params:  map[string]string{"symbol": symbol},
		out:     &out,
		timeout: a.c.quoteTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *MarketAPI) Overview(ctx context.Context) (*models.MarketOverview, error) {
	var out models.MarketOverview
	err := a.c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/market/overview",
		out:     &out,
		timeout: a.c.marketTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *MarketAPI) KLine(ctx context.Context, symbol, period string, limit int) ([]models.KLine, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, &ValidationError{Field: "symbol", Message: "symbol is required"}
	}
	if period == "" {
		period = "day"
	}
	if limit <= 0 {
		limit = 100
	}
	var out []models.KLine
	err := a.c.do(ctx, call{
		method: http.MethodGet,
		path:   "/market/kline/{symbol}",
		params: map[string]string{"symbol": symbol},
		query: map[string]string{
			"period": period,
			"limit":  strconv.Itoa(limit),
		},
		out:     &out,
		timeout: a.c.marketTimeout,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
