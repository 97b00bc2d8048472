package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dyike/QuantPilot/internal/models"
)

type PortfolioAPI struct{ c *Client }

func (a *PortfolioAPI) Summary(ctx context.Context) (*models.PortfolioSummary, error) {
	var out models.PortfolioSummary
	if err := a.c.get(ctx, "/portfolio/summary", map[string]string{"user_id": a.c.UserID()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *PortfolioAPI) Positions(ctx context.Context) ([]models.Position, error) {
	var out []models.Position
	if err := a.c.get(ctx, "/portfolio/positions", map[string]string{"user_id": a.c.UserID()}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type TradesAPI struct{ c *Client }

func (a *TradesAPI) List(ctx context.Context, symbol string, limit int) ([]models.Trade, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := map[string]string{
		"user_id": a.c.UserID(),
		"limit":   strconv.Itoa(limit),
	}
	if symbol != "" {
		q["symbol"] = symbol
	}
	var out []models.Trade
	if err := a.c.get(ctx, "/trades", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type DashboardAPI struct{ c *Client }

func (a *DashboardAPI) Overview(ctx context.Context) (*models.DashboardOverview, error) {
	var out models.DashboardOverview
	err := a.c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/dashboard/overview",
		query:   map[string]string{"user_id": a.c.UserID()},
		out:     &out,
		timeout: a.c.marketTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type DataAPI struct{ c *Client }

func (a *DataAPI) Sources(ctx context.Context) ([]models.DataSource, error) {
	var out []models.DataSource
	if err := a.c.get(ctx, "/data/sources", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type AdminAPI struct{ c *Client }

func (a *AdminAPI) Users(ctx context.Context) ([]models.UserInfo, error) {
	var out []models.UserInfo
	if err := a.c.get(ctx, "/admin/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *AdminAPI) SetPermission(ctx context.Context, userID string, level int) (*models.UserInfo, error) {
	var out models.UserInfo
	err := a.c.do(ctx, call{
		method: http.MethodPut,
		path:   "/admin/users/{id}/permission",
		params: map[string]string{"id": userID},
		body:   map[string]int{"permission_level": level},
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
