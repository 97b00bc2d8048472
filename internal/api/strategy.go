package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/dyike/QuantPilot/internal/models"
)

type StrategyAPI struct{ c *Client }

func (a *StrategyAPI) List(ctx context.Context) ([]models.Strategy, error) {
	var out []models.Strategy
	if err := a.c.get(ctx, "/strategies", map[string]string{"user_id": a.c.UserID()}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *StrategyAPI) Get(ctx context.Context, id string) (*models.Strategy, error) {
	var out models.Strategy
	err := a.c.do(ctx, call{
		method: http.MethodGet,
		path:   "/strategies/{id}",
		params: map[string]string{"id": id},
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *StrategyAPI) Create(ctx context.Context, s models.Strategy) (*models.Strategy, error) {
	if strings.TrimSpace(s.Name) == "" {
		return nil, &ValidationError{Field: "name", Message: "strategy name is required"}
	}
	var out models.Strategy
	if err := a.c.do(ctx, call{method: http.MethodPost, path: "/strategies", body: s, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *StrategyAPI) Update(ctx context.Context, s models.Strategy) (*models.Strategy, error) {
	var out models.Strategy
	err := a.c.do(ctx, call{
		method: http.MethodPut,
		path:   "/strategies/{id}",
		params: map[string]string{"id": s.ID},
		body:   s,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *StrategyAPI) Delete(ctx context.Context, id string) error {
	return a.c.do(ctx, call{
		method: http.MethodDelete,
		path:   "/strategies/{id}",
		params: map[string]string{"id": id},
	})
}

// Backtest runs the strategy on the backend under the long client timeout.
func (a *StrategyAPI) Backtest(ctx context.Context, id string, req models.BacktestRequest) (*models.BacktestResult, error) {
	var out models.BacktestResult
	err := a.c.do(ctx, call{
		method: http.MethodPost,
		path:   "/strategies/{id}/backtest",
		params: map[string]string{"id": id},
		body:   req,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
