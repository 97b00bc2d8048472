package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Quote struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type KLine struct {
	Symbol string          `json:"symbol"`
	Date   string          `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

type MarketOverview struct {
	Indices []Quote   `json:"indices"`
	Movers  []Quote   `json:"movers,omitempty"`
	AsOf    time.Time `json:"as_of"`
}

type Position struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	CostBasis    decimal.Decimal `json:"cost_basis"`
	MarketValue  decimal.Decimal `json:"market_value"`
	UnrealizedPL decimal.Decimal `json:"unrealized_pl"`
}

type PortfolioSummary struct {
	TotalValue decimal.Decimal `json:"total_value"`
	Cash       decimal.Decimal `json:"cash"`
	DayPL      decimal.Decimal `json:"day_pl"`
	TotalPL    decimal.Decimal `json:"total_pl"`
	Positions  []Position      `json:"positions,omitempty"`
}

type Trade struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	ExecutedAt time.Time       `json:"executed_at"`
}

type Strategy struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	CreatedAt   time.Time      `json:"created_at,omitempty"`
}

type BacktestRequest struct {
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Capital   decimal.Decimal `json:"initial_capital"`
}

type BacktestResult struct {
	StrategyID   string          `json:"strategy_id"`
	TotalReturn  decimal.Decimal `json:"total_return"`
	MaxDrawdown  decimal.Decimal `json:"max_drawdown"`
	SharpeRatio  decimal.Decimal `json:"sharpe_ratio"`
	TradeCount   int             `json:"trade_count"`
	FinalCapital decimal.Decimal `json:"final_capital"`
}

type DashboardOverview struct {
	Portfolio     PortfolioSummary `json:"portfolio"`
	Market        MarketOverview   `json:"market"`
	ActiveSignals int              `json:"active_signals"`
}

type DataSource struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}
