package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dyike/QuantPilot/internal/models"
	"github.com/dyike/QuantPilot/internal/timefmt"
)

func newDashboardCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the portfolio and market overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.requireRoute(cmd.Context(), "/dashboard"); err != nil {
				return err
			}
			ov, err := a.client.Dashboard.Overview(cmd.Context())
			if err != nil {
				return err
			}
			DisplayPortfolio(a.out, &ov.Portfolio)
			fmt.Fprintln(a.out)
			for i := range ov.Market.Indices {
				DisplayQuote(a.out, &ov.Market.Indices[i])
			}
			fmt.Fprintf(a.out, "\nActive signals: %d\n", ov.ActiveSignals)
			return nil
		},
	}
}

func newTradesCmd(app func() *App) *cobra.Command {
	var (
		symbol string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List executed trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.requireRoute(cmd.Context(), "/trades"); err != nil {
				return err
			}
			trades, err := a.client.Trades.List(cmd.Context(), strings.ToUpper(symbol), limit)
			if err != nil {
				return err
			}
			if len(trades) == 0 {
				fmt.Fprintln(a.out, mutedStyle.Render("No trades"))
				return nil
			}
			fmt.Fprintf(a.out, "%-20s %-8s %-5s %12s %12s\n", "Executed", "Symbol", "Side", "Qty", "Price")
			for _, t := range trades {
				fmt.Fprintf(a.out, "%-20s %-8s %-5s %12s %12s\n",
					timefmt.FormatLong(t.ExecutedAt), t.Symbol, strings.ToUpper(t.Side),
					t.Quantity.String(), t.Price.StringFixed(2))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "Only trades for this symbol")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of trades")
	return cmd
}

func newDataCmd(app func() *App) *cobra.Command {
	dataCmd := &cobra.Command{
		Use:   "data",
		Short: "Data source status",
	}
	dataCmd.AddCommand(&cobra.Command{
		Use:   "sources",
		Short: "List data sources and when they last updated",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.requireRoute(cmd.Context(), "/data"); err != nil {
				return err
			}
			sources, err := a.client.Data.Sources(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range sources {
				fmt.Fprintf(a.out, "%-20s %-10s %s\n", s.Name, s.Status, mutedStyle.Render(humanize.Time(s.UpdatedAt)))
			}
			return nil
		},
	})
	return dataCmd
}

func newStrategyCmd(app func() *App) *cobra.Command {
	strategyCmd := &cobra.Command{
		Use:   "strategy",
		Short: "Manage trading strategies",
	}

	strategyCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List strategies",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.requireRoute(cmd.Context(), "/strategy"); err != nil {
				return err
			}
			list, err := a.client.Strategy.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range list {
				fmt.Fprintf(a.out, "%-24s %-28s %s\n", s.ID, truncateString(s.Name, 28), mutedStyle.Render(s.Status))
			}
			return nil
		},
	})

	strategyCmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show a strategy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.requireRoute(cmd.Context(), "/strategy"); err != nil {
				return err
			}
			s, err := a.client.Strategy.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, headerStyle.Render(s.Name))
			if s.Description != "" {
				fmt.Fprintln(a.out, s.Description)
			}
			fmt.Fprintf(a.out, "Status: %s\n", s.Status)
			for k, v := range s.Params {
				fmt.Fprintf(a.out, "  %s = %v\n", k, v)
			}
			return nil
		},
	})

	var (
		start   string
		end     string
		capital string
	)
	backtestCmd := &cobra.Command{
		Use:   "backtest ID",
		Short: "Backtest a strategy over a date range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			amount, err := decimal.NewFromString(capital)
			if err != nil {
				return fmt.Errorf("invalid capital %q", capital)
			}
			if err := a.requireRoute(cmd.Context(), "/strategy"); err != nil {
				return err
			}
			DisplayInfo(a.out, "Running backtest, this can take a while")
			res, err := a.client.Strategy.Backtest(cmd.Context(), args[0], models.BacktestRequest{
				StartDate: start,
				EndDate:   end,
				Capital:   amount,
			})
			if err != nil {
				return err
			}
			DisplayBacktest(a.out, res)
			return nil
		},
	}
	backtestCmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&end, "end", "", "End date (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&capital, "capital", "100000", "Initial capital")
	_ = backtestCmd.MarkFlagRequired("start")
	_ = backtestCmd.MarkFlagRequired("end")

	var yes bool
	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a strategy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.requireRoute(cmd.Context(), "/strategy"); err != nil {
				return err
			}
			if !yes {
				ok, err := PromptForConfirmation(fmt.Sprintf("Delete strategy %s?", args[0]))
				if err != nil || !ok {
					return err
				}
			}
			if err := a.client.Strategy.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			DisplaySuccess(a.out, "Strategy deleted")
			return nil
		},
	}
	deleteCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")

	strategyCmd.AddCommand(backtestCmd, deleteCmd)
	return strategyCmd
}
