package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/QuantPilot/internal/models"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// NewRootCmd creates the root command. The returned release func closes
// the App built for the invocation and must run after Execute, whether or
// not the command failed.
func NewRootCmd() (*cobra.Command, func()) {
	var (
		app  *App
		opts appOptions
	)
	appFn := func() *App { return app }

	rootCmd := &cobra.Command{
		Use:   "quantpilot",
		Short: "QuantPilot - AI assistant for quantitative investing",
		Long: `QuantPilot talks to the QuantPilot platform: chat with the investment
assistant, manage conversations, and read market and portfolio data.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "version", "help", "completion":
				return nil
			}
			var err error
			app, err = newApp(opts, cmd.OutOrStdout())
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default behavior: start interactive chat
			return runChat(cmd.Context(), app, "")
		},
	}

	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "Configuration directory")

	rootCmd.AddCommand(newLoginCmd(appFn))
	rootCmd.AddCommand(newRegisterCmd(appFn))
	rootCmd.AddCommand(newLogoutCmd(appFn))
	rootCmd.AddCommand(newWhoamiCmd(appFn))
	rootCmd.AddCommand(newChatCmd(appFn))
	rootCmd.AddCommand(newConversationsCmd(appFn))
	rootCmd.AddCommand(newSettingsCmd(appFn))
	rootCmd.AddCommand(newMarketCmd(appFn))
	rootCmd.AddCommand(newPortfolioCmd(appFn))
	rootCmd.AddCommand(newDashboardCmd(appFn))
	rootCmd.AddCommand(newTradesCmd(appFn))
	rootCmd.AddCommand(newStrategyCmd(appFn))
	rootCmd.AddCommand(newDataCmd(appFn))
	rootCmd.AddCommand(newAdminCmd(appFn))
	rootCmd.AddCommand(newHistoryCmd(appFn))
	rootCmd.AddCommand(newConfigCmd(appFn))
	rootCmd.AddCommand(newVersionCmd())

	release := func() {
		app.Close()
		app = nil
	}
	return rootCmd, release
}

func newLoginCmd(app func() *App) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			creds, err := PromptForCredentials(username, password)
			if err != nil {
				return err
			}
			reply, err := a.client.Auth.Login(cmd.Context(), creds)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := a.session.Login(reply.AccessToken, reply.User); err != nil {
				return err
			}
			DisplaySuccess(a.out, fmt.Sprintf("Logged in as %s", displayName(reply.User)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	return cmd
}

func newRegisterCmd(app func() *App) *cobra.Command {
	var username, password, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			creds, err := PromptForCredentials(username, password)
			if err != nil {
				return err
			}
			creds.Email = strings.TrimSpace(email)
			reply, err := a.client.Auth.Register(cmd.Context(), creds)
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			if reply.AccessToken == "" {
				DisplaySuccess(a.out, "Account created, run 'quantpilot login' to sign in")
				return nil
			}
			if err := a.session.Login(reply.AccessToken, reply.User); err != nil {
				return err
			}
			DisplaySuccess(a.out, fmt.Sprintf("Registered and logged in as %s", displayName(reply.User)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	return cmd
}

func newLogoutCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.session.Logout(); err != nil {
				return err
			}
			DisplaySuccess(a.out, "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.requireRoute(cmd.Context(), "/dashboard"); err != nil {
				return err
			}
			user, err := a.client.Auth.Profile(cmd.Context())
			if err != nil {
				// Fall back to the profile saved at login.
				if saved := a.session.User(); saved != nil {
					printUser(a.out, *saved)
					return nil
				}
				return err
			}
			if err := a.session.SetUser(*user); err != nil {
				return err
			}
			printUser(a.out, *user)
			return nil
		},
	}
}

func newChatCmd(app func() *App) *cobra.Command {
	var open string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation with the assistant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), app(), open)
		},
	}
	cmd.Flags().StringVar(&open, "open", "", "Conversation id to open")
	return cmd
}

func runChat(ctx context.Context, a *App, open string) error {
	if err := a.requireRoute(ctx, "/chat"); err != nil {
		return err
	}
	return NewInteractiveSession(a).Start(ctx, open)
}

func newMarketCmd(app func() *App) *cobra.Command {
	marketCmd := &cobra.Command{
		Use:   "market",
		Short: "Market data",
	}

	marketCmd.AddCommand(&cobra.Command{
		Use:   "quote SYMBOL",
		Short: "Show the latest quote for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.requireRoute(cmd.Context(), "/market"); err != nil {
				return err
			}
			q, err := a.client.Market.Quote(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			DisplayQuote(a.out, q)
			return nil
		},
	})

	marketCmd.AddCommand(&cobra.Command{
		Use:   "overview",
		Short: "Show major indices",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.requireRoute(cmd.Context(), "/market"); err != nil {
				return err
			}
			ov, err := a.client.Market.Overview(cmd.Context())
			if err != nil {
				return err
			}
			for i := range ov.Indices {
				DisplayQuote(a.out, &ov.Indices[i])
				fmt.Fprintln(a.out)
			}
			return nil
		},
	})

	var (
		period string
		limit  int
	)
	klineCmd := &cobra.Command{
		Use:   "kline SYMBOL",
		Short: "Show recent candlesticks for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			if err := a.requireRoute(ctx, "/market"); err != nil {
				return err
			}
			symbol := strings.ToUpper(args[0])
			bars, err := a.klines.Fetch(ctx, symbol, period, limit, func(ctx context.Context) ([]models.KLine, error) {
				return a.client.Market.KLine(ctx, symbol, period, limit)
			})
			if err != nil {
				return err
			}
			DisplayKLines(a.out, symbol, bars)
			return nil
		},
	}
	klineCmd.Flags().StringVar(&period, "period", "day", "Bar period: day, week or month")
	klineCmd.Flags().IntVar(&limit, "limit", 30, "Number of bars")
	marketCmd.AddCommand(klineCmd)

	return marketCmd
}

func newPortfolioCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Show the portfolio summary and positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.requireRoute(cmd.Context(), "/portfolio"); err != nil {
				return err
			}
			summary, err := a.client.Portfolio.Summary(cmd.Context())
			if err != nil {
				return err
			}
			if len(summary.Positions) == 0 {
				if summary.Positions, err = a.client.Portfolio.Positions(cmd.Context()); err != nil {
					return err
				}
			}
			DisplayPortfolio(a.out, summary)
			return nil
		},
	}
}

func newAdminCmd(app func() *App) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "User administration",
	}

	adminCmd.AddCommand(&cobra.Command{
		Use:   "users",
		Short: "List users and their permission levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.requireRoute(cmd.Context(), "/admin"); err != nil {
				return err
			}
			users, err := a.client.Admin.Users(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Fprintf(a.out, "%-24s %-16s level %d\n", u.ID, u.Username, u.PermissionLevel)
			}
			return nil
		},
	})

	adminCmd.AddCommand(&cobra.Command{
		Use:   "set-level USER_ID LEVEL",
		Short: "Change a user's permission level",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			level, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid level %q", args[1])
			}
			if err := a.requireRoute(cmd.Context(), "/admin"); err != nil {
				return err
			}
			u, err := a.client.Admin.SetPermission(cmd.Context(), args[0], level)
			if err != nil {
				return err
			}
			DisplaySuccess(a.out, fmt.Sprintf("%s now has level %d", displayName(*u), u.PermissionLevel))
			return nil
		},
	})

	return adminCmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "QuantPilot %s\n", Version)
		},
	}
}

// newConfigCmd creates the config command
func newConfigCmd(app func() *App) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			showConfig(app())
		},
	})

	return configCmd
}

// showConfig displays the current configuration
func showConfig(a *App) {
	cfg := a.cfg
	w := a.out
	fmt.Fprintln(w, "📋 Current QuantPilot Configuration:")
	fmt.Fprintln(w, "═══════════════════════════════════════")
	fmt.Fprintf(w, "Config File:          %s\n", a.manager.Path())
	fmt.Fprintf(w, "API Base URL:         %s\n", cfg.APIBaseURL)
	fmt.Fprintf(w, "Data Directory:       %s\n", cfg.DataDir)
	fmt.Fprintf(w, "Export Directory:     %s\n", cfg.ExportDir)
	fmt.Fprintf(w, "Default User:         %s\n", cfg.DefaultUserID)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Request Timeout:      %s\n", cfg.RequestTimeout.Std())
	fmt.Fprintf(w, "Market Timeout:       %s\n", cfg.MarketTimeout.Std())
	fmt.Fprintf(w, "Quote Timeout:        %s\n", cfg.QuoteTimeout.Std())
	fmt.Fprintf(w, "Verify Timeout:       %s\n", cfg.VerifyTimeout.Std())
	fmt.Fprintf(w, "Retry Count:          %d\n", cfg.RetryCount)
	fmt.Fprintf(w, "Debug Mode:           %t\n", cfg.Debug)
	fmt.Fprintln(w)
	printSettings(w, a.settings.Current())
}

func printSettings(w io.Writer, s models.AISettings) {
	fmt.Fprintf(w, "AI Model:             %s\n", s.Model)
	fmt.Fprintf(w, "Temperature:          %s\n", strconv.FormatFloat(s.Temperature, 'f', -1, 64))
	fmt.Fprintf(w, "Risk Tolerance:       %s\n", s.RiskTolerance)
}

func printUser(w io.Writer, u models.UserInfo) {
	fmt.Fprintln(w, headerStyle.Render(displayName(u)))
	fmt.Fprintf(w, "ID:         %s\n", u.ID)
	if u.Email != "" {
		fmt.Fprintf(w, "Email:      %s\n", u.Email)
	}
	if u.Role != "" {
		fmt.Fprintf(w, "Role:       %s\n", u.Role)
	}
	fmt.Fprintf(w, "Permission: %d\n", u.PermissionLevel)
}

func displayName(u models.UserInfo) string {
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}
