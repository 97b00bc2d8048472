package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dyike/QuantPilot/internal/conversation"
	"github.com/dyike/QuantPilot/internal/models"
	"github.com/dyike/QuantPilot/internal/storage/sqlite"
	"github.com/dyike/QuantPilot/internal/timefmt"
)

func newConversationsCmd(app func() *App) *cobra.Command {
	convCmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage conversations",
	}

	var (
		search      string
		filter      string
		pinnedFirst bool
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			if err := a.requireRoute(ctx, "/chat"); err != nil {
				return err
			}
			if err := a.chat.LoadConversations(ctx); err != nil {
				return err
			}
			convs := a.chat.Filtered("", conversation.FilterKind(filter))
			if strings.TrimSpace(search) != "" {
				found, err := a.chat.Search(ctx, search)
				if err != nil {
					return err
				}
				convs = conversation.Filter(found, "", conversation.FilterKind(filter), time.Now())
			}
			if pinnedFirst {
				convs = conversation.SortPinnedFirst(convs)
			}
			DisplayConversations(a.out, convs, "", time.Now())
			return nil
		},
	}
	listCmd.Flags().StringVarP(&search, "search", "s", "", "Search conversations on the server")
	listCmd.Flags().StringVarP(&filter, "filter", "f", "all", "Filter: all, pinned, recent or a category")
	listCmd.Flags().BoolVar(&pinnedFirst, "pinned-first", true, "List pinned conversations first")

	exportCmd := &cobra.Command{
		Use:   "export ID",
		Short: "Export a conversation as plain text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			if err := a.requireRoute(ctx, "/chat"); err != nil {
				return err
			}
			if err := a.chat.LoadConversations(ctx); err != nil {
				return err
			}
			path, err := a.chat.Export(ctx, args[0])
			if err != nil {
				return err
			}
			DisplaySuccess(a.out, fmt.Sprintf("Exported to %s", path))
			return nil
		},
	}

	var yes bool
	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			if err := a.requireRoute(ctx, "/chat"); err != nil {
				return err
			}
			if !yes {
				ok, err := PromptForConfirmation(fmt.Sprintf("Delete conversation %s?", args[0]))
				if err != nil {
					return err
				}
				if !ok {
					DisplayInfo(a.out, "Cancelled")
					return nil
				}
			}
			if err := a.chat.LoadConversations(ctx); err != nil {
				return err
			}
			if err := a.chat.Delete(ctx, args[0]); err != nil {
				return err
			}
			DisplaySuccess(a.out, "Conversation deleted")
			return nil
		},
	}
	deleteCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")

	convCmd.AddCommand(listCmd, exportCmd, deleteCmd)
	return convCmd
}

func newSettingsCmd(app func() *App) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Assistant settings",
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the saved assistant settings",
		Run: func(cmd *cobra.Command, args []string) {
			a := app()
			printSettings(a.out, a.settings.Current())
		},
	})

	var (
		model string
		temp  string
		risk  string
	)
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change assistant settings (prompts when no flags are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ed := a.settings
			draft := ed.Edit()
			if model == "" && temp == "" && risk == "" {
				entered, err := PromptForSettings(draft)
				if err != nil {
					ed.Cancel()
					return err
				}
				model = entered.Model
				temp = strconv.FormatFloat(entered.Temperature, 'f', -1, 64)
				risk = string(entered.RiskTolerance)
			}
			if model != "" {
				ed.SetModel(model)
			}
			if temp != "" {
				t, err := strconv.ParseFloat(temp, 64)
				if err != nil {
					ed.Cancel()
					return fmt.Errorf("invalid temperature %q", temp)
				}
				ed.SetTemperature(t)
			}
			if risk != "" {
				ed.SetRiskTolerance(models.RiskTolerance(risk))
			}
			saved, err := ed.Save()
			if err != nil {
				ed.Cancel()
				return err
			}
			DisplaySuccess(a.out, "Settings saved")
			printSettings(a.out, saved)
			return nil
		},
	}
	setCmd.Flags().StringVar(&model, "model", "", "Model name")
	setCmd.Flags().StringVar(&temp, "temperature", "", "Sampling temperature between 0 and 1")
	setCmd.Flags().StringVar(&risk, "risk", "", "Risk tolerance: low, medium or high")

	settingsCmd.AddCommand(setCmd)
	return settingsCmd
}

// newHistoryCmd reads the local mirror and works without a session.
func newHistoryCmd(app func() *App) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse the local conversation history",
	}

	var (
		cursor int64
		limit  int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List mirrored conversations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			recs, err := a.history.ListConversations(cmd.Context(), cursor, limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(a.out, mutedStyle.Render("No local history"))
				return nil
			}
			for _, r := range recs {
				pin := ""
				if r.IsPinned {
					pin = "📌 "
				}
				fmt.Fprintf(a.out, "%-36s %s%s  %s  %s\n",
					r.ID, pin, truncateString(r.Title, 40),
					mutedStyle.Render(fmt.Sprintf("%d msgs", r.MessageCount)),
					mutedStyle.Render(humanize.Time(r.LastActivity())))
			}
			if len(recs) == limitOrDefault(limit) {
				fmt.Fprintln(a.out, mutedStyle.Render(fmt.Sprintf("more: --cursor %d", recs[len(recs)-1].RowID)))
			}
			return nil
		},
	}
	listCmd.Flags().Int64Var(&cursor, "cursor", 0, "Continue after this row")
	listCmd.Flags().IntVar(&limit, "limit", 0, "Page size")

	showCmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print a mirrored conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			rec, err := a.history.GetConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("conversation %s not found in local history", args[0])
			}
			msgs, err := a.history.ListMessages(cmd.Context(), rec.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, headerStyle.Render(rec.Title))
			fmt.Fprintln(a.out, mutedStyle.Render(timefmt.FormatLong(rec.LastActivity())))
			fmt.Fprintln(a.out)
			for _, m := range msgs {
				DisplayMessage(a.out, m)
				fmt.Fprintln(a.out)
			}
			return nil
		},
	}

	historyCmd.AddCommand(listCmd, showCmd)
	return historyCmd
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return sqlite.DefaultPageSize
	}
	return min(limit, sqlite.MaxPageSize)
}
