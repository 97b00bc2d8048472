package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/dyike/QuantPilot/internal/conversation"
	"github.com/dyike/QuantPilot/internal/models"
	"github.com/dyike/QuantPilot/internal/timefmt"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	pinnedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	gainStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	lossStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// DisplayWelcomeBanner shows the chat banner
func DisplayWelcomeBanner(w io.Writer) {
	fmt.Fprintln(w, titleStyle.Render("QuantPilot AI Assistant"))
	fmt.Fprintln(w, mutedStyle.Render("Ask about investments, risk and strategies. Type /help for commands."))
	fmt.Fprintln(w)
}

// DisplayError shows an error message
func DisplayError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("❌ Error: "+err.Error()))
}

// DisplayInfo shows an info message
func DisplayInfo(w io.Writer, message string) {
	fmt.Fprintln(w, lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")).Render("ℹ️  "+message))
}

// DisplaySuccess shows a success message
func DisplaySuccess(w io.Writer, message string) {
	fmt.Fprintln(w, lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Render("✅ "+message))
}

// DisplayConversations prints one numbered line per conversation.
func DisplayConversations(w io.Writer, convs []models.Conversation, activeID string, now time.Time) {
	if len(convs) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No conversations yet..."))
		return
	}
	for i, c := range convs {
		style := conversation.Style(c.Category)
		marker := "  "
		if c.ID == activeID {
			marker = "▶ "
		}
		pin := ""
		if c.IsPinned {
			pin = pinnedStyle.Render("📌 ")
		}
		label := lipgloss.NewStyle().Foreground(lipgloss.Color(style.Color)).Render(style.Label)
		fmt.Fprintf(w, "%s%2d. %s %s%s  %s  %s\n",
			marker, i+1, style.Icon, pin, c.Title, label,
			mutedStyle.Render(timefmt.FormatRelative(c.LastActivity(), now)))
		if c.LastMessage != "" {
			fmt.Fprintf(w, "       %s\n", mutedStyle.Render(truncateString(c.LastMessage, 60)))
		}
	}
}

// DisplayMessage prints one transcript entry. Assistant text goes through
// the terminal markdown renderer when stdout is a terminal.
func DisplayMessage(w io.Writer, msg models.Message) {
	ts := timefmt.FormatTime(msg.Timestamp)
	if msg.IsAssistant() {
		fmt.Fprintf(w, "%s %s\n", assistantStyle.Render(msg.Role.Label()), mutedStyle.Render(ts))
		fmt.Fprint(w, renderMarkdown(msg.Content))
		if !strings.HasSuffix(msg.Content, "\n") {
			fmt.Fprintln(w)
		}
		return
	}
	fmt.Fprintf(w, "%s %s\n%s\n", userStyle.Render(msg.Role.Label()), mutedStyle.Render(ts), msg.Content)
}

func DisplayQuote(w io.Writer, q *models.Quote) {
	change := fmt.Sprintf("%s (%s%%)", q.Change.StringFixed(2), q.ChangePercent.StringFixed(2))
	if q.Change.IsNegative() {
		change = lossStyle.Render(change)
	} else {
		change = gainStyle.Render(change)
	}
	name := q.Symbol
	if q.Name != "" {
		name = fmt.Sprintf("%s (%s)", q.Symbol, q.Name)
	}
	fmt.Fprintln(w, headerStyle.Render(name))
	fmt.Fprintf(w, "Price:   %s\n", q.Price.StringFixed(2))
	fmt.Fprintf(w, "Change:  %s\n", change)
	fmt.Fprintf(w, "Volume:  %s\n", humanize.Comma(q.Volume))
	if !q.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated: %s\n", timefmt.FormatTime(q.UpdatedAt))
	}
}

func DisplayKLines(w io.Writer, symbol string, bars []models.KLine) {
	fmt.Fprintln(w, headerStyle.Render(symbol))
	if len(bars) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No data"))
		return
	}
	fmt.Fprintf(w, "%-10s %10s %10s %10s %10s %14s\n", "Date", "Open", "High", "Low", "Close", "Volume")
	for _, b := range bars {
		closeStr := b.Close.StringFixed(2)
		fmt.Fprintf(w, "%-10s %10s %10s %10s %10s %14s\n",
			b.Date,
			b.Open.StringFixed(2),
			b.High.StringFixed(2),
			b.Low.StringFixed(2),
			signed(closeStr, b.Close.LessThan(b.Open)),
			humanize.Comma(b.Volume))
	}
}

func DisplayPortfolio(w io.Writer, p *models.PortfolioSummary) {
	fmt.Fprintln(w, headerStyle.Render("Portfolio"))
	fmt.Fprintf(w, "Total value: %s\n", p.TotalValue.StringFixed(2))
	fmt.Fprintf(w, "Cash:        %s\n", p.Cash.StringFixed(2))
	fmt.Fprintf(w, "Day P/L:     %s\n", signed(p.DayPL.StringFixed(2), p.DayPL.IsNegative()))
	fmt.Fprintf(w, "Total P/L:   %s\n", signed(p.TotalPL.StringFixed(2), p.TotalPL.IsNegative()))
	if len(p.Positions) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-8s %12s %12s %14s %12s\n", "Symbol", "Qty", "Cost", "Value", "P/L")
	for _, pos := range p.Positions {
		fmt.Fprintf(w, "%-8s %12s %12s %14s %12s\n",
			pos.Symbol,
			pos.Quantity.String(),
			pos.CostBasis.StringFixed(2),
			pos.MarketValue.StringFixed(2),
			signed(pos.UnrealizedPL.StringFixed(2), pos.UnrealizedPL.IsNegative()))
	}
}

func DisplayBacktest(w io.Writer, r *models.BacktestResult) {
	fmt.Fprintln(w, headerStyle.Render("Backtest "+r.StrategyID))
	fmt.Fprintf(w, "Total return:  %s%%\n", signed(r.TotalReturn.StringFixed(2), r.TotalReturn.IsNegative()))
	fmt.Fprintf(w, "Max drawdown:  %s%%\n", r.MaxDrawdown.StringFixed(2))
	fmt.Fprintf(w, "Sharpe ratio:  %s\n", r.SharpeRatio.StringFixed(2))
	fmt.Fprintf(w, "Trades:        %d\n", r.TradeCount)
	fmt.Fprintf(w, "Final capital: %s\n", r.FinalCapital.StringFixed(2))
}

func signed(s string, negative bool) string {
	if negative {
		return lossStyle.Render(s)
	}
	return gainStyle.Render(s)
}

var markdownRenderer *glamour.TermRenderer

func init() {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err == nil {
		markdownRenderer = r
	}
}

// renderMarkdown renders for the terminal, returning content unchanged when
// stdout is not a terminal or rendering fails.
func renderMarkdown(content string) string {
	if markdownRenderer == nil || !term.IsTerminal(int(os.Stdout.Fd())) {
		return content
	}
	out, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return out
}

func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
