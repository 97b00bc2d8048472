package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dyike/QuantPilot/internal/chat"
	"github.com/dyike/QuantPilot/internal/conversation"
	"github.com/dyike/QuantPilot/internal/models"
)

// InteractiveSession is the chat REPL. Plain lines are sent to the active
// conversation, lines starting with a slash are commands.
type InteractiveSession struct {
	app    *App
	reader *bufio.Reader
	// listed is the last list shown; /open and /pin take indexes into it.
	listed []models.Conversation
}

// NewInteractiveSession creates a new interactive session reading stdin
func NewInteractiveSession(a *App) *InteractiveSession {
	return newInteractiveSession(a, os.Stdin)
}

func newInteractiveSession(a *App, in io.Reader) *InteractiveSession {
	return &InteractiveSession{app: a, reader: bufio.NewReader(in)}
}

// Start loads the conversation list, optionally opens one, and runs the
// loop until /exit, end of input or ctx is done.
func (s *InteractiveSession) Start(ctx context.Context, open string) error {
	a := s.app
	DisplayWelcomeBanner(a.out)

	a.watchConfig(ctx)

	if err := a.chat.LoadConversations(ctx); err != nil {
		DisplayError(a.out, err)
	}
	if open != "" {
		s.open(ctx, open)
	}
	s.list("", conversation.FilterAll)
	return s.runMainLoop(ctx)
}

func (s *InteractiveSession) runMainLoop(ctx context.Context) error {
	out := s.app.out
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(out, s.prompt())

		input, err := s.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && input != "") {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !strings.HasPrefix(input, "/") {
			s.send(ctx, input)
			continue
		}
		if done := s.command(ctx, input); done {
			fmt.Fprintln(out, "👋 Bye!")
			return nil
		}
	}
}

func (s *InteractiveSession) prompt() string {
	if conv, ok := s.app.chat.Active(); ok {
		return fmt.Sprintf("💬 %s> ", truncateString(conv.Title, 24))
	}
	return "💬 QuantPilot> "
}

// command runs one slash command and reports whether the session should end.
func (s *InteractiveSession) command(ctx context.Context, input string) bool {
	a := s.app
	parts := strings.Fields(input)
	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	rest := strings.TrimSpace(strings.TrimPrefix(input, parts[0]))

	switch name {
	case "exit", "quit", "q":
		return true

	case "help", "h", "?":
		s.showHelp()

	case "new", "n":
		s.newConversation(ctx, rest)

	case "list", "ls":
		s.list("", conversation.FilterAll)

	case "filter":
		kind := conversation.FilterAll
		if rest != "" {
			kind = conversation.FilterKind(strings.ToLower(rest))
		}
		s.list("", kind)

	case "search":
		found, err := a.chat.Search(ctx, rest)
		if err != nil {
			DisplayError(a.out, err)
			break
		}
		s.show(found)

	case "open", "o":
		conv, ok := s.pick(rest)
		if !ok {
			break
		}
		s.open(ctx, conv.ID)

	case "pin":
		conv, ok := s.pickOrActive(rest)
		if !ok {
			break
		}
		pinned, err := a.chat.TogglePin(ctx, conv.ID)
		if err != nil {
			DisplayError(a.out, err)
			break
		}
		if pinned {
			DisplaySuccess(a.out, "Pinned "+conv.Title)
		} else {
			DisplaySuccess(a.out, "Unpinned "+conv.Title)
		}

	case "rename":
		conv, ok := a.chat.Active()
		if !ok {
			DisplayError(a.out, chat.ErrNoActiveConversation)
			break
		}
		if err := a.chat.Rename(ctx, conv.ID, rest); err != nil {
			DisplayError(a.out, err)
			break
		}
		DisplaySuccess(a.out, "Renamed to "+strings.TrimSpace(rest))

	case "delete", "rm":
		conv, ok := s.pickOrActive(rest)
		if !ok {
			break
		}
		if err := a.chat.Delete(ctx, conv.ID); err != nil {
			DisplayError(a.out, err)
			break
		}
		DisplaySuccess(a.out, "Deleted "+conv.Title)

	case "export":
		conv, ok := s.pickOrActive(rest)
		if !ok {
			break
		}
		path, err := a.chat.Export(ctx, conv.ID)
		if err != nil {
			DisplayError(a.out, err)
			break
		}
		DisplaySuccess(a.out, "Exported to "+path)

	case "copy":
		msg, ok := s.message(rest)
		if !ok {
			break
		}
		if a.chat.CopyMessage(msg.ID) {
			DisplaySuccess(a.out, "Copied to clipboard")
		}

	case "fav":
		ref, note := "", rest
		if fields := strings.SplitN(rest, " ", 2); fields[0] != "" {
			if _, err := strconv.Atoi(fields[0]); err == nil {
				ref, note = fields[0], ""
				if len(fields) == 2 {
					note = strings.TrimSpace(fields[1])
				}
			}
		}
		msg, ok := s.message(ref)
		if !ok {
			break
		}
		if _, err := a.chat.AddFavorite(ctx, msg.ID, note); err != nil {
			DisplayError(a.out, err)
			break
		}
		DisplaySuccess(a.out, "Saved to favorites")

	case "favs":
		favs, err := a.chat.Favorites(ctx, 0)
		if err != nil {
			DisplayError(a.out, err)
			break
		}
		for i, f := range favs {
			fmt.Fprintf(a.out, "%2d. %s\n", i+1, truncateString(f.Content, 70))
			if f.Note != "" {
				fmt.Fprintf(a.out, "    %s\n", mutedStyle.Render(f.Note))
			}
		}

	case "history":
		for _, m := range a.chat.Messages() {
			DisplayMessage(a.out, m)
			fmt.Fprintln(a.out)
		}

	case "settings":
		printSettings(a.out, a.chat.Settings().Current())

	default:
		DisplayError(a.out, fmt.Errorf("unknown command /%s, type /help", name))
	}
	return false
}

func (s *InteractiveSession) send(ctx context.Context, text string) {
	a := s.app
	if _, ok := a.chat.Active(); !ok {
		if _, err := a.chat.NewConversation(ctx, models.CategoryGeneral); err != nil {
			DisplayError(a.out, err)
			return
		}
	}

	start := time.Now()
	fmt.Fprintln(a.out, mutedStyle.Render("🤔 Thinking..."))
	reply, err := a.chat.Send(ctx, text)
	switch {
	case errors.Is(err, chat.ErrDiscarded):
		DisplayInfo(a.out, "Reply arrived after switching conversations, it was saved to history")
	case err != nil:
		DisplayError(a.out, err)
	default:
		DisplayMessage(a.out, *reply)
		a.logger.Debug("reply received", zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *InteractiveSession) newConversation(ctx context.Context, arg string) {
	a := s.app
	category := models.Category(strings.ToLower(arg))
	if category == "" {
		picked, err := PromptForCategory()
		if err != nil {
			DisplayError(a.out, err)
			return
		}
		category = picked
	}
	conv, err := a.chat.NewConversation(ctx, category)
	if err != nil {
		DisplayError(a.out, err)
		return
	}
	style := conversation.Style(conv.Category)
	DisplaySuccess(a.out, fmt.Sprintf("Started %s %s conversation", style.Icon, style.Label))
}

func (s *InteractiveSession) open(ctx context.Context, id string) {
	a := s.app
	err := a.chat.Select(ctx, id)
	switch {
	case errors.Is(err, chat.ErrDiscarded):
		return
	case err != nil:
		DisplayError(a.out, err)
		return
	}
	conv, _ := a.chat.Active()
	fmt.Fprintln(a.out, headerStyle.Render(conv.Title))
	for _, m := range a.chat.Messages() {
		DisplayMessage(a.out, m)
		fmt.Fprintln(a.out)
	}
}

func (s *InteractiveSession) list(query string, kind conversation.FilterKind) {
	s.show(conversation.SortPinnedFirst(s.app.chat.Filtered(query, kind)))
}

func (s *InteractiveSession) show(convs []models.Conversation) {
	s.listed = convs
	active := ""
	if conv, ok := s.app.chat.Active(); ok {
		active = conv.ID
	}
	DisplayConversations(s.app.out, convs, active, time.Now())
}

// pick resolves a 1-based index into the last list, or a conversation id.
func (s *InteractiveSession) pick(arg string) (models.Conversation, bool) {
	arg = strings.TrimSpace(arg)
	if n, err := strconv.Atoi(arg); err == nil {
		if n >= 1 && n <= len(s.listed) {
			return s.listed[n-1], true
		}
	}
	for _, c := range s.app.chat.Conversations() {
		if arg != "" && c.ID == arg {
			return c, true
		}
	}
	DisplayError(s.app.out, fmt.Errorf("no conversation %q, use /list", arg))
	return models.Conversation{}, false
}

func (s *InteractiveSession) pickOrActive(arg string) (models.Conversation, bool) {
	if strings.TrimSpace(arg) != "" {
		return s.pick(arg)
	}
	if conv, ok := s.app.chat.Active(); ok {
		return conv, true
	}
	DisplayError(s.app.out, chat.ErrNoActiveConversation)
	return models.Conversation{}, false
}

// message resolves a 1-based index into the active transcript. An empty
// argument means the latest assistant reply.
func (s *InteractiveSession) message(arg string) (models.Message, bool) {
	msgs := s.app.chat.Messages()
	arg = strings.TrimSpace(arg)
	if arg == "" {
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].IsAssistant() {
				return msgs[i], true
			}
		}
	} else if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(msgs) {
		return msgs[n-1], true
	}
	DisplayError(s.app.out, errors.New("no such message, use /history"))
	return models.Message{}, false
}

func (s *InteractiveSession) showHelp() {
	w := s.app.out
	fmt.Fprintln(w, "📚 QuantPilot Chat Help")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════")
	fmt.Fprintln(w, "Type a message to ask the assistant. Commands:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  /new [type]           Start a conversation (investment, risk, strategy, general, analysis)")
	fmt.Fprintln(w, "  /list                 List conversations, pinned first")
	fmt.Fprintln(w, "  /filter <kind>        all, pinned, recent or a conversation type")
	fmt.Fprintln(w, "  /search <text>        Search conversations on the server")
	fmt.Fprintln(w, "  /open <n|id>          Open a conversation")
	fmt.Fprintln(w, "  /pin [n|id]           Pin or unpin")
	fmt.Fprintln(w, "  /rename <title>       Rename the open conversation")
	fmt.Fprintln(w, "  /delete [n|id]        Delete a conversation")
	fmt.Fprintln(w, "  /export [n|id]        Export as a text file")
	fmt.Fprintln(w, "  /history              Show the open transcript")
	fmt.Fprintln(w, "  /copy [n]             Copy a message (default: last reply)")
	fmt.Fprintln(w, "  /fav [n] [note]       Save a message to favorites")
	fmt.Fprintln(w, "  /favs                 List favorites")
	fmt.Fprintln(w, "  /settings             Show assistant settings")
	fmt.Fprintln(w, "  /exit                 Leave the chat")
}
