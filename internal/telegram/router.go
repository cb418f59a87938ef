package telegram

import (
	"context"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/cf-streak-bot/internal/domain"
	"github.com/ykvlv/cf-streak-bot/internal/store"
)

// botAPI is the subset of *tgbotapi.BotAPI the router uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Feed answers whether a handle has an accepted submission today in tzName.
// codeforces.Client implements this.
type Feed interface {
	HasSolvedToday(ctx context.Context, handle, tzName string) bool
}

// Router wires Telegram updates to command handlers.
type Router struct {
	bot   botAPI
	log   *zap.Logger
	repo  store.Repo
	feed  Feed
	tz    *domain.Resolver
	slots []domain.Slot
	now   func() time.Time
}

// NewRouter creates a new Telegram router.
func NewRouter(bot botAPI, log *zap.Logger, repo store.Repo, feed Feed, tz *domain.Resolver, slots []domain.Slot) *Router {
	return &Router{
		bot:   bot,
		log:   log.With(zap.String("component", "telegram")),
		repo:  repo,
		feed:  feed,
		tz:    tz,
		slots: slots,
		now:   time.Now,
	}
}

// command is a parsed "/name@bot arg..." message.
type command struct {
	name string
	args []string
}

func parseCommand(text string) (command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return command{}, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return command{name: strings.ToLower(name), args: fields[1:]}, true
}

// HandleUpdate routes a single update to the matching command handler.
// A panicking handler is logged and answered with a generic error.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil {
		return
	}
	cmd, ok := parseCommand(msg.Text)
	if !ok {
		return
	}
	chatID := msg.Chat.ID
	userID := senderID(msg)

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("handler panic",
				zap.String("command", cmd.name),
				zap.String("user_id", userID),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			r.sendText(chatID, internalErrorText)
		}
	}()

	switch cmd.name {
	case "start":
		r.handleStart(ctx, chatID, userID)
	case "sethandle":
		r.handleSetHandle(ctx, chatID, userID, cmd.args)
	case "settz":
		r.handleSetTZ(ctx, chatID, userID, cmd.args)
	case "streak":
		r.handleStreak(ctx, chatID, userID)
	case "whoami":
		r.handleWhoAmI(ctx, chatID, userID)
	case "help":
		r.sendText(chatID, r.startText())
	default:
		// Unknown command: ignore silently
	}
}

// senderID keys records by the Telegram user; channel posts have no From.
func senderID(msg *tgbotapi.Message) string {
	if msg.From != nil {
		return strconv.FormatInt(msg.From.ID, 10)
	}
	return strconv.FormatInt(msg.Chat.ID, 10)
}

// SendMessage sends a plain text message to the given chat.
// This makes Router satisfy reminder.Sender.
func (r *Router) SendMessage(chatID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
