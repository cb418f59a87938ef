package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/cf-streak-bot/internal/domain"
	"github.com/ykvlv/cf-streak-bot/internal/store"
)

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// --- Commands ---

func (r *Router) handleStart(ctx context.Context, chatID int64, userID string) {
	if _, err := r.repo.Upsert(ctx, userID, func(*domain.UserRecord) {}); err != nil {
		r.log.Error("create user failed", zap.String("user_id", userID), zap.Error(err))
		r.sendText(chatID, "Profile initialization error. Please try again later.")
		return
	}
	r.sendText(chatID, r.startText())
}

func (r *Router) handleSetHandle(ctx context.Context, chatID int64, userID string, args []string) {
	if len(args) == 0 {
		r.sendText(chatID, setHandleUsage)
		return
	}
	handle, err := domain.ParseHandle(args[0])
	if err != nil {
		r.sendText(chatID, invalidHandleText)
		return
	}
	if _, err := r.repo.Upsert(ctx, userID, func(u *domain.UserRecord) { u.Handle = handle }); err != nil {
		r.log.Error("save handle failed", zap.String("user_id", userID), zap.Error(err))
		r.sendText(chatID, "Could not save handle.")
		return
	}
	r.sendText(chatID, "✅ Handle saved: "+handle)
}

func (r *Router) handleSetTZ(ctx context.Context, chatID int64, userID string, args []string) {
	if len(args) == 0 {
		r.sendText(chatID, setTZUsage)
		return
	}
	tz, err := domain.ValidateTZ(args[0])
	if err != nil {
		r.sendText(chatID, invalidTZText)
		return
	}
	if _, err := r.repo.Upsert(ctx, userID, func(u *domain.UserRecord) { u.Timezone = tz }); err != nil {
		r.log.Error("save timezone failed", zap.String("user_id", userID), zap.Error(err))
		r.sendText(chatID, "Could not save timezone.")
		return
	}
	r.sendText(chatID, "✅ Timezone saved: "+tz)
}

func (r *Router) handleStreak(ctx context.Context, chatID int64, userID string) {
	u, err := r.repo.Get(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		r.log.Error("read user failed", zap.String("user_id", userID), zap.Error(err))
		r.sendText(chatID, "Error reading your settings.")
		return
	}
	if u == nil || !u.HasHandle() {
		r.sendText(chatID, noHandleText)
		return
	}
	if r.feed.HasSolvedToday(ctx, u.Handle, u.Timezone) {
		r.sendText(chatID, solvedText)
		return
	}
	r.sendText(chatID, notSolvedText)
}

func (r *Router) handleWhoAmI(ctx context.Context, chatID int64, userID string) {
	u, err := r.repo.Get(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		u = domain.NewUserRecord(r.tz.Default().String())
	case err != nil:
		r.log.Error("read user failed", zap.String("user_id", userID), zap.Error(err))
		r.sendText(chatID, "Error reading your settings.")
		return
	}

	handle := "not set"
	if u.HasHandle() {
		handle = u.Handle
	}
	body := fmt.Sprintf(whoAmIFmt,
		html.EscapeString(handle),
		html.EscapeString(u.Timezone),
		r.tz.LocalizeTime(r.now(), u.Timezone),
		html.EscapeString(strings.Join(domain.Labels(r.slots), ", ")),
	)
	r.sendHTML(chatID, body)
}

func (r *Router) startText() string {
	return fmt.Sprintf(startFmt, strings.Join(domain.Labels(r.slots), ", "), r.tz.Default().String())
}
