package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// handleMessage processes a single message
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage", zap.Any("panic", r))
			b.reply(message.Chat.ID, "An error occurred while processing your request. Please try again.")
		}
	}()

	userID := message.From.ID
	ctx := context.Background()

	if state, ok := b.state(userID); ok {
		if message.IsCommand() {
			// Any command cancels an ongoing conversation
			b.clearState(userID)
		} else {
			b.handleConversation(ctx, message, state)
			return
		}
	}

	if !message.IsCommand() {
		return
	}

	switch message.Command() {
	case "start", "help":
		b.handleStart(ctx, message)
	case "add":
		b.handleAdd(ctx, message)
	case "rate":
		b.handleRate(ctx, message)
	case "finish":
		b.handleFinish(ctx, message)
	case "similar":
		b.handleSimilar(ctx, message)
	case "recommend":
		b.handleRecommend(ctx, message)
	case "trending":
		b.handleTrending(ctx, message)
	case "trending_similar":
		b.handleTrendingSimilar(ctx, message)
	case "genre":
		b.handleGenre(ctx, message)
	case "achievements":
		b.handleAchievements(ctx, message)
	case "progress":
		b.handleProgress(ctx, message)
	default:
		b.reply(message.Chat.ID, "Unknown command. Use /start to see available commands.")
	}
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery", zap.Any("panic", r))
		}
	}()

	ctx := context.Background()

	// Remove the loading state on the button
	if b.api != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			b.logger.Debug("Failed to answer callback", zap.Error(err))
		}
	}

	data := query.Data
	switch {
	case strings.HasPrefix(data, rateCallbackPrefix):
		b.handleRateBookCallback(query)
	case strings.HasPrefix(data, starsCallbackPrefix):
		b.handleStarsCallback(ctx, query)
	case strings.HasPrefix(data, finishCallbackPrefix):
		b.handleFinishCallback(ctx, query)
	}
}
